package runtime

import (
	"context"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/scanx-wasm/bindings"
	"github.com/wippyai/scanx-wasm/bridge"
	"github.com/wippyai/scanx-wasm/config"
	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/fetch"
	"github.com/wippyai/scanx-wasm/lifecycle"
	"github.com/wippyai/scanx-wasm/metrics"
	"github.com/wippyai/scanx-wasm/store"
)

// Runtime instantiates engines on demand and runs read and write
// operations against them
type Runtime struct {
	manager *lifecycle.Manager
	bridge  *bridge.Bridge
	metrics *metrics.Metrics
	log     *zap.Logger
	cfg     *config.Config
	closers []func(context.Context) error
	closed  bool
	mu      sync.Mutex
}

type options struct {
	cfg      *config.Config
	loader   engine.Loader
	store    store.Store
	registry prometheus.Registerer
	log      *zap.Logger
	defaults func() engine.Overrides
}

// Option configures a Runtime
type Option func(*options)

// WithConfig sets the deployment configuration. Defaults to config.Default.
func WithConfig(cfg *config.Config) Option {
	return func(o *options) { o.cfg = cfg }
}

// WithLoader replaces the wazero loader
func WithLoader(l engine.Loader) Option {
	return func(o *options) { o.loader = l }
}

// WithStore caches fetched binaries in s. The caller keeps ownership.
func WithStore(s store.Store) Option {
	return func(o *options) { o.store = s }
}

// WithRegistry registers metrics with reg
func WithRegistry(reg prometheus.Registerer) Option {
	return func(o *options) { o.registry = reg }
}

// WithLogger sets the logger. Defaults to the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(o *options) { o.log = l }
}

// WithDefaultOverrides replaces the overrides derived from the
// configuration mode
func WithDefaultOverrides(fn func() engine.Overrides) Option {
	return func(o *options) { o.defaults = fn }
}

// New creates a Runtime
func New(opts ...Option) (*Runtime, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.cfg == nil {
		o.cfg = config.Default()
	}
	if o.log == nil {
		o.log = engine.Logger()
	}

	r := &Runtime{cfg: o.cfg, log: o.log}

	if o.registry != nil {
		m, err := metrics.New(o.registry)
		if err != nil {
			return nil, err
		}
		r.metrics = m
	}

	loader := o.loader
	if loader == nil {
		l, err := r.newLoader(o)
		if err != nil {
			_ = r.closeResources(context.Background())
			return nil, err
		}
		loader = l
	}

	defaults := o.defaults
	if defaults == nil {
		cfg := o.cfg
		defaults = func() engine.Overrides { return config.DefaultOverrides(cfg) }
	}

	r.manager = lifecycle.NewManager(
		lifecycle.NewCache(defaults),
		loader,
		lifecycle.WithMetrics(r.metrics),
		lifecycle.WithLogger(r.log),
	)
	r.bridge = bridge.New(bridge.WithMetrics(r.metrics), bridge.WithLogger(r.log))
	return r, nil
}

func (r *Runtime) newLoader(o options) (*engine.WazeroLoader, error) {
	st := o.store
	if st == nil {
		if o.cfg.CacheDir != "" {
			b, err := store.OpenBadger(o.cfg.CacheDir)
			if err != nil {
				return nil, err
			}
			r.closers = append(r.closers, func(context.Context) error { return b.Close() })
			st = b
		} else {
			st = store.NewMemory()
		}
	}

	fetcher := fetch.New(
		fetch.WithStore(st),
		fetch.WithTimeout(o.cfg.FetchTimeout),
		fetch.WithLogger(r.log),
	)
	l, err := engine.NewWazeroLoader(engine.LoaderConfig{
		Fetcher:             fetcher,
		CompilationCacheDir: o.cfg.CompilationCacheDir,
		MemoryLimitPages:    o.cfg.MemoryLimitPages,
	})
	if err != nil {
		return nil, err
	}
	r.closers = append(r.closers, l.Close)
	return l, nil
}

// Config returns the deployment configuration
func (r *Runtime) Config() *config.Config {
	return r.cfg
}

// Manager returns the lifecycle manager
func (r *Runtime) Manager() *lifecycle.Manager {
	return r.manager
}

// Prepare stages or instantiates the engine for f, see lifecycle.Manager
func (r *Runtime) Prepare(ctx context.Context, f *engine.Factory, opts lifecycle.PrepareOptions) (*lifecycle.Future, error) {
	return r.manager.Prepare(ctx, f, opts)
}

// Purge evicts the cached engine for f
func (r *Runtime) Purge(f *engine.Factory) {
	r.manager.Purge(f)
}

// Instance returns the engine for f, instantiating it on first use
func (r *Runtime) Instance(ctx context.Context, f *engine.Factory) (engine.Instance, error) {
	return r.manager.Instance(ctx, f)
}

// Module instantiates f with ov unless the cached engine was built from
// the very same overrides map
func (r *Runtime) Module(ctx context.Context, f *engine.Factory, ov engine.Overrides) (engine.Instance, error) {
	fut, err := r.manager.Prepare(ctx, f, lifecycle.PrepareOptions{
		Overrides:       ov,
		EqualityFn:      lifecycle.Identical,
		FireImmediately: true,
	})
	if err != nil {
		return nil, err
	}
	return fut.Wait(ctx)
}

// SetOverrides stages ov for the next instantiation of f unless the cached
// overrides are the very same map
func (r *Runtime) SetOverrides(f *engine.Factory, ov engine.Overrides) {
	_, _ = r.manager.Prepare(context.Background(), f, lifecycle.PrepareOptions{
		Overrides:  ov,
		EqualityFn: lifecycle.Identical,
	})
}

// ReadBarcodes reads every barcode in input with the engine for f
func (r *Runtime) ReadBarcodes(ctx context.Context, f *engine.Factory, input any, opts *bindings.ReaderOptions) ([]bindings.ReadResult, error) {
	inst, err := r.manager.Instance(ctx, f)
	if err != nil {
		return nil, err
	}
	return r.bridge.ReadMany(ctx, inst, input, opts)
}

// ReadSingleBarcode reads one barcode from input, nil when there is none
func (r *Runtime) ReadSingleBarcode(ctx context.Context, f *engine.Factory, input any, opts *bindings.ReaderOptions) (*bindings.ReadResult, error) {
	inst, err := r.manager.Instance(ctx, f)
	if err != nil {
		return nil, err
	}
	return r.bridge.ReadOne(ctx, inst, input, opts)
}

// WriteBarcode encodes in with the engine for f
func (r *Runtime) WriteBarcode(ctx context.Context, f *engine.Factory, in bridge.WriteInput, opts *bindings.WriterOptions) (*bindings.WriteResult, error) {
	inst, err := r.manager.Instance(ctx, f)
	if err != nil {
		return nil, err
	}
	return r.bridge.Write(ctx, inst, in, opts)
}

// Close closes every engine the runtime produced, then the loader and the
// binary cache it opened. Calling Close again is a no-op.
func (r *Runtime) Close(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	err := r.manager.Close(ctx)
	return multierr.Append(err, r.closeResources(ctx))
}

func (r *Runtime) closeResources(ctx context.Context) error {
	var err error
	for i := len(r.closers) - 1; i >= 0; i-- {
		err = multierr.Append(err, r.closers[i](ctx))
	}
	r.closers = nil
	return err
}

var (
	defaultRuntime *Runtime
	defaultMu      sync.Mutex
)

// Default returns the process-wide runtime, configured from
// config.DefaultConfigPath and SCANX_ environment variables on first use.
// A configuration error is returned and retried on the next call.
func Default() (*Runtime, error) {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultRuntime != nil {
		return defaultRuntime, nil
	}
	cfg, err := config.Load("")
	if err != nil {
		return nil, err
	}
	rt, err := New(WithConfig(cfg))
	if err != nil {
		return nil, err
	}
	defaultRuntime = rt
	return rt, nil
}

// SetDefault replaces the process-wide runtime and returns the previous
// one, which the caller owns and must close. A nil rt makes the next
// Default call build a fresh runtime.
func SetDefault(rt *Runtime) *Runtime {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	prev := defaultRuntime
	defaultRuntime = rt
	return prev
}
