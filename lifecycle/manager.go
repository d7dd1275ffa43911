package lifecycle

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/errors"
	"github.com/wippyai/scanx-wasm/metrics"
)

// PrepareOptions controls Prepare
type PrepareOptions struct {
	// Overrides replaces the cached overrides when non-nil. They are not
	// merged with the defaults.
	Overrides engine.Overrides

	// EqualityFn compares cached and effective overrides. Defaults to
	// ShallowEqual. It runs under the cache lock and must not call back
	// into the manager.
	EqualityFn EqualityFunc

	// FireImmediately instantiates now and returns the Future. Otherwise
	// Prepare only stages the overrides for the next instantiation.
	FireImmediately bool
}

// Manager decides when to instantiate engines. It owns every instance it
// produces; nothing is closed until Close.
type Manager struct {
	cache    *Cache
	loader   engine.Loader
	metrics  *metrics.Metrics
	log      *zap.Logger
	produced []*Future
	mu       sync.Mutex
}

// Option configures a Manager
type Option func(*Manager)

// WithMetrics records lifecycle metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(mgr *Manager) { mgr.metrics = m }
}

// WithLogger sets the logger. Defaults to the engine logger.
func WithLogger(l *zap.Logger) Option {
	return func(mgr *Manager) { mgr.log = l }
}

// NewManager creates a manager over cache that instantiates with loader
func NewManager(cache *Cache, loader engine.Loader, opts ...Option) *Manager {
	m := &Manager{
		cache:  cache,
		loader: loader,
		log:    engine.Logger(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Cache returns the manager's cache
func (m *Manager) Cache() *Cache {
	return m.cache
}

// Prepare stages overrides for f, or with FireImmediately returns the
// Future of an instance built from them.
//
// Staging stores the effective overrides without a Future when they differ
// from the cached ones and returns (nil, nil). Eager preparation returns the
// cached Future while the overrides are equal; otherwise it validates the
// overrides, stores a new Future before instantiation starts and returns it.
// Invalid overrides are returned as a configuration error and nothing is
// cached.
func (m *Manager) Prepare(ctx context.Context, f *engine.Factory, opts PrepareOptions) (*Future, error) {
	if f == nil {
		return nil, errors.InvalidInput(errors.PhaseConfig, "nil factory")
	}
	equal := opts.EqualityFn
	if equal == nil {
		equal = ShallowEqual
	}
	v := f.Variant().Name

	m.cache.mu.Lock()
	cached := m.cache.lookupLocked(f)
	effective := opts.Overrides
	if effective == nil {
		effective = cached.Overrides
	}

	if !opts.FireImmediately {
		if !equal(cached.Overrides, effective) {
			m.cache.entries[f] = Entry{Overrides: effective}
			m.log.Debug("overrides staged", zap.String("variant", v))
		}
		m.cache.mu.Unlock()
		return nil, nil
	}

	if cached.Future != nil && equal(cached.Overrides, effective) {
		m.cache.mu.Unlock()
		m.metrics.Reused(v)
		return cached.Future, nil
	}

	if err := effective.Validate(); err != nil {
		m.cache.mu.Unlock()
		return nil, err
	}

	fut := newFuture()
	m.cache.entries[f] = Entry{Overrides: effective, Future: fut}
	m.cache.mu.Unlock()

	m.mu.Lock()
	m.produced = append(m.produced, fut)
	m.mu.Unlock()

	m.metrics.InstantiationStarted(v)
	go m.instantiate(context.WithoutCancel(ctx), f, effective, fut)
	return fut, nil
}

func (m *Manager) instantiate(ctx context.Context, f *engine.Factory, ov engine.Overrides, fut *Future) {
	v := f.Variant().Name
	start := time.Now()

	var (
		inst engine.Instance
		err  error
	)
	defer func() {
		if r := recover(); r != nil {
			inst, err = nil, fmt.Errorf("loader panic: %v", r)
		}
		if err != nil {
			err = errors.Instantiation(v, err)
			m.log.Debug("instantiation failed", zap.String("variant", v), zap.Error(err))
		} else {
			m.log.Debug("instantiated", zap.String("variant", v), zap.Duration("took", time.Since(start)))
		}
		m.metrics.InstantiationDone(v, time.Since(start), err)
		fut.resolve(inst, err)
	}()

	inst, err = m.loader.Load(ctx, f, ov)
	if err == nil && inst == nil {
		err = errors.Load("loader returned no instance", nil)
	}
}

// Instance returns the instance for f, instantiating it on first use with
// the cached or default overrides
func (m *Manager) Instance(ctx context.Context, f *engine.Factory) (engine.Instance, error) {
	fut, err := m.Prepare(ctx, f, PrepareOptions{FireImmediately: true})
	if err != nil {
		return nil, err
	}
	return fut.Wait(ctx)
}

// Purge evicts f. The next eager prepare instantiates fresh from the
// default overrides. Instances already handed out stay usable.
func (m *Manager) Purge(f *engine.Factory) {
	m.cache.Purge(f)
}

// Close waits for pending instantiations and closes every instance the
// manager produced, including ones from replaced or purged entries. The
// cache is emptied.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	produced := m.produced
	m.produced = nil
	m.mu.Unlock()

	m.cache.reset()

	var err error
	for _, fut := range produced {
		inst, werr := fut.Wait(ctx)
		if werr != nil {
			// failed instantiations hold nothing to close
			if !fut.Settled() {
				err = multierr.Append(err, werr)
			}
			continue
		}
		err = multierr.Append(err, inst.Close(ctx))
	}
	return err
}
