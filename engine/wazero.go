package engine

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/zap"

	"github.com/wippyai/scanx-wasm/errors"
)

// LoaderConfig holds configuration for the wazero loader
type LoaderConfig struct {
	// Fetcher retrieves binaries for located addresses. Required unless
	// every factory is loaded with wasmBinary or instantiateWasm overrides.
	Fetcher Fetcher

	// Prefix is passed to locateFile and prepended to the file name when
	// no locateFile override is set.
	Prefix string

	// CompilationCacheDir persists compiled engines across processes.
	// Empty keeps the cache in memory.
	CompilationCacheDir string

	// MemoryLimitPages caps linear memory per instance in 64KiB pages.
	// 0 means the wazero default. The memoryLimitPages override wins.
	MemoryLimitPages uint32
}

// WazeroLoader loads engine instances with wazero. Each instance gets its
// own runtime so closing one never affects another; compiled code is shared
// through the compilation cache.
type WazeroLoader struct {
	fetcher          Fetcher
	cache            wazero.CompilationCache
	prefix           string
	memoryLimitPages uint32
}

// NewWazeroLoader creates a loader
func NewWazeroLoader(cfg LoaderConfig) (*WazeroLoader, error) {
	l := &WazeroLoader{
		fetcher:          cfg.Fetcher,
		prefix:           cfg.Prefix,
		memoryLimitPages: cfg.MemoryLimitPages,
	}
	if cfg.CompilationCacheDir != "" {
		cache, err := wazero.NewCompilationCacheWithDir(cfg.CompilationCacheDir)
		if err != nil {
			return nil, errors.Load("open compilation cache", err)
		}
		l.cache = cache
	} else {
		l.cache = wazero.NewCompilationCache()
	}
	return l, nil
}

// Close releases the compilation cache. Instances already loaded stay valid.
func (l *WazeroLoader) Close(ctx context.Context) error {
	return l.cache.Close(ctx)
}

// Load instantiates f with the effective overrides ov
func (l *WazeroLoader) Load(ctx context.Context, f *Factory, ov Overrides) (Instance, error) {
	if err := ov.Validate(); err != nil {
		return nil, err
	}
	v := f.Variant()

	limit, _ := ov.MemoryLimitPages()
	if limit == 0 {
		limit = l.memoryLimitPages
	}
	rc := wazero.NewRuntimeConfig().WithCompilationCache(l.cache)
	if limit > 0 {
		rc = rc.WithMemoryLimitPages(limit)
	}

	rt := wazero.NewRuntimeWithConfig(ctx, rc)
	loaded := false
	defer func() {
		if !loaded {
			_ = rt.Close(ctx)
		}
	}()

	if err := instantiateWASI(ctx, rt); err != nil {
		return nil, fmt.Errorf("instantiate WASI: %w", err)
	}

	cfg, closeLogs := moduleConfig(v)
	mod, err := l.instantiate(ctx, rt, cfg, v, ov)
	if err != nil {
		closeLogs()
		return nil, err
	}

	m, err := newWasmModule(rt, mod, v, closeLogs)
	if err != nil {
		closeLogs()
		return nil, err
	}
	loaded = true

	Logger().Debug("engine instantiated",
		zap.String("variant", v.Name),
		zap.Uint32("memory_bytes", m.mem.Size()))
	return m.typed(), nil
}

func (l *WazeroLoader) instantiate(ctx context.Context, rt wazero.Runtime, cfg wazero.ModuleConfig, v Variant, ov Overrides) (api.Module, error) {
	custom, _ := ov.Instantiator()
	if custom != nil {
		debugf("instantiating %s with custom strategy", v.Name)
		mod, err := custom.Instantiate(ctx, rt, cfg)
		if err != nil {
			return nil, err
		}
		if mod == nil {
			return nil, errors.Load("custom instantiateWasm returned no module", nil)
		}
		return mod, nil
	}

	bin, err := l.binary(ctx, v, ov)
	if err != nil {
		return nil, err
	}
	compiled, err := rt.CompileModule(ctx, bin)
	if err != nil {
		return nil, errors.Load("compile "+v.File, err)
	}
	mod, err := rt.InstantiateModule(ctx, compiled, cfg)
	if err != nil {
		return nil, fmt.Errorf("instantiate %s: %w", v.File, err)
	}
	return mod, nil
}

func (l *WazeroLoader) binary(ctx context.Context, v Variant, ov Overrides) ([]byte, error) {
	if bin, _ := ov.WasmBinary(); bin != nil {
		return bin, nil
	}

	loc := l.prefix + v.File
	if locate, _ := ov.LocateFile(); locate != nil {
		loc = locate(v.File, l.prefix)
	}
	if host, _ := ov.CDNHost(); host != "" {
		loc = withHost(loc, host)
	}

	if l.fetcher == nil {
		return nil, errors.Unsupported(errors.PhaseLoad, "no fetcher configured for "+loc)
	}
	debugf("fetching %s engine from %s", v.Name, loc)
	return l.fetcher.Fetch(ctx, loc, v)
}

// withHost replaces the host of an http(s) location. Other locations are
// returned unchanged.
func withHost(loc, host string) string {
	u, err := url.Parse(loc)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return loc
	}
	if h, err := url.Parse(host); err == nil && h.Host != "" {
		u.Scheme, u.Host = h.Scheme, h.Host
	} else {
		u.Host = strings.TrimSuffix(host, "/")
	}
	return u.String()
}

var _ Loader = (*WazeroLoader)(nil)
