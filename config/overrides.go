package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/wippyai/scanx-wasm/engine"
)

const restrictedMessage = `restricted deployment: engine binaries cannot be located automatically.
Supply an instantiateWasm override, for example:

	runtime.Prepare(ctx, factory, lifecycle.PrepareOptions{
		Overrides: engine.Overrides{
			engine.KeyInstantiateWasm: engine.InstantiateFunc(func(ctx context.Context, rt wazero.Runtime, cfg wazero.ModuleConfig) (api.Module, error) {
				return rt.InstantiateWithConfig(ctx, binary, cfg)
			}),
		},
		FireImmediately: true,
	})`

// DefaultOverrides returns the environment default overrides for cfg.
// Restricted deployments get a placeholder strategy that fails eager
// preparation until the caller replaces it.
func DefaultOverrides(cfg *Config) engine.Overrides {
	var ov engine.Overrides
	switch cfg.Mode {
	case ModeRestricted:
		ov = engine.Overrides{engine.KeyInstantiateWasm: engine.RequireInstantiator(restrictedMessage)}
	case ModeDevelopment:
		ov = engine.Overrides{engine.KeyLocateFile: LocalLocator(cfg.LocalDir)}
	default:
		ov = engine.Overrides{engine.KeyLocateFile: CDNLocator(cfg.CDNHost, cfg.Version)}
	}
	if cfg.MemoryLimitPages > 0 {
		ov[engine.KeyMemoryLimitPages] = cfg.MemoryLimitPages
	}
	return ov
}

// CDNLocator locates engine binaries under the versioned package path on
// host. Names that are not engine binaries resolve to prefix + path.
func CDNLocator(host, version string) engine.LocateFunc {
	if host == "" {
		host = DefaultCDNHost
	}
	host = strings.TrimSuffix(host, "/")
	return func(path, prefix string) string {
		variant, ok := engine.VariantOf(path)
		if !ok {
			return prefix + path
		}
		return fmt.Sprintf("%s/npm/scanx-wasm@%s/dist/%s/%s", host, version, variant, path)
	}
}

// LocalLocator locates engine binaries in dir/<variant>/<file>
func LocalLocator(dir string) engine.LocateFunc {
	return func(path, prefix string) string {
		variant, ok := engine.VariantOf(path)
		if !ok {
			return prefix + path
		}
		return filepath.Join(dir, variant, path)
	}
}
