package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-viper/mapstructure/v2"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	scanx "github.com/wippyai/scanx-wasm"
	"github.com/wippyai/scanx-wasm/errors"
)

const (
	// DefaultConfigPath is read when present. An explicit path must exist.
	DefaultConfigPath = "~/.scanx/config.yaml"

	// EnvPrefix is the prefix for environment variables, SCANX_CDN_HOST
	// sets cdn_host
	EnvPrefix = "SCANX_"

	// DefaultCDNHost serves published engine binaries
	DefaultCDNHost = "https://fastly.jsdelivr.net"
)

// Mode selects how engine binaries are located
type Mode string

const (
	// ModeRestricted has no way to locate binaries; callers must supply
	// an instantiateWasm override
	ModeRestricted Mode = "restricted"
	// ModeProduction fetches versioned binaries from the CDN
	ModeProduction Mode = "production"
	// ModeDevelopment reads binaries from a local build tree
	ModeDevelopment Mode = "development"
)

// Config is the deployment configuration, resolved once per process
type Config struct {
	Mode     Mode   `koanf:"mode" yaml:"mode" validate:"required,oneof=restricted production development"`
	Version  string `koanf:"version" yaml:"version" validate:"required"`
	CDNHost  string `koanf:"cdn_host" yaml:"cdn_host" validate:"required_if=Mode production"`
	LocalDir string `koanf:"local_dir" yaml:"local_dir" validate:"required_if=Mode development"`

	// CacheDir holds fetched binaries across processes. Empty keeps them
	// in memory.
	CacheDir string `koanf:"cache_dir" yaml:"cache_dir"`

	// CompilationCacheDir holds compiled engines across processes
	CompilationCacheDir string `koanf:"compilation_cache_dir" yaml:"compilation_cache_dir"`

	// MemoryLimitPages caps linear memory per instance, 0 for no cap
	MemoryLimitPages uint32 `koanf:"memory_limit_pages" yaml:"memory_limit_pages" validate:"lte=65536"`

	// FetchTimeout bounds a single binary download
	FetchTimeout time.Duration `koanf:"fetch_timeout" yaml:"fetch_timeout" validate:"gte=0"`
}

// Default returns the production configuration for this build
func Default() *Config {
	return &Config{
		Mode:         ModeProduction,
		Version:      scanx.Version,
		CDNHost:      DefaultCDNHost,
		LocalDir:     "src",
		FetchTimeout: 30 * time.Second,
	}
}

// Load resolves the configuration from defaults, the YAML file at path and
// SCANX_ environment variables, in that order. An empty path reads
// DefaultConfigPath if it exists.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(newStructProvider(Default()), nil); err != nil {
		return nil, fmt.Errorf("failed to load default config: %w", err)
	}

	optional := path == ""
	if optional {
		path = DefaultConfigPath
	}
	path = expandHome(path)
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, errors.New(errors.PhaseConfig, errors.KindConfiguration).
				Cause(err).Detail("load config file %s", path).Build()
		}
	} else if !optional {
		return nil, errors.New(errors.PhaseConfig, errors.KindConfiguration).
			Cause(err).Detail("config file %s", path).Build()
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{
		Tag: "koanf",
		DecoderConfig: &mapstructure.DecoderConfig{
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
			),
			Result:           &cfg,
			WeaklyTypedInput: true,
			ErrorUnused:      true,
		},
	}); err != nil {
		return nil, errors.New(errors.PhaseConfig, errors.KindConfiguration).
			Cause(err).Detail("decode config").Build()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return errors.New(errors.PhaseConfig, errors.KindConfiguration).
			GoType("config.Config").Cause(err).Detail("invalid configuration").Build()
	}
	return nil
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

// structProvider feeds a struct into koanf as a flat map
type structProvider struct {
	cfg any
}

func newStructProvider(cfg any) *structProvider {
	return &structProvider{cfg: cfg}
}

func (s *structProvider) Read() (map[string]any, error) {
	var out map[string]any
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:  &out,
		TagName: "koanf",
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(s.cfg); err != nil {
		return nil, err
	}
	return out, nil
}

func (s *structProvider) ReadBytes() ([]byte, error) {
	return nil, fmt.Errorf("ReadBytes not supported for struct provider")
}
