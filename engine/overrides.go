package engine

import (
	"context"
	"fmt"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"

	"github.com/wippyai/scanx-wasm/errors"
)

// Overrides is a flat option-name to value mapping that customizes engine
// instantiation. Treat it as immutable once handed to the binding: caches
// compare overrides by shallow equality, never by deep contents.
type Overrides map[string]any

// Well-known override keys. Unknown keys are carried and compared but
// ignored by the loader.
const (
	KeyLocateFile       = "locateFile"
	KeyInstantiateWasm  = "instantiateWasm"
	KeyWasmBinary       = "wasmBinary"
	KeyCDNHost          = "cdnHost"
	KeyMemoryLimitPages = "memoryLimitPages"
)

// LocateFunc maps an engine file name to the location it is fetched from.
// prefix is the loader's base location and may be empty.
type LocateFunc func(path, prefix string) string

// Instantiator is a custom instantiation strategy. It receives the runtime
// created for the instance (WASI already registered) and the module config
// the loader would use, and returns the instantiated engine module.
type Instantiator interface {
	Instantiate(ctx context.Context, rt wazero.Runtime, cfg wazero.ModuleConfig) (api.Module, error)
}

// InstantiateFunc adapts a function to Instantiator
type InstantiateFunc func(ctx context.Context, rt wazero.Runtime, cfg wazero.ModuleConfig) (api.Module, error)

func (f InstantiateFunc) Instantiate(ctx context.Context, rt wazero.Runtime, cfg wazero.ModuleConfig) (api.Module, error) {
	return f(ctx, rt, cfg)
}

// missingInstantiator marks a deployment where the caller must supply
// their own instantiateWasm strategy.
type missingInstantiator struct {
	msg string
}

// RequireInstantiator returns a placeholder strategy that fails validation
// with msg until the caller replaces it.
func RequireInstantiator(msg string) Instantiator {
	return &missingInstantiator{msg: msg}
}

func (m *missingInstantiator) Instantiate(context.Context, wazero.Runtime, wazero.ModuleConfig) (api.Module, error) {
	return nil, errors.Configuration(m.msg)
}

// LocateFile returns the locateFile override, or nil
func (o Overrides) LocateFile() (LocateFunc, error) {
	v, ok := o[KeyLocateFile]
	if !ok || v == nil {
		return nil, nil
	}
	switch fn := v.(type) {
	case LocateFunc:
		return fn, nil
	case func(path, prefix string) string:
		return fn, nil
	}
	return nil, typeMismatch(KeyLocateFile, v, "func(path, prefix string) string")
}

// Instantiator returns the instantiateWasm override, or nil
func (o Overrides) Instantiator() (Instantiator, error) {
	v, ok := o[KeyInstantiateWasm]
	if !ok || v == nil {
		return nil, nil
	}
	switch in := v.(type) {
	case Instantiator:
		return in, nil
	case func(context.Context, wazero.Runtime, wazero.ModuleConfig) (api.Module, error):
		return InstantiateFunc(in), nil
	}
	return nil, typeMismatch(KeyInstantiateWasm, v, "engine.Instantiator")
}

// WasmBinary returns the wasmBinary override, or nil
func (o Overrides) WasmBinary() ([]byte, error) {
	v, ok := o[KeyWasmBinary]
	if !ok || v == nil {
		return nil, nil
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, typeMismatch(KeyWasmBinary, v, "[]byte")
	}
	return b, nil
}

// CDNHost returns the cdnHost override, or ""
func (o Overrides) CDNHost() (string, error) {
	v, ok := o[KeyCDNHost]
	if !ok || v == nil {
		return "", nil
	}
	s, ok := v.(string)
	if !ok {
		return "", typeMismatch(KeyCDNHost, v, "string")
	}
	return s, nil
}

// MemoryLimitPages returns the memoryLimitPages override, or 0
func (o Overrides) MemoryLimitPages() (uint32, error) {
	v, ok := o[KeyMemoryLimitPages]
	if !ok || v == nil {
		return 0, nil
	}
	switch n := v.(type) {
	case uint32:
		return n, nil
	case int:
		if n >= 0 && n <= 65536 {
			return uint32(n), nil
		}
	}
	return 0, typeMismatch(KeyMemoryLimitPages, v, "uint32 in [0, 65536]")
}

// Validate checks the well-known keys. It fails with a configuration error
// when a key has the wrong type or the instantiation strategy is a
// placeholder that the caller was required to replace.
func (o Overrides) Validate() error {
	if _, err := o.LocateFile(); err != nil {
		return err
	}
	in, err := o.Instantiator()
	if err != nil {
		return err
	}
	if m, ok := in.(*missingInstantiator); ok {
		return errors.Configuration(m.msg)
	}
	if _, err := o.WasmBinary(); err != nil {
		return err
	}
	if _, err := o.CDNHost(); err != nil {
		return err
	}
	if _, err := o.MemoryLimitPages(); err != nil {
		return err
	}
	return nil
}

func typeMismatch(key string, v any, want string) error {
	return errors.New(errors.PhaseConfig, errors.KindConfiguration).
		Path(key).
		GoType(fmt.Sprintf("%T", v)).
		Value(v).
		Detail("expected %s", want).
		Build()
}
