// Package writer encodes barcodes with the write-only engine build.
//
// Functions run on the process-wide runtime (see runtime.Default).
package writer

import (
	"context"

	"github.com/wippyai/scanx-wasm/bindings"
	"github.com/wippyai/scanx-wasm/bridge"
	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/lifecycle"
	"github.com/wippyai/scanx-wasm/runtime"
)

// SHA256 is the expected digest of scanx_writer.wasm. Release builds set it
// with -ldflags "-X github.com/wippyai/scanx-wasm/writer.SHA256=<hex>".
var SHA256 string

// Factory identifies the writer engine in the runtime cache
var Factory = engine.NewFactory(engine.Variant{
	Name:         "writer",
	SHA256:       SHA256,
	Capabilities: engine.CapWrite,
})

// Prepare stages overrides for the writer engine, or instantiates it when
// opts.FireImmediately is set
func Prepare(ctx context.Context, opts lifecycle.PrepareOptions) (*lifecycle.Future, error) {
	rt, err := runtime.Default()
	if err != nil {
		return nil, err
	}
	return rt.Prepare(ctx, Factory, opts)
}

// Purge evicts the cached writer engine
func Purge() {
	if rt, err := runtime.Default(); err == nil {
		rt.Purge(Factory)
	}
}

// WriteBarcode encodes in. Use bridge.Text or bridge.Bytes to build it.
func WriteBarcode(ctx context.Context, in bridge.WriteInput, opts *bindings.WriterOptions) (*bindings.WriteResult, error) {
	rt, err := runtime.Default()
	if err != nil {
		return nil, err
	}
	return rt.WriteBarcode(ctx, Factory, in, opts)
}

// Module returns the writer engine built from ov.
//
// Deprecated: Use Prepare with lifecycle.Identical and FireImmediately.
func Module(ctx context.Context, ov engine.Overrides) (engine.Instance, error) {
	rt, err := runtime.Default()
	if err != nil {
		return nil, err
	}
	return rt.Module(ctx, Factory, ov)
}

// SetOverrides stages ov for the next instantiation.
//
// Deprecated: Use Prepare with lifecycle.Identical.
func SetOverrides(ov engine.Overrides) {
	if rt, err := runtime.Default(); err == nil {
		rt.SetOverrides(Factory, ov)
	}
}
