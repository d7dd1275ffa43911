// Package full reads and encodes barcodes with the combined engine build.
package full

import (
	"context"
	"image"
	"io"

	"github.com/wippyai/scanx-wasm/bindings"
	"github.com/wippyai/scanx-wasm/bridge"
	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/lifecycle"
	"github.com/wippyai/scanx-wasm/runtime"
)

// SHA256 is the expected digest of scanx_full.wasm. Release builds set it
// with -ldflags "-X github.com/wippyai/scanx-wasm/full.SHA256=<hex>".
var SHA256 string

// Factory identifies the full engine in the runtime cache
var Factory = engine.NewFactory(engine.Variant{
	Name:         "full",
	SHA256:       SHA256,
	Capabilities: engine.CapRead | engine.CapWrite,
})

// Prepare stages overrides for the full engine, or instantiates it when
// opts.FireImmediately is set
func Prepare(ctx context.Context, opts lifecycle.PrepareOptions) (*lifecycle.Future, error) {
	rt, err := runtime.Default()
	if err != nil {
		return nil, err
	}
	return rt.Prepare(ctx, Factory, opts)
}

// Purge evicts the cached full engine
func Purge() {
	if rt, err := runtime.Default(); err == nil {
		rt.Purge(Factory)
	}
}

// ReadBarcodes reads every barcode in input. No match is an empty slice.
func ReadBarcodes(ctx context.Context, input any, opts *bindings.ReaderOptions) ([]bindings.ReadResult, error) {
	rt, err := runtime.Default()
	if err != nil {
		return nil, err
	}
	return rt.ReadBarcodes(ctx, Factory, input, opts)
}

// ReadSingleBarcode reads one barcode from input, nil when there is none
func ReadSingleBarcode(ctx context.Context, input any, opts *bindings.ReaderOptions) (*bindings.ReadResult, error) {
	rt, err := runtime.Default()
	if err != nil {
		return nil, err
	}
	return rt.ReadSingleBarcode(ctx, Factory, input, opts)
}

// WriteBarcode encodes in. Use bridge.Text or bridge.Bytes to build it.
func WriteBarcode(ctx context.Context, in bridge.WriteInput, opts *bindings.WriterOptions) (*bindings.WriteResult, error) {
	rt, err := runtime.Default()
	if err != nil {
		return nil, err
	}
	return rt.WriteBarcode(ctx, Factory, in, opts)
}

// Module returns the full engine built from ov.
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

// ReadBarcodesFromImageFile reads an encoded image file.
//
// Deprecated: Use ReadBarcodes.
func ReadBarcodesFromImageFile(ctx context.Context, file io.Reader, opts *bindings.ReaderOptions) ([]bindings.ReadResult, error) {
	return ReadBarcodes(ctx, file, opts)
}

// ReadBarcodesFromImageData reads decoded pixels.
//
// Deprecated: Use ReadBarcodes.
func ReadBarcodesFromImageData(ctx context.Context, img image.Image, opts *bindings.ReaderOptions) ([]bindings.ReadResult, error) {
	return ReadBarcodes(ctx, img, opts)
}
