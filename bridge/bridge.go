package bridge

import (
	"context"

	"go.uber.org/zap"

	"github.com/wippyai/scanx-wasm/bindings"
	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/errors"
	"github.com/wippyai/scanx-wasm/metrics"
)

// Operation names used for metrics and logs
const (
	OpReadImage  = "read_image"
	OpReadPixmap = "read_pixmap"
	OpReadSingle = "read_single"
	OpWriteText  = "write_text"
	OpWriteBytes = "write_bytes"
)

// Bridge moves data across the engine boundary
type Bridge struct {
	metrics *metrics.Metrics
	log     *zap.Logger
}

// Option configures a Bridge
type Option func(*Bridge)

// WithMetrics records allocation and call metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(b *Bridge) { b.metrics = m }
}

// WithLogger sets the logger. Defaults to the engine logger at call time.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) { b.log = l }
}

// New creates a Bridge
func New(opts ...Option) *Bridge {
	b := &Bridge{}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

var std = New()

// ReadMany reads every barcode in input with a Bridge without metrics
func ReadMany(ctx context.Context, inst engine.Instance, input any, opts *bindings.ReaderOptions) ([]bindings.ReadResult, error) {
	return std.ReadMany(ctx, inst, input, opts)
}

// ReadOne reads the first barcode in input with a Bridge without metrics
func ReadOne(ctx context.Context, inst engine.Instance, input any, opts *bindings.ReaderOptions) (*bindings.ReadResult, error) {
	return std.ReadOne(ctx, inst, input, opts)
}

// Write encodes in with a Bridge without metrics
func Write(ctx context.Context, inst engine.Instance, in WriteInput, opts *bindings.WriterOptions) (*bindings.WriteResult, error) {
	return std.Write(ctx, inst, in, opts)
}

// prepareRead runs every check that can fail before linear memory is
// touched: capability, input shape, options
func prepareRead(ctx context.Context, inst engine.Instance, input any, opts *bindings.ReaderOptions) (engine.Reader, []byte, *PixelGrid, *engine.ReaderOptions, error) {
	r, ok := inst.(engine.Reader)
	if !ok {
		return nil, nil, nil, nil, unsupported(inst, "read")
	}
	in, err := Classify(input)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	flat, err := bindings.ReaderOptionsToEngine(opts.WithDefaults())
	if err != nil {
		return nil, nil, nil, nil, err
	}
	data, grid, err := materialize(ctx, in)
	if err != nil {
		return nil, nil, nil, nil, err
	}
	return r, data, grid, &flat, nil
}

// ReadMany reads every barcode in input. Results come back in engine
// order; no match is an empty slice, not an error.
func (b *Bridge) ReadMany(ctx context.Context, inst engine.Instance, input any, opts *bindings.ReaderOptions) ([]bindings.ReadResult, error) {
	r, data, grid, flat, err := prepareRead(ctx, inst, input, opts)
	if err != nil {
		return nil, err
	}
	return b.readMany(ctx, r, data, grid, flat)
}

func (b *Bridge) readMany(ctx context.Context, r engine.Reader, data []byte, grid *PixelGrid, flat *engine.ReaderOptions) ([]bindings.ReadResult, error) {
	var results []bindings.ReadResult
	err := b.WithBuffer(ctx, r, data, func(buf *ForeignBuffer) error {
		var (
			vec engine.Vector
			op  = OpReadImage
			err error
		)
		if grid != nil {
			op = OpReadPixmap
			vec, err = r.ReadBarcodesFromPixmap(ctx, buf.Ptr, uint32(grid.Width), uint32(grid.Height), flat)
		} else {
			vec, err = r.ReadBarcodesFromImage(ctx, buf.Ptr, buf.Len, flat)
		}
		if err != nil {
			b.callFailed(op, err)
			return err
		}
		results, err = bindings.ReadResultsFromVector(ctx, vec)
		return err
	})
	if err != nil {
		return nil, err
	}
	return results, nil
}

// ReadOne reads a single barcode from input, or returns nil when there is
// none. Pixel grids use the engine's single-result entry point when it has
// one; everything else reads all and keeps the first.
func (b *Bridge) ReadOne(ctx context.Context, inst engine.Instance, input any, opts *bindings.ReaderOptions) (*bindings.ReadResult, error) {
	r, data, grid, flat, err := prepareRead(ctx, inst, input, opts)
	if err != nil {
		return nil, err
	}
	single, ok := inst.(engine.SingleReader)
	if !ok || grid == nil {
		results, err := b.readMany(ctx, r, data, grid, flat)
		if err != nil || len(results) == 0 {
			return nil, err
		}
		return &results[0], nil
	}

	var raw *engine.ReadResult
	err = b.WithBuffer(ctx, inst, data, func(buf *ForeignBuffer) error {
		var err error
		raw, err = single.ReadSingleBarcodeFromPixmap(ctx, buf.Ptr, uint32(grid.Width), uint32(grid.Height), flat)
		if err != nil {
			b.callFailed(OpReadSingle, err)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	if raw != nil && raw.Status == engine.StatusNotFound {
		return nil, nil
	}
	res, err := bindings.ReadResultFromEngine(raw)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// WriteInput is what to encode: Text or Bytes, exactly one of them
type WriteInput struct {
	Text  *string
	Bytes []byte
}

// Text returns a WriteInput for s
func Text(s string) WriteInput {
	return WriteInput{Text: &s}
}

// Bytes returns a WriteInput for binary content
func Bytes(b []byte) WriteInput {
	return WriteInput{Bytes: b}
}

// Write encodes in. Text goes straight to the text entry point; bytes are
// copied into a scoped buffer first.
func (b *Bridge) Write(ctx context.Context, inst engine.Instance, in WriteInput, opts *bindings.WriterOptions) (*bindings.WriteResult, error) {
	w, ok := inst.(engine.Writer)
	if !ok {
		return nil, unsupported(inst, "write")
	}
	if (in.Text == nil) == (in.Bytes == nil) {
		return nil, errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
			GoType("bridge.WriteInput").
			Detail("exactly one of Text and Bytes must be set").
			Build()
	}
	flat, err := bindings.WriterOptionsToEngine(opts.WithDefaults())
	if err != nil {
		return nil, err
	}

	var raw *engine.WriteResult
	if in.Text != nil {
		raw, err = w.WriteBarcodeFromText(ctx, *in.Text, &flat)
		if err != nil {
			b.callFailed(OpWriteText, err)
			return nil, err
		}
	} else {
		if len(in.Bytes) == 0 {
			return nil, errors.InvalidInput(errors.PhaseMarshal, "empty input")
		}
		err = b.WithBuffer(ctx, inst, in.Bytes, func(buf *ForeignBuffer) error {
			var err error
			raw, err = w.WriteBarcodeFromBytes(ctx, buf.Ptr, buf.Len, &flat)
			if err != nil {
				b.callFailed(OpWriteBytes, err)
			}
			return err
		})
		if err != nil {
			return nil, err
		}
	}

	res, err := bindings.WriteResultFromEngine(raw)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (b *Bridge) callFailed(op string, err error) {
	b.metrics.CallFailed(op)
	log := b.log
	if log == nil {
		log = engine.Logger()
	}
	log.Debug("engine call failed", zap.String("op", op), zap.Error(err))
}

func unsupported(inst engine.Instance, what string) error {
	return errors.Unsupported(errors.PhaseConfig, inst.Variant().Name+" engine cannot "+what)
}
