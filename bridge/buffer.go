package bridge

import (
	"context"

	"go.uber.org/multierr"

	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/metrics"
)

// ForeignBuffer is an allocation in an engine's linear memory. The Go
// garbage collector never reclaims it; Free must run exactly once.
type ForeignBuffer struct {
	inst    engine.Instance
	metrics *metrics.Metrics
	Ptr     uint32
	Len     uint32
	freed   bool
}

// Alloc allocates exactly len(data) bytes in inst and copies data in
// verbatim. On a failed copy the allocation is freed before returning.
func (b *Bridge) Alloc(ctx context.Context, inst engine.Instance, data []byte) (*ForeignBuffer, error) {
	size := uint32(len(data))
	ptr, err := inst.Malloc(ctx, size)
	if err != nil {
		return nil, err
	}
	buf := &ForeignBuffer{inst: inst, metrics: b.metrics, Ptr: ptr, Len: size}
	b.metrics.Allocated(inst.Variant().Name, len(data))

	if err := inst.Memory().Write(ptr, data); err != nil {
		return nil, multierr.Append(err, buf.Free(ctx))
	}
	return buf, nil
}

// Free releases the allocation. Calling it again is a no-op.
func (f *ForeignBuffer) Free(ctx context.Context) error {
	if f == nil || f.freed {
		return nil
	}
	f.freed = true
	f.metrics.Freed(f.inst.Variant().Name)
	return f.inst.Free(ctx, f.Ptr)
}

// WithBuffer copies data into inst, runs fn and frees the buffer on every
// path. fn's error comes first; a free error is appended. A panic in fn
// frees the buffer and keeps unwinding.
func (b *Bridge) WithBuffer(ctx context.Context, inst engine.Instance, data []byte, fn func(*ForeignBuffer) error) (err error) {
	buf, err := b.Alloc(ctx, inst, data)
	if err != nil {
		return err
	}
	defer func() {
		if r := recover(); r != nil {
			_ = buf.Free(ctx)
			panic(r)
		}
		err = multierr.Append(err, buf.Free(ctx))
	}()
	return fn(buf)
}
