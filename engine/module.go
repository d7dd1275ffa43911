package engine

import (
	"context"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	scanx "github.com/wippyai/scanx-wasm"
	"github.com/wippyai/scanx-wasm/errors"
)

// wasmModule is one instantiated engine. The guest has a single stack and
// a single allocator, so every call into it holds mu.
type wasmModule struct {
	rt        wazero.Runtime
	mod       api.Module
	mem       *WazeroMemory
	malloc    api.Function
	free      api.Function
	fns       map[string]api.Function
	closeLogs func()
	variant   Variant
	stack     []uint64
	mu        sync.Mutex
	closed    bool
}

func newWasmModule(rt wazero.Runtime, mod api.Module, v Variant, closeLogs func()) (*wasmModule, error) {
	m := &wasmModule{
		rt:        rt,
		mod:       mod,
		variant:   v,
		closeLogs: closeLogs,
		fns:       make(map[string]api.Function),
		stack:     make([]uint64, 8),
	}

	var missing []string

	mem := mod.ExportedMemory(ExportMemory)
	if mem == nil {
		mem = mod.Memory()
	}
	if mem == nil {
		missing = append(missing, ExportMemory)
	} else {
		m.mem = NewWazeroMemory(mem)
	}

	m.malloc = firstExport(mod, ExportMalloc, legacyMalloc)
	if m.malloc == nil {
		missing = append(missing, ExportMalloc)
	}
	m.free = firstExport(mod, ExportFree, legacyFree)
	if m.free == nil {
		missing = append(missing, ExportFree)
	}

	var required []string
	if v.Capabilities.Has(CapRead) {
		required = append(required, ExportReadFromImage, ExportReadFromPixmap)
	}
	if v.Capabilities.Has(CapWrite) {
		required = append(required, ExportWriteFromText, ExportWriteFromBytes)
	}
	for _, name := range required {
		if fn := mod.ExportedFunction(name); fn != nil {
			m.fns[name] = fn
		} else {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return nil, errors.NewMissingExportsError(v.Name, missing)
	}

	optional := []string{ExportReadResultsDelete, ExportReadResultDelete, ExportWriteResultDelete}
	if v.Capabilities.Has(CapRead) {
		optional = append(optional, ExportReadSingleFromPixmap)
	}
	for _, name := range optional {
		if fn := mod.ExportedFunction(name); fn != nil {
			m.fns[name] = fn
		}
	}
	return m, nil
}

func firstExport(mod api.Module, names ...string) api.Function {
	for _, name := range names {
		if fn := mod.ExportedFunction(name); fn != nil {
			return fn
		}
	}
	return nil
}

// typed returns the instance wrapped in the type matching its capabilities
func (m *wasmModule) typed() Instance {
	_, single := m.fns[ExportReadSingleFromPixmap]
	read := m.variant.Capabilities.Has(CapRead)
	write := m.variant.Capabilities.Has(CapWrite)
	switch {
	case read && write && single:
		return fullSingleInstance{fullInstance{m}}
	case read && write:
		return fullInstance{m}
	case read && single:
		return singleReaderInstance{readerInstance{m}}
	case read:
		return readerInstance{m}
	case write:
		return writerInstance{m}
	}
	return m
}

func (m *wasmModule) Variant() Variant { return m.variant }

func (m *wasmModule) Memory() scanx.Memory { return m.mem }

func (m *wasmModule) Malloc(ctx context.Context, size uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.mallocLocked(ctx, size)
}

func (m *wasmModule) Free(ctx context.Context, ptr uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.freeLocked(ctx, ptr)
}

func (m *wasmModule) mallocLocked(ctx context.Context, size uint32) (uint32, error) {
	if m.closed {
		return 0, errors.AllocationFailed(size, errClosed)
	}
	m.stack[0] = uint64(size)
	if err := m.malloc.CallWithStack(ctx, m.stack[:1]); err != nil {
		return 0, errors.AllocationFailed(size, err)
	}
	ptr := uint32(m.stack[0])
	if ptr == 0 && size > 0 {
		return 0, errors.AllocationFailed(size, nil)
	}
	return ptr, nil
}

func (m *wasmModule) freeLocked(ctx context.Context, ptr uint32) error {
	if ptr == 0 || m.closed {
		return nil
	}
	m.stack[0] = uint64(ptr)
	if err := m.free.CallWithStack(ctx, m.stack[:1]); err != nil {
		Logger().Warn("free failed",
			zap.String("variant", m.variant.Name),
			zap.Uint32("ptr", ptr),
			zap.Error(err))
		return errors.New(errors.PhaseMemory, errors.KindForeignCall).
			Value(ptr).
			Detail("free %d", ptr).
			Cause(err).
			Build()
	}
	return nil
}

// callLocked invokes an export taking i32 params and returning one i32
func (m *wasmModule) callLocked(ctx context.Context, phase errors.Phase, name string, args ...uint64) (uint32, error) {
	if m.closed {
		return 0, errors.ForeignCall(phase, name, errClosed)
	}
	fn := m.fns[name]
	if fn == nil {
		return 0, errors.Unsupported(phase, name+" is not exported")
	}
	copy(m.stack, args)
	if err := fn.CallWithStack(ctx, m.stack[:max(len(args), 1)]); err != nil {
		return 0, errors.ForeignCall(phase, name, err)
	}
	return uint32(m.stack[0]), nil
}

// releaseLocked hands a result block back to the engine, through its
// delete hook when exported
func (m *wasmModule) releaseLocked(ctx context.Context, hook string, ptr uint32) error {
	if ptr == 0 {
		return nil
	}
	if _, ok := m.fns[hook]; ok {
		_, err := m.callLocked(ctx, errors.PhaseMemory, hook, uint64(ptr))
		return err
	}
	return m.freeLocked(ctx, ptr)
}

func (m *wasmModule) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	err := m.rt.Close(ctx)
	m.closeLogs()
	return err
}

// scratch tracks allocations made while lowering arguments for one call
type scratch struct {
	m    *wasmModule
	ptrs []uint32
}

func (s *scratch) bytes(ctx context.Context, data []byte) (Slice, error) {
	if len(data) == 0 {
		return Slice{}, nil
	}
	ptr, err := s.m.mallocLocked(ctx, uint32(len(data)))
	if err != nil {
		return Slice{}, err
	}
	s.ptrs = append(s.ptrs, ptr)
	if err := s.m.mem.Write(ptr, data); err != nil {
		return Slice{}, err
	}
	return Slice{Ptr: ptr, Len: uint32(len(data))}, nil
}

func (s *scratch) release(ctx context.Context) error {
	var err error
	for i := len(s.ptrs) - 1; i >= 0; i-- {
		err = multierr.Append(err, s.m.freeLocked(ctx, s.ptrs[i]))
	}
	s.ptrs = nil
	return err
}

func (s *scratch) readerOptions(ctx context.Context, o *ReaderOptions) (uint32, error) {
	token, err := s.bytes(ctx, []byte(o.AccessToken))
	if err != nil {
		return 0, err
	}
	opts, err := s.bytes(ctx, EncodeReaderOptions(o, token))
	if err != nil {
		return 0, err
	}
	return opts.Ptr, nil
}

func (s *scratch) writerOptions(ctx context.Context, o *WriterOptions) (uint32, error) {
	ecLevel, err := s.bytes(ctx, []byte(o.ECLevel))
	if err != nil {
		return 0, err
	}
	options, err := s.bytes(ctx, []byte(o.Options))
	if err != nil {
		return 0, err
	}
	opts, err := s.bytes(ctx, EncodeWriterOptions(o, ecLevel, options))
	if err != nil {
		return 0, err
	}
	return opts.Ptr, nil
}

func (m *wasmModule) readVector(ctx context.Context, name string, opts *ReaderOptions, args ...uint64) (_ Vector, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc := &scratch{m: m}
	defer func() { err = multierr.Append(err, sc.release(ctx)) }()

	optPtr, err := sc.readerOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	vec, err := m.callLocked(ctx, errors.PhaseRead, name, append(args, uint64(optPtr))...)
	if err != nil {
		return nil, err
	}
	data, count, err := DecodeVectorHeader(m.mem, vec)
	if err != nil {
		return nil, multierr.Append(err, m.releaseVectorLocked(ctx, vec, data))
	}
	return &wasmVector{m: m, header: vec, data: data, count: int(count)}, nil
}

func (m *wasmModule) readImage(ctx context.Context, ptr, length uint32, opts *ReaderOptions) (Vector, error) {
	return m.readVector(ctx, ExportReadFromImage, opts, uint64(ptr), uint64(length))
}

func (m *wasmModule) readPixmap(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (Vector, error) {
	return m.readVector(ctx, ExportReadFromPixmap, opts, uint64(ptr), uint64(width), uint64(height))
}

func (m *wasmModule) readSingle(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (_ *ReadResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc := &scratch{m: m}
	defer func() { err = multierr.Append(err, sc.release(ctx)) }()

	optPtr, err := sc.readerOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	res, err := m.callLocked(ctx, errors.PhaseRead, ExportReadSingleFromPixmap,
		uint64(ptr), uint64(width), uint64(height), uint64(optPtr))
	if err != nil {
		return nil, err
	}
	r, err := DecodeReadResult(m.mem, res)
	return r, multierr.Append(err, m.releaseLocked(ctx, ExportReadResultDelete, res))
}

func (m *wasmModule) write(ctx context.Context, name string, opts *WriterOptions, lower func(*scratch) (Slice, error)) (_ *WriteResult, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	sc := &scratch{m: m}
	defer func() { err = multierr.Append(err, sc.release(ctx)) }()

	in, err := lower(sc)
	if err != nil {
		return nil, err
	}
	optPtr, err := sc.writerOptions(ctx, opts)
	if err != nil {
		return nil, err
	}
	res, err := m.callLocked(ctx, errors.PhaseWrite, name, uint64(in.Ptr), uint64(in.Len), uint64(optPtr))
	if err != nil {
		return nil, err
	}
	r, err := DecodeWriteResult(m.mem, res)
	return r, multierr.Append(err, m.releaseLocked(ctx, ExportWriteResultDelete, res))
}

func (m *wasmModule) writeText(ctx context.Context, text string, opts *WriterOptions) (*WriteResult, error) {
	return m.write(ctx, ExportWriteFromText, opts, func(sc *scratch) (Slice, error) {
		return sc.bytes(ctx, []byte(text))
	})
}

func (m *wasmModule) writeBytes(ctx context.Context, ptr, length uint32, opts *WriterOptions) (*WriteResult, error) {
	return m.write(ctx, ExportWriteFromBytes, opts, func(*scratch) (Slice, error) {
		return Slice{Ptr: ptr, Len: length}, nil
	})
}

func (m *wasmModule) releaseVectorLocked(ctx context.Context, header, data uint32) error {
	if _, ok := m.fns[ExportReadResultsDelete]; ok {
		return m.releaseLocked(ctx, ExportReadResultsDelete, header)
	}
	return multierr.Append(m.freeLocked(ctx, data), m.freeLocked(ctx, header))
}

// wasmVector reads results in place from the engine's vector
type wasmVector struct {
	m        *wasmModule
	header   uint32
	data     uint32
	count    int
	released bool
}

func (v *wasmVector) Len() int { return v.count }

func (v *wasmVector) At(_ context.Context, i int) (*ReadResult, error) {
	if i < 0 || i >= v.count {
		return nil, indexError(i, v.count)
	}
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.released || v.m.closed {
		return nil, errors.Unsupported(errors.PhaseTranslate, "vector used after release")
	}
	return DecodeReadResult(v.m.mem, v.data+uint32(i)*ReadResultSize)
}

func (v *wasmVector) Release(ctx context.Context) error {
	v.m.mu.Lock()
	defer v.m.mu.Unlock()
	if v.released {
		return nil
	}
	v.released = true
	return v.m.releaseVectorLocked(ctx, v.header, v.data)
}

var errClosed = errors.Unsupported(errors.PhaseMemory, "engine instance is closed")

// Capability views over wasmModule. Which one Load returns decides which
// of Reader, SingleReader and Writer an instance satisfies.

type readerInstance struct{ *wasmModule }

func (r readerInstance) ReadBarcodesFromImage(ctx context.Context, ptr, length uint32, opts *ReaderOptions) (Vector, error) {
	return r.readImage(ctx, ptr, length, opts)
}

func (r readerInstance) ReadBarcodesFromPixmap(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (Vector, error) {
	return r.readPixmap(ctx, ptr, width, height, opts)
}

type singleReaderInstance struct{ readerInstance }

func (r singleReaderInstance) ReadSingleBarcodeFromPixmap(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (*ReadResult, error) {
	return r.readSingle(ctx, ptr, width, height, opts)
}

type writerInstance struct{ *wasmModule }

func (w writerInstance) WriteBarcodeFromText(ctx context.Context, text string, opts *WriterOptions) (*WriteResult, error) {
	return w.writeText(ctx, text, opts)
}

func (w writerInstance) WriteBarcodeFromBytes(ctx context.Context, ptr, length uint32, opts *WriterOptions) (*WriteResult, error) {
	return w.writeBytes(ctx, ptr, length, opts)
}

type fullInstance struct{ *wasmModule }

func (f fullInstance) ReadBarcodesFromImage(ctx context.Context, ptr, length uint32, opts *ReaderOptions) (Vector, error) {
	return f.readImage(ctx, ptr, length, opts)
}

func (f fullInstance) ReadBarcodesFromPixmap(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (Vector, error) {
	return f.readPixmap(ctx, ptr, width, height, opts)
}

func (f fullInstance) WriteBarcodeFromText(ctx context.Context, text string, opts *WriterOptions) (*WriteResult, error) {
	return f.writeText(ctx, text, opts)
}

func (f fullInstance) WriteBarcodeFromBytes(ctx context.Context, ptr, length uint32, opts *WriterOptions) (*WriteResult, error) {
	return f.writeBytes(ctx, ptr, length, opts)
}

type fullSingleInstance struct{ fullInstance }

func (f fullSingleInstance) ReadSingleBarcodeFromPixmap(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (*ReadResult, error) {
	return f.readSingle(ctx, ptr, width, height, opts)
}

var (
	_ Instance     = (*wasmModule)(nil)
	_ SingleReader = singleReaderInstance{}
	_ Writer       = writerInstance{}
	_ SingleReader = fullSingleInstance{}
	_ Writer       = fullSingleInstance{}
)
