// Package enginetest provides an in-process engine and loader for tests.
//
// The fake engine "encodes" a barcode as a tagged byte string and "decodes"
// any buffer that starts with that tag, so a write followed by a read
// round-trips without the real engine. Every malloc and free is counted.
package enginetest

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"image"
	"sync"

	scanx "github.com/wippyai/scanx-wasm"
	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/errors"
)

// Magic prefixes every fake-encoded symbol
var Magic = []byte("SCANXFAKE\x00")

// Encode produces the fake symbol bytes for payload in format
func Encode(format uint32, payload []byte) []byte {
	out := append([]byte(nil), Magic...)
	out = binary.LittleEndian.AppendUint32(out, format)
	return append(out, payload...)
}

// Decode parses fake symbol bytes. Trailing zero padding is ignored.
func Decode(data []byte) (format uint32, payload []byte, ok bool) {
	if !bytes.HasPrefix(data, Magic) || len(data) < len(Magic)+4 {
		return 0, nil, false
	}
	rest := data[len(Magic):]
	format = binary.LittleEndian.Uint32(rest)
	payload = bytes.TrimRight(rest[4:], "\x00")
	return format, append([]byte(nil), payload...), true
}

// PixelGrid returns an image whose pixel bytes start with the fake symbol
// for payload
func PixelGrid(format uint32, payload []byte, width, height int) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, width, height))
	copy(img.Pix, Encode(format, payload))
	return img
}

// ErrEngine is returned by entry points when Options.Fail is set
var ErrEngine = fmt.Errorf("engine failure")

// Options tunes a fake engine
type Options struct {
	// NoSingle hides the single-result pixmap entry point
	NoSingle bool
	// Fail makes every read and write entry point fail
	Fail bool
	// MemorySize in bytes, default 1 MiB
	MemorySize uint32
}

// Engine is a fake engine instance
type Engine struct {
	mem         *Memory
	live        map[uint32]uint32
	calls       map[string]int
	lastReader  *engine.ReaderOptions
	lastWriter  *engine.WriterOptions
	variant     engine.Variant
	opts        Options
	next        uint32
	mallocs     int
	frees       int
	releases    int
	mu          sync.Mutex
	closed      bool
	lastPixmapW uint32
	lastPixmapH uint32
}

// New creates a fake engine for v
func New(v engine.Variant, opts Options) *Engine {
	if opts.MemorySize == 0 {
		opts.MemorySize = 1 << 20
	}
	return &Engine{
		mem:     NewMemory(opts.MemorySize),
		live:    make(map[uint32]uint32),
		calls:   make(map[string]int),
		variant: v,
		opts:    opts,
		next:    16,
	}
}

// Instance returns the engine behind the interfaces its variant supports
func (e *Engine) Instance() engine.Instance {
	read := e.variant.Capabilities.Has(engine.CapRead)
	write := e.variant.Capabilities.Has(engine.CapWrite)
	single := read && !e.opts.NoSingle
	switch {
	case read && write && single:
		return fullSingle{full{e}}
	case read && write:
		return full{e}
	case single:
		return singleReader{reader{e}}
	case read:
		return reader{e}
	case write:
		return writer{e}
	}
	return e
}

func (e *Engine) Variant() engine.Variant { return e.variant }

func (e *Engine) Memory() scanx.Memory { return e.mem }

func (e *Engine) Malloc(_ context.Context, size uint32) (uint32, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return 0, errors.AllocationFailed(size, fmt.Errorf("closed"))
	}
	aligned := (size + 7) &^ 7
	if aligned == 0 {
		aligned = 8
	}
	if uint64(e.next)+uint64(aligned) > uint64(e.mem.Size()) {
		return 0, errors.AllocationFailed(size, fmt.Errorf("arena exhausted"))
	}
	ptr := e.next
	e.next += aligned
	e.live[ptr] = size
	e.mallocs++
	return ptr, nil
}

func (e *Engine) Free(_ context.Context, ptr uint32) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if ptr == 0 {
		return nil
	}
	if _, ok := e.live[ptr]; !ok {
		return fmt.Errorf("free of unallocated pointer %d", ptr)
	}
	delete(e.live, ptr)
	e.frees++
	return nil
}

func (e *Engine) Close(context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

// Closed reports whether Close was called
func (e *Engine) Closed() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.closed
}

// Mallocs returns the number of successful allocations
func (e *Engine) Mallocs() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.mallocs
}

// Frees returns the number of frees
func (e *Engine) Frees() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.frees
}

// Live returns the number of allocations not yet freed
func (e *Engine) Live() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.live)
}

// Calls returns how often the named entry point ran
func (e *Engine) Calls(name string) int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls[name]
}

// Releases returns the number of released result vectors
func (e *Engine) Releases() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.releases
}

// LastReaderOptions returns the options of the latest read call
func (e *Engine) LastReaderOptions() *engine.ReaderOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastReader
}

// LastWriterOptions returns the options of the latest write call
func (e *Engine) LastWriterOptions() *engine.WriterOptions {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastWriter
}

// LastPixmapSize returns the dimensions of the latest pixmap read
func (e *Engine) LastPixmapSize() (width, height uint32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastPixmapW, e.lastPixmapH
}

// enter records a call and reads the input it refers to
func (e *Engine) enter(phase errors.Phase, name string, ptr, length uint32) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls[name]++
	if e.closed {
		return nil, errors.ForeignCall(phase, name, fmt.Errorf("closed"))
	}
	if e.opts.Fail {
		return nil, errors.ForeignCall(phase, name, ErrEngine)
	}
	if length > 0 {
		if _, ok := e.live[ptr]; !ok {
			return nil, errors.ForeignCall(phase, name, fmt.Errorf("pointer %d is not allocated", ptr))
		}
	}
	data, err := e.mem.Read(ptr, length)
	if err != nil {
		return nil, errors.ForeignCall(phase, name, err)
	}
	return append([]byte(nil), data...), nil
}

func (e *Engine) decode(data []byte, opts *engine.ReaderOptions) []engine.ReadResult {
	format, payload, ok := Decode(data)
	if !ok || (opts.Formats != 0 && opts.Formats&format == 0) {
		return nil
	}
	return []engine.ReadResult{{
		IsValid:  true,
		Format:   format,
		Text:     string(payload),
		Bytes:    payload,
		ECLevel:  "M",
		Version:  "1",
		Position: engine.Position{TopRight: engine.Point{X: 10}, BottomRight: engine.Point{X: 10, Y: 10}, BottomLeft: engine.Point{Y: 10}},
		Symbol:   engine.Symbol{Data: []byte{0, 255, 255, 0}, Width: 2, Height: 2},
	}}
}

func (e *Engine) setReader(o *engine.ReaderOptions) {
	e.mu.Lock()
	c := *o
	e.lastReader = &c
	e.mu.Unlock()
}

func (e *Engine) setWriter(o *engine.WriterOptions) {
	e.mu.Lock()
	c := *o
	e.lastWriter = &c
	e.mu.Unlock()
}

func (e *Engine) readImage(_ context.Context, ptr, length uint32, opts *engine.ReaderOptions) (engine.Vector, error) {
	data, err := e.enter(errors.PhaseRead, engine.ExportReadFromImage, ptr, length)
	if err != nil {
		return nil, err
	}
	e.setReader(opts)
	return &vector{e: e, results: e.decode(data, opts)}, nil
}

func (e *Engine) readPixmap(_ context.Context, ptr, width, height uint32, opts *engine.ReaderOptions) (engine.Vector, error) {
	data, err := e.enter(errors.PhaseRead, engine.ExportReadFromPixmap, ptr, width*height*4)
	if err != nil {
		return nil, err
	}
	e.setReader(opts)
	e.mu.Lock()
	e.lastPixmapW, e.lastPixmapH = width, height
	e.mu.Unlock()
	return &vector{e: e, results: e.decode(data, opts)}, nil
}

func (e *Engine) readSingle(_ context.Context, ptr, width, height uint32, opts *engine.ReaderOptions) (*engine.ReadResult, error) {
	data, err := e.enter(errors.PhaseRead, engine.ExportReadSingleFromPixmap, ptr, width*height*4)
	if err != nil {
		return nil, err
	}
	e.setReader(opts)
	e.mu.Lock()
	e.lastPixmapW, e.lastPixmapH = width, height
	e.mu.Unlock()
	found := e.decode(data, opts)
	if len(found) == 0 {
		return &engine.ReadResult{Status: engine.StatusNotFound, Message: "No barcode found"}, nil
	}
	return &found[0], nil
}

func (e *Engine) encode(payload []byte, opts *engine.WriterOptions) *engine.WriteResult {
	return &engine.WriteResult{
		SVG:    fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" data-format="%d"/>`, opts.Format),
		UTF8:   string(payload),
		Image:  Encode(opts.Format, payload),
		Symbol: engine.Symbol{Data: []byte{255}, Width: 1, Height: 1},
	}
}

func (e *Engine) writeText(_ context.Context, text string, opts *engine.WriterOptions) (*engine.WriteResult, error) {
	if _, err := e.enter(errors.PhaseWrite, engine.ExportWriteFromText, 0, 0); err != nil {
		return nil, err
	}
	e.setWriter(opts)
	return e.encode([]byte(text), opts), nil
}

func (e *Engine) writeBytes(_ context.Context, ptr, length uint32, opts *engine.WriterOptions) (*engine.WriteResult, error) {
	data, err := e.enter(errors.PhaseWrite, engine.ExportWriteFromBytes, ptr, length)
	if err != nil {
		return nil, err
	}
	e.setWriter(opts)
	return e.encode(data, opts), nil
}

type vector struct {
	e        *Engine
	results  []engine.ReadResult
	released bool
}

func (v *vector) Len() int { return len(v.results) }

func (v *vector) At(ctx context.Context, i int) (*engine.ReadResult, error) {
	if v.released {
		return nil, fmt.Errorf("vector used after release")
	}
	return engine.SliceVector(v.results).At(ctx, i)
}

func (v *vector) Release(context.Context) error {
	if v.released {
		return nil
	}
	v.released = true
	v.e.mu.Lock()
	v.e.releases++
	v.e.mu.Unlock()
	return nil
}

type reader struct{ *Engine }

func (r reader) ReadBarcodesFromImage(ctx context.Context, ptr, length uint32, o *engine.ReaderOptions) (engine.Vector, error) {
	return r.readImage(ctx, ptr, length, o)
}

func (r reader) ReadBarcodesFromPixmap(ctx context.Context, ptr, w, h uint32, o *engine.ReaderOptions) (engine.Vector, error) {
	return r.readPixmap(ctx, ptr, w, h, o)
}

type singleReader struct{ reader }

func (r singleReader) ReadSingleBarcodeFromPixmap(ctx context.Context, ptr, w, h uint32, o *engine.ReaderOptions) (*engine.ReadResult, error) {
	return r.readSingle(ctx, ptr, w, h, o)
}

type writer struct{ *Engine }

func (w writer) WriteBarcodeFromText(ctx context.Context, text string, o *engine.WriterOptions) (*engine.WriteResult, error) {
	return w.writeText(ctx, text, o)
}

func (w writer) WriteBarcodeFromBytes(ctx context.Context, ptr, length uint32, o *engine.WriterOptions) (*engine.WriteResult, error) {
	return w.writeBytes(ctx, ptr, length, o)
}

type full struct{ *Engine }

func (f full) ReadBarcodesFromImage(ctx context.Context, ptr, length uint32, o *engine.ReaderOptions) (engine.Vector, error) {
	return f.readImage(ctx, ptr, length, o)
}

func (f full) ReadBarcodesFromPixmap(ctx context.Context, ptr, w, h uint32, o *engine.ReaderOptions) (engine.Vector, error) {
	return f.readPixmap(ctx, ptr, w, h, o)
}

func (f full) WriteBarcodeFromText(ctx context.Context, text string, o *engine.WriterOptions) (*engine.WriteResult, error) {
	return f.writeText(ctx, text, o)
}

func (f full) WriteBarcodeFromBytes(ctx context.Context, ptr, length uint32, o *engine.WriterOptions) (*engine.WriteResult, error) {
	return f.writeBytes(ctx, ptr, length, o)
}

type fullSingle struct{ full }

func (f fullSingle) ReadSingleBarcodeFromPixmap(ctx context.Context, ptr, w, h uint32, o *engine.ReaderOptions) (*engine.ReadResult, error) {
	return f.readSingle(ctx, ptr, w, h, o)
}
