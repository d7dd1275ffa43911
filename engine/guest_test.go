package engine

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"testing"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
)

// Test guest: a core module that imports every engine entry point from a
// host module named "env", defines its own memory and re-exports the
// imports. The "engine" behind it is Go code operating on the guest memory.

const i32 = api.ValueTypeI32

type guestFunc struct {
	name    string
	params  []api.ValueType
	results []api.ValueType
}

var guestFuncs = map[string]guestFunc{
	ExportMalloc:               {ExportMalloc, []api.ValueType{i32}, []api.ValueType{i32}},
	ExportFree:                 {ExportFree, []api.ValueType{i32}, nil},
	ExportReadFromImage:        {ExportReadFromImage, []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	ExportReadFromPixmap:       {ExportReadFromPixmap, []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}},
	ExportReadSingleFromPixmap: {ExportReadSingleFromPixmap, []api.ValueType{i32, i32, i32, i32}, []api.ValueType{i32}},
	ExportWriteFromText:        {ExportWriteFromText, []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	ExportWriteFromBytes:       {ExportWriteFromBytes, []api.ValueType{i32, i32, i32}, []api.ValueType{i32}},
	ExportReadResultsDelete:    {ExportReadResultsDelete, []api.ValueType{i32}, nil},
	ExportReadResultDelete:     {ExportReadResultDelete, []api.ValueType{i32}, nil},
	ExportWriteResultDelete:    {ExportWriteResultDelete, []api.ValueType{i32}, nil},
}

func uleb(n uint32) []byte {
	var out []byte
	for {
		b := byte(n & 0x7f)
		n >>= 7
		if n != 0 {
			out = append(out, b|0x80)
			continue
		}
		return append(out, b)
	}
}

func wasmName(s string) []byte {
	return append(uleb(uint32(len(s))), s...)
}

func wasmVec(items [][]byte) []byte {
	out := uleb(uint32(len(items)))
	for _, it := range items {
		out = append(out, it...)
	}
	return out
}

func wasmSection(id byte, payload []byte) []byte {
	out := []byte{id}
	out = append(out, uleb(uint32(len(payload)))...)
	return append(out, payload...)
}

// guestBinary assembles the re-exporting guest for the named functions.
// memPages is the memory's minimum size; 0 omits the memory entirely.
func guestBinary(memPages uint32, names ...string) []byte {
	var types, imports, exports [][]byte
	for i, name := range names {
		fn := guestFuncs[name]
		ft := []byte{0x60}
		ft = append(ft, uleb(uint32(len(fn.params)))...)
		for _, p := range fn.params {
			ft = append(ft, byte(p))
		}
		ft = append(ft, uleb(uint32(len(fn.results)))...)
		for _, r := range fn.results {
			ft = append(ft, byte(r))
		}
		types = append(types, ft)

		imp := append(wasmName("env"), wasmName(name)...)
		imp = append(imp, 0x00)
		imp = append(imp, uleb(uint32(i))...)
		imports = append(imports, imp)

		exp := append(wasmName(name), 0x00)
		exp = append(exp, uleb(uint32(i))...)
		exports = append(exports, exp)
	}

	bin := []byte{0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00}
	if len(types) > 0 {
		bin = append(bin, wasmSection(1, wasmVec(types))...)
		bin = append(bin, wasmSection(2, wasmVec(imports))...)
	}
	if memPages > 0 {
		mem := append([]byte{0x00}, uleb(memPages)...)
		bin = append(bin, wasmSection(5, wasmVec([][]byte{mem}))...)
		exports = append(exports, append(wasmName(ExportMemory), 0x02, 0x00))
	}
	bin = append(bin, wasmSection(7, wasmVec(exports))...)
	return bin
}

// testEngine is the Go side of the guest. It keeps a bump allocator in
// the guest memory and tracks every live block.
type testEngine struct {
	mem         api.Memory
	live        map[uint32]uint32
	owned       map[uint32][]uint32
	lastReader  *ReaderOptions
	lastWriter  *WriterOptions
	lastPixmap  [2]uint32
	next        uint32
	mallocs     int
	frees       int
	entryCalled int
}

func newTestEngine() *testEngine {
	return &testEngine{
		live:  make(map[uint32]uint32),
		owned: make(map[uint32][]uint32),
		next:  1024,
	}
}

func (e *testEngine) alloc(size uint32) uint32 {
	ptr := e.next
	e.next += (size + 7) &^ 7
	if size == 0 {
		e.next += 8
	}
	e.live[ptr] = size
	e.mallocs++
	return ptr
}

func (e *testEngine) release(ptr uint32) {
	if ptr == 0 {
		return
	}
	if _, ok := e.live[ptr]; !ok {
		panic(fmt.Sprintf("double free of %d", ptr))
	}
	delete(e.live, ptr)
	e.frees++
	for _, child := range e.owned[ptr] {
		e.release(child)
	}
	delete(e.owned, ptr)
}

func (e *testEngine) put(parent uint32, data []byte) Slice {
	if len(data) == 0 {
		return Slice{}
	}
	ptr := e.alloc(uint32(len(data)))
	e.mem.Write(ptr, data)
	e.owned[parent] = append(e.owned[parent], ptr)
	return Slice{Ptr: ptr, Len: uint32(len(data))}
}

func (e *testEngine) putSymbol(parent uint32, b []byte, s Symbol) {
	putSlice(b, 0, e.put(parent, s.Data))
	le.PutUint32(b[8:], uint32(s.Width))
	le.PutUint32(b[12:], uint32(s.Height))
}

func (e *testEngine) encodeReadResult(parent uint32, r *ReadResult) []byte {
	b := make([]byte, ReadResultSize)
	putBool(b, rrIsValid, r.IsValid)
	putBool(b, rrHasECI, r.HasECI)
	putBool(b, rrIsMirrored, r.IsMirrored)
	putBool(b, rrIsInverted, r.IsInverted)
	putBool(b, rrReaderInit, r.ReaderInit)
	le.PutUint32(b[rrFormat:], r.Format)
	le.PutUint32(b[rrContentType:], r.ContentType)
	le.PutUint32(b[rrOrientation:], uint32(r.Orientation))
	le.PutUint32(b[rrSequenceSize:], uint32(r.SequenceSize))
	le.PutUint32(b[rrSequenceIndex:], uint32(r.SequenceIndex))
	le.PutUint32(b[rrLineCount:], uint32(r.LineCount))
	le.PutUint32(b[rrStatus:], uint32(r.Status))
	EncodePosition(b[rrPosition:], r.Position)
	e.putSymbol(parent, b[rrSymbol:], r.Symbol)
	putSlice(b, rrError, e.put(parent, []byte(r.Error)))
	putSlice(b, rrBytes, e.put(parent, r.Bytes))
	putSlice(b, rrBytesECI, e.put(parent, r.BytesECI))
	putSlice(b, rrText, e.put(parent, []byte(r.Text)))
	putSlice(b, rrECLevel, e.put(parent, []byte(r.ECLevel)))
	putSlice(b, rrSymbologyIdentifier, e.put(parent, []byte(r.SymbologyIdentifier)))
	putSlice(b, rrSequenceID, e.put(parent, []byte(r.SequenceID)))
	putSlice(b, rrVersion, e.put(parent, []byte(r.Version)))
	putSlice(b, rrExtra, e.put(parent, []byte(r.Extra)))
	putSlice(b, rrMessage, e.put(parent, []byte(r.Message)))
	return b
}

func (e *testEngine) newVector(results []ReadResult) uint32 {
	header := e.alloc(VectorHeaderSize)
	var data uint32
	if len(results) > 0 {
		data = e.alloc(uint32(len(results)) * ReadResultSize)
		e.owned[header] = append(e.owned[header], data)
		for i := range results {
			e.mem.Write(data+uint32(i)*ReadResultSize, e.encodeReadResult(header, &results[i]))
		}
	}
	e.mem.WriteUint32Le(header, data)
	e.mem.WriteUint32Le(header+4, uint32(len(results)))
	return header
}

func (e *testEngine) newReadResult(r *ReadResult) uint32 {
	ptr := e.alloc(ReadResultSize)
	e.mem.Write(ptr, e.encodeReadResult(ptr, r))
	return ptr
}

func (e *testEngine) newWriteResult(r *WriteResult) uint32 {
	ptr := e.alloc(WriteResultSize)
	b := make([]byte, WriteResultSize)
	putSlice(b, wrError, e.put(ptr, []byte(r.Error)))
	putSlice(b, wrSVG, e.put(ptr, []byte(r.SVG)))
	putSlice(b, wrUTF8, e.put(ptr, []byte(r.UTF8)))
	putSlice(b, wrImage, e.put(ptr, r.Image))
	e.putSymbol(ptr, b[wrSymbol:], r.Symbol)
	e.mem.Write(ptr, b)
	return ptr
}

func (e *testEngine) bytesAt(ptr, length uint32) []byte {
	data, ok := e.mem.Read(ptr, length)
	if !ok {
		panic("guest read out of bounds")
	}
	return append([]byte(nil), data...)
}

var testPayloadPrefix = []byte("SCANX:")

func (e *testEngine) decode(data []byte) []ReadResult {
	if bytes.Equal(data, []byte("TRAP")) {
		panic("engine trap")
	}
	if !bytes.HasPrefix(data, testPayloadPrefix) {
		return nil
	}
	payload := data[len(testPayloadPrefix):]
	return []ReadResult{{
		IsValid: true,
		Format:  e.lastReader.Formats,
		Text:    string(payload),
		Bytes:   payload,
		ECLevel: "M",
		Version: "1",
		Position: Position{
			TopLeft:     Point{1, 2},
			TopRight:    Point{3, 4},
			BottomRight: Point{5, 6},
			BottomLeft:  Point{7, 8},
		},
		Symbol: Symbol{Data: []byte{0, 255, 255, 0}, Width: 2, Height: 2},
	}}
}

func (e *testEngine) encode(data []byte, o *WriterOptions) uint32 {
	if bytes.Equal(data, []byte("TRAP")) {
		panic("engine trap")
	}
	image := append(append([]byte(nil), testPayloadPrefix...), data...)
	return e.newWriteResult(&WriteResult{
		SVG:    "<svg/>",
		UTF8:   string(data),
		Image:  image,
		Symbol: Symbol{Data: []byte{1}, Width: 1, Height: 1},
	})
}

func (e *testEngine) hostFuncs() map[string]api.GoModuleFunc {
	return map[string]api.GoModuleFunc{
		ExportMalloc: func(_ context.Context, _ api.Module, s []uint64) {
			s[0] = uint64(e.alloc(uint32(s[0])))
		},
		ExportFree: func(_ context.Context, _ api.Module, s []uint64) {
			e.release(uint32(s[0]))
		},
		ExportReadFromImage: func(_ context.Context, _ api.Module, s []uint64) {
			e.entryCalled++
			e.lastReader = mustReaderOptions(e, uint32(s[2]))
			s[0] = uint64(e.newVector(e.decode(e.bytesAt(uint32(s[0]), uint32(s[1])))))
		},
		ExportReadFromPixmap: func(_ context.Context, _ api.Module, s []uint64) {
			e.entryCalled++
			e.lastReader = mustReaderOptions(e, uint32(s[3]))
			e.lastPixmap = [2]uint32{uint32(s[1]), uint32(s[2])}
			s[0] = uint64(e.newVector(e.decode(e.bytesAt(uint32(s[0]), uint32(s[1]*s[2]*4)))))
		},
		ExportReadSingleFromPixmap: func(_ context.Context, _ api.Module, s []uint64) {
			e.entryCalled++
			e.lastReader = mustReaderOptions(e, uint32(s[3]))
			e.lastPixmap = [2]uint32{uint32(s[1]), uint32(s[2])}
			found := e.decode(e.bytesAt(uint32(s[0]), uint32(s[1]*s[2]*4)))
			if len(found) == 0 {
				s[0] = uint64(e.newReadResult(&ReadResult{Status: StatusNotFound, Message: "No barcode found"}))
				return
			}
			s[0] = uint64(e.newReadResult(&found[0]))
		},
		ExportWriteFromText: func(_ context.Context, _ api.Module, s []uint64) {
			e.entryCalled++
			e.lastWriter = mustWriterOptions(e, uint32(s[2]))
			s[0] = uint64(e.encode(e.bytesAt(uint32(s[0]), uint32(s[1])), e.lastWriter))
		},
		ExportWriteFromBytes: func(_ context.Context, _ api.Module, s []uint64) {
			e.entryCalled++
			e.lastWriter = mustWriterOptions(e, uint32(s[2]))
			s[0] = uint64(e.encode(e.bytesAt(uint32(s[0]), uint32(s[1])), e.lastWriter))
		},
		ExportReadResultsDelete: func(_ context.Context, _ api.Module, s []uint64) {
			e.release(uint32(s[0]))
		},
		ExportReadResultDelete: func(_ context.Context, _ api.Module, s []uint64) {
			e.release(uint32(s[0]))
		},
		ExportWriteResultDelete: func(_ context.Context, _ api.Module, s []uint64) {
			e.release(uint32(s[0]))
		},
	}
}

func mustReaderOptions(e *testEngine, ptr uint32) *ReaderOptions {
	o, err := DecodeReaderOptions(NewWazeroMemory(e.mem), ptr)
	if err != nil {
		panic(err)
	}
	return o
}

func mustWriterOptions(e *testEngine, ptr uint32) *WriterOptions {
	o, err := DecodeWriterOptions(NewWazeroMemory(e.mem), ptr)
	if err != nil {
		panic(err)
	}
	return o
}

// instantiator registers the host side and instantiates the guest that
// re-exports the named functions
func (e *testEngine) instantiator(names ...string) InstantiateFunc {
	return func(ctx context.Context, rt wazero.Runtime, cfg wazero.ModuleConfig) (api.Module, error) {
		funcs := e.hostFuncs()
		b := rt.NewHostModuleBuilder("env")
		for _, name := range names {
			fn := guestFuncs[name]
			b = b.NewFunctionBuilder().
				WithGoModuleFunction(funcs[name], fn.params, fn.results).
				Export(name)
		}
		if _, err := b.Instantiate(ctx); err != nil {
			return nil, err
		}
		mod, err := rt.InstantiateWithConfig(ctx, guestBinary(2, names...), cfg)
		if err != nil {
			return nil, err
		}
		e.mem = mod.Memory()
		return mod, nil
	}
}

func (e *testEngine) liveBlocks() []uint32 {
	var ptrs []uint32
	for p := range e.live {
		ptrs = append(ptrs, p)
	}
	sort.Slice(ptrs, func(i, j int) bool { return ptrs[i] < ptrs[j] })
	return ptrs
}

var allGuestFuncs = []string{
	ExportMalloc, ExportFree,
	ExportReadFromImage, ExportReadFromPixmap, ExportReadSingleFromPixmap,
	ExportWriteFromText, ExportWriteFromBytes,
	ExportReadResultsDelete, ExportReadResultDelete, ExportWriteResultDelete,
}

func loadGuest(t *testing.T, v Variant, e *testEngine, names ...string) Instance {
	t.Helper()
	ctx := context.Background()

	loader, err := NewWazeroLoader(LoaderConfig{})
	if err != nil {
		t.Fatalf("NewWazeroLoader: %v", err)
	}
	t.Cleanup(func() { loader.Close(ctx) })

	inst, err := loader.Load(ctx, NewFactory(v), Overrides{
		KeyInstantiateWasm: e.instantiator(names...),
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	t.Cleanup(func() { inst.Close(ctx) })
	return inst
}
