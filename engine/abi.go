package engine

import (
	"encoding/binary"

	scanx "github.com/wippyai/scanx-wasm"
	"github.com/wippyai/scanx-wasm/errors"
)

// Engine export names
const (
	ExportMemory = "memory"
	ExportMalloc = "malloc"
	ExportFree   = "free"

	ExportReadFromImage        = "read_barcodes_from_image"
	ExportReadFromPixmap       = "read_barcodes_from_pixmap"
	ExportReadSingleFromPixmap = "read_single_barcode_from_pixmap"
	ExportWriteFromText        = "write_barcode_from_text"
	ExportWriteFromBytes       = "write_barcode_from_bytes"

	// Optional release hooks. Without them the adapter frees the blocks
	// itself with free.
	ExportReadResultsDelete = "read_results_delete"
	ExportReadResultDelete  = "read_result_delete"
	ExportWriteResultDelete = "write_result_delete"

	// Reactor start function run at instantiation when exported
	ExportInitialize = "_initialize"

	// Legacy emscripten-style allocator names
	legacyMalloc = "_malloc"
	legacyFree   = "_free"
)

// Flat struct sizes in linear memory. Strings and byte arrays are
// {ptr u32, len u32} pairs; all integers are little endian.
const (
	SliceSize         = 8
	ReaderOptionsSize = 32
	WriterOptionsSize = 36
	ReadResultSize    = 164
	WriteResultSize   = 48
	VectorHeaderSize  = 8
	SymbolSize        = 16
)

// ReaderOptions field offsets
const (
	roFormats               = 0
	roTryHarder             = 4
	roTryRotate             = 5
	roTryInvert             = 6
	roTryDownscale          = 7
	roTryDenoise            = 8
	roBinarizer             = 9
	roIsPure                = 10
	roDownscaleFactor       = 11
	roDownscaleThreshold    = 12
	roMinLineCount          = 14
	roMaxNumberOfSymbols    = 15
	roTryCode39ExtendedMode = 16
	roReturnErrors          = 17
	roEanAddOnSymbol        = 18
	roTextMode              = 19
	roCharacterSet          = 20
	roAccessToken           = 24
)

// WriterOptions field offsets
const (
	woFormat         = 0
	woReaderInit     = 4
	woWithHRT        = 5
	woWithQuietZones = 6
	woScale          = 8
	woSizeHint       = 12
	woRotate         = 16
	woECLevel        = 20
	woOptions        = 28
)

// ReadResult field offsets
const (
	rrIsValid             = 0
	rrHasECI              = 1
	rrIsMirrored          = 2
	rrIsInverted          = 3
	rrReaderInit          = 4
	rrFormat              = 8
	rrContentType         = 12
	rrOrientation         = 16
	rrSequenceSize        = 20
	rrSequenceIndex       = 24
	rrLineCount           = 28
	rrStatus              = 32
	rrPosition            = 36
	rrSymbol              = 68
	rrError               = 84
	rrBytes               = 92
	rrBytesECI            = 100
	rrText                = 108
	rrECLevel             = 116
	rrSymbologyIdentifier = 124
	rrSequenceID          = 132
	rrVersion             = 140
	rrExtra               = 148
	rrMessage             = 156
)

// WriteResult field offsets
const (
	wrError  = 0
	wrSVG    = 8
	wrUTF8   = 16
	wrImage  = 24
	wrSymbol = 32
)

var le = binary.LittleEndian

// Slice is a {ptr, len} reference into linear memory
type Slice struct {
	Ptr uint32
	Len uint32
}

func putSlice(b []byte, off int, s Slice) {
	le.PutUint32(b[off:], s.Ptr)
	le.PutUint32(b[off+4:], s.Len)
}

func getSlice(b []byte, off int) Slice {
	return Slice{Ptr: le.Uint32(b[off:]), Len: le.Uint32(b[off+4:])}
}

func putBool(b []byte, off int, v bool) {
	if v {
		b[off] = 1
	} else {
		b[off] = 0
	}
}

// EncodeReaderOptions lays out o in its flat form. The access token bytes
// must already live in linear memory at token.
func EncodeReaderOptions(o *ReaderOptions, token Slice) []byte {
	b := make([]byte, ReaderOptionsSize)
	le.PutUint32(b[roFormats:], o.Formats)
	putBool(b, roTryHarder, o.TryHarder)
	putBool(b, roTryRotate, o.TryRotate)
	putBool(b, roTryInvert, o.TryInvert)
	putBool(b, roTryDownscale, o.TryDownscale)
	putBool(b, roTryDenoise, o.TryDenoise)
	b[roBinarizer] = o.Binarizer
	putBool(b, roIsPure, o.IsPure)
	b[roDownscaleFactor] = o.DownscaleFactor
	le.PutUint16(b[roDownscaleThreshold:], o.DownscaleThreshold)
	b[roMinLineCount] = o.MinLineCount
	b[roMaxNumberOfSymbols] = o.MaxNumberOfSymbols
	putBool(b, roTryCode39ExtendedMode, o.TryCode39ExtendedMode)
	putBool(b, roReturnErrors, o.ReturnErrors)
	b[roEanAddOnSymbol] = o.EanAddOnSymbol
	b[roTextMode] = o.TextMode
	b[roCharacterSet] = o.CharacterSet
	putSlice(b, roAccessToken, token)
	return b
}

// DecodeReaderOptions is the inverse of EncodeReaderOptions
func DecodeReaderOptions(mem scanx.Memory, ptr uint32) (*ReaderOptions, error) {
	b, err := mem.Read(ptr, ReaderOptionsSize)
	if err != nil {
		return nil, err
	}
	token, err := readString(mem, getSlice(b, roAccessToken))
	if err != nil {
		return nil, err
	}
	return &ReaderOptions{
		Formats:               le.Uint32(b[roFormats:]),
		TryHarder:             b[roTryHarder] != 0,
		TryRotate:             b[roTryRotate] != 0,
		TryInvert:             b[roTryInvert] != 0,
		TryDownscale:          b[roTryDownscale] != 0,
		TryDenoise:            b[roTryDenoise] != 0,
		Binarizer:             b[roBinarizer],
		IsPure:                b[roIsPure] != 0,
		DownscaleFactor:       b[roDownscaleFactor],
		DownscaleThreshold:    le.Uint16(b[roDownscaleThreshold:]),
		MinLineCount:          b[roMinLineCount],
		MaxNumberOfSymbols:    b[roMaxNumberOfSymbols],
		TryCode39ExtendedMode: b[roTryCode39ExtendedMode] != 0,
		ReturnErrors:          b[roReturnErrors] != 0,
		EanAddOnSymbol:        b[roEanAddOnSymbol],
		TextMode:              b[roTextMode],
		CharacterSet:          b[roCharacterSet],
		AccessToken:           token,
	}, nil
}

// EncodeWriterOptions lays out o in its flat form
func EncodeWriterOptions(o *WriterOptions, ecLevel, options Slice) []byte {
	b := make([]byte, WriterOptionsSize)
	le.PutUint32(b[woFormat:], o.Format)
	putBool(b, woReaderInit, o.ReaderInit)
	putBool(b, woWithHRT, o.WithHRT)
	putBool(b, woWithQuietZones, o.WithQuietZones)
	le.PutUint32(b[woScale:], uint32(o.Scale))
	le.PutUint32(b[woSizeHint:], uint32(o.SizeHint))
	le.PutUint32(b[woRotate:], uint32(o.Rotate))
	putSlice(b, woECLevel, ecLevel)
	putSlice(b, woOptions, options)
	return b
}

// DecodeWriterOptions is the inverse of EncodeWriterOptions
func DecodeWriterOptions(mem scanx.Memory, ptr uint32) (*WriterOptions, error) {
	b, err := mem.Read(ptr, WriterOptionsSize)
	if err != nil {
		return nil, err
	}
	ecLevel, err := readString(mem, getSlice(b, woECLevel))
	if err != nil {
		return nil, err
	}
	options, err := readString(mem, getSlice(b, woOptions))
	if err != nil {
		return nil, err
	}
	return &WriterOptions{
		Format:         le.Uint32(b[woFormat:]),
		ReaderInit:     b[woReaderInit] != 0,
		WithHRT:        b[woWithHRT] != 0,
		WithQuietZones: b[woWithQuietZones] != 0,
		Scale:          int32(le.Uint32(b[woScale:])),
		SizeHint:       int32(le.Uint32(b[woSizeHint:])),
		Rotate:         int32(le.Uint32(b[woRotate:])),
		ECLevel:        ecLevel,
		Options:        options,
	}, nil
}

// DecodeReadResult copies the read result at ptr out of linear memory
func DecodeReadResult(mem scanx.Memory, ptr uint32) (*ReadResult, error) {
	b, err := mem.Read(ptr, ReadResultSize)
	if err != nil {
		return nil, err
	}
	// b may alias linear memory; copy before the next read can grow it
	b = append([]byte(nil), b...)

	r := &ReadResult{
		IsValid:       b[rrIsValid] != 0,
		HasECI:        b[rrHasECI] != 0,
		IsMirrored:    b[rrIsMirrored] != 0,
		IsInverted:    b[rrIsInverted] != 0,
		ReaderInit:    b[rrReaderInit] != 0,
		Format:        le.Uint32(b[rrFormat:]),
		ContentType:   le.Uint32(b[rrContentType:]),
		Orientation:   int32(le.Uint32(b[rrOrientation:])),
		SequenceSize:  int32(le.Uint32(b[rrSequenceSize:])),
		SequenceIndex: int32(le.Uint32(b[rrSequenceIndex:])),
		LineCount:     int32(le.Uint32(b[rrLineCount:])),
		Status:        int32(le.Uint32(b[rrStatus:])),
		Position:      decodePosition(b[rrPosition:]),
	}

	if r.Symbol, err = decodeSymbol(mem, b[rrSymbol:]); err != nil {
		return nil, err
	}

	strs := []struct {
		dst *string
		off int
	}{
		{&r.Error, rrError},
		{&r.Text, rrText},
		{&r.ECLevel, rrECLevel},
		{&r.SymbologyIdentifier, rrSymbologyIdentifier},
		{&r.SequenceID, rrSequenceID},
		{&r.Version, rrVersion},
		{&r.Extra, rrExtra},
		{&r.Message, rrMessage},
	}
	for _, s := range strs {
		if *s.dst, err = readString(mem, getSlice(b, s.off)); err != nil {
			return nil, err
		}
	}
	if r.Bytes, err = readBytes(mem, getSlice(b, rrBytes)); err != nil {
		return nil, err
	}
	if r.BytesECI, err = readBytes(mem, getSlice(b, rrBytesECI)); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeWriteResult copies the write result at ptr out of linear memory
func DecodeWriteResult(mem scanx.Memory, ptr uint32) (*WriteResult, error) {
	b, err := mem.Read(ptr, WriteResultSize)
	if err != nil {
		return nil, err
	}
	b = append([]byte(nil), b...)

	r := &WriteResult{}
	if r.Error, err = readString(mem, getSlice(b, wrError)); err != nil {
		return nil, err
	}
	if r.SVG, err = readString(mem, getSlice(b, wrSVG)); err != nil {
		return nil, err
	}
	if r.UTF8, err = readString(mem, getSlice(b, wrUTF8)); err != nil {
		return nil, err
	}
	if r.Image, err = readBytes(mem, getSlice(b, wrImage)); err != nil {
		return nil, err
	}
	if r.Symbol, err = decodeSymbol(mem, b[wrSymbol:]); err != nil {
		return nil, err
	}
	return r, nil
}

// DecodeVectorHeader returns the data pointer and element count of the
// result vector at ptr
func DecodeVectorHeader(mem scanx.Memory, ptr uint32) (data, count uint32, err error) {
	if data, err = mem.ReadU32(ptr); err != nil {
		return 0, 0, err
	}
	if count, err = mem.ReadU32(ptr + 4); err != nil {
		return 0, 0, err
	}
	return data, count, nil
}

func decodePosition(b []byte) Position {
	pt := func(i int) Point {
		return Point{X: int32(le.Uint32(b[i*8:])), Y: int32(le.Uint32(b[i*8+4:]))}
	}
	return Position{TopLeft: pt(0), TopRight: pt(1), BottomRight: pt(2), BottomLeft: pt(3)}
}

// EncodePosition writes p into a 32-byte buffer
func EncodePosition(b []byte, p Position) {
	for i, pt := range [4]Point{p.TopLeft, p.TopRight, p.BottomRight, p.BottomLeft} {
		le.PutUint32(b[i*8:], uint32(pt.X))
		le.PutUint32(b[i*8+4:], uint32(pt.Y))
	}
}

func decodeSymbol(mem scanx.Memory, b []byte) (Symbol, error) {
	data, err := readBytes(mem, getSlice(b, 0))
	if err != nil {
		return Symbol{}, err
	}
	return Symbol{
		Data:   data,
		Width:  int32(le.Uint32(b[8:])),
		Height: int32(le.Uint32(b[12:])),
	}, nil
}

func readBytes(mem scanx.Memory, s Slice) ([]byte, error) {
	if s.Len == 0 {
		return nil, nil
	}
	data, err := mem.Read(s.Ptr, s.Len)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), data...), nil
}

func readString(mem scanx.Memory, s Slice) (string, error) {
	if s.Len == 0 {
		return "", nil
	}
	data, err := mem.Read(s.Ptr, s.Len)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func indexError(i, n int) error {
	return errors.New(errors.PhaseTranslate, errors.KindOutOfBounds).
		Value(i).
		Detail("vector index %d out of range [0, %d)", i, n).
		Build()
}
