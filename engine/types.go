package engine

import (
	"context"

	scanx "github.com/wippyai/scanx-wasm"
)

// StatusNotFound is the status the single-result entry point reports when
// the image holds no barcode.
const StatusNotFound = 404

// ReaderOptions is the engine's flat reader option struct. Enumerations are
// carried as engine numbers.
type ReaderOptions struct {
	AccessToken           string
	Formats               uint32
	DownscaleThreshold    uint16
	Binarizer             uint8
	DownscaleFactor       uint8
	MinLineCount          uint8
	MaxNumberOfSymbols    uint8
	EanAddOnSymbol        uint8
	TextMode              uint8
	CharacterSet          uint8
	TryHarder             bool
	TryRotate             bool
	TryInvert             bool
	TryDownscale          bool
	TryDenoise            bool
	IsPure                bool
	TryCode39ExtendedMode bool
	ReturnErrors          bool
}

// WriterOptions is the engine's flat writer option struct
type WriterOptions struct {
	ECLevel        string
	Options        string
	Format         uint32
	Scale          int32
	SizeHint       int32
	Rotate         int32
	ReaderInit     bool
	WithHRT        bool
	WithQuietZones bool
}

// Point is a pixel coordinate
type Point struct {
	X, Y int32
}

// Position holds the four corners of a detected symbol
type Position struct {
	TopLeft     Point
	TopRight    Point
	BottomRight Point
	BottomLeft  Point
}

// Symbol is a luminance grid, one byte per module
type Symbol struct {
	Data   []byte
	Width  int32
	Height int32
}

// ReadResult is the engine's flat read result. Byte and string fields are
// copies; nothing here aliases linear memory.
type ReadResult struct {
	Error               string
	Text                string
	ECLevel             string
	SymbologyIdentifier string
	SequenceID          string
	Version             string
	Extra               string
	Message             string
	Bytes               []byte
	BytesECI            []byte
	Symbol              Symbol
	Position            Position
	Format              uint32
	ContentType         uint32
	Orientation         int32
	SequenceSize        int32
	SequenceIndex       int32
	LineCount           int32
	Status              int32
	IsValid             bool
	HasECI              bool
	IsMirrored          bool
	IsInverted          bool
	ReaderInit          bool
}

// WriteResult is the engine's flat write result
type WriteResult struct {
	Error  string
	SVG    string
	UTF8   string
	Image  []byte
	Symbol Symbol
}

// Instance is an instantiated engine. Every instance exposes the allocator
// surface and its linear memory; capability entry points are reached by
// asserting to Reader, SingleReader or Writer.
type Instance interface {
	scanx.Allocator
	Memory() scanx.Memory
	Variant() Variant
	Close(ctx context.Context) error
}

// Reader is an instance with read entry points
type Reader interface {
	Instance
	ReadBarcodesFromImage(ctx context.Context, ptr, length uint32, opts *ReaderOptions) (Vector, error)
	ReadBarcodesFromPixmap(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (Vector, error)
}

// SingleReader is a Reader that can stop at the first match on the pixmap
// path. Older engine builds do not export it.
type SingleReader interface {
	Reader
	ReadSingleBarcodeFromPixmap(ctx context.Context, ptr, width, height uint32, opts *ReaderOptions) (*ReadResult, error)
}

// Writer is an instance with write entry points
type Writer interface {
	Instance
	WriteBarcodeFromText(ctx context.Context, text string, opts *WriterOptions) (*WriteResult, error)
	WriteBarcodeFromBytes(ctx context.Context, ptr, length uint32, opts *WriterOptions) (*WriteResult, error)
}

// Vector is a read-only view of engine-owned read results. It must not be
// used after Release or after the call that produced it returns.
type Vector interface {
	Len() int
	At(ctx context.Context, i int) (*ReadResult, error)
	Release(ctx context.Context) error
}

// Loader turns a factory and its effective overrides into an instance
type Loader interface {
	Load(ctx context.Context, f *Factory, ov Overrides) (Instance, error)
}

// Fetcher retrieves an engine binary from a located address
type Fetcher interface {
	Fetch(ctx context.Context, location string, v Variant) ([]byte, error)
}

// SliceVector is a Vector over results already copied to the host
type SliceVector []ReadResult

func (s SliceVector) Len() int { return len(s) }

func (s SliceVector) At(_ context.Context, i int) (*ReadResult, error) {
	if i < 0 || i >= len(s) {
		return nil, indexError(i, len(s))
	}
	r := s[i]
	return &r, nil
}

func (s SliceVector) Release(context.Context) error { return nil }
