package bindings

// Point is a pixel coordinate
type Point struct {
	X int `json:"x" yaml:"x"`
	Y int `json:"y" yaml:"y"`
}

// Position holds the corners of a detected symbol
type Position struct {
	TopLeft     Point `json:"topLeft" yaml:"topLeft"`
	TopRight    Point `json:"topRight" yaml:"topRight"`
	BottomRight Point `json:"bottomRight" yaml:"bottomRight"`
	BottomLeft  Point `json:"bottomLeft" yaml:"bottomLeft"`
}

// Symbol is the module grid of a symbol, one luminance byte per module
type Symbol struct {
	Data   []byte `json:"data,omitempty" yaml:"data,omitempty"`
	Width  int    `json:"width" yaml:"width"`
	Height int    `json:"height" yaml:"height"`
}

// ReadResult is one decoded barcode. Results are only produced by
// translation from the engine and own all of their memory.
type ReadResult struct {
	Format              BarcodeFormat `json:"format" yaml:"format"`
	Text                string        `json:"text" yaml:"text"`
	Bytes               []byte        `json:"bytes,omitempty" yaml:"bytes,omitempty"`
	BytesECI            []byte        `json:"bytesECI,omitempty" yaml:"bytesECI,omitempty"`
	ECLevel             string        `json:"ecLevel" yaml:"ecLevel"`
	ContentType         ContentType   `json:"contentType" yaml:"contentType"`
	HasECI              bool          `json:"hasECI" yaml:"hasECI"`
	Position            Position      `json:"position" yaml:"position"`
	Orientation         int           `json:"orientation" yaml:"orientation"`
	IsMirrored          bool          `json:"isMirrored" yaml:"isMirrored"`
	IsInverted          bool          `json:"isInverted" yaml:"isInverted"`
	SymbologyIdentifier string        `json:"symbologyIdentifier" yaml:"symbologyIdentifier"`
	SequenceSize        int           `json:"sequenceSize" yaml:"sequenceSize"`
	SequenceIndex       int           `json:"sequenceIndex" yaml:"sequenceIndex"`
	SequenceID          string        `json:"sequenceId" yaml:"sequenceId"`
	ReaderInit          bool          `json:"readerInit" yaml:"readerInit"`
	LineCount           int           `json:"lineCount" yaml:"lineCount"`
	Version             string        `json:"version" yaml:"version"`
	Symbol              Symbol        `json:"symbol" yaml:"symbol"`
	Extra               string        `json:"extra,omitempty" yaml:"extra,omitempty"`
	IsValid             bool          `json:"isValid" yaml:"isValid"`
	Error               string        `json:"error,omitempty" yaml:"error,omitempty"`
	Message             string        `json:"message,omitempty" yaml:"message,omitempty"`
	Status              int           `json:"status" yaml:"status"`
}

// WriteResult is an encoded barcode. Image holds PNG bytes.
type WriteResult struct {
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
	SVG    string `json:"svg" yaml:"svg"`
	UTF8   string `json:"utf8" yaml:"utf8"`
	Image  []byte `json:"image,omitempty" yaml:"image,omitempty"`
	Symbol Symbol `json:"symbol" yaml:"symbol"`
}
