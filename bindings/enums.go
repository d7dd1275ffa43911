package bindings

import (
	"strconv"
	"strings"

	"github.com/wippyai/scanx-wasm/errors"
)

// BarcodeFormat names a symbology. Reader options also accept the group
// names LinearCodes, MatrixCodes and Any.
type BarcodeFormat string

const (
	FormatAztec           BarcodeFormat = "Aztec"
	FormatCodabar         BarcodeFormat = "Codabar"
	FormatCode39          BarcodeFormat = "Code39"
	FormatCode93          BarcodeFormat = "Code93"
	FormatCode128         BarcodeFormat = "Code128"
	FormatDataBar         BarcodeFormat = "DataBar"
	FormatDataBarExpanded BarcodeFormat = "DataBarExpanded"
	FormatDataBarLimited  BarcodeFormat = "DataBarLimited"
	FormatDataMatrix      BarcodeFormat = "DataMatrix"
	FormatDXFilmEdge      BarcodeFormat = "DXFilmEdge"
	FormatEAN8            BarcodeFormat = "EAN-8"
	FormatEAN13           BarcodeFormat = "EAN-13"
	FormatITF             BarcodeFormat = "ITF"
	FormatMaxiCode        BarcodeFormat = "MaxiCode"
	FormatMicroQRCode     BarcodeFormat = "MicroQRCode"
	FormatPDF417          BarcodeFormat = "PDF417"
	FormatQRCode          BarcodeFormat = "QRCode"
	FormatRMQRCode        BarcodeFormat = "rMQRCode"
	FormatUPCA            BarcodeFormat = "UPC-A"
	FormatUPCE            BarcodeFormat = "UPC-E"

	// FormatNone is reported for results without a recognized symbology
	FormatNone BarcodeFormat = "None"

	LinearCodes BarcodeFormat = "Linear-Codes"
	MatrixCodes BarcodeFormat = "Matrix-Codes"
	Any         BarcodeFormat = "Any"
)

// engine bit flags, one per symbology
var formatBits = map[BarcodeFormat]uint32{
	FormatAztec:           1 << 0,
	FormatCodabar:         1 << 1,
	FormatCode39:          1 << 2,
	FormatCode93:          1 << 3,
	FormatCode128:         1 << 4,
	FormatDataBar:         1 << 5,
	FormatDataBarExpanded: 1 << 6,
	FormatDataMatrix:      1 << 7,
	FormatEAN8:            1 << 8,
	FormatEAN13:           1 << 9,
	FormatITF:             1 << 10,
	FormatMaxiCode:        1 << 11,
	FormatPDF417:          1 << 12,
	FormatQRCode:          1 << 13,
	FormatUPCA:            1 << 14,
	FormatUPCE:            1 << 15,
	FormatMicroQRCode:     1 << 16,
	FormatRMQRCode:        1 << 17,
	FormatDXFilmEdge:      1 << 18,
	FormatDataBarLimited:  1 << 19,
}

// LinearFormats and MatrixFormats list the members of the two groups
var (
	LinearFormats = []BarcodeFormat{
		FormatCodabar, FormatCode39, FormatCode93, FormatCode128,
		FormatDataBar, FormatDataBarExpanded, FormatDataBarLimited,
		FormatDXFilmEdge, FormatEAN8, FormatEAN13, FormatITF,
		FormatUPCA, FormatUPCE,
	}
	MatrixFormats = []BarcodeFormat{
		FormatAztec, FormatDataMatrix, FormatMaxiCode, FormatMicroQRCode,
		FormatPDF417, FormatQRCode, FormatRMQRCode,
	}
)

var (
	linearBits = bitsOf(LinearFormats)
	matrixBits = bitsOf(MatrixFormats)

	formatByBit  = make(map[uint32]BarcodeFormat, len(formatBits))
	formatByName = make(map[string]BarcodeFormat, len(formatBits)+3)
)

func init() {
	for f, bit := range formatBits {
		formatByBit[bit] = f
		formatByName[normalize(string(f))] = f
	}
	for _, g := range []BarcodeFormat{LinearCodes, MatrixCodes, Any} {
		formatByName[normalize(string(g))] = g
	}
}

func bitsOf(formats []BarcodeFormat) uint32 {
	var bits uint32
	for _, f := range formats {
		bits |= formatBits[f]
	}
	return bits
}

// normalize folds case and drops separators so "ean13", "EAN_13" and
// "EAN-13" name the same format
func normalize(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range strings.ToLower(s) {
		switch r {
		case '-', '_', ' ', '[', ']':
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ParseFormat resolves a loosely spelled format or group name
func ParseFormat(name string) (BarcodeFormat, bool) {
	f, ok := formatByName[normalize(name)]
	return f, ok
}

// FormatsToBits converts reader formats to engine flags. An empty list
// means any format and yields 0.
func FormatsToBits(formats []BarcodeFormat) (uint32, error) {
	var bits uint32
	for i, f := range formats {
		canon, ok := ParseFormat(string(f))
		if !ok {
			return 0, errors.InvalidEnum(errors.PhaseTranslate, []string{"formats", strconv.Itoa(i)}, f, "BarcodeFormat")
		}
		switch canon {
		case LinearCodes:
			bits |= linearBits
		case MatrixCodes:
			bits |= matrixBits
		case Any:
			bits |= linearBits | matrixBits
		default:
			bits |= formatBits[canon]
		}
	}
	return bits, nil
}

// FormatToBit converts a single writable format to its engine flag.
// Group names are rejected.
func FormatToBit(f BarcodeFormat) (uint32, error) {
	canon, ok := ParseFormat(string(f))
	bit, single := formatBits[canon]
	if !ok || !single {
		return 0, errors.InvalidEnum(errors.PhaseTranslate, []string{"format"}, f, "BarcodeFormat")
	}
	return bit, nil
}

// FormatFromBit converts an engine result flag back to a format name
func FormatFromBit(bit uint32) (BarcodeFormat, error) {
	if bit == 0 {
		return FormatNone, nil
	}
	f, ok := formatByBit[bit]
	if !ok {
		return "", errors.InvalidEnum(errors.PhaseTranslate, []string{"format"}, bit, "BarcodeFormat")
	}
	return f, nil
}

// Binarizer selects the thresholding algorithm
type Binarizer string

const (
	BinarizerLocalAverage    Binarizer = "LocalAverage"
	BinarizerGlobalHistogram Binarizer = "GlobalHistogram"
	BinarizerFixedThreshold  Binarizer = "FixedThreshold"
	BinarizerBoolCast        Binarizer = "BoolCast"
)

var binarizers = []Binarizer{
	BinarizerLocalAverage, BinarizerGlobalHistogram, BinarizerFixedThreshold, BinarizerBoolCast,
}

// EanAddOnSymbol controls EAN/UPC add-on handling
type EanAddOnSymbol string

const (
	EanAddOnIgnore  EanAddOnSymbol = "Ignore"
	EanAddOnRead    EanAddOnSymbol = "Read"
	EanAddOnRequire EanAddOnSymbol = "Require"
)

var eanAddOnSymbols = []EanAddOnSymbol{EanAddOnIgnore, EanAddOnRead, EanAddOnRequire}

// TextMode controls how result bytes are rendered as text
type TextMode string

const (
	TextModePlain   TextMode = "Plain"
	TextModeECI     TextMode = "ECI"
	TextModeHRI     TextMode = "HRI"
	TextModeHex     TextMode = "Hex"
	TextModeEscaped TextMode = "Escaped"
)

var textModes = []TextMode{TextModePlain, TextModeECI, TextModeHRI, TextModeHex, TextModeEscaped}

// CharacterSet is the fallback character set for decoding
type CharacterSet string

// Character sets in engine order
var characterSets = []CharacterSet{
	"Unknown", "ASCII",
	"ISO-8859-1", "ISO-8859-2", "ISO-8859-3", "ISO-8859-4", "ISO-8859-5",
	"ISO-8859-6", "ISO-8859-7", "ISO-8859-8", "ISO-8859-9", "ISO-8859-10",
	"ISO-8859-11", "ISO-8859-13", "ISO-8859-14", "ISO-8859-15", "ISO-8859-16",
	"Cp437", "Cp1250", "Cp1251", "Cp1252", "Cp1256",
	"Shift_JIS", "Big5", "GB2312", "GB18030", "EUC-JP", "EUC-KR",
	"UTF-16BE", "UTF-8", "UTF-16LE", "UTF-32BE", "UTF-32LE", "BINARY",
}

const (
	CharacterSetUnknown CharacterSet = "Unknown"
	CharacterSetUTF8    CharacterSet = "UTF-8"
)

// CharacterSets returns every accepted character set name
func CharacterSets() []CharacterSet {
	return append([]CharacterSet(nil), characterSets...)
}

// ContentType classifies decoded content
type ContentType string

const (
	ContentText       ContentType = "Text"
	ContentBinary     ContentType = "Binary"
	ContentMixed      ContentType = "Mixed"
	ContentGS1        ContentType = "GS1"
	ContentISO15434   ContentType = "ISO15434"
	ContentUnknownECI ContentType = "UnknownECI"
)

var contentTypes = []ContentType{
	ContentText, ContentBinary, ContentMixed, ContentGS1, ContentISO15434, ContentUnknownECI,
}

// ECLevel is an error correction level. Its meaning depends on the format.
type ECLevel string

const (
	ECLevelDefault ECLevel = ""
	ECLevelL       ECLevel = "L"
	ECLevelM       ECLevel = "M"
	ECLevelQ       ECLevel = "Q"
	ECLevelH       ECLevel = "H"
)

// toIndex maps an enum name to its engine number. Matching folds case and
// separators like format names do.
func toIndex[T ~string](table []T, v T, path, enumType string) (uint8, error) {
	n := normalize(string(v))
	for i, name := range table {
		if normalize(string(name)) == n {
			return uint8(i), nil
		}
	}
	return 0, errors.InvalidEnum(errors.PhaseTranslate, []string{path}, v, enumType)
}

func fromIndex[T ~string](table []T, n uint32, path, enumType string) (T, error) {
	if int(n) >= len(table) {
		var zero T
		return zero, errors.InvalidEnum(errors.PhaseTranslate, []string{path}, n, enumType)
	}
	return table[n], nil
}
