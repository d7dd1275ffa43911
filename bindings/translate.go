package bindings

import (
	"context"

	"go.uber.org/multierr"

	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/errors"
)

// ReaderOptionsToEngine converts fully defaulted reader options to the
// engine struct. Call WithDefaults first; a nil field is an error.
func ReaderOptionsToEngine(o ReaderOptions) (engine.ReaderOptions, error) {
	var out engine.ReaderOptions
	if err := requireSet([]field{
		{"tryHarder", o.TryHarder == nil},
		{"tryRotate", o.TryRotate == nil},
		{"tryInvert", o.TryInvert == nil},
		{"tryDownscale", o.TryDownscale == nil},
		{"tryDenoise", o.TryDenoise == nil},
		{"binarizer", o.Binarizer == nil},
		{"isPure", o.IsPure == nil},
		{"downscaleThreshold", o.DownscaleThreshold == nil},
		{"downscaleFactor", o.DownscaleFactor == nil},
		{"minLineCount", o.MinLineCount == nil},
		{"maxNumberOfSymbols", o.MaxNumberOfSymbols == nil},
		{"tryCode39ExtendedMode", o.TryCode39ExtendedMode == nil},
		{"returnErrors", o.ReturnErrors == nil},
		{"eanAddOnSymbol", o.EanAddOnSymbol == nil},
		{"textMode", o.TextMode == nil},
		{"characterSet", o.CharacterSet == nil},
		{"accessToken", o.AccessToken == nil},
	}); err != nil {
		return out, err
	}

	formats, err := FormatsToBits(o.Formats)
	if err != nil {
		return out, err
	}
	binarizer, err := toIndex(binarizers, *o.Binarizer, "binarizer", "Binarizer")
	if err != nil {
		return out, err
	}
	ean, err := toIndex(eanAddOnSymbols, *o.EanAddOnSymbol, "eanAddOnSymbol", "EanAddOnSymbol")
	if err != nil {
		return out, err
	}
	textMode, err := toIndex(textModes, *o.TextMode, "textMode", "TextMode")
	if err != nil {
		return out, err
	}
	charset, err := toIndex(characterSets, *o.CharacterSet, "characterSet", "CharacterSet")
	if err != nil {
		return out, err
	}

	out = engine.ReaderOptions{
		AccessToken:           *o.AccessToken,
		Formats:               formats,
		DownscaleThreshold:    *o.DownscaleThreshold,
		Binarizer:             binarizer,
		DownscaleFactor:       *o.DownscaleFactor,
		MinLineCount:          *o.MinLineCount,
		MaxNumberOfSymbols:    *o.MaxNumberOfSymbols,
		EanAddOnSymbol:        ean,
		TextMode:              textMode,
		CharacterSet:          charset,
		TryHarder:             *o.TryHarder,
		TryRotate:             *o.TryRotate,
		TryInvert:             *o.TryInvert,
		TryDownscale:          *o.TryDownscale,
		TryDenoise:            *o.TryDenoise,
		IsPure:                *o.IsPure,
		TryCode39ExtendedMode: *o.TryCode39ExtendedMode,
		ReturnErrors:          *o.ReturnErrors,
	}
	return out, nil
}

// WriterOptionsToEngine converts fully defaulted writer options to the
// engine struct. Call WithDefaults first; a nil field is an error.
func WriterOptionsToEngine(o WriterOptions) (engine.WriterOptions, error) {
	var out engine.WriterOptions
	if err := requireSet([]field{
		{"format", o.Format == nil},
		{"readerInit", o.ReaderInit == nil},
		{"ecLevel", o.ECLevel == nil},
		{"options", o.Options == nil},
		{"scale", o.Scale == nil},
		{"sizeHint", o.SizeHint == nil},
		{"rotate", o.Rotate == nil},
		{"withHRT", o.WithHRT == nil},
		{"withQuietZones", o.WithQuietZones == nil},
	}); err != nil {
		return out, err
	}

	format, err := FormatToBit(*o.Format)
	if err != nil {
		return out, err
	}
	out = engine.WriterOptions{
		ECLevel:        string(*o.ECLevel),
		Options:        *o.Options,
		Format:         format,
		Scale:          *o.Scale,
		SizeHint:       *o.SizeHint,
		Rotate:         *o.Rotate,
		ReaderInit:     *o.ReaderInit,
		WithHRT:        *o.WithHRT,
		WithQuietZones: *o.WithQuietZones,
	}
	return out, nil
}

type field struct {
	name    string
	missing bool
}

// requireSet reports the first missing field
func requireSet(fields []field) error {
	for _, f := range fields {
		if f.missing {
			return errors.FieldMissing(errors.PhaseTranslate, []string{f.name}, f.name)
		}
	}
	return nil
}

// ReadResultFromEngine converts one engine read result. Enumerations map
// one to one; an unknown engine value is an invalid enum error.
func ReadResultFromEngine(r *engine.ReadResult) (ReadResult, error) {
	if r == nil {
		return ReadResult{}, errors.InvalidInput(errors.PhaseTranslate, "nil read result")
	}
	format, err := FormatFromBit(r.Format)
	if err != nil {
		return ReadResult{}, err
	}
	contentType, err := fromIndex(contentTypes, r.ContentType, "contentType", "ContentType")
	if err != nil {
		return ReadResult{}, err
	}
	return ReadResult{
		Format:              format,
		Text:                r.Text,
		Bytes:               clone(r.Bytes),
		BytesECI:            clone(r.BytesECI),
		ECLevel:             r.ECLevel,
		ContentType:         contentType,
		HasECI:              r.HasECI,
		Position:            positionFromEngine(r.Position),
		Orientation:         int(r.Orientation),
		IsMirrored:          r.IsMirrored,
		IsInverted:          r.IsInverted,
		SymbologyIdentifier: r.SymbologyIdentifier,
		SequenceSize:        int(r.SequenceSize),
		SequenceIndex:       int(r.SequenceIndex),
		SequenceID:          r.SequenceID,
		ReaderInit:          r.ReaderInit,
		LineCount:           int(r.LineCount),
		Version:             r.Version,
		Symbol:              symbolFromEngine(r.Symbol),
		Extra:               r.Extra,
		IsValid:             r.IsValid,
		Error:               r.Error,
		Message:             r.Message,
		Status:              int(r.Status),
	}, nil
}

// WriteResultFromEngine converts an engine write result
func WriteResultFromEngine(r *engine.WriteResult) (WriteResult, error) {
	if r == nil {
		return WriteResult{}, errors.InvalidInput(errors.PhaseTranslate, "nil write result")
	}
	return WriteResult{
		Error:  r.Error,
		SVG:    r.SVG,
		UTF8:   r.UTF8,
		Image:  clone(r.Image),
		Symbol: symbolFromEngine(r.Symbol),
	}, nil
}

// ReadResultsFromVector translates every element of v in index order and
// releases v. The release error is appended to a translation error.
func ReadResultsFromVector(ctx context.Context, v engine.Vector) (results []ReadResult, err error) {
	defer func() {
		err = multierr.Append(err, v.Release(ctx))
		if err != nil {
			results = nil
		}
	}()

	n := v.Len()
	results = make([]ReadResult, 0, n)
	for i := range n {
		raw, err := v.At(ctx, i)
		if err != nil {
			return nil, err
		}
		r, err := ReadResultFromEngine(raw)
		if err != nil {
			return nil, err
		}
		results = append(results, r)
	}
	return results, nil
}

func positionFromEngine(p engine.Position) Position {
	pt := func(q engine.Point) Point { return Point{X: int(q.X), Y: int(q.Y)} }
	return Position{
		TopLeft:     pt(p.TopLeft),
		TopRight:    pt(p.TopRight),
		BottomRight: pt(p.BottomRight),
		BottomLeft:  pt(p.BottomLeft),
	}
}

func symbolFromEngine(s engine.Symbol) Symbol {
	return Symbol{Data: clone(s.Data), Width: int(s.Width), Height: int(s.Height)}
}

func clone(b []byte) []byte {
	if len(b) == 0 {
		return nil
	}
	return append([]byte(nil), b...)
}
