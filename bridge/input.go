package bridge

import (
	"context"
	"image"
	"image/draw"
	"io"
	"math"
	"os"
	"reflect"

	"github.com/wippyai/scanx-wasm/errors"
)

// Input is the closed set of shapes the engine can read from
type Input interface {
	input()
}

// PixelGrid is tightly packed RGBA pixel data, four bytes per pixel.
// It is read through the pixmap entry points.
type PixelGrid struct {
	Data   []byte
	Width  int
	Height int
}

// ByteBuffer holds an encoded image file in memory
type ByteBuffer []byte

// BinaryBlob is an encoded image file read through ReaderAt
type BinaryBlob struct {
	Source io.ReaderAt
	Size   int64
}

// DeferredByteSource produces an encoded image file on demand
type DeferredByteSource func(ctx context.Context) ([]byte, error)

func (PixelGrid) input()          {}
func (ByteBuffer) input()         {}
func (BinaryBlob) input()         {}
func (DeferredByteSource) input() {}

type sizedReaderAt interface {
	io.ReaderAt
	Size() int64
}

// Classify maps a Go value to an Input. Input values pass through,
// []byte is a ByteBuffer, images become a PixelGrid, files and sized
// ReaderAts are a BinaryBlob and other Readers are drained lazily.
// Anything else, including nil, is an invalid input type error.
func Classify(v any) (Input, error) {
	switch in := v.(type) {
	case nil:
		return nil, errors.InvalidInputType(v)
	case []byte:
		return ByteBuffer(in), nil
	}
	if isNilValue(v) {
		return nil, errors.InvalidInputType(v)
	}

	switch in := v.(type) {
	case Input:
		if isNilInput(in) {
			return nil, errors.InvalidInputType(v)
		}
		return in, nil
	case image.Image:
		return pixelGrid(in), nil
	case *os.File:
		st, err := in.Stat()
		if err != nil {
			return nil, errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
				GoType("*os.File").Cause(err).Detail("stat %s", in.Name()).Build()
		}
		return BinaryBlob{Source: in, Size: st.Size()}, nil
	case sizedReaderAt:
		return BinaryBlob{Source: in, Size: in.Size()}, nil
	case io.Reader:
		return DeferredByteSource(func(context.Context) ([]byte, error) {
			return io.ReadAll(in)
		}), nil
	}
	return nil, errors.InvalidInputType(v)
}

func isNilInput(in Input) bool {
	switch in := in.(type) {
	case DeferredByteSource:
		return in == nil
	case BinaryBlob:
		return in.Source == nil || isNilValue(in.Source)
	}
	return false
}

// isNilValue reports a typed nil held in an interface, such as a nil
// *image.RGBA passed as image.Image
func isNilValue(v any) bool {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Func, reflect.Chan, reflect.Interface:
		return rv.IsNil()
	}
	return false
}

// pixelGrid returns RGBA bytes for img without copying when the image is
// already tightly packed non-premultiplied RGBA
func pixelGrid(img image.Image) PixelGrid {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	switch src := img.(type) {
	case *image.NRGBA:
		if src.Stride == 4*w {
			return PixelGrid{Data: src.Pix[:4*w*h], Width: w, Height: h}
		}
	case *image.RGBA:
		if src.Stride == 4*w && opaque(src) {
			return PixelGrid{Data: src.Pix[:4*w*h], Width: w, Height: h}
		}
	}
	dst := image.NewNRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return PixelGrid{Data: dst.Pix, Width: w, Height: h}
}

// opaque reports whether premultiplied pixels equal their straight form
func opaque(img *image.RGBA) bool {
	for i := 3; i < len(img.Pix); i += 4 {
		if img.Pix[i] != 0xff {
			return false
		}
	}
	return true
}

// materialize resolves in to the bytes that cross into linear memory.
// It runs before any foreign allocation.
func materialize(ctx context.Context, in Input) (data []byte, grid *PixelGrid, err error) {
	switch in := in.(type) {
	case PixelGrid:
		if in.Width <= 0 || in.Height <= 0 || in.Width > math.MaxInt32/in.Height/4 {
			return nil, nil, errors.InvalidInput(errors.PhaseMarshal, "pixel grid dimensions out of range")
		}
		if len(in.Data) != in.Width*in.Height*4 {
			return nil, nil, errors.New(errors.PhaseMarshal, errors.KindInvalidInput).
				GoType("bridge.PixelGrid").
				Detail("pixel grid holds %d bytes, %dx%d RGBA needs %d", len(in.Data), in.Width, in.Height, in.Width*in.Height*4).
				Build()
		}
		return in.Data, &in, nil
	case ByteBuffer:
		data = in
	case BinaryBlob:
		if in.Size < 0 || in.Size > math.MaxUint32 {
			return nil, nil, errors.InvalidInput(errors.PhaseMarshal, "blob size out of range")
		}
		data = make([]byte, in.Size)
		if n, err := in.Source.ReadAt(data, 0); n != len(data) {
			if err == nil || err == io.EOF {
				err = io.ErrUnexpectedEOF
			}
			return nil, nil, readError("bridge.BinaryBlob", err)
		}
	case DeferredByteSource:
		data, err = in(ctx)
		if err != nil {
			return nil, nil, readError("bridge.DeferredByteSource", err)
		}
	default:
		return nil, nil, errors.InvalidInputType(in)
	}
	if len(data) == 0 {
		return nil, nil, errors.InvalidInput(errors.PhaseMarshal, "empty input")
	}
	if uint64(len(data)) > math.MaxUint32 {
		return nil, nil, errors.InvalidInput(errors.PhaseMarshal, "input exceeds linear memory addressing")
	}
	return data, nil, nil
}

func readError(goType string, err error) error {
	return errors.New(errors.PhaseMarshal, errors.KindInvalidData).
		GoType(goType).
		Cause(err).
		Detail("read input").
		Build()
}
