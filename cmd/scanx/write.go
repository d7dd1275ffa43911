package main

import (
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/wippyai/scanx-wasm/bindings"
	"github.com/wippyai/scanx-wasm/bridge"
	"github.com/wippyai/scanx-wasm/engine"
)

type writeFlags struct {
	variant    string
	format     string
	ecLevel    string
	scale      int32
	rotate     int32
	withHRT    bool
	quietZones bool
	hexInput   bool
	out        string
}

func newWriteCmd(a *app) *cobra.Command {
	var f writeFlags

	cmd := &cobra.Command{
		Use:   "write <content>",
		Short: "Encode content as a barcode",
		Long: `Encode text, or binary content given as hex with --hex, as a barcode.

The output file extension picks the encoding: .svg writes the vector image,
anything else the PNG image. Without --out a terminal gets a text rendering
and a pipe gets the PNG bytes.`,
		Example: `  scanx write "HELLO" --out hello.png
  scanx write --format DataMatrix --hex 00ff10 --out data.svg
  scanx write "https://example.com" > url.png`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fac, ok := factory(f.variant)
			if !ok || !fac.Variant().Capabilities.Has(engine.CapWrite) {
				return fmt.Errorf("variant %q cannot write", f.variant)
			}

			in := bridge.Text(args[0])
			if f.hexInput {
				data, err := hex.DecodeString(args[0])
				if err != nil {
					return fmt.Errorf("decode hex content: %w", err)
				}
				in = bridge.Bytes(data)
			}

			res, err := a.rt.WriteBarcode(cmd.Context(), fac, in, f.writerOptions(cmd))
			if err != nil {
				return err
			}
			return a.emit(res, f.out)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.variant, "variant", "full", "engine build: full or writer")
	flags.StringVarP(&f.format, "format", "f", "", "barcode format (default QRCode)")
	flags.StringVar(&f.ecLevel, "ec-level", "", "error correction level: L, M, Q or H")
	flags.Int32Var(&f.scale, "scale", 0, "pixels per module, 0 picks a size")
	flags.Int32Var(&f.rotate, "rotate", 0, "rotation in degrees: 0, 90, 180 or 270")
	flags.BoolVar(&f.withHRT, "hrt", false, "add human readable text below linear codes")
	flags.BoolVar(&f.quietZones, "quiet-zones", true, "keep the quiet zone around the symbol")
	flags.BoolVar(&f.hexInput, "hex", false, "content is hex-encoded binary")
	flags.StringVar(&f.out, "out", "", "output file, .svg or .png")
	return cmd
}

func (f *writeFlags) writerOptions(cmd *cobra.Command) *bindings.WriterOptions {
	flags := cmd.Flags()
	opts := &bindings.WriterOptions{}
	if flags.Changed("format") {
		opts.Format = bindings.Ptr(bindings.BarcodeFormat(f.format))
	}
	if flags.Changed("ec-level") {
		opts.ECLevel = bindings.Ptr(bindings.ECLevel(f.ecLevel))
	}
	if flags.Changed("scale") {
		opts.Scale = bindings.Ptr(f.scale)
	}
	if flags.Changed("rotate") {
		opts.Rotate = bindings.Ptr(f.rotate)
	}
	if flags.Changed("hrt") {
		opts.WithHRT = bindings.Ptr(f.withHRT)
	}
	if flags.Changed("quiet-zones") {
		opts.WithQuietZones = bindings.Ptr(f.quietZones)
	}
	return opts
}

func (a *app) emit(res *bindings.WriteResult, out string) error {
	if out == "" || out == "-" {
		if a.isTerminal() {
			_, err := io.WriteString(a.stdout, res.UTF8+"\n")
			return err
		}
		_, err := a.stdout.Write(res.Image)
		return err
	}

	data := res.Image
	if strings.EqualFold(filepath.Ext(out), ".svg") {
		data = []byte(res.SVG)
	}
	if err := atomic.WriteFile(out, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("write %s: %w", out, err)
	}
	fmt.Fprintf(a.stderr, "wrote %s (%d bytes)\n", out, len(data))
	return nil
}
