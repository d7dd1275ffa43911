package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/wippyai/scanx-wasm/bindings"
	"github.com/wippyai/scanx-wasm/engine"
)

type readFlags struct {
	variant     string
	formats     []string
	binarizer   string
	textMode    string
	charset     string
	tryHarder   bool
	tryRotate   bool
	tryInvert   bool
	isPure      bool
	maxSymbols  uint8
	single      bool
	output      string
	interactive bool
}

// fileResults groups the barcodes found in one input
type fileResults struct {
	File    string                `json:"file" yaml:"file"`
	Results []bindings.ReadResult `json:"results" yaml:"results"`
}

func newReadCmd(a *app) *cobra.Command {
	var f readFlags

	cmd := &cobra.Command{
		Use:   "read <image>...",
		Short: "Read barcodes from image files",
		Long: `Read barcodes from encoded image files (PNG, JPEG, ...). Use - to read
from stdin.`,
		Example: `  scanx read label.png
  scanx read --format QRCode,DataMatrix -o json *.png
  cat scan.jpg | scanx read -
  scanx read -i shelf.jpg`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fac, ok := factory(f.variant)
			if !ok || !fac.Variant().Capabilities.Has(engine.CapRead) {
				return fmt.Errorf("variant %q cannot read", f.variant)
			}
			opts := f.readerOptions(cmd)

			var all []fileResults
			for _, name := range args {
				fr, err := a.readFile(cmd, fac, name, f.single, opts)
				if err != nil {
					return err
				}
				all = append(all, fr)
			}

			if f.interactive {
				return runBrowser(all)
			}
			return render(a.stdout, f.output, all)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.variant, "variant", "full", "engine build: full or reader")
	flags.StringSliceVarP(&f.formats, "format", "f", nil, "formats to look for, groups Linear-Codes and Matrix-Codes allowed")
	flags.StringVar(&f.binarizer, "binarizer", "", "LocalAverage, GlobalHistogram, FixedThreshold or BoolCast")
	flags.StringVar(&f.textMode, "text-mode", "", "Plain, ECI, HRI, Hex or Escaped")
	flags.StringVar(&f.charset, "charset", "", "fallback character set")
	flags.BoolVar(&f.tryHarder, "try-harder", true, "spend more time to find barcodes")
	flags.BoolVar(&f.tryRotate, "try-rotate", true, "also try rotated images")
	flags.BoolVar(&f.tryInvert, "try-invert", true, "also try inverted images")
	flags.BoolVar(&f.isPure, "pure", false, "image is a single unrotated barcode")
	flags.Uint8Var(&f.maxSymbols, "max-symbols", 255, "stop after this many symbols")
	flags.BoolVar(&f.single, "single", false, "stop at the first barcode")
	flags.StringVarP(&f.output, "output", "o", "text", "output format: text, json or yaml")
	flags.BoolVarP(&f.interactive, "interactive", "i", false, "browse results interactively")
	return cmd
}

// readerOptions sets only the fields given on the command line, leaving the
// rest to the binding defaults
func (f *readFlags) readerOptions(cmd *cobra.Command) *bindings.ReaderOptions {
	flags := cmd.Flags()
	opts := &bindings.ReaderOptions{}
	for _, name := range f.formats {
		opts.Formats = append(opts.Formats, bindings.BarcodeFormat(name))
	}
	if flags.Changed("binarizer") {
		opts.Binarizer = bindings.Ptr(bindings.Binarizer(f.binarizer))
	}
	if flags.Changed("text-mode") {
		opts.TextMode = bindings.Ptr(bindings.TextMode(f.textMode))
	}
	if flags.Changed("charset") {
		opts.CharacterSet = bindings.Ptr(bindings.CharacterSet(f.charset))
	}
	if flags.Changed("try-harder") {
		opts.TryHarder = bindings.Ptr(f.tryHarder)
	}
	if flags.Changed("try-rotate") {
		opts.TryRotate = bindings.Ptr(f.tryRotate)
	}
	if flags.Changed("try-invert") {
		opts.TryInvert = bindings.Ptr(f.tryInvert)
	}
	if flags.Changed("pure") {
		opts.IsPure = bindings.Ptr(f.isPure)
	}
	if flags.Changed("max-symbols") {
		opts.MaxNumberOfSymbols = bindings.Ptr(f.maxSymbols)
	}
	return opts
}

func (a *app) readFile(cmd *cobra.Command, fac *engine.Factory, name string, single bool, opts *bindings.ReaderOptions) (fileResults, error) {
	var input any
	if name == "-" {
		input = a.stdin
	} else {
		file, err := os.Open(name)
		if err != nil {
			return fileResults{}, err
		}
		defer file.Close()
		input = file
	}

	ctx := cmd.Context()
	fr := fileResults{File: name}
	if single {
		r, err := a.rt.ReadSingleBarcode(ctx, fac, input, opts)
		if err != nil {
			return fr, fmt.Errorf("%s: %w", name, err)
		}
		if r != nil {
			fr.Results = []bindings.ReadResult{*r}
		}
		return fr, nil
	}
	results, err := a.rt.ReadBarcodes(ctx, fac, input, opts)
	if err != nil {
		return fr, fmt.Errorf("%s: %w", name, err)
	}
	fr.Results = results
	return fr, nil
}
