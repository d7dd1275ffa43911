package bindings

// Ptr returns a pointer to v, for filling option structs
func Ptr[T any](v T) *T {
	return &v
}

// ReaderOptions configures a read. A nil field is absent and takes its
// default from DefaultReaderOptions.
type ReaderOptions struct {
	Formats               []BarcodeFormat `json:"formats,omitempty" yaml:"formats,omitempty" koanf:"formats"`
	TryHarder             *bool           `json:"tryHarder,omitempty" yaml:"tryHarder,omitempty" koanf:"try_harder"`
	TryRotate             *bool           `json:"tryRotate,omitempty" yaml:"tryRotate,omitempty" koanf:"try_rotate"`
	TryInvert             *bool           `json:"tryInvert,omitempty" yaml:"tryInvert,omitempty" koanf:"try_invert"`
	TryDownscale          *bool           `json:"tryDownscale,omitempty" yaml:"tryDownscale,omitempty" koanf:"try_downscale"`
	TryDenoise            *bool           `json:"tryDenoise,omitempty" yaml:"tryDenoise,omitempty" koanf:"try_denoise"`
	Binarizer             *Binarizer      `json:"binarizer,omitempty" yaml:"binarizer,omitempty" koanf:"binarizer"`
	IsPure                *bool           `json:"isPure,omitempty" yaml:"isPure,omitempty" koanf:"is_pure"`
	DownscaleThreshold    *uint16         `json:"downscaleThreshold,omitempty" yaml:"downscaleThreshold,omitempty" koanf:"downscale_threshold"`
	DownscaleFactor       *uint8          `json:"downscaleFactor,omitempty" yaml:"downscaleFactor,omitempty" koanf:"downscale_factor"`
	MinLineCount          *uint8          `json:"minLineCount,omitempty" yaml:"minLineCount,omitempty" koanf:"min_line_count"`
	MaxNumberOfSymbols    *uint8          `json:"maxNumberOfSymbols,omitempty" yaml:"maxNumberOfSymbols,omitempty" koanf:"max_number_of_symbols"`
	TryCode39ExtendedMode *bool           `json:"tryCode39ExtendedMode,omitempty" yaml:"tryCode39ExtendedMode,omitempty" koanf:"try_code39_extended_mode"`
	ReturnErrors          *bool           `json:"returnErrors,omitempty" yaml:"returnErrors,omitempty" koanf:"return_errors"`
	EanAddOnSymbol        *EanAddOnSymbol `json:"eanAddOnSymbol,omitempty" yaml:"eanAddOnSymbol,omitempty" koanf:"ean_add_on_symbol"`
	TextMode              *TextMode       `json:"textMode,omitempty" yaml:"textMode,omitempty" koanf:"text_mode"`
	CharacterSet          *CharacterSet   `json:"characterSet,omitempty" yaml:"characterSet,omitempty" koanf:"character_set"`
	// AccessToken is handed to the engine verbatim
	AccessToken *string `json:"accessToken,omitempty" yaml:"accessToken,omitempty" koanf:"access_token"`
}

// DefaultReaderOptions returns a fully populated ReaderOptions
func DefaultReaderOptions() ReaderOptions {
	return ReaderOptions{
		Formats:               []BarcodeFormat{},
		TryHarder:             Ptr(true),
		TryRotate:             Ptr(true),
		TryInvert:             Ptr(true),
		TryDownscale:          Ptr(true),
		TryDenoise:            Ptr(false),
		Binarizer:             Ptr(BinarizerLocalAverage),
		IsPure:                Ptr(false),
		DownscaleThreshold:    Ptr[uint16](500),
		DownscaleFactor:       Ptr[uint8](3),
		MinLineCount:          Ptr[uint8](2),
		MaxNumberOfSymbols:    Ptr[uint8](255),
		TryCode39ExtendedMode: Ptr(true),
		ReturnErrors:          Ptr(false),
		EanAddOnSymbol:        Ptr(EanAddOnIgnore),
		TextMode:              Ptr(TextModeHRI),
		CharacterSet:          Ptr(CharacterSetUnknown),
		AccessToken:           Ptr(""),
	}
}

// WithDefaults overlays the set fields of o onto DefaultReaderOptions.
// A nil receiver yields the defaults.
func (o *ReaderOptions) WithDefaults() ReaderOptions {
	d := DefaultReaderOptions()
	if o == nil {
		return d
	}
	if o.Formats != nil {
		d.Formats = append([]BarcodeFormat{}, o.Formats...)
	}
	overlay(&d.TryHarder, o.TryHarder)
	overlay(&d.TryRotate, o.TryRotate)
	overlay(&d.TryInvert, o.TryInvert)
	overlay(&d.TryDownscale, o.TryDownscale)
	overlay(&d.TryDenoise, o.TryDenoise)
	overlay(&d.Binarizer, o.Binarizer)
	overlay(&d.IsPure, o.IsPure)
	overlay(&d.DownscaleThreshold, o.DownscaleThreshold)
	overlay(&d.DownscaleFactor, o.DownscaleFactor)
	overlay(&d.MinLineCount, o.MinLineCount)
	overlay(&d.MaxNumberOfSymbols, o.MaxNumberOfSymbols)
	overlay(&d.TryCode39ExtendedMode, o.TryCode39ExtendedMode)
	overlay(&d.ReturnErrors, o.ReturnErrors)
	overlay(&d.EanAddOnSymbol, o.EanAddOnSymbol)
	overlay(&d.TextMode, o.TextMode)
	overlay(&d.CharacterSet, o.CharacterSet)
	overlay(&d.AccessToken, o.AccessToken)
	return d
}

// WriterOptions configures a write. A nil field is absent and takes its
// default from DefaultWriterOptions.
type WriterOptions struct {
	Format         *BarcodeFormat `json:"format,omitempty" yaml:"format,omitempty" koanf:"format"`
	ReaderInit     *bool          `json:"readerInit,omitempty" yaml:"readerInit,omitempty" koanf:"reader_init"`
	ECLevel        *ECLevel       `json:"ecLevel,omitempty" yaml:"ecLevel,omitempty" koanf:"ec_level"`
	Options        *string        `json:"options,omitempty" yaml:"options,omitempty" koanf:"options"`
	Scale          *int32         `json:"scale,omitempty" yaml:"scale,omitempty" koanf:"scale"`
	SizeHint       *int32         `json:"sizeHint,omitempty" yaml:"sizeHint,omitempty" koanf:"size_hint"`
	Rotate         *int32         `json:"rotate,omitempty" yaml:"rotate,omitempty" koanf:"rotate"`
	WithHRT        *bool          `json:"withHRT,omitempty" yaml:"withHRT,omitempty" koanf:"with_hrt"`
	WithQuietZones *bool          `json:"withQuietZones,omitempty" yaml:"withQuietZones,omitempty" koanf:"with_quiet_zones"`
}

// DefaultWriterOptions returns a fully populated WriterOptions
func DefaultWriterOptions() WriterOptions {
	return WriterOptions{
		Format:         Ptr(FormatQRCode),
		ReaderInit:     Ptr(false),
		ECLevel:        Ptr(ECLevelDefault),
		Options:        Ptr(""),
		Scale:          Ptr[int32](0),
		SizeHint:       Ptr[int32](0),
		Rotate:         Ptr[int32](0),
		WithHRT:        Ptr(false),
		WithQuietZones: Ptr(true),
	}
}

// WithDefaults overlays the set fields of o onto DefaultWriterOptions.
// A nil receiver yields the defaults.
func (o *WriterOptions) WithDefaults() WriterOptions {
	d := DefaultWriterOptions()
	if o == nil {
		return d
	}
	overlay(&d.Format, o.Format)
	overlay(&d.ReaderInit, o.ReaderInit)
	overlay(&d.ECLevel, o.ECLevel)
	overlay(&d.Options, o.Options)
	overlay(&d.Scale, o.Scale)
	overlay(&d.SizeHint, o.SizeHint)
	overlay(&d.Rotate, o.Rotate)
	overlay(&d.WithHRT, o.WithHRT)
	overlay(&d.WithQuietZones, o.WithQuietZones)
	return d
}

// overlay copies a set caller field so the result never aliases it
func overlay[T any](dst **T, src *T) {
	if src != nil {
		v := *src
		*dst = &v
	}
}
