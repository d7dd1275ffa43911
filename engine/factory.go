package engine

import (
	"fmt"
	"regexp"
)

// Capability is an entry point group an engine variant exposes
type Capability uint8

const (
	CapRead Capability = 1 << iota
	CapWrite
)

// Has reports whether all capabilities in want are set
func (c Capability) Has(want Capability) bool {
	return c&want == want
}

func (c Capability) String() string {
	switch c {
	case CapRead:
		return "read"
	case CapWrite:
		return "write"
	case CapRead | CapWrite:
		return "read|write"
	}
	return fmt.Sprintf("capability(%d)", uint8(c))
}

// Variant describes one distributable engine binary
type Variant struct {
	Name         string
	File         string
	SHA256       string
	Capabilities Capability
}

// Factory is the identity of "a way to instantiate one engine variant".
// Factories are compared by pointer only: two factories built from the same
// Variant are distinct cache keys.
type Factory struct {
	variant Variant
}

// NewFactory returns a fresh factory identity for v
func NewFactory(v Variant) *Factory {
	if v.File == "" {
		v.File = "scanx_" + v.Name + ".wasm"
	}
	return &Factory{variant: v}
}

// Variant returns the variant description
func (f *Factory) Variant() Variant {
	return f.variant
}

func (f *Factory) String() string {
	return fmt.Sprintf("factory(%s@%p)", f.variant.Name, f)
}

var variantFile = regexp.MustCompile(`_(.+?)\.wasm$`)

// VariantOf extracts the variant directory from a binary file name,
// "scanx_reader.wasm" -> "reader". ok is false for non-engine paths.
func VariantOf(path string) (string, bool) {
	m := variantFile.FindStringSubmatch(path)
	if m == nil {
		return "", false
	}
	return m[1], true
}
