// Package bindings holds the host-facing option and result types and the
// translators between them and the engine's flat structs.
//
// Options use pointer fields so an absent value can be told from a zero
// one. Translation requires fully defaulted input:
//
//	opts := (&bindings.ReaderOptions{Formats: []bindings.BarcodeFormat{"QRCode"}}).WithDefaults()
//	flat, err := bindings.ReaderOptionsToEngine(opts)
//
// Enumerations travel as names on the host side and as engine numbers on
// the other. Format names match loosely ("ean13" is EAN-13) and reader
// formats accept the Linear-Codes, Matrix-Codes and Any groups.
package bindings
