// Package engine is the boundary with the compiled scanx engine.
//
// It defines the engine's identity (Factory), its instantiation overrides,
// the capability interfaces an instance satisfies, the engine's flat option
// and result structs, and a wazero-based Loader that produces instances.
//
// # Architecture
//
//	Factory        - opaque identity of one engine variant, compared by pointer
//	Overrides      - flat map customizing instantiation (locateFile, ...)
//	WazeroLoader   - resolves the binary and instantiates it in a fresh runtime
//	Instance       - malloc/free, linear memory, Close
//	Reader         - read_barcodes_from_image / read_barcodes_from_pixmap
//	SingleReader   - read_single_barcode_from_pixmap (newer engines only)
//	Writer         - write_barcode_from_text / write_barcode_from_bytes
//	Vector         - engine-owned read results, valid until Release
//
// # Binary Resolution
//
// The loader picks the first strategy that applies:
//
//  1. instantiateWasm: the caller instantiates the module in the runtime
//  2. wasmBinary: the bytes are compiled directly
//  3. locateFile(file, prefix), or prefix+file, handed to the Fetcher
//
// A cdnHost override replaces the host of an http(s) location.
//
// # Flat ABI
//
// All entry points take and return i32. Options and results are flat structs
// in linear memory; strings and byte arrays are {ptr u32, len u32}:
//
//	Struct          Size   Lowered by
//	──────────────────────────────────────
//	ReaderOptions   32     adapter
//	WriterOptions   36     adapter
//	ReadResult      164    engine
//	WriteResult     48     engine
//	vector header   8      engine ({data, count})
//
// The adapter allocates the option structs and text arguments itself and
// frees them before returning. Results are copied to the Go heap and handed
// back to the engine through its *_delete hooks, or free when those are not
// exported.
//
// # Thread Safety
//
// WazeroLoader is safe for concurrent use. Instances serialize calls into
// the guest with a mutex; Malloc, Free and each entry point are atomic with
// respect to each other, but a caller's malloc/write/call/free sequence is
// not.
package engine
