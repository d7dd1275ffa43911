// Package scanx is a Go binding for the scanx barcode engine, a WebAssembly
// module with a C-style export surface (malloc, free, linear memory and a set
// of read/write entry points).
//
// The engine does the decoding and encoding. This module does the rest:
// deciding when to instantiate the engine, copying host bytes in and out of
// its linear memory, and translating between Go option/result types and the
// engine's flat structs.
//
// # Architecture Overview
//
//	scanx/              Root package with Memory and Allocator interfaces
//	├── engine/         Factory identity, Overrides, wazero loader, flat ABI
//	├── lifecycle/      Shallow equality, module cache, lifecycle manager
//	├── bridge/         Input classification and foreign buffer marshaling
//	├── bindings/       Reader/writer options, results and translators
//	├── runtime/        Orchestration of manager, bridge and metrics
//	├── reader/         Reader-only public surface
//	├── writer/         Writer-only public surface
//	├── full/           Combined public surface
//	├── config/         Deployment mode and default overrides
//	├── fetch/          Engine binary retrieval and integrity checks
//	├── store/          Persistent binary cache
//	├── metrics/        Prometheus collectors
//	└── errors/         Structured error types
//
// # Quick Start
//
//	results, err := full.ReadBarcodes(ctx, pngBytes, nil)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	for _, r := range results {
//	    fmt.Println(r.Format, r.Text)
//	}
//
//	out, err := full.WriteBarcode(ctx, bridge.Text("HELLO"), &bindings.WriterOptions{
//	    Format: bindings.Ptr(bindings.FormatQRCode),
//	})
//
// # Module Lifecycle
//
// Engines are instantiated lazily on the first read or write and cached per
// factory. Prepare stages overrides without instantiating; the first call
// after a change gets a fresh instance. Purge drops the cached entry.
//
// # Thread Safety
//
// Runtime, the cache and the manager are safe for concurrent use. Engine
// instances serialize their foreign calls internally.
//
// # Memory Model
//
// Every byte the binding copies into the engine is freed before the call
// returns, on success and on error. Results are copied out of linear memory
// before the engine releases them.
package scanx
