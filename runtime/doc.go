// Package runtime is the orchestration layer behind the reader, writer and
// full packages.
//
// A Runtime owns a lifecycle.Manager (which engine instance serves a
// factory), a bridge.Bridge (how data crosses into linear memory) and the
// loader stack that turns configuration into instances:
//
//	config.Config -> config.DefaultOverrides -> lifecycle.Cache
//	engine.WazeroLoader -> fetch.Fetcher -> store.Store
//
// # Quick Start
//
//	rt, err := runtime.New(runtime.WithConfig(cfg))
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer rt.Close(ctx)
//
//	results, err := rt.ReadBarcodes(ctx, full.Factory, img, nil)
//
// Most programs use the process-wide runtime through the variant packages
// instead; Default builds it from config.Load on first use.
//
// # Engine Lifetime
//
// Instances are created once per (factory, overrides) pairing and reused
// until the overrides change or the factory is purged. Purge and override
// changes never close an instance that may still be in use; Close closes
// every instance the runtime produced.
package runtime
