package lifecycle

import (
	"context"
	stderrors "errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/wippyai/scanx-wasm/engine"
	"github.com/wippyai/scanx-wasm/errors"
	"github.com/wippyai/scanx-wasm/internal/enginetest"
	"github.com/wippyai/scanx-wasm/metrics"
)

var readerVariant = engine.Variant{Name: "reader", Capabilities: engine.CapRead}

func newManager(t *testing.T, loader engine.Loader, defaults engine.Overrides, opts ...Option) *Manager {
	t.Helper()
	var fn func() engine.Overrides
	if defaults != nil {
		fn = func() engine.Overrides { return defaults }
	}
	m := NewManager(NewCache(fn), loader, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = m.Close(ctx)
	})
	return m
}

func mustWait(t *testing.T, fut *Future) engine.Instance {
	t.Helper()
	if fut == nil {
		t.Fatal("expected a future")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	inst, err := fut.Wait(ctx)
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	return inst
}

func eager(ov engine.Overrides) PrepareOptions {
	return PrepareOptions{Overrides: ov, FireImmediately: true}
}

func TestPrepare_ReusesFutureForEqualOverrides(t *testing.T) {
	ctx := context.Background()
	loader := &enginetest.Loader{}
	m := newManager(t, loader, nil)
	f := engine.NewFactory(readerVariant)

	ov := engine.Overrides{"wasmBinary": []byte("bin")}
	first, err := m.Prepare(ctx, f, eager(ov))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	second, err := m.Prepare(ctx, f, eager(engine.Overrides{"wasmBinary": ov["wasmBinary"]}))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if first != second {
		t.Fatal("equal overrides should reuse the cached future")
	}
	third, err := m.Prepare(ctx, f, eager(nil))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if third != first {
		t.Fatal("nil overrides should reuse the cached future")
	}

	a, b := mustWait(t, first), mustWait(t, second)
	if a != b {
		t.Error("reused future should yield the same instance")
	}
	if loader.Loads() != 1 {
		t.Errorf("Loads = %d, want 1", loader.Loads())
	}
}

func TestPrepare_InvalidatesOnDifferentOverrides(t *testing.T) {
	ctx := context.Background()
	loader := &enginetest.Loader{}
	m := newManager(t, loader, nil)
	f := engine.NewFactory(readerVariant)

	first, err := m.Prepare(ctx, f, eager(engine.Overrides{"k": 1}))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	mustWait(t, first)

	next := engine.Overrides{"k": 2}
	second, err := m.Prepare(ctx, f, eager(next))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if first == second {
		t.Fatal("different overrides should produce a new future")
	}
	mustWait(t, second)

	if loader.Loads() != 2 {
		t.Errorf("Loads = %d, want 2", loader.Loads())
	}
	if !Identical(loader.LastOverrides(), next) {
		t.Error("second load should see the new overrides")
	}
	entry := m.Cache().Lookup(f)
	if entry.Future != second || !Identical(entry.Overrides, next) {
		t.Error("cache should hold the new pairing")
	}
}

func TestPrepare_DistinctFactoriesAreDistinctKeys(t *testing.T) {
	ctx := context.Background()
	loader := &enginetest.Loader{}
	m := newManager(t, loader, nil)

	a, err := m.Prepare(ctx, engine.NewFactory(readerVariant), eager(nil))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	b, err := m.Prepare(ctx, engine.NewFactory(readerVariant), eager(nil))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if a == b {
		t.Fatal("factories built from one variant must not share an entry")
	}
	mustWait(t, a)
	mustWait(t, b)
	if loader.Loads() != 2 {
		t.Errorf("Loads = %d, want 2", loader.Loads())
	}
}

func TestPrepare_Staging(t *testing.T) {
	ctx := context.Background()
	loader := &enginetest.Loader{}
	defaults := engine.Overrides{"cdnHost": "cdn.example.com"}
	m := newManager(t, loader, defaults)
	f := engine.NewFactory(readerVariant)

	staged := engine.Overrides{"cdnHost": "mirror.example.com"}
	fut, err := m.Prepare(ctx, f, PrepareOptions{Overrides: staged})
	if err != nil || fut != nil {
		t.Fatalf("Prepare (staging) = %v, %v; want nil, nil", fut, err)
	}
	if loader.Loads() != 0 {
		t.Fatalf("staging must not instantiate, Loads = %d", loader.Loads())
	}
	entry := m.Cache().Lookup(f)
	if entry.Future != nil || !Identical(entry.Overrides, staged) {
		t.Fatal("staged overrides should be cached without a future")
	}

	// staging equal overrides keeps the entry as is
	if _, err := m.Prepare(ctx, f, PrepareOptions{Overrides: engine.Overrides{"cdnHost": "mirror.example.com"}}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if !Identical(m.Cache().Lookup(f).Overrides, staged) {
		t.Fatal("equal staging should not replace the entry")
	}

	mustWait(t, mustPrepare(t, m, f, eager(nil)))
	if !Identical(loader.LastOverrides(), staged) {
		t.Errorf("instantiation should use staged overrides, got %v", loader.LastOverrides())
	}
}

func TestPrepare_StagingReplacesLocatorWithOtherHost(t *testing.T) {
	ctx := context.Background()
	locator := func(host string) engine.LocateFunc {
		return func(path, prefix string) string { return host + "/" + path }
	}
	loader := &enginetest.Loader{}
	m := newManager(t, loader, engine.Overrides{"locateFile": locator("https://a.example")})
	f := engine.NewFactory(readerVariant)

	staged := engine.Overrides{"locateFile": locator("https://b.example")}
	if _, err := m.Prepare(ctx, f, PrepareOptions{Overrides: staged}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if m.Cache().Len() != 1 || !Identical(m.Cache().Lookup(f).Overrides, staged) {
		t.Fatal("a locator for another host should replace the default entry")
	}

	mustWait(t, mustPrepare(t, m, f, eager(nil)))
	locate, err := loader.LastOverrides().LocateFile()
	if err != nil {
		t.Fatal(err)
	}
	if got := locate("scanx_reader.wasm", ""); got != "https://b.example/scanx_reader.wasm" {
		t.Errorf("instantiated with locator for %q", got)
	}
}

func TestPrepare_StagingAfterInstantiationKeepsFutureWhenEqual(t *testing.T) {
	ctx := context.Background()
	m := newManager(t, &enginetest.Loader{}, nil)
	f := engine.NewFactory(readerVariant)

	ov := engine.Overrides{"k": 1}
	fut := mustPrepare(t, m, f, eager(ov))
	if _, err := m.Prepare(ctx, f, PrepareOptions{Overrides: engine.Overrides{"k": 1}}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if m.Cache().Lookup(f).Future != fut {
		t.Fatal("equal staging should keep the instantiated future")
	}

	if _, err := m.Prepare(ctx, f, PrepareOptions{Overrides: engine.Overrides{"k": 2}}); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if m.Cache().Lookup(f).Future != nil {
		t.Fatal("different staging should drop the future")
	}
}

func TestPrepare_CustomEquality(t *testing.T) {
	ctx := context.Background()
	loader := &enginetest.Loader{}
	m := newManager(t, loader, nil)
	f := engine.NewFactory(readerVariant)

	first := mustPrepare(t, m, f, PrepareOptions{Overrides: engine.Overrides{"k": 1}, FireImmediately: true, EqualityFn: Identical})
	second, err := m.Prepare(ctx, f, PrepareOptions{Overrides: engine.Overrides{"k": 1}, FireImmediately: true, EqualityFn: Identical})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if first == second {
		t.Fatal("identity equality should treat rebuilt overrides as new")
	}

	always := func(engine.Overrides, engine.Overrides) bool { return true }
	third, err := m.Prepare(ctx, f, PrepareOptions{Overrides: engine.Overrides{"k": 99}, FireImmediately: true, EqualityFn: always})
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if third != second {
		t.Fatal("custom equality should decide reuse")
	}
}

func TestPrepare_FailedFutureIsCached(t *testing.T) {
	ctx := context.Background()
	cause := stderrors.New("binary unavailable")
	loader := &enginetest.Loader{Err: cause}
	m := newManager(t, loader, nil)
	f := engine.NewFactory(readerVariant)

	_, err := m.Instance(ctx, f)
	if err == nil {
		t.Fatal("expected instantiation error")
	}
	if !stderrors.Is(err, errors.ErrInstantiation) {
		t.Errorf("error should match ErrInstantiation: %v", err)
	}
	if !stderrors.Is(err, cause) {
		t.Errorf("error should wrap the cause: %v", err)
	}

	_, again := m.Instance(ctx, f)
	if again != err {
		t.Errorf("failed future should be re-surfaced, got %v", again)
	}
	if loader.Loads() != 1 {
		t.Errorf("Loads = %d, want 1", loader.Loads())
	}

	// a configuration change retries
	loader.Err = nil
	if _, err := m.Prepare(ctx, f, eager(engine.Overrides{"retry": true})); err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	if _, err := m.Instance(ctx, f); err != nil {
		t.Fatalf("Instance after change: %v", err)
	}
	if loader.Loads() != 2 {
		t.Errorf("Loads = %d, want 2", loader.Loads())
	}
}

func TestPrepare_LoaderPanicBecomesError(t *testing.T) {
	m := newManager(t, panicLoader{}, nil)
	_, err := m.Instance(context.Background(), engine.NewFactory(readerVariant))
	if !stderrors.Is(err, errors.ErrInstantiation) {
		t.Fatalf("expected instantiation error, got %v", err)
	}
}

type panicLoader struct{}

func (panicLoader) Load(context.Context, *engine.Factory, engine.Overrides) (engine.Instance, error) {
	panic("boom")
}

func TestPrepare_RestrictedConfigurationError(t *testing.T) {
	loader := &enginetest.Loader{}
	defaults := engine.Overrides{
		engine.KeyInstantiateWasm: engine.RequireInstantiator("an instantiateWasm override is required in this environment"),
	}
	m := newManager(t, loader, defaults)
	f := engine.NewFactory(readerVariant)

	fut, err := m.Prepare(context.Background(), f, eager(nil))
	if fut != nil {
		t.Error("no future expected on configuration error")
	}
	if !stderrors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if m.Cache().Len() != 0 {
		t.Errorf("nothing should be cached, Len = %d", m.Cache().Len())
	}
	if loader.Loads() != 0 {
		t.Errorf("Loads = %d, want 0", loader.Loads())
	}

	custom := engine.InstantiateFunc(nil)
	fut, err = m.Prepare(context.Background(), f, eager(engine.Overrides{engine.KeyInstantiateWasm: custom}))
	if err != nil {
		t.Fatalf("supplying an instantiator should pass: %v", err)
	}
	mustWait(t, fut)
}

func TestPrepare_InvalidOverrideType(t *testing.T) {
	m := newManager(t, &enginetest.Loader{}, nil)
	_, err := m.Prepare(context.Background(), engine.NewFactory(readerVariant), eager(engine.Overrides{engine.KeyWasmBinary: 42}))
	if !stderrors.Is(err, errors.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestPrepare_NilFactory(t *testing.T) {
	m := newManager(t, &enginetest.Loader{}, nil)
	if _, err := m.Prepare(context.Background(), nil, eager(nil)); err == nil {
		t.Fatal("expected error for nil factory")
	}
}

func TestPurge_FallsBackToDefaults(t *testing.T) {
	ctx := context.Background()
	loader := &enginetest.Loader{}
	defaults := engine.Overrides{"cdnHost": "cdn.example.com"}
	m := newManager(t, loader, defaults)
	f := engine.NewFactory(readerVariant)

	custom := engine.Overrides{"cdnHost": "mirror.example.com"}
	first := mustPrepare(t, m, f, eager(custom))
	firstInst := mustWait(t, first)

	m.Purge(f)
	if m.Cache().Len() != 0 {
		t.Fatalf("Len after purge = %d", m.Cache().Len())
	}

	inst, err := m.Instance(ctx, f)
	if err != nil {
		t.Fatalf("Instance: %v", err)
	}
	if inst == firstInst {
		t.Error("purge should force a fresh instantiation")
	}
	if !Identical(loader.LastOverrides(), defaults) {
		t.Errorf("fresh instantiation should use defaults, got %v", loader.LastOverrides())
	}
	if loader.Engines()[0].Closed() {
		t.Error("purge must not close instances already handed out")
	}
}

func TestPrepare_ConcurrentSingleFlight(t *testing.T) {
	ctx := context.Background()
	gate := make(chan struct{})
	loader := &enginetest.Loader{Gate: gate}
	m := newManager(t, loader, nil)
	f := engine.NewFactory(readerVariant)

	const n = 32
	futures := make([]*Future, n)
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			fut, err := m.Prepare(ctx, f, eager(nil))
			if err != nil {
				t.Errorf("Prepare: %v", err)
				return
			}
			futures[i] = fut
		}()
	}
	wg.Wait()
	close(gate)

	for i := 1; i < n; i++ {
		if futures[i] != futures[0] {
			t.Fatalf("future %d differs from the first", i)
		}
	}
	mustWait(t, futures[0])
	if loader.Loads() != 1 {
		t.Errorf("Loads = %d, want 1", loader.Loads())
	}
}

func TestFuture_WaitCancellation(t *testing.T) {
	gate := make(chan struct{})
	loader := &enginetest.Loader{Gate: gate}
	m := newManager(t, loader, nil)
	f := engine.NewFactory(readerVariant)

	callCtx, cancelCall := context.WithCancel(context.Background())
	fut, err := m.Prepare(callCtx, f, eager(nil))
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	cancelCall()

	waitCtx, cancelWait := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancelWait()
	if _, err := fut.Wait(waitCtx); !stderrors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Wait = %v, want deadline exceeded", err)
	}
	if fut.Settled() {
		t.Fatal("instantiation should still be pending")
	}

	close(gate)
	mustWait(t, fut)
	if !fut.Settled() {
		t.Error("future should be settled")
	}
}

func TestManager_CloseClosesEveryInstance(t *testing.T) {
	ctx := context.Background()
	loader := &enginetest.Loader{}
	m := NewManager(NewCache(nil), loader)
	f := engine.NewFactory(readerVariant)

	mustWait(t, mustPrepare(t, m, f, eager(engine.Overrides{"k": 1})))
	mustWait(t, mustPrepare(t, m, f, eager(engine.Overrides{"k": 2})))
	mustWait(t, mustPrepare(t, m, engine.NewFactory(readerVariant), eager(nil)))

	if err := m.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
	engines := loader.Engines()
	if len(engines) != 3 {
		t.Fatalf("engines = %d, want 3", len(engines))
	}
	for i, e := range engines {
		if !e.Closed() {
			t.Errorf("engine %d not closed", i)
		}
	}
	if m.Cache().Len() != 0 {
		t.Errorf("cache should be empty after Close, Len = %d", m.Cache().Len())
	}
}

func TestManager_CloseIgnoresFailedInstantiations(t *testing.T) {
	m := NewManager(NewCache(nil), &enginetest.Loader{Err: stderrors.New("nope")})
	f := engine.NewFactory(readerVariant)
	fut := mustPrepare(t, m, f, eager(nil))
	<-fut.Done()
	if err := m.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func TestManager_Metrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	met, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New: %v", err)
	}
	ctx := context.Background()
	m := newManager(t, &enginetest.Loader{}, nil, WithMetrics(met))
	f := engine.NewFactory(readerVariant)

	mustWait(t, mustPrepare(t, m, f, eager(nil)))
	if _, err := m.Instance(ctx, f); err != nil {
		t.Fatalf("Instance: %v", err)
	}

	if got := counterValue(t, reg, "scanx_lifecycle_instantiations_total", "reader"); got != 1 {
		t.Errorf("instantiations = %v, want 1", got)
	}
	if got := counterValue(t, reg, "scanx_lifecycle_cache_reuses_total", "reader"); got != 1 {
		t.Errorf("reuses = %v, want 1", got)
	}
}

func counterValue(t *testing.T, reg *prometheus.Registry, name, variant string) float64 {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "variant" && lp.GetValue() == variant {
					return m.GetCounter().GetValue()
				}
			}
		}
	}
	return 0
}

func mustPrepare(t *testing.T, m *Manager, f *engine.Factory, opts PrepareOptions) *Future {
	t.Helper()
	fut, err := m.Prepare(context.Background(), f, opts)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	return fut
}
