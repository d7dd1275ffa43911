package enginetest

import (
	"context"
	"sync"

	"github.com/wippyai/scanx-wasm/engine"
)

// Loader is an engine.Loader that builds fake engines and counts loads
type Loader struct {
	// Options applies to every engine built
	Options Options
	// Err fails every load when set
	Err error
	// Gate, when set, blocks each load until it receives or is closed
	Gate chan struct{}

	engines   []*Engine
	overrides []engine.Overrides
	mu        sync.Mutex
}

func (l *Loader) Load(ctx context.Context, f *engine.Factory, ov engine.Overrides) (engine.Instance, error) {
	l.mu.Lock()
	l.overrides = append(l.overrides, ov)
	l.mu.Unlock()

	if l.Gate != nil {
		select {
		case <-l.Gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if l.Err != nil {
		return nil, l.Err
	}

	e := New(f.Variant(), l.Options)
	l.mu.Lock()
	l.engines = append(l.engines, e)
	l.mu.Unlock()
	return e.Instance(), nil
}

// Loads returns how many loads started
func (l *Loader) Loads() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.overrides)
}

// LastOverrides returns the overrides of the latest load
func (l *Loader) LastOverrides() engine.Overrides {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.overrides) == 0 {
		return nil
	}
	return l.overrides[len(l.overrides)-1]
}

// Engines returns every engine built so far
func (l *Loader) Engines() []*Engine {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]*Engine(nil), l.engines...)
}

var _ engine.Loader = (*Loader)(nil)
