package lifecycle

import (
	"context"

	"github.com/wippyai/scanx-wasm/engine"
)

// Future is a single-assignment engine instantiation shared by every caller
// of one (factory, overrides) epoch. A failed Future stays failed; callers
// must change the overrides or purge to retry.
type Future struct {
	done chan struct{}
	inst engine.Instance
	err  error
}

func newFuture() *Future {
	return &Future{done: make(chan struct{})}
}

func (f *Future) resolve(inst engine.Instance, err error) {
	f.inst, f.err = inst, err
	close(f.done)
}

// Done is closed once the instantiation settles
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// Wait blocks until the instantiation settles or ctx ends. Cancelling ctx
// stops the wait only; the instantiation itself keeps running.
func (f *Future) Wait(ctx context.Context) (engine.Instance, error) {
	select {
	case <-f.done:
		return f.inst, f.err
	default:
	}
	select {
	case <-f.done:
		return f.inst, f.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Settled reports whether the instantiation has finished
func (f *Future) Settled() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}
