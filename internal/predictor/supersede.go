package predictor

import (
	"context"
	"sync"
)

// tracker enforces latest-wins per location: starting a request for a
// location cancels the in-flight one, and a request that finishes after
// being displaced is reported stale.
type tracker struct {
	mu      sync.Mutex
	current map[string]uint64
	cancels map[string]context.CancelFunc
}

func newTracker() *tracker {
	return &tracker{
		current: make(map[string]uint64),
		cancels: make(map[string]context.CancelFunc),
	}
}

// begin registers a new request generation for key, cancelling any prior
// in-flight request for the same key. The returned context is cancelled
// when a later request for the key begins.
func (t *tracker) begin(ctx context.Context, key string) (context.Context, uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if cancel, ok := t.cancels[key]; ok {
		cancel()
	}

	t.current[key]++
	gen := t.current[key]

	ctx, cancel := context.WithCancel(ctx)
	t.cancels[key] = cancel
	return ctx, gen
}

// isCurrent reports whether gen is still the latest generation for key.
func (t *tracker) isCurrent(key string, gen uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.current[key] == gen
}

// finish releases the cancel func for key if gen is still current.
func (t *tracker) finish(key string, gen uint64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.current[key] != gen {
		return
	}
	if cancel, ok := t.cancels[key]; ok {
		cancel()
		delete(t.cancels, key)
	}
}
