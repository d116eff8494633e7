package shipping

import (
	"context"
	"sync"
	"time"
)

// dispatcher tracks the newest rate request per destination so stale
// in-flight lookups can be discarded, and decides which requests have to
// sit out the debounce window.
type dispatcher struct {
	mu     sync.Mutex
	window time.Duration
	seq    map[string]uint64
	last   map[string]time.Time
}

func newDispatcher(window time.Duration) *dispatcher {
	return &dispatcher{
		window: window,
		seq:    map[string]uint64{},
		last:   map[string]time.Time{},
	}
}

// begin registers a new request for the key and returns its token plus how
// long the request must hold back. Any earlier token for the same key is
// superseded from this point on. Only a request arriving within the debounce
// window of the previous one for the same key is deferred; the first of a
// burst goes straight to the carrier.
func (d *dispatcher) begin(key string) (uint64, time.Duration) {
	d.mu.Lock()
	defer d.mu.Unlock()

	now := time.Now()
	var hold time.Duration
	if d.window > 0 {
		if prev, ok := d.last[key]; ok && now.Sub(prev) < d.window {
			hold = d.window
		}
	}
	d.last[key] = now

	d.seq[key]++
	return d.seq[key], hold
}

// current reports whether token is still the newest request for the key.
func (d *dispatcher) current(key string, token uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.seq[key] == token
}

func (d *dispatcher) wait(ctx context.Context, hold time.Duration) error {
	if hold <= 0 {
		return nil
	}
	timer := time.NewTimer(hold)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
