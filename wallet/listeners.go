package wallet

import (
	"sync"
	"sync/atomic"

	launchpad "github.com/marwen-abid/launchpad-wallet-go"
)

// ConnectionListener receives the new connection after every transition, or
// nil after a disconnect.
type ConnectionListener func(conn *launchpad.WalletConnection)

type listenerEntry struct {
	fn      ConnectionListener
	removed atomic.Bool
}

// listenerRegistry keeps listeners in registration order. Notifications
// iterate over a snapshot, so listeners may subscribe or unsubscribe while
// being notified without disturbing the others.
type listenerRegistry struct {
	mu      sync.RWMutex
	entries []*listenerEntry
}

// add registers fn and returns an idempotent unsubscribe function.
func (r *listenerRegistry) add(fn ConnectionListener) func() {
	entry := &listenerEntry{fn: fn}

	r.mu.Lock()
	r.entries = append(r.entries, entry)
	r.mu.Unlock()

	return func() {
		if entry.removed.Swap(true) {
			return
		}

		r.mu.Lock()
		defer r.mu.Unlock()
		for i, e := range r.entries {
			if e == entry {
				r.entries = append(r.entries[:i:i], r.entries[i+1:]...)
				return
			}
		}
	}
}

// notify calls every listener registered at call time, in registration
// order. A listener removed by an earlier one in the same round is skipped.
func (r *listenerRegistry) notify(conn *launchpad.WalletConnection) {
	r.mu.RLock()
	snapshot := make([]*listenerEntry, len(r.entries))
	copy(snapshot, r.entries)
	r.mu.RUnlock()

	for _, entry := range snapshot {
		if entry.removed.Load() {
			continue
		}
		var c *launchpad.WalletConnection
		if conn != nil {
			copied := *conn
			c = &copied
		}
		entry.fn(c)
	}
}

func (r *listenerRegistry) len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *listenerRegistry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		e.removed.Store(true)
	}
	r.entries = nil
}
