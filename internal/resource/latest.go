package resource

import (
	"context"
	"sync"
)

// Latest makes sure only the most recent of a series of fetches publishes its
// result. Beginning a fetch cancels the one before it. The zero value is ready
// to use.
type Latest struct {
	mu     sync.Mutex
	seq    uint64
	cancel context.CancelFunc
}

// Ticket identifies one fetch started with Begin.
type Ticket struct {
	owner *Latest
	seq   uint64
}

// Begin starts a new fetch and cancels the previous one. The returned context
// should be used for the fetch itself.
func (l *Latest) Begin(ctx context.Context) (context.Context, Ticket) {
	child, cancel := context.WithCancel(ctx)

	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
	}
	l.seq++
	l.cancel = cancel
	return child, Ticket{owner: l, seq: l.seq}
}

// Current reports whether t is still the most recent fetch.
func (t Ticket) Current() bool {
	if t.owner == nil {
		return false
	}
	t.owner.mu.Lock()
	defer t.owner.mu.Unlock()
	return t.owner.seq == t.seq
}

// Seq returns the fetch sequence number; later fetches have larger numbers.
func (t Ticket) Seq() uint64 { return t.seq }

// Stop cancels the outstanding fetch and invalidates every ticket.
func (l *Latest) Stop() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.cancel != nil {
		l.cancel()
		l.cancel = nil
	}
	l.seq++
}
