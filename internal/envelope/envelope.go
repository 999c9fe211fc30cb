// Package envelope implements the double-buffered concurrency wrapper
// around the topic trie: a writer-owned mutable copy and a reader-visible
// immutable copy, kept in sync by replaying each operation onto both after
// every publish. Readers never take a lock and are never blocked by a
// writer; a writer is serialized against other writers by a mutex and may
// briefly stall waiting for stragglers still holding a handle to the
// buffer it is about to reuse.
package envelope

import (
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/odin-mesh/routecore/internal/subscription"
	"github.com/odin-mesh/routecore/internal/topic"
	"github.com/odin-mesh/routecore/internal/trie"
)

// Envelope is the public, thread-safe entry point onto a topic trie.
type Envelope struct {
	writerMu sync.Mutex  // serializes writers; held across one full add/remove op
	writerAt int32        // index (0/1) of the buffer the writer currently mutates first
	current  atomic.Int32 // index of the buffer visible to readers

	bufs         [2]*trie.Tree
	epochReaders [2]atomic.Int64 // active-reader count per buffer index
}

// New returns an Envelope with both buffers empty.
func New() *Envelope {
	e := &Envelope{writerAt: 1}
	e.bufs[0] = trie.New()
	e.bufs[1] = trie.New()
	e.current.Store(0)
	return e
}

// AddSubscription is fire-and-forget: it never fails once filter has
// parsed successfully.
func (e *Envelope) AddSubscription(filter topic.Filter, clientID subscription.ClientID, qos subscription.QoS) {
	e.write(addOp{filter: filter, clientID: clientID, qos: qos})
}

// RemoveSubscription is idempotent: removing an absent subscription is a
// no-op.
func (e *Envelope) RemoveSubscription(filter topic.Filter, clientID subscription.ClientID) {
	e.write(removeOp{filter: filter, clientID: clientID})
}

// SubscriberCount returns the current reader snapshot's upper-bound
// subscriber count, for exporting as a gauge.
func (e *Envelope) SubscriberCount() uint64 {
	idx := e.acquireReader()
	defer e.epochReaders[idx].Add(-1)
	return e.bufs[idx].SubscriberCount()
}

// GetSubscriptions returns the subscribers matching name as observed by a
// lock-free reader handle on the current published snapshot. The returned
// slice is freshly owned by the caller; the reader handle is released
// before this call returns.
func (e *Envelope) GetSubscriptions(name topic.Name) []subscription.Subscriber {
	idx := e.acquireReader()
	defer e.epochReaders[idx].Add(-1)
	return e.bufs[idx].Match(name)
}

// acquireReader returns the buffer index currently safe to read from,
// having registered this reader's presence on that index. The retry loop
// handles the rare race where current flips between the initial load and
// the increment becoming visible: the reader simply moves to whichever
// index is current once its registration is confirmed stable.
func (e *Envelope) acquireReader() int32 {
	for {
		idx := e.current.Load()
		e.epochReaders[idx].Add(1)
		if e.current.Load() == idx {
			return idx
		}
		e.epochReaders[idx].Add(-1)
	}
}

// write applies one operation to both buffers, publishing the update
// between steps so new readers observe it without ever blocking.
func (e *Envelope) write(op operation) {
	e.writerMu.Lock()
	defer e.writerMu.Unlock()

	writerIdx := e.writerAt
	op.apply(e.bufs[writerIdx])

	// Publish: readers landing after this point see the just-updated tree.
	e.current.Store(writerIdx)

	// The buffer that was reader-visible until now is stale by exactly
	// this one operation. Wait for any reader that grabbed a handle to it
	// before the flip to finish, then catch it up so both copies converge.
	staleIdx := 1 - writerIdx
	e.drain(staleIdx)
	op.apply(e.bufs[staleIdx])

	e.writerAt = staleIdx
}

// drain blocks until no reader holds an active handle to buffer idx. Under
// normal load this returns immediately; it only stalls if some reader is
// unusually slow to release its handle.
func (e *Envelope) drain(idx int32) {
	for e.epochReaders[idx].Load() != 0 {
		runtime.Gosched()
	}
}
