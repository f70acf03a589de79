package txindex

import (
	"sync"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkt-cash/txindex/errs"
)

// SerialLock serializes all mutations of one Index: a mutex with a
// FIFO waiting queue, a force-reentry path for recursive call sites
// already inside a critical section, and a pending-"add" set used to
// signal a "drain" event once every queued add has finished.
type SerialLock struct {
	mu        sync.Mutex
	held      bool
	waitQ     []chan bool
	destroyed bool

	pendingAdds  map[chainhash.Hash]struct{}
	drainWaiters []func()
}

// NewSerialLock constructs an unheld lock.
func NewSerialLock() *SerialLock {
	return &SerialLock{pendingAdds: make(map[chainhash.Hash]struct{})}
}

// Acquire blocks the calling goroutine until it owns the lock (FIFO
// order among other Acquire callers), then returns a one-shot release
// function.
//
// If force is true, the caller is asserting it is already running
// inside a critical section (e.g. recursive double-spend removal
// invoked from within an in-progress add). Acquire then asserts the
// lock is held and returns a no-op release without queueing. Calling
// with force=true while the lock is not held is a programming error.
func (l *SerialLock) Acquire(force bool) (release func(), err errs.R) {
	if force {
		l.mu.Lock()
		busy := l.held
		l.mu.Unlock()
		if !busy {
			return nil, ErrProgramming.New("force-acquire called while lock not held", nil)
		}
		return func() {}, nil
	}

	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return nil, ErrCancelled.New("lock destroyed", nil)
	}
	if !l.held {
		l.held = true
		l.mu.Unlock()
		return l.release(), nil
	}
	ch := make(chan bool, 1)
	l.waitQ = append(l.waitQ, ch)
	l.mu.Unlock()

	if ok := <-ch; !ok {
		return nil, ErrCancelled.New("queued job cancelled by Destroy", nil)
	}
	return l.release(), nil
}

// release returns a one-shot function that hands the lock to the next
// queued waiter, or marks it free if the queue is empty. Invoking the
// returned function twice is a programming error and fatal.
func (l *SerialLock) release() func() {
	var used bool
	return func() {
		l.mu.Lock()
		if used {
			l.mu.Unlock()
			panic("txindex: lock release token used twice")
		}
		used = true
		if len(l.waitQ) > 0 {
			next := l.waitQ[0]
			l.waitQ = l.waitQ[1:]
			l.mu.Unlock()
			next <- true
			return
		}
		l.held = false
		l.mu.Unlock()
	}
}

// Destroy cancels every queued (not yet running) job and clears the
// pending-add set. Jobs that already hold the lock run to completion
// unaffected; there is no way to interrupt a running critical section.
func (l *SerialLock) Destroy() {
	l.mu.Lock()
	l.destroyed = true
	q := l.waitQ
	l.waitQ = nil
	l.pendingAdds = make(map[chainhash.Hash]struct{})
	l.mu.Unlock()

	for _, ch := range q {
		ch <- false
	}
}

// BeginAdd registers hash in the pending-add set, called when an add
// is about to be queued.
func (l *SerialLock) BeginAdd(hash chainhash.Hash) {
	l.mu.Lock()
	l.pendingAdds[hash] = struct{}{}
	l.mu.Unlock()
}

// EndAdd removes hash from the pending-add set once its add job has run
// to completion (whether accepted, rejected, or errored). drained
// reports whether the set became empty, in which case every one-shot
// OnDrain waiter is returned in fired for the caller to invoke outside
// the lock.
func (l *SerialLock) EndAdd(hash chainhash.Hash) (drained bool, fired []func()) {
	l.mu.Lock()
	delete(l.pendingAdds, hash)
	if len(l.pendingAdds) == 0 {
		drained = true
		fired = l.drainWaiters
		l.drainWaiters = nil
	}
	l.mu.Unlock()
	return drained, fired
}

// OnDrain registers a one-shot callback invoked the next time the
// add-queue (not the full job queue) becomes empty. If it is already
// empty, fn is invoked synchronously.
func (l *SerialLock) OnDrain(fn func()) {
	l.mu.Lock()
	if len(l.pendingAdds) == 0 {
		l.mu.Unlock()
		fn()
		return
	}
	l.drainWaiters = append(l.drainWaiters, fn)
	l.mu.Unlock()
}

// PendingAddCount reports how many add-shaped jobs are currently queued
// or running, for diagnostics/tests.
func (l *SerialLock) PendingAddCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.pendingAdds)
}
