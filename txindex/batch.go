package txindex

import (
	"github.com/pkt-cash/txindex/errs"
	"github.com/pkt-cash/txindex/kvstore"
)

// session is the staging area for one logical mutation's puts and
// deletes, committed or dropped atomically. Exactly one session may be
// open at a time per Index; Index enforces that invariant in
// beginSession/endSession below.
type session struct {
	batch    kvstore.Batch
	onCommit []func() // deferred post-commit hooks: cache updates, events
}

// put stages a write.
func (s *session) put(key, value []byte) {
	s.batch.Put(key, value)
}

// del stages a delete.
func (s *session) del(key []byte) {
	s.batch.Delete(key)
}

// afterCommit registers a hook to run only once this session's batch
// has durably committed. This is how the coin cache and event sink stay
// in sync with what was actually persisted: a dropped session never
// runs these.
func (s *session) afterCommit(fn func()) {
	s.onCommit = append(s.onCommit, fn)
}

// commit atomically applies every staged mutation, then runs the
// post-commit hooks in registration order.
func (s *session) commit() errs.R {
	if err := s.batch.Commit(); err != nil {
		return err
	}
	for _, fn := range s.onCommit {
		fn()
	}
	return nil
}

// drop discards every staged mutation; no post-commit hook runs.
func (s *session) drop() {
	s.batch.Discard()
}

// beginSession opens a new batch session against idx's backend. Calling
// this while a session is already open is a programming error: the
// serial lock is supposed to make that impossible (only one mutation
// runs at a time, and recursive removal always commits a child batch
// before returning), so reaching this path means a caller bypassed the
// lock.
func (idx *Index) beginSession() (*session, errs.R) {
	if idx.openSession != nil {
		return nil, ErrProgramming.New("batch session already open", nil)
	}
	s := &session{batch: idx.backend.NewBatch()}
	idx.openSession = s
	return s, nil
}

// endSession clears the open-session marker. Called after both commit
// and drop, successful or not: once a session is closed the caller must
// not touch its staged keys again.
func (idx *Index) endSession() {
	idx.openSession = nil
}
