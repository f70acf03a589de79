// Package kvstore defines the backing-store contract the transaction
// index relies on: atomic batched writes, ordered prefix iteration, and
// point reads over a single flat keyspace. The index's hierarchical key
// schema (role-prefix + slash-delimited fields) takes the place of
// nested buckets or namespaces.
//
// Two implementations are provided: a production one backed by
// goleveldb (leveldb.go) and an in-memory one backed by a google/btree
// ordered tree (memtree.go), used by tests. The demo binary opens the
// goleveldb one.
package kvstore

import "github.com/pkt-cash/txindex/errs"

// Backend is the ordered key-value store this index is built on. Keys
// are ASCII and compare byte-lexicographically; that ordering is what
// makes the key schema's zero-padded decimal fields sort numerically.
type Backend interface {
	// Get returns the value for key, or found=false if it is absent.
	Get(key []byte) (value []byte, found bool, err errs.R)

	// Has reports whether key is present without fetching its value.
	Has(key []byte) (bool, errs.R)

	// Iterator returns a prefix/range iterator over [start, end). A nil
	// end means "no upper bound". If reverse is true, iteration starts
	// at the key just below end and moves toward start.
	Iterator(start, end []byte, reverse bool) Iterator

	// NewBatch opens a new write batch. The caller must Commit or
	// Discard it; only one batch may be outstanding against a Backend
	// at a time (enforced by txindex's Serial Lock, not by Backend
	// itself — Backend is a dumb store).
	NewBatch() Batch

	// Close releases any resources held by the backend.
	Close() errs.R
}

// Iterator walks a key range in the order requested when it was opened.
type Iterator interface {
	// Next advances to the next entry, returning false when exhausted
	// or on error (check Error() to distinguish the two).
	Next() bool
	Key() []byte
	Value() []byte
	Error() errs.R
	Release()
}

// Batch stages puts and deletes for one atomic write. Nothing is visible
// to readers until Commit succeeds.
type Batch interface {
	Put(key, value []byte)
	Delete(key []byte)

	// Commit atomically applies every staged mutation and closes the
	// batch. The batch must not be reused afterward.
	Commit() errs.R

	// Discard abandons every staged mutation and closes the batch.
	Discard()

	// Len reports the number of staged operations.
	Len() int
}

// PrefixUpperBound returns the exclusive upper bound for a scan over
// every key beginning with prefix: append a sentinel byte ('~', 0x7E)
// known to sort after every byte this schema ever uses in a key (ASCII
// digits, lowercase hex, and the '/' delimiter are all below 0x7E).
func PrefixUpperBound(prefix []byte) []byte {
	out := make([]byte, len(prefix)+1)
	copy(out, prefix)
	out[len(prefix)] = '~'
	return out
}
