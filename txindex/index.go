package txindex

import (
	"time"

	"github.com/pkt-cash/txindex/coincache"
	"github.com/pkt-cash/txindex/errs"
	"github.com/pkt-cash/txindex/kvstore"
)

// defaultCoinCacheSize is used when Config.CoinCacheSize is unset.
const defaultCoinCacheSize = 10000

// Config configures one Index. The caller hands in an already
// wallet-scoped Backend, and everything this package writes lives
// inside that Backend's own keyspace; there is no package-global
// registry of wallet prefixes.
type Config struct {
	// Backend is the wallet-scoped ordered key-value store. Required.
	Backend kvstore.Backend

	// AddressHasher resolves which of a transaction's addresses belong
	// to the wallet. Required.
	AddressHasher AddressHasher

	// ScriptVerifier, if set, re-verifies inputs whose coin was just
	// resolved (via direct lookup or orphan resolution). A nil verifier
	// disables verification: every resolved input is accepted.
	ScriptVerifier ScriptVerifier

	// EventSink receives post-commit events. May be nil.
	EventSink EventSink

	// CoinCacheSize bounds the Coin Cache. Defaults to 10000.
	CoinCacheSize int

	// Now returns the current wall-clock time, overridable for tests.
	// Defaults to time.Now.
	Now func() time.Time
}

// Index is the per-wallet transaction index: the entry point for the
// add/confirm/unconfirm/remove/zap/abandon state machine and its query
// surface.
type Index struct {
	backend  kvstore.Backend
	cache    *coincache.Cache
	lock     *SerialLock
	addrHash AddressHasher
	verifier ScriptVerifier
	sink     EventSink
	now      func() time.Time

	openSession *session
}

// New constructs an Index over the given configuration.
func New(cfg Config) (*Index, errs.R) {
	if cfg.Backend == nil {
		return nil, ErrInput.New("Config.Backend is required", nil)
	}
	if cfg.AddressHasher == nil {
		return nil, ErrInput.New("Config.AddressHasher is required", nil)
	}
	size := cfg.CoinCacheSize
	if size <= 0 {
		size = defaultCoinCacheSize
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	return &Index{
		backend:  cfg.Backend,
		cache:    coincache.New(size),
		lock:     NewSerialLock(),
		addrHash: cfg.AddressHasher,
		verifier: cfg.ScriptVerifier,
		sink:     cfg.EventSink,
		now:      now,
	}, nil
}

// Close releases the underlying backend and cancels any queued
// operations.
func (idx *Index) Close() errs.R {
	idx.lock.Destroy()
	return idx.backend.Close()
}

func (idx *Index) emit(ev Event) {
	if idx.sink != nil {
		idx.sink(ev)
	}
}
