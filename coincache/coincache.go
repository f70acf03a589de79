// Package coincache implements a bounded LRU mapping an outpoint to its
// serialized coin record. Entries hold the exact bytes persisted to the
// store, not a decoded object, so readers observe precisely what was
// written. It is write-through and only ever updated from a post-commit
// hook: a dropped batch must never leak a value into the cache.
package coincache

import (
	"fmt"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	lru "github.com/hashicorp/golang-lru/v2"
)

// outpointKey is the textual "<hash>/<vout>" form.
type outpointKey string

func key(hash chainhash.Hash, vout uint32) outpointKey {
	return outpointKey(fmt.Sprintf("%s/%d", hash.String(), vout))
}

// Cache is a bounded, write-through coin cache. The zero value is not
// usable; construct with New.
type Cache struct {
	lru *lru.Cache[outpointKey, []byte]
}

// New constructs a Cache holding at most size serialized coin records.
func New(size int) *Cache {
	c, err := lru.New[outpointKey, []byte](size)
	if err != nil {
		// Only returns an error for size <= 0, which is a programming
		// error in this module's callers (txindex.New substitutes its
		// default for a non-positive Config.CoinCacheSize).
		panic(err)
	}
	return &Cache{lru: c}
}

// Get returns the cached serialized coin record for (hash, vout), if
// present.
func (c *Cache) Get(hash chainhash.Hash, vout uint32) ([]byte, bool) {
	return c.lru.Get(key(hash, vout))
}

// Put write-through caches the serialized coin record for (hash, vout).
// Callers must only invoke this after the batch that produced the
// record has durably committed.
func (c *Cache) Put(hash chainhash.Hash, vout uint32, serialized []byte) {
	cp := make([]byte, len(serialized))
	copy(cp, serialized)
	c.lru.Add(key(hash, vout), cp)
}

// Evict removes any cached entry for (hash, vout), used when a coin is
// spent or removed.
func (c *Cache) Evict(hash chainhash.Hash, vout uint32) {
	c.lru.Remove(key(hash, vout))
}

// Len reports the number of entries currently cached.
func (c *Cache) Len() int {
	return c.lru.Len()
}
