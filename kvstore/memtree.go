package kvstore

import (
	"bytes"
	"sort"
	"sync"

	"github.com/google/btree"
	"github.com/pkt-cash/txindex/errs"
)

// kvItem is a google/btree.Item wrapping one key/value pair. btree orders
// items by Less, so we compare keys byte-lexicographically -- exactly the
// ordering the real backing store (and the key schema) assumes.
type kvItem struct {
	key, value []byte
}

func (a *kvItem) Less(than btree.Item) bool {
	b := than.(*kvItem)
	return bytes.Compare(a.key, b.key) < 0
}

// MemTree is an in-memory ordered Backend for tests.
type MemTree struct {
	mu   sync.RWMutex
	tree *btree.BTree
}

// NewMemTree constructs an empty in-memory backend.
func NewMemTree() *MemTree {
	return &MemTree{tree: btree.New(32)}
}

func (m *MemTree) Get(key []byte) ([]byte, bool, errs.R) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	it := m.tree.Get(&kvItem{key: key})
	if it == nil {
		return nil, false, nil
	}
	v := it.(*kvItem).value
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (m *MemTree) Has(key []byte) (bool, errs.R) {
	_, found, err := m.Get(key)
	return found, err
}

func (m *MemTree) Iterator(start, end []byte, reverse bool) Iterator {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var keys [][]byte
	var values [][]byte
	collect := func(it btree.Item) bool {
		kv := it.(*kvItem)
		keys = append(keys, kv.key)
		values = append(values, kv.value)
		return true
	}
	switch {
	case end == nil:
		m.tree.AscendGreaterOrEqual(&kvItem{key: start}, collect)
	default:
		m.tree.AscendRange(&kvItem{key: start}, &kvItem{key: end}, collect)
	}
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
			values[i], values[j] = values[j], values[i]
		}
	}
	return &memIterator{keys: keys, values: values, idx: -1}
}

func (m *MemTree) NewBatch() Batch {
	return &memBatch{tree: m}
}

func (m *MemTree) Close() errs.R { return nil }

type memIterator struct {
	keys, values [][]byte
	idx          int
}

func (it *memIterator) Next() bool {
	it.idx++
	return it.idx < len(it.keys)
}
func (it *memIterator) Key() []byte   { return it.keys[it.idx] }
func (it *memIterator) Value() []byte { return it.values[it.idx] }
func (it *memIterator) Error() errs.R { return nil }
func (it *memIterator) Release()      {}

type memOp struct {
	del        bool
	key, value []byte
}

type memBatch struct {
	tree *MemTree
	ops  []memOp
}

func (b *memBatch) Put(key, value []byte) {
	k := append([]byte(nil), key...)
	v := append([]byte(nil), value...)
	b.ops = append(b.ops, memOp{key: k, value: v})
}

func (b *memBatch) Delete(key []byte) {
	k := append([]byte(nil), key...)
	b.ops = append(b.ops, memOp{del: true, key: k})
}

func (b *memBatch) Len() int { return len(b.ops) }

func (b *memBatch) Commit() errs.R {
	b.tree.mu.Lock()
	defer b.tree.mu.Unlock()
	for _, op := range b.ops {
		if op.del {
			b.tree.tree.Delete(&kvItem{key: op.key})
		} else {
			b.tree.tree.ReplaceOrInsert(&kvItem{key: op.key, value: op.value})
		}
	}
	b.ops = nil
	return nil
}

func (b *memBatch) Discard() {
	b.ops = nil
}

// sortedKeys is a small helper used by tests that want to assert on the
// full set of keys present, independent of iteration order.
func (m *MemTree) sortedKeys() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []string
	m.tree.Ascend(func(it btree.Item) bool {
		out = append(out, string(it.(*kvItem).key))
		return true
	})
	sort.Strings(out)
	return out
}
