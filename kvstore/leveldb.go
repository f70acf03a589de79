package kvstore

import (
	"github.com/pkt-cash/txindex/errs"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDB is the production Backend, an ordered on-disk store.
type LevelDB struct {
	db *leveldb.DB
}

// OpenLevelDB opens (creating if necessary) a LevelDB-backed store at
// path.
func OpenLevelDB(path string) (*LevelDB, errs.R) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, errs.ErrStore.New("opening leveldb store at "+path, err)
	}
	return &LevelDB{db: db}, nil
}

func (l *LevelDB) Get(key []byte) ([]byte, bool, errs.R) {
	v, err := l.db.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errs.ErrStore.New("get", err)
	}
	return v, true, nil
}

func (l *LevelDB) Has(key []byte) (bool, errs.R) {
	ok, err := l.db.Has(key, nil)
	if err != nil {
		return false, errs.ErrStore.New("has", err)
	}
	return ok, nil
}

func (l *LevelDB) Iterator(start, end []byte, reverse bool) Iterator {
	rng := &util.Range{Start: start, Limit: end}
	it := l.db.NewIterator(rng, nil)
	return &levelIterator{it: it, reverse: reverse, started: false}
}

func (l *LevelDB) NewBatch() Batch {
	return &levelBatch{db: l.db, batch: new(leveldb.Batch)}
}

func (l *LevelDB) Close() errs.R {
	if err := l.db.Close(); err != nil {
		return errs.ErrStore.New("close", err)
	}
	return nil
}

type levelIterator struct {
	it      iterator.Iterator
	reverse bool
	started bool
}

func (it *levelIterator) Next() bool {
	if !it.started {
		it.started = true
		if it.reverse {
			return it.it.Last()
		}
		return it.it.First()
	}
	if it.reverse {
		return it.it.Prev()
	}
	return it.it.Next()
}

func (it *levelIterator) Key() []byte   { return it.it.Key() }
func (it *levelIterator) Value() []byte { return it.it.Value() }
func (it *levelIterator) Release()      { it.it.Release() }
func (it *levelIterator) Error() errs.R {
	if err := it.it.Error(); err != nil {
		return errs.ErrStore.New("iterator", err)
	}
	return nil
}

type levelBatch struct {
	db    *leveldb.DB
	batch *leveldb.Batch
}

func (b *levelBatch) Put(key, value []byte) { b.batch.Put(key, value) }
func (b *levelBatch) Delete(key []byte)     { b.batch.Delete(key) }
func (b *levelBatch) Len() int              { return b.batch.Len() }

func (b *levelBatch) Commit() errs.R {
	if err := b.db.Write(b.batch, nil); err != nil {
		return errs.ErrStore.New("commit", err)
	}
	return nil
}

func (b *levelBatch) Discard() {
	b.batch.Reset()
}
