package txindex

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkt-cash/txindex/errs"
	"github.com/pkt-cash/txindex/keys"
)

// getTxRecord reads and decodes t/<hash>. Transaction records are not
// cached (only coins are); this always hits the backend.
func (idx *Index) getTxRecord(hash chainhash.Hash) (*TxRecord, bool, errs.R) {
	b, found, err := idx.backend.Get(keys.Tx(hash))
	if err != nil {
		return nil, false, ErrStore.New("loading tx record", err)
	}
	if !found {
		return nil, false, nil
	}
	rec, derr := deserializeTxRecord(hash, b)
	if derr != nil {
		return nil, false, derr
	}
	return rec, true, nil
}

// getCoin reads a coin record, preferring the coin cache.
func (idx *Index) getCoin(hash chainhash.Hash, vout uint32) (*CoinRecord, bool, errs.R) {
	if cached, ok := idx.cache.Get(hash, vout); ok {
		rec, err := deserializeCoinRecord(cached)
		if err != nil {
			return nil, false, err
		}
		return rec, true, nil
	}
	b, found, err := idx.backend.Get(keys.Coin(hash, vout))
	if err != nil {
		return nil, false, ErrStore.New("loading coin", err)
	}
	if !found {
		return nil, false, nil
	}
	rec, derr := deserializeCoinRecord(b)
	if derr != nil {
		return nil, false, derr
	}
	return rec, true, nil
}

// isSpent reports whether a spend record exists for (hash, vout) and,
// if so, returns the spender outpoint it names.
func (idx *Index) isSpent(hash chainhash.Hash, vout uint32) (spenderHash chainhash.Hash, spenderIdx uint32, spent bool, err errs.R) {
	b, found, gerr := idx.backend.Get(keys.Spend(hash, vout))
	if gerr != nil {
		return chainhash.Hash{}, 0, false, ErrStore.New("loading spend record", gerr)
	}
	if !found {
		return chainhash.Hash{}, 0, false, nil
	}
	sh, si, perr := parseOutpoint(b)
	if perr != nil {
		return chainhash.Hash{}, 0, false, perr
	}
	return sh, si, true, nil
}

func serializeOutpoint(hash chainhash.Hash, index uint32) []byte {
	b := make([]byte, chainhash.HashSize+4)
	copy(b, hash[:])
	b[chainhash.HashSize] = byte(index)
	b[chainhash.HashSize+1] = byte(index >> 8)
	b[chainhash.HashSize+2] = byte(index >> 16)
	b[chainhash.HashSize+3] = byte(index >> 24)
	return b
}

func parseOutpoint(b []byte) (chainhash.Hash, uint32, errs.R) {
	if len(b) != chainhash.HashSize+4 {
		return chainhash.Hash{}, 0, ErrData.New("malformed outpoint value", nil)
	}
	var h chainhash.Hash
	copy(h[:], b[:chainhash.HashSize])
	idx := uint32(b[chainhash.HashSize]) | uint32(b[chainhash.HashSize+1])<<8 |
		uint32(b[chainhash.HashSize+2])<<16 | uint32(b[chainhash.HashSize+3])<<24
	return h, idx, nil
}

// writeTxRecordIndexes stages the global + per-account transaction
// indexes for rec: t/, the pending-or-height index, the time index, and
// every T/P/H/M mirror for rec.Accounts. It assumes rec does not yet
// have these written; confirm/unconfirm transitions delete the old
// index form first and then rewrite.
func (idx *Index) writeTxRecordIndexes(s *session, rec *TxRecord) {
	s.put(keys.Tx(rec.Hash), rec.serialize())
	if rec.IsUnconfirmed() {
		s.put(keys.Pending(rec.Hash), nil)
	} else {
		s.put(keys.Height(rec.Height, rec.Hash), nil)
	}
	s.put(keys.Time(rec.Ps, rec.Hash), nil)

	for _, acct := range rec.Accounts {
		s.put(keys.AcctTx(acct, rec.Hash), nil)
		if rec.IsUnconfirmed() {
			s.put(keys.AcctPending(acct, rec.Hash), nil)
		} else {
			s.put(keys.AcctHeight(acct, rec.Height, rec.Hash), nil)
		}
		s.put(keys.AcctTime(acct, rec.Ps, rec.Hash), nil)
	}
}

// deleteTxRecordIndexes is the exact inverse of writeTxRecordIndexes,
// used by removeSingle.
func (idx *Index) deleteTxRecordIndexes(s *session, rec *TxRecord) {
	s.del(keys.Tx(rec.Hash))
	if rec.IsUnconfirmed() {
		s.del(keys.Pending(rec.Hash))
	} else {
		s.del(keys.Height(rec.Height, rec.Hash))
	}
	s.del(keys.Time(rec.Ps, rec.Hash))

	for _, acct := range rec.Accounts {
		s.del(keys.AcctTx(acct, rec.Hash))
		if rec.IsUnconfirmed() {
			s.del(keys.AcctPending(acct, rec.Hash))
		} else {
			s.del(keys.AcctHeight(acct, rec.Height, rec.Hash))
		}
		s.del(keys.AcctTime(acct, rec.Ps, rec.Hash))
	}
}

// writeCoin stages c/<hash>/<vout> and its C/<acct>/... mirrors, and
// registers a post-commit hook that populates the coin cache -- the
// cache is never touched before commit, so a dropped batch cannot
// poison it.
func (idx *Index) writeCoin(s *session, hash chainhash.Hash, vout uint32, rec *CoinRecord, accounts []uint32) {
	ser := rec.serialize()
	s.put(keys.Coin(hash, vout), ser)
	for _, acct := range accounts {
		s.put(keys.AcctCoin(acct, hash, vout), nil)
	}
	s.afterCommit(func() {
		idx.cache.Put(hash, vout, ser)
	})
}

// deleteCoin is the inverse of writeCoin, evicting the cache entry only
// after commit.
func (idx *Index) deleteCoin(s *session, hash chainhash.Hash, vout uint32, accounts []uint32) {
	s.del(keys.Coin(hash, vout))
	for _, acct := range accounts {
		s.del(keys.AcctCoin(acct, hash, vout))
	}
	s.afterCommit(func() {
		idx.cache.Evict(hash, vout)
	})
}

// coinHeightFor returns the CoinRecord.Height sentinel appropriate for
// rec's confirmation state.
func coinHeightFor(rec *TxRecord) uint32 {
	if rec.IsUnconfirmed() {
		return CoinUnconfirmedHeight
	}
	return uint32(rec.Height)
}
