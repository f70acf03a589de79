package txindex

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkt-cash/txindex/errs"
	"github.com/pkt-cash/txindex/keys"
)

// orphanWaiter is one entry in an orphan list: a wallet-owned input,
// belonging to spenderHash at spenderIdx, waiting on a not-yet-known
// output.
type orphanWaiter struct {
	spenderHash chainhash.Hash
	spenderIdx  uint32
}

func encodeOrphanList(waiters []orphanWaiter) []byte {
	buf := make([]byte, 0, len(waiters)*(chainhash.HashSize+4))
	for _, w := range waiters {
		buf = append(buf, serializeOutpoint(w.spenderHash, w.spenderIdx)...)
	}
	return buf
}

func decodeOrphanList(b []byte) ([]orphanWaiter, errs.R) {
	const entrySize = chainhash.HashSize + 4
	if len(b)%entrySize != 0 {
		return nil, ErrData.New("malformed orphan list", nil)
	}
	n := len(b) / entrySize
	out := make([]orphanWaiter, n)
	for i := 0; i < n; i++ {
		h, idx, err := parseOutpoint(b[i*entrySize : (i+1)*entrySize])
		if err != nil {
			return nil, err
		}
		out[i] = orphanWaiter{spenderHash: h, spenderIdx: idx}
	}
	return out, nil
}

// addOrphan appends (spenderHash, spenderIdx) to the waiter list for
// prevHash:prevVout, reading the current list and writing the
// concatenation back in the same batch.
func (idx *Index) addOrphan(s *session, prevHash chainhash.Hash, prevVout uint32, spenderHash chainhash.Hash, spenderIdx uint32) errs.R {
	key := keys.Orphan(prevHash, prevVout)
	existing, found, err := idx.backend.Get(key)
	if err != nil {
		return ErrStore.New("loading orphan list", err)
	}
	var waiters []orphanWaiter
	if found {
		waiters, err = decodeOrphanList(existing)
		if err != nil {
			return err
		}
	}
	waiters = append(waiters, orphanWaiter{spenderHash: spenderHash, spenderIdx: spenderIdx})
	s.put(key, encodeOrphanList(waiters))
	return nil
}

// pruneOrphanWaiter drops every entry naming spenderHash from the
// waiter list for prevHash:prevVout, deleting the list outright when it
// empties. Used by removeSingle so a torn-down transaction never
// lingers in an orphan list.
func (idx *Index) pruneOrphanWaiter(s *session, prevHash chainhash.Hash, prevVout uint32, spenderHash chainhash.Hash) errs.R {
	key := keys.Orphan(prevHash, prevVout)
	raw, found, err := idx.backend.Get(key)
	if err != nil {
		return ErrStore.New("loading orphan list", err)
	}
	if !found {
		return nil
	}
	waiters, derr := decodeOrphanList(raw)
	if derr != nil {
		return derr
	}
	kept := waiters[:0]
	for _, w := range waiters {
		if w.spenderHash != spenderHash {
			kept = append(kept, w)
		}
	}
	if len(kept) == len(waiters) {
		return nil
	}
	if len(kept) == 0 {
		s.del(key)
		return nil
	}
	s.put(key, encodeOrphanList(kept))
	return nil
}

// resolveOrphans is called once output (hash, vout) is known to be a
// wallet-owned coin, and considers every spender waiting on it in list
// order. Returns resolved=true if some waiter successfully took
// ownership of the coin, in which case the caller must skip writing
// c/<hash>/<vout> for this output. Only one waiter can own the coin:
// when several pass verification they are competing double-spends, and
// the usual arbitration rule picks the survivor. Waiters that fail
// verification or lose arbitration are returned in losers rather than
// removed here: removal commits its own batch per recursion level, and
// exactly one session may be open at a time, so the caller tears them
// down only after the insertion batch has committed.
func (idx *Index) resolveOrphans(s *session, hash chainhash.Hash, vout uint32, coin *CoinRecord) (resolved bool, losers []chainhash.Hash, err errs.R) {
	key := keys.Orphan(hash, vout)
	raw, found, gerr := idx.backend.Get(key)
	if gerr != nil {
		return false, nil, ErrStore.New("loading orphan list", gerr)
	}
	if !found {
		return false, nil, nil
	}
	waiters, derr := decodeOrphanList(raw)
	if derr != nil {
		return false, nil, derr
	}

	var claimant *orphanWaiter
	var claimantRec *TxRecord
	for i := range waiters {
		w := waiters[i]
		spender, spenderFound, lerr := idx.getTxRecord(w.spenderHash)
		if lerr != nil {
			return false, losers, lerr
		}
		if !spenderFound {
			// The waiting spender no longer exists (already removed by
			// an earlier conflict). Nothing to attach it to.
			continue
		}
		if int(w.spenderIdx) >= len(spender.MsgTx.TxIn) {
			return false, losers, ErrData.New("orphan waiter references an out-of-range input", nil)
		}

		if idx.verifier != nil {
			if verr := idx.verifier.VerifyInput(&spender.MsgTx, int(w.spenderIdx), coin); verr != nil {
				losers = append(losers, w.spenderHash)
				continue
			}
		}

		if claimant == nil {
			claimant, claimantRec = &waiters[i], spender
			continue
		}
		if arbitrate(claimantRec, spender) == replaceExisting {
			losers = append(losers, claimant.spenderHash)
			idx.emitConflictAfterCommit(s, spender, claimantRec)
			claimant, claimantRec = &waiters[i], spender
		} else {
			losers = append(losers, w.spenderHash)
			idx.emitConflictAfterCommit(s, claimantRec, spender)
		}
	}

	if claimant != nil {
		// The coin becomes an undo record for the winning input, and the
		// spend is recorded; no c/ record is ever written for this output.
		s.put(keys.Spend(hash, vout), serializeOutpoint(claimant.spenderHash, claimant.spenderIdx))
		s.put(keys.Undo(claimant.spenderHash, claimant.spenderIdx), coin.serialize())
		resolved = true
	}

	s.del(key)
	return resolved, losers, nil
}

func (idx *Index) emitConflictAfterCommit(s *session, winner, loser *TxRecord) {
	s.afterCommit(func() {
		idx.emit(Event{Kind: EventConflict, Tx: winner, Replaced: loser})
	})
}
