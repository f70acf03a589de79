package txindex

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkt-cash/txindex/errs"
)

// arbitrationResult is the outcome of arbitrating a double-spend.
type arbitrationResult int

const (
	keepExisting arbitrationResult = iota
	replaceExisting
)

// arbitrate decides which of two transactions spending the same prevout
// survives: existing currently holds the spend record, ref newly
// arrived. A confirmed spend always beats an unconfirmed one. Between
// two confirmed spends the one with the earlier block time wins, since
// consensus order rather than wallet-local arrival should decide after
// a reorg. Between two unconfirmed spends the later wallet-received
// time wins.
func arbitrate(existing, ref *TxRecord) arbitrationResult {
	existingConfirmed := !existing.IsUnconfirmed()
	refConfirmed := !ref.IsUnconfirmed()

	switch {
	case existingConfirmed && !refConfirmed:
		return keepExisting
	case existingConfirmed && refConfirmed:
		if ref.Ts >= existing.Ts {
			return keepExisting
		}
		return replaceExisting
	case !existingConfirmed && refConfirmed:
		return replaceExisting
	default: // both unconfirmed
		if ref.Ps > existing.Ps {
			return replaceExisting
		}
		return keepExisting
	}
}

// arbitrateAndMaybeReplace is invoked from Add's verification step when
// a prevout ref wants to spend is already marked spent by
// existingSpenderHash. It returns accept=true if ref should proceed to
// claim the prevout -- which requires removeRecursive to have already
// torn down the loser and everything that (transitively) spent its
// outputs.
func (idx *Index) arbitrateAndMaybeReplace(existingSpenderHash chainhash.Hash, ref *TxRecord, path PathInfo) (accept bool, err errs.R) {
	existing, found, lerr := idx.getTxRecord(existingSpenderHash)
	if lerr != nil {
		return false, lerr
	}
	if !found {
		return false, ErrData.New("spend record references a nonexistent transaction", nil)
	}

	if arbitrate(existing, ref) == keepExisting {
		return false, nil
	}

	log.Warnf("conflict: [%s] replaces [%s] on a shared prevout", ref.Hash, existing.Hash)
	if rerr := idx.removeRecursive(existing); rerr != nil {
		return false, rerr
	}
	idx.emit(Event{Kind: EventConflict, Tx: ref, PathInfo: path, Replaced: existing})
	return true, nil
}

// removeRecursive walks tx's outputs depth-first, removing every
// transaction that (transitively) spends one of them before removing tx
// itself. Each recursion level commits its own batch, so a failure
// partway leaves already-removed descendants gone; a later traversal
// converges because removal is idempotent.
//
// This is always called while the serial lock is already held by an
// ancestor frame (the Add that triggered conflict resolution, or a
// shallower removeRecursive call), so every removal here force-reenters
// the lock rather than queueing behind itself.
func (idx *Index) removeRecursive(tx *TxRecord) errs.R {
	for i := range tx.MsgTx.TxOut {
		spenderHash, _, spent, err := idx.isSpent(tx.Hash, uint32(i))
		if err != nil {
			return err
		}
		if !spent {
			continue
		}
		spender, found, lerr := idx.getTxRecord(spenderHash)
		if lerr != nil {
			return lerr
		}
		if !found {
			return ErrData.New("spend record references a nonexistent spender", nil)
		}
		if err := idx.removeRecursive(spender); err != nil {
			return err
		}
	}
	return idx.removeSingle(tx, true)
}
