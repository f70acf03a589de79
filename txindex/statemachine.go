package txindex

import (
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/pkt-cash/txindex/errs"
	"github.com/pkt-cash/txindex/keys"
)

// AddResult is the tri-state outcome of Add.
type AddResult int

const (
	// AddAccepted means the transaction was newly inserted.
	AddAccepted AddResult = iota
	// AddAlreadyPresent means the exact transaction was already
	// recorded: either nothing changed, or its pending record was
	// promoted to confirmed.
	AddAlreadyPresent
	// AddRejected means verification failed or conflict arbitration
	// kept the existing spender; this is not an error.
	AddRejected
)

// Add records a transaction: if a pending copy already exists it is
// promoted to confirmed, otherwise every wallet-owned input is verified
// and arbitrated before the insertion batch is staged and committed.
func (idx *Index) Add(rec *TxRecord, path PathInfo) (AddResult, errs.R) {
	idx.lock.BeginAdd(rec.Hash)
	release, err := idx.lock.Acquire(false)
	defer func() {
		drained, fired := idx.lock.EndAdd(rec.Hash)
		for _, fn := range fired {
			fn()
		}
		if drained {
			idx.emit(Event{Kind: EventDrain})
		}
		if release != nil {
			release()
		}
	}()
	if err != nil {
		return AddRejected, err
	}

	return idx.addLocked(rec, path)
}

func (idx *Index) addLocked(rec *TxRecord, path PathInfo) (AddResult, errs.R) {
	rec.Accounts = path.Accounts()

	alreadyPresent, err := idx.confirmLocked(rec, path)
	if err != nil {
		return AddRejected, err
	}
	if alreadyPresent {
		return AddAlreadyPresent, nil
	}

	// Validate/arbitrate every wallet-owned input before staging any
	// writes. Conflict replacement commits its own batch(es)
	// independently of this add's eventual session.
	for i, txin := range rec.MsgTx.TxIn {
		if _, ok := idx.addrHash.InputAddrHash(&rec.MsgTx, i); !ok {
			continue
		}
		prevHash := txin.PreviousOutPoint.Hash
		prevIdx := txin.PreviousOutPoint.Index

		coin, found, gerr := idx.getCoin(prevHash, prevIdx)
		if gerr != nil {
			return AddRejected, gerr
		}
		if found {
			if idx.verifier != nil {
				if verr := idx.verifier.VerifyInput(&rec.MsgTx, i, coin); verr != nil {
					return AddRejected, nil
				}
			}
			continue
		}

		spenderHash, _, spent, serr := idx.isSpent(prevHash, prevIdx)
		if serr != nil {
			return AddRejected, serr
		}
		if spent {
			accept, cerr := idx.arbitrateAndMaybeReplace(spenderHash, rec, path)
			if cerr != nil {
				return AddRejected, cerr
			}
			if !accept {
				return AddRejected, nil
			}
			// removeRecursive has resurrected this coin; the insertion
			// loop below will find it again via getCoin.
		}
		// Otherwise the prevout is genuinely unknown: the insertion
		// loop below registers an orphan waiter for it.
	}

	s, serr := idx.beginSession()
	if serr != nil {
		return AddRejected, serr
	}

	var failedSpenders []chainhash.Hash

	idx.writeTxRecordIndexes(s, rec)

	for i, txin := range rec.MsgTx.TxIn {
		if _, ok := idx.addrHash.InputAddrHash(&rec.MsgTx, i); !ok {
			continue
		}
		prevHash := txin.PreviousOutPoint.Hash
		prevIdx := txin.PreviousOutPoint.Index

		coin, found, gerr := idx.getCoin(prevHash, prevIdx)
		if gerr != nil {
			s.drop()
			idx.endSession()
			return AddRejected, gerr
		}
		if !found {
			if oerr := idx.addOrphan(s, prevHash, prevIdx, rec.Hash, uint32(i)); oerr != nil {
				s.drop()
				idx.endSession()
				return AddRejected, oerr
			}
			continue
		}

		var accounts []uint32
		if prevTx, ptFound, lerr := idx.getTxRecord(prevHash); lerr != nil {
			s.drop()
			idx.endSession()
			return AddRejected, lerr
		} else if ptFound {
			accounts = prevTx.Accounts
		}

		s.put(keys.Spend(prevHash, prevIdx), serializeOutpoint(rec.Hash, uint32(i)))
		s.put(keys.Undo(rec.Hash, uint32(i)), coin.serialize())
		idx.deleteCoin(s, prevHash, prevIdx, accounts)
	}

	for i, txout := range rec.MsgTx.TxOut {
		if idx.addrHash.IsUnspendable(&rec.MsgTx, i) {
			continue
		}
		if _, ok := idx.addrHash.OutputAddrHash(&rec.MsgTx, i); !ok {
			continue
		}
		coin := &CoinRecord{
			Version:  coinRecordVersion,
			Height:   coinHeightFor(rec),
			Value:    btcutil.Amount(txout.Value),
			PkScript: txout.PkScript,
		}
		resolved, failed, oerr := idx.resolveOrphans(s, rec.Hash, uint32(i), coin)
		if oerr != nil {
			s.drop()
			idx.endSession()
			return AddRejected, oerr
		}
		failedSpenders = append(failedSpenders, failed...)
		if resolved {
			continue
		}
		idx.writeCoin(s, rec.Hash, uint32(i), coin, rec.Accounts)
	}

	if cerr := s.commit(); cerr != nil {
		idx.endSession()
		return AddRejected, cerr
	}
	idx.endSession()

	log.Debugf("added tx [%s] height=%d accounts=%v", rec.Hash, rec.Height, rec.Accounts)
	idx.emit(Event{Kind: EventTx, Tx: rec, PathInfo: path})
	if !rec.IsUnconfirmed() {
		idx.emit(Event{Kind: EventConfirmed, Tx: rec, PathInfo: path})
	}

	// Waiting spenders that failed re-verification against the now-known
	// coin, or lost the claim to it in arbitration, are torn down with
	// their descendants, each removal committing its own batch. The
	// insertion itself has already committed, so an error here still
	// reports the add as accepted.
	for _, spenderHash := range failedSpenders {
		spender, found, lerr := idx.getTxRecord(spenderHash)
		if lerr != nil {
			return AddAccepted, lerr
		}
		if !found {
			continue
		}
		if rerr := idx.removeRecursive(spender); rerr != nil {
			return AddAccepted, rerr
		}
	}
	return AddAccepted, nil
}

// confirmLocked promotes an existing pending record to confirmed when a
// mined copy of the same transaction arrives. It returns
// alreadyPresent=true whenever the caller (Add) should stop and not
// attempt insertion: a record already existed and either nothing
// changed (already confirmed, or incoming still unconfirmed) or this
// call performed the pending-to-confirmed rewrite itself.
// alreadyPresent=false means nothing existed yet and Add should proceed
// normally.
func (idx *Index) confirmLocked(rec *TxRecord, path PathInfo) (alreadyPresent bool, err errs.R) {
	existing, found, lerr := idx.getTxRecord(rec.Hash)
	if lerr != nil {
		return false, lerr
	}
	if !found {
		return false, nil
	}
	if !existing.IsUnconfirmed() {
		return true, nil // already confirmed: no-op
	}
	if rec.IsUnconfirmed() {
		return true, nil // incoming still unconfirmed: no-op
	}

	s, serr := idx.beginSession()
	if serr != nil {
		return false, serr
	}

	newRec := *existing
	newRec.Height = rec.Height
	newRec.Block = rec.Block
	newRec.Index = rec.Index
	newRec.Ts = rec.Ts
	// Ps (wallet-received time) is preserved from the existing record.

	idx.deleteTxRecordIndexes(s, existing)
	idx.writeTxRecordIndexes(s, &newRec)

	for i := range newRec.MsgTx.TxOut {
		coin, cfound, gerr := idx.getCoin(newRec.Hash, uint32(i))
		if gerr != nil {
			s.drop()
			idx.endSession()
			return false, gerr
		}
		if !cfound {
			continue
		}
		idx.writeCoin(s, newRec.Hash, uint32(i), coin.withHeight(uint32(newRec.Height)), newRec.Accounts)
	}

	if cerr := s.commit(); cerr != nil {
		idx.endSession()
		return false, cerr
	}
	idx.endSession()

	log.Debugf("confirmed tx [%s] at height %d", newRec.Hash, newRec.Height)
	idx.emit(Event{Kind: EventTx, Tx: &newRec, PathInfo: path})
	idx.emit(Event{Kind: EventConfirmed, Tx: &newRec, PathInfo: path})
	return true, nil
}

// Unconfirm reverts a confirmed transaction to pending following a
// chain reorganization.
func (idx *Index) Unconfirm(hash chainhash.Hash) (changed bool, err errs.R) {
	release, aerr := idx.lock.Acquire(false)
	if aerr != nil {
		return false, aerr
	}
	defer release()

	tx, found, lerr := idx.getTxRecord(hash)
	if lerr != nil {
		return false, lerr
	}
	if !found {
		return false, ErrNotFound.New("unconfirm: no such transaction", nil)
	}
	if tx.IsUnconfirmed() {
		return false, nil // already unconfirmed: no-op
	}

	s, serr := idx.beginSession()
	if serr != nil {
		return false, serr
	}

	idx.deleteTxRecordIndexes(s, tx)
	newTx := *tx
	newTx.Height = UnconfirmedHeight
	newTx.Ts = 0
	newTx.Index = 0
	newTx.Block = chainhash.Hash{}
	idx.writeTxRecordIndexes(s, &newTx)

	for i := range tx.MsgTx.TxOut {
		coin, cfound, gerr := idx.getCoin(tx.Hash, uint32(i))
		if gerr != nil {
			s.drop()
			idx.endSession()
			return false, gerr
		}
		if !cfound {
			continue
		}
		idx.writeCoin(s, tx.Hash, uint32(i), coin.withHeight(CoinUnconfirmedHeight), tx.Accounts)
	}

	if cerr := s.commit(); cerr != nil {
		idx.endSession()
		return false, cerr
	}
	idx.endSession()
	log.Infof("unconfirmed tx [%s] by rollback", newTx.Hash)
	idx.emit(Event{Kind: EventUnconfirmed, Tx: &newTx})
	return true, nil
}

// removeSingle removes exactly one transaction (no descendants),
// restoring whatever coins its inputs had consumed via their undo
// records. force is true whenever this is invoked from inside
// removeRecursive, where an ancestor frame already holds the serial
// lock.
func (idx *Index) removeSingle(tx *TxRecord, force bool) errs.R {
	release, err := idx.lock.Acquire(force)
	if err != nil {
		return err
	}
	defer release()

	s, serr := idx.beginSession()
	if serr != nil {
		return serr
	}

	for i, txin := range tx.MsgTx.TxIn {
		undoKey := keys.Undo(tx.Hash, uint32(i))
		raw, found, gerr := idx.backend.Get(undoKey)
		if gerr != nil {
			s.drop()
			idx.endSession()
			return ErrStore.New("loading undo record", gerr)
		}
		if !found {
			// No coin was consumed by this input. It may still be waiting
			// as an orphan on its prevout; drop that waiter entry so the
			// list never names a removed transaction.
			if oerr := idx.pruneOrphanWaiter(s, txin.PreviousOutPoint.Hash, txin.PreviousOutPoint.Index, tx.Hash); oerr != nil {
				s.drop()
				idx.endSession()
				return oerr
			}
			continue
		}
		coin, derr := deserializeCoinRecord(raw)
		if derr != nil {
			s.drop()
			idx.endSession()
			return derr
		}
		prevHash := txin.PreviousOutPoint.Hash
		prevIdx := txin.PreviousOutPoint.Index

		var accounts []uint32
		if prevTx, ptFound, lerr := idx.getTxRecord(prevHash); lerr != nil {
			s.drop()
			idx.endSession()
			return lerr
		} else if ptFound {
			accounts = prevTx.Accounts
		}

		idx.writeCoin(s, prevHash, prevIdx, coin, accounts)
		s.del(keys.Spend(prevHash, prevIdx))
		s.del(undoKey)
	}

	for i := range tx.MsgTx.TxOut {
		idx.deleteCoin(s, tx.Hash, uint32(i), tx.Accounts)
	}

	idx.deleteTxRecordIndexes(s, tx)

	if cerr := s.commit(); cerr != nil {
		idx.endSession()
		return cerr
	}
	idx.endSession()
	log.Debugf("removed tx [%s]", tx.Hash)
	idx.emit(Event{Kind: EventRemoveTx, Tx: tx})
	return nil
}

// removeByHashLocked is shared by Remove, Abandon, and Zap. It assumes
// the Serial Lock is already held by the caller.
func (idx *Index) removeByHashLocked(hash chainhash.Hash) (bool, errs.R) {
	tx, found, err := idx.getTxRecord(hash)
	if err != nil {
		return false, err
	}
	if !found {
		// A nonexistent hash is a no-op, not an error: Zap feeds hashes
		// straight off a range scan.
		return false, nil
	}
	if err := idx.removeRecursive(tx); err != nil {
		return false, err
	}
	return true, nil
}

// Remove recursively removes the transaction and every transaction
// that transitively spends one of its outputs.
func (idx *Index) Remove(hash chainhash.Hash) (bool, errs.R) {
	release, err := idx.lock.Acquire(false)
	if err != nil {
		return false, err
	}
	defer release()
	return idx.removeByHashLocked(hash)
}

// Abandon forcibly removes a still-pending transaction, failing if it
// is not pending.
func (idx *Index) Abandon(hash chainhash.Hash) (bool, errs.R) {
	release, err := idx.lock.Acquire(false)
	if err != nil {
		return false, err
	}
	defer release()

	pending, perr := idx.backend.Has(keys.Pending(hash))
	if perr != nil {
		return false, ErrStore.New("checking pending flag", perr)
	}
	if !pending {
		return false, ErrInput.New("abandon: transaction is not pending", nil)
	}
	return idx.removeByHashLocked(hash)
}

// Zap sweeps every still-unconfirmed transaction received more than
// age ago. If account is nil, every account's unconfirmed transactions
// are swept.
func (idx *Index) Zap(account *uint32, age time.Duration) (removed int, err errs.R) {
	release, aerr := idx.lock.Acquire(false)
	if aerr != nil {
		return 0, aerr
	}
	defer release()

	cutoff := idx.now().Add(-age).Unix()

	var start, end []byte
	if account != nil {
		start = keys.AcctTimePrefixAll(*account)
		end = keys.AcctTimePrefixUpTo(*account, cutoff)
	} else {
		start = keys.TimePrefixAll()
		end = keys.TimePrefixUpTo(cutoff)
	}

	it := idx.backend.Iterator(start, end, false)
	var hashes []chainhash.Hash
	for it.Next() {
		var hash chainhash.Hash
		var perr errs.R
		if account != nil {
			_, _, hash, perr = keys.ParseAcctTime(it.Key())
		} else {
			_, hash, perr = keys.ParseTime(it.Key())
		}
		if perr != nil {
			it.Release()
			return 0, perr
		}
		hashes = append(hashes, hash)
	}
	iterErr := it.Error()
	it.Release()
	if iterErr != nil {
		return 0, iterErr
	}

	for _, hash := range hashes {
		tx, found, lerr := idx.getTxRecord(hash)
		if lerr != nil {
			return removed, lerr
		}
		if !found || !tx.IsUnconfirmed() {
			continue
		}
		if _, rerr := idx.removeByHashLocked(hash); rerr != nil {
			return removed, rerr
		}
		removed++
	}
	if removed > 0 {
		log.Debugf("zap swept %d unconfirmed transactions", removed)
	}
	return removed, nil
}
