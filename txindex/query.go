package txindex

import (
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcutil"
	"github.com/pkt-cash/txindex/errs"
	"github.com/pkt-cash/txindex/keys"
	"github.com/pkt-cash/txindex/kvstore"
)

// RangeOpts bounds a height or time range query.
type RangeOpts struct {
	// Start and End bound the range, inclusive of Start and exclusive of
	// End. End applies only when HasEnd is true; otherwise the range is
	// unbounded above.
	Start, End int64
	HasEnd     bool
	// Limit caps the number of results; zero means unbounded.
	Limit int
	// Reverse iterates from End down to Start instead of Start up to End.
	Reverse bool
}

// GetHistory returns every transaction touching acct, in height order
// (confirmed transactions only; see GetUnconfirmed for pending ones).
func (idx *Index) GetHistory(acct uint32, opts RangeOpts) ([]*TxRecord, errs.R) {
	start, end := acctHeightBounds(acct, opts)
	it := idx.backend.Iterator(start, end, opts.Reverse)
	defer it.Release()

	var out []*TxRecord
	for it.Next() {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		_, _, hash, perr := keys.ParseAcctHeight(it.Key())
		if perr != nil {
			return nil, perr
		}
		rec, found, lerr := idx.getTxRecord(hash)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, ErrData.New("history index references a nonexistent transaction", nil)
		}
		out = append(out, rec)
	}
	if ierr := it.Error(); ierr != nil {
		return nil, ierr
	}
	return out, nil
}

func acctHeightBounds(acct uint32, opts RangeOpts) (start, end []byte) {
	if !opts.HasEnd && opts.Start == 0 {
		return keys.AcctHeightPrefixAll(acct), kvstore.PrefixUpperBound(keys.AcctHeightPrefixAll(acct))
	}
	start = keys.AcctHeight(acct, int32(opts.Start), chainhash.Hash{})
	if opts.HasEnd {
		end = keys.AcctHeight(acct, int32(opts.End), chainhash.Hash{})
	} else {
		end = kvstore.PrefixUpperBound(keys.AcctHeightPrefixAll(acct))
	}
	return start, end
}

// GetUnconfirmed returns every still-pending transaction touching acct,
// ordered by transaction hash (the P/ index key), not by wallet-received
// time.
func (idx *Index) GetUnconfirmed(acct uint32) ([]*TxRecord, errs.R) {
	prefix := keys.AcctPendingPrefixAll(acct)
	it := idx.backend.Iterator(prefix, kvstore.PrefixUpperBound(prefix), false)
	defer it.Release()

	var out []*TxRecord
	for it.Next() {
		_, hash, perr := keys.ParseAcctPending(it.Key())
		if perr != nil {
			return nil, perr
		}
		rec, found, lerr := idx.getTxRecord(hash)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, ErrData.New("pending index references a nonexistent transaction", nil)
		}
		out = append(out, rec)
	}
	if ierr := it.Error(); ierr != nil {
		return nil, ierr
	}
	return out, nil
}

// GetCoins returns every unspent output currently owned by acct.
func (idx *Index) GetCoins(acct uint32) ([]Coin, errs.R) {
	prefix := keys.AcctCoinPrefixAll(acct)
	it := idx.backend.Iterator(prefix, kvstore.PrefixUpperBound(prefix), false)
	defer it.Release()

	var out []Coin
	for it.Next() {
		_, hash, vout, perr := keys.ParseAcctCoin(it.Key())
		if perr != nil {
			return nil, perr
		}
		coin, found, gerr := idx.getCoin(hash, vout)
		if gerr != nil {
			return nil, gerr
		}
		if !found {
			return nil, ErrData.New("account coin index references a nonexistent coin", nil)
		}
		out = append(out, Coin{Hash: hash, Vout: vout, Record: *coin})
	}
	if ierr := it.Error(); ierr != nil {
		return nil, ierr
	}
	return out, nil
}

// Balance is the result of GetBalance: confirmed coin value at or
// above minConf, plus everything still below it.
type Balance struct {
	Confirmed   btcutil.Amount
	Unconfirmed btcutil.Amount
}

// GetBalance sums acct's unspent coins, partitioned by minConf: a coin
// counts as confirmed when its height is not the unconfirmed sentinel
// and (tipHeight - height + 1) >= minConf.
func (idx *Index) GetBalance(acct uint32, tipHeight int32, minConf int32) (Balance, errs.R) {
	coins, err := idx.GetCoins(acct)
	if err != nil {
		return Balance{}, err
	}
	var bal Balance
	for _, c := range coins {
		if c.Record.Height == CoinUnconfirmedHeight {
			bal.Unconfirmed += c.Record.Value
			continue
		}
		depth := tipHeight - int32(c.Record.Height) + 1
		if depth >= minConf {
			bal.Confirmed += c.Record.Value
		} else {
			bal.Unconfirmed += c.Record.Value
		}
	}
	return bal, nil
}

// GetBalances computes GetBalance for every account named in accts.
func (idx *Index) GetBalances(accts []uint32, tipHeight int32, minConf int32) (map[uint32]Balance, errs.R) {
	out := make(map[uint32]Balance, len(accts))
	for _, acct := range accts {
		bal, err := idx.GetBalance(acct, tipHeight, minConf)
		if err != nil {
			return nil, err
		}
		out[acct] = bal
	}
	return out, nil
}

// RangeByHeight returns every globally confirmed transaction whose
// height falls in opts's bounds, independent of account.
func (idx *Index) RangeByHeight(opts RangeOpts) ([]*TxRecord, errs.R) {
	var start, end []byte
	if !opts.HasEnd && opts.Start == 0 {
		start, end = keys.HeightPrefixAll(), kvstore.PrefixUpperBound(keys.HeightPrefixAll())
	} else {
		start = keys.Height(int32(opts.Start), chainhash.Hash{})
		if opts.HasEnd {
			end = keys.Height(int32(opts.End), chainhash.Hash{})
		} else {
			end = kvstore.PrefixUpperBound(keys.HeightPrefixAll())
		}
	}
	it := idx.backend.Iterator(start, end, opts.Reverse)
	defer it.Release()

	var out []*TxRecord
	for it.Next() {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		_, hash, perr := keys.ParseHeight(it.Key())
		if perr != nil {
			return nil, perr
		}
		rec, found, lerr := idx.getTxRecord(hash)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, ErrData.New("height index references a nonexistent transaction", nil)
		}
		out = append(out, rec)
	}
	if ierr := it.Error(); ierr != nil {
		return nil, ierr
	}
	return out, nil
}

// RangeByTime returns every transaction (confirmed or pending) whose
// wallet-received time falls in opts's bounds, independent of account.
func (idx *Index) RangeByTime(opts RangeOpts) ([]*TxRecord, errs.R) {
	var start, end []byte
	if !opts.HasEnd && opts.Start == 0 {
		start, end = keys.TimePrefixAll(), kvstore.PrefixUpperBound(keys.TimePrefixAll())
	} else {
		start = keys.Time(opts.Start, chainhash.Hash{})
		if opts.HasEnd {
			end = keys.Time(opts.End, chainhash.Hash{})
		} else {
			end = kvstore.PrefixUpperBound(keys.TimePrefixAll())
		}
	}
	it := idx.backend.Iterator(start, end, opts.Reverse)
	defer it.Release()

	var out []*TxRecord
	for it.Next() {
		if opts.Limit > 0 && len(out) >= opts.Limit {
			break
		}
		_, hash, perr := keys.ParseTime(it.Key())
		if perr != nil {
			return nil, perr
		}
		rec, found, lerr := idx.getTxRecord(hash)
		if lerr != nil {
			return nil, lerr
		}
		if !found {
			return nil, ErrData.New("time index references a nonexistent transaction", nil)
		}
		out = append(out, rec)
	}
	if ierr := it.Error(); ierr != nil {
		return nil, ierr
	}
	return out, nil
}

// GetTx looks up a single transaction by hash, for callers that already
// have it (e.g. from an event) and want the authoritative stored record.
func (idx *Index) GetTx(hash chainhash.Hash) (*TxRecord, bool, errs.R) {
	return idx.getTxRecord(hash)
}
