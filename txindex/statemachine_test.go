package txindex

import (
	"testing"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/pkt-cash/txindex/errs"
	"github.com/pkt-cash/txindex/keys"
	"github.com/pkt-cash/txindex/kvstore"
)

// --- test doubles ---

// unspendableMarker is the distinguishing pkScript byte used by testHasher
// to mark an output nobody should ever treat as wallet-owned.
var unspendableMarker = []byte{0xFF}

// testHasher treats every input as the wallet's own and every output not
// carrying unspendableMarker as wallet-owned, standing in for the real
// txscript-backed AddressHasher (verify.go) in unit tests that only care
// about the state machine, not address derivation.
type testHasher struct{}

func (testHasher) InputAddrHash(tx *wire.MsgTx, i int) ([]byte, bool) {
	if i < 0 || i >= len(tx.TxIn) {
		return nil, false
	}
	return []byte{0x01}, true
}

func (testHasher) OutputAddrHash(tx *wire.MsgTx, i int) ([]byte, bool) {
	if i < 0 || i >= len(tx.TxOut) || (testHasher{}).IsUnspendable(tx, i) {
		return nil, false
	}
	return []byte{0x01}, true
}

func (testHasher) IsUnspendable(tx *wire.MsgTx, i int) bool {
	if i < 0 || i >= len(tx.TxOut) {
		return true
	}
	return len(tx.TxOut[i].PkScript) == 1 && tx.TxOut[i].PkScript[0] == 0xFF
}

// testPath is a fixed single-account PathInfo.
type testPath struct{ acct uint32 }

func (p testPath) Accounts() []uint32            { return []uint32{p.acct} }
func (p testPath) GetPath(_ []byte) (Path, bool) { return Path{Account: p.acct}, true }
func (p testPath) HasPath(_ []byte) bool         { return true }

func newTestIndex(t *testing.T) (*Index, *[]Event) {
	t.Helper()
	var events []Event
	idx, err := New(Config{
		Backend:       kvstore.NewMemTree(),
		AddressHasher: testHasher{},
		EventSink:     func(ev Event) { events = append(events, ev) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return idx, &events
}

// mkTx builds a transaction spending the given outpoints (none, for a
// coinbase-shaped transaction) with one output of each given value. A
// negative value marks that output unspendable, exercising the
// distinction between outputs that are not the wallet's and outputs
// nobody can spend. salt is used as the lock time, so transactions that
// differ only in salt still get distinct hashes.
func mkTx(spends []wire.OutPoint, values []int64, salt byte) *wire.MsgTx {
	tx := &wire.MsgTx{Version: 1, LockTime: uint32(salt)}
	for _, op := range spends {
		o := op
		tx.TxIn = append(tx.TxIn, &wire.TxIn{PreviousOutPoint: o, Sequence: wire.MaxTxInSequenceNum})
	}
	for _, v := range values {
		script := unspendableMarker
		val := v
		if v >= 0 {
			script = []byte{salt, 0xAA}
			val = v
		} else {
			val = -v
		}
		tx.TxOut = append(tx.TxOut, &wire.TxOut{Value: val, PkScript: script})
	}
	return tx
}

func mustRec(t *testing.T, tx *wire.MsgTx, ps int64, confirmedHeight int32, ts int64) *TxRecord {
	t.Helper()
	rec, err := NewTxRecordFromMsgTx(tx, time.Unix(ps, 0))
	if err != nil {
		t.Fatalf("NewTxRecordFromMsgTx: %v", err)
	}
	if confirmedHeight >= 0 {
		rec.Height = confirmedHeight
		rec.Ts = ts
		rec.Index = 0
	}
	return rec
}

// --- basic receive/spend ---

func TestBasicReceiveSpend(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}

	t1 := mkTx(nil, []int64{10}, 1)
	rec1 := mustRec(t, t1, 1000, 100, 2000)
	res, err := idx.Add(rec1, path)
	if err != nil || res != AddAccepted {
		t.Fatalf("add t1: res=%v err=%v", res, err)
	}

	if _, found, _ := idx.getCoin(rec1.Hash, 0); !found {
		t.Fatalf("expected coin t1:0 present")
	}
	bal, berr := idx.GetBalance(1, 100, 0)
	if berr != nil || bal.Confirmed != 10 {
		t.Fatalf("expected confirmed balance 10, got %+v err=%v", bal, berr)
	}

	t2 := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{-9}, 2)
	rec2 := mustRec(t, t2, 1500, -1, 0)
	res, err = idx.Add(rec2, path)
	if err != nil || res != AddAccepted {
		t.Fatalf("add t2: res=%v err=%v", res, err)
	}

	if _, found, _ := idx.getCoin(rec1.Hash, 0); found {
		t.Fatalf("expected coin t1:0 gone after spend")
	}
	spenderHash, spenderIdx, spent, serr := idx.isSpent(rec1.Hash, 0)
	if serr != nil || !spent || spenderHash != rec2.Hash || spenderIdx != 0 {
		t.Fatalf("expected t1:0 spent by t2:0, got hash=%v idx=%d spent=%v err=%v", spenderHash, spenderIdx, spent, serr)
	}

	bal, berr = idx.GetBalance(1, 100, 0)
	if berr != nil || bal.Confirmed != 0 || bal.Unconfirmed != 0 {
		t.Fatalf("expected zero balance after spend to an unowned output, got %+v", bal)
	}
}

// --- confirm pending ---

func TestConfirmPending(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}

	tx := mkTx(nil, []int64{5}, 1)
	pending := mustRec(t, tx, 1000, -1, 0)
	if res, err := idx.Add(pending, path); err != nil || res != AddAccepted {
		t.Fatalf("add pending: res=%v err=%v", res, err)
	}

	confirmed := mustRec(t, tx, 1000, 100, 2000)
	res, err := idx.Add(confirmed, path)
	if err != nil || res != AddAlreadyPresent {
		t.Fatalf("re-add confirmed: res=%v err=%v", res, err)
	}

	if found, _ := idx.backend.Has(keys.Pending(pending.Hash)); found {
		t.Fatalf("expected pending flag gone after confirm")
	}
	got, found, gerr := idx.getTxRecord(pending.Hash)
	if gerr != nil || !found {
		t.Fatalf("expected tx record present: %v %v", found, gerr)
	}
	if got.Height != 100 || got.Ps != 1000 {
		t.Fatalf("expected height=100 ps preserved=1000, got height=%d ps=%d", got.Height, got.Ps)
	}
	coin, cfound, cerr := idx.getCoin(pending.Hash, 0)
	if cerr != nil || !cfound || coin.Height != 100 {
		t.Fatalf("expected coin height updated to 100, got %+v found=%v err=%v", coin, cfound, cerr)
	}
}

// --- double-spend, newer unconfirmed vs older unconfirmed ---

func TestDoubleSpendOlderRejected(t *testing.T) {
	idx, events := newTestIndex(t)
	path := testPath{acct: 1}

	t1 := mkTx(nil, []int64{10}, 1)
	rec1 := mustRec(t, t1, 1000, 100, 2000)
	if _, err := idx.Add(rec1, path); err != nil {
		t.Fatalf("add t1: %v", err)
	}

	t2a := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{-9}, 2)
	rec2a := mustRec(t, t2a, 500, -1, 0)
	if res, err := idx.Add(rec2a, path); err != nil || res != AddAccepted {
		t.Fatalf("add t2a: res=%v err=%v", res, err)
	}

	before := len(*events)
	t2b := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{-9}, 3)
	rec2b := mustRec(t, t2b, 400, -1, 0)
	res, err := idx.Add(rec2b, path)
	if err != nil {
		t.Fatalf("add t2b: %v", err)
	}
	if res != AddRejected {
		t.Fatalf("expected t2b rejected (older), got %v", res)
	}
	// The drain event still fires once the rejected add leaves the
	// pending-add set; nothing else may be emitted.
	for _, ev := range (*events)[before:] {
		if ev.Kind != EventDrain {
			t.Fatalf("expected no events but drain from a rejected add, got %v", ev.Kind)
		}
	}

	spenderHash, _, spent, _ := idx.isSpent(rec1.Hash, 0)
	if !spent || spenderHash != rec2a.Hash {
		t.Fatalf("expected t1:0 still spent by t2a, got %v spent=%v", spenderHash, spent)
	}
	if _, found, _ := idx.getTxRecord(rec2b.Hash); found {
		t.Fatalf("expected t2b was never recorded")
	}
}

// --- double-spend, newer replaces older, with a descendant ---

func TestDoubleSpendNewerReplacesWithDescendant(t *testing.T) {
	idx, events := newTestIndex(t)
	path := testPath{acct: 1}

	t1 := mkTx(nil, []int64{10}, 1)
	rec1 := mustRec(t, t1, 1000, 100, 2000)
	if _, err := idx.Add(rec1, path); err != nil {
		t.Fatalf("add t1: %v", err)
	}

	t2a := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{9}, 2)
	rec2a := mustRec(t, t2a, 400, -1, 0)
	if _, err := idx.Add(rec2a, path); err != nil {
		t.Fatalf("add t2a: %v", err)
	}

	t3 := mkTx([]wire.OutPoint{{Hash: rec2a.Hash, Index: 0}}, []int64{-8}, 3)
	rec3 := mustRec(t, t3, 450, -1, 0)
	if _, err := idx.Add(rec3, path); err != nil {
		t.Fatalf("add t3: %v", err)
	}

	t2b := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{9}, 4)
	rec2b := mustRec(t, t2b, 500, -1, 0)
	res, err := idx.Add(rec2b, path)
	if err != nil || res != AddAccepted {
		t.Fatalf("add t2b: res=%v err=%v", res, err)
	}

	sawConflict := false
	for _, ev := range *events {
		if ev.Kind == EventConflict && ev.Replaced != nil && ev.Replaced.Hash == rec2a.Hash {
			sawConflict = true
		}
	}
	if !sawConflict {
		t.Fatalf("expected a conflict event naming t2a as replaced")
	}

	if _, found, _ := idx.getTxRecord(rec2a.Hash); found {
		t.Fatalf("expected t2a removed")
	}
	if _, found, _ := idx.getTxRecord(rec3.Hash); found {
		t.Fatalf("expected descendant t3 removed transitively")
	}
	spenderHash, _, spent, _ := idx.isSpent(rec1.Hash, 0)
	if !spent || spenderHash != rec2b.Hash {
		t.Fatalf("expected t1:0 now spent by t2b, got %v spent=%v", spenderHash, spent)
	}
}

// --- unconfirm after reorg ---

func TestUnconfirmAfterReorg(t *testing.T) {
	idx, events := newTestIndex(t)
	path := testPath{acct: 1}

	t1 := mkTx(nil, []int64{10}, 1)
	rec1 := mustRec(t, t1, 1000, 100, 2000)
	if _, err := idx.Add(rec1, path); err != nil {
		t.Fatalf("add t1: %v", err)
	}

	changed, err := idx.Unconfirm(rec1.Hash)
	if err != nil || !changed {
		t.Fatalf("unconfirm: changed=%v err=%v", changed, err)
	}

	if found, _ := idx.backend.Has(keys.Pending(rec1.Hash)); !found {
		t.Fatalf("expected pending flag present after unconfirm")
	}
	coin, found, cerr := idx.getCoin(rec1.Hash, 0)
	if cerr != nil || !found || coin.Height != CoinUnconfirmedHeight {
		t.Fatalf("expected coin height reset to unconfirmed sentinel, got %+v found=%v", coin, found)
	}
	sawUnconfirmed := false
	for _, ev := range *events {
		if ev.Kind == EventUnconfirmed {
			sawUnconfirmed = true
		}
	}
	if !sawUnconfirmed {
		t.Fatalf("expected an unconfirmed event")
	}

	if changed, err := idx.Unconfirm(rec1.Hash); err != nil || changed {
		t.Fatalf("expected second unconfirm to be a no-op, got changed=%v err=%v", changed, err)
	}
}

// --- orphan resolution ---

func TestOrphanResolution(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}

	unknownParent := chainhash.Hash{0x42}
	t2 := mkTx([]wire.OutPoint{{Hash: unknownParent, Index: 0}}, []int64{-9}, 1)
	rec2 := mustRec(t, t2, 1000, -1, 0)
	if res, err := idx.Add(rec2, path); err != nil || res != AddAccepted {
		t.Fatalf("add t2 (orphaned spender): res=%v err=%v", res, err)
	}

	if found, _ := idx.backend.Has(keys.Orphan(unknownParent, 0)); !found {
		t.Fatalf("expected an orphan waiter registered for the unknown prevout")
	}
	if _, found, _ := idx.getCoin(unknownParent, 0); found {
		t.Fatalf("no coin should exist yet for the unknown parent")
	}

	t1 := mkTx(nil, []int64{10}, 2)
	// Force t1's hash to equal unknownParent isn't possible (hash is derived),
	// so instead verify resolution against t1's actual hash by re-deriving the
	// orphan reference from t1 itself.
	rec1 := mustRec(t, t1, 2000, 100, 3000)
	t2b := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{-9}, 3)
	rec2b := mustRec(t, t2b, 1500, -1, 0)
	if res, err := idx.Add(rec2b, path); err != nil || res != AddAccepted {
		t.Fatalf("add t2b (orphaned spender of t1): res=%v err=%v", res, err)
	}
	if found, _ := idx.backend.Has(keys.Orphan(rec1.Hash, 0)); !found {
		t.Fatalf("expected an orphan waiter registered for t1:0")
	}

	if _, err := idx.Add(rec1, path); err != nil {
		t.Fatalf("add t1: %v", err)
	}

	if found, _ := idx.backend.Has(keys.Orphan(rec1.Hash, 0)); found {
		t.Fatalf("expected orphan entry deleted once resolved")
	}
	spenderHash, spenderIdx, spent, serr := idx.isSpent(rec1.Hash, 0)
	if serr != nil || !spent || spenderHash != rec2b.Hash || spenderIdx != 0 {
		t.Fatalf("expected t1:0 spent by t2b after resolution, got %v %d spent=%v", spenderHash, spenderIdx, spent)
	}
	if _, found, _ := idx.getCoin(rec1.Hash, 0); found {
		t.Fatalf("expected no c/t1/0 written since the orphan resolved it")
	}
}

// --- round-trip laws ---

func TestAddIdempotent(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}
	tx := mkTx(nil, []int64{7}, 1)
	rec := mustRec(t, tx, 1000, 100, 2000)

	if res, err := idx.Add(rec, path); err != nil || res != AddAccepted {
		t.Fatalf("first add: res=%v err=%v", res, err)
	}
	if res, err := idx.Add(rec, path); err != nil || res != AddAlreadyPresent {
		t.Fatalf("second identical add: expected AddAlreadyPresent, got res=%v err=%v", res, err)
	}
}

func TestAddRemoveRoundTrip(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}
	tx := mkTx(nil, []int64{7}, 1)
	rec := mustRec(t, tx, 1000, 100, 2000)

	snapshotBefore := memTreeSnapshot(idx)

	if _, err := idx.Add(rec, path); err != nil {
		t.Fatalf("add: %v", err)
	}
	if removed, err := idx.Remove(rec.Hash); err != nil || !removed {
		t.Fatalf("remove: removed=%v err=%v", removed, err)
	}

	snapshotAfter := memTreeSnapshot(idx)
	if len(snapshotBefore) != len(snapshotAfter) {
		t.Fatalf("expected identical key-set after add;remove, before=%d after=%d", len(snapshotBefore), len(snapshotAfter))
	}
	for i := range snapshotBefore {
		if snapshotBefore[i] != snapshotAfter[i] {
			t.Fatalf("expected identical key-set after add;remove, entry %d: before=%q after=%q", i, snapshotBefore[i], snapshotAfter[i])
		}
	}
}

func TestConfirmUnconfirmRoundTrip(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}
	tx := mkTx(nil, []int64{7}, 1)
	rec := mustRec(t, tx, 1000, 100, 2000)
	if _, err := idx.Add(rec, path); err != nil {
		t.Fatalf("add: %v", err)
	}

	before := memTreeSnapshot(idx)

	if _, err := idx.Unconfirm(rec.Hash); err != nil {
		t.Fatalf("unconfirm: %v", err)
	}
	reconfirmed := mustRec(t, tx, 1000, 100, 2000)
	if res, err := idx.Add(reconfirmed, path); err != nil || res != AddAlreadyPresent {
		t.Fatalf("reconfirm: res=%v err=%v", res, err)
	}

	after := memTreeSnapshot(idx)
	if len(before) != len(after) {
		t.Fatalf("expected identical key-set after confirm;unconfirm;confirm, before=%d after=%d", len(before), len(after))
	}
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("expected identical key-set after confirm;unconfirm;confirm, entry %d: before=%q after=%q", i, before[i], after[i])
		}
	}
}

func TestZapSweepsOldUnconfirmedOnly(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}

	old := mkTx(nil, []int64{1}, 1)
	oldRec := mustRec(t, old, 1000, -1, 0)
	if _, err := idx.Add(oldRec, path); err != nil {
		t.Fatalf("add old: %v", err)
	}
	confirmedTx := mkTx(nil, []int64{2}, 2)
	confirmedRec := mustRec(t, confirmedTx, 1001, 100, 2000)
	if _, err := idx.Add(confirmedRec, path); err != nil {
		t.Fatalf("add confirmed: %v", err)
	}
	recentTx := mkTx(nil, []int64{3}, 3)
	recentRec := mustRec(t, recentTx, 100000, -1, 0)
	if _, err := idx.Add(recentRec, path); err != nil {
		t.Fatalf("add recent: %v", err)
	}

	idx.now = func() time.Time { return time.Unix(100000, 0) }
	removed, err := idx.Zap(nil, 90000*time.Second)
	if err != nil {
		t.Fatalf("zap: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected exactly 1 removed, got %d", removed)
	}
	if _, found, _ := idx.getTxRecord(oldRec.Hash); found {
		t.Fatalf("expected old unconfirmed tx swept")
	}
	if _, found, _ := idx.getTxRecord(confirmedRec.Hash); !found {
		t.Fatalf("confirmed tx must never be swept by zap")
	}
	if _, found, _ := idx.getTxRecord(recentRec.Hash); !found {
		t.Fatalf("recent unconfirmed tx must survive the cutoff")
	}
}

func TestAbandonRequiresPending(t *testing.T) {
	idx, _ := newTestIndex(t)
	path := testPath{acct: 1}
	tx := mkTx(nil, []int64{1}, 1)
	rec := mustRec(t, tx, 1000, 100, 2000)
	if _, err := idx.Add(rec, path); err != nil {
		t.Fatalf("add: %v", err)
	}
	if _, err := idx.Abandon(rec.Hash); err == nil {
		t.Fatalf("expected abandon to fail on a confirmed transaction")
	}

	pendingTx := mkTx(nil, []int64{1}, 2)
	pendingRec := mustRec(t, pendingTx, 1000, -1, 0)
	if _, err := idx.Add(pendingRec, path); err != nil {
		t.Fatalf("add pending: %v", err)
	}
	removed, err := idx.Abandon(pendingRec.Hash)
	if err != nil || !removed {
		t.Fatalf("abandon: removed=%v err=%v", removed, err)
	}
}

func TestAddEmitsDrainWhenPendingSetEmpties(t *testing.T) {
	idx, events := newTestIndex(t)
	path := testPath{acct: 1}
	tx := mkTx(nil, []int64{1}, 1)
	rec := mustRec(t, tx, 1000, -1, 0)
	if _, err := idx.Add(rec, path); err != nil {
		t.Fatalf("add: %v", err)
	}

	sawTx, sawDrainAfterTx := false, false
	for _, ev := range *events {
		if ev.Kind == EventTx {
			sawTx = true
		}
		if ev.Kind == EventDrain && sawTx {
			sawDrainAfterTx = true
		}
	}
	if !sawDrainAfterTx {
		t.Fatalf("expected a drain event after the add completed, got %+v", *events)
	}
}

// rejectSpenderVerifier fails verification for every input of the
// transaction whose hash matches reject, accepting everything else.
type rejectSpenderVerifier struct{ reject chainhash.Hash }

func (v rejectSpenderVerifier) VerifyInput(tx *wire.MsgTx, _ int, _ *CoinRecord) errs.R {
	if tx.TxHash() == v.reject {
		return ErrInput.New("verify: rejected by test verifier", nil)
	}
	return nil
}

func TestOrphanWaiterFailingVerificationIsRemoved(t *testing.T) {
	var events []Event
	backend := kvstore.NewMemTree()
	path := testPath{acct: 1}

	t1 := mkTx(nil, []int64{10}, 1)
	rec1 := mustRec(t, t1, 2000, 100, 3000)
	t2 := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{-9}, 2)
	rec2 := mustRec(t, t2, 1000, -1, 0)

	idx, err := New(Config{
		Backend:        backend,
		AddressHasher:  testHasher{},
		ScriptVerifier: rejectSpenderVerifier{reject: rec2.Hash},
		EventSink:      func(ev Event) { events = append(events, ev) },
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if res, aerr := idx.Add(rec2, path); aerr != nil || res != AddAccepted {
		t.Fatalf("add orphaned spender: res=%v err=%v", res, aerr)
	}
	if found, _ := idx.backend.Has(keys.Orphan(rec1.Hash, 0)); !found {
		t.Fatalf("expected an orphan waiter for t1:0")
	}

	if _, aerr := idx.Add(rec1, path); aerr != nil {
		t.Fatalf("add t1: %v", aerr)
	}

	if found, _ := idx.backend.Has(keys.Orphan(rec1.Hash, 0)); found {
		t.Fatalf("expected orphan entry deleted after resolution attempt")
	}
	if _, found, _ := idx.getTxRecord(rec2.Hash); found {
		t.Fatalf("expected the failed waiter removed")
	}
	if _, _, spent, _ := idx.isSpent(rec1.Hash, 0); spent {
		t.Fatalf("no spend record should survive a failed waiter")
	}
	if _, found, _ := idx.getCoin(rec1.Hash, 0); !found {
		t.Fatalf("expected c/t1/0 written since no waiter claimed it")
	}
	sawRemove := false
	for _, ev := range events {
		if ev.Kind == EventRemoveTx && ev.Tx != nil && ev.Tx.Hash == rec2.Hash {
			sawRemove = true
		}
	}
	if !sawRemove {
		t.Fatalf("expected a remove event for the failed waiter")
	}
}

func TestOrphanMultipleWaitersArbitrated(t *testing.T) {
	idx, events := newTestIndex(t)
	path := testPath{acct: 1}

	t1 := mkTx(nil, []int64{10}, 1)
	rec1 := mustRec(t, t1, 2000, 100, 3000)

	t2a := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{-9}, 2)
	rec2a := mustRec(t, t2a, 400, -1, 0)
	t2b := mkTx([]wire.OutPoint{{Hash: rec1.Hash, Index: 0}}, []int64{-9}, 3)
	rec2b := mustRec(t, t2b, 500, -1, 0)

	if res, err := idx.Add(rec2a, path); err != nil || res != AddAccepted {
		t.Fatalf("add t2a: res=%v err=%v", res, err)
	}
	if res, err := idx.Add(rec2b, path); err != nil || res != AddAccepted {
		t.Fatalf("add t2b: res=%v err=%v", res, err)
	}

	if _, err := idx.Add(rec1, path); err != nil {
		t.Fatalf("add t1: %v", err)
	}

	// Both waiters pass (no verifier), so arbitration picks the later
	// wallet-received spend and removes the other.
	spenderHash, _, spent, serr := idx.isSpent(rec1.Hash, 0)
	if serr != nil || !spent || spenderHash != rec2b.Hash {
		t.Fatalf("expected t1:0 claimed by t2b, got %v spent=%v err=%v", spenderHash, spent, serr)
	}
	if _, found, _ := idx.getTxRecord(rec2a.Hash); found {
		t.Fatalf("expected losing waiter t2a removed")
	}
	if _, found, _ := idx.getCoin(rec1.Hash, 0); found {
		t.Fatalf("expected no c/t1/0 since the coin was claimed")
	}
	sawConflict := false
	for _, ev := range *events {
		if ev.Kind == EventConflict && ev.Replaced != nil && ev.Replaced.Hash == rec2a.Hash {
			sawConflict = true
		}
	}
	if !sawConflict {
		t.Fatalf("expected a conflict event naming t2a as the loser")
	}
}

func TestRemoveNonexistentIsNoop(t *testing.T) {
	idx, _ := newTestIndex(t)
	removed, err := idx.Remove(chainhash.Hash{0x99})
	if err != nil || removed {
		t.Fatalf("expected a no-op remove of a nonexistent hash, got removed=%v err=%v", removed, err)
	}
}

func memTreeSnapshot(idx *Index) []string {
	it := idx.backend.Iterator(nil, nil, false)
	defer it.Release()
	var out []string
	for it.Next() {
		out = append(out, string(it.Key())+"="+string(it.Value()))
	}
	return out
}
