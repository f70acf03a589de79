// Copyright (c) 2013-2017 The btcsuite developers
// Copyright (c) 2015-2016 The Decred developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package txindex implements a per-wallet transaction index: a
// persistent store tracking every transaction touching the wallet, the
// unspent outputs it owns, and the historical links between them. It
// provides the insert/confirm/unconfirm/remove state machine over a
// flat ordered key-value store, double-spend conflict arbitration,
// orphan-input resolution, and range queries by block height,
// wall-clock time, and account.
package txindex

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/pkt-cash/txindex/errs"
)

// UnconfirmedHeight is the TxRecord.Height sentinel for an unconfirmed
// transaction. Ts == 0, Height == UnconfirmedHeight, and the presence
// of a p/<hash> record always agree.
const UnconfirmedHeight int32 = -1

// CoinUnconfirmedHeight is the CoinRecord.Height sentinel for a coin
// whose owning transaction is unconfirmed.
const CoinUnconfirmedHeight uint32 = 0x7FFFFFFF

// coinRecordVersion is bytes 0..4 of a serialized coin record.
const coinRecordVersion uint32 = 1

// Block identifies a block a transaction may be confirmed in.
type Block struct {
	Hash   chainhash.Hash
	Height int32
}

// TxRecord is the canonical storage form of one transaction tracked by
// the index, persisted at t/<hash>.
type TxRecord struct {
	MsgTx        wire.MsgTx
	Hash         chainhash.Hash
	SerializedTx []byte

	// Height is UnconfirmedHeight when the transaction is pending.
	Height int32
	Block  chainhash.Hash
	Index  uint32 // position within the block

	// Ts is the block time (unix seconds); 0 iff unconfirmed.
	Ts int64
	// Ps is the wallet-received time (unix seconds); always set, and
	// preserved across confirm/unconfirm transitions.
	Ps int64

	// Accounts is the set of wallet account ids this transaction touches,
	// captured from the PathInfo supplied to Add at insertion time and
	// persisted alongside the record. Recursive removal (triggered from
	// deep inside conflict resolution, with no caller-supplied PathInfo
	// in hand) needs this to clean up every per-account mirror, so it is
	// stored rather than recomputed.
	Accounts []uint32
}

// NewTxRecord builds a TxRecord from a raw serialized transaction.
func NewTxRecord(serializedTx []byte, received time.Time) (*TxRecord, errs.R) {
	rec := &TxRecord{
		SerializedTx: serializedTx,
		Height:       UnconfirmedHeight,
		Ps:           received.Unix(),
	}
	if err := rec.MsgTx.Deserialize(bytes.NewReader(serializedTx)); err != nil {
		return nil, ErrInput.New("failed to deserialize transaction", err)
	}
	rec.Hash = rec.MsgTx.TxHash()
	return rec, nil
}

// NewTxRecordFromMsgTx builds a TxRecord from an already-parsed
// transaction.
func NewTxRecordFromMsgTx(msgTx *wire.MsgTx, received time.Time) (*TxRecord, errs.R) {
	buf := bytes.NewBuffer(make([]byte, 0, msgTx.SerializeSize()))
	if err := msgTx.Serialize(buf); err != nil {
		return nil, ErrInput.New("failed to serialize transaction", err)
	}
	return &TxRecord{
		MsgTx:        *msgTx,
		Hash:         msgTx.TxHash(),
		SerializedTx: buf.Bytes(),
		Height:       UnconfirmedHeight,
		Ps:           received.Unix(),
	}, nil
}

// IsUnconfirmed reports whether this record represents a pending
// (unconfirmed) transaction.
func (r *TxRecord) IsUnconfirmed() bool {
	return r.Ts == 0
}

// serialize encodes the extended storage form written to t/<hash>:
// height (4 bytes LE, signed), block hash (32 bytes), block index (4
// bytes LE), ts (8 bytes LE), ps (8 bytes LE), account count (4 bytes
// LE) + that many account ids (4 bytes LE each), then the raw
// transaction bytes.
func (r *TxRecord) serialize() []byte {
	headerLen := 4 + chainhash.HashSize + 4 + 8 + 8 + 4 + 4*len(r.Accounts)
	buf := make([]byte, headerLen, headerLen+len(r.SerializedTx))
	binary.LittleEndian.PutUint32(buf[0:4], uint32(r.Height))
	copy(buf[4:4+chainhash.HashSize], r.Block[:])
	off := 4 + chainhash.HashSize
	binary.LittleEndian.PutUint32(buf[off:off+4], r.Index)
	binary.LittleEndian.PutUint64(buf[off+4:off+12], uint64(r.Ts))
	binary.LittleEndian.PutUint64(buf[off+12:off+20], uint64(r.Ps))
	off += 20
	binary.LittleEndian.PutUint32(buf[off:off+4], uint32(len(r.Accounts)))
	off += 4
	for _, acct := range r.Accounts {
		binary.LittleEndian.PutUint32(buf[off:off+4], acct)
		off += 4
	}
	buf = append(buf, r.SerializedTx...)
	return buf
}

// deserializeTxRecord decodes the t/<hash> storage form back into a
// TxRecord. hash is taken from the key, not re-derived, so a corrupt
// payload cannot silently masquerade as a different transaction.
func deserializeTxRecord(hash chainhash.Hash, b []byte) (*TxRecord, errs.R) {
	const fixedLen = 4 + chainhash.HashSize + 4 + 8 + 8 + 4
	if len(b) < fixedLen {
		return nil, ErrData.New("truncated tx record", nil)
	}
	r := &TxRecord{Hash: hash}
	r.Height = int32(binary.LittleEndian.Uint32(b[0:4]))
	copy(r.Block[:], b[4:4+chainhash.HashSize])
	off := 4 + chainhash.HashSize
	r.Index = binary.LittleEndian.Uint32(b[off : off+4])
	r.Ts = int64(binary.LittleEndian.Uint64(b[off+4 : off+12]))
	r.Ps = int64(binary.LittleEndian.Uint64(b[off+12 : off+20]))
	off += 20
	nAccounts := binary.LittleEndian.Uint32(b[off : off+4])
	off += 4
	if len(b) < off+4*int(nAccounts) {
		return nil, ErrData.New("truncated tx record account list", nil)
	}
	r.Accounts = make([]uint32, nAccounts)
	for i := range r.Accounts {
		r.Accounts[i] = binary.LittleEndian.Uint32(b[off : off+4])
		off += 4
	}
	r.SerializedTx = append([]byte(nil), b[off:]...)
	// A transaction with no inputs is serialized with a zero input count,
	// which the witness-aware decoder reads as a segwit marker. The
	// witness decoding is kept only when it reproduces the txid from the
	// key; otherwise the bytes are decoded as a non-witness transaction.
	var msgTx wire.MsgTx
	if err := msgTx.Deserialize(bytes.NewReader(r.SerializedTx)); err != nil || msgTx.TxHash() != hash {
		msgTx = wire.MsgTx{}
		if nerr := msgTx.DeserializeNoWitness(bytes.NewReader(r.SerializedTx)); nerr != nil {
			return nil, ErrData.New("corrupt stored transaction", nerr)
		}
	}
	r.MsgTx = msgTx
	return r, nil
}

// HasAccount reports whether acct is among the accounts this
// transaction was recorded as touching.
func (r *TxRecord) HasAccount(acct uint32) bool {
	for _, a := range r.Accounts {
		if a == acct {
			return true
		}
	}
	return false
}

// CoinRecord is the fixed-layout serialized form of an owned, unspent
// output, persisted at c/<hash>/<vout>.
type CoinRecord struct {
	Version  uint32
	Height   uint32 // CoinUnconfirmedHeight iff unconfirmed
	Value    btcutil.Amount
	PkScript []byte
}

func (c *CoinRecord) serialize() []byte {
	buf := make([]byte, 4+4+8, 4+4+8+len(c.PkScript))
	binary.LittleEndian.PutUint32(buf[0:4], c.Version)
	binary.LittleEndian.PutUint32(buf[4:8], c.Height)
	binary.LittleEndian.PutUint64(buf[8:16], uint64(c.Value))
	buf = append(buf, c.PkScript...)
	return buf
}

func deserializeCoinRecord(b []byte) (*CoinRecord, errs.R) {
	if len(b) < 16 {
		return nil, ErrData.New("truncated coin record", nil)
	}
	c := &CoinRecord{
		Version:  binary.LittleEndian.Uint32(b[0:4]),
		Height:   binary.LittleEndian.Uint32(b[4:8]),
		Value:    btcutil.Amount(binary.LittleEndian.Uint64(b[8:16])),
		PkScript: append([]byte(nil), b[16:]...),
	}
	return c, nil
}

// withHeight returns a copy of c with Height replaced, used when
// confirming/unconfirming a coin without touching its value/script
// bytes.
func (c *CoinRecord) withHeight(height uint32) *CoinRecord {
	cp := *c
	cp.Height = height
	return &cp
}

// Coin is a query-surface view of one owned output: its outpoint plus
// its decoded record.
type Coin struct {
	Hash   chainhash.Hash
	Vout   uint32
	Record CoinRecord
}

// Path is one account binding of an address hash.
type Path struct {
	Account uint32
}

// PathInfo answers, for one transaction, which wallet accounts own
// which of its addresses. It is supplied by the caller's
// wallet-to-address resolver and consumed read-only by this package.
type PathInfo interface {
	// Accounts returns every account id touched by this transaction.
	Accounts() []uint32
	// GetPath returns the account owning addrHash, if any.
	GetPath(addrHash []byte) (Path, bool)
	// HasPath reports whether addrHash belongs to any tracked account.
	HasPath(addrHash []byte) bool
}

// AddressHasher extracts the wallet-relevant address hash for a
// transaction's inputs and outputs and identifies unspendable outputs.
// It is the narrow capability this package needs in place of a full
// script-verification/address-derivation dependency; see verify.go for
// the default txscript-backed implementation.
type AddressHasher interface {
	InputAddrHash(tx *wire.MsgTx, inputIndex int) ([]byte, bool)
	OutputAddrHash(tx *wire.MsgTx, outputIndex int) ([]byte, bool)
	IsUnspendable(tx *wire.MsgTx, outputIndex int) bool
}

// ScriptVerifier re-verifies one input of tx now that its referenced
// coin is known. It is optional: a nil ScriptVerifier in Config
// disables verification and every resolved input is accepted.
type ScriptVerifier interface {
	VerifyInput(tx *wire.MsgTx, inputIndex int, prevOut *CoinRecord) errs.R
}

// EventKind identifies one of the events this index emits.
type EventKind int

const (
	EventTx EventKind = iota
	EventConfirmed
	EventUnconfirmed
	EventConflict
	EventRemoveTx
	EventDrain
)

func (k EventKind) String() string {
	switch k {
	case EventTx:
		return "tx"
	case EventConfirmed:
		return "confirmed"
	case EventUnconfirmed:
		return "unconfirmed"
	case EventConflict:
		return "conflict"
	case EventRemoveTx:
		return "remove tx"
	case EventDrain:
		return "drain"
	default:
		return "unknown"
	}
}

// Event is the payload delivered to an EventSink. Every kind but
// EventDrain carries Tx; EventConflict additionally carries Replaced,
// the losing transaction that was removed. PathInfo is set only on the
// events Add emits for the transaction it was handed (EventTx,
// EventConfirmed, and EventConflict from input arbitration); it is nil
// on EventUnconfirmed, EventRemoveTx, and conflict events raised while
// resolving orphan waiters.
type Event struct {
	Kind     EventKind
	Tx       *TxRecord
	PathInfo PathInfo
	Replaced *TxRecord
}

// EventSink receives events fired after a committed mutation, in
// commit order. A nil sink is valid and simply drops events.
type EventSink func(Event)
