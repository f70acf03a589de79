// Package keys encodes and decodes the transaction index's structured
// keyspace: total functions from (role, fields...) to flat ordered byte
// keys and back. Heights, timestamps, vout/input indices, and account
// ids are zero-padded fixed-width decimal so lexicographic byte order
// matches numeric order.
package keys

import (
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/pkt-cash/txindex/errs"
)

// Role prefixes, one or two ASCII characters followed by '/'.
const (
	roleTx         = "t/"
	rolePending    = "p/"
	roleHeight     = "h/"
	roleTime       = "m/"
	roleAcctHeight = "H/"
	roleAcctTime   = "M/"
	roleAcctPend   = "P/"
	roleAcctTx     = "T/"
	roleCoin       = "c/"
	roleAcctCoin   = "C/"
	roleSpend      = "s/"
	roleUndo       = "d/"
	roleOrphan     = "o/"
)

// width is the fixed decimal width used for every numeric key field
// (heights, timestamps, vouts, input indices, account ids). 10 digits
// comfortably covers uint32 (max 4294967295) and the unix timestamps
// this system deals in.
const width = 10

// Err is the ErrorType for malformed-key failures raised while decoding.
var Err = errs.NewErrorType("keys.Err")

// ErrMalformed indicates a key that does not match its expected shape,
// signaling either a programming error or store corruption.
var ErrMalformed = Err.Code("ErrMalformed")

func padUint(v uint32) string {
	return fmt.Sprintf("%0*d", width, v)
}

// padHeight encodes a non-negative confirmed height. Callers must never
// pass a negative height here: unconfirmed transactions are indexed
// under the pending prefix instead, never under h/ or H/.
func padHeight(height int32) string {
	if height < 0 {
		panic("keys: negative height passed to a confirmed-height key")
	}
	return fmt.Sprintf("%0*d", width, height)
}

func padTime(ts int64) string {
	return fmt.Sprintf("%0*d", width, ts)
}

func hashHex(hash chainhash.Hash) string {
	return hex.EncodeToString(hash[:])
}

func unhashHex(s string) (chainhash.Hash, errs.R) {
	var h chainhash.Hash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != chainhash.HashSize {
		return h, ErrMalformed.New("bad hash component "+s, nil)
	}
	copy(h[:], b)
	return h, nil
}

func join(parts ...string) []byte {
	return []byte(strings.Join(parts, "/"))
}

// --- global records ---

// Tx returns the t/<hash> key.
func Tx(hash chainhash.Hash) []byte {
	return []byte(roleTx + hashHex(hash))
}

// ParseTx parses a t/<hash> key.
func ParseTx(key []byte) (chainhash.Hash, errs.R) {
	return parseSingleHash(key, roleTx)
}

// Pending returns the p/<hash> key.
func Pending(hash chainhash.Hash) []byte {
	return []byte(rolePending + hashHex(hash))
}

func ParsePending(key []byte) (chainhash.Hash, errs.R) {
	return parseSingleHash(key, rolePending)
}

func parseSingleHash(key []byte, role string) (chainhash.Hash, errs.R) {
	s := string(key)
	if !strings.HasPrefix(s, role) {
		return chainhash.Hash{}, ErrMalformed.New("key missing role prefix "+role, nil)
	}
	return unhashHex(strings.TrimPrefix(s, role))
}

// Height returns the h/<height>/<hash> key.
func Height(height int32, hash chainhash.Hash) []byte {
	return join(strings.TrimSuffix(roleHeight, "/"), padHeight(height), hashHex(hash))
}

// HeightPrefix returns the h/<height>/ prefix for exact-height scans.
func HeightPrefix(height int32) []byte {
	return []byte(roleHeight + padHeight(height) + "/")
}

// HeightPrefixAll returns the h/ prefix for an all-heights scan.
func HeightPrefixAll() []byte { return []byte(roleHeight) }

// ParseHeight parses an h/<height>/<hash> key.
func ParseHeight(key []byte) (height int32, hash chainhash.Hash, err errs.R) {
	return parseRoleHeightHash(key, roleHeight)
}

func parseRoleHeightHash(key []byte, role string) (int32, chainhash.Hash, errs.R) {
	s := strings.TrimPrefix(string(key), role)
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, chainhash.Hash{}, ErrMalformed.New("malformed height key", nil)
	}
	h, convErr := strconv.ParseInt(parts[0], 10, 64)
	if convErr != nil {
		return 0, chainhash.Hash{}, ErrMalformed.New("bad height component", convErr)
	}
	hash, hashErr := unhashHex(parts[1])
	if hashErr != nil {
		return 0, chainhash.Hash{}, hashErr
	}
	return int32(h), hash, nil
}

// Time returns the m/<ps>/<hash> key.
func Time(ps int64, hash chainhash.Hash) []byte {
	return join(strings.TrimSuffix(roleTime, "/"), padTime(ps), hashHex(hash))
}

func TimePrefixAll() []byte { return []byte(roleTime) }

// TimePrefixUpTo returns an exclusive upper bound covering every m/<ps>/...
// key with ps strictly less than cutoff. Because padTime is fixed-width,
// this bound (which has no trailing "/") sorts strictly below any real
// key sharing its padded-cutoff prefix, and strictly above any key whose
// ps is smaller.
func TimePrefixUpTo(cutoff int64) []byte {
	return []byte(roleTime + padTime(cutoff))
}

func ParseTime(key []byte) (ps int64, hash chainhash.Hash, err errs.R) {
	s := strings.TrimPrefix(string(key), roleTime)
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, chainhash.Hash{}, ErrMalformed.New("malformed time key", nil)
	}
	t, convErr := strconv.ParseInt(parts[0], 10, 64)
	if convErr != nil {
		return 0, chainhash.Hash{}, ErrMalformed.New("bad ts component", convErr)
	}
	hash, hashErr := unhashHex(parts[1])
	if hashErr != nil {
		return 0, chainhash.Hash{}, hashErr
	}
	return t, hash, nil
}

// --- per-account mirrors ---

func acctPad(acct uint32) string { return padUint(acct) }

func AcctHeight(acct uint32, height int32, hash chainhash.Hash) []byte {
	return join(strings.TrimSuffix(roleAcctHeight, "/"), acctPad(acct), padHeight(height), hashHex(hash))
}

func AcctHeightPrefix(acct uint32, height int32) []byte {
	return []byte(roleAcctHeight + acctPad(acct) + "/" + padHeight(height) + "/")
}

func AcctHeightPrefixAll(acct uint32) []byte {
	return []byte(roleAcctHeight + acctPad(acct) + "/")
}

func ParseAcctHeight(key []byte) (acct uint32, height int32, hash chainhash.Hash, err errs.R) {
	s := strings.TrimPrefix(string(key), roleAcctHeight)
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return 0, 0, chainhash.Hash{}, ErrMalformed.New("malformed acct-height key", nil)
	}
	a, e1 := strconv.ParseUint(parts[0], 10, 32)
	h, e2 := strconv.ParseInt(parts[1], 10, 64)
	if e1 != nil || e2 != nil {
		return 0, 0, chainhash.Hash{}, ErrMalformed.New("bad numeric component", nil)
	}
	hash, hashErr := unhashHex(parts[2])
	if hashErr != nil {
		return 0, 0, chainhash.Hash{}, hashErr
	}
	return uint32(a), int32(h), hash, nil
}

func AcctTime(acct uint32, ps int64, hash chainhash.Hash) []byte {
	return join(strings.TrimSuffix(roleAcctTime, "/"), acctPad(acct), padTime(ps), hashHex(hash))
}

func AcctTimePrefixAll(acct uint32) []byte {
	return []byte(roleAcctTime + acctPad(acct) + "/")
}

// AcctTimePrefixUpTo is AcctTimePrefixAll's per-account counterpart to
// TimePrefixUpTo: an exclusive upper bound over M/<acct>/<ps>/... keys
// with ps strictly less than cutoff.
func AcctTimePrefixUpTo(acct uint32, cutoff int64) []byte {
	return []byte(roleAcctTime + acctPad(acct) + "/" + padTime(cutoff))
}

func ParseAcctTime(key []byte) (acct uint32, ps int64, hash chainhash.Hash, err errs.R) {
	s := strings.TrimPrefix(string(key), roleAcctTime)
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return 0, 0, chainhash.Hash{}, ErrMalformed.New("malformed acct-time key", nil)
	}
	a, e1 := strconv.ParseUint(parts[0], 10, 32)
	t, e2 := strconv.ParseInt(parts[1], 10, 64)
	if e1 != nil || e2 != nil {
		return 0, 0, chainhash.Hash{}, ErrMalformed.New("bad numeric component", nil)
	}
	hash, hashErr := unhashHex(parts[2])
	if hashErr != nil {
		return 0, 0, chainhash.Hash{}, hashErr
	}
	return uint32(a), t, hash, nil
}

func AcctPending(acct uint32, hash chainhash.Hash) []byte {
	return join(strings.TrimSuffix(roleAcctPend, "/"), acctPad(acct), hashHex(hash))
}

func AcctPendingPrefixAll(acct uint32) []byte {
	return []byte(roleAcctPend + acctPad(acct) + "/")
}

func ParseAcctPending(key []byte) (acct uint32, hash chainhash.Hash, err errs.R) {
	return parseAcctHash(key, roleAcctPend)
}

func AcctTx(acct uint32, hash chainhash.Hash) []byte {
	return join(strings.TrimSuffix(roleAcctTx, "/"), acctPad(acct), hashHex(hash))
}

func AcctTxPrefixAll(acct uint32) []byte {
	return []byte(roleAcctTx + acctPad(acct) + "/")
}

func ParseAcctTx(key []byte) (acct uint32, hash chainhash.Hash, err errs.R) {
	return parseAcctHash(key, roleAcctTx)
}

func parseAcctHash(key []byte, role string) (uint32, chainhash.Hash, errs.R) {
	s := strings.TrimPrefix(string(key), role)
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return 0, chainhash.Hash{}, ErrMalformed.New("malformed acct key", nil)
	}
	a, convErr := strconv.ParseUint(parts[0], 10, 32)
	if convErr != nil {
		return 0, chainhash.Hash{}, ErrMalformed.New("bad account component", convErr)
	}
	hash, hashErr := unhashHex(parts[1])
	if hashErr != nil {
		return 0, chainhash.Hash{}, hashErr
	}
	return uint32(a), hash, nil
}

// --- coins ---

func Coin(hash chainhash.Hash, vout uint32) []byte {
	return join(strings.TrimSuffix(roleCoin, "/"), hashHex(hash), padUint(vout))
}

// CoinPrefixForTx returns the c/<hash>/ prefix, used to enumerate every
// owned output of one transaction (e.g. when removing it).
func CoinPrefixForTx(hash chainhash.Hash) []byte {
	return []byte(roleCoin + hashHex(hash) + "/")
}

func CoinPrefixAll() []byte { return []byte(roleCoin) }

func ParseCoin(key []byte) (hash chainhash.Hash, vout uint32, err errs.R) {
	return parseHashIdx(key, roleCoin)
}

func AcctCoin(acct uint32, hash chainhash.Hash, vout uint32) []byte {
	return join(strings.TrimSuffix(roleAcctCoin, "/"), acctPad(acct), hashHex(hash), padUint(vout))
}

func AcctCoinPrefixAll(acct uint32) []byte {
	return []byte(roleAcctCoin + acctPad(acct) + "/")
}

func ParseAcctCoin(key []byte) (acct uint32, hash chainhash.Hash, vout uint32, err errs.R) {
	s := strings.TrimPrefix(string(key), roleAcctCoin)
	parts := strings.SplitN(s, "/", 3)
	if len(parts) != 3 {
		return 0, chainhash.Hash{}, 0, ErrMalformed.New("malformed acct-coin key", nil)
	}
	a, e1 := strconv.ParseUint(parts[0], 10, 32)
	v, e2 := strconv.ParseUint(parts[2], 10, 32)
	if e1 != nil || e2 != nil {
		return 0, chainhash.Hash{}, 0, ErrMalformed.New("bad numeric component", nil)
	}
	hash, hashErr := unhashHex(parts[1])
	if hashErr != nil {
		return 0, chainhash.Hash{}, 0, hashErr
	}
	return uint32(a), hash, uint32(v), nil
}

// --- spends, undo, orphans (all keyed by an outpoint) ---

func Spend(hash chainhash.Hash, vout uint32) []byte {
	return join(strings.TrimSuffix(roleSpend, "/"), hashHex(hash), padUint(vout))
}

func ParseSpend(key []byte) (hash chainhash.Hash, vout uint32, err errs.R) {
	return parseHashIdx(key, roleSpend)
}

func Undo(spenderHash chainhash.Hash, inputIdx uint32) []byte {
	return join(strings.TrimSuffix(roleUndo, "/"), hashHex(spenderHash), padUint(inputIdx))
}

// UndoPrefixForTx returns the d/<hash>/ prefix enumerating every undo
// record for a transaction's inputs.
func UndoPrefixForTx(hash chainhash.Hash) []byte {
	return []byte(roleUndo + hashHex(hash) + "/")
}

func ParseUndo(key []byte) (spenderHash chainhash.Hash, inputIdx uint32, err errs.R) {
	return parseHashIdx(key, roleUndo)
}

func Orphan(prevHash chainhash.Hash, prevVout uint32) []byte {
	return join(strings.TrimSuffix(roleOrphan, "/"), hashHex(prevHash), padUint(prevVout))
}

func ParseOrphan(key []byte) (prevHash chainhash.Hash, prevVout uint32, err errs.R) {
	return parseHashIdx(key, roleOrphan)
}

func parseHashIdx(key []byte, role string) (chainhash.Hash, uint32, errs.R) {
	s := strings.TrimPrefix(string(key), role)
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return chainhash.Hash{}, 0, ErrMalformed.New("malformed outpoint key", nil)
	}
	hash, hashErr := unhashHex(parts[0])
	if hashErr != nil {
		return chainhash.Hash{}, 0, hashErr
	}
	v, convErr := strconv.ParseUint(parts[1], 10, 32)
	if convErr != nil {
		return chainhash.Hash{}, 0, ErrMalformed.New("bad index component", convErr)
	}
	return hash, uint32(v), nil
}
