package txindex

import (
	"bytes"

	"github.com/btcsuite/btcd/chaincfg"
	"github.com/btcsuite/btcd/txscript"
	"github.com/btcsuite/btcd/wire"
	"github.com/btcsuite/btcutil"
	"github.com/pkt-cash/txindex/errs"
)

// DefaultAddressHasher builds the stock AddressHasher: output ownership
// is resolved the standard way (ExtractPkScriptAddrs against the output's
// own pkScript); input ownership is resolved the way a wallet recognizes
// its own previously-derived keys spending back out, by hashing the
// public key revealed in the spending witness/signature script, since
// an input carries no pkScript of its own to extract an address from.
func DefaultAddressHasher(params *chaincfg.Params) AddressHasher {
	return &defaultAddressHasher{params: params}
}

type defaultAddressHasher struct {
	params *chaincfg.Params
}

func (h *defaultAddressHasher) OutputAddrHash(tx *wire.MsgTx, outputIndex int) ([]byte, bool) {
	if outputIndex < 0 || outputIndex >= len(tx.TxOut) {
		return nil, false
	}
	_, addrs, _, err := txscript.ExtractPkScriptAddrs(tx.TxOut[outputIndex].PkScript, h.params)
	if err != nil || len(addrs) != 1 {
		return nil, false
	}
	return addrs[0].ScriptAddress(), true
}

func (h *defaultAddressHasher) InputAddrHash(tx *wire.MsgTx, inputIndex int) ([]byte, bool) {
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return nil, false
	}
	txin := tx.TxIn[inputIndex]
	if len(txin.Witness) >= 2 {
		return btcutil.Hash160(txin.Witness[len(txin.Witness)-1]), true
	}
	pushes, err := txscript.PushedData(txin.SignatureScript)
	if err != nil || len(pushes) == 0 {
		return nil, false
	}
	return btcutil.Hash160(pushes[len(pushes)-1]), true
}

func (h *defaultAddressHasher) IsUnspendable(tx *wire.MsgTx, outputIndex int) bool {
	if outputIndex < 0 || outputIndex >= len(tx.TxOut) {
		return true
	}
	return txscript.GetScriptClass(tx.TxOut[outputIndex].PkScript) == txscript.NullDataTy
}

// DefaultScriptVerifier builds a structural ScriptVerifier: for a
// standard P2PKH or P2WPKH previous output, it confirms the spending
// input actually reveals the matching public key, the way
// InputAddrHash/OutputAddrHash must agree for a real spend. It is not a
// consensus script-execution engine -- full signature verification
// belongs to the node this index runs alongside, not to a wallet-side
// transaction index. Previous outputs of any other class are
// accepted unconditionally, since this package has no business rejecting
// script shapes it does not understand; Config.ScriptVerifier can be
// replaced with a fuller implementation when one is available.
func DefaultScriptVerifier(params *chaincfg.Params) ScriptVerifier {
	return &defaultScriptVerifier{params: params}
}

type defaultScriptVerifier struct {
	params *chaincfg.Params
}

func (v *defaultScriptVerifier) VerifyInput(tx *wire.MsgTx, inputIndex int, prevOut *CoinRecord) errs.R {
	if inputIndex < 0 || inputIndex >= len(tx.TxIn) {
		return ErrInput.New("verify: input index out of range", nil)
	}
	class := txscript.GetScriptClass(prevOut.PkScript)
	if class != txscript.PubKeyHashTy && class != txscript.WitnessV0PubKeyHashTy {
		return nil
	}

	_, addrs, _, err := txscript.ExtractPkScriptAddrs(prevOut.PkScript, v.params)
	if err != nil || len(addrs) != 1 {
		return ErrInput.New("verify: cannot extract the previous output's address", err)
	}
	wantHash := addrs[0].ScriptAddress()

	txin := tx.TxIn[inputIndex]
	var pubKey []byte
	if len(txin.Witness) >= 2 {
		pubKey = txin.Witness[len(txin.Witness)-1]
	} else {
		pushes, perr := txscript.PushedData(txin.SignatureScript)
		if perr != nil || len(pushes) == 0 {
			return ErrInput.New("verify: signature script has no data pushes", perr)
		}
		pubKey = pushes[len(pushes)-1]
	}

	if !bytes.Equal(btcutil.Hash160(pubKey), wantHash) {
		return ErrInput.New("verify: spending public key does not match the previous output", nil)
	}
	return nil
}
