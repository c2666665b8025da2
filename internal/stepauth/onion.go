package stepauth

import (
	"crypto/ecdsa"
	"encoding/binary"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"
)

// encodeID renders id as a big-endian, size-byte identifier, matching
// the fixed-width reader identifiers Baseline already uses.
func encodeID(id int, size int) []byte {
	full := make([]byte, 4)
	binary.BigEndian.PutUint32(full, uint32(id))
	out := make([]byte, size)
	n := size
	if n > 4 {
		n = 4
	}
	copy(out[size-n:], full[4-n:])
	return out
}

// buildOnion constructs the nested ECIES bundle for path (ordered
// outermost-first) around tagID, returning the outermost bundle to
// store as the tag's content. The innermost layer doubles the last
// reader's id as a terminal sentinel ahead of the tag id.
func buildOnion(masterPriv *ecdsa.PrivateKey, readers map[int]*btcec.PublicKey, path []int, readerIDSize, tagIDSize int, tagID uint32) ([]byte, error) {
	if len(path) == 0 {
		return nil, fmt.Errorf("stepauth: empty path")
	}

	last := path[len(path)-1]
	lastPub, ok := readers[last]
	if !ok {
		return nil, fmt.Errorf("stepauth: unknown reader %d", last)
	}

	tagIDBytes := make([]byte, tagIDSize)
	full := make([]byte, 4)
	binary.BigEndian.PutUint32(full, tagID)
	n := tagIDSize
	if n > 4 {
		n = 4
	}
	copy(tagIDBytes[tagIDSize-n:], full[4-n:])

	lastIDBytes := encodeID(last, readerIDSize)
	inner := append(append([]byte(nil), lastIDBytes...), tagIDBytes...)
	plaintext := append(append([]byte(nil), lastIDBytes...), inner...)

	bundle, err := sealLayer(masterPriv, lastPub, plaintext)
	if err != nil {
		return nil, err
	}

	for i := len(path) - 2; i >= 0; i-- {
		readerID := path[i]
		nextID := path[i+1]
		pub, ok := readers[readerID]
		if !ok {
			return nil, fmt.Errorf("stepauth: unknown reader %d", readerID)
		}
		plaintext := append(append(encodeID(readerID, readerIDSize), encodeID(nextID, readerIDSize)...), bundle...)
		bundle, err = sealLayer(masterPriv, pub, plaintext)
		if err != nil {
			return nil, err
		}
	}

	return bundle, nil
}

// sealLayer ECIES-encrypts plaintext to pub and signs the resulting
// ciphertext with the master key, returning ciphertext||signature.
func sealLayer(masterPriv *ecdsa.PrivateKey, pub *btcec.PublicKey, plaintext []byte) ([]byte, error) {
	ct, err := eciesEncrypt(pub, plaintext)
	if err != nil {
		return nil, err
	}
	sig, err := signMessage(masterPriv, ct)
	if err != nil {
		return nil, err
	}
	return append(ct, sig.bytes()...), nil
}

// peelLayer verifies the master signature over bundle's ciphertext
// portion, decrypts it with priv, and splits the recovered plaintext
// into its two leading identifiers — the claimed reader id and the next
// reader's id (equal to claimedID at the terminal layer, per the doubled
// sentinel) — and the remaining payload (either a nested bundle or the
// raw tag id at the terminal layer).
//
// A signature or decryption failure is a verification failure, not a
// fatal error: an attacker-tampered or misdelivered tag must fail
// (false, nil), never panic or abort with a raw error. A bundle too
// short to carry a signature (e.g. an already fully-unwrapped tag) is
// likewise reported as a failed verification rather than an error.
func peelLayer(masterPub *ecdsa.PublicKey, priv *btcec.PrivateKey, readerIDSize int, bundle []byte) (claimedID []byte, nextID []byte, rest []byte, ok bool, err error) {
	if len(bundle) < 64 {
		return nil, nil, nil, false, nil
	}
	ct := bundle[:len(bundle)-64]
	sigBytes := bundle[len(bundle)-64:]
	sig, err := signatureFromBytes(sigBytes)
	if err != nil {
		return nil, nil, nil, false, err
	}
	if !verifySignature(masterPub, ct, sig) {
		return nil, nil, nil, false, nil
	}

	plaintext, decErr := eciesDecrypt(priv, ct)
	if decErr != nil {
		return nil, nil, nil, false, nil
	}
	if len(plaintext) < 2*readerIDSize {
		return nil, nil, nil, false, nil
	}
	return plaintext[:readerIDSize], plaintext[readerIDSize : 2*readerIDSize], plaintext[2*readerIDSize:], true, nil
}
