package stepauth

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/blacktrace/rfidpath/internal/keyfile"
)

func masterKeyPair() (*ecdsa.PrivateKey, error) {
	priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("stepauth: generate master key: %w", err)
	}
	return priv, nil
}

func masterPublicBytes(pub *ecdsa.PublicKey) []byte {
	return elliptic.Marshal(elliptic.P256(), pub.X, pub.Y)
}

func masterPublicFromBytes(b []byte) (*ecdsa.PublicKey, error) {
	x, y := elliptic.Unmarshal(elliptic.P256(), b)
	if x == nil {
		return nil, fmt.Errorf("stepauth: invalid master public key encoding")
	}
	return &ecdsa.PublicKey{Curve: elliptic.P256(), X: x, Y: y}, nil
}

func readerKeyPair() (*btcec.PrivateKey, error) {
	priv, err := btcec.NewPrivateKey()
	if err != nil {
		return nil, fmt.Errorf("stepauth: generate reader key: %w", err)
	}
	return priv, nil
}

// loadMaster reconstructs the master P-256 keypair from a keyfile
// record.
func loadMaster(kp keyfile.ECDSAKeyPair) (*ecdsa.PrivateKey, *ecdsa.PublicKey, error) {
	pub, err := masterPublicFromBytes(kp.Public)
	if err != nil {
		return nil, nil, err
	}
	priv := &ecdsa.PrivateKey{PublicKey: *pub, D: kp.Private.Int}
	return priv, pub, nil
}

// loadReaderKey reconstructs a reader's secp256k1 keypair.
func loadReaderKey(r keyfile.StepAuthReader) (*btcec.PrivateKey, *btcec.PublicKey, error) {
	priv, pub := btcec.PrivKeyFromBytes(padScalar(r.Private.Int, 32))
	if priv == nil {
		return nil, nil, fmt.Errorf("stepauth: invalid reader %d private scalar", r.ID)
	}
	return priv, pub, nil
}

func padScalar(v *big.Int, size int) []byte {
	out := make([]byte, size)
	b := v.Bytes()
	copy(out[size-len(b):], b)
	return out
}
