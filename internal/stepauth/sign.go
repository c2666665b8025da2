package stepauth

import (
	"crypto/ecdsa"
	"crypto/sha256"
	"fmt"
	"math/big"
)

// signature is a raw (r, s) pair, serialized as two fixed-width,
// big-endian 32-byte values — P-256's scalar size — concatenated.
type signature struct {
	R, S *big.Int
}

func (s signature) bytes() []byte {
	out := make([]byte, 64)
	rb := s.R.Bytes()
	sb := s.S.Bytes()
	copy(out[32-len(rb):32], rb)
	copy(out[64-len(sb):64], sb)
	return out
}

func signatureFromBytes(b []byte) (signature, error) {
	if len(b) != 64 {
		return signature{}, fmt.Errorf("stepauth: signature length %d, want 64", len(b))
	}
	return signature{
		R: new(big.Int).SetBytes(b[:32]),
		S: new(big.Int).SetBytes(b[32:]),
	}, nil
}

// signMessage signs msg's SHA-256 digest with priv using a deterministic
// RFC 6979 nonce, so the same (key, message) pair always yields the same
// signature bytes.
func signMessage(priv *ecdsa.PrivateKey, msg []byte) (signature, error) {
	curve := priv.Curve
	n := curve.Params().N
	digest := sha256.Sum256(msg)

	k := deterministicK(curve, priv.D, digest[:])

	rx, _ := curve.ScalarBaseMult(k.Bytes())
	r := new(big.Int).Mod(rx, n)
	if r.Sign() == 0 {
		return signature{}, fmt.Errorf("stepauth: deterministic r is zero")
	}

	kInv := new(big.Int).ModInverse(k, n)
	e := hashToInt(digest[:], n)
	s := new(big.Int).Mul(priv.D, r)
	s.Add(s, e)
	s.Mul(s, kInv)
	s.Mod(s, n)
	if s.Sign() == 0 {
		return signature{}, fmt.Errorf("stepauth: deterministic s is zero")
	}

	return signature{R: r, S: s}, nil
}

// verifySignature checks sig against msg's SHA-256 digest under pub.
func verifySignature(pub *ecdsa.PublicKey, msg []byte, sig signature) bool {
	digest := sha256.Sum256(msg)
	return ecdsa.Verify(pub, digest[:], sig.R, sig.S)
}

func hashToInt(hash []byte, n *big.Int) *big.Int {
	return bits2int(hash, n.BitLen())
}
