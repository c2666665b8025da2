package stepauth

import (
	"bytes"
	"crypto/elliptic"
	"crypto/hmac"
	"crypto/sha256"
	"math/big"
)

// deterministicK derives the per-signature nonce for P-256 ECDSA per
// RFC 6979, the same style of deterministic signing btcec already
// provides for secp256k1 but that the standard library's crypto/ecdsa
// does not offer for NIST curves. StepAuth's master signatures must be
// reproducible from (key, message) alone so two signing runs over the
// same onion layer never disagree on an otherwise-arbitrary nonce.
func deterministicK(curve elliptic.Curve, priv *big.Int, hash []byte) *big.Int {
	n := curve.Params().N
	qlen := n.BitLen()
	rolen := (qlen + 7) / 8

	holen := sha256.Size
	v := bytes.Repeat([]byte{0x01}, holen)
	k := bytes.Repeat([]byte{0x00}, holen)

	x := int2octets(priv, rolen)
	h1 := bits2octets(hash, curve, rolen)

	mac := hmac.New(sha256.New, k)
	mac.Write(v)
	mac.Write([]byte{0x00})
	mac.Write(x)
	mac.Write(h1)
	k = mac.Sum(nil)

	mac = hmac.New(sha256.New, k)
	mac.Write(v)
	v = mac.Sum(nil)

	mac = hmac.New(sha256.New, k)
	mac.Write(v)
	mac.Write([]byte{0x01})
	mac.Write(x)
	mac.Write(h1)
	k = mac.Sum(nil)

	mac = hmac.New(sha256.New, k)
	mac.Write(v)
	v = mac.Sum(nil)

	for {
		var t []byte
		for len(t) < rolen {
			mac = hmac.New(sha256.New, k)
			mac.Write(v)
			v = mac.Sum(nil)
			t = append(t, v...)
		}

		candidate := bits2int(t, qlen)
		if candidate.Sign() > 0 && candidate.Cmp(n) < 0 {
			return candidate
		}

		mac = hmac.New(sha256.New, k)
		mac.Write(v)
		mac.Write([]byte{0x00})
		k = mac.Sum(nil)

		mac = hmac.New(sha256.New, k)
		mac.Write(v)
		v = mac.Sum(nil)
	}
}

func bits2int(b []byte, qlen int) *big.Int {
	v := new(big.Int).SetBytes(b)
	blen := len(b) * 8
	if blen > qlen {
		v.Rsh(v, uint(blen-qlen))
	}
	return v
}

func int2octets(v *big.Int, rolen int) []byte {
	out := v.Bytes()
	if len(out) < rolen {
		padded := make([]byte, rolen)
		copy(padded[rolen-len(out):], out)
		return padded
	}
	if len(out) > rolen {
		return out[len(out)-rolen:]
	}
	return out
}

func bits2octets(hash []byte, curve elliptic.Curve, rolen int) []byte {
	n := curve.Params().N
	z := bits2int(hash, n.BitLen())
	z.Mod(z, n)
	return int2octets(z, rolen)
}
