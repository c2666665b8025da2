// Package tracker implements the Tracker protocol: EC ElGamal encryption
// of the tag's identity and two accumulator points, homomorphically
// updated at each reader without ever being decrypted in the field, and
// only decrypted by the path manager to compare against a precomputed
// set of sanctioned paths. See spec §4.3.
package tracker

import (
	"crypto/rand"
	"fmt"
	"math/big"

	"github.com/blacktrace/rfidpath/internal/curve160"
)

// Ciphertext is an EC ElGamal pair (C1, C2) encrypting a curve point
// directly — Tracker's plaintexts (tag ID, H, Q) are already points, so
// no message-to-point embedding step is needed.
type Ciphertext struct {
	C1, C2 curve160.Point
}

func randomScalar(c *curve160.Params) (*big.Int, error) {
	k, err := rand.Int(rand.Reader, new(big.Int).Sub(c.N, big.NewInt(1)))
	if err != nil {
		return nil, fmt.Errorf("tracker: random scalar: %w", err)
	}
	return k.Add(k, big.NewInt(1)), nil
}

// Encrypt produces a fresh ElGamal encryption of point m under the
// manager's public key pub.
func Encrypt(c *curve160.Params, pub curve160.Point, m curve160.Point) (Ciphertext, error) {
	r, err := randomScalar(c)
	if err != nil {
		return Ciphertext{}, err
	}
	return encryptWithR(c, pub, m, r), nil
}

func encryptWithR(c *curve160.Params, pub, m curve160.Point, r *big.Int) Ciphertext {
	g := curve160.Point{X: c.Gx, Y: c.Gy}
	c1 := c.ScalarMult(g, r)
	rPub := c.ScalarMult(pub, r)
	c2 := c.Add(m, rPub)
	return Ciphertext{C1: c1, C2: c2}
}

// Decrypt recovers the plaintext point using the manager's private
// scalar.
func Decrypt(c *curve160.Params, priv *big.Int, ct Ciphertext) curve160.Point {
	s := c.ScalarMult(ct.C1, priv)
	if s.Infinity() {
		return ct.C2
	}
	negS := curve160.Point{X: s.X, Y: new(big.Int).Sub(c.P, s.Y)}
	return c.Add(ct.C2, negS)
}

// ScalarMultiply applies the ElGamal homomorphism: scaling both
// components of ct by k yields a fresh encryption of k*plaintext under
// randomness k*r, matching a reader's per-step update of the Q
// accumulator without ever decrypting it.
func ScalarMultiply(c *curve160.Params, ct Ciphertext, k *big.Int) Ciphertext {
	return Ciphertext{
		C1: c.ScalarMult(ct.C1, k),
		C2: c.ScalarMult(ct.C2, k),
	}
}

// Add homomorphically sums two ciphertexts encrypted under the same
// public key: component-wise point addition decrypts to the sum of
// their plaintexts, the other half of the homomorphism update_tag needs
// to fold x0*Q + a_i*H into a new accumulator ciphertext without ever
// decrypting Q or H.
func Add(c *curve160.Params, a, b Ciphertext) Ciphertext {
	return Ciphertext{
		C1: c.Add(a.C1, b.C1),
		C2: c.Add(a.C2, b.C2),
	}
}

// Rerandomize blinds ct with fresh randomness without changing the
// plaintext it decrypts to, masking which reader performed the last
// update.
func Rerandomize(c *curve160.Params, pub curve160.Point, ct Ciphertext) (Ciphertext, error) {
	r, err := randomScalar(c)
	if err != nil {
		return Ciphertext{}, err
	}
	g := curve160.Point{X: c.Gx, Y: c.Gy}
	rG := c.ScalarMult(g, r)
	rPub := c.ScalarMult(pub, r)
	return Ciphertext{
		C1: c.Add(ct.C1, rG),
		C2: c.Add(ct.C2, rPub),
	}, nil
}
