// Package keyfile reads and writes the per-protocol JSON key material
// described in spec §6. Every keyfile is a single JSON document at
// <dir>/keyfile.json. Per §9's "dynamic typing of scalars" note, this
// package fixes one representation per kind of field: raw byte strings
// (symmetric keys, encoded public keys, DER blobs) are lowercase hex JSON
// strings via HexBytes; arbitrary-precision integers (ECDSA/ElGamal
// scalars, curve parameters, affine point coordinates) are decimal-string
// JSON fields via BigInt, so no bit width is lost to float64 JSON numbers.
package keyfile

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"math/big"
	"os"
	"path/filepath"
)

// HexBytes round-trips a byte slice as a lowercase, unprefixed hex string.
type HexBytes []byte

func (h HexBytes) MarshalJSON() ([]byte, error) {
	return json.Marshal(hex.EncodeToString(h))
}

func (h *HexBytes) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("hexbytes: %w", err)
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return fmt.Errorf("hexbytes: invalid hex %q: %w", s, err)
	}
	*h = b
	return nil
}

// BigInt round-trips an arbitrary-precision scalar as a decimal JSON
// string, preserving full bit width (unlike a JSON number).
type BigInt struct {
	*big.Int
}

func NewBigInt(v *big.Int) BigInt {
	return BigInt{Int: v}
}

func (b BigInt) MarshalJSON() ([]byte, error) {
	if b.Int == nil {
		return json.Marshal("0")
	}
	return json.Marshal(b.Int.String())
}

func (b *BigInt) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("bigint: %w", err)
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return fmt.Errorf("bigint: invalid decimal string %q", s)
	}
	b.Int = v
	return nil
}

// keyfilePath is the fixed document name within a protocol's directory.
func keyfilePath(dir string) string {
	return filepath.Join(dir, "keyfile.json")
}

// write marshals v as indented JSON to <dir>/keyfile.json.
func write(dir string, v any) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("keyfile: create dir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("keyfile: marshal: %w", err)
	}
	if err := os.WriteFile(keyfilePath(dir), data, 0o600); err != nil {
		return fmt.Errorf("keyfile: write: %w", err)
	}
	return nil
}

// read unmarshals <dir>/keyfile.json into v.
func read(dir string, v any) error {
	data, err := os.ReadFile(keyfilePath(dir))
	if err != nil {
		return fmt.Errorf("keyfile: read: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("keyfile: unmarshal: %w", err)
	}
	return nil
}
