package cryptoutil

import (
	"bytes"
	"crypto/rand"
	"testing"
)

func TestECBRoundTrip(t *testing.T) {
	key := make([]byte, 16)
	if _, err := rand.Read(key); err != nil {
		t.Fatal(err)
	}
	plaintext := Pad16([]byte("the quick brown fox"))

	ct, err := ECBEncrypt(key, plaintext)
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if len(ct) != len(plaintext) {
		t.Fatalf("ciphertext length %d != plaintext length %d", len(ct), len(plaintext))
	}

	pt, err := ECBDecrypt(key, ct)
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}
	unpadded, err := Unpad16(pt)
	if err != nil {
		t.Fatalf("unpad: %v", err)
	}
	if !bytes.Equal(unpadded, []byte("the quick brown fox")) {
		t.Fatalf("round trip mismatch: got %q", unpadded)
	}
}

func TestECBRejectsBadLength(t *testing.T) {
	key := make([]byte, 16)
	if _, err := ECBEncrypt(key, []byte("short")); err == nil {
		t.Fatal("expected error for non-block-aligned plaintext")
	}
}

func TestUnpad16RejectsCorruption(t *testing.T) {
	padded := Pad16([]byte("hello"))
	padded[len(padded)-1] = 0xFF
	if _, err := Unpad16(padded); err == nil {
		t.Fatal("expected error for corrupted padding")
	}
}
