package keyfile

import (
	"math/big"
	"testing"
)

func TestHexBytesRoundTrip(t *testing.T) {
	orig := HexBytes{0xde, 0xad, 0xbe, 0xef}
	data, err := orig.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `"deadbeef"` {
		t.Fatalf("got %s, want lowercase unprefixed hex string", data)
	}

	var back HexBytes
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if len(back) != 4 || back[0] != 0xde || back[3] != 0xef {
		t.Fatalf("round trip mismatch: %x", back)
	}
}

func TestHexBytesRejectsInvalidHex(t *testing.T) {
	var h HexBytes
	if err := h.UnmarshalJSON([]byte(`"not-hex!"`)); err == nil {
		t.Fatal("expected error for invalid hex string")
	}
}

func TestBigIntRoundTrip(t *testing.T) {
	n, _ := new(big.Int).SetString("115792089210356248762697446949407573530086143415290314195533631308867097853951", 10)
	orig := NewBigInt(n)

	data, err := orig.MarshalJSON()
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}

	var back BigInt
	if err := back.UnmarshalJSON(data); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.Int.Cmp(n) != 0 {
		t.Fatalf("round trip mismatch: got %s, want %s", back.Int.String(), n.String())
	}
}

func TestBigIntRejectsNonDecimal(t *testing.T) {
	var b BigInt
	if err := b.UnmarshalJSON([]byte(`"0xFF"`)); err == nil {
		t.Fatal("expected error for non-decimal string")
	}
}

func TestBaselineConfigSaveLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	cfg := &BaselineConfig{
		Key:          HexBytes(make([]byte, 32)),
		ReaderIDSize: 4,
		Dir:          dir,
	}
	cfg.Key[0] = 0x42

	if err := SaveBaseline(dir, cfg); err != nil {
		t.Fatalf("save: %v", err)
	}

	back, err := LoadBaseline(dir)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(back.Key) != 32 || back.Key[0] != 0x42 {
		t.Fatalf("key mismatch after round trip: %x", back.Key)
	}
	if back.ReaderIDSize != 4 {
		t.Fatalf("reader id size mismatch: %d", back.ReaderIDSize)
	}
}

func TestBaselineConfigValidateRejectsShortKey(t *testing.T) {
	cfg := &BaselineConfig{Key: HexBytes(make([]byte, 16)), ReaderIDSize: 4}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestBaselineConfigValidateRejectsZeroReaderIDSize(t *testing.T) {
	cfg := &BaselineConfig{Key: HexBytes(make([]byte, 32)), ReaderIDSize: 0}
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected error for zero reader id size")
	}
}
