package baseline

import (
	"encoding/binary"
	"testing"

	"github.com/blacktrace/rfidpath/internal/tagio"
)

func TestGenerateVerifyUpdate(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, 4)
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	tag, err := eng.GenerateTagSecret(7)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}

	ok, plaintext, err := eng.VerifyTag(tag)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected fresh tag to verify")
	}
	if got := binary.BigEndian.Uint32(plaintext[:4]); got != 7 {
		t.Fatalf("decoded tag id = %d, want 7", got)
	}

	if _, err := eng.UpdateTag(1, 7); err != nil {
		t.Fatalf("update 1: %v", err)
	}
	if _, err := eng.UpdateTag(2, 7); err != nil {
		t.Fatalf("update 2: %v", err)
	}

	reloaded, err := tagio.Load(dir, 7)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	ok, plaintext, err = eng.VerifyTag(reloaded)
	if err != nil {
		t.Fatalf("verify after updates: %v", err)
	}
	if !ok {
		t.Fatal("expected updated tag to verify")
	}
	if len(plaintext) != 4+4+4 {
		t.Fatalf("plaintext length = %d, want 12", len(plaintext))
	}
	if len(reloaded.History) != 2 {
		t.Fatalf("history length = %d, want 2", len(reloaded.History))
	}
}

func TestVerifyRejectsTamperedContent(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, 4)
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}
	tag, err := eng.GenerateTagSecret(3)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}

	tampered := append([]byte(nil), tag.Content...)
	tampered[len(tampered)-1] ^= 0xFF
	tag.Content = tampered

	ok, _, err := eng.VerifyTag(tag)
	if err != nil {
		t.Fatalf("verify returned error instead of (false, nil): %v", err)
	}
	if ok {
		t.Fatal("expected tampered tag to fail verification")
	}
}

func TestUpdateRejectsTamperedTag(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, 4)
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}
	tag, err := eng.GenerateTagSecret(9)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}
	tag.Content[len(tag.Content)-1] ^= 0xFF
	if err := tagio.Save(dir, tag); err != nil {
		t.Fatalf("save tampered tag: %v", err)
	}

	if _, err := eng.UpdateTag(1, 9); err == nil {
		t.Fatal("expected update to fail on tampered tag")
	}
}
