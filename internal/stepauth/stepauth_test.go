package stepauth

import (
	"testing"

	"github.com/blacktrace/rfidpath/internal/tagio"
)

// TestGenerateUnwrapVerify mirrors the path-order scenario from the
// spec: readers [2,0,1] around tag 5. Verification with reader 2
// succeeds on the fresh tag; verification with reader 0 on that same
// fresh tag fails. After update(2), verification with 0 succeeds.
func TestGenerateUnwrapVerify(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, []int{0, 1, 2}, 2, 4)
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	tag, err := eng.GenerateTagSecret(5, []int{2, 0, 1})
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}

	ok, err := eng.VerifyTag(2, tag)
	if err != nil {
		t.Fatalf("verify reader 2 on fresh tag: %v", err)
	}
	if !ok {
		t.Fatal("expected verification with the outermost reader to succeed")
	}

	ok, err = eng.VerifyTag(0, tag)
	if err != nil {
		t.Fatalf("verify reader 0 on fresh tag: %v", err)
	}
	if ok {
		t.Fatal("expected verification with a non-outermost reader to fail")
	}

	tag, err = eng.UpdateTag(2, 5)
	if err != nil {
		t.Fatalf("update by reader 2: %v", err)
	}

	ok, err = eng.VerifyTag(0, tag)
	if err != nil {
		t.Fatalf("verify reader 0 after update(2): %v", err)
	}
	if !ok {
		t.Fatal("expected verification with reader 0 to succeed after update(2)")
	}

	tag, err = eng.UpdateTag(0, 5)
	if err != nil {
		t.Fatalf("update by reader 0: %v", err)
	}
	tag, err = eng.UpdateTag(1, 5)
	if err != nil {
		t.Fatalf("update by reader 1: %v", err)
	}

	if len(tag.Content) != 4 {
		t.Fatalf("expected fully-traversed tag content to be the raw 4-byte tag id, got %d bytes", len(tag.Content))
	}

	ok, err = eng.VerifyTag(1, tag)
	if err != nil {
		t.Fatalf("verify fully-unwrapped tag: %v", err)
	}
	if ok {
		t.Fatal("expected a fully-unwrapped tag (no remaining signed layer) to fail verification")
	}
}

func TestUpdateRejectsWrongReader(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, []int{1, 2, 3}, 2, 4)
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	if _, err := eng.GenerateTagSecret(5, []int{1, 2, 3}); err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}

	if _, err := eng.UpdateTag(2, 5); err == nil {
		t.Fatal("expected update by out-of-order reader to fail")
	}
}

func TestUpdateRejectsTamperedSignature(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, []int{1, 2}, 2, 4)
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	tag, err := eng.GenerateTagSecret(9, []int{1, 2})
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}
	tag.Content[len(tag.Content)-1] ^= 0xFF
	if err := tagio.Save(dir, tag); err != nil {
		t.Fatalf("save tampered tag: %v", err)
	}

	if _, err := eng.UpdateTag(1, 9); err == nil {
		t.Fatal("expected update to fail on tampered signature")
	}
}
