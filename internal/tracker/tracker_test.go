package tracker

import "testing"

func TestGenerateVerifyValidPath(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, []int{1, 2, 3}, map[string][]int{
		"dock-to-shelf": {1, 2, 3},
	})
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	tag, err := eng.GenerateTagSecret(42)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}

	for _, reader := range []int{1, 2, 3} {
		tag, err = eng.UpdateTag(reader, 42)
		if err != nil {
			t.Fatalf("update by reader %d: %v", reader, err)
		}
	}

	ok, label, err := eng.VerifyTag(tag)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected tag that traversed the sanctioned path to verify")
	}
	if label != "dock-to-shelf" {
		t.Fatalf("path label = %q, want dock-to-shelf", label)
	}
}

func TestVerifyRejectsUnsanctionedPath(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, []int{1, 2, 3}, map[string][]int{
		"dock-to-shelf": {1, 2, 3},
	})
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	tag, err := eng.GenerateTagSecret(7)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}

	// reader 2 reads the tag out of order, skipping reader 1 entirely.
	tag, err = eng.UpdateTag(2, 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	tag, err = eng.UpdateTag(3, 7)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	ok, _, err := eng.VerifyTag(tag)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected out-of-order path to fail verification")
	}
}

func TestVerifyDistinguishesPathOrder(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, []int{0, 1}, map[string][]int{
		"zero-then-one": {0, 1},
		"one-then-zero": {1, 0},
	})
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	tag, err := eng.GenerateTagSecret(99)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}
	tag, err = eng.UpdateTag(0, 99)
	if err != nil {
		t.Fatalf("update by reader 0: %v", err)
	}
	tag, err = eng.UpdateTag(1, 99)
	if err != nil {
		t.Fatalf("update by reader 1: %v", err)
	}

	ok, label, err := eng.VerifyTag(tag)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok {
		t.Fatal("expected the traversed path to verify")
	}
	if label != "zero-then-one" {
		t.Fatalf("path label = %q, want zero-then-one (update(0) then update(1) must not match one-then-zero)", label)
	}

	dir2 := t.TempDir()
	eng2, err := GenerateReaderConfigs(dir2, []int{0, 1}, map[string][]int{
		"zero-then-one": {0, 1},
		"one-then-zero": {1, 0},
	})
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}
	tag2, err := eng2.GenerateTagSecret(99)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}
	tag2, err = eng2.UpdateTag(1, 99)
	if err != nil {
		t.Fatalf("update by reader 1: %v", err)
	}
	tag2, err = eng2.UpdateTag(0, 99)
	if err != nil {
		t.Fatalf("update by reader 0: %v", err)
	}

	ok2, label2, err := eng2.VerifyTag(tag2)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !ok2 {
		t.Fatal("expected the reversed path to verify")
	}
	if label2 != "one-then-zero" {
		t.Fatalf("path label = %q, want one-then-zero (update(1) then update(0) must not match zero-then-one)", label2)
	}
}

func TestVerifyRejectsUnfinishedPath(t *testing.T) {
	dir := t.TempDir()

	eng, err := GenerateReaderConfigs(dir, []int{1, 2, 3}, map[string][]int{
		"dock-to-shelf": {1, 2, 3},
	})
	if err != nil {
		t.Fatalf("generate reader configs: %v", err)
	}

	tag, err := eng.GenerateTagSecret(11)
	if err != nil {
		t.Fatalf("generate tag secret: %v", err)
	}
	tag, err = eng.UpdateTag(1, 11)
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	ok, _, err := eng.VerifyTag(tag)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if ok {
		t.Fatal("expected partially-traversed path to fail verification")
	}
}
