package tagdb

import (
	"path/filepath"
	"testing"
)

func TestInsertLookupDelete(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	key := []byte("tag-0001")
	row := Row{B: []byte{1, 2, 3, 4}, Reader: 3}

	if err := db.Insert(key, row); err != nil {
		t.Fatalf("insert: %v", err)
	}

	got, err := db.Lookup(key)
	if err != nil {
		t.Fatalf("lookup: %v", err)
	}
	if got.Reader != 3 || string(got.B) != string(row.B) {
		t.Fatalf("lookup mismatch: got %+v", got)
	}

	// last-write-wins
	if err := db.Insert(key, Row{B: []byte{9}, Reader: 4}); err != nil {
		t.Fatalf("re-insert: %v", err)
	}
	got, err = db.Lookup(key)
	if err != nil {
		t.Fatalf("lookup after overwrite: %v", err)
	}
	if got.Reader != 4 {
		t.Fatalf("expected overwritten row, got %+v", got)
	}

	if err := db.Delete(key); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := db.Lookup(key); err == nil {
		t.Fatal("expected lookup to fail after delete")
	}
}

func TestLookupMissingKeyFails(t *testing.T) {
	dir := t.TempDir()
	db, err := Open(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer db.Close()

	if _, err := db.Lookup([]byte("absent")); err == nil {
		t.Fatal("expected error for missing key")
	}
}
