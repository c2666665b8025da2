// Package tagdb implements the external key-value store RFChain's online
// half relies on: one row per key, last-write-wins on Insert, and a hard
// failure on lookup when no row exists for a given key (a missing row
// always means verification should fail loudly rather than silently).
// The store keeps a single value per key, so duplicate rows cannot occur.
package tagdb

import (
	"encoding/json"
	"fmt"

	"github.com/syndtr/goleveldb/leveldb"
)

// Row is one stored online entry: the XOR-masked secret half b_i and the
// reader that wrote it.
type Row struct {
	B      []byte `json:"b"`
	Reader int    `json:"reader"`
}

// DB wraps a goleveldb handle keyed by the AES-ECB-masked tag identifier
// RFChain computes for each step.
type DB struct {
	ldb *leveldb.DB
}

// Open opens (creating if absent) the leveldb store at path.
func Open(path string) (*DB, error) {
	ldb, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("tagdb: open %s: %w", path, err)
	}
	return &DB{ldb: ldb}, nil
}

func (d *DB) Close() error {
	return d.ldb.Close()
}

// Insert overwrites any existing row for key (last-write-wins), matching
// RFChain's append-only-on-the-tag-but-overwrite-online-table semantics.
func (d *DB) Insert(key []byte, row Row) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("tagdb: marshal row: %w", err)
	}
	if err := d.ldb.Put(key, data, nil); err != nil {
		return fmt.Errorf("tagdb: put: %w", err)
	}
	return nil
}

// Lookup returns the single row stored for key, or an error when there
// is none. goleveldb only ever holds the last value Put under a key, so a
// "multiple rows" condition can't arise from the store and Lookup does
// not check for one.
func (d *DB) Lookup(key []byte) (Row, error) {
	data, err := d.ldb.Get(key, nil)
	if err == leveldb.ErrNotFound {
		return Row{}, fmt.Errorf("tagdb: no row for key %x", key)
	}
	if err != nil {
		return Row{}, fmt.Errorf("tagdb: get: %w", err)
	}
	var row Row
	if err := json.Unmarshal(data, &row); err != nil {
		return Row{}, fmt.Errorf("tagdb: unmarshal row: %w", err)
	}
	return row, nil
}

// Delete removes the row for key.
func (d *DB) Delete(key []byte) error {
	if err := d.ldb.Delete(key, nil); err != nil {
		return fmt.Errorf("tagdb: delete: %w", err)
	}
	return nil
}
