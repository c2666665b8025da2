// Package tagio persists tagmodel.Tag values to disk in a small versioned
// binary envelope (never language-native object pickling, per the source's
// documented security hazard) and provides the advisory per-file locking
// update_tag needs when multiple processes might touch the same tag.
package tagio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/blacktrace/rfidpath/internal/tagmodel"
)

const (
	magic          = "RFT1"
	formatVersion  = 1
	maxFieldBytes  = 1 << 20
	maxRepeatCount = 1 << 16
)

// Path returns the canonical on-disk location of a tag file, <dir>/<id>.tag.
func Path(dir string, tagID uint32) string {
	return filepath.Join(dir, fmt.Sprintf("%d.tag", tagID))
}

// Save writes t to <dir>/<id>.tag atomically: the envelope is written to a
// temp file in dir and renamed over the target.
func Save(dir string, t *tagmodel.Tag) error {
	data, err := Marshal(t)
	if err != nil {
		return fmt.Errorf("tagio: marshal tag %d: %w", t.ID, err)
	}

	dst := Path(dir, t.ID)
	tmp, err := os.CreateTemp(dir, fmt.Sprintf(".%d.tag.*.tmp", t.ID))
	if err != nil {
		return fmt.Errorf("tagio: create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op once the rename below succeeds

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("tagio: write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("tagio: close temp file: %w", err)
	}
	if err := os.Rename(tmpName, dst); err != nil {
		return fmt.Errorf("tagio: rename into place: %w", err)
	}
	return nil
}

// Load reads and decodes <dir>/<id>.tag.
func Load(dir string, tagID uint32) (*tagmodel.Tag, error) {
	data, err := os.ReadFile(Path(dir, tagID))
	if err != nil {
		return nil, fmt.Errorf("tagio: read tag %d: %w", tagID, err)
	}
	t, err := Unmarshal(data)
	if err != nil {
		return nil, fmt.Errorf("tagio: decode tag %d: %w", tagID, err)
	}
	return t, nil
}

// --- envelope encoding -------------------------------------------------
//
// magic(4) | version(1) | id(4 BE) | mode(field) | content(field) |
// historyCount(4 BE) | history entries(field each) |
// eventCount(4 BE) | events { reader(4 BE) type(field) msg(field) unixNano(8 BE) } |
// storageKeyCount(4 BE) | per key { key(field) entryCount(4 BE) entries {
//     reader(4 BE) unixNano(8 BE) fieldCount(4 BE) { k(field) v(field) } } }
//
// Every length-prefixed field is capped at maxFieldBytes before the
// allocation that would read it; every repeat count is capped at
// maxRepeatCount. Trailing bytes after a fully-decoded envelope are
// rejected, not ignored: unknown fields are a parse error.

func Marshal(t *tagmodel.Tag) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(magic)
	buf.WriteByte(formatVersion)
	writeU32(&buf, t.ID)
	writeField(&buf, []byte(t.Mode))
	writeField(&buf, t.Content)

	writeU32(&buf, uint32(len(t.History)))
	for _, h := range t.History {
		writeField(&buf, h)
	}

	writeU32(&buf, uint32(len(t.Online.Events)))
	for _, ev := range t.Online.Events {
		writeU32(&buf, uint32(ev.Reader))
		writeField(&buf, []byte(ev.Type))
		writeField(&buf, []byte(ev.Msg))
		writeI64(&buf, ev.Timestamp.UnixNano())
	}

	keys := make([]string, 0, len(t.Online.Storage))
	for k := range t.Online.Storage {
		keys = append(keys, k)
	}
	writeU32(&buf, uint32(len(keys)))
	for _, k := range keys {
		writeField(&buf, []byte(k))
		entries := t.Online.Storage[k]
		writeU32(&buf, uint32(len(entries)))
		for _, e := range entries {
			writeU32(&buf, uint32(e.Reader))
			writeI64(&buf, e.Timestamp.UnixNano())
			writeU32(&buf, uint32(len(e.Fields)))
			fkeys := make([]string, 0, len(e.Fields))
			for fk := range e.Fields {
				fkeys = append(fkeys, fk)
			}
			for _, fk := range fkeys {
				writeField(&buf, []byte(fk))
				writeField(&buf, []byte(e.Fields[fk]))
			}
		}
	}

	return buf.Bytes(), nil
}

func Unmarshal(data []byte) (*tagmodel.Tag, error) {
	r := bytes.NewReader(data)

	hdr := make([]byte, len(magic))
	if _, err := readFull(r, hdr); err != nil {
		return nil, fmt.Errorf("short header: %w", err)
	}
	if string(hdr) != magic {
		return nil, fmt.Errorf("bad magic %q", hdr)
	}
	version, err := r.ReadByte()
	if err != nil {
		return nil, fmt.Errorf("missing version byte")
	}
	if version != formatVersion {
		return nil, fmt.Errorf("unsupported tag format version %d", version)
	}

	id, err := readU32(r)
	if err != nil {
		return nil, err
	}
	mode, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("mode: %w", err)
	}
	content, err := readField(r)
	if err != nil {
		return nil, fmt.Errorf("content: %w", err)
	}

	historyCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if historyCount > maxRepeatCount {
		return nil, fmt.Errorf("history count %d exceeds cap", historyCount)
	}
	history := make([][]byte, 0, historyCount)
	for i := uint32(0); i < historyCount; i++ {
		h, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("history[%d]: %w", i, err)
		}
		history = append(history, h)
	}

	eventCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if eventCount > maxRepeatCount {
		return nil, fmt.Errorf("event count %d exceeds cap", eventCount)
	}
	events := make([]tagmodel.Event, 0, eventCount)
	for i := uint32(0); i < eventCount; i++ {
		reader, err := readU32(r)
		if err != nil {
			return nil, err
		}
		typ, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("event[%d].type: %w", i, err)
		}
		msg, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("event[%d].msg: %w", i, err)
		}
		ts, err := readI64(r)
		if err != nil {
			return nil, err
		}
		events = append(events, tagmodel.Event{
			Reader:    int(reader),
			Type:      tagmodel.EventType(typ),
			Msg:       string(msg),
			Timestamp: time.Unix(0, ts).UTC(),
		})
	}

	storageKeyCount, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if storageKeyCount > maxRepeatCount {
		return nil, fmt.Errorf("storage key count %d exceeds cap", storageKeyCount)
	}
	storage := make(map[string][]tagmodel.StorageEntry, storageKeyCount)
	for i := uint32(0); i < storageKeyCount; i++ {
		key, err := readField(r)
		if err != nil {
			return nil, fmt.Errorf("storage[%d].key: %w", i, err)
		}
		entryCount, err := readU32(r)
		if err != nil {
			return nil, err
		}
		if entryCount > maxRepeatCount {
			return nil, fmt.Errorf("storage entry count %d exceeds cap", entryCount)
		}
		entries := make([]tagmodel.StorageEntry, 0, entryCount)
		for j := uint32(0); j < entryCount; j++ {
			reader, err := readU32(r)
			if err != nil {
				return nil, err
			}
			ts, err := readI64(r)
			if err != nil {
				return nil, err
			}
			fieldCount, err := readU32(r)
			if err != nil {
				return nil, err
			}
			if fieldCount > maxRepeatCount {
				return nil, fmt.Errorf("field count %d exceeds cap", fieldCount)
			}
			fields := make(map[string]string, fieldCount)
			for k := uint32(0); k < fieldCount; k++ {
				fk, err := readField(r)
				if err != nil {
					return nil, err
				}
				fv, err := readField(r)
				if err != nil {
					return nil, err
				}
				fields[string(fk)] = string(fv)
			}
			entries = append(entries, tagmodel.StorageEntry{
				Reader:    int(reader),
				Timestamp: time.Unix(0, ts).UTC(),
				Fields:    fields,
			})
		}
		storage[string(key)] = entries
	}

	if r.Len() != 0 {
		return nil, fmt.Errorf("unexpected %d trailing bytes", r.Len())
	}

	return &tagmodel.Tag{
		ID:      id,
		Content: content,
		History: history,
		Mode:    tagmodel.Mode(mode),
		Online: tagmodel.OnlineStorage{
			Events:  events,
			Storage: storage,
		},
	}, nil
}

func writeU32(buf *bytes.Buffer, v uint32) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], v)
	buf.Write(b[:])
}

func writeI64(buf *bytes.Buffer, v int64) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], uint64(v))
	buf.Write(b[:])
}

func writeField(buf *bytes.Buffer, v []byte) {
	writeU32(buf, uint32(len(v)))
	buf.Write(v)
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil {
		return n, err
	}
	if n != len(b) {
		return n, fmt.Errorf("short read: got %d want %d", n, len(b))
	}
	return n, nil
}

func readU32(r *bytes.Reader) (uint32, error) {
	var b [4]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read u32: %w", err)
	}
	return binary.BigEndian.Uint32(b[:]), nil
}

func readI64(r *bytes.Reader) (int64, error) {
	var b [8]byte
	if _, err := readFull(r, b[:]); err != nil {
		return 0, fmt.Errorf("read i64: %w", err)
	}
	return int64(binary.BigEndian.Uint64(b[:])), nil
}

func readField(r *bytes.Reader) ([]byte, error) {
	n, err := readU32(r)
	if err != nil {
		return nil, err
	}
	if n > maxFieldBytes {
		return nil, fmt.Errorf("field length %d exceeds cap", n)
	}
	b := make([]byte, n)
	if n == 0 {
		return b, nil
	}
	if _, err := readFull(r, b); err != nil {
		return nil, fmt.Errorf("read field: %w", err)
	}
	return b, nil
}
