// Package baseline implements the Baseline protocol: AES-GCM
// authenticated encryption of an accumulating reader-id trail, all under
// one symmetric key shared by every reader. See spec §4.1.
package baseline

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/blacktrace/rfidpath/internal/keyfile"
	"github.com/blacktrace/rfidpath/internal/protoerr"
	"github.com/blacktrace/rfidpath/internal/tagio"
	"github.com/blacktrace/rfidpath/internal/tagmodel"
)

const (
	nonceSize = 12
	tagSize   = 16
)

// Engine binds a loaded keyfile to the four caller-facing operations.
type Engine struct {
	cfg *keyfile.BaselineConfig
}

func Load(dir string) (*Engine, error) {
	cfg, err := keyfile.LoadBaseline(dir)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

// GenerateReaderConfigs writes a fresh Baseline keyfile with a random
// AES-256 key into dir.
func GenerateReaderConfigs(dir string, readerIDSize int) (*Engine, error) {
	key := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("baseline: generate key: %w", err)
	}
	cfg := &keyfile.BaselineConfig{
		Key:          key,
		ReaderIDSize: readerIDSize,
		Dir:          dir,
	}
	if err := keyfile.SaveBaseline(dir, cfg); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg}, nil
}

func (e *Engine) encodeID(id uint32) []byte {
	b := make([]byte, e.cfg.ReaderIDSize)
	full := make([]byte, 4)
	binary.BigEndian.PutUint32(full, id)
	// right-justify into reader_id_size bytes, matching spec's big-endian
	// fixed-width identifiers.
	copy(b[len(b)-min(len(b), 4):], full[4-min(len(b), 4):])
	return b
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func (e *Engine) seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(e.cfg.Key)
	if err != nil {
		return nil, fmt.Errorf("baseline: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, fmt.Errorf("baseline: new gcm: %w", err)
	}
	nonce := make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("baseline: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, nil) // ciphertext || tag
	body := make([]byte, 0, nonceSize+len(sealed))
	body = append(body, nonce...)
	body = append(body, sealed...)

	framed := make([]byte, 2+len(body))
	binary.BigEndian.PutUint16(framed[:2], uint16(len(body)))
	copy(framed[2:], body)
	return framed, nil
}

// open parses the 2-byte length, the nonce, and the ciphertext with its
// trailing GCM tag (the layout seal writes), then decrypts. A GCM authentication failure is a verification failure
// (taxonomy 1), not a fatal error; a malformed frame is a fatal parse
// error (taxonomy 2).
func (e *Engine) open(content []byte) (plaintext []byte, ok bool, err error) {
	if len(content) < 2 {
		return nil, false, fmt.Errorf("baseline: content too short for length prefix")
	}
	l := int(binary.BigEndian.Uint16(content[:2]))
	body := content[2:]
	if len(body) != l {
		return nil, false, fmt.Errorf("baseline: declared length %d does not match body length %d", l, len(body))
	}
	if len(body) < nonceSize+tagSize {
		return nil, false, fmt.Errorf("baseline: body too short for nonce+tag")
	}
	nonce := body[:nonceSize]
	sealed := body[nonceSize:]

	block, err := aes.NewCipher(e.cfg.Key)
	if err != nil {
		return nil, false, fmt.Errorf("baseline: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, false, fmt.Errorf("baseline: new gcm: %w", err)
	}

	pt, decErr := gcm.Open(nil, nonce, sealed, nil)
	if decErr != nil {
		return nil, false, nil
	}
	return pt, true, nil
}

// GenerateTagSecret creates a fresh tag whose plaintext is just the
// 4-byte tag id, persisted at <dir>/<tag_id>.tag.
func (e *Engine) GenerateTagSecret(tagID uint32) (*tagmodel.Tag, error) {
	idBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(idBytes, tagID)

	content, err := e.seal(idBytes)
	if err != nil {
		return nil, err
	}

	t := tagmodel.New(tagID, tagmodel.ModeBaseline, content)
	if err := tagio.Save(e.cfg.Dir, t); err != nil {
		return nil, err
	}
	return t, nil
}

// VerifyTag decrypts and authenticates tag.Content, returning the
// plaintext on success. Recording the read event is the caller's
// responsibility via RecordRead so pure verification never mutates state.
func (e *Engine) VerifyTag(t *tagmodel.Tag) (ok bool, plaintext []byte, err error) {
	return e.open(t.Content)
}

// UpdateTag verifies the tag, appends reader's id to the recovered
// plaintext, re-encrypts under a fresh nonce, and persists the result.
// The whole read-modify-write sequence runs under an exclusive file lock.
func (e *Engine) UpdateTag(reader uint32, tagID uint32) (*tagmodel.Tag, error) {
	var result *tagmodel.Tag
	err := tagio.WithLock(e.cfg.Dir, tagID, func() error {
		t, err := tagio.Load(e.cfg.Dir, tagID)
		if err != nil {
			return err
		}

		ok, plaintext, err := e.VerifyTag(t)
		if err != nil {
			return err
		}
		if !ok {
			return protoerr.Verification("baseline: gcm authentication failed")
		}

		readerBytes := e.encodeID(reader)
		newPlaintext := append(append([]byte(nil), plaintext...), readerBytes...)

		newContent, err := e.seal(newPlaintext)
		if err != nil {
			return err
		}

		t.SetContent(newContent)
		t.RecordUpdate(int(reader), "update")

		if err := tagio.Save(e.cfg.Dir, t); err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
