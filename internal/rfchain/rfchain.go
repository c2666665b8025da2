// Package rfchain implements the RFChain protocol: a per-step AES-GCM
// envelope chained by P-256 ECDSA signatures, with each step's secret
// split between an offline half carried on the tag and an online half
// held in an external key-value store (TagDB). See spec §4.4.
package rfchain

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"crypto/sha256"
	"crypto/x509"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"io"
	"math/big"

	"github.com/blacktrace/rfidpath/internal/cryptoutil"
	"github.com/blacktrace/rfidpath/internal/keyfile"
	"github.com/blacktrace/rfidpath/internal/protoerr"
	"github.com/blacktrace/rfidpath/internal/tagdb"
	"github.com/blacktrace/rfidpath/internal/tagio"
	"github.com/blacktrace/rfidpath/internal/tagmodel"
)

const (
	nonceSize = 12
	gcmTagLen = 16
)

// Engine binds a loaded RFChain keyfile and its TagDB handle to the four
// caller-facing operations.
type Engine struct {
	cfg     *keyfile.RFChainConfig
	db      *tagdb.DB
	readers map[int]*ecdsa.PrivateKey
}

func Load(dir, dbPath string) (*Engine, error) {
	cfg, err := keyfile.LoadRFChain(dir)
	if err != nil {
		return nil, err
	}
	db, err := tagdb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, db)
}

func newEngine(cfg *keyfile.RFChainConfig, db *tagdb.DB) (*Engine, error) {
	readers := make(map[int]*ecdsa.PrivateKey, len(cfg.Readers))
	for _, r := range cfg.Readers {
		priv, err := x509.ParseECPrivateKey(r.PrivateDER)
		if err != nil {
			return nil, fmt.Errorf("rfchain: parse reader %d private key: %w", r.ID, err)
		}
		readers[r.ID] = priv
	}
	return &Engine{cfg: cfg, db: db, readers: readers}, nil
}

func (e *Engine) Close() error {
	return e.db.Close()
}

// GenerateReaderConfigs mints a P-256 ECDSA keypair per reader and a
// fresh AES-256 envelope key k, then opens the TagDB store at dbPath.
func GenerateReaderConfigs(dir, dbPath string, readerIDs []int) (*Engine, error) {
	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, fmt.Errorf("rfchain: generate k: %w", err)
	}

	readers := make([]keyfile.RFChainReader, 0, len(readerIDs))
	for _, id := range readerIDs {
		priv, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
		if err != nil {
			return nil, fmt.Errorf("rfchain: generate reader %d key: %w", id, err)
		}
		der, err := x509.MarshalECPrivateKey(priv)
		if err != nil {
			return nil, fmt.Errorf("rfchain: marshal reader %d key: %w", id, err)
		}
		readers = append(readers, keyfile.RFChainReader{
			ID:         id,
			Public:     elliptic.Marshal(elliptic.P256(), priv.X, priv.Y),
			Private:    keyfile.NewBigInt(priv.D),
			PrivateDER: der,
		})
	}

	cfg := &keyfile.RFChainConfig{
		Dir:        dir,
		K:          k,
		Curve:      "P-256",
		CurveBytes: 32,
		HashBytes:  sha256.Size,
		Readers:    readers,
	}
	if err := keyfile.SaveRFChain(dir, cfg); err != nil {
		return nil, err
	}

	db, err := tagdb.Open(dbPath)
	if err != nil {
		return nil, err
	}
	return newEngine(cfg, db)
}

// maskedID computes AES-ECB(k, pad16(tagID || step)), with tagID and step
// each 4 bytes big-endian — the TagDB row key for a given chain step, so
// the online table never stores a raw tag id.
func (e *Engine) maskedID(tagID uint32, step int) ([]byte, error) {
	idBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(idBytes, tagID)
	stepBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(stepBytes, uint32(step))
	plain := append(idBytes, stepBytes...)
	padded := cryptoutil.Pad16(plain)
	return cryptoutil.ECBEncrypt(e.cfg.K, padded)
}

// rawSign returns a fixed-width r||s ECDSA signature, 64 bytes for
// P-256.
func rawSign(priv *ecdsa.PrivateKey, digest []byte) ([]byte, error) {
	r, s, err := ecdsa.Sign(rand.Reader, priv, digest)
	if err != nil {
		return nil, fmt.Errorf("rfchain: sign: %w", err)
	}
	out := make([]byte, 64)
	rb := r.Bytes()
	sb := s.Bytes()
	copy(out[32-len(rb):32], rb)
	copy(out[64-len(sb):64], sb)
	return out, nil
}

func rawVerify(pub *ecdsa.PublicKey, digest, sig []byte) bool {
	if len(sig) != 64 {
		return false
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:])
	return ecdsa.Verify(pub, digest, r, s)
}

func gcmSeal(key, plaintext, aad []byte) (nonce, ciphertext, tag []byte, err error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rfchain: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("rfchain: new gcm: %w", err)
	}
	nonce = make([]byte, nonceSize)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("rfchain: generate nonce: %w", err)
	}
	sealed := gcm.Seal(nil, nonce, plaintext, aad)
	ciphertext = sealed[:len(sealed)-gcmTagLen]
	tag = sealed[len(sealed)-gcmTagLen:]
	return nonce, ciphertext, tag, nil
}

func gcmOpen(key, nonce, ciphertext, tag, aad []byte) ([]byte, bool, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, false, fmt.Errorf("rfchain: new cipher: %w", err)
	}
	gcm, err := cipher.NewGCMWithNonceSize(block, nonceSize)
	if err != nil {
		return nil, false, fmt.Errorf("rfchain: new gcm: %w", err)
	}
	sealed := append(append([]byte(nil), ciphertext...), tag...)
	pt, decErr := gcm.Open(nil, nonce, sealed, aad)
	if decErr != nil {
		return nil, false, nil
	}
	return pt, true, nil
}

func xorBytes(a, b []byte) []byte {
	out := make([]byte, len(a))
	for i := range a {
		out[i] = a[i] ^ b[i%len(b)]
	}
	return out
}

func stepAAD(tagID uint32, step int) []byte {
	idBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(idBytes, tagID)
	stepBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(stepBytes, uint32(step))
	return append(idBytes, stepBytes...)
}

// envelope is one step's offline payload: the reporting reader's id, the
// step's fresh secret share a_i, and that reader's signature over
// (tagID||step||a_i). encodeEnvelope/decodeEnvelope are what gets
// AES-GCM sealed as the tag's content.
type envelope struct {
	ReaderID int
	A        []byte
	Sig      []byte
}

func encodeEnvelope(e envelope) []byte {
	out := make([]byte, 0, 4+32+64)
	idb := make([]byte, 4)
	binary.BigEndian.PutUint32(idb, uint32(e.ReaderID))
	out = append(out, idb...)
	out = append(out, e.A...)
	out = append(out, e.Sig...)
	return out
}

func decodeEnvelope(data []byte) (envelope, error) {
	if len(data) != 4+32+64 {
		return envelope{}, fmt.Errorf("rfchain: envelope length %d, want %d", len(data), 4+32+64)
	}
	return envelope{
		ReaderID: int(binary.BigEndian.Uint32(data[:4])),
		A:        append([]byte(nil), data[4:36]...),
		Sig:      append([]byte(nil), data[36:]...),
	}, nil
}

// sealContent builds the on-tag byte blob: id(4B) || nonce(12B) ||
// gcm_tag(16B) || ciphertext, the GCM envelope's AAD binding it to this
// exact tag and chain step.
func sealContent(key []byte, tagID uint32, step int, e envelope) ([]byte, error) {
	nonce, ct, tag, err := gcmSeal(key, encodeEnvelope(e), stepAAD(tagID, step))
	if err != nil {
		return nil, err
	}
	idb := make([]byte, 4)
	binary.BigEndian.PutUint32(idb, tagID)
	out := make([]byte, 0, 4+nonceSize+gcmTagLen+len(ct))
	out = append(out, idb...)
	out = append(out, nonce...)
	out = append(out, tag...)
	out = append(out, ct...)
	return out, nil
}

// openContent reverses sealContent. A GCM authentication failure is a
// verification failure (taxonomy 1): it returns (envelope{}, false, nil).
func openContent(key []byte, tagID uint32, step int, content []byte) (envelope, bool, error) {
	if len(content) < 4+nonceSize+gcmTagLen {
		return envelope{}, false, fmt.Errorf("rfchain: content too short")
	}
	nonce := content[4 : 4+nonceSize]
	tag := content[4+nonceSize : 4+nonceSize+gcmTagLen]
	ct := content[4+nonceSize+gcmTagLen:]

	pt, ok, err := gcmOpen(key, nonce, ct, tag, stepAAD(tagID, step))
	if err != nil || !ok {
		return envelope{}, false, err
	}
	e, err := decodeEnvelope(pt)
	if err != nil {
		return envelope{}, false, err
	}
	return e, true, nil
}

// GenerateTagSecret mints the tag's genesis envelope (step 0), signed by
// issuerReader.
func (e *Engine) GenerateTagSecret(tagID uint32, issuerReader int) (*tagmodel.Tag, error) {
	priv, ok := e.readers[issuerReader]
	if !ok {
		return nil, fmt.Errorf("rfchain: unknown reader %d", issuerReader)
	}

	a0 := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, a0); err != nil {
		return nil, fmt.Errorf("rfchain: generate a0: %w", err)
	}
	digest := sha256.Sum256(append(stepAAD(tagID, 0), a0...))
	sig, err := rawSign(priv, digest[:])
	if err != nil {
		return nil, err
	}

	content, err := sealContent(e.cfg.K, tagID, 0, envelope{ReaderID: issuerReader, A: a0, Sig: sig})
	if err != nil {
		return nil, err
	}

	t := tagmodel.New(tagID, tagmodel.ModeRFChain, content)
	if err := tagio.Save(e.cfg.Dir, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTag verifies the current envelope's signature, advances the
// chain with a fresh secret share signed by reader, and retroactively
// seals the previous step's online TagDB row so only a party that
// learns the new step's hash can recover the old share.
func (e *Engine) UpdateTag(reader int, tagID uint32) (*tagmodel.Tag, error) {
	priv, ok := e.readers[reader]
	if !ok {
		return nil, fmt.Errorf("rfchain: unknown reader %d", reader)
	}

	var result *tagmodel.Tag
	err := tagio.WithLock(e.cfg.Dir, tagID, func() error {
		t, err := tagio.Load(e.cfg.Dir, tagID)
		if err != nil {
			return err
		}
		step := len(t.History)

		cur, ok, err := openContent(e.cfg.K, tagID, step, t.Content)
		if err != nil {
			return err
		}
		if !ok {
			return protoerr.Verification("rfchain: gcm authentication failed while unwrapping current step")
		}
		signerPriv, knownSigner := e.readers[cur.ReaderID]
		if !knownSigner {
			return protoerr.Verification("rfchain: current step signed by unknown reader")
		}
		digest := sha256.Sum256(append(stepAAD(tagID, step), cur.A...))
		if !rawVerify(&signerPriv.PublicKey, digest[:], cur.Sig) {
			return protoerr.Verification("rfchain: current step signature invalid")
		}

		aNew := make([]byte, 32)
		if _, err := io.ReadFull(rand.Reader, aNew); err != nil {
			return fmt.Errorf("rfchain: generate new share: %w", err)
		}
		newDigest := sha256.Sum256(append(stepAAD(tagID, step+1), aNew...))
		sig, err := rawSign(priv, newDigest[:])
		if err != nil {
			return err
		}

		newContent, err := sealContent(e.cfg.K, tagID, step+1, envelope{ReaderID: reader, A: aNew, Sig: sig})
		if err != nil {
			return err
		}

		hNew := sha256.Sum256(aNew)
		b := xorBytes(cur.A, hNew[:])
		key, err := e.maskedID(tagID, step)
		if err != nil {
			return err
		}
		if err := e.db.Insert(key, tagdb.Row{B: b, Reader: reader}); err != nil {
			return err
		}
		t.Online.AppendStorage(hex.EncodeToString(key), reader, map[string]string{"b": hex.EncodeToString(b)})

		t.SetContent(newContent)
		t.RecordUpdate(reader, "update")

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

// VerifyTag decrypts the current step, then walks the chain backward
// through TagDB, reconstructing each prior step's secret share via its
// XOR-masked online row. A missing or ambiguous TagDB row is a
// verification failure, not a fatal error.
func (e *Engine) VerifyTag(t *tagmodel.Tag) (bool, error) {
	step := len(t.History)

	cur, ok, err := openContent(e.cfg.K, t.ID, step, t.Content)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	signerPriv, knownSigner := e.readers[cur.ReaderID]
	if !knownSigner {
		return false, nil
	}
	digest := sha256.Sum256(append(stepAAD(t.ID, step), cur.A...))
	if !rawVerify(&signerPriv.PublicKey, digest[:], cur.Sig) {
		return false, nil
	}

	h := sha256.Sum256(cur.A)
	for s := step; s > 0; s-- {
		key, err := e.maskedID(t.ID, s-1)
		if err != nil {
			return false, err
		}
		row, lookupErr := e.db.Lookup(key)
		if lookupErr != nil {
			return false, nil
		}
		aPrev := xorBytes(row.B, h[:])
		h = sha256.Sum256(aPrev)
	}
	return true, nil
}
