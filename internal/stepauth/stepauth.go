package stepauth

import (
	"crypto/ecdsa"
	"fmt"

	"github.com/btcsuite/btcd/btcec/v2"

	"github.com/blacktrace/rfidpath/internal/keyfile"
	"github.com/blacktrace/rfidpath/internal/protoerr"
	"github.com/blacktrace/rfidpath/internal/tagio"
	"github.com/blacktrace/rfidpath/internal/tagmodel"
)

// Engine binds a loaded StepAuth keyfile to the four caller-facing
// operations.
type Engine struct {
	cfg        *keyfile.StepAuthConfig
	masterPriv *ecdsa.PrivateKey
	masterPub  *ecdsa.PublicKey
	readerPub  map[int]*btcec.PublicKey
}

func Load(dir string) (*Engine, error) {
	cfg, err := keyfile.LoadStepAuth(dir)
	if err != nil {
		return nil, err
	}
	return newEngine(cfg)
}

func newEngine(cfg *keyfile.StepAuthConfig) (*Engine, error) {
	priv, pub, err := loadMaster(cfg.Master)
	if err != nil {
		return nil, err
	}
	readerPub := make(map[int]*btcec.PublicKey, len(cfg.Readers))
	for _, r := range cfg.Readers {
		_, rpub, err := loadReaderKey(r)
		if err != nil {
			return nil, err
		}
		readerPub[r.ID] = rpub
	}
	return &Engine{cfg: cfg, masterPriv: priv, masterPub: pub, readerPub: readerPub}, nil
}

// GenerateReaderConfigs mints a fresh master P-256 keypair and a
// secp256k1 ECIES keypair for every id in readerIDs, persisting them to
// the StepAuth keyfile.
func GenerateReaderConfigs(dir string, readerIDs []int, readerIDSize, tagIDSize int) (*Engine, error) {
	masterPriv, err := masterKeyPair()
	if err != nil {
		return nil, err
	}

	readers := make([]keyfile.StepAuthReader, 0, len(readerIDs))
	for _, id := range readerIDs {
		priv, err := readerKeyPair()
		if err != nil {
			return nil, err
		}
		readers = append(readers, keyfile.StepAuthReader{
			ID:      id,
			Public:  priv.PubKey().SerializeCompressed(),
			Private: keyfile.NewBigInt(priv.ToECDSA().D),
		})
	}

	cfg := &keyfile.StepAuthConfig{
		Master: keyfile.ECDSAKeyPair{
			Public:  masterPublicBytes(&masterPriv.PublicKey),
			Private: keyfile.NewBigInt(masterPriv.D),
		},
		ReaderIDSize: readerIDSize,
		TagIDSize:    tagIDSize,
		Readers:      readers,
		Dir:          dir,
	}
	if err := keyfile.SaveStepAuth(dir, cfg); err != nil {
		return nil, err
	}
	return newEngine(cfg)
}

// GenerateTagSecret builds the full nested onion for path (reader ids,
// first to last) around tagID and persists it as the tag's content.
func (e *Engine) GenerateTagSecret(tagID uint32, path []int) (*tagmodel.Tag, error) {
	content, err := buildOnion(e.masterPriv, e.readerPub, path, e.cfg.ReaderIDSize, e.cfg.TagIDSize, tagID)
	if err != nil {
		return nil, err
	}
	t := tagmodel.New(tagID, tagmodel.ModeStepAuth, content)
	if err := tagio.Save(e.cfg.Dir, t); err != nil {
		return nil, err
	}
	return t, nil
}

// VerifyTag checks whether reader is the next step in the tag's
// current onion layer: it verifies the master signature over the
// layer's ciphertext, decrypts it with reader's own private key, and
// confirms the recovered claimed id matches reader. It never mutates
// the tag — peeling the layer for real is UpdateTag's job.
func (e *Engine) VerifyTag(reader int, t *tagmodel.Tag) (bool, error) {
	rcfg, ok := e.cfg.Reader(reader)
	if !ok {
		return false, fmt.Errorf("stepauth: unknown reader %d", reader)
	}
	priv, _, err := loadReaderKey(*rcfg)
	if err != nil {
		return false, err
	}

	claimedID, _, _, ok, err := peelLayer(e.masterPub, priv, e.cfg.ReaderIDSize, t.Content)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	expectID := encodeID(reader, e.cfg.ReaderIDSize)
	for i := range expectID {
		if claimedID[i] != expectID[i] {
			return false, nil
		}
	}
	return true, nil
}

// UpdateTag peels one onion layer using reader's private key: it
// verifies the master signature over the current ciphertext, decrypts
// it, confirms the recovered claimed reader id matches reader, strips
// both leading identifiers (this reader's and the next one's), and
// stores whatever remains (a nested bundle, or the raw tag id at the
// terminal layer) as the tag's new content.
func (e *Engine) UpdateTag(reader int, tagID uint32) (*tagmodel.Tag, error) {
	var result *tagmodel.Tag
	err := tagio.WithLock(e.cfg.Dir, tagID, func() error {
		t, err := tagio.Load(e.cfg.Dir, tagID)
		if err != nil {
			return err
		}

		rcfg, ok := e.cfg.Reader(reader)
		if !ok {
			return fmt.Errorf("stepauth: unknown reader %d", reader)
		}
		priv, _, err := loadReaderKey(*rcfg)
		if err != nil {
			return err
		}

		claimedID, _, rest, ok, err := peelLayer(e.masterPub, priv, e.cfg.ReaderIDSize, t.Content)
		if err != nil {
			return err
		}
		if !ok {
			return protoerr.Verification("stepauth: signature or decryption failed while unwrapping")
		}

		expectID := encodeID(reader, e.cfg.ReaderIDSize)
		for i := range expectID {
			if claimedID[i] != expectID[i] {
				return protoerr.Verification("stepauth: reader out of order")
			}
		}

		t.SetContent(rest)
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
