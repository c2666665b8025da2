package tracker

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io"
	"math/big"

	"github.com/blacktrace/rfidpath/internal/curve160"
	"github.com/blacktrace/rfidpath/internal/keyfile"
	"github.com/blacktrace/rfidpath/internal/tagio"
	"github.com/blacktrace/rfidpath/internal/tagmodel"
)

// secp160r1 returns the domain parameters Tracker is specified against.
// Fixed the same way crypto/elliptic hardcodes its NIST curves; Tracker
// just needs one crypto/elliptic doesn't carry.
func secp160r1() keyfile.CurveParams {
	hex := func(s string) keyfile.BigInt {
		v, _ := new(big.Int).SetString(s, 16)
		return keyfile.NewBigInt(v)
	}
	return keyfile.CurveParams{
		Name:  "secp160r1",
		P:     hex("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF7FFFFFFF"),
		A:     hex("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF7FFFFFFC"),
		B:     hex("1C97BEFC54BD7A8B65ACF89F81D4D4ADC565FA45"),
		N:     hex("0100000000000000000001F4C8F927AED3CA752257"),
		Gx:    hex("4A96B5688EF573284664698968C38BB913CBFC82"),
		Gy:    hex("23A628553168947D59DCC912042351377AC5FB32"),
		Size:  20,
		NSize: 21,
	}
}

func paramsFromConfig(cp keyfile.CurveParams) *curve160.Params {
	return &curve160.Params{
		A: cp.A.Int, B: cp.B.Int, P: cp.P.Int, N: cp.N.Int,
		Gx: cp.Gx.Int, Gy: cp.Gy.Int,
	}
}

// Engine binds a loaded Tracker keyfile to the four caller-facing
// operations.
type Engine struct {
	cfg   *keyfile.TrackerConfig
	curve *curve160.Params
	size  int
}

func Load(dir string) (*Engine, error) {
	cfg, err := keyfile.LoadTracker(dir)
	if err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, curve: paramsFromConfig(cfg.Curve), size: cfg.Curve.Size}, nil
}

func randScalar(n *big.Int) (*big.Int, error) {
	k, err := rand.Int(rand.Reader, new(big.Int).Sub(n, big.NewInt(1)))
	if err != nil {
		return nil, fmt.Errorf("tracker: random scalar: %w", err)
	}
	return k.Add(k, big.NewInt(1)), nil
}

// randX0 picks the polynomial's evaluation point x0 uniformly from
// [2, n-1]: any x works as long as it isn't 0 or 1, which would collapse
// the polynomial's positional weighting.
func randX0(n *big.Int) (*big.Int, error) {
	span := new(big.Int).Sub(n, big.NewInt(2))
	k, err := rand.Int(rand.Reader, span)
	if err != nil {
		return nil, fmt.Errorf("tracker: random x0: %w", err)
	}
	return k.Add(k, big.NewInt(2)), nil
}

// pathPolynomial evaluates a0*x0^L + Σ a_{p_i}*x0^(L-1-i) mod n for a
// sanctioned path p_0..p_{L-1}, matching update_tag's iterative
// new_Q = x0*Q + a_i*H so that a tag which actually walked the path
// decrypts to exactly this point.
func pathPolynomial(n, x0, a0 *big.Int, path []int, readerScalars map[int]*big.Int) (*big.Int, error) {
	l := len(path)
	eval := new(big.Int).Exp(x0, big.NewInt(int64(l)), n)
	eval.Mul(eval, a0)
	eval.Mod(eval, n)
	for i, id := range path {
		a, ok := readerScalars[id]
		if !ok {
			return nil, fmt.Errorf("tracker: path references unknown reader %d", id)
		}
		term := new(big.Int).Exp(x0, big.NewInt(int64(l-1-i)), n)
		term.Mul(term, a)
		term.Mod(term, n)
		eval.Add(eval, term)
		eval.Mod(eval, n)
	}
	return eval, nil
}

// GenerateReaderConfigs creates the manager's ElGamal keypair, the
// application point P, the shared HMAC key, one per-step scalar a_i per
// reader, and precomputes the valid-path points e*P for every given
// path (each path a slice of reader ids, in order).
func GenerateReaderConfigs(dir string, readerIDs []int, paths map[string][]int) (*Engine, error) {
	cp := secp160r1()
	c := paramsFromConfig(cp)

	mgrPriv, err := randScalar(c.N)
	if err != nil {
		return nil, err
	}
	mgrPub := c.BaseScalarMult(mgrPriv)

	pScalar, err := randScalar(c.N)
	if err != nil {
		return nil, err
	}
	p := c.BaseScalarMult(pScalar)

	k := make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, k); err != nil {
		return nil, fmt.Errorf("tracker: generate hmac key: %w", err)
	}

	a0, err := randScalar(c.N)
	if err != nil {
		return nil, err
	}

	x0, err := randX0(c.N)
	if err != nil {
		return nil, err
	}

	readerScalars := make(map[int]*big.Int, len(readerIDs))
	readers := make([]keyfile.TrackerReader, 0, len(readerIDs))
	for _, id := range readerIDs {
		a, err := randScalar(c.N)
		if err != nil {
			return nil, err
		}
		readerScalars[id] = a
		readers = append(readers, keyfile.TrackerReader{ID: id, A: keyfile.NewBigInt(a)})
	}

	validPaths := make([]keyfile.TrackerValidPath, 0, len(paths))
	for label, path := range paths {
		e, err := pathPolynomial(c.N, x0, a0, path, readerScalars)
		if err != nil {
			return nil, fmt.Errorf("tracker: path %q: %w", label, err)
		}
		point := c.ScalarMult(p, e)
		validPaths = append(validPaths, keyfile.TrackerValidPath{
			Label: label,
			X:     keyfile.NewBigInt(point.X),
			Y:     keyfile.NewBigInt(point.Y),
		})
	}

	cfg := &keyfile.TrackerConfig{
		Public:     keyfile.AffinePoint{X: keyfile.NewBigInt(mgrPub.X), Y: keyfile.NewBigInt(mgrPub.Y)},
		Private:    keyfile.NewBigInt(mgrPriv),
		Curve:      cp,
		K:          k,
		X0:         keyfile.NewBigInt(x0),
		A0:         keyfile.NewBigInt(a0),
		P:          keyfile.AffinePoint{X: keyfile.NewBigInt(p.X), Y: keyfile.NewBigInt(p.Y)},
		Readers:    readers,
		ValidPaths: validPaths,
		Dir:        dir,
	}
	if err := keyfile.SaveTracker(dir, cfg); err != nil {
		return nil, err
	}
	return &Engine{cfg: cfg, curve: c, size: cp.Size}, nil
}

func (e *Engine) identityPoint(tagID uint32) curve160.Point {
	idBytes := make([]byte, 4)
	binary.BigEndian.PutUint32(idBytes, tagID)
	h := sha256.Sum256(idBytes)
	seed := new(big.Int).SetBytes(h[:])
	p := curve160.Point{X: e.cfg.P.X.Int, Y: e.cfg.P.Y.Int}
	return e.curve.ScalarMult(p, seed)
}

func (e *Engine) pointBytes(v *big.Int) []byte {
	out := make([]byte, e.size)
	b := v.Bytes()
	copy(out[e.size-len(b):], b)
	return out
}

func (e *Engine) hmacD(id curve160.Point) *big.Int {
	mac := hmac.New(sha256.New, e.cfg.K)
	mac.Write(e.pointBytes(id.X))
	mac.Write(e.pointBytes(id.Y))
	sum := mac.Sum(nil)
	d := new(big.Int).SetBytes(sum)
	d.Mod(d, e.curve.N)
	if d.Sign() == 0 {
		d.SetInt64(1)
	}
	return d
}

// GenerateTagSecret derives the tag's identity point from its id, then
// encrypts (ID, H=d*P, Q=d*a0*P) under the manager's public key.
func (e *Engine) GenerateTagSecret(tagID uint32) (*tagmodel.Tag, error) {
	idPoint := e.identityPoint(tagID)
	d := e.hmacD(idPoint)

	p := curve160.Point{X: e.cfg.P.X.Int, Y: e.cfg.P.Y.Int}
	mgrPub := curve160.Point{X: e.cfg.Public.X.Int, Y: e.cfg.Public.Y.Int}

	h := e.curve.ScalarMult(p, d)
	da0 := new(big.Int).Mul(d, e.cfg.A0.Int)
	da0.Mod(da0, e.curve.N)
	q := e.curve.ScalarMult(p, da0)

	idCT, err := Encrypt(e.curve, mgrPub, idPoint)
	if err != nil {
		return nil, err
	}
	hCT, err := Encrypt(e.curve, mgrPub, h)
	if err != nil {
		return nil, err
	}
	qCT, err := Encrypt(e.curve, mgrPub, q)
	if err != nil {
		return nil, err
	}

	content := e.encodeContent(idCT, hCT, qCT)
	t := tagmodel.New(tagID, tagmodel.ModeTracker, content)
	if err := tagio.Save(e.cfg.Dir, t); err != nil {
		return nil, err
	}
	return t, nil
}

// UpdateTag advances the Q accumulator as new_Q = x0*Q + a_i*H (the
// polynomial's Horner step) and rerandomizes all three ciphertexts,
// without ever decrypting the tag in the field.
func (e *Engine) UpdateTag(readerID int, tagID uint32) (*tagmodel.Tag, error) {
	var result *tagmodel.Tag
	err := tagio.WithLock(e.cfg.Dir, tagID, func() error {
		t, err := tagio.Load(e.cfg.Dir, tagID)
		if err != nil {
			return err
		}

		a, ok := e.cfg.ReaderScalar(readerID)
		if !ok {
			return fmt.Errorf("tracker: unknown reader %d", readerID)
		}

		idCT, hCT, qCT, err := e.decodeContent(t.Content)
		if err != nil {
			return err
		}

		qCT = Add(e.curve, ScalarMultiply(e.curve, qCT, e.cfg.X0.Int), ScalarMultiply(e.curve, hCT, a.Int))

		mgrPub := curve160.Point{X: e.cfg.Public.X.Int, Y: e.cfg.Public.Y.Int}
		idCT, err = Rerandomize(e.curve, mgrPub, idCT)
		if err != nil {
			return err
		}
		hCT, err = Rerandomize(e.curve, mgrPub, hCT)
		if err != nil {
			return err
		}
		qCT, err = Rerandomize(e.curve, mgrPub, qCT)
		if err != nil {
			return err
		}

		t.SetContent(e.encodeContent(idCT, hCT, qCT))
		t.RecordUpdate(readerID, "update")

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

// VerifyTag decrypts ID and Q, recomputes d from the decrypted identity
// point, and checks whether Q == d*(e*P) for any precomputed sanctioned
// path. A decrypt-and-mismatch is a verification failure (false, nil);
// a malformed envelope is a fatal error.
func (e *Engine) VerifyTag(t *tagmodel.Tag) (ok bool, pathLabel string, err error) {
	idCT, hCT, qCT, err := e.decodeContent(t.Content)
	if err != nil {
		return false, "", err
	}

	priv := e.cfg.Private.Int
	idPoint := Decrypt(e.curve, priv, idCT)
	d := e.hmacD(idPoint)

	p := curve160.Point{X: e.cfg.P.X.Int, Y: e.cfg.P.Y.Int}
	expectedH := e.curve.ScalarMult(p, d)
	decryptedH := Decrypt(e.curve, priv, hCT)
	if !curve160.Equal(expectedH, decryptedH) {
		return false, "", nil
	}

	decryptedQ := Decrypt(e.curve, priv, qCT)
	for _, vp := range e.cfg.ValidPaths {
		pathPoint := curve160.Point{X: vp.X.Int, Y: vp.Y.Int}
		candidate := e.curve.ScalarMult(pathPoint, d)
		if curve160.Equal(candidate, decryptedQ) {
			return true, vp.Label, nil
		}
	}
	return false, "", nil
}

// encodeContent packs the three ciphertexts as 12 fixed-width,
// big-endian coordinates (ID.C1, ID.C2, H.C1, H.C2, Q.C1, Q.C2).
func (e *Engine) encodeContent(id, h, q Ciphertext) []byte {
	out := make([]byte, 0, e.size*12)
	for _, pt := range []curve160.Point{id.C1, id.C2, h.C1, h.C2, q.C1, q.C2} {
		out = append(out, e.pointBytes(pt.X)...)
		out = append(out, e.pointBytes(pt.Y)...)
	}
	return out
}

func (e *Engine) decodeContent(data []byte) (id, h, q Ciphertext, err error) {
	want := e.size * 2 * 6
	if len(data) != want {
		return Ciphertext{}, Ciphertext{}, Ciphertext{}, fmt.Errorf("tracker: content length %d, want %d", len(data), want)
	}
	read := func(off int) curve160.Point {
		x := new(big.Int).SetBytes(data[off : off+e.size])
		y := new(big.Int).SetBytes(data[off+e.size : off+2*e.size])
		return curve160.Point{X: x, Y: y}
	}
	step := e.size * 2
	id = Ciphertext{C1: read(0), C2: read(step)}
	h = Ciphertext{C1: read(2 * step), C2: read(3 * step)}
	q = Ciphertext{C1: read(4 * step), C2: read(5 * step)}
	return id, h, q, nil
}
