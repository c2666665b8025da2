package keyfile

import "fmt"

// AffinePoint is a curve point in affine coordinates, each coordinate a
// decimal-string scalar so full bit width survives JSON round-tripping.
type AffinePoint struct {
	X BigInt `json:"x"`
	Y BigInt `json:"y"`
}

// CurveParams publishes the short-Weierstrass secp160r1 parameters the
// keyfile carries so Tracker doesn't need a hardcoded curve.
type CurveParams struct {
	Name  string `json:"name"`
	A     BigInt `json:"a"`
	B     BigInt `json:"b"`
	P     BigInt `json:"p"`
	N     BigInt `json:"n"`
	Gx    BigInt `json:"Gx"`
	Gy    BigInt `json:"Gy"`
	Size  int    `json:"size"`   // coordinate byte width (20)
	NSize int    `json:"n_size"` // scalar byte width (21)
}

// TrackerReader is one reader's per-step polynomial scalar a_i.
type TrackerReader struct {
	ID int    `json:"id"`
	A  BigInt `json:"a"`
}

// TrackerValidPath is a precomputed path point e·P for one sanctioned path.
type TrackerValidPath struct {
	Label string `json:"label"`
	X     BigInt `json:"x"`
	Y     BigInt `json:"y"`
}

// TrackerConfig is Tracker's keyfile: the manager's ElGamal keypair, the
// published curve and generator-like point P, the HMAC key k, the setup
// scalars x0/a0, the per-reader scalars, and the precomputed path points.
//
// x0 is the polynomial's evaluation point: update_tag advances the
// accumulator as new_Q = x0*Q + a_i*H, so the accumulator after a path
// p_0..p_{L-1} evaluates the degree-L polynomial a0*x0^L +
// Σ a_{p_i}*x0^{L-1-i}. Because x0 weights each step by its position,
// two permutations of the same reader set evaluate to different points;
// dropping x0 (i.e. folding the accumulator with a plain product) would
// make path order unobservable.
type TrackerConfig struct {
	Public     AffinePoint        `json:"public"`
	Private    BigInt             `json:"private"`
	Curve      CurveParams        `json:"curve"`
	K          HexBytes           `json:"k"`
	X0         BigInt             `json:"x0"`
	A0         BigInt             `json:"a0"`
	P          AffinePoint        `json:"P"`
	Readers    []TrackerReader    `json:"readers"`
	ValidPaths []TrackerValidPath `json:"valid_paths"`
	Dir        string             `json:"dir"`
}

func (c *TrackerConfig) ReaderScalar(id int) (BigInt, bool) {
	for _, r := range c.Readers {
		if r.ID == id {
			return r.A, true
		}
	}
	return BigInt{}, false
}

func (c *TrackerConfig) Validate() error {
	if c.Curve.P.Int == nil || c.Curve.N.Int == nil {
		return fmt.Errorf("tracker keyfile: curve parameters incomplete")
	}
	if len(c.K) == 0 {
		return fmt.Errorf("tracker keyfile: missing HMAC key k")
	}
	if c.X0.Int == nil {
		return fmt.Errorf("tracker keyfile: missing polynomial evaluation point x0")
	}
	if len(c.Readers) == 0 {
		return fmt.Errorf("tracker keyfile: no readers configured")
	}
	return nil
}

func SaveTracker(dir string, c *TrackerConfig) error {
	return write(dir, c)
}

func LoadTracker(dir string) (*TrackerConfig, error) {
	var c TrackerConfig
	if err := read(dir, &c); err != nil {
		return nil, err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}
