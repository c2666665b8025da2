package curve160

import (
	"math/big"
	"testing"
)

// secp160r1 domain parameters.
func secp160r1() *Params {
	p, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF7FFFFFFF", 16)
	a, _ := new(big.Int).SetString("FFFFFFFFFFFFFFFFFFFFFFFFFFFFFFFF7FFFFFFC", 16)
	b, _ := new(big.Int).SetString("1C97BEFC54BD7A8B65ACF89F81D4D4ADC565FA45", 16)
	n, _ := new(big.Int).SetString("0100000000000000000001F4C8F927AED3CA752257", 16)
	gx, _ := new(big.Int).SetString("4A96B5688EF573284664698968C38BB913CBFC82", 16)
	gy, _ := new(big.Int).SetString("23A628553168947D59DCC912042351377AC5FB32", 16)
	return &Params{A: a, B: b, P: p, N: n, Gx: gx, Gy: gy}
}

func TestBasePointOnCurve(t *testing.T) {
	c := secp160r1()
	g := Point{X: c.Gx, Y: c.Gy}
	if !c.IsOnCurve(g) {
		t.Fatal("base point does not satisfy curve equation")
	}
}

func TestAddDoubleConsistency(t *testing.T) {
	c := secp160r1()
	g := Point{X: c.Gx, Y: c.Gy}

	doubled := c.Double(g)
	added := c.Add(g, g)
	if !Equal(doubled, added) {
		t.Fatal("Double(G) != Add(G, G)")
	}
	if !c.IsOnCurve(doubled) {
		t.Fatal("2G not on curve")
	}
}

func TestScalarMultDistributes(t *testing.T) {
	c := secp160r1()
	g := Point{X: c.Gx, Y: c.Gy}

	two := big.NewInt(2)
	three := big.NewInt(3)
	five := big.NewInt(5)

	twoG := c.ScalarMult(g, two)
	threeG := c.ScalarMult(g, three)
	fiveG := c.ScalarMult(g, five)

	sum := c.Add(twoG, threeG)
	if !Equal(sum, fiveG) {
		t.Fatal("2G + 3G != 5G")
	}
	if !c.IsOnCurve(fiveG) {
		t.Fatal("5G not on curve")
	}
}

func TestAddInfinityIdentity(t *testing.T) {
	c := secp160r1()
	g := Point{X: c.Gx, Y: c.Gy}
	if !Equal(c.Add(g, infinity), g) {
		t.Fatal("G + infinity != G")
	}
}

func TestAddInverseIsInfinity(t *testing.T) {
	c := secp160r1()
	g := Point{X: c.Gx, Y: c.Gy}
	neg := Point{X: g.X, Y: new(big.Int).Sub(c.P, g.Y)}
	sum := c.Add(g, neg)
	if !sum.Infinity() {
		t.Fatal("G + (-G) != infinity")
	}
}
