package rounding

import (
	"math"
	"testing"

	"github.com/example/go-stochround/internal/floatformat"
)

func TestTwoSumExactDouble(t *testing.T) {
	f := floatformat.Double

	// 1e16 + 1 ties to even, dropping the 1 into the error term.
	ex := TwoSum(f, 1e16, 1)
	if ex.Hi != 1e16 || ex.Lo != 1 {
		t.Fatalf("TwoSum(1e16, 1) = (%g, %g), want (1e16, 1)", ex.Hi, ex.Lo)
	}

	// Order must not matter.
	ex = TwoSum(f, 1, 1e16)
	if ex.Hi != 1e16 || ex.Lo != 1 {
		t.Fatalf("TwoSum(1, 1e16) = (%g, %g), want (1e16, 1)", ex.Hi, ex.Lo)
	}
}

func TestTwoSumExactReducedFormats(t *testing.T) {
	// For 16- and 32-bit formats the float64 evaluation of hi+lo recovers
	// the exact sum, because the error term of an IEEE addition is itself
	// representable in the operand format.
	for _, f := range []floatformat.Format{floatformat.Half, floatformat.BFloat16, floatformat.Single} {
		for _, pair := range [][2]float64{
			{1.0, math.Ldexp(1, -8)},
			{1.0, -math.Ldexp(3, -9)},
			{1.5, 0.3330078125},
			{-2.25, 0.1279296875},
			{96, 0.21875},
			{0.15625, 1024},
		} {
			a := f.Quantize(pair[0])
			b := f.Quantize(pair[1])

			ex := TwoSum(f, a, b)
			if ex.Hi != f.Quantize(a+b) {
				t.Fatalf("%s: TwoSum(%g, %g).Hi = %g, want %g", f.Name(), a, b, ex.Hi, f.Quantize(a+b))
			}

			if ex.Hi+ex.Lo != a+b {
				t.Fatalf("%s: TwoSum(%g, %g) = (%g, %g); hi+lo = %g, want %g",
					f.Name(), a, b, ex.Hi, ex.Lo, ex.Hi+ex.Lo, a+b)
			}
		}
	}
}

func TestTwoSumExactRepresentable(t *testing.T) {
	f := floatformat.BFloat16

	ex := TwoSum(f, 1.0, 0.25)
	if ex.Hi != 1.25 || ex.Lo != 0 {
		t.Fatalf("TwoSum(1, 0.25) = (%g, %g), want (1.25, 0)", ex.Hi, ex.Lo)
	}
}

func TestTwoSumNonFinite(t *testing.T) {
	f := floatformat.BFloat16

	if ex := TwoSum(f, math.NaN(), 1); !math.IsNaN(ex.Hi) {
		t.Fatalf("TwoSum(NaN, 1).Hi = %g, want NaN", ex.Hi)
	}

	if ex := TwoSum(f, math.Inf(1), 1); !math.IsInf(ex.Hi, 1) {
		t.Fatalf("TwoSum(+Inf, 1).Hi = %g, want +Inf", ex.Hi)
	}

	// Finite operands can still overflow the format.
	m := f.MaxFinite()
	if ex := TwoSum(f, m, m); !math.IsInf(ex.Hi, 1) {
		t.Fatalf("TwoSum(max, max).Hi = %g, want +Inf", ex.Hi)
	}
}

func TestNeighbors(t *testing.T) {
	f := floatformat.BFloat16
	ulp := math.Ldexp(1, -7)

	up := Neighbors(f, 1.0, 0.001)
	if up.Hi != 1.0 || up.Alt != 1.0+ulp {
		t.Fatalf("Neighbors up = (%g, %g), want (1, %g)", up.Hi, up.Alt, 1.0+ulp)
	}

	down := Neighbors(f, 1.0, -0.001)
	if down.Alt != 1.0-math.Ldexp(1, -8) {
		t.Fatalf("Neighbors down Alt = %g, want %g", down.Alt, 1.0-math.Ldexp(1, -8))
	}

	same := Neighbors(f, 1.0, 0)
	if same.Alt != same.Hi {
		t.Fatalf("Neighbors with zero error Alt = %g, want Hi %g", same.Alt, same.Hi)
	}
}

func TestNeighborsAtMaxFinite(t *testing.T) {
	// The step direction is MaxFinite, not infinity, so the alternate
	// candidate never overflows.
	f := floatformat.Half

	c := Neighbors(f, f.MaxFinite(), 1)
	if c.Alt != f.MaxFinite() {
		t.Fatalf("Neighbors at max Alt = %g, want %g", c.Alt, f.MaxFinite())
	}
}

func TestChooseUniform(t *testing.T) {
	c := Candidates{Hi: 1.0, Alt: 1.0078125}

	if got := Choose(c, 0.001, 0.49, false); got != c.Hi {
		t.Fatalf("uniform u=0.49 = %g, want hi", got)
	}

	if got := Choose(c, 0.001, 0.5, false); got != c.Alt {
		t.Fatalf("uniform u=0.5 = %g, want alt", got)
	}
}

func TestChooseBiased(t *testing.T) {
	ulp := 0.0078125
	c := Candidates{Hi: 1.0, Alt: 1.0 + ulp}
	lo := ulp / 2 // p = 0.5

	if got := Choose(c, lo, 0.49, true); got != c.Alt {
		t.Fatalf("biased u=0.49 p=0.5 = %g, want alt", got)
	}

	if got := Choose(c, lo, 0.51, true); got != c.Hi {
		t.Fatalf("biased u=0.51 p=0.5 = %g, want hi", got)
	}
}

func TestChooseShortCircuits(t *testing.T) {
	c := Candidates{Hi: 1.0, Alt: 1.0078125}

	// Zero error never perturbs, in either mode and for any draw.
	for _, biased := range []bool{false, true} {
		for _, u := range []float64{0, 0.25, 0.75, 0.999} {
			if got := Choose(c, 0, u, biased); got != c.Hi {
				t.Fatalf("Choose with lo=0 (biased=%v, u=%v) = %g, want hi", biased, u, got)
			}
		}
	}

	inf := Candidates{Hi: math.Inf(1), Alt: math.Inf(1)}
	if got := Choose(inf, 1, 0.9, true); !math.IsInf(got, 1) {
		t.Fatalf("Choose with Inf hi = %g, want +Inf", got)
	}

	nan := Candidates{Hi: math.NaN(), Alt: math.NaN()}
	if got := Choose(nan, 1, 0.9, false); !math.IsNaN(got) {
		t.Fatalf("Choose with NaN hi = %g, want NaN", got)
	}
}

func TestChooseBiasedExpectation(t *testing.T) {
	// E[choice] over a uniform grid of draws must equal hi + lo.
	ulp := 0.0078125
	c := Candidates{Hi: 1.0, Alt: 1.0 + ulp}
	lo := ulp / 4

	const n = 10000

	var sum float64
	for i := 0; i < n; i++ {
		u := (float64(i) + 0.5) / n
		sum += Choose(c, lo, u, true)
	}

	mean := sum / n

	want := c.Hi + lo
	if math.Abs(mean-want) > ulp/1000 {
		t.Fatalf("biased mean = %v, want %v", mean, want)
	}
}
