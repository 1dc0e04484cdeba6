// Package rounding implements the per-element building blocks of stochastic
// addition: exact-error extraction of a floating-point sum (TwoSum), the two
// candidate roundings one ULP apart, and the decision that picks between
// them given a pseudo-random draw.
//
// Every function is total and side-effect free. Non-finite values propagate
// per IEEE-754 through the representable sum; the decision step then returns
// that sum unchanged.
package rounding

import (
	"math"

	"github.com/example/go-stochround/internal/floatformat"
)

// Exact holds a representable sum Hi and its signed rounding error Lo, such
// that Hi + Lo equals the mathematically exact sum of the two addends. Lo
// itself is a format value and may be rounded for extreme exponent gaps; the
// approximation only blurs the bias probability, never the result's validity.
type Exact struct {
	Hi float64
	Lo float64
}

// TwoSum decomposes a+b at f's precision using Knuth's branch-free TwoSum,
// which does not require |a| >= |b|. The operand order inside matters; do
// not "simplify" the algebra.
func TwoSum(f floatformat.Format, a, b float64) Exact {
	hi := f.Quantize(a + b)
	bb := f.Quantize(hi - a)
	errA := f.Quantize(a - f.Quantize(hi-bb))
	errB := f.Quantize(b - bb)

	return Exact{Hi: hi, Lo: f.Quantize(errA + errB)}
}

// Candidates are the two representable values bracketing the exact sum: the
// correctly rounded Hi and its one-ULP neighbor Alt toward the error's sign.
// When the sum was exact, Alt equals Hi and no draw can change the outcome.
type Candidates struct {
	Hi  float64
	Alt float64
}

// Neighbors computes the candidate pair for a sum hi with signed error lo.
// The step direction is expressed as the format's largest finite value of
// the matching sign, so stepping from MaxFinite stays at MaxFinite instead
// of overflowing to infinity.
func Neighbors(f floatformat.Format, hi, lo float64) Candidates {
	alt := hi

	switch {
	case lo > 0:
		alt = f.Nextafter(hi, f.MaxFinite())
	case lo < 0:
		alt = f.Nextafter(hi, -f.MaxFinite())
	}

	return Candidates{Hi: hi, Alt: alt}
}

// Choose picks the final rounded value from the candidates given a draw u in
// [0,1).
//
// Uniform mode (biased=false) is a fair coin: Hi for u < 0.5, Alt otherwise.
// Biased mode steps to Alt with probability |lo|/ulp, which makes the
// expectation of the result equal to the exact sum Hi+lo.
//
// A non-finite Hi or a zero error short-circuits to Hi.
func Choose(c Candidates, lo, u float64, biased bool) float64 {
	if math.IsNaN(c.Hi) || math.IsInf(c.Hi, 0) {
		return c.Hi
	}

	if lo == 0 || c.Alt == c.Hi {
		return c.Hi
	}

	if biased {
		ulp := math.Abs(c.Alt - c.Hi)
		if u < math.Abs(lo)/ulp {
			return c.Alt
		}

		return c.Hi
	}

	if u < 0.5 {
		return c.Hi
	}

	return c.Alt
}
