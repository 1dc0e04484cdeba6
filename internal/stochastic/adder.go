// Package stochastic implements stochastically rounded addition over tensors.
//
// An Adder binds a floating-point format and a seed once at construction and
// is immutable afterwards, so a single Adder may serve arbitrarily many
// concurrent calls without locking. Every per-element computation depends
// only on that element's operand values, its linear index, and the bound
// seed; results are therefore invariant under any evaluation order or
// parallel granularity the host engine picks.
package stochastic

import (
	"errors"
	"fmt"
	"math"

	"github.com/example/go-stochround/internal/floatformat"
	"github.com/example/go-stochround/internal/hashrand"
	"github.com/example/go-stochround/internal/rounding"
	"github.com/example/go-stochround/internal/tensor"
)

// DefaultSeed is used when no seed is configured.
const DefaultSeed uint64 = 42

// Adder performs stochastically rounded additions at a fixed output format.
type Adder struct {
	format floatformat.Format
	src    hashrand.Source
}

// New creates an Adder bound to format and seed.
func New(format floatformat.Format, seed uint64) (*Adder, error) {
	if format == nil {
		return nil, errors.New("stochastic: format must not be nil")
	}

	return &Adder{format: format, src: hashrand.New(seed)}, nil
}

// NewFromPrecision creates an Adder from a precision tag (f16|bf16|f32|f64).
// An unknown tag fails here, at construction, not at call time.
func NewFromPrecision(precision string, seed uint64) (*Adder, error) {
	f, err := floatformat.Parse(precision)
	if err != nil {
		return nil, fmt.Errorf("stochastic: %w", err)
	}

	return New(f, seed)
}

// Format returns the bound output format.
func (a *Adder) Format() floatformat.Format {
	return a.format
}

// Seed returns the bound seed.
func (a *Adder) Seed() uint64 {
	return a.src.Seed()
}

// AddScalar adds two values of the adder's format and stochastically rounds
// the result. index is the element's position within its array (0 for a
// lone scalar); it feeds the draw so repeated operand pairs at different
// positions round independently.
//
// Non-finite operands bypass rounding: the result is the IEEE sum.
func (a *Adder) AddScalar(x, y float64, index int64, biased bool) float64 {
	f := a.format
	x = f.Quantize(x)
	y = f.Quantize(y)

	ex := rounding.TwoSum(f, x, y)
	cand := rounding.Neighbors(f, ex.Hi, ex.Lo)
	u := a.src.Float64(hashrand.Key(f.ToBits(x), f.ToBits(y), uint64(index)))

	return rounding.Choose(cand, ex.Lo, u, biased)
}

// addWideScalar adds x (a value of the adder's format) and y (a value of the
// strictly wider format wide), rounding stochastically only at the final
// narrowing step. The sum is formed at wide precision; x widens losslessly,
// so no precision of y is discarded before the rounding decision.
func (a *Adder) addWideScalar(wide floatformat.Format, x, y float64, index int64, biased bool) float64 {
	f := a.format
	x = f.Quantize(x)
	y = wide.Quantize(y)

	sWide := wide.Quantize(x + y)
	hi := f.Quantize(sWide)

	if math.IsNaN(hi) || math.IsInf(hi, 0) {
		return hi
	}

	lo := wide.Quantize(sWide - hi)
	cand := rounding.Neighbors(f, hi, lo)
	u := a.src.Float64(hashrand.Key(f.ToBits(x), wide.ToBits(y), uint64(index)))

	return rounding.Choose(cand, lo, u, biased)
}

// addCDivScalar computes x + value*t1/t2 with the scale and division carried
// out at double precision, so the stochastic rounding acts on the final
// two-term sum rather than an already-rounded intermediate.
func (a *Adder) addCDivScalar(x, t1, t2, value float64, index int64, biased bool) float64 {
	y := value * t1 / t2

	if floatformat.Double.Bits() > a.format.Bits() {
		return a.addWideScalar(floatformat.Double, x, y, index, biased)
	}

	return a.AddScalar(x, y, index, biased)
}

// Add returns the elementwise stochastically rounded sum of x and y at the
// adder's format, broadcasting shapes as needed. x must be of the adder's
// format. y must match x's format, or be strictly wider, in which case the
// widen-then-round path is taken and the result still lands at x's format.
func (a *Adder) Add(x, y *tensor.Tensor, biased bool) (*tensor.Tensor, error) {
	if x == nil || y == nil {
		return nil, errors.New("stochastic: add requires non-nil tensors")
	}

	if err := a.checkTarget(x); err != nil {
		return nil, err
	}

	if y.Format().Bits() > x.Format().Bits() {
		return a.AddHighPrecision(x, y, biased)
	}

	if y.Format().Name() != x.Format().Name() {
		return nil, fmt.Errorf("stochastic: add operand formats %s and %s do not match", x.Format().Name(), y.Format().Name())
	}

	return tensor.Map2(x, y, a.format, func(xv, yv float64, index int64) float64 {
		return a.AddScalar(xv, yv, index, biased)
	})
}

// AddHighPrecision adds x and a strictly wider y, narrowing to x's format
// only at the final stochastic rounding step. This avoids the compounding
// error of pre-casting y down before the addition.
func (a *Adder) AddHighPrecision(x, y *tensor.Tensor, biased bool) (*tensor.Tensor, error) {
	if x == nil || y == nil {
		return nil, errors.New("stochastic: high-precision add requires non-nil tensors")
	}

	if err := a.checkTarget(x); err != nil {
		return nil, err
	}

	wide := y.Format()
	if wide.Bits() <= x.Format().Bits() {
		return nil, fmt.Errorf("stochastic: high-precision add requires y (%s) wider than x (%s)", wide.Name(), x.Format().Name())
	}

	return tensor.Map2(x, y, a.format, func(xv, yv float64, index int64) float64 {
		return a.addWideScalar(wide, xv, yv, index, biased)
	})
}

// AddCDiv computes x + value*t1/t2 elementwise, stochastically rounding the
// final sum at x's format. x, t1 and t2 must share x's format; the division
// and scaling run at double precision before the rounding step.
func (a *Adder) AddCDiv(x, t1, t2 *tensor.Tensor, value float64, biased bool) (*tensor.Tensor, error) {
	if x == nil || t1 == nil || t2 == nil {
		return nil, errors.New("stochastic: addcdiv requires non-nil tensors")
	}

	if err := a.checkTarget(x); err != nil {
		return nil, err
	}

	if t1.Format().Name() != x.Format().Name() || t2.Format().Name() != x.Format().Name() {
		return nil, fmt.Errorf(
			"stochastic: addcdiv operand formats %s, %s, %s do not match",
			x.Format().Name(), t1.Format().Name(), t2.Format().Name(),
		)
	}

	return tensor.Map3(x, t1, t2, a.format, func(xv, t1v, t2v float64, index int64) float64 {
		return a.addCDivScalar(xv, t1v, t2v, value, index, biased)
	})
}

func (a *Adder) checkTarget(x *tensor.Tensor) error {
	if x.Format().Name() != a.format.Name() {
		return fmt.Errorf("stochastic: tensor format %s does not match adder precision %s", x.Format().Name(), a.format.Name())
	}

	return nil
}
