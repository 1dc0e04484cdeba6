// Package floatformat describes floating-point representations well enough
// for stochastic rounding: raw bit patterns at the format's width,
// quantization of a float64 into the format, and the one-ULP nextafter step.
//
// Values travel as float64 throughout the library; a "format value" is a
// float64 that quantizes to itself. Arithmetic in a reduced format is
// emulated as Quantize(x op y), which matches round-to-nearest-even hardware
// for every format whose precision is well below float64's.
package floatformat

import (
	"fmt"
	"math"
	"strings"
)

// Format is the capability a floating-point representation must provide to
// the rounding core.
type Format interface {
	// Name returns the canonical precision tag (f16, bf16, f32, f64).
	Name() string
	// Bits returns the storage width in bits.
	Bits() int
	// MantissaBits returns the number of explicit mantissa bits.
	MantissaBits() int
	// ExponentBits returns the number of exponent bits.
	ExponentBits() int
	// Quantize rounds x to the nearest representable value, ties to even.
	// NaN and infinities pass through.
	Quantize(x float64) float64
	// ToBits returns the format's bit pattern for x, quantizing first. The
	// pattern occupies the low Bits() bits of the result.
	ToBits(x float64) uint64
	// FromBits decodes a bit pattern produced by ToBits.
	FromBits(b uint64) float64
	// Nextafter returns the next representable value after x toward y, at
	// the format's granularity. Mirrors math.Nextafter semantics.
	Nextafter(x, y float64) float64
	// MaxFinite returns the largest finite representable value.
	MaxFinite() float64
}

// Supported formats.
var (
	Half     Format = minifloat{name: "f16", expBits: 5, manBits: 10}
	BFloat16 Format = minifloat{name: "bf16", expBits: 8, manBits: 7}
	Single   Format = single{}
	Double   Format = double{}
)

// Parse maps a precision tag to its Format. Unknown tags are a configuration
// error; callers are expected to fail construction, not individual calls.
func Parse(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "f16", "half", "float16":
		return Half, nil
	case "bf16", "bfloat16":
		return BFloat16, nil
	case "f32", "single", "float32":
		return Single, nil
	case "f64", "double", "float64":
		return Double, nil
	default:
		return nil, fmt.Errorf("floatformat: unsupported precision %q (want f16|bf16|f32|f64)", name)
	}
}

// ---------------------------------------------------------------------------
// f64: native float64
// ---------------------------------------------------------------------------

type double struct{}

func (double) Name() string         { return "f64" }
func (double) Bits() int            { return 64 }
func (double) MantissaBits() int    { return 52 }
func (double) ExponentBits() int    { return 11 }
func (double) Quantize(x float64) float64 {
	return x
}
func (double) ToBits(x float64) uint64   { return math.Float64bits(x) }
func (double) FromBits(b uint64) float64 { return math.Float64frombits(b) }
func (double) Nextafter(x, y float64) float64 {
	return math.Nextafter(x, y)
}
func (double) MaxFinite() float64 { return math.MaxFloat64 }

// ---------------------------------------------------------------------------
// f32: native float32, carried in a float64
// ---------------------------------------------------------------------------

type single struct{}

func (single) Name() string      { return "f32" }
func (single) Bits() int         { return 32 }
func (single) MantissaBits() int { return 23 }
func (single) ExponentBits() int { return 8 }
func (single) Quantize(x float64) float64 {
	return float64(float32(x))
}
func (single) ToBits(x float64) uint64 {
	return uint64(math.Float32bits(float32(x)))
}
func (single) FromBits(b uint64) float64 {
	return float64(math.Float32frombits(uint32(b)))
}
func (single) Nextafter(x, y float64) float64 {
	return float64(math.Nextafter32(float32(x), float32(y)))
}
func (single) MaxFinite() float64 { return math.MaxFloat32 }

// ---------------------------------------------------------------------------
// f16 / bf16: generic reduced-precision codec
// ---------------------------------------------------------------------------

// minifloat implements any IEEE-style format of at most 16 bits with expBits
// exponent bits and manBits explicit mantissa bits (plus sign). Half is
// (5, 10), bfloat16 is (8, 7).
type minifloat struct {
	name    string
	expBits uint
	manBits uint
}

func (f minifloat) Name() string      { return f.name }
func (f minifloat) Bits() int         { return int(1 + f.expBits + f.manBits) }
func (f minifloat) MantissaBits() int { return int(f.manBits) }
func (f minifloat) ExponentBits() int { return int(f.expBits) }

func (f minifloat) bias() int { return 1<<(f.expBits-1) - 1 }

func (f minifloat) expMask() uint64 { return 1<<f.expBits - 1 }
func (f minifloat) manMask() uint64 { return 1<<f.manBits - 1 }

// ToBits encodes x with round-to-nearest-even, producing subnormals near
// zero and infinity on overflow.
func (f minifloat) ToBits(x float64) uint64 {
	b64 := math.Float64bits(x)
	sign := (b64 >> 63) << (f.expBits + f.manBits)
	exp64 := int((b64 >> 52) & 0x7ff)
	man64 := b64 & (1<<52 - 1)

	if exp64 == 0x7ff {
		if man64 != 0 {
			// Canonical quiet NaN.
			return sign | f.expMask()<<f.manBits | 1<<(f.manBits-1)
		}

		return sign | f.expMask()<<f.manBits
	}

	if exp64 == 0 {
		// Subnormal float64: magnitude below 2^-1022, far under half of any
		// 16-bit format's smallest subnormal. Rounds to signed zero.
		return sign
	}

	e := exp64 - 1023
	emin := 1 - f.bias()

	if e < emin {
		// Subnormal in the target format: round the full 53-bit significand
		// to a multiple of the smallest subnormal 2^(emin-manBits).
		shift := 52 - int(f.manBits) + (emin - e)
		if shift > 53 {
			return sign
		}

		sig := man64 | 1<<52
		keep := sig >> shift
		rem := sig & (1<<shift - 1)
		half := uint64(1) << (shift - 1)

		if rem > half || (rem == half && keep&1 == 1) {
			keep++
		}

		// A carry out of the subnormal range lands on the smallest normal
		// encoding, which is the next bit pattern. No special case needed.
		return sign | keep
	}

	shift := 52 - f.manBits
	keep := man64 >> shift
	rem := man64 & (1<<shift - 1)
	half := uint64(1) << (shift - 1)

	if rem > half || (rem == half && keep&1 == 1) {
		keep++
	}

	if keep == 1<<f.manBits {
		keep = 0
		e++
	}

	be := e + f.bias()
	if be >= int(f.expMask()) {
		// Overflow past the largest finite value.
		return sign | f.expMask()<<f.manBits
	}

	return sign | uint64(be)<<f.manBits | keep
}

func (f minifloat) FromBits(b uint64) float64 {
	sign := (b >> (f.expBits + f.manBits)) & 1
	exp := (b >> f.manBits) & f.expMask()
	man := b & f.manMask()

	var v float64

	switch {
	case exp == f.expMask():
		if man != 0 {
			return math.NaN()
		}

		v = math.Inf(1)
	case exp == 0:
		v = math.Ldexp(float64(man), 1-f.bias()-int(f.manBits))
	default:
		v = math.Ldexp(float64(man|1<<f.manBits), int(exp)-f.bias()-int(f.manBits))
	}

	if sign == 1 {
		v = -v
	}

	return v
}

func (f minifloat) Quantize(x float64) float64 {
	if math.IsNaN(x) {
		return x
	}

	return f.FromBits(f.ToBits(x))
}

// Nextafter steps one representable value from x toward y. Inputs are
// quantized first, so callers may pass any float64.
func (f minifloat) Nextafter(x, y float64) float64 {
	if math.IsNaN(x) || math.IsNaN(y) {
		return math.NaN()
	}

	xq := f.Quantize(x)
	yq := f.Quantize(y)

	switch {
	case xq == yq:
		return yq
	case xq == 0:
		return math.Copysign(f.smallestSubnormal(), yq)
	}

	// Same bit-walk as math.Nextafter: within one sign, magnitude order and
	// bit-pattern order agree.
	b := f.ToBits(xq)
	if (yq > xq) == (xq > 0) {
		b++
	} else {
		b--
	}

	return f.FromBits(b)
}

func (f minifloat) MaxFinite() float64 {
	return f.FromBits((f.expMask()-1)<<f.manBits | f.manMask())
}

func (f minifloat) smallestSubnormal() float64 {
	return f.FromBits(1)
}
