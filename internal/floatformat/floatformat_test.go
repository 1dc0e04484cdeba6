package floatformat

import (
	"math"
	"testing"
)

func TestParse(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"f16", "f16"},
		{"half", "f16"},
		{"Float16", "f16"},
		{"bf16", "bf16"},
		{"BFloat16", "bf16"},
		{"f32", "f32"},
		{"single", "f32"},
		{"f64", "f64"},
		{" double ", "f64"},
	}

	for _, tc := range cases {
		f, err := Parse(tc.in)
		if err != nil {
			t.Fatalf("Parse(%q): %v", tc.in, err)
		}

		if f.Name() != tc.want {
			t.Fatalf("Parse(%q).Name() = %q, want %q", tc.in, f.Name(), tc.want)
		}
	}
}

func TestParseUnknown(t *testing.T) {
	if _, err := Parse("f8"); err == nil {
		t.Fatal("Parse(f8) should fail")
	}

	if _, err := Parse(""); err == nil {
		t.Fatal("Parse of empty tag should fail")
	}
}

func TestWidths(t *testing.T) {
	cases := []struct {
		f        Format
		bits     int
		mantissa int
		exponent int
	}{
		{Half, 16, 10, 5},
		{BFloat16, 16, 7, 8},
		{Single, 32, 23, 8},
		{Double, 64, 52, 11},
	}

	for _, tc := range cases {
		if tc.f.Bits() != tc.bits || tc.f.MantissaBits() != tc.mantissa || tc.f.ExponentBits() != tc.exponent {
			t.Fatalf("%s layout = (%d, %d, %d), want (%d, %d, %d)",
				tc.f.Name(), tc.f.Bits(), tc.f.MantissaBits(), tc.f.ExponentBits(),
				tc.bits, tc.mantissa, tc.exponent)
		}
	}
}

func TestQuantizeRoundToNearestEven(t *testing.T) {
	ulp := math.Ldexp(1, -7) // bf16 ULP at 1.0

	cases := []struct {
		name string
		f    Format
		in   float64
		want float64
	}{
		{"bf16 exact", BFloat16, 1.0, 1.0},
		{"bf16 below half ulp", BFloat16, 1.0 + ulp/4, 1.0},
		{"bf16 above half ulp", BFloat16, 1.0 + 3*ulp/4, 1.0 + ulp},
		{"bf16 tie to even down", BFloat16, 1.0 + ulp/2, 1.0},
		{"bf16 tie to even up", BFloat16, 1.0 + 3*ulp/2, 1.0 + 2*ulp},
		{"f16 exact", Half, 1.0 + math.Ldexp(1, -10), 1.0 + math.Ldexp(1, -10)},
		{"f16 tie to even", Half, 1.0 + math.Ldexp(1, -11), 1.0},
		{"f32 tie to even", Single, 1.0 + math.Ldexp(1, -24), 1.0},
		{"f64 identity", Double, 1.0 + math.Ldexp(1, -52), 1.0 + math.Ldexp(1, -52)},
	}

	for _, tc := range cases {
		if got := tc.f.Quantize(tc.in); got != tc.want {
			t.Errorf("%s: Quantize(%g) = %g, want %g", tc.name, tc.in, got, tc.want)
		}
	}
}

func TestQuantizeIsIdempotent(t *testing.T) {
	for _, f := range []Format{Half, BFloat16, Single, Double} {
		for _, x := range []float64{0, 1, -1, 0.333251953125, 65504, 1e-30, 3.25e4} {
			q := f.Quantize(x)
			if qq := f.Quantize(q); qq != q {
				t.Fatalf("%s: Quantize not idempotent at %g: %g then %g", f.Name(), x, q, qq)
			}
		}
	}
}

func TestMaxFinite(t *testing.T) {
	if got, want := Half.MaxFinite(), 65504.0; got != want {
		t.Fatalf("f16 MaxFinite = %g, want %g", got, want)
	}

	if got, want := BFloat16.MaxFinite(), math.Ldexp(255, 120); got != want {
		t.Fatalf("bf16 MaxFinite = %g, want %g", got, want)
	}

	if got, want := Single.MaxFinite(), float64(math.MaxFloat32); got != want {
		t.Fatalf("f32 MaxFinite = %g, want %g", got, want)
	}

	if got, want := Double.MaxFinite(), math.MaxFloat64; got != want {
		t.Fatalf("f64 MaxFinite = %g, want %g", got, want)
	}
}

func TestQuantizeOverflow(t *testing.T) {
	if got := BFloat16.Quantize(1e39); !math.IsInf(got, 1) {
		t.Fatalf("bf16 Quantize(1e39) = %g, want +Inf", got)
	}

	if got := Half.Quantize(-70000); !math.IsInf(got, -1) {
		t.Fatalf("f16 Quantize(-70000) = %g, want -Inf", got)
	}

	// 65520 is the exact midpoint between MaxFinite and the overflow
	// boundary; ties-to-even rounds it up and out of range.
	if got := Half.Quantize(65520); !math.IsInf(got, 1) {
		t.Fatalf("f16 Quantize(65520) = %g, want +Inf", got)
	}

	if got := Half.Quantize(65519); got != 65504 {
		t.Fatalf("f16 Quantize(65519) = %g, want 65504", got)
	}
}

func TestQuantizeSubnormals(t *testing.T) {
	minSub := math.Ldexp(1, -24) // smallest f16 subnormal

	if got := Half.Quantize(minSub); got != minSub {
		t.Fatalf("f16 Quantize(2^-24) = %g, want %g", got, minSub)
	}

	// Exactly half the smallest subnormal ties to even, i.e. zero.
	if got := Half.Quantize(minSub / 2); got != 0 {
		t.Fatalf("f16 Quantize(2^-25) = %g, want 0", got)
	}

	if got := Half.Quantize(minSub/2 + minSub/8); got != minSub {
		t.Fatalf("f16 Quantize(just above 2^-25) = %g, want %g", got, minSub)
	}

	// float64 subnormals are far below half of any 16-bit subnormal.
	if got := Half.Quantize(5e-324); got != 0 {
		t.Fatalf("f16 Quantize(5e-324) = %g, want 0", got)
	}

	if got := Half.Quantize(math.Copysign(5e-324, -1)); got != 0 || !math.Signbit(got) {
		t.Fatalf("f16 Quantize(-5e-324) = %g, want -0", got)
	}
}

func TestQuantizeNonFinite(t *testing.T) {
	for _, f := range []Format{Half, BFloat16, Single, Double} {
		if got := f.Quantize(math.Inf(1)); !math.IsInf(got, 1) {
			t.Fatalf("%s: Quantize(+Inf) = %g", f.Name(), got)
		}

		if got := f.Quantize(math.Inf(-1)); !math.IsInf(got, -1) {
			t.Fatalf("%s: Quantize(-Inf) = %g", f.Name(), got)
		}

		if got := f.Quantize(math.NaN()); !math.IsNaN(got) {
			t.Fatalf("%s: Quantize(NaN) = %g", f.Name(), got)
		}
	}
}

func TestBitsRoundTrip(t *testing.T) {
	// Every finite 16-bit pattern must survive a decode/encode round-trip.
	for _, f := range []Format{Half, BFloat16} {
		for b := uint64(0); b < 1<<16; b++ {
			v := f.FromBits(b)
			if math.IsNaN(v) {
				continue
			}

			if got := f.ToBits(v); got != b {
				t.Fatalf("%s: ToBits(FromBits(%#x)) = %#x", f.Name(), b, got)
			}
		}
	}
}

func TestToBitsNaN(t *testing.T) {
	for _, f := range []Format{Half, BFloat16} {
		b := f.ToBits(math.NaN())
		if v := f.FromBits(b); !math.IsNaN(v) {
			t.Fatalf("%s: NaN did not survive encode: bits %#x decode to %g", f.Name(), b, v)
		}
	}
}

func TestNextafter(t *testing.T) {
	bf16ULP := math.Ldexp(1, -7)

	cases := []struct {
		name string
		f    Format
		x    float64
		y    float64
		want float64
	}{
		{"bf16 up at 1", BFloat16, 1.0, BFloat16.MaxFinite(), 1.0 + bf16ULP},
		{"bf16 down at 1 crosses binade", BFloat16, 1.0, -BFloat16.MaxFinite(), 1.0 - math.Ldexp(1, -8)},
		{"bf16 equal", BFloat16, 1.0, 1.0, 1.0},
		{"bf16 from zero up", BFloat16, 0, 1, math.Ldexp(1, -133)},
		{"bf16 from zero down", BFloat16, 0, -1, -math.Ldexp(1, -133)},
		{"bf16 max stays put", BFloat16, BFloat16.MaxFinite(), BFloat16.MaxFinite(), BFloat16.MaxFinite()},
		{"f16 up at 1", Half, 1.0, Half.MaxFinite(), 1.0 + math.Ldexp(1, -10)},
		{"f16 negative toward zero", Half, -1.0, Half.MaxFinite(), -1.0 + math.Ldexp(1, -11)},
		{"f32 up at 1", Single, 1.0, Single.MaxFinite(), 1.0 + math.Ldexp(1, -23)},
		{"f64 up at 1", Double, 1.0, Double.MaxFinite(), 1.0 + math.Ldexp(1, -52)},
	}

	for _, tc := range cases {
		if got := tc.f.Nextafter(tc.x, tc.y); got != tc.want {
			t.Errorf("%s: Nextafter(%g, %g) = %g, want %g", tc.name, tc.x, tc.y, got, tc.want)
		}
	}
}

func TestNextafterNaN(t *testing.T) {
	if got := BFloat16.Nextafter(math.NaN(), 1); !math.IsNaN(got) {
		t.Fatalf("Nextafter(NaN, 1) = %g, want NaN", got)
	}

	if got := Half.Nextafter(1, math.NaN()); !math.IsNaN(got) {
		t.Fatalf("Nextafter(1, NaN) = %g, want NaN", got)
	}
}

func TestNextafterAdjacency(t *testing.T) {
	// Stepping up from any finite value must land on the next distinct
	// quantization fixed point.
	for _, f := range []Format{Half, BFloat16} {
		for _, x := range []float64{0, math.Ldexp(1, -24), 0.5, 1, 1.5, 2, 100} {
			xq := f.Quantize(x)

			up := f.Nextafter(xq, f.MaxFinite())
			if math.IsInf(up, 0) {
				continue
			}

			if up <= xq {
				t.Fatalf("%s: Nextafter(%g, max) = %g, not above", f.Name(), xq, up)
			}

			if q := f.Quantize(up); q != up {
				t.Fatalf("%s: Nextafter(%g, max) = %g is not a format value", f.Name(), xq, up)
			}

			mid := xq + (up-xq)/2
			if got := f.Quantize(mid + (up-xq)/4); got != up {
				t.Fatalf("%s: value between %g and %g quantized to %g", f.Name(), mid, up, got)
			}
		}
	}
}
