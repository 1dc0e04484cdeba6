// Package hashrand provides a stateless, deterministic random source for
// per-element rounding decisions. Each draw is a pure function of a seed and
// a caller-supplied key, so any number of elements can be evaluated in any
// order or in parallel with bit-identical results. There is no counter and
// no shared mutable state anywhere in the package.
package hashrand

// Mixing constants: the golden-ratio increment and the splitmix64 finalizer
// multipliers, plus a large odd multiplier for the final multiply-shift
// (Dietzfelbinger-style) extraction. golden2 and golden3 are 2x and 3x the
// increment, pre-wrapped modulo 2^64.
const (
	golden  uint64 = 0x9e3779b97f4a7c15
	golden2 uint64 = 0x3c6ef372fe94f82a
	golden3 uint64 = 0xdaa66d2c7ddf743f
	mixA    uint64 = 0xbf58476d1ce4e5b9
	mixB    uint64 = 0x94d049bb133111eb
	odd     uint64 = 0xff51afd7ed558ccd
)

// Source draws pseudo-random values from (seed, key) pairs. The zero value
// is usable and equivalent to New(0).
type Source struct {
	seed uint64
}

// New returns a Source bound to seed.
func New(seed uint64) Source {
	return Source{seed: seed}
}

// Seed returns the seed the source was built with.
func (s Source) Seed() uint64 {
	return s.seed
}

// Key condenses the raw bit patterns of two operands and the element's
// linear index into a single well-mixed key. The index disambiguates
// repeated operand pairs at different positions in an array.
func Key(aBits, bBits, index uint64) uint64 {
	k := mix64(aBits + golden)
	k = mix64(k ^ (bBits + golden2))
	k = mix64(k ^ (index + golden3))

	return k
}

// Float64 maps key to a value in [0,1). Identical (seed, key) pairs always
// produce the identical value.
func (s Source) Float64(key uint64) float64 {
	h := (s.seed ^ key) * odd

	// Keep the high 53 bits; the result is strictly below 1.
	return float64(h>>11) / (1 << 53)
}

// mix64 is the splitmix64 finalizer: a full-avalanche 64-bit mixer.
func mix64(x uint64) uint64 {
	x = (x ^ (x >> 30)) * mixA
	x = (x ^ (x >> 27)) * mixB

	return x ^ (x >> 31)
}
