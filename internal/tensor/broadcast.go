package tensor

import (
	"fmt"

	"github.com/example/go-stochround/internal/floatformat"
)

// Map2 applies fn elementwise over a and b with NumPy-style broadcasting and
// returns the result in format. fn receives the output element's linear
// index, which is deterministic for a given pair of shapes regardless of
// evaluation order. Returned values are quantized into format on store.
func Map2(a, b *Tensor, format floatformat.Format, fn func(x, y float64, index int64) float64) (*Tensor, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("tensor: map2 requires non-nil inputs")
	}

	outShape, err := broadcastShape(a.shape, b.shape)
	if err != nil {
		return nil, fmt.Errorf("tensor: map2: %w", err)
	}

	out, err := Zeros(outShape, format)
	if err != nil {
		return nil, err
	}

	aPadShape := leftPadShape(a.shape, len(outShape))
	bPadShape := leftPadShape(b.shape, len(outShape))
	aPadStrides := computeStrides(aPadShape)
	bPadStrides := computeStrides(bPadShape)
	outStrides := computeStrides(outShape)
	coord := make([]int64, len(outShape))

	for i := range out.data {
		linearToCoord(int64(i), outShape, outStrides, coord)

		aOff := broadcastOffset(coord, aPadShape, aPadStrides)
		bOff := broadcastOffset(coord, bPadShape, bPadStrides)

		out.data[i] = format.Quantize(fn(a.data[aOff], b.data[bOff], int64(i)))
	}

	return out, nil
}

// Map3 is Map2 for three operands, used by fused operations that must not
// round intermediates (addcdiv).
func Map3(a, b, c *Tensor, format floatformat.Format, fn func(x, y, z float64, index int64) float64) (*Tensor, error) {
	if a == nil || b == nil || c == nil {
		return nil, fmt.Errorf("tensor: map3 requires non-nil inputs")
	}

	abShape, err := broadcastShape(a.shape, b.shape)
	if err != nil {
		return nil, fmt.Errorf("tensor: map3: %w", err)
	}

	outShape, err := broadcastShape(abShape, c.shape)
	if err != nil {
		return nil, fmt.Errorf("tensor: map3: %w", err)
	}

	out, err := Zeros(outShape, format)
	if err != nil {
		return nil, err
	}

	aPadShape := leftPadShape(a.shape, len(outShape))
	bPadShape := leftPadShape(b.shape, len(outShape))
	cPadShape := leftPadShape(c.shape, len(outShape))
	aPadStrides := computeStrides(aPadShape)
	bPadStrides := computeStrides(bPadShape)
	cPadStrides := computeStrides(cPadShape)
	outStrides := computeStrides(outShape)
	coord := make([]int64, len(outShape))

	for i := range out.data {
		linearToCoord(int64(i), outShape, outStrides, coord)

		aOff := broadcastOffset(coord, aPadShape, aPadStrides)
		bOff := broadcastOffset(coord, bPadShape, bPadStrides)
		cOff := broadcastOffset(coord, cPadShape, cPadStrides)

		out.data[i] = format.Quantize(fn(a.data[aOff], b.data[bOff], c.data[cOff], int64(i)))
	}

	return out, nil
}

// broadcastOffset maps an output coordinate to a source linear offset,
// pinning broadcast (size-1) dimensions to zero.
func broadcastOffset(coord, padShape, padStrides []int64) int64 {
	var off int64

	for d := range coord {
		c := coord[d]
		if padShape[d] == 1 {
			c = 0
		}

		off += c * padStrides[d]
	}

	return off
}

func broadcastShape(a, b []int64) ([]int64, error) {
	outRank := max(len(a), len(b))

	out := make([]int64, outRank)
	for i := 0; i < outRank; i++ {
		ad := int64(1)
		if j := i - (outRank - len(a)); j >= 0 {
			ad = a[j]
		}

		bd := int64(1)
		if j := i - (outRank - len(b)); j >= 0 {
			bd = b[j]
		}

		switch {
		case ad == bd || ad == 1:
			out[i] = bd
		case bd == 1:
			out[i] = ad
		default:
			return nil, fmt.Errorf("cannot broadcast shapes %v and %v", a, b)
		}
	}

	return out, nil
}

func leftPadShape(shape []int64, rank int) []int64 {
	if len(shape) == rank {
		return append([]int64(nil), shape...)
	}

	out := make([]int64, rank)

	pad := rank - len(shape)
	for i := 0; i < pad; i++ {
		out[i] = 1
	}

	copy(out[pad:], shape)

	return out
}
