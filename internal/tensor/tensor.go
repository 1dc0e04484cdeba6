// Package tensor is the minimal host array engine consumed by the stochastic
// rounding core: dense element storage tagged with a floating-point format,
// NumPy-style broadcasting, format casting, and an elementwise-apply facility
// with deterministic per-element indexing.
//
// Elements are carried as float64 and quantized into the tensor's format on
// ingest, so every stored value is representable in that format.
package tensor

import (
	"errors"
	"fmt"

	"github.com/example/go-stochround/internal/floatformat"
)

// Tensor is a dense, row-major array of format values.
type Tensor struct {
	shape  []int64
	data   []float64
	format floatformat.Format
}

// New creates a tensor from data and shape, quantizing each element into
// format.
func New(data []float64, shape []int64, format floatformat.Format) (*Tensor, error) {
	if format == nil {
		return nil, errors.New("tensor: format must not be nil")
	}

	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	if len(data) != total {
		return nil, fmt.Errorf("tensor: data length %d does not match shape %v (%d elements)", len(data), shape, total)
	}

	d := make([]float64, len(data))
	for i, v := range data {
		d[i] = format.Quantize(v)
	}

	return &Tensor{shape: append([]int64(nil), shape...), data: d, format: format}, nil
}

// Zeros creates a zero-initialized tensor.
func Zeros(shape []int64, format floatformat.Format) (*Tensor, error) {
	if format == nil {
		return nil, errors.New("tensor: format must not be nil")
	}

	total, err := shapeElemCount(shape)
	if err != nil {
		return nil, err
	}

	return &Tensor{
		shape:  append([]int64(nil), shape...),
		data:   make([]float64, total),
		format: format,
	}, nil
}

// Full creates a tensor filled with value quantized into format.
func Full(shape []int64, value float64, format floatformat.Format) (*Tensor, error) {
	t, err := Zeros(shape, format)
	if err != nil {
		return nil, err
	}

	q := format.Quantize(value)
	for i := range t.data {
		t.data[i] = q
	}

	return t, nil
}

func (t *Tensor) Shape() []int64 {
	if t == nil {
		return nil
	}

	return append([]int64(nil), t.shape...)
}

// Format returns the tensor's floating-point format.
func (t *Tensor) Format() floatformat.Format {
	if t == nil {
		return nil
	}

	return t.format
}

// Data returns a copy of the underlying tensor data.
func (t *Tensor) Data() []float64 {
	if t == nil {
		return nil
	}

	return append([]float64(nil), t.data...)
}

// RawData returns the underlying data slice.
// Callers must treat it as read-only.
func (t *Tensor) RawData() []float64 {
	if t == nil {
		return nil
	}

	return t.data
}

func (t *Tensor) ElemCount() int {
	if t == nil {
		return 0
	}

	return len(t.data)
}

func (t *Tensor) Rank() int {
	if t == nil {
		return 0
	}

	return len(t.shape)
}

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	if t == nil {
		return nil
	}

	dup, _ := New(t.data, t.shape, t.format)

	return dup
}

// Cast re-quantizes the tensor into format. Casting to a wider format is
// lossless; casting to a narrower one rounds each element to nearest.
func (t *Tensor) Cast(format floatformat.Format) (*Tensor, error) {
	if t == nil {
		return nil, errors.New("tensor: cast on nil tensor")
	}

	return New(t.data, t.shape, format)
}
