// Package safetensors reads and writes .safetensors files for the stochround
// CLI. Tensor payloads are decoded through internal/floatformat, so every
// supported dtype (F64, F32, F16, BF16) lands in a tensor tagged with the
// matching format. The rounding core itself never touches files; this
// package is tooling around it.
package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/example/go-stochround/internal/floatformat"
	"github.com/example/go-stochround/internal/tensor"
)

const (
	dtypeF64  = "F64"
	dtypeF32  = "F32"
	dtypeF16  = "F16"
	dtypeBF16 = "BF16"
)

// maxHeaderBytes bounds the JSON header so a corrupt length prefix cannot
// trigger a huge allocation.
const maxHeaderBytes = 100 << 20

// Named pairs a tensor with its name for file round-trips.
type Named struct {
	Name   string
	Tensor *tensor.Tensor
}

// Store provides random access to the tensors of one safetensors payload.
type Store struct {
	raw     []byte
	entries map[string]storeEntry
	names   []string
}

type storeEntry struct {
	DType string
	Shape []int64
	Start int
	End   int
}

type storeHeaderEntry struct {
	DType   string  `json:"dtype"`
	Shape   []int64 `json:"shape"`
	Offsets [2]int  `json:"data_offsets"`
}

// OpenStore reads a safetensors file into a Store.
func OpenStore(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("safetensors: read %s: %w", path, err)
	}

	return OpenStoreFromBytes(data)
}

// OpenStoreFromBytes parses a safetensors payload: an 8-byte little-endian
// header length, a JSON header, then raw tensor data.
func OpenStoreFromBytes(data []byte) (*Store, error) {
	headerEnd, header, err := decodeHeader(data)
	if err != nil {
		return nil, err
	}

	names := make([]string, 0, len(header))
	entries := make(map[string]storeEntry, len(header))

	for name, raw := range header {
		if name == "__metadata__" {
			continue
		}

		entry, err := parseHeaderEntry(raw)
		if err != nil {
			return nil, fmt.Errorf("safetensors: decode header entry %q: %w", name, err)
		}

		if err := validateHeaderEntry(name, entry); err != nil {
			return nil, err
		}

		start := headerEnd + entry.Offsets[0]
		end := headerEnd + entry.Offsets[1]

		if end > len(data) {
			return nil, fmt.Errorf("safetensors: tensor %q data range [%d:%d] exceeds payload size %d", name, start, end, len(data))
		}

		entries[name] = storeEntry{
			DType: entry.DType,
			Shape: entry.Shape,
			Start: start,
			End:   end,
		}
		names = append(names, name)
	}

	sort.Strings(names)

	return &Store{raw: data, entries: entries, names: names}, nil
}

// Names returns the tensor names in sorted order.
func (s *Store) Names() []string {
	return append([]string(nil), s.names...)
}

// Tensor decodes the named tensor into its format-tagged representation.
func (s *Store) Tensor(name string) (*tensor.Tensor, error) {
	entry, ok := s.entries[name]
	if !ok {
		return nil, fmt.Errorf("safetensors: tensor %q not found", name)
	}

	format, err := formatForDType(entry.DType)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	data, err := decodeTensorData(s.raw[entry.Start:entry.End], format, entry.Shape)
	if err != nil {
		return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	return tensor.New(data, entry.Shape, format)
}

func decodeHeader(data []byte) (int, map[string]json.RawMessage, error) {
	if len(data) < 8 {
		return 0, nil, errors.New("safetensors: payload shorter than header length prefix")
	}

	headerLen := binary.LittleEndian.Uint64(data)
	if headerLen > maxHeaderBytes {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds limit %d", headerLen, maxHeaderBytes)
	}

	headerEnd := 8 + int(headerLen)
	if headerEnd > len(data) {
		return 0, nil, fmt.Errorf("safetensors: header length %d exceeds payload size %d", headerLen, len(data))
	}

	var header map[string]json.RawMessage
	if err := json.Unmarshal(data[8:headerEnd], &header); err != nil {
		return 0, nil, fmt.Errorf("safetensors: decode header: %w", err)
	}

	return headerEnd, header, nil
}

func parseHeaderEntry(raw json.RawMessage) (storeHeaderEntry, error) {
	var e storeHeaderEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		return storeHeaderEntry{}, err
	}

	return e, nil
}

func validateHeaderEntry(name string, entry storeHeaderEntry) error {
	if _, err := formatForDType(entry.DType); err != nil {
		return fmt.Errorf("safetensors: tensor %q: %w", name, err)
	}

	if entry.Offsets[0] < 0 || entry.Offsets[1] < entry.Offsets[0] {
		return fmt.Errorf("safetensors: tensor %q has invalid data offsets %v", name, entry.Offsets)
	}

	for _, d := range entry.Shape {
		if d < 0 {
			return fmt.Errorf("safetensors: tensor %q has negative shape dimension in %v", name, entry.Shape)
		}
	}

	return nil
}

func shapeElementCount(shape []int64) (int64, error) {
	total := int64(1)

	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension %d", d)
		}

		if d == 0 {
			return 0, nil
		}

		if total > math.MaxInt64/d {
			return 0, fmt.Errorf("shape %v overflows element count", shape)
		}

		total *= d
	}

	return total, nil
}

func formatForDType(dtype string) (floatformat.Format, error) {
	switch dtype {
	case dtypeF64:
		return floatformat.Double, nil
	case dtypeF32:
		return floatformat.Single, nil
	case dtypeF16:
		return floatformat.Half, nil
	case dtypeBF16:
		return floatformat.BFloat16, nil
	default:
		return nil, fmt.Errorf("unsupported dtype %q", dtype)
	}
}

func dtypeForFormat(f floatformat.Format) (string, error) {
	switch f.Name() {
	case "f64":
		return dtypeF64, nil
	case "f32":
		return dtypeF32, nil
	case "f16":
		return dtypeF16, nil
	case "bf16":
		return dtypeBF16, nil
	default:
		return "", fmt.Errorf("unsupported format %q", f.Name())
	}
}

func decodeTensorData(raw []byte, format floatformat.Format, shape []int64) ([]float64, error) {
	elemCount, err := shapeElementCount(shape)
	if err != nil {
		return nil, err
	}

	n := int(elemCount)
	width := format.Bits() / 8

	if len(raw) < n*width {
		return nil, fmt.Errorf("need %d bytes for %s, got %d", n*width, format.Name(), len(raw))
	}

	out := make([]float64, n)

	switch width {
	case 8:
		for i := range out {
			out[i] = format.FromBits(binary.LittleEndian.Uint64(raw[i*8:]))
		}
	case 4:
		for i := range out {
			out[i] = format.FromBits(uint64(binary.LittleEndian.Uint32(raw[i*4:])))
		}
	case 2:
		for i := range out {
			out[i] = format.FromBits(uint64(binary.LittleEndian.Uint16(raw[i*2:])))
		}
	default:
		return nil, fmt.Errorf("unsupported element width %d", width)
	}

	return out, nil
}
