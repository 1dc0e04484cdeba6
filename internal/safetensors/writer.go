package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"
	"strings"
)

// EncodeTensors serializes tensors into safetensors format, one entry per
// named tensor, with the dtype taken from each tensor's format.
func EncodeTensors(tensors []Named) ([]byte, error) {
	if len(tensors) == 0 {
		return nil, errors.New("safetensors: no tensors to encode")
	}

	sorted := make([]Named, len(tensors))
	copy(sorted, tensors)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	header := make(map[string]storeHeaderEntry, len(sorted))

	var raw []byte

	for _, nt := range sorted {
		name := strings.TrimSpace(nt.Name)
		if name == "" {
			return nil, errors.New("safetensors: tensor name must not be empty")
		}

		if _, exists := header[name]; exists {
			return nil, fmt.Errorf("safetensors: duplicate tensor name %q", name)
		}

		if nt.Tensor == nil {
			return nil, fmt.Errorf("safetensors: tensor %q is nil", name)
		}

		format := nt.Tensor.Format()

		dtype, err := dtypeForFormat(format)
		if err != nil {
			return nil, fmt.Errorf("safetensors: tensor %q: %w", name, err)
		}

		width := format.Bits() / 8
		data := nt.Tensor.RawData()
		start := len(raw)
		raw = append(raw, make([]byte, len(data)*width)...)

		for i, v := range data {
			bits := format.ToBits(v)
			off := start + i*width

			switch width {
			case 8:
				binary.LittleEndian.PutUint64(raw[off:], bits)
			case 4:
				binary.LittleEndian.PutUint32(raw[off:], uint32(bits))
			case 2:
				binary.LittleEndian.PutUint16(raw[off:], uint16(bits))
			}
		}

		header[name] = storeHeaderEntry{
			DType:   dtype,
			Shape:   nt.Tensor.Shape(),
			Offsets: [2]int{start, len(raw)},
		}
	}

	headerJSON, err := json.Marshal(header)
	if err != nil {
		return nil, fmt.Errorf("safetensors: encode header: %w", err)
	}

	out := make([]byte, 0, 8+len(headerJSON)+len(raw))
	lenPrefix := make([]byte, 8)
	binary.LittleEndian.PutUint64(lenPrefix, uint64(len(headerJSON)))
	out = append(out, lenPrefix...)
	out = append(out, headerJSON...)
	out = append(out, raw...)

	return out, nil
}

// WriteFile writes tensors into a .safetensors file.
func WriteFile(path string, tensors []Named) error {
	data, err := EncodeTensors(tensors)
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("safetensors: write %s: %w", path, err)
	}

	return nil
}
