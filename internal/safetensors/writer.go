package safetensors

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/clipweights/internal/tensor"
)

// Write encodes tensors to w. Tensors are laid out in alphabetical order and
// the header is space-padded to an 8-byte boundary.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	header := Header{
		Metadata: metadata,
		Tensors:  make(map[string]TensorInfo, len(tensors)),
	}

	var offset int64
	for _, name := range names {
		raw := tensors[name]
		dtype, err := FromDataType(raw.DType())
		if err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}

		shape := raw.Shape()
		dims := make([]int64, len(shape))
		for i, dim := range shape {
			dims[i] = int64(dim)
		}

		size := int64(raw.ByteSize())
		header.Tensors[name] = TensorInfo{
			DType:       dtype,
			Shape:       dims,
			DataOffsets: [2]int64{offset, offset + size},
		}
		offset += size
	}

	headerJSON, err := header.MarshalJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal header: %w", err)
	}
	if pad := len(headerJSON) % 8; pad != 0 {
		headerJSON = append(headerJSON, bytes.Repeat([]byte(" "), 8-pad)...)
	}

	if err := binary.Write(w, binary.LittleEndian, uint64(len(headerJSON))); err != nil {
		return fmt.Errorf("failed to write header size: %w", err)
	}
	if _, err := w.Write(headerJSON); err != nil {
		return fmt.Errorf("failed to write header: %w", err)
	}

	for _, name := range names {
		if _, err := w.Write(tensors[name].Data()); err != nil {
			return fmt.Errorf("failed to write tensor %s: %w", name, err)
		}
	}

	return nil
}

// WriteFile writes tensors to a safetensors file at path.
func WriteFile(path string, tensors map[string]*tensor.RawTensor, metadata map[string]string) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := Write(file, tensors, metadata); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
