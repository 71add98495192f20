package npz

import (
	"archive/zip"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"

	"github.com/born-ml/clipweights/internal/tensor"
)

const (
	npyMagic     = "\x93NUMPY"
	npyAlignment = 64
)

// encodeHeader builds a version 1.0 .npy header the way numpy.save does:
// a python dict literal padded with spaces and terminated by '\n' so that
// the data starts on a 64-byte boundary.
func encodeHeader(descr string, shape tensor.Shape) []byte {
	dict := fmt.Sprintf("{'descr': '%s', 'fortran_order': False, 'shape': %s, }", descr, shape)

	preamble := len(npyMagic) + 2 + 2 // magic, version, header length
	total := preamble + len(dict) + 1
	if rem := total % npyAlignment; rem != 0 {
		dict += strings.Repeat(" ", npyAlignment-rem)
	}
	dict += "\n"

	out := make([]byte, 0, preamble+len(dict))
	out = append(out, npyMagic...)
	out = append(out, 1, 0)
	out = binary.LittleEndian.AppendUint16(out, uint16(len(dict))) //nolint:gosec // G115: dict length is far below 64KiB
	return append(out, dict...)
}

// WriteArray writes one tensor as a .npy document.
func WriteArray(w io.Writer, raw *tensor.RawTensor) error {
	descr, err := Descr(raw.DType())
	if err != nil {
		return err
	}
	if _, err := w.Write(encodeHeader(descr, raw.Shape())); err != nil {
		return fmt.Errorf("failed to write npy header: %w", err)
	}
	if _, err := w.Write(raw.Data()); err != nil {
		return fmt.Errorf("failed to write npy data: %w", err)
	}
	return nil
}

// Write encodes tensors as an uncompressed .npz archive, like numpy.savez.
// Members are written in alphabetical order.
func Write(w io.Writer, tensors map[string]*tensor.RawTensor) error {
	names := make([]string, 0, len(tensors))
	for name := range tensors {
		names = append(names, name)
	}
	sort.Strings(names)

	zw := zip.NewWriter(w)
	for _, name := range names {
		member, err := zw.CreateHeader(&zip.FileHeader{
			Name:   name + memberSuffix,
			Method: zip.Store,
		})
		if err != nil {
			return fmt.Errorf("failed to create member %s: %w", name, err)
		}
		if err := WriteArray(member, tensors[name]); err != nil {
			return fmt.Errorf("tensor %s: %w", name, err)
		}
	}
	return zw.Close()
}

// WriteFile writes tensors to an .npz file at path.
func WriteFile(path string, tensors map[string]*tensor.RawTensor) error {
	//nolint:gosec // G304: File path comes from user input, which is expected for model saving
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}

	if err := Write(file, tensors); err != nil {
		_ = file.Close()
		return err
	}
	return file.Close()
}
