package safetensors

import (
	"encoding/binary"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/born-ml/clipweights/internal/tensor"
)

const headerSizeLen = 8

// Reader reads safetensors files.
type Reader struct {
	file       *os.File
	header     Header
	dataOffset int64 // Offset where tensor data starts
	dataSize   int64
}

// Open opens path and parses and validates its header.
// Tensor data is read on demand.
func Open(path string) (*Reader, error) {
	//nolint:gosec // G304: File path comes from user input, which is expected for model loading
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	r := &Reader{file: file}
	if err := r.parseHeader(); err != nil {
		_ = file.Close() // Best effort close on error
		return nil, err
	}
	return r, nil
}

func (r *Reader) parseHeader() error {
	stat, err := r.file.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat file: %w", err)
	}
	fileSize := stat.Size()
	if fileSize < headerSizeLen {
		return fmt.Errorf("%w: %d bytes", ErrFileTooSmall, fileSize)
	}

	// Read header size (8 bytes, little-endian uint64)
	var headerSize uint64
	if err := binary.Read(r.file, binary.LittleEndian, &headerSize); err != nil {
		return fmt.Errorf("failed to read header size: %w", err)
	}
	if headerSize > MaxHeaderSize {
		return fmt.Errorf("%w: %d bytes (max %d)", ErrHeaderTooLarge, headerSize, MaxHeaderSize)
	}
	if int64(headerSize) > fileSize-headerSizeLen { //nolint:gosec // G115: bounded by MaxHeaderSize above
		return fmt.Errorf("%w: header size %d exceeds file size %d", ErrInvalidHeader, headerSize, fileSize)
	}

	headerBytes := make([]byte, headerSize)
	if _, err := io.ReadFull(r.file, headerBytes); err != nil {
		return fmt.Errorf("failed to read header: %w", err)
	}

	if err := json.Unmarshal(headerBytes, &r.header); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidHeader, err)
	}

	r.dataOffset = headerSizeLen + int64(headerSize) //nolint:gosec // G115: bounded by MaxHeaderSize above
	r.dataSize = fileSize - r.dataOffset

	return ValidateHeader(&r.header, r.dataSize)
}

// Close closes the file.
func (r *Reader) Close() error {
	if r.file != nil {
		return r.file.Close()
	}
	return nil
}

// Metadata returns the "__metadata__" map from the header.
func (r *Reader) Metadata() map[string]string {
	return r.header.Metadata
}

// Len returns the number of tensors in the file.
func (r *Reader) Len() int {
	return len(r.header.Tensors)
}

// TensorNames returns all tensor names in sorted order.
func (r *Reader) TensorNames() []string {
	names := make([]string, 0, len(r.header.Tensors))
	for name := range r.header.Tensors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns header information about a specific tensor.
func (r *Reader) TensorInfo(name string) (*TensorInfo, error) {
	info, ok := r.header.Tensors[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrTensorNotFound, name)
	}
	return &info, nil
}

// ReadTensorData reads raw tensor bytes for a given tensor name.
func (r *Reader) ReadTensorData(name string) ([]byte, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}

	data := make([]byte, info.Size())
	if _, err := r.file.ReadAt(data, r.dataOffset+info.DataOffsets[0]); err != nil {
		return nil, fmt.Errorf("failed to read tensor %s: %w", name, err)
	}
	return data, nil
}

// LoadTensor loads a tensor by name.
func (r *Reader) LoadTensor(name string) (*tensor.RawTensor, error) {
	info, err := r.TensorInfo(name)
	if err != nil {
		return nil, err
	}
	dtype, err := info.DType.DataType()
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	data, err := r.ReadTensorData(name)
	if err != nil {
		return nil, err
	}

	raw, err := tensor.FromBytes(shapeOf(info.Shape), dtype, data)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// LoadAll materializes every tensor in the file.
func (r *Reader) LoadAll() (map[string]*tensor.RawTensor, error) {
	tensors := make(map[string]*tensor.RawTensor, len(r.header.Tensors))
	for _, name := range r.TensorNames() {
		raw, err := r.LoadTensor(name)
		if err != nil {
			return nil, err
		}
		tensors[name] = raw
	}
	return tensors, nil
}

// ReadFile opens path, loads every tensor and closes the file.
func ReadFile(path string) (map[string]*tensor.RawTensor, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = r.Close() // Read-only; close error carries no information
	}()

	return r.LoadAll()
}
