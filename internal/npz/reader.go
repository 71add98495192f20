package npz

import (
	"archive/zip"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sort"

	npyz "github.com/sbinet/npyio/npz"

	"github.com/born-ml/clipweights/internal/tensor"
)

// Reader reads tensors from an open .npz archive.
type Reader struct {
	archive *npyz.Reader
	zip     *zip.ReadCloser
	members map[string]member // tensor name -> archive member
}

type member struct {
	key  string // name the decoder knows the member by
	file *zip.File
}

// array describes one member as declared by its .npy header.
type array struct {
	dtype      tensor.DataType
	shape      tensor.Shape
	bigEndian  bool
	dataOffset int64 // bytes before the array data
}

// Open opens the archive at path. Member data is decoded on demand.
func Open(path string) (*Reader, error) {
	archive, err := npyz.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	zr, err := zip.OpenReader(path)
	if err != nil {
		_ = archive.Close()
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}

	files := make(map[string]*zip.File, len(zr.File))
	for _, f := range zr.File {
		files[f.Name] = f
	}

	keys := archive.Keys()
	members := make(map[string]member, len(keys))
	for _, key := range keys {
		f, ok := files[key]
		if !ok {
			f, ok = files[key+memberSuffix]
		}
		if !ok {
			_ = archive.Close()
			_ = zr.Close()
			return nil, fmt.Errorf("archive member %s: %w", key, ErrMissingHeader)
		}
		members[TensorName(key)] = member{key: key, file: f}
	}

	return &Reader{archive: archive, zip: zr, members: members}, nil
}

// Close closes the archive.
func (r *Reader) Close() error {
	return errors.Join(r.archive.Close(), r.zip.Close())
}

// Len returns the number of arrays in the archive.
func (r *Reader) Len() int {
	return len(r.members)
}

// TensorNames returns all tensor names in sorted order.
func (r *Reader) TensorNames() []string {
	names := make([]string, 0, len(r.members))
	for name := range r.members {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// TensorInfo returns the data type and shape recorded for name.
func (r *Reader) TensorInfo(name string) (tensor.DataType, tensor.Shape, error) {
	arr, err := r.inspect(name)
	if err != nil {
		return 0, nil, err
	}
	return arr.dtype, arr.shape, nil
}

// inspect parses the member header and checks that the declared shape fits
// in the bytes the member actually holds.
func (r *Reader) inspect(name string) (*array, error) {
	m, ok := r.members[name]
	if !ok {
		return nil, fmt.Errorf("tensor %s not found", name)
	}

	hdr := r.archive.Header(m.key)
	if hdr == nil {
		return nil, fmt.Errorf("tensor %s: %w", name, ErrMissingHeader)
	}
	if hdr.Descr.Fortran {
		return nil, fmt.Errorf("tensor %s: %w", name, ErrFortranOrder)
	}

	dtype, err := ParseDescr(hdr.Descr.Type)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}

	shape := tensor.Shape(append([]int(nil), hdr.Descr.Shape...))
	need, err := tensor.ByteLen(shape, dtype)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w: %w", name, ErrInvalidShape, err)
	}

	offset, err := dataOffset(m.file)
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	size := int64(m.file.UncompressedSize64) - offset //nolint:gosec // G115: checked against need below
	if size < 0 || int64(need) > size {
		return nil, fmt.Errorf("tensor %s: %w: shape %v of %s needs %d bytes, member holds %d",
			name, ErrSizeMismatch, shape, dtype, need, max(size, 0))
	}

	return &array{
		dtype:      dtype,
		shape:      shape,
		bigEndian:  len(hdr.Descr.Type) > 0 && hdr.Descr.Type[0] == '>',
		dataOffset: offset,
	}, nil
}

// dataOffset reads the .npy preamble of f and returns where the array data
// starts: magic, version, header length (2 bytes in v1, 4 in v2/v3), header.
func dataOffset(f *zip.File) (int64, error) {
	rc, err := f.Open()
	if err != nil {
		return 0, fmt.Errorf("failed to open member: %w", err)
	}
	defer rc.Close()

	var pre [len(npyMagic) + 2]byte
	if _, err := io.ReadFull(rc, pre[:]); err != nil || string(pre[:len(npyMagic)]) != npyMagic {
		return 0, ErrMissingHeader
	}

	switch major := pre[len(npyMagic)]; major {
	case 1:
		var n [2]byte
		if _, err := io.ReadFull(rc, n[:]); err != nil {
			return 0, ErrMissingHeader
		}
		return int64(len(pre)+2) + int64(binary.LittleEndian.Uint16(n[:])), nil
	case 2, 3:
		var n [4]byte
		if _, err := io.ReadFull(rc, n[:]); err != nil {
			return 0, ErrMissingHeader
		}
		return int64(len(pre)+4) + int64(binary.LittleEndian.Uint32(n[:])), nil
	default:
		return 0, fmt.Errorf("%w: npy version %d", ErrMissingHeader, major)
	}
}

// LoadTensor decodes one array into a tensor.
func (r *Reader) LoadTensor(name string) (*tensor.RawTensor, error) {
	arr, err := r.inspect(name)
	if err != nil {
		return nil, err
	}

	m := r.members[name]
	var raw *tensor.RawTensor
	switch arr.dtype {
	case tensor.Float16:
		raw, err = readHalf(m.file, arr)
	case tensor.Float32:
		raw, err = readAs[float32](r.archive, m.key, arr.shape)
	case tensor.Float64:
		raw, err = readAs[float64](r.archive, m.key, arr.shape)
	case tensor.Int8:
		raw, err = readAs[int8](r.archive, m.key, arr.shape)
	case tensor.Int16:
		raw, err = readAs[int16](r.archive, m.key, arr.shape)
	case tensor.Int32:
		raw, err = readAs[int32](r.archive, m.key, arr.shape)
	case tensor.Int64:
		raw, err = readAs[int64](r.archive, m.key, arr.shape)
	case tensor.Uint8:
		raw, err = readAs[uint8](r.archive, m.key, arr.shape)
	case tensor.Uint16:
		raw, err = readAs[uint16](r.archive, m.key, arr.shape)
	case tensor.Uint32:
		raw, err = readAs[uint32](r.archive, m.key, arr.shape)
	case tensor.Uint64:
		raw, err = readAs[uint64](r.archive, m.key, arr.shape)
	case tensor.Bool:
		raw, err = readAs[bool](r.archive, m.key, arr.shape)
	default:
		err = fmt.Errorf("%w: %s", ErrUnsupportedDType, arr.dtype)
	}
	if err != nil {
		return nil, fmt.Errorf("tensor %s: %w", name, err)
	}
	return raw, nil
}

// readAs decodes a member into []T (npyio handles byte order) and wraps it.
func readAs[T tensor.DType](archive *npyz.Reader, key string, shape tensor.Shape) (*tensor.RawTensor, error) {
	var values []T
	if err := archive.Read(key, &values); err != nil {
		return nil, fmt.Errorf("failed to decode array: %w", err)
	}
	return tensor.FromSlice(shape, values)
}

// readHalf copies the 16-bit payload of a float16 member, converting
// big-endian data to little-endian. npyio has no half-precision type.
func readHalf(f *zip.File, arr *array) (*tensor.RawTensor, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open member: %w", err)
	}
	defer rc.Close()

	if _, err := io.CopyN(io.Discard, rc, arr.dataOffset); err != nil {
		return nil, fmt.Errorf("failed to skip npy header: %w", err)
	}
	data := make([]byte, arr.shape.NumElements()*tensor.Float16.Size())
	if _, err := io.ReadFull(rc, data); err != nil {
		return nil, fmt.Errorf("failed to read array data: %w", err)
	}
	if arr.bigEndian {
		for i := 0; i+1 < len(data); i += 2 {
			data[i], data[i+1] = data[i+1], data[i]
		}
	}
	return tensor.FromBytes(arr.shape, tensor.Float16, data)
}

// LoadAll materializes every array in the archive.
func (r *Reader) LoadAll() (map[string]*tensor.RawTensor, error) {
	tensors := make(map[string]*tensor.RawTensor, len(r.members))
	for _, name := range r.TensorNames() {
		raw, err := r.LoadTensor(name)
		if err != nil {
			return nil, err
		}
		tensors[name] = raw
	}
	return tensors, nil
}

// ReadFile opens path, loads every array and closes the archive.
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
