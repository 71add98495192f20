package loader

import (
	"sort"

	"github.com/born-ml/clipweights/internal/tensor"
)

// Bundle maps tensor names to tensors for one encoder.
type Bundle map[string]*tensor.RawTensor

// Names returns the tensor names in sorted order.
func (b Bundle) Names() []string {
	names := make([]string, 0, len(b))
	for name := range b {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NumParams returns the total element count across all tensors.
func (b Bundle) NumParams() int64 {
	var n int64
	for _, t := range b {
		n += int64(t.NumElements())
	}
	return n
}

// NumBytes returns the total tensor data size.
func (b Bundle) NumBytes() int64 {
	var n int64
	for _, t := range b {
		n += int64(t.ByteSize())
	}
	return n
}

// FullModel groups the bundles of both towers. Entries that were not
// requested are nil.
type FullModel struct {
	Image Bundle
	Text  Bundle
}

// Bundle returns the entry for a single-tower encoder.
func (m *FullModel) Bundle(e Encoder) Bundle {
	switch e {
	case EncoderImage:
		return m.Image
	case EncoderText:
		return m.Text
	default:
		return nil
	}
}
