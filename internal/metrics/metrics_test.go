package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordBundleLoad(t *testing.T) {
	loads := BundleLoadsTotal.WithLabelValues("test-ok", "image", "ok")
	before := testutil.ToFloat64(loads)
	tensorsBefore := testutil.ToFloat64(TensorsLoadedTotal.WithLabelValues("test-ok"))

	RecordBundleLoad("test-ok", "image", 12, 4096, 25*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(loads))
	assert.Equal(t, tensorsBefore+12, testutil.ToFloat64(TensorsLoadedTotal.WithLabelValues("test-ok")))
	assert.Equal(t, float64(4096), testutil.ToFloat64(BytesLoadedTotal.WithLabelValues("test-ok")))
}

func TestRecordLoadError(t *testing.T) {
	RecordLoadError("test-err", "text", "decode")
	RecordLoadError("test-err", "text", "decode")
	RecordLoadError("test-err", "text", "not_found")

	assert.Equal(t, float64(2), testutil.ToFloat64(LoadErrorsTotal.WithLabelValues("test-err", "decode")))
	assert.Equal(t, float64(1), testutil.ToFloat64(LoadErrorsTotal.WithLabelValues("test-err", "not_found")))
	assert.Equal(t, float64(3), testutil.ToFloat64(BundleLoadsTotal.WithLabelValues("test-err", "text", "error")))
}

func TestWriteTextfile(t *testing.T) {
	RecordBundleLoad("test-file", "text", 1, 4, time.Millisecond)

	path := filepath.Join(t.TempDir(), "clipweights.prom")
	require.NoError(t, WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := string(data)
	assert.True(t, strings.Contains(out, "clipweights_bundle_loads_total"), out)
	assert.Contains(t, out, `format="test-file"`)
}
