package commands

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/clipweights/internal/loader"
	"github.com/born-ml/clipweights/internal/npz"
	"github.com/born-ml/clipweights/internal/safetensors"
	"github.com/born-ml/clipweights/internal/tensor"
)

func writeFixture(t *testing.T, dir string, f loader.Format, e loader.Encoder, n int) {
	t.Helper()
	tensors := make(map[string]*tensor.RawTensor, n)
	for i := 0; i < n; i++ {
		raw, err := tensor.NewRaw(tensor.Shape{4, 4}, tensor.Float32)
		require.NoError(t, err)
		tensors[string(e)+".layer"+string(rune('a'+i))+".weight"] = raw
	}

	path := loader.EncoderPath(dir, e, f)
	switch f {
	case loader.FormatNPZ:
		require.NoError(t, npz.WriteFile(path, tensors))
	case loader.FormatSafeTensors:
		require.NoError(t, safetensors.WriteFile(path, tensors, map[string]string{"format": "pt"}))
	}
}

func modelDir(t *testing.T, f loader.Format, n int) string {
	t.Helper()
	dir := t.TempDir()
	writeFixture(t, dir, f, loader.EncoderImage, n)
	writeFixture(t, dir, f, loader.EncoderText, n)
	return dir
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(append(args, "--config", filepath.Join(t.TempDir(), "none.yaml")))
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), stderr.String(), err
}

func TestLoadCommands(t *testing.T) {
	for _, f := range []loader.Format{loader.FormatNPZ, loader.FormatSafeTensors} {
		t.Run(f.String(), func(t *testing.T) {
			dir := modelDir(t, f, 2)

			out, _, err := run(t, f.Extension(), "--model-dir", dir)
			require.NoError(t, err)

			assert.Contains(t, out, strings.Repeat("=", 70))
			assert.Contains(t, out, "Model directory: "+dir)
			assert.Contains(t, out, "Image encoder: 2 tensors, 32 parameters")
			assert.Contains(t, out, "Text encoder: 2 tensors, 32 parameters")
			assert.Contains(t, out, "Weights loaded successfully!")
			assert.NotContains(t, out, "Weight tensors (")
			assert.Less(t, strings.Index(out, "Image encoder:"), strings.Index(out, "Text encoder:"))
		})
	}
}

func TestLoadSingleEncoder(t *testing.T) {
	dir := t.TempDir()
	writeFixture(t, dir, loader.FormatSafeTensors, loader.EncoderText, 1)

	out, _, err := run(t, "safetensors", "--model-dir", dir, "--encoder", "text")
	require.NoError(t, err)
	assert.Contains(t, out, "Text encoder: 1 tensors, 16 parameters")
	assert.NotContains(t, out, "Image encoder:")
}

func TestInspectPreview(t *testing.T) {
	dir := modelDir(t, loader.FormatNPZ, 5)

	out, _, err := run(t, "npz", "--model-dir", dir, "--encoder", "image", "--inspect", "--max-display", "3")
	require.NoError(t, err)
	assert.Contains(t, out, "Weight tensors (5 total):")
	assert.Contains(t, out, "  image.layera.weight")
	assert.Contains(t, out, "(4, 4)")
	assert.Contains(t, out, "float32")
	assert.Contains(t, out, "  ... and 2 more tensors")
	assert.NotContains(t, out, "image.layerd.weight")
}

func TestLoadFailures(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, _, err := run(t, "npz", "--model-dir", t.TempDir(), "--encoder", "image")
		require.Error(t, err)
		assert.ErrorIs(t, err, loader.ErrNotFound)
	})

	t.Run("corrupt file", func(t *testing.T) {
		dir := t.TempDir()
		require.NoError(t, os.WriteFile(loader.EncoderPath(dir, loader.EncoderImage, loader.FormatSafeTensors), []byte{1, 2, 3}, 0o644))
		writeFixture(t, dir, loader.FormatSafeTensors, loader.EncoderText, 1)

		out, _, err := run(t, "safetensors", "--model-dir", dir)
		require.Error(t, err)
		assert.ErrorIs(t, err, loader.ErrDecode)
		assert.NotContains(t, out, "Weights loaded successfully!")
	})

	t.Run("wrong format", func(t *testing.T) {
		// safetensors files are not NPZ archives.
		dir := t.TempDir()
		writeFixture(t, dir, loader.FormatSafeTensors, loader.EncoderImage, 1)
		require.NoError(t, os.Rename(
			loader.EncoderPath(dir, loader.EncoderImage, loader.FormatSafeTensors),
			loader.EncoderPath(dir, loader.EncoderImage, loader.FormatNPZ),
		))

		_, _, err := run(t, "npz", "--model-dir", dir, "--encoder", "image")
		assert.ErrorIs(t, err, loader.ErrDecode)
	})

	t.Run("invalid encoder", func(t *testing.T) {
		_, _, err := run(t, "npz", "--encoder", "audio")
		assert.ErrorIs(t, err, loader.ErrInvalidEncoder)
	})

	t.Run("unexpected argument", func(t *testing.T) {
		_, _, err := run(t, "npz", "extra")
		assert.Error(t, err)
	})
}

func TestConfigFileAndFlagPrecedence(t *testing.T) {
	dir := modelDir(t, loader.FormatNPZ, 1)
	cfgPath := filepath.Join(t.TempDir(), "clipweights.yaml")
	require.NoError(t, os.WriteFile(cfgPath, []byte("model_dir: "+dir+"\nencoder: text\n"), 0o644))

	var stdout bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"npz", "--config", cfgPath})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "Text encoder:")
	assert.NotContains(t, stdout.String(), "Image encoder:")

	stdout.Reset()
	cmd = NewRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"npz", "--config", cfgPath, "--encoder", "image"})
	require.NoError(t, cmd.Execute())
	assert.Contains(t, stdout.String(), "Image encoder:")
	assert.NotContains(t, stdout.String(), "Text encoder:")
}

func TestMetricsFile(t *testing.T) {
	dir := modelDir(t, loader.FormatSafeTensors, 1)
	metricsPath := filepath.Join(t.TempDir(), "clipweights.prom")

	_, _, err := run(t, "safetensors", "--model-dir", dir, "--metrics-file", metricsPath)
	require.NoError(t, err)

	data, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "clipweights_bundle_loads_total")
	assert.Contains(t, string(data), `format="safetensors"`)
}

func TestJSONLogsGoToStderr(t *testing.T) {
	dir := modelDir(t, loader.FormatNPZ, 1)

	out, errOut, err := run(t, "npz", "--model-dir", dir, "--log-format", "json")
	require.NoError(t, err)
	assert.Contains(t, errOut, `"message":"loaded weights"`)
	assert.Contains(t, errOut, `"message":"config file not found, using defaults"`)
	assert.NotContains(t, out, `"message"`)
}

func TestVersion(t *testing.T) {
	out, _, err := run(t, "version")
	require.NoError(t, err)
	assert.Equal(t, "clipweights "+Version+"\n", out)
}
