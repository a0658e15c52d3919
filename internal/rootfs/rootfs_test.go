package rootfs

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeLayer struct{ gz []byte }

func (f fakeLayer) Compressed() (io.ReadCloser, error) {
	return io.NopCloser(bytes.NewReader(f.gz)), nil
}

func gzippedTar(t *testing.T, entries map[string]string) []byte {
	t.Helper()
	var tarBuf bytes.Buffer
	tw := tar.NewWriter(&tarBuf)
	for name, content := range entries {
		require.NoError(t, tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content))}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	var gzBuf bytes.Buffer
	gw := gzip.NewWriter(&gzBuf)
	_, err := gw.Write(tarBuf.Bytes())
	require.NoError(t, err)
	require.NoError(t, gw.Close())
	return gzBuf.Bytes()
}

func TestExtractLayerUnpacksGzippedTar(t *testing.T) {
	dest := t.TempDir()
	layer := fakeLayer{gz: gzippedTar(t, map[string]string{"etc/hostname": "box\n"})}

	require.NoError(t, extractLayer(layer, dest))

	got, err := os.ReadFile(filepath.Join(dest, "etc", "hostname"))
	require.NoError(t, err)
	assert.Equal(t, "box\n", string(got))
}

func TestSetupRejectsMissingImage(t *testing.T) {
	m := New(t.TempDir())
	_, err := m.Setup("c1", []byte(`{}`))
	assert.Error(t, err)
}

func TestSetupRejectsMalformedSpec(t *testing.T) {
	m := New(t.TempDir())
	_, err := m.Setup("c1", []byte(`not json`))
	assert.Error(t, err)
}

func TestCleanupIsNoopOnEmptyPath(t *testing.T) {
	m := New(t.TempDir())
	assert.NoError(t, m.Cleanup("c1", ""))
}

func TestCleanupRemovesDirectory(t *testing.T) {
	base := t.TempDir()
	root := filepath.Join(base, "c1")
	require.NoError(t, os.MkdirAll(root, 0755))

	m := New(base)
	require.NoError(t, m.Cleanup("c1", root))
	_, err := os.Stat(root)
	assert.True(t, os.IsNotExist(err))
}
