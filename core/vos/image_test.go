package vos

import (
	"archive/tar"
	"bytes"
	"io"
	"os"
	"path/filepath"
	"sort"
	"testing"

	containerregistry "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/empty"
	"github.com/google/go-containerregistry/pkg/v1/mutate"
	"github.com/google/go-containerregistry/pkg/v1/tarball"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tarLayer(t *testing.T, files map[string]string) containerregistry.Layer {
	t.Helper()

	var names []string
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)
	for _, name := range names {
		content := files[name]
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())

	data := buf.Bytes()
	layer, err := tarball.LayerFromOpener(func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(data)), nil
	})
	require.NoError(t, err)
	return layer
}

func TestWriteImage(t *testing.T) {
	img, err := mutate.AppendLayers(empty.Image,
		tarLayer(t, map[string]string{
			"etc/motd": "welcome\n",
			"tmp/old":  "stale\n",
		}),
		tarLayer(t, map[string]string{
			"tmp/.wh.old": "",
			"home/readme": "hi\n",
		}),
	)
	require.NoError(t, err)

	imagePath := filepath.Join(t.TempDir(), "root.tar.gz")
	out, err := os.Create(imagePath)
	require.NoError(t, err)
	require.NoError(t, WriteImage(img, out))
	require.NoError(t, out.Close())

	vfs, err := NewFs(FsOptions{Kind: FsMemory, Image: imagePath})
	require.NoError(t, err)

	motd, err := afero.ReadFile(vfs, "/etc/motd")
	require.NoError(t, err)
	assert.Equal(t, "welcome\n", string(motd))

	readme, err := afero.ReadFile(vfs, "/home/readme")
	require.NoError(t, err)
	assert.Equal(t, "hi\n", string(readme))

	_, err = vfs.Stat("/tmp/old")
	assert.ErrorIs(t, err, os.ErrNotExist, "whiteouts remove files of lower layers")
	_, err = vfs.Stat("/tmp/.wh.old")
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLoadSavedImage_missing(t *testing.T) {
	_, err := LoadSavedImage(filepath.Join(t.TempDir(), "none.tar"), "")
	assert.ErrorIs(t, err, os.ErrNotExist)

	_, err = LoadSavedImage(filepath.Join(t.TempDir(), "none.tar"), "Not A Tag")
	assert.Error(t, err)
}
