package config

import (
	"io"
	"log"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitialize(t *testing.T) {
	tempDir := t.TempDir()
	cfg, err := Initialize(tempDir, log.New(io.Discard, "", 0))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, tempDir, cfg.Dir())

	// Check that the config is valid
	loaded, err := Load(filepath.Join(tempDir, ConfigurationName))
	if err != nil {
		t.Fatal(err)
	}
	assert.Equal(t, cfg, loaded)

	t.Run("OpenAppLog", func(t *testing.T) {
		fd, err := cfg.OpenAppLog()
		assert.Nil(t, err)
		fd.Close()
	})

	t.Run("OpenEventLog", func(t *testing.T) {
		fd, err := cfg.OpenEventLog()
		require.Nil(t, err)
		_, err = fd.WriteString("{}\n")
		assert.Nil(t, err)
		fd.Close()

		fd, err = cfg.ReadEventLog()
		require.Nil(t, err)
		defer fd.Close()
		data, err := io.ReadAll(fd)
		assert.Nil(t, err)
		assert.Equal(t, "{}\n", string(data))
	})

	t.Run("OpenTranscript", func(t *testing.T) {
		fd, err := cfg.OpenTranscript("one.cast")
		require.NoError(t, err)
		fd.Close()
		assert.FileExists(t, cfg.TranscriptPath("one.cast"))

		_, err = cfg.OpenTranscript("one.cast")
		assert.ErrorIs(t, err, os.ErrExist, "recordings are never overwritten")
	})

	t.Run("keeps existing", func(t *testing.T) {
		path := filepath.Join(tempDir, ConfigurationName)
		require.NoError(t, os.WriteFile(path, []byte("shell_name: custom\n"), 0600))

		cfg, err := Initialize(tempDir, log.New(io.Discard, "", 0))
		require.NoError(t, err)
		assert.Equal(t, "custom", cfg.ShellName)
	})
}

func TestLoad_invalid(t *testing.T) {
	tempDir := t.TempDir()
	path := filepath.Join(tempDir, ConfigurationName)

	require.NoError(t, os.WriteFile(path, []byte("shell_name: x\nunknown_field: 1\n"), 0600))
	_, err := Load(tempDir)
	assert.Error(t, err, "unknown fields are rejected")

	require.NoError(t, os.WriteFile(path, []byte("shell_name: x\ncolor: purple\n"), 0600))
	_, err = Load(tempDir)
	assert.ErrorContains(t, err, "color")

	_, err = Load(t.TempDir())
	assert.ErrorIs(t, err, os.ErrNotExist)
}
