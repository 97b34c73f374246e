package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datasetgen/internal/generator"
)

func TestClean_RemovesRecordedFilesOnly(t *testing.T) {
	dest := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dest, "notes.txt"), []byte("mine"), 0o644))

	_, err := execute(t, genCmd(&RootOptions{Format: "json"}),
		"--dest", dest, "--days", "2", "--requests", "10", "--partition", "combined")
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, generator.ManifestName))

	out, err := execute(t, NewCleanCommand(&RootOptions{Format: "text"}), "--dest", dest)
	require.NoError(t, err)
	assert.Equal(t, "Cleaned "+dest+"\n", out)

	entries, err := os.ReadDir(dest)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "notes.txt", entries[0].Name())

	// Cleaning again is a no-op.
	_, err = execute(t, NewCleanCommand(&RootOptions{Format: "text"}), "--dest", dest)
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dest, "notes.txt"))
}

func TestClean_MissingDestination(t *testing.T) {
	dest := filepath.Join(t.TempDir(), "never-created")
	_, err := execute(t, NewCleanCommand(&RootOptions{Format: "text"}), "--dest", dest)
	require.NoError(t, err)
	assert.NoDirExists(t, dest)
}
