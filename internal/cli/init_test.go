package cli

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datasetgen/internal/config"
)

func TestInit_WritesLoadableDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")

	out, err := execute(t, NewInitCommand(&RootOptions{Format: "text"}), path)
	require.NoError(t, err)
	assert.Equal(t, "Wrote "+path+"\n", out)

	cfg, err := config.Load(path)
	require.NoError(t, err)
	def := config.Default()
	assert.Equal(t, def.Function.Name, cfg.Function.Name)
	assert.Empty(t, cfg.Function.Kwargs)
	assert.Equal(t, def.NumReqXDay, cfg.NumReqXDay)
	assert.Equal(t, def.Seed, cfg.Seed)
	assert.Equal(t, def.StartDate, cfg.StartDate)
	assert.Equal(t, def.MaxBufLen, cfg.MaxBufLen)
	assert.Equal(t, def.S3, cfg.S3)
	require.NoError(t, cfg.Validate())
}

func TestInit_RefusesOverwrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	require.NoError(t, os.WriteFile(path, []byte("num_days: 3\n"), 0o644))

	out, err := execute(t, NewInitCommand(&RootOptions{Format: "text"}), path)
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, "Error [E007]")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "num_days: 3\n", string(data))

	_, err = execute(t, NewInitCommand(&RootOptions{Format: "text"}), path, "--force")
	require.NoError(t, err)
	cfg, err := config.Load(path)
	require.NoError(t, err)
	assert.Equal(t, config.DefaultNumDays, cfg.NumDays)
}
