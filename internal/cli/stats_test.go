package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datasetgen/internal/generator"
)

func TestStats_FromManifest(t *testing.T) {
	dest := t.TempDir()
	_, err := execute(t, genCmd(&RootOptions{Format: "json"}),
		"--dest", dest, "--days", "3", "--requests", "40", "--function", "RecencyFocusedDataset")
	require.NoError(t, err)

	out, err := execute(t, NewStatsCommand(&RootOptions{Format: "json"}), "--dest", dest)
	require.NoError(t, err, out)

	var resp struct {
		Status string          `json:"status"`
		Data   generator.Stats `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Equal(t, 3, resp.Data.NumDays)
	assert.Equal(t, 120, resp.Data.TotRequests)
	assert.Equal(t, 120, resp.Data.Size.Count)
	require.Len(t, resp.Data.PerDay, 3)
	assert.True(t, time.Date(2020, 1, 3, 0, 0, 0, 0, time.UTC).Equal(resp.Data.PerDay[2].Date))
	assert.Equal(t, 40, resp.Data.PerDay[2].Requests)
}

func TestStats_ExplicitFilesText(t *testing.T) {
	dest := t.TempDir()
	_, err := execute(t, genCmd(&RootOptions{Format: "json"}),
		"--dest", dest, "--days", "2", "--requests", "1200")
	require.NoError(t, err)

	out, err := execute(t, NewStatsCommand(&RootOptions{Format: "text"}),
		filepath.Join(dest, "dataset_2020-01-02.csv.gz"), "--per-day")
	require.NoError(t, err)
	assert.Contains(t, out, "days:          1\n")
	assert.Contains(t, out, "requests:      1,200\n")
	assert.Contains(t, out, "success rate:  100.00%\n")
	assert.Contains(t, out, "wrap_wc")
	assert.Contains(t, out, "2020-01-02  1200")
}

func TestStats_NoManifest(t *testing.T) {
	out, err := execute(t, NewStatsCommand(&RootOptions{Format: "json"}), "--dest", t.TempDir())
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
	assert.Contains(t, out, ErrCodeNotFound)
}
