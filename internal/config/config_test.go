package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/datasetgen/internal/function"
)

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	c := Default()
	assert.Equal(t, DefaultSeed, c.Seed)
	assert.Equal(t, uint64(42), c.Seed)
	assert.Equal(t, function.NameRandomGenerator, c.Function.Name)
	assert.Equal(t, 7, c.NumDays)
	assert.Equal(t, 1000, c.NumReqXDay)
	assert.Equal(t, "dataset", c.DestFolder)
	assert.Equal(t, "csv", c.Format)
	assert.Equal(t, "day", c.Partition)
	assert.Equal(t, "abort", c.OnDayError)
	require.NoError(t, c.Validate())
}

func TestLoad_EmptyPath(t *testing.T) {
	c, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_YAML(t *testing.T) {
	path := writeConfig(t, "run.yaml", `
function:
  function_name: HighFrequencyDataset
  kwargs:
    num_files: 500
    perc_more_req_files: 0.7
num_days: 3
num_req_x_day: 250
req_x_day_dist: poisson
seed: 7
workers: 4
`)
	c, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, function.NameHighFrequencyDataset, c.Function.Name)
	assert.Equal(t, 500, c.Function.Kwargs["num_files"])
	assert.Equal(t, 0.7, c.Function.Kwargs["perc_more_req_files"])
	assert.Equal(t, 3, c.NumDays)
	assert.Equal(t, 250, c.NumReqXDay)
	assert.Equal(t, function.Poisson(250), c.RequestCount())
	assert.Equal(t, uint64(7), c.Seed)
	assert.Equal(t, 4, c.Workers)
	// Unset fields keep their defaults.
	assert.Equal(t, DefaultStartDate, c.StartDate)
	require.NoError(t, c.Validate())
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "run.json", `{
		"function": {"function_name": "SizeFocusedDataset", "kwargs": {"perc_noise": 0.2}},
		"num_days": 2,
		"format": "sqlite",
		"partition": "combined"
	}`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, function.NameSizeFocusedDataset, c.Function.Name)
	assert.Equal(t, "sqlite", c.Format)
	assert.Equal(t, PartitionCombined, c.Partition)
	require.NoError(t, c.Validate())
}

func TestLoad_CUE(t *testing.T) {
	path := writeConfig(t, "run.cue", `
function: {
	function_name: "RecencyFocusedDataset"
	kwargs: recency_decay: 0.25
}
num_days:      2 * 5
num_req_x_day: 10
`)
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, function.NameRecencyFocusedDataset, c.Function.Name)
	assert.Equal(t, 10, c.NumDays)
	assert.Equal(t, 0.25, c.Function.Kwargs["recency_decay"])
	require.NoError(t, c.Validate())
}

func TestLoad_ExplicitZeroKept(t *testing.T) {
	path := writeConfig(t, "run.yaml", "num_req_x_day: 0\nseed: 0\nmax_buf_len: 0\n")
	c, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0, c.NumReqXDay)
	assert.Equal(t, uint64(0), c.Seed)
	assert.Equal(t, 0, c.MaxBufLen)
	require.NoError(t, c.Validate())
}

func TestLoad_EmptyFile(t *testing.T) {
	c, err := Load(writeConfig(t, "run.yaml", ""))
	require.NoError(t, err)
	assert.Equal(t, Default(), c)
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name string
		file string
		body string
	}{
		{"unknown field", "run.yaml", "num_dayz: 3\n"},
		{"bad yaml", "run.yaml", "num_days: [\n"},
		{"unsupported ext", "run.toml", "num_days = 3\n"},
		{"incomplete cue", "run.cue", "num_days: int\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.file, tt.body))
			assert.Error(t, err)
		})
	}

	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("DATASETGEN_FUNCTION", function.NameSizeFocusedDataset)
	t.Setenv("DATASETGEN_NUM_DAYS", "5")
	t.Setenv("DATASETGEN_SEED", "18446744073709551615")
	t.Setenv("DATASETGEN_DEST_FOLDER", "/tmp/out")
	t.Setenv("DATASETGEN_S3_BUCKET", "traces")
	t.Setenv("DATASETGEN_S3_PATH_STYLE", "true")

	c, err := Load(writeConfig(t, "run.yaml", "num_days: 3\n"))
	require.NoError(t, err)
	assert.Equal(t, function.NameSizeFocusedDataset, c.Function.Name)
	assert.Equal(t, 5, c.NumDays)
	assert.Equal(t, uint64(18446744073709551615), c.Seed)
	assert.Equal(t, "/tmp/out", c.DestFolder)
	assert.True(t, c.S3.Enabled())
	assert.True(t, c.S3.PathStyle)
	require.NoError(t, c.Validate())
}

func TestLoad_EnvOverrideMalformed(t *testing.T) {
	for _, kv := range [][2]string{
		{"DATASETGEN_WORKERS", "many"},
		{"DATASETGEN_SEED", "-1"},
		{"DATASETGEN_S3_PATH_STYLE", "perhaps"},
	} {
		t.Run(kv[0], func(t *testing.T) {
			t.Setenv(kv[0], kv[1])
			_, err := Load("")
			assert.ErrorContains(t, err, kv[0])
		})
	}
}

func TestValidate_KwargsOptional(t *testing.T) {
	c, err := Parse([]byte("function:\n  function_name: RandomGenerator\nnum_days: 3\n"), ".yaml")
	require.NoError(t, err)
	assert.Nil(t, c.Function.Kwargs)
	require.NoError(t, c.Validate())
	assert.Nil(t, c.Function.Kwargs)

	for _, kwargs := range []map[string]any{nil, {}, {"num_files": 10}} {
		c := Default()
		c.Function.Kwargs = kwargs
		assert.NoError(t, c.Validate(), "kwargs %v", kwargs)
	}
}

func TestValidate_Errors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"zero days", func(c *Config) { c.NumDays = 0 }},
		{"negative requests", func(c *Config) { c.NumReqXDay = -1 }},
		{"bad dist", func(c *Config) { c.ReqXDayDist = "zipf" }},
		{"bad date format", func(c *Config) { c.StartDate = "01/02/2020" }},
		{"impossible date", func(c *Config) { c.StartDate = "2020-02-31" }},
		{"bad format", func(c *Config) { c.Format = "parquet" }},
		{"bad partition", func(c *Config) { c.Partition = "hour" }},
		{"too many workers", func(c *Config) { c.Workers = 1000 }},
		{"bad policy", func(c *Config) { c.OnDayError = "ignore" }},
		{"zero save attempts", func(c *Config) { c.SaveAttempts = 0 }},
		{"empty dest", func(c *Config) { c.DestFolder = "" }},
		{"unknown function", func(c *Config) { c.Function.Name = "NoSuchDataset" }},
		{"unknown kwarg", func(c *Config) { c.Function.Kwargs = map[string]any{"bogus": 1} }},
		{"fraction out of range", func(c *Config) {
			c.Function.Name = function.NameSizeFocusedDataset
			c.Function.Kwargs = map[string]any{"perc_noise": 1.5}
		}},
		{"min above max", func(c *Config) {
			c.Function.Kwargs = map[string]any{"min_file_size": 10, "max_file_size": 5}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			assert.Error(t, c.Validate())
		})
	}
}

func TestYAML_RoundTrip(t *testing.T) {
	c := Default()
	c.Function.Kwargs = map[string]any{"num_files": 10}
	data, err := c.YAML()
	require.NoError(t, err)

	back, err := Parse(data, ".yaml")
	require.NoError(t, err)
	assert.Equal(t, c, back)
}
