// Package config loads run configurations for the trace generator.
//
// A configuration is read from YAML, JSON or CUE, layered over the built-in
// defaults and finally overridden by DATASETGEN_* environment variables.
// Validate checks it against an embedded CUE schema and against the
// strategy registry before any generation starts.
package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	"gopkg.in/yaml.v3"

	"github.com/roach88/datasetgen/internal/function"
	"github.com/roach88/datasetgen/internal/record"
	"github.com/roach88/datasetgen/internal/remote"
)

//go:embed schema.cue
var schemaCUE string

// DefaultSeed is the master seed used when a configuration sets none.
const DefaultSeed uint64 = 42

// Defaults of the remaining settings.
const (
	DefaultNumDays      = 7
	DefaultNumReqXDay   = 1000
	DefaultStartDate    = "2020-01-01"
	DefaultDestFolder   = "dataset"
	DefaultMaxBufLen    = 100_000
	DefaultFormat       = "csv"
	DefaultPartition    = "day"
	DefaultWorkers      = 1
	DefaultOnDayError   = "abort"
	DefaultSaveAttempts = 3
)

// Partition layouts.
const (
	PartitionDay      = "day"
	PartitionCombined = "combined"
)

// Day error policies.
const (
	OnDayErrorAbort = "abort"
	OnDayErrorSkip  = "skip"
)

// FunctionConfig selects a strategy and its parameters.
type FunctionConfig struct {
	Name   string         `yaml:"function_name" json:"function_name"`
	Kwargs map[string]any `yaml:"kwargs" json:"kwargs"`
}

// Config is a complete run configuration.
type Config struct {
	Function     FunctionConfig `yaml:"function" json:"function"`
	NumDays      int            `yaml:"num_days" json:"num_days"`
	NumReqXDay   int            `yaml:"num_req_x_day" json:"num_req_x_day"`
	ReqXDayDist  string         `yaml:"req_x_day_dist" json:"req_x_day_dist"`
	StartDate    string         `yaml:"start_date" json:"start_date"`
	Seed         uint64         `yaml:"seed" json:"seed"`
	DestFolder   string         `yaml:"dest_folder" json:"dest_folder"`
	MaxBufLen    int            `yaml:"max_buf_len" json:"max_buf_len"`
	Format       string         `yaml:"format" json:"format"`
	Partition    string         `yaml:"partition" json:"partition"`
	Workers      int            `yaml:"workers" json:"workers"`
	OnDayError   string         `yaml:"on_day_error" json:"on_day_error"`
	SaveAttempts int            `yaml:"save_attempts" json:"save_attempts"`
	MetricsAddr  string         `yaml:"metrics_addr" json:"metrics_addr"`
	S3           remote.Config  `yaml:"s3" json:"s3"`
}

// Default returns a configuration holding every default.
func Default() *Config {
	c := &Config{
		NumReqXDay: DefaultNumReqXDay,
		MaxBufLen:  DefaultMaxBufLen,
		Seed:       DefaultSeed,
	}
	c.SetDefaults()
	return c
}

// SetDefaults fills unset fields. Zero request counts, buffer lengths and
// seeds are meaningful and are left alone; Load starts from Default before
// decoding for that reason.
func (c *Config) SetDefaults() {
	if c.Function.Name == "" {
		c.Function.Name = function.NameRandomGenerator
	}
	if c.NumDays == 0 {
		c.NumDays = DefaultNumDays
	}
	if c.ReqXDayDist == "" {
		c.ReqXDayDist = string(function.DistFixed)
	}
	if c.StartDate == "" {
		c.StartDate = DefaultStartDate
	}
	if c.DestFolder == "" {
		c.DestFolder = DefaultDestFolder
	}
	if c.Format == "" {
		c.Format = DefaultFormat
	}
	if c.Partition == "" {
		c.Partition = DefaultPartition
	}
	if c.Workers == 0 {
		c.Workers = DefaultWorkers
	}
	if c.OnDayError == "" {
		c.OnDayError = DefaultOnDayError
	}
	if c.SaveAttempts == 0 {
		c.SaveAttempts = DefaultSaveAttempts
	}
}

// Load reads a configuration file, then applies env overrides.
// An empty path yields the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := decode(cfg, path, data); err != nil {
			return nil, err
		}
	}

	cfg.SetDefaults()
	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Parse decodes a configuration held in memory. ext selects the syntax
// (".yaml", ".yml", ".json" or ".cue").
func Parse(data []byte, ext string) (*Config, error) {
	cfg := Default()
	if err := decode(cfg, "config"+ext, data); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	return cfg, nil
}

func decode(cfg *Config, path string, data []byte) error {
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml", ".json":
		return decodeYAML(cfg, data)
	case ".cue":
		js, err := cueToJSON(path, data)
		if err != nil {
			return err
		}
		return decodeYAML(cfg, js)
	default:
		return fmt.Errorf("parse config: unsupported file type %q", ext)
	}
}

// decodeYAML decodes YAML (or JSON, which is valid YAML) rejecting unknown
// fields.
func decodeYAML(cfg *Config, data []byte) error {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	// An empty document leaves the defaults in place.
	if err := dec.Decode(cfg); err != nil && !errors.Is(err, io.EOF) {
		return fmt.Errorf("parse config: %w", err)
	}
	return nil
}

// cueToJSON evaluates a CUE configuration to concrete JSON.
func cueToJSON(path string, data []byte) ([]byte, error) {
	ctx := cuecontext.New()
	v := ctx.CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if err := v.Validate(cue.Concrete(true)); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	js, err := v.MarshalJSON()
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	return js, nil
}

// Validate checks the configuration against the schema, the strategy
// registry and the cross-field rules.
func (c *Config) Validate() error {
	if err := c.validateSchema(); err != nil {
		return err
	}
	if _, err := c.Start(); err != nil {
		return fmt.Errorf("start_date: %w", err)
	}
	if err := c.RequestCount().Validate(); err != nil {
		return err
	}
	// Building the strategy runs its cross-parameter checks too.
	if _, err := function.Default.Build(c.Function.Name, c.Function.Kwargs, c.RequestCount()); err != nil {
		return err
	}
	return nil
}

func (c *Config) validateSchema() error {
	ctx := cuecontext.New()
	schema := ctx.CompileString(schemaCUE, cue.Filename("schema.cue"))
	if err := schema.Err(); err != nil {
		return fmt.Errorf("compile schema: %w", err)
	}
	def := schema.LookupPath(cue.ParsePath("#Config"))

	// A nil kwargs map encodes as an open value; validate it as empty.
	enc := *c
	if enc.Function.Kwargs == nil {
		enc.Function.Kwargs = map[string]any{}
	}
	v := ctx.Encode(&enc)
	if err := v.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := def.Unify(v).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Start returns the date of day 0.
func (c *Config) Start() (time.Time, error) {
	return time.Parse(record.DateLayout, c.StartDate)
}

// RequestCount returns the per-day request volume.
func (c *Config) RequestCount() function.RequestCount {
	return function.RequestCount{Mean: c.NumReqXDay, Dist: function.Distribution(c.ReqXDayDist)}
}

// YAML renders the configuration as YAML.
func (c *Config) YAML() ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
