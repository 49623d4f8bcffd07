// Package config provides configuration for the harvester CLI and run API.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/pipeline"
	"tabnet-harvester/internal/sink"
	"tabnet-harvester/internal/tabnet"
	"tabnet-harvester/pkg/utils"
)

// Year window the service publishes data for.
const (
	DefaultMinYear = 2013
	DefaultMaxYear = 2025
)

// Config holds the configuration of the harvester.
type Config struct {
	// Run selects what is harvested
	Run RunConfig `json:"run" yaml:"run"`

	// Fetch bounds every remote query
	Fetch FetchConfig `json:"fetch" yaml:"fetch"`

	// Merge controls result tree merging
	Merge MergeConfig `json:"merge" yaml:"merge"`

	// Service points at the remote tabulation service
	Service ServiceConfig `json:"service" yaml:"service"`

	// Output configures the JSON document
	Output OutputConfig `json:"output" yaml:"output"`

	// Store configures the sqlite run store
	Store StoreConfig `json:"store" yaml:"store"`

	// Sink configures optional uploads
	Sink SinkConfig `json:"sink" yaml:"sink"`

	// HTTP configures the run API server
	HTTP HTTPConfig `json:"http" yaml:"http"`

	// Log configures zap
	Log LogConfig `json:"log" yaml:"log"`
}

// RunConfig holds the job space of a run.
type RunConfig struct {
	// Years is a year expression: "2020", "2019-2021" or "2018,2020"
	Years string `json:"years" yaml:"years"`

	// MinYear and MaxYear bound the accepted years
	MinYear int `json:"min_year" yaml:"min_year"`
	MaxYear int `json:"max_year" yaml:"max_year"`

	// AgeBands lists age-band labels; empty or "*" selects all
	AgeBands []string `json:"age_bands" yaml:"age_bands"`

	// Diagnoses lists diagnosis codes; empty or "*" selects all
	Diagnoses []string `json:"diagnoses" yaml:"diagnoses"`

	// Stages lists the stages to run; empty selects all
	Stages []string `json:"stages" yaml:"stages"`

	// Concurrency is the number of in-flight queries
	Concurrency int `json:"concurrency" yaml:"concurrency"`

	// ProgressSteps is the number of progress reports per stage
	ProgressSteps int `json:"progress_steps" yaml:"progress_steps"`
}

// FetchConfig holds the retry policy.
type FetchConfig struct {
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`
	Retries     int           `json:"retries" yaml:"retries"`
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"`
	Jitter      time.Duration `json:"jitter" yaml:"jitter"`
}

// MergeConfig holds tree merge options.
type MergeConfig struct {
	// Strict fails on conflicting leaf values instead of last-write-wins
	Strict bool `json:"strict" yaml:"strict"`
}

// ServiceConfig holds the remote endpoints.
type ServiceConfig struct {
	PostURL    string `json:"post_url" yaml:"post_url"`
	SessionURL string `json:"session_url" yaml:"session_url"`
	UserAgent  string `json:"user_agent" yaml:"user_agent"`
}

// OutputConfig holds the output document location.
type OutputConfig struct {
	// Dir holds per-run documents for API runs
	Dir string `json:"dir" yaml:"dir"`

	// File is the document written by `harvester run`
	File string `json:"file" yaml:"file"`
}

// StoreConfig holds the run store configuration.
type StoreConfig struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Path    string `json:"path" yaml:"path"`
}

// SinkConfig holds upload targets.
type SinkConfig struct {
	// S3 uploads the document when Bucket is set
	S3 sink.S3Config `json:"s3" yaml:"s3"`
}

// HTTPConfig holds the API server configuration.
type HTTPConfig struct {
	Addr         string        `json:"addr" yaml:"addr"`
	ReadTimeout  time.Duration `json:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `json:"write_timeout" yaml:"write_timeout"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `json:"level" yaml:"level"`
	Format string `json:"format" yaml:"format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Run: RunConfig{
			Years:         fmt.Sprintf("%d-%d", DefaultMinYear, DefaultMaxYear),
			MinYear:       DefaultMinYear,
			MaxYear:       DefaultMaxYear,
			Concurrency:   24,
			ProgressSteps: 1000,
		},
		Fetch: FetchConfig{
			Timeout:     pipeline.DefaultRetryPolicy.Timeout,
			Retries:     pipeline.DefaultRetryPolicy.Attempts,
			BackoffBase: pipeline.DefaultRetryPolicy.BackoffBase,
			Jitter:      pipeline.DefaultRetryPolicy.Jitter,
		},
		Service: ServiceConfig{
			PostURL:    tabnet.PostURL,
			SessionURL: tabnet.SessionURL,
		},
		Output: OutputConfig{
			Dir:  "./output",
			File: "total_onco.json",
		},
		Store: StoreConfig{
			Enabled: true,
		},
		HTTP: HTTPConfig{
			Addr:         ":8080",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 60 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Resolve fills derived paths.
func (c *Config) Resolve() {
	if c.Output.Dir == "" {
		c.Output.Dir = "./output"
	}
	if c.Store.Path == "" {
		c.Store.Path = filepath.Join(c.Output.Dir, "harvester.db")
	}
	if c.Run.MinYear == 0 {
		c.Run.MinYear = DefaultMinYear
	}
	if c.Run.MaxYear == 0 {
		c.Run.MaxYear = DefaultMaxYear
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.Run.Concurrency < 1 {
		return invalid("run.concurrency must be at least 1, got %d", c.Run.Concurrency)
	}
	if c.Run.ProgressSteps < 1 {
		return invalid("run.progress_steps must be at least 1, got %d", c.Run.ProgressSteps)
	}
	if c.Run.MinYear > c.Run.MaxYear {
		return invalid("run.min_year %d is after run.max_year %d", c.Run.MinYear, c.Run.MaxYear)
	}
	if c.Fetch.Timeout <= 0 {
		return invalid("fetch.timeout must be positive, got %s", c.Fetch.Timeout)
	}
	if c.Fetch.Retries < 1 {
		return invalid("fetch.retries must be at least 1, got %d", c.Fetch.Retries)
	}
	if c.Fetch.BackoffBase < 0 || c.Fetch.Jitter < 0 {
		return invalid("fetch backoff must not be negative")
	}
	if c.Output.File == "" {
		return invalid("output.file is required")
	}
	switch c.Log.Format {
	case "console", "json":
	default:
		return invalid("invalid log format: %s (must be console or json)", c.Log.Format)
	}
	if _, err := c.Params(); err != nil {
		return err
	}
	return nil
}

// Params resolves the run section into validated RunParams.
func (c *Config) Params() (model.RunParams, error) {
	years, err := utils.ParseYears(c.Run.Years)
	if err != nil {
		return model.RunParams{}, harvesterr.Wrap(harvesterr.ErrCategoryConfig, harvesterr.CodeInvalidValue, "run.years", err)
	}

	stages := make([]model.Stage, 0, len(c.Run.Stages))
	for _, s := range c.Run.Stages {
		stages = append(stages, model.Stage(s))
	}

	params := model.RunParams{
		Years:         years,
		AgeBands:      expandAll(c.Run.AgeBands),
		Diagnoses:     expandAll(c.Run.Diagnoses),
		Stages:        stages,
		Concurrency:   c.Run.Concurrency,
		Timeout:       c.Fetch.Timeout,
		Retries:       c.Fetch.Retries,
		ProgressSteps: c.Run.ProgressSteps,
		StrictMerge:   c.Merge.Strict,
		OutputFile:    c.Output.File,
	}
	return NormalizeParams(params, c.Run.MinYear, c.Run.MaxYear)
}

// RetryPolicy returns the fetch policy.
func (c *Config) RetryPolicy() pipeline.RetryPolicy {
	return pipeline.RetryPolicy{
		Attempts:    c.Fetch.Retries,
		Timeout:     c.Fetch.Timeout,
		BackoffBase: c.Fetch.BackoffBase,
		Jitter:      c.Fetch.Jitter,
	}
}

// ClientConfig returns the transport configuration for the given concurrency.
func (c *Config) ClientConfig(concurrency int) tabnet.ClientConfig {
	return tabnet.ClientConfig{
		PostURL:    c.Service.PostURL,
		SessionURL: c.Service.SessionURL,
		MaxConns:   concurrency,
		UserAgent:  c.Service.UserAgent,
	}
}

// NormalizeParams checks run parameters against the code tables and fills
// the defaults for empty selections. Labels are checked here so the pipeline
// never sees an unknown one.
func NormalizeParams(p model.RunParams, minYear, maxYear int) (model.RunParams, error) {
	if len(p.Years) == 0 {
		return p, invalid("at least one year is required")
	}
	for _, y := range p.Years {
		if y < minYear || y > maxYear {
			return p, invalid("year %d outside %d-%d", y, minYear, maxYear)
		}
	}

	if len(p.AgeBands) == 0 {
		p.AgeBands = tabnet.AgeBandLabels()
	}
	for _, band := range p.AgeBands {
		if _, ok := tabnet.AgeBandCode(band); !ok {
			return p, unknownLabel("age band", band)
		}
	}

	if len(p.Diagnoses) == 0 {
		p.Diagnoses = append([]string(nil), tabnet.DiagnosisCodes...)
	} else {
		codes := make([]string, len(p.Diagnoses))
		for i, code := range p.Diagnoses {
			code = strings.ToUpper(strings.TrimSpace(code))
			if !tabnet.IsDiagnosisCode(code) {
				return p, unknownLabel("diagnosis code", code)
			}
			codes[i] = code
		}
		p.Diagnoses = codes
	}

	for _, s := range p.Stages {
		switch s {
		case model.StageTotals, model.StageAgeBands, model.StageDiagnoses:
		default:
			return p, unknownLabel("stage", string(s))
		}
	}

	defaults := DefaultConfig()
	if p.Concurrency == 0 {
		p.Concurrency = defaults.Run.Concurrency
	}
	if p.Timeout == 0 {
		p.Timeout = defaults.Fetch.Timeout
	}
	if p.Retries == 0 {
		p.Retries = defaults.Fetch.Retries
	}
	if p.ProgressSteps == 0 {
		p.ProgressSteps = defaults.Run.ProgressSteps
	}
	if p.OutputFile == "" {
		p.OutputFile = defaults.Output.File
	}
	if p.Concurrency < 0 || p.Retries < 0 || p.ProgressSteps < 0 || p.Timeout < 0 {
		return p, invalid("concurrency, retries, progress_steps and timeout must not be negative")
	}
	return p, nil
}

// expandAll maps nil, [] and ["*"] to nil, which NormalizeParams reads as "all".
func expandAll(labels []string) []string {
	var out []string
	for _, l := range labels {
		if l = strings.TrimSpace(l); l == "*" {
			return nil
		} else if l != "" {
			out = append(out, l)
		}
	}
	return out
}

func invalid(format string, args ...interface{}) error {
	return harvesterr.Newf(harvesterr.ErrCategoryConfig, harvesterr.CodeInvalidValue, format, args...)
}

func unknownLabel(kind, label string) error {
	return harvesterr.Newf(harvesterr.ErrCategoryConfig, harvesterr.CodeUnknownLabel, "unknown %s %q", kind, label)
}

// LoadFromFile loads configuration from a YAML or JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := DefaultConfig()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s", ext)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables.
// Environment variables use the HARVESTER_ prefix.
func LoadFromEnv(cfg *Config) {
	// Run configuration
	if v := os.Getenv("HARVESTER_YEARS"); v != "" {
		cfg.Run.Years = v
	}
	if v := os.Getenv("HARVESTER_AGE_BANDS"); v != "" {
		cfg.Run.AgeBands = utils.SplitList(v)
	}
	if v := os.Getenv("HARVESTER_DIAGNOSES"); v != "" {
		cfg.Run.Diagnoses = utils.SplitList(v)
	}
	if v := os.Getenv("HARVESTER_STAGES"); v != "" {
		cfg.Run.Stages = utils.SplitList(v)
	}
	if v := os.Getenv("HARVESTER_CONCURRENCY"); v != "" {
		setInt(&cfg.Run.Concurrency, v)
	}
	if v := os.Getenv("HARVESTER_PROGRESS_STEPS"); v != "" {
		setInt(&cfg.Run.ProgressSteps, v)
	}

	// Fetch configuration
	if v := os.Getenv("HARVESTER_TIMEOUT"); v != "" {
		cfg.Fetch.Timeout = utils.ParseDuration(v, cfg.Fetch.Timeout)
	}
	if v := os.Getenv("HARVESTER_RETRIES"); v != "" {
		setInt(&cfg.Fetch.Retries, v)
	}
	if v := os.Getenv("HARVESTER_MERGE_STRICT"); v != "" {
		cfg.Merge.Strict = v == "true" || v == "1"
	}

	// Output and store configuration
	if v := os.Getenv("HARVESTER_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("HARVESTER_OUTPUT_FILE"); v != "" {
		cfg.Output.File = v
	}
	if v := os.Getenv("HARVESTER_STORE_PATH"); v != "" {
		cfg.Store.Path = v
	}
	if v := os.Getenv("HARVESTER_STORE_ENABLED"); v != "" {
		cfg.Store.Enabled = v == "true" || v == "1"
	}

	// S3 configuration
	if v := os.Getenv("HARVESTER_S3_BUCKET"); v != "" {
		cfg.Sink.S3.Bucket = v
	}
	if v := os.Getenv("HARVESTER_S3_PREFIX"); v != "" {
		cfg.Sink.S3.Prefix = v
	}
	if v := os.Getenv("HARVESTER_S3_REGION"); v != "" {
		cfg.Sink.S3.Region = v
	}
	if v := os.Getenv("HARVESTER_S3_ENDPOINT"); v != "" {
		cfg.Sink.S3.Endpoint = v
	}

	// Server and logging
	if v := os.Getenv("HARVESTER_HTTP_ADDR"); v != "" {
		cfg.HTTP.Addr = v
	}
	if v := os.Getenv("HARVESTER_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("HARVESTER_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

func setInt(dst *int, v string) {
	if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
		*dst = n
	}
}
