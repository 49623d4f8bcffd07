package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/tabnet"
)

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Resolve()
	require.NoError(t, cfg.Validate())

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.Len(t, params.Years, DefaultMaxYear-DefaultMinYear+1)
	assert.Equal(t, tabnet.AgeBandLabels(), params.AgeBands)
	assert.Equal(t, tabnet.DiagnosisCodes, params.Diagnoses)
	assert.Equal(t, 24, params.Concurrency)
	assert.Equal(t, 45*time.Second, params.Timeout)
	assert.Equal(t, 3, params.Retries)
	assert.Equal(t, 1000, params.ProgressSteps)
	assert.Equal(t, "total_onco.json", params.OutputFile)
	assert.Equal(t, filepath.Join("./output", "harvester.db"), cfg.Store.Path)
}

func TestParams_SelectionAndWildcards(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Run.Years = "2021-2020"
	cfg.Run.AgeBands = []string{"*"}
	cfg.Run.Diagnoses = []string{"c50", " C61 "}
	cfg.Run.Stages = []string{"totals"}

	params, err := cfg.Params()
	require.NoError(t, err)
	assert.Equal(t, []int{2020, 2021}, params.Years)
	assert.Len(t, params.AgeBands, len(tabnet.AgeBands))
	assert.Equal(t, []string{"C50", "C61"}, params.Diagnoses)
	assert.Equal(t, []model.Stage{model.StageTotals}, params.Stages)
	assert.False(t, params.HasStage(model.StageDiagnoses))
}

func TestParams_Rejections(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
		code string
	}{
		{"year outside window", func(c *Config) { c.Run.Years = "2010" }, harvesterr.CodeInvalidValue},
		{"bad year expression", func(c *Config) { c.Run.Years = "soon" }, harvesterr.CodeInvalidValue},
		{"huge year range", func(c *Config) { c.Run.Years = "1-2000000000" }, harvesterr.CodeInvalidValue},
		{"unknown age band", func(c *Config) { c.Run.AgeBands = []string{"200 anos"} }, harvesterr.CodeUnknownLabel},
		{"unknown code", func(c *Config) { c.Run.Diagnoses = []string{"Z99"} }, harvesterr.CodeUnknownLabel},
		{"unknown stage", func(c *Config) { c.Run.Stages = []string{"everything"} }, harvesterr.CodeUnknownLabel},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(cfg)
			_, err := cfg.Params()
			require.Error(t, err)
			assert.Equal(t, harvesterr.ErrCategoryConfig, harvesterr.GetCategory(err))
			assert.Equal(t, tt.code, harvesterr.GetCode(err))
		})
	}
}

func TestNormalizeParams_LeavesInputUntouched(t *testing.T) {
	codes := []string{" c50", "c61 "}
	in := model.RunParams{Years: []int{2020}, Diagnoses: codes}

	out, err := NormalizeParams(in, 2013, 2025)
	require.NoError(t, err)
	assert.Equal(t, []string{"C50", "C61"}, out.Diagnoses)
	assert.Equal(t, []string{" c50", "c61 "}, codes)
	assert.Equal(t, []string{" c50", "c61 "}, in.Diagnoses)

	out.Diagnoses[0] = "C00"
	assert.Equal(t, " c50", codes[0])
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name string
		mod  func(*Config)
	}{
		{"zero concurrency", func(c *Config) { c.Run.Concurrency = 0 }},
		{"zero timeout", func(c *Config) { c.Fetch.Timeout = 0 }},
		{"zero retries", func(c *Config) { c.Fetch.Retries = 0 }},
		{"no output file", func(c *Config) { c.Output.File = "" }},
		{"bad log format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mod(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "harvester.yaml")
	data := `
run:
  years: "2019-2020"
  age_bands: ["40 a 44 anos"]
  concurrency: 8
fetch:
  timeout: 10s
  retries: 5
merge:
  strict: true
sink:
  s3:
    bucket: onco-results
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2019-2020", cfg.Run.Years)
	assert.Equal(t, 8, cfg.Run.Concurrency)
	assert.Equal(t, 10*time.Second, cfg.Fetch.Timeout)
	assert.Equal(t, 5, cfg.Fetch.Retries)
	assert.True(t, cfg.Merge.Strict)
	assert.Equal(t, "onco-results", cfg.Sink.S3.Bucket)
	// untouched keys keep defaults
	assert.Equal(t, 1000, cfg.Run.ProgressSteps)

	policy := cfg.RetryPolicy()
	assert.Equal(t, 5, policy.Attempts)
	assert.Equal(t, 10*time.Second, policy.Timeout)
}

func TestLoadFromFile_JSONAndUnsupported(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "harvester.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run":{"years":"2022","concurrency":2}}`), 0o644))

	cfg, err := LoadFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "2022", cfg.Run.Years)
	assert.Equal(t, 2, cfg.Run.Concurrency)

	bad := filepath.Join(dir, "harvester.toml")
	require.NoError(t, os.WriteFile(bad, []byte(""), 0o644))
	_, err = LoadFromFile(bad)
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("HARVESTER_YEARS", "2024")
	t.Setenv("HARVESTER_DIAGNOSES", "C50,C61")
	t.Setenv("HARVESTER_CONCURRENCY", "4")
	t.Setenv("HARVESTER_TIMEOUT", "5s")
	t.Setenv("HARVESTER_MERGE_STRICT", "1")
	t.Setenv("HARVESTER_S3_BUCKET", "bucket")

	cfg := DefaultConfig()
	LoadFromEnv(cfg)
	assert.Equal(t, "2024", cfg.Run.Years)
	assert.Equal(t, []string{"C50", "C61"}, cfg.Run.Diagnoses)
	assert.Equal(t, 4, cfg.Run.Concurrency)
	assert.Equal(t, 5*time.Second, cfg.Fetch.Timeout)
	assert.True(t, cfg.Merge.Strict)
	assert.Equal(t, "bucket", cfg.Sink.S3.Bucket)
}

func TestNormalizeParams_FillsDefaults(t *testing.T) {
	params, err := NormalizeParams(model.RunParams{Years: []int{2020}}, DefaultMinYear, DefaultMaxYear)
	require.NoError(t, err)
	assert.Equal(t, 24, params.Concurrency)
	assert.Equal(t, 3, params.Retries)
	assert.Equal(t, "total_onco.json", params.OutputFile)
	assert.NotEmpty(t, params.AgeBands)

	_, err = NormalizeParams(model.RunParams{}, DefaultMinYear, DefaultMaxYear)
	assert.Error(t, err)
}
