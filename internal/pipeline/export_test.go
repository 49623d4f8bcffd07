package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/sink"
)

type brokenSink struct{}

func (brokenSink) Name() string { return "broken" }

func (brokenSink) Write(context.Context, string, []byte) (string, error) {
	return "", errors.New("disk full")
}

func sampleReport(t *testing.T) *Report {
	t.Helper()
	root := NewTree()
	require.NoError(t, root.SetPath([]string{"2020", "Norte", model.TotalsKey}, "ALL", 10))
	require.NoError(t, root.SetPath([]string{"2020", "Norte", model.TotalsKey}, "M", 4.5))

	started := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	return &Report{
		RunID: "run-export",
		Root:  root,
		Errors: []model.ErrorRecord{{
			Job:     "2020-F-ALL-TOT",
			Message: "[TRANSPORT:BAD_STATUS] status 503",
		}},
		Stages:   []model.StageStats{{Stage: model.StageTotals, Jobs: 3, Stored: 2, Failed: 1}},
		Warnings: []string{"merge conflict"},
		Started:  started,
		Finished: started.Add(90 * time.Second),
	}
}

func TestDocument_Indented(t *testing.T) {
	doc, err := Document(sampleReport(t))
	require.NoError(t, err)
	assert.Equal(t, "{\n  \"2020\": {\n    \"Norte\": {\n      \"totais\": {\n        \"ALL\": 10,\n        \"M\": 4.5\n      }\n    }\n  }\n}", string(doc))
}

func TestExport_FileAndFailingSink(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "total_onco.json")
	results := Export(context.Background(), sampleReport(t), sink.FileSink{Path: path}, brokenSink{})
	require.Len(t, results, 2)

	assert.True(t, results[0].Success)
	assert.Equal(t, "file", results[0].Type)
	abs, _ := filepath.Abs(path)
	assert.Equal(t, abs, results[0].Location)

	assert.False(t, results[1].Success)
	assert.Equal(t, "disk full", results[1].Error)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var decoded map[string]map[string]map[string]map[string]float64
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, 4.5, decoded["2020"]["Norte"]["totais"]["M"])
}

func TestRenderReport(t *testing.T) {
	var out strings.Builder
	RenderReport(&out, sampleReport(t), []ExportResult{
		{Type: "file", Location: "/tmp/total_onco.json", Success: true},
		{Type: "s3", Error: "access denied"},
	})

	text := out.String()
	assert.Contains(t, text, "/tmp/total_onco.json")
	assert.Contains(t, text, "access denied")
	assert.Contains(t, text, "90.0s")
	assert.Contains(t, text, "3 jobs")
	assert.Contains(t, text, "merge conflict")
	assert.Contains(t, text, " • 2020-F-ALL-TOT :: [TRANSPORT:BAD_STATUS] status 503")
}
