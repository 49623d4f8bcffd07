package runner

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tabnet-harvester/internal/config"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/store"
	"tabnet-harvester/internal/tabnet"
)

const northAndSouth = "data.addRows([\n['1 Região Norte', {v: 11}],\n['4 Região Sul', {v: 44}]\n]);"

type fixedTransport struct {
	body string
}

func (fixedTransport) Warmup(context.Context) error { return nil }

func (f fixedTransport) Post(context.Context, string) (string, error) { return f.body, nil }

func testRunner(t *testing.T, st *store.Store) *Runner {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.Fetch.BackoffBase, cfg.Fetch.Jitter = 0, 0
	return &Runner{
		Config: cfg,
		Store:  st,
		NewTransport: func(tabnet.ClientConfig) (tabnet.Transport, error) {
			return fixedTransport{body: northAndSouth}, nil
		},
	}
}

func totalsParams() model.RunParams {
	return model.RunParams{
		Years:       []int{2020},
		Stages:      []model.Stage{model.StageTotals},
		Concurrency: 2,
		Retries:     1,
	}
}

func TestExecute_WithStore(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "harvester.db"))
	require.NoError(t, err)
	defer st.Close()

	require.NoError(t, st.CreateRun("run-1", totalsParams()))
	out := filepath.Join(dir, "total_onco.json")

	outcome, err := testRunner(t, st).Execute(context.Background(), "run-1", totalsParams(), out)
	require.NoError(t, err)
	assert.Equal(t, 6, outcome.Report.Root.LeafCount())
	require.Len(t, outcome.Exports, 2)
	for _, e := range outcome.Exports {
		assert.True(t, e.Success, e.Type)
	}

	run, err := st.GetRun("run-1")
	require.NoError(t, err)
	assert.Equal(t, model.RunCompleted, run.Status)

	stored, err := st.GetRunResult("run-1")
	require.NoError(t, err)
	onDisk, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, onDisk, stored)

	var doc map[string]map[string]map[string]map[string]float64
	require.NoError(t, json.Unmarshal(onDisk, &doc))
	assert.Equal(t, 44.0, doc["2020"]["Sul"]["totais"]["F"])

	stages, err := st.ListStageProgress("run-1")
	require.NoError(t, err)
	require.Len(t, stages, 1)
	assert.Equal(t, 3, stages[0].Stored)
}

func TestExecute_WithoutStore(t *testing.T) {
	out := filepath.Join(t.TempDir(), "total_onco.json")
	outcome, err := testRunner(t, nil).Execute(context.Background(), "run-2", totalsParams(), out)
	require.NoError(t, err)
	require.Len(t, outcome.Exports, 1)
	assert.FileExists(t, out)
}

func TestExecute_UnwritableOutputFailsRun(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	require.NoError(t, os.WriteFile(blocker, nil, 0o644))

	_, err := testRunner(t, nil).Execute(context.Background(), "run-3", totalsParams(), filepath.Join(blocker, "out.json"))
	assert.Error(t, err)
}

func TestExecute_TransportFactoryError(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "harvester.db"))
	require.NoError(t, err)
	defer st.Close()
	require.NoError(t, st.CreateRun("run-4", totalsParams()))

	r := testRunner(t, st)
	r.NewTransport = func(tabnet.ClientConfig) (tabnet.Transport, error) {
		return nil, errors.New("no cookie jar")
	}
	_, err = r.Execute(context.Background(), "run-4", totalsParams(), filepath.Join(dir, "out.json"))
	require.Error(t, err)

	run, err := st.GetRun("run-4")
	require.NoError(t, err)
	assert.Equal(t, model.RunFailed, run.Status)
}
