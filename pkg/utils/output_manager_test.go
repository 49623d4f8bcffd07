package utils

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOutputManager_ResultPath(t *testing.T) {
	base := t.TempDir()
	om := NewOutputManager(base)

	path, err := om.ResultPath("run-1", "../../total_onco.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "run-1", "total_onco.json"), path)

	info, err := os.Stat(filepath.Dir(path))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestOutputManager_ResultPathEscapingRunID(t *testing.T) {
	base := t.TempDir()
	path, err := NewOutputManager(base).ResultPath("../../etc", "out.json")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(base, "etc", "out.json"), path)
}

func TestResultURL(t *testing.T) {
	assert.Equal(t, "/api/v1/runs/run-2/result", ResultURL("run-2"))
}
