package utils

import (
	"fmt"
	"os"
	"path/filepath"
)

// OutputManager lays out result documents of API-started runs, one
// directory per run under BaseOutputDir
type OutputManager struct {
	BaseOutputDir string
}

func NewOutputManager(baseOutputDir string) *OutputManager {
	return &OutputManager{BaseOutputDir: baseOutputDir}
}

// ResultPath returns <base>/<runID>/<fileName> and creates the run directory.
// Both names are reduced to their last element so callers cannot escape base.
func (om *OutputManager) ResultPath(runID, fileName string) (string, error) {
	runDir := filepath.Join(om.BaseOutputDir, filepath.Base(runID))
	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create run output directory: %w", err)
	}
	return filepath.Join(runDir, filepath.Base(fileName)), nil
}

// ResultURL is the API path serving the document a run produced
func ResultURL(runID string) string {
	return fmt.Sprintf("/api/v1/runs/%s/result", runID)
}
