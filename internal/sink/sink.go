// Package sink delivers the final result document to its destinations.
package sink

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	harvesterr "tabnet-harvester/internal/errors"
)

// Sink receives the rendered document of one run
type Sink interface {
	// Name identifies the sink in reports ("file", "store", "s3")
	Name() string

	// Write delivers doc and returns where it ended up
	Write(ctx context.Context, runID string, doc []byte) (string, error)
}

// FileSink writes the document to a local file
type FileSink struct {
	Path string
}

// Name implements Sink
func (FileSink) Name() string { return "file" }

// Write implements Sink. The file is replaced atomically so a reader never
// sees a half-written document.
func (f FileSink) Write(ctx context.Context, runID string, doc []byte) (string, error) {
	dir := filepath.Dir(f.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", harvesterr.Wrap(harvesterr.ErrCategorySink, harvesterr.CodeWriteFailed, "create directory", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(f.Path)+".*")
	if err != nil {
		return "", harvesterr.Wrap(harvesterr.ErrCategorySink, harvesterr.CodeWriteFailed, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(doc); err != nil {
		tmp.Close()
		return "", harvesterr.Wrap(harvesterr.ErrCategorySink, harvesterr.CodeWriteFailed, "write document", err)
	}
	if err := tmp.Close(); err != nil {
		return "", harvesterr.Wrap(harvesterr.ErrCategorySink, harvesterr.CodeWriteFailed, "close document", err)
	}
	if err := os.Rename(tmp.Name(), f.Path); err != nil {
		return "", harvesterr.Wrap(harvesterr.ErrCategorySink, harvesterr.CodeWriteFailed, "rename document", err)
	}

	abs, err := filepath.Abs(f.Path)
	if err != nil {
		return f.Path, nil
	}
	return abs, nil
}

// ResultSaver is implemented by the run store
type ResultSaver interface {
	SaveRunResult(runID string, doc []byte) error
}

// StoreSink keeps the document alongside the run's tracking rows
type StoreSink struct {
	Store ResultSaver
}

// Name implements Sink
func (StoreSink) Name() string { return "store" }

// Write implements Sink
func (s StoreSink) Write(ctx context.Context, runID string, doc []byte) (string, error) {
	if err := s.Store.SaveRunResult(runID, doc); err != nil {
		return "", err
	}
	return fmt.Sprintf("run_results/%s", runID), nil
}
