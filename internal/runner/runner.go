// Package runner executes one harvest end to end: it builds the transport,
// runs the stages, exports the document and keeps the run's status current.
package runner

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"tabnet-harvester/internal/config"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/pipeline"
	"tabnet-harvester/internal/sink"
	"tabnet-harvester/internal/store"
	"tabnet-harvester/internal/tabnet"
)

// TransportFactory builds the remote transport for a run
type TransportFactory func(cfg tabnet.ClientConfig) (tabnet.Transport, error)

// HTTPTransportFactory is the production TransportFactory
func HTTPTransportFactory(cfg tabnet.ClientConfig) (tabnet.Transport, error) {
	t, err := tabnet.NewHTTPTransport(cfg)
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Runner wires configuration, store and sinks around a Harvester
type Runner struct {
	Config       *config.Config
	Store        *store.Store // may be nil
	Sinks        []sink.Sink  // extra sinks, e.g. S3
	NewTransport TransportFactory
	Reporter     pipeline.Reporter // may be nil
}

// New creates a Runner using the HTTP transport. An S3 sink is added when
// the configuration names a bucket.
func New(ctx context.Context, cfg *config.Config, st *store.Store) (*Runner, error) {
	r := &Runner{
		Config:       cfg,
		Store:        st,
		NewTransport: HTTPTransportFactory,
	}
	if cfg.Sink.S3.Bucket != "" {
		s3Sink, err := sink.NewS3Sink(ctx, cfg.Sink.S3)
		if err != nil {
			return nil, err
		}
		r.Sinks = append(r.Sinks, s3Sink)
	}
	return r, nil
}

// Outcome is what Execute hands back to its caller
type Outcome struct {
	Report  *pipeline.Report
	Exports []pipeline.ExportResult
}

// Execute runs the harvest for runID and writes the document to outputPath.
// The run must already exist in the store when one is configured.
func (r *Runner) Execute(ctx context.Context, runID string, params model.RunParams, outputPath string) (*Outcome, error) {
	log := zap.L().With(zap.String("run_id", runID))
	r.setStatus(runID, model.RunRunning)

	transport, err := r.NewTransport(r.Config.ClientConfig(params.Concurrency))
	if err != nil {
		r.setStatus(runID, model.RunFailed)
		return nil, err
	}

	opts := pipeline.Options{
		RunID:     runID,
		Params:    params,
		Transport: transport,
		Policy:    r.Config.RetryPolicy(),
		Reporter:  r.Reporter,
	}
	// A nil *store.Store must not end up inside the interfaces.
	if r.Store != nil {
		opts.Errors = r.Store
		opts.Stages = r.Store
	}

	report, runErr := pipeline.New(opts).Run(ctx)

	sinks := []sink.Sink{sink.FileSink{Path: outputPath}}
	if r.Store != nil {
		sinks = append(sinks, sink.StoreSink{Store: r.Store})
	}
	sinks = append(sinks, r.Sinks...)

	// Export what was aggregated even after cancellation.
	exports := pipeline.Export(context.WithoutCancel(ctx), report, sinks...)

	status := model.RunCompleted
	if runErr != nil || !fileExported(exports) {
		status = model.RunFailed
	}
	r.setStatus(runID, status)
	log.Info("runner: run finished", zap.String("status", status))

	if runErr == nil && status == model.RunFailed {
		runErr = errors.New("document could not be written to " + outputPath)
	}
	return &Outcome{Report: report, Exports: exports}, runErr
}

func (r *Runner) setStatus(runID, status string) {
	if r.Store == nil {
		return
	}
	if err := r.Store.UpdateRunStatus(runID, status); err != nil {
		zap.L().Warn("runner: failed to update run status", zap.String("run_id", runID), zap.Error(err))
	}
}

func fileExported(exports []pipeline.ExportResult) bool {
	for _, e := range exports {
		if e.Type == "file" {
			return e.Success
		}
	}
	return false
}
