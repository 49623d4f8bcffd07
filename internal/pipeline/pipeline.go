package pipeline

import (
	"context"
	"time"

	"go.uber.org/zap"

	"tabnet-harvester/internal/metrics"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/tabnet"
)

// Harvester runs the three stages of one harvest and merges their trees
type Harvester struct {
	RunID     string
	Params    model.RunParams
	Transport tabnet.Transport
	Fetch     FetchFunc
	Errors    *ErrorLog
	Tracker   *Tracker
	Reporter  Reporter
}

// Report is everything a run produced
type Report struct {
	RunID    string              `json:"run_id"`
	Root     *Tree               `json:"result"`
	Errors   []model.ErrorRecord `json:"errors"`
	Stages   []model.StageStats  `json:"stages"`
	Warnings []string            `json:"warnings,omitempty"`
	Started  time.Time           `json:"started"`
	Finished time.Time           `json:"finished"`
}

// Duration is the wall time of the run
func (r *Report) Duration() time.Duration {
	return r.Finished.Sub(r.Started)
}

// Options wires a Harvester to its collaborators
type Options struct {
	RunID     string
	Params    model.RunParams
	Transport tabnet.Transport
	Encoder   tabnet.Encoder
	Policy    RetryPolicy
	Errors    ErrorSink // may be nil
	Stages    StageSink // may be nil
	Reporter  Reporter  // may be nil
}

// New builds a Harvester whose fetches go through a Fetcher with opts.Policy
func New(opts Options) *Harvester {
	errs := NewErrorLog(opts.RunID, opts.Errors)
	encoder := opts.Encoder
	if encoder == nil {
		encoder = tabnet.FormEncoder{}
	}
	fetcher := NewFetcher(opts.Transport, encoder, PolicyFor(opts.Params, opts.Policy), errs)

	reporter := opts.Reporter
	if reporter == nil {
		reporter = nopReporter{}
	}
	return &Harvester{
		RunID:     opts.RunID,
		Params:    opts.Params,
		Transport: opts.Transport,
		Fetch:     fetcher.Fetch,
		Errors:    errs,
		Tracker:   NewTracker(opts.RunID, opts.Stages),
		Reporter:  reporter,
	}
}

// PolicyFor applies the run's retry budget and timeout to base. A zero base
// means DefaultRetryPolicy.
func PolicyFor(p model.RunParams, base RetryPolicy) RetryPolicy {
	if base == (RetryPolicy{}) {
		base = DefaultRetryPolicy
	}
	if p.Retries > 0 {
		base.Attempts = p.Retries
	}
	if p.Timeout > 0 {
		base.Timeout = p.Timeout
	}
	return base
}

// Run executes the selected stages strictly in order. Job failures never stop
// the run; they end up in the report's error list. Run only returns an error
// when ctx is cancelled, and even then the report holds what was aggregated.
func (h *Harvester) Run(ctx context.Context) (*Report, error) {
	metrics.RunsActive.Inc()
	defer metrics.RunsActive.Dec()

	report := &Report{RunID: h.RunID, Root: NewTree(), Started: time.Now().UTC()}
	log := zap.L().With(zap.String("run_id", h.RunID))
	log.Info("pipeline: starting harvest",
		zap.Ints("years", h.Params.Years),
		zap.Int("age_bands", len(h.Params.AgeBands)),
		zap.Int("diagnoses", len(h.Params.Diagnoses)),
		zap.Int("concurrency", h.Params.Concurrency))

	if h.Transport != nil {
		if err := h.Transport.Warmup(ctx); err != nil {
			log.Warn("pipeline: session warm-up failed, continuing", zap.Error(err))
		}
	}

	var selected []model.Stage
	for _, stage := range model.Stages {
		if h.Params.HasStage(stage) {
			selected = append(selected, stage)
		}
	}

	scheduler := &Scheduler{Limit: h.Params.Concurrency, Errors: h.Errors}
	var runErr error
	for i, stage := range selected {
		if err := ctx.Err(); err != nil {
			runErr = err
			break
		}

		tree, stats := h.runStage(ctx, scheduler, i+1, len(selected), stage)
		if _, err := MergeInto(report.Root, tree, MergeOptions{Strict: h.Params.StrictMerge}); err != nil {
			log.Error("pipeline: merge reported conflicts", zap.String("stage", string(stage)), zap.Error(err))
			report.Warnings = append(report.Warnings, err.Error())
		}
		log.Info("pipeline: stage complete",
			zap.String("stage", string(stage)),
			zap.Int("jobs", stats.Jobs),
			zap.Int("stored", stats.Stored),
			zap.Int("empty", stats.Empty),
			zap.Int("failed", stats.Failed))
	}
	if runErr == nil {
		runErr = ctx.Err()
	}

	report.Finished = time.Now().UTC()
	report.Errors = h.Errors.Records()
	report.Stages = h.Tracker.Stages()

	log.Info("pipeline: harvest finished",
		zap.Duration("elapsed", report.Duration()),
		zap.Int("leaves", report.Root.LeafCount()),
		zap.Int("errors", len(report.Errors)))
	return report, runErr
}

// runStage fans the stage's jobs out through the scheduler into a private tree
func (h *Harvester) runStage(ctx context.Context, scheduler *Scheduler, index, count int, stage model.Stage) (*Tree, model.StageStats) {
	jobs := GenerateJobs(stage, h.Params)
	h.Tracker.StartStage(stage, len(jobs))
	h.Reporter.StageStarted(index, count, stage, len(jobs))

	tree := NewTree()
	progress := NewProgress(len(jobs), h.Params.ProgressSteps, func(done, total int) {
		h.Reporter.Progress(stage, done, total)
	})
	zap.L().Debug("pipeline: stage started",
		zap.String("run_id", h.RunID),
		zap.String("stage", string(stage)),
		zap.Int("jobs", len(jobs)),
		zap.Int("report_every", progress.Step()))

	stats := scheduler.RunJobs(ctx, jobs, h.Fetch, treeStore(tree), progress.Done)
	stats.Stage = stage
	h.Tracker.EndStage(stats)

	for _, s := range h.Tracker.Stages() {
		if s.Stage == stage {
			stats = s
		}
	}
	h.Reporter.StageFinished(stats)
	return tree, stats
}
