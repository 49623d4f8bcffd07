package pipeline

import (
	"sync"
	"time"

	"go.uber.org/zap"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/model"
)

// ErrorSink receives every error record as it is appended, e.g. the run store
type ErrorSink interface {
	SaveRunError(runID string, rec model.ErrorRecord) error
}

// ErrorLog is the process-wide, append-only list of failed jobs.
// The lock is held only for the append itself.
type ErrorLog struct {
	mu      sync.RWMutex
	records []model.ErrorRecord

	runID string
	sink  ErrorSink
}

// NewErrorLog creates an empty log. sink may be nil.
func NewErrorLog(runID string, sink ErrorSink) *ErrorLog {
	return &ErrorLog{
		records: make([]model.ErrorRecord, 0),
		runID:   runID,
		sink:    sink,
	}
}

// Add appends one record for job
func (l *ErrorLog) Add(job model.Job, err error, attempts int) {
	if err == nil {
		return
	}

	category := string(harvesterr.GetCategory(err))
	if category == "" {
		category = string(harvesterr.ErrCategoryInternal)
	}
	rec := model.ErrorRecord{
		Job:       job.String(),
		Stage:     job.Stage(),
		Category:  category,
		Message:   err.Error(),
		Attempts:  attempts,
		Timestamp: time.Now().UTC(),
	}

	l.mu.Lock()
	l.records = append(l.records, rec)
	l.mu.Unlock()

	zap.L().Warn("pipeline: job failed",
		zap.String("job", rec.Job),
		zap.String("category", rec.Category),
		zap.Int("attempts", attempts),
		zap.Error(err))

	if l.sink != nil {
		if serr := l.sink.SaveRunError(l.runID, rec); serr != nil {
			zap.L().Warn("pipeline: failed to persist error record", zap.Error(serr))
		}
	}
}

// Len returns the number of records
func (l *ErrorLog) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// Records returns a copy of every record in append order
func (l *ErrorLog) Records() []model.ErrorRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make([]model.ErrorRecord, len(l.records))
	copy(out, l.records)
	return out
}

// StageSink persists stage transitions, e.g. the run store
type StageSink interface {
	UpdateRunStatus(runID, status string) error
	SaveStageProgress(runID string, stats model.StageStats, status string) error
}

// Tracker records per-stage statistics for one run
type Tracker struct {
	mu     sync.RWMutex
	runID  string
	sink   StageSink
	stages []model.StageStats
}

// NewTracker creates a tracker. sink may be nil.
func NewTracker(runID string, sink StageSink) *Tracker {
	return &Tracker{runID: runID, sink: sink}
}

// StartStage marks stage as running with the given job count
func (t *Tracker) StartStage(stage model.Stage, jobs int) {
	stats := model.StageStats{Stage: stage, Jobs: jobs, Started: time.Now().UTC()}

	t.mu.Lock()
	t.stages = append(t.stages, stats)
	t.mu.Unlock()

	if t.sink != nil {
		if err := t.sink.UpdateRunStatus(t.runID, string(stage)); err != nil {
			zap.L().Warn("pipeline: failed to update run status", zap.Error(err))
		}
		if err := t.sink.SaveStageProgress(t.runID, stats, model.RunRunning); err != nil {
			zap.L().Warn("pipeline: failed to save stage progress", zap.Error(err))
		}
	}
}

// EndStage stores the final counters for the most recent stage
func (t *Tracker) EndStage(stats model.StageStats) {
	stats.Finished = time.Now().UTC()

	t.mu.Lock()
	if n := len(t.stages); n > 0 && t.stages[n-1].Stage == stats.Stage {
		stats.Started = t.stages[n-1].Started
		t.stages[n-1] = stats
	} else {
		t.stages = append(t.stages, stats)
	}
	t.mu.Unlock()

	stats.Duration = stats.Finished.Sub(stats.Started)
	if t.sink != nil {
		if err := t.sink.SaveStageProgress(t.runID, stats, model.RunCompleted); err != nil {
			zap.L().Warn("pipeline: failed to save stage progress", zap.Error(err))
		}
	}
}

// Stages returns a copy of the recorded stage statistics
func (t *Tracker) Stages() []model.StageStats {
	t.mu.RLock()
	defer t.mu.RUnlock()

	out := make([]model.StageStats, len(t.stages))
	copy(out, t.stages)
	for i := range out {
		if !out[i].Finished.IsZero() {
			out[i].Duration = out[i].Finished.Sub(out[i].Started)
		}
	}
	return out
}
