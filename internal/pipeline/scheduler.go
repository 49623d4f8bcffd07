package pipeline

import (
	"context"
	"errors"
	"sort"

	"golang.org/x/sync/errgroup"

	"tabnet-harvester/internal/metrics"
	"tabnet-harvester/internal/model"
)

// FetchFunc runs one job to a terminal outcome
type FetchFunc func(ctx context.Context, job model.Job) model.FetchResult

// StoreFunc writes one region value of a finished job
type StoreFunc func(job model.Job, region string, value float64) error

// Scheduler runs jobs with at most Limit fetches in flight.
//
// Workers never touch shared state: each sends its result to the goroutine
// that called RunJobs, which applies store and progress for one job at a time.
// Store callbacks are therefore serialized without a lock and may mutate a
// Tree directly.
type Scheduler struct {
	Limit  int
	Errors *ErrorLog // receives store failures; may be nil
}

type jobResult struct {
	job    model.Job
	result model.FetchResult
}

// RunJobs returns once every job has reached a terminal outcome. onProgress,
// if set, is called exactly once per job after its result has been applied.
func (s *Scheduler) RunJobs(ctx context.Context, jobs []model.Job, fetch FetchFunc, store StoreFunc, onProgress func()) model.StageStats {
	stats := model.StageStats{Jobs: len(jobs)}
	if len(jobs) == 0 {
		return stats
	}

	limit := s.Limit
	if limit <= 0 {
		limit = 1
	}

	results := make(chan jobResult, limit)
	go func() {
		var g errgroup.Group
		g.SetLimit(limit)
		for _, job := range jobs {
			g.Go(func() error {
				results <- jobResult{job: job, result: fetch(ctx, job)}
				return nil
			})
		}
		g.Wait()
		close(results)
	}()

	for r := range results {
		outcome := r.result.Outcome
		if outcome == model.OutcomeStored {
			if err := s.apply(r.job, r.result.Values, store); err != nil {
				outcome = model.OutcomeFailed
				if s.Errors != nil {
					s.Errors.Add(r.job, err, 0)
				}
			}
		}
		stats.Record(outcome)
		metrics.Jobs.WithLabelValues(string(r.job.Stage()), string(outcome)).Inc()
		if onProgress != nil {
			onProgress()
		}
	}
	return stats
}

// apply stores every region of one job, in region order
func (s *Scheduler) apply(job model.Job, values model.RegionValues, store StoreFunc) error {
	regions := make([]string, 0, len(values))
	for region := range values {
		regions = append(regions, region)
	}
	sort.Strings(regions)

	var errs []error
	for _, region := range regions {
		if err := store(job, region, values[region]); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
