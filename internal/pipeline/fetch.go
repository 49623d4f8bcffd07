package pipeline

import (
	"context"
	"errors"
	"math/rand/v2"
	"time"

	"go.uber.org/zap"

	harvesterr "tabnet-harvester/internal/errors"
	"tabnet-harvester/internal/metrics"
	"tabnet-harvester/internal/model"
	"tabnet-harvester/internal/tabnet"
)

// RetryPolicy bounds how long and how often one job may be attempted
type RetryPolicy struct {
	Attempts    int           `json:"attempts" yaml:"attempts"`         // total attempts, at least 1
	Timeout     time.Duration `json:"timeout" yaml:"timeout"`           // per attempt
	BackoffBase time.Duration `json:"backoff_base" yaml:"backoff_base"` // fixed part of the pause
	Jitter      time.Duration `json:"jitter" yaml:"jitter"`             // random part, [0, Jitter)
}

// DefaultRetryPolicy mirrors the service's tolerance: three attempts of 45s
// with a 300ms-1s pause between them.
var DefaultRetryPolicy = RetryPolicy{
	Attempts:    3,
	Timeout:     45 * time.Second,
	BackoffBase: 300 * time.Millisecond,
	Jitter:      700 * time.Millisecond,
}

// Backoff returns the pause before the next attempt
func (p RetryPolicy) Backoff() time.Duration {
	d := p.BackoffBase
	if p.Jitter > 0 {
		d += rand.N(p.Jitter)
	}
	return d
}

// Fetcher executes one job against the remote service under a RetryPolicy.
// Terminal failures are appended to Errors; Fetch itself never fails.
type Fetcher struct {
	Transport tabnet.Transport
	Encoder   tabnet.Encoder
	Policy    RetryPolicy
	Errors    *ErrorLog

	// sleep waits out a backoff; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error
}

// NewFetcher creates a Fetcher with the given collaborators
func NewFetcher(transport tabnet.Transport, encoder tabnet.Encoder, policy RetryPolicy, errs *ErrorLog) *Fetcher {
	if policy.Attempts < 1 {
		policy.Attempts = 1
	}
	return &Fetcher{
		Transport: transport,
		Encoder:   encoder,
		Policy:    policy,
		Errors:    errs,
		sleep:     sleepContext,
	}
}

// Fetch runs job to a terminal outcome
func (f *Fetcher) Fetch(ctx context.Context, job model.Job) model.FetchResult {
	payload, err := f.Encoder.Encode(job)
	if err != nil {
		f.fail(job, err, 0)
		return model.FetchResult{Outcome: model.OutcomeFailed}
	}

	stage := string(job.Stage())
	for attempt := 1; attempt <= f.Policy.Attempts; attempt++ {
		body, err := f.attempt(ctx, payload, stage)
		if err == nil {
			values, perr := ParseResponse(body)
			if perr != nil {
				// Retrying would parse the same body the same way.
				f.fail(job, perr, attempt)
				return model.FetchResult{Outcome: model.OutcomeFailed}
			}
			if len(values) == 0 {
				return model.FetchResult{Outcome: model.OutcomeEmpty}
			}
			return model.FetchResult{Values: values, Outcome: model.OutcomeStored}
		}

		if attempt == f.Policy.Attempts || !harvesterr.IsRetryable(err) {
			f.fail(job, err, attempt)
			return model.FetchResult{Outcome: model.OutcomeFailed}
		}

		metrics.Retries.WithLabelValues(stage).Inc()
		zap.L().Debug("pipeline: attempt failed, backing off",
			zap.Stringer("job", job),
			zap.Int("attempt", attempt),
			zap.Error(err))
		if err := f.sleep(ctx, f.Policy.Backoff()); err != nil {
			f.fail(job, err, attempt)
			return model.FetchResult{Outcome: model.OutcomeFailed}
		}
	}

	// unreachable: the loop always returns on its last attempt
	return model.FetchResult{Outcome: model.OutcomeFailed}
}

func (f *Fetcher) attempt(ctx context.Context, payload, stage string) (string, error) {
	attemptCtx := ctx
	if f.Policy.Timeout > 0 {
		var cancel context.CancelFunc
		attemptCtx, cancel = context.WithTimeout(ctx, f.Policy.Timeout)
		defer cancel()
	}

	start := time.Now()
	body, err := f.Transport.Post(attemptCtx, payload)
	metrics.FetchDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())

	if err != nil && harvesterr.GetCategory(err) == "" {
		// Transports outside this module may return plain errors.
		code := harvesterr.CodeRequestFailed
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
			code = harvesterr.CodeTimeout
		}
		err = harvesterr.Wrap(harvesterr.ErrCategoryTransport, code, "post failed", err)
	}
	return body, err
}

func (f *Fetcher) fail(job model.Job, err error, attempts int) {
	if f.Errors == nil {
		return
	}
	f.Errors.Add(job, err, attempts)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
