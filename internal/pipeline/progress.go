package pipeline

// ProgressFunc is told how many of total jobs have completed
type ProgressFunc func(done, total int)

// Progress samples completions: it reports every step-th completion and
// always the last one. It is driven from the scheduler's collector goroutine.
type Progress struct {
	total  int
	step   int
	done   int
	report ProgressFunc
}

// NewProgress reports roughly reports times over total completions.
// reports <= 0 or >= total reports every completion.
func NewProgress(total, reports int, report ProgressFunc) *Progress {
	step := 1
	if reports > 0 && total > reports {
		step = (total + reports - 1) / reports
	}
	return &Progress{total: total, step: step, report: report}
}

// Step returns the reporting interval
func (p *Progress) Step() int {
	return p.step
}

// Done records one completion
func (p *Progress) Done() {
	p.done++
	if p.report == nil {
		return
	}
	if p.done%p.step == 0 || p.done == p.total {
		p.report(p.done, p.total)
	}
}
