package pipeline

import (
	"fmt"
	"io"
	"sync"
	"time"

	"tabnet-harvester/internal/model"
)

// Reporter receives human-facing progress for a run
type Reporter interface {
	StageStarted(index, count int, stage model.Stage, jobs int)
	Progress(stage model.Stage, done, total int)
	StageFinished(stats model.StageStats)
}

// ConsoleReporter prints progress lines to a terminal
type ConsoleReporter struct {
	mu  sync.Mutex
	out io.Writer
}

// NewConsoleReporter writes to out
func NewConsoleReporter(out io.Writer) *ConsoleReporter {
	return &ConsoleReporter{out: out}
}

var stageTitles = map[model.Stage]string{
	model.StageTotals:    "Totals by region",
	model.StageAgeBands:  "Age bands",
	model.StageDiagnoses: "Detailed diagnoses",
}

// StageStarted implements Reporter
func (c *ConsoleReporter) StageStarted(index, count int, stage model.Stage, jobs int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "🚀 Stage %d/%d – %s … (%d queries)\n", index, count, stageTitles[stage], jobs)
}

// Progress implements Reporter
func (c *ConsoleReporter) Progress(stage model.Stage, done, total int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pct := 100.0
	if total > 0 {
		pct = float64(done) * 100 / float64(total)
	}
	fmt.Fprintf(c.out, "\r  %d/%d  (%5.1f %%) done", done, total, pct)
	if done == total {
		fmt.Fprintln(c.out)
	}
}

// StageFinished implements Reporter
func (c *ConsoleReporter) StageFinished(stats model.StageStats) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintf(c.out, "✅ %s: %d stored, %d empty, %d failed in %v\n",
		stageTitles[stats.Stage], stats.Stored, stats.Empty, stats.Failed, stats.Duration.Round(time.Millisecond))
}

type nopReporter struct{}

func (nopReporter) StageStarted(int, int, model.Stage, int) {}
func (nopReporter) Progress(model.Stage, int, int)          {}
func (nopReporter) StageFinished(model.StageStats)          {}
