package pipeline

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProgress_SampledReports(t *testing.T) {
	var reported []int
	p := NewProgress(10, 3, func(done, total int) {
		assert.Equal(t, 10, total)
		reported = append(reported, done)
	})
	assert.Equal(t, 4, p.Step())
	for i := 0; i < 10; i++ {
		p.Done()
	}
	assert.Equal(t, []int{4, 8, 10}, reported, "final completion is always reported")
	assert.Equal(t, 10, p.done)
}

func TestProgress_EveryCompletion(t *testing.T) {
	calls := 0
	p := NewProgress(5, 1000, func(done, total int) { calls++ })
	assert.Equal(t, 1, p.Step())
	for i := 0; i < 5; i++ {
		p.Done()
	}
	assert.Equal(t, 5, calls)
}

func TestProgress_LargeStage(t *testing.T) {
	calls, last := 0, 0
	p := NewProgress(1_000_001, 1000, func(done, total int) {
		calls++
		last = done
	})
	for i := 0; i < 1_000_001; i++ {
		p.Done()
	}
	assert.LessOrEqual(t, calls, 1001)
	assert.Equal(t, 1_000_001, last)
}

func TestProgress_NilReporter(t *testing.T) {
	p := NewProgress(3, 0, nil)
	p.Done()
	p.Done()
	assert.Equal(t, 2, p.done)
}
