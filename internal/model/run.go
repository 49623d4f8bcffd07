package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// RunParams are the validated parameters of one harvest run
type RunParams struct {
	Years         []int         `json:"years"`
	AgeBands      []string      `json:"age_bands"`
	Diagnoses     []string      `json:"diagnoses"`
	Stages        []Stage       `json:"stages"`
	Concurrency   int           `json:"concurrency"`
	Timeout       time.Duration `json:"timeout" swaggertype:"number"` // per attempt; seconds on the wire
	Retries       int           `json:"retries"`
	ProgressSteps int           `json:"progress_steps"` // progress reports per stage
	StrictMerge   bool          `json:"strict_merge"`
	OutputFile    string        `json:"output_file"`
}

type runParamsJSON RunParams

// MarshalJSON writes Timeout as seconds
func (p RunParams) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		runParamsJSON
		Timeout float64 `json:"timeout"`
	}{runParamsJSON(p), p.Timeout.Seconds()})
}

// UnmarshalJSON reads Timeout as a number of seconds or a duration string
// such as "45s".
func (p *RunParams) UnmarshalJSON(data []byte) error {
	aux := struct {
		*runParamsJSON
		Timeout json.RawMessage `json:"timeout"`
	}{runParamsJSON: (*runParamsJSON)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if len(aux.Timeout) == 0 || bytes.Equal(aux.Timeout, []byte("null")) {
		return nil
	}
	d, err := parseTimeout(aux.Timeout)
	if err != nil {
		return err
	}
	p.Timeout = d
	return nil
}

func parseTimeout(raw json.RawMessage) (time.Duration, error) {
	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		d, err := time.ParseDuration(text)
		if err != nil {
			return 0, fmt.Errorf("timeout: %w", err)
		}
		return d, nil
	}
	var secs float64
	if err := json.Unmarshal(raw, &secs); err != nil {
		return 0, fmt.Errorf("timeout: want seconds or a duration string, got %s", raw)
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// HasStage reports whether the run includes stage s
func (p RunParams) HasStage(s Stage) bool {
	if len(p.Stages) == 0 {
		return true
	}
	for _, st := range p.Stages {
		if st == s {
			return true
		}
	}
	return false
}

// Run status values persisted by the store
const (
	RunPending   = "pending"
	RunRunning   = "running"
	RunCompleted = "completed"
	RunFailed    = "failed"
)

// StageStats counts terminal outcomes for one stage
type StageStats struct {
	Stage    Stage         `json:"stage"`
	Jobs     int           `json:"jobs"`
	Stored   int           `json:"stored"`
	Empty    int           `json:"empty"`
	Failed   int           `json:"failed"`
	Started  time.Time     `json:"started"`
	Finished time.Time     `json:"finished"`
	Duration time.Duration `json:"duration" swaggertype:"integer"`
}

// Terminal is the number of jobs that reached any outcome
func (s StageStats) Terminal() int {
	return s.Stored + s.Empty + s.Failed
}

// Record adds one outcome to the counters
func (s *StageStats) Record(o Outcome) {
	switch o {
	case OutcomeStored:
		s.Stored++
	case OutcomeEmpty:
		s.Empty++
	case OutcomeFailed:
		s.Failed++
	}
}

// RunInfo is a persisted run as listed by the store and the API
type RunInfo struct {
	ID        string    `json:"id"`
	Status    string    `json:"status"`
	Params    RunParams `json:"params"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StageProgress is a persisted stage row
type StageProgress struct {
	StageStats
	Status string `json:"status"`
}
