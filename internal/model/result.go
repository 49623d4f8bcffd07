package model

import "time"

// RegionValues maps a canonical region name to the value the service reported for it
type RegionValues map[string]float64

// Outcome is the terminal state of one job
type Outcome string

const (
	OutcomeStored Outcome = "stored" // values returned and written to the tree
	OutcomeEmpty  Outcome = "empty"  // the service had no data block for the query
	OutcomeFailed Outcome = "failed" // retries exhausted or response malformed; an ErrorRecord exists
)

// FetchResult is what the fetch policy hands back to the scheduler
type FetchResult struct {
	Values  RegionValues
	Outcome Outcome
}

// ErrorRecord describes one job that ended without data because of a failure
type ErrorRecord struct {
	Job       string    `json:"job"`
	Stage     Stage     `json:"stage"`
	Category  string    `json:"category"`
	Message   string    `json:"message"`
	Attempts  int       `json:"attempts"`
	Timestamp time.Time `json:"timestamp"`
}

// String matches the console report format "job :: message"
func (e ErrorRecord) String() string {
	return e.Job + " :: " + e.Message
}
