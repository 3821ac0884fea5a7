package entity

import "fmt"

// Outcome is what a single product evaluation ended in.
type Outcome string

const (
	OutcomeIncreased Outcome = "increased"
	OutcomeKept      Outcome = "kept"
	OutcomeReverted  Outcome = "reverted"
	OutcomeWaiting   Outcome = "waiting"
	OutcomeSkipped   Outcome = "skipped"
	OutcomeResumed   Outcome = "resumed"
	OutcomeError     Outcome = "error"
)

// RunStats aggregates the outcomes of one run. It is not persisted.
type RunStats struct {
	Processed     int      `json:"processed"`
	Increased     int      `json:"increased"`
	Kept          int      `json:"kept"`
	Reverted      int      `json:"reverted"`
	Waiting       int      `json:"waiting"`
	Skipped       int      `json:"skipped"`
	Resumed       int      `json:"resumed"`
	Errors        int      `json:"errors"`
	ErrorMessages []string `json:"error_messages"`
}

// Record counts one product outcome. err is only used for OutcomeError.
func (s *RunStats) Record(productID string, o Outcome, err error) {
	s.Processed++
	switch o {
	case OutcomeIncreased:
		s.Increased++
	case OutcomeKept:
		s.Kept++
	case OutcomeReverted:
		s.Reverted++
	case OutcomeWaiting:
		s.Waiting++
	case OutcomeSkipped:
		s.Skipped++
	case OutcomeResumed:
		s.Resumed++
	case OutcomeError:
		s.Errors++
		s.ErrorMessages = append(s.ErrorMessages, fmt.Sprintf("product %s: %v", productID, err))
	}
}

// Merge adds other into s.
func (s *RunStats) Merge(other RunStats) {
	s.Processed += other.Processed
	s.Increased += other.Increased
	s.Kept += other.Kept
	s.Reverted += other.Reverted
	s.Waiting += other.Waiting
	s.Skipped += other.Skipped
	s.Resumed += other.Resumed
	s.Errors += other.Errors
	s.ErrorMessages = append(s.ErrorMessages, other.ErrorMessages...)
}

// RunResult is what callers of a pricing run receive.
type RunResult struct {
	Success bool     `json:"success"`
	Stats   RunStats `json:"stats"`
	Errors  []string `json:"errors"`
}
