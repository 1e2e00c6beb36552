package model

import (
	"errors"
	"fmt"
)

// ErrInterrupted is returned when cancellation stops a job between steps.
// State has been saved and the job can be resumed.
var ErrInterrupted = errors.New("interrupted")

// StepError marks a failure in a job-critical step: graph building, node
// generation, node synthesis or report assembly. It fails the whole job.
type StepError struct {
	Step   string // "plan", "generate", "synthesize" or "report"
	NodeID string // Empty for job-level steps
	Err    error
}

func (e *StepError) Error() string {
	if e.NodeID != "" {
		return fmt.Sprintf("%s failed for node %s: %v", e.Step, e.NodeID, e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Step, e.Err)
}

func (e *StepError) Unwrap() error { return e.Err }

// IsCritical reports whether err carries a StepError.
func IsCritical(err error) bool {
	var se *StepError
	return errors.As(err, &se)
}
