package operations

import "context"

// Step is a single report step.
type Step interface {
	ID() string
	Name() string
	Execute(ctx context.Context, offset int) ([]string, error)
}

// Status is the result of a run as shown to users.
type Status string

const (
	StatusSuccess Status = "SUCCESS"
	StatusFailed  Status = "FAILED"
	// StatusSkipped marks a request that did not run any step.
	StatusSkipped Status = "SKIPPED"
)

// Outcome is what a single step run reports back.
type Outcome struct {
	Status    Status   `json:"status"`
	Message   string   `json:"message"`
	Artifacts []string `json:"artifacts"`
}

// Succeeded reports whether the run completed without error.
func (o Outcome) Succeeded() bool {
	return o.Status == StatusSuccess
}
