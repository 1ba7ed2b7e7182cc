package app

import "time"

// Operation tracks one CLI invocation. Its ID tags every log line written
// while it runs, and Close records how it ended.
type Operation struct {
	ID      string
	Name    string
	Started time.Time
	Status  string // "success" or "error"
}

// NewOperation creates an operation named after the CLI command.
func NewOperation(name string, now time.Time) *Operation {
	return &Operation{
		ID:      now.UTC().Format("20060102T150405Z"),
		Name:    name,
		Started: now,
		Status:  "success",
	}
}

// Fail marks the operation as failed. A nil error is ignored.
func (op *Operation) Fail(err error) error {
	if err != nil {
		op.Status = "error"
	}
	return err
}

// Duration is the time since the operation started.
func (op *Operation) Duration(now time.Time) time.Duration {
	return now.Sub(op.Started)
}
