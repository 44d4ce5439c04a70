package jobs

import (
	"errors"
	"time"
)

// Status of a job record.
type Status string

const (
	StatusQueued  Status = "queued"
	StatusRunning Status = "running"
	StatusDone    Status = "done"
	StatusFailed  Status = "failed"
)

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	return s == StatusDone || s == StatusFailed
}

// Valid reports whether s is a known status.
func (s Status) Valid() bool {
	switch s {
	case StatusQueued, StatusRunning, StatusDone, StatusFailed:
		return true
	}
	return false
}

// Job is a persisted, user-visible record of a background operation.
type Job struct {
	ID          string       `json:"id"`
	Description string       `json:"description"`
	User        string       `json:"user,omitempty"`
	Status      Status       `json:"status"`
	Error       *string      `json:"error,omitempty"`
	CreatedAt   time.Time    `json:"created_at"`
	StartedAt   *time.Time   `json:"started_at,omitempty"`
	FinishedAt  *time.Time   `json:"finished_at,omitempty"`
	Attachments []Attachment `json:"attachments,omitempty"`
}

// Duration is the running time of a finished job, or zero.
func (j Job) Duration() time.Duration {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0
	}
	return j.FinishedAt.Sub(*j.StartedAt)
}

// Attachment is a file attached to a job, e.g. a report.
type Attachment struct {
	Name      string    `json:"name"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
}

// Timelog records how long an application session ran for a context.
type Timelog struct {
	ID          string        `json:"id"`
	ContextID   string        `json:"context_id"`
	User        string        `json:"user,omitempty"`
	Application string        `json:"application,omitempty"`
	StartedAt   time.Time     `json:"started_at"`
	Duration    time.Duration `json:"duration"`
}

// ListFilter narrows List results.
type ListFilter struct {
	Status Status
	Limit  int
}

var (
	ErrJobNotFound   = errors.New("job not found")
	ErrQueueFull     = errors.New("job queue is full")
	ErrShutdown      = errors.New("job tracker is shut down")
	ErrInvalidStatus = errors.New("invalid job status")
)
