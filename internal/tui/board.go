package tui

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/jobs"
)

const maxJobs = 50

// jobRow is the monitor's view of one job.
type jobRow struct {
	ID          string
	Description string
	Status      string
	Error       string
	Started     time.Time
	Finished    time.Time
}

func (r *jobRow) duration(now time.Time) time.Duration {
	if r.Started.IsZero() {
		return 0
	}
	end := r.Finished
	if end.IsZero() {
		end = now
	}
	return end.Sub(r.Started)
}

// board keeps jobs newest first, capped at maxJobs.
type board struct {
	rows  map[string]*jobRow
	order []string
}

func newBoard() *board {
	return &board{rows: make(map[string]*jobRow)}
}

func (b *board) row(id string) *jobRow {
	if r, ok := b.rows[id]; ok {
		return r
	}
	r := &jobRow{ID: id}
	b.rows[id] = r
	b.order = append([]string{id}, b.order...)
	if len(b.order) > maxJobs {
		for _, old := range b.order[maxJobs:] {
			delete(b.rows, old)
		}
		b.order = b.order[:maxJobs]
	}
	return r
}

// load seeds the board from a job listing, which arrives newest first.
func (b *board) load(list []*jobs.Job) {
	for i := len(list) - 1; i >= 0; i-- {
		j := list[i]
		r := b.row(j.ID)
		r.Description = j.Description
		r.Status = string(j.Status)
		if j.Error != nil {
			r.Error = *j.Error
		}
		if j.StartedAt != nil {
			r.Started = *j.StartedAt
		}
		if j.FinishedAt != nil {
			r.Finished = *j.FinishedAt
		}
	}
}

type jobEventData struct {
	JobID       string `json:"job_id"`
	Description string `json:"description"`
	Error       string `json:"error"`
}

// apply folds a job lifecycle record into the board. Other records are
// ignored. It reports whether the board changed.
func (b *board) apply(rec events.Record) bool {
	var status string
	switch rec.Type {
	case jobs.EventQueued:
		status = string(jobs.StatusQueued)
	case jobs.EventRunning:
		status = string(jobs.StatusRunning)
	case jobs.EventDone:
		status = string(jobs.StatusDone)
	case jobs.EventFailed:
		status = string(jobs.StatusFailed)
	default:
		return false
	}

	var data jobEventData
	if err := json.Unmarshal(rec.Data, &data); err != nil || data.JobID == "" {
		return false
	}

	r := b.row(data.JobID)
	if data.Description != "" {
		r.Description = data.Description
	}
	// Records can be replayed after a reconnect; never move backwards.
	if jobs.Status(r.Status).Terminal() {
		return true
	}
	r.Status = status
	switch status {
	case string(jobs.StatusRunning):
		r.Started = rec.At
	case string(jobs.StatusDone), string(jobs.StatusFailed):
		r.Finished = rec.At
		r.Error = data.Error
	}
	return true
}

// counts returns running, done and failed totals.
func (b *board) counts() (running, done, failed int) {
	for _, r := range b.rows {
		switch r.Status {
		case string(jobs.StatusRunning):
			running++
		case string(jobs.StatusDone):
			done++
		case string(jobs.StatusFailed):
			failed++
		}
	}
	return running, done, failed
}

func formatDuration(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		return fmt.Sprintf("%dm %ds", int(d.Minutes()), int(d.Seconds())%60)
	}
	return fmt.Sprintf("%dh %dm", int(d.Hours()), int(d.Minutes())%60)
}
