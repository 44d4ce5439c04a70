package api

import (
	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/protocol"
)

// EventResponse is returned by POST /events and action launches.
type EventResponse struct {
	EventID string           `json:"event_id"`
	Replies []protocol.Reply `json:"replies"`
	// Items flattens the item lists of every reply.
	Items []protocol.Item `json:"items,omitempty"`
}

// LaunchRequest is the JSON body for POST /actions/{identifier}/launch.
type LaunchRequest struct {
	User      string                        `json:"user,omitempty"`
	Selection []protocol.SelectionReference `json:"selection"`
	Values    map[string]any                `json:"values,omitempty"`
}

// ActionsResponse is returned by GET /actions.
type ActionsResponse struct {
	Actions []action.Descriptor `json:"actions"`
}

// ApplicationsResponse is returned by GET /applications.
type ApplicationsResponse struct {
	Applications []appstore.Application `json:"applications"`
}

// JobsResponse is returned by GET /jobs.
type JobsResponse struct {
	Jobs []*jobs.Job `json:"jobs"`
}

// ErrorResponse is returned on errors
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthzResponse is returned by GET /healthz.
type HealthzResponse struct {
	Status        string `json:"status"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Actions       int    `json:"actions"`
	Applications  int    `json:"applications"`
}
