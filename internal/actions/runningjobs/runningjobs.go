// Package runningjobs clears job records stuck in the running state, for
// instance after the process that owned them died.
package runningjobs

import (
	"context"
	"fmt"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
)

// Identifier of the action.
const Identifier = "running-jobs"

// Action moves every running job to a status chosen by the user.
type Action struct {
	action.Base
	store *jobs.Store
}

// New creates the action.
func New(store *jobs.Store) *Action {
	return &Action{
		Base:  action.Base{Desc: action.Descriptor{Identifier: Identifier, Label: "Running Jobs"}},
		store: store,
	}
}

// Discover always applies.
func (a *Action) Discover(context.Context, *action.Context) (bool, error) { return true, nil }

// Interface asks for the target status until one is submitted.
func (a *Action) Interface(_ context.Context, actx *action.Context) ([]protocol.Item, error) {
	if _, ok := actx.Value("status"); ok {
		return nil, nil
	}
	return []protocol.Item{{
		Label: "Set running jobs to:",
		Type:  "enumerator",
		Name:  "status",
		Data: []protocol.Option{
			{Label: "Failed", Value: string(jobs.StatusFailed)},
			{Label: "Done", Value: string(jobs.StatusDone)},
		},
	}}, nil
}

// Launch applies the chosen status.
func (a *Action) Launch(ctx context.Context, actx *action.Context) (action.Result, error) {
	value, _ := actx.Value("status")
	status := jobs.Status(value)
	if status != jobs.StatusFailed && status != jobs.StatusDone {
		return action.Outcome(false, fmt.Sprintf("Unknown job status %q.", value)), nil
	}

	n, err := a.store.SetRunningTo(ctx, status)
	if err != nil {
		log.WithAction(Identifier).Error("could not update running jobs", "error", err)
		return action.Outcome(false, "Running jobs could not be updated."), nil
	}
	log.WithAction(Identifier).Info("updated running jobs", "status", status, "count", n, "user", actx.User())
	return action.Outcome(true, "Action completed successfully"), nil
}
