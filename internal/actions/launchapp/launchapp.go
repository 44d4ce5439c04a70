// Package launchapp advertises one launch item per discovered application
// for a selected task and opens the task's work file in the chosen one.
package launchapp

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/launcher"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/workfile"
)

// Identifier is the action identifier used when none is configured.
const Identifier = "slate.launch_application"

// Options configures the action.
type Options struct {
	Identifier string
	// TrackSessions runs each launch inside a background job that waits for
	// the application to exit and records a timelog for the task.
	TrackSessions bool
}

// Action launches applications on tasks.
type Action struct {
	action.Base
	launcher *launcher.Launcher
	files    *workfile.Resolver
	jobs     *jobs.Tracker
	opts     Options
	logger   *slog.Logger
}

var (
	_ action.Handler    = (*Action)(nil)
	_ action.Advertiser = (*Action)(nil)
)

// New creates the action. tracker may be nil when sessions are not tracked.
func New(l *launcher.Launcher, files *workfile.Resolver, tracker *jobs.Tracker, opts Options) *Action {
	if opts.Identifier == "" {
		opts.Identifier = Identifier
	}
	if tracker == nil {
		opts.TrackSessions = false
	}
	return &Action{
		Base: action.Base{Desc: action.Descriptor{
			Identifier:  opts.Identifier,
			Label:       "Launch application",
			Description: "Open the task's work file in an application",
		}},
		launcher: l,
		files:    files,
		jobs:     tracker,
		opts:     opts,
		logger:   log.WithAction(opts.Identifier),
	}
}

// Discover accepts exactly one selected task.
func (a *Action) Discover(ctx context.Context, actx *action.Context) (bool, error) {
	e, ok := actx.Single()
	return ok && e.Type == "Task", nil
}

// Advertise returns one item per application, in label order.
func (a *Action) Advertise(ctx context.Context, actx *action.Context) ([]protocol.Item, error) {
	if ok, _ := a.Discover(ctx, actx); !ok {
		return nil, nil
	}
	apps := a.launcher.Store().Applications()
	items := make([]protocol.Item, 0, len(apps))
	for _, app := range apps {
		items = append(items, protocol.Item{
			ActionIdentifier:      a.Desc.Identifier,
			ApplicationIdentifier: app.Identifier,
			Label:                 app.Label,
			Variant:               app.Variant,
			Description:           app.Description,
			Icon:                  app.Icon,
		})
	}
	return items, nil
}

// Launch resolves the work file and starts the application.
func (a *Action) Launch(ctx context.Context, actx *action.Context) (action.Result, error) {
	appID := actx.Event.Data.ApplicationIdentifier
	app, ok := a.launcher.Store().GetApplication(appID)
	if !ok {
		a.logger.Warn("application not found", "app", appID)
		return action.Outcome(false, fmt.Sprintf("%s application not found.", appID)), nil
	}

	task, ok := actx.Single()
	if !ok || task.Type != "Task" {
		return action.Outcome(false, "Select a single task to launch an application."), nil
	}

	req := launcher.Request{TaskID: task.ID}
	if a.files.Handles(app.Identifier) {
		res, err := a.files.Resolve(ctx, task.ID, app.Identifier)
		if err != nil {
			a.logger.Error("work file could not be prepared", "task_id", task.ID, "app", app.Identifier, "error", err)
			return action.Outcome(false, fmt.Sprintf("%s work file could not be prepared.", app.Label)), nil
		}
		req.File = res.Path
	}

	if !a.opts.TrackSessions {
		r := a.launcher.Launch(ctx, app.Identifier, req)
		return action.Outcome(r.Success, r.Message), nil
	}

	user := actx.User()
	description := fmt.Sprintf("%s session", app.Label)
	h, err := a.jobs.Submit(ctx, description, user, func(ctx context.Context, run *jobs.Run) error {
		req.Wait = true
		started := time.Now().UTC()
		r := a.launcher.Launch(ctx, app.Identifier, req)
		if !r.Success {
			return errors.New(r.Message)
		}
		if req.File != "" {
			if err := run.Attach(ctx, "work file", req.File); err != nil {
				return err
			}
		}
		_, err := a.jobs.Store().RecordTimelog(ctx, jobs.Timelog{
			ContextID:   task.ID,
			User:        user,
			Application: app.Identifier,
			StartedAt:   started,
			Duration:    r.Duration,
		})
		return err
	})
	if err != nil {
		a.logger.Error("session job rejected", "app", app.Identifier, "error", err)
		return action.Outcome(false, fmt.Sprintf("%s application could not be started.", app.Label)), nil
	}
	return action.Outcome(true, fmt.Sprintf("%s application starting (job %s).", app.Label, h.ID())), nil
}
