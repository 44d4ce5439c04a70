package launchenv

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/tracker"
)

// Request is what contributors see: the application being launched and the
// task it is launched for. Task is the zero Context when launching without
// a task.
type Request struct {
	Application appstore.Application
	Task        tracker.Context
	// Ancestors of Task, project first.
	Ancestors []tracker.Context
}

// Family is the application family, e.g. "nuke".
func (r Request) Family() string { return appstore.Family(r.Application.Identifier) }

// HasTask reports whether the request carries a task.
func (r Request) HasTask() bool { return r.Task.ID != "" }

// NewRequest loads the task and its ancestors from the tracker.
func NewRequest(ctx context.Context, client tracker.Client, app appstore.Application, taskID string) (Request, error) {
	req := Request{Application: app}
	if taskID == "" {
		return req, nil
	}
	task, err := client.Context(ctx, taskID)
	if err != nil {
		return req, fmt.Errorf("load task %s: %w", taskID, err)
	}
	ancestors, err := client.Ancestors(ctx, taskID)
	if err != nil {
		return req, fmt.Errorf("load ancestors of %s: %w", taskID, err)
	}
	req.Task = task
	req.Ancestors = ancestors
	return req, nil
}

// Contributor adds variables to an environment. It must not modify its
// input; Environment's methods already return copies.
type Contributor interface {
	Name() string
	Contribute(ctx context.Context, req Request, env Environment) (Environment, error)
}

// ContributorFunc adapts a function to Contributor.
type ContributorFunc struct {
	ID string
	Fn func(ctx context.Context, req Request, env Environment) (Environment, error)
}

func (f ContributorFunc) Name() string { return f.ID }

func (f ContributorFunc) Contribute(ctx context.Context, req Request, env Environment) (Environment, error) {
	return f.Fn(ctx, req, env)
}

// Builder runs contributors in order.
type Builder struct {
	contributors []Contributor
	logger       *slog.Logger
}

// NewBuilder creates a Builder with contributors applied in the given order.
func NewBuilder(contributors ...Contributor) *Builder {
	return &Builder{contributors: contributors, logger: log.WithComponent("launchenv")}
}

// Build threads base through every contributor and returns the result.
// A failing contributor aborts the build.
func (b *Builder) Build(ctx context.Context, req Request, base Environment) (Environment, error) {
	env := base
	for _, c := range b.contributors {
		if err := ctx.Err(); err != nil {
			return Environment{}, err
		}
		next, err := c.Contribute(ctx, req, env)
		if err != nil {
			return Environment{}, fmt.Errorf("environment contributor %s: %w", c.Name(), err)
		}
		b.logger.Debug("applied contributor", "contributor", c.Name(), "vars", next.Len())
		env = next
	}
	return env, nil
}

// Options configures the standard contributor pipeline.
type Options struct {
	PathLists     []PathList                   `yaml:"path_lists,omitempty"`
	Scalars       map[string]string            `yaml:"scalars,omitempty"`
	FamilyScalars map[string]map[string]string `yaml:"family_scalars,omitempty"`
	DynamicDirs   []string                     `yaml:"dynamic_dirs,omitempty"`
}

// Standard returns the default pipeline: path lists, scalars, dynamic
// environment files, task identity, frame range.
func Standard(opts Options) *Builder {
	return NewBuilder(
		PathLists(opts.PathLists),
		Scalars(opts.Scalars, opts.FamilyScalars),
		Dynamic(opts.DynamicDirs, nil),
		TaskIdentity(),
		FrameRange(),
	)
}
