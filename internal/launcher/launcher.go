package launcher

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/launchenv"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/tracker"
)

// Notifier receives application.launch observations. *events.Hub satisfies it.
type Notifier interface {
	Publish(eventType string, data any)
}

// Request describes one launch.
type Request struct {
	TaskID string
	// File is appended to the command line when set.
	File string
	// Wait blocks until the application exits.
	Wait bool
	// ExtraArgs go after the configured launch arguments, before File.
	ExtraArgs []string
}

// Result is the user-facing outcome of a launch.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	PID     int    `json:"pid,omitempty"`
	// Set only when Request.Wait is true.
	ExitCode int           `json:"exit_code,omitempty"`
	Duration time.Duration `json:"duration,omitempty"`
}

// Reply converts r into a protocol reply.
func (r Result) Reply() *protocol.Reply {
	return protocol.ResultReply(r.Success, r.Message)
}

// Launcher spawns applications from a store.
type Launcher struct {
	store    *appstore.Store
	client   tracker.Client
	builder  *launchenv.Builder
	notifier Notifier
	environ  func() []string
	logger   *slog.Logger
}

// Option customises a Launcher.
type Option func(*Launcher)

// WithNotifier publishes an application.launch event for every spawn.
func WithNotifier(n Notifier) Option {
	return func(l *Launcher) { l.notifier = n }
}

// WithEnviron replaces os.Environ as the inherited environment.
func WithEnviron(fn func() []string) Option {
	return func(l *Launcher) { l.environ = fn }
}

// New creates a Launcher.
func New(store *appstore.Store, client tracker.Client, builder *launchenv.Builder, opts ...Option) *Launcher {
	l := &Launcher{
		store:   store,
		client:  client,
		builder: builder,
		environ: os.Environ,
		logger:  log.WithComponent("launcher"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Store returns the application store the launcher reads from.
func (l *Launcher) Store() *appstore.Store { return l.store }

// Launch starts appID. It never returns an error; failures are reported in
// the Result.
func (l *Launcher) Launch(ctx context.Context, appID string, req Request) Result {
	app, ok := l.store.GetApplication(appID)
	if !ok {
		l.logger.Warn("application not found", "app", appID)
		return Result{Message: fmt.Sprintf("%s application not found.", appID)}
	}

	command := Command(app, req)

	env, err := l.environment(ctx, app, req.TaskID)
	if err != nil {
		l.logger.Error("could not compose launch environment", "app", appID, "error", err)
		return Result{Message: fmt.Sprintf("%s application could not be started.", app.Label)}
	}

	cmd := exec.Command(command[0], command[1:]...)
	cmd.Env = env.Flatten()
	cmd.Dir = filepath.Dir(app.Path)
	cmd.SysProcAttr = detachedAttr()

	l.logger.Info("launching application", "app", appID, "command", command, "cwd", cmd.Dir)

	start := time.Now()
	if err := cmd.Start(); err != nil {
		l.logger.Error("application could not be started", "app", appID, "command", command, "error", err)
		return Result{Message: fmt.Sprintf("%s application could not be started.", app.Label)}
	}

	pid := cmd.Process.Pid
	l.logger.Debug("application started", "app", appID, "pid", pid)
	l.notify(app, req, pid)

	res := Result{
		Success: true,
		Message: fmt.Sprintf("%s application started.", app.Label),
		PID:     pid,
	}

	if !req.Wait {
		// Reap the child so it does not linger as a zombie.
		go func() { _ = cmd.Wait() }()
		return res
	}

	err = cmd.Wait()
	res.Duration = time.Since(start)
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		res.ExitCode = exitErr.ExitCode()
	} else if err != nil {
		l.logger.Warn("wait for application", "app", appID, "error", err)
	}
	l.logger.Info("application exited", "app", appID, "pid", pid, "exit_code", res.ExitCode, "duration", res.Duration)
	return res
}

// Command returns [path] + launch arguments + extra arguments + [file].
func Command(app appstore.Application, req Request) []string {
	cmd := []string{app.Path}
	cmd = append(cmd, app.LaunchArguments...)
	cmd = append(cmd, req.ExtraArgs...)
	if req.File != "" {
		cmd = append(cmd, req.File)
	}
	return cmd
}

func (l *Launcher) environment(ctx context.Context, app appstore.Application, taskID string) (launchenv.Environment, error) {
	base := launchenv.FromEnviron(l.environ())
	if l.builder == nil {
		return base, nil
	}
	envReq := launchenv.Request{Application: app}
	if taskID != "" && l.client != nil {
		r, err := launchenv.NewRequest(ctx, l.client, app, taskID)
		if err != nil {
			return launchenv.Environment{}, err
		}
		envReq = r
	}
	return l.builder.Build(ctx, envReq, base)
}

func (l *Launcher) notify(app appstore.Application, req Request, pid int) {
	if l.notifier == nil {
		return
	}
	l.notifier.Publish(protocol.TopicApplicationLaunch, map[string]any{
		"application": app.Identifier,
		"label":       app.Label,
		"task_id":     req.TaskID,
		"file":        req.File,
		"pid":         pid,
	})
}
