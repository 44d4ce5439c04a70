package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/actions/launchapp"
	"github.com/mattjoyce/slate/internal/actions/openversion"
	"github.com/mattjoyce/slate/internal/actions/runningjobs"
	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/config"
	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/launchenv"
	"github.com/mattjoyce/slate/internal/launcher"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/scripts"
	"github.com/mattjoyce/slate/internal/storage"
	"github.com/mattjoyce/slate/internal/tracker"
	"github.com/mattjoyce/slate/internal/workfile"
)

// runtime is the wired set of services shared by 'system start' and the
// one-shot action commands.
type runtime struct {
	cfg        *config.Config
	db         *sql.DB
	hub        *events.Hub
	bus        *events.Bus
	jobs       *jobs.Tracker
	client     tracker.Client
	apps       *appstore.Store
	launcher   *launcher.Launcher
	files      *workfile.Resolver
	dispatcher *action.Dispatcher
	scripts    []*scripts.Script
}

func newRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*runtime, error) {
	db, err := storage.OpenSQLite(ctx, cfg.State.Path)
	if err != nil {
		return nil, fmt.Errorf("open database %s: %w", cfg.State.Path, err)
	}
	rt := &runtime{cfg: cfg, db: db}

	store := jobs.NewStore(db)
	if n, err := store.SetRunningTo(ctx, jobs.StatusFailed); err != nil {
		_ = db.Close()
		return nil, err
	} else if n > 0 {
		logger.Warn("marked orphaned running jobs as failed", "count", n)
	}

	rt.hub = events.NewHub(0)
	rt.bus = events.NewBus(rt.hub)
	rt.jobs = jobs.NewTracker(store, rt.hub, jobs.Options{
		Workers:   cfg.Jobs.Workers,
		QueueSize: cfg.Jobs.QueueSize,
	})

	if cfg.Tracker.Fixture != "" {
		mem, err := tracker.LoadFixture(cfg.Tracker.Fixture)
		if err != nil {
			rt.Close(ctx)
			return nil, err
		}
		rt.client = mem
	} else {
		logger.Warn("no tracker fixture configured; selections will not resolve")
		rt.client = tracker.NewMemory(tracker.Fixture{})
	}

	rt.apps, err = appstore.Discover(cfg.Applications)
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	logger.Info("application discovery complete", "count", len(rt.apps.Applications()))

	rt.launcher = launcher.New(rt.apps, rt.client, launchenv.Standard(cfg.Environment),
		launcher.WithNotifier(rt.hub))
	rt.files = workfile.NewResolver(rt.client, workfile.Options{
		TemplatesDir:        cfg.Workfile.TemplatesDir,
		Extensions:          cfg.Workfile.Extensions,
		FallbackComponents:  cfg.Workfile.FallbackComponents,
		Marker:              cfg.Workfile.Marker,
		Padding:             cfg.Workfile.Padding,
		PreferNewestVariant: cfg.Workfile.PreferNewestVariant,
		ProjectsRoot:        cfg.Workfile.ProjectsRoot,
		LockDir:             cfg.Workfile.LockDir,
	})

	rt.dispatcher = action.NewDispatcher(rt.bus, rt.client)
	builtin := []action.Handler{
		launchapp.New(rt.launcher, rt.files, rt.jobs, launchapp.Options{TrackSessions: cfg.Jobs.TrackSessions}),
		runningjobs.New(store),
		openversion.New(rt.client, rt.launcher, cfg.Jobs.Viewers),
	}
	for _, h := range builtin {
		if err := rt.dispatcher.Register(h); err != nil {
			rt.Close(ctx)
			return nil, err
		}
	}

	rt.scripts, err = scripts.Register(rt.dispatcher, cfg.ActionsDir, cfg.ActionTimeouts())
	if err != nil {
		rt.Close(ctx)
		return nil, err
	}
	logger.Info("action registration complete",
		"builtin", len(builtin), "scripts", len(rt.scripts))
	return rt, nil
}

// Close drains the job workers within the configured shutdown timeout and
// closes the database.
func (rt *runtime) Close(ctx context.Context) {
	if rt.jobs != nil {
		timeout := rt.cfg.Service.ShutdownTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
		if err := rt.jobs.Shutdown(shutdownCtx); err != nil {
			log.WithComponent("main").Warn("job workers did not drain", "error", err)
		}
		cancel()
	}
	if rt.db != nil {
		_ = rt.db.Close()
	}
}

// loadConfigForTool loads configPath, or the discovered config when empty.
func loadConfigForTool(configPath string) (*config.Config, error) {
	if configPath == "" {
		discovered, err := config.DiscoverConfigDir()
		if err != nil {
			return nil, err
		}
		configPath = discovered
	}
	return config.Load(configPath)
}
