// Package scheduler runs periodic housekeeping for a long-running slate
// process: application rediscovery and job record retention.
package scheduler

import (
	"context"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/config"
	"github.com/mattjoyce/slate/internal/events"
)

const (
	taskRefreshApps = "refresh_applications"
	taskPruneJobs   = "prune_jobs"
)

type task struct {
	name  string
	every time.Duration
	next  time.Time
	run   func(ctx context.Context, now time.Time) (map[string]any, error)
}

// Scheduler drives maintenance tasks from a single tick loop.
type Scheduler struct {
	cfg    config.MaintenanceConfig
	tasks  []*task
	events *events.Hub
	logger *slog.Logger
	now    func() time.Time

	stopOnce sync.Once
	stopCh   chan struct{}
	wg       sync.WaitGroup
}

// New builds a scheduler. Tasks whose interval is zero or whose
// dependency is nil are left out.
func New(cfg config.MaintenanceConfig, specs []appstore.SearchSpec, apps AppRefresher, jobs JobPruner, hub *events.Hub, logger *slog.Logger) *Scheduler {
	if hub == nil {
		hub = events.NewHub(128)
	}
	s := &Scheduler{
		cfg:    cfg,
		events: hub,
		logger: logger.With("component", "scheduler"),
		now:    time.Now,
		stopCh: make(chan struct{}),
	}

	start := s.now()
	if cfg.AppRefresh > 0 && apps != nil {
		s.tasks = append(s.tasks, &task{
			name:  taskRefreshApps,
			every: cfg.AppRefresh,
			// discovery already ran at startup
			next: start.Add(calculateJitteredInterval(cfg.AppRefresh, cfg.Jitter)),
			run: func(_ context.Context, _ time.Time) (map[string]any, error) {
				if err := apps.Refresh(specs); err != nil {
					return nil, err
				}
				return nil, nil
			},
		})
	}
	if cfg.JobRetention > 0 && jobs != nil {
		retention := cfg.JobRetention
		s.tasks = append(s.tasks, &task{
			name:  taskPruneJobs,
			every: retentionInterval(retention, cfg.TickInterval),
			next:  start,
			run: func(ctx context.Context, now time.Time) (map[string]any, error) {
				n, err := jobs.Prune(ctx, now.Add(-retention))
				if err != nil {
					return nil, err
				}
				return map[string]any{"pruned": n}, nil
			},
		})
	}
	return s
}

// Tasks returns the names of the scheduled tasks in run order.
func (s *Scheduler) Tasks() []string {
	names := make([]string, 0, len(s.tasks))
	for _, t := range s.tasks {
		names = append(names, t.name)
	}
	return names
}

// Start begins the tick loop. It returns immediately.
func (s *Scheduler) Start(ctx context.Context) {
	if len(s.tasks) == 0 {
		s.logger.Debug("No maintenance tasks configured")
		return
	}
	s.logger.Info("Starting scheduler", "tasks", s.Tasks(), "tick_interval", s.cfg.TickInterval)
	s.wg.Add(1)
	go s.tickLoop(ctx)
}

// Stop ends the tick loop and waits for an in-flight tick to finish.
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stopCh) })
	s.wg.Wait()
}

func (s *Scheduler) tickLoop(ctx context.Context) {
	defer s.wg.Done()

	s.tick(ctx)

	ticker := time.NewTicker(s.cfg.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.tick(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

// tick runs every task that is due. A failing task is retried on its
// next interval, never on the next tick.
func (s *Scheduler) tick(ctx context.Context) {
	now := s.now()
	for _, t := range s.tasks {
		if now.Before(t.next) {
			continue
		}
		t.next = now.Add(calculateJitteredInterval(t.every, s.cfg.Jitter))

		started := time.Now()
		data, err := t.run(ctx, now)
		if err != nil {
			s.logger.Error("Maintenance task failed", "task", t.name, "error", err)
			s.events.Publish("maintenance.failed", map[string]any{
				"task":  t.name,
				"error": err.Error(),
			})
			continue
		}

		if data == nil {
			data = map[string]any{}
		}
		data["task"] = t.name
		data["duration_ms"] = time.Since(started).Milliseconds()
		s.logger.Debug("Maintenance task finished", "task", t.name, "next", t.next)
		s.events.Publish("maintenance.done", data)
	}
}

// retentionInterval prunes about once per day for long retentions and
// proportionally sooner for short ones, never faster than the tick.
func retentionInterval(retention, tick time.Duration) time.Duration {
	every := min(retention/4, 24*time.Hour)
	return max(every, tick)
}

// calculateJitteredInterval adds up to jitter of random delay to base.
func calculateJitteredInterval(base, jitter time.Duration) time.Duration {
	if jitter <= 0 {
		return base
	}
	return base + time.Duration(rand.Int63n(jitter.Nanoseconds()))
}
