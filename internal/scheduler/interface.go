package scheduler

import (
	"context"
	"time"

	"github.com/mattjoyce/slate/internal/appstore"
)

//go:generate mockgen -destination=mocks/mock_scheduler.go -package=mocks github.com/mattjoyce/slate/internal/scheduler AppRefresher,JobPruner

// AppRefresher re-runs application discovery.
type AppRefresher interface {
	Refresh(specs []appstore.SearchSpec) error
}

// JobPruner removes finished job records older than a cutoff.
type JobPruner interface {
	Prune(ctx context.Context, cutoff time.Time) (int64, error)
}
