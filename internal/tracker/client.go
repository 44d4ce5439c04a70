// Package tracker is the boundary to the production tracking platform.
// Everything the action handlers read or change on the platform goes
// through Client.
package tracker

import (
	"context"
	"errors"
)

//go:generate mockgen -destination=mocks/mock_client.go -package=mocks github.com/mattjoyce/slate/internal/tracker Client

// ErrNotFound is returned when an entity id is unknown.
var ErrNotFound = errors.New("entity not found")

// Client defines the tracking platform operations used by slate.
type Client interface {
	Schemas(ctx context.Context) ([]Schema, error)
	Context(ctx context.Context, id string) (Context, error)
	// Ancestors returns the parents of id, project first, excluding id.
	Ancestors(ctx context.Context, id string) ([]Context, error)
	Assets(ctx context.Context, contextID, assetType string) ([]Asset, error)
	// Versions returns the versions of an asset in ascending order.
	Versions(ctx context.Context, assetID string) ([]AssetVersion, error)
	Version(ctx context.Context, id string) (AssetVersion, error)
	PublishVersion(ctx context.Context, versionID string) error
	Components(ctx context.Context, versionID string) ([]Component, error)
	Commit(ctx context.Context) error
}
