// Package entity turns loosely typed selection references into concrete
// schema types.
package entity

import (
	"context"
	"fmt"
	"strings"

	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/tracker"
)

// ResolvedEntity is a selection mapped onto a concrete schema type.
// Two references to the same entity resolve to equal values.
type ResolvedEntity struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ResolutionError reports a type name that matched no schema.
type ResolutionError struct {
	EntityType string
	EntityID   string
	Err        error
}

func (e *ResolutionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("resolve %q (%s): %v", e.EntityType, e.EntityID, e.Err)
	}
	return fmt.Sprintf("resolve %q (%s): unable to translate entity type", e.EntityType, e.EntityID)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// Resolver resolves selection references against the tracker's schema
// catalog. The catalog is fetched per call; nothing is cached between events.
type Resolver struct {
	client tracker.Client
}

// NewResolver creates a Resolver.
func NewResolver(client tracker.Client) *Resolver {
	return &Resolver{client: client}
}

// Resolve maps ref onto a schema type. Matching order:
//  1. an alias whose classifier equals the reference's object type,
//  2. an alias without a classifier,
//  3. a schema id equal to the type name.
//
// Names compare case-insensitively. When the reference carries no object
// type and a classified alias exists for its name, the object type is looked
// up on the tracker so the specialised schema wins over the generic one.
func (r *Resolver) Resolve(ctx context.Context, ref protocol.SelectionReference) (ResolvedEntity, error) {
	schemas, err := r.client.Schemas(ctx)
	if err != nil {
		return ResolvedEntity{}, &ResolutionError{EntityType: ref.EntityType, EntityID: ref.EntityID, Err: err}
	}

	name := strings.ToLower(strings.TrimSpace(ref.EntityType))
	if name == "" {
		return ResolvedEntity{}, &ResolutionError{EntityType: ref.EntityType, EntityID: ref.EntityID}
	}

	classifier := ref.ObjectTypeID
	if classifier == "" && hasClassifiedAlias(schemas, name) {
		if c, err := r.client.Context(ctx, ref.EntityID); err == nil {
			classifier = c.ObjectTypeID
		}
	}

	if classifier != "" {
		for _, s := range schemas {
			for _, a := range s.Aliases {
				if strings.ToLower(a.Name) == name && a.ObjectTypeID == classifier {
					return ResolvedEntity{Type: s.ID, ID: ref.EntityID}, nil
				}
			}
		}
	}

	for _, s := range schemas {
		for _, a := range s.Aliases {
			if strings.ToLower(a.Name) == name && a.ObjectTypeID == "" {
				return ResolvedEntity{Type: s.ID, ID: ref.EntityID}, nil
			}
		}
	}

	for _, s := range schemas {
		if strings.ToLower(s.ID) == name {
			return ResolvedEntity{Type: s.ID, ID: ref.EntityID}, nil
		}
	}

	return ResolvedEntity{}, &ResolutionError{EntityType: ref.EntityType, EntityID: ref.EntityID}
}

// ResolveAll resolves every reference, stopping at the first failure.
func (r *Resolver) ResolveAll(ctx context.Context, refs []protocol.SelectionReference) ([]ResolvedEntity, error) {
	out := make([]ResolvedEntity, 0, len(refs))
	for _, ref := range refs {
		e, err := r.Resolve(ctx, ref)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, nil
}

func hasClassifiedAlias(schemas []tracker.Schema, name string) bool {
	for _, s := range schemas {
		for _, a := range s.Aliases {
			if a.ObjectTypeID != "" && strings.ToLower(a.Name) == name {
				return true
			}
		}
	}
	return false
}
