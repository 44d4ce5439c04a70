package entity

import (
	"context"
	"errors"
	"testing"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/assert"

	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/tracker"
	"github.com/mattjoyce/slate/internal/tracker/mocks"
)

func catalog() []tracker.Schema {
	return []tracker.Schema{
		{ID: "TypedContext", Aliases: []tracker.Alias{{Name: "task"}}},
		{ID: "Task", Aliases: []tracker.Alias{{Name: "task", ObjectTypeID: "ot-task"}}},
		{ID: "AssetVersion", Aliases: []tracker.Alias{{Name: "assetversion"}, {Name: "version"}}},
		{ID: "Project"},
	}
}

func TestResolveClassifiedAliasWins(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Schemas(gomock.Any()).Return(catalog(), nil)

	r := NewResolver(client)
	got, err := r.Resolve(context.Background(), protocol.SelectionReference{
		EntityType: "task", EntityID: "t1", ObjectTypeID: "ot-task",
	})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assert.Equal(t, ResolvedEntity{Type: "Task", ID: "t1"}, got)
}

func TestResolveLooksUpClassifier(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Schemas(gomock.Any()).Return(catalog(), nil)
	client.EXPECT().Context(gomock.Any(), "t1").Return(tracker.Context{ID: "t1", ObjectTypeID: "ot-task"}, nil)

	got, err := NewResolver(client).Resolve(context.Background(), protocol.SelectionReference{EntityType: "TASK", EntityID: "t1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assert.Equal(t, "Task", got.Type)
}

func TestResolveFallsBackToGenericAlias(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Schemas(gomock.Any()).Return(catalog(), nil)
	client.EXPECT().Context(gomock.Any(), "f1").Return(tracker.Context{}, tracker.ErrNotFound)

	got, err := NewResolver(client).Resolve(context.Background(), protocol.SelectionReference{EntityType: "task", EntityID: "f1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assert.Equal(t, "TypedContext", got.Type)
}

func TestResolveDirectSchemaName(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Schemas(gomock.Any()).Return(catalog(), nil)

	got, err := NewResolver(client).Resolve(context.Background(), protocol.SelectionReference{EntityType: "project", EntityID: "p1"})
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	assert.Equal(t, ResolvedEntity{Type: "Project", ID: "p1"}, got)
}

func TestResolveUnknownType(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Schemas(gomock.Any()).Return(catalog(), nil).Times(2)

	r := NewResolver(client)
	_, err := r.Resolve(context.Background(), protocol.SelectionReference{EntityType: "spaceship", EntityID: "x"})
	var rerr *ResolutionError
	if !errors.As(err, &rerr) {
		t.Fatalf("expected ResolutionError, got %v", err)
	}
	assert.Equal(t, "spaceship", rerr.EntityType)

	_, err = r.Resolve(context.Background(), protocol.SelectionReference{EntityType: " ", EntityID: "x"})
	assert.True(t, errors.As(err, &rerr))
}

func TestResolveSchemaFetchFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	boom := errors.New("platform down")
	client := mocks.NewMockClient(ctrl)
	client.EXPECT().Schemas(gomock.Any()).Return(nil, boom)

	_, err := NewResolver(client).Resolve(context.Background(), protocol.SelectionReference{EntityType: "task", EntityID: "t"})
	var rerr *ResolutionError
	assert.True(t, errors.As(err, &rerr))
	assert.True(t, errors.Is(err, boom))
}

func TestAliasesOfSameSchemaResolveEqual(t *testing.T) {
	client := tracker.NewMemory(tracker.Fixture{Schemas: catalog()})
	r := NewResolver(client)
	ctx := context.Background()

	a, err := r.Resolve(ctx, protocol.SelectionReference{EntityType: "assetversion", EntityID: "v9"})
	if err != nil {
		t.Fatalf("Resolve assetversion: %v", err)
	}
	b, err := r.Resolve(ctx, protocol.SelectionReference{EntityType: "Version", EntityID: "v9"})
	if err != nil {
		t.Fatalf("Resolve Version: %v", err)
	}
	if a != b {
		t.Fatalf("aliases resolved differently: %+v vs %+v", a, b)
	}
}

func TestResolveAll(t *testing.T) {
	client := tracker.NewMemory(tracker.Fixture{Schemas: catalog()})
	r := NewResolver(client)

	got, err := r.ResolveAll(context.Background(), []protocol.SelectionReference{
		{EntityType: "project", EntityID: "p"},
		{EntityType: "version", EntityID: "v"},
	})
	if err != nil {
		t.Fatalf("ResolveAll: %v", err)
	}
	assert.Equal(t, []ResolvedEntity{{Type: "Project", ID: "p"}, {Type: "AssetVersion", ID: "v"}}, got)

	_, err = r.ResolveAll(context.Background(), []protocol.SelectionReference{{EntityType: "nope", EntityID: "x"}})
	assert.Error(t, err)
}
