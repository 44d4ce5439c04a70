package runningjobs

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/storage"
	"github.com/mattjoyce/slate/internal/tracker"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

func TestRunningJobsRoundTrip(t *testing.T) {
	ctx := context.Background()
	db, err := storage.OpenSQLite(ctx, filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	store := jobs.NewStore(db)

	stuck, err := store.Create(ctx, "stuck", "bob")
	require.NoError(t, err)
	require.NoError(t, store.MarkRunning(ctx, stuck))
	queued, err := store.Create(ctx, "waiting", "bob")
	require.NoError(t, err)

	bus := events.NewBus(nil)
	d := action.NewDispatcher(bus, tracker.NewMemory(tracker.Fixture{}))
	require.NoError(t, d.Register(New(store)))

	replies, err := bus.Publish(ctx, protocol.Event{Topic: protocol.TopicDiscover})
	require.NoError(t, err)
	require.Len(t, events.Items(replies), 1)
	assert.Equal(t, "Running Jobs", events.Items(replies)[0].Label)

	ev := protocol.Event{Topic: protocol.TopicLaunch, Data: protocol.EventData{ActionIdentifier: Identifier}}
	replies, err = bus.Publish(ctx, ev)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Len(t, replies[0].Items, 1)
	assert.Equal(t, "enumerator", replies[0].Items[0].Type)
	assert.Len(t, replies[0].Items[0].Data, 2)

	// Submitting the page without a choice asks again.
	ev.Data.Values = map[string]any{}
	replies, err = bus.Publish(ctx, ev)
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.Len(t, replies[0].Items, 1)

	ev.Data.Values = map[string]any{"status": "paused"}
	replies, err = bus.Publish(ctx, ev)
	require.NoError(t, err)
	assert.False(t, replies[0].Succeeded())

	ev.Data.Values = map[string]any{"status": "failed"}
	replies, err = bus.Publish(ctx, ev)
	require.NoError(t, err)
	assert.True(t, replies[0].Succeeded())
	assert.Equal(t, "Action completed successfully", replies[0].Message)

	j, err := store.Get(ctx, stuck)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusFailed, j.Status)

	j, err = store.Get(ctx, queued)
	require.NoError(t, err)
	assert.Equal(t, jobs.StatusQueued, j.Status)
}
