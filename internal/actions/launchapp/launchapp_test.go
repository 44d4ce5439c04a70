package launchapp

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/launchenv"
	"github.com/mattjoyce/slate/internal/launcher"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/storage"
	"github.com/mattjoyce/slate/internal/tracker"
	"github.com/mattjoyce/slate/internal/workfile"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

type fixture struct {
	root   string
	bus    *events.Bus
	client *tracker.Memory
	jobs   *jobs.Tracker
	out    string
}

// fakeApp writes its arguments to out and exits.
func fakeApp(t *testing.T, dir, out string) string {
	t.Helper()
	path := filepath.Join(dir, "bin", "nuke")
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	script := "#!/bin/sh\necho \"$*\" > " + out + ".tmp\nmv " + out + ".tmp " + out + "\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0o755))
	return path
}

func setup(t *testing.T, track bool) *fixture {
	t.Helper()
	root := t.TempDir()
	out := filepath.Join(root, "args.txt")

	templates := filepath.Join(root, "templates")
	require.NoError(t, os.MkdirAll(templates, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(templates, "nuke.nk"), []byte("# empty\n"), 0o644))

	client := tracker.NewMemory(tracker.Fixture{
		Schemas: []tracker.Schema{
			{ID: "Task", Aliases: []tracker.Alias{{Name: "task"}}},
			{ID: "AssetVersion", Aliases: []tracker.Alias{{Name: "assetversion"}}},
		},
		Contexts: []tracker.Context{
			{ID: "proj", Name: "Alpha", ObjectType: "Project", Root: "alpha", Disk: tracker.Disk{Unix: filepath.Join(root, "projects"), Windows: filepath.Join(root, "projects")}},
			{ID: "shot", Name: "SH010", ObjectType: "Shot", ParentID: "proj"},
			{ID: "task", Name: "Comp", ObjectType: "Task", ParentID: "shot"},
		},
	})

	store := appstore.NewStore([]appstore.Application{
		{Identifier: "nuke_13.0", Label: "Nuke 13.0", Path: fakeApp(t, root, out), Variant: "13.0"},
		{Identifier: "maya_2024", Label: "Maya 2024", Path: filepath.Join(root, "missing", "maya")},
	})
	l := launcher.New(store, client, launchenv.NewBuilder(launchenv.TaskIdentity(), launchenv.FrameRange()))
	files := workfile.NewResolver(client, workfile.Options{
		TemplatesDir: templates,
		Extensions:   map[string]string{"nuke": "nk"},
		LockDir:      filepath.Join(root, "locks"),
	})

	var tr *jobs.Tracker
	if track {
		db, err := storage.OpenSQLite(context.Background(), filepath.Join(root, "state.db"))
		require.NoError(t, err)
		t.Cleanup(func() { _ = db.Close() })
		tr = jobs.NewTracker(jobs.NewStore(db), nil, jobs.Options{Workers: 1})
		t.Cleanup(func() { _ = tr.Shutdown(context.Background()) })
	}

	bus := events.NewBus(nil)
	d := action.NewDispatcher(bus, client)
	require.NoError(t, d.Register(New(l, files, tr, Options{TrackSessions: track})))

	return &fixture{root: root, bus: bus, client: client, jobs: tr, out: out}
}

func taskSelection() []protocol.SelectionReference {
	return []protocol.SelectionReference{{EntityType: "task", EntityID: "task"}}
}

func launchEvent(appID string) protocol.Event {
	return protocol.Event{
		Topic:  protocol.TopicLaunch,
		Source: protocol.Source{User: "alice"},
		Data: protocol.EventData{
			ActionIdentifier:      Identifier,
			ApplicationIdentifier: appID,
			Selection:             taskSelection(),
		},
	}
}

func TestDiscoverAdvertisesApplications(t *testing.T) {
	f := setup(t, false)

	replies, err := f.bus.Publish(context.Background(), protocol.Event{
		Topic: protocol.TopicDiscover,
		Data:  protocol.EventData{Selection: taskSelection()},
	})
	require.NoError(t, err)
	items := events.Items(replies)
	require.Len(t, items, 2)
	assert.Equal(t, "Maya 2024", items[0].Label)
	assert.Equal(t, "nuke_13.0", items[1].ApplicationIdentifier)
	assert.Equal(t, Identifier, items[1].ActionIdentifier)
	assert.Equal(t, "13.0", items[1].Variant)
}

func TestDiscoverIgnoresOtherSelections(t *testing.T) {
	f := setup(t, false)

	for _, sel := range [][]protocol.SelectionReference{
		nil,
		{{EntityType: "assetversion", EntityID: "v1"}},
		{{EntityType: "task", EntityID: "task"}, {EntityType: "task", EntityID: "task"}},
	} {
		replies, err := f.bus.Publish(context.Background(), protocol.Event{
			Topic: protocol.TopicDiscover,
			Data:  protocol.EventData{Selection: sel},
		})
		require.NoError(t, err)
		assert.Empty(t, replies)
	}
}

func TestLaunchUnknownApplication(t *testing.T) {
	f := setup(t, false)

	replies, err := f.bus.Publish(context.Background(), launchEvent("houdini_16"))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	require.True(t, replies[0].IsResult())
	assert.False(t, replies[0].Succeeded())
	assert.Equal(t, "houdini_16 application not found.", replies[0].Message)
}

func TestLaunchSpawnFailureIsReported(t *testing.T) {
	f := setup(t, false)

	replies, err := f.bus.Publish(context.Background(), launchEvent("maya_2024"))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.False(t, replies[0].Succeeded())
	assert.Equal(t, "Maya 2024 application could not be started.", replies[0].Message)
}

func waitForFile(t *testing.T, path string) string {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if data, err := os.ReadFile(path); err == nil {
			return string(data)
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("%s was not written", path)
	return ""
}

func TestLaunchCreatesFirstVersionAndStarts(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script application")
	}
	f := setup(t, false)

	replies, err := f.bus.Publish(context.Background(), launchEvent("nuke_13.0"))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Succeeded(), replies[0].Message)
	assert.Equal(t, "Nuke 13.0 application started.", replies[0].Message)

	want := filepath.Join(f.root, "projects", "alpha", "shots", "sh010", "Comp_v001.nk")
	assert.FileExists(t, want)
	assert.Contains(t, waitForFile(t, f.out), want)
	assert.Equal(t, 1, f.client.Commits())
}

func TestLaunchTracksSession(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("shell script application")
	}
	f := setup(t, true)

	replies, err := f.bus.Publish(context.Background(), launchEvent("nuke_13.0"))
	require.NoError(t, err)
	require.Len(t, replies, 1)
	assert.True(t, replies[0].Succeeded(), replies[0].Message)
	assert.Contains(t, replies[0].Message, "starting (job ")

	require.NoError(t, f.jobs.Shutdown(context.Background()))

	list, err := f.jobs.Store().List(context.Background(), jobs.ListFilter{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, jobs.StatusDone, list[0].Status)
	assert.Equal(t, "alice", list[0].User)
	assert.Equal(t, "Nuke 13.0 session", list[0].Description)

	job, err := f.jobs.Store().Get(context.Background(), list[0].ID)
	require.NoError(t, err)
	require.Len(t, job.Attachments, 1)

	logs, err := f.jobs.Store().Timelogs(context.Background(), "task")
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "nuke_13.0", logs[0].Application)
	assert.Equal(t, "alice", logs[0].User)
}
