//go:build !windows

package launcher

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattjoyce/slate/internal/appstore"
	"github.com/mattjoyce/slate/internal/launchenv"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/tracker"
)

func TestMain(m *testing.M) {
	log.Setup("ERROR", "json")
	os.Exit(m.Run())
}

type recorder struct {
	mu     sync.Mutex
	topics []string
	data   []any
}

func (r *recorder) Publish(eventType string, data any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.topics = append(r.topics, eventType)
	r.data = append(r.data, data)
}

// writeApp creates a fake application that records its arguments, working
// directory and a few environment variables into out.
func writeApp(t *testing.T, dir, out string, exitCode int) string {
	t.Helper()
	path := filepath.Join(dir, "bin", "fakeapp")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	script := "#!/bin/sh\n" +
		"{\n" +
		"  echo \"args=$*\"\n" +
		"  echo \"cwd=$(pwd)\"\n" +
		"  echo \"task=$FTRACK_TASKID\"\n" +
		"  echo \"fs=$FS\"\n" +
		"  echo \"inherited=$SLATE_TEST_INHERITED\"\n" +
		"} > " + out + ".tmp\n" +
		"mv " + out + ".tmp " + out + "\n" +
		"exit " + string(rune('0'+exitCode)) + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write app: %v", err)
	}
	return path
}

func readLines(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	out := map[string]string{}
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		k, v, _ := strings.Cut(line, "=")
		out[k] = v
	}
	return out
}

func newLauncher(t *testing.T, app appstore.Application, opts ...Option) *Launcher {
	t.Helper()
	client := tracker.NewMemory(tracker.Fixture{Contexts: []tracker.Context{
		{ID: "shot", Name: "SH010", ObjectType: "Shot", FrameStart: ptr(1001)},
		{ID: "task", Name: "Comp", ObjectType: "Task", ParentID: "shot"},
	}})
	builder := launchenv.NewBuilder(launchenv.TaskIdentity(), launchenv.FrameRange())
	opts = append([]Option{WithEnviron(func() []string { return []string{"SLATE_TEST_INHERITED=yes", "PATH=" + os.Getenv("PATH")} })}, opts...)
	return New(appstore.NewStore([]appstore.Application{app}), client, builder, opts...)
}

func ptr(v float64) *float64 { return &v }

func TestLaunchUnknownApplication(t *testing.T) {
	l := newLauncher(t, appstore.Application{Identifier: "nuke_11", Label: "Nuke 11", Path: "/nowhere"})
	res := l.Launch(context.Background(), "houdini_16", Request{})
	assert.False(t, res.Success)
	assert.Equal(t, "houdini_16 application not found.", res.Message)

	reply := res.Reply()
	require.NotNil(t, reply.Success)
	assert.False(t, *reply.Success)
}

func TestLaunchSpawnFailure(t *testing.T) {
	l := newLauncher(t, appstore.Application{Identifier: "nuke_11", Label: "Nuke 11", Path: filepath.Join(t.TempDir(), "missing")})
	res := l.Launch(context.Background(), "nuke_11", Request{})
	assert.False(t, res.Success)
	assert.Equal(t, "Nuke 11 application could not be started.", res.Message)
}

func TestLaunchWaitsAndComposesEnvironment(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	exe := writeApp(t, dir, out, 3)
	rec := &recorder{}

	l := newLauncher(t, appstore.Application{
		Identifier:      "nuke_11",
		Label:           "Nuke 11",
		Path:            exe,
		LaunchArguments: []string{"--nukex"},
	}, WithNotifier(rec))

	res := l.Launch(context.Background(), "nuke_11", Request{TaskID: "task", File: "/work/comp_v001.nk", Wait: true})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Nuke 11 application started.", res.Message)
	assert.Equal(t, 3, res.ExitCode)
	assert.NotZero(t, res.PID)

	got := readLines(t, out)
	assert.Equal(t, "--nukex /work/comp_v001.nk", got["args"])
	assert.Equal(t, filepath.Join(dir, "bin"), got["cwd"])
	assert.Equal(t, "task", got["task"])
	assert.Equal(t, "1001", got["fs"])
	assert.Equal(t, "yes", got["inherited"])

	assert.Equal(t, []string{"application.launch"}, rec.topics)
}

func TestLaunchDetachedReturnsImmediately(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "out.txt")
	exe := writeApp(t, dir, out, 0)

	l := newLauncher(t, appstore.Application{Identifier: "maya_2018", Label: "Maya 2018", Path: exe})
	res := l.Launch(context.Background(), "maya_*", Request{})
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "Maya 2018 application started.", res.Message)

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(out); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("detached application never ran")
		}
		time.Sleep(20 * time.Millisecond)
	}
	assert.Equal(t, "", readLines(t, out)["args"])
}

func TestLaunchUnknownTaskFails(t *testing.T) {
	dir := t.TempDir()
	exe := writeApp(t, dir, filepath.Join(dir, "out.txt"), 0)
	l := newLauncher(t, appstore.Application{Identifier: "nuke_11", Label: "Nuke 11", Path: exe})

	res := l.Launch(context.Background(), "nuke_11", Request{TaskID: "nope"})
	assert.False(t, res.Success)
	assert.Equal(t, "Nuke 11 application could not be started.", res.Message)
}

func TestCommand(t *testing.T) {
	app := appstore.Application{Path: "/opt/nuke/Nuke11", LaunchArguments: []string{"--hiero"}}
	assert.Equal(t, []string{"/opt/nuke/Nuke11", "--hiero", "-x", "/f.nk"}, Command(app, Request{ExtraArgs: []string{"-x"}, File: "/f.nk"}))
	assert.Equal(t, []string{"/opt/nuke/Nuke11", "--hiero"}, Command(app, Request{}))
}
