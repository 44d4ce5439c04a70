package main

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/mattjoyce/slate/internal/jobs"
	"github.com/mattjoyce/slate/internal/storage"
)

func captureOutputWithExitCode(t *testing.T, run func() int) (int, string, string) {
	t.Helper()

	oldStdout := os.Stdout
	oldStderr := os.Stderr

	stdoutR, stdoutW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stdout failed: %v", err)
	}
	stderrR, stderrW, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe stderr failed: %v", err)
	}

	os.Stdout = stdoutW
	os.Stderr = stderrW

	outCh := make(chan []byte)
	errCh := make(chan []byte)
	go func() { b, _ := io.ReadAll(stdoutR); outCh <- b }()
	go func() { b, _ := io.ReadAll(stderrR); errCh <- b }()

	code := run()

	_ = stdoutW.Close()
	_ = stderrW.Close()
	os.Stdout = oldStdout
	os.Stderr = oldStderr

	stdout := <-outCh
	stderr := <-errCh
	_ = stdoutR.Close()
	_ = stderrR.Close()

	return code, string(stdout), string(stderr)
}

func runCaptured(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	return captureOutputWithExitCode(t, func() int { return runCLI(args) })
}

func setVersionMetadataForTest(t *testing.T, v, commit, built string) {
	t.Helper()

	origVersion, origCommit, origBuildDate := version, gitCommit, buildDate
	version, gitCommit, buildDate = v, commit, built
	t.Cleanup(func() {
		version, gitCommit, buildDate = origVersion, origCommit, origBuildDate
	})
}

const trackerFixture = `
schemas:
  - id: Task
    aliases:
      - name: task
contexts:
  - id: proj
    name: Alpha
    object_type: Project
    root: alpha
  - id: comp
    name: Comp
    object_type: Task
    type: Compositing
    parent_id: proj
`

// writeConfigDir creates a minimal, valid config directory.
func writeConfigDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"config.yaml": `
service:
  log_level: error
  shutdown_timeout: 5s
state:
  path: ./data/state.db
tracker:
  fixture: ./tracker.yaml
actions_dir:
  - ./actions
`,
		"tracker.yaml": trackerFixture,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(filepath.Join(dir, "actions"), 0o755); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestRunCLIUsage(t *testing.T) {
	code, _, _ := runCaptured(t)
	if code != 1 {
		t.Fatalf("no args: code = %d, want 1", code)
	}

	code, stdout, _ := runCaptured(t, "help")
	if code != 0 || !strings.Contains(stdout, "slate <noun> <action>") {
		t.Fatalf("help: code = %d, stdout = %q", code, stdout)
	}

	code, _, stderr := runCaptured(t, "bogus")
	if code != 1 || !strings.Contains(stderr, "Unknown command: bogus") {
		t.Fatalf("bogus: code = %d, stderr = %q", code, stderr)
	}
}

func TestNounDispatch(t *testing.T) {
	tests := []struct {
		args     []string
		wantCode int
		wantOut  string
	}{
		{[]string{"job", "help"}, 0, "Actions: list, show, watch, prune"},
		{[]string{"action", "--help"}, 0, "Actions: discover, launch"},
		{[]string{"config", "check", "--help"}, 0, "Exit codes:"},
		{[]string{"system", "start", "-h"}, 0, "Only one instance"},
		{[]string{"app"}, 1, ""},
		{[]string{"job", "frobnicate"}, 1, ""},
	}
	for _, tt := range tests {
		code, stdout, _ := runCaptured(t, tt.args...)
		if code != tt.wantCode {
			t.Errorf("%v: code = %d, want %d", tt.args, code, tt.wantCode)
		}
		if tt.wantOut != "" && !strings.Contains(stdout, tt.wantOut) {
			t.Errorf("%v: stdout %q missing %q", tt.args, stdout, tt.wantOut)
		}
	}
}

func TestRunVersionJSON(t *testing.T) {
	setVersionMetadataForTest(t, "1.2.3", "0123456789abcdef0123", "2026-03-01T10:00:00+02:00")

	code, stdout, _ := runCaptured(t, "version", "--json")
	if code != 0 {
		t.Fatalf("code = %d", code)
	}
	var info versionInfo
	if err := json.Unmarshal([]byte(stdout), &info); err != nil {
		t.Fatalf("decode %q: %v", stdout, err)
	}
	want := versionInfo{Version: "1.2.3", Commit: "0123456789ab", BuildTime: "2026-03-01T08:00:00Z"}
	if info != want {
		t.Fatalf("info = %+v, want %+v", info, want)
	}
}

func TestNormalizeBuildTimeUTC(t *testing.T) {
	if _, ok := normalizeBuildTimeUTC("unknown"); ok {
		t.Error("unknown accepted")
	}
	if _, ok := normalizeBuildTimeUTC("yesterday"); ok {
		t.Error("garbage accepted")
	}
	got, ok := normalizeBuildTimeUTC("2026-01-02T03:04:05.999Z")
	if !ok || got != "2026-01-02T03:04:05Z" {
		t.Errorf("got %q, %v", got, ok)
	}
}

func TestSelectionAndValueFlags(t *testing.T) {
	var sel selectionFlag
	if err := sel.Set("task:comp"); err != nil {
		t.Fatal(err)
	}
	for _, bad := range []string{"comp", ":comp", "task:"} {
		if err := sel.Set(bad); err == nil {
			t.Errorf("Set(%q) accepted", bad)
		}
	}
	if len(sel) != 1 || sel[0].EntityType != "task" || sel[0].EntityID != "comp" {
		t.Fatalf("sel = %+v", sel)
	}

	values := valuesFlag{}
	if err := values.Set("status=done"); err != nil {
		t.Fatal(err)
	}
	if err := values.Set("note=a=b"); err != nil {
		t.Fatal(err)
	}
	if err := values.Set("novalue"); err == nil {
		t.Error("missing = accepted")
	}
	if values["status"] != "done" || values["note"] != "a=b" {
		t.Fatalf("values = %v", values)
	}
}

func TestSplitFlagsAndPositionals(t *testing.T) {
	flags, pos := splitFlagsAndPositionals(
		[]string{"running-jobs", "--select", "task:comp", "--json", "--config=x", "--", "-odd"},
		map[string]bool{"select": true, "config": true},
	)
	wantFlags := []string{"--select", "task:comp", "--json", "--config=x"}
	if strings.Join(flags, " ") != strings.Join(wantFlags, " ") {
		t.Errorf("flags = %v", flags)
	}
	if strings.Join(pos, " ") != "running-jobs -odd" {
		t.Errorf("positionals = %v", pos)
	}
}

func TestConfigLockThenCheck(t *testing.T) {
	dir := writeConfigDir(t)

	code, stdout, stderr := runCaptured(t, "config", "lock", "--config", dir, "--dry-run")
	if code != 0 || !strings.Contains(stdout, "Dry run completed") {
		t.Fatalf("dry run: code = %d, stdout = %q, stderr = %q", code, stdout, stderr)
	}
	if _, err := os.Stat(filepath.Join(dir, ".checksums")); !os.IsNotExist(err) {
		t.Fatal("dry run wrote .checksums")
	}

	code, _, stderr = runCaptured(t, "config", "lock", "--config", dir)
	if code != 0 {
		t.Fatalf("lock: code = %d, stderr = %q", code, stderr)
	}

	code, stdout, stderr = runCaptured(t, "config", "check", "--config", dir)
	if code != 0 || !strings.Contains(stdout, "Validation: ✓") {
		t.Fatalf("check: code = %d, stdout = %q, stderr = %q", code, stdout, stderr)
	}

	cfgPath := filepath.Join(dir, "config.yaml")
	f, err := os.OpenFile(cfgPath, os.O_APPEND|os.O_WRONLY, 0)
	if err != nil {
		t.Fatal(err)
	}
	_, _ = f.WriteString("\n# tampered\n")
	_ = f.Close()

	code, stdout, _ = runCaptured(t, "config", "check", "--config", dir, "--json")
	if code != 1 {
		t.Fatalf("tampered check: code = %d, want 1", code)
	}
	if !strings.Contains(stdout, `"integrity"`) {
		t.Fatalf("tampered check output %q does not mention integrity", stdout)
	}
}

func TestConfigCheckStrict(t *testing.T) {
	dir := writeConfigDir(t)
	// The state directory does not exist yet, which is a warning.
	code, _, _ := runCaptured(t, "config", "check", "--config", dir, "--strict")
	if code != 2 {
		t.Fatalf("strict check: code = %d, want 2", code)
	}
}

func TestJobListAndShow(t *testing.T) {
	dir := writeConfigDir(t)
	ctx := context.Background()

	db, err := storage.OpenSQLite(ctx, filepath.Join(dir, "data", "state.db"))
	if err != nil {
		t.Fatal(err)
	}
	store := jobs.NewStore(db)
	id, err := store.Create(ctx, "Publish comp", "alice")
	if err != nil {
		t.Fatal(err)
	}
	if err := store.MarkRunning(ctx, id); err != nil {
		t.Fatal(err)
	}
	if err := store.Attach(ctx, id, "report", "/tmp/report.txt"); err != nil {
		t.Fatal(err)
	}
	if err := store.Finish(ctx, id, jobs.StatusDone, ""); err != nil {
		t.Fatal(err)
	}
	_ = db.Close()

	code, stdout, stderr := runCaptured(t, "job", "list", "--config", dir)
	if code != 0 {
		t.Fatalf("list: code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, id) || !strings.Contains(stdout, "Publish comp") {
		t.Fatalf("list output %q missing job", stdout)
	}

	code, stdout, _ = runCaptured(t, "job", "list", "--config", dir, "--status", "failed")
	if code != 0 || !strings.Contains(stdout, "No jobs.") {
		t.Fatalf("filtered list: code = %d, stdout = %q", code, stdout)
	}

	code, _, _ = runCaptured(t, "job", "list", "--config", dir, "--status", "sleeping")
	if code != 1 {
		t.Fatalf("bad status: code = %d, want 1", code)
	}

	code, stdout, _ = runCaptured(t, "job", "show", id, "--config", dir)
	if code != 0 {
		t.Fatalf("show: code = %d", code)
	}
	for _, want := range []string{"Status:      done", "report", "/tmp/report.txt"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("show output missing %q:\n%s", want, stdout)
		}
	}

	code, _, stderr = runCaptured(t, "job", "show", "nope", "--config", dir)
	if code != 1 || !strings.Contains(stderr, "not found") {
		t.Fatalf("missing job: code = %d, stderr = %q", code, stderr)
	}

	if code, _, _ = runCaptured(t, "job", "prune", "--config", dir); code != 1 {
		t.Fatalf("prune without --older-than: code = %d, want 1", code)
	}
	code, stdout, _ = runCaptured(t, "job", "prune", "--older-than", "1h", "--config", dir)
	if code != 0 || !strings.Contains(stdout, "Pruned 0 job(s)") {
		t.Fatalf("prune 1h: code = %d, stdout = %q", code, stdout)
	}
	code, stdout, _ = runCaptured(t, "job", "prune", "--older-than", "1ns", "--config", dir)
	if code != 0 || !strings.Contains(stdout, "Pruned 1 job(s)") {
		t.Fatalf("prune 1ns: code = %d, stdout = %q", code, stdout)
	}
}

func TestActionDiscoverAndLaunch(t *testing.T) {
	dir := writeConfigDir(t)

	code, _, _ := runCaptured(t, "action", "discover", "--config", dir)
	if code != 1 {
		t.Fatalf("discover without selection: code = %d, want 1", code)
	}

	code, stdout, stderr := runCaptured(t, "action", "discover", "--config", dir, "--select", "task:comp")
	if code != 0 {
		t.Fatalf("discover: code = %d, stderr = %q", code, stderr)
	}
	if !strings.Contains(stdout, "running-jobs") {
		t.Fatalf("discover output %q missing running-jobs", stdout)
	}

	code, stdout, _ = runCaptured(t, "action", "launch", "running-jobs", "--config", dir, "--select", "task:comp")
	if code != 0 || !strings.Contains(stdout, "status") {
		t.Fatalf("launch without values: code = %d, stdout = %q", code, stdout)
	}

	code, stdout, _ = runCaptured(t, "action", "launch", "running-jobs",
		"--config", dir, "--select", "task:comp", "--value", "status=done")
	if code != 0 || !strings.Contains(stdout, "OK:") {
		t.Fatalf("launch with values: code = %d, stdout = %q", code, stdout)
	}

	code, _, _ = runCaptured(t, "action", "launch", "no.such.action", "--config", dir, "--select", "task:comp")
	if code != 1 {
		t.Fatalf("unknown action: code = %d, want 1", code)
	}
}

func TestJobWatchNeedsToken(t *testing.T) {
	t.Setenv("SLATE_API_TOKEN", "")
	code, _, stderr := runCaptured(t, "job", "watch")
	if code != 1 || !strings.Contains(stderr, "token required") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}

	// Captured stdout is a pipe.
	code, _, stderr = runCaptured(t, "job", "watch", "--token", "abc")
	if code != 1 || !strings.Contains(stderr, "interactive terminal") {
		t.Fatalf("code = %d, stderr = %q", code, stderr)
	}
}

func TestFormatDuration(t *testing.T) {
	tests := map[time.Duration]string{
		0:                             "-",
		1500 * time.Millisecond:       "1.5s",
		2*time.Minute + 5*time.Second: "2m05s",
		3*time.Hour + 7*time.Minute:   "3h07m",
	}
	for d, want := range tests {
		if got := formatDuration(d); got != want {
			t.Errorf("formatDuration(%v) = %q, want %q", d, got, want)
		}
	}
}
