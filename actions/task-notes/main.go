// Command task-notes is a slate script action that files a short note
// against a single task. Notes are written to
// $SLATE_NOTES_DIR/<task id>/<timestamp>-<id>.md.
package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/slate/internal/protocol"
)

var noteKinds = []protocol.Option{
	{Label: "Note", Value: "note"},
	{Label: "Blocker", Value: "blocker"},
	{Label: "Client feedback", Value: "feedback"},
}

func main() {
	resp := handle(os.Stdin, notesDir(), time.Now)
	_ = json.NewEncoder(os.Stdout).Encode(resp)
}

func notesDir() string {
	if dir := strings.TrimSpace(os.Getenv("SLATE_NOTES_DIR")); dir != "" {
		return dir
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "slate-notes")
	}
	return filepath.Join(home, ".slate", "notes")
}

func handle(r io.Reader, dir string, now func() time.Time) protocol.ScriptResponse {
	var req protocol.ScriptRequest
	if err := json.NewDecoder(r).Decode(&req); err != nil {
		return errResp(fmt.Sprintf("invalid request JSON: %v", err))
	}
	if req.Protocol != protocol.ScriptProtocolVersion {
		return errResp(fmt.Sprintf("unsupported protocol version %d", req.Protocol))
	}

	switch req.Command {
	case protocol.CommandDiscover:
		_, ok := singleTask(req.Entities)
		return protocol.ScriptResponse{Accepts: ok}
	case protocol.CommandInterface:
		if strings.TrimSpace(asString(req.Event.Data.Values["note"])) != "" {
			return protocol.ScriptResponse{}
		}
		return protocol.ScriptResponse{Items: []protocol.Item{
			{Type: "label", Value: "Add a note to the task."},
			{Type: "enumerator", Name: "kind", Label: "Kind", Value: "note", Data: noteKinds},
			{Type: "text", Name: "note", Label: "Note"},
		}}
	case protocol.CommandLaunch:
		return launch(req, dir, now())
	default:
		return errResp(fmt.Sprintf("unknown command: %s", req.Command))
	}
}

func launch(req protocol.ScriptRequest, dir string, at time.Time) protocol.ScriptResponse {
	taskID, ok := singleTask(req.Entities)
	if !ok {
		return result(false, "Select exactly one task.")
	}
	text := strings.TrimSpace(asString(req.Event.Data.Values["note"]))
	if text == "" {
		return result(false, "The note is empty.")
	}
	kind := asString(req.Event.Data.Values["kind"])
	if !validKind(kind) {
		kind = "note"
	}

	path, err := writeNote(filepath.Join(dir, taskID), note{
		Kind: kind,
		User: req.Event.Source.User,
		At:   at.UTC(),
		Text: text,
	})
	if err != nil {
		resp := result(false, "The note could not be saved.")
		resp.Logs = append(resp.Logs, protocol.LogEntry{Level: "error", Message: err.Error()})
		return resp
	}

	resp := result(true, fmt.Sprintf("Saved %s for task %s.", kind, taskID))
	resp.Logs = []protocol.LogEntry{{Level: "info", Message: "wrote " + path}}
	return resp
}

type note struct {
	Kind string
	User string
	At   time.Time
	Text string
}

func writeNote(dir string, n note) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create notes dir: %w", err)
	}
	name := fmt.Sprintf("%s-%s.md", n.At.Format("20060102T150405Z"), uuid.NewString()[:8])
	path := filepath.Join(dir, name)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", strings.ToUpper(n.Kind[:1])+n.Kind[1:])
	if n.User != "" {
		fmt.Fprintf(&b, "- user: %s\n", n.User)
	}
	fmt.Fprintf(&b, "- at: %s\n\n%s\n", n.At.Format(time.RFC3339), n.Text)

	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write note: %w", err)
	}
	return path, nil
}

func singleTask(entities []protocol.EntityRef) (string, bool) {
	if len(entities) != 1 || !strings.EqualFold(entities[0].Type, "Task") {
		return "", false
	}
	return entities[0].ID, true
}

func validKind(kind string) bool {
	for _, k := range noteKinds {
		if k.Value == kind {
			return true
		}
	}
	return false
}

func result(success bool, message string) protocol.ScriptResponse {
	raw, _ := json.Marshal(map[string]any{"success": success, "message": message})
	return protocol.ScriptResponse{Result: raw}
}

func errResp(message string) protocol.ScriptResponse {
	return protocol.ScriptResponse{
		Error: message,
		Logs:  []protocol.LogEntry{{Level: "error", Message: message}},
	}
}

func asString(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	default:
		return fmt.Sprint(t)
	}
}
