package protocol

import (
	"encoding/json"
	"errors"
	"time"
)

// ScriptProtocolVersion is the request envelope version sent to action scripts.
const ScriptProtocolVersion = 1

// Script commands.
const (
	CommandDiscover  = "discover"
	CommandInterface = "interface"
	CommandLaunch    = "launch"
)

// ErrMalformedResult is returned when a launch result is neither a boolean
// nor an object carrying both "success" and "message".
var ErrMalformedResult = errors.New("malformed launch result")

// EntityRef is a resolved selection handed to action scripts.
type EntityRef struct {
	Type string `json:"type"`
	ID   string `json:"id"`
}

// ScriptRequest is written to an action script's stdin.
type ScriptRequest struct {
	Protocol   int         `json:"protocol"`
	Command    string      `json:"command"`
	Action     string      `json:"action"`
	Entities   []EntityRef `json:"entities"`
	Event      Event       `json:"event"`
	DeadlineAt time.Time   `json:"deadline_at"`
}

// ScriptResponse is read from an action script's stdout.
type ScriptResponse struct {
	// Accepts answers discover.
	Accepts bool `json:"accepts,omitempty"`
	// Items answers discover (extra advertisements) and interface.
	Items []Item `json:"items,omitempty"`
	// Result answers launch: a boolean or {success, message}.
	Result json.RawMessage `json:"result,omitempty"`
	Error  string          `json:"error,omitempty"`
	Logs   []LogEntry      `json:"logs,omitempty"`
}
