package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// DecodeEvent reads one event from r. Unknown fields are rejected.
func DecodeEvent(r io.Reader) (*Event, error) {
	var ev Event

	decoder := json.NewDecoder(r)
	decoder.DisallowUnknownFields()

	if err := decoder.Decode(&ev); err != nil {
		return nil, fmt.Errorf("failed to decode event: %w", err)
	}

	if ev.Topic == "" {
		return nil, fmt.Errorf("event missing required field: topic")
	}
	if ev.Topic == TopicLaunch && ev.Data.ActionIdentifier == "" {
		return nil, fmt.Errorf("launch event missing data.actionIdentifier")
	}
	for i, sel := range ev.Data.Selection {
		if sel.EntityType == "" || sel.EntityID == "" {
			return nil, fmt.Errorf("selection[%d]: entityType and entityId are required", i)
		}
	}

	return &ev, nil
}

// EncodeScriptRequest serializes req and writes it to w.
func EncodeScriptRequest(w io.Writer, req *ScriptRequest) error {
	if req.Protocol != ScriptProtocolVersion {
		return fmt.Errorf("unsupported protocol version: %d", req.Protocol)
	}
	switch req.Command {
	case CommandDiscover, CommandInterface, CommandLaunch:
	default:
		return fmt.Errorf("unsupported command: %q", req.Command)
	}

	if err := json.NewEncoder(w).Encode(req); err != nil {
		return fmt.Errorf("failed to encode request: %w", err)
	}
	return nil
}

// DecodeScriptResponseLenient reads a script response, tolerating unknown
// fields. The raw bytes are returned alongside any error for diagnostics.
func DecodeScriptResponseLenient(r io.Reader) (*ScriptResponse, []byte, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read response: %w", err)
	}

	if len(bytes.TrimSpace(data)) == 0 {
		return nil, data, fmt.Errorf("action produced no output on stdout")
	}

	var resp ScriptResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		return nil, data, fmt.Errorf("action output is not valid JSON: %w", err)
	}

	return &resp, data, nil
}

// DecodeResult normalizes a raw launch result. A bare boolean becomes
// {success, "<label> launched successfully."}; an object must carry both
// "success" and "message".
func DecodeResult(raw json.RawMessage, label string) (bool, string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return false, "", fmt.Errorf("%w: empty result", ErrMalformedResult)
	}

	var b bool
	if err := json.Unmarshal(raw, &b); err == nil {
		return b, DefaultLaunchMessage(label), nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return false, "", fmt.Errorf("%w: result must be bool or object", ErrMalformedResult)
	}
	for _, key := range []string{"success", "message"} {
		if _, ok := obj[key]; !ok {
			return false, "", fmt.Errorf("%w: missing required key: %s", ErrMalformedResult, key)
		}
	}

	var success bool
	if err := json.Unmarshal(obj["success"], &success); err != nil {
		return false, "", fmt.Errorf("%w: success must be a boolean", ErrMalformedResult)
	}
	var message string
	if err := json.Unmarshal(obj["message"], &message); err != nil {
		return false, "", fmt.Errorf("%w: message must be a string", ErrMalformedResult)
	}
	return success, message, nil
}

// DefaultLaunchMessage is the message attached to a bare boolean result.
func DefaultLaunchMessage(label string) string {
	return fmt.Sprintf("%s launched successfully.", label)
}
