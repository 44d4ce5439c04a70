package protocol

import "time"

// Event bus topics.
const (
	TopicDiscover          = "action.discover"
	TopicLaunch            = "action.launch"
	TopicApplicationLaunch = "application.launch"
)

// SelectionReference is a caller-supplied pointer at one entity. EntityType
// is loosely typed ("task", "assetversion", "TypedContext").
type SelectionReference struct {
	EntityType   string `json:"entityType"`
	EntityID     string `json:"entityId"`
	ObjectTypeID string `json:"objectTypeId,omitempty"`
}

// Source identifies who raised an event.
type Source struct {
	User string `json:"user,omitempty"`
}

// EventData is the payload of discover and launch events.
type EventData struct {
	ActionIdentifier      string               `json:"actionIdentifier,omitempty"`
	ApplicationIdentifier string               `json:"applicationIdentifier,omitempty"`
	Selection             []SelectionReference `json:"selection,omitempty"`
	// Values carries form input echoed back by the caller after an
	// interface round. nil means no input has been collected yet.
	Values map[string]any `json:"values,omitempty"`
}

// Event is a message on the bus.
type Event struct {
	ID        string    `json:"id,omitempty"`
	Topic     string    `json:"topic"`
	Source    Source    `json:"source"`
	Data      EventData `json:"data"`
	Timestamp time.Time `json:"timestamp,omitempty"`
}

// Option is one choice of an enumerator item.
type Option struct {
	Label string `json:"label"`
	Value any    `json:"value"`
}

// Item is either an action advertisement or an interface form field.
type Item struct {
	// Advertisement fields.
	ActionIdentifier      string `json:"actionIdentifier,omitempty"`
	ApplicationIdentifier string `json:"applicationIdentifier,omitempty"`
	Label                 string `json:"label,omitempty"`
	Variant               string `json:"variant,omitempty"`
	Description           string `json:"description,omitempty"`
	Icon                  string `json:"icon,omitempty"`

	// Form fields.
	Type  string   `json:"type,omitempty"` // enumerator | text | boolean | label | hidden
	Name  string   `json:"name,omitempty"`
	Value any      `json:"value,omitempty"`
	Data  []Option `json:"data,omitempty"`
}

// Reply is what a handler returns to the caller of an event. It carries
// either items (advertisement or interface) or a launch result.
type Reply struct {
	Items   []Item `json:"items,omitempty"`
	Success *bool  `json:"success,omitempty"`
	Message string `json:"message,omitempty"`
}

// ItemsReply wraps items in a Reply.
func ItemsReply(items []Item) *Reply {
	return &Reply{Items: items}
}

// ResultReply builds a launch result Reply.
func ResultReply(success bool, message string) *Reply {
	return &Reply{Success: &success, Message: message}
}

// IsResult reports whether the reply is a launch result.
func (r *Reply) IsResult() bool {
	return r != nil && r.Success != nil
}

// Succeeded reports whether the reply is a successful launch result.
func (r *Reply) Succeeded() bool {
	return r.IsResult() && *r.Success
}

// LogEntry is a log line emitted by an action script.
type LogEntry struct {
	Level   string `json:"level"` // info | warn | error | debug
	Message string `json:"message"`
}
