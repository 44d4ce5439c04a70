// Package action implements the discover / interface / launch lifecycle of
// user-invocable actions on the event bus.
package action

import (
	"context"
	"errors"

	"github.com/mattjoyce/slate/internal/entity"
	"github.com/mattjoyce/slate/internal/protocol"
)

var (
	// ErrMalformedResult is returned when a script's launch result carries
	// neither a bare success flag nor both success and message.
	ErrMalformedResult = protocol.ErrMalformedResult

	ErrDuplicateIdentifier = errors.New("duplicate action identifier")
	ErrEmptyIdentifier     = errors.New("action identifier is empty")
)

// Descriptor is the static description of an action.
type Descriptor struct {
	Identifier  string `json:"identifier" yaml:"identifier"`
	Label       string `json:"label" yaml:"label"`
	Variant     string `json:"variant,omitempty" yaml:"variant"`
	Description string `json:"description,omitempty" yaml:"description"`
	Icon        string `json:"icon,omitempty" yaml:"icon"`
}

// Item is the advertisement of d.
func (d Descriptor) Item() protocol.Item {
	return protocol.Item{
		ActionIdentifier: d.Identifier,
		Label:            d.Label,
		Variant:          d.Variant,
		Description:      d.Description,
		Icon:             d.Icon,
	}
}

// Context is what a handler sees of one event.
type Context struct {
	Event    protocol.Event
	Entities []entity.ResolvedEntity
	// Values holds every answer submitted so far; nil before the first
	// interface page is answered.
	Values map[string]any
}

// User returns the user that raised the event.
func (c *Context) User() string { return c.Event.Source.User }

// Value returns the string form of a submitted value.
func (c *Context) Value(name string) (string, bool) {
	v, ok := c.Values[name]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Single returns the only selected entity when exactly one is selected.
func (c *Context) Single() (entity.ResolvedEntity, bool) {
	if len(c.Entities) != 1 {
		return entity.ResolvedEntity{}, false
	}
	return c.Entities[0], true
}

// Result is the outcome of a launch.
type Result struct {
	Success bool
	Message string

	bare bool
}

// Bool is a result that carries only a success flag; the dispatcher
// supplies the message.
func Bool(ok bool) Result { return Result{Success: ok, bare: true} }

// Outcome is a result with an explicit message.
func Outcome(ok bool, message string) Result { return Result{Success: ok, Message: message} }

// Handler is one action.
//
// Discover errors are treated as "not applicable". Launch errors are
// handler defects and propagate to the bus unchanged; expected failures
// belong in Outcome(false, ...).
type Handler interface {
	Descriptor() Descriptor
	Discover(ctx context.Context, actx *Context) (bool, error)
	// Interface is called on every launch event with the values collected
	// so far. It returns the next form page, or nothing once every value
	// it needs is present, which launches.
	Interface(ctx context.Context, actx *Context) ([]protocol.Item, error)
	Launch(ctx context.Context, actx *Context) (Result, error)
}

// Advertiser is implemented by handlers that advertise more than their
// descriptor, such as one item per application. When present, Advertise is
// called in place of Discover and an empty list means not applicable.
type Advertiser interface {
	Advertise(ctx context.Context, actx *Context) ([]protocol.Item, error)
}

// Base supplies the descriptor and a no-op Interface. Embed it in handlers.
type Base struct {
	Desc Descriptor
}

// Descriptor returns the handler's descriptor.
func (b Base) Descriptor() Descriptor { return b.Desc }

// Interface returns no items.
func (Base) Interface(context.Context, *Context) ([]protocol.Item, error) { return nil, nil }
