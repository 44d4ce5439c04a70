package scripts

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/mattjoyce/slate/internal/action"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
)

// Timeouts bounds each command of a script.
type Timeouts struct {
	Discover  time.Duration `yaml:"discover"`
	Interface time.Duration `yaml:"interface"`
	Launch    time.Duration `yaml:"launch"`
}

// DefaultTimeouts are used for commands without a configured timeout.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Discover:  10 * time.Second,
		Interface: 10 * time.Second,
		Launch:    120 * time.Second,
	}
}

func (t Timeouts) forCommand(command string) time.Duration {
	d := DefaultTimeouts()
	switch command {
	case protocol.CommandDiscover:
		if t.Discover > 0 {
			return t.Discover
		}
		return d.Discover
	case protocol.CommandInterface:
		if t.Interface > 0 {
			return t.Interface
		}
		return d.Interface
	default:
		if t.Launch > 0 {
			return t.Launch
		}
		return d.Launch
	}
}

// Handler adapts a Script to action.Handler.
type Handler struct {
	script   *Script
	timeouts Timeouts
	logger   *slog.Logger
}

var (
	_ action.Handler    = (*Handler)(nil)
	_ action.Advertiser = (*Handler)(nil)
)

// NewHandler wraps s.
func NewHandler(s *Script, timeouts Timeouts) *Handler {
	return &Handler{
		script:   s,
		timeouts: timeouts,
		logger:   log.WithAction(s.Identifier),
	}
}

// Descriptor returns the manifest descriptor.
func (h *Handler) Descriptor() action.Descriptor { return h.script.Descriptor }

// Discover asks the script whether it applies. Scripts without a discover
// command always apply.
func (h *Handler) Discover(ctx context.Context, actx *action.Context) (bool, error) {
	if !h.script.Supports(protocol.CommandDiscover) {
		return true, nil
	}
	resp, err := h.call(ctx, protocol.CommandDiscover, actx)
	if err != nil {
		return false, err
	}
	return resp.Accepts, nil
}

// Advertise runs discover once and returns the script's own items, or the
// descriptor item when it accepts without any.
func (h *Handler) Advertise(ctx context.Context, actx *action.Context) ([]protocol.Item, error) {
	if !h.script.Supports(protocol.CommandDiscover) {
		return []protocol.Item{h.script.Item()}, nil
	}
	resp, err := h.call(ctx, protocol.CommandDiscover, actx)
	if err != nil {
		return nil, err
	}
	if !resp.Accepts {
		return nil, nil
	}
	if len(resp.Items) == 0 {
		return []protocol.Item{h.script.Item()}, nil
	}
	items := make([]protocol.Item, len(resp.Items))
	for i, it := range resp.Items {
		if it.ActionIdentifier == "" {
			it.ActionIdentifier = h.script.Identifier
		}
		items[i] = it
	}
	return items, nil
}

// Interface returns the script's form items.
func (h *Handler) Interface(ctx context.Context, actx *action.Context) ([]protocol.Item, error) {
	if !h.script.Supports(protocol.CommandInterface) {
		return nil, nil
	}
	resp, err := h.call(ctx, protocol.CommandInterface, actx)
	if err != nil {
		return nil, err
	}
	return resp.Items, nil
}

// Launch runs the script. Spawn failures and script-reported errors become
// unsuccessful results; a malformed result is returned as an error.
func (h *Handler) Launch(ctx context.Context, actx *action.Context) (action.Result, error) {
	resp, err := h.call(ctx, protocol.CommandLaunch, actx)
	if err != nil {
		return action.Outcome(false, fmt.Sprintf("%s failed: %v", h.script.Label, err)), nil
	}
	ok, message, err := protocol.DecodeResult(resp.Result, h.script.Label)
	if err != nil {
		return action.Result{}, fmt.Errorf("%s: %w", h.script.Identifier, err)
	}
	return action.Outcome(ok, message), nil
}

func (h *Handler) call(ctx context.Context, command string, actx *action.Context) (*protocol.ScriptResponse, error) {
	timeout := h.timeouts.forCommand(command)
	req := &protocol.ScriptRequest{
		Protocol:   protocol.ScriptProtocolVersion,
		Command:    command,
		Action:     h.script.Identifier,
		Event:      actx.Event,
		DeadlineAt: time.Now().Add(timeout).UTC(),
	}
	for _, e := range actx.Entities {
		req.Entities = append(req.Entities, protocol.EntityRef{Type: e.Type, ID: e.ID})
	}

	resp, stderr, err := run(ctx, h.script.Entrypoint, h.script.Dir, req, timeout, h.logger)
	if stderr != "" {
		h.logger.Debug("action script stderr", "command", command, "stderr", stderr)
	}
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", h.script.Identifier, command, err)
	}
	h.forwardLogs(resp.Logs)
	if resp.Error != "" {
		return nil, fmt.Errorf("%s %s: %s", h.script.Identifier, command, resp.Error)
	}
	return resp, nil
}

func (h *Handler) forwardLogs(entries []protocol.LogEntry) {
	for _, e := range entries {
		switch e.Level {
		case "debug":
			h.logger.Debug(e.Message, "source", "script")
		case "warn":
			h.logger.Warn(e.Message, "source", "script")
		case "error":
			h.logger.Error(e.Message, "source", "script")
		default:
			h.logger.Info(e.Message, "source", "script")
		}
	}
}

// Register discovers scripts under roots and registers each with d.
// timeouts maps action identifiers to per-command timeouts.
func Register(d *action.Dispatcher, roots []string, timeouts map[string]Timeouts) ([]*Script, error) {
	found, err := Discover(roots, log.WithComponent("scripts"))
	if err != nil {
		return nil, err
	}
	registered := make([]*Script, 0, len(found))
	for _, s := range found {
		if err := d.Register(NewHandler(s, timeouts[s.Identifier])); err != nil {
			log.WithComponent("scripts").Warn("action not registered", "action", s.Identifier, "error", err)
			continue
		}
		registered = append(registered, s)
	}
	return registered, nil
}
