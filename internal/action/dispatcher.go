package action

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/mattjoyce/slate/internal/entity"
	"github.com/mattjoyce/slate/internal/events"
	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
	"github.com/mattjoyce/slate/internal/tracker"
)

// Dispatcher binds handlers to the bus. It keeps no per-event state: every
// round trip carries what it needs in the event itself.
type Dispatcher struct {
	bus      *events.Bus
	client   tracker.Client
	resolver *entity.Resolver
	logger   *slog.Logger

	mu       sync.RWMutex
	handlers map[string]Handler
}

// NewDispatcher creates a Dispatcher publishing on bus.
func NewDispatcher(bus *events.Bus, client tracker.Client) *Dispatcher {
	return &Dispatcher{
		bus:      bus,
		client:   client,
		resolver: entity.NewResolver(client),
		logger:   log.WithComponent("dispatcher"),
		handlers: make(map[string]Handler),
	}
}

// Register subscribes h to the discover topic and to launch events
// addressed to its identifier.
func (d *Dispatcher) Register(h Handler) error {
	desc := h.Descriptor()
	if desc.Identifier == "" {
		return ErrEmptyIdentifier
	}

	d.mu.Lock()
	if _, exists := d.handlers[desc.Identifier]; exists {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, desc.Identifier)
	}
	d.handlers[desc.Identifier] = h
	d.mu.Unlock()

	d.bus.Subscribe(protocol.TopicDiscover, nil, func(ctx context.Context, ev protocol.Event) (*protocol.Reply, error) {
		return d.discover(ctx, h, ev)
	})
	d.bus.Subscribe(protocol.TopicLaunch, events.ForAction(desc.Identifier), func(ctx context.Context, ev protocol.Event) (*protocol.Reply, error) {
		return d.launch(ctx, h, ev)
	})

	d.logger.Debug("registered action", "action", desc.Identifier, "label", desc.Label)
	return nil
}

// Descriptors lists registered actions sorted by identifier.
func (d *Dispatcher) Descriptors() []Descriptor {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]Descriptor, 0, len(d.handlers))
	for _, h := range d.handlers {
		out = append(out, h.Descriptor())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Identifier < out[j].Identifier })
	return out
}

func (d *Dispatcher) prepare(ctx context.Context, ev protocol.Event) (*Context, error) {
	entities, err := d.resolver.ResolveAll(ctx, ev.Data.Selection)
	if err != nil {
		return nil, err
	}
	return &Context{Event: ev, Entities: entities, Values: ev.Data.Values}, nil
}

func (d *Dispatcher) discover(ctx context.Context, h Handler, ev protocol.Event) (*protocol.Reply, error) {
	desc := h.Descriptor()
	logger := log.WithAction(desc.Identifier)

	actx, err := d.prepare(ctx, ev)
	if err != nil {
		var rerr *entity.ResolutionError
		if errors.As(err, &rerr) {
			logger.Debug("selection not resolvable, skipping", "error", err)
			return nil, nil
		}
		return nil, err
	}

	if adv, isAdv := h.(Advertiser); isAdv {
		items, err := adv.Advertise(ctx, actx)
		if err != nil {
			return nil, fmt.Errorf("%s advertise: %w", desc.Identifier, err)
		}
		if len(items) == 0 {
			return nil, nil
		}
		return protocol.ItemsReply(items), nil
	}

	ok, err := h.Discover(ctx, actx)
	if err != nil {
		return nil, fmt.Errorf("%s discover: %w", desc.Identifier, err)
	}
	if !ok {
		return nil, nil
	}
	return protocol.ItemsReply([]protocol.Item{desc.Item()}), nil
}

func (d *Dispatcher) launch(ctx context.Context, h Handler, ev protocol.Event) (*protocol.Reply, error) {
	desc := h.Descriptor()
	logger := log.WithAction(desc.Identifier)

	actx, err := d.prepare(ctx, ev)
	if err != nil {
		var rerr *entity.ResolutionError
		if errors.As(err, &rerr) {
			logger.Warn("selection not resolvable, ignoring launch", "error", err)
			return nil, nil
		}
		return nil, err
	}

	// Every launch goes through the interface first; a handler asks for
	// further pages by returning items for the values collected so far.
	items, err := h.Interface(ctx, actx)
	if err != nil {
		return nil, fmt.Errorf("%s interface: %w", desc.Identifier, err)
	}
	if len(items) > 0 {
		logger.Debug("returning interface", "items", len(items), "answered", len(actx.Values))
		return protocol.ItemsReply(items), nil
	}

	logger.Info("launching action", "user", actx.User(), "entities", len(actx.Entities))
	res, err := h.Launch(ctx, actx)
	if err != nil {
		return nil, err
	}
	return d.handleResult(ctx, desc, res)
}

// handleResult fills in the default message of a bare result and commits
// pending tracker changes. An explicit empty message is passed through.
func (d *Dispatcher) handleResult(ctx context.Context, desc Descriptor, res Result) (*protocol.Reply, error) {
	if res.bare {
		res.Message = protocol.DefaultLaunchMessage(desc.Label)
	}

	if err := d.client.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%s commit: %w", desc.Identifier, err)
	}
	return protocol.ResultReply(res.Success, res.Message), nil
}
