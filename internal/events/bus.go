package events

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mattjoyce/slate/internal/log"
	"github.com/mattjoyce/slate/internal/protocol"
)

// Handler answers one event. A nil reply means the handler has nothing to
// say about it.
type Handler func(ctx context.Context, ev protocol.Event) (*protocol.Reply, error)

// Match narrows a subscription beyond its topic. nil matches everything.
type Match func(ev protocol.Event) bool

// ForAction matches launch events addressed to identifier.
func ForAction(identifier string) Match {
	return func(ev protocol.Event) bool {
		return ev.Data.ActionIdentifier == identifier
	}
}

type subscription struct {
	id      int
	topic   string
	match   Match
	handler Handler
}

// Bus delivers events to subscribed handlers synchronously, in subscription
// order, and collects their replies.
type Bus struct {
	hub    *Hub
	logger *slog.Logger

	mu     sync.RWMutex
	subs   []subscription
	nextID int
}

// NewBus returns a bus that mirrors every published event to hub. hub may
// be nil.
func NewBus(hub *Hub) *Bus {
	return &Bus{hub: hub, logger: log.WithComponent("bus")}
}

// Subscribe registers handler for topic. The returned func removes it.
func (b *Bus) Subscribe(topic string, match Match, handler Handler) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	id := b.nextID
	b.nextID++
	b.subs = append(b.subs, subscription{id: id, topic: topic, match: match, handler: handler})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, s := range b.subs {
			if s.id == id {
				b.subs = append(b.subs[:i:i], b.subs[i+1:]...)
				return
			}
		}
	}
}

// Subscribers returns the number of handlers registered for topic.
func (b *Bus) Subscribers(topic string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	n := 0
	for _, s := range b.subs {
		if s.topic == topic {
			n++
		}
	}
	return n
}

// Publish delivers ev to every matching handler and returns the non-nil
// replies in subscription order. Handler errors on the discover topic are
// logged and count as no advertisement; on other topics they are joined
// into the returned error.
func (b *Bus) Publish(ctx context.Context, ev protocol.Event) ([]protocol.Reply, error) {
	if ev.ID == "" {
		ev.ID = uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}
	if b.hub != nil {
		b.hub.Publish(ev.Topic, ev)
	}

	b.mu.RLock()
	targets := make([]subscription, 0, len(b.subs))
	for _, s := range b.subs {
		if s.topic == ev.Topic && (s.match == nil || s.match(ev)) {
			targets = append(targets, s)
		}
	}
	b.mu.RUnlock()

	var (
		replies []protocol.Reply
		errs    []error
	)
	for _, s := range targets {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		reply, err := s.handler(ctx, ev)
		if err != nil {
			if ev.Topic == protocol.TopicDiscover {
				b.logger.Warn("discover handler failed", "event_id", ev.ID, "error", err)
				continue
			}
			errs = append(errs, fmt.Errorf("%s handler: %w", ev.Topic, err))
			continue
		}
		if reply != nil {
			replies = append(replies, *reply)
		}
	}

	return replies, errors.Join(errs...)
}

// Items flattens the items of every reply.
func Items(replies []protocol.Reply) []protocol.Item {
	var out []protocol.Item
	for _, r := range replies {
		out = append(out, r.Items...)
	}
	return out
}
