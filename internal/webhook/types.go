package webhook

import (
	"context"

	"github.com/mattjoyce/slate/internal/protocol"
)

// EventPublisher delivers a verified event and collects replies.
type EventPublisher interface {
	Publish(ctx context.Context, ev protocol.Event) ([]protocol.Reply, error)
}

// Config holds webhook server configuration.
type Config struct {
	Listen    string
	Endpoints []EndpointConfig
}

// EndpointConfig is one signed ingress path.
type EndpointConfig struct {
	Path            string
	Secret          string
	SignatureHeader string
	MaxBodySize     int64
	// Topics the endpoint may publish. Empty means DefaultTopics.
	Topics []string
}

// Response is the body returned for an accepted event.
type Response struct {
	EventID string           `json:"event_id"`
	Replies []protocol.Reply `json:"replies"`
}

// ErrorResponse is the body returned for rejected requests.
type ErrorResponse struct {
	Error string `json:"error"`
}

const DefaultMaxBodySize = 1 << 20

// DefaultTopics are accepted when an endpoint lists none.
var DefaultTopics = []string{protocol.TopicDiscover, protocol.TopicLaunch}

var knownTopics = map[string]bool{
	protocol.TopicDiscover:          true,
	protocol.TopicLaunch:            true,
	protocol.TopicApplicationLaunch: true,
}
