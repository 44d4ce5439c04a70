package webhook

import (
	"fmt"
	"strings"

	"github.com/dustin/go-humanize"

	"github.com/mattjoyce/slate/internal/config"
)

// FromConfig converts the webhooks section of the slate config. Sizes such
// as "512KB" or "2MiB" are parsed; topics are checked against the bus
// topics.
func FromConfig(wc config.WebhooksConfig) (Config, error) {
	cfg := Config{
		Listen:    wc.Listen,
		Endpoints: make([]EndpointConfig, 0, len(wc.Endpoints)),
	}

	for _, ep := range wc.Endpoints {
		if ep.Secret == "" {
			return Config{}, fmt.Errorf("webhook endpoint %q: no secret configured", ep.Path)
		}
		size, err := parseMaxBodySize(ep.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("webhook endpoint %q: invalid max_body_size %q: %w", ep.Path, ep.MaxBodySize, err)
		}
		for _, topic := range ep.Topics {
			if !knownTopics[topic] {
				return Config{}, fmt.Errorf("webhook endpoint %q: unknown topic %q", ep.Path, topic)
			}
		}

		cfg.Endpoints = append(cfg.Endpoints, EndpointConfig{
			Path:            ep.Path,
			Secret:          ep.Secret,
			SignatureHeader: ep.SignatureHeader,
			MaxBodySize:     size,
			Topics:          ep.Topics,
		})
	}
	return cfg, nil
}

func parseMaxBodySize(size string) (int64, error) {
	size = strings.TrimSpace(size)
	if size == "" {
		return DefaultMaxBodySize, nil
	}
	n, err := humanize.ParseBytes(size)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > 1<<30 {
		return 0, fmt.Errorf("size must be between 1B and 1GiB")
	}
	return int64(n), nil
}
