package webhook

import (
	"fmt"

	"github.com/mattjoyce/contentful-listener/internal/config"
)

// FromGlobalConfig converts config.WebhookConfig to webhook.Config.
func FromGlobalConfig(wc *config.WebhookConfig) (Config, error) {
	if wc == nil {
		return Config{}, fmt.Errorf("webhook config is nil")
	}

	cfg := Config{
		Listen:          wc.Listen,
		Auth:            wc.Auth,
		MaxBodySize:     DefaultMaxBodySize,
		BodyReadTimeout: wc.BodyReadTimeout,
		FailurePolicy:   FailFast,
	}

	if wc.MaxBodySize != "" {
		size, err := config.ParseByteSize(wc.MaxBodySize)
		if err != nil {
			return Config{}, fmt.Errorf("invalid max_body_size %q: %w", wc.MaxBodySize, err)
		}
		cfg.MaxBodySize = size
	}

	switch wc.FailurePolicy {
	case "", config.PolicyFailFast:
	case config.PolicyReject:
		cfg.FailurePolicy = Reject
	default:
		return Config{}, fmt.Errorf("unknown failure_policy %q", wc.FailurePolicy)
	}

	return cfg, nil
}
