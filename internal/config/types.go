package config

import "time"

// Config represents the complete contentful-listener configuration.
type Config struct {
	Service ServiceConfig `yaml:"service"`
	Webhook WebhookConfig `yaml:"webhook"`
	Metrics MetricsConfig `yaml:"metrics,omitempty"`
}

// ServiceConfig defines core service settings.
type ServiceConfig struct {
	Name      string `yaml:"name"`
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`
}

// WebhookConfig defines the webhook listener.
type WebhookConfig struct {
	Listen string `yaml:"listen"`

	// Auth is the plaintext shared secret. When set, deliveries must carry
	// "Authorization: Basic base64(Auth)". Usually given as ${ENV_VAR}.
	Auth string `yaml:"auth,omitempty"`

	// MaxBodySize accepts plain bytes or KB/MB/GB suffixes (default: 1MB)
	MaxBodySize     string        `yaml:"max_body_size,omitempty"`
	BodyReadTimeout time.Duration `yaml:"body_read_timeout,omitempty"`

	// FailurePolicy is "fail_fast" or "reject".
	FailurePolicy string `yaml:"failure_policy,omitempty"`
}

// MetricsConfig defines the Prometheus exposition listener.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
}

// Failure policies.
const (
	PolicyFailFast = "fail_fast"
	PolicyReject   = "reject"
)

// Defaults returns a Config with sensible defaults.
func Defaults() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:      "contentful-listener",
			LogLevel:  "info",
			LogFormat: "json",
		},
		Webhook: WebhookConfig{
			Listen:          "127.0.0.1:8081",
			MaxBodySize:     "1MB",
			BodyReadTimeout: 10 * time.Second,
			FailurePolicy:   PolicyFailFast,
		},
		Metrics: MetricsConfig{
			Enabled: false,
			Listen:  "127.0.0.1:9091",
		},
	}
}
