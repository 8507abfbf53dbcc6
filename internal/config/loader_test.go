package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoad(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		env     map[string]string
		wantErr string
		checkFn func(t *testing.T, cfg *Config)
	}{
		{
			name: "minimal valid config",
			yaml: `
webhook:
  listen: 127.0.0.1:9000
`,
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Webhook.Listen != "127.0.0.1:9000" {
					t.Error("webhook.listen not parsed")
				}
				if cfg.Webhook.Auth != "" {
					t.Errorf("auth = %q, want empty", cfg.Webhook.Auth)
				}
				if cfg.Webhook.FailurePolicy != PolicyFailFast {
					t.Errorf("failure_policy = %q, want default %q", cfg.Webhook.FailurePolicy, PolicyFailFast)
				}
				if cfg.Webhook.MaxBodySize != "1MB" {
					t.Errorf("max_body_size = %q, want 1MB", cfg.Webhook.MaxBodySize)
				}
				if cfg.Webhook.BodyReadTimeout != 10*time.Second {
					t.Errorf("body_read_timeout = %v, want 10s", cfg.Webhook.BodyReadTimeout)
				}
				if cfg.Service.LogLevel != "info" || cfg.Service.LogFormat != "json" {
					t.Errorf("service defaults not applied: %+v", cfg.Service)
				}
			},
		},
		{
			name: "env var interpolation",
			yaml: `
service:
  log_level: debug
  log_format: text
webhook:
  listen: 127.0.0.1:8081
  auth: ${CFL_TEST_SECRET}
  max_body_size: 256KB
  body_read_timeout: 3s
  failure_policy: reject
metrics:
  enabled: true
  listen: 127.0.0.1:9091
`,
			env: map[string]string{"CFL_TEST_SECRET": "s3cret"},
			checkFn: func(t *testing.T, cfg *Config) {
				if cfg.Webhook.Auth != "s3cret" {
					t.Errorf("auth = %q, want interpolated secret", cfg.Webhook.Auth)
				}
				if cfg.Webhook.FailurePolicy != PolicyReject {
					t.Errorf("failure_policy = %q", cfg.Webhook.FailurePolicy)
				}
				if cfg.Webhook.BodyReadTimeout != 3*time.Second {
					t.Errorf("body_read_timeout = %v", cfg.Webhook.BodyReadTimeout)
				}
				if !cfg.Metrics.Enabled {
					t.Error("metrics.enabled not parsed")
				}
			},
		},
		{
			name: "unset auth env var",
			yaml: `
webhook:
  listen: 127.0.0.1:8081
  auth: ${CFL_TEST_DEFINITELY_UNSET}
`,
			wantErr: "CFL_TEST_DEFINITELY_UNSET",
		},
		{
			name: "bad log level",
			yaml: `
service:
  log_level: loud
webhook:
  listen: 127.0.0.1:8081
`,
			wantErr: "service.log_level",
		},
		{
			name: "bad failure policy",
			yaml: `
webhook:
  listen: 127.0.0.1:8081
  failure_policy: explode
`,
			wantErr: "webhook.failure_policy",
		},
		{
			name: "bad body size",
			yaml: `
webhook:
  listen: 127.0.0.1:8081
  max_body_size: lots
`,
			wantErr: "webhook.max_body_size",
		},
		{
			name: "metrics on webhook address",
			yaml: `
webhook:
  listen: 127.0.0.1:8081
metrics:
  enabled: true
  listen: 127.0.0.1:8081
`,
			wantErr: "metrics.listen",
		},
		{
			name:    "malformed yaml",
			yaml:    "webhook: [",
			wantErr: "failed to parse YAML",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}

			path := filepath.Join(t.TempDir(), "config.yaml")
			if err := os.WriteFile(path, []byte(tt.yaml), 0o644); err != nil {
				t.Fatal(err)
			}

			cfg, err := Load(path)
			if tt.wantErr != "" {
				if err == nil {
					t.Fatalf("Load() error = nil, want error containing %q", tt.wantErr)
				}
				if !strings.Contains(err.Error(), tt.wantErr) {
					t.Fatalf("Load() error = %v, want it to contain %q", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			tt.checkFn(t, cfg)
		})
	}
}

func TestLoadDirectory(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("webhook:\n  listen: 127.0.0.1:7000\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(dir)
	if err != nil {
		t.Fatalf("Load(dir) error = %v", err)
	}
	if cfg.Webhook.Listen != "127.0.0.1:7000" {
		t.Errorf("listen = %q", cfg.Webhook.Listen)
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || !strings.Contains(err.Error(), "config file not found") {
		t.Fatalf("Load() error = %v, want not found", err)
	}
}

func TestDiscoverConfigPathEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("{}"), 0o644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONTENTFUL_LISTENER_CONFIG", path)

	got, err := DiscoverConfigPath()
	if err != nil {
		t.Fatalf("DiscoverConfigPath() error = %v", err)
	}
	if got != path {
		t.Errorf("DiscoverConfigPath() = %q, want %q", got, path)
	}
}
