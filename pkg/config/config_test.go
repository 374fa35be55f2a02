package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 60
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 50
	cfg.RateLimiting.WebSocket.Burst = 100
	cfg.RateLimiting.WebSocket.MaxConcurrent = 10
	cfg.RateLimiting.WebSocket.MaxMessageSizeBytes = 65536
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	// Zero out rate limiting values to ensure they are ignored when disabled.
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.WebSocket.ConnectionsPerMinute = 0
	cfg.RateLimiting.WebSocket.MessagesPerSecond = 0
	cfg.RateLimiting.WebSocket.Burst = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "http rps must be > 0",
			mutate: func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 },
		},
		{
			name:   "http burst must be > 0",
			mutate: func(c *Config) { c.RateLimiting.HTTP.Burst = 0 },
		},
		{
			name:   "ws messages per second must be > 0",
			mutate: func(c *Config) { c.RateLimiting.WebSocket.MessagesPerSecond = 0 },
		},
		{
			name:   "ws max message size must be >= 0",
			mutate: func(c *Config) { c.RateLimiting.WebSocket.MaxMessageSizeBytes = -1 },
		},
		{
			name:   "pong timeout must exceed ping interval",
			mutate: func(c *Config) { c.Signal.PongTimeout = c.Signal.PingInterval },
		},
		{
			name:   "signal path must be absolute",
			mutate: func(c *Config) { c.Signal.Path = "ws" },
		},
		{
			name:   "send buffer must be > 0",
			mutate: func(c *Config) { c.Signal.SendBufferSize = 0 },
		},
		{
			name:   "mailbox must be > 0",
			mutate: func(c *Config) { c.Rooms.MailboxSize = 0 },
		},
		{
			name:   "canvas width must be > 0",
			mutate: func(c *Config) { c.Canvas.Width = 0 },
		},
		{
			name:   "canvas too large",
			mutate: func(c *Config) { c.Canvas.Height = 10000 },
		},
		{
			name:   "negative autosave interval",
			mutate: func(c *Config) { c.Canvas.AutosaveInterval = -time.Second },
		},
		{
			name:   "retry max delay below initial delay",
			mutate: func(c *Config) { c.Reliability.Retry.MaxDelay = time.Millisecond },
		},
		{
			name:   "breaker needs a failure threshold",
			mutate: func(c *Config) { c.Reliability.Breaker.FailureThreshold = 0 },
		},
		{
			name:   "jwt secret required",
			mutate: func(c *Config) { c.Auth.JWTSecret = "" },
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
		},
		{
			name: "redis address required when enabled",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Address = ""
			},
		},
		{
			name: "tracing sample rate out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 1.5
			},
		},
		{
			name: "discovery service required when enabled",
			mutate: func(c *Config) {
				c.Discovery.Enabled = true
				c.Discovery.Service = ""
			},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Canvas.Width != 1280 || cfg.Canvas.Height != 720 {
		t.Fatalf("unexpected canvas defaults: %dx%d", cfg.Canvas.Width, cfg.Canvas.Height)
	}
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: ":9090"
rooms:
  idle_timeout: 30s
canvas:
  width: 800
  height: 600
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9090" {
		t.Errorf("address = %q, want :9090", cfg.Server.Address)
	}
	if cfg.Rooms.IdleTimeout != 30*time.Second {
		t.Errorf("idle timeout = %v, want 30s", cfg.Rooms.IdleTimeout)
	}
	if cfg.Canvas.Width != 800 || cfg.Canvas.Height != 600 {
		t.Errorf("canvas = %dx%d, want 800x600", cfg.Canvas.Width, cfg.Canvas.Height)
	}
	// untouched sections keep their defaults
	if cfg.Signal.SendBufferSize != 256 {
		t.Errorf("send buffer = %d, want 256", cfg.Signal.SendBufferSize)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	t.Setenv("SKETCHROOM_SERVER_ADDRESS", ":7000")
	t.Setenv("SKETCHROOM_REDIS_ADDRESS", "redis:6379")
	t.Setenv("SKETCHROOM_DISCOVERY", "true")

	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":7000" {
		t.Errorf("address = %q, want :7000", cfg.Server.Address)
	}
	if !cfg.Redis.Enabled || cfg.Redis.Address != "redis:6379" {
		t.Errorf("redis override not applied: %+v", cfg.Redis)
	}
	if !cfg.Discovery.Enabled {
		t.Errorf("discovery override not applied")
	}
}
