package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
gateway:
  url: wss://gateway.example
  api_base_url: https://api.example
  token: tok-123
identity:
  user_id: "100"
  owner_id: "200"
  game_bot_id: "300"
catcher:
  enabled: true
  typo_rate: 10
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadDefaults(t *testing.T) {
	c, err := Load(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if c.Identity.Prefix != "." {
		t.Errorf("prefix = %q, want %q", c.Identity.Prefix, ".")
	}
	if c.Catcher.CatchRate != 100 {
		t.Errorf("catch_rate = %d, want 100", c.Catcher.CatchRate)
	}
	if c.Catcher.ConfidenceThreshold != 25 {
		t.Errorf("confidence_threshold = %d, want 25", c.Catcher.ConfidenceThreshold)
	}
	if c.Catcher.MaxDuplicates != 5 {
		t.Errorf("max_duplicates = %d, want 5", c.Catcher.MaxDuplicates)
	}
	if c.Market.DefaultInterval != 5*time.Minute {
		t.Errorf("default_interval = %v, want 5m", c.Market.DefaultInterval)
	}
	if c.Market.DefaultMarkup != 50 {
		t.Errorf("default_markup = %d, want 50", c.Market.DefaultMarkup)
	}
	if c.Storage.Backend != "sqlite" {
		t.Errorf("backend = %q, want sqlite", c.Storage.Backend)
	}
	if c.Storage.SQLitePath != "pokeball.db" {
		t.Errorf("sqlite_path = %q, want pokeball.db", c.Storage.SQLitePath)
	}
	if c.Logging.Level != "info" {
		t.Errorf("level = %q, want info", c.Logging.Level)
	}
}

func TestLoadMissingToken(t *testing.T) {
	body := strings.Replace(validYAML, "token: tok-123", "token: \"\"", 1)
	if _, err := Load(writeConfig(t, body)); err == nil {
		t.Fatal("expected error for missing token")
	}
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{"catch rate over 100", func(c *Config) { c.Catcher.CatchRate = 150 }},
		{"negative typo rate", func(c *Config) { c.Catcher.TypoRate = -1 }},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "mysql" }},
		{"postgres without dsn", func(c *Config) { c.Storage.Backend = "postgres" }},
		{"bad sleep time", func(c *Config) {
			c.Sleep.Enabled = true
			c.Sleep.At = "25:99"
			c.Sleep.Duration = time.Hour
		}},
		{"sleep without duration", func(c *Config) {
			c.Sleep.Enabled = true
			c.Sleep.At = "23:00"
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			c, err := Load(writeConfig(t, validYAML))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(c)
			if err := c.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestLoadWithEnvOverrides(t *testing.T) {
	t.Setenv("POKEBALL_GATEWAY_TOKEN", "env-token")
	t.Setenv("POKEBALL_POSTGRES_DSN", "postgres://env")

	c, err := LoadWithEnv(writeConfig(t, validYAML))
	if err != nil {
		t.Fatalf("LoadWithEnv: %v", err)
	}
	if c.Gateway.Token != "env-token" {
		t.Errorf("token = %q, want env-token", c.Gateway.Token)
	}
	if c.Storage.PostgresDSN != "postgres://env" {
		t.Errorf("postgres dsn = %q, want postgres://env", c.Storage.PostgresDSN)
	}
}
