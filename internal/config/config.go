// Package config loads and validates the bot configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config is the full bot configuration.
type Config struct {
	Environment string `yaml:"environment"`

	Gateway struct {
		URL        string `yaml:"url"`
		APIBaseURL string `yaml:"api_base_url"`
		Token      string `yaml:"token"`
	} `yaml:"gateway"`

	Identity struct {
		// UserID is the acting account.
		UserID string `yaml:"user_id"`
		// OwnerID receives catch/purchase notifications.
		OwnerID string `yaml:"owner_id"`
		// GameBotID is the game bot whose replies are awaited.
		GameBotID string `yaml:"game_bot_id"`
		// CloneID is mentioned in command prefixes.
		CloneID string `yaml:"clone_id"`
		// Prefix introduces user commands.
		Prefix string `yaml:"prefix"`
	} `yaml:"identity"`

	Channels struct {
		Whitelist      []string `yaml:"whitelist"`
		Blacklist      []string `yaml:"blacklist"`
		GuildWhitelist []string `yaml:"guild_whitelist"`
		GuildBlacklist []string `yaml:"guild_blacklist"`
	} `yaml:"channels"`

	Catcher struct {
		Enabled             bool     `yaml:"enabled"`
		CatchRate           int      `yaml:"catch_rate"`       // percent
		Delay               float64  `yaml:"delay"`            // seconds of courtesy delay
		DelayOnPriority     bool     `yaml:"delay_on_priority"`
		ConfidenceThreshold int      `yaml:"confidence_threshold"` // percent
		TypoRate            int      `yaml:"typo_rate"`            // percent
		HintEnabled         bool     `yaml:"hint_enabled"`
		// NamesPath points at a newline-separated list of every known
		// species name, used for hint resolution. Optional; without it
		// hints only resolve against the ranked and priority lists.
		NamesPath           string   `yaml:"names_path"`
		PriorityNames       []string `yaml:"priority_names"`
		AvoidNames          []string `yaml:"avoid_names"`
		RestrictDuplicates  bool     `yaml:"restrict_duplicates"`
		MaxDuplicates       int      `yaml:"max_duplicates"`
	} `yaml:"catcher"`

	Sleep struct {
		Enabled  bool          `yaml:"enabled"`
		At       string        `yaml:"at"` // clock time "HH:MM"
		Duration time.Duration `yaml:"duration"`
	} `yaml:"sleep"`

	Market struct {
		ChannelID       string        `yaml:"channel_id"`
		DefaultInterval time.Duration `yaml:"default_interval"`
		DefaultMarkup   int           `yaml:"default_markup"` // flip percent
	} `yaml:"market"`

	Classifier struct {
		Endpoint string        `yaml:"endpoint"`
		Timeout  time.Duration `yaml:"timeout"`
	} `yaml:"classifier"`

	Storage struct {
		// Backend is sqlite, postgres or memory.
		Backend       string `yaml:"backend"`
		SQLitePath    string `yaml:"sqlite_path"`
		PostgresDSN   string `yaml:"postgres_dsn"`
		ClickhouseDSN string `yaml:"clickhouse_dsn"` // optional price archive
	} `yaml:"storage"`

	Logging struct {
		Level  string `yaml:"level"`
		Pretty bool   `yaml:"pretty"`
	} `yaml:"logging"`
}

// envOverrides carries secrets pulled from the environment.
type envOverrides struct {
	GatewayToken  string `envconfig:"GATEWAY_TOKEN"`
	PostgresDSN   string `envconfig:"POSTGRES_DSN"`
	ClickhouseDSN string `envconfig:"CLICKHOUSE_DSN"`
	ClassifierURL string `envconfig:"CLASSIFIER_URL"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// LoadWithEnv loads config from YAML and overrides secrets with
// POKEBALL_-prefixed environment variables.
func LoadWithEnv(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(b, &c); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	var env envOverrides
	if err := envconfig.Process("pokeball", &env); err != nil {
		return nil, fmt.Errorf("process env overrides: %w", err)
	}
	if env.GatewayToken != "" {
		c.Gateway.Token = env.GatewayToken
	}
	if env.PostgresDSN != "" {
		c.Storage.PostgresDSN = env.PostgresDSN
	}
	if env.ClickhouseDSN != "" {
		c.Storage.ClickhouseDSN = env.ClickhouseDSN
	}
	if env.ClassifierURL != "" {
		c.Classifier.Endpoint = env.ClassifierURL
	}

	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &c, nil
}

// Validate applies defaults and checks the configuration is usable.
func (c *Config) Validate() error {
	if c.Gateway.Token == "" {
		return fmt.Errorf("gateway.token is required")
	}
	if c.Gateway.URL == "" {
		return fmt.Errorf("gateway.url is required")
	}
	if c.Identity.UserID == "" {
		return fmt.Errorf("identity.user_id is required")
	}
	if c.Identity.OwnerID == "" {
		return fmt.Errorf("identity.owner_id is required")
	}
	if c.Identity.GameBotID == "" {
		return fmt.Errorf("identity.game_bot_id is required")
	}

	if c.Identity.Prefix == "" {
		c.Identity.Prefix = "."
	}
	if c.Catcher.CatchRate == 0 {
		c.Catcher.CatchRate = 100
	}
	if c.Catcher.CatchRate < 0 || c.Catcher.CatchRate > 100 {
		return fmt.Errorf("catcher.catch_rate must be in [0, 100], got %d", c.Catcher.CatchRate)
	}
	if c.Catcher.ConfidenceThreshold == 0 {
		c.Catcher.ConfidenceThreshold = 25
	}
	if c.Catcher.ConfidenceThreshold < 0 || c.Catcher.ConfidenceThreshold > 100 {
		return fmt.Errorf("catcher.confidence_threshold must be in [0, 100], got %d", c.Catcher.ConfidenceThreshold)
	}
	if c.Catcher.TypoRate < 0 || c.Catcher.TypoRate > 100 {
		return fmt.Errorf("catcher.typo_rate must be in [0, 100], got %d", c.Catcher.TypoRate)
	}
	if c.Catcher.MaxDuplicates == 0 {
		c.Catcher.MaxDuplicates = 5
	}
	if c.Market.DefaultInterval == 0 {
		c.Market.DefaultInterval = 5 * time.Minute
	}
	if c.Market.DefaultMarkup == 0 {
		c.Market.DefaultMarkup = 50
	}
	if c.Classifier.Timeout == 0 {
		c.Classifier.Timeout = 10 * time.Second
	}

	switch c.Storage.Backend {
	case "":
		c.Storage.Backend = "sqlite"
	case "sqlite", "postgres", "memory":
	default:
		return fmt.Errorf("storage.backend must be sqlite, postgres or memory, got %q", c.Storage.Backend)
	}
	if c.Storage.Backend == "sqlite" && c.Storage.SQLitePath == "" {
		c.Storage.SQLitePath = "pokeball.db"
	}
	if c.Storage.Backend == "postgres" && c.Storage.PostgresDSN == "" {
		return fmt.Errorf("storage.postgres_dsn is required for the postgres backend")
	}

	if c.Sleep.Enabled {
		if _, err := time.Parse("15:04", c.Sleep.At); err != nil {
			return fmt.Errorf("sleep.at must be HH:MM, got %q", c.Sleep.At)
		}
		if c.Sleep.Duration <= 0 {
			return fmt.Errorf("sleep.duration must be positive")
		}
	}

	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	return nil
}
