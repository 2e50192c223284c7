// Package config loads the bot's YAML configuration.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/mtaspro/neuraflow/internal/channels/whatsapp"
	"github.com/mtaspro/neuraflow/internal/dispatch"
	"github.com/mtaspro/neuraflow/internal/memory"
	"github.com/mtaspro/neuraflow/internal/notion"
	"github.com/mtaspro/neuraflow/internal/ratelimit"
)

// Config is the main configuration structure for the bot.
type Config struct {
	Server      ServerConfig           `yaml:"server"`
	Bot         BotConfig              `yaml:"bot"`
	MongoDB     memory.MongoConfig     `yaml:"mongodb"`
	WhatsApp    whatsapp.Config        `yaml:"whatsapp"`
	LLM         LLMConfig              `yaml:"llm"`
	Search      SearchConfig           `yaml:"search"`
	Notion      notion.Config          `yaml:"notion"`
	RateLimits  RateLimitsConfig       `yaml:"ratelimits"`
	History     dispatch.HistoryPolicy `yaml:"history"`
	ActiveHours ActiveHoursConfig      `yaml:"active_hours"`
	Logging     LoggingConfig          `yaml:"logging"`
}

type ServerConfig struct {
	Host     string `yaml:"host"`
	HTTPPort int    `yaml:"http_port"`
}

type BotConfig struct {
	// Mention is the group trigger prefix, e.g. "@n".
	Mention string `yaml:"mention"`
}

type LLMConfig struct {
	GroqAPIKey       string `yaml:"groq_api_key"`
	OpenRouterAPIKey string `yaml:"openrouter_api_key"`
}

type SearchConfig struct {
	APIKey string `yaml:"api_key"`
}

// RateLimitsConfig holds one sliding-window budget per API family.
type RateLimitsConfig struct {
	Qwen     ratelimit.Config `yaml:"qwen"`
	DeepSeek ratelimit.Config `yaml:"deepseek"`
	Summary  ratelimit.Config `yaml:"summary"`
	Llama    ratelimit.Config `yaml:"llama"`
}

// ActiveHoursConfig gates startup to a local time-of-day window.
type ActiveHoursConfig struct {
	Enabled bool `yaml:"enabled"`
	// StartHour and EndHour are inclusive/exclusive bounds in local hours,
	// e.g. 6 and 24 for 06:00-24:00.
	StartHour int `yaml:"start_hour"`
	EndHour   int `yaml:"end_hour"`
	// UTCOffsetHours fixes the local timezone, e.g. 6 for Dhaka.
	UTCOffsetHours int `yaml:"utc_offset_hours"`
}

// Within reports whether t falls inside the active window.
func (a ActiveHoursConfig) Within(t time.Time) bool {
	if !a.Enabled {
		return true
	}
	local := t.UTC().Add(time.Duration(a.UTCOffsetHours) * time.Hour)
	hour := local.Hour()
	if a.StartHour <= a.EndHour {
		return hour >= a.StartHour && hour < a.EndHour
	}
	// Window wraps midnight.
	return hour >= a.StartHour || hour < a.EndHour
}

type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads and parses the configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyDefaults(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.HTTPPort == 0 {
		cfg.Server.HTTPPort = 3000
	}
	if cfg.Bot.Mention == "" {
		cfg.Bot.Mention = "@n"
	}
	if cfg.WhatsApp.SessionPath == "" {
		cfg.WhatsApp.SessionPath = whatsapp.DefaultConfig().SessionPath
	}
	if cfg.RateLimits.Qwen.MaxRequests == 0 {
		cfg.RateLimits.Qwen.MaxRequests = 20
	}
	if cfg.RateLimits.DeepSeek.MaxRequests == 0 {
		cfg.RateLimits.DeepSeek.MaxRequests = 15
	}
	if cfg.RateLimits.Summary.MaxRequests == 0 {
		cfg.RateLimits.Summary.MaxRequests = 5
	}
	if cfg.RateLimits.Llama.MaxRequests == 0 {
		cfg.RateLimits.Llama.MaxRequests = 20
	}
	if cfg.History == (dispatch.HistoryPolicy{}) {
		cfg.History = dispatch.DefaultHistoryPolicy()
	}
	if cfg.ActiveHours.Enabled {
		if cfg.ActiveHours.EndHour == 0 {
			cfg.ActiveHours.EndHour = 24
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "text"
	}
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	if err := c.WhatsApp.Validate(); err != nil {
		return err
	}
	if c.ActiveHours.Enabled {
		if c.ActiveHours.StartHour < 0 || c.ActiveHours.StartHour > 23 {
			return fmt.Errorf("active_hours: start_hour %d out of range", c.ActiveHours.StartHour)
		}
		if c.ActiveHours.EndHour < 1 || c.ActiveHours.EndHour > 24 {
			return fmt.Errorf("active_hours: end_hour %d out of range", c.ActiveHours.EndHour)
		}
	}
	return nil
}
