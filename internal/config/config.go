package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"

	"github.com/Alextopher/space-photos-bot/internal/nasa"
)

// Backends understood by CHAT_BACKEND.
const (
	BackendTelegram = "telegram"
	BackendDiscord  = "discord"
)

// Config enumerates every option the bot recognises. It is built once at
// startup and handed to each component.
type Config struct {
	NASAToken string `env:"NASA_TOKEN"`

	ChatBackend   string `env:"CHAT_BACKEND" envDefault:"telegram"`
	TelegramToken string `env:"TELEGRAM_TOKEN"`
	DiscordToken  string `env:"DISCORD_TOKEN"`
	DiscordOwner  string `env:"DISCORD_OWNER"`

	NameFolder    string `env:"NAME_FOLDER" envDefault:"images"`
	StartDateNASA string `env:"START_DATE_NASA" envDefault:"2024-01-01"`
	EndDateNASA   string `env:"END_DATE_NASA" envDefault:"2024-01-15"`
	DelayInHours  int    `env:"DELAY_IN_HOURS" envDefault:"4"`

	JournalPath string `env:"JOURNAL_PATH" envDefault:"journal.db"`

	SpaceXAPIURL   string `env:"SPACEX_API_URL" envDefault:"https://api.spacexdata.com/v5"`
	NASAAPIURL     string `env:"NASA_API_URL" envDefault:"https://api.nasa.gov"`
	TelegramAPIURL string `env:"TELEGRAM_API_URL" envDefault:"https://api.telegram.org/bot%s/%s"`

	HTTPTimeout time.Duration `env:"HTTP_TIMEOUT" envDefault:"0s"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// DefaultEnvFile is read when no other dotenv file is given. It may be missing.
const DefaultEnvFile = ".env"

// Load reads a dotenv file and then the process environment. Values already
// present in the environment win over the file. An empty envFile skips the
// file; a missing file is only tolerated for DefaultEnvFile.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		err := godotenv.Load(envFile)
		if err != nil && !(envFile == DefaultEnvFile && errors.Is(err, fs.ErrNotExist)) {
			return nil, fmt.Errorf("loading %s: %w", envFile, err)
		}
	}

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the options that do not depend on which phase runs.
func (c *Config) Validate() error {
	switch c.ChatBackend {
	case BackendTelegram, BackendDiscord:
	default:
		return fmt.Errorf("CHAT_BACKEND must be %q or %q, got %q", BackendTelegram, BackendDiscord, c.ChatBackend)
	}

	if c.NameFolder == "" {
		return fmt.Errorf("NAME_FOLDER cannot be empty")
	}

	if c.DelayInHours < 0 {
		return fmt.Errorf("DELAY_IN_HOURS cannot be negative")
	}

	if c.HTTPTimeout < 0 {
		return fmt.Errorf("HTTP_TIMEOUT cannot be negative")
	}

	start, err := time.Parse(DateLayout, c.StartDateNASA)
	if err != nil {
		return fmt.Errorf("START_DATE_NASA must be yyyy-mm-dd: %w", err)
	}
	end, err := time.Parse(DateLayout, c.EndDateNASA)
	if err != nil {
		return fmt.Errorf("END_DATE_NASA must be yyyy-mm-dd: %w", err)
	}
	if !nasa.IsValidDate(c.StartDateNASA) {
		return fmt.Errorf("START_DATE_NASA (%s): %w", c.StartDateNASA, nasa.ErrDateInvalid)
	}
	if end.Before(start) {
		return fmt.Errorf("END_DATE_NASA (%s) is before START_DATE_NASA (%s)", c.EndDateNASA, c.StartDateNASA)
	}

	return nil
}

// ValidateFetch checks what the fetch phase needs.
func (c *Config) ValidateFetch() error {
	if c.NASAToken == "" {
		return fmt.Errorf("NASA_TOKEN is required")
	}
	return nil
}

// ValidateDelivery checks what the delivery loop needs for the chosen backend.
func (c *Config) ValidateDelivery() error {
	switch c.ChatBackend {
	case BackendTelegram:
		if c.TelegramToken == "" {
			return fmt.Errorf("TELEGRAM_TOKEN is required when CHAT_BACKEND is %s", BackendTelegram)
		}
	case BackendDiscord:
		if c.DiscordToken == "" || c.DiscordOwner == "" {
			return fmt.Errorf("DISCORD_TOKEN and DISCORD_OWNER are required when CHAT_BACKEND is %s", BackendDiscord)
		}
	}
	return nil
}

// Delay is the pause between two delivery cycles.
func (c *Config) Delay() time.Duration {
	return time.Duration(c.DelayInHours) * time.Hour
}

// DateLayout is the calendar date format used by the APOD API.
const DateLayout = "2006-01-02"
