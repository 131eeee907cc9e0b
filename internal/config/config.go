package config

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	BotToken string `env:"BOT_TOKEN"`

	StoreDriver       string `env:"STORE_DRIVER" envDefault:"postgres"`
	DatabaseURL       string `env:"DATABASE_URL"`
	SQLitePath        string `env:"SQLITE_PATH" envDefault:"bot.db"`
	LookupDatabaseURL string `env:"LOOKUP_DATABASE_URL"`
	LookupSourcesFile string `env:"LOOKUP_SOURCES_FILE"`

	Timezone     string `env:"TZ" envDefault:"Asia/Shanghai"`
	DailyResetAt string `env:"DAILY_RESET_AT" envDefault:"23:59"`

	GlobalRateLimit      int           `env:"GLOBAL_RATE_LIMIT" envDefault:"5"`
	UserCooldown         time.Duration `env:"USER_COOLDOWN" envDefault:"5s"`
	InviteBurstWindow    time.Duration `env:"INVITE_BURST_WINDOW" envDefault:"60s"`
	InviteBurstThreshold int           `env:"INVITE_BURST_THRESHOLD" envDefault:"5"`
	InviteBonus          int64         `env:"INVITE_BONUS" envDefault:"3"`
	CheckInBonus         int64         `env:"CHECKIN_BONUS" envDefault:"2"`
	LookupTimeout        time.Duration `env:"LOOKUP_TIMEOUT" envDefault:"10s"`
	JanitorInterval      time.Duration `env:"JANITOR_INTERVAL" envDefault:"1m"`

	// RequiredChannelID gates /sign, /info and lookups on channel
	// membership; zero disables the check.
	RequiredChannelID int64   `env:"REQUIRED_CHANNEL_ID"`
	ChannelLink       string  `env:"CHANNEL_LINK"`
	OutboundRate      float64 `env:"OUTBOUND_RATE" envDefault:"30"`

	AdminAddr string `env:"ADMIN_ADDR" envDefault:":9090"`
	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"json"`
	LogFile   string `env:"LOG_FILE" envDefault:"app.log"`

	resetHour, resetMinute int
}

func MustLoad() Config {
	cfg, err := Load()
	if err != nil {
		log.Fatal(err)
	}
	return cfg
}

func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if strings.TrimSpace(c.BotToken) == "" {
		return errors.New("BOT_TOKEN is required")
	}

	c.StoreDriver = strings.ToLower(strings.TrimSpace(c.StoreDriver))
	switch c.StoreDriver {
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return errors.New("DATABASE_URL is required for the postgres store")
		}
	case DriverSQLite:
		if strings.TrimSpace(c.SQLitePath) == "" {
			return errors.New("SQLITE_PATH is required for the sqlite store")
		}
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if c.LookupDatabaseURL == "" {
		c.LookupDatabaseURL = c.DatabaseURL
	}
	if c.LookupDatabaseURL == "" {
		return errors.New("LOOKUP_DATABASE_URL is required when DATABASE_URL is unset")
	}

	if _, err := time.LoadLocation(c.Timezone); err != nil {
		return fmt.Errorf("invalid TZ %q: %w", c.Timezone, err)
	}

	h, m, err := parseClock(c.DailyResetAt)
	if err != nil {
		return fmt.Errorf("invalid DAILY_RESET_AT: %w", err)
	}
	c.resetHour, c.resetMinute = h, m

	if c.GlobalRateLimit <= 0 {
		return fmt.Errorf("GLOBAL_RATE_LIMIT must be positive, got %d", c.GlobalRateLimit)
	}
	if c.UserCooldown < 0 {
		return fmt.Errorf("USER_COOLDOWN must not be negative, got %s", c.UserCooldown)
	}
	if c.OutboundRate <= 0 {
		return fmt.Errorf("OUTBOUND_RATE must be positive, got %v", c.OutboundRate)
	}
	return nil
}

// Location returns the timezone the daily reset runs in.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// ResetClock returns the hour and minute of the daily check-in reset.
func (c Config) ResetClock() (int, int) {
	return c.resetHour, c.resetMinute
}

func parseClock(s string) (int, int, error) {
	t, err := time.Parse("15:04", strings.TrimSpace(s))
	if err != nil {
		return 0, 0, fmt.Errorf("want HH:MM, got %q", s)
	}
	return t.Hour(), t.Minute(), nil
}
