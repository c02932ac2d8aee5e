// Package config loads server settings from an optional .env file and the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config holds every tunable of the server process.
type Config struct {
	Addr           string
	AllowedOrigins []string

	TurnDuration   time.Duration // per-turn limit before a forced draw
	ReconnectGrace time.Duration // how long a dropped seat is held
	AIStepDelay    time.Duration // pause between chained AI steps
	SweepInterval  time.Duration // lobby expiry sweep
	RateSweep      time.Duration // rate-limiter eviction sweep

	SeppAtOneCard bool // house rule; see engine.HouseRules

	TokenSecret string
	RedisAddr   string // empty disables the action historian
	DatabaseURL string // empty disables match history

	LogLevel  logrus.Level
	LogFormat string // "text" or "json"
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Addr:           ":8080",
		TurnDuration:   60 * time.Second,
		ReconnectGrace: 120 * time.Second,
		AIStepDelay:    500 * time.Millisecond,
		SweepInterval:  time.Minute,
		RateSweep:      5 * time.Minute,
		LogLevel:       logrus.InfoLevel,
		LogFormat:      "text",
	}
}

// Load reads files (default ".env") if present, then overlays the environment
// on Default(). Variables already set in the environment win over the file.
func Load(files ...string) (Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return Config{}, fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) (Config, error) {
	c := Default()

	if v := getenv("ADDR"); v != "" {
		c.Addr = v
	} else if v := getenv("PORT"); v != "" {
		c.Addr = ":" + v
	}
	if v := getenv("ALLOWED_ORIGINS"); v != "" {
		for _, o := range strings.Split(v, ",") {
			if o = strings.TrimSpace(o); o != "" {
				c.AllowedOrigins = append(c.AllowedOrigins, o)
			}
		}
	}

	durations := []struct {
		name string
		dst  *time.Duration
	}{
		{"TURN_DURATION", &c.TurnDuration},
		{"RECONNECT_GRACE", &c.ReconnectGrace},
		{"AI_STEP_DELAY", &c.AIStepDelay},
		{"LOBBY_SWEEP_INTERVAL", &c.SweepInterval},
		{"RATE_SWEEP_INTERVAL", &c.RateSweep},
	}
	for _, d := range durations {
		if err := parseDuration(getenv(d.name), d.dst); err != nil {
			return Config{}, fmt.Errorf("%s: %w", d.name, err)
		}
	}

	if v := getenv("SEPP_AT_ONE_CARD"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Config{}, fmt.Errorf("SEPP_AT_ONE_CARD: %w", err)
		}
		c.SeppAtOneCard = b
	}

	c.TokenSecret = getenv("TOKEN_SECRET")
	c.RedisAddr = getenv("REDIS_ADDR")
	c.DatabaseURL = getenv("DATABASE_URL")

	if v := getenv("LOG_LEVEL"); v != "" {
		lvl, err := logrus.ParseLevel(v)
		if err != nil {
			return Config{}, fmt.Errorf("LOG_LEVEL: %w", err)
		}
		c.LogLevel = lvl
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		if v != "text" && v != "json" {
			return Config{}, fmt.Errorf("LOG_FORMAT: unknown format %q", v)
		}
		c.LogFormat = v
	}
	return c, nil
}

// parseDuration accepts Go duration strings ("90s") or bare seconds ("90").
func parseDuration(v string, dst *time.Duration) error {
	if v == "" {
		return nil
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return fmt.Errorf("must be positive, got %d", secs)
		}
		*dst = time.Duration(secs) * time.Second
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return err
	}
	if d <= 0 {
		return fmt.Errorf("must be positive, got %s", d)
	}
	*dst = d
	return nil
}

// ConfigureLogger applies level and format to the standard logrus logger.
func (c Config) ConfigureLogger() {
	logrus.SetLevel(c.LogLevel)
	if c.LogFormat == "json" {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}
