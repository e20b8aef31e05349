// Package config загружает конфигурацию сервера.
//
// Значения применяются в порядке: встроенные значения по умолчанию,
// YAML файл (-config или DOCSYNC_CONFIG), переменные окружения DOCSYNC_*,
// флаги командной строки.
package config

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the server configuration.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string `yaml:"addr"`

	// DatabasePath is the SQLite file. ":memory:" keeps everything in memory.
	DatabasePath string `yaml:"database_path"`

	// JWTSecret signs and verifies access tokens.
	JWTSecret string        `yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`

	// DevTokens enables POST /api/v1/auth/token. Local development only.
	DevTokens bool `yaml:"dev_tokens"`

	Log       LogConfig       `yaml:"log"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Channel   ChannelConfig   `yaml:"channel"`
}

// LogConfig configures the root logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// RateLimitConfig configures per-client request limits.
type RateLimitConfig struct {
	Requests int           `yaml:"requests"`
	Window   time.Duration `yaml:"window"`
	// TokenRequests is the stricter limit of the dev token endpoint per Window.
	TokenRequests int `yaml:"token_requests"`
}

// ChannelConfig configures the realtime channel.
type ChannelConfig struct {
	// Environment is served on the channel; channel keys do not carry one.
	Environment    string        `yaml:"environment"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PingInterval   time.Duration `yaml:"ping_interval"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	SendBufferSize int           `yaml:"send_buffer_size"`
	OpLogDepth     int           `yaml:"op_log_depth"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Addr:         ":8080",
		DatabasePath: "docsync.db",
		TokenTTL:     24 * time.Hour,
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
		RateLimit: RateLimitConfig{
			Requests:      600,
			Window:        time.Minute,
			TokenRequests: 10,
		},
		Channel: ChannelConfig{
			Environment:    "master",
			WriteTimeout:   5 * time.Second,
			PingInterval:   25 * time.Second,
			ReadTimeout:    60 * time.Second,
			SendBufferSize: 256,
			OpLogDepth:     256,
		},
	}
}

// Load builds the configuration from args (without the program name) and
// the environment read through getenv.
func Load(args []string, getenv func(string) string) (*Config, error) {
	// первый проход только находит путь к файлу
	path := getenv("DOCSYNC_CONFIG")
	pre := flag.NewFlagSet("config", flag.ContinueOnError)
	pre.SetOutput(io.Discard)
	bindFlags(pre, Default(), &path)
	if err := pre.Parse(args); err != nil {
		return nil, err
	}

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(getenv); err != nil {
		return nil, err
	}

	fs := flag.NewFlagSet("config", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	bindFlags(fs, cfg, &path)
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Usage writes the flag help to w.
func Usage(w io.Writer) {
	var path string
	fs := flag.NewFlagSet("docsync-server", flag.ContinueOnError)
	fs.SetOutput(w)
	bindFlags(fs, Default(), &path)
	fs.PrintDefaults()
}

func bindFlags(fs *flag.FlagSet, cfg *Config, path *string) {
	fs.StringVar(path, "config", *path, "path to the YAML config file")
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.DatabasePath, "db", cfg.DatabasePath, "SQLite database path")
	fs.StringVar(&cfg.JWTSecret, "jwt-secret", cfg.JWTSecret, "secret used to sign access tokens")
	fs.DurationVar(&cfg.TokenTTL, "token-ttl", cfg.TokenTTL, "access token lifetime")
	fs.BoolVar(&cfg.DevTokens, "dev-tokens", cfg.DevTokens, "enable the development token endpoint")
	fs.StringVar(&cfg.Log.Level, "log-level", cfg.Log.Level, "log level: debug, info, warn, error")
	fs.StringVar(&cfg.Log.Format, "log-format", cfg.Log.Format, "log format: text or json")
	fs.StringVar(&cfg.Channel.Environment, "environment", cfg.Channel.Environment, "environment served on the realtime channel")
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) applyEnv(getenv func(string) string) error {
	strs := map[string]*string{
		"DOCSYNC_ADDR":        &c.Addr,
		"DOCSYNC_DB":          &c.DatabasePath,
		"DOCSYNC_JWT_SECRET":  &c.JWTSecret,
		"DOCSYNC_LOG_LEVEL":   &c.Log.Level,
		"DOCSYNC_LOG_FORMAT":  &c.Log.Format,
		"DOCSYNC_ENVIRONMENT": &c.Channel.Environment,
	}
	for name, dst := range strs {
		if v := getenv(name); v != "" {
			*dst = v
		}
	}

	if v := getenv("DOCSYNC_TOKEN_TTL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("invalid DOCSYNC_TOKEN_TTL: %w", err)
		}
		c.TokenTTL = d
	}
	if v := getenv("DOCSYNC_DEV_TOKENS"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid DOCSYNC_DEV_TOKENS: %w", err)
		}
		c.DevTokens = b
	}
	return nil
}

// Validate checks that the configuration is usable.
func (c *Config) Validate() error {
	var errs []error
	if c.Addr == "" {
		errs = append(errs, errors.New("addr is required"))
	}
	if c.DatabasePath == "" {
		errs = append(errs, errors.New("database_path is required"))
	}
	if len(c.JWTSecret) < 16 {
		errs = append(errs, errors.New("jwt_secret must be at least 16 characters"))
	}
	if c.TokenTTL <= 0 {
		errs = append(errs, errors.New("token_ttl must be positive"))
	}
	if c.RateLimit.Requests <= 0 || c.RateLimit.Window <= 0 || c.RateLimit.TokenRequests <= 0 {
		errs = append(errs, errors.New("rate_limit values must be positive"))
	}
	if c.Channel.Environment == "" {
		errs = append(errs, errors.New("channel.environment is required"))
	}
	if _, err := c.Log.level(); err != nil {
		errs = append(errs, err)
	}
	if f := strings.ToLower(c.Log.Format); f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("unknown log format %q", c.Log.Format))
	}
	return errors.Join(errs...)
}

func (l LogConfig) level() (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(l.Level)); err != nil {
		return 0, fmt.Errorf("unknown log level %q", l.Level)
	}
	return level, nil
}

// NewLogger builds the root logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := l.level()
	if err != nil {
		return nil, err
	}

	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(l.Format, "json") {
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return slog.New(slog.NewTextHandler(w, opts)), nil
}
