// Package config loads flashdeck settings from flag defaults, an optional
// YAML file, FLASHDECK_ environment variables and explicit flags, in
// increasing order of precedence.
package config

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

const envPrefix = "FLASHDECK_"

// Config is the complete flashdeck configuration.
type Config struct {
	HTTP   HTTPConfig   `koanf:"http"`
	DB     DBConfig     `koanf:"db"`
	Log    LogConfig    `koanf:"log"`
	Digest DigestConfig `koanf:"digest"`
	Import ImportConfig `koanf:"import"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr" validate:"required"`
	// UserHeader carries the caller's identity, set by the auth proxy.
	UserHeader string `koanf:"user_header" validate:"required"`
}

// DBConfig selects the database.
type DBConfig struct {
	Driver string `koanf:"driver" validate:"oneof=sqlite postgres"`
	DSN    string `koanf:"dsn" validate:"required"`
}

// LogConfig selects the slog level and handler.
type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// DigestConfig controls the periodic due-card digest.
type DigestConfig struct {
	Enabled  bool          `koanf:"enabled"`
	Interval time.Duration `koanf:"interval" validate:"min=1s"`
}

// ImportConfig configures card imports.
type ImportConfig struct {
	CacheDir string `koanf:"cache_dir" validate:"required"`
}

// Flags returns a flag set carrying every setting with its default.
// Flag names are the dotted config keys, e.g. --db.dsn.
func Flags(name string) *pflag.FlagSet {
	fs := pflag.NewFlagSet(name, pflag.ContinueOnError)
	fs.String("config", "", "Path to a YAML config file")
	fs.String("http.addr", ":8080", "Address the API listens on")
	fs.String("http.user_header", "X-User-Email", "Header carrying the caller's identity")
	fs.String("db.driver", "sqlite", "Database driver (sqlite or postgres)")
	fs.String("db.dsn", "flashdeck.db", "Database DSN or sqlite file path")
	fs.String("log.level", "info", "Log level (debug, info, warn, error)")
	fs.String("log.format", "text", "Log format (text or json)")
	fs.Bool("digest.enabled", false, "Periodically report due cards per user")
	fs.Duration("digest.interval", time.Hour, "How often the due-card digest runs")
	fs.String("import.cache_dir", "repos", "Where git sources are cloned")
	return fs
}

// Load resolves the configuration from fs. fs must already be parsed.
func Load(fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, err := fs.GetString("config")
	if err != nil {
		return nil, err
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	// Unchanged flags only fill keys no other source set.
	if err := k.Load(posflag.Provider(fs, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envKey maps FLASHDECK_DB_DSN to db.dsn and FLASHDECK_IMPORT_CACHE_DIR to
// import.cache_dir.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.Replace(key, "_", ".", 1)
}

// Validate reports the first invalid setting.
func (c *Config) Validate() error {
	err := validator.New(validator.WithRequiredStructEnabled()).Struct(c)
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Errorf("config: invalid %s: %q does not satisfy %s", fe.Namespace(), fmt.Sprint(fe.Value()), fe.Tag())
	}
	return err
}

// Handler builds the slog handler described by the log settings.
func (c LogConfig) Handler(w io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: c.level()}
	if c.Format == "json" {
		return slog.NewJSONHandler(w, opts)
	}
	return slog.NewTextHandler(w, opts)
}

func (c LogConfig) level() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}
