package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"
)

// EnvPrefix prefixes every environment override, e.g. KNOLBOX_DRAW__WINDOW.
const EnvPrefix = "KNOLBOX_"

// Config is the runtime configuration. Values are layered: the YAML file, then
// environment, then command-line flags; flag defaults fill whatever is left.
type Config struct {
	DB        string  `koanf:"db" validate:"required"`
	ReposDir  string  `koanf:"repos_dir" validate:"required"`
	ImportBox string  `koanf:"import_box" validate:"required,max=64"`
	Log       Log     `koanf:"log"`
	Draw      Draw    `koanf:"draw"`
	Staging   Staging `koanf:"staging"`
}

type Log struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

type Draw struct {
	// Window caps the candidates of a random draw.
	Window int `koanf:"window" validate:"min=1,max=10000"`
}

type Staging struct {
	Slots int `koanf:"slots" validate:"min=1,max=16"`
}

// Flags registers the command-line flags that may override configuration.
// The "config" flag names the YAML file to read.
func Flags(name string) *pflag.FlagSet {
	f := pflag.NewFlagSet(name, pflag.ContinueOnError)
	f.String("config", "knolbox.yaml", "Path to the YAML configuration file")
	f.String("db", "knolbox.db", "Path to the SQLite database file")
	f.String("repos_dir", "repos", "Directory git sources are checked out into")
	f.String("import_box", "Words", "Box new imported cards are placed in")
	f.String("log.level", "info", "Log level: debug, info, warn, error")
	f.String("log.format", "text", "Log format: text or json")
	f.Int("draw.window", 50, "Maximum number of candidates for a random draw")
	f.Int("staging.slots", 2, "Waiting areas per box")
	return f
}

// Load builds the configuration from the config file named by the flags (a
// missing file is fine), KNOLBOX_* variables and the flags themselves.
func Load(flags *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	path, _ := flags.GetString("config")
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
			}
		} else if !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}
	}

	// KNOLBOX_LOG__LEVEL -> log.level; single underscores stay in the key.
	envProvider := env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
		return strings.ReplaceAll(s, "__", ".")
	})
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	if err := k.Load(posflag.Provider(flags, ".", k), nil); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return &cfg, nil
}

// Logger builds the slog logger described by the config.
func (c *Config) Logger() *slog.Logger {
	var level slog.Level
	switch c.Log.Level {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: level}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
