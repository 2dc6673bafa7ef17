// Package config loads host configuration: defaults, then a YAML file, then
// .env and QUESTWEAVE_* environment overrides.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/nathoo/questweave/logging"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "QUESTWEAVE_"

// Config is the host configuration.
type Config struct {
	GameDir      string         `yaml:"game_dir"      env:"GAME_DIR"`
	UI           string         `yaml:"ui"            env:"UI"`
	ProgressPath string         `yaml:"progress_path" env:"PROGRESS_PATH"`
	SaveDir      string         `yaml:"save_dir"      env:"SAVE_DIR"`
	TickRate     time.Duration  `yaml:"tick_rate"     env:"TICK_RATE"`
	HourLength   time.Duration  `yaml:"hour_length"   env:"HOUR_LENGTH"`
	StartHour    int            `yaml:"start_hour"    env:"START_HOUR"`
	Remote       Remote         `yaml:"remote"        envPrefix:"REMOTE_"`
	Logging      logging.Config `yaml:"logging"       envPrefix:"LOG_"`
}

// Remote configures the remote input endpoint.
type Remote struct {
	Enabled bool   `yaml:"enabled" env:"ENABLED"`
	Addr    string `yaml:"addr"    env:"ADDR"`
}

// Default returns the built-in configuration.
func Default() Config {
	log := logging.DefaultConfig()
	// Console logs would interleave with the game; file logging is the norm.
	log.ConsoleEnabled = false
	log.FileEnabled = true

	return Config{
		GameDir:      "games/hub",
		UI:           "tui",
		ProgressPath: "data/progress.db",
		SaveDir:      "saves",
		TickRate:     100 * time.Millisecond,
		HourLength:   30 * time.Second,
		StartHour:    8,
		Remote:       Remote{Addr: "127.0.0.1:8765"},
		Logging:      log,
	}
}

// Load builds the configuration. A missing YAML file or .env file is not an
// error; a malformed one is. With no dotenv arguments ".env" is tried.
func Load(path string, dotenv ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("reading config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parsing config %s: %w", path, err)
			}
		}
	}

	if len(dotenv) == 0 {
		dotenv = []string{".env"}
	}
	for _, f := range dotenv {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("loading %s: %w", f, err)
		}
	}

	if err := env.ParseWithOptions(&cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return cfg, fmt.Errorf("parse env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var errs []error
	if c.GameDir == "" {
		errs = append(errs, errors.New("game_dir is required"))
	}
	if c.UI != "tui" && c.UI != "cli" {
		errs = append(errs, fmt.Errorf("ui must be tui or cli, got %q", c.UI))
	}
	if c.TickRate <= 0 {
		errs = append(errs, fmt.Errorf("tick_rate must be positive, got %s", c.TickRate))
	}
	if c.HourLength <= 0 {
		errs = append(errs, fmt.Errorf("hour_length must be positive, got %s", c.HourLength))
	}
	if c.StartHour < 0 || c.StartHour > 23 {
		errs = append(errs, fmt.Errorf("start_hour must be 0-23, got %d", c.StartHour))
	}
	if c.Remote.Enabled && c.Remote.Addr == "" {
		errs = append(errs, errors.New("remote.addr is required when remote is enabled"))
	}
	if !logging.ValidLevel(c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level %q is not a known level", c.Logging.Level))
	}
	if c.Logging.FileEnabled && c.Logging.FilePath == "" {
		errs = append(errs, errors.New("logging.file_path is required when file logging is enabled"))
	}
	return errors.Join(errs...)
}
