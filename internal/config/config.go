// Package config loads taskpilot settings from defaults, an optional YAML
// file and TASKPILOT_* environment variables, in increasing precedence.
package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"github.com/sandeepkv93/taskpilot/internal/analyzer"
	"github.com/sandeepkv93/taskpilot/internal/clarity"
	"github.com/sandeepkv93/taskpilot/internal/dashboard"
	"github.com/sandeepkv93/taskpilot/internal/energy"
	"github.com/sandeepkv93/taskpilot/internal/logging"
	"github.com/sandeepkv93/taskpilot/internal/matcher"
	"github.com/sandeepkv93/taskpilot/internal/reasoning"
	"github.com/sandeepkv93/taskpilot/internal/scoring"
	"github.com/sandeepkv93/taskpilot/internal/service"
	"github.com/sandeepkv93/taskpilot/internal/staleness"
	"github.com/sandeepkv93/taskpilot/internal/storage"
	"github.com/sandeepkv93/taskpilot/internal/ticktick"
)

const (
	EnvPrefix         = "TASKPILOT_"
	maxConfigFileSize = 1 << 20
)

//go:embed defaults.yaml
var defaultsYAML []byte

type DatabaseConfig struct {
	Driver string `koanf:"driver"`
	DSN    string `koanf:"dsn"`
}

type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	AllowedOrigins  []string      `koanf:"allowed_origins"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type Config struct {
	Database   DatabaseConfig     `koanf:"database"`
	TickTick   ticktick.Config    `koanf:"ticktick"`
	OpenRouter reasoning.Config   `koanf:"openrouter"`
	Analysis   analyzer.Config    `koanf:"analysis"`
	Scoring    scoring.Policy     `koanf:"scoring"`
	Energy     matcher.Policy     `koanf:"energy"`
	Staleness  staleness.Policy   `koanf:"staleness"`
	Clarity    clarity.Policy     `koanf:"clarity"`
	Checkins   energy.Policy      `koanf:"checkins"`
	Sync       service.SyncConfig `koanf:"sync"`
	Server     ServerConfig       `koanf:"server"`
	Dashboard  dashboard.Config   `koanf:"dashboard"`
	Log        logging.Config     `koanf:"log"`
}

// Load reads defaults, then path if it is non-empty, then the environment.
// TASKPILOT_SECTION_FIELD maps to section.field.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(rawbytes.Provider(defaultsYAML), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	if path = strings.TrimSpace(path); path != "" {
		content, err := readConfigFile(path)
		if err != nil {
			return nil, err
		}
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	applySecretFallbacks(&cfg)
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

// envKey splits on the first underscore after the prefix:
// TASKPILOT_OPENROUTER_API_KEY -> openrouter.api_key.
func envKey(s string) string {
	lower := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	parts := strings.SplitN(lower, "_", 2)
	if len(parts) == 1 {
		return lower
	}
	return parts[0] + "." + parts[1]
}

func readConfigFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("stat config file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("config path %s is a directory", path)
	}
	if info.Size() > maxConfigFileSize {
		return nil, fmt.Errorf("config file %s exceeds %d bytes", path, maxConfigFileSize)
	}
	content, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return content, nil
}

// applySecretFallbacks accepts the conventional unprefixed variable names.
func applySecretFallbacks(cfg *Config) {
	if cfg.OpenRouter.APIKey == "" {
		cfg.OpenRouter.APIKey = os.Getenv("OPENROUTER_API_KEY")
	}
	if cfg.TickTick.AccessToken == "" {
		cfg.TickTick.AccessToken = os.Getenv("TICKTICK_ACCESS_TOKEN")
	}
}

func (c *Config) Validate() error {
	var errs []error
	if !storage.Dialect(c.Database.Driver).IsValid() {
		errs = append(errs, fmt.Errorf("database.driver %q must be sqlite3 or postgres", c.Database.Driver))
	}
	if strings.TrimSpace(c.Database.DSN) == "" {
		errs = append(errs, errors.New("database.dsn is required"))
	}
	if err := c.Scoring.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Staleness.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Analysis.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Clarity.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := c.Checkins.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.Sync.UnstuckLimit < 0 {
		errs = append(errs, errors.New("sync.unstuck_limit must not be negative"))
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if c.Dashboard.RefreshInterval <= 0 {
		errs = append(errs, errors.New("dashboard.refresh_interval must be positive"))
	}
	if c.Dashboard.NudgeBuffer <= 0 {
		errs = append(errs, errors.New("dashboard.nudge_buffer must be positive"))
	}
	if c.Dashboard.CallTimeout <= 0 {
		errs = append(errs, errors.New("dashboard.call_timeout must be positive"))
	}
	if err := c.Log.Validate(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// RequireTickTick reports a missing token for commands that talk to TickTick.
func (c *Config) RequireTickTick() error {
	if strings.TrimSpace(c.TickTick.AccessToken) == "" {
		return errors.New("ticktick.access_token is not set (TASKPILOT_TICKTICK_ACCESS_TOKEN or TICKTICK_ACCESS_TOKEN)")
	}
	return nil
}

func (c *Config) RequireOpenRouter() error {
	if strings.TrimSpace(c.OpenRouter.APIKey) == "" {
		return errors.New("openrouter.api_key is not set (TASKPILOT_OPENROUTER_API_KEY or OPENROUTER_API_KEY)")
	}
	return nil
}
