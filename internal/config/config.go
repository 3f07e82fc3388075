package config

import (
	"errors"
	"fmt"
	"pixrelay/internal/core/domain"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// Config is read once at startup and passed by value afterwards.
type Config struct {
	Server       Server       `mapstructure:"server"`
	Orchestrator Orchestrator `mapstructure:"orchestrator"`
	Limits       Limits       `mapstructure:"limits"`
	Recipe       Recipe       `mapstructure:"recipe"`
	Relays       Relays       `mapstructure:"relays"`
	Codec        Codec        `mapstructure:"codec"`
	Telegram     Telegram     `mapstructure:"telegram"`
}

type Server struct {
	Addr     string `mapstructure:"addr"`
	LogLevel string `mapstructure:"log_level"`
}

type Orchestrator struct {
	// Timeout is the wall-clock budget of a whole request, shared by every tier.
	Timeout  time.Duration `mapstructure:"timeout"`
	Mode     string        `mapstructure:"mode"`
	Selector string        `mapstructure:"selector"`
	Seed     uint64        `mapstructure:"seed"`
}

type Limits struct {
	MinBytes            int64 `mapstructure:"min_bytes"`
	MaxBytes            int64 `mapstructure:"max_bytes"`
	MinAcceptBytes      int   `mapstructure:"min_accept_bytes"`
	PassthroughMaxBytes int   `mapstructure:"passthrough_max_bytes"`
}

type Recipe struct {
	Format        string  `mapstructure:"format"`
	Width         int     `mapstructure:"width"`
	Quality       int     `mapstructure:"quality"`
	Effort        int     `mapstructure:"effort"`
	Chroma        string  `mapstructure:"chroma"`
	Trim          bool    `mapstructure:"trim"`
	TrimThreshold float64 `mapstructure:"trim_threshold"`
}

type Relays struct {
	Enabled       []string          `mapstructure:"enabled"`
	Backup        string            `mapstructure:"backup"`
	RequireFormat bool              `mapstructure:"require_format"`
	Endpoints     map[string]string `mapstructure:"endpoints"`
}

type Codec struct {
	Backend       string `mapstructure:"backend"`
	MaxConcurrent int    `mapstructure:"max_concurrent"`
}

type Telegram struct {
	Enabled      bool   `mapstructure:"enabled"`
	BotToken     string `mapstructure:"bot_token"`
	Command      string `mapstructure:"command"`
	StatsCommand string `mapstructure:"stats_command"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.log_level", "info")

	v.SetDefault("orchestrator.timeout", "14s")
	v.SetDefault("orchestrator.mode", string(domain.Sequential))
	v.SetDefault("orchestrator.selector", "round_robin")
	v.SetDefault("orchestrator.seed", 0)

	v.SetDefault("limits.min_bytes", 1)
	v.SetDefault("limits.max_bytes", 30*1024*1024)
	v.SetDefault("limits.min_accept_bytes", 100)
	v.SetDefault("limits.passthrough_max_bytes", 0)

	v.SetDefault("recipe.format", string(domain.FormatAVIF))
	v.SetDefault("recipe.width", 720)
	v.SetDefault("recipe.quality", 25)
	v.SetDefault("recipe.effort", 4)
	v.SetDefault("recipe.chroma", string(domain.ChromaFull))
	v.SetDefault("recipe.trim", true)
	v.SetDefault("recipe.trim_threshold", 10)

	v.SetDefault("relays.enabled", []string{"wsrv", "statically"})
	v.SetDefault("relays.backup", "wsrv")
	v.SetDefault("relays.require_format", false)

	v.SetDefault("codec.backend", "auto")
	v.SetDefault("codec.max_concurrent", 0)

	v.SetDefault("telegram.enabled", false)
	v.SetDefault("telegram.command", "/shrink")
	v.SetDefault("telegram.stats_command", "/stats")
}

// Default returns the configuration used when no file and no environment overrides exist.
func Default() Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)

	return cfg
}

// Load reads the TOML file at path, or config.toml in the working directory when path is empty.
// Environment variables prefixed with PIXRELAY_ override file values, e.g. PIXRELAY_SERVER_ADDR.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetConfigType("toml")
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("config")
	}

	v.SetEnvPrefix("PIXRELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Config{}, fmt.Errorf("could not read config file: %w", err)
		}
		log.Info().Msg("no config file found, using defaults")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("could not decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

// Validate returns an error if the configuration is inconsistent.
func (c Config) Validate() error {
	if c.Orchestrator.Timeout <= 0 {
		return errors.New("config: orchestrator.timeout must be positive")
	}
	if _, err := domain.ParseStageMode(c.Orchestrator.Mode); err != nil {
		return fmt.Errorf("config: orchestrator.mode: %w", err)
	}
	switch c.Orchestrator.Selector {
	case "round_robin", "random":
	default:
		return fmt.Errorf("config: unknown orchestrator.selector %q", c.Orchestrator.Selector)
	}
	if c.Limits.MaxBytes <= 0 || c.Limits.MinBytes < 0 || c.Limits.MinBytes > c.Limits.MaxBytes {
		return errors.New("config: limits.min_bytes must be between 0 and limits.max_bytes")
	}
	if _, err := c.Recipe.TranscodeRecipe(); err != nil {
		return fmt.Errorf("config: recipe: %w", err)
	}
	if _, err := ParseLevel(c.Server.LogLevel); err != nil {
		return fmt.Errorf("config: server.log_level: %w", err)
	}
	if c.Telegram.Enabled {
		for _, cmd := range []string{c.Telegram.Command, c.Telegram.StatsCommand} {
			if !strings.HasPrefix(cmd, "/") {
				return fmt.Errorf("config: telegram command %q must start with /", cmd)
			}
		}
		if c.Telegram.Command == c.Telegram.StatsCommand {
			return errors.New("config: telegram.command and telegram.stats_command must differ")
		}
	}
	if c.Telegram.Enabled && c.Telegram.BotToken == "" {
		return errors.New("config: telegram.bot_token is required when telegram is enabled")
	}

	return nil
}

// TranscodeRecipe converts the recipe section into its domain value.
func (r Recipe) TranscodeRecipe() (domain.TranscodeRecipe, error) {
	format, err := domain.ParseFormat(r.Format)
	if err != nil {
		return domain.TranscodeRecipe{}, err
	}

	chroma, err := domain.ParseChromaMode(r.Chroma)
	if err != nil {
		return domain.TranscodeRecipe{}, err
	}

	if r.Quality < 1 || r.Quality > 100 {
		return domain.TranscodeRecipe{}, errors.New("quality must be between 1 and 100")
	}
	if r.Width < 0 {
		return domain.TranscodeRecipe{}, errors.New("width must not be negative")
	}

	return domain.TranscodeRecipe{
		Format:        format,
		Width:         r.Width,
		Quality:       r.Quality,
		Effort:        r.Effort,
		Chroma:        chroma,
		Trim:          r.Trim,
		TrimThreshold: r.TrimThreshold,
	}, nil
}

func ParseLevel(level string) (zerolog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return zerolog.DebugLevel, nil
	case "", "info":
		return zerolog.InfoLevel, nil
	case "warn":
		return zerolog.WarnLevel, nil
	case "error":
		return zerolog.ErrorLevel, nil
	default:
		return zerolog.InfoLevel, fmt.Errorf("unknown log level %q", level)
	}
}
