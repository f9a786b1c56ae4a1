package config

import (
	"errors"
	"os"
	"path/filepath"
	"time"

	"github.com/creasty/defaults"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const (
	envPrefix      = "SPOTLINE"
	configName     = "config"
	appDirName     = "spotline"
	minTextLength  = 10
	maxTextLength  = 200
	minPollMillis  = 50
	defaultPollMs  = 500
	defaultTextLen = 80
)

var validPositions = map[string]bool{"left": true, "center": true, "right": true}

// Options carries command-line overrides for configuration loading
type Options struct {
	// File is an explicit config file path; empty means the default location
	File string
	// Output overrides the output format when non-empty
	Output string
}

// values is the on-disk/env shape of the configuration
type values struct {
	LyricsEnabled      bool   `mapstructure:"lyrics_enabled" default:"true"`
	PollIntervalMs     int    `mapstructure:"poll_interval_ms" default:"500"`
	MaxTextLength      int    `mapstructure:"max_text_length" default:"80"`
	Position           string `mapstructure:"position" default:"center"`
	LyricsURL          string `mapstructure:"lyrics_url" default:"https://lrclib.net/api/get"`
	HTTPTimeoutSeconds int    `mapstructure:"http_timeout_seconds" default:"10"`
	Output             string `mapstructure:"output" default:"plain"`
	OnUpdateCommand    string `mapstructure:"on_update_command"`
}

// AppConfig holds application configuration
type AppConfig struct {
	logger *zap.Logger
	v      values
}

// NewAppConfig loads configuration from defaults, the config file and the
// environment (in increasing precedence). A missing config file is not an error.
func NewAppConfig(logger *zap.Logger, opts Options) (*AppConfig, error) {
	var v values
	if err := defaults.Set(&v); err != nil {
		return nil, err
	}

	vp := viper.New()
	vp.SetConfigType("yaml")
	if opts.File != "" {
		vp.SetConfigFile(opts.File)
	} else {
		vp.SetConfigName(configName)
		vp.AddConfigPath(configDir())
	}

	vp.SetDefault("lyrics_enabled", v.LyricsEnabled)
	vp.SetDefault("poll_interval_ms", v.PollIntervalMs)
	vp.SetDefault("max_text_length", v.MaxTextLength)
	vp.SetDefault("position", v.Position)
	vp.SetDefault("lyrics_url", v.LyricsURL)
	vp.SetDefault("http_timeout_seconds", v.HTTPTimeoutSeconds)
	vp.SetDefault("output", v.Output)
	vp.SetDefault("on_update_command", v.OnUpdateCommand)

	vp.SetEnvPrefix(envPrefix)
	vp.AutomaticEnv()

	if err := vp.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) || (opts.File != "" && errors.Is(err, os.ErrNotExist)) {
			logger.Debug("No config file found, using defaults")
		} else {
			logger.Warn("Failed to read config file, using defaults", zap.Error(err))
		}
	}

	if err := vp.Unmarshal(&v); err != nil {
		return nil, err
	}
	if opts.Output != "" {
		v.Output = opts.Output
	}

	cfg := &AppConfig{logger: logger, v: v}
	cfg.sanitize()

	logger.Info("Configuration loaded",
		zap.Bool("lyricsEnabled", cfg.v.LyricsEnabled),
		zap.Int("pollIntervalMs", cfg.v.PollIntervalMs),
		zap.Int("maxTextLength", cfg.v.MaxTextLength),
		zap.String("position", cfg.v.Position),
		zap.String("lyricsURL", cfg.v.LyricsURL),
		zap.String("output", cfg.v.Output))

	return cfg, nil
}

// sanitize replaces out-of-range values so the core never sees them
func (c *AppConfig) sanitize() {
	if c.v.MaxTextLength < minTextLength || c.v.MaxTextLength > maxTextLength {
		clamped := min(max(c.v.MaxTextLength, minTextLength), maxTextLength)
		c.logger.Warn("max_text_length out of range, clamping",
			zap.Int("value", c.v.MaxTextLength),
			zap.Int("clamped", clamped))
		c.v.MaxTextLength = clamped
	}
	if c.v.PollIntervalMs < minPollMillis {
		c.logger.Warn("poll_interval_ms too small, using default",
			zap.Int("value", c.v.PollIntervalMs))
		c.v.PollIntervalMs = defaultPollMs
	}
	if !validPositions[c.v.Position] {
		c.logger.Warn("Unknown position, using center", zap.String("value", c.v.Position))
		c.v.Position = "center"
	}
	if c.v.HTTPTimeoutSeconds <= 0 {
		c.v.HTTPTimeoutSeconds = 10
	}
}

// configDir returns $XDG_CONFIG_HOME/spotline or ~/.config/spotline
func configDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, appDirName)
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", appDirName)
}

// LyricsEnabled reports whether lyrics should be fetched and displayed
func (c *AppConfig) LyricsEnabled() bool {
	return c.v.LyricsEnabled
}

// GetPollInterval returns the position polling interval
func (c *AppConfig) GetPollInterval() time.Duration {
	return time.Duration(c.v.PollIntervalMs) * time.Millisecond
}

// GetMaxTextLength returns the maximum number of characters per update
func (c *AppConfig) GetMaxTextLength() int {
	return c.v.MaxTextLength
}

// GetPosition returns the display position hint
func (c *AppConfig) GetPosition() string {
	return c.v.Position
}

// GetLyricsURL returns the base endpoint of the lyrics API
func (c *AppConfig) GetLyricsURL() string {
	return c.v.LyricsURL
}

// GetHTTPTimeout returns the timeout applied to lyrics requests
func (c *AppConfig) GetHTTPTimeout() time.Duration {
	return time.Duration(c.v.HTTPTimeoutSeconds) * time.Second
}

// GetOutputFormat returns the writer sink format
func (c *AppConfig) GetOutputFormat() string {
	return c.v.Output
}

// GetUpdateCommand returns the optional command run on every update
func (c *AppConfig) GetUpdateCommand() string {
	return c.v.OnUpdateCommand
}
