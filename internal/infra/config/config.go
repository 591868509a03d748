// Package config provides configuration loading from YAML files.
package config

import (
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration.
type Config struct {
	Discord   DiscordConfig           `yaml:"discord"`
	Server    ServerConfig            `yaml:"server"`
	Admin     AdminConfig             `yaml:"admin"`
	Playback  PlaybackConfig          `yaml:"playback"`
	Media     MediaConfig             `yaml:"media"`
	Filters   map[string]FilterConfig `yaml:"filters"`
	RateLimit RateLimitConfig         `yaml:"rate_limit"`
	Messages  MessagesConfig          `yaml:"messages"`
	Copypasta map[string]string       `yaml:"copypasta"`
}

// DiscordConfig represents the gateway connection.
type DiscordConfig struct {
	Token       string `yaml:"token" env:"DISCORD_TOKEN" validate:"required"`
	Prefix      string `yaml:"prefix" default:"!" validate:"required"`
	Presence    string `yaml:"presence" default:"the game of life"`
	Description string `yaml:"description"`
}

// ServerConfig represents the admin API server configuration.
type ServerConfig struct {
	Enabled bool        `yaml:"enabled"`
	Addr    string      `yaml:"addr" default:":8080"`
	Hooks   HooksConfig `yaml:"hooks"`
}

// HooksConfig represents lifecycle hooks configuration.
type HooksConfig struct {
	OnStarted []string `yaml:"on_started"`
	OnStopped []string `yaml:"on_stopped"`
}

// AdminConfig represents admin-related configuration.
type AdminConfig struct {
	Token string `yaml:"token" env:"ADMIN_TOKEN"`
}

// PlaybackConfig represents per-room playback configuration.
type PlaybackConfig struct {
	DefaultVolumePercent int `yaml:"default_volume_percent" default:"60" validate:"gte=1,lte=200"`
	MaxVolumePercent     int `yaml:"max_volume_percent" default:"100" validate:"gte=1,lte=200"`
	SkipThreshold        int `yaml:"skip_threshold" default:"3" validate:"gte=1"`
	StallCheckMs         int `yaml:"stall_check_ms" validate:"gte=0"`
	EventBuffer          int `yaml:"event_buffer" default:"64" validate:"gte=1"`
}

// MediaConfig represents media resolution and audio encoding configuration.
type MediaConfig struct {
	Proxy             string         `yaml:"proxy" env:"MEDIA_PROXY"`
	FFmpegPath        string         `yaml:"ffmpeg_path" default:"ffmpeg"`
	Bitrate           int            `yaml:"bitrate" default:"96000" validate:"gte=8000,lte=512000"`
	ResolveTimeoutSec int            `yaml:"resolve_timeout_sec" default:"30" validate:"gte=1"`
	Sources           []SourceConfig `yaml:"sources" validate:"dive"`
}

// SourceConfig represents a single media source configuration.
type SourceConfig struct {
	Type     string         `yaml:"type" validate:"required,oneof=youtube ytdlp spotify"`
	Settings map[string]any `yaml:"settings"`
}

// FilterConfig represents a filter's configuration.
type FilterConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Settings map[string]any `yaml:"settings,omitempty"`
}

// RateLimitConfig represents per-user command rate limiting.
type RateLimitConfig struct {
	Enabled   bool    `yaml:"enabled"`
	PerSecond float64 `yaml:"per_second" default:"1" validate:"gt=0"`
	Burst     int     `yaml:"burst" default:"5" validate:"gte=1"`
}

// MessagesConfig represents user-facing messages for admission rejections.
type MessagesConfig struct {
	DefaultError          string `yaml:"default_error" default:"Your request could not be queued."`
	UserPending           string `yaml:"user_pending" default:"You already have too many songs waiting in the queue."`
	DuplicateTrack        string `yaml:"duplicate_track" default:"That song is already in the queue."`
	DurationLimitExceeded string `yaml:"duration_limit_exceeded" default:"That song is too long."`
	BlockedUser           string `yaml:"blocked_user" default:"You are not allowed to request songs."`
	QueueFull             string `yaml:"queue_full" default:"The queue is full, try again later."`
	RateLimited           string `yaml:"rate_limited" default:"Slow down, please."`
}

// spotifyEnv holds Spotify credentials taken from the environment.
type spotifyEnv struct {
	ClientID     string `env:"SPOTIFY_CLIENT_ID"`
	ClientSecret string `env:"SPOTIFY_CLIENT_SECRET"`
}

// Load loads configuration from a YAML file.
// Environment variables take precedence over file values for sensitive fields.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read config file")
	}
	return Parse(data)
}

// Parse parses configuration from YAML bytes.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(err, "failed to parse config file")
	}

	// Override with environment variables
	if err := cfg.overrideFromEnv(); err != nil {
		return nil, errors.Wrap(err, "failed to read environment")
	}

	// Set defaults using creasty/defaults
	if err := defaults.Set(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to set defaults")
	}
	if len(cfg.Media.Sources) == 0 {
		cfg.Media.Sources = []SourceConfig{{Type: "ytdlp"}}
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "config validation failed")
	}

	return &cfg, nil
}

// overrideFromEnv overrides config values with environment variables.
func (c *Config) overrideFromEnv() error {
	if err := env.Parse(c); err != nil {
		return err
	}

	var sp spotifyEnv
	if err := env.Parse(&sp); err != nil {
		return err
	}
	for i := range c.Media.Sources {
		if c.Media.Sources[i].Type != "spotify" {
			continue
		}
		if c.Media.Sources[i].Settings == nil {
			c.Media.Sources[i].Settings = make(map[string]any)
		}
		if sp.ClientID != "" {
			c.Media.Sources[i].Settings["client_id"] = sp.ClientID
		}
		if sp.ClientSecret != "" {
			c.Media.Sources[i].Settings["client_secret"] = sp.ClientSecret
		}
	}
	return nil
}

// GetMessage returns the message for the given rejection code.
func (c *Config) GetMessage(code string) string {
	switch code {
	case "user_pending":
		return c.Messages.UserPending
	case "duplicate_track":
		return c.Messages.DuplicateTrack
	case "duration_limit_exceeded":
		return c.Messages.DurationLimitExceeded
	case "blocked_user":
		return c.Messages.BlockedUser
	case "queue_full":
		return c.Messages.QueueFull
	case "rate_limited":
		return c.Messages.RateLimited
	default:
		return c.Messages.DefaultError
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(err, "struct validation failed")
	}

	if c.Server.Enabled && c.Admin.Token == "" {
		return errors.New("admin.token is required when the admin server is enabled")
	}
	if c.Playback.DefaultVolumePercent > c.Playback.MaxVolumePercent {
		return errors.Newf("default_volume_percent (%d) exceeds max_volume_percent (%d)",
			c.Playback.DefaultVolumePercent, c.Playback.MaxVolumePercent)
	}
	return nil
}

// IsFilterEnabled checks if a filter is enabled.
func (c *Config) IsFilterEnabled(filterName string) bool {
	if f, ok := c.Filters[filterName]; ok {
		return f.Enabled
	}
	return false
}

// EnabledFilters returns the settings of every enabled filter, keyed by filter name.
func (c *Config) EnabledFilters() map[string]map[string]any {
	out := make(map[string]map[string]any)
	for name, f := range c.Filters {
		if f.Enabled {
			out[name] = f.Settings
		}
	}
	return out
}

// StallCheck returns the stall polling interval, 0 when disabled.
func (c *Config) StallCheck() time.Duration {
	return time.Duration(c.Playback.StallCheckMs) * time.Millisecond
}

// ResolveTimeout returns the media resolution timeout.
func (c *Config) ResolveTimeout() time.Duration {
	return time.Duration(c.Media.ResolveTimeoutSec) * time.Second
}
