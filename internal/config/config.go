package config

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/cockroachdb/errors"
	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const appName = "loopdeck"

type Config struct {
	Audio    AudioConfig    `koanf:"audio"`
	Decoder  DecoderConfig  `koanf:"decoder"`
	Playback PlaybackConfig `koanf:"playback"`
	Library  LibraryConfig  `koanf:"library"`
	Session  SessionConfig  `koanf:"session"`
	Log      LogConfig      `koanf:"log"`
}

// AudioConfig holds output device settings.
type AudioConfig struct {
	SampleRate     int `koanf:"sample_rate" default:"44100" validate:"gte=8000,lte=192000"`
	LatencyMs      int `koanf:"latency_ms" default:"100" validate:"gte=1,lte=2000"`       // render buffer length
	DeviceBufferMs int `koanf:"device_buffer_ms" default:"0" validate:"gte=0,lte=2000"` // 0 lets the backend decide
}

// DecoderConfig holds decoding engine settings.
type DecoderConfig struct {
	Formats         []string `koanf:"formats" validate:"dive,oneof=wav flac mp3 zip"` // empty enables all
	ResampleQuality int      `koanf:"resample_quality" default:"4" validate:"gte=1,lte=6"`
}

// PlaybackConfig holds the initial playback modes.
type PlaybackConfig struct {
	TrackMode    string `koanf:"track_mode" default:"regular" validate:"oneof=regular looped"`
	SequenceMode string `koanf:"sequence_mode" default:"ordered" validate:"oneof=ordered looped shuffle"`
	ShuffleSeed  uint64 `koanf:"shuffle_seed"` // 0 picks a random seed
}

// LibraryConfig holds scanner settings.
type LibraryConfig struct {
	Extensions []string `koanf:"extensions"` // empty uses the scanner defaults
}

// SessionConfig holds session persistence settings.
type SessionConfig struct {
	Restore bool   `koanf:"restore" default:"true"`
	Path    string `koanf:"path"` // database file, empty for the XDG data home
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level  string `koanf:"level" default:"info" validate:"oneof=debug info warn warning error"`
	Output string `koanf:"output" default:"stderr"` // "stdout", "stderr" or "file"
	File   string `koanf:"file" validate:"required_if=Output file"`
}

// Load reads the config files in priority order, then explicit when it is
// not empty. An explicit file must exist; the others are optional.
func Load(explicit string) (*Config, error) {
	k := koanf.New(".")

	for _, path := range getConfigPaths() {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
				return nil, errors.Wrapf(err, "parse %s", path)
			}
		}
	}
	if explicit != "" {
		explicit = expandPath(explicit)
		if _, err := os.Stat(explicit); err != nil {
			return nil, errors.Wrap(err, "config file")
		}
		if err := k.Load(file.Provider(explicit), toml.Parser()); err != nil {
			return nil, errors.Wrapf(err, "parse %s", explicit)
		}
	}

	// Defaults go in first so that explicit zero values in the file win.
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, errors.Wrap(err, "set defaults")
	}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, "decode config")
	}
	cfg.overrideFromEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// overrideFromEnv applies LOOPDECK_* environment variables.
func (c *Config) overrideFromEnv() {
	if v := os.Getenv("LOOPDECK_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("LOOPDECK_SESSION_PATH"); v != "" {
		c.Session.Path = v
	}
}

func (c *Config) normalize() {
	c.Log.Level = strings.ToLower(c.Log.Level)
	c.Log.Output = strings.ToLower(c.Log.Output)
	c.Playback.TrackMode = strings.ToLower(c.Playback.TrackMode)
	c.Playback.SequenceMode = strings.ToLower(c.Playback.SequenceMode)
	for i, f := range c.Decoder.Formats {
		c.Decoder.Formats[i] = strings.ToLower(f)
	}
	c.Log.File = expandPath(c.Log.File)
	c.Session.Path = expandPath(c.Session.Path)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "config validation failed")
	}
	return nil
}

// Latency returns the render buffer length.
func (c *Config) Latency() time.Duration {
	return time.Duration(c.Audio.LatencyMs) * time.Millisecond
}

// DeviceBuffer returns the device buffer length, 0 for the backend default.
func (c *Config) DeviceBuffer() time.Duration {
	return time.Duration(c.Audio.DeviceBufferMs) * time.Millisecond
}

func getConfigPaths() []string {
	return []string{
		// 1. $XDG_CONFIG_HOME/loopdeck/config.toml
		filepath.Join(xdg.ConfigHome, appName, "config.toml"),
		// 2. ./config.toml (pwd, highest priority)
		"config.toml",
	}
}

func expandPath(path string) string {
	if path != "" && path[0] == '~' {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
