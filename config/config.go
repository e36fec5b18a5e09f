// Package config loads mobilecv settings from an INI file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/ini.v1"
)

const (
	CaptureMethodScreencap = "screencap"
	CaptureMethodScrcpy    = "scrcpy"

	CompressionNone = "none"
	CompressionGzip = "gzip"
	CompressionLZ4  = "lz4"

	InputBackendScrcpy    = "scrcpy"
	InputBackendSendevent = "sendevent"
)

type CaptureConfig struct {
	Method      string
	Compression string
	CacheWindow time.Duration
	Timeout     time.Duration
	Attempts    int
	LZ4Path     string
}

type MatcherConfig struct {
	WorkingWidth     int
	DefaultThreshold float64
	RefineMargin     int
	CacheSize        int
	PollInterval     time.Duration
}

type InputConfig struct {
	Backend        string
	MidTapDelay    time.Duration
	PostTapDelay   time.Duration
	TypingSpeed    int
	TypingVariance float64
}

type ScrcpyConfig struct {
	ServerPath string
	Version    string
	PortStart  int
	PortEnd    int
	Bitrate    int
	MaxFPS     int
	Decoder    string
	FFmpegPath string
}

type ServerConfig struct {
	Listen string
}

type Config struct {
	Capture CaptureConfig
	Matcher MatcherConfig
	Input   InputConfig
	Scrcpy  ScrcpyConfig
	Server  ServerConfig
}

// Default returns the settings used when no config file is present.
func Default() *Config {
	return &Config{
		Capture: CaptureConfig{
			Method:      CaptureMethodScreencap,
			Compression: CompressionNone,
			CacheWindow: 33 * time.Millisecond,
			Timeout:     10 * time.Second,
			Attempts:    3,
			LZ4Path:     "/data/local/tmp/lz4",
		},
		Matcher: MatcherConfig{
			WorkingWidth:     500,
			DefaultThreshold: 0.9,
			RefineMargin:     50,
			CacheSize:        128,
			PollInterval:     32 * time.Millisecond,
		},
		Input: InputConfig{
			Backend:        InputBackendScrcpy,
			MidTapDelay:    0,
			PostTapDelay:   250 * time.Millisecond,
			TypingSpeed:    7,
			TypingVariance: 0.25,
		},
		Scrcpy: ScrcpyConfig{
			ServerPath: "scrcpy-server",
			Version:    "1.23",
			PortStart:  8080,
			PortEnd:    8180,
			Bitrate:    5000000,
			MaxFPS:     60,
			Decoder:    "ffmpeg",
			FFmpegPath: "ffmpeg",
		},
		Server: ServerConfig{
			Listen: "localhost:12000",
		},
	}
}

// Load reads path on top of the defaults. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}

	file, err := ini.Load(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	capture := file.Section("capture")
	cfg.Capture.Method = capture.Key("method").In(cfg.Capture.Method, []string{CaptureMethodScreencap, CaptureMethodScrcpy})
	cfg.Capture.Compression = capture.Key("compression").In(cfg.Capture.Compression, []string{CompressionNone, CompressionGzip, CompressionLZ4})
	cfg.Capture.CacheWindow = millis(capture.Key("cache_window_ms"), cfg.Capture.CacheWindow)
	cfg.Capture.Timeout = millis(capture.Key("timeout_ms"), cfg.Capture.Timeout)
	cfg.Capture.Attempts = capture.Key("attempts").MustInt(cfg.Capture.Attempts)
	cfg.Capture.LZ4Path = capture.Key("lz4_path").MustString(cfg.Capture.LZ4Path)

	matcher := file.Section("matcher")
	cfg.Matcher.WorkingWidth = matcher.Key("working_width").MustInt(cfg.Matcher.WorkingWidth)
	cfg.Matcher.DefaultThreshold = matcher.Key("default_threshold").MustFloat64(cfg.Matcher.DefaultThreshold)
	cfg.Matcher.RefineMargin = matcher.Key("refine_margin").MustInt(cfg.Matcher.RefineMargin)
	cfg.Matcher.CacheSize = matcher.Key("cache_size").MustInt(cfg.Matcher.CacheSize)
	cfg.Matcher.PollInterval = millis(matcher.Key("poll_interval_ms"), cfg.Matcher.PollInterval)

	input := file.Section("input")
	cfg.Input.Backend = input.Key("backend").In(cfg.Input.Backend, []string{InputBackendScrcpy, InputBackendSendevent})
	cfg.Input.MidTapDelay = millis(input.Key("mid_tap_delay_ms"), cfg.Input.MidTapDelay)
	cfg.Input.PostTapDelay = millis(input.Key("post_tap_delay_ms"), cfg.Input.PostTapDelay)
	cfg.Input.TypingSpeed = input.Key("typing_speed").MustInt(cfg.Input.TypingSpeed)
	cfg.Input.TypingVariance = input.Key("typing_variance").MustFloat64(cfg.Input.TypingVariance)

	scrcpy := file.Section("scrcpy")
	cfg.Scrcpy.ServerPath = scrcpy.Key("server_path").MustString(cfg.Scrcpy.ServerPath)
	cfg.Scrcpy.Version = scrcpy.Key("version").MustString(cfg.Scrcpy.Version)
	cfg.Scrcpy.PortStart = scrcpy.Key("port_start").MustInt(cfg.Scrcpy.PortStart)
	cfg.Scrcpy.PortEnd = scrcpy.Key("port_end").MustInt(cfg.Scrcpy.PortEnd)
	cfg.Scrcpy.Bitrate = scrcpy.Key("bitrate").MustInt(cfg.Scrcpy.Bitrate)
	cfg.Scrcpy.MaxFPS = scrcpy.Key("max_fps").MustInt(cfg.Scrcpy.MaxFPS)
	cfg.Scrcpy.Decoder = scrcpy.Key("decoder").MustString(cfg.Scrcpy.Decoder)
	cfg.Scrcpy.FFmpegPath = scrcpy.Key("ffmpeg_path").MustString(cfg.Scrcpy.FFmpegPath)

	cfg.Server.Listen = file.Section("server").Key("listen").MustString(cfg.Server.Listen)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate rejects values that would make capture or matching misbehave.
func (c *Config) Validate() error {
	if c.Capture.Attempts < 1 {
		return fmt.Errorf("capture.attempts must be at least 1, got %d", c.Capture.Attempts)
	}
	if c.Capture.Timeout <= 0 {
		return fmt.Errorf("capture.timeout_ms must be positive")
	}
	if c.Matcher.WorkingWidth < 0 {
		return fmt.Errorf("matcher.working_width must not be negative")
	}
	if c.Matcher.DefaultThreshold < 0 || c.Matcher.DefaultThreshold > 1 {
		return fmt.Errorf("matcher.default_threshold must be within [0,1], got %v", c.Matcher.DefaultThreshold)
	}
	if c.Matcher.CacheSize < 1 {
		return fmt.Errorf("matcher.cache_size must be at least 1")
	}
	if c.Input.TypingSpeed < 1 {
		return fmt.Errorf("input.typing_speed must be at least 1")
	}
	if c.Scrcpy.PortStart > c.Scrcpy.PortEnd {
		return fmt.Errorf("scrcpy port range %d-%d is empty", c.Scrcpy.PortStart, c.Scrcpy.PortEnd)
	}
	return nil
}

// Save writes cfg to path in the layout Load reads.
func Save(cfg *Config, path string) error {
	file := ini.Empty()

	capture := file.Section("capture")
	capture.Key("method").SetValue(cfg.Capture.Method)
	capture.Key("compression").SetValue(cfg.Capture.Compression)
	capture.Key("cache_window_ms").SetValue(formatMillis(cfg.Capture.CacheWindow))
	capture.Key("timeout_ms").SetValue(formatMillis(cfg.Capture.Timeout))
	capture.Key("attempts").SetValue(strconv.Itoa(cfg.Capture.Attempts))
	capture.Key("lz4_path").SetValue(cfg.Capture.LZ4Path)

	matcher := file.Section("matcher")
	matcher.Key("working_width").SetValue(strconv.Itoa(cfg.Matcher.WorkingWidth))
	matcher.Key("default_threshold").SetValue(strconv.FormatFloat(cfg.Matcher.DefaultThreshold, 'f', -1, 64))
	matcher.Key("refine_margin").SetValue(strconv.Itoa(cfg.Matcher.RefineMargin))
	matcher.Key("cache_size").SetValue(strconv.Itoa(cfg.Matcher.CacheSize))
	matcher.Key("poll_interval_ms").SetValue(formatMillis(cfg.Matcher.PollInterval))

	input := file.Section("input")
	input.Key("backend").SetValue(cfg.Input.Backend)
	input.Key("mid_tap_delay_ms").SetValue(formatMillis(cfg.Input.MidTapDelay))
	input.Key("post_tap_delay_ms").SetValue(formatMillis(cfg.Input.PostTapDelay))
	input.Key("typing_speed").SetValue(strconv.Itoa(cfg.Input.TypingSpeed))
	input.Key("typing_variance").SetValue(strconv.FormatFloat(cfg.Input.TypingVariance, 'f', -1, 64))

	scrcpy := file.Section("scrcpy")
	scrcpy.Key("server_path").SetValue(cfg.Scrcpy.ServerPath)
	scrcpy.Key("version").SetValue(cfg.Scrcpy.Version)
	scrcpy.Key("port_start").SetValue(strconv.Itoa(cfg.Scrcpy.PortStart))
	scrcpy.Key("port_end").SetValue(strconv.Itoa(cfg.Scrcpy.PortEnd))
	scrcpy.Key("bitrate").SetValue(strconv.Itoa(cfg.Scrcpy.Bitrate))
	scrcpy.Key("max_fps").SetValue(strconv.Itoa(cfg.Scrcpy.MaxFPS))
	scrcpy.Key("decoder").SetValue(cfg.Scrcpy.Decoder)
	scrcpy.Key("ffmpeg_path").SetValue(cfg.Scrcpy.FFmpegPath)

	file.Section("server").Key("listen").SetValue(cfg.Server.Listen)

	if err := file.SaveTo(path); err != nil {
		return fmt.Errorf("failed to save config file: %w", err)
	}
	return nil
}

func millis(key *ini.Key, def time.Duration) time.Duration {
	return time.Duration(key.MustInt64(def.Milliseconds())) * time.Millisecond
}

func formatMillis(d time.Duration) string {
	return strconv.FormatInt(d.Milliseconds(), 10)
}
