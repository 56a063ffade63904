// Package config provides the configuration schema and loader for the
// speechhook server.
package config

import (
	"fmt"

	"github.com/MrWong99/speechhook/pkg/onset"
)

// LogLevel controls log verbosity for the speechhook server.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Preset names a detector configuration starting point.
type Preset string

const (
	// PresetTelephony: 8 kHz mu-law, 20 ms frames.
	PresetTelephony Preset = "telephony"

	// PresetHD: PCM16 at a configurable rate, 16 kHz by default.
	PresetHD Preset = "hd"

	// PresetBroadcast: 22.05 kHz PCM16.
	PresetBroadcast Preset = "broadcast"
)

// IsValid reports whether p is a recognised preset.
func (p Preset) IsValid() bool {
	switch p {
	case PresetTelephony, PresetHD, PresetBroadcast:
		return true
	}
	return false
}

// Config is the root configuration structure for the speechhook server.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Detector DetectorConfig `yaml:"detector"`
	Stream   StreamConfig   `yaml:"stream"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// ListenAddr is the address the HTTP server binds to, serving the
	// WebSocket ingest, health probes and /metrics. Default: ":8080".
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel sets slog verbosity. Default: info.
	LogLevel LogLevel `yaml:"log_level"`
}

// DetectorConfig selects a preset and optionally overrides individual
// detection parameters. Zero-valued fields keep the preset's value.
type DetectorConfig struct {
	// Preset is the configuration starting point. Default: telephony.
	Preset Preset `yaml:"preset"`

	// SampleRate overrides the preset sample rate (Hz). Mainly useful with
	// the hd preset.
	SampleRate int `yaml:"sample_rate"`

	// FrameSize overrides the number of samples per frame.
	FrameSize int `yaml:"frame_size"`

	// PreEmphasis overrides the pre-emphasis coefficient.
	PreEmphasis float64 `yaml:"pre_emphasis"`

	// EnterThreshold and ExitThreshold override the noise-floor multipliers
	// for onset and offset detection.
	EnterThreshold float64 `yaml:"enter_threshold"`
	ExitThreshold  float64 `yaml:"exit_threshold"`

	// OnsetFrames and OffsetFrames override the confirmation run lengths.
	OnsetFrames  int `yaml:"onset_frames"`
	OffsetFrames int `yaml:"offset_frames"`

	// NoiseWindow overrides the noise-floor history length in frames.
	NoiseWindow int `yaml:"noise_window"`

	// NoiseFloorMultiplier overrides the headroom applied to the measured
	// floor.
	NoiseFloorMultiplier float64 `yaml:"noise_floor_multiplier"`
}

// StreamConfig holds media-stream ingest settings.
type StreamConfig struct {
	// SourceSampleRate declares the sample rate of incoming PCM16 payloads
	// when it differs from the detector's rate; audio is resampled before
	// detection. Zero means payloads already match the detector rate.
	// Ignored for mu-law streams.
	SourceSampleRate int `yaml:"source_sample_rate"`
}

// Build resolves the detector configuration: the preset provides defaults and
// any non-zero override replaces the corresponding field. The result is
// validated by onset.New; Build itself only resolves the preset.
func (d DetectorConfig) Build() (onset.Config, error) {
	var cfg onset.Config
	switch d.Preset {
	case PresetTelephony, "":
		cfg = onset.Telephony()
	case PresetHD:
		cfg = onset.HighDefinition(d.SampleRate)
	case PresetBroadcast:
		cfg = onset.Broadcast()
	default:
		return onset.Config{}, fmt.Errorf("detector.preset %q is invalid; valid values: telephony, hd, broadcast", d.Preset)
	}

	if d.SampleRate != 0 && d.Preset != PresetHD {
		cfg.SampleRate = d.SampleRate
		cfg.FrameSize = d.SampleRate / 50
	}
	if d.FrameSize != 0 {
		cfg.FrameSize = d.FrameSize
	}
	if d.PreEmphasis != 0 {
		cfg.PreEmphasis = d.PreEmphasis
	}
	if d.EnterThreshold != 0 {
		cfg.EnterThreshold = d.EnterThreshold
	}
	if d.ExitThreshold != 0 {
		cfg.ExitThreshold = d.ExitThreshold
	}
	if d.OnsetFrames != 0 {
		cfg.OnsetFrames = d.OnsetFrames
	}
	if d.OffsetFrames != 0 {
		cfg.OffsetFrames = d.OffsetFrames
	}
	if d.NoiseWindow != 0 {
		cfg.NoiseWindow = d.NoiseWindow
	}
	if d.NoiseFloorMultiplier != 0 {
		cfg.NoiseFloorMultiplier = d.NoiseFloorMultiplier
	}
	return cfg, nil
}
