// Package config holds the immutable process configuration for the delay
// effect, its YAML loader and the derived delay-line layout.
package config

import (
	"fmt"
	"math"
	"time"
)

// LogLevel is the minimum slog level written to stderr.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is one of the known levels.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// Backend selects the audio runtime that drives the processor.
type Backend string

const (
	// BackendDuplex opens the default input and output devices as one
	// full-duplex stream.
	BackendDuplex Backend = "duplex"
	// BackendMonitor plays generated tone bursts through the delay on the
	// default output device. No input device is needed.
	BackendMonitor Backend = "monitor"
)

// IsValid reports whether b is one of the known backends.
func (b Backend) IsValid() bool {
	return b == BackendDuplex || b == BackendMonitor
}

// Alignment decides what happens when the delay length in samples is not a
// whole number of stream buffers.
type Alignment string

const (
	// AlignRoundUp grows the delay line to the next whole buffer.
	AlignRoundUp Alignment = "round-up"
	// AlignReject refuses lengths that do not divide evenly.
	AlignReject Alignment = "reject"
)

// IsValid reports whether a is one of the known policies.
func (a Alignment) IsValid() bool {
	return a == AlignRoundUp || a == AlignReject
}

// Config is the root configuration. It is read once at startup and never
// changes while the stream is open.
type Config struct {
	LogLevel       LogLevel      `yaml:"log_level"`
	Backend        Backend       `yaml:"backend"`
	StatusInterval time.Duration `yaml:"status_interval"`
	Stream         StreamConfig  `yaml:"stream"`
	Delay          DelayConfig   `yaml:"delay"`
	Monitor        MonitorConfig `yaml:"monitor"`
}

// StreamConfig describes the fixed stream format negotiated with the device.
type StreamConfig struct {
	Channels        int     `yaml:"channels"`
	FrameRate       float64 `yaml:"frame_rate"`
	FramesPerBuffer int     `yaml:"frames_per_buffer"`
}

// DelayConfig describes the echo itself.
type DelayConfig struct {
	Seconds   float64   `yaml:"seconds"`
	Dry       float64   `yaml:"dry"`
	Wet       float64   `yaml:"wet"`
	Alignment Alignment `yaml:"alignment"`
}

// MonitorConfig shapes the tone bursts fed to the monitor backend.
type MonitorConfig struct {
	ToneHz        float64 `yaml:"tone_hz"`
	BurstSeconds  float64 `yaml:"burst_seconds"`
	PeriodSeconds float64 `yaml:"period_seconds"`
	Amplitude     float64 `yaml:"amplitude"`
}

// Channels is the only supported channel count: interleaved left/right.
const Channels = 2

// MaxDelaySamples caps the delay-line length: 1 GiB of float32 samples,
// a little over 50 minutes of 44.1 kHz stereo.
const MaxDelaySamples = 1 << 28

// Default returns the built-in configuration: 44.1 kHz stereo, 128-frame
// buffers and a half-second echo mixed half dry, half wet.
func Default() Config {
	return Config{
		LogLevel:       LogInfo,
		Backend:        BackendDuplex,
		StatusInterval: 10 * time.Second,
		Stream: StreamConfig{
			Channels:        Channels,
			FrameRate:       44100,
			FramesPerBuffer: 128,
		},
		Delay: DelayConfig{
			Seconds:   0.5,
			Dry:       0.5,
			Wet:       0.5,
			Alignment: AlignRoundUp,
		},
		Monitor: MonitorConfig{
			ToneHz:        440,
			BurstSeconds:  0.05,
			PeriodSeconds: 1.5,
			Amplitude:     0.5,
		},
	}
}

// Layout is the set of sizes derived from a StreamConfig and DelayConfig.
// Build it with Derive; nothing else recomputes these values.
type Layout struct {
	Channels        int
	FrameRate       float64
	FramesPerBuffer int
	// SamplesPerBuffer is FramesPerBuffer * Channels.
	SamplesPerBuffer int
	// RequestedSamples is round(FrameRate * Channels * Seconds) before alignment.
	RequestedSamples int
	// DelaySamples is the delay-line length, a whole multiple of SamplesPerBuffer.
	DelaySamples int
	// Blocks is DelaySamples / SamplesPerBuffer.
	Blocks int
}

// Delay returns the effective echo time after alignment.
func (l Layout) Delay() time.Duration {
	frames := l.Blocks * l.FramesPerBuffer
	return time.Duration(math.Round(float64(frames) / l.FrameRate * float64(time.Second)))
}

// Aligned reports whether alignment changed the requested length.
func (l Layout) Aligned() bool {
	return l.DelaySamples != l.RequestedSamples
}

// Derive validates the stream and delay settings and computes the layout.
// All problems found are returned together.
func Derive(s StreamConfig, d DelayConfig) (Layout, error) {
	var errs []error
	if s.Channels != Channels {
		errs = append(errs, invalidf("stream.channels must be %d, got %d", Channels, s.Channels))
	}
	if !positive(s.FrameRate) {
		errs = append(errs, invalidf("stream.frame_rate must be a positive number, got %v", s.FrameRate))
	}
	if s.FramesPerBuffer <= 0 || s.FramesPerBuffer > MaxDelaySamples/Channels {
		errs = append(errs, invalidf("stream.frames_per_buffer must be in [1, %d], got %d", MaxDelaySamples/Channels, s.FramesPerBuffer))
	}
	if !positive(d.Seconds) {
		errs = append(errs, invalidf("delay.seconds must be a positive number, got %v", d.Seconds))
	}
	if !nonNegative(d.Dry) {
		errs = append(errs, invalidf("delay.dry must be a non-negative number, got %v", d.Dry))
	}
	if !nonNegative(d.Wet) {
		errs = append(errs, invalidf("delay.wet must be a non-negative number, got %v", d.Wet))
	}
	if !d.Alignment.IsValid() {
		errs = append(errs, invalidf("delay.alignment %q is invalid; valid values: %s, %s", d.Alignment, AlignRoundUp, AlignReject))
	}
	if len(errs) > 0 {
		return Layout{}, joinErrors(errs)
	}

	// Bound the product before converting it; a float beyond int range
	// converts to an implementation-defined value.
	requested := math.Round(s.FrameRate * float64(s.Channels) * d.Seconds)
	if requested > MaxDelaySamples {
		return Layout{}, invalidf("delay.seconds %v is too long at %v Hz: %v samples exceeds the limit of %d",
			d.Seconds, s.FrameRate, requested, MaxDelaySamples)
	}
	l := Layout{
		Channels:         s.Channels,
		FrameRate:        s.FrameRate,
		FramesPerBuffer:  s.FramesPerBuffer,
		SamplesPerBuffer: s.FramesPerBuffer * s.Channels,
		RequestedSamples: int(requested),
	}
	if l.RequestedSamples <= 0 {
		return Layout{}, invalidf("delay.seconds %v is shorter than one sample at %v Hz", d.Seconds, s.FrameRate)
	}

	switch d.Alignment {
	case AlignRoundUp:
		blocks := (l.RequestedSamples + l.SamplesPerBuffer - 1) / l.SamplesPerBuffer
		l.DelaySamples = blocks * l.SamplesPerBuffer
	case AlignReject:
		if l.RequestedSamples%l.SamplesPerBuffer != 0 {
			return Layout{}, invalidf("delay of %d samples is not a multiple of the %d-sample buffer (alignment %s)",
				l.RequestedSamples, l.SamplesPerBuffer, AlignReject)
		}
		l.DelaySamples = l.RequestedSamples
	}
	if l.DelaySamples > MaxDelaySamples {
		return Layout{}, invalidf("delay of %d samples after alignment exceeds the limit of %d", l.DelaySamples, MaxDelaySamples)
	}
	l.Blocks = l.DelaySamples / l.SamplesPerBuffer
	return l, nil
}

// Layout derives the delay-line layout of c.
func (c *Config) Layout() (Layout, error) {
	return Derive(c.Stream, c.Delay)
}

func positive(v float64) bool {
	return v > 0 && !math.IsInf(v, 0)
}

func nonNegative(v float64) bool {
	return v >= 0 && !math.IsInf(v, 0)
}

func invalidf(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}
