// Package stereodelay is a fixed stereo echo for duplex audio streams.
//
// An Echo is built once from a frame rate, buffer size, delay time and
// dry/wet mix, then handed to an audio runtime that calls Process once per
// buffer on its real-time thread:
//
//	echo, err := stereodelay.NewEcho(
//		stereodelay.WithDelay(500*time.Millisecond),
//		stereodelay.WithMix(0.5, 0.5),
//	)
//
// Nothing can be changed after construction.
package stereodelay

import (
	"time"

	"github.com/cbegin/stereodelay-go/internal/config"
	"github.com/cbegin/stereodelay-go/internal/effects"
)

// Echo is the per-buffer processor. See effects.Echo.
type Echo = effects.Echo

// Layout holds the sizes derived from the options.
type Layout = config.Layout

// Alignment decides what to do with a delay that is not a whole number of
// buffers.
type Alignment = config.Alignment

const (
	AlignRoundUp = config.AlignRoundUp
	AlignReject  = config.AlignReject
)

type Option func(*echoConfig)

type echoConfig struct {
	stream config.StreamConfig
	delay  config.DelayConfig
}

func defaultEchoConfig() echoConfig {
	def := config.Default()
	return echoConfig{stream: def.Stream, delay: def.Delay}
}

// WithFrameRate sets the stream rate in frames per second. Default 44100.
func WithFrameRate(hz float64) Option {
	return func(cfg *echoConfig) {
		cfg.stream.FrameRate = hz
	}
}

// WithFramesPerBuffer sets the fixed callback size in frames. Default 128.
func WithFramesPerBuffer(frames int) Option {
	return func(cfg *echoConfig) {
		cfg.stream.FramesPerBuffer = frames
	}
}

// WithDelay sets the echo time. Default 500ms.
func WithDelay(d time.Duration) Option {
	return func(cfg *echoConfig) {
		cfg.delay.Seconds = d.Seconds()
	}
}

// WithMix sets the dry (live input) and wet (delayed) gains. They need not
// sum to one. Default 0.5 each.
func WithMix(dry, wet float64) Option {
	return func(cfg *echoConfig) {
		cfg.delay.Dry = dry
		cfg.delay.Wet = wet
	}
}

// WithAlignment sets the policy for delays that are not a whole number of
// buffers. Default AlignRoundUp.
func WithAlignment(a Alignment) Option {
	return func(cfg *echoConfig) {
		cfg.delay.Alignment = a
	}
}

// NewEcho validates the options and allocates the delay line.
func NewEcho(opts ...Option) (*Echo, error) {
	cfg := defaultEchoConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	return newEcho(cfg.stream, cfg.delay)
}

// NewEchoFromConfig builds an Echo from a loaded configuration.
func NewEchoFromConfig(cfg *config.Config) (*Echo, error) {
	return newEcho(cfg.Stream, cfg.Delay)
}

func newEcho(s config.StreamConfig, d config.DelayConfig) (*Echo, error) {
	layout, err := config.Derive(s, d)
	if err != nil {
		return nil, err
	}
	return effects.NewEcho(layout, d.Dry, d.Wet)
}

// Render runs interleaved stereo samples through echo offline, one buffer at
// a time, and returns the processed signal. A trailing partial buffer is
// padded with silence; the returned slice has the same length as in.
func Render(echo *Echo, in []float32) []float32 {
	n := echo.Layout().SamplesPerBuffer
	out := make([]float32, len(in))
	blockIn := make([]float32, n)
	blockOut := make([]float32, n)
	for start := 0; start < len(in); start += n {
		end := min(start+n, len(in))
		clear(blockIn)
		copy(blockIn, in[start:end])
		echo.Process(blockIn, blockOut)
		copy(out[start:end], blockOut)
	}
	return out
}

// Tail returns how many samples of silence must follow a signal for its last
// echo to come out of Render.
func Tail(echo *Echo) int {
	return echo.Layout().DelaySamples
}
