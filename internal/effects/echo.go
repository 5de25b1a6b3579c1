package effects

import (
	"fmt"
	"math"
	"sync/atomic"

	"github.com/cbegin/stereodelay-go/internal/audio"
	"github.com/cbegin/stereodelay-go/internal/config"
	"github.com/cbegin/stereodelay-go/internal/delayline"
)

// Echo is a single-tap stereo delay without feedback. Each output sample is
// the current input scaled by dry plus the input from exactly one delay
// length ago scaled by wet.
//
// Process must only be called from one goroutine at a time. State and Blocks
// may be read from anywhere.
type Echo struct {
	layout config.Layout
	line   *delayline.Line
	dry    float32
	wet    float32

	running atomic.Bool
	blocks  atomic.Uint64
}

// NewEcho allocates the delay line described by layout. layout must come
// from config.Derive.
func NewEcho(layout config.Layout, dry, wet float64) (*Echo, error) {
	if !(dry >= 0) || !(wet >= 0) || math.IsInf(dry, 0) || math.IsInf(wet, 0) {
		return nil, fmt.Errorf("effects: echo mix must be non-negative, got dry=%v wet=%v", dry, wet)
	}
	if layout.Channels != config.Channels {
		return nil, fmt.Errorf("effects: echo needs %d channels, got %d", config.Channels, layout.Channels)
	}
	line, err := delayline.New(layout.DelaySamples, layout.SamplesPerBuffer)
	if err != nil {
		return nil, fmt.Errorf("effects: echo: %w", err)
	}
	return &Echo{
		layout: layout,
		line:   line,
		dry:    float32(dry),
		wet:    float32(wet),
	}, nil
}

// Process mixes one buffer. in and out must each hold exactly
// Layout().SamplesPerBuffer samples and must not overlap. Every frame reads
// the delay line as it was before this call; the line advances once at the
// end. The result is always audio.Continue.
func (e *Echo) Process(in, out []float32) audio.Flow {
	n := e.layout.SamplesPerBuffer
	in, out = in[:n:n], out[:n:n]
	for i := 0; i < e.layout.FramesPerBuffer; i++ {
		left, right := e.line.ReadOldest(i)
		out[2*i] = in[2*i]*e.dry + left*e.wet
		out[2*i+1] = in[2*i+1]*e.dry + right*e.wet
	}
	e.line.Advance(in)

	e.blocks.Add(1)
	if !e.running.Load() {
		e.running.Store(true)
	}
	return audio.Continue
}

// Reset clears the delay line and returns to StateUninitialized.
// It must not run concurrently with Process.
func (e *Echo) Reset() {
	e.line.Reset()
	e.blocks.Store(0)
	e.running.Store(false)
}

// State reports whether any buffer has been processed.
func (e *Echo) State() State {
	if e.running.Load() {
		return StateRunning
	}
	return StateUninitialized
}

// Blocks returns the number of buffers processed since construction or Reset.
func (e *Echo) Blocks() uint64 { return e.blocks.Load() }

// Layout returns the sizes the echo was built with.
func (e *Echo) Layout() config.Layout { return e.layout }

// Mix returns the dry and wet gains.
func (e *Echo) Mix() (dry, wet float32) { return e.dry, e.wet }
