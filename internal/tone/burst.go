// Package tone generates the input signal for runtimes without a capture
// device.
package tone

import (
	"errors"
	"fmt"
	"math"

	"github.com/cwbudde/algo-dsp/dsp/core"
	"github.com/cwbudde/algo-dsp/dsp/signal"
	"github.com/cwbudde/algo-dsp/dsp/window"
)

// Burst repeats a short sine burst once per period. The left channel carries
// the tone and the right channel its inverse, so a working echo is easy to
// tell apart from the dry signal by ear and on a scope.
type Burst struct {
	table []float32 // one period, interleaved stereo
	pos   int
}

// NewBurst precomputes one period. The burst is shaped by a periodic Hann
// window so it starts and ends without a click.
func NewBurst(frameRate, hz, burstSeconds, periodSeconds, amplitude float64) (*Burst, error) {
	if frameRate <= 0 || hz <= 0 || burstSeconds <= 0 || periodSeconds <= 0 {
		return nil, errors.New("tone: rates and durations must be positive")
	}
	if burstSeconds > periodSeconds {
		return nil, errors.New("tone: burst is longer than its period")
	}
	periodFrames := int(math.Round(periodSeconds * frameRate))
	burstFrames := int(math.Round(burstSeconds * frameRate))
	if periodFrames < 1 || burstFrames < 1 {
		return nil, errors.New("tone: period or burst is shorter than one frame")
	}

	gen := signal.NewGenerator(core.WithSampleRate(frameRate))
	wave, err := gen.Sine(hz, amplitude, burstFrames)
	if err != nil {
		return nil, fmt.Errorf("tone: %w", err)
	}
	env, err := window.Hann(burstFrames, window.WithPeriodic())
	if err != nil {
		return nil, fmt.Errorf("tone: %w", err)
	}
	if err := window.ApplyCoefficientsInPlace(wave, env); err != nil {
		return nil, fmt.Errorf("tone: %w", err)
	}

	table := make([]float32, periodFrames*2)
	for i, v := range wave {
		table[2*i] = float32(v)
		table[2*i+1] = -float32(v)
	}
	return &Burst{table: table}, nil
}

// Process fills dst with the next interleaved samples, wrapping at the end
// of the period.
func (b *Burst) Process(dst []float32) {
	for len(dst) > 0 {
		n := copy(dst, b.table[b.pos:])
		dst = dst[n:]
		b.pos += n
		if b.pos == len(b.table) {
			b.pos = 0
		}
	}
}

// PeriodFrames returns the length of one repetition in frames.
func (b *Burst) PeriodFrames() int { return len(b.table) / 2 }
