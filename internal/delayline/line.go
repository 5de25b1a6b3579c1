// Package delayline implements the fixed-capacity history of interleaved
// stereo input used by the echo.
//
// The line is a flat slice of whole stream buffers ("blocks"). Index 0 starts
// the oldest block and the last block holds the most recent input. Advance
// shifts every block one slot toward index 0 and writes the new input at the
// end, so the oldest block is always the input from exactly Blocks() calls ago.
package delayline

import (
	"errors"
	"fmt"
)

var (
	// ErrSize is returned for a non-positive length or block size.
	ErrSize = errors.New("delayline: size must be positive")
	// ErrMisaligned is returned when the length is not a whole number of blocks.
	ErrMisaligned = errors.New("delayline: length is not a multiple of the block size")
)

// Line is a delay line of interleaved stereo float32 samples.
// It is not safe for concurrent use; one goroutine owns it.
type Line struct {
	buf    []float32
	block  int
	oldest []float32
	newest []float32
}

// New returns a zeroed line of length samples made of blocks of
// samplesPerBuffer samples each.
func New(length, samplesPerBuffer int) (*Line, error) {
	if length <= 0 || samplesPerBuffer <= 0 {
		return nil, fmt.Errorf("%w: length %d, block %d", ErrSize, length, samplesPerBuffer)
	}
	if samplesPerBuffer%2 != 0 {
		return nil, fmt.Errorf("%w: block of %d samples is not whole stereo frames", ErrSize, samplesPerBuffer)
	}
	if length%samplesPerBuffer != 0 {
		return nil, fmt.Errorf("%w: %d %% %d = %d", ErrMisaligned, length, samplesPerBuffer, length%samplesPerBuffer)
	}
	buf := make([]float32, length)
	return &Line{
		buf:    buf,
		block:  samplesPerBuffer,
		oldest: buf[:samplesPerBuffer:samplesPerBuffer],
		newest: buf[length-samplesPerBuffer:],
	}, nil
}

// Len returns the line length in samples.
func (l *Line) Len() int { return len(l.buf) }

// SamplesPerBuffer returns the block size in samples.
func (l *Line) SamplesPerBuffer() int { return l.block }

// Blocks returns how many Advance calls a block stays in the line.
func (l *Line) Blocks() int { return len(l.buf) / l.block }

// ReadOldest returns the left and right samples of frame within the oldest block.
func (l *Line) ReadOldest(frame int) (left, right float32) {
	i := frame * 2
	return l.oldest[i], l.oldest[i+1]
}

// Oldest returns the oldest block. The slice aliases the line and is only
// valid until the next Advance; callers must not write to it.
func (l *Line) Oldest() []float32 { return l.oldest }

// Advance drops the oldest block, shifts the rest toward the start and copies
// in into the newest block. in must hold exactly SamplesPerBuffer samples.
func (l *Line) Advance(in []float32) {
	in = in[:l.block:l.block]
	copy(l.buf, l.buf[l.block:])
	copy(l.newest, in)
}

// Reset zeroes every sample.
func (l *Line) Reset() {
	clear(l.buf)
}
