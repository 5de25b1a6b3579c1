// Package audio defines the contract between the delay processor and the
// audio runtimes that drive it, plus a pull-stream adapter for output-only
// devices.
package audio

import (
	"context"
	"encoding/binary"
	"io"
	"math"
	"sync"
)

// Flow is what a Callback tells the runtime after each buffer.
type Flow int

const (
	// Continue keeps the stream running.
	Continue Flow = iota
	// Complete asks the runtime to finish the stream.
	Complete
)

func (f Flow) String() string {
	switch f {
	case Continue:
		return "continue"
	case Complete:
		return "complete"
	}
	return "unknown"
}

// Callback fills out from in once per stream buffer. Both slices hold one
// buffer of interleaved stereo samples. It runs on the real-time audio
// thread: it must not block, allocate, or log.
type Callback interface {
	Process(in, out []float32) Flow
}

// Source produces input samples for runtimes that have no capture device.
type Source interface {
	Process(dst []float32)
}

// Stream is an open audio runtime driving a Callback.
type Stream interface {
	// Run starts the stream and blocks until ctx is done or the callback
	// returns Complete.
	Run(ctx context.Context) error
	Close() error
}

const bytesPerFrame = 8 // two float32 channels

// StreamReader turns a Source and a Callback into a float32 little-endian
// byte stream for pull-based output devices. The device may ask for any
// number of bytes; the callback still sees whole fixed-size buffers.
type StreamReader struct {
	mu     sync.Mutex
	source Source
	cb     Callback
	in     []float32
	out    []float32
	pos    int
	done   bool
}

// NewStreamReader returns a reader that processes samplesPerBuffer samples
// per callback invocation.
func NewStreamReader(source Source, cb Callback, samplesPerBuffer int) *StreamReader {
	return &StreamReader{
		source: source,
		cb:     cb,
		in:     make([]float32, samplesPerBuffer),
		out:    make([]float32, samplesPerBuffer),
		pos:    samplesPerBuffer,
	}
}

func (r *StreamReader) Read(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p = p[:len(p)-len(p)%bytesPerFrame]
	n := 0
	for n < len(p) {
		if r.pos == len(r.out) {
			if r.done {
				break
			}
			r.source.Process(r.in)
			if r.cb.Process(r.in, r.out) == Complete {
				r.done = true
			}
			r.pos = 0
		}
		binary.LittleEndian.PutUint32(p[n:], math.Float32bits(r.out[r.pos]))
		r.pos++
		n += 4
	}
	if r.done && r.pos == len(r.out) {
		return n, io.EOF
	}
	return n, nil
}

func (r *StreamReader) Close() error { return nil }
