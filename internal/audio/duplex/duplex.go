// Package duplex drives a Callback from the default PortAudio input and
// output devices opened as one full-duplex stream.
package duplex

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gordonklaus/portaudio"

	"github.com/cbegin/stereodelay-go/internal/audio"
)

// ErrStalled is returned by Run when PortAudio stops calling back, which is
// how a device unplugged mid-stream shows up.
var ErrStalled = errors.New("duplex: stream stopped delivering buffers")

// Stream is an open duplex stream. PortAudio calls the Callback once per
// buffer on its own real-time thread.
type Stream struct {
	cb     audio.Callback
	stream *portaudio.Stream

	// InputDevice and OutputDevice name the default devices in use.
	InputDevice  string
	OutputDevice string

	calls        atomic.Uint64
	stallTimeout time.Duration
	complete     chan struct{}
	completeOnce sync.Once
	closeOnce    sync.Once
	closeErr     error
}

// Open initializes PortAudio and opens the default duplex stream with the
// given channel count, rate and fixed buffer size. PortAudio delivers
// exactly framesPerBuffer frames per callback.
func Open(channels int, frameRate float64, framesPerBuffer int, cb audio.Callback) (*Stream, error) {
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("duplex: initialize portaudio: %w", err)
	}
	s := &Stream{
		cb:           cb,
		stallTimeout: stallTimeout(frameRate, framesPerBuffer),
		complete:     make(chan struct{}),
	}
	if dev, err := portaudio.DefaultInputDevice(); err == nil {
		s.InputDevice = dev.Name
	}
	if dev, err := portaudio.DefaultOutputDevice(); err == nil {
		s.OutputDevice = dev.Name
	}
	st, err := portaudio.OpenDefaultStream(channels, channels, frameRate, framesPerBuffer, s.process)
	if err != nil {
		_ = portaudio.Terminate()
		return nil, fmt.Errorf("duplex: open stream (%d ch, %v Hz, %d frames): %w", channels, frameRate, framesPerBuffer, err)
	}
	s.stream = st
	return s, nil
}

func (s *Stream) process(in, out []float32) {
	s.calls.Add(1)
	if s.cb.Process(in, out) == audio.Complete {
		s.completeOnce.Do(func() { close(s.complete) })
	}
}

// Run starts the stream and blocks until ctx is done, the callback reports
// Complete or the callbacks stop arriving, then stops it. The last case
// returns ErrStalled.
func (s *Stream) Run(ctx context.Context) error {
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("duplex: start stream: %w", err)
	}
	werr := watch(ctx, s.complete, s.calls.Load, s.stallTimeout)
	if err := s.stream.Stop(); err != nil {
		return errors.Join(werr, fmt.Errorf("duplex: stop stream: %w", err))
	}
	return werr
}

// stallTimeout is fifty buffer periods, and never under a second.
func stallTimeout(frameRate float64, framesPerBuffer int) time.Duration {
	d := time.Duration(50 * float64(framesPerBuffer) / frameRate * float64(time.Second))
	return max(d, time.Second)
}

// watch blocks until ctx is done or done is closed, or returns ErrStalled
// once count has not moved for timeout.
func watch(ctx context.Context, done <-chan struct{}, count func() uint64, timeout time.Duration) error {
	t := time.NewTicker(timeout / 4)
	defer t.Stop()
	last, since := count(), time.Now()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-done:
			return nil
		case now := <-t.C:
			if c := count(); c != last {
				last, since = c, now
			} else if now.Sub(since) >= timeout {
				return fmt.Errorf("%w (no callback for %v after %d buffers)", ErrStalled, now.Sub(since).Round(time.Millisecond), c)
			}
		}
	}
}

// Close releases the stream and PortAudio. It is safe to call more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if err := s.stream.Close(); err != nil {
			errs = append(errs, fmt.Errorf("duplex: close stream: %w", err))
		}
		if err := portaudio.Terminate(); err != nil {
			errs = append(errs, fmt.Errorf("duplex: terminate portaudio: %w", err))
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}

var _ audio.Stream = (*Stream)(nil)
