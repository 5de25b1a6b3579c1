// Package monitor plays the processed signal on the default output device
// through ebiten's audio context. Input comes from a generated Source, so no
// capture device is needed.
package monitor

import (
	"context"
	"fmt"
	"sync"
	"time"

	ebitaudio "github.com/hajimehoshi/ebiten/v2/audio"

	"github.com/cbegin/stereodelay-go/internal/audio"
)

// pollInterval is how often Run checks whether the player drained.
const pollInterval = 100 * time.Millisecond

type Player struct {
	player *ebitaudio.Player
	reader *audio.StreamReader
}

var (
	audioContextOnce sync.Once
	audioContext     *ebitaudio.Context
	audioSampleRate  int
)

// ebiten allows one audio context per process, so every Player shares it.
func sharedAudioContext(sampleRate int) (*ebitaudio.Context, error) {
	audioContextOnce.Do(func() {
		audioSampleRate = sampleRate
		audioContext = ebitaudio.NewContext(sampleRate)
	})
	if audioSampleRate != sampleRate {
		return nil, fmt.Errorf("monitor: audio context already initialized at %d Hz (requested %d Hz)", audioSampleRate, sampleRate)
	}
	return audioContext, nil
}

// New opens a player that pulls input from source, runs it through cb in
// buffers of samplesPerBuffer samples and plays the result.
func New(sampleRate, samplesPerBuffer int, source audio.Source, cb audio.Callback) (*Player, error) {
	ctx, err := sharedAudioContext(sampleRate)
	if err != nil {
		return nil, err
	}
	reader := audio.NewStreamReader(source, cb, samplesPerBuffer)
	pl, err := ctx.NewPlayerF32(reader)
	if err != nil {
		return nil, fmt.Errorf("monitor: open player: %w", err)
	}
	return &Player{
		player: pl,
		reader: reader,
	}, nil
}

// Run plays until ctx is done or the stream reaches its end.
func (p *Player) Run(ctx context.Context) error {
	p.player.Play()
	defer p.player.Pause()

	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-t.C:
			if !p.player.IsPlaying() {
				return nil
			}
		}
	}
}

// Position is how much echoed audio has reached the output so far. It trails
// the processed block count by whatever the player has buffered.
func (p *Player) Position() time.Duration {
	return p.player.Position()
}

func (p *Player) Close() error {
	p.player.Pause()
	if err := p.player.Close(); err != nil {
		return fmt.Errorf("monitor: close player: %w", err)
	}
	return p.reader.Close()
}

var _ audio.Stream = (*Player)(nil)
