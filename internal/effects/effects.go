// Package effects holds the block processors run on the audio thread.
package effects

import "github.com/cbegin/stereodelay-go/internal/audio"

// State is the lifecycle state of a processor.
type State int32

const (
	// StateUninitialized means no buffer has been processed since
	// construction or the last Reset; the delay line is all zero.
	StateUninitialized State = iota
	// StateRunning means at least one buffer has been processed.
	StateRunning
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	}
	return "unknown"
}

var _ audio.Callback = (*Echo)(nil)
