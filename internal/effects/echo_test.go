package effects

import (
	"math"
	"testing"

	"github.com/cbegin/stereodelay-go/internal/audio"
	"github.com/cbegin/stereodelay-go/internal/config"
)

func newTestEcho(t *testing.T, frames int, seconds, rate, dry, wet float64) *Echo {
	t.Helper()
	l, err := config.Derive(
		config.StreamConfig{Channels: 2, FrameRate: rate, FramesPerBuffer: frames},
		config.DelayConfig{Seconds: seconds, Dry: dry, Wet: wet, Alignment: config.AlignRoundUp},
	)
	if err != nil {
		t.Fatalf("Derive: %v", err)
	}
	e, err := NewEcho(l, dry, wet)
	if err != nil {
		t.Fatalf("NewEcho: %v", err)
	}
	return e
}

func nearlyEqual(a, b float32) bool {
	return math.Abs(float64(a-b)) <= 1e-6
}

func requireSilent(t *testing.T, call int, out []float32) {
	t.Helper()
	for i, v := range out {
		if v != 0 {
			t.Fatalf("call %d: out[%d] = %v, want 0", call, i, v)
		}
	}
}

func TestEchoStartsUninitialized(t *testing.T) {
	e := newTestEcho(t, 4, 0.01, 800, 0.5, 0.5)
	if e.State() != StateUninitialized || e.Blocks() != 0 {
		t.Fatalf("state=%v blocks=%d", e.State(), e.Blocks())
	}
	in := make([]float32, 8)
	out := make([]float32, 8)
	if flow := e.Process(in, out); flow != audio.Continue {
		t.Fatalf("Process = %v, want continue", flow)
	}
	if e.State() != StateRunning || e.Blocks() != 1 {
		t.Fatalf("after one call state=%v blocks=%d", e.State(), e.Blocks())
	}
	e.Reset()
	if e.State() != StateUninitialized || e.Blocks() != 0 {
		t.Fatalf("after Reset state=%v blocks=%d", e.State(), e.Blocks())
	}
}

func TestEchoZeroInputConverges(t *testing.T) {
	e := newTestEcho(t, 4, 0.05, 800, 0.5, 0.5)
	blocks := e.Layout().Blocks
	in := make([]float32, 8)
	out := make([]float32, 8)

	// Leave some energy in the line first.
	for i := range in {
		in[i] = 0.25
	}
	e.Process(in, out)
	clear(in)
	for call := 1; call <= blocks; call++ {
		e.Process(in, out)
	}
	for call := 0; call < 3*blocks; call++ {
		e.Process(in, out)
		requireSilent(t, call, out)
	}
}

func TestEchoImpulsePropagation(t *testing.T) {
	const frames = 4
	e := newTestEcho(t, frames, 0.05, 800, 0.5, 0.25)
	blocks := e.Layout().Blocks // 40 frames = 10 buffers
	if blocks != 10 {
		t.Fatalf("blocks = %d, want 10", blocks)
	}
	in := make([]float32, frames*2)
	out := make([]float32, frames*2)

	const impulseFrame = 2
	in[2*impulseFrame] = 1
	in[2*impulseFrame+1] = -1
	e.Process(in, out)
	for i, v := range out {
		want := float32(0)
		switch i {
		case 2 * impulseFrame:
			want = 0.5
		case 2*impulseFrame + 1:
			want = -0.5
		}
		if !nearlyEqual(v, want) {
			t.Fatalf("call 0: out[%d] = %v, want %v", i, v, want)
		}
	}

	clear(in)
	for call := 1; call <= 3*blocks; call++ {
		e.Process(in, out)
		if call != blocks {
			requireSilent(t, call, out)
			continue
		}
		for i, v := range out {
			want := float32(0)
			switch i {
			case 2 * impulseFrame:
				want = 0.25
			case 2*impulseFrame + 1:
				want = -0.25
			}
			if !nearlyEqual(v, want) {
				t.Fatalf("call %d: out[%d] = %v, want %v", call, i, v, want)
			}
		}
	}
}

func TestEchoDryWetIsAffine(t *testing.T) {
	const frames = 8
	dry, wet := 0.8, 0.3
	history := []float32{0.1, -0.2, 0.3, -0.4, 0.5, -0.6, 0.7, -0.8, 0.9, -1, 0.15, -0.25, 0.35, -0.45, 0.55, -0.65}
	for _, x := range []float32{-1, -0.5, 0, 0.5, 1} {
		e := newTestEcho(t, frames, 0.01, 800, dry, wet) // 8 frames = 1 buffer
		out := make([]float32, frames*2)
		e.Process(history, out)

		in := make([]float32, frames*2)
		for i := range in {
			in[i] = x
		}
		e.Process(in, out)
		for i, v := range out {
			want := float32(dry)*x + float32(wet)*history[i]
			if !nearlyEqual(v, want) {
				t.Fatalf("in=%v: out[%d] = %v, want %v", x, i, v, want)
			}
		}
	}
}

func TestEchoShiftCorrectness(t *testing.T) {
	const frames = 3
	e := newTestEcho(t, frames, 0.02, 600, 0, 1) // 12 frames = 4 buffers
	blocks := e.Layout().Blocks
	if blocks != 4 {
		t.Fatalf("blocks = %d, want 4", blocks)
	}
	out := make([]float32, frames*2)
	for call := 0; call < 5*blocks; call++ {
		in := make([]float32, frames*2)
		for i := range in {
			in[i] = float32(call*100 + i + 1)
		}
		e.Process(in, out)
		if call < blocks {
			requireSilent(t, call, out)
			continue
		}
		src := call - blocks
		for i, v := range out {
			if want := float32(src*100 + i + 1); v != want {
				t.Fatalf("call %d: out[%d] = %v, want tag from call %d (%v)", call, i, v, src, want)
			}
		}
	}
}

func TestEchoNoTornReadsSingleBlock(t *testing.T) {
	// With a one-buffer line the block being written and the block being
	// read are the same memory; every frame must still see the previous call.
	const frames = 4
	e := newTestEcho(t, frames, 0.005, 800, 0, 1)
	if e.Layout().Blocks != 1 {
		t.Fatalf("blocks = %d, want 1", e.Layout().Blocks)
	}
	out := make([]float32, frames*2)
	prev := make([]float32, frames*2)
	for call := 1; call <= 5; call++ {
		in := make([]float32, frames*2)
		for i := range in {
			in[i] = float32(call)
		}
		e.Process(in, out)
		for i := range out {
			if out[i] != prev[i] {
				t.Fatalf("call %d: out[%d] = %v, want previous input %v", call, i, out[i], prev[i])
			}
		}
		copy(prev, in)
	}
}

func TestEchoConcreteScenario(t *testing.T) {
	e := newTestEcho(t, 128, 0.5, 44100, 0.5, 0.5)
	l := e.Layout()
	if l.SamplesPerBuffer != 256 || l.RequestedSamples != 44100 || l.DelaySamples != 44288 || l.Blocks != 173 {
		t.Fatalf("layout = %+v", l)
	}
	in := make([]float32, 256)
	out := make([]float32, 256)
	in[0], in[1] = 1, -1
	e.Process(in, out)
	if !nearlyEqual(out[0], 0.5) || !nearlyEqual(out[1], -0.5) {
		t.Fatalf("output #0 frame 0 = (%v, %v), want (0.5, -0.5)", out[0], out[1])
	}
	clear(in)
	for call := 1; call < 173; call++ {
		e.Process(in, out)
		requireSilent(t, call, out)
	}
	e.Process(in, out)
	if !nearlyEqual(out[0], 0.5) || !nearlyEqual(out[1], -0.5) {
		t.Fatalf("output #173 frame 0 = (%v, %v), want (0.5, -0.5)", out[0], out[1])
	}
	requireSilent(t, 173, out[2:])
}

func TestNewEchoRejectsBadInput(t *testing.T) {
	l, err := config.Derive(config.Default().Stream, config.Default().Delay)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewEcho(l, -1, 0.5); err == nil {
		t.Error("expected negative dry to be rejected")
	}
	if _, err := NewEcho(l, 0.5, math.NaN()); err == nil {
		t.Error("expected NaN wet to be rejected")
	}
	bad := l
	bad.DelaySamples++
	if _, err := NewEcho(bad, 0.5, 0.5); err == nil {
		t.Error("expected misaligned layout to be rejected")
	}
}

func TestEchoProcessDoesNotAllocate(t *testing.T) {
	e := newTestEcho(t, 128, 0.5, 44100, 0.5, 0.5)
	in := make([]float32, 256)
	out := make([]float32, 256)
	allocs := testing.AllocsPerRun(200, func() {
		e.Process(in, out)
	})
	if allocs != 0 {
		t.Errorf("Process allocated %v times per call", allocs)
	}
}

func TestStateString(t *testing.T) {
	if StateUninitialized.String() != "uninitialized" || StateRunning.String() != "running" || State(7).String() != "unknown" {
		t.Error("unexpected State strings")
	}
}

func BenchmarkEchoProcess(b *testing.B) {
	l, err := config.Derive(config.Default().Stream, config.Default().Delay)
	if err != nil {
		b.Fatal(err)
	}
	e, err := NewEcho(l, 0.5, 0.5)
	if err != nil {
		b.Fatal(err)
	}
	in := make([]float32, l.SamplesPerBuffer)
	out := make([]float32, l.SamplesPerBuffer)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		e.Process(in, out)
	}
}
