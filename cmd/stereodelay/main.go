// Command stereodelay runs a fixed stereo echo on the default audio devices.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/cbegin/stereodelay-go"
	"github.com/cbegin/stereodelay-go/internal/audio"
	"github.com/cbegin/stereodelay-go/internal/audio/duplex"
	"github.com/cbegin/stereodelay-go/internal/audio/monitor"
	"github.com/cbegin/stereodelay-go/internal/config"
	"github.com/cbegin/stereodelay-go/internal/tone"
)

func main() {
	os.Exit(run())
}

func run() int {
	f := newFlags(flag.CommandLine, config.Default())
	flag.Parse()

	cfg, err := loadConfig(*f.configPath)
	if err != nil {
		return fail(err)
	}
	f.apply(flag.CommandLine, cfg)
	if err := config.Validate(cfg); err != nil {
		return fail(err)
	}

	slog.SetDefault(newLogger(cfg.LogLevel))

	echo, err := stereodelay.NewEchoFromConfig(cfg)
	if err != nil {
		return fail(err)
	}
	layout := echo.Layout()
	fmt.Printf("Delay. Sample rate: %v, Buf size: %d\n", layout.FrameRate, layout.FramesPerBuffer)
	slog.Info("delay line ready",
		"backend", cfg.Backend,
		"delay", layout.Delay(),
		"samples", layout.DelaySamples,
		"blocks", layout.Blocks,
		"dry", cfg.Delay.Dry,
		"wet", cfg.Delay.Wet,
	)
	if layout.Aligned() {
		slog.Warn("delay rounded up to a whole number of buffers",
			"requested_samples", layout.RequestedSamples,
			"samples", layout.DelaySamples,
		)
	}

	stream, err := openStream(cfg, layout, echo)
	if err != nil {
		return fail(err)
	}
	defer func() {
		if err := stream.Close(); err != nil {
			slog.Warn("close stream", "err", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := serve(ctx, stream, echo, cfg.StatusInterval); err != nil {
		return fail(err)
	}
	slog.Info("stopped", "blocks", echo.Blocks())
	return 0
}

// flags holds the command-line overrides. Their defaults come from
// config.Default so -help shows the values actually used.
type flags struct {
	configPath *string
	backend    *string
	frameRate  *float64
	frames     *int
	delay      *float64
	dry        *float64
	wet        *float64
	alignment  *string
	logLevel   *string
}

func newFlags(fs *flag.FlagSet, def config.Config) *flags {
	return &flags{
		configPath: fs.String("config", "", "optional YAML configuration file"),
		backend:    fs.String("backend", string(def.Backend), "audio runtime: duplex|monitor"),
		frameRate:  fs.Float64("rate", def.Stream.FrameRate, "stream frame rate in Hz"),
		frames:     fs.Int("frames", def.Stream.FramesPerBuffer, "frames per buffer"),
		delay:      fs.Float64("delay", def.Delay.Seconds, "delay time in seconds"),
		dry:        fs.Float64("dry", def.Delay.Dry, "dry (live input) gain"),
		wet:        fs.Float64("wet", def.Delay.Wet, "wet (delayed) gain"),
		alignment:  fs.String("alignment", string(def.Delay.Alignment), "delay not a whole number of buffers: round-up|reject"),
		logLevel:   fs.String("log-level", string(def.LogLevel), "debug|info|warn|error"),
	}
}

// apply copies the flags given on the command line over cfg, so they win
// over the file.
func (f *flags) apply(fs *flag.FlagSet, cfg *config.Config) {
	fs.Visit(func(fl *flag.Flag) {
		switch fl.Name {
		case "backend":
			cfg.Backend = config.Backend(*f.backend)
		case "rate":
			cfg.Stream.FrameRate = *f.frameRate
		case "frames":
			cfg.Stream.FramesPerBuffer = *f.frames
		case "delay":
			cfg.Delay.Seconds = *f.delay
		case "dry":
			cfg.Delay.Dry = *f.dry
		case "wet":
			cfg.Delay.Wet = *f.wet
		case "alignment":
			cfg.Delay.Alignment = config.Alignment(*f.alignment)
		case "log-level":
			cfg.LogLevel = config.LogLevel(*f.logLevel)
		}
	})
}

func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		cfg := config.Default()
		return &cfg, nil
	}
	return config.Load(path)
}

func openStream(cfg *config.Config, layout stereodelay.Layout, echo *stereodelay.Echo) (audio.Stream, error) {
	switch cfg.Backend {
	case config.BackendMonitor:
		m := cfg.Monitor
		src, err := tone.NewBurst(layout.FrameRate, m.ToneHz, m.BurstSeconds, m.PeriodSeconds, m.Amplitude)
		if err != nil {
			return nil, err
		}
		return monitor.New(int(layout.FrameRate), layout.SamplesPerBuffer, src, echo)
	default:
		s, err := duplex.Open(layout.Channels, layout.FrameRate, layout.FramesPerBuffer, echo)
		if err != nil {
			return nil, err
		}
		slog.Info("devices", "input", s.InputDevice, "output", s.OutputDevice)
		return s, nil
	}
}

// serve runs the stream in the background and keeps the process alive,
// logging progress, until the stream ends or ctx is cancelled.
func serve(ctx context.Context, stream audio.Stream, echo *stereodelay.Echo, interval time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer cancel()
		return stream.Run(ctx)
	})
	g.Go(func() error {
		idle(ctx, stream, echo, interval)
		return nil
	})
	fmt.Println("Playing.")
	return g.Wait()
}

// positioner is implemented by streams that know how much audio has been
// played out, such as the monitor player.
type positioner interface {
	Position() time.Duration
}

// idle reads only the echo's counters; the delay line belongs to the audio thread.
func idle(ctx context.Context, stream audio.Stream, echo *stereodelay.Echo, interval time.Duration) {
	if interval <= 0 {
		<-ctx.Done()
		return
	}
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			slog.Info("streaming", status(stream, echo)...)
		}
	}
}

var _ positioner = (*monitor.Player)(nil)

func status(stream audio.Stream, echo *stereodelay.Echo) []any {
	attrs := []any{"state", echo.State(), "blocks", echo.Blocks()}
	if p, ok := stream.(positioner); ok {
		attrs = append(attrs, "position", p.Position())
	}
	return attrs
}

func fail(err error) int {
	fmt.Fprintf(os.Stderr, "Delay failed with: %v\n", err)
	if errors.Is(err, os.ErrNotExist) {
		fmt.Fprintln(os.Stderr, "pass -config with an existing file or omit it to use the defaults")
	}
	return 1
}

func newLogger(level config.LogLevel) *slog.Logger {
	var lvl slog.Level
	switch level {
	case config.LogDebug:
		lvl = slog.LevelDebug
	case config.LogWarn:
		lvl = slog.LevelWarn
	case config.LogError:
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}
