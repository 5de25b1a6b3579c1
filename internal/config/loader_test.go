package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestLoadFromReaderOverridesDefaults(t *testing.T) {
	const doc = `
log_level: debug
backend: monitor
status_interval: 2s
stream:
  frame_rate: 48000
  frames_per_buffer: 256
delay:
  seconds: 0.25
  wet: 0.7
monitor:
  tone_hz: 220
`
	cfg, err := LoadFromReader(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if cfg.LogLevel != LogDebug || cfg.Backend != BackendMonitor {
		t.Errorf("got log_level=%q backend=%q", cfg.LogLevel, cfg.Backend)
	}
	if cfg.StatusInterval != 2*time.Second {
		t.Errorf("StatusInterval = %v, want 2s", cfg.StatusInterval)
	}
	if cfg.Stream.Channels != 2 {
		t.Errorf("Channels = %d, want default 2", cfg.Stream.Channels)
	}
	if cfg.Delay.Dry != 0.5 || cfg.Delay.Wet != 0.7 {
		t.Errorf("mix = %v/%v, want 0.5/0.7", cfg.Delay.Dry, cfg.Delay.Wet)
	}
	if cfg.Monitor.ToneHz != 220 || cfg.Monitor.PeriodSeconds != 1.5 {
		t.Errorf("monitor = %+v", cfg.Monitor)
	}
	l, err := cfg.Layout()
	if err != nil {
		t.Fatalf("Layout: %v", err)
	}
	// 24000 samples rounded up to whole 512-sample buffers.
	if l.Blocks != 47 || l.DelaySamples != 24064 {
		t.Errorf("layout = %+v, want 47 blocks of 512", l)
	}
}

func TestLoadFromReaderRejectPolicyFailsOnMisalignment(t *testing.T) {
	const doc = `
stream:
  frame_rate: 48000
  frames_per_buffer: 256
delay:
  seconds: 0.25
  alignment: reject
`
	_, err := LoadFromReader(strings.NewReader(doc))
	if !errors.Is(err, ErrInvalid) {
		t.Fatalf("err = %v, want ErrInvalid", err)
	}
}

func TestLoadFromReaderEmptyUsesDefaults(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(""))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}
	if *cfg != Default() {
		t.Errorf("got %+v, want defaults", *cfg)
	}
}

func TestLoadFromReaderUnknownKey(t *testing.T) {
	_, err := LoadFromReader(strings.NewReader("delay:\n  feedback: 0.4\n"))
	if err == nil {
		t.Fatal("expected unknown key to be rejected")
	}
	if !strings.Contains(err.Error(), "feedback") {
		t.Errorf("error %q does not name the key", err)
	}
}

func TestValidateMonitorSettings(t *testing.T) {
	cfg := Default()
	cfg.Backend = BackendMonitor
	cfg.Monitor.BurstSeconds = 3
	cfg.Monitor.Amplitude = 2
	err := Validate(&cfg)
	if err == nil {
		t.Fatal("expected error")
	}
	for _, field := range []string{"monitor.burst_seconds", "monitor.amplitude"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("error %q is missing %s", err, field)
		}
	}

	// The duplex backend never plays tones, so the same values are ignored.
	cfg.Backend = BackendDuplex
	if err := Validate(&cfg); err != nil {
		t.Errorf("Validate(duplex) = %v", err)
	}
}

func TestValidateTopLevel(t *testing.T) {
	cfg := Default()
	cfg.LogLevel = "trace"
	cfg.Backend = "jack"
	cfg.StatusInterval = -time.Second
	err := Validate(&cfg)
	for _, field := range []string{"log_level", "backend", "status_interval"} {
		if err == nil || !strings.Contains(err.Error(), field) {
			t.Errorf("error %v is missing %s", err, field)
		}
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "delay.yaml")
	if err := os.WriteFile(path, []byte("delay:\n  seconds: 1\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Delay.Seconds != 1 {
		t.Errorf("Seconds = %v, want 1", cfg.Delay.Seconds)
	}

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load(missing) = %v, want ErrNotExist", err)
	}
}
