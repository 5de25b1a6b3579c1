package config

import (
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// Load reads the YAML file at path over [Default] and validates the result.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %q: %w", path, err)
	}
	defer f.Close()

	cfg, err := LoadFromReader(f)
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes YAML from r over [Default] and validates it.
// Keys that are absent keep their default value; unknown keys are an error.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks cfg as a whole and returns every failure joined together.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.LogLevel.IsValid() {
		errs = append(errs, invalidf("log_level %q is invalid; valid values: debug, info, warn, error", cfg.LogLevel))
	}
	if !cfg.Backend.IsValid() {
		errs = append(errs, invalidf("backend %q is invalid; valid values: %s, %s", cfg.Backend, BackendDuplex, BackendMonitor))
	}
	if cfg.StatusInterval < 0 {
		errs = append(errs, invalidf("status_interval must not be negative, got %s", cfg.StatusInterval))
	}
	if _, err := cfg.Layout(); err != nil {
		errs = append(errs, err)
	}

	// Tone settings only matter when something will play them.
	if cfg.Backend == BackendMonitor {
		m := cfg.Monitor
		if !positive(m.ToneHz) {
			errs = append(errs, invalidf("monitor.tone_hz must be a positive number, got %v", m.ToneHz))
		}
		if !positive(m.PeriodSeconds) {
			errs = append(errs, invalidf("monitor.period_seconds must be a positive number, got %v", m.PeriodSeconds))
		}
		if !positive(m.BurstSeconds) || m.BurstSeconds > m.PeriodSeconds {
			errs = append(errs, invalidf("monitor.burst_seconds must be in (0, period_seconds], got %v", m.BurstSeconds))
		}
		if !nonNegative(m.Amplitude) || m.Amplitude > 1 {
			errs = append(errs, invalidf("monitor.amplitude must be in [0, 1], got %v", m.Amplitude))
		}
	}

	return joinErrors(errs)
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	}
	return errors.Join(errs...)
}
