// Package config loads the viewer configuration from a YAML file with
// environment overrides.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"iocviewer/internal/threat"
)

// Config holds the viewer settings. Durations are YAML strings such as
// "300ms".
type Config struct {
	Endpoint       string          `yaml:"endpoint"`
	DefaultSource  threat.SourceID `yaml:"default_source"`
	Debounce       time.Duration   `yaml:"debounce"`
	Overscan       int             `yaml:"overscan"`
	RequestTimeout time.Duration   `yaml:"request_timeout"`
	MaxAttempts    int             `yaml:"max_attempts"`
	LogFile        string          `yaml:"log_file"`
}

// Default returns the settings used when no file is given.
func Default() Config {
	return Config{
		Endpoint:       "http://localhost:8000",
		DefaultSource:  threat.SourceAbuseIPDB,
		Debounce:       300 * time.Millisecond,
		Overscan:       0,
		RequestTimeout: 30 * time.Second,
		MaxAttempts:    3,
	}
}

var (
	ErrEndpointNotValid = errors.New("endpoint is not valid")
	ErrDebounceNotValid = errors.New("debounce must be positive")
	ErrOverscanNegative = errors.New("overscan must not be negative")
	ErrAttemptsNotValid = errors.New("max_attempts must be at least 1")
)

// Load reads path on top of Default and applies environment overrides.
// An empty path skips the file. Unknown keys in the file are an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("reading config file: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
			return Config{}, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnv(&cfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("IOCVIEW_ENDPOINT"); v != "" {
		cfg.Endpoint = v
	}
	if v := os.Getenv("IOCVIEW_SOURCE"); v != "" {
		cfg.DefaultSource = threat.SourceID(v)
	}
	if v := os.Getenv("IOCVIEW_LOG_FILE"); v != "" {
		cfg.LogFile = v
	}
}

func (c Config) Validate() error {
	u, err := url.Parse(c.Endpoint)
	switch {
	case err != nil:
		return fmt.Errorf("%w: %w", ErrEndpointNotValid, err)
	case u.Scheme != "http" && u.Scheme != "https", u.Host == "":
		return fmt.Errorf("%w: %q", ErrEndpointNotValid, c.Endpoint)
	}
	if err := threat.ValidateSource(c.DefaultSource); err != nil {
		return fmt.Errorf("default_source: %w", err)
	}
	switch {
	case c.Debounce <= 0:
		return fmt.Errorf("%w: %s", ErrDebounceNotValid, c.Debounce)
	case c.Overscan < 0:
		return fmt.Errorf("%w: %d", ErrOverscanNegative, c.Overscan)
	case c.MaxAttempts < 1:
		return fmt.Errorf("%w: %d", ErrAttemptsNotValid, c.MaxAttempts)
	}
	return nil
}
