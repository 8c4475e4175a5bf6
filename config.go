package relink

import (
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Config is the file representation of a Manager and its websocket transport. Durations are
// written as Go duration strings ("1s", "500ms").
type Config struct {
	URL          string            `yaml:"url"`
	Header       map[string]string `yaml:"header"`
	Backoff      BackoffConfig     `yaml:"backoff"`
	PingInterval time.Duration     `yaml:"ping_interval"`
	CloseTimeout time.Duration     `yaml:"close_timeout"`
}

func DefaultConfig() Config {
	return Config{
		Backoff:      DefaultBackoffConfig(),
		CloseTimeout: DefaultCloseTimeout,
	}
}

// LoadConfig reads YAML from r on top of DefaultConfig and validates the result.
func LoadConfig(r io.Reader) (Config, error) {
	cfg, err := DecodeConfig(r)
	if err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// DecodeConfig reads YAML from r on top of DefaultConfig without validating it, so callers can
// apply overrides first. Unknown keys are rejected.
func DecodeConfig(r io.Reader) (Config, error) {
	cfg := DefaultConfig()

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return Config{}, errors.Wrap(ErrConfiguration, err.Error())
	}
	return cfg, nil
}

// HTTPHeader returns Header as an http.Header.
func (c Config) HTTPHeader() http.Header {
	if len(c.Header) == 0 {
		return nil
	}
	h := make(http.Header, len(c.Header))
	for k, v := range c.Header {
		h.Set(k, v)
	}
	return h
}

func (c Config) Validate() error {
	if c.URL == "" {
		return configErrorf("url is required")
	}
	if c.PingInterval < 0 {
		return configErrorf("ping interval %s must not be negative", c.PingInterval)
	}
	if c.CloseTimeout <= 0 {
		return configErrorf("close timeout %s must be positive", c.CloseTimeout)
	}
	return c.Backoff.Validate()
}
