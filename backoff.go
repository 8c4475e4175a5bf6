package relink

import (
	"math"
	"math/rand/v2"
	"time"
)

const (
	DefaultBaseDelay  = time.Second
	DefaultMultiplier = 2.0
	DefaultMaxDelay   = time.Minute
	DefaultJitter     = 500 * time.Millisecond
)

type (
	// Rand is the random source used to draw jitter. *rand.Rand from math/rand/v2 satisfies it.
	Rand interface {
		Int64N(n int64) int64
	}

	// BackoffConfig holds the parameters of an exponential backoff with jitter.
	BackoffConfig struct {
		BaseDelay  time.Duration `yaml:"base_delay"`
		Multiplier float64       `yaml:"multiplier"`
		MaxDelay   time.Duration `yaml:"max_delay"`
		Jitter     time.Duration `yaml:"jitter"`
	}

	// Backoff computes the delay to wait before the next connection attempt. It is not safe for
	// concurrent use; the Manager guards it with its own lock.
	Backoff struct {
		cfg        BackoffConfig
		rnd        Rand
		maxAttempt int
		attempt    int
	}

	globalRand struct{}
)

func (globalRand) Int64N(n int64) int64 { return rand.Int64N(n) }

func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		BaseDelay:  DefaultBaseDelay,
		Multiplier: DefaultMultiplier,
		MaxDelay:   DefaultMaxDelay,
		Jitter:     DefaultJitter,
	}
}

// Validate checks the bounds of every parameter.
func (c BackoffConfig) Validate() error {
	if c.BaseDelay <= 0 {
		return configErrorf("base delay %s must be positive", c.BaseDelay)
	}
	if c.Jitter < 1 || c.Jitter >= c.BaseDelay {
		return configErrorf("jitter %s must be in [1ns, %s)", c.Jitter, c.BaseDelay)
	}
	if !(c.Multiplier > 1) {
		return configErrorf("multiplier %v must be greater than 1", c.Multiplier)
	}
	if c.MaxDelay <= c.BaseDelay {
		return configErrorf("max delay %s must be greater than base delay %s", c.MaxDelay, c.BaseDelay)
	}
	return nil
}

// NewBackoff validates cfg and returns a policy with its attempt counter at zero. A nil rnd
// falls back to the global math/rand/v2 source.
func NewBackoff(cfg BackoffConfig, rnd Rand) (*Backoff, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if rnd == nil {
		rnd = globalRand{}
	}

	return &Backoff{
		cfg:        cfg,
		rnd:        rnd,
		maxAttempt: maxAttempt(cfg),
	}, nil
}

// maxAttempt is ceil(log_multiplier(maxDelay/baseDelay)). The epsilon keeps exact powers such
// as 8s/1s with multiplier 2 from rounding up to the next attempt.
func maxAttempt(cfg BackoffConfig) int {
	ratio := float64(cfg.MaxDelay) / float64(cfg.BaseDelay)
	n := math.Log(ratio) / math.Log(cfg.Multiplier)
	return int(math.Ceil(n - 1e-9))
}

// Delay returns the wait before the next attempt, including jitter.
func (b *Backoff) Delay() time.Duration {
	var base time.Duration
	if b.attempt == b.maxAttempt {
		base = b.cfg.MaxDelay
	} else {
		base = time.Duration(math.Round(float64(b.cfg.BaseDelay) * math.Pow(b.cfg.Multiplier, float64(b.attempt))))
	}

	jitter := time.Duration(b.rnd.Int64N(int64(b.cfg.Jitter) + 1))
	if b.rnd.Int64N(2) == 0 {
		jitter = -jitter
	}

	d := base + jitter
	if d < 0 {
		return 0
	}
	return d
}

func (b *Backoff) Fail() {
	b.attempt = min(b.attempt+1, b.maxAttempt)
}

func (b *Backoff) Reset() {
	b.attempt = 0
}

func (b *Backoff) Attempt() int { return b.attempt }

func (b *Backoff) MaxAttempt() int { return b.maxAttempt }
