package request

import (
	"fmt"
	"time"

	"github.com/linux-surface/go-ssam/logger"
)

// Default and limit values per spec §6's configurable parameters.
const (
	DefaultWriteTimeout = 1000 * time.Millisecond
	DefaultReadTimeout  = 1000 * time.Millisecond
	DefaultNumRetry     = 3

	MinTimeout    = 10 * time.Millisecond
	MaxTimeout    = 60 * time.Second
	MaxNumRetry   = 31
	MaxPayloadCap = 4096 // upper bound; the effective MAX_PAYLOAD is EC-defined
)

// Config holds the tunables of an Engine.
type Config struct {
	writeTimeout time.Duration
	readTimeout  time.Duration
	numRetry     int
	maxPayload   int
	eventBits    int
	logger       logger.Logger
	onRetry      func()
}

// defaultConfig returns a Config with spec-default values.
func defaultConfig() Config {
	return Config{
		writeTimeout: DefaultWriteTimeout,
		readTimeout:  DefaultReadTimeout,
		numRetry:     DefaultNumRetry,
		maxPayload:   MaxPayloadCap,
		eventBits:    0,
		logger:       logger.GetLogger(),
	}
}

// Option configures an Engine. Matches the ConnOption functional-options
// shape: an unexported apply method on a function type, With* constructors
// that validate their argument before returning the option.
type Option interface {
	apply(*Config) error
}

type optFunc func(*Config) error

func (f optFunc) apply(cfg *Config) error { return f(cfg) }

// WithWriteTimeout sets the per-attempt link-flush timeout.
func WithWriteTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("request: write timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.writeTimeout = d

		return nil
	})
}

// WithReadTimeout sets the per-attempt completion-wait timeout.
func WithReadTimeout(d time.Duration) Option {
	return optFunc(func(cfg *Config) error {
		if d < MinTimeout || d > MaxTimeout {
			return fmt.Errorf("request: read timeout %v out of range [%v, %v]", d, MinTimeout, MaxTimeout)
		}
		cfg.readTimeout = d

		return nil
	})
}

// WithNumRetry sets how many times a request is retransmitted after its
// first send attempt (n+1 attempts in all).
func WithNumRetry(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > MaxNumRetry {
			return fmt.Errorf("request: retry count %d out of range [0, %d]", n, MaxNumRetry)
		}
		cfg.numRetry = n

		return nil
	})
}

// WithMaxPayload sets the EC-defined MAX_PAYLOAD bound.
func WithMaxPayload(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n <= 0 || n > MaxPayloadCap {
			return fmt.Errorf("request: max payload %d out of range (0, %d]", n, MaxPayloadCap)
		}
		cfg.maxPayload = n

		return nil
	})
}

// WithEventBits sets the EC-defined event-id mask width N.
func WithEventBits(n int) Option {
	return optFunc(func(cfg *Config) error {
		if n < 0 || n > 15 {
			return fmt.Errorf("request: event bits %d out of range [0, 15]", n)
		}
		cfg.eventBits = n

		return nil
	})
}

// WithOnRetry sets a hook invoked once per retransmission (not for the
// initial attempt), letting a caller maintain its own retry counter.
func WithOnRetry(fn func()) Option {
	return optFunc(func(cfg *Config) error {
		cfg.onRetry = fn

		return nil
	})
}

// WithLogger overrides the engine's logger.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *Config) error {
		cfg.logger = l

		return nil
	})
}

func newConfig(opts ...Option) (Config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}
