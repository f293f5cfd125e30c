package controller

import (
	"fmt"
	"time"

	"github.com/linux-surface/go-ssam/logger"
	"github.com/linux-surface/go-ssam/request"
)

// Default values for the EC addressing of the internal resume/suspend
// and event-source requests, per spec §6.
const (
	tcEC               = 0x01
	cidResume          = 0x16
	cidSuspend         = 0x15
	cidEnableEvent     = 0x0b
	cidDisableEvent    = 0x0c
	tcBaseStatusLegacy = 0x11
	cidBaseStatusQuery = 0x0D
)

// config bundles all constructor-time tunables.
type config struct {
	eventBits        int
	maxPayload       int
	fifoSize         int
	numRetry         int
	handlerWorkers   int
	legacyBaseStatus bool
	logger           logger.Logger
	requestOpts      []request.Option
}

func defaultConfig() config {
	return config{
		eventBits:  0,
		maxPayload: request.MaxPayloadCap,
		fifoSize:   512,
		numRetry:   request.DefaultNumRetry,
		logger:     logger.GetLogger(),
	}
}

// ConfigOption configures a Controller, matching the teacher's
// functional-options shape.
type ConfigOption interface {
	apply(*config) error
}

type configOptFunc func(*config) error

func (f configOptFunc) apply(cfg *config) error { return f(cfg) }

// WithEventBits sets the EC-defined event-id mask width N.
func WithEventBits(n int) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		if n < 0 || n > 15 {
			return fmt.Errorf("controller: event bits %d out of range [0, 15]", n)
		}
		cfg.eventBits = n

		return nil
	})
}

// WithMaxPayload sets the EC-defined MAX_PAYLOAD bound.
func WithMaxPayload(n int) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		if n <= 0 {
			return fmt.Errorf("controller: max payload must be positive, got %d", n)
		}
		cfg.maxPayload = n

		return nil
	})
}

// WithFIFOSize sets the reassembler's bounded completion-queue capacity.
func WithFIFOSize(n int) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		if n <= 0 {
			return fmt.Errorf("controller: FIFO size must be positive, got %d", n)
		}
		cfg.fifoSize = n

		return nil
	})
}

// WithNumRetry sets the request engine's retry count.
func WithNumRetry(n int) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		cfg.numRetry = n

		return nil
	})
}

// WithWriteTimeout sets the request engine's per-attempt link-flush
// timeout.
func WithWriteTimeout(d time.Duration) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		cfg.requestOpts = append(cfg.requestOpts, request.WithWriteTimeout(d))

		return nil
	})
}

// WithReadTimeout sets the request engine's per-attempt completion-wait
// timeout.
func WithReadTimeout(d time.Duration) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		cfg.requestOpts = append(cfg.requestOpts, request.WithReadTimeout(d))

		return nil
	})
}

// WithHandlerWorkers sets the event dispatcher's handler pool size.
func WithHandlerWorkers(n int) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		if n <= 0 {
			return fmt.Errorf("controller: handler workers must be positive, got %d", n)
		}
		cfg.handlerWorkers = n

		return nil
	})
}

// WithLegacyBaseStatusQuirk gates the legacy base-status short-circuit
// (spec §6, §9 open question) behind an explicit opt-in. Off by default.
func WithLegacyBaseStatusQuirk(enabled bool) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		cfg.legacyBaseStatus = enabled

		return nil
	})
}

// WithLogger overrides the controller's logger.
func WithLogger(l logger.Logger) ConfigOption {
	return configOptFunc(func(cfg *config) error {
		cfg.logger = l

		return nil
	})
}

func newConfig(opts ...ConfigOption) (config, error) {
	cfg := defaultConfig()
	for _, opt := range opts {
		if err := opt.apply(&cfg); err != nil {
			return config{}, err
		}
	}

	return cfg, nil
}
