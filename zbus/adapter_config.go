package zbus

import (
	"errors"
	"fmt"
	"time"

	"github.com/arloliu/go-zbus/logger"
)

const (
	// DefaultName is the adapter name used in log records when none is configured.
	DefaultName = "zbus"

	// DefaultWaitTimeout is the handshake wait bound. Zero means the adapter waits for the
	// peer's ack or data forever, as the protocol specifies.
	DefaultWaitTimeout = time.Duration(0)

	// DefaultRetryLimit and DefaultDataWaitLimit of zero mean unlimited.
	DefaultRetryLimit    = 0
	DefaultDataWaitLimit = 0

	// DefaultStartupIdle sends no idle cycles before the first frame.
	DefaultStartupIdle = 0
	// MaxStartupIdle bounds WithStartupIdle.
	MaxStartupIdle = 1 << 16

	// MaxWaitTimeout bounds WithWaitTimeout.
	MaxWaitTimeout = 24 * time.Hour
)

// AdapterConfig holds the configuration of an Adapter.
type AdapterConfig struct {
	name string

	// waitTimeout bounds each operation's handshake waits; 0 disables the bound.
	waitTimeout time.Duration

	// retryLimit is the maximum number of request resends before ack; 0 is unlimited.
	retryLimit int

	// dataWaitLimit is the maximum number of idle frames sent after a read ack; 0 is unlimited.
	dataWaitLimit int

	// startupIdle is the number of idle frames sent before the first frame.
	startupIdle int

	logger logger.Logger
}

func newAdapterConfig(opts []AdapterOption) (*AdapterConfig, error) {
	cfg := &AdapterConfig{
		name:          DefaultName,
		waitTimeout:   DefaultWaitTimeout,
		retryLimit:    DefaultRetryLimit,
		dataWaitLimit: DefaultDataWaitLimit,
		startupIdle:   DefaultStartupIdle,
		logger:        logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// --- Getters ---

// Name returns the adapter name.
func (cfg *AdapterConfig) Name() string { return cfg.name }

// WaitTimeout returns the handshake wait bound, 0 when unbounded.
func (cfg *AdapterConfig) WaitTimeout() time.Duration { return cfg.waitTimeout }

// RetryLimit returns the ack retry limit, 0 when unlimited.
func (cfg *AdapterConfig) RetryLimit() int { return cfg.retryLimit }

// DataWaitLimit returns the read data wait limit, 0 when unlimited.
func (cfg *AdapterConfig) DataWaitLimit() int { return cfg.dataWaitLimit }

// StartupIdle returns the number of idle cycles sent before the first frame.
func (cfg *AdapterConfig) StartupIdle() int { return cfg.startupIdle }

// GetLogger returns the configured logger.
func (cfg *AdapterConfig) GetLogger() logger.Logger { return cfg.logger }

// --- AdapterOption ---

// AdapterOption is a functional option for configuring an Adapter.
type AdapterOption interface {
	apply(*AdapterConfig) error
}

type adapterOptFunc func(*AdapterConfig) error

func (f adapterOptFunc) apply(cfg *AdapterConfig) error { return f(cfg) }

// WithName sets the adapter name used in log records.
func WithName(name string) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if name == "" {
			return errors.New("zbus: name must not be empty")
		}
		cfg.name = name

		return nil
	})
}

// WithWaitTimeout bounds the handshake waits of every operation. When the bound is exceeded
// the operation fails with ErrTimeout. Zero restores the unbounded spin-wait.
func WithWaitTimeout(d time.Duration) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if d < 0 || d > MaxWaitTimeout {
			return fmt.Errorf("zbus: wait timeout %v out of range [0, %v]", d, MaxWaitTimeout)
		}
		cfg.waitTimeout = d

		return nil
	})
}

// WithRetryLimit limits how many times a request frame is resent before the peer acks it.
// Zero means unlimited.
func WithRetryLimit(n int) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if n < 0 {
			return fmt.Errorf("zbus: retry limit %d must not be negative", n)
		}
		cfg.retryLimit = n

		return nil
	})
}

// WithDataWaitLimit limits how many idle frames a read sends after its ack while waiting
// for data. Zero means unlimited.
func WithDataWaitLimit(n int) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if n < 0 {
			return fmt.Errorf("zbus: data wait limit %d must not be negative", n)
		}
		cfg.dataWaitLimit = n

		return nil
	})
}

// WithStartupIdle makes the adapter send n idle frames, one response each, before its first
// frame, so a simulator coming out of reset sees a few quiet cycles.
func WithStartupIdle(n int) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if n < 0 || n > MaxStartupIdle {
			return fmt.Errorf("zbus: startup idle %d out of range [0, %d]", n, MaxStartupIdle)
		}
		cfg.startupIdle = n

		return nil
	})
}

// WithLogger sets the logger for the adapter.
func WithLogger(l logger.Logger) AdapterOption {
	return adapterOptFunc(func(cfg *AdapterConfig) error {
		if l == nil {
			return errors.New("zbus: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}
