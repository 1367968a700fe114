package linechan

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/arloliu/go-zbus/logger"
)

var (
	// ErrClosed indicates that the channel was closed by its owner.
	ErrClosed = errors.New("linechan: channel closed")

	// ErrEmptyLine indicates that the peer sent an empty line where a record was required.
	ErrEmptyLine = errors.New("linechan: empty line received")

	// ErrEmbeddedNewline indicates that a line passed to Send contains a line terminator.
	ErrEmbeddedNewline = errors.New("linechan: line contains a newline")
)

// Channel is a duplex pair of line-oriented byte streams.
type Channel interface {
	// Send writes line followed by a newline and flushes it to the peer immediately.
	// If ctx ends while the write is blocked, the write is aborted, the channel is closed
	// and ctx's error is returned.
	Send(ctx context.Context, line string) error
	// Receive blocks until a complete line is available and returns it without the
	// line terminator.
	Receive(ctx context.Context) (string, error)
	// Close releases both streams. Pending and later calls fail with ErrClosed.
	Close() error
}

// lineResult is one completed read delivered by the reader goroutine.
type lineResult struct {
	line string
	err  error
}

// receiver runs the reader goroutine shared by all transports.
//
// readLine is called repeatedly from the goroutine until it returns an error.
// The error is delivered to Receive once and then kept as the sticky result.
type receiver struct {
	lines chan lineResult
	done  chan struct{}
	once  sync.Once
	err   error
}

func newReceiver(readLine func() (string, error)) *receiver {
	r := &receiver{
		lines: make(chan lineResult),
		done:  make(chan struct{}),
	}

	go r.loop(readLine)

	return r
}

func (r *receiver) loop(readLine func() (string, error)) {
	for {
		line, err := readLine()
		select {
		case r.lines <- lineResult{line: line, err: err}:
		case <-r.done:
			return
		}

		if err != nil {
			return
		}
	}
}

func (r *receiver) receive(ctx context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}

	select {
	case <-r.done:
		return "", ErrClosed
	default:
	}

	select {
	case res := <-r.lines:
		if res.err != nil {
			r.err = res.err
			return "", res.err
		}
		if res.line == "" {
			return "", ErrEmptyLine
		}

		return res.line, nil

	case <-ctx.Done():
		return "", ctx.Err()

	case <-r.done:
		return "", ErrClosed
	}
}

func (r *receiver) close() {
	r.once.Do(func() { close(r.done) })
}

func (r *receiver) isClosed() bool {
	select {
	case <-r.done:
		return true
	default:
		return false
	}
}

// trimLine strips the line terminator, accepting both "\n" and "\r\n".
func trimLine(s string) string {
	s = strings.TrimSuffix(s, "\n")
	return strings.TrimSuffix(s, "\r")
}

func checkLine(line string) error {
	if strings.ContainsAny(line, "\r\n") {
		return fmt.Errorf("%w: %q", ErrEmbeddedNewline, line)
	}

	return nil
}

// --- Options ---

type config struct {
	name   string
	trace  bool
	logger logger.Logger
}

func newConfig(defName string, opts []Option) (*config, error) {
	cfg := &config{
		name:   defName,
		logger: logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(cfg); err != nil {
			return nil, err
		}
	}

	cfg.logger = cfg.logger.With("channel", cfg.name)

	return cfg, nil
}

func (cfg *config) traceOut(line string) {
	if cfg.trace {
		cfg.logger.Debug("linechan: O", "line", line)
	}
}

func (cfg *config) traceIn(line string) {
	if cfg.trace {
		cfg.logger.Debug("linechan: I", "line", line)
	}
}

// Option is a functional option for configuring a Channel.
type Option interface {
	apply(*config) error
}

type optFunc func(*config) error

func (f optFunc) apply(cfg *config) error { return f(cfg) }

// WithName sets the channel name used in log records.
func WithName(name string) Option {
	return optFunc(func(cfg *config) error {
		if name == "" {
			return errors.New("linechan: name must not be empty")
		}
		cfg.name = name

		return nil
	})
}

// WithLogger sets the logger for the channel.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(cfg *config) error {
		if l == nil {
			return errors.New("linechan: logger must not be nil")
		}
		cfg.logger = l

		return nil
	})
}

// WithTrace enables or disables debug logging of every line sent ("O") and received ("I").
func WithTrace(enabled bool) Option {
	return optFunc(func(cfg *config) error {
		cfg.trace = enabled
		return nil
	})
}
