package linechan

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"reflect"
	"sync"
)

// Stream is a Channel over an arbitrary reader/writer pair.
type Stream struct {
	cfg  *config
	w    *bufio.Writer
	recv *receiver

	closers   []io.Closer
	closeOnce sync.Once
	closeErr  error
}

var _ Channel = (*Stream)(nil)

// NewStream creates a Channel that writes frames to w and reads lines from r.
//
// r and w are closed by Close when they implement io.Closer.
func NewStream(r io.Reader, w io.Writer, opts ...Option) (*Stream, error) {
	if r == nil || w == nil {
		return nil, errors.New("linechan: reader and writer must not be nil")
	}

	cfg, err := newConfig("stream", opts)
	if err != nil {
		return nil, err
	}

	s := &Stream{
		cfg: cfg,
		w:   bufio.NewWriter(w),
	}

	if c, ok := w.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
	if c, ok := r.(io.Closer); ok && !sameValue(r, w) {
		s.closers = append(s.closers, c)
	}

	br := bufio.NewReader(r)
	s.recv = newReceiver(func() (string, error) {
		line, err := br.ReadString('\n')
		if err != nil {
			if errors.Is(err, io.EOF) && line != "" {
				return "", fmt.Errorf("linechan: partial line %q: %w", line, io.ErrUnexpectedEOF)
			}

			return "", err
		}

		return trimLine(line), nil
	})

	return s, nil
}

// Send implements Channel.
//
// A write blocked past the end of ctx closes the stream, which is the only way to abort a
// write on a pipe or FIFO whose reader stopped reading. Send then returns ctx's error.
func (s *Stream) Send(ctx context.Context, line string) error {
	if s.recv.isClosed() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := checkLine(line); err != nil {
		return err
	}

	s.cfg.traceOut(line)

	stop := context.AfterFunc(ctx, func() { _ = s.Close() })
	defer stop()

	if _, err := s.w.WriteString(line); err != nil {
		return s.writeErr(ctx, "write", err)
	}
	if err := s.w.WriteByte('\n'); err != nil {
		return s.writeErr(ctx, "write", err)
	}
	if err := s.w.Flush(); err != nil {
		return s.writeErr(ctx, "flush", err)
	}

	return nil
}

func (s *Stream) writeErr(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		s.cfg.logger.Debug("linechan: write aborted, stream closed", "error", ctxErr)
		return fmt.Errorf("linechan: %s aborted: %w", op, ctxErr)
	}

	return fmt.Errorf("linechan: %s: %w", op, err)
}

// Receive implements Channel.
func (s *Stream) Receive(ctx context.Context) (string, error) {
	line, err := s.recv.receive(ctx)
	if err != nil {
		return "", err
	}

	s.cfg.traceIn(line)

	return line, nil
}

// Close implements Channel. It is safe to call Close more than once.
func (s *Stream) Close() error {
	s.closeOnce.Do(func() {
		s.recv.close()

		errs := make([]error, 0, len(s.closers))
		for _, c := range s.closers {
			errs = append(errs, c.Close())
		}
		s.closeErr = errors.Join(errs...)
	})

	return s.closeErr
}

// sameValue reports whether r and w hold the same underlying object, such as a
// serial port used for both directions.
func sameValue(r io.Reader, w io.Writer) bool {
	t := reflect.TypeOf(r)
	if t != reflect.TypeOf(w) || !t.Comparable() {
		return false
	}

	return any(r) == any(w)
}
