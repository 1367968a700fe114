// Package sim provides a simulated bus endpoint that implements the peer half of the zbus
// protocol over a word-addressed memory map.
//
// It answers every request frame with exactly one response line, acknowledges requests after
// a configurable number of repeats, and delivers read data a configurable number of idle
// cycles after the acknowledge, which exercises both handshake loops of zbus.Adapter.
package sim

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/arloliu/go-zbus/linechan"
	"github.com/arloliu/go-zbus/logger"
	"github.com/arloliu/go-zbus/zbus"
	"github.com/puzpuzpuz/xsync/v3"
)

const (
	// DefaultAckDelay acknowledges a request on its first frame.
	DefaultAckDelay = 0
	// DefaultReadLatency delivers read data one idle cycle after the acknowledge.
	DefaultReadLatency = 1

	// MaxDelay bounds WithAckDelay and WithReadLatency.
	MaxDelay = 1 << 16
)

// Bus is a simulated memory-mapped bus endpoint. Memory may be inspected and modified with
// Peek and Poke from any goroutine while Serve runs.
type Bus struct {
	mem         *xsync.MapOf[uint32, uint32]
	ackDelay    int
	readLatency int
	logger      logger.Logger

	frames    atomic.Uint64
	malformed atomic.Uint64
}

// Option is a functional option for configuring a Bus.
type Option interface {
	apply(*Bus) error
}

type optFunc func(*Bus) error

func (f optFunc) apply(b *Bus) error { return f(b) }

// WithAckDelay makes the bus answer a request with no-ack n times before acknowledging it,
// so the adapter has to resend the identical frame n times.
func WithAckDelay(n int) Option {
	return optFunc(func(b *Bus) error {
		if n < 0 || n > MaxDelay {
			return fmt.Errorf("sim: ack delay %d out of range [0, %d]", n, MaxDelay)
		}
		b.ackDelay = n

		return nil
	})
}

// WithReadLatency sets the number of idle cycles between a read's acknowledge and its data.
// Zero delivers the data with the acknowledge.
func WithReadLatency(n int) Option {
	return optFunc(func(b *Bus) error {
		if n < 0 || n > MaxDelay {
			return fmt.Errorf("sim: read latency %d out of range [0, %d]", n, MaxDelay)
		}
		b.readLatency = n

		return nil
	})
}

// WithMemory preloads memory words.
func WithMemory(words map[uint32]uint32) Option {
	return optFunc(func(b *Bus) error {
		for adr, v := range words {
			b.mem.Store(adr, v)
		}

		return nil
	})
}

// WithLogger sets the logger for the bus.
func WithLogger(l logger.Logger) Option {
	return optFunc(func(b *Bus) error {
		if l == nil {
			return errors.New("sim: logger must not be nil")
		}
		b.logger = l

		return nil
	})
}

// NewBus creates a simulated bus with empty (all zero) memory.
func NewBus(opts ...Option) (*Bus, error) {
	b := &Bus{
		mem:         xsync.NewMapOf[uint32, uint32](),
		ackDelay:    DefaultAckDelay,
		readLatency: DefaultReadLatency,
		logger:      logger.GetLogger(),
	}

	for _, opt := range opts {
		if err := opt.apply(b); err != nil {
			return nil, err
		}
	}

	return b, nil
}

// Peek returns the word stored at address; unwritten words read as zero.
func (b *Bus) Peek(address uint32) uint32 {
	v, _ := b.mem.Load(address)
	return v
}

// Poke stores a word at address.
func (b *Bus) Poke(address, v uint32) {
	b.mem.Store(address, v)
}

// Frames returns the number of frames received by all Serve calls.
func (b *Bus) Frames() uint64 {
	return b.frames.Load()
}

// Malformed returns the number of undecodable frames received.
func (b *Bus) Malformed() uint64 {
	return b.malformed.Load()
}

// Serve answers frames received on ch until a Finish frame has been answered, the peer
// closes the channel, or ctx ends. It returns nil on Finish and on end of stream.
func (b *Bus) Serve(ctx context.Context, ch linechan.Channel) error {
	var s session

	for {
		line, err := ch.Receive(ctx)
		switch {
		case errors.Is(err, linechan.ErrEmptyLine):
			// still a frame, it still gets its response
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF), errors.Is(err, linechan.ErrClosed):
			b.logger.Debug("sim: channel closed by peer", "error", err)
			return nil
		case err != nil:
			return fmt.Errorf("sim: receive frame: %w", err)
		}

		b.frames.Add(1)

		var (
			resp     zbus.Response
			finished bool
		)

		tx, err := zbus.DecodeFrame(line)
		if err != nil {
			b.malformed.Add(1)
			b.logger.Warn("sim: undecodable frame", "frame", line, "error", err)
		} else {
			resp, finished = s.step(b, tx)
		}

		if err := ch.Send(ctx, resp.Encode()); err != nil {
			return fmt.Errorf("sim: send response: %w", err)
		}

		if finished {
			b.logger.Debug("sim: finish received")
			return nil
		}
	}
}

func selectMask(sel uint8) uint32 {
	var mask uint32
	for i := 0; i < 4; i++ {
		if sel&(1<<i) != 0 {
			mask |= 0xFF << (8 * i)
		}
	}

	return mask
}

func (b *Bus) write(t zbus.Transaction) {
	mask := selectMask(t.Select)
	b.mem.Compute(t.Address, func(old uint32, _ bool) (uint32, bool) {
		return old&^mask | t.Data&mask, false
	})
}

func (b *Bus) read(t zbus.Transaction) uint32 {
	return b.Peek(t.Address) & selectMask(t.Select)
}

// session is the handshake state of one Serve call.
type session struct {
	req     zbus.Transaction
	pending bool // req is a request being repeated until acked
	repeats int

	reading  bool
	dataIn   int
	readData uint32
}

// step computes the response to one decoded frame.
func (s *session) step(b *Bus, tx zbus.Transaction) (zbus.Response, bool) {
	switch tx.Kind {
	case zbus.KindFinish:
		return zbus.Response{}, true

	case zbus.KindIdle:
		s.pending = false
		if !s.reading {
			return zbus.Response{}, false
		}

		s.dataIn--
		if s.dataIn > 0 {
			return zbus.Response{}, false
		}
		s.reading = false

		return zbus.Response{Req: true, Data: s.readData, DataValid: true}, false
	}

	// Write or Read request.
	s.reading = false
	if s.pending && s.req == tx {
		s.repeats++
	} else {
		s.req, s.pending, s.repeats = tx, true, 0
	}

	if s.repeats < b.ackDelay {
		return zbus.Response{}, false
	}
	s.pending = false

	if tx.Kind == zbus.KindWrite {
		b.write(tx)
		return zbus.Response{Ack: true}, false
	}

	data := b.read(tx)
	if b.readLatency == 0 {
		return zbus.Response{Ack: true, Req: true, Data: data, DataValid: true}, false
	}

	s.reading, s.dataIn, s.readData = true, b.readLatency, data

	return zbus.Response{Ack: true}, false
}
