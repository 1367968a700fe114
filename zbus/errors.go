package zbus

import "errors"

// Sentinel errors for the bus adapter.
var (
	// ErrIO indicates that the underlying channel failed: the stream was closed, a write
	// was rejected or the input ended before a line completed. The channel error is wrapped.
	ErrIO = errors.New("zbus: channel i/o failure")

	// ErrMalformedFrame indicates that a frame or response line could not be parsed.
	ErrMalformedFrame = errors.New("zbus: malformed frame")

	// ErrClosedAdapter indicates an operation on an adapter after Finish or Close.
	ErrClosedAdapter = errors.New("zbus: adapter closed")

	// ErrTimeout indicates that a handshake wait exceeded its deadline. The request may be
	// retried; responses still owed by the peer are drained before the next frame is sent.
	ErrTimeout = errors.New("zbus: handshake wait timeout")

	// ErrRetryExhausted indicates that a configured retry or data wait limit was reached.
	ErrRetryExhausted = errors.New("zbus: retry limit exhausted")
)

var (
	// ErrInvalidSelect indicates a byte-select mask wider than four bits.
	ErrInvalidSelect = errors.New("zbus: invalid byte select, should be in range of [0, 0xF]")

	// ErrInvalidKind indicates an unknown transaction kind.
	ErrInvalidKind = errors.New("zbus: invalid transaction kind")

	// ErrInvalidArgument indicates an invalid operation argument.
	ErrInvalidArgument = errors.New("zbus: invalid argument")

	// ErrChannelIndex indicates a channel index out of range of a MultiAdapter.
	ErrChannelIndex = errors.New("zbus: channel index out of range")
)
