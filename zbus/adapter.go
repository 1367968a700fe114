package zbus

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/arloliu/go-zbus/linechan"
	"github.com/arloliu/go-zbus/logger"
)

var (
	idleFrame, _   = EncodeFrame(IdleTx())
	finishFrame, _ = EncodeFrame(FinishTx())
)

// Adapter drives one bus endpoint over a line channel.
//
// It implements the request/acknowledge handshake: a request frame is resent until the peer
// acks it, and a read then idles the bus until the peer signals that data is ready.
//
// This type is NOT goroutine-safe. The protocol allows one outstanding request per channel,
// so callers sharing an adapter must serialize their operations. State and Metrics may be
// read from any goroutine.
type Adapter struct {
	ch     linechan.Channel
	cfg    *AdapterConfig
	logger logger.Logger

	state atomicState

	// owed is the number of responses the peer still owes for frames already sent.
	// Outside Submit/Collect it is non-zero only after a wait was aborted.
	owed int

	// submitted is the kind of the last frame sent by Submit.
	submitted Kind

	// started is set once the startup idle cycles were sent.
	started bool

	metrics AdapterMetrics
}

// NewAdapter creates an adapter owning ch. The adapter starts in IdleState and performs no
// I/O until the first operation.
func NewAdapter(ch linechan.Channel, opts ...AdapterOption) (*Adapter, error) {
	if ch == nil {
		return nil, errors.New("zbus: channel is nil")
	}

	cfg, err := newAdapterConfig(opts)
	if err != nil {
		return nil, err
	}

	return &Adapter{
		ch:     ch,
		cfg:    cfg,
		logger: cfg.logger.With("adapter", cfg.name),
	}, nil
}

// Name returns the configured adapter name.
func (a *Adapter) Name() string { return a.cfg.name }

// Config returns the adapter configuration.
func (a *Adapter) Config() *AdapterConfig { return a.cfg }

// State returns the current handshake state.
func (a *Adapter) State() AdapterState { return a.state.Get() }

// Metrics returns the adapter metrics.
func (a *Adapter) Metrics() *AdapterMetrics { return &a.metrics }

// WriteWord writes a full word (all bytes selected) to address.
func (a *Adapter) WriteWord(ctx context.Context, address, data uint32) error {
	return a.WriteWordSelect(ctx, address, data, SelectAll)
}

// WriteWordSelect writes the bytes of data enabled by sel to address.
//
// The Write frame is resent until the peer acknowledges it.
func (a *Adapter) WriteWordSelect(ctx context.Context, address, data uint32, sel uint8) error {
	if a.state.IsClosed() {
		return ErrClosedAdapter
	}

	frame, err := EncodeFrame(WriteTx(address, data, sel))
	if err != nil {
		return fmt.Errorf("zbus: write word: %w", err)
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	if _, err := a.request(ctx, frame); err != nil {
		return a.fail(fmt.Sprintf("write word 0x%08x", address), err)
	}

	a.state.Set(IdleState)
	a.metrics.incWriteCount()

	return nil
}

// ReadWord reads a full word (all bytes selected) from address.
func (a *Adapter) ReadWord(ctx context.Context, address uint32) (uint32, error) {
	return a.ReadWordSelect(ctx, address, SelectAll)
}

// ReadWordSelect reads the bytes enabled by sel from address.
//
// The Read frame is resent until the peer acknowledges it. Idle frames are then sent until a
// response has its req bit set, and the payload of that response is returned. A response that
// acks and sets req at once completes the read immediately.
func (a *Adapter) ReadWordSelect(ctx context.Context, address uint32, sel uint8) (uint32, error) {
	if a.state.IsClosed() {
		return 0, ErrClosedAdapter
	}

	frame, err := EncodeFrame(ReadTx(address, sel))
	if err != nil {
		return 0, fmt.Errorf("zbus: read word: %w", err)
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	op := fmt.Sprintf("read word 0x%08x", address)

	st, err := a.request(ctx, frame)
	if err != nil {
		return 0, a.fail(op, err)
	}

	if !st.ReqPending {
		a.state.Set(AwaitingDataState)

		for waits := 0; !st.ReqPending; waits++ {
			if a.cfg.dataWaitLimit > 0 && waits >= a.cfg.dataWaitLimit {
				return 0, a.fail(op, fmt.Errorf("%w: no data after %d idle cycles", ErrRetryExhausted, waits))
			}

			a.metrics.incDataWaitCount()

			st, err = a.exchange(ctx, idleFrame)
			if err != nil {
				return 0, a.fail(op, err)
			}
		}
	}

	v, err := st.Payload()
	if err != nil {
		return 0, a.fail(op, err)
	}

	a.state.Set(IdleState)
	a.metrics.incReadCount()

	return v, nil
}

// ReadRepeat reads n words from the same address, the way a data register or FIFO port is
// drained.
func (a *Adapter) ReadRepeat(ctx context.Context, address uint32, n int) ([]uint32, error) {
	if n < 1 {
		return nil, fmt.Errorf("%w: read count %d must be positive", ErrInvalidArgument, n)
	}

	words := make([]uint32, 0, n)
	for i := 0; i < n; i++ {
		v, err := a.ReadWord(ctx, address)
		if err != nil {
			return words, err
		}
		words = append(words, v)
	}

	return words, nil
}

// WriteRepeat writes every word of words to the same address, in order.
func (a *Adapter) WriteRepeat(ctx context.Context, address uint32, words []uint32) error {
	for _, w := range words {
		if err := a.WriteWord(ctx, address, w); err != nil {
			return err
		}
	}

	return nil
}

// Idle sends count idle frames, awaiting one response per frame, to let simulated time pass
// without bus activity. It returns the last response line.
func (a *Adapter) Idle(ctx context.Context, count int) (string, error) {
	if a.state.IsClosed() {
		return "", ErrClosedAdapter
	}
	if count < 1 {
		return "", fmt.Errorf("%w: idle count %d must be positive", ErrInvalidArgument, count)
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	var last string
	for i := 0; i < count; i++ {
		line, err := a.roundTrip(ctx, idleFrame)
		if err != nil {
			return "", a.fail("idle", err)
		}
		last = line
	}

	a.metrics.addIdleCount(count)

	return last, nil
}

// Finish sends the Finish frame, awaits its response and closes the channel.
//
// The adapter is closed afterwards even when the exchange fails.
func (a *Adapter) Finish(ctx context.Context) error {
	if a.state.IsClosed() {
		return ErrClosedAdapter
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	_, err := a.roundTrip(ctx, finishFrame)

	a.state.ToClosed()
	closeErr := a.ch.Close()

	if err != nil {
		a.metrics.incErrCount()
		return fmt.Errorf("zbus: finish: %w", err)
	}
	if closeErr != nil {
		return fmt.Errorf("%w: finish: close channel: %w", ErrIO, closeErr)
	}

	a.logger.Debug("zbus: adapter finished")

	return nil
}

// Close releases the channel without sending Finish.
func (a *Adapter) Close() error {
	if !a.state.ToClosed() {
		return nil
	}

	if err := a.ch.Close(); err != nil {
		return fmt.Errorf("%w: close channel: %w", ErrIO, err)
	}

	return nil
}

// Submit sends the frame of t without waiting for its response, which must be taken with
// Collect before the next Submit. Finish is rejected; use Finish.
//
// Submit and Collect are the per-channel halves of the batched MultiAdapter operations.
func (a *Adapter) Submit(ctx context.Context, t Transaction) error {
	if err := checkSubmit(a, t); err != nil {
		return err
	}

	frame, err := EncodeFrame(t)
	if err != nil {
		return fmt.Errorf("zbus: submit: %w", err)
	}

	if err := a.send(ctx, frame); err != nil {
		return a.fail("submit", err)
	}

	a.submitted = t.Kind
	if t.Kind == KindWrite || t.Kind == KindRead {
		a.state.Set(AwaitingAckState)
	}

	return nil
}

// checkSubmit reports why t cannot be submitted on a, without sending anything.
func checkSubmit(a *Adapter, t Transaction) error {
	if a.state.IsClosed() {
		return ErrClosedAdapter
	}
	if t.Kind == KindFinish {
		return fmt.Errorf("%w: submit does not accept Finish", ErrInvalidArgument)
	}
	if err := t.Validate(); err != nil {
		return fmt.Errorf("zbus: submit: %w", err)
	}

	return nil
}

// Collect receives and decodes the response to the last submitted frame. It fails with
// ErrInvalidArgument, without reading the channel, when no response is owed.
//
// An acknowledged write returns the adapter to IdleState. An acknowledged read without data
// moves it to AwaitingDataState until a later response has its req bit set.
func (a *Adapter) Collect(ctx context.Context) (Status, error) {
	if a.state.IsClosed() {
		return Status{}, ErrClosedAdapter
	}
	if a.owed == 0 {
		return Status{}, fmt.Errorf("%w: collect without a submitted frame", ErrInvalidArgument)
	}

	ctx, cancel := a.opContext(ctx)
	defer cancel()

	line, err := a.receive(ctx)
	if err != nil {
		return Status{}, a.fail("collect", err)
	}

	st, err := DecodeStatus(line)
	if err != nil {
		return Status{}, a.fail("collect", err)
	}

	switch a.state.Get() {
	case AwaitingAckState:
		if !st.Ack {
			break
		}
		if a.submitted == KindRead && !st.ReqPending {
			a.state.Set(AwaitingDataState)
		} else {
			a.state.Set(IdleState)
		}

	case AwaitingDataState:
		if st.ReqPending {
			a.state.Set(IdleState)
		}
	}

	return st, nil
}

// --- handshake internals ---

// request sends frame until a response acknowledges it and returns that response.
func (a *Adapter) request(ctx context.Context, frame string) (Status, error) {
	a.state.Set(AwaitingAckState)

	for retry := 0; ; retry++ {
		st, err := a.exchange(ctx, frame)
		if err != nil {
			return Status{}, err
		}
		if st.Ack {
			return st, nil
		}

		if a.cfg.retryLimit > 0 && retry >= a.cfg.retryLimit {
			return Status{}, fmt.Errorf("%w: no ack after %d retries", ErrRetryExhausted, retry)
		}

		a.metrics.incAckRetryCount()
		a.logger.Debug("zbus: no ack, resending request",
			"frame", frame,
			"retry", retry+1,
		)
	}
}

// exchange sends one frame and decodes its response.
func (a *Adapter) exchange(ctx context.Context, frame string) (Status, error) {
	line, err := a.roundTrip(ctx, frame)
	if err != nil {
		return Status{}, err
	}

	return DecodeStatus(line)
}

// roundTrip sends one frame and returns the raw response line.
func (a *Adapter) roundTrip(ctx context.Context, frame string) (string, error) {
	if err := a.send(ctx, frame); err != nil {
		return "", err
	}

	return a.receive(ctx)
}

// send drains responses still owed for earlier frames, then sends frame. The first frame
// of the adapter is preceded by the configured startup idle cycles.
func (a *Adapter) send(ctx context.Context, frame string) error {
	if err := a.drain(ctx); err != nil {
		return err
	}

	if !a.started {
		a.started = true
		if err := a.startupIdle(ctx); err != nil {
			a.started = false
			return err
		}
	}

	a.logger.Debug("zbus: send frame", "frame", frame)

	if err := a.ch.Send(ctx, frame); err != nil {
		return channelErr(err)
	}

	a.owed++
	a.metrics.incFrameSendCount()

	return nil
}

// startupIdle lets the peer settle before the first real frame.
func (a *Adapter) startupIdle(ctx context.Context) error {
	n := a.cfg.startupIdle
	if n == 0 {
		return nil
	}

	a.logger.Debug("zbus: startup idle", "cycles", n)

	for i := 0; i < n; i++ {
		if _, err := a.roundTrip(ctx, idleFrame); err != nil {
			return err
		}
	}
	a.metrics.addIdleCount(n)

	return nil
}

// receive takes one response line owed by the peer.
func (a *Adapter) receive(ctx context.Context) (string, error) {
	line, err := a.ch.Receive(ctx)
	if err != nil {
		if errors.Is(err, linechan.ErrEmptyLine) {
			a.owed--
		}

		return "", channelErr(err)
	}

	a.owed--
	a.metrics.incFrameRecvCount()
	a.logger.Debug("zbus: receive response", "response", line)

	return line, nil
}

// drain discards responses owed for frames whose wait was aborted, so the next frame and
// its response stay paired.
func (a *Adapter) drain(ctx context.Context) error {
	for a.owed > 0 {
		line, err := a.ch.Receive(ctx)
		if err != nil && !errors.Is(err, linechan.ErrEmptyLine) {
			return channelErr(err)
		}

		a.owed--
		a.metrics.incStaleDrainCount()
		a.logger.Debug("zbus: discard stale response", "response", line)
	}

	return nil
}

func (a *Adapter) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if a.cfg.waitTimeout > 0 {
		return context.WithTimeout(ctx, a.cfg.waitTimeout)
	}

	return context.WithCancel(ctx)
}

// fail records a failed operation and returns the adapter to IdleState.
func (a *Adapter) fail(op string, err error) error {
	a.metrics.incErrCount()
	a.state.Set(IdleState)

	a.logger.Debug("zbus: operation failed", "op", op, "error", err)

	return fmt.Errorf("zbus: %s: %w", op, err)
}

// channelErr classifies a channel error into the adapter's error taxonomy.
func channelErr(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	case errors.Is(err, context.Canceled):
		return err
	case errors.Is(err, linechan.ErrEmptyLine):
		return fmt.Errorf("%w: %w", ErrMalformedFrame, err)
	default:
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
}
