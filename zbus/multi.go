package zbus

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/arloliu/go-zbus/linechan"
)

// MultiAdapter drives several independent bus endpoints, one Adapter per channel pair,
// addressed by channel index.
//
// Batched operations visit the channels in index order and return per-channel results in
// the same order. Channels do not affect each other: each keeps its own handshake state.
type MultiAdapter struct {
	adapters []*Adapter
}

// NewMultiAdapter creates one adapter per channel. opts are applied to every adapter; each
// adapter is named "<name>[<index>]".
func NewMultiAdapter(chs []linechan.Channel, opts ...AdapterOption) (*MultiAdapter, error) {
	if len(chs) == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrInvalidArgument)
	}

	base, err := newAdapterConfig(opts)
	if err != nil {
		return nil, err
	}

	m := &MultiAdapter{adapters: make([]*Adapter, 0, len(chs))}
	for i, ch := range chs {
		chOpts := append(append([]AdapterOption{}, opts...),
			WithName(base.name+"["+strconv.Itoa(i)+"]"),
			WithLogger(base.logger.With("channel", i)),
		)

		a, err := NewAdapter(ch, chOpts...)
		if err != nil {
			return nil, fmt.Errorf("zbus: channel %d: %w", i, err)
		}
		m.adapters = append(m.adapters, a)
	}

	return m, nil
}

// Len returns the number of channels.
func (m *MultiAdapter) Len() int { return len(m.adapters) }

// Channel returns the adapter of channel i.
func (m *MultiAdapter) Channel(i int) (*Adapter, error) {
	if i < 0 || i >= len(m.adapters) {
		return nil, fmt.Errorf("%w: %d not in [0, %d)", ErrChannelIndex, i, len(m.adapters))
	}

	return m.adapters[i], nil
}

// ZW sends txs[i] on channel i, in index order, without waiting for responses.
// len(txs) must equal Len(). The responses must be taken with ZR.
//
// The whole batch is validated before the first frame is sent, so an invalid transaction
// or a closed channel leaves every channel untouched. A channel failure while sending
// still leaves the earlier channels with a submitted frame.
func (m *MultiAdapter) ZW(ctx context.Context, txs []Transaction) error {
	if len(txs) != len(m.adapters) {
		return fmt.Errorf("%w: %d transactions for %d channels", ErrInvalidArgument, len(txs), len(m.adapters))
	}

	for i, a := range m.adapters {
		if err := checkSubmit(a, txs[i]); err != nil {
			return fmt.Errorf("zbus: zw channel %d: %w", i, err)
		}
	}

	for i, a := range m.adapters {
		if err := a.Submit(ctx, txs[i]); err != nil {
			return fmt.Errorf("zbus: zw channel %d: %w", i, err)
		}
	}

	return nil
}

// ZR receives one response per channel, in index order.
func (m *MultiAdapter) ZR(ctx context.Context) ([]Status, error) {
	sts := make([]Status, len(m.adapters))
	for i, a := range m.adapters {
		st, err := a.Collect(ctx)
		if err != nil {
			return sts[:i], fmt.Errorf("zbus: zr channel %d: %w", i, err)
		}
		sts[i] = st
	}

	return sts, nil
}

// Exchange performs ZW followed by ZR.
func (m *MultiAdapter) Exchange(ctx context.Context, txs []Transaction) ([]Status, error) {
	if err := m.ZW(ctx, txs); err != nil {
		return nil, err
	}

	return m.ZR(ctx)
}

// IdleAll sends n idle frames on every channel and returns each channel's last response.
func (m *MultiAdapter) IdleAll(ctx context.Context, n int) ([]string, error) {
	lines := make([]string, len(m.adapters))
	for i, a := range m.adapters {
		line, err := a.Idle(ctx, n)
		if err != nil {
			return lines[:i], fmt.Errorf("zbus: idle channel %d: %w", i, err)
		}
		lines[i] = line
	}

	return lines, nil
}

// FinishAll finishes every channel that is still open. All channels are visited even when
// some fail; the errors are joined.
func (m *MultiAdapter) FinishAll(ctx context.Context) error {
	var errs []error
	for i, a := range m.adapters {
		if a.State() == ClosedState {
			continue
		}
		if err := a.Finish(ctx); err != nil {
			errs = append(errs, fmt.Errorf("zbus: finish channel %d: %w", i, err))
		}
	}

	return errors.Join(errs...)
}

// Close releases every channel without sending Finish.
func (m *MultiAdapter) Close() error {
	var errs []error
	for _, a := range m.adapters {
		errs = append(errs, a.Close())
	}

	return errors.Join(errs...)
}
