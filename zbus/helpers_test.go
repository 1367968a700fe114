package zbus

import (
	"context"
	"testing"
	"time"

	"github.com/arloliu/go-zbus/linechan"
	"github.com/stretchr/testify/require"
)

const peerTimeout = 5 * time.Second

// newTestPipe creates an in-memory channel pair and registers cleanup.
// The first channel is the adapter side, the second the peer side.
func newTestPipe(t *testing.T) (*linechan.Stream, *linechan.Stream) {
	t.Helper()

	local, remote, err := linechan.Pipe()
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = local.Close()
		_ = remote.Close()
	})

	return local, remote
}

// newTestAdapter creates an Adapter over the local end of a pipe.
// Returns the adapter and the remote end for peer simulation.
func newTestAdapter(t *testing.T, opts ...AdapterOption) (*Adapter, *linechan.Stream) {
	t.Helper()

	local, remote := newTestPipe(t)

	a, err := NewAdapter(local, opts...)
	require.NoError(t, err)

	return a, remote
}

// scriptedPeer answers each received frame with the next scripted response and
// records the frames it received.
type scriptedPeer struct {
	t      *testing.T
	frames chan string
	done   chan struct{}
}

// runPeer starts a peer on ch. onFrame, when not nil, is called with every frame before
// the response is sent.
func runPeer(t *testing.T, ch linechan.Channel, resps []string, onFrame func(i int, frame string)) *scriptedPeer {
	t.Helper()

	p := &scriptedPeer{
		t:      t,
		frames: make(chan string, len(resps)),
		done:   make(chan struct{}),
	}

	go func() {
		defer close(p.done)

		ctx, cancel := context.WithTimeout(context.Background(), peerTimeout)
		defer cancel()

		for i, resp := range resps {
			frame, err := ch.Receive(ctx)
			if err != nil {
				return
			}
			p.frames <- frame

			if onFrame != nil {
				onFrame(i, frame)
			}

			if err := ch.Send(ctx, resp); err != nil {
				return
			}
		}
	}()

	return p
}

// Frames waits for the peer goroutine to end and returns the frames it received.
func (p *scriptedPeer) Frames() []string {
	p.t.Helper()

	select {
	case <-p.done:
	case <-time.After(peerTimeout):
		p.t.Fatal("peer did not finish its script")
	}

	var frames []string
	for {
		select {
		case f := <-p.frames:
			frames = append(frames, f)
		default:
			return frames
		}
	}
}

func repeat(s string, n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = s
	}

	return out
}
