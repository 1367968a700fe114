package linechan

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const testTimeout = 5 * time.Second

func testContext(t *testing.T) context.Context {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), testTimeout)
	t.Cleanup(cancel)

	return ctx
}

func newTestPipe(t *testing.T, opts ...Option) (*Stream, *Stream) {
	t.Helper()

	a, b, err := Pipe(opts...)
	require.NoError(t, err)

	t.Cleanup(func() {
		_ = a.Close()
		_ = b.Close()
	})

	return a, b
}

// echo answers every line received on ch with prefix+line until an error occurs.
func echo(ctx context.Context, ch Channel, prefix string) {
	for {
		line, err := ch.Receive(ctx)
		if err != nil {
			return
		}
		if err := ch.Send(ctx, prefix+line); err != nil {
			return
		}
	}
}
