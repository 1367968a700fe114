package linechan

import "io"

// Pipe creates two in-memory channels connected back to back: every line sent on one
// is received on the other.
//
// The first channel is conventionally the adapter side and the second the peer side.
// Writes block until the other end reads them, exactly like io.Pipe.
func Pipe(opts ...Option) (*Stream, *Stream, error) {
	ar, bw := io.Pipe()
	br, aw := io.Pipe()

	a, err := NewStream(ar, aw, append([]Option{WithName("pipe-a")}, opts...)...)
	if err != nil {
		return nil, nil, err
	}

	b, err := NewStream(br, bw, append([]Option{WithName("pipe-b")}, opts...)...)
	if err != nil {
		_ = a.Close()
		return nil, nil, err
	}

	return a, b, nil
}
