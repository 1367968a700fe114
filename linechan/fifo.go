package linechan

import (
	"fmt"
	"os"
)

// OpenFIFO opens a channel over two named pipes: outPath is written to, inPath is read from.
//
// The outbound pipe is opened first, then the inbound one. Opening a FIFO blocks until the
// other end is opened too, so the peer must open the pipes in the complementary order;
// AcceptFIFO does exactly that.
func OpenFIFO(outPath, inPath string, opts ...Option) (*Stream, error) {
	return openFIFO(outPath, inPath, true, opts)
}

// AcceptFIFO opens the peer end of a pipe pair created for OpenFIFO: the inbound pipe
// (the adapter's outbound) is opened first, then the outbound one.
func AcceptFIFO(outPath, inPath string, opts ...Option) (*Stream, error) {
	return openFIFO(outPath, inPath, false, opts)
}

func openFIFO(outPath, inPath string, writeFirst bool, opts []Option) (*Stream, error) {
	cfg, err := newConfig(outPath, opts)
	if err != nil {
		return nil, err
	}

	var out, in *os.File

	openOut := func() error {
		cfg.logger.Debug("linechan: opening output file", "path", outPath)
		out, err = os.OpenFile(outPath, os.O_WRONLY, 0)
		if err != nil {
			return fmt.Errorf("linechan: open output %q: %w", outPath, err)
		}

		return nil
	}
	openIn := func() error {
		cfg.logger.Debug("linechan: opening input file", "path", inPath)
		in, err = os.Open(inPath)
		if err != nil {
			return fmt.Errorf("linechan: open input %q: %w", inPath, err)
		}

		return nil
	}

	first, second := openOut, openIn
	if !writeFirst {
		first, second = openIn, openOut
	}

	if err := first(); err != nil {
		return nil, err
	}
	if err := second(); err != nil {
		if out != nil {
			_ = out.Close()
		}
		if in != nil {
			_ = in.Close()
		}

		return nil, err
	}

	return NewStream(in, out, append([]Option{WithName(outPath)}, opts...)...)
}
