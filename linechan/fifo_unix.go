//go:build linux || darwin || freebsd || netbsd || openbsd

package linechan

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"golang.org/x/sys/unix"
)

// MakeFIFOPair creates the two named pipes used by OpenFIFO and AcceptFIFO.
// Existing FIFOs are reused; an existing path that is not a FIFO is an error.
func MakeFIFOPair(outPath, inPath string) error {
	for _, path := range []string{outPath, inPath} {
		if err := makeFIFO(path); err != nil {
			return err
		}
	}

	return nil
}

func makeFIFO(path string) error {
	fi, err := os.Stat(path)
	switch {
	case err == nil:
		if fi.Mode()&fs.ModeNamedPipe == 0 {
			return fmt.Errorf("linechan: %q exists and is not a FIFO", path)
		}
		return nil

	case !errors.Is(err, fs.ErrNotExist):
		return fmt.Errorf("linechan: stat %q: %w", path, err)
	}

	if err := unix.Mkfifo(path, 0o600); err != nil {
		return fmt.Errorf("linechan: mkfifo %q: %w", path, err)
	}

	return nil
}
