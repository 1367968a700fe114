//go:build !(linux || darwin || freebsd || netbsd || openbsd)

package linechan

import "errors"

// MakeFIFOPair is not supported on this platform; create the pipes with the platform's own tools.
func MakeFIFOPair(_, _ string) error {
	return errors.New("linechan: named pipes are not supported on this platform")
}
