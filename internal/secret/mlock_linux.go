//go:build linux

package secret

import "golang.org/x/sys/unix"

// Pin locks the pages backing b into physical memory so secret material
// cannot be written to swap. Best effort: RLIMIT_MEMLOCK may deny the
// request, which is not fatal.
func Pin(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Mlock(b)
}

// Unpin releases pages previously locked with Pin.
func Unpin(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return unix.Munlock(b)
}
