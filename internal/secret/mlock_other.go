//go:build !linux

package secret

// Pin is a no-op on platforms without mlock support.
func Pin(b []byte) error { return nil }

// Unpin is a no-op on platforms without mlock support.
func Unpin(b []byte) error { return nil }
