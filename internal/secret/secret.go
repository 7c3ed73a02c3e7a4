// Package secret holds helpers for handling raw secret material: wiping
// buffers after use and pinning them to physical memory where the platform
// supports it.
package secret

// Zero overwrites b in place. Callers must invoke it before dropping the
// last reference to a buffer that held a mnemonic or private key.
func Zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
