// Package signer provides the remote-signer capability: addresses whose
// private key lives outside the key ring (an HSM-backed service) delegate
// signing here. Different backends (AWS KMS, HashiCorp Vault Transit)
// implement the same interface.
package signer

import (
	"context"
	"fmt"
)

// RemoteSigner is the opaque signing capability for remote-linked
// addresses. Backend-specific failures surface verbatim through the
// returned errors.
type RemoteSigner interface {
	// Sign signs message and returns the raw signature bytes
	Sign(ctx context.Context, message []byte) ([]byte, error)

	// PubKey returns the signer's public key bytes
	PubKey(ctx context.Context) ([]byte, error)

	// Ready returns an error if the backend cannot currently sign
	Ready(ctx context.Context) error

	// Version returns a backend version identifier
	Version(ctx context.Context) (string, error)

	// Backend returns the backend name (e.g. "aws-kms", "vault")
	Backend() string
}

// Config contains configuration for remote signer backends
type Config struct {
	// Backend selects the implementation: "", "local", "aws-kms" or "vault".
	// Empty and "local" mean no remote signer is configured.
	Backend string

	// AWS KMS config
	AWSKMSKeyID  string
	AWSKMSRegion string

	// Vault config
	VaultAddress string
	VaultToken   string
	VaultSignKey string
}

// New creates a RemoteSigner based on the configuration. A nil signer with
// a nil error means no remote backend is configured; all signing then
// happens in the key ring.
func New(cfg *Config) (RemoteSigner, error) {
	switch cfg.Backend {
	case "", "local":
		return nil, nil

	case "aws-kms":
		return NewKMSSigner(cfg.AWSKMSKeyID, cfg.AWSKMSRegion)

	case "vault":
		return NewVaultSigner(cfg.VaultAddress, cfg.VaultToken, cfg.VaultSignKey)

	default:
		return nil, fmt.Errorf("unsupported signer backend: %s", cfg.Backend)
	}
}
