package signer

import (
	"context"
	"encoding/base64"
	"fmt"

	vault "github.com/hashicorp/vault/api"

	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
)

// VaultSigner implements RemoteSigner using the HashiCorp Vault Transit
// engine. Signatures come back as vault:vN:... strings and are surfaced
// as raw bytes of that encoding.
type VaultSigner struct {
	signKey string
	client  *vault.Client
}

// NewVaultSigner creates a new Vault Transit signer
func NewVaultSigner(address, token, signKey string) (*VaultSigner, error) {
	if address == "" {
		return nil, fmt.Errorf("Vault address is required")
	}
	if token == "" {
		return nil, fmt.Errorf("Vault token is required")
	}
	if signKey == "" {
		return nil, fmt.Errorf("Vault transit key name is required")
	}

	vaultConfig := vault.DefaultConfig()
	vaultConfig.Address = address

	client, err := vault.NewClient(vaultConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Vault client: %w", err)
	}

	client.SetToken(token)

	return &VaultSigner{
		signKey: signKey,
		client:  client,
	}, nil
}

// Sign signs message using the Transit engine
func (s *VaultSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	// Transit requires base64-encoded input
	input := base64.StdEncoding.EncodeToString(message)

	path := fmt.Sprintf("transit/sign/%s", s.signKey)
	sec, err := s.client.Logical().WriteWithContext(ctx, path, map[string]interface{}{
		"input": input,
	})
	if err != nil {
		return nil, apperrors.SignerUnavailable(fmt.Sprintf("Vault Transit sign failed: %v", err))
	}

	if sec == nil || sec.Data == nil {
		return nil, apperrors.SignerUnavailable("Vault Transit sign returned empty response")
	}

	signature, ok := sec.Data["signature"].(string)
	if !ok {
		return nil, apperrors.SignerUnavailable("Vault Transit sign: signature not found in response")
	}

	return []byte(signature), nil
}

// PubKey returns the public key of the latest Transit key version
func (s *VaultSigner) PubKey(ctx context.Context) ([]byte, error) {
	info, err := s.readKey(ctx)
	if err != nil {
		return nil, err
	}

	latest := fmt.Sprintf("%v", info["latest_version"])
	keys, ok := info["keys"].(map[string]interface{})
	if !ok {
		return nil, apperrors.SignerUnavailable("Vault Transit: keys not found in response")
	}
	version, ok := keys[latest].(map[string]interface{})
	if !ok {
		return nil, apperrors.SignerUnavailable(fmt.Sprintf("Vault Transit: key version %s not found", latest))
	}
	publicKey, ok := version["public_key"].(string)
	if !ok {
		return nil, apperrors.SignerUnavailable("Vault Transit: public_key not found in response")
	}

	return []byte(publicKey), nil
}

// Ready checks that the Transit key exists and supports signing
func (s *VaultSigner) Ready(ctx context.Context) error {
	info, err := s.readKey(ctx)
	if err != nil {
		return err
	}
	if supports, ok := info["supports_signing"].(bool); ok && !supports {
		return apperrors.SignerVersionMismatch(fmt.Sprintf("Vault Transit key %s does not support signing", s.signKey))
	}
	return nil
}

// Version reports the latest Transit key version
func (s *VaultSigner) Version(ctx context.Context) (string, error) {
	info, err := s.readKey(ctx)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%v", info["latest_version"]), nil
}

// Backend returns the backend name
func (s *VaultSigner) Backend() string {
	return "vault"
}

func (s *VaultSigner) readKey(ctx context.Context) (map[string]interface{}, error) {
	path := fmt.Sprintf("transit/keys/%s", s.signKey)
	sec, err := s.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return nil, apperrors.SignerUnavailable(fmt.Sprintf("Vault Transit read failed: %v", err))
	}
	if sec == nil || sec.Data == nil {
		return nil, apperrors.SignerUnavailable(fmt.Sprintf("Vault Transit key %s not found", s.signKey))
	}
	return sec.Data, nil
}
