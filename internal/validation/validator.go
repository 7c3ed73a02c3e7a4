package validation

import (
	"encoding/hex"
	"fmt"
	"strings"

	ethaccounts "github.com/ethereum/go-ethereum/accounts"
	"github.com/ethereum/go-ethereum/common"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/approver"
)

// ValidateAddress validates a hex account address
func ValidateAddress(address string) error {
	if address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if !common.IsHexAddress(address) {
		return fmt.Errorf("invalid address format: must be 0x followed by 40 hex characters")
	}

	if strings.EqualFold(address, "0x0000000000000000000000000000000000000000") {
		return fmt.Errorf("zero address is not usable")
	}

	return nil
}

// ValidateDerivationPath validates a BIP-44 style derivation path
func ValidateDerivationPath(path string) error {
	if path == "" {
		return fmt.Errorf("derivation path cannot be empty")
	}
	if _, err := ethaccounts.ParseDerivationPath(path); err != nil {
		return fmt.Errorf("invalid derivation path: %w", err)
	}
	return nil
}

// ValidateRequestID validates an approval request id supplied by a caller
func ValidateRequestID(id string) error {
	if !approver.IsValidID(id) {
		return fmt.Errorf("invalid request id: must be 8-64 lowercase hex characters")
	}
	return nil
}

// ValidateHex validates and decodes a hex-encoded (optionally 0x-prefixed)
// byte string
func ValidateHex(value string) ([]byte, error) {
	if value == "" {
		return nil, fmt.Errorf("hex value cannot be empty")
	}
	trimmed := strings.TrimPrefix(value, "0x")
	decoded, err := hex.DecodeString(trimmed)
	if err != nil {
		return nil, fmt.Errorf("invalid hex value: %w", err)
	}
	return decoded, nil
}
