package signer

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/kms"
	kmstypes "github.com/aws/aws-sdk-go-v2/service/kms/types"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"

	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
)

// KMSSigner implements RemoteSigner using an AWS KMS asymmetric key.
// The private key never leaves KMS; only digests travel.
type KMSSigner struct {
	keyID  string
	region string
	client *kms.Client
}

// NewKMSSigner creates a new AWS KMS signer
func NewKMSSigner(keyID, region string) (*KMSSigner, error) {
	if keyID == "" {
		return nil, fmt.Errorf("AWS KMS key ID is required")
	}
	if region == "" {
		return nil, fmt.Errorf("AWS region is required")
	}

	// Uses default credential chain: env vars, shared config, IAM role, etc.
	cfg, err := config.LoadDefaultConfig(context.Background(), config.WithRegion(region))
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &KMSSigner{
		keyID:  keyID,
		region: region,
		client: kms.NewFromConfig(cfg),
	}, nil
}

// Sign signs the keccak256 digest of message with the KMS key
func (s *KMSSigner) Sign(ctx context.Context, message []byte) ([]byte, error) {
	output, err := s.client.Sign(ctx, &kms.SignInput{
		KeyId:            aws.String(s.keyID),
		Message:          ethcrypto.Keccak256(message),
		MessageType:      kmstypes.MessageTypeDigest,
		SigningAlgorithm: kmstypes.SigningAlgorithmSpecEcdsaSha256,
	})
	if err != nil {
		return nil, apperrors.SignerUnavailable(fmt.Sprintf("AWS KMS sign failed: %v", err))
	}
	return output.Signature, nil
}

// PubKey returns the DER-encoded public key of the KMS key
func (s *KMSSigner) PubKey(ctx context.Context) ([]byte, error) {
	output, err := s.client.GetPublicKey(ctx, &kms.GetPublicKeyInput{
		KeyId: aws.String(s.keyID),
	})
	if err != nil {
		return nil, apperrors.SignerUnavailable(fmt.Sprintf("AWS KMS get-public-key failed: %v", err))
	}
	return output.PublicKey, nil
}

// Ready checks that the key exists, is enabled and supports signing
func (s *KMSSigner) Ready(ctx context.Context) error {
	output, err := s.client.DescribeKey(ctx, &kms.DescribeKeyInput{
		KeyId: aws.String(s.keyID),
	})
	if err != nil {
		return apperrors.SignerUnavailable(fmt.Sprintf("AWS KMS describe-key failed: %v", err))
	}
	if output.KeyMetadata == nil || !output.KeyMetadata.Enabled {
		return apperrors.SignerUnavailable("AWS KMS key is disabled")
	}
	if output.KeyMetadata.KeyUsage != kmstypes.KeyUsageTypeSignVerify {
		return apperrors.SignerVersionMismatch(fmt.Sprintf("AWS KMS key usage is %s, need SIGN_VERIFY", output.KeyMetadata.KeyUsage))
	}
	return nil
}

// Version reports the key spec as the backend version identifier
func (s *KMSSigner) Version(ctx context.Context) (string, error) {
	output, err := s.client.DescribeKey(ctx, &kms.DescribeKeyInput{
		KeyId: aws.String(s.keyID),
	})
	if err != nil {
		return "", apperrors.SignerUnavailable(fmt.Sprintf("AWS KMS describe-key failed: %v", err))
	}
	if output.KeyMetadata == nil {
		return "", apperrors.SignerUnavailable("AWS KMS returned no key metadata")
	}
	return string(output.KeyMetadata.KeySpec), nil
}

// Backend returns the backend name
func (s *KMSSigner) Backend() string {
	return "aws-kms"
}
