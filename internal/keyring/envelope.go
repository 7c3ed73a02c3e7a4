package keyring

import (
	"crypto/rand"
	"encoding/json"
	"fmt"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/secret"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
)

const (
	envelopeVersion = 1
	envelopeKDF     = "argon2id"
	saltSize        = 16

	kdfTime     = 2
	kdfMemoryKB = 64 * 1024
	kdfThreads  = 1
)

// Envelope is the encrypted key store: the mnemonic ciphertext together
// with the KDF and cipher parameters needed to open it. Envelopes are
// never mutated in place; password changes produce a fresh one.
type Envelope struct {
	Version     uint32 `json:"version"`
	KDF         string `json:"kdf"`
	KDFTime     uint32 `json:"kdf_time"`
	KDFMemoryKB uint32 `json:"kdf_memory_kb"`
	KDFThreads  uint8  `json:"kdf_threads"`
	Salt        []byte `json:"salt"`
	Nonce       []byte `json:"nonce"`
	Ciphertext  []byte `json:"ciphertext"`
}

// Seal encrypts plaintext under a password-derived key using argon2id and
// XChaCha20-Poly1305.
func Seal(password string, plaintext []byte) (*Envelope, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	key := deriveEnvelopeKey(password, salt)
	defer secret.Zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce := make([]byte, chacha20poly1305.NonceSizeX)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return &Envelope{
		Version:     envelopeVersion,
		KDF:         envelopeKDF,
		KDFTime:     kdfTime,
		KDFMemoryKB: kdfMemoryKB,
		KDFThreads:  kdfThreads,
		Salt:        salt,
		Nonce:       nonce,
		Ciphertext:  aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Open decrypts an envelope. A wrong password surfaces as ErrAuthFailed;
// any structural problem is a bad-request error.
func Open(password string, env *Envelope) ([]byte, error) {
	if env == nil || env.Version != envelopeVersion || env.KDF != envelopeKDF {
		return nil, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Unsupported key file format",
			fmt.Sprintf("version: %d, kdf: %q", envVersion(env), envKDF(env)),
			400,
		)
	}
	if len(env.Salt) != saltSize || len(env.Nonce) != chacha20poly1305.NonceSizeX {
		return nil, apperrors.NewWithDetail(
			apperrors.ErrCodeBadRequest,
			"Malformed key file",
			fmt.Sprintf("salt: %d bytes, nonce: %d bytes", len(env.Salt), len(env.Nonce)),
			400,
		)
	}

	key := argon2.IDKey([]byte(password), env.Salt, env.KDFTime, env.KDFMemoryKB, env.KDFThreads, chacha20poly1305.KeySize)
	defer secret.Zero(key)

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, env.Nonce, env.Ciphertext, nil)
	if err != nil {
		return nil, apperrors.ErrAuthFailed
	}
	return plaintext, nil
}

// EncodeEnvelope serializes an envelope for persistence.
func EncodeEnvelope(env *Envelope) ([]byte, error) {
	raw, err := json.Marshal(env)
	if err != nil {
		return nil, fmt.Errorf("failed to encode key file: %w", err)
	}
	return raw, nil
}

// DecodeEnvelope deserializes a persisted envelope.
func DecodeEnvelope(raw []byte) (*Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, fmt.Errorf("failed to decode key file: %w", err)
	}
	return &env, nil
}

func deriveEnvelopeKey(password string, salt []byte) []byte {
	return argon2.IDKey([]byte(password), salt, kdfTime, kdfMemoryKB, kdfThreads, chacha20poly1305.KeySize)
}

func envVersion(env *Envelope) uint32 {
	if env == nil {
		return 0
	}
	return env.Version
}

func envKDF(env *Envelope) string {
	if env == nil {
		return ""
	}
	return env.KDF
}
