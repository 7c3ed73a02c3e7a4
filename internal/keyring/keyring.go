// Package keyring implements the key-ring state machine: the encrypted-at-
// rest mnemonic, the derived-key cache and every operation whose legality
// depends on the current lock state.
package keyring

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/tyler-smith/go-bip39"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/secret"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
)

// KV is the persistence collaborator: an asynchronous blob store. The key
// ring only ever uses KeyFileStorageKey.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}

// KeyFileStorageKey is the fixed key the encrypted key file is persisted under.
const KeyFileStorageKey = "keyring/key-file"

// Status describes the key ring's capability level. It is always derived
// from (loaded, key file, session) and never stored independently.
type Status int

const (
	StatusNotLoaded Status = iota
	StatusEmpty
	StatusLocked
	StatusUnlocked
)

func (s Status) String() string {
	switch s {
	case StatusNotLoaded:
		return "not_loaded"
	case StatusEmpty:
		return "empty"
	case StatusLocked:
		return "locked"
	case StatusUnlocked:
		return "unlocked"
	default:
		return fmt.Sprintf("unknown(%d)", int(s))
	}
}

// Key is the public half of a derived key.
type Key struct {
	Address common.Address
	PubKey  []byte // compressed secp256k1 point
}

// session bundles the decrypted mnemonic with the derived-key cache so the
// two can only ever be replaced together. Dropping the session invalidates
// every cached key at once.
type session struct {
	mnemonic []byte
	keys     map[string]*ecdsa.PrivateKey
}

func newSession(mnemonic []byte) *session {
	owned := make([]byte, len(mnemonic))
	copy(owned, mnemonic)
	// Best effort; RLIMIT_MEMLOCK may deny this.
	_ = secret.Pin(owned)
	return &session{mnemonic: owned, keys: make(map[string]*ecdsa.PrivateKey)}
}

func (s *session) wipe() {
	for path, priv := range s.keys {
		if priv != nil && priv.D != nil {
			priv.D.SetInt64(0)
		}
		delete(s.keys, path)
	}
	_ = secret.Unpin(s.mnemonic)
	secret.Zero(s.mnemonic)
	s.mnemonic = nil
}

// KeyRing holds the decrypted mnemonic only while unlocked and owns the
// derived-key cache exclusively. All methods are safe for concurrent use;
// the mutex gives the serialization a single background process provides.
type KeyRing struct {
	mu      sync.Mutex
	kv      KV
	loaded  bool
	keyFile *Envelope
	sess    *session
}

// New creates a key ring in the NotLoaded state.
func New(kv KV) *KeyRing {
	return &KeyRing{kv: kv}
}

// Status derives the current status. See the state table in the package
// documentation: not loaded, then empty/locked/unlocked depending on
// whether a key file and a live session exist.
func (k *KeyRing) Status() Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.status()
}

func (k *KeyRing) status() Status {
	switch {
	case !k.loaded:
		return StatusNotLoaded
	case k.keyFile == nil:
		return StatusEmpty
	case k.sess == nil:
		return StatusLocked
	default:
		return StatusUnlocked
	}
}

// GenerateMnemonic produces a fresh BIP-39 mnemonic with the given entropy
// size in bits (128..256 in steps of 32).
func (k *KeyRing) GenerateMnemonic(entropyBits int) (string, error) {
	entropy, err := bip39.NewEntropy(entropyBits)
	if err != nil {
		return "", fmt.Errorf("failed to generate entropy: %w", err)
	}
	mnemonic, err := bip39.NewMnemonic(entropy)
	if err != nil {
		return "", fmt.Errorf("failed to generate mnemonic: %w", err)
	}
	return mnemonic, nil
}

// CreateKey encrypts mnemonic under password, replaces the key file and
// unlocks the ring with a fresh cache. Legal only in the Empty state.
func (k *KeyRing) CreateKey(ctx context.Context, mnemonic, password string) error {
	mnemonic = strings.TrimSpace(mnemonic)
	if mnemonic == "" || password == "" {
		return apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Mnemonic and password are required", "", 400)
	}
	if !bip39.IsMnemonicValid(mnemonic) {
		return apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Invalid mnemonic", "checksum or wordlist mismatch", 400)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if st := k.status(); st != StatusEmpty {
		return apperrors.InvalidState(fmt.Sprintf("create-key requires empty, status is %s", st))
	}

	env, err := Seal(password, []byte(mnemonic))
	if err != nil {
		return fmt.Errorf("failed to encrypt mnemonic: %w", err)
	}

	k.keyFile = env
	k.replaceSession(newSession([]byte(mnemonic)))

	return k.save(ctx)
}

// Lock clears the mnemonic and the derived-key cache. Legal only while
// unlocked.
func (k *KeyRing) Lock() error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if st := k.status(); st != StatusUnlocked {
		return apperrors.InvalidState(fmt.Sprintf("lock requires unlocked, status is %s", st))
	}

	k.replaceSession(nil)
	return nil
}

// Unlock decrypts the key file under password. A wrong password leaves the
// ring locked and surfaces the decrypt failure unchanged.
func (k *KeyRing) Unlock(password string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if st := k.status(); st != StatusLocked {
		return apperrors.InvalidState(fmt.Sprintf("unlock requires locked, status is %s", st))
	}

	mnemonic, err := Open(password, k.keyFile)
	if err != nil {
		return err
	}

	k.replaceSession(newSession(mnemonic))
	secret.Zero(mnemonic)
	return nil
}

// VerifyPassword checks password against the stored key file. It never
// fails on a wrong password; it returns false. On success the decrypted
// mnemonic is adopted into the session, which is what Unlock relies on.
func (k *KeyRing) VerifyPassword(password string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.keyFile == nil {
		return false
	}
	return k.adopt(k.keyFile, password)
}

// AdoptKeyFile decrypts a caller-supplied key file and, on success, adopts
// its mnemonic into the session. This is the explicit decrypt-and-adopt
// entry point used when importing an exported key file; the stored key
// file is not replaced.
func (k *KeyRing) AdoptKeyFile(env *Envelope, password string) bool {
	if env == nil {
		return false
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	return k.adopt(env, password)
}

func (k *KeyRing) adopt(env *Envelope, password string) bool {
	mnemonic, err := Open(password, env)
	if err != nil {
		return false
	}
	k.replaceSession(newSession(mnemonic))
	secret.Zero(mnemonic)
	return true
}

// UpdatePassword re-encrypts the mnemonic under newPassword after
// verifying oldPassword. Returns false without error when the old password
// is wrong. Legal only while unlocked.
func (k *KeyRing) UpdatePassword(ctx context.Context, oldPassword, newPassword string) (bool, error) {
	if newPassword == "" {
		return false, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "New password is required", "", 400)
	}

	k.mu.Lock()
	defer k.mu.Unlock()

	if st := k.status(); st != StatusUnlocked {
		return false, apperrors.InvalidState(fmt.Sprintf("update-password requires unlocked, status is %s", st))
	}

	if _, err := Open(oldPassword, k.keyFile); err != nil {
		if apperrors.HasCode(err, apperrors.ErrCodeAuthFailed) {
			return false, nil
		}
		return false, err
	}

	env, err := Seal(newPassword, k.sess.mnemonic)
	if err != nil {
		return false, fmt.Errorf("failed to re-encrypt mnemonic: %w", err)
	}

	k.keyFile = env
	if err := k.save(ctx); err != nil {
		return false, err
	}
	return true, nil
}

// Save persists the encrypted key file.
func (k *KeyRing) Save(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.save(ctx)
}

func (k *KeyRing) save(ctx context.Context) error {
	var raw []byte
	if k.keyFile != nil {
		encoded, err := EncodeEnvelope(k.keyFile)
		if err != nil {
			return err
		}
		raw = encoded
	}
	if err := k.kv.Set(ctx, KeyFileStorageKey, raw); err != nil {
		return fmt.Errorf("failed to persist key file: %w", err)
	}
	return nil
}

// Restore loads the encrypted key file from storage. It marks the ring
// loaded unconditionally; a missing blob leaves the ring Empty.
func (k *KeyRing) Restore(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if st := k.status(); st != StatusNotLoaded && st != StatusEmpty {
		return apperrors.InvalidState(fmt.Sprintf("restore requires not-loaded or empty, status is %s", st))
	}

	raw, found, err := k.kv.Get(ctx, KeyFileStorageKey)
	if err != nil {
		return fmt.Errorf("failed to load key file: %w", err)
	}

	if found && len(raw) > 0 {
		env, err := DecodeEnvelope(raw)
		if err != nil {
			return err
		}
		k.keyFile = env
	}

	k.loaded = true
	return nil
}

// Clear is a destructive reset: no key file, no session, persisted
// immediately. Legal whenever a key file exists.
func (k *KeyRing) Clear(ctx context.Context) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if st := k.status(); st != StatusLocked && st != StatusUnlocked {
		return apperrors.InvalidState(fmt.Sprintf("clear requires an existing key store, status is %s", st))
	}

	k.keyFile = nil
	k.replaceSession(nil)
	return k.save(ctx)
}

// GetKey derives (or fetches from cache) the key at path and returns its
// public half. Legal only while unlocked.
func (k *KeyRing) GetKey(path string) (Key, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	priv, err := k.privateKey(path)
	if err != nil {
		return Key{}, err
	}

	return Key{
		Address: ethcrypto.PubkeyToAddress(priv.PublicKey),
		PubKey:  ethcrypto.CompressPubkey(&priv.PublicKey),
	}, nil
}

// Sign signs the keccak256 digest of message with the key at path. Legal
// only while unlocked.
func (k *KeyRing) Sign(path string, message []byte) ([]byte, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	priv, err := k.privateKey(path)
	if err != nil {
		return nil, err
	}

	sig, err := ethcrypto.Sign(ethcrypto.Keccak256(message), priv)
	if err != nil {
		return nil, fmt.Errorf("failed to sign message: %w", err)
	}
	return sig, nil
}

// privateKey returns the cached key for path, deriving it on first use.
// Derivation is deterministic, so the cache is purely an optimization.
func (k *KeyRing) privateKey(path string) (*ecdsa.PrivateKey, error) {
	if st := k.status(); st != StatusUnlocked {
		return nil, apperrors.InvalidState(fmt.Sprintf("signing requires unlocked, status is %s", st))
	}

	if priv, ok := k.sess.keys[path]; ok {
		return priv, nil
	}

	priv, err := DerivePrivateKey(string(k.sess.mnemonic), path)
	if err != nil {
		return nil, err
	}
	k.sess.keys[path] = priv
	return priv, nil
}

// replaceSession swaps the session value, wiping the old one. Setting the
// mnemonic and invalidating the cache are inseparable here.
func (k *KeyRing) replaceSession(next *session) {
	if k.sess != nil {
		k.sess.wipe()
	}
	k.sess = next
}
