// Package keeper orchestrates the key ring behind explicit user consent:
// every unlock, fee-config and sign operation suspends on a pending
// approval until a trusted surface resolves it. The keeper also delegates
// signing to the remote signer when the active address is remote-linked.
package keeper

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/approver"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/keyring"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/logger"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/signer"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

const (
	// unlockRequestID is the single well-known id of the unlock queue:
	// only one unlock consent can be pending at a time.
	unlockRequestID = "unlock"

	// DefaultDerivationPath is the path the first address is derived at.
	DefaultDerivationPath = "m/44'/60'/0'/0/0"

	// txOutboxStorageKey holds the most recently submitted background tx.
	txOutboxStorageKey = "tx/outbox"
)

// PopupOpener opens a consent surface. Fire and forget: the keeper never
// assumes the popup succeeded or is the only path to approval.
type PopupOpener interface {
	OpenWindow(url string)
}

// Supervisor is the inactivity auto-lock: re-armed after every unlock,
// reset on user activity.
type Supervisor interface {
	Arm()
	RecordActivity(ctx context.Context) error
}

// Keeper owns the key ring and the three consent queues for its lifetime.
// One instance exists per background process.
type Keeper struct {
	ring   *keyring.KeyRing
	kv     keyring.KV
	remote signer.RemoteSigner
	popup  PopupOpener
	sup    Supervisor

	unlockApprover *approver.Approver[struct{}, struct{}]
	txApprover     *approver.Approver[types.TxBuilderConfig, *types.TxBuilderConfig]
	signApprover   *approver.Approver[types.SignPayload, struct{}]

	mu   sync.Mutex
	book *addressBook
}

// New creates the keeper. remote may be nil when no remote signer backend
// is configured.
func New(ring *keyring.KeyRing, kv keyring.KV, remote signer.RemoteSigner, popup PopupOpener, approvalTimeout time.Duration) *Keeper {
	return &Keeper{
		ring:           ring,
		kv:             kv,
		remote:         remote,
		popup:          popup,
		unlockApprover: approver.New[struct{}, struct{}]("unlock", approvalTimeout),
		txApprover:     approver.New[types.TxBuilderConfig, *types.TxBuilderConfig]("tx_config", approvalTimeout),
		signApprover:   approver.New[types.SignPayload, struct{}]("sign", approvalTimeout),
		book:           &addressBook{},
	}
}

// AttachSupervisor wires the auto-lock supervisor. Called once at startup.
func (k *Keeper) AttachSupervisor(sup Supervisor) {
	k.sup = sup
}

// Status reports the key ring status.
func (k *Keeper) Status() keyring.Status {
	return k.ring.Status()
}

// Restore loads the encrypted key file and the address book from storage.
func (k *Keeper) Restore(ctx context.Context) error {
	if err := k.ring.Restore(ctx); err != nil {
		return err
	}
	return k.loadAddressBook(ctx)
}

// Enable brings the key ring to a usable state: restores it if not yet
// loaded, fails if no key exists, and if locked opens a consent surface
// and suspends until an unlock elsewhere resolves the pending approval.
func (k *Keeper) Enable(ctx context.Context) (keyring.Status, error) {
	if k.ring.Status() == keyring.StatusNotLoaded {
		if err := k.Restore(ctx); err != nil {
			return k.ring.Status(), err
		}
	}

	switch st := k.ring.Status(); st {
	case keyring.StatusEmpty:
		return st, apperrors.ErrKeyStoreEmpty

	case keyring.StatusLocked:
		k.popup.OpenWindow("/popup#/unlock")
		if _, err := k.unlockApprover.Request(ctx, unlockRequestID, struct{}{}); err != nil {
			return k.ring.Status(), err
		}
	}

	return k.ring.Status(), nil
}

// GenerateMnemonic produces a fresh mnemonic for the creation flow.
func (k *Keeper) GenerateMnemonic(entropyBits int) (string, error) {
	return k.ring.GenerateMnemonic(entropyBits)
}

// CreateKey creates the key store, derives the first address at
// DefaultDerivationPath and arms the auto-lock supervisor.
func (k *Keeper) CreateKey(ctx context.Context, mnemonic, password string) (types.AddressEntry, error) {
	if err := k.ring.CreateKey(ctx, mnemonic, password); err != nil {
		return types.AddressEntry{}, err
	}

	entry, err := k.AddDerivedAddress(ctx, DefaultDerivationPath)
	if err != nil {
		return types.AddressEntry{}, err
	}

	k.armSupervisor()
	logger.Info(ctx, "key store created", "address", entry.Address, "audit_id", uuid.NewString())
	return entry, nil
}

// Unlock decrypts the key store and resolves a pending unlock approval,
// resuming any Enable call suspended on it.
func (k *Keeper) Unlock(ctx context.Context, password string) error {
	if err := k.ring.Unlock(password); err != nil {
		return err
	}

	k.unlockApprover.Approve(unlockRequestID, struct{}{})
	k.armSupervisor()
	logger.Info(ctx, "key ring unlocked", "audit_id", uuid.NewString())
	return nil
}

// Lock clears the in-memory secret material.
func (k *Keeper) Lock() error {
	return k.ring.Lock()
}

// VerifyPassword checks a password against the stored key file.
func (k *Keeper) VerifyPassword(password string) bool {
	return k.ring.VerifyPassword(password)
}

// AdoptKeyFile decrypts a supplied key file and adopts its mnemonic.
func (k *Keeper) AdoptKeyFile(env *keyring.Envelope, password string) bool {
	return k.ring.AdoptKeyFile(env, password)
}

// UpdatePassword re-encrypts the key store under a new password.
func (k *Keeper) UpdatePassword(ctx context.Context, oldPassword, newPassword string) (bool, error) {
	return k.ring.UpdatePassword(ctx, oldPassword, newPassword)
}

// Clear destroys the key store and the address book.
func (k *Keeper) Clear(ctx context.Context) error {
	if err := k.ring.Clear(ctx); err != nil {
		return err
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.book = &addressBook{}
	return k.saveAddressBook(ctx)
}

// GetKey returns the public key and address derived at path.
func (k *Keeper) GetKey(path string) (keyring.Key, error) {
	return k.ring.GetKey(path)
}

// RequestSign suspends until the sign request identified by id is approved
// or rejected, then signs message: remotely when the requesting address is
// remote-linked, locally from the key ring otherwise.
func (k *Keeper) RequestSign(ctx context.Context, id, address string, message []byte, openPopup bool) ([]byte, error) {
	entry, err := k.lookupAddress(address)
	if err != nil {
		return nil, err
	}

	if openPopup {
		k.popup.OpenWindow("/popup#/sign/" + id)
	}

	payload := types.SignPayload{
		Address:    entry.Address,
		MessageHex: hex.EncodeToString(message),
	}
	if _, err := k.signApprover.Request(ctx, id, payload); err != nil {
		return nil, err
	}

	if entry.RemoteLinked {
		return k.signRemote(ctx, message)
	}

	sig, err := k.ring.Sign(entry.Path, message)
	if err != nil {
		return nil, err
	}

	logger.Info(ctx, "message signed", "address", entry.Address, "request_id", id, "audit_id", uuid.NewString())
	return sig, nil
}

// GetRequestedMessage returns the payload behind a pending sign request.
func (k *Keeper) GetRequestedMessage(id string) (types.SignPayload, error) {
	return k.signApprover.Data(id)
}

// ApproveSign resolves a pending sign request.
func (k *Keeper) ApproveSign(id string) {
	k.signApprover.Approve(id, struct{}{})
}

// RejectSign rejects a pending sign request.
func (k *Keeper) RejectSign(id string) {
	k.signApprover.Reject(id)
}

// RequestTxBuilderConfig suspends until the config identified by id is
// approved (possibly amended) or rejected.
func (k *Keeper) RequestTxBuilderConfig(ctx context.Context, id string, config types.TxBuilderConfig, openPopup bool) (types.TxBuilderConfig, error) {
	if openPopup {
		k.popup.OpenWindow("/popup#/fee/" + id)
	}

	approved, err := k.txApprover.Request(ctx, id, config)
	if err != nil {
		return types.TxBuilderConfig{}, err
	}
	if approved == nil {
		return types.TxBuilderConfig{}, fmt.Errorf("tx config request %s approved without a config", id)
	}
	return *approved, nil
}

// GetRequestedTxConfig returns the config behind a pending request.
func (k *Keeper) GetRequestedTxConfig(id string) (types.TxBuilderConfig, error) {
	return k.txApprover.Data(id)
}

// ApproveTxBuilderConfig resolves a pending config request with the
// (possibly user-amended) config.
func (k *Keeper) ApproveTxBuilderConfig(id string, config types.TxBuilderConfig) {
	k.txApprover.Approve(id, &config)
}

// RejectTxBuilderConfig rejects a pending config request.
func (k *Keeper) RejectTxBuilderConfig(id string) {
	k.txApprover.Reject(id)
}

// SubmitBackgroundTx records an already-signed transaction for relay.
// Consent happened at signing time; broadcasting is an external
// collaborator's job, so the daemon only persists the outbox entry.
func (k *Keeper) SubmitBackgroundTx(ctx context.Context, txBytes []byte) (string, error) {
	if st := k.ring.Status(); st != keyring.StatusUnlocked {
		return "", apperrors.InvalidState(fmt.Sprintf("background tx requires unlocked, status is %s", st))
	}

	tracking := uuid.NewString()
	entry, err := json.Marshal(map[string]string{
		"tracking_id": tracking,
		"tx_hex":      hex.EncodeToString(txBytes),
	})
	if err != nil {
		return "", fmt.Errorf("failed to encode outbox entry: %w", err)
	}
	if err := k.kv.Set(ctx, txOutboxStorageKey, entry); err != nil {
		return "", fmt.Errorf("failed to persist outbox entry: %w", err)
	}

	logger.Info(ctx, "background tx submitted", "tracking_id", tracking, "size", len(txBytes))
	return tracking, nil
}

// PendingRequests lists the ids of every pending consent request, per
// queue, so the UI can render its approval list.
func (k *Keeper) PendingRequests() (unlock, sign, txConfig []string) {
	return k.unlockApprover.Pending(), k.signApprover.Pending(), k.txApprover.Pending()
}

// Addresses returns every known address.
func (k *Keeper) Addresses() []types.AddressEntry {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := make([]types.AddressEntry, len(k.book.Entries))
	copy(out, k.book.Entries)
	return out
}

// ActiveAddress returns the single currently active address.
func (k *Keeper) ActiveAddress() (types.AddressEntry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.book.Active == "" {
		return types.AddressEntry{}, apperrors.InvalidState("no active address")
	}
	entry := k.book.find(k.book.Active)
	if entry == nil {
		return types.AddressEntry{}, apperrors.InvalidState("active address missing from address book")
	}
	return *entry, nil
}

// SetActiveAddress designates the single active address.
func (k *Keeper) SetActiveAddress(ctx context.Context, address string) error {
	k.mu.Lock()
	defer k.mu.Unlock()

	if k.book.find(address) == nil {
		return apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Unknown address", address, 400)
	}
	k.book.Active = address
	return k.saveAddressBook(ctx)
}

// IsRemoteLinked reports whether address delegates signing to the remote
// signer.
func (k *Keeper) IsRemoteLinked(address string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry := k.book.find(address)
	return entry != nil && entry.RemoteLinked
}

// AddDerivedAddress derives the key at path and records its address.
func (k *Keeper) AddDerivedAddress(ctx context.Context, path string) (types.AddressEntry, error) {
	key, err := k.ring.GetKey(path)
	if err != nil {
		return types.AddressEntry{}, err
	}

	entry := types.AddressEntry{
		Address: key.Address.Hex(),
		Path:    path,
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.book.upsert(entry)
	if err := k.saveAddressBook(ctx); err != nil {
		return types.AddressEntry{}, err
	}
	return entry, nil
}

// LinkRemoteAddress records an address whose key lives on the remote
// signer backend.
func (k *Keeper) LinkRemoteAddress(ctx context.Context, address string) (types.AddressEntry, error) {
	if k.remote == nil {
		return types.AddressEntry{}, apperrors.SignerUnavailable("no remote signer backend configured")
	}
	if err := k.remote.Ready(ctx); err != nil {
		return types.AddressEntry{}, err
	}

	entry := types.AddressEntry{
		Address:      address,
		RemoteLinked: true,
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	k.book.upsert(entry)
	if err := k.saveAddressBook(ctx); err != nil {
		return types.AddressEntry{}, err
	}
	return entry, nil
}

// RecordActivity resets the inactivity clock.
func (k *Keeper) RecordActivity(ctx context.Context) error {
	if k.sup == nil {
		return nil
	}
	return k.sup.RecordActivity(ctx)
}

func (k *Keeper) lookupAddress(address string) (types.AddressEntry, error) {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry := k.book.find(address)
	if entry == nil {
		return types.AddressEntry{}, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Unknown address", address, 400)
	}
	if !strings.EqualFold(k.book.Active, entry.Address) {
		return types.AddressEntry{}, apperrors.InvalidState(fmt.Sprintf("address %s is not the active address", entry.Address))
	}
	return *entry, nil
}

func (k *Keeper) signRemote(ctx context.Context, message []byte) ([]byte, error) {
	if k.remote == nil {
		return nil, apperrors.SignerUnavailable("no remote signer backend configured")
	}
	if err := k.remote.Ready(ctx); err != nil {
		return nil, err
	}
	return k.remote.Sign(ctx, message)
}

func (k *Keeper) armSupervisor() {
	if k.sup != nil {
		k.sup.Arm()
	}
}
