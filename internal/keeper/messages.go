package keeper

import (
	"fmt"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/keyring"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/router"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/validation"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

// RouteName is the router namespace owned by the keeper.
const RouteName = "keyring"

// Message type tags. Every message of the keyring route is listed here;
// the handler switch in handler.go must cover each one.
const (
	TypeRestore              = "restore"
	TypeGetStatus            = "get-status"
	TypeEnable               = "enable"
	TypeGenerateMnemonic     = "generate-mnemonic"
	TypeCreateKey            = "create-key"
	TypeUnlock               = "unlock"
	TypeLock                 = "lock"
	TypeClear                = "clear"
	TypeVerifyPassword       = "verify-password"
	TypeAdoptKeyFile         = "adopt-key-file"
	TypeUpdatePassword       = "update-password"
	TypeGetKey               = "get-key"
	TypeRequestSign          = "request-sign"
	TypeGetRequestedMessage  = "get-requested-message"
	TypeApproveSign          = "approve-sign"
	TypeRejectSign           = "reject-sign"
	TypeRequestTxConfig      = "request-tx-builder-config"
	TypeGetRequestedTxConfig = "get-requested-tx-config"
	TypeApproveTxConfig      = "approve-tx-builder-config"
	TypeRejectTxConfig       = "reject-tx-builder-config"
	TypeRequestBackgroundTx  = "request-background-tx"
	TypeGetPending           = "get-pending"
	TypeSetActiveAddress     = "set-active-address"
	TypeGetAddresses         = "get-addresses"
	TypeAddDerivedAddress    = "add-derived-address"
	TypeLinkRemoteAddress    = "link-remote-address"
	TypeNotifyActivity       = "notify-activity"
)

// MsgRestore loads persisted state into a freshly started process.
type MsgRestore struct{}

func (MsgRestore) Route() string        { return RouteName }
func (MsgRestore) Type() string         { return TypeRestore }
func (MsgRestore) ValidateBasic() error { return nil }

// MsgGetStatus reports the derived key-ring status.
type MsgGetStatus struct{}

func (MsgGetStatus) Route() string        { return RouteName }
func (MsgGetStatus) Type() string         { return TypeGetStatus }
func (MsgGetStatus) ValidateBasic() error { return nil }

// MsgEnable asks the wallet to become usable, suspending on unlock consent
// if necessary. Externally reachable.
type MsgEnable struct {
	Origin string `json:"origin"`
}

func (MsgEnable) Route() string { return RouteName }
func (MsgEnable) Type() string  { return TypeEnable }
func (m MsgEnable) ValidateBasic() error {
	return requireOrigin(m.Origin)
}
func (m MsgEnable) ApproveExternal(sender router.Sender) bool {
	return router.MatchesSenderOrigin(m.Origin, sender)
}

// MsgGenerateMnemonic produces a fresh mnemonic for the creation flow.
type MsgGenerateMnemonic struct {
	EntropyBits int `json:"entropy_bits"`
}

func (MsgGenerateMnemonic) Route() string { return RouteName }
func (MsgGenerateMnemonic) Type() string  { return TypeGenerateMnemonic }
func (m MsgGenerateMnemonic) ValidateBasic() error {
	if m.EntropyBits != 0 && (m.EntropyBits < 128 || m.EntropyBits > 256 || m.EntropyBits%32 != 0) {
		return fmt.Errorf("entropy_bits must be 128-256 in steps of 32")
	}
	return nil
}

// MsgCreateKey creates the key store from a mnemonic and password.
type MsgCreateKey struct {
	Mnemonic string `json:"mnemonic"`
	Password string `json:"password"`
}

func (MsgCreateKey) Route() string { return RouteName }
func (MsgCreateKey) Type() string  { return TypeCreateKey }
func (m MsgCreateKey) ValidateBasic() error {
	if m.Mnemonic == "" || m.Password == "" {
		return fmt.Errorf("mnemonic and password are required")
	}
	return nil
}

// MsgUnlock decrypts the key store.
type MsgUnlock struct {
	Password string `json:"password"`
}

func (MsgUnlock) Route() string { return RouteName }
func (MsgUnlock) Type() string  { return TypeUnlock }
func (m MsgUnlock) ValidateBasic() error {
	if m.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// MsgLock clears the in-memory secret material.
type MsgLock struct{}

func (MsgLock) Route() string        { return RouteName }
func (MsgLock) Type() string         { return TypeLock }
func (MsgLock) ValidateBasic() error { return nil }

// MsgClear destroys the key store. Irreversible.
type MsgClear struct{}

func (MsgClear) Route() string        { return RouteName }
func (MsgClear) Type() string         { return TypeClear }
func (MsgClear) ValidateBasic() error { return nil }

// MsgVerifyPassword checks a password against the stored key file.
type MsgVerifyPassword struct {
	Password string `json:"password"`
}

func (MsgVerifyPassword) Route() string { return RouteName }
func (MsgVerifyPassword) Type() string  { return TypeVerifyPassword }
func (m MsgVerifyPassword) ValidateBasic() error {
	if m.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// MsgAdoptKeyFile decrypts a supplied key file and adopts its mnemonic.
type MsgAdoptKeyFile struct {
	KeyFile  *keyring.Envelope `json:"key_file"`
	Password string            `json:"password"`
}

func (MsgAdoptKeyFile) Route() string { return RouteName }
func (MsgAdoptKeyFile) Type() string  { return TypeAdoptKeyFile }
func (m MsgAdoptKeyFile) ValidateBasic() error {
	if m.KeyFile == nil {
		return fmt.Errorf("key_file is required")
	}
	if m.Password == "" {
		return fmt.Errorf("password is required")
	}
	return nil
}

// MsgUpdatePassword re-encrypts the key store under a new password.
type MsgUpdatePassword struct {
	OldPassword string `json:"old_password"`
	NewPassword string `json:"new_password"`
}

func (MsgUpdatePassword) Route() string { return RouteName }
func (MsgUpdatePassword) Type() string  { return TypeUpdatePassword }
func (m MsgUpdatePassword) ValidateBasic() error {
	if m.OldPassword == "" || m.NewPassword == "" {
		return fmt.Errorf("old_password and new_password are required")
	}
	return nil
}

// MsgGetKey returns the public key and address at a derivation path.
// Externally reachable.
type MsgGetKey struct {
	Path   string `json:"path"`
	Origin string `json:"origin"`
}

func (MsgGetKey) Route() string { return RouteName }
func (MsgGetKey) Type() string  { return TypeGetKey }
func (m MsgGetKey) ValidateBasic() error {
	if err := validation.ValidateDerivationPath(m.Path); err != nil {
		return err
	}
	return requireOrigin(m.Origin)
}
func (m MsgGetKey) ApproveExternal(sender router.Sender) bool {
	return router.MatchesSenderOrigin(m.Origin, sender)
}

// MsgRequestSign asks for a signature over a message, gated behind sign
// consent. Externally reachable.
type MsgRequestSign struct {
	ID         string `json:"id"`
	Address    string `json:"address"`
	MessageHex string `json:"message_hex"`
	OpenPopup  bool   `json:"open_popup"`
	Origin     string `json:"origin"`
}

func (MsgRequestSign) Route() string { return RouteName }
func (MsgRequestSign) Type() string  { return TypeRequestSign }
func (m MsgRequestSign) ValidateBasic() error {
	if err := validation.ValidateRequestID(m.ID); err != nil {
		return err
	}
	if err := validation.ValidateAddress(m.Address); err != nil {
		return err
	}
	if _, err := validation.ValidateHex(m.MessageHex); err != nil {
		return err
	}
	return requireOrigin(m.Origin)
}
func (m MsgRequestSign) ApproveExternal(sender router.Sender) bool {
	return router.MatchesSenderOrigin(m.Origin, sender)
}

// MsgGetRequestedMessage reads the payload behind a pending sign request.
type MsgGetRequestedMessage struct {
	ID string `json:"id"`
}

func (MsgGetRequestedMessage) Route() string { return RouteName }
func (MsgGetRequestedMessage) Type() string  { return TypeGetRequestedMessage }
func (m MsgGetRequestedMessage) ValidateBasic() error {
	return validation.ValidateRequestID(m.ID)
}

// MsgApproveSign resolves a pending sign request.
type MsgApproveSign struct {
	ID string `json:"id"`
}

func (MsgApproveSign) Route() string { return RouteName }
func (MsgApproveSign) Type() string  { return TypeApproveSign }
func (m MsgApproveSign) ValidateBasic() error {
	return validation.ValidateRequestID(m.ID)
}

// MsgRejectSign rejects a pending sign request.
type MsgRejectSign struct {
	ID string `json:"id"`
}

func (MsgRejectSign) Route() string { return RouteName }
func (MsgRejectSign) Type() string  { return TypeRejectSign }
func (m MsgRejectSign) ValidateBasic() error {
	return validation.ValidateRequestID(m.ID)
}

// MsgRequestTxBuilderConfig asks the user to confirm or amend a fee/gas
// configuration. Externally reachable.
type MsgRequestTxBuilderConfig struct {
	ID        string                `json:"id"`
	Config    types.TxBuilderConfig `json:"config"`
	OpenPopup bool                  `json:"open_popup"`
	Origin    string                `json:"origin"`
}

func (MsgRequestTxBuilderConfig) Route() string { return RouteName }
func (MsgRequestTxBuilderConfig) Type() string  { return TypeRequestTxConfig }
func (m MsgRequestTxBuilderConfig) ValidateBasic() error {
	if err := validation.ValidateRequestID(m.ID); err != nil {
		return err
	}
	return requireOrigin(m.Origin)
}
func (m MsgRequestTxBuilderConfig) ApproveExternal(sender router.Sender) bool {
	return router.MatchesSenderOrigin(m.Origin, sender)
}

// MsgGetRequestedTxConfig reads the config behind a pending request.
type MsgGetRequestedTxConfig struct {
	ID string `json:"id"`
}

func (MsgGetRequestedTxConfig) Route() string { return RouteName }
func (MsgGetRequestedTxConfig) Type() string  { return TypeGetRequestedTxConfig }
func (m MsgGetRequestedTxConfig) ValidateBasic() error {
	return validation.ValidateRequestID(m.ID)
}

// MsgApproveTxBuilderConfig resolves a pending config request.
type MsgApproveTxBuilderConfig struct {
	ID     string                `json:"id"`
	Config types.TxBuilderConfig `json:"config"`
}

func (MsgApproveTxBuilderConfig) Route() string { return RouteName }
func (MsgApproveTxBuilderConfig) Type() string  { return TypeApproveTxConfig }
func (m MsgApproveTxBuilderConfig) ValidateBasic() error {
	return validation.ValidateRequestID(m.ID)
}

// MsgRejectTxBuilderConfig rejects a pending config request.
type MsgRejectTxBuilderConfig struct {
	ID string `json:"id"`
}

func (MsgRejectTxBuilderConfig) Route() string { return RouteName }
func (MsgRejectTxBuilderConfig) Type() string  { return TypeRejectTxConfig }
func (m MsgRejectTxBuilderConfig) ValidateBasic() error {
	return validation.ValidateRequestID(m.ID)
}

// MsgRequestBackgroundTx submits an already-signed transaction for relay.
// Externally reachable.
type MsgRequestBackgroundTx struct {
	TxHex  string `json:"tx_hex"`
	Origin string `json:"origin"`
}

func (MsgRequestBackgroundTx) Route() string { return RouteName }
func (MsgRequestBackgroundTx) Type() string  { return TypeRequestBackgroundTx }
func (m MsgRequestBackgroundTx) ValidateBasic() error {
	if _, err := validation.ValidateHex(m.TxHex); err != nil {
		return err
	}
	return requireOrigin(m.Origin)
}
func (m MsgRequestBackgroundTx) ApproveExternal(sender router.Sender) bool {
	return router.MatchesSenderOrigin(m.Origin, sender)
}

// MsgGetPending lists the ids of every pending consent request.
type MsgGetPending struct{}

func (MsgGetPending) Route() string        { return RouteName }
func (MsgGetPending) Type() string         { return TypeGetPending }
func (MsgGetPending) ValidateBasic() error { return nil }

// MsgSetActiveAddress designates the single active address.
type MsgSetActiveAddress struct {
	Address string `json:"address"`
}

func (MsgSetActiveAddress) Route() string { return RouteName }
func (MsgSetActiveAddress) Type() string  { return TypeSetActiveAddress }
func (m MsgSetActiveAddress) ValidateBasic() error {
	return validation.ValidateAddress(m.Address)
}

// MsgGetAddresses lists every known address.
type MsgGetAddresses struct{}

func (MsgGetAddresses) Route() string        { return RouteName }
func (MsgGetAddresses) Type() string         { return TypeGetAddresses }
func (MsgGetAddresses) ValidateBasic() error { return nil }

// MsgAddDerivedAddress derives a new address at a path and records it.
type MsgAddDerivedAddress struct {
	Path string `json:"path"`
}

func (MsgAddDerivedAddress) Route() string { return RouteName }
func (MsgAddDerivedAddress) Type() string  { return TypeAddDerivedAddress }
func (m MsgAddDerivedAddress) ValidateBasic() error {
	return validation.ValidateDerivationPath(m.Path)
}

// MsgLinkRemoteAddress records an address whose key lives on the remote
// signer backend.
type MsgLinkRemoteAddress struct {
	Address string `json:"address"`
}

func (MsgLinkRemoteAddress) Route() string { return RouteName }
func (MsgLinkRemoteAddress) Type() string  { return TypeLinkRemoteAddress }
func (m MsgLinkRemoteAddress) ValidateBasic() error {
	return validation.ValidateAddress(m.Address)
}

// MsgNotifyActivity resets the inactivity clock. Sent by the trusted UI
// on user interaction.
type MsgNotifyActivity struct{}

func (MsgNotifyActivity) Route() string        { return RouteName }
func (MsgNotifyActivity) Type() string         { return TypeNotifyActivity }
func (MsgNotifyActivity) ValidateBasic() error { return nil }

func requireOrigin(origin string) error {
	if origin == "" {
		return fmt.Errorf("origin is required")
	}
	return nil
}
