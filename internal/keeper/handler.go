package keeper

import (
	"context"
	"encoding/hex"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/router"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/validation"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

// Response payloads of the keyring route.
type (
	StatusResult struct {
		Status string `json:"status"`
	}

	MnemonicResult struct {
		Mnemonic string `json:"mnemonic"`
	}

	KeyResult struct {
		Address      string `json:"address"`
		PubKeyHex    string `json:"pub_key_hex"`
		Path         string `json:"path,omitempty"`
		RemoteLinked bool   `json:"remote_linked,omitempty"`
	}

	SignResult struct {
		SignatureHex string `json:"signature_hex"`
	}

	VerifyResult struct {
		Valid bool `json:"valid"`
	}

	AddressesResult struct {
		Active    string               `json:"active,omitempty"`
		Addresses []types.AddressEntry `json:"addresses"`
	}

	BackgroundTxResult struct {
		TrackingID string `json:"tracking_id"`
	}

	PendingResult struct {
		Unlock   []string `json:"unlock"`
		Sign     []string `json:"sign"`
		TxConfig []string `json:"tx_config"`
	}

	AckResult struct {
		OK bool `json:"ok"`
	}
)

var ack = AckResult{OK: true}

// RegisterRoutes binds every keyring message and the route handler to r.
func RegisterRoutes(r *router.Router, k *Keeper) {
	r.RegisterRoute(RouteName, NewHandler(k))

	router.Register[MsgRestore](r)
	router.Register[MsgGetStatus](r)
	router.Register[MsgEnable](r)
	router.Register[MsgGenerateMnemonic](r)
	router.Register[MsgCreateKey](r)
	router.Register[MsgUnlock](r)
	router.Register[MsgLock](r)
	router.Register[MsgClear](r)
	router.Register[MsgVerifyPassword](r)
	router.Register[MsgAdoptKeyFile](r)
	router.Register[MsgUpdatePassword](r)
	router.Register[MsgGetKey](r)
	router.Register[MsgRequestSign](r)
	router.Register[MsgGetRequestedMessage](r)
	router.Register[MsgApproveSign](r)
	router.Register[MsgRejectSign](r)
	router.Register[MsgRequestTxBuilderConfig](r)
	router.Register[MsgGetRequestedTxConfig](r)
	router.Register[MsgApproveTxBuilderConfig](r)
	router.Register[MsgRejectTxBuilderConfig](r)
	router.Register[MsgRequestBackgroundTx](r)
	router.Register[MsgGetPending](r)
	router.Register[MsgSetActiveAddress](r)
	router.Register[MsgGetAddresses](r)
	router.Register[MsgAddDerivedAddress](r)
	router.Register[MsgLinkRemoteAddress](r)
	router.Register[MsgNotifyActivity](r)
}

// NewHandler returns the keyring route handler. Messages arrive already
// decoded, validated and origin-checked by the router.
func NewHandler(k *Keeper) router.Handler {
	return func(ctx context.Context, msg router.Msg) (any, error) {
		switch m := msg.(type) {
		case *MsgRestore:
			if err := k.Restore(ctx); err != nil {
				return nil, err
			}
			return StatusResult{Status: k.Status().String()}, nil

		case *MsgGetStatus:
			return StatusResult{Status: k.Status().String()}, nil

		case *MsgEnable:
			st, err := k.Enable(ctx)
			if err != nil {
				return nil, err
			}
			return StatusResult{Status: st.String()}, nil

		case *MsgGenerateMnemonic:
			mnemonic, err := k.GenerateMnemonic(m.EntropyBits)
			if err != nil {
				return nil, err
			}
			return MnemonicResult{Mnemonic: mnemonic}, nil

		case *MsgCreateKey:
			entry, err := k.CreateKey(ctx, m.Mnemonic, m.Password)
			if err != nil {
				return nil, err
			}
			return keyResultFromEntry(k, entry)

		case *MsgUnlock:
			if err := k.Unlock(ctx, m.Password); err != nil {
				return nil, err
			}
			return StatusResult{Status: k.Status().String()}, nil

		case *MsgLock:
			if err := k.Lock(); err != nil {
				return nil, err
			}
			return StatusResult{Status: k.Status().String()}, nil

		case *MsgClear:
			if err := k.Clear(ctx); err != nil {
				return nil, err
			}
			return StatusResult{Status: k.Status().String()}, nil

		case *MsgVerifyPassword:
			return VerifyResult{Valid: k.VerifyPassword(m.Password)}, nil

		case *MsgAdoptKeyFile:
			return VerifyResult{Valid: k.AdoptKeyFile(m.KeyFile, m.Password)}, nil

		case *MsgUpdatePassword:
			ok, err := k.UpdatePassword(ctx, m.OldPassword, m.NewPassword)
			if err != nil {
				return nil, err
			}
			return VerifyResult{Valid: ok}, nil

		case *MsgGetKey:
			key, err := k.GetKey(m.Path)
			if err != nil {
				return nil, err
			}
			return KeyResult{
				Address:   key.Address.Hex(),
				PubKeyHex: hex.EncodeToString(key.PubKey),
				Path:      m.Path,
			}, nil

		case *MsgRequestSign:
			message, err := validation.ValidateHex(m.MessageHex)
			if err != nil {
				return nil, err
			}
			sig, err := k.RequestSign(ctx, m.ID, m.Address, message, m.OpenPopup)
			if err != nil {
				return nil, err
			}
			return SignResult{SignatureHex: hex.EncodeToString(sig)}, nil

		case *MsgGetRequestedMessage:
			return k.GetRequestedMessage(m.ID)

		case *MsgApproveSign:
			k.ApproveSign(m.ID)
			return ack, nil

		case *MsgRejectSign:
			k.RejectSign(m.ID)
			return ack, nil

		case *MsgRequestTxBuilderConfig:
			return k.RequestTxBuilderConfig(ctx, m.ID, m.Config, m.OpenPopup)

		case *MsgGetRequestedTxConfig:
			return k.GetRequestedTxConfig(m.ID)

		case *MsgApproveTxBuilderConfig:
			k.ApproveTxBuilderConfig(m.ID, m.Config)
			return ack, nil

		case *MsgRejectTxBuilderConfig:
			k.RejectTxBuilderConfig(m.ID)
			return ack, nil

		case *MsgRequestBackgroundTx:
			txBytes, err := validation.ValidateHex(m.TxHex)
			if err != nil {
				return nil, err
			}
			tracking, err := k.SubmitBackgroundTx(ctx, txBytes)
			if err != nil {
				return nil, err
			}
			return BackgroundTxResult{TrackingID: tracking}, nil

		case *MsgGetPending:
			unlock, sign, txConfig := k.PendingRequests()
			return PendingResult{Unlock: unlock, Sign: sign, TxConfig: txConfig}, nil

		case *MsgSetActiveAddress:
			if err := k.SetActiveAddress(ctx, m.Address); err != nil {
				return nil, err
			}
			return ack, nil

		case *MsgGetAddresses:
			return k.addressesResult(), nil

		case *MsgAddDerivedAddress:
			entry, err := k.AddDerivedAddress(ctx, m.Path)
			if err != nil {
				return nil, err
			}
			return entry, nil

		case *MsgLinkRemoteAddress:
			entry, err := k.LinkRemoteAddress(ctx, m.Address)
			if err != nil {
				return nil, err
			}
			return entry, nil

		case *MsgNotifyActivity:
			if err := k.RecordActivity(ctx); err != nil {
				return nil, err
			}
			return ack, nil

		default:
			return nil, apperrors.UnknownMessageType(msg.Route(), msg.Type())
		}
	}
}

func (k *Keeper) addressesResult() AddressesResult {
	k.mu.Lock()
	defer k.mu.Unlock()

	out := AddressesResult{
		Active:    k.book.Active,
		Addresses: make([]types.AddressEntry, len(k.book.Entries)),
	}
	copy(out.Addresses, k.book.Entries)
	return out
}

func keyResultFromEntry(k *Keeper, entry types.AddressEntry) (KeyResult, error) {
	res := KeyResult{
		Address:      entry.Address,
		Path:         entry.Path,
		RemoteLinked: entry.RemoteLinked,
	}
	if entry.Path != "" {
		key, err := k.GetKey(entry.Path)
		if err != nil {
			return KeyResult{}, err
		}
		res.PubKeyHex = hex.EncodeToString(key.PubKey)
	}
	return res, nil
}
