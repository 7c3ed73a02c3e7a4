package router

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

type pingMsg struct {
	Value string `json:"value"`
}

func (pingMsg) Route() string { return "test" }
func (pingMsg) Type() string  { return "ping" }
func (m pingMsg) ValidateBasic() error {
	if m.Value == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

type openMsg struct {
	Origin string `json:"origin"`
}

func (openMsg) Route() string        { return "test" }
func (openMsg) Type() string         { return "open" }
func (openMsg) ValidateBasic() error { return nil }
func (m openMsg) ApproveExternal(sender Sender) bool {
	return MatchesSenderOrigin(m.Origin, sender)
}

func newTestRouter(t *testing.T) *Router {
	t.Helper()

	r := New()
	r.RegisterRoute("test", func(ctx context.Context, msg Msg) (any, error) {
		switch m := msg.(type) {
		case *pingMsg:
			return "pong:" + m.Value, nil
		case *openMsg:
			return "opened", nil
		default:
			return nil, fmt.Errorf("unhandled message %T", msg)
		}
	})
	Register[pingMsg](r)
	Register[openMsg](r)
	return r
}

func envelope(t *testing.T, route, msgType string, payload any) types.Envelope {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	return types.Envelope{Route: route, Type: msgType, Payload: raw}
}

var internalSender = Sender{Internal: true}

func TestDispatchInternal(t *testing.T) {
	r := newTestRouter(t)

	result, err := r.Dispatch(context.Background(), internalSender, envelope(t, "test", "ping", pingMsg{Value: "x"}))
	require.NoError(t, err)
	assert.Equal(t, "pong:x", result)
}

func TestDispatchUnknownType(t *testing.T) {
	r := newTestRouter(t)

	_, err := r.Dispatch(context.Background(), internalSender, envelope(t, "test", "nope", struct{}{}))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnknownMessageType))

	_, err = r.Dispatch(context.Background(), internalSender, envelope(t, "nope", "ping", struct{}{}))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeUnknownMessageType))
}

func TestDispatchValidateBasicFailure(t *testing.T) {
	r := newTestRouter(t)

	_, err := r.Dispatch(context.Background(), internalSender, envelope(t, "test", "ping", pingMsg{}))
	require.Error(t, err)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))
}

func TestDispatchMalformedPayload(t *testing.T) {
	r := newTestRouter(t)

	env := types.Envelope{Route: "test", Type: "ping", Payload: json.RawMessage(`{not json`)}
	_, err := r.Dispatch(context.Background(), internalSender, env)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeBadRequest))
}

func TestExternalSenderBlockedFromInternalMessage(t *testing.T) {
	r := newTestRouter(t)
	page := Sender{URL: "https://dapp.example/page"}

	// pingMsg has no external approval hook at all.
	_, err := r.Dispatch(context.Background(), page, envelope(t, "test", "ping", pingMsg{Value: "x"}))
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeOriginNotAllowed))
}

func TestExternalSenderOriginCheck(t *testing.T) {
	r := newTestRouter(t)

	tests := []struct {
		name    string
		sender  Sender
		origin  string
		allowed bool
	}{
		{"matching origin", Sender{URL: "https://dapp.example/page"}, "https://dapp.example", true},
		{"matching origin with path", Sender{URL: "https://dapp.example/deep/path"}, "https://dapp.example/other", true},
		{"different host", Sender{URL: "https://evil.example/page"}, "https://dapp.example", false},
		{"different scheme", Sender{URL: "http://dapp.example/page"}, "https://dapp.example", false},
		{"empty declared origin", Sender{URL: "https://dapp.example/page"}, "", false},
		{"unparseable sender", Sender{URL: "::::"}, "https://dapp.example", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := r.Dispatch(context.Background(), tt.sender, envelope(t, "test", "open", openMsg{Origin: tt.origin}))
			if tt.allowed {
				require.NoError(t, err)
			} else {
				assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeOriginNotAllowed))
			}
		})
	}
}

func TestInternalSenderBypassesOriginCheck(t *testing.T) {
	r := newTestRouter(t)

	result, err := r.Dispatch(context.Background(), internalSender, envelope(t, "test", "open", openMsg{}))
	require.NoError(t, err)
	assert.Equal(t, "opened", result)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	r := newTestRouter(t)

	assert.Panics(t, func() { Register[pingMsg](r) })
	assert.Panics(t, func() {
		r.RegisterRoute("test", func(ctx context.Context, msg Msg) (any, error) { return nil, nil })
	})
}

func TestOriginOf(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"https://dapp.example/page?q=1", "https://dapp.example"},
		{"https://dapp.example:8080/page", "https://dapp.example:8080"},
		{"dapp.example/page", ""},
		{"", ""},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, OriginOf(tt.raw), "url %q", tt.raw)
	}
}
