//go:build integration

package integration

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	ethcrypto "github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/api"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/config"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/keeper"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/keyring"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/popup"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/router"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/signer"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/storage"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

const (
	testMnemonic = "abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon abandon about"
	testPassword = "correct horse battery staple"
	testOrigin   = "https://dapp.example"
)

// stack is a full wallet daemon over in-memory storage, fronted by an
// httptest server.
type stack struct {
	server *httptest.Server
	token  string
}

func newStack(t *testing.T) *stack {
	t.Helper()

	cfg := &config.Config{
		UITokenSecret:    "integration-secret",
		ApprovalTimeout:  time.Minute,
		RateLimitEnabled: false,
	}

	kv := storage.NewMemoryKV()
	ring := keyring.New(kv)
	kpr := keeper.New(ring, kv, nil, popup.LogOpener{}, cfg.ApprovalTimeout)
	require.NoError(t, kpr.Restore(t.Context()))

	rtr := router.New()
	keeper.RegisterRoutes(rtr, kpr)
	signer.RegisterRoutes(rtr, nil)

	tokens := api.NewTokenManager(cfg.UITokenSecret, time.Hour)
	srv := httptest.NewServer(api.NewServer(cfg, rtr, tokens).Handler())
	t.Cleanup(srv.Close)

	token, err := tokens.Issue()
	require.NoError(t, err)

	return &stack{server: srv, token: token}
}

// send posts one envelope. A non-empty origin marks the caller external;
// otherwise the UI token is attached.
func (s *stack) send(t *testing.T, origin, route, msgType string, payload any) (*http.Response, types.Response) {
	t.Helper()

	raw, err := json.Marshal(payload)
	require.NoError(t, err)
	body, err := json.Marshal(types.Envelope{Route: route, Type: msgType, Payload: raw})
	require.NoError(t, err)

	req, err := http.NewRequest(http.MethodPost, s.server.URL+"/v1/msg", bytes.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if origin != "" {
		req.Header.Set("Origin", origin)
	} else {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var decoded types.Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func (s *stack) sendOK(t *testing.T, origin, route, msgType string, payload any) map[string]any {
	t.Helper()

	resp, decoded := s.send(t, origin, route, msgType, payload)
	require.Equal(t, http.StatusOK, resp.StatusCode, "error: %+v", decoded.Error)
	require.Nil(t, decoded.Error)

	if decoded.Payload == nil {
		return nil
	}
	result, ok := decoded.Payload.(map[string]any)
	require.True(t, ok, "payload %T", decoded.Payload)
	return result
}

func (s *stack) createKey(t *testing.T) string {
	t.Helper()

	result := s.sendOK(t, "", "keyring", "create-key", map[string]string{
		"mnemonic": testMnemonic,
		"password": testPassword,
	})
	address, _ := result["address"].(string)
	require.NotEmpty(t, address)
	return address
}

func TestWalletLifecycleOverHTTP(t *testing.T) {
	s := newStack(t)

	status := s.sendOK(t, "", "keyring", "get-status", struct{}{})
	assert.Equal(t, "empty", status["status"])

	address := s.createKey(t)
	assert.Equal(t, "0x9858EfFD232B4033E47d90003D41EC34EcaEda94", address)

	status = s.sendOK(t, "", "keyring", "get-status", struct{}{})
	assert.Equal(t, "unlocked", status["status"])

	s.sendOK(t, "", "keyring", "lock", struct{}{})
	status = s.sendOK(t, "", "keyring", "get-status", struct{}{})
	assert.Equal(t, "locked", status["status"])

	s.sendOK(t, "", "keyring", "unlock", map[string]string{"password": testPassword})
	status = s.sendOK(t, "", "keyring", "get-status", struct{}{})
	assert.Equal(t, "unlocked", status["status"])
}

func TestExternalEnableWhileLocked(t *testing.T) {
	s := newStack(t)
	s.createKey(t)
	s.sendOK(t, "", "keyring", "lock", struct{}{})

	type enableResult struct {
		status map[string]any
	}
	done := make(chan enableResult, 1)
	go func() {
		result := s.sendOK(t, testOrigin, "keyring", "enable", map[string]string{"origin": testOrigin})
		done <- enableResult{status: result}
	}()

	// Wait for the unlock approval to become pending, then unlock, which
	// approves it and resumes the suspended enable call.
	require.Eventually(t, func() bool {
		pending := s.sendOK(t, "", "keyring", "get-pending", struct{}{})
		unlock, _ := pending["unlock"].([]any)
		return len(unlock) == 1
	}, 5*time.Second, 50*time.Millisecond)

	s.sendOK(t, "", "keyring", "unlock", map[string]string{"password": testPassword})

	select {
	case res := <-done:
		assert.Equal(t, "unlocked", res.status["status"])
	case <-time.After(5 * time.Second):
		t.Fatal("enable call never resumed")
	}
}

func TestExternalSignFlow(t *testing.T) {
	s := newStack(t)
	address := s.createKey(t)

	id := "deadbeefdeadbeef"
	message := []byte("integration sign")

	sigs := make(chan string, 1)
	go func() {
		result := s.sendOK(t, testOrigin, "keyring", "request-sign", map[string]any{
			"id":          id,
			"address":     address,
			"message_hex": hex.EncodeToString(message),
			"origin":      testOrigin,
		})
		sig, _ := result["signature_hex"].(string)
		sigs <- sig
	}()

	// The UI reads back the pending payload, then approves.
	require.Eventually(t, func() bool {
		resp, decoded := s.send(t, "", "keyring", "get-requested-message", map[string]string{"id": id})
		if resp.StatusCode != http.StatusOK {
			return false
		}
		payload := decoded.Payload.(map[string]any)
		return payload["address"] == address
	}, 5*time.Second, 50*time.Millisecond)

	s.sendOK(t, "", "keyring", "approve-sign", map[string]string{"id": id})

	var sigHex string
	select {
	case sigHex = <-sigs:
	case <-time.After(5 * time.Second):
		t.Fatal("sign request never resolved")
	}

	sig, err := hex.DecodeString(sigHex)
	require.NoError(t, err)
	recovered, err := ethcrypto.SigToPub(ethcrypto.Keccak256(message), sig)
	require.NoError(t, err)
	assert.Equal(t, address, ethcrypto.PubkeyToAddress(*recovered).Hex())
}

func TestExternalSignRejected(t *testing.T) {
	s := newStack(t)
	address := s.createKey(t)
	id := "cafebabecafebabe"

	codes := make(chan string, 1)
	go func() {
		_, decoded := s.send(t, testOrigin, "keyring", "request-sign", map[string]any{
			"id":          id,
			"address":     address,
			"message_hex": "01",
			"origin":      testOrigin,
		})
		if decoded.Error != nil {
			codes <- decoded.Error.Code
		} else {
			codes <- ""
		}
	}()

	require.Eventually(t, func() bool {
		resp, _ := s.send(t, "", "keyring", "get-requested-message", map[string]string{"id": id})
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 50*time.Millisecond)

	s.sendOK(t, "", "keyring", "reject-sign", map[string]string{"id": id})

	select {
	case code := <-codes:
		assert.Equal(t, "user_rejected", code)
	case <-time.After(5 * time.Second):
		t.Fatal("sign request never resolved")
	}
}

func TestExternalCannotReachInternalMessages(t *testing.T) {
	s := newStack(t)
	s.createKey(t)

	internalOnly := []struct {
		msgType string
		payload any
	}{
		{"create-key", map[string]string{"mnemonic": testMnemonic, "password": "x"}},
		{"unlock", map[string]string{"password": testPassword}},
		{"lock", struct{}{}},
		{"clear", struct{}{}},
		{"approve-sign", map[string]string{"id": "deadbeefdeadbeef"}},
		{"get-addresses", struct{}{}},
	}

	for _, tt := range internalOnly {
		t.Run(tt.msgType, func(t *testing.T) {
			resp, decoded := s.send(t, testOrigin, "keyring", tt.msgType, tt.payload)
			assert.Equal(t, http.StatusForbidden, resp.StatusCode)
			require.NotNil(t, decoded.Error)
			assert.Equal(t, "origin_not_allowed", decoded.Error.Code)
		})
	}
}

func TestExternalOriginMismatch(t *testing.T) {
	s := newStack(t)
	s.createKey(t)

	resp, decoded := s.send(t, "https://evil.example", "keyring", "enable",
		map[string]string{"origin": testOrigin})
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, "origin_not_allowed", decoded.Error.Code)
}

func TestSignerStatusRoute(t *testing.T) {
	s := newStack(t)

	result := s.sendOK(t, "", "remote-signer", "status", struct{}{})
	assert.Equal(t, false, result["configured"])
}

func TestUnknownMessageType(t *testing.T) {
	s := newStack(t)

	resp, decoded := s.send(t, "", "keyring", "no-such-type", struct{}{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	require.NotNil(t, decoded.Error)
	assert.Equal(t, "unknown_msg_type", decoded.Error.Code)
}
