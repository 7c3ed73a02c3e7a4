package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/config"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/router"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

type echoMsg struct {
	Value string `json:"value"`
}

func (echoMsg) Route() string { return "test" }
func (echoMsg) Type() string  { return "echo" }
func (m echoMsg) ValidateBasic() error {
	if m.Value == "" {
		return fmt.Errorf("value is required")
	}
	return nil
}

type publicMsg struct {
	Origin string `json:"origin"`
}

func (publicMsg) Route() string        { return "test" }
func (publicMsg) Type() string         { return "public" }
func (publicMsg) ValidateBasic() error { return nil }
func (m publicMsg) ApproveExternal(sender router.Sender) bool {
	return router.MatchesSenderOrigin(m.Origin, sender)
}

func newTestServer(t *testing.T) (*Server, *TokenManager) {
	t.Helper()

	rtr := router.New()
	rtr.RegisterRoute("test", func(ctx context.Context, msg router.Msg) (any, error) {
		switch m := msg.(type) {
		case *echoMsg:
			return map[string]string{"echo": m.Value}, nil
		case *publicMsg:
			return map[string]bool{"ok": true}, nil
		default:
			return nil, fmt.Errorf("unhandled message %T", msg)
		}
	})
	router.Register[echoMsg](rtr)
	router.Register[publicMsg](rtr)

	cfg := &config.Config{
		UITokenSecret:    "test-secret",
		RateLimitEnabled: false,
		Port:             0,
	}
	tokens := NewTokenManager(cfg.UITokenSecret, time.Hour)
	return NewServer(cfg, rtr, tokens), tokens
}

func postMsg(t *testing.T, handler http.Handler, headers map[string]string, env types.Envelope) *httptest.ResponseRecorder {
	t.Helper()

	body, err := json.Marshal(env)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/msg", bytes.NewReader(body))
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) types.Response {
	t.Helper()

	var resp types.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func rawPayload(t *testing.T, msg any) json.RawMessage {
	t.Helper()

	raw, err := json.Marshal(msg)
	require.NoError(t, err)
	return raw
}

func TestHealth(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestInternalSenderWithToken(t *testing.T) {
	srv, tokens := newTestServer(t)
	token, err := tokens.Issue()
	require.NoError(t, err)

	rec := postMsg(t, srv.Handler(),
		map[string]string{"Authorization": "Bearer " + token},
		types.Envelope{Route: "test", Type: "echo", Payload: rawPayload(t, echoMsg{Value: "hi"})})

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	require.Nil(t, resp.Error)
}

func TestInvalidToken(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postMsg(t, srv.Handler(),
		map[string]string{"Authorization": "Bearer garbage"},
		types.Envelope{Route: "test", Type: "echo", Payload: rawPayload(t, echoMsg{Value: "hi"})})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "unauthorized", resp.Error.Code)
}

func TestExternalSenderByOrigin(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postMsg(t, srv.Handler(),
		map[string]string{"Origin": "https://dapp.example"},
		types.Envelope{Route: "test", Type: "public", Payload: rawPayload(t, publicMsg{Origin: "https://dapp.example"})})

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestExternalSenderBlockedFromInternalMessage(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postMsg(t, srv.Handler(),
		map[string]string{"Origin": "https://dapp.example"},
		types.Envelope{Route: "test", Type: "echo", Payload: rawPayload(t, echoMsg{Value: "hi"})})

	assert.Equal(t, http.StatusForbidden, rec.Code)
	resp := decodeResponse(t, rec)
	require.NotNil(t, resp.Error)
	assert.Equal(t, "origin_not_allowed", resp.Error.Code)
}

func TestNoSenderIdentity(t *testing.T) {
	srv, _ := newTestServer(t)

	rec := postMsg(t, srv.Handler(), nil,
		types.Envelope{Route: "test", Type: "echo", Payload: rawPayload(t, echoMsg{Value: "hi"})})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestMsgMethodNotAllowed(t *testing.T) {
	srv, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/msg", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestMalformedEnvelope(t *testing.T) {
	srv, tokens := newTestServer(t)
	token, err := tokens.Issue()
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/v1/msg", bytes.NewReader([]byte("{not json")))
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPairIssuesVerifiableToken(t *testing.T) {
	srv, tokens := newTestServer(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/pair", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeResponse(t, rec)
	payload, ok := resp.Payload.(map[string]any)
	require.True(t, ok)
	token, ok := payload["token"].(string)
	require.True(t, ok)
	assert.NoError(t, tokens.Verify(token))
}

func TestRateLimiting(t *testing.T) {
	srv, _ := newTestServer(t)
	srv.limiter = newRateLimiter(1, 1, true)
	handler := srv.Handler()

	env := types.Envelope{Route: "test", Type: "public", Payload: rawPayload(t, publicMsg{Origin: "https://dapp.example"})}
	headers := map[string]string{"Origin": "https://dapp.example"}

	first := postMsg(t, handler, headers, env)
	assert.Equal(t, http.StatusOK, first.Code)

	second := postMsg(t, handler, headers, env)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)

	// A different origin has its own bucket.
	other := postMsg(t, handler,
		map[string]string{"Origin": "https://other.example"},
		types.Envelope{Route: "test", Type: "public", Payload: rawPayload(t, publicMsg{Origin: "https://other.example"})})
	assert.Equal(t, http.StatusOK, other.Code)
}
