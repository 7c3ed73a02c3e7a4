// Package api exposes the message surface over localhost HTTP. The
// extension UI authenticates with a bearer token and dispatches as an
// internal sender; pages are identified by their Origin header and go
// through the router's external checks.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/config"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/logger"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/metrics"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/router"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

const maxBodyBytes = 1 << 20

// Server is the HTTP front of the message router.
type Server struct {
	config     *config.Config
	router     *router.Router
	tokens     *TokenManager
	limiter    *rateLimiter
	httpServer *http.Server
}

func NewServer(cfg *config.Config, rtr *router.Router, tokens *TokenManager) *Server {
	return &Server{
		config:  cfg,
		router:  rtr,
		tokens:  tokens,
		limiter: newRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, cfg.RateLimitEnabled),
	}
}

// Handler builds the full middleware and route chain.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", s.handleHealth)
	mux.Handle("/metrics", metrics.Handler())
	mux.Handle("/v1/pair", s.limiter.limit(callerKey, http.HandlerFunc(s.handlePair)))
	mux.Handle("/v1/msg", s.limiter.limit(callerKey, http.HandlerFunc(s.handleMsg)))

	return requestIDMiddleware(mux)
}

// Start blocks serving until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("127.0.0.1:%d", s.config.Port),
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // requests suspend on approvals; timeouts belong to the approver
		IdleTimeout:  60 * time.Second,
	}

	logger.Info(context.Background(), "starting server", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

// handlePair mints a UI session token. The daemon listens on loopback
// only, so reaching this endpoint already implies local access.
func (s *Server) handlePair(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Method not allowed", http.StatusMethodNotAllowed))
		return
	}

	token, err := s.tokens.Issue()
	if err != nil {
		logger.Error(r.Context(), "failed to issue UI token", "error", err)
		writeError(w, apperrors.ErrInternalError)
		return
	}

	respond(w, http.StatusOK, map[string]string{"token": token})
}

// handleMsg identifies the sender, dispatches one envelope and writes
// exactly one response.
func (s *Server) handleMsg(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, apperrors.New(apperrors.ErrCodeBadRequest, "Method not allowed", http.StatusMethodNotAllowed))
		return
	}

	sender, err := s.identifySender(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var env types.Envelope
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		writeError(w, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Malformed envelope", err.Error(), http.StatusBadRequest))
		return
	}

	result, err := s.router.Dispatch(r.Context(), sender, env)
	if err != nil {
		logger.Warn(r.Context(), "message dispatch failed",
			"route", env.Route, "type", env.Type, "internal", sender.Internal, "error", err)
		writeError(w, err)
		return
	}

	respond(w, http.StatusOK, result)
}

// identifySender decides which side of the trust boundary the caller is
// on. A valid bearer token makes the sender internal; otherwise the
// Origin header stands for the calling page.
func (s *Server) identifySender(r *http.Request) (router.Sender, error) {
	if auth := r.Header.Get("Authorization"); auth != "" {
		token, ok := strings.CutPrefix(auth, "Bearer ")
		if !ok {
			return router.Sender{}, apperrors.ErrUnauthorized
		}
		if err := s.tokens.Verify(token); err != nil {
			return router.Sender{}, apperrors.ErrUnauthorized
		}
		return router.Sender{Internal: true}, nil
	}

	origin := r.Header.Get("Origin")
	if origin == "" {
		return router.Sender{}, apperrors.ErrUnauthorized
	}
	return router.Sender{URL: origin}, nil
}

// callerKey buckets rate limiting by sender identity: internal callers
// share one bucket, pages get one per origin.
func callerKey(r *http.Request) string {
	if r.Header.Get("Authorization") != "" {
		return "internal"
	}
	if origin := r.Header.Get("Origin"); origin != "" {
		return origin
	}
	return r.RemoteAddr
}

func respond(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(types.Response{Payload: payload}); err != nil {
		logger.Error(context.Background(), "failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	body := &types.ErrorBody{
		Code:    apperrors.ErrCodeInternalError,
		Message: "Internal server error",
	}

	if appErr, ok := apperrors.IsAppError(err); ok {
		status = appErr.StatusCode
		body = &types.ErrorBody{
			Code:    appErr.Code,
			Message: appErr.Message,
			Detail:  appErr.Detail,
		}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(types.Response{Error: body})
}
