// Package router carries typed messages from untrusted UI and page
// contexts into the background process: it owns message-class
// registration, per-route handler lookup and the external-origin check
// that forms the sole authorization boundary for page-originated calls.
package router

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/logger"
	"github.com/fetchai/wallet-browser-extension-sub000/internal/metrics"
	apperrors "github.com/fetchai/wallet-browser-extension-sub000/pkg/errors"
	"github.com/fetchai/wallet-browser-extension-sub000/pkg/types"
)

// Sender identifies where a message came from at the transport level.
// Internal senders are the extension's own trusted surfaces; external
// senders are untrusted pages identified by their URL.
type Sender struct {
	Internal bool
	URL      string
}

// Msg is a routed message. Route names the owning subsystem, Type tags the
// message within that route, and ValidateBasic performs stateless checks
// before dispatch.
type Msg interface {
	Route() string
	Type() string
	ValidateBasic() error
}

// ExternalMsg is implemented by the message types reachable from untrusted
// pages. ApproveExternal decides whether the given sender may send this
// message; everything else is internal-only.
type ExternalMsg interface {
	Msg
	ApproveExternal(sender Sender) bool
}

// Handler processes every message type of one route.
type Handler func(ctx context.Context, msg Msg) (any, error)

// Router dispatches envelopes to route handlers. Registration happens once
// at startup; the maps are read-only afterwards.
type Router struct {
	decoders map[string]func(json.RawMessage) (Msg, error)
	handlers map[string]Handler
}

// New creates an empty router.
func New() *Router {
	return &Router{
		decoders: make(map[string]func(json.RawMessage) (Msg, error)),
		handlers: make(map[string]Handler),
	}
}

// RegisterRoute installs the single handler for a route. Registering a
// route twice is a wiring bug and panics at startup.
func (r *Router) RegisterRoute(route string, h Handler) {
	if _, exists := r.handlers[route]; exists {
		panic(fmt.Sprintf("router: route %q registered twice", route))
	}
	r.handlers[route] = h
}

// Register installs the decoder for one message type, keyed by the
// route/type pair the zero value reports.
func Register[T any, PT interface {
	Msg
	*T
}](r *Router) {
	probe := PT(new(T))
	key := dispatchKey(probe.Route(), probe.Type())
	if _, exists := r.decoders[key]; exists {
		panic(fmt.Sprintf("router: message %q registered twice", key))
	}
	r.decoders[key] = func(raw json.RawMessage) (Msg, error) {
		msg := PT(new(T))
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, msg); err != nil {
				return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Malformed message payload", err.Error(), 400)
			}
		}
		return msg, nil
	}
}

// Dispatch decodes, validates, authorizes and executes one envelope.
// Exactly one response (value or error) is produced per call; the router
// never retries.
func (r *Router) Dispatch(ctx context.Context, sender Sender, env types.Envelope) (any, error) {
	result, err := r.dispatch(ctx, sender, env)

	outcome := "ok"
	if err != nil {
		outcome = "error"
		if appErr, ok := apperrors.IsAppError(err); ok {
			outcome = appErr.Code
		}
	}
	metrics.MessagesDispatched.WithLabelValues(env.Route, env.Type, outcome).Inc()

	return result, err
}

func (r *Router) dispatch(ctx context.Context, sender Sender, env types.Envelope) (any, error) {
	decode, ok := r.decoders[dispatchKey(env.Route, env.Type)]
	if !ok {
		return nil, apperrors.UnknownMessageType(env.Route, env.Type)
	}

	msg, err := decode(env.Payload)
	if err != nil {
		return nil, err
	}

	if err := msg.ValidateBasic(); err != nil {
		if _, ok := apperrors.IsAppError(err); ok {
			return nil, err
		}
		return nil, apperrors.NewWithDetail(apperrors.ErrCodeBadRequest, "Message validation failed", err.Error(), 400)
	}

	// The sole authorization boundary for page-originated messages:
	// internal senders bypass it, external senders must both target a
	// message type that admits external callers and pass its origin check.
	if !sender.Internal {
		ext, ok := msg.(ExternalMsg)
		if !ok {
			return nil, apperrors.OriginNotAllowed(fmt.Sprintf("message %s/%s is not externally reachable", env.Route, env.Type))
		}
		if !ext.ApproveExternal(sender) {
			return nil, apperrors.OriginNotAllowed(fmt.Sprintf("sender %q may not send %s/%s", sender.URL, env.Route, env.Type))
		}
	}

	handler, ok := r.handlers[env.Route]
	if !ok {
		return nil, apperrors.UnknownMessageType(env.Route, env.Type)
	}

	logger.Debug(ctx, "dispatching message", "route", env.Route, "type", env.Type, "internal", sender.Internal)
	return handler(ctx, msg)
}

func dispatchKey(route, msgType string) string {
	return route + "/" + msgType
}

// OriginOf extracts the scheme://host origin of a sender URL. An
// unparseable URL yields an empty origin, which never matches a declared
// one.
func OriginOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return ""
	}
	return u.Scheme + "://" + u.Host
}

// MatchesSenderOrigin reports whether a declared origin equals the origin
// of the sender's URL. Empty declared origins never match.
func MatchesSenderOrigin(declared string, sender Sender) bool {
	if declared == "" {
		return false
	}
	return OriginOf(declared) == OriginOf(sender.URL) && OriginOf(sender.URL) != ""
}
