package signer

import (
	"context"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/router"
)

// SignerRoute is the router namespace for remote signer introspection.
const SignerRoute = "remote-signer"

// MsgSignerStatus probes the configured remote signer backend. Internal
// only: pages have no business learning about the custody backend.
type MsgSignerStatus struct{}

func (MsgSignerStatus) Route() string        { return SignerRoute }
func (MsgSignerStatus) Type() string         { return "status" }
func (MsgSignerStatus) ValidateBasic() error { return nil }

// SignerStatusResult describes the remote signer backend, if any.
type SignerStatusResult struct {
	Configured bool   `json:"configured"`
	Backend    string `json:"backend,omitempty"`
	Version    string `json:"version,omitempty"`
	Ready      bool   `json:"ready"`
	Error      string `json:"error,omitempty"`
}

// RegisterRoutes binds the remote-signer route to r. remote may be nil.
func RegisterRoutes(r *router.Router, remote RemoteSigner) {
	r.RegisterRoute(SignerRoute, newHandler(remote))
	router.Register[MsgSignerStatus](r)
}

func newHandler(remote RemoteSigner) router.Handler {
	return func(ctx context.Context, msg router.Msg) (any, error) {
		if remote == nil {
			return SignerStatusResult{Configured: false}, nil
		}

		res := SignerStatusResult{
			Configured: true,
			Backend:    remote.Backend(),
			Ready:      true,
		}
		if err := remote.Ready(ctx); err != nil {
			res.Ready = false
			res.Error = err.Error()
			return res, nil
		}

		version, err := remote.Version(ctx)
		if err != nil {
			res.Error = err.Error()
			return res, nil
		}
		res.Version = version
		return res, nil
	}
}
