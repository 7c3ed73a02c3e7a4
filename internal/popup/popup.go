// Package popup opens consent surfaces. Opening is fire and forget: a
// popup that never appears only means the approval times out.
package popup

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/fetchai/wallet-browser-extension-sub000/internal/logger"
)

const webhookTimeout = 5 * time.Second

// LogOpener records popup requests in the log. Used in development and
// whenever no webhook is configured.
type LogOpener struct{}

func (LogOpener) OpenWindow(url string) {
	logger.Info(context.Background(), "popup requested", "url", url)
}

// WebhookOpener POSTs popup requests to an extension-facing notifier so
// the browser side can open the actual window.
type WebhookOpener struct {
	endpoint string
	client   *http.Client
}

func NewWebhookOpener(endpoint string) *WebhookOpener {
	return &WebhookOpener{
		endpoint: endpoint,
		client:   &http.Client{Timeout: webhookTimeout},
	}
}

func (o *WebhookOpener) OpenWindow(url string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), webhookTimeout)
		defer cancel()

		body, err := json.Marshal(map[string]string{"url": url})
		if err != nil {
			logger.Error(ctx, "failed to encode popup request", "error", err)
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.endpoint, bytes.NewReader(body))
		if err != nil {
			logger.Error(ctx, "failed to build popup request", "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := o.client.Do(req)
		if err != nil {
			logger.Warn(ctx, "popup webhook unreachable", "url", url, "error", err)
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 300 {
			logger.Warn(ctx, "popup webhook rejected request", "url", url, "status", resp.StatusCode)
		}
	}()
}
