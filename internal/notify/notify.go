package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Notifier delivers best-effort push notifications on install/remove events.
// Implementations must never let a delivery failure reach the caller; the
// executor's correctness does not depend on notifications landing.
type Notifier interface {
	Notify(ctx context.Context, title, message string)
}

// Webhook posts {"title": ..., "message": ...} to a fixed URL.
type Webhook struct {
	URL  string
	Log  *slog.Logger
	http *http.Client
}

// NewWebhook returns a Webhook notifier. url must be non-empty; use Nop when
// notifications are not configured.
func NewWebhook(url string, log *slog.Logger) *Webhook {
	if log == nil {
		log = slog.Default()
	}
	return &Webhook{
		URL:  url,
		Log:  log,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the event. Failures are logged and swallowed.
func (w *Webhook) Notify(ctx context.Context, title, message string) {
	payload, _ := json.Marshal(map[string]string{"title": title, "message": message})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, w.URL, bytes.NewReader(payload))
	if err != nil {
		w.Log.Warn("notification request build failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := w.http.Do(req)
	if err != nil {
		w.Log.Warn("notification send failed", "title", title, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		w.Log.Warn("notification rejected", "title", title, "status", resp.StatusCode)
	}
}

// Nop is a Notifier that does nothing. Default for tests and unconfigured deployments.
type Nop struct{}

func (Nop) Notify(ctx context.Context, title, message string) {}
