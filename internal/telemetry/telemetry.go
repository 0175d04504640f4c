package telemetry

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"
)

// Pinger sends one best-effort heartbeat per executor run to an external
// telemetry collector. Delivery failures are logged and never surfaced.
type Pinger interface {
	Ping(ctx context.Context, state, message string, metrics map[string]float64)
}

// Heartbeat posts {"state", "message", "metrics"} to a collector URL.
type Heartbeat struct {
	URL  string
	Log  *slog.Logger
	http *http.Client
}

// NewHeartbeat returns a Heartbeat pinger for the given collector URL.
func NewHeartbeat(url string, log *slog.Logger) *Heartbeat {
	if log == nil {
		log = slog.Default()
	}
	return &Heartbeat{
		URL:  url,
		Log:  log,
		http: &http.Client{Timeout: 10 * time.Second},
	}
}

// Ping delivers the heartbeat. Failures are logged and swallowed.
func (h *Heartbeat) Ping(ctx context.Context, state, message string, metrics map[string]float64) {
	payload, _ := json.Marshal(map[string]any{
		"state":   state,
		"message": message,
		"metrics": metrics,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.URL, bytes.NewReader(payload))
	if err != nil {
		h.Log.Warn("telemetry request build failed", "err", err)
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := h.http.Do(req)
	if err != nil {
		h.Log.Warn("telemetry ping failed", "state", state, "err", err)
		return
	}
	resp.Body.Close()
	if resp.StatusCode >= 300 {
		h.Log.Warn("telemetry ping rejected", "state", state, "status", resp.StatusCode)
	}
}

// Nop is a Pinger that does nothing.
type Nop struct{}

func (Nop) Ping(ctx context.Context, state, message string, metrics map[string]float64) {}
