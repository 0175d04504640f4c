package simplemdm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

// DefaultBaseURL is the SimpleMDM v1 API base.
const DefaultBaseURL = "https://a.simplemdm.com/api/v1"

// maxResponseBody caps how much of a response body is kept for the call log.
const maxResponseBody = 4096

// Config configures a Client. Pass it explicitly; there is no package-level
// client, so tests can construct one against an httptest server.
type Config struct {
	APIKey  string
	BaseURL string
	// Timeout applies to every request. Zero means 30 seconds.
	Timeout time.Duration
}

// Client talks to the SimpleMDM REST API. Authentication is HTTP Basic with
// the API key as username and an empty password.
type Client struct {
	apiKey  string
	baseURL string
	http    *http.Client
}

// New returns a Client for the given config.
func New(cfg Config) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiKey:  cfg.APIKey,
		baseURL: base,
		http:    &http.Client{Timeout: timeout},
	}
}

// CallResult carries the request/response metadata of one push/remove call,
// in the shape the api-log table wants.
type CallResult struct {
	Method string
	URL    string
	Status int
	Body   string
}

// Success reports whether the call landed with a 2xx status.
func (r *CallResult) Success() bool {
	return r.Status >= 200 && r.Status < 300
}

// apiDevice is the wire shape of one device entry.
type apiDevice struct {
	ID         int `json:"id"`
	Attributes struct {
		Name         string  `json:"name"`
		SerialNumber string  `json:"serial_number"`
		LastSeenAt   string  `json:"last_seen_at"`
		Latitude     *string `json:"location_latitude"`
		Longitude    *string `json:"location_longitude"`
	} `json:"attributes"`
}

func (d apiDevice) toModel() models.Device {
	return models.Device{
		ID:           d.ID,
		Name:         d.Attributes.Name,
		SerialNumber: d.Attributes.SerialNumber,
		LastSeenAt:   d.Attributes.LastSeenAt,
		Latitude:     d.Attributes.Latitude,
		Longitude:    d.Attributes.Longitude,
	}
}

// ListDevices returns all enrolled devices, following SimpleMDM's cursor
// pagination (starting_after) until has_more is false.
func (c *Client) ListDevices(ctx context.Context) ([]models.Device, error) {
	var devices []models.Device
	startingAfter := 0
	for {
		url := c.baseURL + "/devices?limit=100"
		if startingAfter > 0 {
			url += "&starting_after=" + strconv.Itoa(startingAfter)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.SetBasicAuth(c.apiKey, "")

		resp, err := c.http.Do(req)
		if err != nil {
			return nil, fmt.Errorf("list devices: %w", err)
		}
		data, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("list devices: read body: %w", readErr)
		}
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("list devices: status %d: %s", resp.StatusCode, truncate(string(data)))
		}

		var out struct {
			Data    []apiDevice `json:"data"`
			HasMore bool        `json:"has_more"`
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("list devices: decode: %w", err)
		}
		for _, d := range out.Data {
			devices = append(devices, d.toModel())
		}
		if !out.HasMore || len(out.Data) == 0 {
			return devices, nil
		}
		startingAfter = out.Data[len(out.Data)-1].ID
	}
}

// GetDevice returns one device by id, or nil if the MDM reports 404.
func (c *Client) GetDevice(ctx context.Context, id int) (*models.Device, error) {
	url := fmt.Sprintf("%s/devices/%d", c.baseURL, id)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("get device %d: %w", id, err)
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("get device %d: status %d: %s", id, resp.StatusCode, truncate(string(data)))
	}

	var out struct {
		Data apiDevice `json:"data"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("get device %d: decode: %w", id, err)
	}
	dev := out.Data.toModel()
	return &dev, nil
}

// InstallProfile pushes a configuration profile to one device.
// The returned CallResult is always non-nil when the HTTP exchange completed,
// even on non-2xx, so the caller can log the outcome either way.
func (c *Client) InstallProfile(ctx context.Context, profileID, deviceID int) (*CallResult, error) {
	url := fmt.Sprintf("%s/profiles/%d/devices/%d", c.baseURL, profileID, deviceID)
	return c.push(ctx, url)
}

// RemoveProfile removes a configuration profile from one device.
func (c *Client) RemoveProfile(ctx context.Context, profileID, deviceID int) (*CallResult, error) {
	url := fmt.Sprintf("%s/profiles/%d/devices/%d/remove", c.baseURL, profileID, deviceID)
	return c.push(ctx, url)
}

func (c *Client) push(ctx context.Context, url string) (*CallResult, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(c.apiKey, "")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))

	result := &CallResult{
		Method: http.MethodPost,
		URL:    url,
		Status: resp.StatusCode,
		Body:   string(data),
	}
	if !result.Success() {
		return result, fmt.Errorf("push %s: status %d", url, resp.StatusCode)
	}
	return result, nil
}

func truncate(s string) string {
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
