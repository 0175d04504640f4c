package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/go-chi/chi/v5"
)

// DeviceDirectory is the SimpleMDM surface the device endpoints need.
type DeviceDirectory interface {
	ListDevices(ctx context.Context) ([]models.Device, error)
	GetDevice(ctx context.Context, id int) (*models.Device, error)
}

// DeviceListCache is an optional device-list cache (see internal/cache).
type DeviceListCache interface {
	Get(ctx context.Context) ([]models.Device, bool)
	Set(ctx context.Context, devices []models.Device)
}

// DeviceHandler proxies read-only device queries to the device directory.
// The dashboard map reads from here.
type DeviceHandler struct {
	MDM   DeviceDirectory
	Cache DeviceListCache // optional
	Log   *slog.Logger
}

// ListDevices returns all enrolled devices.
func (h *DeviceHandler) ListDevices(w http.ResponseWriter, r *http.Request) {
	if h.Cache != nil {
		if devices, ok := h.Cache.Get(r.Context()); ok {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(devices)
			return
		}
	}

	devices, err := h.MDM.ListDevices(r.Context())
	if err != nil {
		h.Log.Error("device list failed", "err", err)
		JSONError(w, "device directory unavailable", http.StatusBadGateway)
		return
	}
	if h.Cache != nil {
		h.Cache.Set(r.Context(), devices)
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(devices)
}

// GetDevice returns one device by id.
func (h *DeviceHandler) GetDevice(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		JSONError(w, "invalid device id", http.StatusBadRequest)
		return
	}

	device, err := h.MDM.GetDevice(r.Context(), id)
	if err != nil {
		h.Log.Error("device fetch failed", "device_id", id, "err", err)
		JSONError(w, "device directory unavailable", http.StatusBadGateway)
		return
	}
	if device == nil {
		JSONError(w, "device not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(device)
}
