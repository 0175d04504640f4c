package models

// Device is one SimpleMDM-enrolled device as returned by the device directory.
// Latitude/Longitude feed the dashboard map; they are pass-through here.
type Device struct {
	ID           int     `json:"id"`
	Name         string  `json:"name"`
	SerialNumber string  `json:"serial_number,omitempty"`
	LastSeenAt   string  `json:"last_seen_at,omitempty"`
	Latitude     *string `json:"latitude,omitempty"`
	Longitude    *string `json:"longitude,omitempty"`
}
