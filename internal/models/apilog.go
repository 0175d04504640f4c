package models

import "time"

// API log action types.
const (
	ActionInstallProfile = "install_profile"
	ActionRemoveProfile  = "remove_profile"
)

// APILogEntry is one append-only audit record of a SimpleMDM push/remove call.
// Rows are write-once; nothing in the executor reads them back.
type APILogEntry struct {
	ID             int       `json:"id"`
	ScheduleID     *int      `json:"schedule_id,omitempty"`
	ActionType     string    `json:"action_type"`
	ProfileID      int       `json:"profile_id"`
	DeviceID       int       `json:"device_id"`
	RequestMethod  string    `json:"request_method"`
	RequestURL     string    `json:"request_url"`
	ResponseStatus int       `json:"response_status"`
	ResponseBody   string    `json:"response_body,omitempty"`
	Success        bool      `json:"success"`
	ErrorMessage   string    `json:"error_message,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}
