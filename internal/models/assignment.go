package models

import (
	"time"

	"github.com/google/uuid"
)

// Quick assignment statuses. Transitions are monotonic:
// scheduled -> installed -> removed, or any state -> failed.
const (
	AssignmentStatusScheduled = "scheduled"
	AssignmentStatusInstalled = "installed"
	AssignmentStatusRemoved   = "removed"
	AssignmentStatusFailed    = "failed"
)

// Assignment is a time-bounded profile install on one device: installed now,
// removed by the reaper once RemoveAt passes.
type Assignment struct {
	ID        uuid.UUID `json:"id"`
	ProfileID int       `json:"profile_id"`
	DeviceID  int       `json:"device_id"`
	InstallAt time.Time `json:"install_at"`
	RemoveAt  time.Time `json:"remove_at"`
	Status    string    `json:"status"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Active reports whether the assignment still holds (or will hold) a profile
// on its device. Only one active assignment may exist per (profile, device).
func (a *Assignment) Active() bool {
	return a.Status == AssignmentStatusScheduled || a.Status == AssignmentStatusInstalled
}
