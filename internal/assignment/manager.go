package assignment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/metrics"
	"github.com/epaproditus/geo-profile-dashboard/internal/models"
	"github.com/epaproditus/geo-profile-dashboard/internal/notify"
	"github.com/epaproditus/geo-profile-dashboard/internal/simplemdm"
	"github.com/google/uuid"
)

// ErrProfileNotAllowed is returned when the requested profile id is not on
// the quick-assignment allow-list. Creation fails before any side effect.
var ErrProfileNotAllowed = errors.New("profile is not allowed for quick assignment")

// ErrNotFound is returned when the assignment id is unknown.
var ErrNotFound = errors.New("assignment not found")

// Store is the slice of the assignment repository the manager needs.
type Store interface {
	Create(ctx context.Context, profileID, deviceID int, removeAt time.Time) (uuid.UUID, error)
	GetByID(ctx context.Context, id uuid.UUID) (*models.Assignment, error)
	SetStatus(ctx context.Context, id uuid.UUID, status, errMsg string) error
	Cancel(ctx context.Context, id uuid.UUID) (bool, error)
	FindExpired(ctx context.Context, now time.Time) ([]models.Assignment, error)
	MarkRemoved(ctx context.Context, id uuid.UUID) (bool, error)
}

// LogStore appends api-call log entries.
type LogStore interface {
	Insert(ctx context.Context, e models.APILogEntry) error
}

// ProfilePusher is the slice of the SimpleMDM client the manager needs.
type ProfilePusher interface {
	InstallProfile(ctx context.Context, profileID, deviceID int) (*simplemdm.CallResult, error)
	RemoveProfile(ctx context.Context, profileID, deviceID int) (*simplemdm.CallResult, error)
}

// Manager owns quick (temporary) profile assignments: install now, remove
// after a bounded duration. Creation is synchronous and user-facing, so a
// failed install surfaces to the caller, unlike the executor's best-effort
// fan-out.
type Manager struct {
	store           Store
	logs            LogStore
	mdm             ProfilePusher
	notifier        notify.Notifier
	allowedProfiles map[int]bool
	log             *slog.Logger
	now             func() time.Time
}

// Config wires a Manager.
type Config struct {
	Store           Store
	Logs            LogStore
	MDM             ProfilePusher
	Notifier        notify.Notifier
	AllowedProfiles []int
	Log             *slog.Logger
	Now             func() time.Time
}

// NewManager returns a Manager for the given config.
func NewManager(cfg Config) *Manager {
	allowed := make(map[int]bool, len(cfg.AllowedProfiles))
	for _, id := range cfg.AllowedProfiles {
		allowed[id] = true
	}
	m := &Manager{
		store:           cfg.Store,
		logs:            cfg.Logs,
		mdm:             cfg.MDM,
		notifier:        cfg.Notifier,
		allowedProfiles: allowed,
		log:             cfg.Log,
		now:             cfg.Now,
	}
	if m.notifier == nil {
		m.notifier = notify.Nop{}
	}
	if m.log == nil {
		m.log = slog.Default()
	}
	if m.now == nil {
		m.now = time.Now
	}
	return m
}

// Create installs profileID on deviceID for durationMinutes. The profile must
// be on the allow-list; only one active assignment may exist per
// (profile, device) pair. Status transitions:
// row created as scheduled, then installed on push success or failed on push
// failure (the push error is returned to the caller either way).
func (m *Manager) Create(ctx context.Context, profileID, deviceID, durationMinutes int) (*models.Assignment, error) {
	if !m.allowedProfiles[profileID] {
		return nil, ErrProfileNotAllowed
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}

	removeAt := m.now().Add(time.Duration(durationMinutes) * time.Minute)
	id, err := m.store.Create(ctx, profileID, deviceID, removeAt)
	if err != nil {
		return nil, err
	}

	call, pushErr := m.mdm.InstallProfile(ctx, profileID, deviceID)
	m.logCall(ctx, models.ActionInstallProfile, profileID, deviceID, call, pushErr)

	if pushErr != nil {
		if err := m.store.SetStatus(ctx, id, models.AssignmentStatusFailed, pushErr.Error()); err != nil {
			m.log.Error("assignment status update failed", "assignment_id", id, "err", err)
		}
		metrics.QuickAssignments.WithLabelValues(models.AssignmentStatusFailed).Inc()
		return nil, fmt.Errorf("install profile %d on device %d: %w", profileID, deviceID, pushErr)
	}

	if err := m.store.SetStatus(ctx, id, models.AssignmentStatusInstalled, ""); err != nil {
		return nil, fmt.Errorf("mark assignment installed: %w", err)
	}
	metrics.QuickAssignments.WithLabelValues(models.AssignmentStatusInstalled).Inc()
	m.notifier.Notify(ctx, "Profile installed",
		fmt.Sprintf("profile %d installed on device %d until %s",
			profileID, deviceID, removeAt.Format(time.RFC3339)))

	return m.store.GetByID(ctx, id)
}

// Cancel ends an assignment early. When the profile is currently installed the
// remote removal is attempted best-effort: a removal failure is logged but the
// record still leaves the installed state, so the UI never shows a
// permanently stuck assignment.
func (m *Manager) Cancel(ctx context.Context, id uuid.UUID) (*models.Assignment, error) {
	a, err := m.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, ErrNotFound
	}

	if a.Status == models.AssignmentStatusInstalled {
		call, removeErr := m.mdm.RemoveProfile(ctx, a.ProfileID, a.DeviceID)
		m.logCall(ctx, models.ActionRemoveProfile, a.ProfileID, a.DeviceID, call, removeErr)
		if removeErr != nil {
			m.log.Warn("remote profile removal failed during cancel, marking removed anyway",
				"assignment_id", id, "err", removeErr)
		}
	}

	if _, err := m.store.Cancel(ctx, id); err != nil {
		return nil, err
	}
	metrics.QuickAssignments.WithLabelValues(models.AssignmentStatusRemoved).Inc()
	m.notifier.Notify(ctx, "Profile assignment cancelled",
		fmt.Sprintf("profile %d on device %d", a.ProfileID, a.DeviceID))

	return m.store.GetByID(ctx, id)
}

func (m *Manager) logCall(ctx context.Context, action string, profileID, deviceID int, call *simplemdm.CallResult, callErr error) {
	entry := models.APILogEntry{
		ActionType: action,
		ProfileID:  profileID,
		DeviceID:   deviceID,
		Success:    callErr == nil,
	}
	if call != nil {
		entry.RequestMethod = call.Method
		entry.RequestURL = call.URL
		entry.ResponseStatus = call.Status
		entry.ResponseBody = call.Body
	}
	if callErr != nil {
		entry.ErrorMessage = callErr.Error()
	}
	if err := m.logs.Insert(ctx, entry); err != nil {
		m.log.Warn("api log insert failed", "action", action, "device_id", deviceID, "err", err)
	}
	metrics.RecordPush(action, callErr == nil)
}
