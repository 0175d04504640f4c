package assignment

import (
	"context"
	"fmt"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

// ReapResult summarizes one reaper pass.
type ReapResult struct {
	Removed int `json:"removed"`
	Failed  int `json:"failed"`
}

// Reap removes profiles for installed assignments whose remove_at has passed.
// It runs on the same poll mechanism as the schedule executor. The
// installed-only guard on MarkRemoved keeps removal idempotent: if two passes
// overlap, only one transition wins and the loser skips the device call's
// bookkeeping.
//
// The remote removal itself is best-effort, like Cancel: a failed removal is
// logged and the row is still marked removed so it does not wedge the reaper
// on every subsequent pass.
func (m *Manager) Reap(ctx context.Context) (*ReapResult, error) {
	expired, err := m.store.FindExpired(ctx, m.now())
	if err != nil {
		return nil, fmt.Errorf("find expired assignments: %w", err)
	}

	res := &ReapResult{}
	for _, a := range expired {
		// Claim the transition first so a concurrent cancel or reap pass
		// doesn't double-remove.
		claimed, err := m.store.MarkRemoved(ctx, a.ID)
		if err != nil {
			m.log.Error("assignment removal update failed", "assignment_id", a.ID, "err", err)
			res.Failed++
			continue
		}
		if !claimed {
			continue
		}

		call, removeErr := m.mdm.RemoveProfile(ctx, a.ProfileID, a.DeviceID)
		m.logCall(ctx, models.ActionRemoveProfile, a.ProfileID, a.DeviceID, call, removeErr)
		if removeErr != nil {
			m.log.Warn("expired assignment removal push failed",
				"assignment_id", a.ID, "profile_id", a.ProfileID, "device_id", a.DeviceID, "err", removeErr)
		}
		m.notifier.Notify(ctx, "Profile removed",
			fmt.Sprintf("temporary profile %d removed from device %d", a.ProfileID, a.DeviceID))
		res.Removed++
	}

	if len(expired) > 0 {
		m.log.Info("reaper pass complete", "removed", res.Removed, "failed", res.Failed)
	}
	return res, nil
}
