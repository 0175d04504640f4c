package models

import "time"

// Schedule types.
const (
	ScheduleTypeOneTime   = "one_time"
	ScheduleTypeRecurring = "recurring"
)

// Recurrence patterns.
const (
	PatternDaily   = "daily"
	PatternWeekly  = "weekly"
	PatternMonthly = "monthly"
)

// Schedule represents a persisted intent to push a profile to a set of devices,
// once or on a recurring pattern.
//
// The executor exclusively owns StartTime and LastExecutedAt during execution;
// everything else belongs to the API/UI layer. A schedule is "due" when it is
// enabled, LastExecutedAt is null, and StartTime falls inside the execution
// window. A recurring schedule that fires is rescheduled in the same update
// (StartTime advanced, LastExecutedAt kept null) so it neither sticks nor
// re-fires every poll.
type Schedule struct {
	ID                int        `json:"id"`
	Name              string     `json:"name"`
	ProfileID         int        `json:"profile_id"`
	DeviceFilter      *string    `json:"device_filter,omitempty"`
	ScheduleType      string     `json:"schedule_type"` // one_time, recurring
	StartTime         time.Time  `json:"start_time"`
	EndTime           *time.Time `json:"end_time,omitempty"`
	RecurrencePattern *string    `json:"recurrence_pattern,omitempty"` // daily, weekly, monthly
	RecurrenceDays    []int      `json:"recurrence_days,omitempty"`    // weekday numbers 0..6, weekly only
	Enabled           bool       `json:"enabled"`
	LastExecutedAt    *time.Time `json:"last_executed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

// IsRecurring reports whether the schedule has a recurrence pattern set.
func (s *Schedule) IsRecurring() bool {
	return s.ScheduleType == ScheduleTypeRecurring && s.RecurrencePattern != nil && *s.RecurrencePattern != ""
}
