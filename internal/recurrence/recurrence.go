package recurrence

import (
	"sort"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

// Next computes the next occurrence after current for the given pattern,
// preserving wall-clock time. It is pure: no I/O, no clock reads.
//
//   - daily: current + 1 calendar day.
//   - weekly with weekdays (0=Sunday..6=Saturday): the smallest weekday in the
//     set strictly after current's weekday, wrapping into next week; with an
//     empty set, current + 7 days.
//   - monthly: same day-of-month one month later. Day-of-month overflow keeps
//     Go's AddDate normalization (Jan 31 -> Mar 2/3); the due-set only needs
//     the next start to be strictly later, so no clamping is applied.
//
// The second return is false for an unknown or empty pattern; callers treat
// such schedules as non-recurring from then on.
func Next(current time.Time, pattern string, weekdays []int) (time.Time, bool) {
	switch pattern {
	case models.PatternDaily:
		return current.AddDate(0, 0, 1), true
	case models.PatternWeekly:
		return nextWeekly(current, weekdays), true
	case models.PatternMonthly:
		return current.AddDate(0, 1, 0), true
	}
	return time.Time{}, false
}

func nextWeekly(current time.Time, weekdays []int) time.Time {
	days := validWeekdays(weekdays)
	if len(days) == 0 {
		return current.AddDate(0, 0, 7)
	}

	today := int(current.Weekday())
	for _, d := range days {
		if d > today {
			return current.AddDate(0, 0, d-today)
		}
	}
	// Wrap to the earliest weekday in the set next week.
	return current.AddDate(0, 0, 7-today+days[0])
}

// validWeekdays returns the in-range weekdays sorted ascending, deduplicated.
func validWeekdays(weekdays []int) []int {
	var days []int
	seen := make(map[int]bool)
	for _, d := range weekdays {
		if d >= 0 && d <= 6 && !seen[d] {
			seen[d] = true
			days = append(days, d)
		}
	}
	sort.Ints(days)
	return days
}
