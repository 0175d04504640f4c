package recurrence

import (
	"testing"
	"time"

	"github.com/epaproditus/geo-profile-dashboard/internal/models"
)

func mustParse(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, value)
	if err != nil {
		t.Fatalf("parse %q: %v", value, err)
	}
	return ts
}

func TestNextDaily(t *testing.T) {
	current := mustParse(t, "2025-03-10T09:30:00Z")
	next, ok := Next(current, models.PatternDaily, nil)
	if !ok {
		t.Fatal("expected ok")
	}
	want := mustParse(t, "2025-03-11T09:30:00Z")
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestNextWeekly(t *testing.T) {
	tests := []struct {
		name     string
		current  string
		weekdays []int
		want     string
	}{
		{
			// Monday with {Mon,Wed,Fri}: next is Wednesday.
			name:     "midweek advance",
			current:  "2025-03-10T09:30:00Z", // Monday
			weekdays: []int{1, 3, 5},
			want:     "2025-03-12T09:30:00Z", // Wednesday
		},
		{
			// Friday with {Mon,Wed,Fri}: wraps to next Monday.
			name:     "wrap to next week",
			current:  "2025-03-14T09:30:00Z", // Friday
			weekdays: []int{1, 3, 5},
			want:     "2025-03-17T09:30:00Z", // Monday
		},
		{
			// Same weekday in the set is not "strictly after": skip to next week.
			name:     "same weekday skips a week",
			current:  "2025-03-10T09:30:00Z", // Monday
			weekdays: []int{1},
			want:     "2025-03-17T09:30:00Z",
		},
		{
			name:     "empty set falls back to seven days",
			current:  "2025-03-10T09:30:00Z",
			weekdays: nil,
			want:     "2025-03-17T09:30:00Z",
		},
		{
			name:     "out of range days are ignored",
			current:  "2025-03-10T09:30:00Z",
			weekdays: []int{-1, 7, 3},
			want:     "2025-03-12T09:30:00Z",
		},
		{
			name:     "unsorted input",
			current:  "2025-03-10T09:30:00Z", // Monday
			weekdays: []int{5, 3, 1},
			want:     "2025-03-12T09:30:00Z",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, ok := Next(mustParse(t, tt.current), models.PatternWeekly, tt.weekdays)
			if !ok {
				t.Fatal("expected ok")
			}
			want := mustParse(t, tt.want)
			if !next.Equal(want) {
				t.Errorf("got %v, want %v", next, want)
			}
		})
	}
}

func TestNextMonthly(t *testing.T) {
	current := mustParse(t, "2025-03-15T18:00:00Z")
	next, ok := Next(current, models.PatternMonthly, nil)
	if !ok {
		t.Fatal("expected ok")
	}
	want := mustParse(t, "2025-04-15T18:00:00Z")
	if !next.Equal(want) {
		t.Errorf("got %v, want %v", next, want)
	}
}

func TestNextMonthlyOverflowNormalizes(t *testing.T) {
	// Jan 31 + 1 month normalizes past February; the result just has to be
	// strictly later than the input.
	current := mustParse(t, "2025-01-31T08:00:00Z")
	next, ok := Next(current, models.PatternMonthly, nil)
	if !ok {
		t.Fatal("expected ok")
	}
	if !next.After(current) {
		t.Errorf("next %v not after current %v", next, current)
	}
	if next.Month() != time.March {
		t.Errorf("expected normalization into March, got %v", next)
	}
}

func TestNextUnknownPattern(t *testing.T) {
	for _, pattern := range []string{"", "yearly", "hourly"} {
		if _, ok := Next(time.Now(), pattern, nil); ok {
			t.Errorf("pattern %q: expected ok=false", pattern)
		}
	}
}

func TestNextPreservesWallClock(t *testing.T) {
	loc, err := time.LoadLocation("America/Chicago")
	if err != nil {
		t.Skip("tzdata unavailable")
	}
	// Crosses the US DST boundary (Mar 9 2025); wall clock must hold.
	current := time.Date(2025, 3, 8, 6, 0, 0, 0, loc)
	next, ok := Next(current, models.PatternDaily, nil)
	if !ok {
		t.Fatal("expected ok")
	}
	if next.Hour() != 6 || next.Day() != 9 {
		t.Errorf("wall clock not preserved: got %v", next)
	}
}
