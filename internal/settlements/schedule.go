package settlements

import (
	"fmt"
	"time"
)

// Period is the half-open settlement window [Start, End). Consecutive
// periods for a merchant never overlap because each window ends exactly
// where the next one starts.
type Period struct {
	Start time.Time
	End   time.Time
}

func (p Period) String() string {
	return fmt.Sprintf("[%s, %s)", p.Start.Format(time.RFC3339), p.End.Format(time.RFC3339))
}

// Validate rejects empty or inverted windows.
func (p Period) Validate() error {
	if p.Start.IsZero() || p.End.IsZero() {
		return fmt.Errorf("period bounds required")
	}
	if !p.Start.Before(p.End) {
		return fmt.Errorf("period start must precede end")
	}
	return nil
}

// WeeklyPeriod returns the most recent closed one-week window whose boundary
// is the configured weekday and hour in the given location. The returned
// bounds are in UTC.
func WeeklyPeriod(now time.Time, weekday time.Weekday, hour int, loc *time.Location) Period {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)

	boundary := time.Date(local.Year(), local.Month(), local.Day(), hour, 0, 0, 0, loc)
	daysBack := (int(local.Weekday()) - int(weekday) + 7) % 7
	boundary = boundary.AddDate(0, 0, -daysBack)
	if boundary.After(local) {
		boundary = boundary.AddDate(0, 0, -7)
	}

	end := boundary.UTC()
	return Period{Start: end.AddDate(0, 0, -7), End: end}
}

// DueNow reports whether the current tick falls in the configured weekly
// boundary hour. The hourly worker tick plus the idempotent batch (claimed
// orders are never re-selected) make duplicate fires harmless.
func DueNow(now time.Time, weekday time.Weekday, hour int, loc *time.Location) bool {
	if loc == nil {
		loc = time.UTC
	}
	local := now.In(loc)
	return local.Weekday() == weekday && local.Hour() == hour
}
