package settlements

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWeeklyPeriodEndsAtMostRecentBoundary(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	// Wednesday 2025-09-10 15:30 KST; boundary is Monday 00:00 KST
	now := time.Date(2025, 9, 10, 15, 30, 0, 0, seoul)
	period := WeeklyPeriod(now, time.Monday, 0, seoul)

	wantEnd := time.Date(2025, 9, 8, 0, 0, 0, 0, seoul).UTC()
	assert.Equal(t, wantEnd, period.End)
	assert.Equal(t, wantEnd.AddDate(0, 0, -7), period.Start)
	require.NoError(t, period.Validate())
}

func TestWeeklyPeriodOnBoundaryUsesClosedWindow(t *testing.T) {
	// exactly Monday 00:00 UTC: the week that just closed is settled
	now := time.Date(2025, 9, 8, 0, 0, 0, 0, time.UTC)
	period := WeeklyPeriod(now, time.Monday, 0, time.UTC)

	assert.Equal(t, now, period.End)
	assert.Equal(t, now.AddDate(0, 0, -7), period.Start)
}

func TestWeeklyPeriodBeforeBoundaryHourFallsBackAWeek(t *testing.T) {
	// Monday 03:00 with a 6am boundary: this week's boundary has not passed
	now := time.Date(2025, 9, 8, 3, 0, 0, 0, time.UTC)
	period := WeeklyPeriod(now, time.Monday, 6, time.UTC)

	wantEnd := time.Date(2025, 9, 1, 6, 0, 0, 0, time.UTC)
	assert.Equal(t, wantEnd, period.End)
}

func TestWeeklyPeriodsNeverOverlap(t *testing.T) {
	prev := WeeklyPeriod(time.Date(2025, 9, 3, 12, 0, 0, 0, time.UTC), time.Monday, 0, time.UTC)
	next := WeeklyPeriod(time.Date(2025, 9, 10, 12, 0, 0, 0, time.UTC), time.Monday, 0, time.UTC)

	assert.Equal(t, prev.End, next.Start)
}

func TestDueNow(t *testing.T) {
	seoul, err := time.LoadLocation("Asia/Seoul")
	require.NoError(t, err)

	assert.True(t, DueNow(time.Date(2025, 9, 8, 0, 15, 0, 0, seoul), time.Monday, 0, seoul))
	assert.False(t, DueNow(time.Date(2025, 9, 8, 1, 0, 0, 0, seoul), time.Monday, 0, seoul))
	assert.False(t, DueNow(time.Date(2025, 9, 9, 0, 15, 0, 0, seoul), time.Monday, 0, seoul))
}
