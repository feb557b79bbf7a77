package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/glendisraptor/analytics-connector/internal/models"
)

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

func TestNextRunDaily(t *testing.T) {
	schedule := &models.Schedule{Frequency: models.FrequencyDaily, ScheduledTime: "02:00"}

	// Before the anchor: later today.
	now := time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC)
	next, err := NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC), next)

	// After the anchor: tomorrow.
	now = time.Date(2026, 8, 28, 3, 0, 0, 0, time.UTC)
	next, err = NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC), next)

	// Exactly at the anchor: strictly after now, so tomorrow.
	now = time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	next, err = NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 29, 2, 0, 0, 0, time.UTC), next)
}

func TestNextRunHourly(t *testing.T) {
	schedule := &models.Schedule{Frequency: models.FrequencyHourly, ScheduledTime: "02:00"}
	now := time.Date(2026, 8, 28, 9, 15, 0, 0, time.UTC)

	next, err := NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, now.Add(time.Hour), next)
}

func TestNextRunWeekly(t *testing.T) {
	// 2026-08-28 is a Friday.
	schedule := &models.Schedule{
		Frequency:     models.FrequencyWeekly,
		ScheduledTime: "02:00",
		DaysOfWeek:    strPtr("monday"),
	}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	next, err := NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 31, 2, 0, 0, 0, time.UTC), next)
	assert.Equal(t, time.Monday, next.Weekday())

	// Same weekday, anchor already passed: a full week out.
	schedule.DaysOfWeek = strPtr("friday")
	next, err = NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 4, 2, 0, 0, 0, time.UTC), next)

	// Same weekday, anchor still ahead: later today.
	now = time.Date(2026, 8, 28, 1, 0, 0, 0, time.UTC)
	next, err = NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC), next)
}

func TestNextRunWeeklyWithoutConfiguredDay(t *testing.T) {
	schedule := &models.Schedule{Frequency: models.FrequencyWeekly, ScheduledTime: "02:00"}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	next, err := NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 7), next)
}

func TestNextRunMonthly(t *testing.T) {
	schedule := &models.Schedule{
		Frequency:     models.FrequencyMonthly,
		ScheduledTime: "02:00",
		DayOfMonth:    intPtr(15),
	}

	now := time.Date(2026, 8, 10, 0, 0, 0, 0, time.UTC)
	next, err := NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 8, 15, 2, 0, 0, 0, time.UTC), next)

	now = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	next, err = NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2026, 9, 15, 2, 0, 0, 0, time.UTC), next)
}

func TestNextRunMonthlyNormalizesShortMonths(t *testing.T) {
	schedule := &models.Schedule{
		Frequency:     models.FrequencyMonthly,
		ScheduledTime: "02:00",
		DayOfMonth:    intPtr(31),
	}
	now := time.Date(2026, 2, 10, 0, 0, 0, 0, time.UTC)

	next, err := NextRun(schedule, now)
	require.NoError(t, err)
	// Feb 31 normalizes into early March rather than failing.
	assert.Equal(t, time.Date(2026, 3, 3, 2, 0, 0, 0, time.UTC), next)
}

func TestNextRunMonthlyWithoutConfiguredDay(t *testing.T) {
	schedule := &models.Schedule{Frequency: models.FrequencyMonthly, ScheduledTime: "02:00"}
	now := time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

	next, err := NextRun(schedule, now)
	require.NoError(t, err)
	assert.Equal(t, now.AddDate(0, 0, 30), next)
}

func TestNextRunAlwaysAdvances(t *testing.T) {
	now := time.Date(2026, 8, 28, 2, 0, 0, 0, time.UTC)
	schedules := []*models.Schedule{
		{Frequency: models.FrequencyHourly, ScheduledTime: "02:00"},
		{Frequency: models.FrequencyDaily, ScheduledTime: "02:00"},
		{Frequency: models.FrequencyWeekly, ScheduledTime: "02:00", DaysOfWeek: strPtr("friday")},
		{Frequency: models.FrequencyMonthly, ScheduledTime: "02:00", DayOfMonth: intPtr(28)},
	}
	for _, schedule := range schedules {
		next, err := NextRun(schedule, now)
		require.NoError(t, err, schedule.Frequency)
		assert.True(t, next.After(now), "%s schedule must advance past now", schedule.Frequency)
	}
}

func TestNextRunRejectsBadInput(t *testing.T) {
	now := time.Now().UTC()

	_, err := NextRun(&models.Schedule{Frequency: "fortnightly", ScheduledTime: "02:00"}, now)
	assert.Error(t, err)

	_, err = NextRun(&models.Schedule{Frequency: models.FrequencyDaily, ScheduledTime: "25:99"}, now)
	assert.Error(t, err)

	_, err = NextRun(&models.Schedule{Frequency: models.FrequencyDaily, ScheduledTime: "noon"}, now)
	assert.Error(t, err)
}
