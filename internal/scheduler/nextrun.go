package scheduler

import (
	"fmt"
	"time"

	"github.com/glendisraptor/analytics-connector/internal/models"
)

// NextRun computes the next trigger instant for a schedule, strictly after
// now. Callers stamp the result after every trigger so next_run advances
// monotonically.
func NextRun(schedule *models.Schedule, now time.Time) (time.Time, error) {
	now = now.UTC()

	switch schedule.Frequency {
	case models.FrequencyHourly:
		return now.Add(time.Hour), nil

	case models.FrequencyDaily:
		anchor, err := anchorOn(schedule, now)
		if err != nil {
			return time.Time{}, err
		}
		if anchor.After(now) {
			return anchor, nil
		}
		return anchor.AddDate(0, 0, 1), nil

	case models.FrequencyWeekly:
		weekday, ok := schedule.FirstWeekday()
		if !ok {
			return now.AddDate(0, 0, 7), nil
		}
		anchor, err := anchorOn(schedule, now)
		if err != nil {
			return time.Time{}, err
		}
		anchor = anchor.AddDate(0, 0, int(weekday-now.Weekday()+7)%7)
		if anchor.After(now) {
			return anchor, nil
		}
		return anchor.AddDate(0, 0, 7), nil

	case models.FrequencyMonthly:
		if schedule.DayOfMonth == nil {
			return now.AddDate(0, 0, 30), nil
		}
		hour, minute, err := schedule.AnchorTime()
		if err != nil {
			return time.Time{}, err
		}
		// time.Date normalizes out-of-range days (Feb 31 -> early March).
		anchor := time.Date(now.Year(), now.Month(), *schedule.DayOfMonth, hour, minute, 0, 0, time.UTC)
		if anchor.After(now) {
			return anchor, nil
		}
		return time.Date(now.Year(), now.Month()+1, *schedule.DayOfMonth, hour, minute, 0, 0, time.UTC), nil

	default:
		return time.Time{}, fmt.Errorf("unknown frequency %q", schedule.Frequency)
	}
}

// anchorOn places the schedule's time-of-day anchor on now's date.
func anchorOn(schedule *models.Schedule, now time.Time) (time.Time, error) {
	hour, minute, err := schedule.AnchorTime()
	if err != nil {
		return time.Time{}, err
	}
	return time.Date(now.Year(), now.Month(), now.Day(), hour, minute, 0, 0, time.UTC), nil
}
