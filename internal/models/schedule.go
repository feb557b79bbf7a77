package models

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Schedule holds the cadence configuration for one connection. There is at
// most one schedule per connection.
type Schedule struct {
	ID            string        `json:"id" db:"id"`
	ConnectionID  string        `json:"connection_id" db:"connection_id"`
	Frequency     SyncFrequency `json:"frequency" db:"frequency"`
	ScheduledTime string        `json:"scheduled_time" db:"scheduled_time"` // "HH:MM", wall clock UTC
	DaysOfWeek    *string       `json:"days_of_week" db:"days_of_week"`     // comma-separated day names
	DayOfMonth    *int          `json:"day_of_month" db:"day_of_month"`
	IsActive      bool          `json:"is_active" db:"is_active"`
	LastRunAt     *time.Time    `json:"last_run_at" db:"last_run_at"`
	NextRunAt     *time.Time    `json:"next_run_at" db:"next_run_at"`
	CreatedAt     time.Time     `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time     `json:"updated_at" db:"updated_at"`
}

// AnchorTime parses the "HH:MM" time-of-day anchor.
func (s *Schedule) AnchorTime() (hour, minute int, err error) {
	parts := strings.SplitN(s.ScheduledTime, ":", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid scheduled_time %q", s.ScheduledTime)
	}
	hour, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scheduled_time %q", s.ScheduledTime)
	}
	minute, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid scheduled_time %q", s.ScheduledTime)
	}
	if hour < 0 || hour > 23 || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("scheduled_time %q out of range", s.ScheduledTime)
	}
	return hour, minute, nil
}

var weekdayNames = map[string]time.Weekday{
	"sunday":    time.Sunday,
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
}

// FirstWeekday returns the first configured day-of-week, if any. Day names
// are stored comma-separated and matched case-insensitively.
func (s *Schedule) FirstWeekday() (time.Weekday, bool) {
	if s.DaysOfWeek == nil {
		return 0, false
	}
	for _, name := range strings.Split(*s.DaysOfWeek, ",") {
		if wd, ok := weekdayNames[strings.ToLower(strings.TrimSpace(name))]; ok {
			return wd, true
		}
	}
	return 0, false
}
