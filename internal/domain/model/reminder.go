package model

import (
	"strconv"
	"strings"
	"time"
)

// Reminder represents a medication intake reminder.
type Reminder struct {
	ID         string
	OwnerID    string
	Medication string
	// TimeOfDay is the intake time in "HH:MM" 24-hour form.
	TimeOfDay string
	IsActive   bool
	Schedule   ReminderSchedule
	// ScheduledFor is the concrete occurrence of a one-shot reminder.
	// Zero for repeating schedules.
	ScheduledFor time.Time
	SyncStatus   SyncStatus
	UpdatedAt    time.Time
}

// MinuteOfDay converts TimeOfDay to minutes since midnight.
// Returns -1 for a malformed value so bad records sort first and are
// visible rather than silently interleaved.
func (r Reminder) MinuteOfDay() int {
	hh, mm, ok := strings.Cut(r.TimeOfDay, ":")
	if !ok {
		return -1
	}

	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return -1
	}

	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return -1
	}

	return h*60 + m
}

// Elapsed reports whether a one-shot reminder's scheduled occurrence is
// already in the past. Always false for repeating reminders.
func (r Reminder) Elapsed(now time.Time) bool {
	return r.Schedule == ScheduleOnce && !r.ScheduledFor.IsZero() && r.ScheduledFor.Before(now)
}
