package domain

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

const (
	ScheduleDaily    = "daily"
	ScheduleWeekly   = "weekly"
	ScheduleBiweekly = "biweekly"
	ScheduleMonthly  = "monthly"
)

var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule accepts one of the named intervals or a 5-field cron
// expression.
func ValidateSchedule(schedule string) error {
	switch schedule {
	case ScheduleDaily, ScheduleWeekly, ScheduleBiweekly, ScheduleMonthly:
		return nil
	}
	if _, err := cronParser.Parse(schedule); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
	return nil
}

// IsDue reports whether a new issue should be generated at now. A newsletter
// that has never been sent is due immediately. Named intervals compare
// elapsed time since last_sent_at; monthly uses calendar months. Cron
// schedules are due once the next occurrence after last_sent_at has passed.
// An unparseable cron expression is never due; the sweep logs it.
func (n *Newsletter) IsDue(now time.Time) (bool, error) {
	if !n.IsActive {
		return false, nil
	}
	if n.LastSentAt == nil {
		return true, nil
	}
	last := *n.LastSentAt

	switch n.Schedule {
	case ScheduleDaily:
		return now.Sub(last) >= 24*time.Hour, nil
	case ScheduleWeekly:
		return now.Sub(last) >= 7*24*time.Hour, nil
	case ScheduleBiweekly:
		return now.Sub(last) >= 14*24*time.Hour, nil
	case ScheduleMonthly:
		return !now.Before(last.AddDate(0, 1, 0)), nil
	}

	spec, err := cronParser.Parse(n.Schedule)
	if err != nil {
		return false, fmt.Errorf("invalid schedule %q: %w", n.Schedule, err)
	}
	return !spec.Next(last).After(now), nil
}
