package scheduler

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
)

// scheduleParser accepts standard five-field expressions and descriptors
// such as "@every 30s" or "@hourly".
var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// TaskFunc is the work executed on every tick.
type TaskFunc func(ctx context.Context) error

// Task describes one periodic maintenance job.
type Task struct {
	Name     string
	Schedule string
	Timezone string
	// Timeout bounds a single run. Zero uses the runtime default.
	Timeout time.Duration
	Run     TaskFunc

	schedule cron.Schedule
}

// Validate verifies required fields and schedule syntax.
func (t *Task) Validate() error {
	if t == nil {
		return failf(ErrValidation, "task is nil")
	}
	t.Name = strings.TrimSpace(t.Name)
	if t.Name == "" {
		return failf(ErrValidation, "task name is required")
	}
	if strings.TrimSpace(t.Schedule) == "" {
		return failf(ErrValidation, "task schedule is required")
	}
	if t.Run == nil {
		return failf(ErrValidation, "task %q has no run function", t.Name)
	}
	if t.Timeout < 0 {
		return failf(ErrValidation, "task timeout must be >= 0")
	}

	schedule, err := parseSchedule(t.Schedule, t.Timezone)
	if err != nil {
		return err
	}
	if schedule.Next(time.Now()).IsZero() {
		return failf(ErrValidation, "schedule %q never fires", t.Schedule)
	}
	t.schedule = schedule
	return nil
}

func parseSchedule(expr, timezone string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if tz := strings.TrimSpace(timezone); tz != "" && !strings.HasPrefix(expr, "@") {
		if _, err := time.LoadLocation(tz); err != nil {
			return nil, errors.Join(failf(ErrValidation, "invalid task timezone"), err)
		}
		expr = "CRON_TZ=" + tz + " " + expr
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, errors.Join(failf(ErrValidation, "invalid schedule %q", expr), err)
	}
	return schedule, nil
}
