package casework

import (
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"caseflow/internal/errs"
)

// DefaultSchedule ticks the deadline monitor once a minute.
const DefaultSchedule = "@every 60s"

var scheduleParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseSchedule accepts a five-field cron expression or a descriptor such as
// "@every 30s" or "@hourly". An empty expression yields DefaultSchedule.
func ParseSchedule(expr string) (cron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if expr == "" {
		expr = DefaultSchedule
	}
	schedule, err := scheduleParser.Parse(expr)
	if err != nil {
		return nil, errs.Mark(errs.Wrapf(err, "parse monitor schedule %q", expr), errs.KindInvalidInput)
	}
	return schedule, nil
}

// EverySchedule converts a fixed interval to a schedule.
func EverySchedule(interval time.Duration) cron.Schedule {
	if interval <= 0 {
		interval = time.Minute
	}
	return cron.Every(interval)
}
