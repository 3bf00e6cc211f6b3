package scheduler

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений (5 полей, без секунд) и дескрипторов
// вида "@hourly" / "@every 10m".
var cronParser = cron.NewParser(
	cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// ParseCronExpr разбирает cron-выражение.
func ParseCronExpr(cronExpr string) (cron.Schedule, error) {
	schedule, err := cronParser.Parse(cronExpr)
	if err != nil {
		return nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}
	return schedule, nil
}

// ValidateCronExpr проверяет валидность cron-выражения.
func ValidateCronExpr(cronExpr string) error {
	_, err := ParseCronExpr(cronExpr)
	return err
}

// NextRun вычисляет следующее время запуска после from в часовом поясе loc.
// Nil loc означает UTC. Результат в UTC.
func NextRun(cronExpr string, from time.Time, loc *time.Location) (time.Time, error) {
	schedule, err := ParseCronExpr(cronExpr)
	if err != nil {
		return time.Time{}, err
	}
	if loc == nil {
		loc = time.UTC
	}
	return schedule.Next(from.In(loc)).UTC(), nil
}
