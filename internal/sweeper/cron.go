package sweeper

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// cronParser — парсер cron-выражений каденса обходчика.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateCadence проверяет валидность cron-выражения каденса.
func ValidateCadence(expr string) error {
	if _, err := cronParser.Parse(expr); err != nil {
		return fmt.Errorf("invalid cadence %q: %w", expr, err)
	}
	return nil
}

// NextTick вычисляет время следующего тика по выражению каденса.
func NextTick(expr string, from time.Time) (time.Time, error) {
	schedule, err := cronParser.Parse(expr)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse cadence %q: %w", expr, err)
	}
	return schedule.Next(from).UTC(), nil
}
