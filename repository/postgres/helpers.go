package postgres

import (
	"time"

	"github.com/fastygo/planner/domain"
)

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// dateArg binds a calendar day to a DATE parameter.
func dateArg(d domain.Date) interface{} {
	if d.IsZero() {
		return nil
	}
	return d.Time(time.UTC)
}

func timeArgs(t *domain.TimeOfDay) (interface{}, interface{}) {
	if t == nil {
		return nil, nil
	}
	return int16(t.Hour), int16(t.Minute)
}

func timeOfDay(hour, minute *int16) *domain.TimeOfDay {
	if hour == nil || minute == nil {
		return nil
	}
	return &domain.TimeOfDay{Hour: int(*hour), Minute: int(*minute)}
}

func clampLimit(limit int) int {
	if limit <= 0 || limit > 500 {
		return 500
	}
	return limit
}
