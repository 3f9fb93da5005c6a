package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDayNumberCoversEveryWeekday(t *testing.T) {
	want := map[time.Weekday]int{
		time.Sunday:    1,
		time.Monday:    2,
		time.Tuesday:   3,
		time.Wednesday: 4,
		time.Thursday:  5,
		time.Friday:    6,
		time.Saturday:  7,
	}
	assert.Len(t, want, 7)

	for weekday, number := range want {
		assert.Equal(t, number, DayNumber(weekday), weekday.String())
	}
}

func TestDayNumberFromCalendar(t *testing.T) {
	// 2024-01-07 is a Sunday.
	sunday := NewDate(2024, time.January, 7)
	for i := 0; i < 7; i++ {
		assert.Equal(t, i+1, DayNumber(sunday.AddDays(i).Weekday()))
	}
}

func TestIsWeekend(t *testing.T) {
	assert.True(t, IsWeekend(time.Saturday))
	assert.True(t, IsWeekend(time.Sunday))
	for _, w := range []time.Weekday{time.Monday, time.Tuesday, time.Wednesday, time.Thursday, time.Friday} {
		assert.False(t, IsWeekend(w), w.String())
	}
}
