package domain

import "time"

// DayNumber converts a weekday into the 1 (Sunday) .. 7 (Saturday) numbering
// stored in Activity.SelectedDays. Keep every conversion going through here.
func DayNumber(w time.Weekday) int {
	return int(w) + 1
}

// IsWeekend reports Saturday and Sunday.
func IsWeekend(w time.Weekday) bool {
	return w == time.Saturday || w == time.Sunday
}
