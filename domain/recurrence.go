package domain

// Matches reports whether activity a occurs on day d.
//
// Rules run in a fixed order and short-circuit. Bounds come first so no
// positive rule can fire outside the active window, one-time activities never
// reach the recurring rules, and explicit day sets outrank the frequency label.
// Matches ignores Active; callers filter inactive activities themselves.
func Matches(a Activity, d Date) bool {
	if !a.EnabledAt.IsZero() && d.Before(a.EnabledAt) {
		return false
	}

	if a.IsOneTime() {
		target := a.OneTimeDate()
		return !target.IsZero() && d == target
	}

	if a.EndBeforeActive && pastEnd(a, d) {
		return false
	}

	if len(a.SelectedMonthDays) > 0 && !a.hasMonthDay(d.Day) {
		return false
	}

	if a.WeeksInterval > 1 && !a.EnabledAt.IsZero() {
		weeks := floorDiv(a.EnabledAt.DaysUntil(d), 7)
		if weeks%a.WeeksInterval != 0 {
			return false
		}
	}

	// A tag that does not cover d leaves the decision to the day set.
	switch a.Frequency {
	case FrequencyDaily:
		return true
	case FrequencyWeekdays:
		if !IsWeekend(d.Weekday()) {
			return true
		}
	case FrequencyWeekends:
		if IsWeekend(d.Weekday()) {
			return true
		}
	}

	if len(a.SelectedDays) > 0 {
		return a.hasWeekDay(DayNumber(d.Weekday()))
	}

	// The month-day filter above already proved membership.
	if len(a.SelectedMonthDays) > 0 {
		return true
	}

	switch a.Frequency {
	case FrequencyWeekly:
		return !a.EnabledAt.IsZero() && d.Weekday() == a.EnabledAt.Weekday()
	case FrequencyMonthly:
		return !a.EnabledAt.IsZero() && d.Day == a.EnabledAt.Day
	case FrequencyNone, FrequencyOther:
		return true
	}

	return false
}

// EndDate returns the last day an activity may occur on, if it has one.
func EndDate(a Activity) (Date, bool) {
	if !a.EndBeforeActive {
		return Date{}, false
	}
	switch a.EndBeforeType {
	case EndBeforeDays:
		if a.EnabledAt.IsZero() || a.EndBeforeDays == nil {
			return Date{}, false
		}
		return a.EnabledAt.AddDays(*a.EndBeforeDays), true
	case EndBeforeDate:
		if a.EndBeforeDate.IsZero() {
			return Date{}, false
		}
		return a.EndBeforeDate, true
	default:
		return Date{}, false
	}
}

func pastEnd(a Activity, d Date) bool {
	end, ok := EndDate(a)
	return ok && d.After(end)
}

// OccurrencesBetween lists the days in [from, to] on which a occurs.
func OccurrencesBetween(a Activity, from, to Date) []Date {
	var out []Date
	for d := from; !d.After(to); d = d.AddDays(1) {
		if Matches(a, d) {
			out = append(out, d)
		}
	}
	return out
}

func floorDiv(a, b int) int {
	q := a / b
	if (a%b != 0) && ((a < 0) != (b < 0)) {
		q--
	}
	return q
}
