package domain

import (
	"strconv"
	"strings"
	"unicode"
)

// Frequency is the closed set of recurrence tags an activity can carry.
type Frequency string

const (
	FrequencyNone     Frequency = ""
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekdays Frequency = "weekdays"
	FrequencyWeekends Frequency = "weekends"
	FrequencyWeekly   Frequency = "weekly"
	FrequencyMonthly  Frequency = "monthly"
	FrequencyOneTime  Frequency = "one_time"

	// FrequencyOther marks a label that was present but not understood.
	FrequencyOther Frequency = "other"
)

// frequencySynonyms is keyed by the normalized label (see normalizeLabel).
var frequencySynonyms = map[string]Frequency{
	"daily":         FrequencyDaily,
	"everyday":      FrequencyDaily,
	"eachday":       FrequencyDaily,
	"ежедневно":     FrequencyDaily,
	"каждыйдень":    FrequencyDaily,
	"diario":        FrequencyDaily,
	"diariamente":   FrequencyDaily,
	"todoslosdías":  FrequencyDaily,
	"todososdias":   FrequencyDaily,
	"diário":        FrequencyDaily,
	"quotidien":     FrequencyDaily,
	"quotidienne":   FrequencyDaily,
	"touslesjours":  FrequencyDaily,
	"täglich":       FrequencyDaily,
	"jedentag":      FrequencyDaily,
	"giornaliero":   FrequencyDaily,
	"ognigiorno":    FrequencyDaily,
	"weekday":       FrequencyWeekdays,
	"weekdays":      FrequencyWeekdays,
	"workdays":      FrequencyWeekdays,
	"будни":         FrequencyWeekdays,
	"будние":        FrequencyWeekdays,
	"entresemana":   FrequencyWeekdays,
	"diasúteis":     FrequencyWeekdays,
	"joursouvrés":   FrequencyWeekdays,
	"werktags":      FrequencyWeekdays,
	"wochentags":    FrequencyWeekdays,
	"feriali":       FrequencyWeekdays,
	"weekend":       FrequencyWeekends,
	"weekends":      FrequencyWeekends,
	"выходные":      FrequencyWeekends,
	"findesemana":   FrequencyWeekends,
	"fimdesemana":   FrequencyWeekends,
	"wochenende":    FrequencyWeekends,
	"finesettimana": FrequencyWeekends,
	"weekly":        FrequencyWeekly,
	"everyweek":     FrequencyWeekly,
	"biweekly":      FrequencyWeekly,
	"еженедельно":   FrequencyWeekly,
	"semanal":       FrequencyWeekly,
	"hebdomadaire":  FrequencyWeekly,
	"wöchentlich":   FrequencyWeekly,
	"settimanale":   FrequencyWeekly,
	"monthly":       FrequencyMonthly,
	"everymonth":    FrequencyMonthly,
	"ежемесячно":    FrequencyMonthly,
	"mensual":       FrequencyMonthly,
	"mensal":        FrequencyMonthly,
	"mensuel":       FrequencyMonthly,
	"monatlich":     FrequencyMonthly,
	"mensile":       FrequencyMonthly,
	"onetime":       FrequencyOneTime,
	"once":          FrequencyOneTime,
	"одинраз":       FrequencyOneTime,
	"unavez":        FrequencyOneTime,
	"umavez":        FrequencyOneTime,
	"unefois":       FrequencyOneTime,
	"einmalig":      FrequencyOneTime,
	"unavolta":      FrequencyOneTime,
}

// ParseFrequency maps a free-form label onto Frequency. Exact synonyms win;
// otherwise the label is scanned for an English stem. Empty input yields
// FrequencyNone and anything else unrecognized yields FrequencyOther.
func ParseFrequency(raw string) Frequency {
	label := normalizeLabel(raw)
	if label == "" {
		return FrequencyNone
	}
	if f, ok := frequencySynonyms[label]; ok {
		return f
	}

	switch {
	case strings.Contains(label, "weekday"):
		return FrequencyWeekdays
	case strings.Contains(label, "weekend"):
		return FrequencyWeekends
	case strings.Contains(label, "daily"), strings.Contains(label, "everyday"):
		return FrequencyDaily
	case strings.Contains(label, "week"):
		return FrequencyWeekly
	case strings.Contains(label, "month"):
		return FrequencyMonthly
	default:
		return FrequencyOther
	}
}

// normalizeLabel lower-cases and drops whitespace, '-' and '_'.
func normalizeLabel(raw string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsSpace(r) || r == '-' || r == '_' {
			return -1
		}
		return unicode.ToLower(r)
	}, raw)
}

// ActivityType separates recurring activities from single occurrences.
type ActivityType string

const (
	ActivityRegular ActivityType = "regular"
	ActivityOneTime ActivityType = "one_time"
)

// ParseActivityType defaults to ActivityRegular.
func ParseActivityType(raw string) ActivityType {
	switch normalizeLabel(raw) {
	case "onetime", "once":
		return ActivityOneTime
	default:
		return ActivityRegular
	}
}

// EndBeforeType selects how an activity's upper bound is expressed.
type EndBeforeType string

const (
	EndBeforeNone EndBeforeType = ""
	EndBeforeDate EndBeforeType = "date"
	EndBeforeDays EndBeforeType = "days"
)

// ParseEndBeforeType maps anything other than "date" or "days" to
// EndBeforeNone, which applies no upper bound.
func ParseEndBeforeType(raw string) EndBeforeType {
	switch normalizeLabel(raw) {
	case "days":
		return EndBeforeDays
	case "date":
		return EndBeforeDate
	default:
		return EndBeforeNone
	}
}

// ParseEndBeforeUnit reads the day count of a "days" bound. Negative or
// non-numeric input reports false.
func ParseEndBeforeUnit(raw string) (int, bool) {
	n, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
