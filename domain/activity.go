package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// TimeOfDay is an optional wall-clock slot attached to an activity.
type TimeOfDay struct {
	Hour   int `json:"hour"`
	Minute int `json:"minute"`
}

func (t TimeOfDay) Valid() bool {
	return t.Hour >= 0 && t.Hour < 24 && t.Minute >= 0 && t.Minute < 60
}

// Minutes returns minutes since midnight.
func (t TimeOfDay) Minutes() int {
	return t.Hour*60 + t.Minute
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", t.Hour, t.Minute)
}

// Activity is the normalized, read-only view of a user's routine item.
type Activity struct {
	ID                string        `json:"id"`
	UserID            string        `json:"user_id"`
	Name              string        `json:"name,omitempty"`
	Type              ActivityType  `json:"type"`
	Active            bool          `json:"active"`
	Frequency         Frequency     `json:"frequency"`
	SelectedDays      []int         `json:"selected_days,omitempty"`
	SelectedMonthDays []int         `json:"selected_month_days,omitempty"`
	WeeksInterval     int           `json:"weeks_interval"`
	EnabledAt         Date          `json:"enabled_at"`
	EndBeforeActive   bool          `json:"end_before_active"`
	EndBeforeType     EndBeforeType `json:"end_before_type,omitempty"`
	EndBeforeDate     Date          `json:"end_before_date"`
	EndBeforeDays     *int          `json:"end_before_days,omitempty"`
	Time              *TimeOfDay    `json:"time,omitempty"`
}

// IsOneTime is true for one-time activities, whether flagged by type or by
// frequency label.
func (a Activity) IsOneTime() bool {
	return a.Type == ActivityOneTime || a.Frequency == FrequencyOneTime
}

// OneTimeDate is the single day a one-time activity occurs on.
func (a Activity) OneTimeDate() Date {
	if !a.EndBeforeDate.IsZero() {
		return a.EndBeforeDate
	}
	return a.EnabledAt
}

func (a Activity) hasWeekDay(n int) bool {
	return containsInt(a.SelectedDays, n)
}

func (a Activity) hasMonthDay(n int) bool {
	return containsInt(a.SelectedMonthDays, n)
}

// ActivityRecord is the document shape written by the activity editor.
// Keys are PascalCase and dates arrive as ISO-8601 strings.
type ActivityRecord struct {
	ID                    string      `json:"Id"`
	Name                  string      `json:"Name,omitempty"`
	Type                  string      `json:"Type,omitempty"`
	ActiveStatus          bool        `json:"ActiveStatus"`
	Time                  *RecordTime `json:"Time,omitempty"`
	Frequency             string      `json:"Frequency,omitempty"`
	SelectedDays          []FlexInt   `json:"SelectedDays,omitempty"`
	WeeksInterval         FlexInt     `json:"WeeksInterval,omitempty"`
	SelectedMonthDays     []FlexInt   `json:"SelectedMonthDays,omitempty"`
	EnabledAt             string      `json:"EnabledAt,omitempty"`
	EndBeforeActive       bool        `json:"EndBeforeActive,omitempty"`
	EndBeforeUnit         FlexString  `json:"EndBeforeUnit,omitempty"`
	EndBeforeType         string      `json:"EndBeforeType,omitempty"`
	SelectedEndBeforeDate string      `json:"SelectedEndBeforeDate,omitempty"`
}

// RecordTime is the wire form of an activity's time slot.
type RecordTime struct {
	Hour   FlexInt `json:"Hour"`
	Minute FlexInt `json:"Minute"`
}

// ToDomain converts a record into an Activity. Malformed fields are dropped
// rather than reported so one broken field cannot hide the whole activity.
// Timestamps are read as calendar days in loc.
func (r ActivityRecord) ToDomain(userID string, loc *time.Location) Activity {
	a := Activity{
		ID:                strings.TrimSpace(r.ID),
		UserID:            userID,
		Name:              r.Name,
		Type:              ParseActivityType(r.Type),
		Active:            r.ActiveStatus,
		Frequency:         ParseFrequency(r.Frequency),
		SelectedDays:      collectRange(r.SelectedDays, 1, 7),
		SelectedMonthDays: collectRange(r.SelectedMonthDays, 1, 31),
		WeeksInterval:     1,
		EndBeforeActive:   r.EndBeforeActive,
		EndBeforeType:     ParseEndBeforeType(r.EndBeforeType),
	}

	if n, ok := r.WeeksInterval.Get(); ok && n > 1 {
		a.WeeksInterval = n
	}
	if d, err := ParseDateIn(r.EnabledAt, loc); err == nil {
		a.EnabledAt = d
	}
	if d, err := ParseDateIn(r.SelectedEndBeforeDate, loc); err == nil {
		a.EndBeforeDate = d
	}
	if n, ok := ParseEndBeforeUnit(string(r.EndBeforeUnit)); ok {
		a.EndBeforeDays = &n
	}
	if r.Time != nil {
		hour, hourOK := r.Time.Hour.Get()
		minute, minuteOK := r.Time.Minute.Get()
		t := TimeOfDay{Hour: hour, Minute: minute}
		if hourOK && minuteOK && t.Valid() {
			a.Time = &t
		}
	}
	return a
}

// NormalizeActivities converts records and drops the ones without an id.
func NormalizeActivities(records []ActivityRecord, userID string, loc *time.Location) []Activity {
	activities := make([]Activity, 0, len(records))
	for _, rec := range records {
		a := rec.ToDomain(userID, loc)
		if a.ID == "" {
			continue
		}
		activities = append(activities, a)
	}
	return activities
}

// FlexInt decodes a JSON number or numeric string. Anything else leaves it unset.
type FlexInt struct {
	value int
	set   bool
}

// Int builds a set FlexInt.
func Int(v int) FlexInt {
	return FlexInt{value: v, set: true}
}

func (f FlexInt) Get() (int, bool) {
	return f.value, f.set
}

func (f FlexInt) MarshalJSON() ([]byte, error) {
	if !f.set {
		return []byte("null"), nil
	}
	return []byte(strconv.Itoa(f.value)), nil
}

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	*f = FlexInt{}
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	var number json.Number
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return nil
		}
		number = json.Number(strings.TrimSpace(s))
	} else {
		number = json.Number(data)
	}
	if n, err := number.Int64(); err == nil {
		*f = FlexInt{value: int(n), set: true}
		return nil
	}
	if v, err := number.Float64(); err == nil && v == float64(int(v)) {
		*f = FlexInt{value: int(v), set: true}
	}
	return nil
}

// FlexString decodes either a JSON string or a bare number into text.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = ""
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err == nil {
			*f = FlexString(s)
		}
		return nil
	}
	*f = FlexString(data)
	return nil
}

func collectRange(values []FlexInt, min, max int) []int {
	if len(values) == 0 {
		return nil
	}
	seen := make(map[int]struct{}, len(values))
	out := make([]int, 0, len(values))
	for _, v := range values {
		n, ok := v.Get()
		if !ok || n < min || n > max {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	sort.Ints(out)
	if len(out) == 0 {
		return nil
	}
	return out
}

func containsInt(values []int, n int) bool {
	for _, v := range values {
		if v == n {
			return true
		}
	}
	return false
}
