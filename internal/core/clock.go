package core

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// MinutesPerDay is the length of a calendar day in minutes.
const MinutesPerDay TimeOfDay = 24 * 60

// DateLayout is the wire format for dates.
const DateLayout = "2006-01-02"

// TimeOfDay is a minute offset from local midnight. Values past 24:00 are used
// internally for sleep windows that cross midnight.
type TimeOfDay int

// ParseTimeOfDay parses "HH:MM".
func ParseTimeOfDay(value string) (TimeOfDay, error) {
	value = strings.TrimSpace(value)
	hh, mm, ok := strings.Cut(value, ":")
	if !ok {
		return 0, fmt.Errorf("invalid time of day %q: want HH:MM", value)
	}
	h, err := strconv.Atoi(hh)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	m, err := strconv.Atoi(mm)
	if err != nil {
		return 0, fmt.Errorf("invalid time of day %q: %w", value, err)
	}
	if h < 0 || m < 0 || m > 59 || h > 24 || (h == 24 && m != 0) {
		return 0, fmt.Errorf("invalid time of day %q: out of range", value)
	}
	return TimeOfDay(h*60 + m), nil
}

// MustTimeOfDay is ParseTimeOfDay for literals.
func MustTimeOfDay(value string) TimeOfDay {
	t, err := ParseTimeOfDay(value)
	if err != nil {
		panic(err)
	}
	return t
}

// Clock builds a TimeOfDay from hours and minutes.
func Clock(hour, minute int) TimeOfDay {
	return TimeOfDay(hour*60 + minute)
}

func (t TimeOfDay) String() string {
	return fmt.Sprintf("%02d:%02d", int(t)/60, int(t)%60)
}

func (t TimeOfDay) MarshalJSON() ([]byte, error) {
	return json.Marshal(t.String())
}

func (t *TimeOfDay) UnmarshalJSON(data []byte) error {
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("time of day must be a HH:MM string: %w", err)
	}
	parsed, err := ParseTimeOfDay(raw)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

func (t TimeOfDay) MarshalYAML() (any, error) {
	return t.String(), nil
}

func (t *TimeOfDay) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := ParseTimeOfDay(node.Value)
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}

// Date is a calendar day without a time zone.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// ParseDate parses YYYY-MM-DD.
func ParseDate(value string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: want YYYY-MM-DD", value)
	}
	return DateOf(t), nil
}

// MustDate is ParseDate for literals.
func MustDate(value string) Date {
	d, err := ParseDate(value)
	if err != nil {
		panic(err)
	}
	return d
}

// DateOf returns the calendar day of t in t's location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return Date{Year: y, Month: m, Day: d}
}

// Time returns midnight UTC of the date, which keeps day arithmetic free of DST.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Time().Format(DateLayout)
}

func (d Date) Weekday() time.Weekday {
	return d.Time().Weekday()
}

// AddDays returns the date n days later (or earlier for negative n).
func (d Date) AddDays(n int) Date {
	return DateOf(d.Time().AddDate(0, 0, n))
}

// DaysSince returns d - other in whole days.
func (d Date) DaysSince(other Date) int {
	return int(d.Time().Sub(other.Time()).Hours() / 24)
}

func (d Date) Before(other Date) bool {
	return d.Time().Before(other.Time())
}

func (d Date) After(other Date) bool {
	return d.Time().After(other.Time())
}

// DaysInMonth returns the length of the date's month.
func (d Date) DaysInMonth() int {
	return time.Date(d.Year, d.Month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*d = Date{}
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("date must be a YYYY-MM-DD string: %w", err)
	}
	if strings.TrimSpace(raw) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d Date) MarshalYAML() (any, error) {
	return d.String(), nil
}

func (d *Date) UnmarshalYAML(node *yaml.Node) error {
	if strings.TrimSpace(node.Value) == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// DayOfMonthLast is the "last day of the month" sentinel.
const DayOfMonthLast DayOfMonth = -1

// DayOfMonth is 1-31, DayOfMonthLast, or zero when unset.
type DayOfMonth int

func (d DayOfMonth) String() string {
	if d == DayOfMonthLast {
		return "last"
	}
	return strconv.Itoa(int(d))
}

// Resolve returns the concrete day in a month of the given length, or false if
// the month is too short.
func (d DayOfMonth) Resolve(daysInMonth int) (int, bool) {
	if d == DayOfMonthLast {
		return daysInMonth, true
	}
	if int(d) > daysInMonth {
		return 0, false
	}
	return int(d), true
}

func parseDayOfMonth(raw string) (DayOfMonth, error) {
	raw = strings.TrimSpace(raw)
	if strings.EqualFold(raw, "last") {
		return DayOfMonthLast, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid dayOfMonth %q: want 1-31 or \"last\"", raw)
	}
	return DayOfMonth(n), nil
}

func (d DayOfMonth) MarshalJSON() ([]byte, error) {
	if d == DayOfMonthLast {
		return json.Marshal("last")
	}
	return json.Marshal(int(d))
}

func (d *DayOfMonth) UnmarshalJSON(data []byte) error {
	raw := strings.Trim(string(data), `"`)
	if raw == "null" || raw == "" {
		*d = 0
		return nil
	}
	parsed, err := parseDayOfMonth(raw)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (d DayOfMonth) MarshalYAML() (any, error) {
	if d == DayOfMonthLast {
		return "last", nil
	}
	return int(d), nil
}

func (d *DayOfMonth) UnmarshalYAML(node *yaml.Node) error {
	parsed, err := parseDayOfMonth(node.Value)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
