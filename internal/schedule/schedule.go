// Package schedule parses the restricted cron grammar disks use: a fixed
// minute, a fixed hour, and a set of weekdays. Day-of-month and month are
// always wildcards. Parsing happens once at the configuration boundary so
// the scheduler only ever sees structured specs.
package schedule

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"
)

// WeekdaySet is a bitmask of time.Weekday values (bit 0 = Sunday).
type WeekdaySet uint8

// AllWeekdays selects every day of the week.
const AllWeekdays WeekdaySet = 0x7f

// Contains reports whether the set includes the given weekday.
func (w WeekdaySet) Contains(d time.Weekday) bool {
	return w&(1<<uint(d)) != 0
}

// Empty reports whether no weekday is selected.
func (w WeekdaySet) Empty() bool { return w&AllWeekdays == 0 }

// Days returns the selected weekdays in Sunday-first order.
func (w WeekdaySet) Days() []time.Weekday {
	var days []time.Weekday
	for d := time.Sunday; d <= time.Saturday; d++ {
		if w.Contains(d) {
			days = append(days, d)
		}
	}
	return days
}

// Spec is the structured form of a disk schedule.
type Spec struct {
	Minute int
	Hour   int
	Days   WeekdaySet
}

// Parse converts a raw 5-field cron string into a Spec. An empty string
// means "no schedule" and yields (nil, nil). The grammar is deliberately
// narrow: minute and hour must be fixed integers, day-of-month and month
// must be "*", and day-of-week is "*" or a comma list of 0-7 (7 = Sunday).
func Parse(raw string) (*Spec, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, nil
	}

	fields := strings.Fields(trimmed)
	if len(fields) != 5 {
		return nil, fmt.Errorf("schedule %q: expected 5 cron fields, got %d", raw, len(fields))
	}

	minute, err := parseFixed(fields[0], 0, 59, "minute")
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", raw, err)
	}
	hour, err := parseFixed(fields[1], 0, 23, "hour")
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", raw, err)
	}
	if fields[2] != "*" {
		return nil, fmt.Errorf("schedule %q: day-of-month must be *", raw)
	}
	if fields[3] != "*" {
		return nil, fmt.Errorf("schedule %q: month must be *", raw)
	}

	days, err := parseWeekdays(fields[4])
	if err != nil {
		return nil, fmt.Errorf("schedule %q: %w", raw, err)
	}

	spec := &Spec{Minute: minute, Hour: hour, Days: days}
	return spec.Normalize(), nil
}

// Normalize maps a spec with no selected weekdays to nil (disabled).
func (s *Spec) Normalize() *Spec {
	if s == nil || s.Days.Empty() {
		return nil
	}
	return s
}

// Matches reports whether the wall-clock minute of t satisfies the spec.
func (s *Spec) Matches(t time.Time) bool {
	if s == nil {
		return false
	}
	return t.Minute() == s.Minute && t.Hour() == s.Hour && s.Days.Contains(t.Weekday())
}

// String renders the spec back into its canonical cron form.
func (s *Spec) String() string {
	if s == nil {
		return ""
	}
	dow := "*"
	if s.Days&AllWeekdays != AllWeekdays {
		parts := make([]string, 0, 7)
		for _, d := range s.Days.Days() {
			parts = append(parts, strconv.Itoa(int(d)))
		}
		sort.Strings(parts)
		dow = strings.Join(parts, ",")
	}
	return fmt.Sprintf("%d %d * * %s", s.Minute, s.Hour, dow)
}

func parseFixed(field string, min, max int, name string) (int, error) {
	value, err := strconv.Atoi(field)
	if err != nil {
		return 0, fmt.Errorf("%s must be a fixed integer, got %q", name, field)
	}
	if value < min || value > max {
		return 0, fmt.Errorf("%s %d out of range [%d,%d]", name, value, min, max)
	}
	return value, nil
}

func parseWeekdays(field string) (WeekdaySet, error) {
	if field == "*" {
		return AllWeekdays, nil
	}
	var set WeekdaySet
	for _, part := range strings.Split(field, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		value, err := strconv.Atoi(part)
		if err != nil {
			return 0, fmt.Errorf("weekday must be an integer, got %q", part)
		}
		if value < 0 || value > 7 {
			return 0, fmt.Errorf("weekday %d out of range [0,7]", value)
		}
		if value == 7 {
			// Both 0 and 7 mean Sunday in cron.
			value = 0
		}
		set |= 1 << uint(value)
	}
	return set, nil
}
