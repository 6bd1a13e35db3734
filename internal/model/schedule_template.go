package model

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Weekday is the short label used in template keys and instance records.
type Weekday string

const (
	Monday    Weekday = "Mon"
	Tuesday   Weekday = "Tue"
	Wednesday Weekday = "Wed"
	Thursday  Weekday = "Thu"
	Friday    Weekday = "Fri"
	Saturday  Weekday = "Sat"
	Sunday    Weekday = "Sun"
)

// Weekdays lists labels in template order (Monday first).
var Weekdays = []Weekday{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

var weekdayByTime = map[time.Weekday]Weekday{
	time.Monday:    Monday,
	time.Tuesday:   Tuesday,
	time.Wednesday: Wednesday,
	time.Thursday:  Thursday,
	time.Friday:    Friday,
	time.Saturday:  Saturday,
	time.Sunday:    Sunday,
}

// ErrMalformedKey is returned for template keys that cannot be parsed.
var ErrMalformedKey = errors.New("malformed template key")

// WeekdayOf returns the label for the calendar day of t.
func WeekdayOf(t time.Time) Weekday {
	return weekdayByTime[t.Weekday()]
}

// ParseWeekday accepts a label such as "Mon" (case-insensitive).
func ParseWeekday(s string) (Weekday, bool) {
	for _, wd := range Weekdays {
		if strings.EqualFold(string(wd), s) {
			return wd, true
		}
	}
	return "", false
}

// Index returns the Monday-based position of the label, or -1.
func (w Weekday) Index() int {
	for i, wd := range Weekdays {
		if wd == w {
			return i
		}
	}
	return -1
}

// ScheduleCell is one (weekday, hour, room) cell of the weekly template.
type ScheduleCell struct {
	Weekday Weekday `json:"weekday"`
	Hour    int     `json:"hour"`
	Room    string  `json:"room"`
}

// Key is the document key the cell is stored under.
func (c ScheduleCell) Key() string {
	return fmt.Sprintf("%s-%d-%s", c.Weekday, c.Hour, c.Room)
}

// ParseCellKey parses "Mon-8-Room A". The room part may itself contain hyphens.
func ParseCellKey(key string) (ScheduleCell, error) {
	parts := strings.SplitN(key, "-", 3)
	if len(parts) < 3 {
		return ScheduleCell{}, fmt.Errorf("%w: %q", ErrMalformedKey, key)
	}

	wd, ok := ParseWeekday(parts[0])
	if !ok {
		return ScheduleCell{}, fmt.Errorf("%w: unknown weekday in %q", ErrMalformedKey, key)
	}

	hour, err := strconv.Atoi(parts[1])
	if err != nil || hour < 0 || hour > 23 {
		return ScheduleCell{}, fmt.Errorf("%w: bad hour in %q", ErrMalformedKey, key)
	}

	room := strings.TrimSpace(parts[2])
	if room == "" {
		return ScheduleCell{}, fmt.Errorf("%w: empty room in %q", ErrMalformedKey, key)
	}

	return ScheduleCell{Weekday: wd, Hour: hour, Room: room}, nil
}

// ScheduleAssignment binds a template cell to the instructor who owns it.
type ScheduleAssignment struct {
	Cell         ScheduleCell `json:"cell"`
	InstructorID string       `json:"instructor_id"`
}

// Less orders assignments by weekday, hour, then room name.
func (a ScheduleAssignment) Less(b ScheduleAssignment) bool {
	if ai, bi := a.Cell.Weekday.Index(), b.Cell.Weekday.Index(); ai != bi {
		return ai < bi
	}
	if a.Cell.Hour != b.Cell.Hour {
		return a.Cell.Hour < b.Cell.Hour
	}
	return a.Cell.Room < b.Cell.Room
}
