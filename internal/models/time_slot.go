package models

import (
	"fmt"
	"strings"
	"time"
)

// DayOfWeek numbers weekdays from Monday (1) to Sunday (7).
type DayOfWeek int

const (
	Monday DayOfWeek = iota + 1
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
	Sunday
)

var dayNames = [...]string{"", "MONDAY", "TUESDAY", "WEDNESDAY", "THURSDAY", "FRIDAY", "SATURDAY", "SUNDAY"}

// Valid reports whether d is within Monday..Sunday.
func (d DayOfWeek) Valid() bool {
	return d >= Monday && d <= Sunday
}

// String returns the upper-case day name.
func (d DayOfWeek) String() string {
	if !d.Valid() {
		return fmt.Sprintf("DAY(%d)", int(d))
	}
	return dayNames[d]
}

// Title returns the day name in title case, e.g. "Monday".
func (d DayOfWeek) Title() string {
	name := d.String()
	if !d.Valid() {
		return name
	}
	return name[:1] + strings.ToLower(name[1:])
}

// ClockMinutes converts a wall-clock value such as "07:45", "9:00" or
// "13:05:00" into minutes after midnight.
func ClockMinutes(value string) (int, bool) {
	for _, layout := range []string{"15:04", "15:04:05"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.Hour()*60 + t.Minute(), true
		}
	}
	return 0, false
}

// TimeSlot is a recurring period of the school week.
type TimeSlot struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	DayOfWeek DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime string    `db:"start_time" json:"start_time"`
	EndTime   string    `db:"end_time" json:"end_time"`
	IsBreak   bool      `db:"is_break" json:"is_break"`
}

// Label describes the slot for people, e.g. "Monday Period 1".
func (s TimeSlot) Label() string {
	return fmt.Sprintf("%s %s", s.DayOfWeek.Title(), s.Name)
}
