package models

import "time"

// AcademicYear scopes every timetable assignment.
type AcademicYear struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	StartDate time.Time `db:"start_date" json:"start_date"`
	EndDate   time.Time `db:"end_date" json:"end_date"`
}

// Contains reports whether day falls within [StartDate, EndDate], compared by calendar date.
func (y AcademicYear) Contains(day time.Time) bool {
	d := truncateDay(day)
	return !d.Before(truncateDay(y.StartDate)) && !d.After(truncateDay(y.EndDate))
}

func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
