package models

// Subject is an academic subject. The timetable core treats it as opaque.
type Subject struct {
	ID       string `db:"id" json:"id"`
	Name     string `db:"name" json:"name"`
	Category string `db:"category" json:"category"`
}
