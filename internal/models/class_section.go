package models

// ClassSection is the sub-class that owns a timetable.
type ClassSection struct {
	ID            string `db:"id" json:"id"`
	Name          string `db:"name" json:"name"`
	ParentClassID string `db:"parent_class_id" json:"parent_class_id"`
}
