package models

import "time"

// TimetableAssignment binds a teacher and subject to a class section's slot for one academic year.
// An empty slot has no row; a row always carries both TeacherID and SubjectID.
type TimetableAssignment struct {
	ID             string    `db:"id" json:"id"`
	ClassSectionID string    `db:"class_section_id" json:"class_section_id"`
	SlotID         string    `db:"slot_id" json:"slot_id"`
	AcademicYearID string    `db:"academic_year_id" json:"academic_year_id"`
	TeacherID      string    `db:"teacher_id" json:"teacher_id"`
	SubjectID      string    `db:"subject_id" json:"subject_id"`
	AssignedByID   string    `db:"assigned_by_id" json:"assigned_by_id"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
	UpdatedAt      time.Time `db:"updated_at" json:"updated_at"`
}

// AssignmentConflict is an assignment in another class section holding the same teacher.
type AssignmentConflict struct {
	TimetableAssignment
	ClassSectionName string `db:"class_section_name" json:"class_section_name"`
}

// TimetableEntry joins an assignment with its slot, subject and teacher.
type TimetableEntry struct {
	AssignmentID     string    `db:"assignment_id" json:"assignment_id"`
	ClassSectionID   string    `db:"class_section_id" json:"class_section_id"`
	ClassSectionName string    `db:"class_section_name" json:"class_section_name,omitempty"`
	SlotID           string    `db:"slot_id" json:"slot_id"`
	SlotName         string    `db:"slot_name" json:"slot_name"`
	DayOfWeek        DayOfWeek `db:"day_of_week" json:"day_of_week"`
	StartTime        string    `db:"start_time" json:"start_time"`
	EndTime          string    `db:"end_time" json:"end_time"`
	IsBreak          bool      `db:"is_break" json:"is_break"`
	SubjectID        string    `db:"subject_id" json:"subject_id"`
	SubjectName      string    `db:"subject_name" json:"subject_name"`
	TeacherID        string    `db:"teacher_id" json:"teacher_id"`
	TeacherName      string    `db:"teacher_name" json:"teacher_name"`
	AssignedByID     string    `db:"assigned_by_id" json:"assigned_by_id"`
}

// Before orders entries by day of week, then start time.
func (e TimetableEntry) Before(other TimetableEntry) bool {
	if e.DayOfWeek != other.DayOfWeek {
		return e.DayOfWeek < other.DayOfWeek
	}
	a, okA := ClockMinutes(e.StartTime)
	b, okB := ClockMinutes(other.StartTime)
	if okA && okB {
		return a < b
	}
	return e.StartTime < other.StartTime
}
