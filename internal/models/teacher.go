package models

// Teacher represents an instructor record.
type Teacher struct {
	ID   string `db:"id" json:"id"`
	Name string `db:"name" json:"name"`
}

// TeacherSubject grants a teacher the capability to teach a subject.
type TeacherSubject struct {
	TeacherID string `db:"teacher_id" json:"teacher_id"`
	SubjectID string `db:"subject_id" json:"subject_id"`
}
