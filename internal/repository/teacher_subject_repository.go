package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TeacherSubjectRepository is the teaching-capability registry.
type TeacherSubjectRepository struct {
	db *sqlx.DB
}

// NewTeacherSubjectRepository constructs the repository.
func NewTeacherSubjectRepository(db *sqlx.DB) *TeacherSubjectRepository {
	return &TeacherSubjectRepository{db: db}
}

// CanTeach reports whether the teacher is authorized for the subject.
func (r *TeacherSubjectRepository) CanTeach(ctx context.Context, teacherID, subjectID string) (bool, error) {
	const query = `SELECT 1 FROM teacher_subjects WHERE teacher_id = $1 AND subject_id = $2 LIMIT 1`
	var exists int
	if err := r.db.GetContext(ctx, &exists, query, teacherID, subjectID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check teacher subject: %w", err)
	}
	return true, nil
}

// ListByTeacher returns the capability set of a teacher.
func (r *TeacherSubjectRepository) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherSubject, error) {
	const query = `SELECT teacher_id, subject_id FROM teacher_subjects WHERE teacher_id = $1 ORDER BY subject_id ASC`
	var items []models.TeacherSubject
	if err := r.db.SelectContext(ctx, &items, query, teacherID); err != nil {
		return nil, fmt.Errorf("list teacher subjects: %w", err)
	}
	return items, nil
}
