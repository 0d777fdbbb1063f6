package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimetableAssignmentRepository is the assignment store. Write and lookup methods
// take an optional executor so callers can run them inside their own transaction;
// a nil executor uses the pool.
type TimetableAssignmentRepository struct {
	db *sqlx.DB
}

// NewTimetableAssignmentRepository constructs the repository.
func NewTimetableAssignmentRepository(db *sqlx.DB) *TimetableAssignmentRepository {
	return &TimetableAssignmentRepository{db: db}
}

func (r *TimetableAssignmentRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

const assignmentColumns = `id, class_section_id, slot_id, academic_year_id, teacher_id, subject_id, assigned_by_id, created_at, updated_at`

// FindOne returns the occupant of a (section, slot, year) cell, or nil when the slot is empty.
func (r *TimetableAssignmentRepository) FindOne(ctx context.Context, exec sqlx.ExtContext, classSectionID, slotID, yearID string) (*models.TimetableAssignment, error) {
	const query = `SELECT ` + assignmentColumns + ` FROM timetable_assignments WHERE class_section_id = $1 AND slot_id = $2 AND academic_year_id = $3`
	var assignment models.TimetableAssignment
	if err := sqlx.GetContext(ctx, r.exec(exec), &assignment, query, classSectionID, slotID, yearID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find timetable assignment: %w", err)
	}
	return &assignment, nil
}

// FindConflict returns an assignment holding the teacher in the same slot and year
// for a class section other than excludeClassSectionID, or nil.
func (r *TimetableAssignmentRepository) FindConflict(ctx context.Context, exec sqlx.ExtContext, teacherID, slotID, yearID, excludeClassSectionID string) (*models.AssignmentConflict, error) {
	const query = `
SELECT ta.id, ta.class_section_id, ta.slot_id, ta.academic_year_id, ta.teacher_id, ta.subject_id, ta.assigned_by_id, ta.created_at, ta.updated_at,
       cs.name AS class_section_name
FROM timetable_assignments ta
JOIN class_sections cs ON cs.id = ta.class_section_id
WHERE ta.teacher_id = $1 AND ta.slot_id = $2 AND ta.academic_year_id = $3 AND ta.class_section_id <> $4
LIMIT 1`
	var conflict models.AssignmentConflict
	if err := sqlx.GetContext(ctx, r.exec(exec), &conflict, query, teacherID, slotID, yearID, excludeClassSectionID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("find timetable conflict: %w", err)
	}
	return &conflict, nil
}

// Create stores a new assignment. Unique violations are returned wrapped.
func (r *TimetableAssignmentRepository) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.TimetableAssignment) error {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if assignment.CreatedAt.IsZero() {
		assignment.CreatedAt = now
	}
	assignment.UpdatedAt = now

	const query = `INSERT INTO timetable_assignments (` + assignmentColumns + `)
		VALUES (:id, :class_section_id, :slot_id, :academic_year_id, :teacher_id, :subject_id, :assigned_by_id, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment); err != nil {
		return fmt.Errorf("create timetable assignment: %w", err)
	}
	return nil
}

// Update replaces teacher, subject and actor of an existing assignment in place.
func (r *TimetableAssignmentRepository) Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.TimetableAssignment) error {
	assignment.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_assignments SET teacher_id = :teacher_id, subject_id = :subject_id, assigned_by_id = :assigned_by_id, updated_at = :updated_at WHERE id = :id`
	result, err := sqlx.NamedExecContext(ctx, r.exec(exec), query, assignment)
	if err != nil {
		return fmt.Errorf("update timetable assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check updated assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment by id. It returns sql.ErrNoRows when nothing was deleted.
func (r *TimetableAssignmentRepository) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM timetable_assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete timetable assignment: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("check deleted assignment rows: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

const entrySelect = `
SELECT ta.id AS assignment_id, ta.class_section_id, cs.name AS class_section_name,
       ta.slot_id, ts.name AS slot_name, ts.day_of_week,
       to_char(ts.start_time, 'HH24:MI') AS start_time, to_char(ts.end_time, 'HH24:MI') AS end_time, ts.is_break,
       ta.subject_id, s.name AS subject_name, ta.teacher_id, t.name AS teacher_name, ta.assigned_by_id
FROM timetable_assignments ta
JOIN class_sections cs ON cs.id = ta.class_section_id
JOIN time_slots ts ON ts.id = ta.slot_id
JOIN subjects s ON s.id = ta.subject_id
JOIN teachers t ON t.id = ta.teacher_id`

// ListBySection returns the joined timetable of a class section for a year ordered by day and start time.
func (r *TimetableAssignmentRepository) ListBySection(ctx context.Context, classSectionID, yearID string) ([]models.TimetableEntry, error) {
	const query = entrySelect + `
WHERE ta.class_section_id = $1 AND ta.academic_year_id = $2
ORDER BY ts.day_of_week ASC, ts.start_time ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, classSectionID, yearID); err != nil {
		return nil, fmt.Errorf("list timetable by section: %w", err)
	}
	return entries, nil
}

// ListByYear returns every class section's entries for a year.
func (r *TimetableAssignmentRepository) ListByYear(ctx context.Context, yearID string) ([]models.TimetableEntry, error) {
	const query = entrySelect + `
WHERE ta.academic_year_id = $1
ORDER BY cs.name ASC, ts.day_of_week ASC, ts.start_time ASC`
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, yearID); err != nil {
		return nil, fmt.Errorf("list timetable by year: %w", err)
	}
	return entries, nil
}
