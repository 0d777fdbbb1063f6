package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// AcademicYearRepository reads academic years.
type AcademicYearRepository struct {
	db *sqlx.DB
}

// NewAcademicYearRepository constructs the repository.
func NewAcademicYearRepository(db *sqlx.DB) *AcademicYearRepository {
	return &AcademicYearRepository{db: db}
}

// FindByID loads a year by id.
func (r *AcademicYearRepository) FindByID(ctx context.Context, id string) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date FROM academic_years WHERE id = $1`
	return r.get(ctx, query, id)
}

// FindContaining returns the year whose date range contains day, preferring the latest start.
func (r *AcademicYearRepository) FindContaining(ctx context.Context, day time.Time) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date FROM academic_years WHERE start_date <= $1::date AND end_date >= $1::date ORDER BY start_date DESC LIMIT 1`
	return r.get(ctx, query, calendarDate(day))
}

// FindLatestStarted returns the most recently started year on or before day.
func (r *AcademicYearRepository) FindLatestStarted(ctx context.Context, day time.Time) (*models.AcademicYear, error) {
	const query = `SELECT id, name, start_date, end_date FROM academic_years WHERE start_date <= $1::date ORDER BY start_date DESC LIMIT 1`
	return r.get(ctx, query, calendarDate(day))
}

// calendarDate drops the clock so DATE columns compare against the day itself
// in the caller's time zone.
func calendarDate(day time.Time) string {
	return day.Format("2006-01-02")
}

func (r *AcademicYearRepository) get(ctx context.Context, query string, arg interface{}) (*models.AcademicYear, error) {
	var year models.AcademicYear
	if err := r.db.GetContext(ctx, &year, query, arg); err != nil {
		return nil, err
	}
	return &year, nil
}
