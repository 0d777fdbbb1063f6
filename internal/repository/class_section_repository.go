package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// ClassSectionRepository reads class sections.
type ClassSectionRepository struct {
	db *sqlx.DB
}

// NewClassSectionRepository builds repository.
func NewClassSectionRepository(db *sqlx.DB) *ClassSectionRepository {
	return &ClassSectionRepository{db: db}
}

// FindByID loads a class section. It returns sql.ErrNoRows when absent.
func (r *ClassSectionRepository) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	const query = `SELECT id, name, parent_class_id FROM class_sections WHERE id = $1`
	var section models.ClassSection
	if err := r.db.GetContext(ctx, &section, query, id); err != nil {
		return nil, err
	}
	return &section, nil
}

// List returns every class section ordered by name.
func (r *ClassSectionRepository) List(ctx context.Context) ([]models.ClassSection, error) {
	const query = `SELECT id, name, parent_class_id FROM class_sections ORDER BY name ASC`
	var sections []models.ClassSection
	if err := r.db.SelectContext(ctx, &sections, query); err != nil {
		return nil, fmt.Errorf("list class sections: %w", err)
	}
	return sections, nil
}
