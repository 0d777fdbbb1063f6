package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// TimeSlotRepository reads the time-slot catalog.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository creates a new time slot repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// Times are rendered zero padded so they also order correctly as strings.
const slotSelect = `SELECT ts.id, ts.name, ts.day_of_week, to_char(ts.start_time, 'HH24:MI') AS start_time,
       to_char(ts.end_time, 'HH24:MI') AS end_time, ts.is_break
FROM time_slots ts`

// FindByID loads a slot by id. It returns sql.ErrNoRows when the slot does not exist.
func (r *TimeSlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	const query = slotSelect + ` WHERE ts.id = $1`
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, query, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// List returns the whole catalog ordered by day and start time.
func (r *TimeSlotRepository) List(ctx context.Context) ([]models.TimeSlot, error) {
	const query = slotSelect + ` ORDER BY ts.day_of_week ASC, ts.start_time ASC`
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}
