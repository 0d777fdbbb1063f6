package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/database"
)

type assignmentStore interface {
	conflictFinder
	FindOne(ctx context.Context, exec sqlx.ExtContext, classSectionID, slotID, yearID string) (*models.TimetableAssignment, error)
	Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.TimetableAssignment) error
	Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.TimetableAssignment) error
	Delete(ctx context.Context, exec sqlx.ExtContext, id string) error
}

type assignmentValidator interface {
	Validate(ctx context.Context, exec sqlx.ExtContext, proposal AssignmentProposal) (*models.TimeSlot, error)
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

// TimetableResolver applies a batch of slot changes for one class section and year.
// Items run in submission order, each in its own transaction when a tx provider is
// configured, so every applied item is visible to the checks of the next one. A
// failing item is reported and skipped; it never aborts the batch.
type TimetableResolver struct {
	store       assignmentStore
	checker     assignmentValidator
	db          txProvider
	metrics     *MetricsService
	logger      *zap.Logger
	itemTimeout time.Duration
}

// NewTimetableResolver constructs a resolver. db may be nil, in which case items
// run directly against the store without a transaction.
func NewTimetableResolver(store assignmentStore, checker assignmentValidator, db txProvider, metrics *MetricsService, logger *zap.Logger, itemTimeout time.Duration) *TimetableResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableResolver{
		store:       store,
		checker:     checker,
		db:          db,
		metrics:     metrics,
		logger:      logger,
		itemTimeout: itemTimeout,
	}
}

// Resolve applies items and returns the aggregated outcome. Once ctx is done the
// remaining items are reported as cancelled; items already committed stay committed.
func (r *TimetableResolver) Resolve(ctx context.Context, classSectionID, yearID string, items []dto.SlotChangeRequest, actorID string) *dto.BulkResult {
	result := dto.NewBulkResult()

	for i, item := range items {
		if err := ctx.Err(); err != nil {
			for j := i; j < len(items); j++ {
				r.reject(result, j, cancelledError(items[j].SlotID, err))
			}
			break
		}

		outcome, err := r.apply(ctx, classSectionID, yearID, item, actorID)
		if err != nil {
			r.reject(result, i, err)
			continue
		}

		switch outcome {
		case OutcomeCreated:
			result.Created++
		case OutcomeUpdated:
			result.Updated++
		case OutcomeDeleted:
			result.Deleted++
		}
		r.metrics.RecordItem(outcome, "")
	}

	return result
}

func (r *TimetableResolver) reject(result *dto.BulkResult, index int, err *models.AssignmentError) {
	r.logger.Debug("slot change rejected",
		zap.Int("index", index),
		zap.String("slot_id", err.SlotID),
		zap.String("reason", string(err.Reason)),
		zap.Bool("conflict", err.IsConflict()),
		zap.Error(err),
	)
	result.AddError(index, err)
	r.metrics.RecordItem(OutcomeRejected, string(err.Reason))
}

func (r *TimetableResolver) apply(ctx context.Context, classSectionID, yearID string, item dto.SlotChangeRequest, actorID string) (string, *models.AssignmentError) {
	change, err := item.Change()
	if err != nil {
		return "", r.classify(ctx, item.SlotID, err)
	}

	if r.itemTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.itemTimeout)
		defer cancel()
	}

	outcome, err := r.inTx(ctx, func(exec sqlx.ExtContext) (string, error) {
		switch c := change.(type) {
		case dto.ClearSlot:
			return r.clear(ctx, exec, classSectionID, yearID, c)
		case dto.AssignSlot:
			return r.assign(ctx, exec, classSectionID, yearID, c, actorID)
		default:
			return "", fmt.Errorf("unsupported slot change %T", change)
		}
	})
	if err != nil {
		return "", r.classify(ctx, item.SlotID, err)
	}
	return outcome, nil
}

func (r *TimetableResolver) inTx(ctx context.Context, fn func(exec sqlx.ExtContext) (string, error)) (string, error) {
	if r.db == nil {
		return fn(nil)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}

	outcome, err := fn(tx)
	if err != nil {
		_ = tx.Rollback()
		return "", err
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transaction: %w", err)
	}
	return outcome, nil
}

func (r *TimetableResolver) clear(ctx context.Context, exec sqlx.ExtContext, classSectionID, yearID string, change dto.ClearSlot) (string, error) {
	existing, err := r.store.FindOne(ctx, exec, classSectionID, change.SlotID, yearID)
	if err != nil {
		return "", err
	}
	if existing == nil {
		return OutcomeNoop, nil
	}
	if err := r.store.Delete(ctx, exec, existing.ID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// removed by a concurrent request
			return OutcomeNoop, nil
		}
		return "", err
	}
	return OutcomeDeleted, nil
}

func (r *TimetableResolver) assign(ctx context.Context, exec sqlx.ExtContext, classSectionID, yearID string, change dto.AssignSlot, actorID string) (string, error) {
	proposal := AssignmentProposal{
		ClassSectionID: classSectionID,
		SlotID:         change.SlotID,
		AcademicYearID: yearID,
		TeacherID:      change.TeacherID,
		SubjectID:      change.SubjectID,
	}
	if _, err := r.checker.Validate(ctx, exec, proposal); err != nil {
		return "", err
	}

	existing, err := r.store.FindOne(ctx, exec, classSectionID, change.SlotID, yearID)
	if err != nil {
		return "", err
	}
	if existing != nil {
		existing.TeacherID = change.TeacherID
		existing.SubjectID = change.SubjectID
		existing.AssignedByID = actorID
		err := r.store.Update(ctx, exec, existing)
		if err == nil {
			return OutcomeUpdated, nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return "", err
		}
	}

	assignment := &models.TimetableAssignment{
		ClassSectionID: classSectionID,
		SlotID:         change.SlotID,
		AcademicYearID: yearID,
		TeacherID:      change.TeacherID,
		SubjectID:      change.SubjectID,
		AssignedByID:   actorID,
	}
	if err := r.store.Create(ctx, exec, assignment); err != nil {
		return "", err
	}
	return OutcomeCreated, nil
}

// classify turns any item failure into the per-item error shape. ctx is the
// item's context: a driver error raised after it ended counts as cancelled.
func (r *TimetableResolver) classify(ctx context.Context, slotID string, err error) *models.AssignmentError {
	var assignmentErr *models.AssignmentError
	if errors.As(err, &assignmentErr) {
		return assignmentErr
	}
	if constraint, ok := database.UniqueViolation(err); ok {
		return &models.AssignmentError{
			Reason:  models.ReasonStoreConflict,
			SlotID:  slotID,
			Message: fmt.Sprintf("slot %s was taken by a concurrent change (%s); reload and retry", slotID, constraint),
			Err:     err,
		}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return cancelledError(slotID, err)
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return cancelledError(slotID, fmt.Errorf("%w: %w", ctxErr, err))
	}

	r.logger.Warn("slot change failed", zap.String("slot_id", slotID), zap.Error(err))
	return &models.AssignmentError{
		Reason:  models.ReasonStoreFailure,
		SlotID:  slotID,
		Message: fmt.Sprintf("slot %s could not be saved; retry the item", slotID),
		Err:     err,
	}
}

func cancelledError(slotID string, err error) *models.AssignmentError {
	return &models.AssignmentError{
		Reason:  models.ReasonCancelled,
		SlotID:  slotID,
		Message: fmt.Sprintf("slot %s was not processed before the request ended", slotID),
		Err:     err,
	}
}
