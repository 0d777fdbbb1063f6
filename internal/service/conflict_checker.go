package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type slotCatalog interface {
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
}

type capabilityRegistry interface {
	CanTeach(ctx context.Context, teacherID, subjectID string) (bool, error)
}

type conflictFinder interface {
	FindConflict(ctx context.Context, exec sqlx.ExtContext, teacherID, slotID, yearID, excludeClassSectionID string) (*models.AssignmentConflict, error)
}

// AssignmentProposal is a complete teacher/subject pair proposed for one slot.
type AssignmentProposal struct {
	ClassSectionID string
	SlotID         string
	AcademicYearID string
	TeacherID      string
	SubjectID      string
}

// ConflictChecker validates a proposal against the slot catalog, the capability
// registry and the other class sections' assignments. It does not look at the
// proposed slot's own occupant.
type ConflictChecker struct {
	slots    slotCatalog
	registry capabilityRegistry
	finder   conflictFinder
	logger   *zap.Logger
}

// NewConflictChecker constructs a ConflictChecker.
func NewConflictChecker(slots slotCatalog, registry capabilityRegistry, finder conflictFinder, logger *zap.Logger) *ConflictChecker {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictChecker{slots: slots, registry: registry, finder: finder, logger: logger}
}

// Validate returns the resolved slot when the proposal is acceptable. Rejections
// are *models.AssignmentError; any other error comes from a collaborator.
func (c *ConflictChecker) Validate(ctx context.Context, exec sqlx.ExtContext, p AssignmentProposal) (*models.TimeSlot, error) {
	slot, err := c.slots.FindByID(ctx, p.SlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, &models.AssignmentError{
				Reason:  models.ReasonSlotNotFound,
				SlotID:  p.SlotID,
				Message: fmt.Sprintf("time slot %s not found", p.SlotID),
			}
		}
		return nil, fmt.Errorf("load time slot %s: %w", p.SlotID, err)
	}

	ok, err := c.registry.CanTeach(ctx, p.TeacherID, p.SubjectID)
	if err != nil {
		return nil, fmt.Errorf("check capability of teacher %s: %w", p.TeacherID, err)
	}
	if !ok {
		return nil, &models.AssignmentError{
			Reason:    models.ReasonTeacherNotAuthorized,
			SlotID:    p.SlotID,
			SlotLabel: slot.Label(),
			Message:   fmt.Sprintf("teacher %s is not authorized to teach subject %s", p.TeacherID, p.SubjectID),
		}
	}

	conflict, err := c.finder.FindConflict(ctx, exec, p.TeacherID, p.SlotID, p.AcademicYearID, p.ClassSectionID)
	if err != nil {
		return nil, fmt.Errorf("check teacher conflict: %w", err)
	}
	if conflict != nil {
		c.logger.Debug("teacher already booked",
			zap.String("teacher_id", p.TeacherID),
			zap.String("slot_id", p.SlotID),
			zap.String("conflict_class_section_id", conflict.ClassSectionID),
		)
		return nil, &models.AssignmentError{
			Reason:               models.ReasonTeacherConflict,
			SlotID:               p.SlotID,
			ConflictClassSection: conflict.ClassSectionName,
			SlotLabel:            slot.Label(),
			Message: fmt.Sprintf("teacher %s already teaches class %s at %s",
				p.TeacherID, conflict.ClassSectionName, slot.Label()),
		}
	}

	return slot, nil
}
