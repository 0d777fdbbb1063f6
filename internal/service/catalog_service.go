package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type slotLister interface {
	List(ctx context.Context) ([]models.TimeSlot, error)
}

type capabilityLister interface {
	ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherSubject, error)
}

// CatalogService serves the read-only reference data a timetable editor needs.
type CatalogService struct {
	slots        slotLister
	capabilities capabilityLister
	logger       *zap.Logger
}

// NewCatalogService constructs a CatalogService.
func NewCatalogService(slots slotLister, capabilities capabilityLister, logger *zap.Logger) *CatalogService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CatalogService{slots: slots, capabilities: capabilities, logger: logger}
}

// TimeSlots returns the whole week's slots ordered by day and start time, breaks included.
func (s *CatalogService) TimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	slots, err := s.slots.List(ctx)
	if err != nil {
		s.logger.Error("failed to list time slots", zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	if slots == nil {
		slots = []models.TimeSlot{}
	}
	return slots, nil
}

// TeacherSubjects lists the subjects a teacher may be assigned to.
func (s *CatalogService) TeacherSubjects(ctx context.Context, teacherID string) ([]models.TeacherSubject, error) {
	if teacherID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "teacher id is required")
	}
	items, err := s.capabilities.ListByTeacher(ctx, teacherID)
	if err != nil {
		s.logger.Error("failed to list teacher subjects", zap.String("teacher_id", teacherID), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list teacher subjects")
	}
	if items == nil {
		items = []models.TeacherSubject{}
	}
	return items, nil
}
