package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type academicYearReader interface {
	FindByID(ctx context.Context, id string) (*models.AcademicYear, error)
	FindContaining(ctx context.Context, day time.Time) (*models.AcademicYear, error)
	FindLatestStarted(ctx context.Context, day time.Time) (*models.AcademicYear, error)
}

// AcademicYearService resolves the academic year a timetable request targets.
type AcademicYearService struct {
	repo   academicYearReader
	logger *zap.Logger
	now    func() time.Time
}

// NewAcademicYearService constructs the service.
func NewAcademicYearService(repo academicYearReader, logger *zap.Logger) *AcademicYearService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AcademicYearService{repo: repo, logger: logger, now: time.Now}
}

// Resolve loads yearID when given. Otherwise it returns the year containing today,
// falling back to the most recently started one.
func (s *AcademicYearService) Resolve(ctx context.Context, yearID string) (*models.AcademicYear, error) {
	if yearID != "" {
		year, err := s.repo.FindByID(ctx, yearID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("academic year %s not found", yearID))
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load academic year")
		}
		return year, nil
	}

	today := s.now().UTC()
	year, err := s.repo.FindContaining(ctx, today)
	if err == nil {
		return year, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve academic year")
	}

	year, err = s.repo.FindLatestStarted(ctx, today)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrNoActiveYear
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve academic year")
	}
	s.logger.Debug("no academic year contains today, using latest started", zap.String("academic_year_id", year.ID))
	return year, nil
}
