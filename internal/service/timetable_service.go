package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type classSectionReader interface {
	FindByID(ctx context.Context, id string) (*models.ClassSection, error)
	List(ctx context.Context) ([]models.ClassSection, error)
}

type timetableEntryReader interface {
	ListBySection(ctx context.Context, classSectionID, yearID string) ([]models.TimetableEntry, error)
	ListByYear(ctx context.Context, yearID string) ([]models.TimetableEntry, error)
}

type academicYearResolver interface {
	Resolve(ctx context.Context, yearID string) (*models.AcademicYear, error)
}

type bulkResolver interface {
	Resolve(ctx context.Context, classSectionID, yearID string, items []dto.SlotChangeRequest, actorID string) *dto.BulkResult
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

type invalidationQueue interface {
	Enqueue(job jobs.Job) error
}

// JobKindCacheInvalidation marks jobs that drop cached timetable views.
const JobKindCacheInvalidation = "timetable_cache_invalidation"

// TimetableServiceConfig tunes read caching and batch limits.
type TimetableServiceConfig struct {
	CacheTTL      time.Duration
	MaxBatchItems int
}

// TimetableService exposes timetable reads and bulk updates for class sections.
type TimetableService struct {
	sections  classSectionReader
	entries   timetableEntryReader
	years     academicYearResolver
	resolver  bulkResolver
	cache     timetableCache
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	config    TimetableServiceConfig
	queue     invalidationQueue

	// generations counts invalidations per cache key. A fill is only written
	// when the key's generation is unchanged since the load started.
	fillMu      sync.Mutex
	generations map[string]uint64
}

// NewTimetableService constructs a TimetableService. cache may be nil.
func NewTimetableService(
	sections classSectionReader,
	entries timetableEntryReader,
	years academicYearResolver,
	resolver bulkResolver,
	cache timetableCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MaxBatchItems <= 0 {
		cfg.MaxBatchItems = 100
	}
	return &TimetableService{
		sections:  sections,
		entries:   entries,
		years:     years,
		resolver:  resolver,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		config:    cfg,

		generations: make(map[string]uint64),
	}
}

func sectionCacheKey(classSectionID, yearID string) string {
	return fmt.Sprintf("timetable:section:%s:year:%s", classSectionID, yearID)
}

func institutionCacheKey(yearID string) string {
	return fmt.Sprintf("timetable:institution:year:%s", yearID)
}

// Get returns the occupied slots of a class section ordered by day and start time.
// The boolean reports whether the view came from cache.
func (s *TimetableService) Get(ctx context.Context, classSectionID, yearID string) (*dto.TimetableView, bool, error) {
	section, err := s.loadSection(ctx, classSectionID)
	if err != nil {
		return nil, false, err
	}
	year, err := s.years.Resolve(ctx, yearID)
	if err != nil {
		return nil, false, err
	}

	key := sectionCacheKey(section.ID, year.ID)
	var cached dto.TimetableView
	if hit := s.cacheGet(ctx, key, &cached); hit {
		return &cached, true, nil
	}

	gen := s.generation(key)
	start := time.Now()
	entries, err := s.entries.ListBySection(ctx, section.ID, year.ID)
	s.metrics.ObserveDBQuery("timetable_list_by_section", time.Since(start))
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable")
	}

	view := &dto.TimetableView{
		ClassSection: *section,
		AcademicYear: *year,
		Entries:      sortEntries(entries),
	}
	s.cacheSet(ctx, key, view, gen)
	return view, false, nil
}

// BulkUpdate applies slot changes to one class section. Unknown sections and
// unresolvable years fail the whole call; every other failure is reported per item.
func (s *TimetableService) BulkUpdate(ctx context.Context, classSectionID string, req dto.BulkUpdateTimetableRequest, actorID string) (*dto.BulkResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable payload")
	}
	if len(req.Items) > s.config.MaxBatchItems {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d items can be submitted at once", s.config.MaxBatchItems))
	}

	section, err := s.loadSection(ctx, classSectionID)
	if err != nil {
		return nil, err
	}
	year, err := s.years.Resolve(ctx, req.AcademicYearID)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	result := s.resolver.Resolve(ctx, section.ID, year.ID, req.Items, actorID)
	elapsed := time.Since(start)
	s.metrics.ObserveBatch(elapsed)

	if result.Applied() > 0 {
		s.invalidate(section.ID, year.ID)
	}

	s.logger.Info("timetable bulk update",
		zap.String("class_section_id", section.ID),
		zap.String("academic_year_id", year.ID),
		zap.String("actor_id", actorID),
		zap.Int("items", len(req.Items)),
		zap.Stringer("result", result),
		zap.Duration("elapsed", elapsed),
	)
	return result, nil
}

// GetInstitution returns every class section's timetable for a year, sections in name order.
func (s *TimetableService) GetInstitution(ctx context.Context, yearID string) (*dto.InstitutionTimetableView, bool, error) {
	year, err := s.years.Resolve(ctx, yearID)
	if err != nil {
		return nil, false, err
	}

	key := institutionCacheKey(year.ID)
	var cached dto.InstitutionTimetableView
	if hit := s.cacheGet(ctx, key, &cached); hit {
		return &cached, true, nil
	}
	gen := s.generation(key)

	var (
		sections []models.ClassSection
		entries  []models.TimetableEntry
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		sections, err = s.sections.List(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		start := time.Now()
		entries, err = s.entries.ListByYear(gctx, year.ID)
		s.metrics.ObserveDBQuery("timetable_list_by_year", time.Since(start))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load institution timetable")
	}

	bySection := make(map[string][]models.TimetableEntry, len(sections))
	for _, entry := range entries {
		bySection[entry.ClassSectionID] = append(bySection[entry.ClassSectionID], entry)
	}

	sort.SliceStable(sections, func(i, j int) bool { return sections[i].Name < sections[j].Name })
	view := &dto.InstitutionTimetableView{AcademicYear: *year, Sections: make([]dto.SectionTimetable, 0, len(sections))}
	for _, section := range sections {
		view.Sections = append(view.Sections, dto.SectionTimetable{
			ClassSection: section,
			Entries:      sortEntries(bySection[section.ID]),
		})
	}

	s.cacheSet(ctx, key, view, gen)
	return view, false, nil
}

func (s *TimetableService) loadSection(ctx context.Context, id string) (*models.ClassSection, error) {
	section, err := s.sections.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrClassSectionAbsent, fmt.Sprintf("class section %s not found", id))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class section")
	}
	return section, nil
}

func (s *TimetableService) cacheGet(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.logger.Debug("timetable cache read failed", zap.String("key", key), zap.Error(err))
		return false
	}
	return hit
}

func (s *TimetableService) generation(key string) uint64 {
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	return s.generations[key]
}

// cacheSet stores a freshly loaded view unless a write invalidated key after
// the load began. The lock spans the check and the write so an invalidation
// either lands first and is seen here, or deletes what was written.
func (s *TimetableService) cacheSet(ctx context.Context, key string, value interface{}, gen uint64) {
	if s.cache == nil {
		return
	}
	s.fillMu.Lock()
	defer s.fillMu.Unlock()
	if s.generations[key] != gen {
		s.logger.Debug("skipping stale timetable cache fill", zap.String("key", key))
		return
	}
	if err := s.cache.Set(ctx, key, value, s.config.CacheTTL); err != nil {
		s.logger.Debug("timetable cache write failed", zap.String("key", key), zap.Error(err))
	}
}

// UseInvalidationQueue hands failed cache deletes to a background queue for
// retry. Without a queue a failed delete is only logged.
func (s *TimetableService) UseInvalidationQueue(queue invalidationQueue) {
	s.queue = queue
}

// HandleInvalidation is the queue handler for JobKindCacheInvalidation jobs.
func (s *TimetableService) HandleInvalidation(ctx context.Context, job jobs.Job) error {
	if s.cache == nil {
		return nil
	}
	var failed []string
	for _, key := range job.Keys {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			failed = append(failed, key)
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("invalidate %v: %w", failed, appErrors.ErrUnavailable)
	}
	return nil
}

// invalidate drops cached views touched by a committed write before the
// update returns, so the next read goes to the store. It uses its own context
// because the request may already be cancelled.
func (s *TimetableService) invalidate(classSectionID, yearID string) {
	if s.cache == nil {
		return
	}
	keys := []string{sectionCacheKey(classSectionID, yearID), institutionCacheKey(yearID)}

	s.fillMu.Lock()
	if s.generations == nil {
		s.generations = make(map[string]uint64)
	}
	for _, key := range keys {
		s.generations[key]++
	}
	s.fillMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	var failed []string
	for _, key := range keys {
		if err := s.cache.Invalidate(ctx, key); err != nil {
			s.logger.Warn("timetable cache invalidation failed", zap.String("key", key), zap.Error(err))
			failed = append(failed, key)
		}
	}
	if len(failed) == 0 || s.queue == nil {
		return
	}

	job := jobs.Job{ID: classSectionID + ":" + yearID, Kind: JobKindCacheInvalidation, Keys: failed}
	if err := s.queue.Enqueue(job); err != nil {
		s.logger.Error("cache invalidation retry not queued", zap.Strings("keys", failed), zap.Error(err))
	}
}

func sortEntries(entries []models.TimetableEntry) []models.TimetableEntry {
	if entries == nil {
		return []models.TimetableEntry{}
	}
	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Before(entries[j]) })
	return entries
}
