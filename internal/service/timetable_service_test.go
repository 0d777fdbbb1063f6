package service

import (
	"context"
	"encoding/json"
	"errors"
	"math/rand"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/jobs"
)

type memoryCache struct {
	entries     map[string][]byte
	invalidated []string
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (m *memoryCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	raw, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (m *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCache) Invalidate(ctx context.Context, pattern string) error {
	m.invalidated = append(m.invalidated, pattern)
	delete(m.entries, pattern)
	return nil
}

type recordingQueue struct {
	jobs []jobs.Job
	err  error
}

func (q *recordingQueue) Enqueue(job jobs.Job) error {
	if q.err != nil {
		return q.err
	}
	q.jobs = append(q.jobs, job)
	return nil
}

type failingCache struct {
	memoryCache
	failures int
}

func (f *failingCache) Invalidate(ctx context.Context, pattern string) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("redis unavailable")
	}
	return f.memoryCache.Invalidate(ctx, pattern)
}

func bulk(items ...dto.SlotChangeRequest) dto.BulkUpdateTimetableRequest {
	if items == nil {
		items = []dto.SlotChangeRequest{}
	}
	return dto.BulkUpdateTimetableRequest{Items: items}
}

func TestTimetableServiceAssignThenRead(t *testing.T) {
	f := newTimetableFixture()
	ctx := context.Background()

	result, err := f.service.BulkUpdate(ctx, "10a", bulk(assign("mon-p1", "math", "t1")), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, result.Errors)

	view, cached, err := f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, "10A", view.ClassSection.Name)
	assert.Equal(t, "y2024", view.AcademicYear.ID)
	require.Len(t, view.Entries, 1)
	entry := view.Entries[0]
	assert.Equal(t, "mon-p1", entry.SlotID)
	assert.Equal(t, "t1", entry.TeacherID)
	assert.Equal(t, "Budi", entry.TeacherName)
	assert.Equal(t, "math", entry.SubjectID)
	assert.Equal(t, "Mathematics", entry.SubjectName)
}

func TestTimetableServiceReadOrdersByDayThenStart(t *testing.T) {
	f := newTimetableFixture()
	ctx := context.Background()

	_, err := f.service.BulkUpdate(ctx, "10a", bulk(
		assign("wed-p1", "math", "t1"),
		assign("mon-p2", "math", "t1"),
		assign("tue-p1", "physics", "t1"),
		assign("mon-p1", "math", "t2"),
	), "admin-1")
	require.NoError(t, err)

	view, _, err := f.service.Get(ctx, "10a", "y2024")
	require.NoError(t, err)
	var slots []string
	for _, e := range view.Entries {
		slots = append(slots, e.SlotID)
	}
	assert.Equal(t, []string{"mon-p1", "mon-p2", "tue-p1", "wed-p1"}, slots)
}

func TestTimetableServiceReadOrdersSingleDigitHours(t *testing.T) {
	f := newTimetableFixture()
	f.slots.slots["mon-p4"] = models.TimeSlot{ID: "mon-p4", Name: "Period 4", DayOfWeek: models.Monday, StartTime: "10:00", EndTime: "10:45"}
	f.slots.slots["mon-p3"] = models.TimeSlot{ID: "mon-p3", Name: "Period 3", DayOfWeek: models.Monday, StartTime: "9:00", EndTime: "9:45"}
	ctx := context.Background()

	_, err := f.service.BulkUpdate(ctx, "10a", bulk(
		assign("mon-p4", "math", "t1"),
		assign("mon-p3", "math", "t1"),
		assign("mon-p1", "math", "t1"),
	), "admin-1")
	require.NoError(t, err)

	view, _, err := f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	var slots []string
	for _, e := range view.Entries {
		slots = append(slots, e.SlotID)
	}
	assert.Equal(t, []string{"mon-p1", "mon-p3", "mon-p4"}, slots)
}

func TestTimetableServiceEmptyTimetableHasNoPlaceholders(t *testing.T) {
	f := newTimetableFixture()

	view, _, err := f.service.Get(context.Background(), "10b", "")
	require.NoError(t, err)
	assert.NotNil(t, view.Entries)
	assert.Empty(t, view.Entries)
}

func TestTimetableServiceUnknownSectionIsBatchFatal(t *testing.T) {
	f := newTimetableFixture()

	_, err := f.service.BulkUpdate(context.Background(), "12z", bulk(assign("mon-p1", "math", "t1")), "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrClassSectionAbsent))
	assert.Equal(t, 0, f.store.count())

	_, _, err = f.service.Get(context.Background(), "12z", "")
	assert.True(t, errors.Is(err, appErrors.ErrClassSectionAbsent))
}

func TestTimetableServiceNoActiveYearIsBatchFatal(t *testing.T) {
	f := newTimetableFixture()
	f.service.years = stubYears{err: appErrors.ErrNoActiveYear}

	_, err := f.service.BulkUpdate(context.Background(), "10a", bulk(assign("mon-p1", "math", "t1")), "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrNoActiveYear))
	assert.Equal(t, 0, f.store.count())

	_, _, err = f.service.Get(context.Background(), "10a", "")
	assert.True(t, errors.Is(err, appErrors.ErrNoActiveYear))
}

func TestTimetableServiceRejectsOversizedBatch(t *testing.T) {
	f := newTimetableFixture()
	items := make([]dto.SlotChangeRequest, 11)
	for i := range items {
		items[i] = clearSlot("mon-p1")
	}

	_, err := f.service.BulkUpdate(context.Background(), "10a", bulk(items...), "admin-1")
	require.Error(t, err)
	assert.True(t, errors.Is(err, appErrors.ErrValidation))
}

func TestTimetableServiceRequiresItems(t *testing.T) {
	f := newTimetableFixture()

	_, err := f.service.BulkUpdate(context.Background(), "10a", dto.BulkUpdateTimetableRequest{}, "admin-1")
	assert.True(t, errors.Is(err, appErrors.ErrValidation))

	result, err := f.service.BulkUpdate(context.Background(), "10a", bulk(), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied())
	assert.Empty(t, result.Errors)
}

func TestTimetableServiceAllItemsFailingStillReturnsResult(t *testing.T) {
	f := newTimetableFixture()

	result, err := f.service.BulkUpdate(context.Background(), "10a", bulk(assign("nope", "math", "t1"), assign("mon-p1", "chem", "t1")), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 0, result.Applied())
	assert.Len(t, result.Errors, 2)
}

func TestTimetableServiceCachesAndInvalidates(t *testing.T) {
	f := newTimetableFixture()
	cache := newMemoryCache()
	f.service.cache = cache
	ctx := context.Background()

	_, err := f.service.BulkUpdate(ctx, "10a", bulk(assign("mon-p1", "math", "t1")), "admin-1")
	require.NoError(t, err)

	_, cached, err := f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.False(t, cached)

	view, cached, err := f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.True(t, cached)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, 1, f.store.listCalls)

	_, err = f.service.BulkUpdate(ctx, "10a", bulk(clearSlot("mon-p1")), "admin-1")
	require.NoError(t, err)
	assert.Contains(t, cache.invalidated, "timetable:section:10a:year:y2024")
	assert.Contains(t, cache.invalidated, "timetable:institution:year:y2024")

	view, cached, err = f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Empty(t, view.Entries)
}

func TestTimetableServiceSkipsInvalidationWhenNothingApplied(t *testing.T) {
	f := newTimetableFixture()
	cache := newMemoryCache()
	f.service.cache = cache

	_, err := f.service.BulkUpdate(context.Background(), "10a", bulk(clearSlot("mon-p1")), "admin-1")
	require.NoError(t, err)
	assert.Empty(t, cache.invalidated)
}

func TestTimetableServiceInstitutionView(t *testing.T) {
	f := newTimetableFixture()
	ctx := context.Background()
	_, err := f.service.BulkUpdate(ctx, "10a", bulk(assign("tue-p1", "math", "t1"), assign("mon-p1", "math", "t2")), "admin-1")
	require.NoError(t, err)

	view, cached, err := f.service.GetInstitution(ctx, "")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, view.Sections, 2)
	assert.Equal(t, "10A", view.Sections[0].ClassSection.Name)
	require.Len(t, view.Sections[0].Entries, 2)
	assert.Equal(t, "mon-p1", view.Sections[0].Entries[0].SlotID)
	assert.Equal(t, "10B", view.Sections[1].ClassSection.Name)
	assert.NotNil(t, view.Sections[1].Entries)
	assert.Empty(t, view.Sections[1].Entries)
}

func TestTimetableServiceInstitutionViewLoadFailure(t *testing.T) {
	f := newTimetableFixture()
	f.store.listErr = errors.New("db down")

	_, _, err := f.service.GetInstitution(context.Background(), "")
	assert.True(t, errors.Is(err, appErrors.ErrInternal))
}

// Random batches against two sections must never break uniqueness, double-booking
// or capability, whatever mix of items is submitted.
func TestTimetableServiceInvariantsHoldUnderRandomBatches(t *testing.T) {
	f := newTimetableFixture()
	ctx := context.Background()
	rng := rand.New(rand.NewSource(42))

	slots := []string{"mon-p1", "mon-p2", "tue-p1", "wed-p1", "missing"}
	teachers := []string{"t1", "t2", "t3"}
	subjects := []string{"math", "physics", "chem"}
	sections := []string{"10a", "10b"}

	for round := 0; round < 50; round++ {
		items := make([]dto.SlotChangeRequest, 0, 6)
		for i := 0; i < 6; i++ {
			slot := slots[rng.Intn(len(slots))]
			if rng.Intn(4) == 0 {
				items = append(items, clearSlot(slot))
				continue
			}
			items = append(items, assign(slot, subjects[rng.Intn(len(subjects))], teachers[rng.Intn(len(teachers))]))
		}
		section := sections[rng.Intn(len(sections))]

		result, err := f.service.BulkUpdate(ctx, section, bulk(items...), "admin-1")
		require.NoError(t, err)
		assert.LessOrEqual(t, result.Applied()+len(result.Errors), len(items))

		cells := map[string]bool{}
		bookings := map[string]string{}
		for _, row := range f.store.rows {
			cell := strings.Join([]string{row.ClassSectionID, row.SlotID, row.AcademicYearID}, "|")
			require.False(t, cells[cell], "duplicate cell %s", cell)
			cells[cell] = true

			booking := strings.Join([]string{row.TeacherID, row.SlotID, row.AcademicYearID}, "|")
			if other, ok := bookings[booking]; ok {
				require.Equal(t, other, row.ClassSectionID, "teacher double-booked: %s", booking)
			}
			bookings[booking] = row.ClassSectionID

			require.True(t, f.registry.pairs[[2]string{row.TeacherID, row.SubjectID}])
		}
	}
}

func TestTimetableServiceReadAfterWriteBypassesStaleCache(t *testing.T) {
	f := newTimetableFixture()
	cache := newMemoryCache()
	queue := &recordingQueue{}
	f.service.cache = cache
	f.service.UseInvalidationQueue(queue)
	ctx := context.Background()

	view, cached, err := f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Empty(t, view.Entries)

	_, err = f.service.BulkUpdate(ctx, "10a", bulk(assign("mon-p1", "math", "t1")), "admin-1")
	require.NoError(t, err)
	assert.Empty(t, queue.jobs)

	view, cached, err = f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, "mon-p1", view.Entries[0].SlotID)
}

func TestTimetableServiceSkipsCacheFillRacingAWrite(t *testing.T) {
	f := newTimetableFixture()
	cache := newMemoryCache()
	f.service.cache = cache
	ctx := context.Background()

	f.store.afterList = func() {
		_, err := f.service.BulkUpdate(ctx, "10a", bulk(assign("mon-p1", "math", "t1")), "admin-1")
		require.NoError(t, err)
	}

	view, cached, err := f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Empty(t, view.Entries)
	assert.NotContains(t, cache.entries, "timetable:section:10a:year:y2024")

	view, cached, err = f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, view.Entries, 1)
	assert.Equal(t, 1, f.store.count())

	_, cached, err = f.service.Get(ctx, "10a", "")
	require.NoError(t, err)
	assert.True(t, cached)
}

func TestTimetableServiceSkipsInstitutionFillRacingAWrite(t *testing.T) {
	f := newTimetableFixture()
	cache := newMemoryCache()
	f.service.cache = cache
	ctx := context.Background()

	f.store.afterList = func() {
		_, err := f.service.BulkUpdate(ctx, "10b", bulk(assign("tue-p1", "chem", "t3")), "admin-1")
		assert.NoError(t, err)
	}

	_, _, err := f.service.GetInstitution(ctx, "")
	require.NoError(t, err)
	assert.NotContains(t, cache.entries, "timetable:institution:year:y2024")

	view, cached, err := f.service.GetInstitution(ctx, "")
	require.NoError(t, err)
	assert.False(t, cached)
	require.Len(t, view.Sections, 2)
	require.Len(t, view.Sections[1].Entries, 1)
	assert.Equal(t, "tue-p1", view.Sections[1].Entries[0].SlotID)
}

func TestTimetableServiceQueuesFailedInvalidationForRetry(t *testing.T) {
	f := newTimetableFixture()
	cache := &failingCache{memoryCache: *newMemoryCache(), failures: 1}
	queue := &recordingQueue{}
	f.service.cache = cache
	f.service.UseInvalidationQueue(queue)

	_, err := f.service.BulkUpdate(context.Background(), "10a", bulk(assign("mon-p1", "math", "t1")), "admin-1")
	require.NoError(t, err)

	assert.Equal(t, []string{"timetable:institution:year:y2024"}, cache.invalidated)
	require.Len(t, queue.jobs, 1)
	job := queue.jobs[0]
	assert.Equal(t, JobKindCacheInvalidation, job.Kind)
	assert.Equal(t, []string{"timetable:section:10a:year:y2024"}, job.Keys)

	require.NoError(t, f.service.HandleInvalidation(context.Background(), job))
	assert.Contains(t, cache.invalidated, "timetable:section:10a:year:y2024")
}

func TestTimetableServiceRejectedRetryIsNotFatal(t *testing.T) {
	f := newTimetableFixture()
	cache := &failingCache{memoryCache: *newMemoryCache(), failures: 2}
	f.service.cache = cache
	f.service.UseInvalidationQueue(&recordingQueue{err: errors.New("queue is full")})

	result, err := f.service.BulkUpdate(context.Background(), "10a", bulk(assign("mon-p1", "math", "t1")), "admin-1")
	require.NoError(t, err)
	assert.Equal(t, 1, result.Created)
	assert.Empty(t, cache.invalidated)
}

func TestHandleInvalidationReportsFailedKeys(t *testing.T) {
	f := newTimetableFixture()
	cache := &failingCache{memoryCache: *newMemoryCache(), failures: 1}
	f.service.cache = cache

	job := jobs.Job{Kind: JobKindCacheInvalidation, Keys: []string{"a", "b"}}
	err := f.service.HandleInvalidation(context.Background(), job)
	require.Error(t, err)
	assert.ErrorIs(t, err, appErrors.ErrUnavailable)
	assert.Contains(t, err.Error(), "[a]")
	assert.Equal(t, []string{"b"}, cache.invalidated)

	require.NoError(t, f.service.HandleInvalidation(context.Background(), job))
}
