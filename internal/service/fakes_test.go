package service

import (
	"context"
	"database/sql"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/models"
)

type dtoItem = dto.SlotChangeRequest

type memorySlots struct {
	slots map[string]models.TimeSlot
	err   error
}

func (m *memorySlots) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	if m.err != nil {
		return nil, m.err
	}
	slot, ok := m.slots[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &slot, nil
}

func (m *memorySlots) List(ctx context.Context) ([]models.TimeSlot, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.TimeSlot, 0, len(m.slots))
	for _, slot := range m.slots {
		out = append(out, slot)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DayOfWeek != out[j].DayOfWeek {
			return out[i].DayOfWeek < out[j].DayOfWeek
		}
		return out[i].StartTime < out[j].StartTime
	})
	return out, nil
}

type memoryRegistry struct {
	pairs map[[2]string]bool
	err   error
}

func (m *memoryRegistry) CanTeach(ctx context.Context, teacherID, subjectID string) (bool, error) {
	if m.err != nil {
		return false, m.err
	}
	return m.pairs[[2]string{teacherID, subjectID}], nil
}

func (m *memoryRegistry) ListByTeacher(ctx context.Context, teacherID string) ([]models.TeacherSubject, error) {
	if m.err != nil {
		return nil, m.err
	}
	var out []models.TeacherSubject
	for pair, ok := range m.pairs {
		if ok && pair[0] == teacherID {
			out = append(out, models.TeacherSubject{TeacherID: pair[0], SubjectID: pair[1]})
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SubjectID < out[j].SubjectID })
	return out, nil
}

type memorySections struct {
	sections map[string]models.ClassSection
	err      error
}

func (m *memorySections) FindByID(ctx context.Context, id string) (*models.ClassSection, error) {
	if m.err != nil {
		return nil, m.err
	}
	section, ok := m.sections[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	return &section, nil
}

func (m *memorySections) List(ctx context.Context) ([]models.ClassSection, error) {
	if m.err != nil {
		return nil, m.err
	}
	out := make([]models.ClassSection, 0, len(m.sections))
	for _, s := range m.sections {
		out = append(out, s)
	}
	return out, nil
}

// memoryAssignments mimics the Postgres store including both unique indexes.
type memoryAssignments struct {
	mu       sync.Mutex
	rows     map[string]models.TimetableAssignment
	slots    *memorySlots
	sections *memorySections
	subjects map[string]string
	teachers map[string]string

	createErr    error
	beforeCreate func(ctx context.Context) error
	afterCreate  func()
	listErr     error
	listCalls   int
	afterList   func()
}

func newMemoryAssignments(slots *memorySlots, sections *memorySections) *memoryAssignments {
	return &memoryAssignments{
		rows:     map[string]models.TimetableAssignment{},
		slots:    slots,
		sections: sections,
		subjects: map[string]string{},
		teachers: map[string]string{},
	}
}

func (m *memoryAssignments) FindOne(ctx context.Context, exec sqlx.ExtContext, classSectionID, slotID, yearID string) (*models.TimetableAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.ClassSectionID == classSectionID && row.SlotID == slotID && row.AcademicYearID == yearID {
			found := row
			return &found, nil
		}
	}
	return nil, nil
}

func (m *memoryAssignments) FindConflict(ctx context.Context, exec sqlx.ExtContext, teacherID, slotID, yearID, excludeClassSectionID string) (*models.AssignmentConflict, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, row := range m.rows {
		if row.TeacherID == teacherID && row.SlotID == slotID && row.AcademicYearID == yearID && row.ClassSectionID != excludeClassSectionID {
			return &models.AssignmentConflict{
				TimetableAssignment: row,
				ClassSectionName:    m.sections.sections[row.ClassSectionID].Name,
			}, nil
		}
	}
	return nil, nil
}

func (m *memoryAssignments) violates(candidate models.TimetableAssignment) error {
	for id, row := range m.rows {
		if id == candidate.ID || row.SlotID != candidate.SlotID || row.AcademicYearID != candidate.AcademicYearID {
			continue
		}
		if row.ClassSectionID == candidate.ClassSectionID {
			return &pq.Error{Code: "23505", Constraint: "uq_timetable_section_slot_year"}
		}
		if row.TeacherID == candidate.TeacherID {
			return &pq.Error{Code: "23505", Constraint: "uq_timetable_teacher_slot_year"}
		}
	}
	return nil
}

func (m *memoryAssignments) Create(ctx context.Context, exec sqlx.ExtContext, assignment *models.TimetableAssignment) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if m.beforeCreate != nil {
		if err := m.beforeCreate(ctx); err != nil {
			return err
		}
	}
	m.mu.Lock()
	if m.createErr != nil {
		m.mu.Unlock()
		return m.createErr
	}
	assignment.ID = uuid.NewString()
	assignment.CreatedAt = time.Now().UTC()
	assignment.UpdatedAt = assignment.CreatedAt
	if err := m.violates(*assignment); err != nil {
		m.mu.Unlock()
		return err
	}
	m.rows[assignment.ID] = *assignment
	hook := m.afterCreate
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return nil
}

func (m *memoryAssignments) Update(ctx context.Context, exec sqlx.ExtContext, assignment *models.TimetableAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[assignment.ID]; !ok {
		return sql.ErrNoRows
	}
	if err := m.violates(*assignment); err != nil {
		return err
	}
	assignment.UpdatedAt = time.Now().UTC()
	m.rows[assignment.ID] = *assignment
	return nil
}

func (m *memoryAssignments) Delete(ctx context.Context, exec sqlx.ExtContext, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.rows[id]; !ok {
		return sql.ErrNoRows
	}
	delete(m.rows, id)
	return nil
}

func (m *memoryAssignments) ListBySection(ctx context.Context, classSectionID, yearID string) ([]models.TimetableEntry, error) {
	return m.list(func(row models.TimetableAssignment) bool {
		return row.ClassSectionID == classSectionID && row.AcademicYearID == yearID
	})
}

func (m *memoryAssignments) ListByYear(ctx context.Context, yearID string) ([]models.TimetableEntry, error) {
	return m.list(func(row models.TimetableAssignment) bool { return row.AcademicYearID == yearID })
}

func (m *memoryAssignments) list(match func(models.TimetableAssignment) bool) ([]models.TimetableEntry, error) {
	out, err := m.snapshot(match)
	m.mu.Lock()
	hook := m.afterList
	m.afterList = nil
	m.mu.Unlock()
	if hook != nil {
		hook()
	}
	return out, err
}

func (m *memoryAssignments) snapshot(match func(models.TimetableAssignment) bool) ([]models.TimetableEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listCalls++
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []models.TimetableEntry
	for _, row := range m.rows {
		if !match(row) {
			continue
		}
		slot := m.slots.slots[row.SlotID]
		out = append(out, models.TimetableEntry{
			AssignmentID:     row.ID,
			ClassSectionID:   row.ClassSectionID,
			ClassSectionName: m.sections.sections[row.ClassSectionID].Name,
			SlotID:           row.SlotID,
			SlotName:         slot.Name,
			DayOfWeek:        slot.DayOfWeek,
			StartTime:        slot.StartTime,
			EndTime:          slot.EndTime,
			IsBreak:          slot.IsBreak,
			SubjectID:        row.SubjectID,
			SubjectName:      m.subjects[row.SubjectID],
			TeacherID:        row.TeacherID,
			TeacherName:      m.teachers[row.TeacherID],
			AssignedByID:     row.AssignedByID,
		})
	}
	// map iteration is random; callers must sort
	sort.Slice(out, func(i, j int) bool { return out[i].AssignmentID < out[j].AssignmentID })
	return out, nil
}

func (m *memoryAssignments) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

type stubYears struct {
	year *models.AcademicYear
	err  error
}

func (s stubYears) Resolve(ctx context.Context, yearID string) (*models.AcademicYear, error) {
	if s.err != nil {
		return nil, s.err
	}
	if yearID != "" && yearID != s.year.ID {
		return nil, sql.ErrNoRows
	}
	return s.year, nil
}

type timetableFixture struct {
	slots    *memorySlots
	registry *memoryRegistry
	sections *memorySections
	store    *memoryAssignments
	checker  *ConflictChecker
	resolver *TimetableResolver
	service  *TimetableService
	year     *models.AcademicYear
	metrics  *MetricsService
}

func newTimetableFixture() *timetableFixture {
	slots := &memorySlots{slots: map[string]models.TimeSlot{
		"mon-p1":    {ID: "mon-p1", Name: "Period 1", DayOfWeek: models.Monday, StartTime: "07:00", EndTime: "07:45"},
		"mon-p2":    {ID: "mon-p2", Name: "Period 2", DayOfWeek: models.Monday, StartTime: "07:45", EndTime: "08:30"},
		"mon-break": {ID: "mon-break", Name: "Break", DayOfWeek: models.Monday, StartTime: "09:15", EndTime: "09:30", IsBreak: true},
		"tue-p1":    {ID: "tue-p1", Name: "Period 1", DayOfWeek: models.Tuesday, StartTime: "07:00", EndTime: "07:45"},
		"wed-p1":    {ID: "wed-p1", Name: "Period 1", DayOfWeek: models.Wednesday, StartTime: "07:00", EndTime: "07:45"},
	}}
	registry := &memoryRegistry{pairs: map[[2]string]bool{
		{"t1", "math"}:    true,
		{"t1", "physics"}: true,
		{"t2", "math"}:    true,
		{"t3", "chem"}:    true,
	}}
	sections := &memorySections{sections: map[string]models.ClassSection{
		"10a": {ID: "10a", Name: "10A"},
		"10b": {ID: "10b", Name: "10B"},
	}}
	store := newMemoryAssignments(slots, sections)
	store.subjects = map[string]string{"math": "Mathematics", "physics": "Physics", "chem": "Chemistry"}
	store.teachers = map[string]string{"t1": "Budi", "t2": "Sari", "t3": "Andi"}

	year := &models.AcademicYear{
		ID:        "y2024",
		Name:      "2024/2025",
		StartDate: time.Date(2024, 7, 15, 0, 0, 0, 0, time.UTC),
		EndDate:   time.Date(2025, 6, 30, 0, 0, 0, 0, time.UTC),
	}

	metrics := NewMetricsService()
	checker := NewConflictChecker(slots, registry, store, nil)
	resolver := NewTimetableResolver(store, checker, nil, metrics, nil, 0)
	svc := NewTimetableService(sections, store, stubYears{year: year}, resolver, nil, metrics, nil, nil, TimetableServiceConfig{MaxBatchItems: 10})

	return &timetableFixture{
		slots:    slots,
		registry: registry,
		sections: sections,
		store:    store,
		checker:  checker,
		resolver: resolver,
		service:  svc,
		year:     year,
		metrics:  metrics,
	}
}

func assign(slotID, subjectID, teacherID string) dtoItem {
	return dtoItem{SlotID: slotID, SubjectID: &subjectID, TeacherID: &teacherID}
}

func clearSlot(slotID string) dtoItem {
	return dtoItem{SlotID: slotID}
}
