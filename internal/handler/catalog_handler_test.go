package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
)

type catalogServiceMock struct {
	slots       []models.TimeSlot
	subjects    []models.TeacherSubject
	err         error
	lastTeacher string
}

func (m *catalogServiceMock) TimeSlots(ctx context.Context) ([]models.TimeSlot, error) {
	return m.slots, m.err
}

func (m *catalogServiceMock) TeacherSubjects(ctx context.Context, teacherID string) ([]models.TeacherSubject, error) {
	m.lastTeacher = teacherID
	return m.subjects, m.err
}

func TestCatalogHandlerTimeSlots(t *testing.T) {
	h := NewCatalogHandler(&catalogServiceMock{slots: []models.TimeSlot{
		{ID: "mon-p1", Name: "Period 1", DayOfWeek: models.Monday, StartTime: "07:00", EndTime: "07:45"},
	}})
	c, w := newContext(http.MethodGet, "/time-slots", "")

	h.TimeSlots(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"id":"mon-p1"`)
	assert.Contains(t, w.Body.String(), `"day_of_week":1`)
}

func TestCatalogHandlerTeacherSubjects(t *testing.T) {
	svc := &catalogServiceMock{subjects: []models.TeacherSubject{{TeacherID: "t1", SubjectID: "math"}}}
	h := NewCatalogHandler(svc)
	c, w := newContext(http.MethodGet, "/teachers/t1/subjects", "")
	c.Params = gin.Params{{Key: "id", Value: "t1"}}

	h.TeacherSubjects(c)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "t1", svc.lastTeacher)
	assert.Contains(t, w.Body.String(), `"subject_id":"math"`)
}

func TestCatalogHandlerError(t *testing.T) {
	h := NewCatalogHandler(&catalogServiceMock{err: appErrors.ErrInternal})
	c, w := newContext(http.MethodGet, "/time-slots", "")

	h.TimeSlots(c)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
}
