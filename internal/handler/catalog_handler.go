package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/models"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type catalogService interface {
	TimeSlots(ctx context.Context) ([]models.TimeSlot, error)
	TeacherSubjects(ctx context.Context, teacherID string) ([]models.TeacherSubject, error)
}

// CatalogHandler serves reference data for timetable editors.
type CatalogHandler struct {
	service catalogService
}

// NewCatalogHandler constructs a CatalogHandler.
func NewCatalogHandler(svc catalogService) *CatalogHandler {
	return &CatalogHandler{service: svc}
}

// TimeSlots godoc
// @Summary List time slots
// @Description The weekly slot catalog ordered by day and start time, breaks included.
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /time-slots [get]
func (h *CatalogHandler) TimeSlots(c *gin.Context) {
	slots, err := h.service.TimeSlots(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, slots)
}

// TeacherSubjects godoc
// @Summary List subjects a teacher may teach
// @Tags Catalog
// @Produce json
// @Param id path string true "Teacher ID"
// @Success 200 {object} response.Envelope
// @Router /teachers/{id}/subjects [get]
func (h *CatalogHandler) TeacherSubjects(c *gin.Context) {
	items, err := h.service.TeacherSubjects(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items)
}
