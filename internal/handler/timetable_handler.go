package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	"github.com/noah-isme/sma-timetable-api/internal/middleware"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/response"
)

type timetableService interface {
	Get(ctx context.Context, classSectionID, yearID string) (*dto.TimetableView, bool, error)
	GetInstitution(ctx context.Context, yearID string) (*dto.InstitutionTimetableView, bool, error)
	BulkUpdate(ctx context.Context, classSectionID string, req dto.BulkUpdateTimetableRequest, actorID string) (*dto.BulkResult, error)
}

type timetableExporter interface {
	Export(ctx context.Context, classSectionID, yearID string, format dto.TimetableExportFormat) (*dto.TimetableExport, error)
}

// TimetableHandler serves class section timetables.
type TimetableHandler struct {
	service  timetableService
	exporter timetableExporter
}

// NewTimetableHandler constructs a TimetableHandler.
func NewTimetableHandler(svc timetableService, exporter timetableExporter) *TimetableHandler {
	return &TimetableHandler{service: svc, exporter: exporter}
}

// Get godoc
// @Summary Get class section timetable
// @Description Occupied slots only, ordered by day and start time. Defaults to the current academic year.
// @Tags Timetable
// @Produce json
// @Param id path string true "Class section ID"
// @Param yearId query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /class-sections/{id}/timetable [get]
func (h *TimetableHandler) Get(c *gin.Context) {
	view, hit, err := h.service.Get(c.Request.Context(), c.Param("id"), yearQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, middleware.ExtractMeta(c))
}

// BulkUpdate godoc
// @Summary Bulk update class section timetable
// @Description Each item is validated and applied on its own. Returns 200 when every item applied, 207 when some failed and 422 when all failed; the body is the same result in every case.
// @Tags Timetable
// @Accept json
// @Produce json
// @Param id path string true "Class section ID"
// @Param payload body dto.BulkUpdateTimetableRequest true "Slot changes"
// @Success 200 {object} response.Envelope
// @Success 207 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /class-sections/{id}/timetable [put]
func (h *TimetableHandler) BulkUpdate(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req dto.BulkUpdateTimetableRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	if req.AcademicYearID == "" {
		req.AcademicYearID = yearQuery(c)
	}

	result, err := h.service.BulkUpdate(c.Request.Context(), c.Param("id"), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, bulkStatus(result), result)
}

func bulkStatus(result *dto.BulkResult) int {
	switch {
	case !result.PartiallyApplied():
		return http.StatusOK
	case result.Applied() == 0:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusMultiStatus
	}
}

// Export godoc
// @Summary Export class section timetable
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param id path string true "Class section ID"
// @Param yearId query string false "Academic year ID"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /class-sections/{id}/timetable/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	format := dto.TimetableExportFormat(c.DefaultQuery("format", string(dto.ExportFormatCSV)))
	out, err := h.exporter.Export(c.Request.Context(), c.Param("id"), yearQuery(c), format)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.File(c, out.Filename, out.ContentType, out.Content)
}

// Institution godoc
// @Summary Institution-wide timetable
// @Description Every class section's timetable for an academic year, for reporting.
// @Tags Timetable
// @Produce json
// @Param yearId query string false "Academic year ID"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) Institution(c *gin.Context) {
	view, hit, err := h.service.GetInstitution(c.Request.Context(), yearQuery(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, view, middleware.ExtractMeta(c))
}
