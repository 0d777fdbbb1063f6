package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/sma-timetable-api/internal/dto"
	appErrors "github.com/noah-isme/sma-timetable-api/pkg/errors"
	"github.com/noah-isme/sma-timetable-api/pkg/export"
)

type timetableViewer interface {
	Get(ctx context.Context, classSectionID, yearID string) (*dto.TimetableView, bool, error)
}

type csvRenderer interface {
	Render(data export.Dataset) ([]byte, error)
}

type pdfRenderer interface {
	Render(data export.Dataset, title, subtitle string) ([]byte, error)
}

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

var exportHeaders = []string{"Day", "Start", "End", "Slot", "Subject", "Teacher"}

// ExportService renders class section timetables as downloadable documents.
type ExportService struct {
	timetables timetableViewer
	csv        csvRenderer
	pdf        pdfRenderer
	logger     *zap.Logger
}

// NewExportService constructs an ExportService. Nil renderers fall back to the defaults.
func NewExportService(timetables timetableViewer, logger *zap.Logger, csv csvRenderer, pdf pdfRenderer) *ExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if csv == nil {
		csv = export.NewCSVExporter()
	}
	if pdf == nil {
		pdf = export.NewPDFExporter()
	}
	return &ExportService{timetables: timetables, csv: csv, pdf: pdf, logger: logger}
}

// Export renders the timetable of a class section in the requested format.
func (s *ExportService) Export(ctx context.Context, classSectionID, yearID string, format dto.TimetableExportFormat) (*dto.TimetableExport, error) {
	format = dto.TimetableExportFormat(strings.ToLower(string(format)))
	if format == "" {
		format = dto.ExportFormatCSV
	}
	if format != dto.ExportFormatCSV && format != dto.ExportFormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unsupported export format %q", format))
	}

	view, _, err := s.timetables.Get(ctx, classSectionID, yearID)
	if err != nil {
		return nil, err
	}

	data := timetableDataset(view)
	base := unsafeFilename.ReplaceAllString(fmt.Sprintf("timetable-%s-%s", view.ClassSection.Name, view.AcademicYear.Name), "_")

	var out dto.TimetableExport
	switch format {
	case dto.ExportFormatPDF:
		content, err := s.pdf.Render(data, "Timetable "+view.ClassSection.Name, "Academic year "+view.AcademicYear.Name)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable pdf")
		}
		out = dto.TimetableExport{Filename: base + ".pdf", ContentType: "application/pdf", Content: content}
	default:
		content, err := s.csv.Render(data)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render timetable csv")
		}
		out = dto.TimetableExport{Filename: base + ".csv", ContentType: "text/csv", Content: content}
	}

	s.logger.Debug("timetable exported",
		zap.String("class_section_id", view.ClassSection.ID),
		zap.String("format", string(format)),
		zap.Int("entries", len(view.Entries)),
	)
	return &out, nil
}

func timetableDataset(view *dto.TimetableView) export.Dataset {
	rows := make([][]string, 0, len(view.Entries))
	for _, e := range view.Entries {
		rows = append(rows, []string{e.DayOfWeek.Title(), e.StartTime, e.EndTime, e.SlotName, e.SubjectName, e.TeacherName})
	}
	return export.Dataset{Headers: exportHeaders, Rows: rows}
}
