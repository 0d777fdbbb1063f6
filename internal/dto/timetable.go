package dto

import (
	"fmt"
	"strings"

	"github.com/noah-isme/sma-timetable-api/internal/models"
)

// SlotChangeRequest is the wire shape of one slot change. With subject and teacher
// both omitted it clears the slot, with both present it assigns the slot. Other
// shapes are rejected per item.
type SlotChangeRequest struct {
	SlotID    string  `json:"slot_id"`
	SubjectID *string `json:"subject_id,omitempty"`
	TeacherID *string `json:"teacher_id,omitempty"`
}

// SlotChange is either ClearSlot or AssignSlot.
type SlotChange interface {
	Slot() string
	isSlotChange()
}

// ClearSlot removes the occupant of a slot, if any.
type ClearSlot struct {
	SlotID string
}

// AssignSlot places a teacher and subject into a slot.
type AssignSlot struct {
	SlotID    string
	TeacherID string
	SubjectID string
}

func (c ClearSlot) Slot() string  { return c.SlotID }
func (ClearSlot) isSlotChange()   {}
func (a AssignSlot) Slot() string { return a.SlotID }
func (AssignSlot) isSlotChange()  {}

// Change decodes the request into its variant.
func (r SlotChangeRequest) Change() (SlotChange, error) {
	if strings.TrimSpace(r.SlotID) == "" {
		return nil, &models.AssignmentError{
			Reason:  models.ReasonSlotNotFound,
			Message: "slot_id is required",
		}
	}
	subjectID := trimmed(r.SubjectID)
	teacherID := trimmed(r.TeacherID)
	switch {
	case subjectID == "" && teacherID == "":
		return ClearSlot{SlotID: r.SlotID}, nil
	case subjectID != "" && teacherID != "":
		return AssignSlot{SlotID: r.SlotID, TeacherID: teacherID, SubjectID: subjectID}, nil
	default:
		return nil, &models.AssignmentError{
			Reason:  models.ReasonIncompletePair,
			SlotID:  r.SlotID,
			Message: "subject_id and teacher_id must be provided together or omitted together",
		}
	}
}

func trimmed(v *string) string {
	if v == nil {
		return ""
	}
	return strings.TrimSpace(*v)
}

// BulkUpdateTimetableRequest carries many slot changes for one class section.
type BulkUpdateTimetableRequest struct {
	AcademicYearID string              `json:"academic_year_id"`
	Items          []SlotChangeRequest `json:"items" validate:"required"`
}

// BulkItemError reports why one submitted item was not applied.
type BulkItemError struct {
	Index                int                          `json:"index"`
	SlotID               string                       `json:"slot_id"`
	Reason               models.AssignmentErrorReason `json:"reason"`
	Message              string                       `json:"message"`
	ConflictClassSection string                       `json:"conflict_class_section,omitempty"`
	SlotLabel            string                       `json:"slot_label,omitempty"`
}

// BulkResult aggregates the outcome of a bulk update. Counters only include
// items that were applied; every rejected item has one entry in Errors.
type BulkResult struct {
	Created int             `json:"created"`
	Updated int             `json:"updated"`
	Deleted int             `json:"deleted"`
	Errors  []BulkItemError `json:"errors"`
}

// NewBulkResult returns an empty result with a non-nil error list.
func NewBulkResult() *BulkResult {
	return &BulkResult{Errors: []BulkItemError{}}
}

// AddError appends a rejection for the item at index.
func (r *BulkResult) AddError(index int, err *models.AssignmentError) {
	r.Errors = append(r.Errors, BulkItemError{
		Index:                index,
		SlotID:               err.SlotID,
		Reason:               err.Reason,
		Message:              err.Message,
		ConflictClassSection: err.ConflictClassSection,
		SlotLabel:            err.SlotLabel,
	})
}

// Applied is the number of items that changed the store.
func (r *BulkResult) Applied() int {
	return r.Created + r.Updated + r.Deleted
}

// PartiallyApplied reports whether at least one item was rejected.
func (r *BulkResult) PartiallyApplied() bool {
	return len(r.Errors) > 0
}

func (r *BulkResult) String() string {
	return fmt.Sprintf("created=%d updated=%d deleted=%d errors=%d", r.Created, r.Updated, r.Deleted, len(r.Errors))
}

// TimetableView is the ordered timetable of one class section in one academic year.
type TimetableView struct {
	ClassSection models.ClassSection     `json:"class_section"`
	AcademicYear models.AcademicYear     `json:"academic_year"`
	Entries      []models.TimetableEntry `json:"entries"`
}

// SectionTimetable is one class section inside an institution-wide view.
type SectionTimetable struct {
	ClassSection models.ClassSection     `json:"class_section"`
	Entries      []models.TimetableEntry `json:"entries"`
}

// InstitutionTimetableView lists every class section's timetable for a year.
type InstitutionTimetableView struct {
	AcademicYear models.AcademicYear `json:"academic_year"`
	Sections     []SectionTimetable  `json:"sections"`
}

// TimetableExportFormat selects the rendered export.
type TimetableExportFormat string

const (
	ExportFormatCSV TimetableExportFormat = "csv"
	ExportFormatPDF TimetableExportFormat = "pdf"
)

// TimetableExport is a rendered timetable document.
type TimetableExport struct {
	Filename    string
	ContentType string
	Content     []byte
}
