package models

import "fmt"

// AssignmentErrorReason classifies why a single slot change was rejected.
type AssignmentErrorReason string

const (
	ReasonSlotNotFound         AssignmentErrorReason = "SLOT_NOT_FOUND"
	ReasonIncompletePair       AssignmentErrorReason = "INCOMPLETE_PAIR"
	ReasonTeacherNotAuthorized AssignmentErrorReason = "TEACHER_NOT_AUTHORIZED_FOR_SUBJECT"
	ReasonTeacherConflict      AssignmentErrorReason = "TEACHER_CONFLICT"
	ReasonStoreConflict        AssignmentErrorReason = "STORE_CONFLICT"
	ReasonStoreFailure         AssignmentErrorReason = "STORE_FAILURE"
	ReasonCancelled            AssignmentErrorReason = "CANCELLED"
)

// AssignmentError is a per-item rejection. It never aborts a bulk update.
type AssignmentError struct {
	Reason  AssignmentErrorReason `json:"reason"`
	SlotID  string                `json:"slot_id"`
	Message string                `json:"message"`
	// Set for TEACHER_CONFLICT.
	ConflictClassSection string `json:"conflict_class_section,omitempty"`
	SlotLabel            string `json:"slot_label,omitempty"`
	Err                  error  `json:"-"`
}

// Error implements the error interface.
func (e *AssignmentError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Reason, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

// Unwrap returns the underlying store error, if any.
func (e *AssignmentError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// IsConflict reports whether the rejection is a double-booking, detected either
// by the pre-check or by the store's unique constraint.
func (e *AssignmentError) IsConflict() bool {
	return e != nil && (e.Reason == ReasonTeacherConflict || e.Reason == ReasonStoreConflict)
}
