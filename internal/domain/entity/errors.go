package entity

import (
	"errors"
	"fmt"

	"github.com/garyjia/doc-approval/internal/domain/workflow"
)

var (
	// ErrUnauthorized is returned when the actor lacks the permission for an operation
	ErrUnauthorized = errors.New("unauthorized")

	// ErrIllegalTransition is returned when the action is not allowed from the current status
	ErrIllegalTransition = errors.New("illegal transition")

	// ErrCommentRequired is returned when a rejection carries no comment
	ErrCommentRequired = errors.New("comment required")

	// ErrNotFound is returned when a document or user does not exist
	ErrNotFound = errors.New("not found")

	// ErrStorageFailure is returned when persistence or the attachment store fails
	ErrStorageFailure = errors.New("storage failure")

	// ErrValidation is returned for malformed input
	ErrValidation = errors.New("validation failed")
)

// WorkflowError carries the context of a refused operation.
// errors.Is matches it against its Kind.
type WorkflowError struct {
	Kind       error
	DocumentID int64
	Action     workflow.Trigger
	Status     workflow.State
	Reason     string
}

func (e *WorkflowError) Error() string {
	msg := e.Kind.Error()
	if e.Action != "" {
		msg = fmt.Sprintf("%s: %s on document %d", msg, e.Action, e.DocumentID)
	} else if e.DocumentID != 0 {
		msg = fmt.Sprintf("%s: document %d", msg, e.DocumentID)
	}
	if e.Status != "" {
		msg = fmt.Sprintf("%s (status %s)", msg, e.Status)
	}
	if e.Reason != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Reason)
	}
	return msg
}

func (e *WorkflowError) Unwrap() error {
	return e.Kind
}

// NewWorkflowError builds a WorkflowError for a document
func NewWorkflowError(kind error, doc *Document, action workflow.Trigger, reason string) *WorkflowError {
	e := &WorkflowError{Kind: kind, Action: action, Reason: reason}
	if doc != nil {
		e.DocumentID = doc.ID
		e.Status = doc.Status
	}
	return e
}
