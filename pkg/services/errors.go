// Package services implements the business rules behind the workflow API: settings,
// step insertion and reordering, saved versions and activation.
package services

import (
	"errors"
	"fmt"

	"github.com/mono-send/send-smartly/pkg/persistence"
)

// Business Logic Errors - These indicate client errors (4xx responses).
var (
	// Validation Errors (400 Bad Request).
	ErrInvalidRequest       = errors.New("invalid request")
	ErrInvalidSort          = persistence.ErrInvalidSort
	ErrInvalidStatus        = errors.New("invalid workflow status")
	ErrWorkflowNameRequired = errors.New("workflow name is required")
	ErrUnknownSegment       = errors.New("unknown segment")
	ErrUnknownCategory      = errors.New("unknown contact category")
	ErrUnknownSender        = errors.New("unknown sender")
	ErrUnknownTemplate      = errors.New("unknown template")
	ErrInvalidStepConfig    = errors.New("invalid step config")
	ErrInvalidStepPlacement = errors.New("invalid step placement")
	ErrInvalidReorder       = errors.New("invalid reorder request")
	ErrInvalidCondition     = errors.New("condition must evaluate an earlier email")

	// Activation Errors (400 Bad Request).
	ErrInvalidVersionNumber   = errors.New("version number must be a positive integer")
	ErrTriggerSegmentRequired = errors.New("a trigger segment is required to activate")
	ErrEmailStepRequired      = errors.New("workflow must have at least one email step")

	// Not Found Errors (404 Not Found).
	ErrWorkflowNotFound = persistence.ErrWorkflowNotFound
	ErrVersionNotFound  = persistence.ErrVersionNotFound
	ErrStepNotFound     = errors.New("step not found")

	// Business Logic Conflicts (409 Conflict).
	ErrWorkflowBusy         = errors.New("workflow is being modified by another request")
	ErrVersionAlreadyExists = persistence.ErrVersionAlreadyExists
)

// ServiceError wraps service-level errors with additional context.
type ServiceError struct {
	Op      string // Operation name
	Code    string // Error code for API responses
	Message string // Human-readable message, shown to users verbatim
	Err     error  // Underlying error
}

func (e *ServiceError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}

	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ServiceError) Unwrap() error {
	return e.Err
}

func (e *ServiceError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// IsValidationError checks if an error is a validation error that should return HTTP 400.
func IsValidationError(err error) bool {
	return errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrInvalidSort) ||
		errors.Is(err, ErrInvalidStatus) ||
		errors.Is(err, ErrWorkflowNameRequired) ||
		errors.Is(err, ErrUnknownSegment) ||
		errors.Is(err, ErrUnknownCategory) ||
		errors.Is(err, ErrUnknownSender) ||
		errors.Is(err, ErrUnknownTemplate) ||
		errors.Is(err, ErrInvalidStepConfig) ||
		errors.Is(err, ErrInvalidStepPlacement) ||
		errors.Is(err, ErrInvalidReorder) ||
		errors.Is(err, ErrInvalidCondition) ||
		errors.Is(err, ErrInvalidVersionNumber) ||
		errors.Is(err, ErrTriggerSegmentRequired) ||
		errors.Is(err, ErrEmailStepRequired)
}

// IsNotFoundError checks if an error should return HTTP 404.
func IsNotFoundError(err error) bool {
	return errors.Is(err, ErrWorkflowNotFound) ||
		errors.Is(err, ErrVersionNotFound) ||
		errors.Is(err, ErrStepNotFound)
}

// IsConflictError checks if an error is a business logic conflict that should return HTTP 409.
func IsConflictError(err error) bool {
	return errors.Is(err, ErrWorkflowBusy) ||
		errors.Is(err, ErrVersionAlreadyExists)
}

// NewValidationError creates a new validation error with context.
func NewValidationError(op, code, message string, err error) *ServiceError {
	return &ServiceError{
		Op:      op,
		Code:    code,
		Message: message,
		Err:     err,
	}
}

func newNotFoundError(op, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: "NOT_FOUND", Message: message, Err: err}
}

func newConflictError(op, message string, err error) *ServiceError {
	return &ServiceError{Op: op, Code: "CONFLICT", Message: message, Err: err}
}

// Detail returns the user-facing message of err: the ServiceError message when there
// is one, the error text otherwise.
func Detail(err error) string {
	var se *ServiceError
	if errors.As(err, &se) && se.Message != "" {
		return se.Message
	}

	return err.Error()
}
