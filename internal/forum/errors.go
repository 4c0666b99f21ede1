package forum

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

var (
	// ErrInvalidInput marks a missing, empty or oversized request field.
	ErrInvalidInput = errors.New("forum: invalid input")
	// ErrNotFound marks a referenced category, topic or post that does not exist.
	ErrNotFound = errors.New("forum: not found")
	// ErrForbidden marks an owner-gated action attempted by someone else.
	ErrForbidden = errors.New("forum: forbidden")
	// ErrLocked marks an attempt to reply to a locked topic.
	ErrLocked = errors.New("forum: topic locked")
	// ErrInternal marks a storage failure.
	ErrInternal = errors.New("forum: internal error")

	errMissingDatabase   = errors.New("database handle is required")
	errMissingIDProvider = errors.New("id provider is required")
	noOpLogger           = zap.NewNop()
)

const (
	reasonMissingDatabase  = "missing_database"
	reasonQueryFailed      = "query_failed"
	reasonInsertFailed     = "insert_failed"
	reasonUpdateFailed     = "update_failed"
	reasonDeleteFailed     = "delete_failed"
	reasonIDGeneration     = "id_generation_failed"
	reasonNotFound         = "not_found"
	reasonForbidden        = "forbidden"
	reasonLocked           = "locked"
	reasonEmptyField       = "empty_field"
	reasonFieldTooLong     = "field_too_long"
	reasonDuplicateName    = "duplicate_name"
	reasonCategoryInUse    = "category_in_use"
	reasonInvalidVote      = "invalid_vote"
	internalErrorMessage   = "Internal server error"
	messageTopicLocked     = "Topic is locked"
	messageTopicNotFound   = "Topic not found"
	messagePostNotFound    = "Post not found"
	messageCategoryMissing = "Category not found"
)

// ServiceError carries the failure kind, a stable code and a message that is safe to show clients.
type ServiceError struct {
	kind    error
	code    string
	message string
	err     error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

// Unwrap exposes both the kind sentinel and the underlying cause to errors.Is/As.
func (e *ServiceError) Unwrap() []error {
	unwrapped := []error{e.kind}
	if e.err != nil {
		unwrapped = append(unwrapped, e.err)
	}
	return unwrapped
}

// Code returns the stable operation.reason code.
func (e *ServiceError) Code() string {
	return e.code
}

// Message returns the client-facing description. Internal errors never leak their cause.
func (e *ServiceError) Message() string {
	if e.kind == ErrInternal || e.message == "" {
		return internalErrorMessage
	}
	return e.message
}

// Kind returns one of the ErrXxx sentinels.
func (e *ServiceError) Kind() error {
	return e.kind
}

func newServiceError(kind error, operation, reason, message string, cause error) *ServiceError {
	return &ServiceError{
		kind:    kind,
		code:    fmt.Sprintf("%s.%s", operation, reason),
		message: message,
		err:     cause,
	}
}

func invalidInput(operation, reason, message string) error {
	return newServiceError(ErrInvalidInput, operation, reason, message, nil)
}

func notFound(operation, message string) error {
	return newServiceError(ErrNotFound, operation, reasonNotFound, message, nil)
}

func forbidden(operation, message string) error {
	return newServiceError(ErrForbidden, operation, reasonForbidden, message, nil)
}

func internalError(operation, reason string, cause error) error {
	return newServiceError(ErrInternal, operation, reason, "", cause)
}

// requiredText trims value and validates presence and length for the named field.
func requiredText(operation, field, value string, limit int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return "", invalidInput(operation, reasonEmptyField, fmt.Sprintf("%s is required", field))
	}
	if tooLong(trimmed, limit) {
		return "", invalidInput(operation, reasonFieldTooLong, fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return trimmed, nil
}

// optionalText trims value and validates its length when present.
func optionalText(operation, field, value string, limit int) (string, error) {
	trimmed := strings.TrimSpace(value)
	if tooLong(trimmed, limit) {
		return "", invalidInput(operation, reasonFieldTooLong, fmt.Sprintf("%s must be at most %d characters", field, limit))
	}
	return trimmed, nil
}

func logServiceError(logger *zap.Logger, operation, reason string, err error, fields ...zap.Field) {
	if logger == nil {
		logger = noOpLogger
	}
	attrs := []zap.Field{
		zap.String("operation", operation),
		zap.String("reason", reason),
	}
	if err != nil {
		attrs = append(attrs, zap.Error(err))
	}
	attrs = append(attrs, fields...)
	logger.Error("forum service error", attrs...)
}
