package sync

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors. Every error returned by Engine.Sync matches exactly one
// of them with errors.Is.
var (
	ErrInvalidBatch      = errors.New("sync: invalid batch")
	ErrUnknownEntityType = errors.New("sync: unknown entity type")
	ErrEntityNotFound    = errors.New("sync: entity not found")
	ErrForbidden         = errors.New("sync: forbidden")
	ErrValidationFailed  = errors.New("sync: validation failed")
	ErrStorageFailure    = errors.New("sync: storage failure")
)

// BatchError reports the operation that aborted a batch.
type BatchError struct {
	Err   error // one of the sentinels
	Type  string
	ID    string
	Cause error
}

func (e *BatchError) Error() string {
	var b strings.Builder

	b.WriteString(e.Err.Error())

	if e.Type != "" || e.ID != "" {
		fmt.Fprintf(&b, ": %s %s", e.Type, e.ID)
	}

	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}

	return b.String()
}

// Unwrap exposes both the sentinel and the underlying cause.
func (e *BatchError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}

	return []error{e.Err, e.Cause}
}

// ValidationEntry lists the failed rules of one operation.
type ValidationEntry struct {
	ID     string              `json:"id"`
	Type   string              `json:"type"`
	Errors map[string][]string `json:"errors"`
}

// ValidationError carries every failing operation of a batch.
type ValidationError struct {
	Entries []ValidationEntry
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %d operation(s) rejected", ErrValidationFailed, len(e.Entries))
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// ErrorKind returns a short label for the sentinel that err matches, for
// logs and metrics.
func ErrorKind(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrInvalidBatch):
		return "invalid_batch"
	case errors.Is(err, ErrUnknownEntityType):
		return "unknown_entity_type"
	case errors.Is(err, ErrEntityNotFound):
		return "entity_not_found"
	case errors.Is(err, ErrForbidden):
		return "forbidden"
	case errors.Is(err, ErrValidationFailed):
		return "validation_failed"
	case errors.Is(err, ErrStorageFailure):
		return "storage_failure"
	}

	return "internal"
}
