package submission

import (
	"errors"
	"fmt"
)

var (
	// ErrQuotaExceeded marks a free-tier author at the lifetime entry limit. Submit reports it as an outcome.
	ErrQuotaExceeded = errors.New("submission: free-tier entry limit reached")
	// ErrTransientWrite indicates that the record-store write failed while online.
	ErrTransientWrite = errors.New("submission: record store write failed")
	// ErrStorageFailure indicates that the local queue or quota store could not be written.
	ErrStorageFailure = errors.New("submission: local storage failure")
	// ErrEmptyEntry indicates that the entry text has no visible characters.
	ErrEmptyEntry = errors.New("submission: entry text is empty")
	// ErrMissingAuthor indicates that no author could be resolved for the submission.
	ErrMissingAuthor = errors.New("submission: author is required")
	// ErrOffline indicates that a drain was requested while the record store is unreachable.
	ErrOffline = errors.New("submission: record store is offline")
	// ErrEntryIDConflict indicates that the entry id already belongs to a different entry.
	ErrEntryIDConflict = errors.New("submission: entry id belongs to another entry")
	// ErrEntryNotFound indicates that an action completion referenced an unknown entry.
	ErrEntryNotFound = errors.New("submission: entry not found")

	errMissingDependency = errors.New("submission: dependency is required")
)

// ServiceError carries a dotted failure code alongside the underlying cause.
type ServiceError struct {
	code string
	err  error
}

func (e *ServiceError) Error() string {
	if e.err == nil {
		return e.code
	}
	return fmt.Sprintf("%s: %v", e.code, e.err)
}

func (e *ServiceError) Unwrap() error {
	return e.err
}

func (e *ServiceError) Code() string {
	return e.code
}

const (
	opNew            = "submission.orchestrator.new"
	opSubmit         = "submission.submit"
	opDrain          = "submission.drain"
	opCompleteAction = "submission.complete_action"
	opRecordActivity = "submission.record_activity"
	opQuota          = "submission.quota"
)

func newServiceError(operation, reason string, cause error) error {
	return &ServiceError{code: fmt.Sprintf("%s.%s", operation, reason), err: cause}
}
