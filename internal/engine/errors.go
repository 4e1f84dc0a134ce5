package engine

import (
	"errors"
	"fmt"

	"github.com/roach88/foldersync/internal/model"
	"github.com/roach88/foldersync/internal/record"
)

// SyncError is a fatal error that aborts a table mapping run before any
// write happens.
//
// Fatal errors include:
//   - Not found: the sync or one of its data folders does not exist
//   - Bad configuration: the table mapping cannot be run as configured
//   - Parse failure: a record file has no usable identifier
//   - Fetch failure: a collaborator could not list folders or files
//
// Per-record failures are never SyncErrors; they are collected in the
// result.
type SyncError struct {
	// Code identifies the error category.
	Code SyncErrorCode

	// Message is a human-readable description.
	Message string

	// SyncID identifies the affected sync.
	SyncID string

	// DataFolderID identifies the affected data folder, if any.
	DataFolderID string

	// Err is the underlying cause.
	Err error
}

// SyncErrorCode categorizes fatal sync errors.
type SyncErrorCode string

const (
	// ErrCodeNotFound indicates a missing sync or data folder.
	ErrCodeNotFound SyncErrorCode = "NOT_FOUND"

	// ErrCodeBadConfiguration indicates an unusable table mapping.
	ErrCodeBadConfiguration SyncErrorCode = "BAD_CONFIGURATION"

	// ErrCodeParseFailed indicates a record file without usable identity.
	ErrCodeParseFailed SyncErrorCode = "PARSE_FAILED"

	// ErrCodeFetchFailed indicates a collaborator read failure.
	ErrCodeFetchFailed SyncErrorCode = "FETCH_FAILED"
)

// Error implements the error interface.
func (e *SyncError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Code, e.Message)
	if e.DataFolderID != "" {
		msg += fmt.Sprintf(" (sync=%s, folder=%s)", e.SyncID, e.DataFolderID)
	} else if e.SyncID != "" {
		msg += fmt.Sprintf(" (sync=%s)", e.SyncID)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap exposes the cause so errors.Is(err, model.ErrNotFound) works.
func (e *SyncError) Unwrap() error {
	return e.Err
}

func isCode(err error, code SyncErrorCode) bool {
	var se *SyncError
	if errors.As(err, &se) {
		return se.Code == code
	}
	return false
}

// IsNotFound returns true if err is a not-found SyncError or wraps
// model.ErrNotFound.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound) || errors.Is(err, model.ErrNotFound)
}

// IsBadConfiguration returns true if err is a bad-configuration SyncError or
// wraps model.ErrBadConfiguration.
func IsBadConfiguration(err error) bool {
	return isCode(err, ErrCodeBadConfiguration) || errors.Is(err, model.ErrBadConfiguration)
}

// IsParseFailed returns true if err is a record parse failure.
func IsParseFailed(err error) bool {
	return isCode(err, ErrCodeParseFailed) || record.IsParseError(err)
}

// IsFetchFailed returns true if a collaborator read failed.
func IsFetchFailed(err error) bool {
	return isCode(err, ErrCodeFetchFailed)
}

func newNotFoundError(syncID, folderID, what string, cause error) *SyncError {
	return &SyncError{
		Code:         ErrCodeNotFound,
		Message:      what + " not found",
		SyncID:       syncID,
		DataFolderID: folderID,
		Err:          cause,
	}
}

func newBadConfigurationError(syncID, message string) *SyncError {
	return &SyncError{
		Code:    ErrCodeBadConfiguration,
		Message: message,
		SyncID:  syncID,
		Err:     model.ErrBadConfiguration,
	}
}

func newParseError(syncID, folderID string, cause error) *SyncError {
	return &SyncError{
		Code:         ErrCodeParseFailed,
		Message:      "record identity could not be parsed",
		SyncID:       syncID,
		DataFolderID: folderID,
		Err:          cause,
	}
}

func newFetchError(syncID, folderID, what string, cause error) *SyncError {
	return &SyncError{
		Code:         ErrCodeFetchFailed,
		Message:      "fetch " + what,
		SyncID:       syncID,
		DataFolderID: folderID,
		Err:          cause,
	}
}
