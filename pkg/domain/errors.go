package domain

import (
	"errors"
	"regexp"
)

// ErrConflict is returned when a write names an AutosaveVersion that no longer
// matches the store of record.
var ErrConflict = errors.New("version conflict")

// ErrBlueprintNotFound is returned when a blueprint ID cannot be found in the store.
var ErrBlueprintNotFound = errors.New("blueprint not found")

// ErrInvalidRequest is returned when a gateway rejects a malformed request.
var ErrInvalidRequest = errors.New("invalid request")

// ErrFatal marks failures that retrying cannot fix (e.g. a malformed gateway response).
var ErrFatal = errors.New("fatal persistence error")

// ErrJobCanceled is delivered to save waiters whose job was dropped by a reload.
var ErrJobCanceled = errors.New("save job canceled")

// ErrDisposed is returned by an engine that has been closed.
var ErrDisposed = errors.New("engine disposed")

// ErrNotPersisted is returned by operations that need a blueprint ID before the first save.
var ErrNotPersisted = errors.New("blueprint has not been persisted yet")

var conflictPattern = regexp.MustCompile(`(?i)(version mismatch|version conflict|autosave_version)`)

// IsConflict reports whether err signals an optimistic-concurrency mismatch,
// either through ErrConflict or through a gateway message that names it.
func IsConflict(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrConflict) {
		return true
	}
	return conflictPattern.MatchString(err.Error())
}

// IsPermanent reports whether retrying the call that returned err cannot help:
// fatal failures, rejected requests and blueprints that no longer exist.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrFatal) ||
		errors.Is(err, ErrInvalidRequest) ||
		errors.Is(err, ErrBlueprintNotFound)
}
