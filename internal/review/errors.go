package review

import "errors"

var (
	// ErrInvalidAction is returned for an action outside approve/delete/rework.
	ErrInvalidAction = errors.New("invalid action")
	// ErrMissingParameter is returned when a transition lacks an action or id.
	ErrMissingParameter = errors.New("missing parameter")
	// ErrEmptyQueue means the pending folder holds no files. It is a normal
	// terminal condition, not a fault.
	ErrEmptyQueue = errors.New("no files found in pending folder")
	// ErrAllReserved means every pending file is claimed by another reviewer.
	ErrAllReserved = errors.New("all pending files are currently being reviewed")
	// ErrItemNotFound means the id no longer resolves, usually because another
	// reviewer already moved it.
	ErrItemNotFound = errors.New("item not found")
	// ErrTransitionConflict means the destination name is already taken.
	ErrTransitionConflict = errors.New("transition conflict")
	// ErrLinkResolution wraps any failure to obtain a shared link.
	ErrLinkResolution = errors.New("link resolution failed")
	// ErrBackendUnavailable wraps any other backend failure.
	ErrBackendUnavailable = errors.New("backend unavailable")
)
