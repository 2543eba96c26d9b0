// Package apperr defines the error taxonomy for version operations.
package apperr

import "errors"

var (
	// ErrMalformedVersion reports a version string that is not two
	// dot-separated integers.
	ErrMalformedVersion = errors.New("malformed version")

	// ErrSourceNotFound reports a cut whose source directory does not exist.
	ErrSourceNotFound = errors.New("source not found")

	// ErrSourceEmpty reports a cut whose source directory contains no files.
	ErrSourceEmpty = errors.New("source empty")

	// ErrVersionExists reports a snapshot target that already exists.
	// Version numbers are write-once.
	ErrVersionExists = errors.New("version already exists")

	// ErrVersionNotFound reports a missing lookup, activation, or rollback
	// target.
	ErrVersionNotFound = errors.New("version not found")

	// ErrInvalidChangeClass reports a change class a caller may not use for
	// the requested operation.
	ErrInvalidChangeClass = errors.New("invalid change class")

	// ErrInitialVersionExists reports an initial cut against a project that
	// already has versions.
	ErrInitialVersionExists = errors.New("initial version already exists")

	// ErrNoPreviousVersion reports a non-initial cut against a project with
	// no versions yet.
	ErrNoPreviousVersion = errors.New("no previous version")

	// ErrUnexpectedPointerState reports foreign data at the active pointer
	// path. The pointer is never replaced in this state; operator
	// intervention is required.
	ErrUnexpectedPointerState = errors.New("unexpected pointer state")

	// ErrCopyFailed reports a disk-level failure while populating a
	// snapshot. The partial snapshot has already been removed.
	ErrCopyFailed = errors.New("copy failed")
)
