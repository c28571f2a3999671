package state

import "errors"

var (
	// ErrUploadInProgress is returned when an upload is started while another is in flight.
	ErrUploadInProgress = errors.New("an upload is already in progress")

	// ErrDownloadInProgress is returned when a download is started while any download is active.
	ErrDownloadInProgress = errors.New("a download is already in progress")

	// ErrEditInProgress is returned when a rename is started while another row is being edited
	// or while the current edit is being submitted.
	ErrEditInProgress = errors.New("another row is being renamed")

	// ErrNotEditing is returned when submitting or editing a candidate with no row in edit mode.
	ErrNotEditing = errors.New("no row is being renamed")
)
