package ledger

import "errors"

var (
	// ErrValidation marks a missing or disallowed field. User-correctable.
	ErrValidation = errors.New("validation failed")
	// ErrConflict marks a name already signed up for the date.
	ErrConflict = errors.New("name already exists for this date")
	// ErrStorageUnavailable marks a persistence read or write failure.
	ErrStorageUnavailable = errors.New("storage unavailable")
	// ErrRemoteSyncFailed marks a failed best-effort secondary write. It is
	// logged and never returned to API callers.
	ErrRemoteSyncFailed = errors.New("remote sync failed")
)
