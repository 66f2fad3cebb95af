package apperr

import "errors"

var (
	ErrValidation       = errors.New("validation failed")
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrPermission       = errors.New("permission denied")
	ErrNotFound         = errors.New("not found")
	ErrNotGroup         = errors.New("chat is not a group")
	ErrNotMember        = errors.New("user is not a participant")
	ErrAlreadyMember    = errors.New("user is already a participant")
	ErrConflict         = errors.New("conflicting concurrent write")

	// ErrProjection marks a failed denormalized update (preview or
	// unread counter) after the message itself was persisted. The
	// message is never rolled back; callers that care inspect the
	// error with errors.Is.
	ErrProjection = errors.New("projection update failed")
)
