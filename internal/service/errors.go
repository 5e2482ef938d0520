package service

import "errors"

// Fatal errors returned to the caller. Non-fatal selection problems land in
// the session's LastError overlay instead (see wizard.go).
var (
	ErrSessionNotFound    = errors.New("session not found")
	ErrWrongStep          = errors.New("operation not valid for the current step")
	ErrSessionDone        = errors.New("session already completed")
	ErrUnknownBookingType = errors.New("unknown booking type")
	ErrMissingContact     = errors.New("at least one contact channel (email or phone) is required")
	ErrInvalidTransition  = errors.New("status transition not allowed")
)

// Overlay messages for non-fatal selection problems.
var (
	ErrPastDate         = errors.New("selected date is in the past")
	ErrDateNotAvailable = errors.New("selected date is not available")
	ErrSlotNotAvailable = errors.New("selected slot is no longer available")
)
