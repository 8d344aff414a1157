package errors

import "fmt"

var (
	ErrWorkerPanic       = fmt.Errorf("worker panic")
	ErrOnlyCensoredFiles = fmt.Errorf("censored directory contains directories")
	ErrEmptyWords        = fmt.Errorf("no words have been found")

	// Session lifecycle
	ErrInvalidTransition = fmt.Errorf("invalid session state transition")
	ErrInvalidDuration   = fmt.Errorf("duration must be a positive number of minutes")
	ErrSessionNotFound   = fmt.Errorf("session not found")
	ErrEmptyTitle        = fmt.Errorf("session title is required")

	// Floor
	ErrFloorBusy = fmt.Errorf("floor is held or reserved by another participant")

	// Roles
	ErrReservedRole = fmt.Errorf("role is reserved for the facilitator")
	ErrUnknownRole  = fmt.Errorf("unknown role")

	// Participants and waiting room
	ErrNotFound     = fmt.Errorf("participant not found")
	ErrSessionFull  = fmt.Errorf("session reached its participant capacity")
	ErrEmptyName    = fmt.Errorf("participant name is required")
	ErrInvalidInput = fmt.Errorf("invalid input")

	// Messages and summary
	ErrEmptyMessage       = fmt.Errorf("message text is empty")
	ErrSummaryUnavailable = fmt.Errorf("summary is not available")

	// Access
	ErrUnauthorized    = fmt.Errorf("unauthorized")
	ErrForbidden       = fmt.Errorf("forbidden")
	ErrTokenGeneration = fmt.Errorf("token generation failed")
)
