package domain

import (
	"fmt"
	"strings"
	"time"

	"tink/errors"
)

type SessionState uint8

const (
	SessionStateInactive SessionState = iota
	SessionStateActive
	SessionStatePaused
	SessionStateEnded
)

var sessionStateNames = map[SessionState]string{
	SessionStateInactive: "inactive",
	SessionStateActive:   "active",
	SessionStatePaused:   "paused",
	SessionStateEnded:    "ended",
}

func (s SessionState) String() string {
	if name, ok := sessionStateNames[s]; ok {
		return name
	}
	return fmt.Sprintf("state(%d)", uint8(s))
}

func ParseSessionState(s string) (SessionState, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for state, name := range sessionStateNames {
		if name == s {
			return state, nil
		}
	}
	return SessionStateInactive, fmt.Errorf("unknown session state %q", s)
}

func (s SessionState) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SessionState) UnmarshalText(text []byte) error {
	parsed, err := ParseSessionState(string(text))
	if err != nil {
		return err
	}
	*s = parsed
	return nil
}

// EndReason records why a session reached the Ended state.
type EndReason string

const (
	EndReasonManual    EndReason = "manual"
	EndReasonTimeout   EndReason = "timeout"
	EndReasonAbandoned EndReason = "abandoned"
)

// Session is a point-in-time snapshot of a facilitated discussion.
// RemainingSeconds is set only while the session is Active or Paused.
type Session struct {
	ID               string       `json:"id"`
	Title            string       `json:"title"`
	Description      string       `json:"description,omitempty"`
	State            SessionState `json:"state"`
	DurationMinutes  int          `json:"duration_minutes"`
	RemainingSeconds *int         `json:"remaining_seconds,omitempty"`
	MaxParticipants  int          `json:"max_participants"`
	GlobalRole       Role         `json:"global_role,omitempty"`
	CreatedAt        time.Time    `json:"created_at"`
	StartedAt        *time.Time   `json:"started_at,omitempty"`
	EndedAt          *time.Time   `json:"ended_at,omitempty"`
	EndReason        EndReason    `json:"end_reason,omitempty"`
}

func (s Session) IsOpen() bool {
	return s.State == SessionStateActive || s.State == SessionStatePaused
}

type CreateSessionInput struct {
	Title           string
	Description     string
	DurationMinutes int
	MaxParticipants int
}

// NormalizeCreateSessionInput trims text fields and checks the bounds of a new session.
func NormalizeCreateSessionInput(input CreateSessionInput) (CreateSessionInput, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Description = strings.TrimSpace(input.Description)
	if input.Title == "" {
		return CreateSessionInput{}, errors.ErrEmptyTitle
	}
	if input.DurationMinutes <= 0 {
		return CreateSessionInput{}, fmt.Errorf("%w: got %d", errors.ErrInvalidDuration, input.DurationMinutes)
	}
	if input.MaxParticipants < 0 {
		return CreateSessionInput{}, fmt.Errorf("%w: max participants %d", errors.ErrInvalidInput, input.MaxParticipants)
	}
	return input, nil
}

// NewSession builds the Inactive snapshot of a freshly created session.
func NewSession(input CreateSessionInput, now func() time.Time, idGenerator func() string) (Session, error) {
	normalized, err := NormalizeCreateSessionInput(input)
	if err != nil {
		return Session{}, err
	}
	return Session{
		ID:              idGenerator(),
		Title:           normalized.Title,
		Description:     normalized.Description,
		State:           SessionStateInactive,
		DurationMinutes: normalized.DurationMinutes,
		MaxParticipants: normalized.MaxParticipants,
		CreatedAt:       now().UTC(),
	}, nil
}
