package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"

	"tink/errors"
)

// Message is an immutable chat line posted during a session.
// Role is the hat the sender wore when posting, RoleNone if none.
type Message struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	SenderID  string    `json:"sender_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Role      Role      `json:"role,omitempty"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

func (m Message) FromFacilitator() bool { return m.SenderID == FacilitatorID }

func NormalizeMessageText(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", errors.ErrEmptyMessage
	}
	return text, nil
}
