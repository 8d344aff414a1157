package domain

import (
	"fmt"
	"strings"
	"time"

	"tink/errors"
)

// FacilitatorID identifies the facilitator as a message sender.
const FacilitatorID = "facilitator"

// SpeakingStatus is a participant's relation to the floor.
type SpeakingStatus uint8

const (
	SpeakingStatusIdle SpeakingStatus = iota
	SpeakingStatusWaiting
	SpeakingStatusSpeaking
)

var speakingStatusNames = map[SpeakingStatus]string{
	SpeakingStatusIdle:     "idle",
	SpeakingStatusWaiting:  "waiting_to_speak",
	SpeakingStatusSpeaking: "speaking",
}

func (s SpeakingStatus) String() string {
	if name, ok := speakingStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("status(%d)", uint8(s))
}

func (s SpeakingStatus) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

func (s *SpeakingStatus) UnmarshalText(text []byte) error {
	for status, name := range speakingStatusNames {
		if name == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("unknown speaking status %q", text)
}

// Participant is an admitted member of a session.
type Participant struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Role       Role           `json:"role,omitempty"`
	Status     SpeakingStatus `json:"status"`
	JoinedAt   time.Time      `json:"joined_at"`
	AdmittedAt time.Time      `json:"admitted_at"`
}

// WaitingEntry is someone who joined but has not been admitted yet.
type WaitingEntry struct {
	ID       string    `json:"id"`
	Name     string    `json:"name"`
	JoinedAt time.Time `json:"joined_at"`
}

func NormalizeName(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", errors.ErrEmptyName
	}
	return name, nil
}
