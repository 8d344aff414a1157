package runtime

import (
	"math/rand"
	"time"

	"github.com/google/uuid"

	"tink/clock"
	"tink/domain"
)

const (
	DefaultParticipantBudget = 60 * time.Second
	DefaultFacilitatorBudget = 120 * time.Second
	DefaultMaxParticipants   = 30
	DefaultDurationMinutes   = 20
	countdownStep            = time.Second
)

// Moderator rewrites message text, returning the rewritten text and the
// words it masked.
type Moderator interface {
	Censor(text string) (string, []string)
}

// LanguageDetector returns the ISO 639-1 code of a text, "" when unsure.
type LanguageDetector interface {
	Detect(text string) string
}

type SessionOptions struct {
	Clock             clock.Clock
	ParticipantBudget time.Duration
	FacilitatorBudget time.Duration
	// AutoPromote grants the floor to the head of the queue as soon as it frees up.
	AutoPromote bool
	// ManualCountdown disables the internal 1s timer; the host drives Tick itself.
	ManualCountdown  bool
	MaxParticipants  int
	SummaryMaxPoints int
	ActionPoints     []string
	Moderator        Moderator
	Languages        LanguageDetector
	NewShuffler      func() domain.Shuffler
	NewID            func() string
}

func DefaultSessionOptions() SessionOptions {
	return SessionOptions{}.withDefaults()
}

func (o SessionOptions) withDefaults() SessionOptions {
	if o.Clock == nil {
		o.Clock = clock.Real{}
	}
	if o.ParticipantBudget <= 0 {
		o.ParticipantBudget = DefaultParticipantBudget
	}
	if o.FacilitatorBudget <= 0 {
		o.FacilitatorBudget = DefaultFacilitatorBudget
	}
	if o.MaxParticipants <= 0 {
		o.MaxParticipants = DefaultMaxParticipants
	}
	if o.SummaryMaxPoints <= 0 {
		o.SummaryMaxPoints = domain.DefaultSummaryMaxPoints
	}
	if o.NewShuffler == nil {
		o.NewShuffler = func() domain.Shuffler {
			return rand.New(rand.NewSource(time.Now().UnixNano()))
		}
	}
	if o.NewID == nil {
		o.NewID = uuid.NewString
	}
	return o
}
