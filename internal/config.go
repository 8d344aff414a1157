package internal

import (
	"fmt"
	"strings"
	"time"

	"github.com/samber/lo"
)

type Config struct {
	LogLevel        string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath  string        `env:"BADGER_FILEPATH,required=true"`
	BlugeFilepath   string        `env:"BLUGE_FILEPATH,required=true"`
	BufferSize      int           `env:"BUFFER_SIZE,default=1024"`
	SinkTimeout     time.Duration `env:"SINK_TIMEOUT,default=2s"`
	RestartInterval time.Duration `env:"RESTART_INTERVAL,default=200ms"`
	MetricInterval  time.Duration `env:"METRIC_INTERVAL,default=30s"`
	LimitMessages   *int          `env:"LIMIT_MESSAGES"`

	// LowCapacityThreshold is the fill percentage of the event buffer that triggers a warning.
	LowCapacityThreshold int `env:"LOW_CAPACITY_THRESHOLD,default=80"`

	ParticipantSpeakingBudget time.Duration `env:"PARTICIPANT_SPEAKING_BUDGET,default=60s"`
	FacilitatorSpeakingBudget time.Duration `env:"FACILITATOR_SPEAKING_BUDGET,default=120s"`
	FloorAutoPromote          bool          `env:"FLOOR_AUTO_PROMOTE,default=false"`
	SummaryMaxPoints          int           `env:"SUMMARY_MAX_POINTS,default=6"`
	MaxParticipants           int           `env:"MAX_PARTICIPANTS,default=30"`
	DefaultDurationMinutes    int           `env:"DEFAULT_DURATION_MINUTES,default=20"`
	ActionPoints              string        `env:"ACTION_POINTS"`

	AuthSecret        string        `env:"AUTH_SECRET,required=true"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=12h"`
	CharReplacement   string        `env:"CHARACTER_REPLACEMENT,default=*"`
	CensoredDir       string        `env:"CENSORED_DIR"`

	JanitorInterval       time.Duration `env:"JANITOR_INTERVAL,default=1m"`
	EndedSessionRetention time.Duration `env:"ENDED_SESSION_RETENTION,default=1h"`
	AbandonedSessionTTL   time.Duration `env:"ABANDONED_SESSION_TTL,default=24h"`
}

// ActionPointList splits ACTION_POINTS on commas, dropping blanks.
func (c Config) ActionPointList() []string {
	parts := lo.Map(strings.Split(c.ActionPoints, ","), func(s string, _ int) string {
		return strings.TrimSpace(s)
	})
	return lo.Compact(parts)
}

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf(
			"CHARACTER_REPLACEMENT must be a single character, got %q",
			str,
		)
	}
	return r[0], nil
}
