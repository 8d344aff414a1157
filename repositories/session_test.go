package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"tink/domain"
	"tink/errors"
)

func Test_Session_Save_Get_List(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelError))
	created := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)

	older := domain.Session{
		ID: "s1", Title: "Older", State: domain.SessionStateEnded, DurationMinutes: 20,
		MaxParticipants: 30, CreatedAt: created,
		StartedAt: lo.ToPtr(created), EndedAt: lo.ToPtr(created.Add(20 * time.Minute)),
		EndReason: domain.EndReasonTimeout,
	}
	newer := domain.Session{
		ID: "s2", Title: "Newer", State: domain.SessionStateInactive, DurationMinutes: 10,
		MaxParticipants: 5, GlobalRole: domain.RoleFacts, CreatedAt: created.Add(time.Hour),
	}
	req.NoError(repository.SaveSession(older))
	req.NoError(repository.SaveSession(newer))

	got, err := repository.GetSession("s1")
	req.NoError(err)
	req.Equal(older, got)

	all, err := repository.ListSessions()
	req.NoError(err)
	req.Equal([]domain.Session{newer, older}, all)

	// Saving again replaces the snapshot
	newer.State = domain.SessionStateActive
	newer.RemainingSeconds = lo.ToPtr(600)
	req.NoError(repository.SaveSession(newer))
	got, err = repository.GetSession("s2")
	req.NoError(err)
	req.Equal(newer, got)

	_, err = repository.GetSession("missing")
	req.ErrorIs(err, errors.ErrSessionNotFound)
}
