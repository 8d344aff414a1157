package repositories

import (
	"log/slog"
	"testing"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"

	"tink/domain"
)

func openDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func newMessages(sessionID string, at time.Time, senders ...string) []domain.Message {
	roles := domain.AssignableRoles()
	var out []domain.Message
	for i, sender := range senders {
		out = append(out, domain.Message{
			ID:        uuid.New(),
			SessionID: sessionID,
			SenderID:  "id-" + sender,
			Sender:    sender,
			Text:      "point from " + sender,
			Role:      roles[i%len(roles)],
			Language:  "en",
			CreatedAt: at.Add(time.Duration(i) * time.Minute),
		})
	}
	return out
}

func Test_Record_Multiple_Message(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelError), nil)
	at := time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC)
	messages := newMessages("s1", at, "Alice", "Bob", "Clara")

	for _, m := range messages {
		req.NoError(repository.StoreMessage(m))
	}
	// Another session does not leak in
	req.NoError(repository.StoreMessage(newMessages("s2", at, "Eve")[0]))

	all, err := repository.GetAllMessages("s1")
	req.NoError(err)
	req.Equal(messages, all)

	newestFirst, cursor, err := repository.GetMessages("s1", nil)
	req.NoError(err)
	req.NotNil(cursor)
	req.Equal([]domain.Message{messages[2], messages[1], messages[0]}, newestFirst)
}

func Test_Record_Multiple_Message_And_Paginate(t *testing.T) {
	req := require.New(t)
	limit := 2
	repository := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelError), &limit)
	messages := newMessages("s1", time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), "Alice", "Bob", "Clara")
	for _, m := range messages {
		req.NoError(repository.StoreMessage(m))
	}

	page, cursor, err := repository.GetMessages("s1", nil)
	req.NoError(err)
	req.Equal([]domain.Message{messages[2], messages[1]}, page)

	page, _, err = repository.GetMessages("s1", cursor)
	req.NoError(err)
	req.Equal([]domain.Message{messages[0]}, page)
}

func Test_Message_Without_Role_Round_Trips(t *testing.T) {
	req := require.New(t)
	repository := NewMessageRepository(openDB(t), logs.GetLoggerFromLevel(slog.LevelError), nil)
	m := newMessages("s1", time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC), "Alice")[0]
	m.Role = domain.RoleNone

	req.NoError(repository.StoreMessage(m))
	all, err := repository.GetAllMessages("s1")
	req.NoError(err)
	req.Equal([]domain.Message{m}, all)
}
