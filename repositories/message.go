//go:generate go run go.uber.org/mock/mockgen -source=message.go -destination=../mocks/mock_message_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"github.com/samber/lo"

	"tink/domain"
)

type IMessageRepository interface {
	StoreMessage(message domain.Message) error
	GetMessages(sessionID string, cursor *string) ([]domain.Message, *string, error)
	GetAllMessages(sessionID string) ([]domain.Message, error)
}

type MessageRepository struct {
	db            *badger.DB
	log           *slog.Logger
	limitMessages *int
}

func NewMessageRepository(db *badger.DB, log *slog.Logger, limitMessages *int) MessageRepository {
	return MessageRepository{db: db, log: log, limitMessages: limitMessages}
}

// DiskMessage is the stored form of a message.
type DiskMessage struct {
	ID        uuid.UUID `json:"id"`
	SessionID string    `json:"session_id"`
	SenderID  string    `json:"sender_id"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Role      string    `json:"role,omitempty"`
	Language  string    `json:"language,omitempty"`
	At        int64     `json:"at"`
}

func messagePrefix(sessionID string) string {
	return fmt.Sprintf("msg:%s:", sessionID)
}

// StoreMessage persists a message under "msg:{session_id}:{unix_nano_padded}:{uuid}".
// The 19-digit padding keeps keys in chronological order; the uuid separates
// two messages posted in the same nanosecond.
func (m MessageRepository) StoreMessage(message domain.Message) error {
	key := fmt.Sprintf("%s%019d:%s",
		messagePrefix(message.SessionID),
		message.CreatedAt.UnixNano(),
		message.ID,
	)
	bytes, err := json.Marshal(toDiskMessage(message))
	if err != nil {
		return err
	}
	return m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), bytes)
	})
}

// GetMessages pages backwards through a session's messages, newest first.
// The returned cursor is passed back to fetch the next, older page.
func (m MessageRepository) GetMessages(sessionID string, cursor *string) ([]domain.Message, *string, error) {
	var byteMessages [][]byte
	var lastKey string
	err := m.db.View(func(txn *badger.Txn) error {
		prefixStr := messagePrefix(sessionID)
		prefix := []byte(prefixStr)
		prefixLen := len(prefixStr)
		options := badger.DefaultIteratorOptions
		options.Reverse = true
		it := txn.NewIterator(options)
		defer it.Close()

		var seekKey []byte
		switch cursor {
		case nil:
			// Start past the newest possible key and walk back
			seekKey = append([]byte(prefixStr), []byte("9999999999999999999")...)
		default:
			seekKey = append([]byte(prefixStr), []byte(*cursor)...)
		}

		it.Seek(seekKey)
		if cursor != nil && it.ValidForPrefix(prefix) {
			it.Next()
		}

		for ; it.ValidForPrefix(prefix); it.Next() {
			if m.limitMessages != nil && len(byteMessages) == *m.limitMessages {
				m.log.Debug(fmt.Sprintf("Maximum of %d message reached", *m.limitMessages))
				break
			}
			item := it.Item()
			lastKey = string(item.Key()[prefixLen:])
			value, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			byteMessages = append(byteMessages, value)
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	messages, err := decodeMessages(byteMessages)
	if err != nil {
		return nil, nil, err
	}
	return messages, &lastKey, nil
}

// GetAllMessages returns the full log of a session in posting order.
func (m MessageRepository) GetAllMessages(sessionID string) ([]domain.Message, error) {
	var byteMessages [][]byte
	err := m.db.View(func(txn *badger.Txn) error {
		prefix := []byte(messagePrefix(sessionID))
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			value, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			byteMessages = append(byteMessages, value)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decodeMessages(byteMessages)
}

func decodeMessages(raw [][]byte) ([]domain.Message, error) {
	messages := make([]domain.Message, 0, len(raw))
	for _, b := range raw {
		var dm DiskMessage
		if err := json.Unmarshal(b, &dm); err != nil {
			return nil, err
		}
		message, err := fromDiskMessage(dm)
		if err != nil {
			return nil, err
		}
		messages = append(messages, message)
	}
	return messages, nil
}

func toDiskMessage(message domain.Message) DiskMessage {
	return DiskMessage{
		ID:        message.ID,
		SessionID: message.SessionID,
		SenderID:  message.SenderID,
		Sender:    message.Sender,
		Text:      message.Text,
		Role:      lo.Ternary(message.Role == domain.RoleNone, "", message.Role.Color()),
		Language:  message.Language,
		At:        message.CreatedAt.UnixNano(),
	}
}

func fromDiskMessage(dm DiskMessage) (domain.Message, error) {
	role, err := domain.ParseRole(dm.Role)
	if err != nil {
		return domain.Message{}, err
	}
	return domain.Message{
		ID:        dm.ID,
		SessionID: dm.SessionID,
		SenderID:  dm.SenderID,
		Sender:    dm.Sender,
		Text:      dm.Text,
		Role:      role,
		Language:  dm.Language,
		CreatedAt: time.Unix(0, dm.At).UTC(),
	}, nil
}
