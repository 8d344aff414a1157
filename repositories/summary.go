//go:generate go run go.uber.org/mock/mockgen -source=summary.go -destination=../mocks/mock_summary_repository.go -package=mocks
package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/dgraph-io/badger/v4"

	"tink/domain"
	"tink/errors"
)

type ISummaryRepository interface {
	SaveSummary(summary domain.Summary) error
	GetSummary(sessionID string) (domain.Summary, error)
}

// SummaryRepository stores the end-of-session summary under "summary:{session_id}".
type SummaryRepository struct {
	db  *badger.DB
	log *slog.Logger
}

func NewSummaryRepository(db *badger.DB, log *slog.Logger) SummaryRepository {
	return SummaryRepository{db: db, log: log}
}

func (r SummaryRepository) SaveSummary(summary domain.Summary) error {
	bytes, err := json.Marshal(summary)
	if err != nil {
		return err
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte("summary:"+summary.SessionID), bytes)
	})
}

func (r SummaryRepository) GetSummary(sessionID string) (domain.Summary, error) {
	var summary domain.Summary
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte("summary:" + sessionID))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &summary)
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Summary{}, fmt.Errorf("%w: %s", errors.ErrSummaryUnavailable, sessionID)
	}
	return summary, err
}
