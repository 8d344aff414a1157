// Package search indexes session records for the facilitator history view.
package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/blugelabs/bluge"
	blugesearch "github.com/blugelabs/bluge/search"

	"tink/domain"
)

const (
	fieldID          = "_id"
	fieldTitle       = "title"
	fieldDescription = "description"
	fieldState       = "state"
	fieldCreatedAt   = "created_at"
)

type ISessionIndex interface {
	Index(session domain.Session) error
	Delete(sessionID string) error
	Search(ctx context.Context, query Query) ([]Hit, error)
}

// Hit is one session matching a query.
type Hit struct {
	SessionID string
	Title     string
	State     string
	CreatedAt time.Time
	Score     float64
}

type SessionIndex struct {
	writer *bluge.Writer
	log    *slog.Logger
}

func NewSessionIndex(writer *bluge.Writer, log *slog.Logger) *SessionIndex {
	return &SessionIndex{writer: writer, log: log}
}

// Index adds or replaces the document of a session.
func (i *SessionIndex) Index(session domain.Session) error {
	doc := bluge.NewDocument(session.ID).
		AddField(bluge.NewTextField(fieldTitle, session.Title).StoreValue()).
		AddField(bluge.NewTextField(fieldDescription, session.Description)).
		AddField(bluge.NewKeywordField(fieldState, session.State.String()).StoreValue()).
		AddField(bluge.NewDateTimeField(fieldCreatedAt, session.CreatedAt).StoreValue().Sortable())
	return i.writer.Update(doc.ID(), doc)
}

func (i *SessionIndex) Delete(sessionID string) error {
	return i.writer.Delete(bluge.Identifier(sessionID))
}

// Search returns matching sessions, newest first. An empty query lists everything.
func (i *SessionIndex) Search(ctx context.Context, query Query) ([]Hit, error) {
	reader, err := i.writer.Reader()
	if err != nil {
		return nil, err
	}
	defer func() { _ = reader.Close() }()

	hits, err := Search(ctx, reader, query)
	if err != nil {
		return nil, err
	}
	i.log.Debug("Session search done", "terms", query.Terms, "state", query.State, "hits", len(hits))
	return hits, nil
}

// Search runs query against any reader, including one opened read-only
// next to a running writer.
func Search(ctx context.Context, reader *bluge.Reader, query Query) ([]Hit, error) {
	limit := query.Limit
	if limit <= 0 {
		limit = defaultLimit
	}
	request := bluge.NewTopNSearch(limit, buildQuery(query)).SortBy([]string{"-" + fieldCreatedAt})

	iterator, err := reader.Search(ctx, request)
	if err != nil {
		return nil, err
	}

	var hits []Hit
	match, err := iterator.Next()
	for err == nil && match != nil {
		hit, visitErr := toHit(match)
		if visitErr != nil {
			return nil, visitErr
		}
		hits = append(hits, hit)
		match, err = iterator.Next()
	}
	if err != nil {
		return nil, err
	}
	return hits, nil
}

func buildQuery(query Query) bluge.Query {
	if query.Terms == "" && query.State == "" {
		return bluge.NewMatchAllQuery()
	}
	root := bluge.NewBooleanQuery()
	if query.Terms != "" {
		text := bluge.NewBooleanQuery().
			AddShould(bluge.NewMatchQuery(query.Terms).SetField(fieldTitle)).
			AddShould(bluge.NewMatchQuery(query.Terms).SetField(fieldDescription)).
			SetMinShould(1)
		root.AddMust(text)
	}
	if query.State != "" {
		root.AddMust(bluge.NewTermQuery(query.State).SetField(fieldState))
	}
	return root
}

func toHit(match *blugesearch.DocumentMatch) (Hit, error) {
	hit := Hit{Score: match.Score}
	var decodeErr error
	err := match.VisitStoredFields(func(field string, value []byte) bool {
		switch field {
		case fieldID:
			hit.SessionID = string(value)
		case fieldTitle:
			hit.Title = string(value)
		case fieldState:
			hit.State = string(value)
		case fieldCreatedAt:
			hit.CreatedAt, decodeErr = bluge.DecodeDateTime(value)
		}
		return decodeErr == nil
	})
	if err != nil {
		return Hit{}, err
	}
	return hit, decodeErr
}
