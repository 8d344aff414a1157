// Package services exposes the facilitation core to a transport layer.
// Every command is authorized with a session-scoped bearer token.
package services

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"

	"github.com/samber/lo"

	"tink/auth"
	"tink/contract"
	"tink/domain"
	"tink/errors"
	"tink/repositories"
	"tink/runtime"
	"tink/search"
)

// SessionHost keeps the live sessions. *runtime.Orchestrator implements it.
type SessionHost interface {
	CreateSession(input domain.CreateSessionInput) (*runtime.Session, error)
	Session(id string) (*runtime.Session, error)
	RegisterParticipant(subscriberID, sessionID string, sink contract.EventSink)
	UnregisterParticipant(subscriberID, sessionID string)
}

type SessionCredentials struct {
	SessionID     string
	FacilitatorID string
	Token         string
}

type ParticipantCredentials struct {
	SessionID     string
	ParticipantID string
	// Admitted is false while the participant sits in the waiting room.
	Admitted bool
	Token    string
}

type FacilitationService struct {
	log             *slog.Logger
	host            SessionHost
	tokens          *auth.TokenIssuer
	sessions        repositories.ISessionRepository
	messages        repositories.IMessageRepository
	summaries       repositories.ISummaryRepository
	index           search.ISessionIndex
	defaultDuration int
}

func NewFacilitationService(
	log *slog.Logger,
	host SessionHost,
	tokens *auth.TokenIssuer,
	sessions repositories.ISessionRepository,
	messages repositories.IMessageRepository,
	summaries repositories.ISummaryRepository,
	index search.ISessionIndex,
	defaultDuration int,
) *FacilitationService {
	if defaultDuration <= 0 {
		defaultDuration = runtime.DefaultDurationMinutes
	}
	return &FacilitationService{
		log:             log,
		host:            host,
		tokens:          tokens,
		sessions:        sessions,
		messages:        messages,
		summaries:       summaries,
		index:           index,
		defaultDuration: defaultDuration,
	}
}

// CreateSession opens an Inactive session and returns the facilitator credentials.
func (f *FacilitationService) CreateSession(_ context.Context, req auth.SessionRequest) (SessionCredentials, error) {
	if err := auth.ValidateSession(req); err != nil {
		return SessionCredentials{}, err
	}
	session, err := f.host.CreateSession(domain.CreateSessionInput{
		Title:           req.Title,
		Description:     req.Description,
		DurationMinutes: lo.FromPtrOr(req.DurationMinutes, f.defaultDuration),
		MaxParticipants: req.MaxParticipants,
	})
	if err != nil {
		return SessionCredentials{}, err
	}
	token, err := f.tokens.Issue(session.ID(), domain.FacilitatorID, auth.ScopeFacilitator)
	if err != nil {
		return SessionCredentials{}, err
	}
	f.log.Info("Session created", "session_id", session.ID())
	return SessionCredentials{SessionID: session.ID(), FacilitatorID: domain.FacilitatorID, Token: token}, nil
}

// Join enters the waiting room of a session, or the session itself once started.
func (f *FacilitationService) Join(_ context.Context, sessionID, name string) (ParticipantCredentials, error) {
	if err := auth.ValidateJoin(auth.JoinRequest{Name: name}); err != nil {
		return ParticipantCredentials{}, err
	}
	session, err := f.host.Session(sessionID)
	if err != nil {
		return ParticipantCredentials{}, err
	}
	id, admitted, err := session.Join(name)
	if err != nil {
		return ParticipantCredentials{}, err
	}
	token, err := f.tokens.Issue(sessionID, id, auth.ScopeParticipant)
	if err != nil {
		return ParticipantCredentials{}, err
	}
	return ParticipantCredentials{SessionID: sessionID, ParticipantID: id, Admitted: admitted, Token: token}, nil
}

// Subscribe registers sink for every event of the session the token belongs to.
// The subscription ends when the participant leaves or the session is evicted.
func (f *FacilitationService) Subscribe(_ context.Context, token, sessionID string, sink contract.EventSink) error {
	claims, err := f.observe(token, sessionID)
	if err != nil {
		return err
	}
	if _, err := f.host.Session(sessionID); err != nil {
		return err
	}
	f.host.RegisterParticipant(claims.ParticipantID, sessionID, sink)
	return nil
}

func (f *FacilitationService) Start(_ context.Context, token, sessionID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.StartConfigured()
}

func (f *FacilitationService) Pause(_ context.Context, token, sessionID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.Pause()
}

func (f *FacilitationService) Resume(_ context.Context, token, sessionID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.Resume()
}

func (f *FacilitationService) End(_ context.Context, token, sessionID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.End()
}

func (f *FacilitationService) SetDuration(_ context.Context, token, sessionID string, minutes int) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.SetDuration(minutes)
}

func (f *FacilitationService) Admit(_ context.Context, token, sessionID, participantID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.Admit(participantID)
}

func (f *FacilitationService) AdmitAll(_ context.Context, token, sessionID string) ([]string, error) {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return nil, err
	}
	return session.AdmitAll()
}

func (f *FacilitationService) AssignRole(_ context.Context, token, sessionID, participantID string, role domain.Role) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.AssignRole(participantID, role)
}

func (f *FacilitationService) AssignGlobalRole(_ context.Context, token, sessionID string, role domain.Role) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.AssignGlobalRole(role)
}

func (f *FacilitationService) ClearGlobalRole(_ context.Context, token, sessionID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.ClearGlobalRole()
}

func (f *FacilitationService) Reshuffle(_ context.Context, token, sessionID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.ReshuffleRoles()
}

func (f *FacilitationService) GrantFloor(_ context.Context, token, sessionID, participantID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.GrantFloor(participantID)
}

func (f *FacilitationService) RevokeFloor(_ context.Context, token, sessionID, participantID string) error {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return err
	}
	return session.RevokeFloor(participantID)
}

// SendFacilitatorMessage posts under any hat, Process when role is RoleNone.
func (f *FacilitationService) SendFacilitatorMessage(_ context.Context, token, sessionID, text string, role domain.Role) (domain.Message, error) {
	session, err := f.facilitate(token, sessionID)
	if err != nil {
		return domain.Message{}, err
	}
	return session.SendMessage(domain.FacilitatorID, text, role)
}

func (f *FacilitationService) RequestFloor(_ context.Context, token, sessionID string) error {
	session, claims, err := f.participate(token, sessionID)
	if err != nil {
		return err
	}
	return session.RequestFloor(claims.ParticipantID)
}

// QueueForFloor returns the queue position, 0 when the floor was granted at once.
func (f *FacilitationService) QueueForFloor(_ context.Context, token, sessionID string) (int, error) {
	session, claims, err := f.participate(token, sessionID)
	if err != nil {
		return 0, err
	}
	return session.QueueForFloor(claims.ParticipantID)
}

func (f *FacilitationService) ReleaseFloor(_ context.Context, token, sessionID string) error {
	session, claims, err := f.participate(token, sessionID)
	if err != nil {
		return err
	}
	return session.ReleaseFloor(claims.ParticipantID)
}

// SendMessage posts as the caller. RoleNone means the caller's current hat.
func (f *FacilitationService) SendMessage(_ context.Context, token, sessionID, text string, role domain.Role) (domain.Message, error) {
	session, claims, err := f.participate(token, sessionID)
	if err != nil {
		return domain.Message{}, err
	}
	return session.SendMessage(claims.ParticipantID, text, role)
}

func (f *FacilitationService) Leave(_ context.Context, token, sessionID string) error {
	session, claims, err := f.participate(token, sessionID)
	if err != nil {
		return err
	}
	if err := session.Leave(claims.ParticipantID); err != nil {
		return err
	}
	f.host.UnregisterParticipant(claims.ParticipantID, sessionID)
	return nil
}

// GetSessionState returns the live snapshot, or the persisted record once
// the session has left memory.
func (f *FacilitationService) GetSessionState(_ context.Context, token, sessionID string) (domain.Session, error) {
	if _, err := f.observe(token, sessionID); err != nil {
		return domain.Session{}, err
	}
	session, err := f.host.Session(sessionID)
	if stderrors.Is(err, errors.ErrSessionNotFound) {
		return f.sessions.GetSession(sessionID)
	}
	if err != nil {
		return domain.Session{}, err
	}
	return session.Snapshot(), nil
}

func (f *FacilitationService) ListParticipants(_ context.Context, token, sessionID string) ([]domain.Participant, error) {
	session, err := f.live(token, sessionID)
	if err != nil {
		return nil, err
	}
	return session.Participants(), nil
}

func (f *FacilitationService) ListWaitingRoom(_ context.Context, token, sessionID string) ([]domain.WaitingEntry, error) {
	session, err := f.live(token, sessionID)
	if err != nil {
		return nil, err
	}
	return session.WaitingRoom(), nil
}

func (f *FacilitationService) Floor(_ context.Context, token, sessionID string) (domain.Floor, error) {
	session, err := f.live(token, sessionID)
	if err != nil {
		return domain.Floor{}, err
	}
	return session.Floor(), nil
}

// ListMessages returns every message in posting order.
func (f *FacilitationService) ListMessages(_ context.Context, token, sessionID string) ([]domain.Message, error) {
	if _, err := f.observe(token, sessionID); err != nil {
		return nil, err
	}
	session, err := f.host.Session(sessionID)
	if stderrors.Is(err, errors.ErrSessionNotFound) {
		return f.messages.GetAllMessages(sessionID)
	}
	if err != nil {
		return nil, err
	}
	return session.Messages(), nil
}

// MessageHistory pages through the persisted log, newest first.
func (f *FacilitationService) MessageHistory(_ context.Context, token, sessionID string, cursor *string) ([]domain.Message, *string, error) {
	if _, err := f.observe(token, sessionID); err != nil {
		return nil, nil, err
	}
	return f.messages.GetMessages(sessionID, cursor)
}

func (f *FacilitationService) GetSummary(_ context.Context, token, sessionID string) (domain.Summary, error) {
	if _, err := f.observe(token, sessionID); err != nil {
		return domain.Summary{}, err
	}
	return f.summary(sessionID)
}

// ExportSummary renders the summary as markdown along with a file name for it.
func (f *FacilitationService) ExportSummary(ctx context.Context, token, sessionID string) (string, string, error) {
	record, err := f.GetSessionState(ctx, token, sessionID)
	if err != nil {
		return "", "", err
	}
	summary, err := f.summary(sessionID)
	if err != nil {
		return "", "", err
	}
	participants, err := f.participantCount(sessionID)
	if err != nil {
		return "", "", err
	}
	return domain.SummaryFileName(record.Title), domain.RenderSummaryMarkdown(record, summary, participants), nil
}

// SearchSessions runs a history query such as "bottle --state ended --limit 5".
func (f *FacilitationService) SearchSessions(ctx context.Context, input string) ([]search.Hit, error) {
	return f.index.Search(ctx, search.NewQuery(input))
}

func (f *FacilitationService) summary(sessionID string) (domain.Summary, error) {
	session, err := f.host.Session(sessionID)
	if stderrors.Is(err, errors.ErrSessionNotFound) {
		return f.summaries.GetSummary(sessionID)
	}
	if err != nil {
		return domain.Summary{}, err
	}
	return session.Summary()
}

// participantCount falls back to distinct message senders once the session
// left memory, since the participant list is not persisted.
func (f *FacilitationService) participantCount(sessionID string) (int, error) {
	session, err := f.host.Session(sessionID)
	if err == nil {
		return len(session.Participants()), nil
	}
	if !stderrors.Is(err, errors.ErrSessionNotFound) {
		return 0, err
	}
	messages, err := f.messages.GetAllMessages(sessionID)
	if err != nil {
		return 0, err
	}
	return domain.CountParticipants(messages), nil
}

func (f *FacilitationService) facilitate(token, sessionID string) (*runtime.Session, error) {
	if _, err := f.tokens.Authorize(token, sessionID, auth.ScopeFacilitator); err != nil {
		return nil, err
	}
	return f.host.Session(sessionID)
}

func (f *FacilitationService) participate(token, sessionID string) (*runtime.Session, *auth.Claims, error) {
	claims, err := f.tokens.Authorize(token, sessionID, auth.ScopeParticipant)
	if err != nil {
		return nil, nil, err
	}
	session, err := f.host.Session(sessionID)
	if err != nil {
		return nil, nil, err
	}
	return session, claims, nil
}

// observe accepts any token issued for the session, whatever its scope.
func (f *FacilitationService) observe(token, sessionID string) (*auth.Claims, error) {
	claims, err := f.tokens.Validate(token)
	if err != nil {
		return nil, err
	}
	if claims.SessionID != sessionID {
		return nil, fmt.Errorf("%w: token belongs to another session", errors.ErrForbidden)
	}
	return claims, nil
}

func (f *FacilitationService) live(token, sessionID string) (*runtime.Session, error) {
	if _, err := f.observe(token, sessionID); err != nil {
		return nil, err
	}
	return f.host.Session(sessionID)
}
