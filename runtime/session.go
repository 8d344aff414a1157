package runtime

import (
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"tink/clock"
	"tink/contract"
	"tink/domain"
	"tink/domain/event"
	"tink/errors"
)

// Session is the single writer of one facilitated discussion. It owns the
// lifecycle, the floor, role assignment, the waiting room and the message log.
// Every command runs under one mutex, so commands are applied one at a time
// and queries return deep copies. Events are published in emission order
// once a command has been applied.
type Session struct {
	mu        sync.Mutex
	log       *slog.Logger
	opts      SessionOptions
	clock     clock.Clock
	rng       domain.Shuffler
	publisher contract.EventPublisher

	record    domain.Session
	remaining int

	participants []*domain.Participant
	byID         map[string]*domain.Participant
	waiting      []domain.WaitingEntry

	floor    *FloorArbitrator
	messages []domain.Message
	summary  *domain.Summary

	countdown    clock.Timer
	countdownGen uint64

	outbox []event.DomainEvent
}

// NewSession creates an Inactive session and publishes SessionCreated.
// A zero MaxParticipants in input falls back to the options default.
func NewSession(log *slog.Logger, input domain.CreateSessionInput, opts SessionOptions, publisher contract.EventPublisher) (*Session, error) {
	opts = opts.withDefaults()
	if input.MaxParticipants == 0 {
		input.MaxParticipants = opts.MaxParticipants
	}
	record, err := domain.NewSession(input, opts.Clock.Now, opts.NewID)
	if err != nil {
		return nil, err
	}
	s := &Session{
		log:       log.With("session_id", record.ID),
		opts:      opts,
		clock:     opts.Clock,
		rng:       opts.NewShuffler(),
		publisher: publisher,
		record:    record,
		byID:      make(map[string]*domain.Participant),
	}
	s.floor = NewFloorArbitrator(s, opts)

	_ = s.apply(func() error {
		s.emit(event.SessionCreated{Lifecycle: s.lifecycle()})
		return nil
	})
	s.log.Info("Session created", "title", record.Title, "duration_minutes", record.DurationMinutes)
	return s, nil
}

func (s *Session) ID() string { return s.record.ID }

// apply runs a command under the lock and publishes what it emitted.
// Publishing happens before the lock is released so that sinks see events
// in the order commands were applied; the publisher must not block.
// A command that fails must not have emitted anything.
func (s *Session) apply(cmd func() error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	err := cmd()
	events := s.outbox
	s.outbox = nil
	if len(events) > 0 && s.publisher != nil {
		s.publisher.Publish(events...)
	}
	return err
}

// Start moves an Inactive session to Active with a fresh countdown of
// durationMinutes, admitting everyone in the waiting room.
func (s *Session) Start(durationMinutes int) error {
	return s.apply(func() error { return s.start(durationMinutes) })
}

// StartConfigured starts the session with its configured duration.
func (s *Session) StartConfigured() error {
	return s.apply(func() error { return s.start(s.record.DurationMinutes) })
}

func (s *Session) start(durationMinutes int) error {
	if s.record.State != domain.SessionStateInactive {
		return s.invalidTransition("start")
	}
	if durationMinutes <= 0 {
		return fmt.Errorf("%w: got %d", errors.ErrInvalidDuration, durationMinutes)
	}
	now := s.clock.Now()
	admitted := make([]string, 0, len(s.waiting))
	for _, w := range slices.Clone(s.waiting) {
		s.admit(w)
		admitted = append(admitted, w.ID)
	}
	s.record.DurationMinutes = durationMinutes
	s.record.State = domain.SessionStateActive
	s.record.StartedAt = lo.ToPtr(now.UTC())
	s.remaining = durationMinutes * 60
	s.floor.Open()
	s.armCountdown()

	s.emit(event.SessionStarted{Lifecycle: s.lifecycle(), Admitted: admitted})
	s.log.Info("Session started", "duration_minutes", durationMinutes, "participants", len(s.participants))
	return nil
}

// Pause freezes the countdown and the floor. The current speaker loses the
// floor and everyone returns to Idle.
func (s *Session) Pause() error {
	return s.apply(func() error {
		if s.record.State != domain.SessionStateActive {
			return s.invalidTransition("pause")
		}
		s.stopCountdown()
		s.floor.Close(event.ReleaseReasonPaused)
		s.record.State = domain.SessionStatePaused
		s.emit(event.SessionPaused{Lifecycle: s.lifecycle()})
		s.log.Info("Session paused", "remaining_seconds", s.remaining)
		return nil
	})
}

// Resume restarts the countdown from where it stopped. Nobody gets the floor back.
func (s *Session) Resume() error {
	return s.apply(func() error {
		if s.record.State != domain.SessionStatePaused {
			return s.invalidTransition("resume")
		}
		s.record.State = domain.SessionStateActive
		s.floor.Open()
		s.armCountdown()
		s.emit(event.SessionResumed{Lifecycle: s.lifecycle()})
		s.log.Info("Session resumed", "remaining_seconds", s.remaining)
		return nil
	})
}

// Tick decrements the countdown by one second. It is a no-op unless the
// session is Active, and ends the session when the countdown reaches zero.
func (s *Session) Tick() {
	_ = s.apply(func() error {
		s.tick()
		return nil
	})
}

func (s *Session) tick() {
	if s.record.State != domain.SessionStateActive {
		return
	}
	if s.remaining > 0 {
		s.remaining--
	}
	if s.remaining == 0 {
		s.end(domain.EndReasonTimeout)
	}
}

// End closes an Active or Paused session and builds its summary.
func (s *Session) End() error {
	return s.apply(func() error {
		if !s.record.IsOpen() {
			return s.invalidTransition("end")
		}
		s.end(domain.EndReasonManual)
		return nil
	})
}

// Abandon ends a session that was never started. No summary is produced.
func (s *Session) Abandon() error {
	return s.apply(func() error {
		if s.record.State != domain.SessionStateInactive {
			return s.invalidTransition("abandon")
		}
		s.record.State = domain.SessionStateEnded
		s.record.EndedAt = lo.ToPtr(s.clock.Now().UTC())
		s.record.EndReason = domain.EndReasonAbandoned
		s.emit(event.SessionEnded{Lifecycle: s.lifecycle(), Reason: domain.EndReasonAbandoned})
		s.log.Info("Session abandoned")
		return nil
	})
}

func (s *Session) end(reason domain.EndReason) {
	now := s.clock.Now()
	s.stopCountdown()
	s.floor.Close(event.ReleaseReasonEnded)
	s.clearRoles()
	s.record.State = domain.SessionStateEnded
	s.record.EndedAt = lo.ToPtr(now.UTC())
	s.record.EndReason = reason
	s.emit(event.SessionEnded{Lifecycle: s.lifecycle(), Reason: reason})

	if len(s.messages) > 0 {
		summary := domain.BuildSummary(s.record.ID, s.messages, s.opts.SummaryMaxPoints, s.opts.ActionPoints, now)
		s.summary = &summary
		s.emit(event.SummaryGenerated{Base: s.eventBase(), Summary: cloneSummary(summary)})
	}
	s.log.Info("Session ended", "reason", reason, "messages", len(s.messages))
}

// SetDuration changes the configured duration. On a running or paused
// session it also resets the remaining time to the new full duration.
func (s *Session) SetDuration(minutes int) error {
	return s.apply(func() error {
		if minutes <= 0 {
			return fmt.Errorf("%w: got %d", errors.ErrInvalidDuration, minutes)
		}
		if s.record.State == domain.SessionStateEnded {
			return s.invalidTransition("set duration")
		}
		s.record.DurationMinutes = minutes
		if s.record.IsOpen() {
			s.remaining = minutes * 60
		}
		s.emit(event.DurationChanged{Lifecycle: s.lifecycle()})
		return nil
	})
}

// Join adds someone to the session. Before the start they wait for
// admission; afterwards they are admitted at once.
func (s *Session) Join(name string) (id string, admitted bool, err error) {
	err = s.apply(func() error {
		normalized, err := domain.NormalizeName(name)
		if err != nil {
			return err
		}
		if s.record.State == domain.SessionStateEnded {
			return s.invalidTransition("join")
		}
		if len(s.participants)+len(s.waiting) >= s.record.MaxParticipants {
			return fmt.Errorf("%w: capacity %d", errors.ErrSessionFull, s.record.MaxParticipants)
		}
		entry := domain.WaitingEntry{ID: s.opts.NewID(), Name: normalized, JoinedAt: s.clock.Now().UTC()}
		id = entry.ID
		admitted = s.record.IsOpen()
		s.emit(event.ParticipantJoined{Base: s.eventBase(), ParticipantID: entry.ID, Name: entry.Name, Admitted: admitted})
		if admitted {
			s.admit(entry)
		} else {
			s.waiting = append(s.waiting, entry)
		}
		return nil
	})
	return id, admitted, err
}

// Admit moves one waiting entry into the participant list.
func (s *Session) Admit(id string) error {
	return s.apply(func() error {
		if s.record.State == domain.SessionStateEnded {
			return s.invalidTransition("admit")
		}
		idx := slices.IndexFunc(s.waiting, func(w domain.WaitingEntry) bool { return w.ID == id })
		if idx < 0 {
			return fmt.Errorf("%w: %s is not waiting", errors.ErrNotFound, id)
		}
		s.admit(s.waiting[idx])
		return nil
	})
}

// AdmitAll admits the whole waiting room and returns the admitted ids.
func (s *Session) AdmitAll() ([]string, error) {
	var admitted []string
	err := s.apply(func() error {
		if s.record.State == domain.SessionStateEnded {
			return s.invalidTransition("admit")
		}
		for _, w := range slices.Clone(s.waiting) {
			s.admit(w)
			admitted = append(admitted, w.ID)
		}
		return nil
	})
	return admitted, err
}

func (s *Session) admit(w domain.WaitingEntry) {
	s.waiting = slices.DeleteFunc(s.waiting, func(e domain.WaitingEntry) bool { return e.ID == w.ID })
	p := &domain.Participant{
		ID:         w.ID,
		Name:       w.Name,
		Role:       s.record.GlobalRole,
		Status:     domain.SpeakingStatusIdle,
		JoinedAt:   w.JoinedAt,
		AdmittedAt: s.clock.Now().UTC(),
	}
	s.participants = append(s.participants, p)
	s.byID[p.ID] = p
	s.emit(event.ParticipantAdmitted{Base: s.eventBase(), ParticipantID: p.ID, Name: p.Name})
}

// Leave removes a participant or waiting entry, releasing the floor it held.
func (s *Session) Leave(id string) error {
	return s.apply(func() error {
		if idx := slices.IndexFunc(s.waiting, func(w domain.WaitingEntry) bool { return w.ID == id }); idx >= 0 {
			s.waiting = slices.Delete(s.waiting, idx, idx+1)
			s.emit(event.ParticipantLeft{Base: s.eventBase(), ParticipantID: id, Waiting: true})
			return nil
		}
		if _, ok := s.byID[id]; !ok {
			return fmt.Errorf("%w: %s", errors.ErrNotFound, id)
		}
		s.floor.Release(id, event.ReleaseReasonLeft)
		delete(s.byID, id)
		s.participants = slices.DeleteFunc(s.participants, func(p *domain.Participant) bool { return p.ID == id })
		s.emit(event.ParticipantLeft{Base: s.eventBase(), ParticipantID: id})
		return nil
	})
}

// RequestFloor lets a participant take a free floor.
func (s *Session) RequestFloor(participantID string) error {
	return s.apply(func() error { return s.floor.Request(participantID) })
}

// QueueForFloor puts a participant in the waiting-to-speak queue and
// returns its position, 0 when the floor was granted right away.
func (s *Session) QueueForFloor(participantID string) (int, error) {
	var pos int
	err := s.apply(func() error {
		var err error
		pos, err = s.floor.Enqueue(participantID)
		return err
	})
	return pos, err
}

// ReleaseFloor ends the caller's turn or withdraws it from the queue.
func (s *Session) ReleaseFloor(participantID string) error {
	return s.apply(func() error {
		if _, ok := s.byID[participantID]; !ok {
			return fmt.Errorf("%w: %s", errors.ErrNotFound, participantID)
		}
		s.floor.Release(participantID, event.ReleaseReasonReleased)
		return nil
	})
}

// GrantFloor is the facilitator handing the floor to a participant.
func (s *Session) GrantFloor(participantID string) error {
	return s.apply(func() error { return s.floor.Grant(participantID) })
}

// RevokeFloor is the facilitator taking the floor back.
func (s *Session) RevokeFloor(participantID string) error {
	return s.apply(func() error {
		if _, ok := s.byID[participantID]; !ok {
			return fmt.Errorf("%w: %s", errors.ErrNotFound, participantID)
		}
		s.floor.Release(participantID, event.ReleaseReasonRevoked)
		return nil
	})
}

func (s *Session) expireFloor(grantID uint64) {
	_ = s.apply(func() error {
		if s.floor.Expire(grantID) {
			s.log.Info("Speaking time expired")
		}
		return nil
	})
}

// AssignRole gives one participant a hat. The facilitator hat is never assignable.
func (s *Session) AssignRole(participantID string, role domain.Role) error {
	return s.apply(func() error {
		if err := s.checkAssignable(role); err != nil {
			return err
		}
		p, ok := s.byID[participantID]
		if !ok {
			return fmt.Errorf("%w: %s", errors.ErrNotFound, participantID)
		}
		p.Role = role
		s.emit(event.RoleAssigned{Base: s.eventBase(), ParticipantID: p.ID, Role: role})
		return nil
	})
}

// AssignGlobalRole gives every participant the same hat. Participants
// admitted later receive it too.
func (s *Session) AssignGlobalRole(role domain.Role) error {
	return s.apply(func() error {
		if err := s.checkAssignable(role); err != nil {
			return err
		}
		s.record.GlobalRole = role
		for _, p := range s.participants {
			p.Role = role
		}
		s.emit(event.RolesAssigned{Base: s.eventBase(), Kind: event.AssignmentGlobal, Assignments: s.assignments()})
		return nil
	})
}

// ClearGlobalRole stops handing the global hat to newcomers and takes it off everyone.
func (s *Session) ClearGlobalRole() error {
	return s.apply(func() error {
		if s.record.State != domain.SessionStateActive {
			return s.invalidTransition("clear roles")
		}
		s.clearRoles()
		return nil
	})
}

func (s *Session) clearRoles() {
	s.record.GlobalRole = domain.RoleNone
	for _, p := range s.participants {
		p.Role = domain.RoleNone
	}
	s.emit(event.RolesAssigned{Base: s.eventBase(), Kind: event.AssignmentCleared, Assignments: s.assignments()})
}

// ReshuffleRoles deals a balanced pool of hats to participants in a random order.
func (s *Session) ReshuffleRoles() error {
	return s.apply(func() error {
		if s.record.State != domain.SessionStateActive {
			return s.invalidTransition("reshuffle")
		}
		pool := domain.Shuffle(domain.BalancedRolePool(len(s.participants)), s.rng)
		for i, p := range s.participants {
			p.Role = pool[i]
		}
		s.record.GlobalRole = domain.RoleNone
		s.emit(event.RolesAssigned{Base: s.eventBase(), Kind: event.AssignmentReshuffle, Assignments: s.assignments()})
		return nil
	})
}

func (s *Session) checkAssignable(role domain.Role) error {
	if role.IsReserved() {
		return fmt.Errorf("%w: %s", errors.ErrReservedRole, role)
	}
	if !role.IsValid() {
		return fmt.Errorf("%w: %s", errors.ErrUnknownRole, role)
	}
	if s.record.State != domain.SessionStateActive {
		return s.invalidTransition("assign role")
	}
	return nil
}

func (s *Session) assignments() map[string]domain.Role {
	out := make(map[string]domain.Role, len(s.participants))
	for _, p := range s.participants {
		out[p.ID] = p.Role
	}
	return out
}

// SendMessage posts a message while the session is Active or Paused.
// The facilitator (domain.FacilitatorID) may use any hat and defaults to
// the Process hat. Participants default to their own hat and may not use
// the facilitator hat.
func (s *Session) SendMessage(senderID, text string, role domain.Role) (domain.Message, error) {
	var posted domain.Message
	err := s.apply(func() error {
		if !s.record.IsOpen() {
			return s.invalidTransition("send message")
		}
		normalized, err := domain.NormalizeMessageText(text)
		if err != nil {
			return err
		}
		if role != domain.RoleNone && !role.IsValid() {
			return fmt.Errorf("%w: %s", errors.ErrUnknownRole, role)
		}

		var sender string
		if senderID == domain.FacilitatorID {
			sender = "Facilitator"
			if role == domain.RoleNone {
				role = domain.FacilitatorRole
			}
		} else {
			p, ok := s.byID[senderID]
			if !ok {
				return fmt.Errorf("%w: %s", errors.ErrNotFound, senderID)
			}
			if role.IsReserved() {
				return fmt.Errorf("%w: %s", errors.ErrReservedRole, role)
			}
			sender = p.Name
			if role == domain.RoleNone {
				role = p.Role
			}
		}

		var censored []string
		if s.opts.Moderator != nil {
			normalized, censored = s.opts.Moderator.Censor(normalized)
		}
		var lang string
		if s.opts.Languages != nil {
			lang = s.opts.Languages.Detect(normalized)
		}

		posted = domain.Message{
			ID:        uuid.New(),
			SessionID: s.record.ID,
			SenderID:  senderID,
			Sender:    sender,
			Text:      normalized,
			Role:      role,
			Language:  lang,
			CreatedAt: s.clock.Now().UTC(),
		}
		s.messages = append(s.messages, posted)
		s.emit(event.MessagePosted{Base: s.eventBase(), Message: posted, CensoredWords: censored})
		return nil
	})
	return posted, err
}

// Snapshot returns the session record with its remaining time.
func (s *Session) Snapshot() domain.Session {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshot()
}

func (s *Session) Participants() []domain.Participant {
	s.mu.Lock()
	defer s.mu.Unlock()
	return lo.Map(s.participants, func(p *domain.Participant, _ int) domain.Participant { return *p })
}

func (s *Session) Participant(id string) (domain.Participant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.byID[id]
	if !ok {
		return domain.Participant{}, fmt.Errorf("%w: %s", errors.ErrNotFound, id)
	}
	return *p, nil
}

func (s *Session) WaitingRoom() []domain.WaitingEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.waiting)
}

func (s *Session) Floor() domain.Floor {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.floor.Snapshot()
}

func (s *Session) Messages() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.messages)
}

// Summary is available once an Ended session has at least one message.
func (s *Session) Summary() (domain.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return domain.Summary{}, errors.ErrSummaryUnavailable
	}
	return cloneSummary(*s.summary), nil
}

func (s *Session) snapshot() domain.Session {
	record := s.record
	if record.IsOpen() {
		record.RemainingSeconds = lo.ToPtr(s.remaining)
	}
	if record.StartedAt != nil {
		record.StartedAt = lo.ToPtr(*record.StartedAt)
	}
	if record.EndedAt != nil {
		record.EndedAt = lo.ToPtr(*record.EndedAt)
	}
	return record
}

// armCountdown schedules the next one-second step. The generation guards
// against a step scheduled before a pause firing after it.
func (s *Session) armCountdown() {
	s.countdownGen++
	if s.opts.ManualCountdown {
		return
	}
	gen := s.countdownGen
	s.countdown = s.clock.AfterFunc(countdownStep, func() { s.onCountdown(gen) })
}

func (s *Session) onCountdown(gen uint64) {
	_ = s.apply(func() error {
		if gen != s.countdownGen || s.record.State != domain.SessionStateActive {
			return nil
		}
		s.tick()
		if s.record.State == domain.SessionStateActive {
			s.countdown = s.clock.AfterFunc(countdownStep, func() { s.onCountdown(gen) })
		}
		return nil
	})
}

func (s *Session) stopCountdown() {
	s.countdownGen++
	if s.countdown != nil {
		s.countdown.Stop()
		s.countdown = nil
	}
}

func (s *Session) invalidTransition(op string) error {
	return fmt.Errorf("%w: cannot %s a %s session", errors.ErrInvalidTransition, op, s.record.State)
}

func (s *Session) participant(id string) (*domain.Participant, bool) {
	p, ok := s.byID[id]
	return p, ok
}

func (s *Session) emit(e event.DomainEvent) {
	s.outbox = append(s.outbox, e)
}

func (s *Session) eventBase() event.Base {
	return event.Base{Session: s.record.ID, At: s.clock.Now().UTC()}
}

func (s *Session) lifecycle() event.Lifecycle {
	return event.Lifecycle{Base: s.eventBase(), Record: s.snapshot()}
}

func cloneSummary(in domain.Summary) domain.Summary {
	out := in
	out.Points = make(map[domain.Role][]string, len(in.Points))
	for role, points := range in.Points {
		out.Points[role] = slices.Clone(points)
	}
	out.ActionPoints = slices.Clone(in.ActionPoints)
	return out
}
