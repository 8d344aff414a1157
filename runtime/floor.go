package runtime

import (
	"fmt"
	"slices"
	"time"

	"tink/clock"
	"tink/domain"
	"tink/domain/event"
	"tink/errors"
)

// floorHost is the session owning an arbitrator. Every arbitrator method
// runs with the host lock held, except the timer callback which goes
// through expireFloor to take it.
type floorHost interface {
	participant(id string) (*domain.Participant, bool)
	emit(e event.DomainEvent)
	eventBase() event.Base
	expireFloor(grantID uint64)
}

// FloorArbitrator grants exclusive, time-boxed speaking rights. At most one
// participant holds the floor; the others may wait in a FIFO queue. Each
// grant carries an id so that a timer firing after its grant ended is ignored.
type FloorArbitrator struct {
	host              floorHost
	clock             clock.Clock
	participantBudget time.Duration
	facilitatorBudget time.Duration
	autoPromote       bool

	open      bool
	holder    string
	grantID   uint64
	grantedAt time.Time
	deadline  time.Time
	budget    time.Duration
	timer     clock.Timer
	queue     []string
}

func NewFloorArbitrator(host floorHost, opts SessionOptions) *FloorArbitrator {
	return &FloorArbitrator{
		host:              host,
		clock:             opts.Clock,
		participantBudget: opts.ParticipantBudget,
		facilitatorBudget: opts.FacilitatorBudget,
		autoPromote:       opts.AutoPromote,
	}
}

// Open starts accepting floor operations.
func (f *FloorArbitrator) Open() {
	f.open = true
}

// Close releases the holder, empties the queue and rejects further
// operations until the next Open.
func (f *FloorArbitrator) Close(reason event.ReleaseReason) {
	if f.holder != "" {
		f.releaseHolder(reason)
	}
	for _, id := range f.queue {
		if p, ok := f.host.participant(id); ok {
			p.Status = domain.SpeakingStatusIdle
		}
		f.host.emit(event.FloorReleased{Base: f.host.eventBase(), ParticipantID: id, Reason: reason})
	}
	f.queue = nil
	f.open = false
}

// Request grants the floor to id when it is free and nobody is ahead in
// the queue. Asking again while holding it is a no-op.
func (f *FloorArbitrator) Request(id string) error {
	p, err := f.check(id)
	if err != nil {
		return err
	}
	if f.holder == id {
		return nil
	}
	if f.holder != "" {
		return fmt.Errorf("%w: held by %s", errors.ErrFloorBusy, f.holder)
	}
	if len(f.queue) > 0 && f.queue[0] != id {
		return fmt.Errorf("%w: reserved for %s", errors.ErrFloorBusy, f.queue[0])
	}
	f.grant(p, f.participantBudget, false)
	return nil
}

// Enqueue puts id at the back of the waiting queue and returns its 1-based
// position. On a free floor with an empty queue it behaves like Request.
func (f *FloorArbitrator) Enqueue(id string) (int, error) {
	p, err := f.check(id)
	if err != nil {
		return 0, err
	}
	if f.holder == id {
		return 0, nil
	}
	if pos := slices.Index(f.queue, id); pos >= 0 {
		return pos + 1, nil
	}
	if f.holder == "" && len(f.queue) == 0 {
		f.grant(p, f.participantBudget, false)
		return 0, nil
	}
	f.queue = append(f.queue, id)
	p.Status = domain.SpeakingStatusWaiting
	f.host.emit(event.FloorQueued{Base: f.host.eventBase(), ParticipantID: id, Position: len(f.queue)})
	if f.holder == "" {
		f.promote()
	}
	return slices.Index(f.queue, id) + 1, nil
}

// Grant gives id the floor with the facilitator budget, ahead of the queue.
func (f *FloorArbitrator) Grant(id string) error {
	p, err := f.check(id)
	if err != nil {
		return err
	}
	if f.holder == id {
		return nil
	}
	if f.holder != "" {
		return fmt.Errorf("%w: held by %s", errors.ErrFloorBusy, f.holder)
	}
	f.grant(p, f.facilitatorBudget, true)
	return nil
}

// Release ends id's turn, or withdraws id from the queue. Releasing a floor
// id does not hold is a no-op.
func (f *FloorArbitrator) Release(id string, reason event.ReleaseReason) {
	switch {
	case f.holder == id && id != "":
		f.releaseHolder(reason)
		f.promote()
	case slices.Contains(f.queue, id):
		f.queue = slices.DeleteFunc(f.queue, func(q string) bool { return q == id })
		if p, ok := f.host.participant(id); ok {
			p.Status = domain.SpeakingStatusIdle
		}
		if reason == event.ReleaseReasonReleased {
			reason = event.ReleaseReasonWithdrawn
		}
		f.host.emit(event.FloorReleased{Base: f.host.eventBase(), ParticipantID: id, Reason: reason})
		f.promote()
	}
}

// Expire ends the grant identified by grantID if it is still current.
func (f *FloorArbitrator) Expire(grantID uint64) bool {
	if f.holder == "" || f.grantID != grantID {
		return false
	}
	f.releaseHolder(event.ReleaseReasonExpired)
	f.promote()
	return true
}

func (f *FloorArbitrator) Holder() string { return f.holder }

func (f *FloorArbitrator) Snapshot() domain.Floor {
	floor := domain.Floor{Queue: slices.Clone(f.queue)}
	if f.holder != "" {
		floor.HolderID = f.holder
		floor.GrantedAt = f.grantedAt
		floor.Deadline = f.deadline
		floor.Budget = f.budget
	}
	return floor
}

func (f *FloorArbitrator) check(id string) (*domain.Participant, error) {
	if !f.open {
		return nil, fmt.Errorf("%w: floor is closed", errors.ErrInvalidTransition)
	}
	p, ok := f.host.participant(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", errors.ErrNotFound, id)
	}
	return p, nil
}

func (f *FloorArbitrator) grant(p *domain.Participant, budget time.Duration, byFacilitator bool) {
	f.grantID++
	grantID := f.grantID
	now := f.clock.Now()

	f.queue = slices.DeleteFunc(f.queue, func(q string) bool { return q == p.ID })
	f.holder = p.ID
	f.grantedAt = now
	f.deadline = now.Add(budget)
	f.budget = budget
	p.Status = domain.SpeakingStatusSpeaking
	f.timer = f.clock.AfterFunc(budget, func() { f.host.expireFloor(grantID) })

	f.host.emit(event.FloorGranted{
		Base:          f.host.eventBase(),
		ParticipantID: p.ID,
		GrantedAt:     now,
		Deadline:      f.deadline,
		ByFacilitator: byFacilitator,
	})
}

func (f *FloorArbitrator) releaseHolder(reason event.ReleaseReason) {
	if f.timer != nil {
		f.timer.Stop()
		f.timer = nil
	}
	id := f.holder
	if p, ok := f.host.participant(id); ok {
		p.Status = domain.SpeakingStatusIdle
	}
	f.holder = ""
	f.grantedAt = time.Time{}
	f.deadline = time.Time{}
	f.budget = 0
	f.host.emit(event.FloorReleased{Base: f.host.eventBase(), ParticipantID: id, Reason: reason})
}

func (f *FloorArbitrator) promote() {
	if !f.autoPromote || !f.open || f.holder != "" || len(f.queue) == 0 {
		return
	}
	if p, ok := f.host.participant(f.queue[0]); ok {
		f.grant(p, f.participantBudget, false)
	}
}
