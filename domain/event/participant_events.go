package event

import "tink/domain"

type ParticipantJoined struct {
	Base
	ParticipantID string
	Name          string
	Admitted      bool
}

type ParticipantAdmitted struct {
	Base
	ParticipantID string
	Name          string
}

type ParticipantLeft struct {
	Base
	ParticipantID string
	Waiting       bool
}

type RoleAssigned struct {
	Base
	ParticipantID string
	Role          domain.Role
}

type AssignmentKind string

const (
	AssignmentGlobal    AssignmentKind = "global"
	AssignmentReshuffle AssignmentKind = "reshuffle"
	AssignmentCleared   AssignmentKind = "cleared"
)

// RolesAssigned reports a bulk assignment. Assignments maps every
// admitted participant to its new role.
type RolesAssigned struct {
	Base
	Kind        AssignmentKind
	Assignments map[string]domain.Role
}
