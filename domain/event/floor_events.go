package event

import "time"

type ReleaseReason string

const (
	ReleaseReasonReleased  ReleaseReason = "released"
	ReleaseReasonWithdrawn ReleaseReason = "withdrawn"
	ReleaseReasonRevoked   ReleaseReason = "revoked"
	ReleaseReasonExpired   ReleaseReason = "expired"
	ReleaseReasonPaused    ReleaseReason = "paused"
	ReleaseReasonEnded     ReleaseReason = "ended"
	ReleaseReasonLeft      ReleaseReason = "left"
)

type FloorQueued struct {
	Base
	ParticipantID string
	Position      int
}

type FloorGranted struct {
	Base
	ParticipantID string
	GrantedAt     time.Time
	Deadline      time.Time
	ByFacilitator bool
}

// FloorReleased covers both a holder giving up the floor and a queued
// participant leaving the queue.
type FloorReleased struct {
	Base
	ParticipantID string
	Reason        ReleaseReason
}
