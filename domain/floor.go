package domain

import "time"

// Floor is a snapshot of who may speak. At most one holder exists at a time;
// Queue lists the participants waiting to speak, head first.
type Floor struct {
	HolderID  string        `json:"holder_id,omitempty"`
	GrantedAt time.Time     `json:"granted_at,omitempty"`
	Deadline  time.Time     `json:"deadline,omitempty"`
	Budget    time.Duration `json:"budget,omitempty"`
	Queue     []string      `json:"queue,omitempty"`
}

func (f Floor) IsFree() bool { return f.HolderID == "" }

// Remaining returns the speaking time left at now, zero when the floor is free.
func (f Floor) Remaining(now time.Time) time.Duration {
	if f.IsFree() || !now.Before(f.Deadline) {
		return 0
	}
	return f.Deadline.Sub(now)
}
