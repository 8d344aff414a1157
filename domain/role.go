// Package domain contains the core concepts of a Six Thinking Hats session.
// No runtime, network, or UI logic should be added here.
package domain

import (
	"fmt"
	"strings"

	"tink/errors"
)

// Role is one of the six thinking hats. The zero value means no hat.
type Role uint8

const (
	RoleNone       Role = iota
	RoleProcess         // blue, held by the facilitator only
	RoleFacts           // white
	RoleEmotions        // red
	RoleCaution         // black
	RoleBenefits        // yellow
	RoleCreativity      // green
)

// FacilitatorRole is the hat reserved for the facilitator.
const FacilitatorRole = RoleProcess

var roleColors = map[Role]string{
	RoleProcess:    "blue",
	RoleFacts:      "white",
	RoleEmotions:   "red",
	RoleCaution:    "black",
	RoleBenefits:   "yellow",
	RoleCreativity: "green",
}

var roleHats = map[Role]string{
	RoleProcess:    "Process",
	RoleFacts:      "Facts",
	RoleEmotions:   "Emotions",
	RoleCaution:    "Caution",
	RoleBenefits:   "Benefits",
	RoleCreativity: "Creativity",
}

// AllRoles lists every hat, facilitator hat first.
func AllRoles() []Role {
	return []Role{RoleProcess, RoleFacts, RoleEmotions, RoleCaution, RoleBenefits, RoleCreativity}
}

// AssignableRoles lists the hats a participant may wear, in pool order.
func AssignableRoles() []Role {
	return []Role{RoleFacts, RoleEmotions, RoleCaution, RoleBenefits, RoleCreativity}
}

func (r Role) Color() string { return roleColors[r] }

func (r Role) Hat() string { return roleHats[r] }

func (r Role) String() string {
	if r == RoleNone {
		return "none"
	}
	if c, ok := roleColors[r]; ok {
		return c
	}
	return fmt.Sprintf("role(%d)", uint8(r))
}

func (r Role) IsValid() bool {
	_, ok := roleColors[r]
	return ok
}

func (r Role) IsReserved() bool { return r == FacilitatorRole }

// ParseRole accepts a color ("yellow") or a hat name ("Benefits"),
// case-insensitively. The empty string parses to RoleNone.
func ParseRole(s string) (Role, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" || s == "none" {
		return RoleNone, nil
	}
	for r, c := range roleColors {
		if c == s || strings.ToLower(roleHats[r]) == s {
			return r, nil
		}
	}
	return RoleNone, fmt.Errorf("%w: %q", errors.ErrUnknownRole, s)
}

func (r Role) MarshalText() ([]byte, error) {
	if r == RoleNone {
		return []byte(""), nil
	}
	if !r.IsValid() {
		return nil, fmt.Errorf("%w: %d", errors.ErrUnknownRole, uint8(r))
	}
	return []byte(r.Color()), nil
}

func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
