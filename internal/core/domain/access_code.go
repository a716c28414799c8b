package domain

import (
	"fmt"
	"strings"
	"time"
)

// Role is a privileged role whose self-registration is gated.
type Role string

const (
	RoleFieldOfficer Role = "field_officer"
	RoleFinance      Role = "finance"
	RoleManager      Role = "manager"
)

// RotatingRoles are the roles backed by single-use access code records.
var RotatingRoles = []Role{RoleFieldOfficer, RoleFinance}

// CodeStatus represents the lifecycle state of an access code.
type CodeStatus string

const (
	CodeActive  CodeStatus = "active"
	CodeExpired CodeStatus = "expired"
	CodeUsed    CodeStatus = "used"
)

const (
	// CodeTTL is the fixed lifetime of a freshly minted code. It is never extended.
	CodeTTL = 24 * time.Hour
	// CodeLength is the number of characters in a minted code.
	CodeLength = 8
	// SystemIssuer tags codes minted by auto-rotation.
	SystemIssuer = "system_auto"
)

// validTransitions is the one-way lifecycle; expired and used are terminal.
var validTransitions = map[CodeStatus][]CodeStatus{
	CodeActive: {CodeExpired, CodeUsed},
}

// CanTransitionTo reports whether a transition from s to next is allowed.
func (s CodeStatus) CanTransitionTo(next CodeStatus) bool {
	for _, allowed := range validTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CheckTransition guards a conditional write: the matched status must be
// set and allowed to move to next.
func CheckTransition(from, next CodeStatus) error {
	if from == "" || !from.CanTransitionTo(next) {
		return fmt.Errorf("%w: %q to %q", ErrInvalidTransition, from, next)
	}
	return nil
}

// Valid reports whether s is a known status.
func (s CodeStatus) Valid() bool {
	switch s {
	case CodeActive, CodeExpired, CodeUsed:
		return true
	}
	return false
}

// ParseRole converts user input into a Role.
func ParseRole(s string) (Role, error) {
	r := Role(strings.ToLower(strings.TrimSpace(s)))
	switch r {
	case RoleFieldOfficer, RoleFinance, RoleManager:
		return r, nil
	case "":
		return "", fmt.Errorf("%w: role is required", ErrInvalidInput)
	}
	return "", fmt.Errorf("%w: unknown role %q", ErrInvalidInput, s)
}

// Rotating reports whether the role is gated by access code records
// rather than the static manager secret.
func (r Role) Rotating() bool {
	return r == RoleFieldOfficer || r == RoleFinance
}

// NormalizeCode trims and upper-cases a presented code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// AccessCode is a short-lived single-use token that unlocks registration for a role.
type AccessCode struct {
	ID        string     `json:"id"`
	Role      Role       `json:"role"`
	Code      string     `json:"code"`
	Status    CodeStatus `json:"status"`
	CreatedAt time.Time  `json:"created_at"`
	ExpiresAt time.Time  `json:"expires_at"`
	UsedAt    *time.Time `json:"used_at,omitempty"`
	UsedBy    *string    `json:"used_by,omitempty"`
	CreatedBy string     `json:"created_by"`
}

// ExpiredAt reports whether the code is past its expiry at now.
// Expiry is evaluated at the point of use; storage may still say active.
func (c *AccessCode) ExpiredAt(now time.Time) bool {
	return now.After(c.ExpiresAt)
}

// RemainingAt returns the time left before expiry, never negative.
func (c *AccessCode) RemainingAt(now time.Time) time.Duration {
	if d := c.ExpiresAt.Sub(now); d > 0 {
		return d
	}
	return 0
}
