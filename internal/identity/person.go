package identity

import (
	"strings"
	"time"
)

// Role classifies how a person serves the organization. A person may hold
// several roles at once; each role is a distinct Person record sharing only
// the contact value.
type Role string

const (
	RoleVolunteer        Role = "volunteer"
	RoleCommunityService Role = "community_service"
	RoleEmployment       Role = "employment"
	RoleMusician         Role = "musician"
)

// Supervised reports whether the role requires a valid access code to
// check in.
func (r Role) Supervised() bool {
	return r == RoleCommunityService || r == RoleEmployment
}

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	switch r {
	case RoleVolunteer, RoleCommunityService, RoleEmployment, RoleMusician:
		return true
	}
	return false
}

// Person is one role-record for a human. Immutable after creation except
// for the volunteer -> community_service promotion.
type Person struct {
	ID           string    `json:"id"`
	Role         Role      `json:"role"`
	DisplayName  string    `json:"display_name"`
	Email        string    `json:"email,omitempty"`
	Phone        string    `json:"phone,omitempty"`
	RegisteredAt time.Time `json:"registered_at"`
}

// Contact returns whichever contact value the person registered with,
// preferring email.
func (p Person) Contact() string {
	if p.Email != "" {
		return p.Email
	}
	return p.Phone
}

// NormalizeIdentifier canonicalizes a walk-up identifier: anything with an
// "@" is a case-insensitive email, everything else is a phone number
// reduced to its digits. The second return distinguishes the two.
func NormalizeIdentifier(identifier string) (normalized string, isEmail bool) {
	identifier = strings.TrimSpace(identifier)
	if strings.Contains(identifier, "@") {
		return strings.ToLower(identifier), true
	}
	var b strings.Builder
	for _, r := range identifier {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String(), false
}
