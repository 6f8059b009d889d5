package auth

import (
	"fmt"
	"strings"
	"time"
)

type Role string

const (
	RoleCitizen            Role = "citizen"
	RoleResearcher         Role = "researcher"
	RoleAdministrator      Role = "administrator"
	RoleGovernmentOfficial Role = "government_official"
)

// ParseRole accepts the wire form ("government_official") as well as the
// display forms used by the dashboard ("Government Official", "GovernmentOfficial").
func ParseRole(s string) (Role, error) {
	norm := strings.ToLower(strings.TrimSpace(s))
	norm = strings.NewReplacer(" ", "", "_", "", "-", "").Replace(norm)
	switch norm {
	case "citizen":
		return RoleCitizen, nil
	case "researcher":
		return RoleResearcher, nil
	case "administrator", "admin":
		return RoleAdministrator, nil
	case "governmentofficial":
		return RoleGovernmentOfficial, nil
	default:
		return "", fmt.Errorf("unknown role %q", s)
	}
}

func (r Role) Valid() bool {
	switch r {
	case RoleCitizen, RoleResearcher, RoleAdministrator, RoleGovernmentOfficial:
		return true
	default:
		return false
	}
}

type User struct {
	ID       string `json:"id"`
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Role     Role   `json:"role"`
}

type Session struct {
	User      User      `json:"user"`
	IssuedAt  time.Time `json:"issued_at"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Expired reports whether the session is no longer valid at now.
func (s Session) Expired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

type ActivityAction string

const (
	ActionLogin   ActivityAction = "login"
	ActionLogout  ActivityAction = "logout"
	ActionExpired ActivityAction = "expired"
)

type ActivityEntry struct {
	UserID string         `json:"user_id,omitempty"`
	Email  string         `json:"email,omitempty"`
	Action ActivityAction `json:"action"`
	At     time.Time      `json:"at"`
}
