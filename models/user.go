package models

import (
	"strings"
	"time"
)

// UserRole defines allowed roles in the system
type UserRole string

const (
	RoleStudent    UserRole = "student"
	RoleParent     UserRole = "parent"
	RoleModerator  UserRole = "moderator"
	RoleChef       UserRole = "chef"
	RoleAdmin      UserRole = "admin"
	RoleSuperAdmin UserRole = "super_admin"
)

// RoleInfo describes one role: its authority level and how long a
// sign-in session for that role lives.
type RoleInfo struct {
	Level        int
	SessionHours int
	Label        string
}

// Roles is the closed role table; all permission checks are driven by it
// instead of ad hoc string comparisons.
var Roles = map[UserRole]RoleInfo{
	RoleStudent:    {Level: 1, SessionHours: 24, Label: "Student"},
	RoleParent:     {Level: 2, SessionHours: 12, Label: "Parent"},
	RoleModerator:  {Level: 3, SessionHours: 8, Label: "Moderator"},
	RoleChef:       {Level: 4, SessionHours: 8, Label: "Chef"},
	RoleAdmin:      {Level: 5, SessionHours: 6, Label: "Administrator"},
	RoleSuperAdmin: {Level: 6, SessionHours: 5, Label: "Super administrator"},
}

// RegistrationRoles are the roles open to self-registration
var RegistrationRoles = []UserRole{RoleStudent, RoleParent}

// RoleLevel returns the authority level of a role; unknown roles rank below
// everything.
func RoleLevel(role UserRole) int {
	return Roles[role].Level
}

// SessionTTL returns the session lifetime for a role, defaulting to the
// student TTL for unknown roles.
func SessionTTL(role UserRole) time.Duration {
	info, ok := Roles[role]
	if !ok {
		info = Roles[RoleStudent]
	}
	return time.Duration(info.SessionHours) * time.Hour
}

// AllowedRolesToAssign returns the set of roles a manager may hand out.
func AllowedRolesToAssign(manager *User) map[UserRole]bool {
	switch manager.Role {
	case RoleSuperAdmin:
		return map[UserRole]bool{
			RoleStudent: true, RoleParent: true, RoleModerator: true,
			RoleChef: true, RoleAdmin: true,
		}
	case RoleAdmin:
		return map[UserRole]bool{
			RoleStudent: true, RoleParent: true, RoleModerator: true,
			RoleChef: true,
		}
	}
	return map[UserRole]bool{}
}

// CanChangeRole decides whether manager may move target to newRole.
// Admins can never touch other admins or promote to admin, and nobody
// below super admin can change their own role.
func CanChangeRole(manager, target *User, newRole UserRole) bool {
	if !AllowedRolesToAssign(manager)[newRole] {
		return false
	}
	if target.Role == RoleSuperAdmin {
		return false
	}
	if manager.Role == RoleAdmin && (target.Role == RoleAdmin || target.Role == RoleSuperAdmin) {
		return false
	}
	if manager.Role == RoleAdmin && newRole == RoleAdmin {
		return false
	}
	if manager.ID == target.ID && manager.Role != RoleSuperAdmin {
		return false
	}
	return true
}

// PrefsMap holds free-form per-user preferences (notification toggles,
// allergy tags, favorites).
type PrefsMap map[string]any

type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Email        string     `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string     `json:"-" gorm:"not null"`
	Name         string     `json:"name" gorm:"not null"`
	Surname      string     `json:"surname"`
	Role         UserRole   `json:"role" gorm:"not null;default:'student';index"`
	Balance      int        `json:"balance" gorm:"not null;default:0"`
	Prefs        PrefsMap   `json:"prefs" gorm:"serializer:json"`
	IsActive     bool       `json:"is_active" gorm:"default:true;index"`
	LastLogin    *time.Time `json:"last_login"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// NormalizeEmail lowercases and trims an email address for lookups and
// uniqueness.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (u *User) prefBool(key string, fallback bool) bool {
	if u.Prefs == nil {
		return fallback
	}
	if v, ok := u.Prefs[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return fallback
}

// NotificationPrefs returns the per-category toggles; every category
// defaults to enabled.
func (u *User) NotificationPrefs() map[string]bool {
	return map[string]bool{
		"orders":   u.prefBool("notify_orders", true),
		"payments": u.prefBool("notify_payments", true),
		"feedback": u.prefBool("notify_feedback", true),
		"kitchen":  u.prefBool("notify_kitchen", true),
		"system":   u.prefBool("notify_system", true),
	}
}

// EmailOptIn reports whether the user asked for email copies of
// notifications; off by default.
func (u *User) EmailOptIn() bool {
	return u.prefBool("email_notifications", false)
}

// Allergies returns the raw allergy tag string from preferences.
func (u *User) Allergies() string {
	if u.Prefs == nil {
		return ""
	}
	if v, ok := u.Prefs["allergies"].(string); ok {
		return v
	}
	return ""
}
