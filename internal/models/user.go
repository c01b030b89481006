package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role represents user roles in the system
type Role string

const (
	RoleAdmin   Role = "admin"
	RoleManager Role = "manager"
	RoleOwner   Role = "owner"
)

const (
	DefaultReminderLeadMiles = 500
	DefaultReminderLeadDays  = 30
)

// User represents a vehicle owner or staff account
type User struct {
	ID                primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username          string             `bson:"username" json:"username"`
	Email             string             `bson:"email" json:"email"`
	PasswordHash      string             `bson:"password_hash" json:"-"`
	Role              Role               `bson:"role" json:"role"`
	FirstName         string             `bson:"first_name" json:"first_name"`
	LastName          string             `bson:"last_name" json:"last_name"`
	IsActive          bool               `bson:"is_active" json:"is_active"`
	ReminderLeadMiles int                `bson:"reminder_lead_miles" json:"reminder_lead_miles"`
	ReminderLeadDays  int                `bson:"reminder_lead_days" json:"reminder_lead_days"`
	LastLogin         *time.Time         `bson:"last_login,omitempty" json:"last_login,omitempty"`
	CreatedAt         time.Time          `bson:"created_at" json:"created_at"`
	UpdatedAt         time.Time          `bson:"updated_at" json:"updated_at"`
}

// ReminderPreferences is the lead-warning window used when evaluating status.
type ReminderPreferences struct {
	LeadMiles int `json:"reminder_lead_miles"`
	LeadDays  int `json:"reminder_lead_days"`
}

// DefaultReminderPreferences returns the window used for unknown owners.
func DefaultReminderPreferences() ReminderPreferences {
	return ReminderPreferences{LeadMiles: DefaultReminderLeadMiles, LeadDays: DefaultReminderLeadDays}
}

// Preferences returns the user's lead window, substituting defaults for
// unset or non-positive values.
func (u *User) Preferences() ReminderPreferences {
	prefs := DefaultReminderPreferences()
	if u == nil {
		return prefs
	}
	if u.ReminderLeadMiles > 0 {
		prefs.LeadMiles = u.ReminderLeadMiles
	}
	if u.ReminderLeadDays > 0 {
		prefs.LeadDays = u.ReminderLeadDays
	}
	return prefs
}

// LoginRequest represents a login request
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// RegisterRequest represents a user registration request
type RegisterRequest struct {
	Username  string `json:"username"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      Role   `json:"role"`
}

// LoginResponse is returned by login and registration. Preferences are the
// effective lead window, with defaults applied.
type LoginResponse struct {
	Token       string              `json:"token"`
	ExpiresAt   time.Time           `json:"expires_at"`
	User        User                `json:"user"`
	Preferences ReminderPreferences `json:"preferences"`
}

// ProfileResponse is the caller's account with its effective lead window.
type ProfileResponse struct {
	User        User                `json:"user"`
	Preferences ReminderPreferences `json:"preferences"`
}

// Claims identifies the caller of an authenticated request. OwnerID scopes
// vehicle and schedule access for owners.
type Claims struct {
	OwnerID   string
	Username  string
	Role      Role
	ExpiresAt time.Time
}

// IsValidRole checks if a role is valid
func IsValidRole(role Role) bool {
	switch role {
	case RoleAdmin, RoleManager, RoleOwner:
		return true
	default:
		return false
	}
}

// HasPermission checks if a user has permission for a specific action
func (u *User) HasPermission(action string) bool {
	switch u.Role {
	case RoleAdmin:
		return true
	case RoleManager:
		return action != "manage_rules" && action != "manage_users"
	case RoleOwner:
		return action == "view_vehicles" || action == "manage_vehicles" ||
			action == "view_schedule" || action == "complete_service"
	default:
		return false
	}
}

// CanSeeAllVehicles reports whether the role may read vehicles it does not own.
func (c *Claims) CanSeeAllVehicles() bool {
	return c.Role == RoleAdmin || c.Role == RoleManager
}
