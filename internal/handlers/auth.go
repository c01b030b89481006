package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/ukydev/fleet-maintenance/internal/auth"
	"github.com/ukydev/fleet-maintenance/internal/db"
	"github.com/ukydev/fleet-maintenance/internal/middleware"
	"github.com/ukydev/fleet-maintenance/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AuthHandler serves owner accounts: sessions, profile and the reminder
// lead window.
type AuthHandler struct {
	authService *auth.Service
	users       db.UserCollection
	log         logrus.FieldLogger
}

// NewAuthHandler creates a new authentication handler
func NewAuthHandler(authService *auth.Service, users db.UserCollection, log logrus.FieldLogger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		users:       users,
		log:         log,
	}
}

// Login exchanges a username and password for a session token.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Username == "" || req.Password == "" {
		http.Error(w, "Username and password are required", http.StatusBadRequest)
		return
	}

	user, err := h.users.FindUserByUsername(r.Context(), req.Username)
	if errors.Is(err, models.ErrNotFound) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}
	if err != nil {
		writeError(w, h.log, err, "Failed to log in")
		return
	}
	if !user.IsActive {
		http.Error(w, "Account is deactivated", http.StatusUnauthorized)
		return
	}
	if !auth.CheckPassword(req.Password, user.PasswordHash) {
		http.Error(w, "Invalid credentials", http.StatusUnauthorized)
		return
	}

	if err := h.users.UpdateLastLogin(r.Context(), user.ID.Hex()); err != nil {
		h.log.WithError(err).WithField("owner_id", user.ID.Hex()).Warn("Failed to update last login")
	}
	h.writeSession(w, http.StatusOK, user)
}

// Register creates an owner account and opens a session for it. Staff
// accounts are created with maintctl.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if err := auth.ValidateRegistration(req.Username, req.Email, req.Password); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Role == "" {
		req.Role = models.RoleOwner
	}
	if !models.IsValidRole(req.Role) {
		http.Error(w, "Invalid role", http.StatusBadRequest)
		return
	}
	if req.Role != models.RoleOwner {
		http.Error(w, "Only owner accounts can be registered", http.StatusForbidden)
		return
	}

	if exists, err := taken(r.Context(), h.users.FindUserByUsername, req.Username); err != nil || exists {
		h.rejectTaken(w, err, "Username already exists")
		return
	}
	if exists, err := taken(r.Context(), h.users.FindUserByEmail, req.Email); err != nil || exists {
		h.rejectTaken(w, err, "Email already exists")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, h.log, err, "Failed to create user")
		return
	}
	now := time.Now()
	user := models.User{
		ID:                primitive.NewObjectID(),
		Username:          req.Username,
		Email:             req.Email,
		PasswordHash:      hash,
		Role:              models.RoleOwner,
		FirstName:         req.FirstName,
		LastName:          req.LastName,
		IsActive:          true,
		ReminderLeadMiles: models.DefaultReminderLeadMiles,
		ReminderLeadDays:  models.DefaultReminderLeadDays,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := h.users.InsertUser(r.Context(), user); err != nil {
		writeError(w, h.log, err, "Failed to create user")
		return
	}
	h.log.WithField("owner_id", user.ID.Hex()).Info("Owner registered")
	h.writeSession(w, http.StatusCreated, &user)
}

// GetProfile returns the caller's account and effective lead window.
func (h *AuthHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	user, _, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, models.ProfileResponse{User: *user, Preferences: user.Preferences()})
}

// UpdateProfile changes the caller's name or email. Empty fields are left
// as they are.
func (h *AuthHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req struct {
		FirstName string `json:"first_name"`
		LastName  string `json:"last_name"`
		Email     string `json:"email"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.Email != "" {
		if err := auth.ValidateEmail(req.Email); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}

	user, ownerID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if req.Email != "" && req.Email != user.Email {
		if exists, err := taken(r.Context(), h.users.FindUserByEmail, req.Email); err != nil || exists {
			h.rejectTaken(w, err, "Email already exists")
			return
		}
		user.Email = req.Email
	}
	if req.FirstName != "" {
		user.FirstName = req.FirstName
	}
	if req.LastName != "" {
		user.LastName = req.LastName
	}

	if err := h.users.UpdateUser(r.Context(), ownerID, *user); err != nil {
		writeError(w, h.log, err, "Failed to update profile")
		return
	}
	writeJSON(w, http.StatusOK, models.ProfileResponse{User: *user, Preferences: user.Preferences()})
}

// ChangePassword replaces the caller's password after checking the current one.
func (h *AuthHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CurrentPassword string `json:"current_password"`
		NewPassword     string `json:"new_password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		http.Error(w, "Current password and new password are required", http.StatusBadRequest)
		return
	}
	if err := auth.ValidatePassword(req.NewPassword); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	user, ownerID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	if !auth.CheckPassword(req.CurrentPassword, user.PasswordHash) {
		http.Error(w, "Current password is incorrect", http.StatusUnauthorized)
		return
	}
	hash, err := auth.HashPassword(req.NewPassword)
	if err != nil {
		writeError(w, h.log, err, "Failed to change password")
		return
	}
	user.PasswordHash = hash
	if err := h.users.UpdateUser(r.Context(), ownerID, *user); err != nil {
		writeError(w, h.log, err, "Failed to change password")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpdatePreferences sets the caller's reminder lead window. Omitted fields
// keep their current value; supplied values must be positive.
func (h *AuthHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	var req struct {
		LeadMiles *int `json:"reminder_lead_miles"`
		LeadDays  *int `json:"reminder_lead_days"`
	}
	if err := decodeJSON(r, &req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if (req.LeadMiles != nil && *req.LeadMiles <= 0) || (req.LeadDays != nil && *req.LeadDays <= 0) {
		http.Error(w, "Lead window must be positive", http.StatusBadRequest)
		return
	}

	user, ownerID, ok := h.currentUser(w, r)
	if !ok {
		return
	}
	prefs := user.Preferences()
	if req.LeadMiles != nil {
		prefs.LeadMiles = *req.LeadMiles
	}
	if req.LeadDays != nil {
		prefs.LeadDays = *req.LeadDays
	}

	if err := h.users.UpdatePreferences(r.Context(), ownerID, prefs); err != nil {
		writeError(w, h.log, err, "Failed to update preferences")
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

func (h *AuthHandler) writeSession(w http.ResponseWriter, status int, user *models.User) {
	token, expires, err := h.authService.GenerateToken(user)
	if err != nil {
		writeError(w, h.log, err, "Failed to generate token")
		return
	}
	writeJSON(w, status, models.LoginResponse{
		Token:       token,
		ExpiresAt:   expires,
		User:        *user,
		Preferences: user.Preferences(),
	})
}

// currentUser loads the account named by the request's claims along with
// its id. On failure the error response has already been written.
func (h *AuthHandler) currentUser(w http.ResponseWriter, r *http.Request) (*models.User, string, bool) {
	claims, ok := middleware.GetUserFromContext(r.Context())
	if !ok {
		http.Error(w, "User context not found", http.StatusUnauthorized)
		return nil, "", false
	}
	user, err := h.users.FindUserByID(r.Context(), claims.OwnerID)
	if err != nil {
		writeError(w, h.log, err, "Failed to load user")
		return nil, "", false
	}
	return user, claims.OwnerID, true
}

// taken reports whether find locates an existing account for key.
func taken(ctx context.Context, find func(context.Context, string) (*models.User, error), key string) (bool, error) {
	_, err := find(ctx, key)
	if errors.Is(err, models.ErrNotFound) {
		return false, nil
	}
	return err == nil, err
}

// rejectTaken answers a registration or profile change whose username or
// email is already in use, or whose lookup failed.
func (h *AuthHandler) rejectTaken(w http.ResponseWriter, err error, msg string) {
	if err != nil {
		writeError(w, h.log, err, "Failed to look up account")
		return
	}
	http.Error(w, msg, http.StatusConflict)
}
