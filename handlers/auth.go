package handlers

import (
	"fmt"
	"net/http"
	"time"

	"canteen-api/config"
	"canteen-api/middleware"
	"canteen-api/models"

	"github.com/gin-gonic/gin"
	"golang.org/x/crypto/bcrypt"
)

type RegisterRequest struct {
	Email    string          `json:"email" binding:"required,email"`
	Password string          `json:"password" binding:"required,min=6"`
	Name     string          `json:"name" binding:"required"`
	Surname  string          `json:"surname" binding:"required"`
	Role     models.UserRole `json:"role" binding:"required"`
}

type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

func setSessionCookie(c *gin.Context, token string, expiresAt time.Time) {
	c.SetSameSite(http.SameSiteLaxMode)
	maxAge := int(time.Until(expiresAt).Seconds())
	c.SetCookie(config.SessionCookieName, token, maxAge, "/", "", false, true)
}

func clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(config.SessionCookieName, "", -1, "/", "", false, true)
}

// Register creates a new account. Only student and parent roles can
// self-register; signing in happens immediately.
func Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	valid := false
	for _, r := range models.RegistrationRoles {
		if req.Role == r {
			valid = true
		}
	}
	if !valid {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid role. Must be: student or parent"})
		return
	}

	email := models.NormalizeEmail(req.Email)
	var existing models.User
	if result := db.Where("email = ?", email).First(&existing); result.Error == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Email already registered"})
		return
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	user := models.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         req.Name,
		Surname:      req.Surname,
		Role:         req.Role,
		IsActive:     true,
		Prefs:        models.PrefsMap{},
	}
	if err := db.Create(&user).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create user"})
		return
	}

	sess, err := store.Issue(&user, c.Request.UserAgent(), c.ClientIP())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	setSessionCookie(c, sess.Token, sess.ExpiresAt)

	c.JSON(http.StatusCreated, gin.H{
		"message":    "Account created successfully",
		"csrf_token": sess.CSRFToken,
		"user": gin.H{
			"id":    user.ID,
			"email": user.Email,
			"name":  user.Name,
			"role":  user.Role,
		},
	})
}

// Login authenticates a user. Failed attempts count against the client
// address; five failures lock the address out for fifteen minutes.
func Login(c *gin.Context) {
	addr := c.ClientIP()
	if locked, minutes := limiter.Check(addr); locked {
		c.JSON(http.StatusTooManyRequests, gin.H{
			"error": fmt.Sprintf("Too many attempts. Try again in %d min.", minutes),
		})
		return
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var user models.User
	if err := db.Where("email = ?", models.NormalizeEmail(req.Email)).First(&user).Error; err != nil {
		limiter.RecordFailure(addr)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		limiter.RecordFailure(addr)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid email or password"})
		return
	}
	if !user.IsActive {
		limiter.RecordFailure(addr)
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Account is deactivated"})
		return
	}

	limiter.Clear(addr)
	sess, err := store.Issue(&user, c.Request.UserAgent(), addr)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create session"})
		return
	}
	setSessionCookie(c, sess.Token, sess.ExpiresAt)

	c.JSON(http.StatusOK, gin.H{
		"message":    "Login successful",
		"csrf_token": sess.CSRFToken,
		"user": gin.H{
			"id":      user.ID,
			"email":   user.Email,
			"name":    user.Name,
			"role":    user.Role,
			"balance": user.Balance,
		},
	})
}

// Logout revokes the current session
func Logout(c *gin.Context) {
	store.Revoke(middleware.TokenFrom(c))
	clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// GetProfile returns the authenticated user's profile
func GetProfile(c *gin.Context) {
	user := middleware.UserFrom(c)
	c.JSON(http.StatusOK, gin.H{"user": user})
}

type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" binding:"required"`
	NewPassword string `json:"new_password" binding:"required,min=6"`
}

// ChangePassword sets a new credential hash and revokes every other
// session of the account.
func ChangePassword(c *gin.Context) {
	user := middleware.UserFrom(c)
	var req ChangePasswordRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.OldPassword)); err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Current password is incorrect"})
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.NewPassword), bcrypt.DefaultCost)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).
		Update("password_hash", string(hash)).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to update password"})
		return
	}
	store.RevokeAll(user.ID, middleware.TokenFrom(c))
	c.JSON(http.StatusOK, gin.H{"message": "Password updated. Other sessions were signed out."})
}

// ListSessions returns the caller's live sessions
func ListSessions(c *gin.Context) {
	user := middleware.UserFrom(c)
	rows := store.ActiveSessions(user.ID)
	current := middleware.TokenFrom(c)
	out := make([]gin.H, 0, len(rows))
	for _, s := range rows {
		out = append(out, gin.H{
			"id":         s.ID,
			"user_agent": s.UserAgent,
			"ip_address": s.IPAddress,
			"last_seen":  s.LastSeen,
			"expires_at": s.ExpiresAt,
			"current":    s.Token == current,
		})
	}
	c.JSON(http.StatusOK, gin.H{"count": len(out), "sessions": out})
}

// CloseSession revokes one of the caller's own sessions by id
func CloseSession(c *gin.Context) {
	user := middleware.UserFrom(c)
	var req struct {
		SessionID uint `json:"session_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	token, ok := store.Owns(user.ID, req.SessionID)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "Session not found"})
		return
	}
	store.Revoke(token)
	c.JSON(http.StatusOK, gin.H{"message": "Session closed"})
}

// DeleteAccount soft-deletes the caller: the row is anonymized and
// deactivated, orders and ledger entries stay for the audit trail.
func DeleteAccount(c *gin.Context) {
	user := middleware.UserFrom(c)
	updates := map[string]any{
		"email":     fmt.Sprintf("deleted-%d@removed.local", user.ID),
		"name":      "Deleted",
		"surname":   "",
		"prefs":     models.PrefsMap{},
		"is_active": false,
	}
	if err := db.Model(&models.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to delete account"})
		return
	}
	store.RevokeAll(user.ID, "")
	clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Account deleted"})
}
