package middleware

import (
	"crypto/subtle"
	"net/http"

	"canteen-api/config"
	"canteen-api/models"
	"canteen-api/sessions"

	"github.com/gin-gonic/gin"
)

const (
	ctxUserKey  = "currentUser"
	ctxTokenKey = "sessionToken"
)

// AuthRequired resolves the session cookie and injects the account into the
// request context. Missing, expired and foreign tokens all produce the same
// response so a caller cannot tell which case occurred.
func AuthRequired(store *sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := c.Cookie(config.SessionCookieName)
		user, status := store.Resolve(token)
		if status != sessions.StatusOK {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Sign in required"})
			c.Abort()
			return
		}
		c.Set(ctxUserKey, user)
		c.Set(ctxTokenKey, token)
		c.Next()
	}
}

// MinLevel enforces a minimum role level on an authenticated request.
func MinLevel(level int) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFrom(c)
		if user == nil || models.RoleLevel(user.Role) < level {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// RolesRequired enforces that the caller has one of the allowed roles
func RolesRequired(roles ...models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := UserFrom(c)
		if user == nil {
			c.JSON(http.StatusForbidden, gin.H{"error": "Insufficient permissions"})
			c.Abort()
			return
		}
		for _, r := range roles {
			if user.Role == r {
				c.Next()
				return
			}
		}
		c.JSON(http.StatusForbidden, gin.H{
			"error": "Access denied. Required role(s): " + rolesString(roles),
		})
		c.Abort()
	}
}

func rolesString(roles []models.UserRole) string {
	s := ""
	for i, r := range roles {
		if i > 0 {
			s += ", "
		}
		s += string(r)
	}
	return s
}

// CSRF rejects state-mutating requests whose anti-forgery token does not
// match the one bound to the caller's session. The token comes from the
// X-CSRF-Token header or a csrf_token form field. Runs after AuthRequired.
func CSRF(store *sessions.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		switch c.Request.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			c.Next()
			return
		}
		token := TokenFrom(c)
		expected, ok := store.CSRFToken(token)
		if !ok || expected == "" {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid anti-forgery token"})
			c.Abort()
			return
		}
		candidate := c.GetHeader("X-CSRF-Token")
		if candidate == "" {
			candidate = c.PostForm("csrf_token")
		}
		if candidate == "" || subtle.ConstantTimeCompare([]byte(candidate), []byte(expected)) != 1 {
			c.JSON(http.StatusForbidden, gin.H{"error": "Invalid anti-forgery token"})
			c.Abort()
			return
		}
		c.Next()
	}
}

// UserFrom extracts the authenticated account from context
func UserFrom(c *gin.Context) *models.User {
	val, ok := c.Get(ctxUserKey)
	if !ok {
		return nil
	}
	user, _ := val.(*models.User)
	return user
}

// TokenFrom extracts the caller's session token from context
func TokenFrom(c *gin.Context) string {
	val, ok := c.Get(ctxTokenKey)
	if !ok {
		return ""
	}
	token, _ := val.(string)
	return token
}
