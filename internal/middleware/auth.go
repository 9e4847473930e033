package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/models"
)

// Context keys set by AuthMiddleware.
const (
	ContextUserID   = "userID"
	ContextUserRole = "userRole"
)

// TokenValidator is implemented by *auth.TokenManager.
type TokenValidator interface {
	Validate(token string) (userID string, err error)
}

// RoleLookup is implemented by *store.UserStore.
type RoleLookup interface {
	Role(ctx context.Context, userID string) (string, error)
}

// MaintenanceChecker is implemented by *settings.Service.
type MaintenanceChecker interface {
	MaintenanceMode(ctx context.Context) bool
}

// AuthMiddleware checks the bearer token, loads the caller's role and, while
// maintenance mode is on, turns away everyone but administrators.
func AuthMiddleware(tokens TokenValidator, roles RoleLookup, maintenance MaintenanceChecker) gin.HandlerFunc {
	return func(c *gin.Context) {
		// 1. --- Get Authorization Header ---
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Authorization header required"})
			return
		}

		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format (must be Bearer)"})
			return
		}

		// 2. --- Validate Token ---
		userID, err := tokens.Validate(parts[1])
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			return
		}

		// 3. --- Load Role ---
		role, err := roles.Role(c.Request.Context(), userID)
		if err != nil {
			if apperr.Is(err, apperr.KindUnauthorized) {
				c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
				return
			}
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "Failed to verify user"})
			return
		}

		// 4. --- Enforce Maintenance Mode ---
		if role != models.RoleAdmin && maintenance != nil && maintenance.MaintenanceMode(c.Request.Context()) {
			c.AbortWithStatusJSON(http.StatusServiceUnavailable, gin.H{
				"error": "The store is currently in maintenance mode. Please try again later.",
			})
			return
		}

		// 5. --- Success ---
		c.Set(ContextUserID, userID)
		c.Set(ContextUserRole, role)
		c.Next()
	}
}

// AdminMiddleware must run after AuthMiddleware.
func AdminMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if _, exists := c.Get(ContextUserID); !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "User ID not found in context (AuthMiddleware must run first)"})
			return
		}
		if !IsAdmin(c) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "Access denied: Administrators only"})
			return
		}
		c.Next()
	}
}

// UserID returns the authenticated user's ID, or "" outside AuthMiddleware.
func UserID(c *gin.Context) string {
	return c.GetString(ContextUserID)
}

func IsAdmin(c *gin.Context) bool {
	return c.GetString(ContextUserRole) == models.RoleAdmin
}
