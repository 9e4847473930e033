package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/visioncraft/storefront/internal/apperr"
	"github.com/visioncraft/storefront/internal/audit"
	"github.com/visioncraft/storefront/internal/middleware"
	"github.com/visioncraft/storefront/internal/models"
)

// RegisterUserInput is the sign-up payload. Role is never accepted from the client.
type RegisterUserInput struct {
	Username  string `json:"username" binding:"required,min=3"`
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

// LoginInput accepts either the username or the email in Username.
type LoginInput struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

// --- User Registration ---

func (h *Handlers) Register(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input RegisterUserInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Hash the Password ---
	var password models.Password
	if err := password.Set(input.Password); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to hash password"})
		return
	}

	// 3. --- Save to Database ---
	user := &models.User{
		Username:     strings.TrimSpace(input.Username),
		Email:        input.Email,
		PasswordHash: password.Hash,
		FirstName:    input.FirstName,
		LastName:     input.LastName,
		Role:         models.RoleCustomer,
	}
	if err := h.Users.Create(c.Request.Context(), user); err != nil {
		h.respondError(c, err)
		return
	}

	// 4. --- Issue Token ---
	token, err := h.Tokens.Generate(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"message": "User registered successfully",
		"token":   token,
		"user":    user,
	})
}

// --- User Login ---

func (h *Handlers) Login(c *gin.Context) {
	// 1. --- Bind & Validate JSON ---
	var input LoginInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	// 2. --- Find User ---
	user, err := h.Users.GetByLogin(c.Request.Context(), input.Username)
	if err != nil {
		if apperr.Is(err, apperr.KindNotFound) {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
			return
		}
		h.respondError(c, err)
		return
	}

	// 3. --- Check Password ---
	password := models.Password{Hash: user.PasswordHash}
	match, err := password.Matches(input.Password)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to check password"})
		return
	}
	if !match {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid credentials"})
		return
	}

	// 4. --- Generate JWT ---
	token, err := h.Tokens.Generate(user.ID)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to generate token"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Login successful",
		"token":   token,
		"user":    user,
	})
}

// Logout is a no-op for bearer tokens; the client drops its copy.
func (h *Handlers) Logout(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "Logged out"})
}

// Me returns the authenticated user.
func (h *Handlers) Me(c *gin.Context) {
	user, err := h.Users.Get(c.Request.Context(), middleware.UserID(c))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// --- Admin: Users ---

func (h *Handlers) ListUsers(c *gin.Context) {
	users, err := h.Users.List(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, users)
}

func (h *Handlers) UpdateUser(c *gin.Context) {
	var patch models.UserPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.Users.Update(c.Request.Context(), c.Param("id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, user)
}

// DeleteUser serves DELETE /api/user (self) and DELETE /api/user/:id
// (self or admin). A user with order history cannot be deleted.
func (h *Handlers) DeleteUser(c *gin.Context) {
	// 1. --- Resolve Target ---
	callerID := middleware.UserID(c)
	targetID := c.Param("id")
	if targetID == "" {
		targetID = callerID
	}
	if targetID != callerID && !middleware.IsAdmin(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "Access denied: you can only delete your own account"})
		return
	}

	// 2. --- Guarded Delete ---
	if err := h.Guard.DeleteUser(c.Request.Context(), targetID); err != nil {
		// Existing clients expect 400 for the order-history refusal.
		if apperr.Is(err, apperr.KindConflict) {
			c.JSON(http.StatusBadRequest, gin.H{"error": apperr.Message(err)})
			return
		}
		h.respondError(c, err)
		return
	}

	h.record(c, audit.Event{Action: audit.ActionUserDeleted, EntityID: targetID})
	c.JSON(http.StatusOK, gin.H{"message": "User deleted successfully"})
}
