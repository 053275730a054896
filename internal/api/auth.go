package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/metrics"
	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

// RegisterAuthRoutes mounts the account endpoints on rg. requireUser guards
// the endpoints that need a session; limit throttles credential checks.
func (h *Handlers) RegisterAuthRoutes(rg *gin.RouterGroup, requireUser, limit gin.HandlerFunc) {
	rg.POST("/signup", limit, h.Signup)
	rg.POST("/login", limit, h.Login)
	rg.POST("/logout", h.Logout)
	rg.PUT("/update-profile", requireUser, h.UpdateProfile)
	rg.GET("/check", requireUser, h.Check)
}

// Signup creates an account and starts a session
func (h *Handlers) Signup(c *gin.Context) {
	var req domain.SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Full name, a valid email and a password of at least 6 characters are required"})
		return
	}

	user, token, err := h.services.User.Signup(c.Request.Context(), &req)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("signup", "failure").Inc()
		h.respondError(c, err, "signup")
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("signup", "success").Inc()
	h.setSessionCookie(c, token)
	c.JSON(http.StatusCreated, user)
}

// Login checks credentials and starts a session
func (h *Handlers) Login(c *gin.Context) {
	var req domain.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "invalid").Inc()
		c.JSON(http.StatusBadRequest, gin.H{"error": "Email and password are required"})
		return
	}

	user, token, err := h.services.User.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		metrics.AuthAttemptsTotal.WithLabelValues("login", "failure").Inc()
		h.respondError(c, err, "login")
		return
	}

	metrics.AuthAttemptsTotal.WithLabelValues("login", "success").Inc()
	h.setSessionCookie(c, token)
	c.JSON(http.StatusOK, user)
}

// Logout revokes the session token, if any, and clears the cookie
func (h *Handlers) Logout(c *gin.Context) {
	if token := middleware.Cookie(c.Request.Context(), h.cfg.JWT.CookieName); token != "" {
		h.services.User.Logout(c.Request.Context(), token)
	}
	h.clearSessionCookie(c)
	c.JSON(http.StatusOK, gin.H{"message": "Logged out successfully"})
}

// UpdateProfile replaces the caller's profile picture
func (h *Handlers) UpdateProfile(c *gin.Context) {
	var req domain.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Profile pic is required"})
		return
	}

	user, err := h.services.User.UpdateProfilePic(c.Request.Context(), middleware.CurrentUser(c), req.ProfilePic)
	if err != nil {
		h.respondError(c, err, "update-profile")
		return
	}

	c.JSON(http.StatusOK, user)
}

// Check returns the authenticated user
func (h *Handlers) Check(c *gin.Context) {
	user, err := h.services.User.GetUserByID(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err, "check")
		return
	}
	c.JSON(http.StatusOK, user)
}

func (h *Handlers) setSessionCookie(c *gin.Context, token string) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(
		h.cfg.JWT.CookieName,
		token,
		int(h.services.User.TokenTTL().Seconds()),
		"/",
		"",
		h.cfg.Server.IsProduction(),
		true,
	)
}

func (h *Handlers) clearSessionCookie(c *gin.Context) {
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.cfg.JWT.CookieName, "", -1, "/", "", h.cfg.Server.IsProduction(), true)
	h.logger.Debug("Session cookie cleared", zap.String("cookie", h.cfg.JWT.CookieName))
}
