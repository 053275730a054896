package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/sirosfoundation/go-chat-backend/internal/domain"
	"github.com/sirosfoundation/go-chat-backend/internal/metrics"
	"github.com/sirosfoundation/go-chat-backend/pkg/middleware"
)

// RegisterMessageRoutes mounts the messaging endpoints on rg. Every
// endpoint requires a session.
func (h *Handlers) RegisterMessageRoutes(rg *gin.RouterGroup, requireUser gin.HandlerFunc) {
	rg.Use(requireUser)
	rg.GET("/users", h.ListContacts)
	rg.GET("/:id", h.GetConversation)
	rg.POST("/send/:id", h.SendMessage)
}

// ListContacts returns every other user for the sidebar
func (h *Handlers) ListContacts(c *gin.Context) {
	users, err := h.services.Message.ListContacts(c.Request.Context(), middleware.CurrentUser(c))
	if err != nil {
		h.respondError(c, err, "list-contacts")
		return
	}
	if users == nil {
		users = []*domain.User{}
	}
	c.JSON(http.StatusOK, users)
}

// GetConversation returns the messages between the caller and :id
func (h *Handlers) GetConversation(c *gin.Context) {
	other := domain.UserID(c.Param("id"))
	msgs, err := h.services.Message.Conversation(c.Request.Context(), middleware.CurrentUser(c), other)
	if err != nil {
		h.respondError(c, err, "conversation")
		return
	}
	if msgs == nil {
		msgs = []*domain.Message{}
	}
	c.JSON(http.StatusOK, msgs)
}

// SendMessage stores a message for :id and pushes it if they are online
func (h *Handlers) SendMessage(c *gin.Context) {
	var req domain.SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsEmpty() {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Message text or image is required"})
		return
	}

	msg, err := h.services.Message.Send(c.Request.Context(), middleware.CurrentUser(c), domain.UserID(c.Param("id")), &req)
	if err != nil {
		h.respondError(c, err, "send-message")
		return
	}

	metrics.MessagesSentTotal.Inc()
	c.JSON(http.StatusCreated, msg)
}
