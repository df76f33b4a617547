package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"messaging-service/internal/messaging"
	"messaging-service/internal/middleware"
	"messaging-service/internal/telemetry"
)

// UserHandler serves the user directory.
type UserHandler struct {
	service *messaging.Service
	audit   *telemetry.AuditEmitter
	logger  *zap.Logger
}

func NewUserHandler(service *messaging.Service, emitter *telemetry.AuditEmitter, logger *zap.Logger) *UserHandler {
	return &UserHandler{service: service, audit: emitter, logger: logger}
}

type registerRequest struct {
	Email           string `json:"email" binding:"required"`
	Username        string `json:"username" binding:"required"`
	FirstName       string `json:"first_name"`
	LastName        string `json:"last_name"`
	Password        string `json:"password" binding:"required"`
	PasswordConfirm string `json:"password_confirm" binding:"required"`
}

// Register creates an account.
func (h *UserHandler) Register(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, err)
		return
	}

	user, err := h.service.RegisterUser(c.Request.Context(), messaging.RegisterInput{
		Email:           req.Email,
		Username:        req.Username,
		FirstName:       req.FirstName,
		LastName:        req.LastName,
		Password:        req.Password,
		PasswordConfirm: req.PasswordConfirm,
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// ListUsers returns every user.
func (h *UserHandler) ListUsers(c *gin.Context) {
	users, err := h.service.ListUsers(c.Request.Context(), middleware.ActorFromContext(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"users": users})
}

// DeleteUser removes a user and everything tied to them.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	userID, ok := uuidParam(c, "user_id")
	if !ok {
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), middleware.ActorFromContext(c), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}
	audit(c, h.audit, "WARN", "user "+userID.String()+" deleted")
	c.JSON(http.StatusOK, gin.H{"message": "User and all related data deleted successfully"})
}
