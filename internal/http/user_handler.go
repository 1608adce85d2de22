package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/service"
)

// UserHandler mantiene dependencias para endpoints de usuarios.
type UserHandler struct {
	logger  *zap.Logger
	users   *service.UserInfoProducer
	jwtServ *service.JWTService
}

// NewUserHandler crea una instancia de UserHandler con dependencias necesarias.
func NewUserHandler(logger *zap.Logger, users *service.UserInfoProducer, jwtServ *service.JWTService) *UserHandler {
	return &UserHandler{
		logger:  logger,
		users:   users,
		jwtServ: jwtServ,
	}
}

// CreateUser maneja POST /users: registra por SAVE_NEW_USER y emite un access token.
// Un sujeto ya registrado responde 409 sin token.
func (h *UserHandler) CreateUser(c *gin.Context) {
	var req struct {
		ExternalID string `json:"externalIdentifer" binding:"required"`
		FirstName  string `json:"vorname"`
		LastName   string `json:"nachname"`
		Name       string `json:"name"`
		Email      string `json:"mail" binding:"omitempty,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Warn("invalid create user request", zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	user, err := h.users.SaveNewUser(c.Request.Context(), domain.User{
		ExternalID: req.ExternalID,
		FirstName:  req.FirstName,
		LastName:   req.LastName,
		Name:       req.Name,
		Email:      req.Email,
	})
	if err != nil {
		writeDispatchError(c, h.logger, "create user", err)
		return
	}

	token, err := h.jwtServ.IssueAccessToken(user)
	if err != nil {
		h.logger.Error("jwt issue failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not issue tokens"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"user":         user,
		"access_token": token.AccessToken,
		"expires_in":   token.ExpiresIn,
	})
}

// Me maneja GET /users/me.
func (h *UserHandler) Me(c *gin.Context) {
	header := callerHeader(c)
	user, err := h.users.GetInternalUser(c.Request.Context(), header.ExternalID)
	if err != nil {
		writeDispatchError(c, h.logger, "get internal user", err)
		return
	}
	c.JSON(http.StatusOK, user)
}
