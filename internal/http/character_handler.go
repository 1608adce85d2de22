package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/messaging"
	"pnp-generator/internal/service"
)

// CharacterHandler expone /resource/character sobre el productor del bus.
type CharacterHandler struct {
	logger          *zap.Logger
	producer        *service.CharacterProducer
	defaultGameType domain.GameType
}

func NewCharacterHandler(logger *zap.Logger, producer *service.CharacterProducer, defaultGameType domain.GameType) *CharacterHandler {
	return &CharacterHandler{
		logger:          logger,
		producer:        producer,
		defaultGameType: defaultGameType,
	}
}

// ListCharacters maneja GET /resource/character.
func (h *CharacterHandler) ListCharacters(c *gin.Context) {
	gameType, ok := h.gameType(c)
	if !ok {
		return
	}
	chars, err := h.producer.List(c.Request.Context(), callerHeader(c), gameType)
	if err != nil {
		h.writeError(c, "list characters", err)
		return
	}
	c.JSON(http.StatusOK, chars)
}

// GenerateCharacter maneja GET y POST /resource/character/generate.
// POST acepta un personaje parcial como semilla.
func (h *CharacterHandler) GenerateCharacter(c *gin.Context) {
	gameType, ok := h.gameType(c)
	if !ok {
		return
	}
	var seed *domain.Character
	if c.Request.Method == http.MethodPost && c.Request.ContentLength != 0 {
		seed = &domain.Character{}
		if err := c.ShouldBindJSON(seed); err != nil {
			h.logger.Warn("invalid character seed", zap.Error(err))
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
			return
		}
	}

	res, err := h.producer.Generate(c.Request.Context(), callerHeader(c), gameType, seed)
	if err != nil {
		h.writeError(c, "generate character", err)
		return
	}
	if res.Pending() {
		c.JSON(http.StatusAccepted, gin.H{"uuid": res.CorrelationID})
		return
	}
	c.JSON(http.StatusOK, res.Character)
}

// GetResult maneja GET /resource/character/result/:uuid. Solo el dueno (o un admin) lo ve.
func (h *CharacterHandler) GetResult(c *gin.Context) {
	id := strings.TrimSpace(c.Param("uuid"))
	view, err := h.producer.Result(c.Request.Context(), callerHeader(c), id)
	if err != nil {
		if errors.Is(err, messaging.ErrUnknownCorrelation) {
			c.JSON(http.StatusNotFound, gin.H{"error": "unknown request id"})
			return
		}
		h.writeError(c, "get result", err)
		return
	}
	switch view.State {
	case messaging.StatePending:
		c.JSON(http.StatusAccepted, view)
	case messaging.StateTimedOut:
		c.JSON(http.StatusGatewayTimeout, view)
	case messaging.StateFailed:
		c.JSON(http.StatusBadGateway, view)
	default:
		c.JSON(http.StatusOK, view)
	}
}

// ListResults maneja GET /resource/character/results: generaciones completadas de quien llama.
func (h *CharacterHandler) ListResults(c *gin.Context) {
	views, err := h.producer.Results(c.Request.Context(), callerHeader(c))
	if err != nil {
		h.writeError(c, "list results", err)
		return
	}
	c.JSON(http.StatusOK, views)
}

// DeleteCharacter maneja DELETE /resource/character/:id.
func (h *CharacterHandler) DeleteCharacter(c *gin.Context) {
	gameType, ok := h.gameType(c)
	if !ok {
		return
	}
	id := strings.TrimSpace(c.Param("id"))
	if id == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid character id"})
		return
	}
	if err := h.producer.Delete(c.Request.Context(), callerHeader(c), gameType, id); err != nil {
		h.writeError(c, "delete character", err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *CharacterHandler) gameType(c *gin.Context) (domain.GameType, bool) {
	return queryGameType(c, h.defaultGameType)
}

// queryGameType lee ?gameType= como numero o nombre; ausente o desconocido usa def.
func queryGameType(c *gin.Context, def domain.GameType) (domain.GameType, bool) {
	raw := strings.TrimSpace(c.Query("gameType"))
	if raw == "" {
		return def, true
	}
	if n, err := strconv.Atoi(raw); err == nil {
		return domain.GameTypeFromValue(n, def), true
	}
	if g, ok := domain.ParseGameType(raw); ok {
		return g, true
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid gameType"})
	return 0, false
}

func (h *CharacterHandler) writeError(c *gin.Context, op string, err error) {
	writeDispatchError(c, h.logger, op, err)
}

// writeDispatchError traduce errores del bus y del worker a codigos HTTP.
// Un fallo de codificacion responde 200 con cuerpo null.
func writeDispatchError(c *gin.Context, logger *zap.Logger, op string, err error) {
	switch {
	case errors.Is(err, messaging.ErrTimeout):
		logger.Warn(op+" timed out", zap.Error(err))
		c.JSON(http.StatusGatewayTimeout, gin.H{"error": "worker did not answer in time"})
	case errors.Is(err, messaging.ErrEncoding):
		logger.Error(op+" encoding failed", zap.Error(err))
		c.JSON(http.StatusOK, nil)
	case errors.Is(err, service.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": "forbidden"})
	case errors.Is(err, service.ErrCharacterNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "character not found"})
	case errors.Is(err, service.ErrUserNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "user not found"})
	case errors.Is(err, service.ErrUserExists):
		c.JSON(http.StatusConflict, gin.H{"error": "user already registered"})
	case errors.Is(err, service.ErrInvalidUser), errors.Is(err, service.ErrInvalidEmail):
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
	case errors.Is(err, messaging.ErrTransport), errors.Is(err, messaging.ErrCacheFull):
		logger.Error(op+" transport failed", zap.Error(err))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message bus unavailable"})
	case errors.Is(err, messaging.ErrRemote):
		logger.Error(op+" failed on worker", zap.Error(err))
		c.JSON(http.StatusBadGateway, gin.H{"error": "worker failed"})
	case errors.Is(err, context.Canceled):
		c.Status(http.StatusServiceUnavailable)
	default:
		logger.Error(op+" failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
