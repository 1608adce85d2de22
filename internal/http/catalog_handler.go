package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pnp-generator/internal/domain"
	"pnp-generator/internal/service"
)

// CatalogHandler expone las clases y genomas de un tipo de juego.
type CatalogHandler struct {
	logger   *zap.Logger
	catalog  *service.CatalogProducer
	gameType domain.GameType
}

func NewCatalogHandler(logger *zap.Logger, catalog *service.CatalogProducer, gameType domain.GameType) *CatalogHandler {
	return &CatalogHandler{
		logger:   logger,
		catalog:  catalog,
		gameType: gameType,
	}
}

// GameType es el tipo de juego cuyas rutas atiende el handler.
func (h *CatalogHandler) GameType() domain.GameType {
	return h.gameType
}

// ListGenomes maneja GET /resource/<game>/genome.
func (h *CatalogHandler) ListGenomes(c *gin.Context) {
	origins, err := h.catalog.Origins(c.Request.Context(), callerHeader(c), h.gameType)
	if err != nil {
		writeDispatchError(c, h.logger, "list genomes", err)
		return
	}
	c.JSON(http.StatusOK, origins)
}

// ListClasses maneja GET /resource/<game>/class.
func (h *CatalogHandler) ListClasses(c *gin.Context) {
	classes, err := h.catalog.Classes(c.Request.Context(), callerHeader(c), h.gameType)
	if err != nil {
		writeDispatchError(c, h.logger, "list classes", err)
		return
	}
	c.JSON(http.StatusOK, classes)
}
