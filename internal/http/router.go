package http

import (
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"pnp-generator/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	jwtSvc *service.JWTService,
	userH *UserHandler,
	characterH *CharacterHandler,
	catalogH *CatalogHandler,
) *gin.Engine {
	r := gin.New()

	// Middlewares basicos: logging, recovery y JSON content-type.
	r.Use(zapLoggerMiddleware(logger), gin.Recovery(), jsonContentTypeMiddleware())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	users := r.Group("/users")
	users.POST("", userH.CreateUser)
	users.GET("/me", JWTAuthMiddleware(jwtSvc), userH.Me)

	characters := r.Group("/resource/character", JWTAuthMiddleware(jwtSvc))
	characters.GET("", characterH.ListCharacters)
	characters.GET("/generate", characterH.GenerateCharacter)
	characters.POST("/generate", characterH.GenerateCharacter)
	characters.GET("/result/:uuid", characterH.GetResult)
	characters.GET("/results", characterH.ListResults)
	characters.DELETE("/:id", characterH.DeleteCharacter)

	catalog := r.Group("/resource/"+strings.ToLower(catalogH.GameType().String()), JWTAuthMiddleware(jwtSvc))
	catalog.GET("/genome", catalogH.ListGenomes)
	catalog.GET("/class", catalogH.ListClasses)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// jsonContentTypeMiddleware fuerza Content-Type: application/json en responses.
func jsonContentTypeMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Content-Type", "application/json")
		c.Next()
	}
}
