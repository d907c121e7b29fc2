package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/witanage/CW-Budget-sub000/internal/config"
)

// NewRouter assembles the HTTP surface over the rate service.
func NewRouter(svc RateService, cfg config.ForecastConfig, logger zerolog.Logger) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))

	handlers := NewHandlers(svc, cfg, logger)

	router.GET("/healthz", handlers.Health)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/rates", handlers.GetRate)
		v1.POST("/rates/import", handlers.ImportCSV)
		v1.GET("/rates/trends", handlers.GetTrends)
		v1.GET("/rates/forecast", handlers.GetForecast)
		v1.GET("/refresh/attempts", handlers.ListRefreshAttempts)
		v1.GET("/refresh/config", handlers.GetRefreshConfig)
		v1.PUT("/refresh/config", handlers.UpdateRefreshConfig)
	}

	return router
}

func requestLogger(logger zerolog.Logger) gin.HandlerFunc {
	accessLogger := logger.With().Str("component", "http").Logger()
	return func(c *gin.Context) {
		started := time.Now()
		c.Next()

		accessLogger.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", time.Since(started)).
			Msg("request handled")
	}
}
