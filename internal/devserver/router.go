package devserver

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/cors"

	"github.com/eternisai/maintenance-tracker/internal/errors"
	"github.com/eternisai/maintenance-tracker/internal/events"
	"github.com/eternisai/maintenance-tracker/internal/logger"
)

// RouterConfig wires the dev backend's collaborators.
type RouterConfig struct {
	Handler        *Handler
	Hub            *events.Hub
	Metrics        http.Handler
	AllowedOrigins []string
	Logger         *logger.Logger
}

// NewRouter builds the gin engine and wraps it in CORS handling.
func NewRouter(cfg RouterConfig) http.Handler {
	router := gin.New()
	router.Use(RequestIDMiddleware())
	router.Use(Recovery(cfg.Logger))
	router.Use(RequestLogger(cfg.Logger))

	router.GET("/", cfg.Handler.Root)
	router.GET("/health", cfg.Handler.Health)
	if cfg.Metrics != nil {
		router.GET("/metrics", gin.WrapH(cfg.Metrics))
	}

	api := router.Group("/api")
	{
		reqs := api.Group("/requests")
		{
			reqs.GET("", cfg.Handler.ListRequests)
			reqs.POST("", cfg.Handler.CreateRequest)
		}

		api.GET("/analytics/stats", cfg.Handler.Stats)

		if cfg.Hub != nil {
			api.GET("/events", cfg.Hub.ServeWS)
		}
	}

	router.NoRoute(func(c *gin.Context) {
		errors.AbortWithNotFound(c, "Not Found")
	})

	c := cors.New(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
	})
	return c.Handler(router)
}

// RequestIDMiddleware propagates X-Request-ID, generating one when absent,
// and stores it in the request context for logging.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		requestID := c.GetHeader("X-Request-ID")
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Header("X-Request-ID", requestID)
		c.Request = c.Request.WithContext(logger.WithRequestID(c.Request.Context(), requestID))
		c.Next()
	}
}

// Recovery turns a handler panic into a 500 APIError response.
func Recovery(log *logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return gin.CustomRecovery(func(c *gin.Context, recovered any) {
		log.WithContext(c.Request.Context()).Error("handler panicked",
			slog.Any("panic", recovered),
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()))
		errors.AbortWithInternal(c, "Internal server error")
	})
}

// RequestLogger logs one line per request.
func RequestLogger(log *logger.Logger) gin.HandlerFunc {
	log = log.WithComponent("http")
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		log.WithContext(c.Request.Context()).Info("request handled",
			slog.String("method", c.Request.Method),
			slog.String("path", c.FullPath()),
			slog.Int("status", c.Writer.Status()),
			slog.Duration("duration", time.Since(start)))
	}
}
