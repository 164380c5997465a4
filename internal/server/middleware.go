package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"cdash/internal/api"
)

// DefaultOrigins are the local dashboard front-end origins.
var DefaultOrigins = []string{
	"http://localhost:3000",
	"http://localhost:5173", // Vite dev server
	"http://127.0.0.1:3000",
	"http://127.0.0.1:5173",
	"http://[::1]:3000", // IPv6 localhost
	"http://[::1]:5173",
}

// CORSMiddleware allows the dashboard front-end to call the API.
func CORSMiddleware(origins []string) gin.HandlerFunc {
	if len(origins) == 0 {
		origins = DefaultOrigins
	}
	return cors.New(cors.Config{
		AllowOrigins: origins,
		AllowMethods: []string{
			"GET", "POST", "PUT", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin", "Content-Type", "Accept", "Cache-Control", api.RequestIDHeader,
		},
		ExposeHeaders: []string{
			"Content-Type", "Cache-Control",
		},
		MaxAge: 12 * time.Hour,
	})
}

// RequestLogger logs every request once it completes.
func RequestLogger(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		fields := []zap.Field{
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("duration", time.Since(start)),
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		switch {
		case c.Writer.Status() >= 500:
			logger.Warn("request failed", fields...)
		default:
			logger.Debug("request", fields...)
		}
	}
}
