package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/corvidaelabs/farmhand/pkg/ctxkeys"
	"github.com/corvidaelabs/farmhand/pkg/logging"
)

// SetupCommonMiddleware adds all common middleware to a router
func SetupCommonMiddleware(r *gin.Engine, logger logging.Logger, allowedOrigins []string) {
	r.Use(RequestIDMiddleware())
	r.Use(LoggingMiddleware(logger))
	r.Use(RecoveryMiddleware(logger))
	r.Use(CORSMiddleware(allowedOrigins))
}

// GetRequestID gets the request ID from the context
func GetRequestID(c *gin.Context) string {
	return c.GetString(ctxkeys.KeyRequestID.String())
}

// GetContextLogger gets a logger with request context
func GetContextLogger(c *gin.Context, logger logging.Logger) logging.Entry {
	return logger.WithFields(logging.Fields{
		"request_id": GetRequestID(c),
		"method":     c.Request.Method,
		"path":       c.Request.URL.Path,
		"client_ip":  c.ClientIP(),
		"username":   c.GetString(ctxkeys.KeyUsername.String()),
	})
}
