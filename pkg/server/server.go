package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corvidaelabs/farmhand/pkg/config"
	"github.com/corvidaelabs/farmhand/pkg/logging"
	"github.com/corvidaelabs/farmhand/pkg/middleware"
	"github.com/corvidaelabs/farmhand/pkg/monitoring"
)

// Config represents server configuration
type Config struct {
	Port            string
	ServiceName     string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DefaultConfig returns default server configuration
func DefaultConfig(serviceName, defaultPort string) Config {
	return Config{
		Port:            config.GetEnv("PORT", defaultPort),
		ServiceName:     serviceName,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    60 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
	}
}

// SetupServiceRouter creates a Gin router with the common middleware chain
// plus /health and /metrics.
func SetupServiceRouter(logger logging.Logger, serviceName string, hc *monitoring.HealthChecker, mc *monitoring.MetricsCollector, allowedOrigins []string) *gin.Engine {
	if config.GetEnv("GIN_MODE", "debug") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	middleware.SetupCommonMiddleware(router, logger, allowedOrigins)

	if mc != nil {
		router.Use(mc.MetricsMiddleware())
		router.GET("/metrics", mc.Handler())
	}

	if hc != nil {
		router.GET("/health", hc.Handler())
	} else {
		router.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{"status": monitoring.StatusHealthy, "service": serviceName})
		})
	}

	return router
}

// Start starts the HTTP server and blocks until SIGINT or SIGTERM, then shuts down gracefully.
func Start(cfg Config, router *gin.Engine, logger logging.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", ":"+cfg.Port)
	if err != nil {
		return fmt.Errorf("listen on port %s: %w", cfg.Port, err)
	}
	return Serve(ctx, cfg, ln, router, logger)
}

// Serve runs the server on ln until ctx is cancelled.
func Serve(ctx context.Context, cfg Config, ln net.Listener, router http.Handler, logger logging.Logger) error {
	srv := &http.Server{
		Handler:      router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.WithFields(logging.Fields{
			"addr":    ln.Addr().String(),
			"service": cfg.ServiceName,
		}).Info("Starting HTTP server")

		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.WithField("service", cfg.ServiceName).Info("Shutting down server...")

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}

	logger.WithField("service", cfg.ServiceName).Info("Server stopped")
	return nil
}
