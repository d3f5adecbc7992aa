package main

import (
	"github.com/corvidaelabs/farmhand/internal/config"
	"github.com/corvidaelabs/farmhand/internal/handlers"
	"github.com/corvidaelabs/farmhand/internal/loaders"
	"github.com/corvidaelabs/farmhand/internal/middleware"
	"github.com/corvidaelabs/farmhand/pkg/clients"
	"github.com/corvidaelabs/farmhand/pkg/clients/farmhand"
	pkgconfig "github.com/corvidaelabs/farmhand/pkg/config"
	"github.com/corvidaelabs/farmhand/pkg/logging"
	"github.com/corvidaelabs/farmhand/pkg/monitoring"
	"github.com/corvidaelabs/farmhand/pkg/server"
	"github.com/corvidaelabs/farmhand/pkg/version"
)

const serviceName = "dashboard"

func main() {
	logger := logging.NewLoggerWithService(serviceName)

	pkgconfig.LoadEnv(logger)

	cfg, err := config.LoadConfig()
	if err != nil {
		logger.WithError(err).Fatal("Invalid configuration")
	}

	logger.WithFields(logging.Fields{
		"version": version.Version,
		"commit":  version.GetShortCommit(),
		"api_url": cfg.APIURL,
	}).Info("Starting Farmhand dashboard backend")

	// Setup monitoring
	healthChecker := monitoring.NewHealthChecker(serviceName, version.Version)
	metricsCollector := monitoring.NewMetricsCollector(serviceName, version.Version, version.GitCommit)

	breakerMetrics := clients.NewCircuitBreakerMetrics(metricsCollector.Registerer())
	breaker := clients.NewCircuitBreaker(clients.CircuitBreakerConfig{
		Name:          "farmhand-api",
		Delay:         cfg.BreakerOpenDuration,
		FailureRatio:  cfg.BreakerFailureRatio,
		MinRequests:   uint(cfg.BreakerMinRequests),
		Logger:        logger,
		OnStateChange: breakerMetrics.Callback(),
	})

	api := farmhand.NewClient(cfg.APIURL,
		farmhand.WithHTTPClient(clients.NewHTTPClient(cfg.UpstreamTimeout)),
		farmhand.WithCircuitBreaker(breaker),
		farmhand.WithLogger(logger),
		farmhand.WithMetrics(farmhand.NewMetrics(metricsCollector)),
	)

	healthChecker.AddCheck("config", monitoring.ConfigurationHealthCheck(map[string]string{
		"API_URL":     cfg.APIURL,
		"COOKIE_NAME": cfg.CookieName,
	}))
	healthChecker.AddCheck("farmhand_api", monitoring.UpstreamReachableCheck("farmhand-api", api.BaseURL()+"/user/me", nil))
	healthChecker.AddCheck("farmhand_api_circuit", clients.CircuitBreakerHealthCheck(breaker))

	cookies := middleware.CookieSettings{
		Name:   cfg.CookieName,
		Domain: cfg.CookieDomain,
		Secure: cfg.CookieSecure,
	}

	router := server.SetupServiceRouter(logger, serviceName, healthChecker, metricsCollector, cfg.AllowedOrigins)
	router.Use(middleware.Session(api, cookies, logger))

	h := handlers.NewHandler(loaders.New(api), api, cookies, logger)
	h.RegisterRoutes(router, cfg.PublicStreamPages)

	if cfg.PublicStreamPages {
		logger.Warn("Public stream pages enabled: /streams/:username/:stream_id skips the session check")
	}

	serverConfig := server.DefaultConfig(serviceName, cfg.Port)
	serverConfig.Port = cfg.Port
	if err := server.Start(serverConfig, router, logger); err != nil {
		logger.WithError(err).Fatal("Server startup failed")
	}
}
