package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/corvidaelabs/farmhand/pkg/config"
)

// Config stores the dashboard service configuration.
type Config struct {
	APIURL string
	Port   string

	CookieName   string
	CookieDomain string
	CookieSecure bool

	AllowedOrigins []string

	UpstreamTimeout     time.Duration
	BreakerFailureRatio float64
	BreakerMinRequests  int
	BreakerOpenDuration time.Duration

	// PublicStreamPages exposes /streams/:username/:stream_id without a session.
	PublicStreamPages bool
}

// fileConfig is the optional YAML overlay named by DASHBOARD_CONFIG.
type fileConfig struct {
	APIURL              string   `yaml:"api_url"`
	Port                string   `yaml:"port"`
	CookieName          string   `yaml:"cookie_name"`
	CookieDomain        string   `yaml:"cookie_domain"`
	CookieSecure        *bool    `yaml:"cookie_secure"`
	AllowedOrigins      []string `yaml:"allowed_origins"`
	UpstreamTimeout     int      `yaml:"upstream_timeout_seconds"`
	BreakerFailureRatio float64  `yaml:"breaker_failure_ratio"`
	BreakerMinRequests  int      `yaml:"breaker_min_requests"`
	BreakerOpenSeconds  int      `yaml:"breaker_open_seconds"`
	PublicStreamPages   *bool    `yaml:"public_stream_pages"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Port:                "18090",
		CookieName:          "jwt",
		CookieSecure:        true,
		UpstreamTimeout:     30 * time.Second,
		BreakerFailureRatio: 0.5,
		BreakerMinRequests:  10,
		BreakerOpenDuration: 15 * time.Second,
	}
}

// LoadConfig builds the configuration from defaults, then the YAML file named
// by DASHBOARD_CONFIG, then environment variables.
func LoadConfig() (Config, error) {
	cfg := Defaults()

	if path := config.GetEnv("DASHBOARD_CONFIG", ""); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.APIURL = config.GetEnv("API_URL", cfg.APIURL)
	cfg.Port = config.GetEnv("PORT", cfg.Port)
	cfg.CookieName = config.GetEnv("COOKIE_NAME", cfg.CookieName)
	cfg.CookieDomain = config.GetEnv("COOKIE_DOMAIN", cfg.CookieDomain)
	cfg.CookieSecure = config.GetEnvBool("COOKIE_SECURE", cfg.CookieSecure)
	if origins := config.GetEnv("CORS_ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}
	cfg.UpstreamTimeout = config.GetEnvSeconds("UPSTREAM_TIMEOUT", cfg.UpstreamTimeout)
	cfg.BreakerFailureRatio = config.GetEnvFloat("UPSTREAM_CB_FAILURE_RATIO", cfg.BreakerFailureRatio)
	cfg.BreakerMinRequests = config.GetEnvInt("UPSTREAM_CB_MIN_REQUESTS", cfg.BreakerMinRequests)
	cfg.BreakerOpenDuration = config.GetEnvSeconds("UPSTREAM_CB_OPEN_SECONDS", cfg.BreakerOpenDuration)
	cfg.PublicStreamPages = config.GetEnvBool("PUBLIC_STREAM_PAGES", cfg.PublicStreamPages)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.APIURL != "" {
		c.APIURL = fc.APIURL
	}
	if fc.Port != "" {
		c.Port = fc.Port
	}
	if fc.CookieName != "" {
		c.CookieName = fc.CookieName
	}
	if fc.CookieDomain != "" {
		c.CookieDomain = fc.CookieDomain
	}
	if fc.CookieSecure != nil {
		c.CookieSecure = *fc.CookieSecure
	}
	if len(fc.AllowedOrigins) > 0 {
		c.AllowedOrigins = fc.AllowedOrigins
	}
	if fc.UpstreamTimeout > 0 {
		c.UpstreamTimeout = time.Duration(fc.UpstreamTimeout) * time.Second
	}
	if fc.BreakerFailureRatio > 0 {
		c.BreakerFailureRatio = fc.BreakerFailureRatio
	}
	if fc.BreakerMinRequests > 0 {
		c.BreakerMinRequests = fc.BreakerMinRequests
	}
	if fc.BreakerOpenSeconds > 0 {
		c.BreakerOpenDuration = time.Duration(fc.BreakerOpenSeconds) * time.Second
	}
	if fc.PublicStreamPages != nil {
		c.PublicStreamPages = *fc.PublicStreamPages
	}
	return nil
}

// Validate checks the values the service cannot start without.
func (c Config) Validate() error {
	if c.APIURL == "" {
		return errors.New("API_URL is required")
	}
	u, err := url.Parse(c.APIURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_URL %q is not an absolute URL", c.APIURL)
	}
	if c.CookieName == "" {
		return errors.New("COOKIE_NAME must not be empty")
	}
	if c.BreakerFailureRatio <= 0 || c.BreakerFailureRatio > 1 {
		return fmt.Errorf("UPSTREAM_CB_FAILURE_RATIO must be in (0, 1], got %v", c.BreakerFailureRatio)
	}
	if c.BreakerMinRequests < 1 {
		return fmt.Errorf("UPSTREAM_CB_MIN_REQUESTS must be positive, got %d", c.BreakerMinRequests)
	}
	return nil
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
