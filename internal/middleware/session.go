package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"

	"github.com/corvidaelabs/farmhand/pkg/clients/farmhand"
	"github.com/corvidaelabs/farmhand/pkg/ctxkeys"
	"github.com/corvidaelabs/farmhand/pkg/logging"
	pkgmiddleware "github.com/corvidaelabs/farmhand/pkg/middleware"
	"github.com/corvidaelabs/farmhand/pkg/models"
)

// IdentityResolver turns a bearer token into the user it belongs to.
type IdentityResolver interface {
	GetTokenIdentity(ctx context.Context, token string) (*models.User, error)
}

// CookieSettings describes the session cookie.
type CookieSettings struct {
	Name   string
	Domain string
	Secure bool
}

// Set stores token in the session cookie for maxAge seconds.
func (s CookieSettings) Set(c *gin.Context, token string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Name, token, maxAge, "/", s.Domain, s.Secure, true)
}

// Clear expires the session cookie.
func (s CookieSettings) Clear(c *gin.Context) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(s.Name, "", -1, "/", s.Domain, s.Secure, true)
}

// ExtractToken reads the bearer token from the Authorization header, falling
// back to the session cookie.
func ExtractToken(c *gin.Context, cookieName string) (token string, fromCookie bool) {
	if header := c.GetHeader("Authorization"); header != "" {
		if after, ok := strings.CutPrefix(header, "Bearer "); ok && strings.TrimSpace(after) != "" {
			return strings.TrimSpace(after), false
		}
	}
	if cookie, err := c.Cookie(cookieName); err == nil && cookie != "" {
		return cookie, true
	}
	return "", false
}

// TokenExpiry reads the exp claim without verifying the signature. The
// upstream remains the authority on validity.
func TokenExpiry(token string) (time.Time, bool) {
	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return time.Time{}, false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}, false
	}
	return exp.Time, true
}

// Session resolves the caller's token to a user. It never aborts: requests
// without a usable token continue anonymously and the loaders decide.
func Session(resolver IdentityResolver, cookies CookieSettings, logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, fromCookie := ExtractToken(c, cookies.Name)
		if token == "" {
			c.Next()
			return
		}

		if exp, ok := TokenExpiry(token); ok && !exp.After(time.Now()) {
			if fromCookie {
				cookies.Clear(c)
			}
			c.Next()
			return
		}

		user, err := resolver.GetTokenIdentity(c.Request.Context(), token)
		switch {
		case err == nil:
			c.Set(ctxkeys.KeySessionToken.String(), token)
			if user != nil {
				c.Set(ctxkeys.KeyUser.String(), user)
				c.Set(ctxkeys.KeyUsername.String(), user.Username)
				c.Set(ctxkeys.KeyRole.String(), string(user.Role))
			}
		case farmhand.IsInvalidToken(err):
			if fromCookie {
				cookies.Clear(c)
			}
		default:
			// upstream trouble: keep the token so pages can still fail properly
			c.Set(ctxkeys.KeySessionToken.String(), token)
			pkgmiddleware.GetContextLogger(c, logger).WithError(err).Warn("Session lookup failed, continuing without user")
		}

		c.Next()
	}
}

// SessionUser returns the resolved user, or nil.
func SessionUser(c *gin.Context) *models.User {
	if v, ok := c.Get(ctxkeys.KeyUser.String()); ok {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}

// SessionToken returns the caller's token unless the upstream rejected it.
func SessionToken(c *gin.Context) string {
	return c.GetString(ctxkeys.KeySessionToken.String())
}
