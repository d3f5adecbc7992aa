package handlers

import (
	"math"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/corvidaelabs/farmhand/internal/loaders"
	"github.com/corvidaelabs/farmhand/internal/middleware"
)

// Login accepts the token handed back by the upstream's OAuth and shadow
// redirects (/login?token=...), stores it in the session cookie and sends
// the browser to the dashboard. Without a token it reports the session state.
func (h *Handler) Login(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		user := middleware.SessionUser(c)
		c.JSON(http.StatusOK, gin.H{"authenticated": user != nil, "user": user})
		return
	}

	user, err := h.identity.GetTokenIdentity(c.Request.Context(), token)
	if err != nil {
		abortWithError(c, h.logger, err)
		return
	}
	if user == nil {
		c.JSON(http.StatusUnauthorized, loaders.Message{Success: false, Message: "Unauthorized"})
		return
	}

	h.cookies.Set(c, token, cookieMaxAge(token, time.Now()))
	c.Redirect(http.StatusSeeOther, "/dashboard")
}

// Logout clears the session cookie.
func (h *Handler) Logout(c *gin.Context) {
	h.cookies.Clear(c)
	c.Redirect(http.StatusSeeOther, "/login")
}

// cookieMaxAge keeps the cookie as long as the token is valid. Tokens without
// an exp claim get a browser-session cookie.
func cookieMaxAge(token string, now time.Time) int {
	exp, ok := middleware.TokenExpiry(token)
	if !ok {
		return 0
	}
	seconds := int(math.Ceil(exp.Sub(now).Seconds()))
	if seconds < 1 {
		return -1
	}
	return seconds
}
