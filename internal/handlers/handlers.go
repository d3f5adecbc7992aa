package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corvidaelabs/farmhand/internal/loaders"
	"github.com/corvidaelabs/farmhand/internal/middleware"
	"github.com/corvidaelabs/farmhand/pkg/logging"
)

// Handler renders loader outcomes as JSON page data.
type Handler struct {
	loaders  *loaders.Loaders
	identity middleware.IdentityResolver
	cookies  middleware.CookieSettings
	logger   logging.Logger
}

func NewHandler(l *loaders.Loaders, identity middleware.IdentityResolver, cookies middleware.CookieSettings, logger logging.Logger) *Handler {
	return &Handler{
		loaders:  l,
		identity: identity,
		cookies:  cookies,
		logger:   logger,
	}
}

// RegisterRoutes mounts the dashboard pages. The public stream page is only
// mounted when publicStreams is set.
func (h *Handler) RegisterRoutes(r gin.IRouter, publicStreams bool) {
	l := h.loaders

	r.GET("/login", h.Login)
	r.POST("/logout", h.Logout)

	dashboard := r.Group("/dashboard")
	{
		dashboard.GET("", h.Page(l.Dashboard))

		admin := dashboard.Group("/admin", h.Guard(l.AdminGate))
		{
			admin.GET("", h.Page(l.AdminUsers))
			admin.GET("/users/lookup", h.Page(l.UserLookup))
		}
		// Form actions check their own inputs; the upstream authorizes the token.
		dashboard.POST("/admin", h.Actions(l.AdminActions()))

		dashboard.GET("/streams", h.Page(l.StreamsLayout))
		dashboard.GET("/streams/:stream_id", h.Page(loaders.Chain(l.StreamsLayout, l.StreamPage)))
	}

	if publicStreams {
		r.GET("/streams/:username/:stream_id", h.Page(l.PublicStreamPage))
	}
}

// newRequest collects what loaders may read from the gin context.
func newRequest(c *gin.Context) *loaders.Request {
	params := make(map[string]string, len(c.Params))
	for _, p := range c.Params {
		params[p.Key] = p.Value
	}

	req := &loaders.Request{
		User:   middleware.SessionUser(c),
		Token:  middleware.SessionToken(c),
		Params: params,
		Query:  c.Request.URL.Query(),
	}
	if c.Request.Method == http.MethodPost {
		if err := c.Request.ParseForm(); err == nil {
			req.Form = c.Request.PostForm
		}
	}
	return req
}

// Page runs loader and renders its outcome.
func (h *Handler) Page(loader loaders.Loader) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := loader(c.Request.Context(), newRequest(c))
		if err != nil {
			abortWithError(c, h.logger, err)
			return
		}
		render(c, out)
	}
}

// Guard runs loader as middleware: a nil outcome continues the chain,
// anything else is rendered and stops it.
func (h *Handler) Guard(loader loaders.Loader) gin.HandlerFunc {
	return func(c *gin.Context) {
		out, err := loader(c.Request.Context(), newRequest(c))
		if err != nil {
			abortWithError(c, h.logger, err)
			return
		}
		if out != nil {
			render(c, out)
			c.Abort()
			return
		}
		c.Next()
	}
}

func render(c *gin.Context, out loaders.Outcome) {
	switch o := out.(type) {
	case nil:
		c.JSON(http.StatusOK, gin.H{})
	case loaders.Data:
		c.JSON(http.StatusOK, o)
	case loaders.Redirect:
		c.Redirect(o.Status, o.Location)
	case loaders.Failure:
		c.JSON(o.Status, o.Payload)
	default:
		c.AbortWithStatus(http.StatusInternalServerError)
	}
}
