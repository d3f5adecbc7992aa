package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/corvidaelabs/farmhand/internal/loaders"
)

const defaultAction = "default"

// actionName reads a form action from the query string: POST /page?/name
// selects "name", a plain POST selects the default action.
func actionName(c *gin.Context) string {
	for key := range c.Request.URL.Query() {
		if name, ok := strings.CutPrefix(key, "/"); ok && name != "" {
			return name
		}
	}
	return defaultAction
}

// Actions dispatches a POST to one of the named form actions.
func (h *Handler) Actions(actions map[string]loaders.Loader) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := actionName(c)
		action, ok := actions[name]
		if !ok {
			c.JSON(http.StatusNotFound, loaders.Message{Success: false, Message: "No action named " + name})
			return
		}
		h.Page(action)(c)
	}
}
