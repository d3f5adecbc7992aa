package handlers

import (
	"context"
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/corvidaelabs/farmhand/internal/loaders"
	"github.com/corvidaelabs/farmhand/pkg/clients"
	"github.com/corvidaelabs/farmhand/pkg/clients/farmhand"
	"github.com/corvidaelabs/farmhand/pkg/logging"
	pkgmiddleware "github.com/corvidaelabs/farmhand/pkg/middleware"
)

var kindResponses = map[farmhand.ErrorKind]struct {
	status  int
	message string
}{
	farmhand.KindInvalidToken: {http.StatusUnauthorized, "Unauthorized"},
	farmhand.KindUnknown:      {http.StatusInternalServerError, "Internal Error"},
}

// statusFor maps an error escaping a loader to the status and public message
// shown to the browser. Upstream details are only logged.
func statusFor(err error) (int, string) {
	if errors.Is(err, context.Canceled) {
		return 499, "Client Closed Request"
	}
	resp := kindResponses[farmhand.KindOf(err)]
	return resp.status, resp.message
}

// abortWithError is the error boundary for loaders.
func abortWithError(c *gin.Context, logger logging.Logger, err error) {
	status, message := statusFor(err)

	entry := pkgmiddleware.GetContextLogger(c, logger).WithError(err).WithField("kind", farmhand.KindOf(err).String())
	switch {
	case clients.IsCircuitOpen(err):
		entry.Warn("Farmhand API circuit open, request rejected")
	case status >= http.StatusInternalServerError:
		entry.Error("Loader failed")
	default:
		entry.Warn("Loader failed")
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(status, loaders.Message{Success: false, Message: message})
}
