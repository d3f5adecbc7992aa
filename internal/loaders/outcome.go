// Package loaders holds the page, layout and action loaders of the
// dashboard. They do not depend on the HTTP framework: a handler builds a
// Request, runs a Loader and renders the Outcome.
package loaders

import (
	"context"
	"net/http"
	"net/url"

	"github.com/corvidaelabs/farmhand/pkg/models"
)

// Outcome is what a loader resolved to: Data, Redirect or Failure.
// A nil Outcome from a guard means "continue".
type Outcome interface {
	isOutcome()
}

// Data is page data handed to the view layer.
type Data map[string]any

// Redirect sends the browser elsewhere.
type Redirect struct {
	Status   int
	Location string
}

// Failure is a typed failure the page renders itself.
type Failure struct {
	Status  int
	Payload any
}

func (Data) isOutcome()     {}
func (Redirect) isOutcome() {}
func (Failure) isOutcome()  {}

// Message is the payload of 401 and 404 failures.
type Message struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// ActionError is the payload of failed form actions.
type ActionError struct {
	Error string `json:"error"`
}

func unauthorized() Failure {
	return Failure{Status: http.StatusUnauthorized, Payload: Message{Success: false, Message: "Unauthorized"}}
}

func notFound() Failure {
	return Failure{Status: http.StatusNotFound, Payload: Message{Success: false, Message: "Not Found"}}
}

func badCredentials() Failure {
	return Failure{Status: http.StatusBadRequest, Payload: ActionError{Error: "Bad Credentials"}}
}

func toLogin(status int) Redirect {
	return Redirect{Status: status, Location: "/login"}
}

// Request is everything a loader may read about the incoming request.
type Request struct {
	// User is the session user; nil without a session.
	User *models.User
	// Token is the raw jwt cookie value; empty when absent.
	Token  string
	Params map[string]string
	Query  url.Values
	Form   url.Values
}

// Param returns a route parameter or "".
func (r *Request) Param(name string) string {
	return r.Params[name]
}

// Loader resolves one page, layout or action. Upstream errors are returned
// as is for the caller's error boundary.
type Loader func(ctx context.Context, req *Request) (Outcome, error)

// Chain runs loaders in order the way nested layouts resolve. A Redirect or
// Failure stops the chain; Data from later loaders is merged over earlier
// Data. A chain of guards only returns nil.
func Chain(steps ...Loader) Loader {
	return func(ctx context.Context, req *Request) (Outcome, error) {
		var merged Data
		for _, step := range steps {
			out, err := step(ctx, req)
			if err != nil {
				return nil, err
			}
			switch o := out.(type) {
			case nil:
			case Data:
				if merged == nil {
					merged = Data{}
				}
				for k, v := range o {
					merged[k] = v
				}
			default:
				return out, nil
			}
		}
		if merged == nil {
			return nil, nil
		}
		return merged, nil
	}
}
