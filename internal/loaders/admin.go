package loaders

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// AdminGate guards the admin section.
func (l *Loaders) AdminGate(_ context.Context, req *Request) (Outcome, error) {
	if req.User == nil {
		return toLogin(http.StatusTemporaryRedirect), nil
	}
	if !req.User.IsAdmin() {
		return Redirect{Status: http.StatusTemporaryRedirect, Location: "/dashboard"}, nil
	}
	return nil, nil
}

// AdminUsers loads every user for the admin page.
func (l *Loaders) AdminUsers(ctx context.Context, req *Request) (Outcome, error) {
	if req.User == nil || req.Token == "" {
		return toLogin(http.StatusSeeOther), nil
	}

	users, err := l.api.GetAllUsers(ctx, req.Token)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	return Data{"users": users}, nil
}

// ShadowUser trades the admin's token for one acting as the submitted username.
func (l *Loaders) ShadowUser(ctx context.Context, req *Request) (Outcome, error) {
	username := req.Form.Get("username")
	if username == "" || req.Token == "" {
		return badCredentials(), nil
	}

	token, err := l.api.GetShadowUserToken(ctx, req.Token, username)
	if err != nil {
		return nil, fmt.Errorf("shadow %s: %w", username, err)
	}
	return Data{"token": token}, nil
}

// UserLookup finds a single user by the email query parameter. An unknown
// email yields a null user.
func (l *Loaders) UserLookup(ctx context.Context, req *Request) (Outcome, error) {
	email := strings.TrimSpace(req.Query.Get("email"))
	if email == "" || req.Token == "" {
		return badCredentials(), nil
	}

	user, err := l.api.GetUserByEmail(ctx, email, req.Token)
	if err != nil {
		return nil, fmt.Errorf("lookup user: %w", err)
	}
	return Data{"user": user}, nil
}

// AdminActions are the named form actions of the admin page.
func (l *Loaders) AdminActions() map[string]Loader {
	return map[string]Loader{
		"shadowUser": l.ShadowUser,
	}
}
