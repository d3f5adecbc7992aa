// Package ctxkeys names the values request middleware stores on the gin context.
package ctxkeys

// Key is a typed context key to prevent collisions.
type Key string

func (k Key) String() string { return string(k) }

// Request keys
const (
	KeyRequestID Key = "request_id"
)

// Session keys. The user keys are set only when the token resolved to a
// user; the token is kept unless the upstream rejected it.
const (
	KeyUser         Key = "user"
	KeyUsername     Key = "username"
	KeyRole         Key = "role"
	KeySessionToken Key = "session_token"
)
