package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/failsafe-go/failsafe-go/circuitbreaker"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corvidaelabs/farmhand/internal/loaders"
	"github.com/corvidaelabs/farmhand/internal/middleware"
	"github.com/corvidaelabs/farmhand/pkg/clients/farmhand"
	"github.com/corvidaelabs/farmhand/pkg/testutil"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeUpstream imitates the Farmhand API for two accounts.
type fakeUpstream struct {
	mu    sync.Mutex
	paths []string
	// streams answers /user/streams with a canned failure when set
	streams string
}

func (f *fakeUpstream) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	f.paths = append(f.paths, r.Method+" "+r.URL.Path+"?"+r.URL.RawQuery)
	streams := f.streams
	f.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	var user string
	switch r.Header.Get("Authorization") {
	case "Bearer admin-token":
		user = `{"username":"root","email":"root@example.com","role":"admin"}`
	case "Bearer alice-token":
		user = `{"username":"alice","email":"alice@example.com","role":"user"}`
	default:
		w.WriteHeader(http.StatusUnauthorized)
		return
	}

	switch r.URL.Path {
	case "/user/me":
		_, _ = io.WriteString(w, user)
	case "/user":
		if r.URL.Query().Get("email") == "" {
			_, _ = io.WriteString(w, `{"users":[{"username":"root","email":"root@example.com","role":"admin"},{"username":"alice","email":"alice@example.com","role":"user"}]}`)
			return
		}
		w.WriteHeader(http.StatusNotFound)
	case "/user/streams":
		switch streams {
		case "rejected":
			w.WriteHeader(http.StatusForbidden)
			return
		case "garbage":
			_, _ = io.WriteString(w, `<html>`)
			return
		}
		if id := r.URL.Query().Get("stream_id"); id != "" && id != "abc" {
			_, _ = io.WriteString(w, `{"streams":[]}`)
			return
		}
		_, _ = io.WriteString(w, `{"streams":[{"id":"abc","start_time":"2024-01-01T00:00:00Z","end_time":"2024-01-01T01:00:00Z","event_log_url":null,"video_url":null,"created_at":"2024-01-01T00:00:00Z","updated_at":"2024-01-01T01:00:00Z"}]}`)
	case "/user/events":
		_, _ = io.WriteString(w, `{"events":[{"type":"chat","message":"hi"}]}`)
	case "/auth/shadow":
		var body struct{ Username string }
		_ = json.NewDecoder(r.Body).Decode(&body)
		_, _ = io.WriteString(w, `{"token":"shadow-`+body.Username+`"}`)
	default:
		w.WriteHeader(http.StatusNotFound)
	}
}

func (f *fakeUpstream) requests() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.paths...)
}

func setup(t *testing.T, publicStreams bool) (*gin.Engine, *fakeUpstream) {
	t.Helper()
	upstream := &fakeUpstream{}
	srv := httptest.NewServer(upstream)
	t.Cleanup(srv.Close)

	logger := logrus.New()
	logger.SetOutput(io.Discard)

	client := farmhand.NewClient(srv.URL, farmhand.WithLogger(logger))
	cookies := middleware.CookieSettings{Name: "jwt"}

	r := gin.New()
	r.Use(middleware.Session(client, cookies, logger))
	NewHandler(loaders.New(client), client, cookies, logger).RegisterRoutes(r, publicStreams)
	return r, upstream
}

func do(r http.Handler, method, target, token string, body io.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "jwt", Value: token})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestDashboardRequiresSession(t *testing.T) {
	r, _ := setup(t, false)

	w := do(r, http.MethodGet, "/dashboard", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/dashboard", "alice-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)
}

func TestAdminGateRedirects(t *testing.T) {
	r, upstream := setup(t, false)

	w := do(r, http.MethodGet, "/dashboard/admin", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))

	w = do(r, http.MethodGet, "/dashboard/admin", "alice-token", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))

	for _, p := range upstream.requests() {
		assert.True(t, strings.HasPrefix(p, "GET /user/me"), "only the session lookup ran, got %s", p)
	}
}

func TestAdminUsersPage(t *testing.T) {
	r, _ := setup(t, false)

	w := do(r, http.MethodGet, "/dashboard/admin", "admin-token", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Users []struct{ Username string } `json:"users"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Users, 2)
	assert.Equal(t, "alice", body.Users[1].Username)
}

func TestShadowUserAction(t *testing.T) {
	r, upstream := setup(t, false)

	form := url.Values{"username": {"alice"}}
	w := do(r, http.MethodPost, "/dashboard/admin?/shadowUser", "admin-token", strings.NewReader(form.Encode()))
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"token":"shadow-alice"}`, w.Body.String())

	before := len(upstream.requests())
	w = do(r, http.MethodPost, "/dashboard/admin?/shadowUser", "admin-token", strings.NewReader(""))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.JSONEq(t, `{"error":"Bad Credentials"}`, w.Body.String())
	assert.Len(t, upstream.requests(), before+1, "only the session lookup ran")
}

func TestShadowUserActionWithoutTokenIsBadCredentials(t *testing.T) {
	r, upstream := setup(t, false)

	form := url.Values{"username": {"alice"}}
	w := do(r, http.MethodPost, "/dashboard/admin?/shadowUser", "", strings.NewReader(form.Encode()))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Empty(t, w.Header().Get("Location"))
	assert.JSONEq(t, `{"error":"Bad Credentials"}`, w.Body.String())
	assert.Empty(t, upstream.requests(), "no upstream call without a token")

	w = do(r, http.MethodGet, "/dashboard/admin", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code, "the admin page itself stays gated")
}

func TestShadowUserActionRejectedTokenIsBadCredentials(t *testing.T) {
	r, _ := setup(t, false)

	form := url.Values{"username": {"alice"}}
	w := do(r, http.MethodPost, "/dashboard/admin?/shadowUser", "forged", strings.NewReader(form.Encode()))
	assert.Equal(t, http.StatusBadRequest, w.Code, "a rejected cookie is dropped by the session, so the token is missing")
}

func TestErrorBoundaryLogsOpenCircuit(t *testing.T) {
	var buf strings.Builder
	logger := logrus.New()
	logger.SetFormatter(&logrus.JSONFormatter{})
	logger.SetOutput(&buf)

	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/dashboard/streams", nil)

	abortWithError(c, logger, &farmhand.Error{Op: "get_streams_by_token", Kind: farmhand.KindUnknown, Err: circuitbreaker.ErrOpen})

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal Error"}`, w.Body.String())
	assert.Contains(t, buf.String(), "circuit open")
	assert.Contains(t, buf.String(), `"level":"warning"`)
}

func TestUnknownActionIsNotFound(t *testing.T) {
	r, _ := setup(t, false)

	w := do(r, http.MethodPost, "/dashboard/admin?/deleteEverything", "admin-token", strings.NewReader(""))
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(r, http.MethodPost, "/dashboard/admin", "admin-token", strings.NewReader(""))
	assert.Equal(t, http.StatusNotFound, w.Code, "admin page has no default action")
}

func TestUserLookupNotFoundIsNull(t *testing.T) {
	r, _ := setup(t, false)
	w := do(r, http.MethodGet, "/dashboard/admin/users/lookup?email=ghost%40example.com", "admin-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"user":null}`, w.Body.String())
}

func TestStreamsLayout(t *testing.T) {
	r, _ := setup(t, false)

	w := do(r, http.MethodGet, "/dashboard/streams", "", nil)
	assert.Equal(t, http.StatusTemporaryRedirect, w.Code)

	w = do(r, http.MethodGet, "/dashboard/streams", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"streams":[{"id":"abc"`)
	assert.NotContains(t, w.Body.String(), "active_stream_id")
}

func TestStreamPageMergesLayoutData(t *testing.T) {
	r, upstream := setup(t, false)

	w := do(r, http.MethodGet, "/dashboard/streams/abc", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)

	var body map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.JSONEq(t, `"abc"`, string(body["active_stream_id"]))
	assert.JSONEq(t, `[{"type":"chat","message":"hi"}]`, string(body["events"]))
	assert.Contains(t, string(body["stream"]), `"end_time":"2024-01-01T01:00:00Z"`)
	assert.Contains(t, body, "user")
	assert.Contains(t, body, "streams")

	assert.Contains(t, upstream.requests(), "GET /user/events?end_time=2024-01-01T01%3A00%3A00Z&start_time=2024-01-01T00%3A00%3A00Z&username=alice")
}

func TestStreamPageMissingStream(t *testing.T) {
	r, _ := setup(t, false)
	w := do(r, http.MethodGet, "/dashboard/streams/nope", "alice-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Not Found"}`, w.Body.String())
}

func TestPublicStreamPageIsFlagGated(t *testing.T) {
	r, _ := setup(t, false)
	w := do(r, http.MethodGet, "/streams/alice/abc", "alice-token", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	r, _ = setup(t, true)
	w = do(r, http.MethodGet, "/streams/alice/abc", "alice-token", nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = do(r, http.MethodGet, "/streams/alice/abc", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Unauthorized"}`, w.Body.String())
}

func TestUpstreamFailureHitsErrorBoundary(t *testing.T) {
	r, upstream := setup(t, false)

	upstream.mu.Lock()
	upstream.streams = "rejected"
	upstream.mu.Unlock()
	w := do(r, http.MethodGet, "/dashboard/streams", "alice-token", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Unauthorized"}`, w.Body.String())

	upstream.mu.Lock()
	upstream.streams = "garbage"
	upstream.mu.Unlock()
	w = do(r, http.MethodGet, "/dashboard/streams", "alice-token", nil)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"success":false,"message":"Internal Error"}`, w.Body.String())
	assert.NotContains(t, w.Body.String(), "html", "upstream bodies never reach the browser")
}

func TestErrorBoundaryStatus(t *testing.T) {
	status, message := statusFor(&farmhand.Error{Op: "x", Kind: farmhand.KindInvalidToken, StatusCode: 401})
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "Unauthorized", message)

	status, message = statusFor(&farmhand.Error{Op: "x", Kind: farmhand.KindUnknown})
	assert.Equal(t, http.StatusInternalServerError, status)
	assert.Equal(t, "Internal Error", message)
}

func TestLoginSetsCookieAndRedirects(t *testing.T) {
	r, _ := setup(t, false)

	w := do(r, http.MethodGet, "/login?token=alice-token", "", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	setCookie := w.Header().Get("Set-Cookie")
	assert.Contains(t, setCookie, "jwt=alice-token")
	assert.Contains(t, setCookie, "HttpOnly")

	w = do(r, http.MethodGet, "/login?token=forged", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Empty(t, w.Header().Get("Set-Cookie"))
}

func TestLoginWithoutToken(t *testing.T) {
	r, _ := setup(t, false)
	w := do(r, http.MethodGet, "/login", "alice-token", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"authenticated":true`)
}

func TestLogoutClearsCookie(t *testing.T) {
	r, _ := setup(t, false)
	w := do(r, http.MethodPost, "/logout", "alice-token", nil)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/login", w.Header().Get("Location"))
	assert.Contains(t, w.Header().Get("Set-Cookie"), "Max-Age=0")
}

func TestCookieMaxAge(t *testing.T) {
	helper := testutil.NewJWTTestHelper()
	now := time.Now()
	token, err := helper.GenerateToken("u", time.Hour)
	require.NoError(t, err)
	assert.InDelta(t, 3600, cookieMaxAge(token, now), 2)

	expired, err := helper.GenerateExpiredToken("u")
	require.NoError(t, err)
	assert.Equal(t, -1, cookieMaxAge(expired, now))

	assert.Equal(t, 0, cookieMaxAge("opaque", now))
}
