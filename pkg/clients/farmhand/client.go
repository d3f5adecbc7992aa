// Package farmhand is the client for the Farmhand API. Every call forwards
// the caller's bearer token and fails with an *Error of one of two kinds.
package farmhand

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"

	"github.com/corvidaelabs/farmhand/pkg/clients"
	"github.com/corvidaelabs/farmhand/pkg/logging"
	"github.com/corvidaelabs/farmhand/pkg/models"
)

const (
	opTokenIdentity = "get_token_identity"
	opUserByEmail   = "get_user_by_email"
	opStreams       = "get_streams_by_token"
	opEvents        = "get_events_by_date"
	opAllUsers      = "get_all_users"
	opShadowToken   = "get_shadow_user_token"

	// cap on how much of a rejected body ends up in the log
	maxLoggedBody = 64 << 10
)

// Client talks to the Farmhand API. It holds no per-user state and is safe
// for concurrent use.
type Client struct {
	baseURL      string
	client       *http.Client
	httpExecutor failsafe.Executor[*http.Response]
	breaker      *clients.CircuitBreaker
	logger       logging.Logger
	metrics      *Metrics
}

type Option func(*Client)

// NewClient creates a client for the API rooted at baseURL.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  clients.NewHTTPClient(30 * time.Second),
		logger:  logging.NewLogger(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.client = httpClient
		}
	}
}

// WithCircuitBreaker routes every call through cb. A nil breaker calls the
// upstream directly.
func WithCircuitBreaker(cb *clients.CircuitBreaker) Option {
	return func(c *Client) {
		c.breaker = cb
		c.httpExecutor = nil
		if cb != nil {
			c.httpExecutor = cb.Executor()
		}
	}
}

func WithLogger(logger logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// CircuitBreaker returns the breaker guarding the client, if any.
func (c *Client) CircuitBreaker() *clients.CircuitBreaker {
	return c.breaker
}

// BaseURL returns the API root the client was built with.
func (c *Client) BaseURL() string {
	return c.baseURL
}

func (c *Client) endpoint(path string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL + path)
	if err != nil {
		return "", fmt.Errorf("invalid API URL: %w", err)
	}
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// doRequest sends one request carrying the bearer token. payload, when non-nil,
// is sent as a JSON body. The request is never retried.
func (c *Client) doRequest(ctx context.Context, method, path string, query url.Values, token string, jsonHeader bool, payload any) (*http.Response, error) {
	target, err := c.endpoint(path, query)
	if err != nil {
		return nil, err
	}

	var body []byte
	if payload != nil {
		body, err = json.Marshal(payload)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
	}

	return clients.ExecuteHTTP(ctx, c.httpExecutor, func() (*http.Response, error) {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Authorization", "Bearer "+token)
		if jsonHeader || body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		return c.client.Do(req)
	})
}

func closeBody(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxLoggedBody))
	_ = resp.Body.Close()
}

func isSuccess(resp *http.Response) bool {
	return resp.StatusCode >= 200 && resp.StatusCode < 300
}

func decode(resp *http.Response, out any) error {
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// GetTokenIdentity returns the user the token belongs to. A JSON null body
// yields a nil user. Rejections are logged with status, headers and body.
func (c *Client) GetTokenIdentity(ctx context.Context, token string) (user *models.User, err error) {
	defer c.metrics.observe(opTokenIdentity, time.Now(), &err)

	resp, err := c.doRequest(ctx, http.MethodGet, "/user/me", nil, token, true, nil)
	if err != nil {
		return nil, classify(opTokenIdentity, err)
	}
	defer closeBody(resp)

	if !isSuccess(resp) {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxLoggedBody))
		c.logger.WithFields(logging.Fields{
			"status":  resp.StatusCode,
			"headers": resp.Header,
			"body":    string(raw),
		}).Error("Token identity request rejected")
		return nil, invalidToken(opTokenIdentity, resp.StatusCode)
	}

	if err := decode(resp, &user); err != nil {
		return nil, classify(opTokenIdentity, err)
	}
	return user, nil
}

// GetUserByEmail looks a user up by email. A 404 is not an error: it returns nil, nil.
func (c *Client) GetUserByEmail(ctx context.Context, email, token string) (user *models.User, err error) {
	defer c.metrics.observe(opUserByEmail, time.Now(), &err)

	resp, err := c.doRequest(ctx, http.MethodGet, "/user", url.Values{"email": {email}}, token, false, nil)
	if err != nil {
		return nil, classify(opUserByEmail, err)
	}
	defer closeBody(resp)

	if resp.StatusCode == http.StatusNotFound {
		return nil, nil
	}
	if !isSuccess(resp) {
		return nil, invalidToken(opUserByEmail, resp.StatusCode)
	}

	if err := decode(resp, &user); err != nil {
		return nil, classify(opUserByEmail, err)
	}
	return user, nil
}

// GetStreamsByToken lists the token owner's streams, newest first. A non-empty
// streamID narrows the query to that stream.
func (c *Client) GetStreamsByToken(ctx context.Context, token, streamID string) (streams []models.StreamData, err error) {
	defer c.metrics.observe(opStreams, time.Now(), &err)

	var query url.Values
	if streamID != "" {
		query = url.Values{"stream_id": {streamID}}
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/user/streams", query, token, false, nil)
	if err != nil {
		return nil, classify(opStreams, err)
	}
	defer closeBody(resp)

	if !isSuccess(resp) {
		return nil, invalidToken(opStreams, resp.StatusCode)
	}

	var body models.StreamsResponse
	if err := decode(resp, &body); err != nil {
		return nil, classify(opStreams, err)
	}
	if body.Streams == nil {
		body.Streams = []models.StreamData{}
	}
	return body.Streams, nil
}

// GetEventsByDate lists the events a user produced from start until end.
// A nil or empty end leaves the range open.
func (c *Client) GetEventsByDate(ctx context.Context, token, username, start string, end *string) (events []models.Event, err error) {
	defer c.metrics.observe(opEvents, time.Now(), &err)

	query := url.Values{
		"username":   {username},
		"start_time": {start},
	}
	if end != nil && *end != "" {
		query.Set("end_time", *end)
	}

	resp, err := c.doRequest(ctx, http.MethodGet, "/user/events", query, token, false, nil)
	if err != nil {
		return nil, classify(opEvents, err)
	}
	defer closeBody(resp)

	if !isSuccess(resp) {
		return nil, invalidToken(opEvents, resp.StatusCode)
	}

	var body models.EventsResponse
	if err := decode(resp, &body); err != nil {
		return nil, classify(opEvents, err)
	}
	if body.Events == nil {
		body.Events = []models.Event{}
	}
	return body.Events, nil
}

// GetAllUsers lists every user. The upstream decides who may call it.
func (c *Client) GetAllUsers(ctx context.Context, token string) (users []models.User, err error) {
	defer c.metrics.observe(opAllUsers, time.Now(), &err)

	resp, err := c.doRequest(ctx, http.MethodGet, "/user", nil, token, false, nil)
	if err != nil {
		return nil, classify(opAllUsers, err)
	}
	defer closeBody(resp)

	if !isSuccess(resp) {
		return nil, invalidToken(opAllUsers, resp.StatusCode)
	}

	var body models.UsersResponse
	if err := decode(resp, &body); err != nil {
		return nil, classify(opAllUsers, err)
	}
	if body.Users == nil {
		body.Users = []models.User{}
	}
	return body.Users, nil
}

// GetShadowUserToken exchanges an admin token for a token acting as username.
func (c *Client) GetShadowUserToken(ctx context.Context, token, username string) (shadow string, err error) {
	defer c.metrics.observe(opShadowToken, time.Now(), &err)

	resp, err := c.doRequest(ctx, http.MethodPost, "/auth/shadow", nil, token, true, models.ShadowRequest{Username: username})
	if err != nil {
		return "", classify(opShadowToken, err)
	}
	defer closeBody(resp)

	if !isSuccess(resp) {
		return "", invalidToken(opShadowToken, resp.StatusCode)
	}

	var body models.ShadowResponse
	if err := decode(resp, &body); err != nil {
		return "", classify(opShadowToken, err)
	}
	return body.Token, nil
}
