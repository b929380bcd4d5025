package codelet

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Service defines the operations the Codelet API exposes to the client.
// This interface is implemented by *Client and can be used for testing.
type Service interface {
	Login(ctx context.Context, email, password string) (string, error)
	Register(ctx context.Context, username, email, password string) error
	Refresh(ctx context.Context) (string, error)
	Logout(ctx context.Context, token string) error
	Username(ctx context.Context, token string) (string, error)
	ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error

	ListSnippets(ctx context.Context, token string) ([]Summary, error)
	GetSnippet(ctx context.Context, token string, id int) (*Snippet, error)
	CreateSnippet(ctx context.Context, token string, draft Draft) error
	UpdateSnippet(ctx context.Context, token string, id int, draft Draft) error
	DeleteSnippet(ctx context.Context, token string, id int) error
	PublicSnippets(ctx context.Context, page, limit int) ([]Snippet, error)
}

// Ensure Client implements Service at compile time.
var _ Service = (*Client)(nil)

// Client talks to the Codelet HTTP API.
type Client struct {
	baseURL   *url.URL
	http      *http.Client
	userAgent string
}

const (
	defaultServerURL = "http://localhost:3021"
	defaultUserAgent = "clet/0.1"
	defaultTimeout   = 10 * time.Second

	// The listing endpoint requires both parameters and caps limit at 100.
	// This fetches the first hundred snippets; full pagination is not part
	// of the client contract.
	listPage  = 1
	listLimit = 100

	// MaxCodeSize is the server-side ceiling on snippet code bytes.
	// Enforced client-side as well so oversized drafts never hit the wire.
	MaxCodeSize = 3072
)

// NewClient builds a Client for the given server URL. An empty URL selects
// the default local server. The cookie jar holds the HTTP-only refresh
// cookie set by a successful login, which Refresh relies on.
func NewClient(serverURL string, timeout time.Duration) (*Client, error) {
	base, err := parseBaseURL(serverURL)
	if err != nil {
		return nil, err
	}
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("init cookie jar: %w", err)
	}
	return &Client{
		baseURL: base,
		http: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		userAgent: defaultUserAgent,
	}, nil
}

// Login exchanges credentials for an access token. The refresh cookie that
// accompanies the response is captured by the cookie jar.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	var payload tokenResponse
	err := c.do(ctx, http.MethodPost, "/api/v1/login", "", loginRequest{Email: email, Password: password}, &payload)
	if err != nil {
		return "", userFacingAuthErr(err)
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", apiErr(ErrMalformed, http.StatusOK, "login response missing access_token")
	}
	return payload.AccessToken, nil
}

// Register creates a new account. It does not establish a session; callers
// follow up with an explicit Login.
func (c *Client) Register(ctx context.Context, username, email, password string) error {
	req := registerRequest{Username: username, Email: email, Password: password, Role: "user"}
	if err := c.do(ctx, http.MethodPost, "/api/v1/register", "", req, nil); err != nil {
		return userFacingAuthErr(err)
	}
	return nil
}

// Refresh obtains a new access token using the refresh cookie stored in the
// jar. Any rejection means the caller must treat the user as logged out.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	var payload tokenResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/refresh", "", nil, &payload); err != nil {
		return "", err
	}
	if strings.TrimSpace(payload.AccessToken) == "" {
		return "", apiErr(ErrMalformed, http.StatusOK, "refresh response missing access_token")
	}
	return payload.AccessToken, nil
}

// Logout invalidates the session server-side. Callers treat this as
// best-effort and clear local state regardless of the result.
func (c *Client) Logout(ctx context.Context, token string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/logout", token, nil, nil)
}

// Username fetches the display name for the authenticated user.
func (c *Client) Username(ctx context.Context, token string) (string, error) {
	var payload usernameResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/username", token, nil, &payload); err != nil {
		return "", err
	}
	return payload.Username, nil
}

// ChangePassword replaces the account password. The old password is
// re-verified server-side.
func (c *Client) ChangePassword(ctx context.Context, token, oldPassword, newPassword string) error {
	req := changePasswordRequest{OldPassword: oldPassword, NewPassword: newPassword}
	if err := c.do(ctx, http.MethodPost, "/api/v1/update/password", token, req, nil); err != nil {
		return userFacingAuthErr(err)
	}
	return nil
}

// ListSnippets retrieves the first page of lightweight snippet summaries.
// An account with no snippets is a valid empty collection, not an error;
// the server reports that case as 404.
func (c *Client) ListSnippets(ctx context.Context, token string) ([]Summary, error) {
	values := url.Values{}
	values.Set("page", strconv.Itoa(listPage))
	values.Set("limit", strconv.Itoa(listLimit))
	rel := &url.URL{Path: "/api/v1/user/small/snippets", RawQuery: values.Encode()}

	var payload []Summary
	if err := c.doURL(ctx, http.MethodGet, rel, token, nil, &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Summary{}, nil
		}
		return nil, err
	}
	if payload == nil {
		payload = []Summary{}
	}
	return payload, nil
}

// GetSnippet retrieves the full record for one snippet.
func (c *Client) GetSnippet(ctx context.Context, token string, id int) (*Snippet, error) {
	if id <= 0 {
		return nil, fmt.Errorf("snippet id must be positive, got %d", id)
	}
	var payload Snippet
	if err := c.do(ctx, http.MethodGet, "/api/v1/user/snippets/"+strconv.Itoa(id), token, nil, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

// CreateSnippet stores a new snippet.
func (c *Client) CreateSnippet(ctx context.Context, token string, draft Draft) error {
	return c.do(ctx, http.MethodPost, "/api/v1/user/snippets", token, draft, nil)
}

// UpdateSnippet replaces the fields of an existing snippet owned by the caller.
func (c *Client) UpdateSnippet(ctx context.Context, token string, id int, draft Draft) error {
	if id <= 0 {
		return fmt.Errorf("snippet id must be positive, got %d", id)
	}
	return c.do(ctx, http.MethodPut, "/api/v1/user/snippets/"+strconv.Itoa(id), token, draft, nil)
}

// DeleteSnippet removes a snippet by id.
func (c *Client) DeleteSnippet(ctx context.Context, token string, id int) error {
	if id <= 0 {
		return fmt.Errorf("snippet id must be positive, got %d", id)
	}
	return c.do(ctx, http.MethodDelete, "/api/v1/user/snippets/"+strconv.Itoa(id), token, nil, nil)
}

// PublicSnippets retrieves a page of the unauthenticated public feed.
func (c *Client) PublicSnippets(ctx context.Context, page, limit int) ([]Snippet, error) {
	if page <= 0 {
		page = 1
	}
	if limit <= 0 || limit > listLimit {
		limit = listLimit
	}
	values := url.Values{}
	values.Set("page", strconv.Itoa(page))
	values.Set("limit", strconv.Itoa(limit))
	rel := &url.URL{Path: "/api/v1/public/snippets", RawQuery: values.Encode()}

	var payload []Snippet
	if err := c.doURL(ctx, http.MethodGet, rel, "", nil, &payload); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Snippet{}, nil
		}
		return nil, err
	}
	return payload, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body, dest any) error {
	rel := &url.URL{Path: path}
	return c.doURL(ctx, method, rel, token, body, dest)
}

func (c *Client) doURL(ctx context.Context, method string, rel *url.URL, token string, body, dest any) error {
	reqURL := c.baseURL.ResolveReference(rel)

	var reader *bytes.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(encoded)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", c.userAgent)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	// The server middleware reads the Authorization value as the bare
	// token, no "Bearer " prefix.
	if token != "" {
		req.Header.Set("Authorization", token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return transportErr(ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return statusError(resp)
	}
	if dest == nil {
		return nil
	}
	decoder := json.NewDecoder(resp.Body)
	if err := decoder.Decode(dest); err != nil {
		return transportErr(ErrMalformed, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// statusError folds a non-2xx response into the error taxonomy, keeping the
// server's message when the body carries the standard error envelope.
func statusError(resp *http.Response) error {
	var envelope errorResponse
	_ = json.NewDecoder(resp.Body).Decode(&envelope)

	kind := ErrUnavailable
	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		kind = ErrUnauthenticated
	case resp.StatusCode == http.StatusNotFound:
		kind = ErrNotFound
	case resp.StatusCode == http.StatusConflict:
		kind = ErrAlreadyExists
	case resp.StatusCode == http.StatusTooManyRequests:
		kind = ErrRateLimited
	}
	return apiErr(kind, resp.StatusCode, envelope.Error)
}

// userFacingAuthErr rewrites generic 4xx rejections from the auth endpoints
// into ErrInvalidCredentials. Rate limiting, conflicts, and server faults
// keep their own kinds.
func userFacingAuthErr(err error) error {
	var apiError *APIError
	if !errors.As(err, &apiError) {
		return err
	}
	if apiError.Status < 400 || apiError.Status >= 500 {
		return err
	}
	switch {
	case errors.Is(err, ErrRateLimited), errors.Is(err, ErrAlreadyExists), errors.Is(err, ErrUnauthenticated):
		return err
	}
	return apiErr(ErrInvalidCredentials, apiError.Status, apiError.Message)
}

func parseBaseURL(serverURL string) (*url.URL, error) {
	trimmed := strings.TrimSpace(serverURL)
	if trimmed == "" {
		trimmed = defaultServerURL
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse server url %q: %w", serverURL, err)
	}
	u.Path = ""
	u.RawQuery = ""
	u.Fragment = ""
	return u, nil
}
