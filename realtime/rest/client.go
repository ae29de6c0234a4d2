package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/vovakirdan/storefront-realtime-go/realtime"
)

// MaxAttachmentSize is the largest media file accepted with a message.
const MaxAttachmentSize = 5 << 20

var (
	ErrAttachmentTooLarge = errors.New("attachment exceeds 5MB")
	ErrAdminKeyRequired   = errors.New("admin key required")
	ErrNoRefreshToken     = errors.New("no refresh token")
)

// TokenStore supplies credentials and receives refreshed tokens.
type TokenStore interface {
	AccessToken() string
	RefreshToken() string
	AdminKey() string
	SetTokens(access, refresh string, user User) error
	ClearTokens() error
}

// APIError is a non-2xx response.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("http error (status %d)", e.StatusCode)
	}
	return fmt.Sprintf("api error (status %d): %s", e.StatusCode, e.Message)
}

// IsNotFound reports whether err is a 404 from the API.
func IsNotFound(err error) bool { return statusOf(err) == http.StatusNotFound }

// IsUnauthorized reports whether err is a 401 from the API.
func IsUnauthorized(err error) bool { return statusOf(err) == http.StatusUnauthorized }

func statusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// Client provides REST API access to the storefront backend.
type Client struct {
	baseURL    string
	tokens     TokenStore
	httpClient *http.Client
	refreshing singleflight.Group
}

// NewClient creates a new REST API client.
// baseURL is the API root, e.g. "http://localhost:9997". tokens may be nil for
// anonymous use.
func NewClient(baseURL string, tokens TokenStore) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetHTTPClient allows setting a custom HTTP client.
func (c *Client) SetHTTPClient(client *http.Client) {
	if client != nil {
		c.httpClient = client
	}
}

// scope selects which credential a request carries.
type scope int

const (
	scopeUser scope = iota
	scopeAdmin
	scopeNone
)

func scopeFor(admin bool) scope {
	if admin {
		return scopeAdmin
	}
	return scopeUser
}

func rolePath(admin bool) string {
	if admin {
		return "/admin"
	}
	return "/user"
}

// Chat endpoints

// GetThreadByOrderID looks up the chat thread of an order.
func (c *Client) GetThreadByOrderID(ctx context.Context, orderID string, admin bool) (*Thread, error) {
	var resp Thread
	path := rolePath(admin) + "/threads/" + url.PathEscape(orderID)
	if err := c.get(ctx, path, &resp, scopeFor(admin)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetMessages returns one page of thread history.
func (c *Client) GetMessages(ctx context.Context, threadID string, skip, take int, admin bool) (*MessagesResponse, error) {
	path := fmt.Sprintf("%s/messages/%s?skip=%d&take=%d", rolePath(admin), url.PathEscape(threadID), skip, take)

	var resp MessagesResponse
	if err := c.get(ctx, path, &resp, scopeFor(admin)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CreateMessage posts a chat message. Admin-owned messages go through the
// admin endpoint. A message with media is sent as multipart form data.
func (c *Client) CreateMessage(ctx context.Context, req CreateMessageRequest) (*Message, error) {
	admin := req.Owner == OwnerAdmin
	path := rolePath(admin) + "/messages"

	var resp Message
	if req.Media == nil {
		if err := c.post(ctx, path, req, &resp, scopeFor(admin)); err != nil {
			return nil, err
		}
		return &resp, nil
	}

	if len(req.Media.Data) > MaxAttachmentSize {
		return nil, ErrAttachmentTooLarge
	}
	body := func() (io.Reader, string, error) { return multipartBody(req) }
	if err := c.send(ctx, http.MethodPost, path, body, &resp, scopeFor(admin)); err != nil {
		return nil, err
	}
	return &resp, nil
}

// CloseThread ends an order conversation. Admin only.
func (c *Client) CloseThread(ctx context.Context, threadID string) error {
	if c.adminKey() == "" {
		return ErrAdminKeyRequired
	}
	return c.post(ctx, "/admin/threads/"+url.PathEscape(threadID)+"/close", nil, nil, scopeAdmin)
}

// Admin broadcast endpoints

// SendNotification broadcasts a notice over the realtime service.
func (c *Client) SendNotification(ctx context.Context, req NotificationRequest) (*NotificationResponse, error) {
	if c.adminKey() == "" {
		return nil, ErrAdminKeyRequired
	}
	var resp NotificationResponse
	if err := c.post(ctx, "/admin/ws/notify", req, &resp, scopeAdmin); err != nil {
		return nil, err
	}
	return &resp, nil
}

// GetConnectionStats returns the live WebSocket connection summary.
func (c *Client) GetConnectionStats(ctx context.Context) (*realtime.ConnectionStats, error) {
	if c.adminKey() == "" {
		return nil, ErrAdminKeyRequired
	}
	var resp realtime.ConnectionStats
	if err := c.get(ctx, "/admin/ws/stats", &resp, scopeAdmin); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Authentication endpoints

// RefreshTokens exchanges the stored refresh token for a new pair and stores
// it. Concurrent callers share one request. Any failure clears the stored tokens.
func (c *Client) RefreshTokens(ctx context.Context) (*AuthResponse, error) {
	v, err, _ := c.refreshing.Do("refresh", func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx))
	})
	if err != nil {
		return nil, err
	}
	return v.(*AuthResponse), nil
}

func (c *Client) refresh(ctx context.Context) (*AuthResponse, error) {
	if c.tokens == nil || c.tokens.RefreshToken() == "" {
		c.clearTokens()
		return nil, ErrNoRefreshToken
	}

	var resp AuthResponse
	err := c.post(ctx, "/auth/refresh", refreshRequest{RefreshToken: c.tokens.RefreshToken()}, &resp, scopeNone)
	if err != nil {
		c.clearTokens()
		return nil, fmt.Errorf("refresh tokens: %w", err)
	}
	if err := c.tokens.SetTokens(resp.AccessToken, resp.RefreshToken, resp.User); err != nil {
		return nil, fmt.Errorf("store tokens: %w", err)
	}
	return &resp, nil
}

// Helper methods

type bodyFunc func() (io.Reader, string, error)

func jsonBody(v any) bodyFunc {
	if v == nil {
		return nil
	}
	return func() (io.Reader, string, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, "", fmt.Errorf("marshal request: %w", err)
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func (c *Client) post(ctx context.Context, path string, body, dest any, s scope) error {
	return c.send(ctx, http.MethodPost, path, jsonBody(body), dest, s)
}

func (c *Client) get(ctx context.Context, path string, dest any, s scope) error {
	return c.send(ctx, http.MethodGet, path, nil, dest, s)
}

// send performs the request and, for bearer requests rejected with 401,
// refreshes the token pair once and retries.
func (c *Client) send(ctx context.Context, method, path string, body bodyFunc, dest any, s scope) error {
	err := c.attempt(ctx, method, path, body, dest, s)
	if s != scopeUser || !IsUnauthorized(err) || c.tokens == nil {
		return err
	}
	if _, rerr := c.RefreshTokens(ctx); rerr != nil {
		if errors.Is(rerr, ErrNoRefreshToken) {
			return err
		}
		return rerr
	}
	return c.attempt(ctx, method, path, body, dest, s)
}

func (c *Client) attempt(ctx context.Context, method, path string, body bodyFunc, dest any, s scope) error {
	var (
		reader      io.Reader = http.NoBody
		contentType string
	)
	if body != nil {
		r, ct, err := body()
		if err != nil {
			return err
		}
		reader, contentType = r, ct
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	switch s {
	case scopeAdmin:
		if key := c.adminKey(); key != "" {
			req.Header.Set("X-Admin-API-Key", key)
		}
	case scopeUser:
		if tok := c.accessToken(); tok != "" {
			req.Header.Set("Authorization", "Bearer "+tok)
		}
	}

	return c.do(req, dest)
}

func (c *Client) do(req *http.Request, dest any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("http request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// Handle error responses
	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		var errResp ErrorResponse
		if err := json.Unmarshal(body, &errResp); err == nil {
			apiErr.Message = firstNonEmpty(errResp.Error, errResp.Message, errResp.Detail)
		}
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(body))
		}
		return apiErr
	}

	if dest != nil && len(body) > 0 {
		if err := json.Unmarshal(body, dest); err != nil {
			return fmt.Errorf("unmarshal response: %w", err)
		}
	}

	return nil
}

func multipartBody(req CreateMessageRequest) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	fields := [][2]string{
		{"thread_id", req.ThreadID},
		{"message_content", req.MessageContent},
		{"owner", string(req.Owner)},
	}
	for _, f := range fields {
		if err := w.WriteField(f[0], f[1]); err != nil {
			return nil, "", fmt.Errorf("write form field: %w", err)
		}
	}

	contentType := req.Media.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="media"; filename=%q`, req.Media.Filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("create media part: %w", err)
	}
	if _, err := part.Write(req.Media.Data); err != nil {
		return nil, "", fmt.Errorf("write media: %w", err)
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close form: %w", err)
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) adminKey() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AdminKey()
}

func (c *Client) accessToken() string {
	if c.tokens == nil {
		return ""
	}
	return c.tokens.AccessToken()
}

func (c *Client) clearTokens() {
	if c.tokens != nil {
		_ = c.tokens.ClearTokens()
	}
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
