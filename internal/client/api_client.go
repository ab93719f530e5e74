package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/net/publicsuffix"
	"google.golang.org/api/idtoken"

	"github.com/octobees/signup/internal/dto"
)

// ErrEmptyBaseURL is returned when the upstream base URL is not configured.
var ErrEmptyBaseURL = errors.New("api base url must not be empty")

// RegistrationAPI is the upstream surface used by the registration flow.
type RegistrationAPI interface {
	Register(ctx context.Context, payload dto.RegisterRequest, turnstile string) (dto.APIResponse, error)
	SendVerification(ctx context.Context, email, turnstile string) (dto.APIResponse, error)
}

// APIClient talks to the upstream registration API.
type APIClient struct {
	client  *http.Client
	baseURL string
}

// Options tune how the default HTTP client is built.
type Options struct {
	Timeout         time.Duration
	IDTokenAudience string
}

// NewAPIClient builds a client. When client is nil a cookie-aware client is
// created, or an ID token client when opts.IDTokenAudience is set.
func NewAPIClient(client *http.Client, baseURL string, opts Options) (*APIClient, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, ErrEmptyBaseURL
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 15 * time.Second
	}
	if client == nil {
		var err error
		client, err = defaultHTTPClient(opts)
		if err != nil {
			return nil, err
		}
	}
	return &APIClient{client: client, baseURL: baseURL}, nil
}

func defaultHTTPClient(opts Options) (*http.Client, error) {
	if opts.IDTokenAudience != "" {
		idc, err := idtoken.NewClient(context.Background(), opts.IDTokenAudience)
		if err != nil {
			return nil, fmt.Errorf("create id token client: %w", err)
		}
		idc.Timeout = opts.Timeout
		return idc, nil
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	return &http.Client{Timeout: opts.Timeout, Jar: jar}, nil
}

// Register issues POST /api/user/register?turnstile=<token>.
func (c *APIClient) Register(ctx context.Context, payload dto.RegisterRequest, turnstile string) (dto.APIResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return dto.APIResponse{}, fmt.Errorf("failed to marshal payload: %w", err)
	}
	query := url.Values{"turnstile": {turnstile}}
	return c.do(ctx, http.MethodPost, "/api/user/register", query, body)
}

// SendVerification issues GET /api/verification?email=<email>&turnstile=<token>.
func (c *APIClient) SendVerification(ctx context.Context, email, turnstile string) (dto.APIResponse, error) {
	query := url.Values{"email": {email}, "turnstile": {turnstile}}
	return c.do(ctx, http.MethodGet, "/api/verification", query, nil)
}

// Status fetches GET /api/status and returns the raw body for caching.
func (c *APIClient) Status(ctx context.Context) ([]byte, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/api/status", nil, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("status request returned %s", resp.Status)
	}
	if !gjson.ValidBytes(raw) {
		return nil, errors.New("status response is not valid JSON")
	}
	return raw, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, query url.Values, body []byte) (dto.APIResponse, error) {
	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return dto.APIResponse{}, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return dto.APIResponse{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return dto.APIResponse{}, fmt.Errorf("read response: %w", err)
	}
	return decodeResponse(resp, raw), nil
}

func (c *APIClient) newRequest(ctx context.Context, method, path string, query url.Values, body []byte) (*http.Request, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if rid := RequestIDFromContext(ctx); rid != "" {
		req.Header.Set("X-Request-ID", rid)
	}
	return req, nil
}

// decodeResponse reads the {success, message} envelope. Bodies without the
// envelope are reported as failures carrying the HTTP status text.
func decodeResponse(resp *http.Response, raw []byte) dto.APIResponse {
	if gjson.ValidBytes(raw) {
		parsed := gjson.ParseBytes(raw)
		success := parsed.Get("success")
		if success.Exists() {
			return dto.APIResponse{
				Success: success.Bool() && resp.StatusCode < 400,
				Message: parsed.Get("message").String(),
			}
		}
	}
	msg := strings.TrimSpace(string(raw))
	if msg == "" || len(msg) > 200 {
		msg = resp.Status
	}
	return dto.APIResponse{Success: false, Message: msg}
}

type requestIDKey struct{}

// WithRequestID attaches a request id that outgoing calls forward as X-Request-ID.
func WithRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// RequestIDFromContext returns the request id attached by WithRequestID.
func RequestIDFromContext(ctx context.Context) string {
	if rid, ok := ctx.Value(requestIDKey{}).(string); ok {
		return rid
	}
	return ""
}

var _ RegistrationAPI = (*APIClient)(nil)
