package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/tutorias/attendance-desk/internal/domain/attendance"
	"golang.org/x/oauth2"
)

type tokenKey struct{}

// WithToken attaches the caller's bearer token to ctx. Requests made with
// that context are sent on the caller's behalf instead of with the
// service token.
func WithToken(ctx context.Context, accessToken string) context.Context {
	if accessToken == "" {
		return ctx
	}
	return context.WithValue(ctx, tokenKey{}, &oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"})
}

func tokenFromContext(ctx context.Context) *oauth2.Token {
	tok, _ := ctx.Value(tokenKey{}).(*oauth2.Token)
	return tok
}

// Options configures New.
type Options struct {
	BaseURL string
	Timeout time.Duration

	// Tokens supplies a bearer token when the request context carries none.
	// Nil sends such requests unauthenticated.
	Tokens oauth2.TokenSource

	// LegacyStatuses sends asistio/falto/permiso instead of the English values.
	LegacyStatuses bool

	// Location interprets calendar days and wall-clock times.
	Location *time.Location

	HTTP   *http.Client
	Logger *slog.Logger
}

// Client calls the school backend's attendance endpoints.
type Client struct {
	baseURL *url.URL
	http    *http.Client
	tokens  oauth2.TokenSource
	legacy  bool
	loc     *time.Location
	log     *slog.Logger
}

// New creates a client. The base URL must be absolute.
func New(opts Options) (*Client, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid gateway base url %q", opts.BaseURL)
	}

	httpClient := opts.HTTP
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 15 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	loc := opts.Location
	if loc == nil {
		loc = time.Local
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Client{
		baseURL: base,
		http:    httpClient,
		tokens:  opts.Tokens,
		legacy:  opts.LegacyStatuses,
		loc:     loc,
		log:     log.With(slog.String("component", "rest_gateway")),
	}, nil
}

// RemoteError is a non-2xx answer from the backend.
type RemoteError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("attendance backend %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

func (e *RemoteError) Unwrap() error {
	if e.StatusCode == http.StatusConflict {
		return attendance.ErrScheduleConflict
	}
	return attendance.ErrGatewayUnavailable
}

// envelope is the backend's response wrapper. Data is sometimes an object
// and sometimes a single-element array.
type envelope struct {
	StatusCode int             `json:"statusCode"`
	Message    string          `json:"message"`
	Data       json.RawMessage `json:"data"`
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, body interface{}, out interface{}) error {
	u := c.baseURL.JoinPath(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), reader)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if err := c.authorize(req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", attendance.ErrGatewayUnavailable, method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return &RemoteError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(bodyBytes))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return decodeOneOrMany(env.Data, out)
}

func (c *Client) authorize(req *http.Request) error {
	tok := tokenFromContext(req.Context())
	if tok == nil && c.tokens != nil {
		var err error
		if tok, err = c.tokens.Token(); err != nil {
			return fmt.Errorf("obtain gateway token: %w", err)
		}
	}
	if tok != nil {
		tok.SetAuthHeader(req)
	}
	return nil
}

// decodeOneOrMany decodes data into out, tolerating the backend's habit of
// wrapping single objects in arrays and vice versa. A non-slice out takes
// the first element of an array; a slice out accepts a lone object.
func decodeOneOrMany(data json.RawMessage, out interface{}) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return nil
	}

	err := json.Unmarshal(data, out)
	var typeErr *json.UnmarshalTypeError
	if err == nil || !errors.As(err, &typeErr) {
		return err
	}

	switch data[0] {
	case '[':
		var items []json.RawMessage
		if err := json.Unmarshal(data, &items); err != nil {
			return err
		}
		if len(items) == 0 {
			return nil
		}
		return json.Unmarshal(items[0], out)
	case '{':
		wrapped := make([]byte, 0, len(data)+2)
		wrapped = append(append(append(wrapped, '['), data...), ']')
		return json.Unmarshal(wrapped, out)
	}
	return err
}
