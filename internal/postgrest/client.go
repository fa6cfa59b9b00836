// Package postgrest reaches the credential tables through a PostgREST data
// layer addressed as /{schema}/{table}.
package postgrest

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/BradenHooton/farmgate/internal/models"
)

const maxErrorBody = 64 << 10

// Client issues get/create/update/delete calls against PostgREST
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	token      string
}

// NewClient builds a client for the PostgREST instance at rawURL. token, when
// set, is sent as a bearer credential on every call.
func NewClient(rawURL, token string, timeout time.Duration) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(rawURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid postgrest url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid postgrest url: %q", rawURL)
	}

	return &Client{
		baseURL:    u,
		httpClient: &http.Client{Timeout: timeout},
		token:      token,
	}, nil
}

// Error is a non-2xx answer from PostgREST
type Error struct {
	StatusCode int    `json:"-"`
	Code       string `json:"code"`
	Message    string `json:"message"`
	Details    string `json:"details"`
	Hint       string `json:"hint"`
}

func (e *Error) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("postgrest: status %d", e.StatusCode)
	}
	return fmt.Sprintf("postgrest: status %d: %s", e.StatusCode, e.Message)
}

// Unwrap maps the answer onto the model sentinels so callers can use errors.Is
func (e *Error) Unwrap() error {
	switch {
	case e.StatusCode == http.StatusNotFound:
		return models.ErrNotFound
	case e.StatusCode == http.StatusConflict || e.Code == "23505":
		return models.ErrConflict
	case e.Code == "23503" || e.Code == "23502":
		return models.ErrBadRequest
	}
	return nil
}

// Get reads rows matching query into out (a pointer to a slice)
func (c *Client) Get(ctx context.Context, schema, table string, query url.Values, out interface{}) error {
	return c.do(ctx, http.MethodGet, schema, table, query, nil, false, out)
}

// Create inserts body and decodes the created rows into out
func (c *Client) Create(ctx context.Context, schema, table string, body, out interface{}) error {
	return c.do(ctx, http.MethodPost, schema, table, nil, body, out != nil, out)
}

// Update patches rows matching filter and decodes the updated rows into out
func (c *Client) Update(ctx context.Context, schema, table string, filter url.Values, body, out interface{}) error {
	if len(filter) == 0 {
		return errors.New("postgrest: refusing update without a filter")
	}
	return c.do(ctx, http.MethodPatch, schema, table, filter, body, out != nil, out)
}

// Delete removes rows matching filter; out, when non-nil, receives the deleted rows
func (c *Client) Delete(ctx context.Context, schema, table string, filter url.Values, out interface{}) error {
	if len(filter) == 0 {
		return errors.New("postgrest: refusing delete without a filter")
	}
	return c.do(ctx, http.MethodDelete, schema, table, filter, nil, out != nil, out)
}

// HealthCheck requests the OpenAPI root, which PostgREST serves once it has
// loaded the schema cache.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, c.baseURL.String()+"/", nil)
	if err != nil {
		return err
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("postgrest health check failed: %w", err)
	}
	resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("postgrest health check failed: status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, schema, table string, query url.Values, body interface{}, representation bool, out interface{}) error {
	endpoint := c.baseURL.JoinPath(schema, table)
	if len(query) > 0 {
		endpoint.RawQuery = query.Encode()
	}

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode %s.%s body: %w", schema, table, err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint.String(), reader)
	if err != nil {
		return fmt.Errorf("failed to build %s %s.%s request: %w", method, schema, table, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if representation {
		req.Header.Set("Prefer", "return=representation")
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s.%s failed: %w", method, schema, table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s.%s response: %w", schema, table, err)
	}
	return nil
}

func (c *Client) authorize(req *http.Request) {
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
}

func decodeError(resp *http.Response) error {
	pgErr := &Error{StatusCode: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err == nil && len(raw) > 0 {
		if jsonErr := json.Unmarshal(raw, pgErr); jsonErr != nil {
			pgErr.Message = strings.TrimSpace(string(raw))
		}
	}
	pgErr.StatusCode = resp.StatusCode

	return pgErr
}
