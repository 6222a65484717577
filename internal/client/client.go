// Package client talks to the sign-in API. A Client is created by its owner
// and passed to whatever needs it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"otp_auth/internal/apperr"
	"otp_auth/internal/identifier"
	"otp_auth/internal/model"
)

const defaultTimeout = 10 * time.Second

// Client calls the /api/v1 endpoints of one server.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// New returns a Client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/") + "/api/v1",
		httpClient: &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// LoginResult is the body of a successful verification.
type LoginResult struct {
	User  json.RawMessage `json:"data"`
	Token string          `json:"token"`
}

func (c *Client) Register(ctx context.Context, req model.RegisterRequest) (json.RawMessage, error) {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, http.MethodPost, "/auth/register", "", req, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

func (c *Client) RequestOTP(ctx context.Context, rawIdentifier string) (*model.OTPResult, error) {
	var out model.OTPResult
	body := map[string]string{"identifier": rawIdentifier}
	if err := c.do(ctx, http.MethodPost, "/auth/otp", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Login(ctx context.Context, rawIdentifier, code string) (*LoginResult, error) {
	var out LoginResult
	body := map[string]string{"identifier": rawIdentifier, "otp": code}
	if err := c.do(ctx, http.MethodPost, "/auth/login", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// LookupByIdentifier fetches the canonical record for an email or phone
// number and returns the response's data payload undecoded.
func (c *Client) LookupByIdentifier(ctx context.Context, rawIdentifier string) (json.RawMessage, error) {
	id, err := identifier.Parse(rawIdentifier)
	if err != nil {
		return nil, apperr.Wrap(apperr.BadRequest, "invalid identifier", err)
	}
	path := "/users/by-phone?phone=" + url.QueryEscape(id.Value)
	if id.Kind == identifier.Email {
		path = "/users/by-email?email=" + url.QueryEscape(id.Value)
	}
	return c.fetchData(ctx, path)
}

// LookupByID fetches the canonical record for a user id.
func (c *Client) LookupByID(ctx context.Context, id int64) (json.RawMessage, error) {
	return c.fetchData(ctx, "/users/"+strconv.FormatInt(id, 10))
}

// Me fetches the record of the user token was issued to.
func (c *Client) Me(ctx context.Context, token string) (json.RawMessage, error) {
	if token == "" {
		return nil, apperr.New(apperr.Unauthorized, "session token required")
	}
	return c.fetchDataAs(ctx, "/users/me", token)
}

func (c *Client) fetchData(ctx context.Context, path string) (json.RawMessage, error) {
	return c.fetchDataAs(ctx, path, "")
}

func (c *Client) fetchDataAs(ctx context.Context, path, token string) (json.RawMessage, error) {
	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := c.do(ctx, http.MethodGet, path, token, nil, &out); err != nil {
		return nil, err
	}
	return out.Data, nil
}

// do sends one request. token, when set, is sent as a bearer credential.
func (c *Client) do(ctx context.Context, method, path, token string, in, out any) error {
	var body io.Reader
	if in != nil {
		raw, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var apiErr struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(raw, &apiErr)
		if apiErr.Error == "" {
			apiErr.Error = http.StatusText(resp.StatusCode)
		}
		return apperr.New(apperr.FromStatus(resp.StatusCode), apiErr.Error)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
