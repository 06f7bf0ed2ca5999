// Package client calls the registration API over HTTP.
package client

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

	"smec/conclave/internal/catalog"
	"smec/conclave/internal/model"
	"smec/conclave/internal/registration"
)

// ErrUnavailable marks calls that never got an answer from the API.
var ErrUnavailable = errors.New("registration api unavailable")

// APIError is a non-2xx answer. Message is the text meant for the user.
type APIError struct {
	Status                    int    `json:"-"`
	Code                      string `json:"code"`
	Message                   string `json:"error"`
	RequiresEmailVerification bool   `json:"requiresEmailVerification"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api %d %s: %s", e.Status, e.Code, e.Message)
}

type unavailableError struct {
	fallback string
	err      error
}

func (e *unavailableError) Error() string {
	return fmt.Sprintf("%s: %v", ErrUnavailable, e.err)
}

func (e *unavailableError) Is(target error) bool { return target == ErrUnavailable }

func (e *unavailableError) Unwrap() error { return e.err }

// Message returns the text to show for err: the server's message when there
// was one, otherwise the operation's generic retry prompt.
func Message(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	var down *unavailableError
	if errors.As(err, &down) {
		return down.fallback
	}
	return err.Error()
}

type Client struct {
	baseURL string
	http    *http.Client
}

func New(baseURL string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: httpClient}
}

type messageResponse struct {
	Message string `json:"message"`
}

func (c *Client) Subscribe(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	err := c.post(ctx, "/send-email", map[string]string{"email": email}, &resp, "Failed to send email. Please try again.")
	return resp.Message, err
}

func (c *Client) Register(ctx context.Context, req registration.Request) (registration.RegisterResult, error) {
	var resp registration.RegisterResult
	err := c.post(ctx, "/register", req, &resp, "Registration failed. Please try again.")
	return resp, err
}

func (c *Client) Login(ctx context.Context, email, password string) (registration.LoginResult, error) {
	var resp registration.LoginResult
	err := c.post(ctx, "/login", map[string]string{"email": email, "password": password}, &resp, "Login failed. Please try again.")
	return resp, err
}

func (c *Client) Logout(ctx context.Context, accessToken string) (string, error) {
	var resp messageResponse
	err := c.post(ctx, "/logout", map[string]string{"accessToken": accessToken}, &resp, "Logout failed. Please try again.")
	return resp.Message, err
}

func (c *Client) RequestPasswordReset(ctx context.Context, email string) (string, error) {
	var resp messageResponse
	err := c.post(ctx, "/reset-password-request", map[string]string{"email": email}, &resp, "Failed to send reset email. Please try again.")
	return resp.Message, err
}

func (c *Client) CompletePasswordReset(ctx context.Context, token, password string) (string, error) {
	var resp messageResponse
	err := c.post(ctx, "/reset-password", map[string]string{"token": token, "password": password}, &resp, "Password reset failed. Please try again.")
	return resp.Message, err
}

func (c *Client) Passes(ctx context.Context, category model.Category) ([]catalog.Pass, error) {
	var resp struct {
		Passes []catalog.Pass `json:"passes"`
	}
	path := "/passes/" + url.PathEscape(string(category))
	if err := c.do(ctx, http.MethodGet, path, nil, &resp, "Could not load passes. Please try again."); err != nil {
		return nil, err
	}
	return resp.Passes, nil
}

func (c *Client) post(ctx context.Context, path string, in, out any, fallback string) error {
	return c.do(ctx, http.MethodPost, path, in, out, fallback)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any, fallback string) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &unavailableError{fallback: fallback, err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = fallback
		}
		return apiErr
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &unavailableError{fallback: fallback, err: fmt.Errorf("decode %s: %w", path, err)}
	}
	return nil
}
