// Package gotrue talks to a hosted Supabase Auth (GoTrue) instance with the
// project's service-role key. Only the calls the registration service needs
// are implemented.
package gotrue

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

	"smec/conclave/internal/model"
)

type Client struct {
	baseURL    string
	serviceKey string
	http       *http.Client
}

func New(baseURL, serviceKey string, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		serviceKey: serviceKey,
		http:       httpClient,
	}
}

// APIError is a non-2xx answer from GoTrue. Older and newer releases name the
// message field differently, so all of them are decoded.
type APIError struct {
	Status           int    `json:"-"`
	Code             any    `json:"code,omitempty"`
	ErrorCode        string `json:"error_code,omitempty"`
	Msg              string `json:"msg,omitempty"`
	Message          string `json:"message,omitempty"`
	Err              string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

func (e *APIError) Error() string {
	return fmt.Sprintf("gotrue %d: %s", e.Status, e.text())
}

func (e *APIError) text() string {
	for _, s := range []string{e.Msg, e.ErrorDescription, e.Message, e.Err, e.ErrorCode} {
		if s != "" {
			return s
		}
	}
	return http.StatusText(e.Status)
}

func (e *APIError) alreadyRegistered() bool {
	if e.ErrorCode == "email_exists" || e.ErrorCode == "user_already_exists" {
		return true
	}
	text := strings.ToLower(e.text())
	return strings.Contains(text, "already registered") || strings.Contains(text, "already been registered")
}

func (e *APIError) emailNotConfirmed() bool {
	return e.ErrorCode == "email_not_confirmed" || strings.Contains(strings.ToLower(e.text()), "email not confirmed")
}

type user struct {
	ID               string     `json:"id"`
	Email            string     `json:"email"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at"`
	CreatedAt        time.Time  `json:"created_at"`
}

func (u user) account() model.Account {
	return model.Account{ID: u.ID, Email: u.Email, EmailConfirmed: u.EmailConfirmedAt != nil, CreatedAt: u.CreatedAt}
}

type createUserRequest struct {
	Email        string         `json:"email"`
	Password     string         `json:"password"`
	EmailConfirm bool           `json:"email_confirm"`
	UserMetadata map[string]any `json:"user_metadata,omitempty"`
}

func (c *Client) CreateAccount(ctx context.Context, account model.NewAccount) (model.Account, error) {
	req := createUserRequest{
		Email:        account.Email,
		Password:     account.Password,
		EmailConfirm: account.EmailConfirmed,
	}
	if account.FullName != "" {
		req.UserMetadata = map[string]any{"full_name": account.FullName}
	}
	var created user
	if err := c.do(ctx, http.MethodPost, "/auth/v1/admin/users", nil, c.serviceKey, req, &created); err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.alreadyRegistered() {
			return model.Account{}, fmt.Errorf("%w: %s", model.ErrAccountExists, apiErr.text())
		}
		return model.Account{}, err
	}
	return created.account(), nil
}

func (c *Client) DeleteAccount(ctx context.Context, accountID string) error {
	return c.do(ctx, http.MethodDelete, "/auth/v1/admin/users/"+url.PathEscape(accountID), nil, c.serviceKey, nil, nil)
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
	ExpiresAt    int64  `json:"expires_at"`
	RefreshToken string `json:"refresh_token"`
	User         user   `json:"user"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (model.Session, model.Account, error) {
	query := url.Values{"grant_type": {"password"}}
	body := map[string]string{"email": email, "password": password}
	var tok tokenResponse
	if err := c.do(ctx, http.MethodPost, "/auth/v1/token", query, c.serviceKey, body, &tok); err != nil {
		var apiErr *APIError
		ok := errors.As(err, &apiErr)
		switch {
		case ok && apiErr.emailNotConfirmed():
			return model.Session{}, model.Account{}, fmt.Errorf("%w: %s", model.ErrEmailNotConfirmed, apiErr.text())
		case ok && apiErr.Status < http.StatusInternalServerError:
			return model.Session{}, model.Account{}, fmt.Errorf("%w: %s", model.ErrInvalidCredentials, apiErr.text())
		}
		return model.Session{}, model.Account{}, err
	}
	expiresAt := tok.ExpiresAt
	if expiresAt == 0 && tok.ExpiresIn > 0 {
		expiresAt = time.Now().Unix() + tok.ExpiresIn
	}
	sess := model.Session{
		AccessToken:  tok.AccessToken,
		TokenType:    tok.TokenType,
		ExpiresIn:    tok.ExpiresIn,
		ExpiresAt:    expiresAt,
		RefreshToken: tok.RefreshToken,
		UserID:       tok.User.ID,
	}
	return sess, tok.User.account(), nil
}

// SignOut revokes every refresh token of the user the access token belongs
// to, which is what the admin sign-out does.
func (c *Client) SignOut(ctx context.Context, accessToken string) error {
	query := url.Values{"scope": {"global"}}
	return c.do(ctx, http.MethodPost, "/auth/v1/logout", query, accessToken, nil, nil)
}

func (c *Client) SendPasswordReset(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, http.MethodPost, "/auth/v1/recover", query, c.serviceKey, map[string]string{"email": email}, nil)
}

func (c *Client) do(ctx context.Context, method, path string, query url.Values, bearer string, in, out any) error {
	endpoint := c.baseURL + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode %s: %w", path, err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return err
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Authorization", "Bearer "+bearer)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr := &APIError{Status: resp.StatusCode}
		_ = json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(apiErr)
		return apiErr
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s: %w", path, err)
	}
	return nil
}
