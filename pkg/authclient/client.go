// Package authclient lets other services talk to the auth service over HTTP.
package authclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const refreshCookieName = "refreshToken"

var ErrUnauthorized = errors.New("unauthorized")

// StatusError is returned for any non-2xx answer.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("auth service: %d %s", e.Code, e.Message)
}

func (e *StatusError) Is(target error) bool {
	return target == ErrUnauthorized && e.Code == http.StatusUnauthorized
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient takes the service URL including the API prefix,
// e.g. http://auth:8080/api.
func NewClient(authServiceURL string) *Client {
	return &Client{
		baseURL: strings.TrimRight(authServiceURL, "/"),
		httpClient: &http.Client{
			Timeout: 5 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

type User struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName"`
	Role     string `json:"role"`
}

// Session holds what signup, login and refresh hand back. RefreshToken is
// read from the Set-Cookie header.
type Session struct {
	AccessToken      string
	RefreshToken     string
	RefreshExpiresAt time.Time
	User             *User
}

type SignupRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"fullName"`
	Role     string `json:"role,omitempty"`
}

type authResponse struct {
	Message string `json:"message"`
	Data    struct {
		AccessToken string `json:"accessToken"`
		User        *User  `json:"user"`
	} `json:"data"`
}

func (c *Client) Signup(ctx context.Context, in SignupRequest) (*Session, error) {
	return c.session(ctx, http.MethodPost, "/auth/signup", in, nil)
}

func (c *Client) Login(ctx context.Context, email, password string) (*Session, error) {
	body := map[string]string{"email": email, "password": password}
	return c.session(ctx, http.MethodPost, "/auth/login", body, nil)
}

// RefreshTokens redeems refreshToken for a new pair. The old token is dead
// afterwards whether or not the caller reads the answer.
func (c *Client) RefreshTokens(ctx context.Context, refreshToken string) (*Session, error) {
	cookie := &http.Cookie{Name: refreshCookieName, Value: refreshToken}
	return c.session(ctx, http.MethodGet, "/auth/refresh", nil, func(r *http.Request) { r.AddCookie(cookie) })
}

func (c *Client) Logout(ctx context.Context, accessToken string) error {
	resp, err := c.do(ctx, http.MethodGet, "/auth/logout", nil, bearer(accessToken))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// Me returns the profile behind accessToken.
func (c *Client) Me(ctx context.Context, accessToken string) (*User, error) {
	resp, err := c.do(ctx, http.MethodGet, "/users/me", nil, bearer(accessToken))
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var env struct {
		Data User `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &env.Data, nil
}

func (c *Client) session(ctx context.Context, method, path string, body any, mutate func(*http.Request)) (*Session, error) {
	resp, err := c.do(ctx, method, path, body, mutate)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var ar authResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}

	s := &Session{AccessToken: ar.Data.AccessToken, User: ar.Data.User}
	for _, ck := range resp.Cookies() {
		if ck.Name == refreshCookieName && ck.Value != "" {
			s.RefreshToken = ck.Value
			if ck.MaxAge > 0 {
				s.RefreshExpiresAt = time.Now().Add(time.Duration(ck.MaxAge) * time.Second)
			} else {
				s.RefreshExpiresAt = ck.Expires
			}
		}
	}
	return s, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, mutate func(*http.Request)) (*http.Response, error) {
	var rd io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request: %w", err)
		}
		rd = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mutate != nil {
		mutate(req)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("do request: %w", err)
	}
	if resp.StatusCode >= 300 {
		defer resp.Body.Close()
		return nil, statusError(resp)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	var body struct {
		Message any `json:"message"`
	}
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
	msg := http.StatusText(resp.StatusCode)
	if json.Unmarshal(data, &body) == nil && body.Message != nil {
		msg = fmt.Sprint(body.Message)
	}
	return &StatusError{Code: resp.StatusCode, Message: msg}
}

func bearer(token string) func(*http.Request) {
	return func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+token)
	}
}
