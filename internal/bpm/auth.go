package bpm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// AuthState is the client's view of the session lifecycle.
type AuthState int

const (
	Unauthenticated AuthState = iota
	Authenticated
	Refreshing
)

func (s AuthState) String() string {
	switch s {
	case Authenticated:
		return "authenticated"
	case Refreshing:
		return "refreshing"
	default:
		return "unauthenticated"
	}
}

// State reports the current auth state.
func (c *Client) State() AuthState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Client) setState(s AuthState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = s
}

const (
	loginPath         = "/auth/login"
	authenticatedPath = "/auth/authenticated"
	refreshPath       = "/auth/refresh"
	logoutPath        = "/auth/logout"
)

// Credentials is the login payload.
type Credentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type tokenResponse struct {
	IDToken string `json:"idToken"`
}

// Login exchanges credentials for a bearer token, stores it and notifies
// subscribers.
func (c *Client) Login(ctx context.Context, email, password string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	if strings.TrimSpace(email) == "" || password == "" {
		return "", fmt.Errorf("email and password are required")
	}
	req := Request{Method: http.MethodPost, Path: loginPath, Body: Credentials{Email: email, Password: password}}
	token, err := c.exchange(ctx, req, "")
	if err != nil {
		return "", err
	}
	if err := c.sessions.SetToken(token); err != nil {
		return "", err
	}
	c.setState(Authenticated)
	c.sessions.Notify(token)
	c.log.WithField("email", email).Debug("logged in")
	return token, nil
}

// Authenticated probes the session with the current token. It is a single
// attempt: a 401 is reported, not refreshed.
func (c *Client) Authenticated(ctx context.Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	current := c.sessions.Token()
	token, err := c.exchange(ctx, Request{Method: http.MethodGet, Path: authenticatedPath}, current)
	if err != nil {
		return "", err
	}
	if token == "" {
		token = current
	}
	c.setState(Authenticated)
	return token, nil
}

// Refresh asks for a new token using the refresh cookie. It does not touch
// the session store; the caller decides what to do with the result.
func (c *Client) Refresh(ctx context.Context) (string, error) {
	if c == nil {
		return "", fmt.Errorf("client is nil")
	}
	return c.exchange(ctx, Request{Method: http.MethodGet, Path: refreshPath}, "")
}

// Logout tells the API to drop the refresh cookie, then clears the local
// session regardless of the outcome.
func (c *Client) Logout(ctx context.Context) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	resp, err := c.send(ctx, Request{Method: http.MethodPost, Path: logoutPath}, c.sessions.Token())
	if err != nil {
		c.log.WithError(err).Warn("logout request failed")
	} else {
		discard(resp)
	}
	if err := c.sessions.ClearToken(); err != nil {
		return err
	}
	c.setState(Unauthenticated)
	c.sessions.Notify("")
	return nil
}

// exchange sends an auth request without 401 recovery and returns idToken.
func (c *Client) exchange(ctx context.Context, req Request, token string) (string, error) {
	resp, err := c.send(ctx, req, token)
	if err != nil {
		return "", err
	}
	defer discard(resp)

	if resp.StatusCode >= 400 {
		return "", newAPIError(req, resp)
	}
	var payload tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	return payload.IDToken, nil
}
