package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Supabase authenticates against a Supabase project's GoTrue API.
type Supabase struct {
	baseURL string
	anonKey string
	http    *http.Client
}

// NewSupabase creates a GoTrue client for the project at baseURL.
func NewSupabase(baseURL, anonKey string, timeout time.Duration) *Supabase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		http:    &http.Client{Timeout: timeout},
	}
}

type gotrueUser struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueSession struct {
	AccessToken string      `json:"access_token"`
	User        *gotrueUser `json:"user"`

	// Sign-up without a session returns the user fields at top level.
	ID    string `json:"id"`
	Email string `json:"email"`
}

type gotrueError struct {
	Code             any    `json:"code"`
	ErrorCode        string `json:"error_code"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	Msg              string `json:"msg"`
	Message          string `json:"message"`
}

func (e gotrueError) text() string {
	for _, s := range []string{e.ErrorDescription, e.Msg, e.Message, e.Error} {
		if s != "" {
			return s
		}
	}
	return "unknown error"
}

func (s *Supabase) SignIn(ctx context.Context, email, password string) (User, string, error) {
	sess, status, gerr, err := s.call(ctx, "/auth/v1/token?grant_type=password", email, password)
	if err != nil {
		return User{}, "", err
	}
	if gerr != nil {
		if status == http.StatusBadRequest || status == http.StatusUnauthorized {
			return User{}, "", ErrInvalidCredentials
		}
		return User{}, "", fmt.Errorf("supabase sign in: %s", gerr.text())
	}
	return sess.user(), sess.AccessToken, nil
}

func (s *Supabase) SignUp(ctx context.Context, email, password string) (User, string, error) {
	sess, status, gerr, err := s.call(ctx, "/auth/v1/signup", email, password)
	if err != nil {
		return User{}, "", err
	}
	if gerr != nil {
		msg := strings.ToLower(gerr.text())
		switch {
		case strings.Contains(msg, "already registered"), strings.Contains(msg, "already exists"):
			return User{}, "", ErrEmailTaken
		case strings.Contains(msg, "password"):
			return User{}, "", fmt.Errorf("%w: %s", ErrWeakPassword, gerr.text())
		case strings.Contains(msg, "email") && status == http.StatusBadRequest:
			return User{}, "", ErrInvalidEmail
		}
		return User{}, "", fmt.Errorf("supabase sign up: %s", gerr.text())
	}
	return sess.user(), sess.AccessToken, nil
}

func (g gotrueSession) user() User {
	if g.User != nil {
		return User{ID: g.User.ID, Email: g.User.Email}
	}
	return User{ID: g.ID, Email: g.Email}
}

// call posts credentials to path. A non-2xx answer is returned as gerr.
func (s *Supabase) call(ctx context.Context, path, email, password string) (gotrueSession, int, *gotrueError, error) {
	body, err := json.Marshal(map[string]string{"email": normalizeEmail(email), "password": password})
	if err != nil {
		return gotrueSession{}, 0, nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return gotrueSession{}, 0, nil, fmt.Errorf("build auth request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("apikey", s.anonKey)
	req.Header.Set("Authorization", "Bearer "+s.anonKey)

	resp, err := s.http.Do(req)
	if err != nil {
		return gotrueSession{}, 0, nil, fmt.Errorf("supabase auth: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return gotrueSession{}, resp.StatusCode, nil, fmt.Errorf("read auth response: %w", err)
	}

	if resp.StatusCode >= 300 {
		var gerr gotrueError
		if json.Unmarshal(data, &gerr) != nil {
			gerr.Msg = strings.TrimSpace(string(data))
		}
		return gotrueSession{}, resp.StatusCode, &gerr, nil
	}

	var sess gotrueSession
	if err := json.Unmarshal(data, &sess); err != nil {
		return gotrueSession{}, resp.StatusCode, nil, fmt.Errorf("decode auth response: %w", err)
	}
	return sess, resp.StatusCode, nil, nil
}
