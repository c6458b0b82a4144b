// Package verify checks reCAPTCHA v3 tokens posted by the browser.
//
// The browser script obtains a token for the form's action and posts it
// with the form. The server exchanges it at siteverify and accepts it only
// when Google reports success for the same action with a score at or above
// the configured minimum.
package verify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JonMunkholm/shipbroker/internal/config"
	"github.com/JonMunkholm/shipbroker/internal/core"
)

// TokenField is the form field the reCAPTCHA script fills in.
const TokenField = "g-recaptcha-response"

// TokenHeader carries the token on JSON API requests.
const TokenHeader = "X-Recaptcha-Token"

var (
	ErrMissingToken   = errors.New("verification token missing")
	ErrRejected       = errors.New("verification rejected")
	ErrActionMismatch = errors.New("verification action mismatch")
	ErrLowScore       = errors.New("verification score too low")
)

// Result is the siteverify response.
type Result struct {
	Success     bool      `json:"success"`
	Score       float64   `json:"score"`
	Action      string    `json:"action"`
	ChallengeTS time.Time `json:"challenge_ts"`
	Hostname    string    `json:"hostname"`
	ErrorCodes  []string  `json:"error-codes"`
}

// Client talks to the siteverify endpoint. A client without a secret
// accepts any non-empty token, which keeps local development working.
type Client struct {
	secret    string
	minScore  float64
	verifyURL string
	http      *http.Client
}

// NewClient creates a client from configuration.
func NewClient(cfg config.RecaptchaConfig, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		secret:    cfg.SecretKey,
		minScore:  cfg.MinScore,
		verifyURL: cfg.VerifyURL,
		http:      &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether tokens are checked remotely.
func (c *Client) Enabled() bool {
	return c.secret != ""
}

// Check validates token for action. remoteIP is optional.
func (c *Client) Check(ctx context.Context, token, action, remoteIP string) (Result, error) {
	if token == "" {
		return Result{}, ErrMissingToken
	}
	if !c.Enabled() {
		return Result{Success: true, Score: 1, Action: action}, nil
	}

	form := url.Values{}
	form.Set("secret", c.secret)
	form.Set("response", token)
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		return Result{}, fmt.Errorf("build siteverify request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("siteverify: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return Result{}, fmt.Errorf("siteverify: unexpected status %d", resp.StatusCode)
	}

	var res Result
	if err := json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&res); err != nil {
		return Result{}, fmt.Errorf("decode siteverify response: %w", err)
	}

	switch {
	case !res.Success:
		return res, fmt.Errorf("%w: %s", ErrRejected, strings.Join(res.ErrorCodes, ","))
	case res.Action != "" && res.Action != action:
		return res, fmt.Errorf("%w: got %q, want %q", ErrActionMismatch, res.Action, action)
	case res.Score < c.minScore:
		return res, fmt.Errorf("%w: %.2f < %.2f", ErrLowScore, res.Score, c.minScore)
	}
	return res, nil
}

// ForRequest returns a core.Verifier bound to the token posted with r.
// The token is read from the form body first and then from TokenHeader.
func (c *Client) ForRequest(r *http.Request) core.Verifier {
	token := r.PostFormValue(TokenField)
	if token == "" {
		token = r.Header.Get(TokenHeader)
	}
	return c.WithToken(token, core.GetIPAddressFromContext(r.Context()))
}

// WithToken returns a core.Verifier for an already extracted token.
func (c *Client) WithToken(token, remoteIP string) core.Verifier {
	return core.VerifierFunc(func(ctx context.Context, action string) (string, error) {
		res, err := c.Check(ctx, token, action, remoteIP)
		if err != nil {
			return "", err
		}
		slog.DebugContext(ctx, "verification passed", "action", action, "score", res.Score, "hostname", res.Hostname)
		return token, nil
	})
}
