package store

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
)

// Supabase writes records through a hosted project's REST interface
// (PostgREST). Row-level security applies; the anon key is used unless the
// context carries a user access token.
type Supabase struct {
	baseURL string
	anonKey string
	client  *http.Client
}

// NewSupabase creates a REST-backed store. A zero timeout defaults to 10s.
func NewSupabase(baseURL, anonKey string, timeout time.Duration) *Supabase {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Supabase{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{Timeout: timeout},
	}
}

// restError is the PostgREST error body.
type restError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details"`
	Hint    string `json:"hint"`
}

func (s *Supabase) Insert(ctx context.Context, table string, rec Record) error {
	if err := checkInsert(table, rec); err != nil {
		return err
	}

	row := make(map[string]any, len(rec))
	for k, v := range rec {
		if t, ok := v.(time.Time); ok {
			v = t.Format("2006-01-02")
		}
		row[k] = v
	}
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s record: %w", table, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/rest/v1/"+table, bytes.NewReader(body))
	if err != nil {
		return err
	}
	s.authorize(ctx, req)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Prefer", "return=minimal")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("insert into %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return decodeRestError(resp)
}

func (s *Supabase) CountWhere(ctx context.Context, table, column string, value any) (int64, error) {
	if err := checkCount(table, column); err != nil {
		return 0, err
	}

	q := url.Values{}
	q.Set("select", "id")
	q.Set(column, "eq."+fmt.Sprint(value))
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, s.baseURL+"/rest/v1/"+table+"?"+q.Encode(), nil)
	if err != nil {
		return 0, err
	}
	s.authorize(ctx, req)
	req.Header.Set("Prefer", "count=exact")

	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("count %s: %w", table, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return 0, decodeRestError(resp)
	}
	return parseContentRange(resp.Header.Get("Content-Range"))
}

func (s *Supabase) Ping(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/rest/v1/", nil)
	if err != nil {
		return err
	}
	s.authorize(ctx, req)

	resp, err := s.client.Do(req)
	if err != nil {
		return err
	}
	resp.Body.Close()
	if resp.StatusCode >= 500 {
		return fmt.Errorf("supabase unavailable: %s", resp.Status)
	}
	return nil
}

func (s *Supabase) Close() {
	s.client.CloseIdleConnections()
}

func (s *Supabase) authorize(ctx context.Context, req *http.Request) {
	req.Header.Set("apikey", s.anonKey)
	token := accessToken(ctx)
	if token == "" {
		token = s.anonKey
	}
	req.Header.Set("Authorization", "Bearer "+token)
}

func decodeRestError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var re restError
	if err := json.Unmarshal(raw, &re); err != nil || re.Message == "" {
		return &Error{
			Code:    strconv.Itoa(resp.StatusCode),
			Message: strings.TrimSpace(http.StatusText(resp.StatusCode) + " " + string(raw)),
		}
	}
	return &Error{Code: re.Code, Message: re.Message, Details: re.Details, Hint: re.Hint}
}

// parseContentRange reads the total from "0-24/573" or "*/0".
func parseContentRange(h string) (int64, error) {
	i := strings.LastIndexByte(h, '/')
	if i < 0 || i == len(h)-1 {
		return 0, fmt.Errorf("missing count in Content-Range %q", h)
	}
	total := h[i+1:]
	if total == "*" {
		return 0, fmt.Errorf("count not returned in Content-Range %q", h)
	}
	return strconv.ParseInt(total, 10, 64)
}
