package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"go.uber.org/goleak"

	"github.com/JonMunkholm/shipbroker/internal/auth"
	"github.com/JonMunkholm/shipbroker/internal/config"
	"github.com/JonMunkholm/shipbroker/internal/core"
	_ "github.com/JonMunkholm/shipbroker/internal/core/forms"
	"github.com/JonMunkholm/shipbroker/internal/metrics"
	"github.com/JonMunkholm/shipbroker/internal/store"
	"github.com/JonMunkholm/shipbroker/internal/verify"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type inserted struct {
	table string
	rec   store.Record
}

// fakeStore records inserts and answers counts from them.
type fakeStore struct {
	mu      sync.Mutex
	rows    []inserted
	err     error
	pingErr error
}

func (f *fakeStore) Insert(_ context.Context, table string, rec store.Record) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.rows = append(f.rows, inserted{table, rec})
	return nil
}

func (f *fakeStore) CountWhere(_ context.Context, table, column string, value any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var n int64
	for _, r := range f.rows {
		if r.table == table && r.rec[column] == value {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) Ping(context.Context) error { return f.pingErr }
func (f *fakeStore) Close()                     {}

func (f *fakeStore) inserts(table string) []store.Record {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []store.Record
	for _, r := range f.rows {
		if r.table == table {
			out = append(out, r.rec)
		}
	}
	return out
}

// fakeAuth accepts one fixed account.
type fakeAuth struct{}

func (fakeAuth) SignIn(_ context.Context, email, password string) (auth.User, string, error) {
	if email != "broker@example.com" || password != "correct horse" {
		return auth.User{}, "", auth.ErrInvalidCredentials
	}
	return auth.User{ID: "u1", Email: email}, "", nil
}

func (fakeAuth) SignUp(_ context.Context, email, _ string) (auth.User, string, error) {
	if email == "broker@example.com" {
		return auth.User{}, "", auth.ErrEmailTaken
	}
	return auth.User{ID: "u2", Email: email}, "", nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server:   config.ServerConfig{RequestTimeout: 5 * time.Second},
		Forms:    config.FormsConfig{SessionTTL: time.Hour, VerifyTimeout: time.Second, SubmitTimeout: time.Second},
		Auth:     config.AuthConfig{CookieName: "sb_session"},
		Security: config.SecurityConfig{EnableCSP: true},
		Metrics:  config.MetricsConfig{Enabled: true, Path: "/metrics"},
	}
}

type testEnv struct {
	srv   *Server
	store *fakeStore
	forms *core.Service
}

func newTestEnv(t *testing.T, mutate ...func(*config.Config)) *testEnv {
	t.Helper()
	cfg := testConfig()
	for _, m := range mutate {
		m(cfg)
	}

	st := &fakeStore{}
	var forms *core.Service
	sessions := auth.NewManager(auth.ManagerConfig{CookieName: cfg.Auth.CookieName})
	m := metrics.New(metrics.Gauges{
		ActiveSessions:      func() int { return forms.ActiveCount() },
		SubmissionsInFlight: func() int { return forms.Limiter().ActiveCount() },
	})
	forms = core.NewService(st, core.Config{
		SessionTTL:    cfg.Forms.SessionTTL,
		VerifyTimeout: cfg.Forms.VerifyTimeout,
		SubmitTimeout: cfg.Forms.SubmitTimeout,
		Observer:      m,
	})

	srv := NewServer(Deps{
		Config:   cfg,
		Forms:    forms,
		Store:    st,
		Sessions: sessions,
		Auth:     fakeAuth{},
		Verifier: verify.NewClient(cfg.Recaptcha, time.Second),
		Metrics:  m,
	})
	return &testEnv{srv: srv, store: st, forms: forms}
}

func (e *testEnv) do(r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(w, r)
	return w
}

func (e *testEnv) get(path string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodGet, path, nil)
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return e.do(r)
}

func (e *testEnv) postForm(path string, form url.Values, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, path, strings.NewReader(form.Encode()))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	for _, c := range cookies {
		r.AddCookie(c)
	}
	return e.do(r)
}

func cookieNamed(w *httptest.ResponseRecorder, name string) *http.Cookie {
	for _, c := range w.Result().Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}
