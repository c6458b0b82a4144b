package web

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/shipbroker/internal/config"
	"github.com/JonMunkholm/shipbroker/internal/core"
	"github.com/JonMunkholm/shipbroker/internal/store"
)

func contactValues() url.Values {
	return url.Values{
		"step":            {"0"},
		"name":            {"Amira Hassan"},
		"phone":           {"+20 101 032 9231"},
		"email":           {"amira@example.com"},
		"howDidYouFindUs": {"linkedin"},
		"message":         {"Looking for a 30k supramax ex Alexandria."},
	}
}

func TestPages(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Niche Dry-Bulk Brokerage")
	assert.Contains(t, w.Body.String(), `action="/newsletter"`)
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.NotEmpty(t, w.Header().Get("Content-Security-Policy"))

	w = env.get("/services")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Pre-Hire Inspections")

	w = env.get("/no-such-page")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "Page not found")

	w = env.get("/static/recaptcha.js")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestFormPageDoesNotCreateSession(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/list-cargo")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `name="cargoName"`)
	assert.Contains(t, w.Body.String(), `data-recaptcha-action="cargo_listing"`)
	assert.Zero(t, env.forms.ActiveCount())
	assert.Nil(t, cookieNamed(w, "draft_cargo_listing"))
}

func TestContactSubmit(t *testing.T) {
	env := newTestEnv(t)

	form := contactValues()
	form.Set("action", "submit")
	form.Set("g-recaptcha-response", "browser-token")
	w := env.postForm("/contact", form)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Message sent successfully!")
	require.NotNil(t, cookieNamed(w, "draft_contact"))

	rows := env.store.inserts("contact_submissions")
	require.Len(t, rows, 1)
	assert.Equal(t, "amira@example.com", rows[0]["email"])
	assert.Equal(t, "linkedin", rows[0]["company"])

	// after_submit: reset leaves a blank form behind the notice.
	assert.NotContains(t, w.Body.String(), "Amira Hassan")
}

func TestContactWithoutTokenWritesNothing(t *testing.T) {
	env := newTestEnv(t)

	form := contactValues()
	form.Set("action", "submit")
	w := env.postForm("/contact", form)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Security verification failed.")
	assert.Empty(t, env.store.inserts("contact_submissions"))
	assert.Contains(t, w.Body.String(), "Amira Hassan", "draft is kept for a retry")
}

func TestContactInvalidFieldsShownInline(t *testing.T) {
	env := newTestEnv(t)

	form := contactValues()
	form.Set("name", "A")
	form.Set("action", "submit")
	form.Set("g-recaptcha-response", "browser-token")
	w := env.postForm("/contact", form)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Name must be at least 2 characters")
	assert.NotContains(t, w.Body.String(), "toast-error")
	assert.Empty(t, env.store.inserts("contact_submissions"))
}

func TestCargoStepNavigation(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm("/list-cargo", url.Values{"action": {"next"}, "step": {"0"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Cargo Name is required")
	cookie := cookieNamed(w, "draft_cargo_listing")
	require.NotNil(t, cookie)

	sess, err := env.forms.Lookup(cookie.Value)
	require.NoError(t, err)
	assert.Equal(t, 0, sess.State().Step)

	w = env.postForm("/list-cargo", url.Values{
		"action":        {"next"},
		"step":          {"0"},
		"cargoName":     {"Wheat"},
		"imsbcType":     {"group-c"},
		"quantity":      {"5000"},
		"quantityUnit":  {"mt"},
		"stowageFactor": {""},
	}, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, sess.State().Step)
	assert.Contains(t, w.Body.String(), `value="goto:0"`)

	w = env.postForm("/list-cargo", url.Values{"action": {"goto:0"}, "step": {"1"}}, cookie)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 0, sess.State().Step)
	assert.Contains(t, w.Body.String(), `value="Wheat"`)

	w = env.postForm("/list-cargo", url.Values{"action": {"goto:2"}, "step": {"0"}}, cookie)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "toast-error")
}

func TestNewsletter(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm("/newsletter", url.Values{"email": {"Reader@Example.com"}})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Successfully subscribed to our newsletter!")
	rows := env.store.inserts("newsletter_subscribers")
	require.Len(t, rows, 1)
	assert.Equal(t, "reader@example.com", rows[0]["email"])
	assert.Zero(t, env.forms.ActiveCount(), "one-shot session is dropped")

	env.store.err = &store.Error{Code: store.CodeUniqueViolation, Message: "duplicate key"}
	w = env.postForm("/newsletter", url.Values{"email": {"reader@example.com"}})
	assert.Contains(t, w.Body.String(), "This email is already subscribed to our newsletter.")
	assert.Contains(t, w.Body.String(), `value="reader@example.com"`, "typed email survives")

	w = env.postForm("/newsletter", url.Values{"email": {"not-an-email"}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email address")
}

func TestDashboardRequiresSignIn(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/dashboard")
	assert.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/sign-in?next=%2Fdashboard", w.Header().Get("Location"))

	w = env.postForm("/sign-in", url.Values{"email": {"broker@example.com"}, "password": {"wrong"}, "next": {"/dashboard"}})
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), "Invalid email or password.")

	w = env.postForm("/sign-in", url.Values{"email": {"broker@example.com"}, "password": {"correct horse"}, "next": {"//evil.example"}})
	require.Equal(t, http.StatusSeeOther, w.Code)
	assert.Equal(t, "/dashboard", w.Header().Get("Location"))
	session := cookieNamed(w, "sb_session")
	require.NotNil(t, session)

	env.store.rows = append(env.store.rows,
		inserted{"cargo_listings", store.Record{"contact_email": "broker@example.com"}},
		inserted{"cargo_listings", store.Record{"contact_email": "someone@else.com"}},
		inserted{"vessel_listings", store.Record{"owner_email": "broker@example.com"}},
	)

	w = env.get("/dashboard", session)
	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Signed in as broker@example.com")
	assert.Contains(t, body, `<span class="stat-value">2</span><span class="stat-label">Total Listings`)
	assert.Contains(t, body, `<span class="stat-value">1</span><span class="stat-label">Cargo Listings`)

	w = env.postForm("/sign-out", nil, session)
	assert.Equal(t, http.StatusSeeOther, w.Code)
	w = env.get("/dashboard", session)
	assert.Equal(t, http.StatusSeeOther, w.Code)
}

func TestSignUpTakenEmail(t *testing.T) {
	env := newTestEnv(t)

	w := env.postForm("/sign-up", url.Values{"email": {"broker@example.com"}, "password": {"whatever123"}})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "An account with this email already exists.")
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t)

	w := env.get("/healthz")
	require.Equal(t, http.StatusOK, w.Code)
	var resp HealthResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ok", resp.Status)

	env.store.pingErr = &store.Error{Message: "dial tcp: connection refused"}
	w = env.get("/healthz")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	env := newTestEnv(t)
	env.get("/")

	w := env.get("/metrics")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `shipbroker_http_requests_total{method="GET",route="/",status="200"} 1`)
}

func TestRateLimitedSubmit(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 100, SubmitLimit: 1}
	})

	env.postForm("/newsletter", url.Values{"email": {"a@example.com"}})
	w := env.postForm("/newsletter", url.Values{"email": {"b@example.com"}})
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Contains(t, w.Body.String(), "RATE001")
	assert.Len(t, env.store.inserts("newsletter_subscribers"), 1)
}

func apiRequest(method, path, body string) *http.Request {
	r := httptest.NewRequest(method, path, strings.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	return r
}

func TestAPIDraftLifecycle(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(apiRequest(http.MethodGet, "/api/forms", ""))
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"key":"vessel_listing"`)

	w = env.do(apiRequest(http.MethodPost, "/api/forms/contact/drafts", ""))
	require.Equal(t, http.StatusCreated, w.Code)
	var created DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	id := created.State.SessionID
	require.NotEmpty(t, id)

	w = env.do(apiRequest(http.MethodPatch, "/api/drafts/"+id, `{"values":{"name":"Amira Hassan","phone":"+20 101 032 9231","email":"amira@example.com","howDidYouFindUs":"google","message":"Need a handysize for steel coils."}}`))
	require.Equal(t, http.StatusOK, w.Code)

	w = env.do(apiRequest(http.MethodPatch, "/api/drafts/"+id, `{"values":{"bogus":"x"}}`))
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"FRM002"`)

	r := apiRequest(http.MethodPost, "/api/drafts/"+id+"/submit", "")
	w = env.do(r)
	assert.Equal(t, http.StatusForbidden, w.Code, "no token")
	assert.Empty(t, env.store.inserts("contact_submissions"))

	r = apiRequest(http.MethodPost, "/api/drafts/"+id+"/submit", "")
	r.Header.Set("X-Recaptcha-Token", "tok")
	w = env.do(r)
	require.Equal(t, http.StatusOK, w.Code)
	var submitted DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &submitted))
	require.NotNil(t, submitted.Outcome)
	assert.Equal(t, core.StateSucceeded, submitted.Outcome.State)
	assert.Len(t, env.store.inserts("contact_submissions"), 1)

	w = env.do(apiRequest(http.MethodDelete, "/api/drafts/"+id, ""))
	assert.Equal(t, http.StatusNoContent, w.Code)
	w = env.do(apiRequest(http.MethodGet, "/api/drafts/"+id, ""))
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"code":"SUB003"`)
}

func TestAPIAdvanceReportsFieldErrors(t *testing.T) {
	env := newTestEnv(t)

	w := env.do(apiRequest(http.MethodPost, "/api/forms/vessel_listing/drafts", ""))
	require.Equal(t, http.StatusCreated, w.Code)
	var created DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	w = env.do(apiRequest(http.MethodPost, "/api/drafts/"+created.State.SessionID+"/advance", ""))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	var resp DraftResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.NotNil(t, resp.Result)
	assert.False(t, resp.Result.Valid)
	assert.Equal(t, 0, resp.State.Step)
}

func TestAPIKeyRequired(t *testing.T) {
	env := newTestEnv(t, func(c *config.Config) {
		c.Security.RequireAPIKey = true
		c.Security.APIKeys = []string{"secret"}
	})

	w := env.do(apiRequest(http.MethodGet, "/api/forms", ""))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	r := apiRequest(http.MethodGet, "/api/forms", "")
	r.Header.Set("X-API-Key", "secret")
	w = env.do(r)
	assert.Equal(t, http.StatusOK, w.Code)
}
