// Package config loads the site configuration from environment variables.
// Defaults cover a local development setup backed by SQLite; everything is
// validated on startup so a bad deployment fails before it serves traffic.
package config

import "time"

// Store backends accepted by STORE_BACKEND.
const (
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
	BackendSupabase = "supabase"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Supabase  SupabaseConfig
	Recaptcha RecaptchaConfig
	Forms     FormsConfig
	Auth      AuthConfig
	Rate      RateLimitConfig
	Security  SecurityConfig
	Logging   LoggingConfig
	Metrics   MetricsConfig
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	// Host is the interface to bind to (default: 0.0.0.0)
	Host string `env:"SERVER_HOST" default:"0.0.0.0"`

	// Port is the port to listen on (default: 8080)
	Port int `env:"SERVER_PORT" default:"8080"`

	ReadTimeout  time.Duration `env:"SERVER_READ_TIMEOUT" default:"15s"`
	WriteTimeout time.Duration `env:"SERVER_WRITE_TIMEOUT" default:"30s"`
	IdleTimeout  time.Duration `env:"SERVER_IDLE_TIMEOUT" default:"60s"`

	// ShutdownTimeout bounds graceful shutdown, including in-flight submissions.
	ShutdownTimeout time.Duration `env:"SERVER_SHUTDOWN_TIMEOUT" default:"30s"`

	// RequestTimeout is the middleware timeout for requests (default: 30s)
	RequestTimeout time.Duration `env:"SERVER_REQUEST_TIMEOUT" default:"30s"`
}

// DatabaseConfig selects and configures the persistence backend.
type DatabaseConfig struct {
	// Backend is one of postgres, sqlite, supabase (default: sqlite)
	Backend string `env:"STORE_BACKEND" default:"sqlite"`

	// URL is the PostgreSQL connection string, required for the postgres backend.
	URL string `env:"DATABASE_URL" envAlt:"DB_URL"`

	// SQLitePath is the database file for the sqlite backend.
	SQLitePath string `env:"SQLITE_PATH" default:"shipbroker.db"`

	MaxConns        int           `env:"DB_MAX_CONNS" default:"10"`
	MinConns        int           `env:"DB_MIN_CONNS" default:"2"`
	MaxConnLifetime time.Duration `env:"DB_MAX_CONN_LIFETIME" default:"1h"`
	MaxConnIdleTime time.Duration `env:"DB_MAX_CONN_IDLE_TIME" default:"30m"`
}

// SupabaseConfig holds the hosted backend settings used by the supabase
// store and the Supabase authenticator.
type SupabaseConfig struct {
	URL     string `env:"SUPABASE_URL" envAlt:"VITE_SUPABASE_URL"`
	AnonKey string `env:"SUPABASE_ANON_KEY" envAlt:"VITE_SUPABASE_ANON_KEY"`

	// HTTPTimeout bounds each REST call (default: 10s)
	HTTPTimeout time.Duration `env:"SUPABASE_HTTP_TIMEOUT" default:"10s"`
}

// RecaptchaConfig holds reCAPTCHA v3 settings. Verification is disabled
// when SecretKey is empty; tokens are still required from the browser.
type RecaptchaConfig struct {
	SiteKey   string  `env:"RECAPTCHA_SITE_KEY" envAlt:"VITE_RECAPTCHA_SITE_KEY"`
	SecretKey string  `env:"RECAPTCHA_SECRET_KEY"`
	MinScore  float64 `env:"RECAPTCHA_MIN_SCORE" default:"0.5"`
	VerifyURL string  `env:"RECAPTCHA_VERIFY_URL" default:"https://www.google.com/recaptcha/api/siteverify"`
}

// FormsConfig controls form sessions and the submission pipeline.
type FormsConfig struct {
	// SessionTTL is how long an untouched draft survives (default: 2h)
	SessionTTL time.Duration `env:"FORMS_SESSION_TTL" default:"2h"`

	// SweepInterval is how often idle drafts are dropped (default: 5m)
	SweepInterval time.Duration `env:"FORMS_SWEEP_INTERVAL" default:"5m"`

	// VerifyTimeout bounds the wait for a verification token (default: 10s)
	VerifyTimeout time.Duration `env:"FORMS_VERIFY_TIMEOUT" default:"10s"`

	// SubmitTimeout bounds the persistence call (default: 15s)
	SubmitTimeout time.Duration `env:"FORMS_SUBMIT_TIMEOUT" default:"15s"`

	// MaxConcurrent is the number of submissions allowed in flight (default: 20)
	MaxConcurrent int `env:"FORMS_MAX_CONCURRENT" default:"20"`

	// MaxWait is how long a submission waits for a free slot (default: 5s)
	MaxWait time.Duration `env:"FORMS_MAX_WAIT" default:"5s"`
}

// AuthConfig holds sign-in session settings.
type AuthConfig struct {
	SessionTTL   time.Duration `env:"AUTH_SESSION_TTL" default:"24h"`
	CookieName   string        `env:"AUTH_COOKIE_NAME" default:"sb_session"`
	CookieSecure bool          `env:"AUTH_COOKIE_SECURE" default:"false"`

	// MinPasswordLength applies to local sign-ups (default: 8)
	MinPasswordLength int `env:"AUTH_MIN_PASSWORD_LENGTH" default:"8"`
}

// RateLimitConfig holds rate limiting settings per time window.
type RateLimitConfig struct {
	// Enabled controls whether rate limiting is active (default: true)
	Enabled bool `env:"RATE_LIMIT_ENABLED" default:"true"`

	// RequestsPerMinute is the default rate limit per IP (default: 120)
	RequestsPerMinute int `env:"RATE_LIMIT_REQUESTS_PER_MINUTE" default:"120"`

	// SubmitLimit is requests per minute for form POST endpoints (default: 20)
	SubmitLimit int `env:"RATE_LIMIT_SUBMIT" default:"20"`
}

// SecurityConfig holds security-related settings.
type SecurityConfig struct {
	// TrustedProxies is a comma-separated list of trusted proxy CIDRs
	TrustedProxies []string `env:"TRUSTED_PROXIES"`

	// EnableCSP enables Content-Security-Policy headers (default: true)
	EnableCSP bool `env:"SECURITY_ENABLE_CSP" default:"true"`

	// RequireAPIKey protects the JSON form API with X-API-Key.
	RequireAPIKey bool     `env:"REQUIRE_API_KEY" default:"false"`
	APIKeys       []string `env:"API_KEYS"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, error (default: info)
	Level string `env:"LOG_LEVEL" default:"info"`

	// Format is the log format: text or json (default: text)
	Format string `env:"LOG_FORMAT" default:"text"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool   `env:"METRICS_ENABLED" default:"true"`
	Path    string `env:"METRICS_PATH" default:"/metrics"`
}

// Addr returns the server listen address in host:port format.
func (c *ServerConfig) Addr() string {
	if c.Host == "" {
		return ":" + itoa(c.Port)
	}
	return c.Host + ":" + itoa(c.Port)
}

// Enabled reports whether tokens are checked against siteverify.
func (c *RecaptchaConfig) Enabled() bool {
	return c.SecretKey != ""
}

func itoa(i int) string {
	if i == 0 {
		return "0"
	}
	var b [20]byte
	n := len(b)
	neg := i < 0
	if neg {
		i = -i
	}
	for i > 0 {
		n--
		b[n] = byte('0' + i%10)
		i /= 10
	}
	if neg {
		n--
		b[n] = '-'
	}
	return string(b[n:])
}
