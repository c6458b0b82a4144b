// Package store persists submitted leads and local accounts.
//
// Three backends share the same contract: PostgreSQL through pgx, SQLite
// through the pure-Go modernc driver for local development, and a hosted
// Supabase project through its REST interface. Every backend reports
// constraint failures as *Error carrying a PostgreSQL SQLSTATE code so the
// submission pipeline can tell a duplicate from any other failure.
package store

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"time"

	"github.com/google/uuid"
)

// Record is one flat row keyed by column name. Values are string, bool,
// int64, float64, time.Time (stored as a date), or nil.
type Record map[string]any

// Columns returns the record's column names in sorted order.
func (r Record) Columns() []string {
	cols := make([]string, 0, len(r))
	for c := range r {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}

// Store is the persistence contract used by the submission pipeline and
// the dashboard.
type Store interface {
	// Insert writes one record. Constraint failures are returned as *Error.
	Insert(ctx context.Context, table string, rec Record) error

	// CountWhere counts rows in table whose column equals value.
	CountWhere(ctx context.Context, table, column string, value any) (int64, error)

	Ping(ctx context.Context) error
	Close()
}

// Migrator is implemented by backends whose schema this service owns.
type Migrator interface {
	Migrate(ctx context.Context) error
}

// Account is a locally managed sign-in identity.
type Account struct {
	ID           uuid.UUID
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// AccountStore is implemented by the SQL backends. Supabase manages its
// own users.
type AccountStore interface {
	CreateAccount(ctx context.Context, acct Account) error
	AccountByEmail(ctx context.Context, email string) (Account, error)
}

// Tables that accept inserts. Anything else is rejected before SQL is built.
var knownTables = map[string]bool{
	"cargo_listings":         true,
	"vessel_listings":        true,
	"contact_submissions":    true,
	"newsletter_subscribers": true,
	"accounts":               true,
}

var identRe = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// KnownTable reports whether table is part of the schema.
func KnownTable(table string) bool {
	return knownTables[table]
}

func checkInsert(table string, rec Record) error {
	if !knownTables[table] {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if len(rec) == 0 {
		return fmt.Errorf("insert into %s: empty record", table)
	}
	for col := range rec {
		if !identRe.MatchString(col) {
			return fmt.Errorf("insert into %s: invalid column name %q", table, col)
		}
	}
	return nil
}

func checkCount(table, column string) error {
	if !knownTables[table] {
		return fmt.Errorf("%w: %q", ErrUnknownTable, table)
	}
	if !identRe.MatchString(column) {
		return fmt.Errorf("count %s: invalid column name %q", table, column)
	}
	return nil
}

type ctxKey struct{}

// WithAccessToken attaches a user's bearer token so backends that enforce
// row-level security can act on the user's behalf.
func WithAccessToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKey{}, token)
}

func accessToken(ctx context.Context) string {
	if v, ok := ctx.Value(ctxKey{}).(string); ok {
		return v
	}
	return ""
}
