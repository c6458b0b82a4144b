package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// SQLite stores records in a local file. It backs development and tests
// when no hosted backend is configured.
type SQLite struct {
	db *sql.DB
}

// NewSQLite opens path and applies the schema.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer avoids SQLITE_BUSY under concurrent submissions.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	s := &SQLite{db: db}
	if err := s.Migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLite) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to migrate database: %w", err)
	}
	return nil
}

func (s *SQLite) Insert(ctx context.Context, table string, rec Record) error {
	if err := checkInsert(table, rec); err != nil {
		return err
	}
	cols := rec.Columns()
	quoted := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
		args[i] = sqliteValue(rec[c])
	}
	query := fmt.Sprintf(`INSERT INTO "%s" (%s) VALUES (%s)`,
		table, strings.Join(quoted, ", "), strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", "))

	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return sqliteError(err)
	}
	return nil
}

func (s *SQLite) CountWhere(ctx context.Context, table, column string, value any) (int64, error) {
	if err := checkCount(table, column); err != nil {
		return 0, err
	}
	query := fmt.Sprintf(`SELECT COUNT(*) FROM "%s" WHERE "%s" = ?`, table, column)

	var n int64
	if err := s.db.QueryRowContext(ctx, query, sqliteValue(value)).Scan(&n); err != nil {
		return 0, sqliteError(err)
	}
	return n, nil
}

func (s *SQLite) CreateAccount(ctx context.Context, acct Account) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at) VALUES (?, ?, ?, ?)`,
		acct.ID.String(), acct.Email, acct.PasswordHash, acct.CreatedAt.UTC())
	if err != nil {
		return sqliteError(err)
	}
	return nil
}

func (s *SQLite) AccountByEmail(ctx context.Context, email string) (Account, error) {
	var (
		acct Account
		id   string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE email = ?`, email,
	).Scan(&id, &acct.Email, &acct.PasswordHash, &acct.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, sqliteError(err)
	}
	parsed, err := uuid.Parse(id)
	if err != nil {
		return Account{}, fmt.Errorf("account %s: %w", email, err)
	}
	acct.ID = parsed
	return acct, nil
}

func (s *SQLite) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLite) Close() {
	s.db.Close()
}

func sqliteValue(v any) any {
	switch x := v.(type) {
	case time.Time:
		return x.Format("2006-01-02")
	case bool:
		if x {
			return 1
		}
		return 0
	default:
		return v
	}
}

// sqliteError maps constraint failures onto the SQLSTATE codes the
// PostgreSQL backends report.
func sqliteError(err error) error {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return err
	}

	var code string
	switch se.Code() {
	case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		code = CodeUniqueViolation
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		code = CodeForeignKeyViolation
	case sqlite3.SQLITE_CONSTRAINT_NOTNULL:
		code = CodeNotNullViolation
	case sqlite3.SQLITE_CONSTRAINT_CHECK:
		code = CodeCheckViolation
	default:
		// Extended codes may be off; fall back on the message.
		msg := se.Error()
		switch {
		case strings.Contains(msg, "UNIQUE constraint failed"):
			code = CodeUniqueViolation
		case strings.Contains(msg, "NOT NULL constraint failed"):
			code = CodeNotNullViolation
		default:
			return err
		}
	}
	return &Error{Code: code, Message: se.Error(), Err: err}
}
