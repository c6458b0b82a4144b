package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Postgres stores records in PostgreSQL through a pgx pool.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres opens a connection pool and pings it.
func NewPostgres(ctx context.Context, opts Options) (*Postgres, error) {
	poolCfg, err := pgxpool.ParseConfig(opts.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database url: %w", err)
	}
	if opts.MaxConns > 0 {
		poolCfg.MaxConns = opts.MaxConns
	}
	if opts.MinConns > 0 {
		poolCfg.MinConns = opts.MinConns
	}
	if opts.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = opts.MaxConnLifetime
	}
	if opts.MaxConnIdleTime > 0 {
		poolCfg.MaxConnIdleTime = opts.MaxConnIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

// Pool exposes the underlying pool for health reporting.
func (p *Postgres) Pool() *pgxpool.Pool {
	return p.pool
}

func (p *Postgres) Insert(ctx context.Context, table string, rec Record) error {
	if err := checkInsert(table, rec); err != nil {
		return err
	}
	query, args := buildPgInsert(table, rec)
	if _, err := p.pool.Exec(ctx, query, args...); err != nil {
		return pgError(err)
	}
	return nil
}

func (p *Postgres) CountWhere(ctx context.Context, table, column string, value any) (int64, error) {
	if err := checkCount(table, column); err != nil {
		return 0, err
	}
	query := fmt.Sprintf("SELECT COUNT(*) FROM %s WHERE %s = $1",
		pgx.Identifier{table}.Sanitize(), pgx.Identifier{column}.Sanitize())

	var n int64
	if err := p.pool.QueryRow(ctx, query, pgValue(value)).Scan(&n); err != nil {
		return 0, pgError(err)
	}
	return n, nil
}

func (p *Postgres) CreateAccount(ctx context.Context, acct Account) error {
	_, err := p.pool.Exec(ctx,
		`INSERT INTO accounts (id, email, password_hash, created_at) VALUES ($1, $2, $3, $4)`,
		pgtype.UUID{Bytes: acct.ID, Valid: true}, acct.Email, acct.PasswordHash, acct.CreatedAt)
	if err != nil {
		return pgError(err)
	}
	return nil
}

func (p *Postgres) AccountByEmail(ctx context.Context, email string) (Account, error) {
	var (
		acct Account
		id   pgtype.UUID
	)
	err := p.pool.QueryRow(ctx,
		`SELECT id, email, password_hash, created_at FROM accounts WHERE email = $1`, email,
	).Scan(&id, &acct.Email, &acct.PasswordHash, &acct.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Account{}, ErrNotFound
	}
	if err != nil {
		return Account{}, pgError(err)
	}
	acct.ID = id.Bytes
	return acct, nil
}

// Migrate applies the embedded schema. Statements are idempotent.
func (p *Postgres) Migrate(ctx context.Context) error {
	if _, err := p.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("apply postgres schema: %w", err)
	}
	return nil
}

func (p *Postgres) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *Postgres) Close() {
	p.pool.Close()
}

func buildPgInsert(table string, rec Record) (string, []any) {
	cols := rec.Columns()
	quoted := make([]string, len(cols))
	placeholders := make([]string, len(cols))
	args := make([]any, len(cols))
	for i, c := range cols {
		quoted[i] = pgx.Identifier{c}.Sanitize()
		placeholders[i] = "$" + strconv.Itoa(i+1)
		args[i] = pgValue(rec[c])
	}
	query := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgx.Identifier{table}.Sanitize(),
		strings.Join(quoted, ", "),
		strings.Join(placeholders, ", "))
	return query, args
}

// pgValue maps record values onto pgtype so NULLs and dates encode
// unambiguously.
func pgValue(v any) any {
	switch x := v.(type) {
	case nil:
		return nil
	case string:
		return pgtype.Text{String: x, Valid: true}
	case time.Time:
		return pgtype.Date{Time: x, Valid: true}
	case float64:
		var n pgtype.Numeric
		if err := n.Scan(strconv.FormatFloat(x, 'f', -1, 64)); err != nil {
			return x
		}
		return n
	case int64:
		return pgtype.Int8{Int64: x, Valid: true}
	case int:
		return pgtype.Int8{Int64: int64(x), Valid: true}
	case bool:
		return pgtype.Bool{Bool: x, Valid: true}
	default:
		return v
	}
}

// pgError converts server-side failures to *Error. Connection and context
// errors pass through unchanged.
func pgError(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &Error{
			Code:    pgErr.Code,
			Message: pgErr.Message,
			Details: pgErr.Detail,
			Hint:    pgErr.Hint,
			Err:     err,
		}
	}
	return err
}
