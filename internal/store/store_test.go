package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordColumnsSorted(t *testing.T) {
	rec := Record{"name": "x", "email": "a@b.co", "company": nil}
	assert.Equal(t, []string{"company", "email", "name"}, rec.Columns())
}

func TestCheckInsert(t *testing.T) {
	tests := []struct {
		name    string
		table   string
		rec     Record
		wantErr bool
	}{
		{"known table", "newsletter_subscribers", Record{"email": "a@b.co"}, false},
		{"unknown table", "users", Record{"email": "a@b.co"}, true},
		{"empty record", "cargo_listings", Record{}, true},
		{"injected column", "cargo_listings", Record{"cargo_type; DROP TABLE x": "y"}, true},
		{"upper-case column", "cargo_listings", Record{"CargoType": "y"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := checkInsert(tt.table, tt.rec)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	assert.ErrorIs(t, checkInsert("users", Record{"a": 1}), ErrUnknownTable)
}

func TestIsDuplicate(t *testing.T) {
	dup := &Error{Code: CodeUniqueViolation, Message: "duplicate key"}
	assert.True(t, IsDuplicate(dup))
	assert.True(t, IsDuplicate(fmt.Errorf("insert: %w", dup)))
	assert.False(t, IsDuplicate(&Error{Code: CodeNotNullViolation}))
	assert.False(t, IsDuplicate(errors.New("duplicate key")))
	assert.False(t, IsDuplicate(nil))
}

func TestErrorString(t *testing.T) {
	assert.Equal(t, "boom (SQLSTATE 23514)", (&Error{Code: "23514", Message: "boom"}).Error())
	assert.Equal(t, "boom", (&Error{Message: "boom"}).Error())
}

func TestPgErrorMapping(t *testing.T) {
	src := &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint", Detail: "Key (email)=(a@b.co) already exists."}

	err := pgError(fmt.Errorf("exec: %w", src))

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeUniqueViolation, se.Code)
	assert.Equal(t, src.Detail, se.Details)
	assert.ErrorIs(t, err, src)

	plain := errors.New("connection refused")
	assert.Same(t, plain, pgError(plain))
}

func TestBuildPgInsert(t *testing.T) {
	day := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	query, args := buildPgInsert("cargo_listings", Record{
		"cargo_type":   "Wheat",
		"cargo_weight": 5000.0,
		"cargo_volume": nil,
		"loading_date": day,
	})

	assert.Equal(t,
		`INSERT INTO "cargo_listings" ("cargo_type", "cargo_volume", "cargo_weight", "loading_date") VALUES ($1, $2, $3, $4)`,
		query)
	require.Len(t, args, 4)
	assert.Equal(t, pgtype.Text{String: "Wheat", Valid: true}, args[0])
	assert.Nil(t, args[1])
	assert.IsType(t, pgtype.Numeric{}, args[2])
	assert.Equal(t, pgtype.Date{Time: day, Valid: true}, args[3])
}

func TestParseContentRange(t *testing.T) {
	n, err := parseContentRange("0-24/573")
	require.NoError(t, err)
	assert.Equal(t, int64(573), n)

	n, err = parseContentRange("*/0")
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	for _, bad := range []string{"", "0-24", "0-24/", "0-24/*"} {
		_, err := parseContentRange(bad)
		assert.Error(t, err, "Content-Range %q", bad)
	}
}
