package store

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestSQLite(t *testing.T) *SQLite {
	t.Helper()
	s, err := NewSQLite(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestSQLiteInsertAndCount(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	rec := Record{
		"cargo_type":            "Wheat",
		"origin_port":           "Jebel Ali",
		"destination_port":      "Mumbai",
		"cargo_weight":          5000.0,
		"cargo_volume":          nil,
		"preferred_vessel_type": "group-c",
		"loading_date":          time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC),
		"contact_name":          "Sam Doe",
		"contact_email":         "sam@example.com",
		"contact_phone":         "+971500000000",
		"company":               "firm",
		"additional_details":    "IMSBC: group-c",
	}
	require.NoError(t, s.Insert(ctx, "cargo_listings", rec))
	require.NoError(t, s.Insert(ctx, "cargo_listings", rec))

	n, err := s.CountWhere(ctx, "cargo_listings", "contact_email", "sam@example.com")
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.CountWhere(ctx, "vessel_listings", "owner_email", "sam@example.com")
	require.NoError(t, err)
	assert.Zero(t, n)

	var loading string
	require.NoError(t, s.db.QueryRow(`SELECT loading_date FROM cargo_listings LIMIT 1`).Scan(&loading))
	assert.Equal(t, "2025-03-01", loading)
}

func TestSQLiteDuplicateNewsletter(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	require.NoError(t, s.Insert(ctx, "newsletter_subscribers", Record{"email": "a@b.co", "name": nil}))

	err := s.Insert(ctx, "newsletter_subscribers", Record{"email": "a@b.co", "name": "Again"})
	require.Error(t, err)
	assert.True(t, IsDuplicate(err), "got %v", err)

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Contains(t, se.Message, "newsletter_subscribers.email")
}

func TestSQLiteNotNullViolation(t *testing.T) {
	s := newTestSQLite(t)

	err := s.Insert(context.Background(), "contact_submissions", Record{"name": "Sam", "email": "a@b.co"})

	var se *Error
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeNotNullViolation, se.Code)
}

func TestSQLiteRejectsUnknownTable(t *testing.T) {
	s := newTestSQLite(t)

	err := s.Insert(context.Background(), "sqlite_master", Record{"name": "x"})
	assert.ErrorIs(t, err, ErrUnknownTable)

	_, err = s.CountWhere(context.Background(), "cargo_listings", "1=1 OR contact_email", "x")
	assert.Error(t, err)
}

func TestSQLiteAccounts(t *testing.T) {
	s := newTestSQLite(t)
	ctx := context.Background()

	acct := Account{
		ID:           uuid.New(),
		Email:        "owner@example.com",
		PasswordHash: "$argon2id$v=19$m=65536,t=1,p=4$c2FsdA$aGFzaA",
		CreatedAt:    time.Now().UTC().Truncate(time.Second),
	}
	require.NoError(t, s.CreateAccount(ctx, acct))

	got, err := s.AccountByEmail(ctx, "owner@example.com")
	require.NoError(t, err)
	assert.Equal(t, acct.ID, got.ID)
	assert.Equal(t, acct.PasswordHash, got.PasswordHash)

	_, err = s.AccountByEmail(ctx, "nobody@example.com")
	assert.ErrorIs(t, err, ErrNotFound)

	err = s.CreateAccount(ctx, Account{ID: uuid.New(), Email: acct.Email, PasswordHash: "x", CreatedAt: time.Now()})
	assert.True(t, IsDuplicate(err), "got %v", err)
}
