package auth

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JonMunkholm/shipbroker/internal/store"
)

type memAccounts struct {
	mu   sync.Mutex
	byID map[string]store.Account
}

func (m *memAccounts) CreateAccount(_ context.Context, acct store.Account) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.byID == nil {
		m.byID = make(map[string]store.Account)
	}
	if _, ok := m.byID[acct.Email]; ok {
		return &store.Error{Code: store.CodeUniqueViolation, Message: "duplicate email"}
	}
	m.byID[acct.Email] = acct
	return nil
}

func (m *memAccounts) AccountByEmail(_ context.Context, email string) (store.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	acct, ok := m.byID[email]
	if !ok {
		return store.Account{}, store.ErrNotFound
	}
	return acct, nil
}

func TestLocal_SignUpAndSignIn(t *testing.T) {
	ctx := context.Background()
	accounts := &memAccounts{}
	l := NewLocal(accounts, 8)

	u, token, err := l.SignUp(ctx, "  Broker@Example.com ", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, "broker@example.com", u.Email)
	assert.Empty(t, token)

	stored, _ := accounts.AccountByEmail(ctx, "broker@example.com")
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$v=19$"))
	assert.NotContains(t, stored.PasswordHash, "correct horse")

	got, _, err := l.SignIn(ctx, "BROKER@example.com", "correct horse")
	require.NoError(t, err)
	assert.Equal(t, u.ID, got.ID)

	_, _, err = l.SignIn(ctx, "broker@example.com", "wrong horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)

	_, _, err = l.SignIn(ctx, "nobody@example.com", "correct horse")
	assert.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestLocal_SignUpRejects(t *testing.T) {
	ctx := context.Background()
	l := NewLocal(&memAccounts{}, 8)

	_, _, err := l.SignUp(ctx, "not-an-email", "long enough")
	assert.ErrorIs(t, err, ErrInvalidEmail)

	_, _, err = l.SignUp(ctx, "a@b.co", "short")
	assert.ErrorIs(t, err, ErrWeakPassword)

	_, _, err = l.SignUp(ctx, "a@b.co", "long enough")
	require.NoError(t, err)
	_, _, err = l.SignUp(ctx, "A@B.co", "long enough")
	assert.ErrorIs(t, err, ErrEmailTaken)
}

func TestCheckPassword_RejectsForeignHashes(t *testing.T) {
	_, err := checkPassword("$2a$10$abcdefghijklmnopqrstuv", "x")
	assert.Error(t, err)

	hash, err := hashPassword("secret")
	require.NoError(t, err)
	ok, err := checkPassword(hash, "secret")
	require.NoError(t, err)
	assert.True(t, ok)
}
