package auth

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/argon2"

	"github.com/JonMunkholm/shipbroker/internal/store"
)

// Authenticator checks credentials and registers new accounts. The
// returned token is empty for providers that do not issue one.
type Authenticator interface {
	SignIn(ctx context.Context, email, password string) (User, string, error)
	SignUp(ctx context.Context, email, password string) (User, string, error)
}

// argon2id parameters for stored hashes.
const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4
	argonKeyLen  = 32
	argonSaltLen = 16
)

// Local authenticates against accounts kept in the SQL store.
type Local struct {
	accounts  store.AccountStore
	minLength int
}

// NewLocal creates a local authenticator.
func NewLocal(accounts store.AccountStore, minPasswordLength int) *Local {
	if minPasswordLength <= 0 {
		minPasswordLength = 8
	}
	return &Local{accounts: accounts, minLength: minPasswordLength}
}

func (l *Local) SignIn(ctx context.Context, email, password string) (User, string, error) {
	acct, err := l.accounts.AccountByEmail(ctx, normalizeEmail(email))
	if errors.Is(err, store.ErrNotFound) {
		// Unknown emails cost one hash like known ones.
		_, _ = hashPassword(password)
		return User{}, "", ErrInvalidCredentials
	}
	if err != nil {
		return User{}, "", fmt.Errorf("load account: %w", err)
	}

	ok, err := checkPassword(acct.PasswordHash, password)
	if err != nil {
		return User{}, "", err
	}
	if !ok {
		return User{}, "", ErrInvalidCredentials
	}
	return User{ID: acct.ID.String(), Email: acct.Email}, "", nil
}

func (l *Local) SignUp(ctx context.Context, email, password string) (User, string, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return User{}, "", ErrInvalidEmail
	}
	if len(password) < l.minLength {
		return User{}, "", fmt.Errorf("%w: at least %d characters", ErrWeakPassword, l.minLength)
	}

	hash, err := hashPassword(password)
	if err != nil {
		return User{}, "", err
	}
	acct := store.Account{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    time.Now().UTC(),
	}
	if err := l.accounts.CreateAccount(ctx, acct); err != nil {
		if store.IsDuplicate(err) {
			return User{}, "", ErrEmailTaken
		}
		return User{}, "", fmt.Errorf("create account: %w", err)
	}
	return User{ID: acct.ID.String(), Email: acct.Email}, "", nil
}

func normalizeEmail(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// hashPassword returns an encoded argon2id hash in the PHC string format.
func hashPassword(password string) (string, error) {
	salt := make([]byte, argonSaltLen)
	if _, err := rand.Read(salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(password), salt, argonTime, argonMemory, argonThreads, argonKeyLen)

	enc := base64.RawStdEncoding
	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, argonMemory, argonTime, argonThreads,
		enc.EncodeToString(salt), enc.EncodeToString(key)), nil
}

func checkPassword(encoded, password string) (bool, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return false, errors.New("unsupported password hash")
	}

	var version int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil || version != argon2.Version {
		return false, errors.New("unsupported argon2 version")
	}
	var memory, iterations uint32
	var threads uint8
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &threads); err != nil {
		return false, fmt.Errorf("parse argon2 params: %w", err)
	}

	enc := base64.RawStdEncoding
	salt, err := enc.DecodeString(parts[4])
	if err != nil {
		return false, fmt.Errorf("decode salt: %w", err)
	}
	want, err := enc.DecodeString(parts[5])
	if err != nil {
		return false, fmt.Errorf("decode hash: %w", err)
	}

	got := argon2.IDKey([]byte(password), salt, iterations, memory, threads, uint32(len(want)))
	return subtle.ConstantTimeCompare(got, want) == 1, nil
}
