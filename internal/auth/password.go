package auth

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"golang.org/x/crypto/bcrypt"
)

const (
	// MinPasswordLength is the shortest password accepted at provisioning.
	MinPasswordLength = 8
	// MaxUsernameLength matches the users.username CHECK constraint.
	MaxUsernameLength = 64
	// bcrypt ignores input past 72 bytes; reject it rather than truncate.
	maxPasswordBytes = 72
)

var (
	ErrInvalidUsername = errors.New("invalid username")
	ErrInvalidPassword = errors.New("invalid password")
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9](?:[a-z0-9._-]*[a-z0-9])?$`)

// NormalizeUsername lowercases and trims raw, then checks it against the
// identity naming rules shared by the store, the CLI and the login endpoint.
func NormalizeUsername(raw string) (string, error) {
	username := strings.ToLower(strings.TrimSpace(raw))
	switch {
	case username == "":
		return "", fmt.Errorf("%w: username is required", ErrInvalidUsername)
	case len(username) > MaxUsernameLength:
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidUsername, MaxUsernameLength)
	case !usernamePattern.MatchString(username):
		return "", fmt.Errorf("%w: %q may only contain a-z, 0-9, '.', '_' and '-'", ErrInvalidUsername, username)
	}
	return username, nil
}

// HashPassword validates and bcrypt-hashes a plaintext password.
func HashPassword(password string) (string, error) {
	if len(password) < MinPasswordLength {
		return "", fmt.Errorf("%w: must be at least %d characters", ErrInvalidPassword, MinPasswordLength)
	}
	if len(password) > maxPasswordBytes {
		return "", fmt.Errorf("%w: must be at most %d bytes", ErrInvalidPassword, maxPasswordBytes)
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// VerifyPassword reports whether candidate matches passwordHash.
func VerifyPassword(passwordHash, candidate string) bool {
	if strings.TrimSpace(passwordHash) == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(passwordHash), []byte(candidate)) == nil
}

var (
	dummyHashOnce sync.Once
	dummyHash     []byte
)

// RejectUnknownUser spends the same bcrypt work as VerifyPassword and always
// returns false, so a login for a missing username takes as long as one with
// a wrong password.
func RejectUnknownUser(candidate string) bool {
	dummyHashOnce.Do(func() {
		dummyHash, _ = bcrypt.GenerateFromPassword([]byte("hashfile-unknown-user"), bcrypt.DefaultCost)
	})
	_ = bcrypt.CompareHashAndPassword(dummyHash, []byte(candidate))
	return false
}
