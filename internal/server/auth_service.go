package server

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	internalauth "hashfile/internal/auth"
	"hashfile/internal/models"
	"hashfile/internal/store"
)

const authTypeBearer = "bearer"

var (
	errInvalidCredentials = errors.New("invalid credentials")
	errMissingPassword    = errors.New("password is required")
)

// AuthService resolves identities from credentials and bearer tokens.
type AuthService struct {
	users  store.UserStore
	tokens *internalauth.TokenIssuer
}

type authLoginResult struct {
	User      *models.User
	Token     string
	ExpiresAt time.Time
}

func NewAuthService(users store.UserStore, tokens *internalauth.TokenIssuer) *AuthService {
	if users == nil || tokens == nil {
		return nil
	}
	return &AuthService{users: users, tokens: tokens}
}

// Login checks username and password and issues a bearer token.
func (a *AuthService) Login(ctx context.Context, username, password string) (*authLoginResult, error) {
	if a == nil {
		return nil, fmt.Errorf("auth service is not configured")
	}

	normalized, err := internalauth.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(password) == "" {
		return nil, errMissingPassword
	}

	user, err := a.users.GetUserByUsername(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if user == nil {
		internalauth.RejectUnknownUser(password)
		return nil, errInvalidCredentials
	}
	if !internalauth.VerifyPassword(user.PasswordHash, password) {
		return nil, errInvalidCredentials
	}

	token, expiresAt, err := a.tokens.Issue(user.ID)
	if err != nil {
		return nil, err
	}
	return &authLoginResult{User: user, Token: token, ExpiresAt: expiresAt}, nil
}

// Authenticate resolves a bearer token to a known identity. A nil user with a
// nil error means the token was well formed but its identity no longer exists.
func (a *AuthService) Authenticate(ctx context.Context, token string) (*models.User, error) {
	if a == nil {
		return nil, errInvalidCredentials
	}
	userID, err := a.tokens.Verify(token)
	if err != nil {
		return nil, err
	}
	return a.users.GetUserByID(ctx, userID)
}

func isTokenError(err error) bool {
	return errors.Is(err, internalauth.ErrTokenInvalid) ||
		errors.Is(err, internalauth.ErrTokenUnexpectedIssuer) ||
		errors.Is(err, errInvalidCredentials)
}
