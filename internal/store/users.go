package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hashfile/internal/auth"
	"hashfile/internal/models"
)

const userColumns = "id, username, password_hash, created_at"

// CreateUser registers one identity with an already hashed password.
func (s *Store) CreateUser(ctx context.Context, username, passwordHash string, now time.Time) (*models.User, error) {
	username, err := auth.NormalizeUsername(username)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(passwordHash) == "" {
		return nil, fmt.Errorf("password hash is required")
	}

	result, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password_hash, created_at)
		VALUES (?, ?, ?)
	`, username, passwordHash, dbFormatTime(now))
	if err != nil {
		if isUniqueConstraint(err, "users.username") {
			return nil, ErrDuplicateUsername
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: passwordHash,
		CreatedAt:    now.UTC(),
	}, nil
}

// GetUserByUsername returns a user by normalized username, or nil if absent.
func (s *Store) GetUserByUsername(ctx context.Context, username string) (*models.User, error) {
	username, err := auth.NormalizeUsername(username)
	if err != nil {
		// No stored identity can carry a name that fails the rules.
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE username = ? LIMIT 1`, username)
	return scanUser(row)
}

// GetUserByID returns a user by id, or nil if absent.
func (s *Store) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	if id <= 0 {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = ? LIMIT 1`, id)
	return scanUser(row)
}

// ListUsers returns all users sorted by username.
func (s *Store) ListUsers(ctx context.Context) ([]models.User, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY username ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]models.User, 0)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		if user == nil {
			continue
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func scanUser(scanner interface {
	Scan(dest ...any) error
}) (*models.User, error) {
	var user models.User
	var createdAt string
	if err := scanner.Scan(&user.ID, &user.Username, &user.PasswordHash, &createdAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := dbParseTime(createdAt)
	if err != nil {
		return nil, err
	}
	user.CreatedAt = parsed
	return &user, nil
}
