package store

import (
	"context"
	"time"

	"hashfile/internal/models"
)

// FileStore is the metadata persistence surface for file records.
type FileStore interface {
	FindFileByAddress(ctx context.Context, hash string) (*models.FileRecord, error)
	FindFileByAddressAndOwner(ctx context.Context, hash string, userID int64) (*models.FileRecord, error)
	InsertFile(ctx context.Context, hash string, userID, sizeBytes int64) (*models.FileRecord, error)
	DeleteFile(ctx context.Context, record *models.FileRecord) error
	ListFilesByOwner(ctx context.Context, userID int64) ([]models.FileRecord, error)
}

// UserStore is the persistence surface for identities.
//
// Kept separate from FileStore so the ownership gate and the login path can
// depend on only what they use.
type UserStore interface {
	CreateUser(ctx context.Context, username, passwordHash string, now time.Time) (*models.User, error)
	GetUserByUsername(ctx context.Context, username string) (*models.User, error)
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
}

var (
	_ FileStore = (*Store)(nil)
	_ UserStore = (*Store)(nil)
)
