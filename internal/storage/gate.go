package storage

import (
	"context"
	"fmt"
	"log/slog"

	"hashfile/internal/blobstore"
	"hashfile/internal/models"
	"hashfile/internal/store"
)

// IdentityStore resolves identities by id.
type IdentityStore interface {
	GetUserByID(ctx context.Context, id int64) (*models.User, error)
}

// VerifiedHandle is a file record the caller owns plus its resolved blob path.
type VerifiedHandle struct {
	Record *models.FileRecord
	Path   string
}

// Gate confirms that an address exists, belongs to the caller, and has a blob
// on disk.
type Gate struct {
	users  IdentityStore
	files  store.FileStore
	blobs  BlobTree
	logger *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(users IdentityStore, files store.FileStore, blobs BlobTree, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{users: users, files: files, blobs: blobs, logger: logger}
}

// Verify checks, in order: address shape, identity, ownership, blob on disk.
// A DenialNotFoundOnDisk is returned together with the handle so callers that
// reconcile divergence (delete) can still act on the record.
func (g *Gate) Verify(ctx context.Context, userID int64, address string) (*VerifiedHandle, error) {
	if !blobstore.ValidAddress(address) {
		return nil, g.deny(ctx, DenialNotFound, userID, address, "malformed address")
	}

	user, err := g.users.GetUserByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve identity %d: %w", userID, err)
	}
	if user == nil {
		return nil, g.deny(ctx, DenialNotFound, userID, address, "identity not found")
	}

	record, err := g.files.FindFileByAddressAndOwner(ctx, address, user.ID)
	if err != nil {
		return nil, fmt.Errorf("find file %s: %w", address, err)
	}
	if record == nil {
		existing, err := g.files.FindFileByAddress(ctx, address)
		if err != nil {
			return nil, fmt.Errorf("find file %s: %w", address, err)
		}
		if existing != nil {
			return nil, g.deny(ctx, DenialForbidden, userID, address, "owned by another identity")
		}
		return nil, g.deny(ctx, DenialNotFound, userID, address, "no record")
	}

	path, err := g.blobs.Path(address)
	if err != nil {
		return nil, g.deny(ctx, DenialNotFound, userID, address, "unmappable address")
	}
	handle := &VerifiedHandle{Record: record, Path: path}

	exists, err := g.blobs.Exists(ctx, address)
	if err != nil {
		return nil, &StorageIOError{Op: "stat", Address: address, Err: err}
	}
	if !exists {
		return handle, g.deny(ctx, DenialNotFoundOnDisk, userID, address, "blob missing for record")
	}

	return handle, nil
}

func (g *Gate) deny(ctx context.Context, reason DenialReason, userID int64, address, detail string) *Denial {
	level := slog.LevelInfo
	if reason == DenialNotFoundOnDisk {
		level = slog.LevelError
	}
	g.logger.Log(ctx, level, "access denied", "reason", string(reason), "detail", detail, "user_id", userID, "address", address)
	return &Denial{Reason: reason, UserID: userID, Address: address}
}
