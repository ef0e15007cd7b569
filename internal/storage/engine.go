// Package storage implements the content-addressed upload, download and
// delete lifecycle on top of the blob tree and the metadata store.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"hashfile/internal/blobstore"
	"hashfile/internal/filetype"
	"hashfile/internal/models"
	"hashfile/internal/store"
)

// BlobTree is the on-disk blob layout used by the engine.
type BlobTree interface {
	Path(address string) (string, error)
	Exists(ctx context.Context, address string) (bool, error)
	Write(ctx context.Context, address string, data []byte) error
	Open(ctx context.Context, address string) (io.ReadCloser, error)
	Remove(ctx context.Context, address string) error
}

var _ BlobTree = (*blobstore.LocalCAS)(nil)

// UploadResult is the outcome of a successful upload. Duplicate is set when
// the bytes were already stored and no new record was created.
type UploadResult struct {
	Address   string             `json:"hash"`
	Duplicate bool               `json:"duplicate,omitempty"`
	Record    *models.FileRecord `json:"-"`
}

// Engine orchestrates uploads, downloads and deletes.
type Engine struct {
	filter *filetype.Filter
	files  store.FileStore
	blobs  BlobTree
	gate   *Gate
	logger *slog.Logger
}

// NewEngine wires an Engine and its ownership gate.
func NewEngine(filter *filetype.Filter, users IdentityStore, files store.FileStore, blobs BlobTree, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		filter: filter,
		files:  files,
		blobs:  blobs,
		gate:   NewGate(users, files, blobs, logger),
		logger: logger,
	}
}

// Upload stores data under its content address and records userID as owner.
// Uploading bytes that are already stored succeeds with Duplicate set and
// never creates a second record.
func (e *Engine) Upload(ctx context.Context, userID int64, filename string, data []byte) (UploadResult, error) {
	var zero UploadResult
	if !e.filter.IsAllowed(filename) {
		return zero, ErrUnsupportedType
	}
	if err := ctx.Err(); err != nil {
		return zero, err
	}

	address := blobstore.Derive(data)
	size := int64(len(data))

	exists, err := e.blobs.Exists(ctx, address)
	if err != nil {
		return zero, &StorageIOError{Op: "stat", Address: address, Err: err}
	}
	if exists {
		record, err := e.files.FindFileByAddress(ctx, address)
		if err != nil {
			return zero, fmt.Errorf("find file %s: %w", address, err)
		}
		if record != nil {
			e.logger.Info("upload deduplicated", "user_id", userID, "address", address, "owner_id", record.UserID)
			return UploadResult{Address: address, Duplicate: true}, nil
		}
		// Blob without a record, left by an upload that failed after the write.
		// Rewrite it first: a concurrent delete may have removed it since the
		// existence check.
		e.logger.Warn("adopting orphaned blob", "user_id", userID, "address", address)
	}

	if err := e.blobs.Write(ctx, address, data); err != nil {
		return zero, &StorageIOError{Op: "write", Address: address, Err: err}
	}
	return e.recordUpload(ctx, userID, address, size)
}

func (e *Engine) recordUpload(ctx context.Context, userID int64, address string, size int64) (UploadResult, error) {
	record, err := e.files.InsertFile(ctx, address, userID, size)
	if errors.Is(err, store.ErrDuplicateAddress) {
		// Another uploader won the metadata race with identical bytes.
		e.logger.Info("upload raced to existing record", "user_id", userID, "address", address)
		return UploadResult{Address: address, Duplicate: true}, nil
	}
	if err != nil {
		return UploadResult{}, fmt.Errorf("record file %s: %w", address, err)
	}
	e.logger.Info("file stored", "user_id", userID, "address", address, "size_bytes", size)
	return UploadResult{Address: address, Record: record}, nil
}

// Download verifies ownership and opens the blob. The caller must close the
// returned reader.
func (e *Engine) Download(ctx context.Context, userID int64, address string) (*models.FileRecord, io.ReadCloser, error) {
	handle, err := e.gate.Verify(ctx, userID, address)
	if err != nil {
		return nil, nil, err
	}

	rc, err := e.blobs.Open(ctx, address)
	if errors.Is(err, os.ErrNotExist) {
		// Deleted between verification and open.
		return nil, nil, e.gate.deny(ctx, DenialNotFoundOnDisk, userID, address, "blob vanished before open")
	}
	if err != nil {
		return nil, nil, &StorageIOError{Op: "open", Address: address, Err: err}
	}
	return handle.Record, rc, nil
}

// Delete removes the blob and then its record. The order is fixed: the record
// is only removed once the blob is gone, so a failed blob removal leaves the
// record visible for a retry.
func (e *Engine) Delete(ctx context.Context, userID int64, address string) error {
	handle, err := e.gate.Verify(ctx, userID, address)
	if err != nil {
		denial, ok := AsDenial(err)
		if !ok || denial.Reason != DenialNotFoundOnDisk || handle == nil {
			return err
		}
	}

	if err := e.blobs.Remove(ctx, address); err != nil && !errors.Is(err, os.ErrNotExist) {
		e.logger.Error("delete blob failed", "user_id", userID, "address", address, "error", err)
		return &PartialFailureError{Address: address, Err: err}
	}

	if err := e.files.DeleteFile(ctx, handle.Record); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return e.gate.deny(ctx, DenialNotFound, userID, address, "record removed concurrently")
		}
		return fmt.Errorf("delete record %s: %w", address, err)
	}
	e.logger.Info("file deleted", "user_id", userID, "address", address)
	return nil
}

// List returns the caller's records, newest first.
func (e *Engine) List(ctx context.Context, userID int64) ([]models.FileRecord, error) {
	return e.files.ListFilesByOwner(ctx, userID)
}
