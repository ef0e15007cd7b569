package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"hashfile/internal/models"
)

const fileColumns = "id, hash, user_id, size_bytes, uploaded_at"

// FindFileByAddress returns the record for hash regardless of owner, or nil.
func (s *Store) FindFileByAddress(ctx context.Context, hash string) (*models.FileRecord, error) {
	hash = normalizeHash(hash)
	if hash == "" {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE hash = ? LIMIT 1`, hash)
	return scanFileRecord(row)
}

// FindFileByAddressAndOwner returns the record for hash only when userID owns it.
func (s *Store) FindFileByAddressAndOwner(ctx context.Context, hash string, userID int64) (*models.FileRecord, error) {
	hash = normalizeHash(hash)
	if hash == "" || userID <= 0 {
		return nil, nil
	}
	row := s.db.QueryRowContext(ctx, `SELECT `+fileColumns+` FROM files WHERE hash = ? AND user_id = ? LIMIT 1`, hash, userID)
	return scanFileRecord(row)
}

// InsertFile records ownership of hash. The UNIQUE(hash) constraint is the
// dedup guard: a concurrent insert of the same hash fails with
// ErrDuplicateAddress.
func (s *Store) InsertFile(ctx context.Context, hash string, userID, sizeBytes int64) (*models.FileRecord, error) {
	hash = normalizeHash(hash)
	if hash == "" {
		return nil, fmt.Errorf("hash is required")
	}
	if userID <= 0 {
		return nil, fmt.Errorf("user id is required")
	}
	if sizeBytes < 0 {
		return nil, fmt.Errorf("size_bytes must be >= 0")
	}

	uploadedAt := time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		INSERT INTO files (hash, user_id, size_bytes, uploaded_at)
		VALUES (?, ?, ?, ?)
	`, hash, userID, sizeBytes, dbFormatTime(uploadedAt))
	if err != nil {
		if isUniqueConstraint(err, "files.hash") {
			return nil, ErrDuplicateAddress
		}
		return nil, err
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, err
	}

	return &models.FileRecord{
		ID:         id,
		Hash:       hash,
		UserID:     userID,
		SizeBytes:  sizeBytes,
		UploadedAt: uploadedAt,
	}, nil
}

// DeleteFile removes record's row. It returns ErrNotFound when the row is
// already gone.
func (s *Store) DeleteFile(ctx context.Context, record *models.FileRecord) error {
	if record == nil {
		return fmt.Errorf("file record is required")
	}
	result, err := s.db.ExecContext(ctx, "DELETE FROM files WHERE id = ? AND hash = ?", record.ID, record.Hash)
	if err != nil {
		return err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// ListFilesByOwner lists records owned by userID, newest first.
func (s *Store) ListFilesByOwner(ctx context.Context, userID int64) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+fileColumns+` FROM files WHERE user_id = ? ORDER BY uploaded_at DESC, id DESC`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := []models.FileRecord{}
	for rows.Next() {
		record, err := scanFileRecord(rows)
		if err != nil {
			return nil, err
		}
		if record == nil {
			continue
		}
		records = append(records, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

func scanFileRecord(scanner interface {
	Scan(dest ...any) error
}) (*models.FileRecord, error) {
	var record models.FileRecord
	var uploadedAt string
	if err := scanner.Scan(&record.ID, &record.Hash, &record.UserID, &record.SizeBytes, &uploadedAt); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	parsed, err := dbParseTime(uploadedAt)
	if err != nil {
		return nil, err
	}
	record.UploadedAt = parsed
	return &record, nil
}

func normalizeHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
