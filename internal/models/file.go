package models

import "time"

// FileRecord is the metadata row for one stored blob. Exactly one record
// exists per content address.
type FileRecord struct {
	ID         int64     `json:"id"`
	Hash       string    `json:"hash"`
	UserID     int64     `json:"user_id"`
	SizeBytes  int64     `json:"size_bytes"`
	UploadedAt time.Time `json:"uploaded_at"`
}
