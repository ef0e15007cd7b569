package storage

import (
	"errors"
	"fmt"
)

// ErrUnsupportedType is returned when a filename's extension is not allowed.
var ErrUnsupportedType = errors.New("file type not allowed")

// DenialReason is the internal cause of a Denial. It is logged but never
// surfaced to callers.
type DenialReason string

const (
	DenialNotFound       DenialReason = "not_found"
	DenialForbidden      DenialReason = "forbidden"
	DenialNotFoundOnDisk DenialReason = "not_found_on_disk"
)

// Denial reports that a caller may not access an address. Every reason
// renders the same message so other users' files cannot be probed.
type Denial struct {
	Reason  DenialReason
	UserID  int64
	Address string
}

func (d *Denial) Error() string {
	return "file not found or access denied"
}

// AsDenial returns the Denial wrapped in err, if any.
func AsDenial(err error) (*Denial, bool) {
	var denial *Denial
	if errors.As(err, &denial) {
		return denial, true
	}
	return nil, false
}

// StorageIOError wraps a filesystem failure while touching a blob.
type StorageIOError struct {
	Op      string
	Address string
	Err     error
}

func (e *StorageIOError) Error() string {
	return fmt.Sprintf("blob %s %s: %v", e.Op, e.Address, e.Err)
}

func (e *StorageIOError) Unwrap() error {
	return e.Err
}

// PartialFailureError is returned by Delete when the blob could not be
// removed. The metadata record is left in place so the delete can be retried.
type PartialFailureError struct {
	Address string
	Err     error
}

func (e *PartialFailureError) Error() string {
	return fmt.Sprintf("remove blob %s: record kept: %v", e.Address, e.Err)
}

func (e *PartialFailureError) Unwrap() error {
	return e.Err
}
