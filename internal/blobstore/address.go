package blobstore

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io"
	"path/filepath"
)

const (
	// AddressLength is the hex length of a SHA-256 content address.
	AddressLength = sha256.Size * 2
	// ShardPrefixLength is the number of leading address characters used as the
	// blob subdirectory name.
	ShardPrefixLength = 2
)

// ErrInvalidAddress is returned when an address cannot be mapped to a path.
var ErrInvalidAddress = errors.New("invalid content address")

// Derive returns the lowercase hex SHA-256 address of data.
func Derive(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// DeriveReader hashes r incrementally and returns the same address Derive
// would return for the full byte content, plus the number of bytes read.
func DeriveReader(r io.Reader) (string, int64, error) {
	h := sha256.New()
	n, err := io.Copy(h, r)
	if err != nil {
		return "", n, err
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// ValidAddress reports whether address is a full-length lowercase hex digest.
func ValidAddress(address string) bool {
	return len(address) == AddressLength && isLowerHex(address)
}

// Locate maps address to <root>/<first two chars>/<address>. It does not
// touch the filesystem.
func Locate(root, address string) (string, error) {
	if len(address) < ShardPrefixLength || !isLowerHex(address) {
		return "", ErrInvalidAddress
	}
	return filepath.Join(root, address[:ShardPrefixLength], address), nil
}

func isLowerHex(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return false
		}
	}
	return true
}
