package blobstore

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/renameio"
)

const (
	dirPerm  = 0o755
	blobPerm = 0o644
)

// LocalCAS stores blob bytes in a local content-addressed tree sharded by
// address prefix.
type LocalCAS struct {
	root string
}

// NewLocalCAS creates a local CAS rooted at root.
func NewLocalCAS(root string) (*LocalCAS, error) {
	root = strings.TrimSpace(root)
	if root == "" {
		return nil, fmt.Errorf("local cas root is required")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(abs, dirPerm); err != nil {
		return nil, err
	}
	return &LocalCAS{root: abs}, nil
}

// Root returns the absolute storage root.
func (c *LocalCAS) Root() string {
	if c == nil {
		return ""
	}
	return c.root
}

// Path returns the on-disk location for address.
func (c *LocalCAS) Path(address string) (string, error) {
	if c == nil {
		return "", fmt.Errorf("blob store is not configured")
	}
	return Locate(c.root, address)
}

// Exists reports whether a blob is present at the path derived from address.
func (c *LocalCAS) Exists(ctx context.Context, address string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	path, err := c.Path(address)
	if err != nil {
		return false, err
	}
	return pathExists(path)
}

// Write stores data at the path derived from address. Bytes land in a
// temporary file in the destination directory and are renamed into place, so
// a partial blob is never visible at the canonical path.
func (c *LocalCAS) Write(ctx context.Context, address string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	dst, err := c.Path(address)
	if err != nil {
		return err
	}
	dir := filepath.Dir(dst)
	if err := os.MkdirAll(dir, dirPerm); err != nil {
		return err
	}

	pending, err := renameio.TempFile(dir, dst)
	if err != nil {
		return err
	}
	defer pending.Cleanup()

	if _, err := pending.Write(data); err != nil {
		return err
	}
	if err := pending.Chmod(blobPerm); err != nil {
		return err
	}
	return pending.CloseAtomicallyReplace()
}

// Open returns a reader for the blob at address. A missing blob yields an
// error matching os.ErrNotExist.
func (c *LocalCAS) Open(ctx context.Context, address string) (io.ReadCloser, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := c.Path(address)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Remove deletes the blob at address. A missing blob yields an error matching
// os.ErrNotExist so callers can decide whether absence matters.
func (c *LocalCAS) Remove(ctx context.Context, address string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := c.Path(address)
	if err != nil {
		return err
	}
	return os.Remove(path)
}

func pathExists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, err
}
