package storage

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"hashfile/internal/blobstore"
	"hashfile/internal/filetype"
	"hashfile/internal/models"
	"hashfile/internal/store"
)

const helloAddress = "2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824"

type engineFixture struct {
	engine *Engine
	store  *store.Store
	blobs  *blobstore.LocalCAS
	alice  *models.User
	bob    *models.User
}

// faultyBlobs wraps a real tree and injects failures on selected operations.
type faultyBlobs struct {
	*blobstore.LocalCAS
	writeErr  error
	removeErr error
}

func (f *faultyBlobs) Write(ctx context.Context, address string, data []byte) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.LocalCAS.Write(ctx, address, data)
}

// vanishingBlobs reports a blob as present and then removes it, as a delete
// racing the existence check would.
type vanishingBlobs struct {
	*blobstore.LocalCAS
}

func (v *vanishingBlobs) Exists(ctx context.Context, address string) (bool, error) {
	exists, err := v.LocalCAS.Exists(ctx, address)
	if err != nil || !exists {
		return exists, err
	}
	if err := v.LocalCAS.Remove(ctx, address); err != nil {
		return false, err
	}
	return true, nil
}

func (f *faultyBlobs) Remove(ctx context.Context, address string) error {
	if f.removeErr != nil {
		return f.removeErr
	}
	return f.LocalCAS.Remove(ctx, address)
}

func newFixture(t *testing.T, wrap func(*blobstore.LocalCAS) BlobTree) *engineFixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(filepath.Join(dir, "test.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = st.Close() })

	cas, err := blobstore.NewLocalCAS(filepath.Join(dir, "store"))
	if err != nil {
		t.Fatalf("new local cas: %v", err)
	}
	var tree BlobTree = cas
	if wrap != nil {
		tree = wrap(cas)
	}

	ctx := context.Background()
	alice, err := st.CreateUser(ctx, "alice", "hash", time.Now())
	if err != nil {
		t.Fatalf("create alice: %v", err)
	}
	bob, err := st.CreateUser(ctx, "bob", "hash", time.Now())
	if err != nil {
		t.Fatalf("create bob: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return &engineFixture{
		engine: NewEngine(filetype.NewFilter(nil), st, st, tree, logger),
		store:  st,
		blobs:  cas,
		alice:  alice,
		bob:    bob,
	}
}

func requireDenial(t *testing.T, err error, want DenialReason) *Denial {
	t.Helper()
	denial, ok := AsDenial(err)
	if !ok {
		t.Fatalf("expected denial %s, got %v", want, err)
	}
	if denial.Reason != want {
		t.Fatalf("expected denial reason %s, got %s", want, denial.Reason)
	}
	return denial
}

func TestEngineHelloLifecycle(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	result, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result.Address != helloAddress || result.Duplicate {
		t.Fatalf("unexpected upload result: %#v", result)
	}
	if _, err := os.Stat(filepath.Join(fx.blobs.Root(), "2c", helloAddress)); err != nil {
		t.Fatalf("expected blob on disk: %v", err)
	}

	record, rc, err := fx.engine.Download(ctx, fx.alice.ID, helloAddress)
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	data, err := io.ReadAll(rc)
	_ = rc.Close()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "hello" {
		t.Fatalf("expected hello, got %q", string(data))
	}
	if record.UserID != fx.alice.ID || record.SizeBytes != 5 {
		t.Fatalf("unexpected record: %#v", record)
	}

	_, _, err = fx.engine.Download(ctx, fx.bob.ID, helloAddress)
	requireDenial(t, err, DenialForbidden)

	if err := fx.engine.Delete(ctx, fx.alice.ID, helloAddress); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, _, err = fx.engine.Download(ctx, fx.alice.ID, helloAddress)
	requireDenial(t, err, DenialNotFound)
}

func TestUploadRejectsUnsupportedType(t *testing.T) {
	fx := newFixture(t, nil)
	for _, name := range []string{"a.exe", "a", "a.", ""} {
		_, err := fx.engine.Upload(context.Background(), fx.alice.ID, name, []byte("x"))
		if !errors.Is(err, ErrUnsupportedType) {
			t.Fatalf("Upload(%q): expected ErrUnsupportedType, got %v", name, err)
		}
	}
	entries, err := os.ReadDir(fx.blobs.Root())
	if err != nil {
		t.Fatalf("read root: %v", err)
	}
	if len(entries) != 0 {
		t.Fatalf("expected nothing written, found %d entries", len(entries))
	}
}

func TestUploadSameBytesTwice(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	first, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("same"))
	if err != nil {
		t.Fatalf("first upload: %v", err)
	}
	again, err := fx.engine.Upload(ctx, fx.alice.ID, "b.pdf", []byte("same"))
	if err != nil {
		t.Fatalf("second upload: %v", err)
	}
	other, err := fx.engine.Upload(ctx, fx.bob.ID, "c.png", []byte("same"))
	if err != nil {
		t.Fatalf("other-user upload: %v", err)
	}

	if again.Address != first.Address || other.Address != first.Address {
		t.Fatalf("expected identical addresses, got %s %s %s", first.Address, again.Address, other.Address)
	}
	if !again.Duplicate || !other.Duplicate {
		t.Fatalf("expected duplicate flags, got %#v %#v", again, other)
	}

	aliceFiles, err := fx.store.ListFilesByOwner(ctx, fx.alice.ID)
	if err != nil {
		t.Fatalf("list alice: %v", err)
	}
	bobFiles, err := fx.store.ListFilesByOwner(ctx, fx.bob.ID)
	if err != nil {
		t.Fatalf("list bob: %v", err)
	}
	if len(aliceFiles) != 1 || len(bobFiles) != 0 {
		t.Fatalf("expected single owner record, got alice=%d bob=%d", len(aliceFiles), len(bobFiles))
	}

	// A duplicate uploader does not gain access.
	_, _, err = fx.engine.Download(ctx, fx.bob.ID, first.Address)
	requireDenial(t, err, DenialForbidden)
}

func TestUploadConcurrentSameBytes(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()
	payload := []byte("concurrent payload")

	const workers = 8
	var wg sync.WaitGroup
	results := make([]UploadResult, workers)
	errs := make([]error, workers)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = fx.engine.Upload(ctx, fx.alice.ID, "race.txt", payload)
		}(i)
	}
	wg.Wait()

	created := 0
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			t.Fatalf("worker %d: %v", i, errs[i])
		}
		if results[i].Address != blobstore.Derive(payload) {
			t.Fatalf("worker %d: unexpected address %s", i, results[i].Address)
		}
		if !results[i].Duplicate {
			created++
		}
	}
	if created != 1 {
		t.Fatalf("expected exactly one creating upload, got %d", created)
	}

	records, err := fx.store.ListFilesByOwner(ctx, fx.alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
}

func TestUploadAdoptsOrphanedBlob(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()
	address := blobstore.Derive([]byte("orphan"))
	if err := fx.blobs.Write(ctx, address, []byte("orphan")); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	result, err := fx.engine.Upload(ctx, fx.bob.ID, "orphan.txt", []byte("orphan"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result.Duplicate || result.Record == nil || result.Record.UserID != fx.bob.ID {
		t.Fatalf("expected orphan adopted by bob, got %#v", result)
	}
}

func TestUploadAdoptionRewritesVanishedBlob(t *testing.T) {
	fx := newFixture(t, func(cas *blobstore.LocalCAS) BlobTree { return &vanishingBlobs{LocalCAS: cas} })
	ctx := context.Background()

	if err := fx.blobs.Write(ctx, helloAddress, []byte("hello")); err != nil {
		t.Fatalf("seed orphan: %v", err)
	}

	result, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("hello"))
	if err != nil {
		t.Fatalf("upload: %v", err)
	}
	if result.Duplicate || result.Address != helloAddress {
		t.Fatalf("unexpected result %#v", result)
	}

	record, err := fx.store.FindFileByAddress(ctx, helloAddress)
	if err != nil {
		t.Fatalf("find file: %v", err)
	}
	if record == nil {
		t.Fatal("expected record for adopted upload")
	}
	exists, err := fx.blobs.Exists(ctx, helloAddress)
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if !exists {
		t.Fatal("expected blob on disk whenever its record exists")
	}
}

func TestUploadWriteFailureCreatesNoRecord(t *testing.T) {
	diskFull := errors.New("no space left on device")
	fx := newFixture(t, func(cas *blobstore.LocalCAS) BlobTree {
		return &faultyBlobs{LocalCAS: cas, writeErr: diskFull}
	})
	ctx := context.Background()

	_, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("hello"))
	var ioErr *StorageIOError
	if !errors.As(err, &ioErr) {
		t.Fatalf("expected StorageIOError, got %v", err)
	}
	if !errors.Is(err, diskFull) || ioErr.Op != "write" {
		t.Fatalf("unexpected io error: %#v", ioErr)
	}

	record, err := fx.store.FindFileByAddress(ctx, helloAddress)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record != nil {
		t.Fatalf("expected no record after failed write, got %#v", record)
	}
}

func TestGateVerify(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()
	gate := NewGate(fx.store, fx.store, fx.blobs, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if _, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	t.Run("malformed address", func(t *testing.T) {
		for _, address := range []string{"", "a", "2c", "../../etc/passwd", helloAddress[:63]} {
			_, err := gate.Verify(ctx, fx.alice.ID, address)
			requireDenial(t, err, DenialNotFound)
		}
	})

	t.Run("unknown identity", func(t *testing.T) {
		_, err := gate.Verify(ctx, 9999, helloAddress)
		requireDenial(t, err, DenialNotFound)
	})

	t.Run("other owner", func(t *testing.T) {
		_, err := gate.Verify(ctx, fx.bob.ID, helloAddress)
		requireDenial(t, err, DenialForbidden)
	})

	t.Run("unknown address", func(t *testing.T) {
		_, err := gate.Verify(ctx, fx.alice.ID, blobstore.Derive([]byte("never uploaded")))
		requireDenial(t, err, DenialNotFound)
	})

	t.Run("owner", func(t *testing.T) {
		handle, err := gate.Verify(ctx, fx.alice.ID, helloAddress)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if handle.Path != filepath.Join(fx.blobs.Root(), "2c", helloAddress) {
			t.Fatalf("unexpected path: %s", handle.Path)
		}
		if handle.Record.Hash != helloAddress {
			t.Fatalf("unexpected record: %#v", handle.Record)
		}
	})

	t.Run("blob missing on disk", func(t *testing.T) {
		if err := fx.blobs.Remove(ctx, helloAddress); err != nil {
			t.Fatalf("remove blob: %v", err)
		}
		handle, err := gate.Verify(ctx, fx.alice.ID, helloAddress)
		requireDenial(t, err, DenialNotFoundOnDisk)
		if handle == nil || handle.Record == nil {
			t.Fatal("expected handle alongside on-disk denial")
		}
	})
}

func TestDenialsRenderIdentically(t *testing.T) {
	reasons := []DenialReason{DenialNotFound, DenialForbidden, DenialNotFoundOnDisk}
	want := (&Denial{Reason: DenialNotFound}).Error()
	for _, reason := range reasons {
		if got := (&Denial{Reason: reason, UserID: 1, Address: helloAddress}).Error(); got != want {
			t.Fatalf("denial %s renders %q, want %q", reason, got, want)
		}
	}
}

func TestDeleteWithBlobAlreadyRemoved(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	if _, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	if err := os.Remove(filepath.Join(fx.blobs.Root(), "2c", helloAddress)); err != nil {
		t.Fatalf("remove blob externally: %v", err)
	}

	if err := fx.engine.Delete(ctx, fx.alice.ID, helloAddress); err != nil {
		t.Fatalf("delete: %v", err)
	}
	record, err := fx.store.FindFileByAddress(ctx, helloAddress)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record != nil {
		t.Fatalf("expected record removed, got %#v", record)
	}
}

func TestDeleteBlobFailureKeepsRecord(t *testing.T) {
	permission := errors.New("permission denied")
	fx := newFixture(t, func(cas *blobstore.LocalCAS) BlobTree {
		return &faultyBlobs{LocalCAS: cas, removeErr: permission}
	})
	ctx := context.Background()

	if _, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("upload: %v", err)
	}

	err := fx.engine.Delete(ctx, fx.alice.ID, helloAddress)
	var partial *PartialFailureError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialFailureError, got %v", err)
	}
	if !errors.Is(err, permission) {
		t.Fatalf("expected wrapped cause, got %v", err)
	}

	record, err := fx.store.FindFileByAddress(ctx, helloAddress)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if record == nil {
		t.Fatal("expected record to survive failed blob removal")
	}
}

func TestDeleteByNonOwnerIsDenied(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	if _, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("hello")); err != nil {
		t.Fatalf("upload: %v", err)
	}
	requireDenial(t, fx.engine.Delete(ctx, fx.bob.ID, helloAddress), DenialForbidden)

	if _, err := os.Stat(filepath.Join(fx.blobs.Root(), "2c", helloAddress)); err != nil {
		t.Fatalf("expected blob to survive denied delete: %v", err)
	}
}

func TestListIsOwnerScoped(t *testing.T) {
	fx := newFixture(t, nil)
	ctx := context.Background()

	if _, err := fx.engine.Upload(ctx, fx.alice.ID, "a.txt", []byte("one")); err != nil {
		t.Fatalf("upload one: %v", err)
	}
	if _, err := fx.engine.Upload(ctx, fx.bob.ID, "b.txt", []byte("two")); err != nil {
		t.Fatalf("upload two: %v", err)
	}

	records, err := fx.engine.List(ctx, fx.alice.ID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(records) != 1 || records[0].Hash != blobstore.Derive([]byte("one")) {
		t.Fatalf("unexpected records: %#v", records)
	}
}
