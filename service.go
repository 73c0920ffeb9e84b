package nosdav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"
)

// UploadRepo records accepted uploads.
// Implementations must be safe for concurrent use.
type UploadRepo interface {
	// Get returns the record for path, or ErrNotFound.
	Get(ctx context.Context, path string) (Upload, error)

	// Upsert creates or replaces the record for entry.Path.
	// The bool is true when a new record was created.
	Upsert(ctx context.Context, entry UploadEntry) (Upload, bool, error)
}

// FileStorage defines the interface for physical file storage operations.
// Paths are slash separated and relative to the storage root.
//
// All methods accept a context for cancellation and timeout control.
type FileStorage interface {
	// Get opens a file for reading.
	//
	// Returns ErrNotFound if the file does not exist or is a directory, and
	// ErrReadFailure for any other open error. The caller closes the reader.
	Get(ctx context.Context, path string) (io.ReadSeekCloser, Object, error)

	// Stage writes content for path without making it visible, creating
	// parent directories as needed. The caller must Commit or Discard the
	// returned write. A failed Stage leaves nothing behind.
	//
	// Returns errors wrapping ErrPathEscape, ErrDirectoryCreate or ErrStreamWrite.
	Stage(ctx context.Context, path string, content io.Reader) (PendingWrite, error)

	// List walks the whole storage tree and returns every regular file.
	List(ctx context.Context) ([]ObjectEntry, error)
}

// PendingWrite is fully written content waiting to replace its target.
type PendingWrite interface {
	Result() SaveResult

	// Commit replaces the target atomically. Errors wrap ErrStreamWrite.
	Commit() error

	// Discard drops the content; the target is left as it was.
	Discard()
}

// ServiceConfig holds the immutable configuration of a Service.
type ServiceConfig struct {
	Mode           StorageMode
	Owners         OwnerSet
	RootDir        string
	CleanupTimeout time.Duration // Timeout for restoring a ledger record after a failed commit (default: 30s)
}

// Service applies the namespace policy to writes and serves reads.
type Service struct {
	storage        FileStorage
	repo           UploadRepo
	mode           StorageMode
	owners         OwnerSet
	rootDir        string
	cleanupTimeout time.Duration
}

// NewService creates a Service. repo may be nil, in which case no upload
// ledger is kept and reads carry no ETag.
func NewService(storage FileStorage, repo UploadRepo, cfg ServiceConfig) (*Service, error) {
	if !cfg.Mode.IsValid() {
		return nil, fmt.Errorf("new service: invalid mode: %s", cfg.Mode)
	}
	if cfg.RootDir == "" {
		return nil, fmt.Errorf("new service: %w: root directory cannot be empty", ErrInvalidInput)
	}
	if cfg.Mode == ModeSingleUser && cfg.Owners.Len() == 0 {
		slog.Warn("singleuser mode with no owners configured, all writes will be rejected")
	}
	cleanupTimeout := cfg.CleanupTimeout
	if cleanupTimeout <= 0 {
		cleanupTimeout = 30 * time.Second
	}
	return &Service{
		storage:        storage,
		repo:           repo,
		mode:           cfg.Mode,
		owners:         cfg.Owners,
		rootDir:        cfg.RootDir,
		cleanupTimeout: cleanupTimeout,
	}, nil
}

// Mode returns the storage mode the service was created with.
func (s *Service) Mode() StorageMode {
	return s.mode
}

// Put writes content to requestPath on behalf of a verified identity.
//
// The write is authorized with AuthorizeWrite first; policy errors wrap
// ErrForbidden. The content is staged, recorded in the upload ledger and only
// then committed over the target, so a ledger failure discards the staged
// content and leaves any previous file intact. Storage errors wrap
// ErrPathEscape, ErrDirectoryCreate or ErrStreamWrite; a ledger failure wraps
// ErrInternal.
func (s *Service) Put(ctx context.Context, identity Identity, requestPath string, content io.Reader) (Upload, error) {
	if err := ctx.Err(); err != nil {
		return Upload{}, fmt.Errorf("put object: %w", err)
	}

	target, err := AuthorizeWrite(s.mode, identity, s.owners, requestPath, s.rootDir)
	if err != nil {
		return Upload{}, fmt.Errorf("put object: %w", err)
	}

	rel, err := RelativeTo(s.rootDir, target)
	if err != nil {
		return Upload{}, fmt.Errorf("put object: %w", err)
	}

	pending, err := s.storage.Stage(ctx, rel, content)
	if err != nil {
		return Upload{}, fmt.Errorf("put object %s: %w", rel, err)
	}
	saveResult := pending.Result()

	entry := UploadEntry{
		Path:        rel,
		Owner:       identity,
		ContentType: ContentTypeFor(rel),
		ETag:        saveResult.Etag,
		SizeBytes:   saveResult.BytesWritten,
	}

	if s.repo == nil {
		if commitErr := pending.Commit(); commitErr != nil {
			return Upload{}, fmt.Errorf("put object %s: %w", rel, commitErr)
		}
		now := time.Now().UTC()
		return Upload{
			Path:        entry.Path,
			Owner:       entry.Owner,
			ContentType: entry.ContentType,
			ETag:        entry.ETag,
			SizeBytes:   entry.SizeBytes,
			CreatedAt:   now,
			UpdatedAt:   now,
		}, nil
	}

	previous, prevErr := s.repo.Get(ctx, rel)
	switch {
	case prevErr == nil:
	case errors.Is(prevErr, ErrNotFound):
		previous = Upload{}
	default:
		pending.Discard()
		return Upload{}, fmt.Errorf("put object %s: %w: read upload record: %w", rel, ErrInternal, prevErr)
	}

	upload, _, upsertErr := s.repo.Upsert(ctx, entry)
	if upsertErr != nil {
		pending.Discard()
		return Upload{}, fmt.Errorf("put object %s: %w: record upload: %w", rel, ErrInternal, upsertErr)
	}

	if commitErr := pending.Commit(); commitErr != nil {
		s.restoreRecord(rel, previous)
		return Upload{}, fmt.Errorf("put object %s: %w", rel, commitErr)
	}

	return upload, nil
}

// restoreRecord puts back the ledger record that described the file before a
// failed commit. Without a previous record the new one is left in place and
// points at content that was never committed; Get only trusts a ledger ETag
// whose size matches the file, and reindex repairs the record.
func (s *Service) restoreRecord(rel string, previous Upload) {
	if previous.Path == "" {
		slog.Warn("upload record left without committed content", "path", rel)
		return
	}

	// The request context may already be cancelled.
	ctx, cancel := context.WithTimeout(context.Background(), s.cleanupTimeout)
	defer cancel()

	_, _, err := s.repo.Upsert(ctx, UploadEntry{
		Path:        previous.Path,
		Owner:       previous.Owner,
		ContentType: previous.ContentType,
		ETag:        previous.ETag,
		SizeBytes:   previous.SizeBytes,
	})
	if err != nil {
		slog.Error("failed to restore upload record", "path", rel, "err", err)
	}
}

// Get opens the file at requestPath. Reads are public.
func (s *Service) Get(ctx context.Context, requestPath string) (Object, io.ReadSeekCloser, error) {
	if err := ctx.Err(); err != nil {
		return Object{}, nil, fmt.Errorf("get object: %w", err)
	}

	rel := strings.TrimPrefix(requestPath, "/")
	if rel == "" {
		return Object{}, nil, fmt.Errorf("get object: %w", ErrNotFound)
	}

	f, obj, err := s.storage.Get(ctx, rel)
	if err != nil {
		return Object{}, nil, fmt.Errorf("get object %s: %w", rel, err)
	}

	if s.repo != nil {
		upload, repoErr := s.repo.Get(ctx, obj.Path)
		switch {
		case repoErr == nil && upload.SizeBytes == obj.Size:
			obj.ETag = upload.ETag
		case repoErr != nil && !errors.Is(repoErr, ErrNotFound):
			slog.Warn("upload ledger lookup failed", "path", obj.Path, "err", repoErr)
		}
	}

	return obj, f, nil
}

// Populate walks storage and records every file in the upload ledger.
// It is used to rebuild the ledger after it was lost or created late.
//
// In multiuser mode the owner is the first path segment when it is a valid
// identity; files outside any identity directory are skipped. In singleuser
// mode the owner is recorded only when exactly one owner is configured.
//
// Returns the number of records written. Not atomic: a failure partway
// through leaves earlier records in place.
func (s *Service) Populate(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("populate: %w", err)
	}

	if s.repo == nil {
		return 0, fmt.Errorf("populate: %w: upload ledger is disabled", ErrInvalidInput)
	}

	files, listErr := s.storage.List(ctx)
	if listErr != nil {
		return 0, fmt.Errorf("populate: %w", listErr)
	}

	count := 0
	for _, file := range files {
		owner, ok := s.ownerOf(file.Path)
		if !ok {
			slog.Warn("skipping file outside identity namespace", "path", file.Path)
			continue
		}

		entry := UploadEntry{
			Path:        file.Path,
			Owner:       owner,
			ContentType: file.ContentType,
			ETag:        file.ETag,
			SizeBytes:   file.Size,
		}

		if _, _, upsertErr := s.repo.Upsert(ctx, entry); upsertErr != nil {
			return count, fmt.Errorf("populate '%s': %w", file.Path, upsertErr)
		}
		count++
	}

	return count, nil
}

func (s *Service) ownerOf(p string) (Identity, bool) {
	if s.mode == ModeMultiUser {
		segs := segments(p)
		if len(segs) < 2 || !IsValidIdentity(segs[0]) {
			return "", false
		}
		return Identity(segs[0]), true
	}

	if s.owners.Len() == 1 {
		return s.owners.Members()[0], true
	}
	return "", true
}
