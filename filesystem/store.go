// Package filesystem provides the file system storage backend for nosdav.
// All access goes through an os.Root, so no path (including one reached
// through a symlink) can leave the storage directory. Writes are staged in a
// temp file and committed by rename, and produce SHA256-based etags.
package filesystem

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"strings"

	"github.com/google/uuid"
	"github.com/nosdav/nosdav"
)

// Store keeps uploaded files under an os.Root.
type Store struct {
	root *os.Root
}

// NewStore serves files from root. The caller keeps ownership of root.
func NewStore(root *os.Root) *Store {
	return &Store{root: root}
}

// Get opens a file for reading.
// Returns nosdav.ErrNotFound if the file does not exist or is a directory, and
// nosdav.ErrReadFailure for other errors. The underlying cause is logged.
func (s *Store) Get(ctx context.Context, p string) (io.ReadSeekCloser, nosdav.Object, error) {
	if err := ctx.Err(); err != nil {
		return nil, nosdav.Object{}, err
	}

	f, err := s.root.Open(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nosdav.Object{}, nosdav.ErrNotFound
		}
		slog.Warn("failed to open file", "path", p, "err", err)
		return nil, nosdav.Object{}, fmt.Errorf("%w: %w", nosdav.ErrReadFailure, err)
	}

	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		slog.Warn("failed to stat file", "path", p, "err", err)
		return nil, nosdav.Object{}, fmt.Errorf("%w: %w", nosdav.ErrReadFailure, err)
	}

	if info.IsDir() {
		_ = f.Close()
		return nil, nosdav.Object{}, nosdav.ErrNotFound
	}

	obj := nosdav.Object{
		Path:        path.Clean(p),
		ContentType: nosdav.ContentTypeFor(p),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}

	return f, obj, nil
}

// readerFunc adapts a function to io.Reader.
type readerFunc func([]byte) (int, error)

func (f readerFunc) Read(p []byte) (int, error) { return f(p) }

// withContext stops reads from r once ctx is done.
func withContext(ctx context.Context, r io.Reader) io.Reader {
	return readerFunc(func(p []byte) (int, error) {
		if err := ctx.Err(); err != nil {
			return 0, err
		}
		return r.Read(p)
	})
}

// Stage writes content to a temp file in the directory of p and returns a
// pending write. Nothing is visible at p until Commit, so a staged write that
// is discarded leaves any existing file untouched.
//
// A directory component of p that is a symlink is refused with an error
// wrapping nosdav.ErrPathEscape, whether or not it points inside the root.
// Intermediate directories are created next; a failure there wraps
// nosdav.ErrDirectoryCreate. Copy and sync failures wrap nosdav.ErrStreamWrite
// and remove the temp file. The copy respects context cancellation.
func (s *Store) Stage(ctx context.Context, p string, content io.Reader) (nosdav.PendingWrite, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	destDir := path.Dir(p)
	if err := s.checkNoSymlinks(destDir); err != nil {
		return nil, err
	}
	if destDir != "." {
		if err := s.root.MkdirAll(destDir, 0o755); err != nil {
			return nil, fmt.Errorf("%w: %w", nosdav.ErrDirectoryCreate, err)
		}
	}

	pw := &pendingWrite{root: s.root, tmp: path.Join(destDir, tmpFileName()), dest: p}
	f, err := s.root.Create(pw.tmp)
	if err != nil {
		return nil, fmt.Errorf("%w: create temp file: %w", nosdav.ErrStreamWrite, err)
	}

	result, err := fill(ctx, f, content)
	if closeErr := f.Close(); err == nil && closeErr != nil {
		err = fmt.Errorf("close temp file: %w", closeErr)
	}
	if err != nil {
		pw.Discard()
		return nil, fmt.Errorf("%w: %w", nosdav.ErrStreamWrite, err)
	}

	pw.result = result
	return pw, nil
}

// fill copies content into f, hashing as it goes, and syncs f.
func fill(ctx context.Context, f *os.File, content io.Reader) (nosdav.SaveResult, error) {
	h := sha256.New()
	n, err := io.Copy(io.MultiWriter(h, f), withContext(ctx, content))
	if err != nil {
		return nosdav.SaveResult{}, fmt.Errorf("copy body: %w", err)
	}
	if err := f.Sync(); err != nil {
		return nosdav.SaveResult{}, fmt.Errorf("sync temp file: %w", err)
	}
	return nosdav.SaveResult{BytesWritten: n, Etag: hex.EncodeToString(h.Sum(nil))}, nil
}

type pendingWrite struct {
	root   *os.Root
	tmp    string
	dest   string
	result nosdav.SaveResult
	done   bool
}

func (w *pendingWrite) Result() nosdav.SaveResult {
	return w.result
}

// Commit renames the temp file over the destination. It can be called once;
// after a failure the temp file is gone.
func (w *pendingWrite) Commit() error {
	if w.done {
		return fmt.Errorf("%w: write to %s already finished", nosdav.ErrStreamWrite, w.dest)
	}
	w.done = true
	if err := w.root.Rename(w.tmp, w.dest); err != nil {
		w.remove()
		return fmt.Errorf("%w: failed to rename file: %w", nosdav.ErrStreamWrite, err)
	}
	return nil
}

// Discard removes the temp file. It is a no-op after Commit.
func (w *pendingWrite) Discard() {
	if w.done {
		return
	}
	w.done = true
	w.remove()
}

func (w *pendingWrite) remove() {
	if err := w.root.Remove(w.tmp); err != nil && !errors.Is(err, os.ErrNotExist) {
		slog.Warn("failed to remove tmp file", "path", w.tmp, "err", err)
	}
}

// checkNoSymlinks walks dir one component at a time and fails on the first
// symlink. Walking stops at the first component that does not exist yet.
func (s *Store) checkNoSymlinks(dir string) error {
	if dir == "." {
		return nil
	}
	cur := ""
	for _, part := range strings.Split(dir, "/") {
		cur = path.Join(cur, part)
		info, err := s.root.Lstat(cur)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %w", nosdav.ErrDirectoryCreate, err)
		}
		if info.Mode()&os.ModeSymlink != 0 {
			return fmt.Errorf("%w: %s is a symlink", nosdav.ErrPathEscape, cur)
		}
	}
	return nil
}

// List returns every stored file with its size, SHA256 etag and content
// type. Temp files left by interrupted writes are skipped.
func (s *Store) List(ctx context.Context) ([]nosdav.ObjectEntry, error) {
	entries := []nosdav.ObjectEntry{}
	err := fs.WalkDir(s.root.FS(), ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if !d.Type().IsRegular() || isTmpFile(d.Name()) {
			return nil
		}

		etag, size, err := s.hashFile(p)
		if err != nil {
			return err
		}
		entries = append(entries, nosdav.ObjectEntry{
			Path:        p,
			Size:        size,
			ETag:        etag,
			ContentType: nosdav.ContentTypeFor(p),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return entries, nil
}

// hashFile returns the hex SHA256 of the file at p and its length.
func (s *Store) hashFile(p string) (string, int64, error) {
	f, err := s.root.Open(p)
	if err != nil {
		return "", 0, err
	}
	defer f.Close()

	h := sha256.New()
	n, err := io.Copy(h, f)
	if err != nil {
		return "", 0, fmt.Errorf("hash %s: %w", p, err)
	}
	return hex.EncodeToString(h.Sum(nil)), n, nil
}

// Temp files are ".t" followed by a UUID, so a user file can only collide
// by choosing exactly that shape.
const tmpPrefix = ".t"

func tmpFileName() string {
	return tmpPrefix + uuid.NewString()
}

func isTmpFile(name string) bool {
	return strings.HasPrefix(name, tmpPrefix) && len(name) == len(tmpPrefix)+36
}
