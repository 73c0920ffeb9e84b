package filesystem_test

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/filesystem"
)

func newStore(t *testing.T) (*filesystem.Store, string) {
	t.Helper()
	dir := t.TempDir()
	root, err := os.OpenRoot(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = root.Close() })
	return filesystem.NewStore(root), dir
}

// write stages content and commits it at once.
func write(ctx context.Context, store *filesystem.Store, p string, content io.Reader) (nosdav.SaveResult, error) {
	pending, err := store.Stage(ctx, p, content)
	if err != nil {
		return nosdav.SaveResult{}, err
	}
	if err := pending.Commit(); err != nil {
		return nosdav.SaveResult{}, err
	}
	return pending.Result(), nil
}

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

func TestStore_Get_Success(t *testing.T) {
	store, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("test content"), 0o644))

	rsc, obj, err := store.Get(context.Background(), "test.txt")
	require.NoError(t, err)
	defer func() { _ = rsc.Close() }()

	content, err := io.ReadAll(rsc)
	require.NoError(t, err)
	assert.Equal(t, "test content", string(content))

	assert.Equal(t, "test.txt", obj.Path)
	assert.Equal(t, "text/plain", obj.ContentType)
	assert.Equal(t, int64(12), obj.Size)
	assert.False(t, obj.ModTime.IsZero())
}

func TestStore_Get_Seekable(t *testing.T) {
	store, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "page.html"), []byte("<p>hello</p>"), 0o644))

	rsc, _, err := store.Get(context.Background(), "page.html")
	require.NoError(t, err)
	defer func() { _ = rsc.Close() }()

	_, err = rsc.Seek(3, io.SeekStart)
	require.NoError(t, err)
	rest, err := io.ReadAll(rsc)
	require.NoError(t, err)
	assert.Equal(t, "hello</p>", string(rest))
}

func TestStore_Get_NotFound(t *testing.T) {
	store, _ := newStore(t)

	rsc, _, err := store.Get(context.Background(), "nonexistent.txt")
	assert.Nil(t, rsc)
	assert.ErrorIs(t, err, nosdav.ErrNotFound)
}

func TestStore_Get_DirectoryIsNotFound(t *testing.T) {
	store, dir := newStore(t)
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "folder"), 0o755))

	rsc, _, err := store.Get(context.Background(), "folder")
	assert.Nil(t, rsc)
	assert.ErrorIs(t, err, nosdav.ErrNotFound)
}

func TestStore_Get_EscapeIsRejected(t *testing.T) {
	store, dir := newStore(t)
	outside := filepath.Join(filepath.Dir(dir), "outside-"+filepath.Base(dir)+".txt")
	require.NoError(t, os.WriteFile(outside, []byte("secret"), 0o644))
	t.Cleanup(func() { _ = os.Remove(outside) })

	rsc, _, err := store.Get(context.Background(), "../"+filepath.Base(outside))
	assert.Nil(t, rsc)
	assert.Error(t, err)
}

func TestStore_Get_ContextCanceled(t *testing.T) {
	store, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "test.txt"), []byte("x"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rsc, _, err := store.Get(ctx, "test.txt")
	assert.Nil(t, rsc)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Stage_Success(t *testing.T) {
	store, dir := newStore(t)
	content := []byte("test content")

	result, err := write(context.Background(), store, "test.txt", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), result.BytesWritten)
	assert.Equal(t, sha256Hex(content), result.Etag)

	onDisk, err := os.ReadFile(filepath.Join(dir, "test.txt"))
	require.NoError(t, err)
	assert.Equal(t, content, onDisk)
}

func TestStore_Stage_CreatesIntermediateDirectories(t *testing.T) {
	store, dir := newStore(t)

	_, err := write(context.Background(), store, "npub/a/b/c/file.json", strings.NewReader(`{}`))
	require.NoError(t, err)

	onDisk, err := os.ReadFile(filepath.Join(dir, "npub", "a", "b", "c", "file.json"))
	require.NoError(t, err)
	assert.Equal(t, "{}", string(onDisk))
}

func TestStore_Stage_Overwrite(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()

	_, err := write(ctx, store, "test.txt", strings.NewReader("first version"))
	require.NoError(t, err)
	result, err := write(ctx, store, "test.txt", strings.NewReader("second"))
	require.NoError(t, err)
	assert.Equal(t, int64(6), result.BytesWritten)

	onDisk, err := os.ReadFile(filepath.Join(dir, "test.txt"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(onDisk))
}

func TestStore_Stage_DirectoryCreateFailure(t *testing.T) {
	store, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "blocker"), []byte("file"), 0o644))

	_, err := write(context.Background(), store, "blocker/child.txt", strings.NewReader("x"))
	assert.ErrorIs(t, err, nosdav.ErrDirectoryCreate)
}

func TestStore_Stage_SymlinkedDirectory(t *testing.T) {
	tests := []struct {
		name   string
		inside bool
	}{
		{name: "link leaving the root", inside: false},
		{name: "link staying inside the root", inside: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, dir := newStore(t)
			dest := t.TempDir()
			if tt.inside {
				dest = filepath.Join(dir, "real")
				require.NoError(t, os.Mkdir(dest, 0o755))
			}
			require.NoError(t, os.Symlink(dest, filepath.Join(dir, "link")))

			_, err := write(context.Background(), store, "link/x.txt", strings.NewReader("x"))
			assert.ErrorIs(t, err, nosdav.ErrPathEscape)
			assert.NoFileExists(t, filepath.Join(dest, "x.txt"))

			_, err = write(context.Background(), store, "link/sub/x.txt", strings.NewReader("x"))
			assert.ErrorIs(t, err, nosdav.ErrPathEscape)
			assert.NoDirExists(t, filepath.Join(dest, "sub"))
		})
	}
}

func TestStore_Stage_ContextCanceled(t *testing.T) {
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := write(ctx, store, "test.txt", strings.NewReader("content"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, nosdav.SaveResult{}, result)
}

func TestStore_Stage_ContextCanceledDuringCopy(t *testing.T) {
	store, dir := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	reader := &slowReader{
		data:   []byte("test content"),
		cancel: cancel,
	}

	result, err := write(ctx, store, "test.txt", reader)
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, err, nosdav.ErrStreamWrite)
	assert.Equal(t, int64(0), result.BytesWritten)
	assert.Empty(t, result.Etag)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries, "temp file must be removed")
}

func TestStore_Stage_ReaderFailureLeavesNoTarget(t *testing.T) {
	store, dir := newStore(t)

	_, err := write(context.Background(), store, "sub/test.txt", io.MultiReader(
		strings.NewReader("partial"),
		&failingReader{err: io.ErrUnexpectedEOF},
	))
	assert.ErrorIs(t, err, nosdav.ErrStreamWrite)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)

	_, statErr := os.Stat(filepath.Join(dir, "sub", "test.txt"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)

	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.Empty(t, entries)
}

type slowReader struct {
	data   []byte
	pos    int
	cancel context.CancelFunc
}

func (r *slowReader) Read(p []byte) (n int, err error) {
	if r.pos >= len(r.data) {
		return 0, io.EOF
	}
	r.cancel()
	n = copy(p, r.data[r.pos:])
	r.pos += n
	return n, nil
}

type failingReader struct {
	err error
}

func (r *failingReader) Read([]byte) (int, error) {
	return 0, r.err
}

func TestStore_Stage_InvisibleUntilCommit(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()
	target := filepath.Join(dir, "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	pending, err := store.Stage(ctx, "doc.txt", strings.NewReader("new content"))
	require.NoError(t, err)
	assert.Equal(t, int64(11), pending.Result().BytesWritten)
	assert.Equal(t, sha256Hex([]byte("new content")), pending.Result().Etag)

	onDisk, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(onDisk))

	require.NoError(t, pending.Commit())

	onDisk, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "new content", string(onDisk))

	assert.ErrorIs(t, pending.Commit(), nosdav.ErrStreamWrite)
	pending.Discard()
	assert.FileExists(t, target)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStore_Stage_DiscardKeepsExistingFile(t *testing.T) {
	store, dir := newStore(t)
	ctx := context.Background()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0o755))
	target := filepath.Join(dir, "sub", "doc.txt")
	require.NoError(t, os.WriteFile(target, []byte("old"), 0o644))

	pending, err := store.Stage(ctx, "sub/doc.txt", strings.NewReader("new"))
	require.NoError(t, err)
	pending.Discard()
	pending.Discard()

	onDisk, err := os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(onDisk))

	entries, err := os.ReadDir(filepath.Join(dir, "sub"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temp file must be removed")

	assert.ErrorIs(t, pending.Commit(), nosdav.ErrStreamWrite)
	onDisk, err = os.ReadFile(target)
	require.NoError(t, err)
	assert.Equal(t, "old", string(onDisk))
}

func TestStore_List(t *testing.T) {
	store, dir := newStore(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "file1.txt"), []byte("content1"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "subdir"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir", "file2.json"), []byte("content2"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir", "blob.bin"), []byte("content3"), 0o644))
	// leftover from an interrupted write
	require.NoError(t, os.WriteFile(filepath.Join(dir, "subdir", ".t0f8fad5b-d9cb-469f-a165-70867728950e"), []byte("junk"), 0o644))

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 3)

	byPath := make(map[string]nosdav.ObjectEntry)
	for _, entry := range entries {
		byPath[entry.Path] = entry
	}

	file1 := byPath["file1.txt"]
	assert.Equal(t, int64(8), file1.Size)
	assert.Equal(t, sha256Hex([]byte("content1")), file1.ETag)
	assert.Equal(t, "text/plain", file1.ContentType)

	file2 := byPath["subdir/file2.json"]
	assert.Equal(t, sha256Hex([]byte("content2")), file2.ETag)
	assert.Equal(t, "application/json", file2.ContentType)

	assert.Equal(t, "application/octet-stream", byPath["subdir/blob.bin"].ContentType)
}

func TestStore_List_Empty(t *testing.T) {
	store, _ := newStore(t)

	entries, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStore_List_ContextCanceled(t *testing.T) {
	store, _ := newStore(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := store.List(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_WriteThenList_EtagsMatch(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	result, err := write(ctx, store, "a/b.txt", strings.NewReader("consistent"))
	require.NoError(t, err)

	entries, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, result.Etag, entries[0].ETag)
}

func TestStore_LargeFile(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	content := bytes.Repeat([]byte("nostr"), 1<<18)
	result, err := write(ctx, store, "large.bin", bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, int64(len(content)), result.BytesWritten)
	assert.Equal(t, sha256Hex(content), result.Etag)

	rsc, obj, err := store.Get(ctx, "large.bin")
	require.NoError(t, err)
	defer func() { _ = rsc.Close() }()
	assert.Equal(t, int64(len(content)), obj.Size)

	read, err := io.ReadAll(rsc)
	require.NoError(t, err)
	assert.True(t, bytes.Equal(content, read))
}

func TestStore_ConcurrentWrites(t *testing.T) {
	store, _ := newStore(t)
	ctx := context.Background()

	errs := make(chan error, 10)
	for i := range 10 {
		go func(n int) {
			_, err := write(ctx, store, fmt.Sprintf("dir/file-%d.txt", n), bytes.NewReader(fmt.Appendf(nil, "content-%d", n)))
			errs <- err
		}(i)
	}

	for range 10 {
		assert.NoError(t, <-errs)
	}

	entries, err := store.List(ctx)
	require.NoError(t, err)
	assert.Len(t, entries, 10)
}
