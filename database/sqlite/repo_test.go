package sqlite_test

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/database/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = nosdav.Identity(strings.Repeat("a", 64))
	bob   = nosdav.Identity(strings.Repeat("b", 64))
)

func TestNewRepo_InvalidTable(t *testing.T) {
	db := openTestDB(t)

	_, err := sqlite.NewRepo(db, nosdav.Tables{Uploads: "bad name; drop"})
	assert.Error(t, err)

	_, err = sqlite.NewRepo(db, nosdav.Tables{})
	assert.Error(t, err)
}

func TestRepo_Ping(t *testing.T) {
	repo, _, _ := setupTestRepo(t)
	assert.NoError(t, repo.Ping(context.Background()))
}

func TestRepo_Get_NotFound(t *testing.T) {
	repo, _, _ := setupTestRepo(t)

	_, err := repo.Get(context.Background(), "nope.txt")
	assert.ErrorIs(t, err, nosdav.ErrNotFound)
}

func TestRepo_Upsert_InsertThenUpdate(t *testing.T) {
	repo, _, _ := setupTestRepo(t)
	ctx := context.Background()

	entry := nosdav.UploadEntry{
		Path:        string(alice) + "/notes.txt",
		Owner:       alice,
		ContentType: "text/plain",
		ETag:        "etag1",
		SizeBytes:   5,
	}

	first, inserted, err := repo.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.Equal(t, entry.Path, first.Path)
	assert.Equal(t, alice, first.Owner)
	assert.Equal(t, first.CreatedAt, first.UpdatedAt)

	time.Sleep(2 * time.Millisecond)

	entry.ETag = "etag2"
	entry.SizeBytes = 7
	second, inserted, err := repo.Upsert(ctx, entry)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))

	got, err := repo.Get(ctx, entry.Path)
	require.NoError(t, err)
	assert.Equal(t, first.ID, got.ID)
	assert.Equal(t, "etag2", got.ETag)
	assert.Equal(t, int64(7), got.SizeBytes)
	assert.Equal(t, "text/plain", got.ContentType)
	assert.Equal(t, alice, got.Owner)
}

func TestRepo_CountByOwner(t *testing.T) {
	repo, _, _ := setupTestRepo(t)
	ctx := context.Background()

	for _, e := range []nosdav.UploadEntry{
		{Path: string(alice) + "/a.txt", Owner: alice, ContentType: "text/plain", ETag: "1"},
		{Path: string(alice) + "/b.txt", Owner: alice, ContentType: "text/plain", ETag: "2"},
		{Path: string(bob) + "/a.txt", Owner: bob, ContentType: "text/plain", ETag: "3"},
	} {
		_, _, err := repo.Upsert(ctx, e)
		require.NoError(t, err)
	}

	counts, err := repo.CountByOwner(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[nosdav.Identity]int{alice: 2, bob: 1}, counts)
}

func TestRepo_ContextCancelled(t *testing.T) {
	repo, _, _ := setupTestRepo(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := repo.Upsert(ctx, nosdav.UploadEntry{Path: "x", ContentType: "text/plain"})
	assert.Error(t, err)
}
