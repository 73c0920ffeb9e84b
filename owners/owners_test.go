package owners_test

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nosdav/nosdav"
	"github.com/nosdav/nosdav/owners"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	alice = strings.Repeat("a", 64)
	bob   = strings.Repeat("b", 64)
	carol = strings.Repeat("c", 64)
)

func writeTestFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "owners.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadOwnersFromFile_ValidJSON(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `[
		{"pubkey": "`+alice+`", "name": "alice"},
		{"pubkey": "`+bob+`"}
	]`)

	got, err := owners.LoadOwnersFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{alice, bob}, got)
}

func TestLoadOwnersFromFile_BarePubkeys(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `["`+alice+`", {"pubkey": "`+bob+`", "name": "bob"}, "`+carol+`"]`)

	got, err := owners.LoadOwnersFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{alice, bob, carol}, got)
}

func TestLoadOwnersFromFile_SkipsEmpty(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `[{"pubkey": ""}, {"pubkey": "  "}, {"pubkey": "`+carol+`"}]`)

	got, err := owners.LoadOwnersFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{carol}, got)
}

func TestLoadOwnersFromFile_Errors(t *testing.T) {
	t.Parallel()

	_, err := owners.LoadOwnersFromFile(filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorContains(t, err, "read owners file")

	_, err = owners.LoadOwnersFromFile(writeTestFile(t, `{not json`))
	assert.ErrorContains(t, err, "parse owners file")

	_, err = owners.LoadOwnersFromFile(writeTestFile(t, `[42]`))
	assert.ErrorContains(t, err, "parse owners file")
}

func TestNewOwnerSet_MergesInlineAndFile(t *testing.T) {
	t.Parallel()

	path := writeTestFile(t, `[{"pubkey": "`+carol+`"}]`)

	set, err := owners.NewOwnerSet(owners.Config{
		Inline: []string{alice + ", " + bob, ""},
		File:   path,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, set.Len())
	assert.True(t, set.Contains(nosdav.Identity(alice)))
	assert.True(t, set.Contains(nosdav.Identity(bob)))
	assert.True(t, set.Contains(nosdav.Identity(carol)))
}

func TestNewOwnerSet_Empty(t *testing.T) {
	t.Parallel()

	set, err := owners.NewOwnerSet(owners.Config{})
	require.NoError(t, err)
	assert.Equal(t, 0, set.Len())
}

func TestNewOwnerSet_RejectsInvalidIdentity(t *testing.T) {
	t.Parallel()

	tests := []string{"abc", strings.ToUpper(alice), alice + "0", "npub1xyz"}
	for _, owner := range tests {
		_, err := owners.NewOwnerSet(owners.Config{Inline: []string{owner}})
		assert.True(t, errors.Is(err, nosdav.ErrInvalidInput), "owner %q", owner)
	}
}

func TestNewOwnerSet_FileError(t *testing.T) {
	t.Parallel()

	_, err := owners.NewOwnerSet(owners.Config{File: filepath.Join(t.TempDir(), "nope.json")})
	assert.Error(t, err)
}
