package nosdav

import (
	"errors"
	"fmt"
	"regexp"
	"slices"
	"time"

	"github.com/google/uuid"
)

// Identity is the hex encoded x-only public key of a verified credential holder.
type Identity string

func (id Identity) String() string {
	return string(id)
}

// Short returns the first 8 characters, for log lines.
func (id Identity) Short() string {
	if len(id) <= 8 {
		return string(id)
	}
	return string(id[:8])
}

type StorageMode string

const (
	ModeSingleUser StorageMode = "singleuser"
	ModeMultiUser  StorageMode = "multiuser"
)

func (m StorageMode) IsValid() bool {
	switch m {
	case ModeSingleUser, ModeMultiUser:
		return true
	default:
		return false
	}
}

func ParseStorageMode(s string) (StorageMode, error) {
	mode := StorageMode(s)
	if mode.IsValid() {
		return mode, nil
	}
	return "", fmt.Errorf("storage mode %q: want %s or %s", s, ModeSingleUser, ModeMultiUser)
}

// OwnerSet is the fixed set of identities allowed to write in singleuser mode.
// The zero value is an empty set and authorizes nobody.
type OwnerSet struct {
	members map[Identity]struct{}
}

// NewOwnerSet builds an OwnerSet. Every entry must be a valid identity.
func NewOwnerSet(owners ...string) (OwnerSet, error) {
	members := make(map[Identity]struct{}, len(owners))
	for _, o := range owners {
		if !IsValidIdentity(o) {
			return OwnerSet{}, fmt.Errorf("new owner set: %w: %q is not 64 lowercase hex characters", ErrInvalidInput, o)
		}
		members[Identity(o)] = struct{}{}
	}
	return OwnerSet{members: members}, nil
}

func (s OwnerSet) Contains(id Identity) bool {
	_, ok := s.members[id]
	return ok
}

func (s OwnerSet) Len() int {
	return len(s.members)
}

// Members returns the owners in sorted order.
func (s OwnerSet) Members() []Identity {
	out := make([]Identity, 0, len(s.members))
	for id := range s.members {
		out = append(out, id)
	}
	slices.Sort(out)
	return out
}

// Object describes a stored file returned by a read.
type Object struct {
	Path        string
	ContentType string
	Size        int64
	ETag        string
	ModTime     time.Time
}

// ObjectEntry is a file found while walking storage.
type ObjectEntry struct {
	Path        string
	Size        int64
	ETag        string
	ContentType string
}

// SaveResult is what a staged write produced: its length and hex SHA256.
type SaveResult struct {
	BytesWritten int64
	Etag         string
}

// Upload is a ledger record of an accepted write.
type Upload struct {
	ID          uuid.UUID `json:"id"`
	Path        string    `json:"path"`
	Owner       Identity  `json:"owner"`
	ContentType string    `json:"content_type"`
	ETag        string    `json:"etag"`
	SizeBytes   int64     `json:"size_bytes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// UploadEntry is the input to UploadRepo.Upsert.
type UploadEntry struct {
	Path        string
	Owner       Identity
	ContentType string
	ETag        string
	SizeBytes   int64
}

// Tables names the ledger tables. Names are interpolated into SQL, so they
// are restricted to lowercase identifiers that need no quoting.
type Tables struct {
	Uploads string `mapstructure:"uploads"`
}

var tableName = regexp.MustCompile(`^[a-z_][a-z0-9_]{0,62}$`)

// Validate rejects empty or unsafe table names.
func (t Tables) Validate() error {
	switch {
	case t.Uploads == "":
		return errors.New("tables: uploads table name is empty")
	case !tableName.MatchString(t.Uploads):
		return fmt.Errorf("tables: %q is not a lowercase identifier of at most 63 characters", t.Uploads)
	}
	return nil
}
