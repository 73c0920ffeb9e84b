// Package owners loads the singleuser owner set from configuration.
package owners

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/nosdav/nosdav"
)

// Config holds configuration for loading owners.
type Config struct {
	Inline []string `mapstructure:"inline"` // Owner pubkeys from config or --owners
	File   string   `mapstructure:"file"`   // Path to JSON file containing owners
}

// Entry is one owner in an owners file.
type Entry struct {
	PubKey string `json:"pubkey"`
	Name   string `json:"name,omitempty"`
}

// UnmarshalJSON accepts either an object or a bare pubkey string.
func (e *Entry) UnmarshalJSON(data []byte) error {
	var pk string
	if err := json.Unmarshal(data, &pk); err == nil {
		*e = Entry{PubKey: pk}
		return nil
	}
	type entry Entry
	var obj entry
	if err := json.Unmarshal(data, &obj); err != nil {
		return err
	}
	*e = Entry(obj)
	return nil
}

// NewOwnerSet creates an OwnerSet from the given configuration.
// Inline owners and file owners are merged. Entries are trimmed and empty
// entries are skipped, so "a, b," from a comma separated flag works. Any
// remaining entry that is not a valid identity is an error.
func NewOwnerSet(cfg Config) (nosdav.OwnerSet, error) {
	var all []string

	for _, o := range cfg.Inline {
		all = append(all, splitList(o)...)
	}

	if cfg.File != "" {
		fileOwners, err := LoadOwnersFromFile(cfg.File)
		if err != nil {
			return nosdav.OwnerSet{}, err
		}
		all = append(all, fileOwners...)
	}

	set, err := nosdav.NewOwnerSet(all...)
	if err != nil {
		return nosdav.OwnerSet{}, fmt.Errorf("load owners: %w", err)
	}
	return set, nil
}

// LoadOwnersFromFile loads owner pubkeys from a JSON file.
// The file holds an array whose items are entries or bare pubkeys:
//
//	[
//	  {"pubkey": "de7ecd1e2976a6adb2ffa5f4db81a7d812c8bb6698aa00dcf1e76adb55efd645", "name": "alice"},
//	  "3bf0c63fcb93463407af97a5e5ee64fa883d107ef9e558472c4eb9aaaefa459d"
//	]
//
// Entries with an empty pubkey are skipped.
func LoadOwnersFromFile(path string) ([]string, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is from trusted config file
	if err != nil {
		return nil, fmt.Errorf("read owners file: %w", err)
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("parse owners file: %w", err)
	}

	out := make([]string, 0, len(entries))
	for _, e := range entries {
		if pk := strings.TrimSpace(e.PubKey); pk != "" {
			out = append(out, pk)
		}
	}

	return out, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
