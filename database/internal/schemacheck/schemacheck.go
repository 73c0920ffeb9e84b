// Package schemacheck compares a ledger table, as a database catalog reports
// it, with the columns nosdav expects.
package schemacheck

import (
	"errors"
	"fmt"
)

var (
	ErrMissingTable = errors.New("ledger table does not exist")
	ErrMismatch     = errors.New("ledger table does not match")
)

// Column is one column as a catalog describes it. Type is lower case.
type Column struct {
	Name     string
	Type     string
	Nullable bool
}

// Diff returns nil when every wanted column is present in got with the same
// type and nullability. Extra columns in got are allowed. An empty got means
// the table does not exist.
func Diff(table string, want, got []Column) error {
	if len(got) == 0 {
		return fmt.Errorf("%w: %s", ErrMissingTable, table)
	}

	byName := make(map[string]Column, len(got))
	for _, c := range got {
		byName[c.Name] = c
	}

	var problems []error
	for _, w := range want {
		g, ok := byName[w.Name]
		switch {
		case !ok:
			problems = append(problems, fmt.Errorf("missing column %s", w.Name))
		case g.Type != w.Type:
			problems = append(problems, fmt.Errorf("column %s is %s, want %s", w.Name, g.Type, w.Type))
		case g.Nullable != w.Nullable:
			problems = append(problems, fmt.Errorf("column %s nullable=%t, want %t", w.Name, g.Nullable, w.Nullable))
		}
	}
	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s: %w", ErrMismatch, table, errors.Join(problems...))
}
