// Package store persists atom tables. Every backend writes the flat
// atomspace.Record form, so handles survive a round trip and links keep
// pointing at the same atoms after a reload.
package store

import (
	"context"

	"github.com/Harshitk-cp/cogserver/internal/atomspace"
	"github.com/cockroachdb/errors"
)

var ErrClosed = errors.New("storage is closed")

// Backend loads a table from, and stores a table to, some external medium.
// Callers hold the table exclusively for the duration of a call.
type Backend interface {
	Load(ctx context.Context, table *atomspace.Table) error
	Store(ctx context.Context, table *atomspace.Table) error
	Close() error
}

// checkVersion reports a table that changed after its snapshot was taken.
func checkVersion(table *atomspace.Table, want uint64) error {
	if got := table.Version(); got != want {
		return errors.Wrapf(atomspace.ErrConcurrentAccess, "table changed during store (version %d -> %d)", want, got)
	}
	return nil
}
