// Package journal records install and uninstall operations in the history
// database: the steps each operation ran and the IFEO entries before and
// after it. The journal is an audit trail for the user; the patcher never
// reads it to decide state.
package journal

import (
	"time"

	"github.com/blackwell-systems/themetool/internal/store"
)

// Retention is how long operations are kept before Prune removes them.
const Retention = 90 * 24 * time.Hour

// Journal writes and reads operation history.
type Journal struct {
	store *store.Store
	now   func() time.Time
}

// New creates a Journal on an initialized store.
func New(s *store.Store) *Journal {
	return &Journal{
		store: s,
		now:   time.Now,
	}
}

// Record is a complete operation as read back from history.
type Record struct {
	Operation *store.Operation
	Events    []*store.OperationEvent
	Before    []*store.EntrySnapshot
	After     []*store.EntrySnapshot
}

// Failed reports whether the operation ended in an error.
func (r *Record) Failed() bool {
	return r.Operation.Outcome == store.OutcomeFailed
}
