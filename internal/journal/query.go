package journal

import (
	"fmt"
	"time"

	"github.com/blackwell-systems/themetool/internal/store"
)

// List returns up to limit operations, newest first.
func (j *Journal) List(limit int) ([]*store.Operation, error) {
	ops, err := j.store.ListOperations(limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list operations: %w", err)
	}
	return ops, nil
}

// Get returns operation id with its events and snapshots.
func (j *Journal) Get(id int64) (*Record, error) {
	op, err := j.store.GetOperation(id)
	if err != nil {
		return nil, err
	}
	return j.load(op)
}

// Latest returns the most recent operation, or nil when history is empty.
func (j *Journal) Latest() (*Record, error) {
	op, err := j.store.LatestOperation()
	if err != nil || op == nil {
		return nil, err
	}
	return j.load(op)
}

func (j *Journal) load(op *store.Operation) (*Record, error) {
	events, err := j.store.GetOperationEvents(op.ID)
	if err != nil {
		return nil, err
	}
	before, err := j.store.GetEntrySnapshots(op.ID, store.PhaseBefore)
	if err != nil {
		return nil, err
	}
	after, err := j.store.GetEntrySnapshots(op.ID, store.PhaseAfter)
	if err != nil {
		return nil, err
	}
	return &Record{Operation: op, Events: events, Before: before, After: after}, nil
}

// Prune removes operations older than maxAge.
func (j *Journal) Prune(maxAge time.Duration) (int64, error) {
	n, err := j.store.DeleteOperationsBefore(j.now().Add(-maxAge))
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}
	return n, nil
}
