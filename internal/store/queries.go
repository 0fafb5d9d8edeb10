package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// Operation queries

// InsertOperation records the start of an operation and returns its ID.
func (s *Store) InsertOperation(op *Operation) (int64, error) {
	targetsJSON, err := json.Marshal(op.Targets)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal targets: %w", err)
	}
	if op.Outcome == "" {
		op.Outcome = OutcomeRunning
	}

	query := `
		INSERT INTO operations
		(kind, started_at, outcome, error, targets, payload_digest, activity_before)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.Exec(query,
		op.Kind,
		op.StartedAt.UTC().Format(time.RFC3339),
		op.Outcome,
		op.Error,
		string(targetsJSON),
		op.PayloadDigest,
		op.ActivityBefore,
	)
	if err != nil {
		return 0, wrapErr(err, "failed to insert operation")
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get operation ID: %w", err)
	}
	op.ID = id
	return id, nil
}

// FinishOperation stores the outcome of operation id.
func (s *Store) FinishOperation(id int64, finishedAt time.Time, outcome, errMsg string, activityAfter int) error {
	query := `
		UPDATE operations
		SET finished_at = ?, outcome = ?, error = ?, activity_after = ?
		WHERE id = ?
	`

	result, err := s.db.Exec(query, finishedAt.UTC().Format(time.RFC3339), outcome, errMsg, activityAfter, id)
	if err != nil {
		return wrapErr(err, "failed to finish operation %d", id)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to check rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("operation %d not found", id)
	}
	return nil
}

const operationColumns = `id, kind, started_at, finished_at, outcome, error, targets, payload_digest, activity_before, activity_after`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanOperation(row rowScanner) (*Operation, error) {
	var op Operation
	var startedAt string
	var finishedAt sql.NullString
	var targetsJSON string

	err := row.Scan(
		&op.ID,
		&op.Kind,
		&startedAt,
		&finishedAt,
		&op.Outcome,
		&op.Error,
		&targetsJSON,
		&op.PayloadDigest,
		&op.ActivityBefore,
		&op.ActivityAfter,
	)
	if err != nil {
		return nil, err
	}

	op.StartedAt, err = time.Parse(time.RFC3339, startedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse started_at for operation %d: %w", op.ID, err)
	}
	if finishedAt.Valid && finishedAt.String != "" {
		t, err := time.Parse(time.RFC3339, finishedAt.String)
		if err != nil {
			return nil, fmt.Errorf("failed to parse finished_at for operation %d: %w", op.ID, err)
		}
		op.FinishedAt = &t
	}
	if err := json.Unmarshal([]byte(targetsJSON), &op.Targets); err != nil {
		return nil, fmt.Errorf("failed to unmarshal targets for operation %d: %w", op.ID, err)
	}
	return &op, nil
}

// GetOperation retrieves an operation by ID.
func (s *Store) GetOperation(id int64) (*Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations WHERE id = ?`

	op, err := scanOperation(s.db.QueryRow(query, id))
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("operation %d not found", id)
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get operation %d", id)
	}
	return op, nil
}

// LatestOperation returns the most recent operation, or nil when none exist.
func (s *Store) LatestOperation() (*Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations ORDER BY id DESC LIMIT 1`

	op, err := scanOperation(s.db.QueryRow(query))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr(err, "failed to get latest operation")
	}
	return op, nil
}

// ListOperations returns operations newest first. A limit of 0 or less
// returns all of them.
func (s *Store) ListOperations(limit int) ([]*Operation, error) {
	query := `SELECT ` + operationColumns + ` FROM operations ORDER BY id DESC`
	var args []any
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, wrapErr(err, "failed to list operations")
	}
	defer rows.Close()

	var ops []*Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan operation row: %w", err)
		}
		ops = append(ops, op)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating operations: %w", err)
	}

	return ops, nil
}

// DeleteOperationsBefore removes operations started before cutoff together
// with their events and snapshots. It returns the number removed.
func (s *Store) DeleteOperationsBefore(cutoff time.Time) (int64, error) {
	result, err := s.db.Exec(`DELETE FROM operations WHERE started_at < ?`, cutoff.UTC().Format(time.RFC3339))
	if err != nil {
		return 0, wrapErr(err, "failed to delete old operations")
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to check rows affected: %w", err)
	}
	return n, nil
}

// GetOperationCount returns the number of recorded operations.
func (s *Store) GetOperationCount() (int, error) {
	var count int
	err := s.db.QueryRow("SELECT COUNT(*) FROM operations").Scan(&count)
	if err != nil {
		return 0, wrapErr(err, "failed to get operation count")
	}
	return count, nil
}

// Event queries

// InsertOperationEvent appends a step to an operation.
func (s *Store) InsertOperationEvent(ev *OperationEvent) error {
	query := `
		INSERT INTO operation_events (operation_id, timestamp, step, target, error, error_code)
		VALUES (?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		ev.OperationID,
		ev.Timestamp.UTC().Format(time.RFC3339),
		ev.Step,
		ev.Target,
		ev.Error,
		ev.ErrorCode,
	)
	if err != nil {
		return wrapErr(err, "failed to insert event for operation %d", ev.OperationID)
	}
	return nil
}

// GetOperationEvents returns the steps of an operation in the order they ran.
func (s *Store) GetOperationEvents(operationID int64) ([]*OperationEvent, error) {
	query := `
		SELECT operation_id, timestamp, step, target, error, error_code
		FROM operation_events
		WHERE operation_id = ?
		ORDER BY id
	`

	rows, err := s.db.Query(query, operationID)
	if err != nil {
		return nil, wrapErr(err, "failed to get events for operation %d", operationID)
	}
	defer rows.Close()

	var events []*OperationEvent
	for rows.Next() {
		var ev OperationEvent
		var timestamp string

		if err := rows.Scan(&ev.OperationID, &timestamp, &ev.Step, &ev.Target, &ev.Error, &ev.ErrorCode); err != nil {
			return nil, fmt.Errorf("failed to scan event row: %w", err)
		}

		ev.Timestamp, err = time.Parse(time.RFC3339, timestamp)
		if err != nil {
			return nil, fmt.Errorf("failed to parse timestamp: %w", err)
		}

		events = append(events, &ev)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating events: %w", err)
	}

	return events, nil
}

// Snapshot queries

// InsertEntrySnapshot stores the IFEO state of one target. A second snapshot
// for the same operation, phase and target replaces the first.
func (s *Store) InsertEntrySnapshot(snap *EntrySnapshot) error {
	query := `
		INSERT OR REPLACE INTO entry_snapshots
		(operation_id, phase, target, global_flag, has_flag, verifier_dlls, has_verifier)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.Exec(query,
		snap.OperationID,
		snap.Phase,
		snap.Target,
		snap.GlobalFlag,
		snap.HasFlag,
		snap.VerifierDlls,
		snap.HasVerifier,
	)
	if err != nil {
		return wrapErr(err, "failed to insert snapshot of %s", snap.Target)
	}
	return nil
}

// GetEntrySnapshots returns the snapshots of an operation and phase in
// insertion order.
func (s *Store) GetEntrySnapshots(operationID int64, phase string) ([]*EntrySnapshot, error) {
	query := `
		SELECT operation_id, phase, target, global_flag, has_flag, verifier_dlls, has_verifier
		FROM entry_snapshots
		WHERE operation_id = ? AND phase = ?
		ORDER BY rowid
	`

	rows, err := s.db.Query(query, operationID, phase)
	if err != nil {
		return nil, wrapErr(err, "failed to get snapshots for operation %d", operationID)
	}
	defer rows.Close()

	var snaps []*EntrySnapshot
	for rows.Next() {
		var snap EntrySnapshot
		err := rows.Scan(
			&snap.OperationID,
			&snap.Phase,
			&snap.Target,
			&snap.GlobalFlag,
			&snap.HasFlag,
			&snap.VerifierDlls,
			&snap.HasVerifier,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan snapshot row: %w", err)
		}
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating snapshots: %w", err)
	}

	return snaps, nil
}
