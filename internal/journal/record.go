package journal

import (
	"fmt"

	"github.com/blackwell-systems/themetool/internal/patcher"
	"github.com/blackwell-systems/themetool/internal/store"
)

// Open opens the history database at path, creating its schema if needed,
// and prunes operations older than Retention.
func Open(path string) (*Journal, error) {
	s, err := store.New(path)
	if err != nil {
		return nil, err
	}
	if err := s.CreateSchema(); err != nil {
		s.Close()
		return nil, err
	}
	j := New(s)
	if _, err := j.Prune(Retention); err != nil {
		s.Close()
		return nil, err
	}
	return j, nil
}

// Close closes the underlying store.
func (j *Journal) Close() error {
	return j.store.Close()
}

// Recorder collects the events of one running operation.
type Recorder struct {
	j   *Journal
	ID  int64
	err error
}

// Begin records the start of an operation: its kind, the optional targets
// requested, the payload digest, the activity count and a snapshot of the
// IFEO entries it is about to modify.
func (j *Journal) Begin(kind string, targets []patcher.Target, digest string, activity int, before []patcher.Entry) (*Recorder, error) {
	names := make([]string, 0, len(targets))
	for _, t := range targets {
		names = append(names, string(t))
	}

	id, err := j.store.InsertOperation(&store.Operation{
		Kind:           kind,
		StartedAt:      j.now(),
		Targets:        names,
		PayloadDigest:  digest,
		ActivityBefore: activity,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin %s: %w", kind, err)
	}

	if err := j.snapshot(id, store.PhaseBefore, before); err != nil {
		return nil, err
	}
	return &Recorder{j: j, ID: id}, nil
}

func (j *Journal) snapshot(id int64, phase string, entries []patcher.Entry) error {
	for _, e := range entries {
		snap := &store.EntrySnapshot{
			OperationID:  id,
			Phase:        phase,
			Target:       string(e.Target),
			GlobalFlag:   e.GlobalFlag,
			HasFlag:      e.HasFlag,
			VerifierDlls: e.VerifierDlls,
			HasVerifier:  e.HasVerifier,
		}
		if err := j.store.InsertEntrySnapshot(snap); err != nil {
			return fmt.Errorf("failed to snapshot %s: %w", e.Target, err)
		}
	}
	return nil
}

// Record stores one completed step. It has the signature of a
// patcher.WithEventHandler callback; write failures are kept and returned by
// Finish so the operation itself is never interrupted by history.
func (r *Recorder) Record(ev patcher.Event) {
	if r.err != nil {
		return
	}
	row := &store.OperationEvent{
		OperationID: r.ID,
		Timestamp:   ev.Time,
		Step:        string(ev.Step),
		Target:      string(ev.Target),
	}
	if ev.Err != nil {
		row.Error = ev.Err.Error()
		row.ErrorCode = patcher.ErrorCode(ev.Err)
	}
	if err := r.j.store.InsertOperationEvent(row); err != nil {
		r.err = err
	}
}

// Finish stores the outcome of the operation and a snapshot of the entries
// after it ran. opErr is the error returned by the operation, if any.
func (r *Recorder) Finish(opErr error, activity int, after []patcher.Entry) error {
	outcome, msg := store.OutcomeSuccess, ""
	if opErr != nil {
		outcome, msg = store.OutcomeFailed, opErr.Error()
	}

	if err := r.j.snapshot(r.ID, store.PhaseAfter, after); err != nil {
		return err
	}
	if err := r.j.store.FinishOperation(r.ID, r.j.now(), outcome, msg, activity); err != nil {
		return err
	}
	if r.err != nil {
		return fmt.Errorf("failed to record events: %w", r.err)
	}
	return nil
}
