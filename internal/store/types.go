package store

import "time"

// Operation outcomes.
const (
	OutcomeRunning = "running"
	OutcomeSuccess = "success"
	OutcomeFailed  = "failed"
)

// Snapshot phases.
const (
	PhaseBefore = "before"
	PhaseAfter  = "after"
)

// Operation is one recorded install or uninstall.
type Operation struct {
	ID             int64
	Kind           string // "install" or "uninstall"
	StartedAt      time.Time
	FinishedAt     *time.Time
	Outcome        string
	Error          string
	Targets        []string // optional targets requested
	PayloadDigest  string
	ActivityBefore int
	ActivityAfter  int
}

// OperationEvent is one step of an operation.
type OperationEvent struct {
	OperationID int64
	Timestamp   time.Time
	Step        string
	Target      string
	Error       string
	ErrorCode   uint32
}

// EntrySnapshot is the IFEO state of one target captured around an operation.
type EntrySnapshot struct {
	OperationID  int64
	Phase        string
	Target       string
	GlobalFlag   uint32
	HasFlag      bool
	VerifierDlls string
	HasVerifier  bool
}
