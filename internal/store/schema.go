package store

const schema = `
CREATE TABLE IF NOT EXISTS operations (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    kind TEXT NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP,
    outcome TEXT NOT NULL DEFAULT 'running',
    error TEXT NOT NULL DEFAULT '',
    targets TEXT NOT NULL DEFAULT '[]',
    payload_digest TEXT NOT NULL DEFAULT '',
    activity_before INTEGER NOT NULL DEFAULT 0,
    activity_after INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS operation_events (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    operation_id INTEGER NOT NULL,
    timestamp TIMESTAMP NOT NULL,
    step TEXT NOT NULL,
    target TEXT NOT NULL DEFAULT '',
    error TEXT NOT NULL DEFAULT '',
    error_code INTEGER NOT NULL DEFAULT 0,
    FOREIGN KEY (operation_id) REFERENCES operations(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS entry_snapshots (
    operation_id INTEGER NOT NULL,
    phase TEXT NOT NULL,
    target TEXT NOT NULL,
    global_flag INTEGER NOT NULL DEFAULT 0,
    has_flag BOOLEAN NOT NULL DEFAULT 0,
    verifier_dlls TEXT NOT NULL DEFAULT '',
    has_verifier BOOLEAN NOT NULL DEFAULT 0,
    PRIMARY KEY (operation_id, phase, target),
    FOREIGN KEY (operation_id) REFERENCES operations(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_operations_started ON operations(started_at);
CREATE INDEX IF NOT EXISTS idx_events_operation ON operation_events(operation_id);
CREATE INDEX IF NOT EXISTS idx_snapshots_operation ON entry_snapshots(operation_id);
`
