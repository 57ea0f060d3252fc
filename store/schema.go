package store

// schemaVersion is the schema this build creates and expects.
const schemaVersion = 1

var schema = `
CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL);

CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	input TEXT NOT NULL,
	rows INTEGER NOT NULL,
	created_at TEXT NOT NULL
);

-- One row per requested metric. A computed metric has a mean (NULL when
-- no row was finite); an omitted metric has an error instead.
CREATE TABLE IF NOT EXISTS results (
	run_id TEXT NOT NULL,
	position INTEGER NOT NULL,
	metric TEXT NOT NULL,
	mean REAL,
	error TEXT,
	PRIMARY KEY (run_id, metric),
	FOREIGN KEY (run_id) REFERENCES runs(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
`
