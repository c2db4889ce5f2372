package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"
)

// Run is one journaled pipeline run.
type Run struct {
	ID         string
	InputDir   string
	OutputFile string
	Scanned    int
	Reused     int
	Recomputed int
	Errored    int
	Conguagli  int
	StartedAt  time.Time
	FinishedAt time.Time
}

// Journal records pipeline runs in a local SQLite database.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (and migrates) the journal database at the given path.
func OpenJournal(path string) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, eris.Wrap(err, "journal: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "journal: exec %s", pragma)
		}
	}

	j := &Journal{db: db}
	if err := j.migrate(context.Background()); err != nil {
		db.Close()
		return nil, err
	}
	return j, nil
}

const journalMigration = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	input_dir   TEXT NOT NULL,
	output_file TEXT NOT NULL,
	scanned     INTEGER NOT NULL,
	reused      INTEGER NOT NULL,
	recomputed  INTEGER NOT NULL,
	errored     INTEGER NOT NULL,
	conguagli   INTEGER NOT NULL,
	started_at  DATETIME NOT NULL,
	finished_at DATETIME NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at);
`

func (j *Journal) migrate(ctx context.Context) error {
	_, err := j.db.ExecContext(ctx, journalMigration)
	return eris.Wrap(err, "journal: migrate")
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}

// RecordRun inserts a run row and returns its generated ID.
func (j *Journal) RecordRun(ctx context.Context, run Run) (string, error) {
	if run.ID == "" {
		run.ID = uuid.New().String()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO runs (id, input_dir, output_file, scanned, reused, recomputed, errored, conguagli, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.InputDir, run.OutputFile,
		run.Scanned, run.Reused, run.Recomputed, run.Errored, run.Conguagli,
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return "", eris.Wrap(err, "journal: insert run")
	}
	return run.ID, nil
}

// ListRuns returns the most recent runs, newest first.
func (j *Journal) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, input_dir, output_file, scanned, reused, recomputed, errored, conguagli, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "journal: list runs")
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.InputDir, &r.OutputFile,
			&r.Scanned, &r.Reused, &r.Recomputed, &r.Errored, &r.Conguagli,
			&r.StartedAt, &r.FinishedAt); err != nil {
			return nil, eris.Wrap(err, "journal: scan run")
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "journal: iterate runs")
}
