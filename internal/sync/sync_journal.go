package sync

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/openmined/foldersync/internal/db"
)

const journalSchema = `
CREATE TABLE IF NOT EXISTS sync_runs (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    pair_id TEXT NOT NULL,
    mode TEXT NOT NULL,
    started_at TEXT NOT NULL, -- RFC3339
    duration_ms INTEGER NOT NULL,
    success INTEGER NOT NULL,
    files_scanned INTEGER NOT NULL,
    files_copied INTEGER NOT NULL,
    files_updated INTEGER NOT NULL,
    errors TEXT NOT NULL -- one message per line
);

CREATE INDEX IF NOT EXISTS idx_runs_pair ON sync_runs(pair_id);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON sync_runs(started_at);
`

var ErrJournalClosed = errors.New("sync journal not open")

// SyncRun is one recorded pass.
type SyncRun struct {
	ID        int64
	PairID    string
	Mode      SyncMode
	StartedAt time.Time
	Duration  time.Duration
	Result    SyncResult
}

type dbSyncRun struct {
	ID           int64  `db:"id"`
	PairID       string `db:"pair_id"`
	Mode         string `db:"mode"`
	StartedAt    string `db:"started_at"`
	DurationMs   int64  `db:"duration_ms"`
	Success      bool   `db:"success"`
	FilesScanned int    `db:"files_scanned"`
	FilesCopied  int    `db:"files_copied"`
	FilesUpdated int    `db:"files_updated"`
	Errors       string `db:"errors"`
}

func (r *dbSyncRun) toRun() (*SyncRun, error) {
	startedAt, err := time.Parse(time.RFC3339Nano, r.StartedAt)
	if err != nil {
		return nil, fmt.Errorf("parse started_at of run %d: %w", r.ID, err)
	}
	var errs []string
	if r.Errors != "" {
		errs = strings.Split(r.Errors, "\n")
	}
	return &SyncRun{
		ID:        r.ID,
		PairID:    r.PairID,
		Mode:      SyncMode(r.Mode),
		StartedAt: startedAt,
		Duration:  time.Duration(r.DurationMs) * time.Millisecond,
		Result:    newSyncResult(r.FilesScanned, r.FilesCopied, r.FilesUpdated, errs),
	}, nil
}

// SyncJournal is the SQLite history of passes.
type SyncJournal struct {
	db     *sqlx.DB
	dbPath string
}

// NewSyncJournal returns a journal stored at dbPath. Call Open before use.
func NewSyncJournal(dbPath string) *SyncJournal {
	return &SyncJournal{dbPath: dbPath}
}

func (j *SyncJournal) Open() error {
	if j.db != nil {
		return fmt.Errorf("sync journal already open")
	}

	conn, err := db.NewSqliteDB(db.WithPath(j.dbPath), db.WithMaxOpenConns(1))
	if err != nil {
		return fmt.Errorf("failed to open sync journal: %w", err)
	}
	if _, err := conn.Exec(journalSchema); err != nil {
		conn.Close()
		return fmt.Errorf("failed to initialize journal schema: %w", err)
	}

	j.db = conn
	return nil
}

func (j *SyncJournal) Close() error {
	if j.db == nil {
		return ErrJournalClosed
	}
	err := j.db.Close()
	j.db = nil
	if err != nil {
		slog.Error("failed to close sync journal", "error", err)
		return err
	}
	return nil
}

// Record stores run and returns its id.
func (j *SyncJournal) Record(run *SyncRun) (int64, error) {
	if j.db == nil {
		return 0, ErrJournalClosed
	}
	if run == nil {
		return 0, fmt.Errorf("cannot record nil run")
	}

	row := dbSyncRun{
		PairID:       run.PairID,
		Mode:         string(run.Mode),
		StartedAt:    run.StartedAt.UTC().Format(time.RFC3339Nano),
		DurationMs:   run.Duration.Milliseconds(),
		Success:      run.Result.Success,
		FilesScanned: run.Result.FilesScanned,
		FilesCopied:  run.Result.FilesCopied,
		FilesUpdated: run.Result.FilesUpdated,
		Errors:       strings.Join(run.Result.Errors, "\n"),
	}

	query := `INSERT INTO sync_runs
	          (pair_id, mode, started_at, duration_ms, success, files_scanned, files_copied, files_updated, errors)
	          VALUES (:pair_id, :mode, :started_at, :duration_ms, :success, :files_scanned, :files_copied, :files_updated, :errors)`
	res, err := j.db.NamedExec(query, row)
	if err != nil {
		return 0, fmt.Errorf("failed to record run for pair %s: %w", run.PairID, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to read run id: %w", err)
	}
	run.ID = id
	slog.Debug("sync journal record", "id", id, "pair", run.PairID, "success", run.Result.Success)
	return id, nil
}

// Recent returns the latest runs, newest first. An empty pairID selects every pair.
func (j *SyncJournal) Recent(pairID string, limit int) ([]*SyncRun, error) {
	if j.db == nil {
		return nil, ErrJournalClosed
	}
	if limit <= 0 {
		limit = 20
	}

	var rows []dbSyncRun
	var err error
	const columns = "id, pair_id, mode, started_at, duration_ms, success, files_scanned, files_copied, files_updated, errors"
	if pairID == "" {
		err = j.db.Select(&rows, "SELECT "+columns+" FROM sync_runs ORDER BY id DESC LIMIT ?", limit)
	} else {
		err = j.db.Select(&rows, "SELECT "+columns+" FROM sync_runs WHERE pair_id = ? ORDER BY id DESC LIMIT ?", pairID, limit)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}

	runs := make([]*SyncRun, 0, len(rows))
	for i := range rows {
		run, err := rows[i].toRun()
		if err != nil {
			slog.Error("skipping corrupt journal row", "error", err)
			continue
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (j *SyncJournal) Count() (int, error) {
	if j.db == nil {
		return 0, ErrJournalClosed
	}
	var count int
	if err := j.db.Get(&count, "SELECT COUNT(*) FROM sync_runs"); err != nil {
		return 0, fmt.Errorf("failed to count runs: %w", err)
	}
	return count, nil
}

// DeletePair removes the history of a pair.
func (j *SyncJournal) DeletePair(pairID string) error {
	if j.db == nil {
		return ErrJournalClosed
	}
	if _, err := j.db.Exec("DELETE FROM sync_runs WHERE pair_id = ?", pairID); err != nil {
		return fmt.Errorf("failed to delete runs of pair %s: %w", pairID, err)
	}
	return nil
}
