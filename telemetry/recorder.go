// Package telemetry persists periodic MMU/TLB counter snapshots to a
// SQLite database, the same storage engine this corpus's own trace
// writer uses. Buffered snapshots are written by Flush, when a batch
// fills, or by an atexit hook; Close does not flush.
package telemetry

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"

	"github.com/rs/xid"
	"github.com/tebeka/atexit"
)

// Snapshot is one recorded moment of the address-translation core's
// counters.
type Snapshot struct {
	Cycle     uint64
	Walks     uint64
	WalkReads uint64
	Hits      uint64
	Fails     uint64
}

// Recorder buffers Snapshots and writes them to a SQLite database in
// batches, tagging every row with the run's xid so multiple runs can
// share one database file.
type Recorder struct {
	*sql.DB

	statement *sql.Stmt

	runID     string
	dbPath    string
	batchSize int
	pending   []Snapshot
}

// NewRecorder opens (or creates) the database at path and registers an
// atexit hook that flushes buffered snapshots. The hook runs only when
// the process exits through atexit.Exit; os.Exit and a return from main
// do not run it.
func NewRecorder(path string) (*Recorder, error) {
	r := &Recorder{
		runID:     xid.New().String(),
		dbPath:    path,
		batchSize: 256,
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("telemetry: opening %s: %w", path, err)
	}
	r.DB = db

	if err := r.createTable(); err != nil {
		return nil, err
	}
	if err := r.prepareStatement(); err != nil {
		return nil, err
	}

	atexit.Register(func() { _ = r.Flush() })

	return r, nil
}

// RunID returns the xid tagging every snapshot this Recorder writes.
func (r *Recorder) RunID() string { return r.runID }

func (r *Recorder) createTable() error {
	_, err := r.Exec(`
		CREATE TABLE IF NOT EXISTS snapshot
		(
			run_id     VARCHAR(20) NOT NULL,
			cycle      INTEGER NOT NULL,
			walks      INTEGER NOT NULL,
			walk_reads INTEGER NOT NULL,
			hits       INTEGER NOT NULL,
			fails      INTEGER NOT NULL
		);
	`)
	if err != nil {
		return fmt.Errorf("telemetry: creating snapshot table: %w", err)
	}

	_, err = r.Exec(`CREATE INDEX IF NOT EXISTS snapshot_run_id_index ON snapshot (run_id);`)
	if err != nil {
		return fmt.Errorf("telemetry: creating snapshot index: %w", err)
	}

	return nil
}

func (r *Recorder) prepareStatement() error {
	stmt, err := r.Prepare(
		`INSERT INTO snapshot (run_id, cycle, walks, walk_reads, hits, fails) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("telemetry: preparing insert statement: %w", err)
	}

	r.statement = stmt

	return nil
}

// Record buffers a snapshot, flushing automatically once batchSize
// snapshots have accumulated.
func (r *Recorder) Record(s Snapshot) error {
	r.pending = append(r.pending, s)
	if len(r.pending) >= r.batchSize {
		return r.Flush()
	}

	return nil
}

// Flush writes all buffered snapshots to the database in one
// transaction. It is a no-op with nothing pending.
func (r *Recorder) Flush() error {
	if len(r.pending) == 0 {
		return nil
	}

	if _, err := r.Exec("BEGIN TRANSACTION"); err != nil {
		return fmt.Errorf("telemetry: begin transaction: %w", err)
	}

	for _, s := range r.pending {
		_, err := r.statement.Exec(r.runID, s.Cycle, s.Walks, s.WalkReads, s.Hits, s.Fails)
		if err != nil {
			return fmt.Errorf("telemetry: inserting snapshot: %w", err)
		}
	}

	if _, err := r.Exec("COMMIT TRANSACTION"); err != nil {
		return fmt.Errorf("telemetry: commit transaction: %w", err)
	}

	r.pending = nil

	return nil
}

// LatestRun returns the most recently written run's final snapshot,
// used by the serve subcommand to answer a status query.
func LatestRun(db *sql.DB) (runID string, s Snapshot, err error) {
	row := db.QueryRow(`
		SELECT run_id, cycle, walks, walk_reads, hits, fails
		FROM snapshot
		ORDER BY rowid DESC
		LIMIT 1
	`)

	err = row.Scan(&runID, &s.Cycle, &s.Walks, &s.WalkReads, &s.Hits, &s.Fails)
	if err != nil {
		return "", Snapshot{}, fmt.Errorf("telemetry: reading latest run: %w", err)
	}

	return runID, s, nil
}
