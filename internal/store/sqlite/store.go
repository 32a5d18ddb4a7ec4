// Package sqlite implements the audit store: a SQLite-backed persistence
// layer for compiled-draft metadata, each run's ProgramExecEvent/
// StateEvent stream, and the "record" unit's per-node row log. It
// persists history for later inspection only — execution state itself is
// never restored from here (a Non-goal: "no persistence of program
// state across restarts").
//
// Grounded on server/dao/sqlite's shape: one *sql.DB per store, a typed
// repository per concern, schema created with CREATE TABLE IF NOT
// EXISTS on open rather than a separate migration step.
package sqlite

import (
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"

	"modernc.org/sqlite"

	"github.com/dekarrin/fiberhost/internal/hosterr"
)

// Store bundles the audit database's repositories.
type Store struct {
	dbFilename string
	db         *sql.DB

	Drafts *DraftsDB
	Runs   *RunsDB
	Rows   *RecordRowsDB
}

// NewStore opens (and, if needed, creates) the audit database under
// storageDir, initializing every repository's schema.
func NewStore(storageDir string) (*Store, error) {
	st := &Store{dbFilename: "audit.db"}

	fileName := filepath.Join(storageDir, st.dbFilename)
	db, err := sql.Open("sqlite", fileName)
	if err != nil {
		return nil, wrapDBError(err)
	}
	st.db = db

	st.Drafts = &DraftsDB{db: db}
	if err := st.Drafts.init(); err != nil {
		return nil, err
	}

	st.Runs = &RunsDB{db: db}
	if err := st.Runs.init(); err != nil {
		return nil, err
	}

	st.Rows = &RecordRowsDB{db: db}
	if err := st.Rows.init(); err != nil {
		return nil, err
	}

	return st, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// wrapDBError folds a modernc.org/sqlite constraint violation into a
// hosterr.Error of Kind Internal (this layer is an out-of-band audit
// trail; a write failure here is never recoverable mid-run, unlike a
// claim-preempted or missing-node Runtime error).
func wrapDBError(err error) error {
	if err == nil {
		return nil
	}
	var sqliteErr *sqlite.Error
	if errors.As(err, &sqliteErr) {
		return hosterr.Wrap(hosterr.Internal, fmt.Sprintf("sqlite: %s", sqlite.ErrorCodeString[sqliteErr.Code()]), err)
	}
	if errors.Is(err, sql.ErrNoRows) {
		return hosterr.Wrap(hosterr.Internal, "not found", err)
	}
	return hosterr.Wrap(hosterr.Internal, "", err)
}
