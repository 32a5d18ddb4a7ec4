package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/dekarrin/fiberhost/internal/runtime"
)

// EventRecord is one persisted ProgramExecEvent, tagged with the run and
// draft it belongs to and the order it was observed in.
type EventRecord struct {
	RunID           uuid.UUID
	DraftID         uuid.UUID
	Seq             int
	Errors          []string
	Location        json.RawMessage
	Stopped         bool
	Terminated      bool
	StateTerminated bool
	RecordedAt      time.Time
}

// RunsDB persists the ProgramExecEvent/StateEvent stream of each run
// for later inspection: location, errors, stopped, terminated,
// state_terminated. This is an audit trail only; nothing here is read
// back to resume a running program.
type RunsDB struct {
	db *sql.DB
}

func (repo *RunsDB) init() error {
	stmt := `CREATE TABLE IF NOT EXISTS run_events (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id TEXT NOT NULL,
		draft_id TEXT NOT NULL,
		seq INTEGER NOT NULL,
		errors TEXT NOT NULL,
		location TEXT NOT NULL,
		stopped INTEGER NOT NULL,
		terminated INTEGER NOT NULL,
		state_terminated INTEGER NOT NULL,
		recorded_at INTEGER NOT NULL
	);`
	_, err := repo.db.Exec(stmt)
	return wrapDBError(err)
}

// AppendEvent records one step of a run's execution stream.
func (repo *RunsDB) AppendEvent(ctx context.Context, runID, draftID uuid.UUID, seq int, ev runtime.ProgramExecEvent) error {
	errMsgs := make([]string, len(ev.Errors))
	for i, e := range ev.Errors {
		errMsgs[i] = e.Error()
	}
	errData, err := json.Marshal(errMsgs)
	if err != nil {
		return wrapDBError(err)
	}

	locData, err := json.Marshal(exportLocation(ev.Location))
	if err != nil {
		return wrapDBError(err)
	}

	stmt, err := repo.db.Prepare(`
		INSERT INTO run_events (run_id, draft_id, seq, errors, location, stopped, terminated, state_terminated, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return wrapDBError(err)
	}

	_, err = stmt.ExecContext(ctx, runID.String(), draftID.String(), seq, string(errData), string(locData),
		boolToInt(ev.Stopped), boolToInt(ev.Terminated), boolToInt(ev.StateTerminated), time.Now().Unix())
	return wrapDBError(err)
}

// GetEvents returns every event recorded for runID, in the order they
// were appended.
func (repo *RunsDB) GetEvents(ctx context.Context, runID uuid.UUID) ([]EventRecord, error) {
	rows, err := repo.db.QueryContext(ctx, `
		SELECT run_id, draft_id, seq, errors, location, stopped, terminated, state_terminated, recorded_at
		FROM run_events WHERE run_id = ? ORDER BY seq ASC
	`, runID.String())
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var out []EventRecord
	for rows.Next() {
		var rec EventRecord
		var runIDStr, draftIDStr, errData string
		var loc string
		var stopped, terminated, stateTerminated int
		var recordedAt int64

		if err := rows.Scan(&runIDStr, &draftIDStr, &rec.Seq, &errData, &loc, &stopped, &terminated, &stateTerminated, &recordedAt); err != nil {
			return nil, wrapDBError(err)
		}

		rec.RunID, err = uuid.Parse(runIDStr)
		if err != nil {
			return nil, wrapDBError(err)
		}
		rec.DraftID, err = uuid.Parse(draftIDStr)
		if err != nil {
			return nil, wrapDBError(err)
		}
		if err := json.Unmarshal([]byte(errData), &rec.Errors); err != nil {
			return nil, wrapDBError(err)
		}
		rec.Location = json.RawMessage(loc)
		rec.Stopped = stopped != 0
		rec.Terminated = terminated != 0
		rec.StateTerminated = stateTerminated != 0
		rec.RecordedAt = time.Unix(recordedAt, 0)

		out = append(out, rec)
	}
	return out, wrapDBError(rows.Err())
}

// exportLocation renders loc through its Export method when it exposes
// one (state.Location and runtime.StateProgramLocation both do), falling
// back to the raw value for anything else.
func exportLocation(loc interface{}) interface{} {
	if loc == nil {
		return nil
	}
	if exporter, ok := loc.(interface{ Export() interface{} }); ok {
		return exporter.Export()
	}
	return loc
}
