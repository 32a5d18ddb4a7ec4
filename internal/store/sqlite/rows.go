package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/dekarrin/fiberhost/internal/node"
	"github.com/dekarrin/fiberhost/internal/units/record"
)

// jsonNodeValue is node.Value's on-disk JSON shape.
type jsonNodeValue struct {
	Numeric float64 `json:"numeric"`
	Unit    string  `json:"unit"`
	Boolean bool    `json:"boolean"`
	Enum    string  `json:"enum"`
	Settled bool    `json:"settled"`
}

func toJSONNodeValue(v node.Value) jsonNodeValue {
	return jsonNodeValue{Numeric: v.Numeric, Unit: v.Unit, Boolean: v.Boolean, Enum: v.Enum, Settled: v.Settled}
}

// RecordRow is one persisted row written by the "record" unit.
type RecordRow struct {
	ID         int64
	Name       string
	Fields     map[string]jsonNodeValue
	RecordedAt time.Time
}

// RecordRowsDB is the concrete record.Sink the "record" unit writes
// through: every watched node change becomes one append-only row here,
// replacing the original pr1_record runner's accumulate-then-flush-one-
// file-on-close behavior (see DESIGN.md for rationale).
type RecordRowsDB struct {
	db *sql.DB
}

func (repo *RecordRowsDB) init() error {
	stmt := `CREATE TABLE IF NOT EXISTS record_rows (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		name TEXT NOT NULL,
		fields TEXT NOT NULL,
		recorded_at INTEGER NOT NULL
	);`
	_, err := repo.db.Exec(stmt)
	return wrapDBError(err)
}

// WriteRow implements record.Sink.
func (repo *RecordRowsDB) WriteRow(ctx context.Context, name string, row map[string]node.Value) error {
	fields := make(map[string]jsonNodeValue, len(row))
	for path, v := range row {
		fields[path] = toJSONNodeValue(v)
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return wrapDBError(err)
	}

	stmt, err := repo.db.Prepare(`INSERT INTO record_rows (name, fields, recorded_at) VALUES (?, ?, ?)`)
	if err != nil {
		return wrapDBError(err)
	}

	_, err = stmt.ExecContext(ctx, name, string(data), time.Now().Unix())
	return wrapDBError(err)
}

// GetByName returns every row recorded under name, oldest first.
func (repo *RecordRowsDB) GetByName(ctx context.Context, name string) ([]RecordRow, error) {
	rows, err := repo.db.QueryContext(ctx, `SELECT id, name, fields, recorded_at FROM record_rows WHERE name = ? ORDER BY id ASC`, name)
	if err != nil {
		return nil, wrapDBError(err)
	}
	defer rows.Close()

	var out []RecordRow
	for rows.Next() {
		var rec RecordRow
		var fieldsData string
		var recordedAt int64

		if err := rows.Scan(&rec.ID, &rec.Name, &fieldsData, &recordedAt); err != nil {
			return nil, wrapDBError(err)
		}
		if err := json.Unmarshal([]byte(fieldsData), &rec.Fields); err != nil {
			return nil, wrapDBError(err)
		}
		rec.RecordedAt = time.Unix(recordedAt, 0)
		out = append(out, rec)
	}
	return out, wrapDBError(rows.Err())
}

var _ record.Sink = (*RecordRowsDB)(nil)
