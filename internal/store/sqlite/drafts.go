package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
)

// DraftRecord is one compiled draft's persisted metadata.
type DraftRecord struct {
	DraftID         uuid.UUID
	Name            string
	EntryDocumentID string
	Valid           bool
	CompiledAt      time.Time
}

// DraftsDB persists compiled-draft metadata — the compilation result
// minus the full analysis/protocol bodies, which live only in the live
// compile response.
type DraftsDB struct {
	db *sql.DB
}

func (repo *DraftsDB) init() error {
	stmt := `CREATE TABLE IF NOT EXISTS drafts (
		id TEXT NOT NULL PRIMARY KEY,
		name TEXT NOT NULL,
		entry_document_id TEXT NOT NULL,
		valid INTEGER NOT NULL,
		compiled_at INTEGER NOT NULL
	);`
	_, err := repo.db.Exec(stmt)
	return wrapDBError(err)
}

// RecordCompilation upserts the metadata of a draft's most recent
// compile.
func (repo *DraftsDB) RecordCompilation(ctx context.Context, rec DraftRecord) error {
	stmt, err := repo.db.Prepare(`
		INSERT INTO drafts (id, name, entry_document_id, valid, compiled_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name=excluded.name,
			entry_document_id=excluded.entry_document_id,
			valid=excluded.valid,
			compiled_at=excluded.compiled_at
	`)
	if err != nil {
		return wrapDBError(err)
	}

	_, err = stmt.ExecContext(ctx, rec.DraftID.String(), rec.Name, rec.EntryDocumentID, boolToInt(rec.Valid), rec.CompiledAt.Unix())
	return wrapDBError(err)
}

// GetByID retrieves a draft's most recently recorded compile metadata.
func (repo *DraftsDB) GetByID(ctx context.Context, id uuid.UUID) (DraftRecord, error) {
	row := repo.db.QueryRowContext(ctx, `SELECT id, name, entry_document_id, valid, compiled_at FROM drafts WHERE id = ?`, id.String())

	var rec DraftRecord
	var idStr string
	var valid int
	var compiledAt int64
	if err := row.Scan(&idStr, &rec.Name, &rec.EntryDocumentID, &valid, &compiledAt); err != nil {
		return DraftRecord{}, wrapDBError(err)
	}

	parsed, err := uuid.Parse(idStr)
	if err != nil {
		return DraftRecord{}, wrapDBError(err)
	}
	rec.DraftID = parsed
	rec.Valid = valid != 0
	rec.CompiledAt = time.Unix(compiledAt, 0)
	return rec, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
