// Package sqlengine wraps the in-process SQL engine the chain builder
// uses to hold one partition's rows in memory, indexed by id, and to
// export the final chunk join. modernc.org/sqlite keeps the engine
// pure Go, so worker binaries cross-compile without a C toolchain.
package sqlengine

import (
	"database/sql"
	"encoding/json"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/oniz93/business-finder/errkind"
	"github.com/oniz93/business-finder/record"
)

// Engine holds one partition's rows (`M(id, parent_id, ...)` per section
// 4.9) in an in-memory SQLite database.
type Engine struct {
	db *sql.DB
}

// Open creates a fresh in-memory engine. cacheBytes approximates the
// "memory limit for the in-process engine ... 90% of system RAM" rule
// via SQLite's page cache size (negative cache_size is interpreted by
// SQLite as a KiB budget rather than a page count).
func Open(cacheBytes int64) (*Engine, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: open sql engine: %v", errkind.ErrInternal, err)
	}
	db.SetMaxOpenConns(1) // a single in-memory connection; SQLite is not meant for concurrent writers here

	cacheKB := -(cacheBytes / 1024)
	if _, err := db.Exec(fmt.Sprintf("PRAGMA cache_size = %d", cacheKB)); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: set cache size: %v", errkind.ErrInternal, err)
	}

	if _, err := db.Exec(`CREATE TABLE m (
		id TEXT PRIMARY KEY,
		parent_id TEXT,
		classified_positive INTEGER NOT NULL,
		payload TEXT NOT NULL
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create table: %v", errkind.ErrInternal, err)
	}
	if _, err := db.Exec(`CREATE INDEX idx_m_id ON m(id)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%w: create index: %v", errkind.ErrInternal, err)
	}

	return &Engine{db: db}, nil
}

// Close releases the in-memory database.
func (e *Engine) Close() error {
	return e.db.Close()
}

// Load inserts every row of a partition into the table M.
func (e *Engine) Load(rows []record.Record) error {
	tx, err := e.db.Begin()
	if err != nil {
		return fmt.Errorf("%w: begin load transaction: %v", errkind.ErrInternal, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO m (id, parent_id, classified_positive, payload) VALUES (?, ?, ?, ?)`)
	if err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("%w: prepare insert: %v", errkind.ErrInternal, err)
	}
	defer func() { _ = stmt.Close() }()

	for _, r := range rows {
		payload, err := json.Marshal(r)
		if err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: marshal row %s: %v", errkind.ErrSerialization, r.ID, err)
		}
		classified := 0
		if r.ClassifiedPositive {
			classified = 1
		}
		if _, err := stmt.Exec(r.ID, record.ParseParentID(r.ParentID), classified, string(payload)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("%w: insert row %s: %v", errkind.ErrInternal, r.ID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%w: commit load transaction: %v", errkind.ErrInternal, err)
	}
	return nil
}

// ParentOf looks up a row's resolved parent id by its own id. found is
// false if no row with that id exists in this partition.
func (e *Engine) ParentOf(id string) (parentID string, found bool, err error) {
	var pid sql.NullString
	err = e.db.QueryRow(`SELECT parent_id FROM m WHERE id = ?`, id).Scan(&pid)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("%w: lookup parent of %s: %v", errkind.ErrInternal, id, err)
	}
	return pid.String, true, nil
}

// CountCandidates returns the number of rows with classified_positive=true.
func (e *Engine) CountCandidates() (int, error) {
	var n int
	if err := e.db.QueryRow(`SELECT COUNT(*) FROM m WHERE classified_positive = 1`).Scan(&n); err != nil {
		return 0, fmt.Errorf("%w: count candidates: %v", errkind.ErrInternal, err)
	}
	return n, nil
}

// CandidateIDsChunk returns up to `limit` candidate ids starting at
// `offset`, ordered by id for deterministic chunking.
func (e *Engine) CandidateIDsChunk(limit, offset int) ([]string, error) {
	rows, err := e.db.Query(`SELECT id FROM m WHERE classified_positive = 1 ORDER BY id LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("%w: query candidate chunk: %v", errkind.ErrInternal, err)
	}
	defer func() { _ = rows.Close() }()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: scan candidate id: %v", errkind.ErrInternal, err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// ExportValid materializes validIDs into a temp table and returns the
// join `SELECT m.* FROM m JOIN valid v ON m.id = v.id WHERE
// m.classified_positive`, decoded back into Records.
func (e *Engine) ExportValid(validIDs []string) ([]record.Record, error) {
	if len(validIDs) == 0 {
		return nil, nil
	}
	tx, err := e.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("%w: begin export transaction: %v", errkind.ErrInternal, err)
	}
	if _, err := tx.Exec(`CREATE TEMP TABLE valid (id TEXT PRIMARY KEY)`); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: create temp table: %v", errkind.ErrInternal, err)
	}
	stmt, err := tx.Prepare(`INSERT INTO valid (id) VALUES (?)`)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: prepare temp insert: %v", errkind.ErrInternal, err)
	}
	for _, id := range validIDs {
		if _, err := stmt.Exec(id); err != nil {
			_ = stmt.Close()
			_ = tx.Rollback()
			return nil, fmt.Errorf("%w: insert temp id %s: %v", errkind.ErrInternal, id, err)
		}
	}
	_ = stmt.Close()

	rows, err := tx.Query(`SELECT m.payload FROM m JOIN valid v ON m.id = v.id WHERE m.classified_positive = 1`)
	if err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: query export join: %v", errkind.ErrInternal, err)
	}
	var out []record.Record
	for rows.Next() {
		var payload string
		if err := rows.Scan(&payload); err != nil {
			_ = rows.Close()
			_ = tx.Rollback()
			return nil, fmt.Errorf("%w: scan export payload: %v", errkind.ErrInternal, err)
		}
		var r record.Record
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			_ = rows.Close()
			_ = tx.Rollback()
			return nil, fmt.Errorf("%w: unmarshal exported row: %v", errkind.ErrSerialization, err)
		}
		out = append(out, r)
	}
	_ = rows.Close()

	if _, err := tx.Exec(`DROP TABLE valid`); err != nil {
		_ = tx.Rollback()
		return nil, fmt.Errorf("%w: drop temp table: %v", errkind.ErrInternal, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit export transaction: %v", errkind.ErrInternal, err)
	}
	return out, nil
}
