package archive

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/rgardiner/groundwork/internal/types"
)

const schema = `
CREATE TABLE IF NOT EXISTS records (
    id TEXT PRIMARY KEY,
    kind TEXT NOT NULL,
    payload TEXT NOT NULL,
    tags TEXT NOT NULL DEFAULT '[]',
    project_path TEXT NOT NULL,
    created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE INDEX IF NOT EXISTS idx_records_kind ON records(kind);
CREATE INDEX IF NOT EXISTS idx_records_project ON records(project_path);
CREATE INDEX IF NOT EXISTS idx_records_created_at ON records(created_at);

-- Full-text index over payload and tags for semantic-ish retrieval.
-- content= keeps the FTS table in sync with records via triggers below.
CREATE VIRTUAL TABLE IF NOT EXISTS records_fts USING fts5(
    payload, tags, content=records, content_rowid=rowid
);

CREATE TRIGGER IF NOT EXISTS records_ai AFTER INSERT ON records BEGIN
    INSERT INTO records_fts(rowid, payload, tags)
    VALUES (new.rowid, new.payload, new.tags);
END;
`

const defaultSearchLimit = 50

// busyRetries bounds retry on SQLITE_BUSY; WAL mode makes contention rare
// but concurrent feedback writes can still collide.
const busyRetries = 3

// SQLiteArchive implements Archive using SQLite with an FTS5 index
type SQLiteArchive struct {
	db *sql.DB
}

// Config holds archive configuration
type Config struct {
	// Path is the SQLite database file path.
	// Special value ":memory:" creates an in-memory database (useful for tests).
	Path string
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{Path: ".groundwork/archive.db"}
}

// Open creates or opens a SQLite-backed archive
func Open(cfg *Config) (*SQLiteArchive, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	path := cfg.Path
	if path == "" {
		path = DefaultConfig().Path
	}

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("failed to create archive directory: %w", err)
		}
	}

	// WAL mode for better concurrency between pipeline reads and feedback writes
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		return nil, fmt.Errorf("failed to open archive: %w", err)
	}
	if path == ":memory:" {
		// Each pooled connection would otherwise get its own empty
		// in-memory database.
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping archive: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("failed to initialize archive schema: %w", err)
	}

	return &SQLiteArchive{db: db}, nil
}

// Store appends a record. Existing records are never touched.
func (a *SQLiteArchive) Store(ctx context.Context, rec *Record) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("record is required")
	}
	if rec.Kind == "" {
		return "", fmt.Errorf("record kind is required")
	}
	if rec.ProjectPath == "" {
		return "", fmt.Errorf("record project_path is required")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}
	if rec.Payload == nil {
		rec.Payload = json.RawMessage("{}")
	}

	tags, err := json.Marshal(rec.Tags)
	if err != nil {
		return "", fmt.Errorf("failed to marshal tags: %w", err)
	}

	err = a.withBusyRetry(ctx, func() error {
		_, execErr := a.db.ExecContext(ctx,
			`INSERT INTO records (id, kind, payload, tags, project_path, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			rec.ID, string(rec.Kind), string(rec.Payload), string(tags),
			rec.ProjectPath, rec.CreatedAt)
		return execErr
	})
	if err != nil {
		return "", fmt.Errorf("%w: store failed: %v", types.ErrArchiveUnavailable, err)
	}
	return rec.ID, nil
}

// Search returns matching records newest first. Filters without a project
// path are rejected: cross-project leakage is a correctness defect, not a
// convenience tradeoff.
func (a *SQLiteArchive) Search(ctx context.Context, query string, filter Filter) ([]*Record, error) {
	if filter.ProjectPath == "" {
		return nil, fmt.Errorf("search filter requires a project path")
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}

	var (
		sb   strings.Builder
		args []interface{}
	)
	if strings.TrimSpace(query) != "" {
		sb.WriteString(`SELECT r.id, r.kind, r.payload, r.tags, r.project_path, r.created_at
			FROM records r
			JOIN records_fts f ON f.rowid = r.rowid
			WHERE records_fts MATCH ? AND r.project_path = ?`)
		args = append(args, ftsQuery(query), filter.ProjectPath)
	} else {
		sb.WriteString(`SELECT r.id, r.kind, r.payload, r.tags, r.project_path, r.created_at
			FROM records r
			WHERE r.project_path = ?`)
		args = append(args, filter.ProjectPath)
	}
	if filter.Kind != "" {
		sb.WriteString(" AND r.kind = ?")
		args = append(args, string(filter.Kind))
	}
	if filter.Tag != "" {
		// tags is a JSON array; exact-match the quoted element
		sb.WriteString(" AND r.tags LIKE ?")
		args = append(args, `%"`+filter.Tag+`"%`)
	}
	sb.WriteString(" ORDER BY r.created_at DESC LIMIT ?")
	args = append(args, limit)

	rows, err := a.db.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("%w: search failed: %v", types.ErrArchiveUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var records []*Record
	for rows.Next() {
		rec, scanErr := scanRecord(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: search iteration failed: %v", types.ErrArchiveUnavailable, err)
	}
	return records, nil
}

// Get fetches one record by ID
func (a *SQLiteArchive) Get(ctx context.Context, id string) (*Record, error) {
	row := a.db.QueryRowContext(ctx,
		`SELECT id, kind, payload, tags, project_path, created_at FROM records WHERE id = ?`, id)
	rec, err := scanRecord(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("record %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// Close releases the database handle
func (a *SQLiteArchive) Close() error {
	return a.db.Close()
}

// withBusyRetry retries a write a bounded number of times with backoff.
// Anything still failing after that is treated as archive unavailability.
func (a *SQLiteArchive) withBusyRetry(ctx context.Context, fn func() error) error {
	backoff := 50 * time.Millisecond
	var lastErr error
	for attempt := 0; attempt <= busyRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil {
			return nil
		}
		if !strings.Contains(lastErr.Error(), "database is locked") &&
			!strings.Contains(lastErr.Error(), "database table is locked") {
			return lastErr
		}
		select {
		case <-time.After(backoff):
			backoff *= 2
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return lastErr
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*Record, error) {
	var (
		rec     Record
		kind    string
		payload string
		tags    string
	)
	if err := row.Scan(&rec.ID, &kind, &payload, &tags, &rec.ProjectPath, &rec.CreatedAt); err != nil {
		return nil, err
	}
	rec.Kind = Kind(kind)
	rec.Payload = json.RawMessage(payload)
	if err := json.Unmarshal([]byte(tags), &rec.Tags); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tags for record %s: %w", rec.ID, err)
	}
	return &rec, nil
}

// ftsQuery turns free text into an OR-of-terms FTS5 query. Raw user text
// is not valid FTS syntax (quotes, hyphens, operators), so each term is
// quoted individually. OR rather than AND: retrieval wants loose recall,
// the callers re-rank.
func ftsQuery(query string) string {
	fields := strings.Fields(query)
	terms := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, `"'`)
		if f == "" {
			continue
		}
		terms = append(terms, `"`+strings.ReplaceAll(f, `"`, ``)+`"`)
	}
	if len(terms) == 0 {
		return `""`
	}
	return strings.Join(terms, " OR ")
}
