package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/marcboeker/go-duckdb" // Driver

	"zipstream/internal/domain"
	"zipstream/pkg/logger"
)

const schemaSequenceSQL = `CREATE SEQUENCE IF NOT EXISTS transfer_id_seq;`
const schemaTableSQL = `
CREATE TABLE IF NOT EXISTS transfers (
    transfer_id  BIGINT PRIMARY KEY DEFAULT nextval('transfer_id_seq'),
    archive_id   VARCHAR NOT NULL,
    directory    VARCHAR,
    started_at   TIMESTAMP NOT NULL,
    duration_ms  BIGINT NOT NULL,
    bytes_sent   BIGINT NOT NULL,
    chunks_sent  BIGINT NOT NULL,
    outcome      VARCHAR NOT NULL,
    exit_code    INTEGER NOT NULL,
    message      VARCHAR
);
CREATE INDEX IF NOT EXISTS idx_transfers_started ON transfers (started_at);
CREATE INDEX IF NOT EXISTS idx_transfers_archive ON transfers (archive_id);
`

// Ledger records archive transfers in a DuckDB database. It is safe for
// concurrent use.
type Ledger struct {
	db     *sql.DB
	logger *logger.Logger
}

// Open connects to the DuckDB file at path, creating it and the schema if
// needed. An empty path opens a private in-memory database.
func Open(ctx context.Context, path string) (*Ledger, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open ledger %q: %w", path, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to ledger %q: %w", path, err)
	}
	if err := InitializeSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	l := &Ledger{
		db:     db,
		logger: logger.WithFields("component", "ledger", "path", path),
	}
	l.logger.Debug("ledger opened")
	return l, nil
}

// InitializeSchema creates the sequence, then the table and its indices.
func InitializeSchema(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, schemaSequenceSQL); err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to execute sequence setup: %w", err)
	}
	if _, err := db.ExecContext(ctx, schemaTableSQL); err != nil && !alreadyExists(err) {
		return fmt.Errorf("failed to execute table/index setup: %w", err)
	}
	return nil
}

func alreadyExists(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "already exists")
}

// Record inserts one finished transfer.
func (l *Ledger) Record(ctx context.Context, t *domain.Transfer) error {
	query := `
        INSERT INTO transfers (archive_id, directory, started_at, duration_ms, bytes_sent, chunks_sent, outcome, exit_code, message)
        VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?);
    `
	_, err := l.db.ExecContext(ctx, query,
		t.ID,
		sql.NullString{String: t.Dir, Valid: t.Dir != ""},
		t.StartTime.UTC(),
		t.Duration.Milliseconds(),
		t.Bytes,
		t.Chunks,
		string(t.Outcome),
		t.ExitCode,
		sql.NullString{String: t.Error, Valid: t.Error != ""},
	)
	if err != nil {
		return fmt.Errorf("failed to record transfer for '%s': %w", t.ID, err)
	}
	return nil
}

// List returns the most recent transfers, newest first. limit <= 0 returns
// all of them.
func (l *Ledger) List(ctx context.Context, limit int) ([]domain.Transfer, error) {
	query := `
        SELECT archive_id, directory, started_at, duration_ms, bytes_sent, chunks_sent, outcome, exit_code, message
        FROM transfers
        ORDER BY started_at DESC, transfer_id DESC
    `
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := l.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transfers: %w", err)
	}
	defer rows.Close()

	var transfers []domain.Transfer
	for rows.Next() {
		var (
			t          domain.Transfer
			dir, msg   sql.NullString
			durationMs int64
			outcome    string
		)
		if err := rows.Scan(&t.ID, &dir, &t.StartTime, &durationMs, &t.Bytes, &t.Chunks, &outcome, &t.ExitCode, &msg); err != nil {
			return nil, fmt.Errorf("failed to scan transfer row: %w", err)
		}
		t.Dir = dir.String
		t.Error = msg.String
		t.Duration = time.Duration(durationMs) * time.Millisecond
		t.Outcome = domain.Outcome(outcome)
		transfers = append(transfers, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating transfer rows: %w", err)
	}
	return transfers, nil
}

// OutcomeSummary is the per-outcome aggregate shown by the history command.
type OutcomeSummary struct {
	Outcome   domain.Outcome
	Transfers int64
	Bytes     int64
}

// Summary aggregates all recorded transfers by outcome.
func (l *Ledger) Summary(ctx context.Context) ([]OutcomeSummary, error) {
	query := `
        SELECT outcome, COUNT(*), CAST(COALESCE(SUM(bytes_sent), 0) AS BIGINT)
        FROM transfers
        GROUP BY outcome
        ORDER BY outcome;
    `
	rows, err := l.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to summarise transfers: %w", err)
	}
	defer rows.Close()

	var out []OutcomeSummary
	for rows.Next() {
		var s OutcomeSummary
		var outcome string
		if err := rows.Scan(&outcome, &s.Transfers, &s.Bytes); err != nil {
			return nil, fmt.Errorf("failed to scan summary row: %w", err)
		}
		s.Outcome = domain.Outcome(outcome)
		out = append(out, s)
	}
	return out, rows.Err()
}

func (l *Ledger) Close() error {
	return l.db.Close()
}
