// Package archive persists terminal job snapshots to SQLite so history
// survives the in-memory registry's retention window.
package archive

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/config"
	"github.com/danwin47-sys/paddleocr-toolkit-sub000/internal/job"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is the current schema version. Bump this when the schema changes.
const schemaVersion = 1

// ErrSchemaMismatch indicates the database schema version doesn't match the expected version.
var ErrSchemaMismatch = errors.New("schema version mismatch")

// Store manages history persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

// Open initializes or connects to the history database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	db, err := sql.Open("sqlite", cfg.Archive.Path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: cfg.Archive.Path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}

	return store, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}

	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	err = s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version != schemaVersion {
		return fmt.Errorf("%w: database has version %d, expected %d (delete %s to rebuild)",
			ErrSchemaMismatch, version, schemaVersion, s.path)
	}
	return nil
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}

// Record is one archived terminal snapshot.
type Record struct {
	ID               string
	BatchID          string
	CallerID         string
	Source           string
	Mode             string
	Priority         string
	Status           job.Status
	Fingerprint      string
	ContentSize      int64
	Languages        []string
	Attempts         int
	CacheHit         bool
	ResultSuppressed bool
	ErrorMessage     string
	PlainText        string
	Confidence       float64
	CreatedAt        time.Time
	StartedAt        *time.Time
	FinishedAt       time.Time
}

// Append stores one terminal snapshot. Re-archiving the same job id replaces
// the previous row, so redelivery is harmless. Suppressed results are archived
// without their text.
func (s *Store) Append(ctx context.Context, j *job.Job) error {
	if j == nil {
		return errors.New("job is nil")
	}
	if !j.Status.IsTerminal() {
		return fmt.Errorf("job %s is not terminal (%s)", j.ID, j.Status)
	}

	var plainText string
	var confidence float64
	if j.Result != nil && !j.ResultSuppressed {
		plainText = j.Result.PlainText
		confidence = j.Result.Confidence
	}
	finishedAt := j.UpdatedAt
	if j.FinishedAt != nil {
		finishedAt = *j.FinishedAt
	}

	_, err := s.db.ExecContext(
		ctx,
		`INSERT OR REPLACE INTO archived_jobs (
            id, batch_id, caller_id, source, mode, priority, status,
            fingerprint, content_size, languages, attempts, cache_hit,
            result_suppressed, error_message, plain_text, confidence,
            created_at, started_at, finished_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		j.ID,
		nullableString(j.BatchID),
		nullableString(j.CallerID),
		nullableString(j.Source),
		string(j.Mode),
		string(j.Priority),
		string(j.Status),
		nullableString(j.Fingerprint),
		j.ContentSize,
		nullableString(strings.Join(j.Languages, ",")),
		j.Attempts,
		boolToInt(j.CacheHit),
		boolToInt(j.ResultSuppressed),
		nullableString(j.ErrorMessage),
		nullableString(plainText),
		confidence,
		j.CreatedAt.UTC().Format(time.RFC3339Nano),
		nullableTime(j.StartedAt),
		finishedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert archived job: %w", err)
	}
	return nil
}

// GetByID fetches one archived snapshot, or nil when the id is unknown.
func (s *Store) GetByID(ctx context.Context, id string) (*Record, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+recordColumns+` FROM archived_jobs WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get archived job: %w", err)
	}
	return record, nil
}

// HistoryFilter narrows History queries. Zero values mean no constraint.
type HistoryFilter struct {
	Status   job.Status
	BatchID  string
	CallerID string
	Limit    int
}

// History returns archived snapshots newest first.
func (s *Store) History(ctx context.Context, filter HistoryFilter) ([]*Record, error) {
	query := `SELECT ` + recordColumns + ` FROM archived_jobs`
	var clauses []string
	var args []any
	if filter.Status != "" {
		clauses = append(clauses, "status = ?")
		args = append(args, string(filter.Status))
	}
	if filter.BatchID != "" {
		clauses = append(clauses, "batch_id = ?")
		args = append(args, filter.BatchID)
	}
	if filter.CallerID != "" {
		clauses = append(clauses, "caller_id = ?")
		args = append(args, filter.CallerID)
	}
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY finished_at DESC`
	if filter.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query history: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Prune deletes snapshots that finished before the cutoff.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(
		ctx,
		`DELETE FROM archived_jobs WHERE finished_at < ?`,
		cutoff.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, fmt.Errorf("prune archived jobs: %w", err)
	}
	return res.RowsAffected()
}

// Count returns the number of archived snapshots.
func (s *Store) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM archived_jobs`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count archived jobs: %w", err)
	}
	return count, nil
}

const recordColumns = "id, batch_id, caller_id, source, mode, priority, status, fingerprint, content_size, languages, attempts, cache_hit, result_suppressed, error_message, plain_text, confidence, created_at, started_at, finished_at"

func scanRecord(scanner interface{ Scan(dest ...any) error }) (*Record, error) {
	var (
		id           string
		batchID      sql.NullString
		callerID     sql.NullString
		source       sql.NullString
		mode         string
		priority     string
		statusStr    string
		fingerprint  sql.NullString
		contentSize  int64
		languages    sql.NullString
		attempts     int
		cacheHit     sql.NullInt64
		suppressed   sql.NullInt64
		errorMessage sql.NullString
		plainText    sql.NullString
		confidence   sql.NullFloat64
		createdRaw   string
		startedRaw   sql.NullString
		finishedRaw  string
	)

	if err := scanner.Scan(
		&id,
		&batchID,
		&callerID,
		&source,
		&mode,
		&priority,
		&statusStr,
		&fingerprint,
		&contentSize,
		&languages,
		&attempts,
		&cacheHit,
		&suppressed,
		&errorMessage,
		&plainText,
		&confidence,
		&createdRaw,
		&startedRaw,
		&finishedRaw,
	); err != nil {
		return nil, err
	}

	record := &Record{
		ID:           id,
		BatchID:      batchID.String,
		CallerID:     callerID.String,
		Source:       source.String,
		Mode:         mode,
		Priority:     priority,
		Status:       job.Status(statusStr),
		Fingerprint:  fingerprint.String,
		ContentSize:  contentSize,
		Attempts:     attempts,
		ErrorMessage: errorMessage.String,
		PlainText:    plainText.String,
		Confidence:   confidence.Float64,
	}
	if languages.Valid && languages.String != "" {
		record.Languages = strings.Split(languages.String, ",")
	}
	if cacheHit.Valid {
		record.CacheHit = cacheHit.Int64 != 0
	}
	if suppressed.Valid {
		record.ResultSuppressed = suppressed.Int64 != 0
	}

	if created, err := parseTimeString(createdRaw); err == nil {
		record.CreatedAt = created
	}
	if startedRaw.Valid {
		if started, err := parseTimeString(startedRaw.String); err == nil {
			record.StartedAt = &started
		}
	}
	if finished, err := parseTimeString(finishedRaw); err == nil {
		record.FinishedAt = finished
	}
	return record, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(time.RFC3339Nano)
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
