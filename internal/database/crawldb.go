package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/harvester/internal/model"
)

// FileName is the journal file name inside the data directory.
const FileName = "harvester.db"

// Run statuses stored in the runs table.
const (
	StatusRunning   = "running"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// CrawlDB is the SQLite visit journal and run history.
// It is safe for concurrent use; writes are serialized on a single
// connection because SQLite allows one writer.
type CrawlDB struct {
	db     *sql.DB
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the directory and database file if missing.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging so readers do not block the
	// crawl that is writing.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the journal in dbDir.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s", ErrDatabaseNotFound, dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a file, mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite only supports one writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	cdb := &CrawlDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := cdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return cdb, nil
}

// Path returns the database file path.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

func (cdb *CrawlDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		unit TEXT NOT NULL,
		start_url TEXT NOT NULL,
		started_at TEXT NOT NULL,
		finished_at TEXT,
		status TEXT NOT NULL,
		error TEXT,
		scheduled INTEGER DEFAULT 0,
		visited INTEGER DEFAULT 0,
		failed INTEGER DEFAULT 0,
		invalid INTEGER DEFAULT 0,
		skipped INTEGER DEFAULT 0,
		cancelled INTEGER DEFAULT 0,
		dispatched INTEGER DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_runs_unit ON runs(unit);
	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);

	CREATE TABLE IF NOT EXISTS visits (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id INTEGER NOT NULL REFERENCES runs(id),
		unit TEXT NOT NULL,
		url TEXT NOT NULL,
		final_url TEXT,
		page_type TEXT,
		status_code INTEGER,
		content_length INTEGER,
		outcome TEXT NOT NULL,
		error TEXT,
		attempts INTEGER,
		duration_ns INTEGER,
		timestamp TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_visits_run ON visits(run_id);
	CREATE INDEX IF NOT EXISTS idx_visits_url ON visits(url);
	CREATE INDEX IF NOT EXISTS idx_visits_outcome ON visits(outcome);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// RunSummary is a row of the runs table.
type RunSummary struct {
	ID         int64
	Unit       string
	StartURL   string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     string
	Error      string
	Stats      model.Stats
}

// BeginRun inserts a running row for the report's unit and stores the new
// ID in report.RunID. The returned RunJournal records visits under that run.
func (cdb *CrawlDB) BeginRun(ctx context.Context, report *model.CrawlReport) (*RunJournal, error) {
	if report == nil {
		return nil, ErrNilReport
	}

	query := `
	INSERT INTO runs (unit, start_url, started_at, status)
	VALUES (?, ?, ?, ?)
	`

	result, err := cdb.db.ExecContext(ctx, query,
		report.Unit,
		report.StartURL,
		formatTimestamp(report.StartedAt),
		StatusRunning,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to begin run: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to read run id: %w", err)
	}
	report.RunID = id

	return &RunJournal{db: cdb, runID: id}, nil
}

// SaveRun stores the final state of a run. A report with a RunID from
// BeginRun updates that row; a report without one is inserted whole.
func (cdb *CrawlDB) SaveRun(ctx context.Context, report *model.CrawlReport) error {
	if report == nil {
		return ErrNilReport
	}

	status := StatusCompleted
	errText := sql.NullString{}
	switch {
	case report.FinishedAt.IsZero():
		status = StatusRunning
	case report.Error != nil:
		status = StatusFailed
	}
	if report.Error != nil {
		errText = sql.NullString{String: report.Error.Error(), Valid: true}
	} else if report.ErrorMessage != "" {
		errText = sql.NullString{String: report.ErrorMessage, Valid: true}
		status = StatusFailed
	}

	s := report.Stats
	if report.RunID == 0 {
		query := `
		INSERT INTO runs (unit, start_url, started_at, finished_at, status, error,
			scheduled, visited, failed, invalid, skipped, cancelled, dispatched)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`
		result, err := cdb.db.ExecContext(ctx, query,
			report.Unit, report.StartURL,
			formatTimestamp(report.StartedAt), nullTimestamp(report.FinishedAt),
			status, errText,
			s.Scheduled, s.Visited, s.Failed, s.Invalid, s.Skipped, s.Cancelled, s.Dispatched,
		)
		if err != nil {
			return fmt.Errorf("failed to save run: %w", err)
		}
		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read run id: %w", err)
		}
		report.RunID = id
		return nil
	}

	query := `
	UPDATE runs SET unit = ?, start_url = ?, finished_at = ?, status = ?, error = ?,
		scheduled = ?, visited = ?, failed = ?, invalid = ?,
		skipped = ?, cancelled = ?, dispatched = ?
	WHERE id = ?
	`
	result, err := cdb.db.ExecContext(ctx, query,
		report.Unit, report.StartURL, nullTimestamp(report.FinishedAt), status, errText,
		s.Scheduled, s.Visited, s.Failed, s.Invalid, s.Skipped, s.Cancelled, s.Dispatched,
		report.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to save run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %d", ErrRunNotFound, report.RunID)
	}
	return nil
}

// RecordVisit appends a visit to the given run.
func (cdb *CrawlDB) RecordVisit(ctx context.Context, runID int64, rec model.VisitRecord) error {
	query := `
	INSERT INTO visits (run_id, unit, url, final_url, page_type, status_code,
		content_length, outcome, error, attempts, duration_ns, timestamp)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	ts := rec.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	_, err := cdb.db.ExecContext(ctx, query,
		runID,
		rec.Unit,
		rec.URL,
		rec.FinalURL,
		rec.PageType,
		rec.StatusCode,
		rec.ContentLength,
		string(rec.Outcome),
		rec.Error,
		rec.Attempts,
		int64(rec.Duration),
		formatTimestamp(ts),
	)
	if err != nil {
		return fmt.Errorf("failed to record visit: %w", err)
	}
	return nil
}

const runColumns = `id, unit, start_url, started_at, finished_at, status, error,
	scheduled, visited, failed, invalid, skipped, cancelled, dispatched`

// ListRuns returns runs newest first. An empty unit lists every unit.
func (cdb *CrawlDB) ListRuns(ctx context.Context, unit string) ([]RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE 1=1`
	args := make([]any, 0, 1)
	if unit != "" {
		query += " AND unit = ?"
		args = append(args, unit)
	}
	query += " ORDER BY started_at DESC, id DESC"

	rows, err := cdb.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// LatestRun returns the most recent run of unit, or nil if it never ran.
func (cdb *CrawlDB) LatestRun(ctx context.Context, unit string) (*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE unit = ?
	ORDER BY started_at DESC, id DESC LIMIT 1`

	run, err := scanRun(cdb.db.QueryRowContext(ctx, query, unit))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// GetRun returns one run by ID.
func (cdb *CrawlDB) GetRun(ctx context.Context, id int64) (*RunSummary, error) {
	query := `SELECT ` + runColumns + ` FROM runs WHERE id = ?`

	run, err := scanRun(cdb.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %d", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return &run, nil
}

// ListVisits returns the visits of a run in the order they were recorded.
func (cdb *CrawlDB) ListVisits(ctx context.Context, runID int64) ([]model.VisitRecord, error) {
	query := `
	SELECT unit, url, final_url, page_type, status_code, content_length,
		outcome, error, attempts, duration_ns, timestamp
	FROM visits
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := cdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to list visits: %w", err)
	}
	defer rows.Close()

	var visits []model.VisitRecord
	for rows.Next() {
		var (
			rec       model.VisitRecord
			finalURL  sql.NullString
			pageType  sql.NullString
			errText   sql.NullString
			outcome   string
			duration  int64
			timestamp string
		)
		if err := rows.Scan(
			&rec.Unit,
			&rec.URL,
			&finalURL,
			&pageType,
			&rec.StatusCode,
			&rec.ContentLength,
			&outcome,
			&errText,
			&rec.Attempts,
			&duration,
			&timestamp,
		); err != nil {
			return nil, fmt.Errorf("failed to scan visit: %w", err)
		}
		rec.FinalURL = finalURL.String
		rec.PageType = pageType.String
		rec.Error = errText.String
		rec.Outcome = model.Outcome(outcome)
		rec.Duration = time.Duration(duration)
		rec.Timestamp = parseTimestamp(timestamp)
		visits = append(visits, rec)
	}
	return visits, rows.Err()
}

// ListUnits returns every unit name that has at least one run.
func (cdb *CrawlDB) ListUnits(ctx context.Context) ([]string, error) {
	rows, err := cdb.db.QueryContext(ctx, `SELECT DISTINCT unit FROM runs ORDER BY unit`)
	if err != nil {
		return nil, fmt.Errorf("failed to list units: %w", err)
	}
	defer rows.Close()

	var units []string
	for rows.Next() {
		var unit string
		if err := rows.Scan(&unit); err != nil {
			return nil, fmt.Errorf("failed to scan unit: %w", err)
		}
		units = append(units, unit)
	}
	return units, rows.Err()
}

// rowScanner is satisfied by *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (RunSummary, error) {
	var (
		run        RunSummary
		startedAt  string
		finishedAt sql.NullString
		errText    sql.NullString
	)
	err := row.Scan(
		&run.ID,
		&run.Unit,
		&run.StartURL,
		&startedAt,
		&finishedAt,
		&run.Status,
		&errText,
		&run.Stats.Scheduled,
		&run.Stats.Visited,
		&run.Stats.Failed,
		&run.Stats.Invalid,
		&run.Stats.Skipped,
		&run.Stats.Cancelled,
		&run.Stats.Dispatched,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return run, err
	}
	if err != nil {
		return run, fmt.Errorf("failed to scan run: %w", err)
	}
	run.StartedAt = parseTimestamp(startedAt)
	if finishedAt.Valid {
		run.FinishedAt = parseTimestamp(finishedAt.String)
	}
	run.Error = errText.String
	return run, nil
}

// RunJournal records visits for one run. It satisfies crawler.Journal.
type RunJournal struct {
	db    *CrawlDB
	runID int64
}

// RunID returns the run this journal writes to.
func (j *RunJournal) RunID() int64 {
	return j.runID
}

// RecordVisit implements crawler.Journal.
func (j *RunJournal) RecordVisit(ctx context.Context, rec model.VisitRecord) error {
	return j.db.RecordVisit(ctx, j.runID, rec)
}

// Timestamps are stored as UTC RFC 3339 text so they sort lexically.
const storedTimestampFormat = "2006-01-02T15:04:05.000000000Z"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(storedTimestampFormat)
}

func nullTimestamp(t time.Time) sql.NullString {
	if t.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: formatTimestamp(t), Valid: true}
}

// timestampFormats contains the timestamp formats that may be found in the
// journal. The order matters: more specific formats come first.
var timestampFormats = []string{
	storedTimestampFormat,
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp returns the zero time when no format matches.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
