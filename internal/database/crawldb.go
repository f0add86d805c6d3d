package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nordkart/bygglovscan/internal/model"
)

// CrawlDB provides SQLite-based storage for permits and crawl runs.
//
// Design decision: We use a single database file for all runs rather
// than one file per crawl. Permits are keyed by permit id, so repeated
// crawls of overlapping regions converge on one deduplicated dataset
// instead of scattering duplicates across files.
type CrawlDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures CrawlDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging for better concurrent performance.
	// This is recommended for most use cases.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates a CrawlDB at the specified directory.
// If CreateIfNotExists is true, the directory and database file are created.
// If CreateIfNotExists is false and the database doesn't exist, an error is returned.
func Open(dbDir string, opts Options) (*CrawlDB, error) {
	dbPath := filepath.Join(dbDir, "bygglovscan.db")

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (use CreateIfNotExists option to create)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// modernc.org/sqlite uses URI-style modifiers. mode=rw prevents
	// the driver from creating a new file when one is required to exist.
	var dsn string
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	} else {
		dsn = dbPath + "?mode=rw"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer; a single connection avoids
	// SQLITE_BUSY errors during the upsert loop.
	db.SetMaxOpenConns(1)
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

// Close closes the database connection.
func (cdb *CrawlDB) Close() error {
	return cdb.db.Close()
}

// Path returns the path of the underlying database file.
func (cdb *CrawlDB) Path() string {
	return cdb.dbPath
}

// createTables creates the database schema if it doesn't exist.
func (cdb *CrawlDB) createTables() error {
	schema := `
	-- Permits store normalized permit records, one row per permit id.
	CREATE TABLE IF NOT EXISTS permits (
		permit_id TEXT PRIMARY KEY,
		property_name TEXT NOT NULL DEFAULT '',
		municipal_case_id TEXT NOT NULL DEFAULT '',
		publication_date TEXT NOT NULL DEFAULT '',
		municipality TEXT NOT NULL DEFAULT '',
		permit_type_num INTEGER NOT NULL DEFAULT -1,
		permit_type TEXT NOT NULL DEFAULT '',
		longitude REAL,
		latitude REAL,
		first_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_seen_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_permits_municipality ON permits(municipality);
	CREATE INDEX IF NOT EXISTS idx_permits_type ON permits(permit_type_num);
	CREATE INDEX IF NOT EXISTS idx_permits_pubdate ON permits(publication_date);

	-- Runs record crawl metadata for auditing and incremental coverage.
	CREATE TABLE IF NOT EXISTS runs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		region TEXT NOT NULL,
		bounding_box TEXT NOT NULL,
		cell_size REAL NOT NULL,
		window_months INTEGER NOT NULL,
		permit_types TEXT NOT NULL,
		started_at DATETIME NOT NULL,
		duration_seconds REAL NOT NULL,
		cells INTEGER NOT NULL,
		failed_cells INTEGER NOT NULL,
		reported_count INTEGER NOT NULL,
		markers INTEGER NOT NULL,
		fetched INTEGER NOT NULL,
		unique_permits INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_started ON runs(started_at);
	`

	_, err := cdb.db.ExecContext(context.Background(), schema)
	return err
}

// UpsertPermits stores normalized permits, keyed by permit id. A permit
// seen in a previous run has its fields refreshed and last_seen_at
// bumped; first_seen_at is preserved. It returns the number of permits
// that were new to the database.
func (cdb *CrawlDB) UpsertPermits(ctx context.Context, permits []model.Permit) (int, error) {
	query := `
	INSERT INTO permits (permit_id, property_name, municipal_case_id, publication_date,
		municipality, permit_type_num, permit_type, longitude, latitude)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(permit_id) DO UPDATE SET
		property_name = excluded.property_name,
		municipal_case_id = excluded.municipal_case_id,
		publication_date = excluded.publication_date,
		municipality = excluded.municipality,
		permit_type_num = excluded.permit_type_num,
		permit_type = excluded.permit_type,
		longitude = excluded.longitude,
		latitude = excluded.latitude,
		last_seen_at = CURRENT_TIMESTAMP
	`

	before, err := cdb.CountPermits(ctx)
	if err != nil {
		return 0, err
	}

	tx, err := cdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		_ = tx.Rollback()
		return 0, fmt.Errorf("failed to prepare upsert: %w", err)
	}
	defer stmt.Close() //nolint:errcheck // closed with the transaction

	for _, p := range model.Dedupe(permits) {
		if _, err := stmt.ExecContext(ctx,
			p.PermitID,
			p.PropertyName,
			p.MunicipalCaseID,
			p.PublicationDate,
			p.Municipality,
			p.PermitTypeNum,
			p.PermitType,
			nullableFloat(p.Longitude),
			nullableFloat(p.Latitude),
		); err != nil {
			_ = tx.Rollback()
			return 0, fmt.Errorf("failed to upsert permit %s: %w", p.PermitID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit permits: %w", err)
	}

	after, err := cdb.CountPermits(ctx)
	if err != nil {
		return 0, err
	}
	return after - before, nil
}

// Permits returns all stored permits ordered by permit id.
func (cdb *CrawlDB) Permits(ctx context.Context) ([]model.Permit, error) {
	query := `
	SELECT permit_id, property_name, municipal_case_id, publication_date,
		municipality, permit_type_num, permit_type, longitude, latitude
	FROM permits
	ORDER BY permit_id
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query permits: %w", err)
	}
	defer rows.Close()

	var permits []model.Permit
	for rows.Next() {
		var p model.Permit
		var lon, lat sql.NullFloat64

		if err := rows.Scan(
			&p.PermitID,
			&p.PropertyName,
			&p.MunicipalCaseID,
			&p.PublicationDate,
			&p.Municipality,
			&p.PermitTypeNum,
			&p.PermitType,
			&lon,
			&lat,
		); err != nil {
			return nil, fmt.Errorf("failed to scan permit: %w", err)
		}

		if lon.Valid {
			v := lon.Float64
			p.Longitude = &v
		}
		if lat.Valid {
			v := lat.Float64
			p.Latitude = &v
		}
		permits = append(permits, p)
	}

	return permits, rows.Err()
}

// CountPermits returns the number of stored permits.
func (cdb *CrawlDB) CountPermits(ctx context.Context) (int, error) {
	var count int
	if err := cdb.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM permits").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count permits: %w", err)
	}
	return count, nil
}

// Run is a stored crawl run record.
type Run struct {
	ID              int64
	Region          string
	BoundingBox     string
	CellSize        float64
	WindowMonths    int
	PermitTypeCodes []int
	StartedAt       time.Time
	Duration        time.Duration
	Cells           int
	FailedCells     int
	ReportedCount   int
	Markers         int
	Fetched         int
	UniquePermits   int
}

// SaveRun records the metadata of a completed crawl run.
func (cdb *CrawlDB) SaveRun(ctx context.Context, summary *model.CrawlSummary) (int64, error) {
	query := `
	INSERT INTO runs (region, bounding_box, cell_size, window_months, permit_types,
		started_at, duration_seconds, cells, failed_cells, reported_count,
		markers, fetched, unique_permits)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := cdb.db.ExecContext(ctx, query,
		summary.Region,
		summary.BoundingBox,
		summary.CellSize,
		summary.WindowMonths,
		encodeTypeCodes(summary.PermitTypeCodes),
		summary.StartedAt.UTC().Format("2006-01-02 15:04:05"),
		summary.Duration.Seconds(),
		summary.Cells,
		summary.FailedCells,
		summary.ReportedCount,
		summary.Markers,
		summary.Fetched,
		summary.UniquePermits,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}

	return result.LastInsertId()
}

// ListRuns returns all recorded runs, most recent first.
func (cdb *CrawlDB) ListRuns(ctx context.Context) ([]Run, error) {
	query := `
	SELECT id, region, bounding_box, cell_size, window_months, permit_types,
		started_at, duration_seconds, cells, failed_cells, reported_count,
		markers, fetched, unique_permits
	FROM runs
	ORDER BY started_at DESC, id DESC
	`

	rows, err := cdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var types string
		var started string
		var seconds float64

		if err := rows.Scan(
			&r.ID,
			&r.Region,
			&r.BoundingBox,
			&r.CellSize,
			&r.WindowMonths,
			&types,
			&started,
			&seconds,
			&r.Cells,
			&r.FailedCells,
			&r.ReportedCount,
			&r.Markers,
			&r.Fetched,
			&r.UniquePermits,
		); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}

		r.PermitTypeCodes = decodeTypeCodes(types)
		r.StartedAt = parseTimestamp(started)
		r.Duration = time.Duration(seconds * float64(time.Second))
		runs = append(runs, r)
	}

	return runs, rows.Err()
}

// encodeTypeCodes renders permit type codes as a comma-separated list.
func encodeTypeCodes(codes []int) string {
	parts := make([]string, len(codes))
	for i, c := range codes {
		parts[i] = strconv.Itoa(c)
	}
	return strings.Join(parts, ",")
}

// decodeTypeCodes parses a comma-separated list of permit type codes.
// Malformed entries are skipped.
func decodeTypeCodes(s string) []int {
	if s == "" {
		return nil
	}
	var codes []int
	for _, part := range strings.Split(s, ",") {
		if c, err := strconv.Atoi(strings.TrimSpace(part)); err == nil {
			codes = append(codes, c)
		}
	}
	return codes
}

// nullableFloat maps a nil coordinate to SQL NULL.
func nullableFloat(v *float64) any {
	if v == nil {
		return nil
	}
	return *v
}

// timestampFormats contains the timestamp formats that SQLite may return.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	"2006-01-02 15:04:05",     // SQLite default datetime format
	"2006-01-02T15:04:05Z",    // ISO 8601 with Z suffix
	"2006-01-02T15:04:05",     // ISO 8601 without timezone
	time.RFC3339,              // Full RFC3339 format
	time.RFC3339Nano,          // RFC3339 with nanoseconds
	"2006-01-02 15:04:05.999", // SQLite with milliseconds
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// SQLite may return timestamps in different formats depending on configuration.
// If parsing fails with all formats, returns zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
