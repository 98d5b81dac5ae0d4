package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "github.com/mattn/go-sqlite3"

	"github.com/raquelitre/Encuesta/internal/models"
)

// SQLiteDB wraps an embedded SQLite connection
type SQLiteDB struct {
	Conn *sql.DB
}

// NewSQLite opens a SQLite database. path may be a file path or ":memory:".
// The connection pool is limited to a single connection, which serializes
// writers and keeps in-memory databases alive.
func NewSQLite(path string) (*SQLiteDB, error) {
	if path != ":memory:" && !strings.HasPrefix(path, "file:") {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	// Test connection
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &SQLiteDB{Conn: conn}, nil
}

// sqliteDSN enables foreign keys (off by default in SQLite) so detail rows
// cascade with their response
func sqliteDSN(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_foreign_keys=on&_busy_timeout=5000"
}

// Close closes the database connection
func (db *SQLiteDB) Close() {
	db.Conn.Close()
}

// Ping verifies the database is reachable
func (db *SQLiteDB) Ping(ctx context.Context) error {
	return db.Conn.PingContext(ctx)
}

// Migrate runs the embedded database migrations
func (db *SQLiteDB) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations/sqlite")
	if err != nil {
		return fmt.Errorf("failed to open migration files: %w", err)
	}

	driver, err := sqlite3.WithInstance(db.Conn, &sqlite3.Config{})
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create database driver: %w", err)
	}

	// Not closed: closing the migrate instance would close db.Conn
	m, err := migrate.NewWithInstance("iofs", src, "sqlite3", driver)
	if err != nil {
		src.Close()
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateResponse inserts a response and its detail rows in one transaction
func (db *SQLiteDB) CreateResponse(ctx context.Context, resp *models.Response, options []int) error {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	createdAt := time.Now().UTC()
	res, err := tx.ExecContext(ctx,
		`INSERT INTO responses (created_at, percent, bits, user_agent, action)
		 VALUES (?, ?, ?, ?, ?)`,
		createdAt, resp.Percent, resp.Bits, resp.UserAgent, string(resp.Action))
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("failed to read response id: %w", err)
	}

	if len(options) > 0 {
		_, err = tx.ExecContext(ctx,
			"INSERT INTO response_details (response_id, option) VALUES "+
				detailValues(len(options), func(int) string { return "?" }),
			detailArgs(id, options)...)
		if err != nil {
			return fmt.Errorf("failed to insert response details: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit response: %w", err)
	}

	resp.ID = id
	resp.CreatedAt = createdAt
	return nil
}

// GetResponse retrieves a response by ID
func (db *SQLiteDB) GetResponse(ctx context.Context, id int64) (*models.Response, error) {
	var resp models.Response
	var action string
	err := db.Conn.QueryRowContext(ctx,
		"SELECT id, created_at, percent, bits, user_agent, action FROM responses WHERE id = ?",
		id).Scan(&resp.ID, &resp.CreatedAt, &resp.Percent, &resp.Bits, &resp.UserAgent, &action)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	resp.Action = models.Action(action)
	return &resp, nil
}

// ListDetails retrieves the detail rows of a response ordered by option
func (db *SQLiteDB) ListDetails(ctx context.Context, responseID int64) ([]models.ResponseDetail, error) {
	rows, err := db.Conn.QueryContext(ctx,
		"SELECT id, response_id, option FROM response_details WHERE response_id = ? ORDER BY option",
		responseID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var details []models.ResponseDetail
	for rows.Next() {
		var d models.ResponseDetail
		if err := rows.Scan(&d.ID, &d.ResponseID, &d.Option); err != nil {
			return nil, err
		}
		details = append(details, d)
	}
	return details, rows.Err()
}

// Tally reads all aggregates inside one read transaction
func (db *SQLiteDB) Tally(ctx context.Context) (*models.Tally, error) {
	tx, err := db.Conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback()

	t := newTally()
	err = tx.QueryRowContext(ctx, tallyScalarSQL).Scan(&t.Count, &t.MinPercent, &t.MaxPercent, &t.SumPercent)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate responses: %w", err)
	}

	if err := collectSQL(ctx, tx, tallyBucketSQL, func(rows *sql.Rows) error {
		var bucket int
		var n int64
		if err := rows.Scan(&bucket, &n); err != nil {
			return err
		}
		t.Buckets[bucket] = n
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to bucket responses: %w", err)
	}

	if err := collectSQL(ctx, tx, tallyActionSQL, func(rows *sql.Rows) error {
		var action string
		var n int64
		if err := rows.Scan(&action, &n); err != nil {
			return err
		}
		t.Actions[action] = n
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to count actions: %w", err)
	}

	if err := collectSQL(ctx, tx, tallyOptionSQL, func(rows *sql.Rows) error {
		var option int
		var n int64
		if err := rows.Scan(&option, &n); err != nil {
			return err
		}
		t.Options[option] = n
		return nil
	}); err != nil {
		return nil, fmt.Errorf("failed to count options: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to close snapshot: %w", err)
	}
	return t, nil
}

// PurgeResponses deletes every response; detail rows cascade
func (db *SQLiteDB) PurgeResponses(ctx context.Context) (int64, error) {
	res, err := db.Conn.ExecContext(ctx, "DELETE FROM responses")
	if err != nil {
		return 0, fmt.Errorf("failed to purge responses: %w", err)
	}
	return res.RowsAffected()
}

func collectSQL(ctx context.Context, tx *sql.Tx, query string, scan func(*sql.Rows) error) error {
	rows, err := tx.QueryContext(ctx, query)
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		if err := scan(rows); err != nil {
			return err
		}
	}
	return rows.Err()
}
