package storage

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/raquelitre/Encuesta/internal/models"
)

// DB wraps the PostgreSQL connection pool
type DB struct {
	Pool        *pgxpool.Pool
	databaseURL string
}

// New creates a new database connection
func New(ctx context.Context, databaseURL string) (*DB, error) {
	config, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	// Test connection
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{Pool: pool, databaseURL: databaseURL}, nil
}

// Close closes the database connection
func (db *DB) Close() {
	db.Pool.Close()
}

// Ping verifies the database is reachable
func (db *DB) Ping(ctx context.Context) error {
	return db.Pool.Ping(ctx)
}

// Migrate runs the embedded database migrations
func (db *DB) Migrate() error {
	src, err := iofs.New(migrationFiles, "migrations/postgres")
	if err != nil {
		return fmt.Errorf("failed to open migration files: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, db.databaseURL)
	if err != nil {
		return fmt.Errorf("failed to create migrate instance: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// CreateResponse inserts a response and its detail rows in one transaction
func (db *DB) CreateResponse(ctx context.Context, resp *models.Response, options []int) error {
	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	err = tx.QueryRow(ctx,
		`INSERT INTO responses (percent, bits, user_agent, action)
		 VALUES ($1, $2, $3, $4) RETURNING id, created_at`,
		resp.Percent, resp.Bits, resp.UserAgent, string(resp.Action)).Scan(&resp.ID, &resp.CreatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert response: %w", err)
	}

	if len(options) > 0 {
		_, err = tx.Exec(ctx,
			"INSERT INTO response_details (response_id, option) VALUES "+
				detailValues(len(options), func(pos int) string { return fmt.Sprintf("$%d", pos) }),
			detailArgs(resp.ID, options)...)
		if err != nil {
			return fmt.Errorf("failed to insert response details: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit response: %w", err)
	}
	return nil
}

// GetResponse retrieves a response by ID
func (db *DB) GetResponse(ctx context.Context, id int64) (*models.Response, error) {
	var resp models.Response
	var action string
	err := db.Pool.QueryRow(ctx,
		`SELECT id, created_at, percent, bits, user_agent, action FROM responses WHERE id = $1`,
		id).Scan(&resp.ID, &resp.CreatedAt, &resp.Percent, &resp.Bits, &resp.UserAgent, &action)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get response: %w", err)
	}
	resp.Action = models.Action(action)
	return &resp, nil
}

// ListDetails retrieves the detail rows of a response ordered by option
func (db *DB) ListDetails(ctx context.Context, responseID int64) ([]models.ResponseDetail, error) {
	rows, err := db.Pool.Query(ctx,
		"SELECT id, response_id, option FROM response_details WHERE response_id = $1 ORDER BY option",
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

// Tally reads all aggregates inside one repeatable-read transaction so the
// scalar values, histogram and tallies describe the same snapshot
func (db *DB) Tally(ctx context.Context) (*models.Tally, error) {
	tx, err := db.Pool.BeginTx(ctx, pgx.TxOptions{
		IsoLevel:   pgx.RepeatableRead,
		AccessMode: pgx.ReadOnly,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to begin snapshot: %w", err)
	}
	defer tx.Rollback(ctx)

	t := newTally()
	err = tx.QueryRow(ctx, tallyScalarSQL).Scan(&t.Count, &t.MinPercent, &t.MaxPercent, &t.SumPercent)
	if err != nil {
		return nil, fmt.Errorf("failed to aggregate responses: %w", err)
	}

	if err := collectPg(ctx, tx, tallyBucketSQL, func(rows pgx.Rows) error {
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

	if err := collectPg(ctx, tx, tallyActionSQL, func(rows pgx.Rows) error {
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

	if err := collectPg(ctx, tx, tallyOptionSQL, func(rows pgx.Rows) error {
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

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to close snapshot: %w", err)
	}
	return t, nil
}

// PurgeResponses deletes every response; detail rows cascade
func (db *DB) PurgeResponses(ctx context.Context) (int64, error) {
	tag, err := db.Pool.Exec(ctx, "DELETE FROM responses")
	if err != nil {
		return 0, fmt.Errorf("failed to purge responses: %w", err)
	}
	return tag.RowsAffected(), nil
}

func collectPg(ctx context.Context, tx pgx.Tx, query string, scan func(pgx.Rows) error) error {
	rows, err := tx.Query(ctx, query)
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
