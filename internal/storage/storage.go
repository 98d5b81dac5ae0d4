package storage

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"

	"github.com/raquelitre/Encuesta/internal/config"
	"github.com/raquelitre/Encuesta/internal/models"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationFiles embed.FS

// ErrNotFound is returned when a requested row does not exist
var ErrNotFound = errors.New("not found")

// Store is the durable store used by the services. Implementations must
// write a response and all of its detail rows in one transaction and must
// read a Tally from one consistent snapshot.
type Store interface {
	// CreateResponse inserts resp and one detail row per option atomically.
	// ID and CreatedAt are assigned by the store and set on resp.
	CreateResponse(ctx context.Context, resp *models.Response, options []int) error
	GetResponse(ctx context.Context, id int64) (*models.Response, error)
	ListDetails(ctx context.Context, responseID int64) ([]models.ResponseDetail, error)
	Tally(ctx context.Context) (*models.Tally, error)
	PurgeResponses(ctx context.Context) (int64, error)
	Migrate() error
	Ping(ctx context.Context) error
	Close()
}

// Open connects to the store selected by the database config
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	switch cfg.Driver {
	case "postgres":
		return New(ctx, cfg.DSN())
	case "sqlite":
		return NewSQLite(cfg.DSN())
	default:
		return nil, fmt.Errorf("unknown database driver: %s", cfg.Driver)
	}
}

// detailValues renders the VALUES list of a multi-row detail insert.
// placeholder returns the bind marker for the 1-based argument position.
func detailValues(n int, placeholder func(pos int) string) string {
	rows := make([]string, 0, n)
	for i := 0; i < n; i++ {
		rows = append(rows, fmt.Sprintf("(%s, %s)", placeholder(2*i+1), placeholder(2*i+2)))
	}
	return strings.Join(rows, ", ")
}

func detailArgs(responseID int64, options []int) []any {
	args := make([]any, 0, 2*len(options))
	for _, opt := range options {
		args = append(args, responseID, opt)
	}
	return args
}

func newTally() *models.Tally {
	return &models.Tally{
		Buckets: make(map[int]int64),
		Actions: make(map[string]int64),
		Options: make(map[int]int64),
	}
}

const (
	tallyScalarSQL = `SELECT COUNT(*), COALESCE(MIN(percent), 0), COALESCE(MAX(percent), 0), COALESCE(SUM(percent), 0)
		 FROM responses`
	tallyBucketSQL = `SELECT (percent / 5) * 5 AS bucket, COUNT(*) FROM responses GROUP BY bucket`
	tallyActionSQL = `SELECT action, COUNT(*) FROM responses GROUP BY action`
	tallyOptionSQL = `SELECT option, COUNT(*) FROM response_details GROUP BY option`
)
