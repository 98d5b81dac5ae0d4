package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/raquelitre/Encuesta/internal/models"
	"github.com/raquelitre/Encuesta/internal/storage"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestStore(t *testing.T) *storage.SQLiteDB {
	t.Helper()

	db, err := storage.NewSQLite(":memory:")
	require.NoError(t, err)
	require.NoError(t, db.Migrate())

	t.Cleanup(db.Close)
	return db
}

func countRows(t *testing.T, db *storage.SQLiteDB, table string) int {
	t.Helper()
	var n int
	require.NoError(t, db.Conn.QueryRow("SELECT COUNT(*) FROM "+table).Scan(&n))
	return n
}

var errStoreDown = errors.New("store unavailable")

// failingStore embeds a real store and fails the selected operations
type failingStore struct {
	storage.Store
	failCreate bool
	failTally  bool
	tallies    int
}

func (f *failingStore) CreateResponse(ctx context.Context, resp *models.Response, options []int) error {
	if f.failCreate {
		return errStoreDown
	}
	return f.Store.CreateResponse(ctx, resp, options)
}

func (f *failingStore) Tally(ctx context.Context) (*models.Tally, error) {
	f.tallies++
	if f.failTally {
		return nil, errStoreDown
	}
	return f.Store.Tally(ctx)
}

// pausingStore holds Tally after the snapshot was read until release closes
type pausingStore struct {
	storage.Store
	read    chan struct{}
	release chan struct{}
}

func (p *pausingStore) Tally(ctx context.Context) (*models.Tally, error) {
	t, err := p.Store.Tally(ctx)
	close(p.read)
	<-p.release
	return t, err
}
