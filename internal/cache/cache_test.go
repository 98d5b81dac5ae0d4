package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raquelitre/Encuesta/internal/config"
	"github.com/raquelitre/Encuesta/internal/models"
)

func TestNop(t *testing.T) {
	ctx := context.Background()
	var c Nop

	require.NoError(t, c.Set(ctx, 0, &models.StatsSummary{Total: 1}))
	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, ErrMiss)
	assert.NoError(t, c.Invalidate(ctx))
}

func TestMemory_SetGetInvalidate(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Minute)

	_, err := c.Get(ctx)
	assert.ErrorIs(t, err, ErrMiss)

	require.NoError(t, c.Set(ctx, 0, &models.StatsSummary{Total: 3}))
	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), got.Total)

	require.NoError(t, c.Invalidate(ctx))
	_, err = c.Get(ctx)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestMemory_Expires(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	c := NewMemory(30 * time.Second)
	c.now = func() time.Time { return now }

	require.NoError(t, c.Set(ctx, 0, &models.StatsSummary{Total: 1}))
	now = now.Add(29 * time.Second)
	_, err := c.Get(ctx)
	assert.NoError(t, err)

	now = now.Add(time.Second)
	_, err = c.Get(ctx)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestNew_Selection(t *testing.T) {
	ctx := context.Background()

	c, err := New(ctx, config.CacheConfig{})
	require.NoError(t, err)
	assert.IsType(t, Nop{}, c)

	c, err = New(ctx, config.CacheConfig{Enabled: true, TTLSeconds: 5})
	require.NoError(t, err)
	assert.IsType(t, &Memory{}, c)
}

func TestNewRedis_NilClient(t *testing.T) {
	_, err := NewRedis(nil, "k", time.Second)
	assert.Error(t, err)
}

func TestMemory_DropsSetFromOlderGeneration(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Hour)

	gen, err := c.Generation(ctx)
	require.NoError(t, err)

	// an invalidation lands between reading the generation and writing
	require.NoError(t, c.Invalidate(ctx))
	require.NoError(t, c.Set(ctx, gen, &models.StatsSummary{Total: 0}))

	_, err = c.Get(ctx)
	assert.ErrorIs(t, err, ErrMiss)

	gen, err = c.Generation(ctx)
	require.NoError(t, err)
	require.NoError(t, c.Set(ctx, gen, &models.StatsSummary{Total: 1}))

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Total)
}

func TestMemory_CopiesSlices(t *testing.T) {
	ctx := context.Background()
	c := NewMemory(time.Hour)

	summary := &models.StatsSummary{
		Total:   1,
		Buckets: []models.BucketCount{{Bucket: 0, Count: 1}},
		Options: []models.OptionVotes{{Option: 1, Votes: 1}},
	}
	require.NoError(t, c.Set(ctx, 0, summary))
	summary.Buckets[0].Count = 99

	got, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), got.Buckets[0].Count)

	got.Options[0].Votes = 42
	again, err := c.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), again.Options[0].Votes)
}
