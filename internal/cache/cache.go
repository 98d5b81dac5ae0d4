// Package cache holds the optional read-through cache for the stats summary.
// Entries are dropped on every submit, so a cached summary is never older
// than the last committed response.
package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/raquelitre/Encuesta/internal/models"
)

// ErrMiss is returned when no summary is cached
var ErrMiss = errors.New("cache miss")

// SummaryCache caches the computed stats summary.
//
// Every Invalidate advances a generation counter. A reader takes the
// generation before computing a summary and passes it to Set, which drops
// the write when an invalidation happened in between.
type SummaryCache interface {
	Get(ctx context.Context) (*models.StatsSummary, error)
	Generation(ctx context.Context) (uint64, error)
	Set(ctx context.Context, generation uint64, summary *models.StatsSummary) error
	Invalidate(ctx context.Context) error
}

// Nop never caches anything
type Nop struct{}

func (Nop) Get(context.Context) (*models.StatsSummary, error) { return nil, ErrMiss }

func (Nop) Generation(context.Context) (uint64, error) { return 0, nil }

func (Nop) Set(context.Context, uint64, *models.StatsSummary) error { return nil }

func (Nop) Invalidate(context.Context) error { return nil }

// Memory is an in-process cache for single-instance deployments.
// Safe for concurrent use.
type Memory struct {
	mu         sync.RWMutex
	ttl        time.Duration
	now        func() time.Time
	generation uint64
	summary    *models.StatsSummary
	expires    time.Time
}

// NewMemory creates an in-process cache whose entries live for ttl
func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, now: time.Now}
}

func (m *Memory) Get(context.Context) (*models.StatsSummary, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.summary == nil || !m.now().Before(m.expires) {
		return nil, ErrMiss
	}
	return cloneSummary(m.summary), nil
}

func (m *Memory) Generation(context.Context) (uint64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.generation, nil
}

func (m *Memory) Set(_ context.Context, generation uint64, summary *models.StatsSummary) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if generation != m.generation {
		return nil
	}
	m.summary = cloneSummary(summary)
	m.expires = m.now().Add(m.ttl)
	return nil
}

func (m *Memory) Invalidate(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.generation++
	m.summary = nil
	return nil
}

// cloneSummary copies s including its slices so cached entries never share
// memory with callers
func cloneSummary(s *models.StatsSummary) *models.StatsSummary {
	c := *s
	c.Buckets = append([]models.BucketCount(nil), s.Buckets...)
	c.Options = append([]models.OptionVotes(nil), s.Options...)
	return &c
}
