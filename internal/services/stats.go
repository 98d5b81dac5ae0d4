package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/raquelitre/Encuesta/internal/answerset"
	"github.com/raquelitre/Encuesta/internal/cache"
	"github.com/raquelitre/Encuesta/internal/models"
	"github.com/raquelitre/Encuesta/internal/storage"
)

// BucketWidth is the width of one histogram bin, in percentage points
const BucketWidth = 5

// BucketCount is the number of histogram bins: 0, 5, ..., 100
const BucketCount = answerset.MaxPercent/BucketWidth + 1

// StatsService computes statistics over all stored responses
type StatsService struct {
	store  storage.Store
	cache  cache.SummaryCache
	logger *slog.Logger
	now    func() time.Time
}

// NewStatsService creates a new stats service. A nil cache computes every
// summary fresh.
func NewStatsService(store storage.Store, summaries cache.SummaryCache, logger *slog.Logger) *StatsService {
	if summaries == nil {
		summaries = cache.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsService{store: store, cache: summaries, logger: logger, now: time.Now}
}

// Summarize returns the statistics summary, served from the cache when a
// fresh entry exists
func (s *StatsService) Summarize(ctx context.Context) (*models.StatsSummary, error) {
	cached, err := s.cache.Get(ctx)
	if err == nil {
		return cached, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		s.logger.Warn("failed to read stats cache", "error", err)
	}

	// Taken before the tally so a submit committing meanwhile voids the write
	generation, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.Warn("failed to read stats cache generation", "error", genErr)
	}

	tally, err := s.store.Tally(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to read statistics: %w", err)
	}

	summary := BuildSummary(tally, s.now().UTC())
	if genErr == nil {
		if err := s.cache.Set(ctx, generation, summary); err != nil {
			s.logger.Warn("failed to write stats cache", "error", err)
		}
	}
	return summary, nil
}

// BuildSummary turns a raw tally into the dense summary served to clients.
// Every bucket and every option is present, with zero counts where nothing
// was recorded.
func BuildSummary(t *models.Tally, generatedAt time.Time) *models.StatsSummary {
	summary := &models.StatsSummary{
		Total:       t.Count,
		Buckets:     make([]models.BucketCount, BucketCount),
		Options:     make([]models.OptionVotes, answerset.Size),
		GeneratedAt: generatedAt,
	}

	if t.Count > 0 {
		summary.Min = t.MinPercent
		summary.Max = t.MaxPercent
		summary.Avg = roundTo(float64(t.SumPercent)/float64(t.Count), 2)
	}

	for i := range summary.Buckets {
		bucket := i * BucketWidth
		summary.Buckets[i] = models.BucketCount{Bucket: bucket, Count: t.Buckets[bucket]}
	}

	for i := range summary.Options {
		option := i + 1
		summary.Options[i] = models.OptionVotes{Option: option, Votes: t.Options[option]}
	}

	for action, n := range t.Actions {
		switch models.Action(action) {
		case models.ActionShare:
			summary.Actions.Share += n
		case models.ActionDownload:
			summary.Actions.Download += n
		default:
			summary.Actions.Other += n
		}
	}

	return summary
}

// BucketOf returns the histogram bin for percent
func BucketOf(percent int) int {
	return (percent / BucketWidth) * BucketWidth
}

func roundTo(v float64, places int) float64 {
	scale := math.Pow(10, float64(places))
	return math.Round(v*scale) / scale
}
