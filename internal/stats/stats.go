// Package stats aggregates stored transactions into the dashboard
// snapshot: totals, flag frequencies, hourly timeline, risk tiers,
// top locations and the most recent transactions.
package stats

import (
	"context"
	"encoding/json"
	"log/slog"
	"sort"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

const (
	snapshotCacheKey = "stats:snapshot"
	snapshotCacheTTL = 2 * time.Second

	timelineWindow   = 24 * time.Hour
	timelineLayout   = "2006-01-02 15:00:00"
	topLocationLimit = 10
	recentLimit      = 10

	highRiskFlagCount   = 4
	mediumRiskFlagCount = 2
)

// Service computes dashboard snapshots over the repository, with a
// short-lived cache in front so bursts of dashboard polling do not
// hammer the store.
type Service struct {
	repo   domain.Repository
	cache  domain.Cache
	logger *slog.Logger

	now func() time.Time
}

// New creates a stats service. The cache is optional.
func New(repo domain.Repository, cache domain.Cache, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:   repo,
		cache:  cache,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Snapshot returns the current aggregate view. Cached snapshots are
// served for up to the cache TTL; cache failures fall through to a
// fresh computation.
func (s *Service) Snapshot(ctx context.Context) (*domain.StatsSnapshot, error) {
	if s.cache != nil {
		if raw, err := s.cache.Get(ctx, snapshotCacheKey); err == nil && raw != nil {
			var snap domain.StatsSnapshot
			if err := json.Unmarshal(raw, &snap); err == nil {
				return &snap, nil
			}
		}
	}

	snap, err := s.compute(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if data, err := json.Marshal(snap); err == nil {
			if err := s.cache.Set(ctx, snapshotCacheKey, data, snapshotCacheTTL); err != nil {
				s.logger.Warn("failed to cache stats snapshot", "error", err)
			}
		}
	}
	return snap, nil
}

// Invalidate drops the cached snapshot. Called after ingestion so the
// dashboard reflects new transactions promptly.
func (s *Service) Invalidate(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, snapshotCacheKey); err != nil {
		s.logger.Warn("failed to invalidate stats snapshot", "error", err)
	}
}

func (s *Service) compute(ctx context.Context) (*domain.StatsSnapshot, error) {
	total, err := s.repo.CountTransactions(ctx)
	if err != nil {
		return nil, err
	}
	fraudulent, err := s.repo.CountFraudulent(ctx)
	if err != nil {
		return nil, err
	}
	totalAmount, err := s.repo.SumAmount(ctx)
	if err != nil {
		return nil, err
	}

	flagged, err := s.repo.ListFraudulent(ctx)
	if err != nil {
		return nil, err
	}

	now := s.now()
	recent24h, err := s.repo.ListSince(ctx, now.Add(-timelineWindow))
	if err != nil {
		return nil, err
	}

	topLocations, err := s.repo.TopLocations(ctx, topLocationLimit)
	if err != nil {
		return nil, err
	}

	recentTxs, err := s.repo.ListTransactions(ctx, recentLimit)
	if err != nil {
		return nil, err
	}

	var pct float64
	if total > 0 {
		pct = float64(fraudulent) / float64(total) * 100
	}

	snap := &domain.StatsSnapshot{
		TotalTransactions:      total,
		FraudulentTransactions: fraudulent,
		FraudulentPercentage:   pct,
		TotalAmount:            totalAmount,
		FlagStats:              flagCounts(flagged),
		TimelineData:           timeline(recent24h),
		RiskDistribution:       riskDistribution(total, fraudulent, flagged),
		TopLocations:           topLocations,
		RecentTransactions:     recentTxs,
	}
	return snap, nil
}

// flagCounts tallies how often each flag appears across the flagged
// transactions, ordered by the fixed flag vocabulary. Flags that never
// fired are omitted.
func flagCounts(flagged []*domain.Transaction) []domain.FlagCount {
	counts := make(map[domain.Flag]int64)
	for _, tx := range flagged {
		for _, f := range tx.FraudFlags {
			counts[f]++
		}
	}

	var out []domain.FlagCount
	for _, f := range domain.AllFlags() {
		if counts[f] > 0 {
			out = append(out, domain.FlagCount{Flag: f, Count: counts[f]})
		}
	}
	return out
}

// timeline buckets the trailing 24 hours of transactions into hourly
// points, ascending, skipping empty hours.
func timeline(txs []*domain.Transaction) domain.Timeline {
	all := make(map[string]int64)
	fraud := make(map[string]int64)
	for _, tx := range txs {
		key := tx.Timestamp.UTC().Truncate(time.Hour).Format(timelineLayout)
		all[key]++
		if tx.IsFraudulent {
			fraud[key]++
		}
	}
	return domain.Timeline{
		All:        sortedPoints(all),
		Fraudulent: sortedPoints(fraud),
	}
}

func sortedPoints(buckets map[string]int64) []domain.TimelinePoint {
	points := make([]domain.TimelinePoint, 0, len(buckets))
	for ts, count := range buckets {
		points = append(points, domain.TimelinePoint{Timestamp: ts, Count: count})
	}
	sort.Slice(points, func(i, j int) bool { return points[i].Timestamp < points[j].Timestamp })
	return points
}

// riskDistribution tiers flagged transactions by flag count. A single
// flag lands in neither tier; low is the clean remainder.
func riskDistribution(total, fraudulent int64, flagged []*domain.Transaction) domain.RiskDistribution {
	var dist domain.RiskDistribution
	for _, tx := range flagged {
		n := len(tx.FraudFlags)
		switch {
		case n >= highRiskFlagCount:
			dist.High++
		case n >= mediumRiskFlagCount:
			dist.Medium++
		}
	}
	dist.Low = total - fraudulent
	return dist
}
