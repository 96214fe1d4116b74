package ingest

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/evaluator"
	"github.com/opensource-finance/kestrel/internal/metrics"
	"github.com/opensource-finance/kestrel/internal/notify"
	"github.com/opensource-finance/kestrel/internal/stats"
)

// Summary describes the outcome of a batch upload.
type Summary struct {
	TotalProcessed  int     `json:"totalProcessed"`
	FraudCount      int     `json:"fraudCount"`
	TotalAmount     float64 `json:"totalAmount"`
	FraudPercentage float64 `json:"fraudPercentage"`
}

// Service scores and persists candidate transactions.
type Service struct {
	repo      domain.Repository
	evaluator *evaluator.Evaluator
	stats     *stats.Service
	notifier  *notify.Notifier
	collector *metrics.Collector
	logger    *slog.Logger
}

// New wires the ingestion pipeline together.
func New(repo domain.Repository, ev *evaluator.Evaluator, st *stats.Service, nt *notify.Notifier, mc *metrics.Collector, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		repo:      repo,
		evaluator: ev,
		stats:     st,
		notifier:  nt,
		collector: mc,
		logger:    logger,
	}
}

// Submit scores a single candidate, persists it and emits live events.
func (s *Service) Submit(ctx context.Context, c *domain.Candidate) (*domain.Transaction, error) {
	if c == nil || c.AccountID == "" {
		s.recordFailure()
		return nil, fmt.Errorf("accountId is required")
	}
	if c.Amount <= 0 {
		s.recordFailure()
		return nil, fmt.Errorf("amount must be positive")
	}

	tx, err := s.save(ctx, c)
	if err != nil {
		s.recordFailure()
		return nil, err
	}

	s.afterIngest(ctx, tx)
	return tx, nil
}

// ProcessBatch scores and persists a batch of candidates, continuing
// past individual failures. The returned summary and transaction list
// cover only the rows that were stored.
func (s *Service) ProcessBatch(ctx context.Context, candidates []*domain.Candidate) (*Summary, []*domain.Transaction, error) {
	summary := &Summary{}
	stored := make([]*domain.Transaction, 0, len(candidates))
	for i, c := range candidates {
		if c == nil || c.AccountID == "" || c.Amount <= 0 {
			s.recordFailure()
			s.logger.Warn("skipping invalid batch row", "row", i)
			continue
		}

		tx, err := s.save(ctx, c)
		if err != nil {
			s.recordFailure()
			s.logger.Warn("failed to store batch row", "row", i, "account_id", c.AccountID, "error", err)
			continue
		}

		stored = append(stored, tx)
		summary.TotalProcessed++
		summary.TotalAmount += tx.Amount
		if tx.IsFraudulent {
			summary.FraudCount++
			if s.notifier != nil {
				s.notifier.FraudAlert(ctx, tx)
			}
		}
	}
	if summary.TotalProcessed > 0 {
		summary.FraudPercentage = float64(summary.FraudCount) / float64(summary.TotalProcessed) * 100
	}

	if s.collector != nil {
		s.collector.RecordUpload(summary.TotalProcessed)
	}
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	if s.notifier != nil {
		snap := s.snapshot(ctx)
		s.notifier.UploadCompleted(ctx, summary, stored, snap)
	}
	return summary, stored, nil
}

// save scores a candidate against history and persists the result.
func (s *Service) save(ctx context.Context, c *domain.Candidate) (*domain.Transaction, error) {
	start := time.Now()
	result := s.evaluator.Evaluate(ctx, c)
	tx := c.ToTransaction(uuid.NewString(), result)

	if err := s.repo.SaveTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("failed to store transaction: %w", err)
	}

	if s.collector != nil {
		flags := make([]string, len(tx.FraudFlags))
		for i, f := range tx.FraudFlags {
			flags[i] = string(f)
		}
		s.collector.RecordIngest(time.Since(start), flags)
	}

	s.logger.Info("transaction ingested",
		"transaction_id", tx.ID,
		"account_id", tx.AccountID,
		"amount", tx.Amount,
		"fraudulent", tx.IsFraudulent,
		"flags", len(tx.FraudFlags))
	return tx, nil
}

// afterIngest handles cache invalidation and live events for a single
// stored transaction.
func (s *Service) afterIngest(ctx context.Context, tx *domain.Transaction) {
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	if s.notifier == nil {
		return
	}
	snap := s.snapshot(ctx)
	s.notifier.TransactionCreated(ctx, tx, snap)
	if tx.IsFraudulent {
		s.notifier.FraudAlert(ctx, tx)
	}
}

func (s *Service) recordFailure() {
	if s.collector != nil {
		s.collector.RecordIngestFailure()
	}
}

func (s *Service) snapshot(ctx context.Context) *domain.StatsSnapshot {
	if s.stats == nil {
		return nil
	}
	snap, err := s.stats.Snapshot(ctx)
	if err != nil {
		s.logger.Warn("failed to compute stats for event", "error", err)
		return nil
	}
	return snap
}
