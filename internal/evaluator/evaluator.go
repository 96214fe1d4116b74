// Package evaluator orchestrates fraud scoring. It runs every detector
// against a candidate transaction and collects the flags that apply.
package evaluator

import (
	"context"
	"log/slog"
	"time"

	"github.com/opensource-finance/kestrel/internal/detector"
	"github.com/opensource-finance/kestrel/internal/domain"
)

// Evaluator scores candidate transactions against the full detector set.
type Evaluator struct {
	store     detector.Store
	detectors []detector.Detector
	logger    *slog.Logger

	// now is swappable for tests.
	now func() time.Time
}

// New creates an evaluator backed by the given history store.
func New(store detector.Store, logger *slog.Logger) *Evaluator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Evaluator{
		store:     store,
		detectors: detector.All(),
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Evaluate runs every detector against the candidate and returns the
// accumulated result. Candidates without an amount or account are not
// scored. A failing detector is logged and treated as not flagged, so
// one degraded check never blocks ingestion.
func (e *Evaluator) Evaluate(ctx context.Context, c *domain.Candidate) domain.FraudResult {
	if c == nil || c.Amount == 0 || c.AccountID == "" {
		return domain.Clean()
	}

	now := e.now()
	result := domain.Clean()
	for _, d := range e.detectors {
		flagged, err := d.Check(ctx, e.store, c, now)
		if err != nil {
			e.logger.Warn("fraud check failed",
				"flag", string(d.Flag),
				"account_id", c.AccountID,
				"error", err)
			continue
		}
		if flagged {
			result.FraudFlags = append(result.FraudFlags, d.Flag)
		}
	}
	result.IsFraudulent = len(result.FraudFlags) > 0
	return result
}
