// Package worker provides async ingestion for the Pro tier. Candidates
// published to the submission topic are scored and persisted off the
// request path.
package worker

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/ingest"
)

// Worker consumes submitted candidates from the EventBus and runs them
// through the ingestion pipeline.
type Worker struct {
	bus    domain.EventBus
	ingest *ingest.Service
	logger *slog.Logger

	subscriptions []domain.Subscription
	wg            sync.WaitGroup
	ctx           context.Context
	cancel        context.CancelFunc
}

// NewWorker creates a new async ingestion worker.
func NewWorker(bus domain.EventBus, ing *ingest.Service, logger *slog.Logger) *Worker {
	if logger == nil {
		logger = slog.Default()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Worker{
		bus:    bus,
		ingest: ing,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start subscribes to the submission topic.
func (w *Worker) Start() error {
	sub, err := w.bus.Subscribe(w.ctx, domain.TopicTransactionSubmitted, w.handleMessage)
	if err != nil {
		return err
	}
	w.subscriptions = append(w.subscriptions, sub)

	w.logger.Info("async ingestion worker started",
		"topic", domain.TopicTransactionSubmitted)
	return nil
}

// handleMessage decodes and ingests one submitted candidate. Decode
// and scoring failures are logged and dropped: the bus offers no
// redelivery, so there is nothing to retry against.
func (w *Worker) handleMessage(ctx context.Context, msg *domain.Message) error {
	w.wg.Add(1)
	defer w.wg.Done()

	var c domain.Candidate
	if err := json.Unmarshal(msg.Payload, &c); err != nil {
		w.logger.Error("failed to decode submitted candidate",
			"message_id", msg.ID,
			"error", err,
		)
		return nil
	}

	tx, err := w.ingest.Submit(ctx, &c)
	if err != nil {
		w.logger.Error("failed to ingest submitted candidate",
			"message_id", msg.ID,
			"account_id", c.AccountID,
			"error", err,
		)
		return nil
	}

	w.logger.Debug("async candidate ingested",
		"message_id", msg.ID,
		"transaction_id", tx.ID,
	)
	return nil
}

// Stop unsubscribes and waits for in-flight messages.
func (w *Worker) Stop() {
	for _, sub := range w.subscriptions {
		_ = sub.Unsubscribe()
	}
	w.cancel()
	w.wg.Wait()
	w.logger.Info("async ingestion worker stopped")
}
