// Package notify publishes live events to the event bus so dashboard
// clients see new transactions, alerts and upload completions without
// polling. Publishes are fire and forget: a bus failure is logged and
// never surfaces to the caller.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Notifier fans domain events out to the event bus.
type Notifier struct {
	bus    domain.EventBus
	logger *slog.Logger
}

// New creates a notifier. The bus may be nil, in which case every
// publish is a no-op.
func New(bus domain.EventBus, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{bus: bus, logger: logger}
}

// TransactionCreated announces a newly stored transaction together
// with a fresh stats snapshot.
func (n *Notifier) TransactionCreated(ctx context.Context, tx *domain.Transaction, snap *domain.StatsSnapshot) {
	n.publish(ctx, domain.TopicTransactionCreated, map[string]any{
		"transaction": tx,
		"stats":       snap,
	})
}

// FraudAlert announces a transaction that tripped at least one check.
func (n *Notifier) FraudAlert(ctx context.Context, tx *domain.Transaction) {
	n.publish(ctx, domain.TopicFraudAlert, map[string]any{
		"transaction": tx,
		"flags":       tx.FraudFlags,
	})
}

// UploadCompleted announces a finished batch: the stored transactions,
// the summary and a fresh stats snapshot.
func (n *Notifier) UploadCompleted(ctx context.Context, summary any, txs []*domain.Transaction, snap *domain.StatsSnapshot) {
	n.publish(ctx, domain.TopicUploadCompleted, map[string]any{
		"summary":      summary,
		"transactions": txs,
		"stats":        snap,
	})
}

func (n *Notifier) publish(ctx context.Context, topic string, payload map[string]any) {
	if n.bus == nil {
		return
	}
	data, err := json.Marshal(payload)
	if err != nil {
		n.logger.Warn("failed to encode event", "topic", topic, "error", err)
		return
	}
	if err := n.bus.Publish(ctx, topic, data); err != nil {
		n.logger.Warn("failed to publish event", "topic", topic, "error", err)
	}
}
