// Package detector implements the individual fraud checks that score
// incoming transactions. Each check inspects a candidate transaction,
// optionally consulting the account's stored history, and reports
// whether its flag applies.
package detector

import (
	"context"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Store is the slice of the repository the checks read from.
type Store interface {
	CountByAccountSince(ctx context.Context, accountID string, since time.Time) (int64, error)
	ListByAccountSince(ctx context.Context, accountID string, since time.Time, limit int) ([]*domain.Transaction, error)
	HasFraudulentCounterparty(ctx context.Context, recipientAccountID string) (bool, error)
}

// CheckFunc decides whether a single fraud flag applies to a candidate.
// The now argument anchors all trailing history windows.
type CheckFunc func(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error)

// Detector pairs a flag with the check that raises it.
type Detector struct {
	Flag  domain.Flag
	Check CheckFunc
}

// All returns every detector in evaluation order. The order is fixed so
// that the flags on a scored transaction are deterministic.
func All() []Detector {
	return []Detector{
		{domain.FlagHighValue, CheckHighValue},
		{domain.FlagFrequencyAnomaly, CheckFrequencyAnomaly},
		{domain.FlagLocationAnomaly, CheckLocationAnomaly},
		{domain.FlagDeviceAnomaly, CheckDeviceAnomaly},
		{domain.FlagLoginAnomaly, CheckLoginAnomaly},
		{domain.FlagSuspiciousRecipient, CheckSuspiciousRecipient},
		{domain.FlagCircularTransaction, CheckCircularTransaction},
		{domain.FlagTimeAnomaly, CheckTimeAnomaly},
		{domain.FlagVelocityAnomaly, CheckVelocityAnomaly},
		{domain.FlagStatisticalOutlier, CheckStatisticalOutlier},
	}
}
