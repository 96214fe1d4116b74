package detector

import (
	"context"
	"math"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// Thresholds and windows for the individual checks.
const (
	HighValueThreshold = 10000.0

	FrequencyWindow = time.Hour
	FrequencyLimit  = 5

	LocationWindow      = 24 * time.Hour
	LocationHistorySize = 10

	DeviceWindow      = 24 * time.Hour
	DeviceHistorySize = 5

	LoginWindow      = 30 * time.Minute
	LoginMinCount    = 3
	LoginMinInterval = time.Minute

	CircularWindow = 24 * time.Hour

	TimeWindow         = 7 * 24 * time.Hour
	UnusualHourStart   = 2
	UnusualHourEnd     = 6
	HourDeviationLimit = 6.0

	StatWindow       = 30 * 24 * time.Hour
	StatMinSamples   = 5
	StatZScoreCutoff = 2.5
)

// velocityTiers maps trailing windows to the transaction count above
// which the velocity check trips. Any tier tripping raises the flag.
var velocityTiers = []struct {
	window time.Duration
	limit  int64
}{
	{5 * time.Minute, 3},
	{15 * time.Minute, 5},
	{time.Hour, 10},
}

// suspiciousKeywords are matched case-insensitively against the
// candidate's description.
var suspiciousKeywords = []string{
	"urgent", "emergency", "help", "crypto", "bitcoin", "gift card",
}

// CheckHighValue flags amounts strictly above the threshold.
func CheckHighValue(_ context.Context, _ Store, c *domain.Candidate, _ time.Time) (bool, error) {
	return c.Amount > HighValueThreshold, nil
}

// CheckFrequencyAnomaly flags accounts with more than FrequencyLimit
// stored transactions in the trailing hour.
func CheckFrequencyAnomaly(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error) {
	count, err := store.CountByAccountSince(ctx, c.AccountID, now.Add(-FrequencyWindow))
	if err != nil {
		return false, err
	}
	return count > FrequencyLimit, nil
}

// CheckLocationAnomaly flags transactions from a location absent from
// the account's recent history, or arriving from a different IP than
// the most recent transaction.
func CheckLocationAnomaly(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error) {
	if c.Location == "" {
		return false, nil
	}

	recent, err := store.ListByAccountSince(ctx, c.AccountID, now.Add(-LocationWindow), LocationHistorySize)
	if err != nil {
		return false, err
	}
	if len(recent) == 0 {
		return false, nil
	}

	known := false
	for _, tx := range recent {
		if tx.Location == c.Location {
			known = true
			break
		}
	}
	if !known {
		return true, nil
	}

	last := recent[0]
	if c.IPAddress != "" && last.IPAddress != "" && c.IPAddress != last.IPAddress {
		return true, nil
	}
	return false, nil
}

// CheckDeviceAnomaly flags transactions whose device or browser
// fingerprint differs from the account's most recent transaction.
func CheckDeviceAnomaly(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error) {
	if c.DeviceID == "" && c.BrowserID == "" {
		return false, nil
	}

	recent, err := store.ListByAccountSince(ctx, c.AccountID, now.Add(-DeviceWindow), DeviceHistorySize)
	if err != nil {
		return false, err
	}
	if len(recent) == 0 {
		return false, nil
	}

	last := recent[0]
	if c.DeviceID != "" && last.DeviceID != "" && c.DeviceID != last.DeviceID {
		return true, nil
	}
	if c.BrowserID != "" && last.BrowserID != "" && c.BrowserID != last.BrowserID {
		return true, nil
	}
	return false, nil
}

// CheckLoginAnomaly flags rapid bursts: three or more transactions in
// the trailing half hour with a mean interval under one minute.
func CheckLoginAnomaly(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error) {
	recent, err := store.ListByAccountSince(ctx, c.AccountID, now.Add(-LoginWindow), 0)
	if err != nil {
		return false, err
	}
	if len(recent) < LoginMinCount {
		return false, nil
	}

	// Rows arrive newest first.
	newest := recent[0].Timestamp
	oldest := recent[len(recent)-1].Timestamp
	mean := newest.Sub(oldest) / time.Duration(len(recent)-1)
	return mean < LoginMinInterval, nil
}

// CheckSuspiciousRecipient flags transfers to accounts already involved
// in fraud, and descriptions containing social-engineering keywords.
func CheckSuspiciousRecipient(ctx context.Context, store Store, c *domain.Candidate, _ time.Time) (bool, error) {
	if c.RecipientAccountID == "" && c.Description == "" {
		return false, nil
	}

	if c.RecipientAccountID != "" {
		found, err := store.HasFraudulentCounterparty(ctx, c.RecipientAccountID)
		if err != nil {
			return false, err
		}
		if found {
			return true, nil
		}
	}

	desc := strings.ToLower(c.Description)
	for _, kw := range suspiciousKeywords {
		if strings.Contains(desc, kw) {
			return true, nil
		}
	}
	return false, nil
}

// CheckCircularTransaction flags transfers where both parties have been
// active in the trailing day, a pattern consistent with funds cycling
// between accounts.
func CheckCircularTransaction(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error) {
	if c.AccountID == "" || c.RecipientAccountID == "" {
		return false, nil
	}

	since := now.Add(-CircularWindow)
	senderCount, err := store.CountByAccountSince(ctx, c.AccountID, since)
	if err != nil {
		return false, err
	}
	recipientCount, err := store.CountByAccountSince(ctx, c.RecipientAccountID, since)
	if err != nil {
		return false, err
	}
	return senderCount > 0 && recipientCount > 0, nil
}

// CheckTimeAnomaly flags transactions in the 02:00-06:59 window and
// transactions far from the account's usual hour of day.
func CheckTimeAnomaly(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error) {
	hour := c.EffectiveTimestamp().Hour()
	unusual := hour >= UnusualHourStart && hour <= UnusualHourEnd

	history, err := store.ListByAccountSince(ctx, c.AccountID, now.Add(-TimeWindow), 0)
	if err != nil {
		return false, err
	}
	if len(history) == 0 {
		return unusual, nil
	}

	var sum float64
	for _, tx := range history {
		sum += float64(tx.Timestamp.Hour())
	}
	avgHour := sum / float64(len(history))
	return unusual || math.Abs(float64(hour)-avgHour) > HourDeviationLimit, nil
}

// CheckVelocityAnomaly flags accounts exceeding any of the tiered
// rate limits. Windows are anchored at the candidate's timestamp so
// backdated batch rows score against their own history.
func CheckVelocityAnomaly(ctx context.Context, store Store, c *domain.Candidate, _ time.Time) (bool, error) {
	anchor := c.EffectiveTimestamp()
	for _, tier := range velocityTiers {
		count, err := store.CountByAccountSince(ctx, c.AccountID, anchor.Add(-tier.window))
		if err != nil {
			return false, err
		}
		if count > tier.limit {
			return true, nil
		}
	}
	return false, nil
}

// CheckStatisticalOutlier flags amounts more than StatZScoreCutoff
// population standard deviations from the account's 30 day mean.
// Accounts with fewer than StatMinSamples stored transactions never
// trip this check, nor do accounts with zero variance.
func CheckStatisticalOutlier(ctx context.Context, store Store, c *domain.Candidate, now time.Time) (bool, error) {
	history, err := store.ListByAccountSince(ctx, c.AccountID, now.Add(-StatWindow), 0)
	if err != nil {
		return false, err
	}
	if len(history) < StatMinSamples {
		return false, nil
	}

	var sum float64
	for _, tx := range history {
		sum += tx.Amount
	}
	mean := sum / float64(len(history))

	var variance float64
	for _, tx := range history {
		d := tx.Amount - mean
		variance += d * d
	}
	variance /= float64(len(history))
	stddev := math.Sqrt(variance)
	if stddev == 0 {
		return false, nil
	}

	return math.Abs(c.Amount-mean)/stddev > StatZScoreCutoff, nil
}
