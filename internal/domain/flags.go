package domain

// Flag is one of the ten fixed reasons a transaction is considered
// suspicious. The vocabulary is closed: no detector emits anything else.
type Flag string

const (
	FlagHighValue           Flag = "high_value"
	FlagFrequencyAnomaly    Flag = "frequency_anomaly"
	FlagLocationAnomaly     Flag = "location_anomaly"
	FlagDeviceAnomaly       Flag = "device_anomaly"
	FlagLoginAnomaly        Flag = "login_anomaly"
	FlagSuspiciousRecipient Flag = "suspicious_recipient"
	FlagCircularTransaction Flag = "circular_transaction"
	FlagTimeAnomaly         Flag = "time_anomaly"
	FlagVelocityAnomaly     Flag = "velocity_anomaly"
	FlagStatisticalOutlier  Flag = "statistical_outlier"
)

// AllFlags lists every flag in evaluation order. The evaluator appends
// triggered flags in exactly this order, so results are reproducible.
func AllFlags() []Flag {
	return []Flag{
		FlagHighValue,
		FlagFrequencyAnomaly,
		FlagLocationAnomaly,
		FlagDeviceAnomaly,
		FlagLoginAnomaly,
		FlagSuspiciousRecipient,
		FlagCircularTransaction,
		FlagTimeAnomaly,
		FlagVelocityAnomaly,
		FlagStatisticalOutlier,
	}
}

// FraudResult is the evaluator verdict for one candidate.
type FraudResult struct {
	IsFraudulent bool   `json:"isFraudulent"`
	FraudFlags   []Flag `json:"fraudFlags"`
}

// Clean is the verdict for candidates that trip no detector, including the
// validation short-circuit on missing amount or accountId.
func Clean() FraudResult {
	return FraudResult{IsFraudulent: false, FraudFlags: []Flag{}}
}
