package domain

import (
	"time"
)

// Transaction is a persisted, scored transaction record.
// Records are append-only: the derived fraud fields are set exactly once,
// by the evaluator, before the write.
type Transaction struct {
	ID        string `json:"id"`
	AccountID string `json:"accountId"`

	// Financial details
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
	Category    string  `json:"category"`

	// Origin fingerprint
	Location  string `json:"location"`
	IPAddress string `json:"ipAddress"`
	DeviceID  string `json:"deviceId,omitempty"`
	BrowserID string `json:"browserId,omitempty"`

	// Counterparty (transfers only)
	RecipientAccountID string `json:"recipientAccountId,omitempty"`

	// Temporal
	Timestamp time.Time `json:"timestamp"`
	CreatedAt time.Time `json:"createdAt"`

	// Derived by the evaluator before persistence.
	// Invariant: IsFraudulent == (len(FraudFlags) > 0).
	IsFraudulent bool   `json:"isFraudulent"`
	FraudFlags   []Flag `json:"fraudFlags"`
}

// Candidate is a transaction payload that has not been scored or persisted.
// Produced by the API or the file parser; AccountID and Amount are the only
// fields the evaluator requires.
type Candidate struct {
	AccountID          string    `json:"accountId"`
	Amount             float64   `json:"amount"`
	Description        string    `json:"description"`
	Category           string    `json:"category"`
	Location           string    `json:"location"`
	IPAddress          string    `json:"ipAddress"`
	DeviceID           string    `json:"deviceId,omitempty"`
	BrowserID          string    `json:"browserId,omitempty"`
	RecipientAccountID string    `json:"recipientAccountId,omitempty"`
	Timestamp          time.Time `json:"timestamp"`
}

// EffectiveTimestamp returns the candidate timestamp, defaulting to now.
func (c *Candidate) EffectiveTimestamp() time.Time {
	if c.Timestamp.IsZero() {
		return time.Now().UTC()
	}
	return c.Timestamp
}

// ToTransaction builds the persisted record from a candidate and its verdict.
func (c *Candidate) ToTransaction(id string, result FraudResult) *Transaction {
	return &Transaction{
		ID:                 id,
		AccountID:          c.AccountID,
		Amount:             c.Amount,
		Description:        c.Description,
		Category:           c.Category,
		Location:           c.Location,
		IPAddress:          c.IPAddress,
		DeviceID:           c.DeviceID,
		BrowserID:          c.BrowserID,
		RecipientAccountID: c.RecipientAccountID,
		Timestamp:          c.EffectiveTimestamp(),
		CreatedAt:          time.Now().UTC(),
		IsFraudulent:       result.IsFraudulent,
		FraudFlags:         result.FraudFlags,
	}
}
