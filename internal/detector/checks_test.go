package detector

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

// memStore is an in-memory Store for exercising checks without a database.
type memStore struct {
	transactions []*domain.Transaction
	fraudulent   map[string]bool
}

func (m *memStore) CountByAccountSince(_ context.Context, accountID string, since time.Time) (int64, error) {
	var count int64
	for _, tx := range m.transactions {
		if tx.AccountID == accountID && !tx.Timestamp.Before(since) {
			count++
		}
	}
	return count, nil
}

func (m *memStore) ListByAccountSince(_ context.Context, accountID string, since time.Time, limit int) ([]*domain.Transaction, error) {
	var out []*domain.Transaction
	for _, tx := range m.transactions {
		if tx.AccountID == accountID && !tx.Timestamp.Before(since) {
			out = append(out, tx)
		}
	}
	// Newest first.
	for i := 0; i < len(out); i++ {
		for j := i + 1; j < len(out); j++ {
			if out[j].Timestamp.After(out[i].Timestamp) {
				out[i], out[j] = out[j], out[i]
			}
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) HasFraudulentCounterparty(_ context.Context, recipientAccountID string) (bool, error) {
	if m.fraudulent[recipientAccountID] {
		return true, nil
	}
	for _, tx := range m.transactions {
		if tx.IsFraudulent && strings.Contains(strings.ToLower(tx.Description), strings.ToLower(recipientAccountID)) {
			return true, nil
		}
	}
	return false, nil
}

func historyTx(accountID string, amount float64, ts time.Time) *domain.Transaction {
	return &domain.Transaction{
		AccountID: accountID,
		Amount:    amount,
		Location:  "New York",
		IPAddress: "10.0.0.1",
		Timestamp: ts,
	}
}

func TestCheckHighValue(t *testing.T) {
	ctx := context.Background()
	store := &memStore{}
	now := time.Now().UTC()

	cases := []struct {
		amount float64
		want   bool
	}{
		{9999.99, false},
		{10000, false},
		{10000.01, true},
		{50000, true},
	}
	for _, tc := range cases {
		got, err := CheckHighValue(ctx, store, &domain.Candidate{AccountID: "acc", Amount: tc.amount}, now)
		if err != nil {
			t.Fatalf("CheckHighValue(%v) error: %v", tc.amount, err)
		}
		if got != tc.want {
			t.Errorf("CheckHighValue(%v) = %v, want %v", tc.amount, got, tc.want)
		}
	}
}

func TestCheckFrequencyAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	store := &memStore{}
	for i := 0; i < 5; i++ {
		store.transactions = append(store.transactions, historyTx("acc", 100, now.Add(-time.Duration(i)*time.Minute)))
	}

	got, err := CheckFrequencyAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Amount: 100}, now)
	if err != nil {
		t.Fatal(err)
	}
	if got {
		t.Error("5 prior transactions should not trip the frequency check")
	}

	store.transactions = append(store.transactions, historyTx("acc", 100, now.Add(-6*time.Minute)))
	got, err = CheckFrequencyAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Amount: 100}, now)
	if err != nil {
		t.Fatal(err)
	}
	if !got {
		t.Error("6 prior transactions should trip the frequency check")
	}
}

func TestCheckLocationAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	store := &memStore{transactions: []*domain.Transaction{
		historyTx("acc", 100, now.Add(-time.Hour)),
	}}

	t.Run("EmptyLocationSkipped", func(t *testing.T) {
		got, _ := CheckLocationAnomaly(ctx, store, &domain.Candidate{AccountID: "acc"}, now)
		if got {
			t.Error("empty location must not flag")
		}
	})

	t.Run("NoHistory", func(t *testing.T) {
		got, _ := CheckLocationAnomaly(ctx, store, &domain.Candidate{AccountID: "fresh", Location: "Mars"}, now)
		if got {
			t.Error("first transaction for an account must not flag")
		}
	})

	t.Run("NewLocation", func(t *testing.T) {
		got, _ := CheckLocationAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Location: "Tokyo"}, now)
		if !got {
			t.Error("unseen location should flag")
		}
	})

	t.Run("KnownLocationSameIP", func(t *testing.T) {
		got, _ := CheckLocationAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Location: "New York", IPAddress: "10.0.0.1"}, now)
		if got {
			t.Error("known location with matching IP should not flag")
		}
	})

	t.Run("KnownLocationChangedIP", func(t *testing.T) {
		got, _ := CheckLocationAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Location: "New York", IPAddress: "203.0.113.9"}, now)
		if !got {
			t.Error("IP change from last transaction should flag")
		}
	})
}

func TestCheckDeviceAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	prior := historyTx("acc", 100, now.Add(-time.Hour))
	prior.DeviceID = "device-1"
	prior.BrowserID = "browser-1"
	store := &memStore{transactions: []*domain.Transaction{prior}}

	t.Run("NoFingerprintSkipped", func(t *testing.T) {
		got, _ := CheckDeviceAnomaly(ctx, store, &domain.Candidate{AccountID: "acc"}, now)
		if got {
			t.Error("candidate without fingerprints must not flag")
		}
	})

	t.Run("SameDevice", func(t *testing.T) {
		got, _ := CheckDeviceAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", DeviceID: "device-1"}, now)
		if got {
			t.Error("matching device should not flag")
		}
	})

	t.Run("ChangedDevice", func(t *testing.T) {
		got, _ := CheckDeviceAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", DeviceID: "device-2"}, now)
		if !got {
			t.Error("changed device should flag")
		}
	})

	t.Run("ChangedBrowser", func(t *testing.T) {
		got, _ := CheckDeviceAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", BrowserID: "browser-2"}, now)
		if !got {
			t.Error("changed browser should flag")
		}
	})

	t.Run("NewDeviceNoHistory", func(t *testing.T) {
		got, _ := CheckDeviceAnomaly(ctx, store, &domain.Candidate{AccountID: "fresh", DeviceID: "device-9"}, now)
		if got {
			t.Error("account without history must not flag")
		}
	})
}

func TestCheckLoginAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("RapidBurst", func(t *testing.T) {
		store := &memStore{transactions: []*domain.Transaction{
			historyTx("acc", 100, now.Add(-10*time.Second)),
			historyTx("acc", 100, now.Add(-40*time.Second)),
			historyTx("acc", 100, now.Add(-70*time.Second)),
		}}
		got, _ := CheckLoginAnomaly(ctx, store, &domain.Candidate{AccountID: "acc"}, now)
		if !got {
			t.Error("sub-minute mean interval should flag")
		}
	})

	t.Run("SpacedOut", func(t *testing.T) {
		store := &memStore{transactions: []*domain.Transaction{
			historyTx("acc", 100, now.Add(-1*time.Minute)),
			historyTx("acc", 100, now.Add(-10*time.Minute)),
			historyTx("acc", 100, now.Add(-20*time.Minute)),
		}}
		got, _ := CheckLoginAnomaly(ctx, store, &domain.Candidate{AccountID: "acc"}, now)
		if got {
			t.Error("spaced transactions should not flag")
		}
	})

	t.Run("TooFew", func(t *testing.T) {
		store := &memStore{transactions: []*domain.Transaction{
			historyTx("acc", 100, now.Add(-5*time.Second)),
			historyTx("acc", 100, now.Add(-10*time.Second)),
		}}
		got, _ := CheckLoginAnomaly(ctx, store, &domain.Candidate{AccountID: "acc"}, now)
		if got {
			t.Error("fewer than three transactions should not flag")
		}
	})
}

func TestCheckSuspiciousRecipient(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := &memStore{fraudulent: map[string]bool{"acc-bad": true}}

	t.Run("NothingToCheck", func(t *testing.T) {
		got, _ := CheckSuspiciousRecipient(ctx, store, &domain.Candidate{AccountID: "acc"}, now)
		if got {
			t.Error("no recipient and no description must not flag")
		}
	})

	t.Run("FraudulentRecipient", func(t *testing.T) {
		got, _ := CheckSuspiciousRecipient(ctx, store, &domain.Candidate{AccountID: "acc", RecipientAccountID: "acc-bad"}, now)
		if !got {
			t.Error("known fraudulent recipient should flag")
		}
	})

	t.Run("CleanRecipient", func(t *testing.T) {
		got, _ := CheckSuspiciousRecipient(ctx, store, &domain.Candidate{AccountID: "acc", RecipientAccountID: "acc-ok", Description: "rent"}, now)
		if got {
			t.Error("clean recipient and description should not flag")
		}
	})

	t.Run("Keywords", func(t *testing.T) {
		for _, desc := range []string{"URGENT wire", "buy Bitcoin now", "gift card refill", "emergency funds", "please help me", "crypto exchange"} {
			got, _ := CheckSuspiciousRecipient(ctx, store, &domain.Candidate{AccountID: "acc", Description: desc}, now)
			if !got {
				t.Errorf("description %q should flag", desc)
			}
		}
	})
}

func TestCheckCircularTransaction(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	store := &memStore{transactions: []*domain.Transaction{
		historyTx("acc-a", 100, now.Add(-time.Hour)),
		historyTx("acc-b", 100, now.Add(-2*time.Hour)),
	}}

	t.Run("BothActive", func(t *testing.T) {
		got, _ := CheckCircularTransaction(ctx, store, &domain.Candidate{AccountID: "acc-a", RecipientAccountID: "acc-b"}, now)
		if !got {
			t.Error("both parties active in the window should flag")
		}
	})

	t.Run("RecipientIdle", func(t *testing.T) {
		got, _ := CheckCircularTransaction(ctx, store, &domain.Candidate{AccountID: "acc-a", RecipientAccountID: "acc-c"}, now)
		if got {
			t.Error("idle recipient should not flag")
		}
	})

	t.Run("NoRecipient", func(t *testing.T) {
		got, _ := CheckCircularTransaction(ctx, store, &domain.Candidate{AccountID: "acc-a"}, now)
		if got {
			t.Error("missing recipient must not flag")
		}
	})
}

func TestCheckTimeAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()
	day := time.Date(2026, 3, 10, 0, 0, 0, 0, time.UTC)

	t.Run("UnusualHourNoHistory", func(t *testing.T) {
		store := &memStore{}
		c := &domain.Candidate{AccountID: "acc", Timestamp: day.Add(3 * time.Hour)}
		got, _ := CheckTimeAnomaly(ctx, store, c, now)
		if !got {
			t.Error("03:00 transaction should flag even without history")
		}
	})

	t.Run("DaytimeNoHistory", func(t *testing.T) {
		store := &memStore{}
		c := &domain.Candidate{AccountID: "acc", Timestamp: day.Add(14 * time.Hour)}
		got, _ := CheckTimeAnomaly(ctx, store, c, now)
		if got {
			t.Error("14:00 transaction without history should not flag")
		}
	})

	t.Run("FarFromUsualHour", func(t *testing.T) {
		store := &memStore{}
		// Account usually transacts around 10:00.
		for i := 0; i < 4; i++ {
			store.transactions = append(store.transactions,
				historyTx("acc", 100, now.Add(-time.Duration(i+1)*24*time.Hour).Truncate(24*time.Hour).Add(10*time.Hour)))
		}
		c := &domain.Candidate{AccountID: "acc", Timestamp: day.Add(22 * time.Hour)}
		got, _ := CheckTimeAnomaly(ctx, store, c, now)
		if !got {
			t.Error("22:00 against a 10:00 average should flag")
		}
	})
}

func TestCheckVelocityAnomaly(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("ThreeInFiveMinutes", func(t *testing.T) {
		store := &memStore{}
		for i := 0; i < 3; i++ {
			store.transactions = append(store.transactions, historyTx("acc", 100, now.Add(-time.Duration(i+1)*time.Minute)))
		}
		got, _ := CheckVelocityAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Timestamp: now}, now)
		if got {
			t.Error("3 prior transactions in 5 minutes should not flag")
		}
	})

	t.Run("FourInFiveMinutes", func(t *testing.T) {
		store := &memStore{}
		for i := 0; i < 4; i++ {
			store.transactions = append(store.transactions, historyTx("acc", 100, now.Add(-time.Duration(i)*time.Minute)))
		}
		got, _ := CheckVelocityAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Timestamp: now}, now)
		if !got {
			t.Error("4 prior transactions in 5 minutes should flag")
		}
	})

	t.Run("HourTier", func(t *testing.T) {
		store := &memStore{}
		for i := 0; i < 11; i++ {
			store.transactions = append(store.transactions, historyTx("acc", 100, now.Add(-time.Duration(20+i*3)*time.Minute)))
		}
		got, _ := CheckVelocityAnomaly(ctx, store, &domain.Candidate{AccountID: "acc", Timestamp: now}, now)
		if !got {
			t.Error("11 prior transactions in the hour should flag")
		}
	})
}

func TestCheckStatisticalOutlier(t *testing.T) {
	ctx := context.Background()
	now := time.Now().UTC()

	t.Run("TooFewSamples", func(t *testing.T) {
		store := &memStore{}
		for i := 0; i < 4; i++ {
			store.transactions = append(store.transactions, historyTx("acc", 100, now.Add(-time.Duration(i+1)*time.Hour)))
		}
		got, _ := CheckStatisticalOutlier(ctx, store, &domain.Candidate{AccountID: "acc", Amount: 1000000}, now)
		if got {
			t.Error("fewer than 5 samples must not flag")
		}
	})

	t.Run("ZeroVariance", func(t *testing.T) {
		store := &memStore{}
		for i := 0; i < 6; i++ {
			store.transactions = append(store.transactions, historyTx("acc", 100, now.Add(-time.Duration(i+1)*time.Hour)))
		}
		got, _ := CheckStatisticalOutlier(ctx, store, &domain.Candidate{AccountID: "acc", Amount: 1000000}, now)
		if got {
			t.Error("identical history amounts must not flag")
		}
	})

	t.Run("Outlier", func(t *testing.T) {
		store := &memStore{}
		amounts := []float64{100, 100, 100, 100, 300}
		for i, a := range amounts {
			store.transactions = append(store.transactions, historyTx("acc", a, now.Add(-time.Duration(i+1)*time.Hour)))
		}
		// mean 140, population stddev 80; z(1000) = 10.75
		got, _ := CheckStatisticalOutlier(ctx, store, &domain.Candidate{AccountID: "acc", Amount: 1000}, now)
		if !got {
			t.Error("amount far outside the distribution should flag")
		}
		// z(200) = 0.75
		got, _ = CheckStatisticalOutlier(ctx, store, &domain.Candidate{AccountID: "acc", Amount: 200}, now)
		if got {
			t.Error("amount within the distribution should not flag")
		}
	})
}

func TestAllOrder(t *testing.T) {
	want := domain.AllFlags()
	detectors := All()
	if len(detectors) != len(want) {
		t.Fatalf("expected %d detectors, got %d", len(want), len(detectors))
	}
	for i, d := range detectors {
		if d.Flag != want[i] {
			t.Errorf("detector %d: expected flag %s, got %s", i, want[i], d.Flag)
		}
	}
}
