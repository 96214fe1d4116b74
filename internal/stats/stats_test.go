package stats

import (
	"context"
	"log/slog"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/opensource-finance/kestrel/internal/domain"
	"github.com/opensource-finance/kestrel/internal/repository"
)

func newTestRepo(t *testing.T) domain.Repository {
	t.Helper()

	tmpFile, err := os.CreateTemp("", "kestrel-stats-*.db")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	tmpPath := tmpFile.Name()
	tmpFile.Close()
	t.Cleanup(func() { os.Remove(tmpPath) })

	repo, err := repository.New(domain.RepositoryConfig{Driver: "sqlite", SQLitePath: tmpPath})
	if err != nil {
		t.Fatalf("failed to create repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })
	return repo
}

func save(t *testing.T, repo domain.Repository, accountID string, amount float64, ts time.Time, flags ...domain.Flag) {
	t.Helper()
	if flags == nil {
		flags = []domain.Flag{}
	}
	tx := &domain.Transaction{
		ID:           uuid.NewString(),
		AccountID:    accountID,
		Amount:       amount,
		Description:  "test",
		Category:     "purchase",
		Location:     "New York",
		IPAddress:    "10.0.0.1",
		Timestamp:    ts,
		CreatedAt:    time.Now().UTC(),
		IsFraudulent: len(flags) > 0,
		FraudFlags:   flags,
	}
	if err := repo.SaveTransaction(context.Background(), tx); err != nil {
		t.Fatalf("SaveTransaction failed: %v", err)
	}
}

func TestSnapshotEmpty(t *testing.T) {
	svc := New(newTestRepo(t), nil, slog.Default())
	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.TotalTransactions != 0 {
		t.Errorf("expected 0 transactions, got %d", snap.TotalTransactions)
	}
	if snap.FraudulentPercentage != 0 {
		t.Errorf("expected 0%% on empty store, got %f", snap.FraudulentPercentage)
	}
	if snap.TotalAmount != 0 {
		t.Errorf("expected 0 total amount, got %f", snap.TotalAmount)
	}
}

func TestSnapshotAggregates(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()

	save(t, repo, "acc-1", 100, now.Add(-time.Hour))
	save(t, repo, "acc-1", 200, now.Add(-2*time.Hour))
	save(t, repo, "acc-2", 300, now.Add(-3*time.Hour), domain.FlagHighValue, domain.FlagVelocityAnomaly)
	save(t, repo, "acc-3", 400, now.Add(-48*time.Hour),
		domain.FlagHighValue, domain.FlagLocationAnomaly, domain.FlagDeviceAnomaly, domain.FlagTimeAnomaly)

	svc := New(repo, nil, slog.Default())
	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}

	if snap.TotalTransactions != 4 {
		t.Errorf("expected 4 transactions, got %d", snap.TotalTransactions)
	}
	if snap.FraudulentTransactions != 2 {
		t.Errorf("expected 2 fraudulent, got %d", snap.FraudulentTransactions)
	}
	if snap.FraudulentPercentage != 50 {
		t.Errorf("expected 50%%, got %f", snap.FraudulentPercentage)
	}
	if snap.TotalAmount != 1000 {
		t.Errorf("expected total 1000, got %f", snap.TotalAmount)
	}

	t.Run("FlagStats", func(t *testing.T) {
		want := map[domain.Flag]int64{
			domain.FlagHighValue:       2,
			domain.FlagLocationAnomaly: 1,
			domain.FlagDeviceAnomaly:   1,
			domain.FlagTimeAnomaly:     1,
			domain.FlagVelocityAnomaly: 1,
		}
		if len(snap.FlagStats) != len(want) {
			t.Fatalf("expected %d flag entries, got %d", len(want), len(snap.FlagStats))
		}
		for _, fc := range snap.FlagStats {
			if want[fc.Flag] != fc.Count {
				t.Errorf("flag %s: expected %d, got %d", fc.Flag, want[fc.Flag], fc.Count)
			}
		}
	})

	t.Run("RiskDistribution", func(t *testing.T) {
		if snap.RiskDistribution.High != 1 {
			t.Errorf("expected 1 high risk, got %d", snap.RiskDistribution.High)
		}
		if snap.RiskDistribution.Medium != 1 {
			t.Errorf("expected 1 medium risk, got %d", snap.RiskDistribution.Medium)
		}
		if snap.RiskDistribution.Low != 2 {
			t.Errorf("expected 2 low risk, got %d", snap.RiskDistribution.Low)
		}
	})

	t.Run("Timeline", func(t *testing.T) {
		// Only the three transactions in the trailing 24h appear.
		var total int64
		for _, p := range snap.TimelineData.All {
			total += p.Count
		}
		if total != 3 {
			t.Errorf("expected 3 transactions in timeline, got %d", total)
		}
		for i := 1; i < len(snap.TimelineData.All); i++ {
			if snap.TimelineData.All[i].Timestamp < snap.TimelineData.All[i-1].Timestamp {
				t.Error("timeline must be ascending")
			}
		}
	})

	t.Run("TopLocationsAndRecent", func(t *testing.T) {
		if len(snap.TopLocations) != 1 || snap.TopLocations[0].Count != 4 {
			t.Errorf("unexpected top locations: %+v", snap.TopLocations)
		}
		if len(snap.RecentTransactions) != 4 {
			t.Errorf("expected 4 recent transactions, got %d", len(snap.RecentTransactions))
		}
	})
}

func TestSingleFlagInNoRiskTier(t *testing.T) {
	repo := newTestRepo(t)
	now := time.Now().UTC()
	save(t, repo, "acc-1", 100, now, domain.FlagHighValue)

	svc := New(repo, nil, slog.Default())
	snap, err := svc.Snapshot(context.Background())
	if err != nil {
		t.Fatalf("Snapshot failed: %v", err)
	}
	if snap.RiskDistribution.High != 0 || snap.RiskDistribution.Medium != 0 {
		t.Errorf("single flag transaction must not appear in high or medium: %+v", snap.RiskDistribution)
	}
	if snap.RiskDistribution.Low != 0 {
		t.Errorf("flagged transaction must not count as low: %+v", snap.RiskDistribution)
	}
}
