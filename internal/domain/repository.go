// Package domain defines the core types and interfaces for Kestrel.
package domain

import (
	"context"
	"time"
)

// Repository is the transaction store the scoring engine queries.
// All list methods return transactions sorted by timestamp descending.
// Transaction records are append-only: there is no update or delete.
type Repository interface {
	// Write path
	SaveTransaction(ctx context.Context, tx *Transaction) error

	// Read surface
	GetTransaction(ctx context.Context, txID string) (*Transaction, error)
	ListTransactions(ctx context.Context, limit int) ([]*Transaction, error)
	ListByAccount(ctx context.Context, accountID string, limit int) ([]*Transaction, error)

	// Detector query primitives
	CountByAccountSince(ctx context.Context, accountID string, since time.Time) (int64, error)
	ListByAccountSince(ctx context.Context, accountID string, since time.Time, limit int) ([]*Transaction, error)
	HasFraudulentCounterparty(ctx context.Context, recipientAccountID string) (bool, error)

	// Stats aggregation primitives
	CountTransactions(ctx context.Context) (int64, error)
	CountFraudulent(ctx context.Context) (int64, error)
	SumAmount(ctx context.Context) (float64, error)
	ListFraudulent(ctx context.Context) ([]*Transaction, error)
	ListSince(ctx context.Context, since time.Time) ([]*Transaction, error)
	TopLocations(ctx context.Context, limit int) ([]LocationCount, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// LocationCount is one row of the location leaderboard.
type LocationCount struct {
	Name  string `json:"name"`
	Count int64  `json:"count"`
}

// RepositoryConfig holds configuration for repository initialization.
type RepositoryConfig struct {
	// Driver is the database driver: "sqlite" or "postgres"
	Driver string

	// SQLite specific
	SQLitePath string

	// PostgreSQL specific
	PostgresHost     string
	PostgresPort     int
	PostgresUser     string
	PostgresPassword string
	PostgresDB       string
	PostgresSSLMode  string

	// Connection pool settings
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}
