// Package repository provides data persistence implementations.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/opensource-finance/kestrel/internal/domain"
)

var (
	ErrNotFound     = errors.New("record not found")
	ErrInvalidInput = errors.New("invalid input")
)

// SQLRepository implements domain.Repository using database/sql.
// Works with both SQLite and PostgreSQL drivers.
type SQLRepository struct {
	db     *sql.DB
	driver string
}

// New creates a new repository based on configuration.
func New(cfg domain.RepositoryConfig) (domain.Repository, error) {
	var db *sql.DB
	var err error

	switch cfg.Driver {
	case "sqlite":
		db, err = openSQLite(cfg)
	case "postgres":
		db, err = openPostgres(cfg)
	default:
		return nil, fmt.Errorf("unsupported driver: %s", cfg.Driver)
	}

	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	repo := &SQLRepository{
		db:     db,
		driver: cfg.Driver,
	}

	// Run migrations
	if err := repo.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return repo, nil
}

func (r *SQLRepository) migrate() error {
	for _, schema := range AllSchemas() {
		if _, err := r.db.Exec(schema); err != nil {
			return err
		}
	}
	return nil
}

const txColumns = `id, account_id, amount, description, category, location,
	   ip_address, device_id, browser_id, recipient_account_id,
	   timestamp, created_at, is_fraudulent, fraud_flags`

// SaveTransaction appends a scored transaction to the store.
func (r *SQLRepository) SaveTransaction(ctx context.Context, tx *domain.Transaction) error {
	if tx == nil || tx.ID == "" {
		return fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	flags := tx.FraudFlags
	if flags == nil {
		flags = []domain.Flag{}
	}
	flagsJSON, _ := json.Marshal(flags)

	fraudulent := 0
	if tx.IsFraudulent {
		fraudulent = 1
	}

	query := `
		INSERT INTO transactions (` + txColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := r.db.ExecContext(ctx, r.rebind(query),
		tx.ID, tx.AccountID, tx.Amount, tx.Description, tx.Category,
		tx.Location, tx.IPAddress,
		nullable(tx.DeviceID), nullable(tx.BrowserID), nullable(tx.RecipientAccountID),
		tx.Timestamp, tx.CreatedAt,
		fraudulent, string(flagsJSON),
	)
	return err
}

// GetTransaction retrieves a transaction by ID.
func (r *SQLRepository) GetTransaction(ctx context.Context, txID string) (*domain.Transaction, error) {
	if txID == "" {
		return nil, fmt.Errorf("%w: transaction id is required", ErrInvalidInput)
	}

	query := `SELECT ` + txColumns + ` FROM transactions WHERE id = ?`

	row := r.db.QueryRowContext(ctx, r.rebind(query), txID)
	tx, err := scanTransaction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return tx, err
}

// ListTransactions returns transactions sorted by timestamp descending.
// A limit <= 0 returns all rows.
func (r *SQLRepository) ListTransactions(ctx context.Context, limit int) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions ORDER BY timestamp DESC` + limitClause(limit)
	return r.queryTransactions(ctx, query)
}

// ListByAccount returns an account's transactions, newest first.
func (r *SQLRepository) ListByAccount(ctx context.Context, accountID string, limit int) ([]*domain.Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountID is required", ErrInvalidInput)
	}

	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE account_id = ?
		ORDER BY timestamp DESC` + limitClause(limit)
	return r.queryTransactions(ctx, query, accountID)
}

// CountByAccountSince counts an account's transactions in a trailing window.
func (r *SQLRepository) CountByAccountSince(ctx context.Context, accountID string, since time.Time) (int64, error) {
	if accountID == "" {
		return 0, fmt.Errorf("%w: accountID is required", ErrInvalidInput)
	}

	query := `SELECT COUNT(*) FROM transactions WHERE account_id = ? AND timestamp >= ?`

	var count int64
	err := r.db.QueryRowContext(ctx, r.rebind(query), accountID, since).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count transactions: %w", err)
	}
	return count, nil
}

// ListByAccountSince returns an account's transactions in a trailing window,
// newest first. A limit <= 0 returns all matching rows.
func (r *SQLRepository) ListByAccountSince(ctx context.Context, accountID string, since time.Time, limit int) ([]*domain.Transaction, error) {
	if accountID == "" {
		return nil, fmt.Errorf("%w: accountID is required", ErrInvalidInput)
	}

	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE account_id = ? AND timestamp >= ?
		ORDER BY timestamp DESC` + limitClause(limit)
	return r.queryTransactions(ctx, query, accountID, since)
}

// HasFraudulentCounterparty reports whether the recipient account appears in
// any transaction already flagged fraudulent, either as the account itself or
// as a substring of a flagged transaction's description.
func (r *SQLRepository) HasFraudulentCounterparty(ctx context.Context, recipientAccountID string) (bool, error) {
	if recipientAccountID == "" {
		return false, nil
	}

	query := `
		SELECT 1 FROM transactions
		WHERE is_fraudulent = 1
		  AND (account_id = ? OR LOWER(description) LIKE '%' || LOWER(?) || '%' ESCAPE '\')
		LIMIT 1
	`

	var one int
	err := r.db.QueryRowContext(ctx, r.rebind(query), recipientAccountID, escapeLike(recipientAccountID)).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// CountTransactions returns the total number of transactions.
func (r *SQLRepository) CountTransactions(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions`).Scan(&count)
	return count, err
}

// CountFraudulent returns the number of flagged transactions.
func (r *SQLRepository) CountFraudulent(ctx context.Context) (int64, error) {
	var count int64
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM transactions WHERE is_fraudulent = 1`).Scan(&count)
	return count, err
}

// SumAmount returns the sum of amounts across all transactions.
func (r *SQLRepository) SumAmount(ctx context.Context) (float64, error) {
	var total sql.NullFloat64
	err := r.db.QueryRowContext(ctx, `SELECT SUM(amount) FROM transactions`).Scan(&total)
	if err != nil {
		return 0, err
	}
	return total.Float64, nil
}

// ListFraudulent returns all flagged transactions, newest first.
func (r *SQLRepository) ListFraudulent(ctx context.Context) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE is_fraudulent = 1
		ORDER BY timestamp DESC`
	return r.queryTransactions(ctx, query)
}

// ListSince returns all transactions in a trailing window, newest first.
func (r *SQLRepository) ListSince(ctx context.Context, since time.Time) ([]*domain.Transaction, error) {
	query := `SELECT ` + txColumns + ` FROM transactions
		WHERE timestamp >= ?
		ORDER BY timestamp DESC`
	return r.queryTransactions(ctx, query, since)
}

// TopLocations returns the busiest locations by transaction count.
func (r *SQLRepository) TopLocations(ctx context.Context, limit int) ([]domain.LocationCount, error) {
	if limit <= 0 {
		limit = 10
	}

	query := `
		SELECT location, COUNT(*) AS cnt FROM transactions
		GROUP BY location
		ORDER BY cnt DESC` + limitClause(limit)

	rows, err := r.db.QueryContext(ctx, r.rebind(query))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var locations []domain.LocationCount
	for rows.Next() {
		var lc domain.LocationCount
		if err := rows.Scan(&lc.Name, &lc.Count); err != nil {
			return nil, err
		}
		locations = append(locations, lc)
	}
	return locations, rows.Err()
}

// Ping checks database connectivity.
func (r *SQLRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close closes the database connection.
func (r *SQLRepository) Close() error {
	return r.db.Close()
}

func (r *SQLRepository) queryTransactions(ctx context.Context, query string, args ...any) ([]*domain.Transaction, error) {
	rows, err := r.db.QueryContext(ctx, r.rebind(query), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var transactions []*domain.Transaction
	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}
		transactions = append(transactions, tx)
	}
	return transactions, rows.Err()
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanTransaction(s scanner) (*domain.Transaction, error) {
	var tx domain.Transaction
	var deviceID, browserID, recipientID sql.NullString
	var fraudulent int
	var flagsJSON string

	err := s.Scan(
		&tx.ID, &tx.AccountID, &tx.Amount, &tx.Description, &tx.Category,
		&tx.Location, &tx.IPAddress,
		&deviceID, &browserID, &recipientID,
		&tx.Timestamp, &tx.CreatedAt,
		&fraudulent, &flagsJSON,
	)
	if err != nil {
		return nil, err
	}

	tx.DeviceID = deviceID.String
	tx.BrowserID = browserID.String
	tx.RecipientAccountID = recipientID.String
	tx.IsFraudulent = fraudulent == 1
	if err := json.Unmarshal([]byte(flagsJSON), &tx.FraudFlags); err != nil {
		return nil, fmt.Errorf("failed to parse fraud flags for %s: %w", tx.ID, err)
	}

	return &tx, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// escapeLike neutralizes LIKE metacharacters so a value with % or _
// matches literally.
func escapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}

func limitClause(limit int) string {
	if limit <= 0 {
		return ""
	}
	return fmt.Sprintf(" LIMIT %d", limit)
}

// rebind converts ? placeholders to $1, $2, etc. for PostgreSQL.
func (r *SQLRepository) rebind(query string) string {
	if r.driver != "postgres" {
		return query
	}

	var b strings.Builder
	n := 1
	for i := 0; i < len(query); i++ {
		if query[i] == '?' {
			fmt.Fprintf(&b, "$%d", n)
			n++
		} else {
			b.WriteByte(query[i])
		}
	}
	return b.String()
}
