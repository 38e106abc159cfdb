package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var _ TransactionRepository = (*SQLiteCaptureRepository)(nil)

// sqliteSchemaVersion is the latest schema version the repository expects.
const sqliteSchemaVersion = 1

// Migration represents a SQLite schema migration.
type Migration struct {
	Up          func(*sql.Tx) error
	Description string
	Version     int
}

var sqliteMigrations = []Migration{
	{
		Version:     1,
		Description: "Captured transactions",
		Up: func(tx *sql.Tx) error {
			queries := []string{
				`CREATE TABLE IF NOT EXISTS captured_transactions (
					id TEXT PRIMARY KEY,
					amount_minor INTEGER NOT NULL CHECK (amount_minor > 0),
					currency_code TEXT NOT NULL,
					original_amount_minor INTEGER,
					original_currency TEXT,
					type TEXT NOT NULL,
					category TEXT NOT NULL,
					merchant TEXT,
					description TEXT NOT NULL,
					posted_at_ms INTEGER NOT NULL,
					source TEXT NOT NULL,
					reward_credit INTEGER NOT NULL DEFAULT 0,
					created_at_ms INTEGER NOT NULL
				)`,
				`CREATE INDEX IF NOT EXISTS idx_captured_source_posted ON captured_transactions(source, posted_at_ms)`,
			}
			for _, query := range queries {
				if _, err := tx.Exec(query); err != nil {
					return fmt.Errorf("failed to execute query: %w", err)
				}
			}
			return nil
		},
	},
}

const (
	sqliteInsertQuery = `
		INSERT INTO captured_transactions (
			id, amount_minor, currency_code, original_amount_minor, original_currency,
			type, category, merchant, description, posted_at_ms, source, reward_credit, created_at_ms
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

	sqliteSelectColumns = `
		SELECT id, amount_minor, currency_code, original_amount_minor, original_currency,
		       type, category, merchant, description, posted_at_ms, source, reward_credit, created_at_ms
		FROM captured_transactions`
)

// SQLiteCaptureRepository implements TransactionRepository on a local SQLite file.
// Timestamps are stored as unix milliseconds so range queries compare numerically.
type SQLiteCaptureRepository struct {
	db     *sql.DB
	logger *slog.Logger
	now    func() time.Time
}

// NewSQLiteCaptureRepository opens (or creates) the database at path and migrates it.
// Use ":memory:" for a throwaway store.
func NewSQLiteCaptureRepository(ctx context.Context, path string, logger *slog.Logger) (*SQLiteCaptureRepository, error) {
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = path + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite doesn't benefit from multiple connections; one also keeps :memory: stable
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	repo := &SQLiteCaptureRepository{db: db, logger: logger, now: time.Now}
	if err := repo.Migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// Migrate applies pending migrations tracked through PRAGMA user_version.
func (r *SQLiteCaptureRepository) Migrate(ctx context.Context) error {
	var current int
	if err := r.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&current); err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}

	for _, m := range sqliteMigrations {
		if m.Version <= current {
			continue
		}

		tx, err := r.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("failed to begin transaction: %w", err)
		}
		if err := m.Up(tx); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("migration %d failed: %w", m.Version, err)
		}
		if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", m.Version)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("failed to update schema version: %w", err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("failed to commit migration %d: %w", m.Version, err)
		}

		r.logger.Info("Applied migration", "version", m.Version, "description", m.Description)
	}

	var final int
	if err := r.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&final); err != nil {
		return fmt.Errorf("failed to verify final schema version: %w", err)
	}
	if final != sqliteSchemaVersion {
		return fmt.Errorf("database schema version mismatch: expected %d, got %d", sqliteSchemaVersion, final)
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteCaptureRepository) Close() error {
	return r.db.Close()
}

// Insert stores a capture.
func (r *SQLiteCaptureRepository) Insert(ctx context.Context, c common.CandidateTransaction) (uuid.UUID, error) {
	row := newTransactionRow(uuid.New(), c)
	row.CreatedAt = r.now().UTC()

	_, err := r.db.ExecContext(ctx, sqliteInsertQuery,
		row.ID.String(), row.AmountMinor, row.CurrencyCode, row.OriginalAmountMinor, row.OriginalCurrency,
		row.Type, row.Category, row.Merchant, row.Description, row.PostedAt.UnixMilli(), row.Source,
		row.RewardCredit, row.CreatedAt.UnixMilli(),
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert captured transaction: %w", err)
	}
	return row.ID, nil
}

// QueryRecentBySource lists captures of one source since a point in time, newest first.
func (r *SQLiteCaptureRepository) QueryRecentBySource(ctx context.Context, since time.Time, kind common.SourceKind) ([]common.Transaction, error) {
	rows, err := r.db.QueryContext(ctx,
		sqliteSelectColumns+` WHERE source = ? AND posted_at_ms >= ? ORDER BY posted_at_ms DESC`,
		string(kind), since.UnixMilli(),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}
	defer rows.Close()

	var out []common.Transaction
	for rows.Next() {
		tx, err := scanSQLiteRow(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate recent transactions: %w", err)
	}
	return out, nil
}

// GetByID loads one capture.
func (r *SQLiteCaptureRepository) GetByID(ctx context.Context, id uuid.UUID) (*common.Transaction, error) {
	row := r.db.QueryRowContext(ctx, sqliteSelectColumns+` WHERE id = ?`, id.String())
	tx, err := scanSQLiteRow(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &tx, nil
}

// CountBySource returns how many captures each source produced.
func (r *SQLiteCaptureRepository) CountBySource(ctx context.Context) (map[common.SourceKind]int, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT source, COUNT(*) FROM captured_transactions GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to count transactions: %w", err)
	}
	defer rows.Close()

	out := make(map[common.SourceKind]int)
	for rows.Next() {
		var source string
		var n int
		if err := rows.Scan(&source, &n); err != nil {
			return nil, fmt.Errorf("failed to scan count: %w", err)
		}
		out[common.SourceKind(source)] = n
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSQLiteRow(s scanner) (common.Transaction, error) {
	var (
		row       transactionRow
		id        string
		postedMS  int64
		createdMS int64
	)
	err := s.Scan(&id, &row.AmountMinor, &row.CurrencyCode, &row.OriginalAmountMinor, &row.OriginalCurrency,
		&row.Type, &row.Category, &row.Merchant, &row.Description, &postedMS, &row.Source,
		&row.RewardCredit, &createdMS)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return common.Transaction{}, err
		}
		return common.Transaction{}, fmt.Errorf("failed to scan transaction: %w", err)
	}

	row.ID, err = uuid.Parse(id)
	if err != nil {
		return common.Transaction{}, fmt.Errorf("invalid transaction id %q: %w", id, err)
	}
	row.PostedAt = time.UnixMilli(postedMS).UTC()
	row.CreatedAt = time.UnixMilli(createdMS).UTC()
	return row.toTransaction()
}
