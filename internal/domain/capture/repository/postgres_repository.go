package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// PgxPool abstracts the subset of pgxpool.Pool used by the repository to allow mocking in tests.
type PgxPool interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ PgxPool = (*pgxpool.Pool)(nil)

var _ TransactionRepository = (*PostgresCaptureRepository)(nil)

const (
	insertTransactionQuery = `
		INSERT INTO captured_transactions (
			id, amount_minor, currency_code, original_amount_minor, original_currency,
			type, category, merchant, description, posted_at, source, reward_credit
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at
	`

	queryRecentBySourceQuery = `
		SELECT id, amount_minor, currency_code, original_amount_minor, original_currency,
		       type, category, merchant, description, posted_at, source, reward_credit, created_at
		FROM captured_transactions
		WHERE source = $1 AND posted_at >= $2
		ORDER BY posted_at DESC
	`

	getTransactionByIDQuery = `
		SELECT id, amount_minor, currency_code, original_amount_minor, original_currency,
		       type, category, merchant, description, posted_at, source, reward_credit, created_at
		FROM captured_transactions
		WHERE id = $1
	`
)

// PostgresCaptureRepository implements TransactionRepository using PostgreSQL
type PostgresCaptureRepository struct {
	pgpool PgxPool
}

// NewPostgresCaptureRepository creates a new PostgreSQL-backed capture repository
func NewPostgresCaptureRepository(pgpool PgxPool) *PostgresCaptureRepository {
	return &PostgresCaptureRepository{pgpool: pgpool}
}

type insertedRow struct {
	ID        uuid.UUID `db:"id"`
	CreatedAt time.Time `db:"created_at"`
}

// Insert stores a capture
func (r *PostgresCaptureRepository) Insert(ctx context.Context, c common.CandidateTransaction) (uuid.UUID, error) {
	row := newTransactionRow(uuid.New(), c)

	rows, err := r.pgpool.Query(ctx, insertTransactionQuery,
		row.ID, row.AmountMinor, row.CurrencyCode, row.OriginalAmountMinor, row.OriginalCurrency,
		row.Type, row.Category, row.Merchant, row.Description, row.PostedAt, row.Source, row.RewardCredit,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert captured transaction: %w", err)
	}

	inserted, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[insertedRow])
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert captured transaction: %w", err)
	}
	return inserted.ID, nil
}

// QueryRecentBySource lists captures of one source since a point in time
func (r *PostgresCaptureRepository) QueryRecentBySource(ctx context.Context, since time.Time, kind common.SourceKind) ([]common.Transaction, error) {
	rows, err := r.pgpool.Query(ctx, queryRecentBySourceQuery, string(kind), since.UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to query recent transactions: %w", err)
	}

	dbRows, err := pgx.CollectRows(rows, pgx.RowToStructByName[transactionRow])
	if err != nil {
		return nil, fmt.Errorf("failed to scan recent transactions: %w", err)
	}

	out := make([]common.Transaction, 0, len(dbRows))
	for _, row := range dbRows {
		tx, err := row.toTransaction()
		if err != nil {
			return nil, err
		}
		out = append(out, tx)
	}
	return out, nil
}

// GetByID loads one capture
func (r *PostgresCaptureRepository) GetByID(ctx context.Context, id uuid.UUID) (*common.Transaction, error) {
	rows, err := r.pgpool.Query(ctx, getTransactionByIDQuery, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get captured transaction: %w", err)
	}

	row, err := pgx.CollectOneRow(rows, pgx.RowToStructByName[transactionRow])
	if err == pgx.ErrNoRows {
		return nil, common.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get captured transaction: %w", err)
	}

	tx, err := row.toTransaction()
	if err != nil {
		return nil, err
	}
	return &tx, nil
}
