// Package repository provides data access for captured transactions.
package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

// TransactionRepository is the storage collaborator of the capture pipeline.
type TransactionRepository interface {
	// Insert persists a new capture and returns its id.
	Insert(ctx context.Context, tx common.CandidateTransaction) (uuid.UUID, error)
	// QueryRecentBySource returns captures of kind posted at or after since, newest first.
	QueryRecentBySource(ctx context.Context, since time.Time, kind common.SourceKind) ([]common.Transaction, error)
}

// transactionRow mirrors captured_transactions. Amounts are stored in minor units.
type transactionRow struct {
	ID                  uuid.UUID `db:"id"`
	AmountMinor         int64     `db:"amount_minor"`
	CurrencyCode        string    `db:"currency_code"`
	OriginalAmountMinor *int64    `db:"original_amount_minor"`
	OriginalCurrency    *string   `db:"original_currency"`
	Type                string    `db:"type"`
	Category            string    `db:"category"`
	Merchant            *string   `db:"merchant"`
	Description         string    `db:"description"`
	PostedAt            time.Time `db:"posted_at"`
	Source              string    `db:"source"`
	RewardCredit        int       `db:"reward_credit"`
	CreatedAt           time.Time `db:"created_at"`
}

func newTransactionRow(id uuid.UUID, c common.CandidateTransaction) transactionRow {
	row := transactionRow{
		ID:           id,
		AmountMinor:  toMinor(c.Amount),
		CurrencyCode: string(c.Currency),
		Type:         string(c.Type),
		Category:     string(c.Category),
		Merchant:     c.Merchant,
		Description:  c.Description,
		PostedAt:     c.Timestamp.UTC(),
		Source:       string(c.SourceKind),
		RewardCredit: c.RewardCredit,
	}
	if c.OriginalAmount != nil && c.OriginalCurrency != nil {
		minor := toMinor(*c.OriginalAmount)
		code := string(*c.OriginalCurrency)
		row.OriginalAmountMinor = &minor
		row.OriginalCurrency = &code
	}
	return row
}

func (r transactionRow) toTransaction() (common.Transaction, error) {
	cur, err := common.ParseCurrency(r.CurrencyCode)
	if err != nil {
		return common.Transaction{}, fmt.Errorf("row %s: %w", r.ID, err)
	}
	kind, err := common.ParseSourceKind(r.Source)
	if err != nil {
		return common.Transaction{}, fmt.Errorf("row %s: %w", r.ID, err)
	}

	tx := common.Transaction{
		ID: r.ID,
		CandidateTransaction: common.CandidateTransaction{
			Amount:       fromMinor(r.AmountMinor),
			Currency:     cur,
			Type:         common.TransactionType(r.Type),
			Category:     common.Category(r.Category),
			Merchant:     r.Merchant,
			Description:  r.Description,
			Timestamp:    r.PostedAt,
			SourceKind:   kind,
			RewardCredit: r.RewardCredit,
		},
		CreatedAt: r.CreatedAt,
	}
	if r.OriginalAmountMinor != nil && r.OriginalCurrency != nil {
		orig, err := common.ParseCurrency(*r.OriginalCurrency)
		if err != nil {
			return common.Transaction{}, fmt.Errorf("row %s: %w", r.ID, err)
		}
		amount := fromMinor(*r.OriginalAmountMinor)
		tx.OriginalAmount = &amount
		tx.OriginalCurrency = &orig
	}
	return tx, nil
}

// toMinor converts to cents, rounding half away from zero.
func toMinor(d decimal.Decimal) int64 {
	return d.Shift(2).Round(0).IntPart()
}

func fromMinor(v int64) decimal.Decimal {
	return decimal.New(v, -2)
}
