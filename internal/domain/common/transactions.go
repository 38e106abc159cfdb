package common

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType is the direction of money flow.
type TransactionType string

const (
	TypeExpense TransactionType = "expense"
	TypeIncome  TransactionType = "income"
)

// Category is a spending (or earning) bucket.
type Category string

const (
	CategoryGroceries     Category = "Groceries"
	CategoryDining        Category = "Dining"
	CategoryFuel          Category = "Fuel"
	CategoryTransport     Category = "Transport"
	CategoryUtilities     Category = "Utilities"
	CategoryShopping      Category = "Shopping"
	CategoryHealth        Category = "Health"
	CategoryEntertainment Category = "Entertainment"
	CategoryTravel        Category = "Travel"
	CategoryCash          Category = "Cash"
	CategorySalary        Category = "Salary"
	CategoryOtherExpense  Category = "Other Expense"
	CategoryOtherIncome   Category = "Other Income"
)

// Money is an amount tagged with its canonical currency.
type Money struct {
	Value    decimal.Decimal
	Currency Currency
}

// ParsedAmount is the normalizer's result. Original is nil unless a conversion happened.
type ParsedAmount struct {
	Value    decimal.Decimal
	Currency Currency
	Original *Money
}

// Converted reports whether the amount was translated into the home currency.
func (p ParsedAmount) Converted() bool {
	return p.Original != nil
}

// CandidateTransaction is built per parsed event and lives only until dedup decides its fate.
type CandidateTransaction struct {
	Amount           decimal.Decimal
	Currency         Currency
	OriginalAmount   *decimal.Decimal
	OriginalCurrency *Currency
	Type             TransactionType
	Category         Category
	Merchant         *string
	Description      string
	Timestamp        time.Time
	SourceKind       SourceKind
	RewardCredit     int
}

// MerchantName returns the merchant or "" when none was extracted.
func (c CandidateTransaction) MerchantName() string {
	if c.Merchant == nil {
		return ""
	}
	return *c.Merchant
}

// Validate checks the invariants every candidate must satisfy before persistence.
func (c CandidateTransaction) Validate() error {
	if !c.Amount.IsPositive() {
		return ErrInvalidCandidate
	}
	if c.OriginalCurrency != nil && *c.OriginalCurrency == c.Currency {
		return ErrInvalidCandidate
	}
	if (c.OriginalAmount == nil) != (c.OriginalCurrency == nil) {
		return ErrInvalidCandidate
	}
	return nil
}

// Transaction is a persisted capture as returned by the storage collaborator.
type Transaction struct {
	ID uuid.UUID
	CandidateTransaction
	CreatedAt time.Time
}
