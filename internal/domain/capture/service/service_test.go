package service

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/dedup"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/normalizer"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rates"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/capture/rules"
	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

type MockRepo struct {
	mock.Mock
}

func (m *MockRepo) Insert(ctx context.Context, tx common.CandidateTransaction) (uuid.UUID, error) {
	args := m.Called(ctx, tx)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

func (m *MockRepo) QueryRecentBySource(ctx context.Context, since time.Time, kind common.SourceKind) ([]common.Transaction, error) {
	args := m.Called(ctx, since, kind)
	var txs []common.Transaction
	if v := args.Get(0); v != nil {
		txs = v.([]common.Transaction)
	}
	return txs, args.Error(1)
}

type MockAck struct {
	mock.Mock
}

func (m *MockAck) Acknowledge(ctx context.Context, id uuid.UUID, credit int) {
	m.Called(ctx, id, credit)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestService(t *testing.T, repo *MockRepo, ack Acknowledger, cfg Config) *CaptureService {
	t.Helper()
	logger := discardLogger()
	tables := rules.Default()

	table, err := rates.NewTable(common.CurrencyRSD, map[common.Currency]decimal.Decimal{
		common.CurrencyUSD: decimal.RequireFromString("108.9"),
		common.CurrencyEUR: decimal.RequireFromString("117.2"),
	})
	require.NoError(t, err)

	pipeline := NewPipeline(tables, normalizer.NewCurrencyNormalizer(tables, common.CurrencyRSD, table), 10, logger)
	dd := dedup.New(repo, dedup.DefaultConfig(), logger)
	return NewCaptureService(pipeline, dd, repo, ack, cfg, logger)
}

var postedAt = time.Date(2025, 3, 12, 10, 0, 0, 0, time.UTC)

func bankEvent(text string) common.NotificationEvent {
	return common.NotificationEvent{
		SourcePackage: "rs.bancaintesa.mobilebanking",
		Title:         "Banca Intesa",
		Text:          text,
		PostTimestamp: postedAt.UnixMilli(),
		SourceKind:    common.SourceNotification,
	}
}

func TestCaptureService_Process_Captured(t *testing.T) {
	repo := new(MockRepo)
	ack := new(MockAck)
	svc := newTestService(t, repo, ack, Config{})

	id := uuid.New()
	repo.On("QueryRecentBySource", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(c common.CandidateTransaction) bool {
		return c.Amount.Equal(decimal.RequireFromString("1234.56")) &&
			c.Currency == common.CurrencyRSD &&
			c.MerchantName() == "MAXI" &&
			c.Category == common.CategoryGroceries &&
			c.Type == common.TypeExpense &&
			c.Description == "Payment at MAXI" &&
			c.RewardCredit == 10 &&
			c.Timestamp.Equal(postedAt) &&
			c.OriginalAmount == nil
	})).Return(id, nil).Once()
	ack.On("Acknowledge", mock.Anything, id, 10).Once()

	outcome, err := svc.Process(context.Background(), bankEvent("Plaćeno karticom: 1.234,56 RSD na MAXI"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCaptured, outcome)

	repo.AssertExpectations(t)
	ack.AssertExpectations(t)
	repo.AssertNumberOfCalls(t, "QueryRecentBySource", 2)
}

func TestCaptureService_Process_ForeignCurrency(t *testing.T) {
	repo := new(MockRepo)
	ack := new(MockAck)
	svc := newTestService(t, repo, ack, Config{})

	repo.On("QueryRecentBySource", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(c common.CandidateTransaction) bool {
		return c.Amount.Equal(decimal.RequireFromString("1361.25")) &&
			c.Currency == common.CurrencyRSD &&
			c.OriginalAmount != nil && c.OriginalAmount.Equal(decimal.RequireFromString("12.50")) &&
			*c.OriginalCurrency == common.CurrencyUSD &&
			c.Description == "Payment at Starbucks (12.50 USD)" &&
			c.Category == common.CategoryDining
	})).Return(uuid.New(), nil).Once()
	ack.On("Acknowledge", mock.Anything, mock.Anything, 10).Once()

	ev := bankEvent("Payment of $12.50 at Starbucks")
	ev.SourcePackage = "com.revolut.revolut"
	outcome, err := svc.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeCaptured, outcome)
	repo.AssertExpectations(t)
}

func TestCaptureService_Process_IncomeDefaultsToOtherIncome(t *testing.T) {
	repo := new(MockRepo)
	ack := new(MockAck)
	svc := newTestService(t, repo, ack, Config{})

	repo.On("QueryRecentBySource", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("Insert", mock.Anything, mock.MatchedBy(func(c common.CandidateTransaction) bool {
		return c.Type == common.TypeIncome && c.Category == common.CategoryOtherIncome && c.Merchant == nil
	})).Return(uuid.New(), nil).Once()
	ack.On("Acknowledge", mock.Anything, mock.Anything, 10).Once()

	outcome, err := svc.Process(context.Background(), bankEvent("Uplata 5.000,00 RSD"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCaptured, outcome)
	repo.AssertExpectations(t)
}

func TestCaptureService_Process_Rejected(t *testing.T) {
	repo := new(MockRepo)
	svc := newTestService(t, repo, new(MockAck), Config{})

	ev := bankEvent("Plaćeno karticom: 1.234,56 RSD na MAXI")
	ev.SourcePackage = "com.whatsapp"
	outcome, err := svc.Process(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, OutcomeRejected, outcome)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
}

func TestCaptureService_Process_Unparsed(t *testing.T) {
	repo := new(MockRepo)
	svc := newTestService(t, repo, new(MockAck), Config{})

	outcome, err := svc.Process(context.Background(), bankEvent("Vaš jednokratni kod je 483920"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeUnparsed, outcome)
	repo.AssertNotCalled(t, "QueryRecentBySource", mock.Anything, mock.Anything, mock.Anything)
}

func TestCaptureService_Process_Duplicate(t *testing.T) {
	repo := new(MockRepo)
	ack := new(MockAck)
	svc := newTestService(t, repo, ack, Config{})

	merchant := "MAXI"
	existing := common.Transaction{
		ID: uuid.New(),
		CandidateTransaction: common.CandidateTransaction{
			Amount:     decimal.RequireFromString("1234.56"),
			Currency:   common.CurrencyRSD,
			Merchant:   &merchant,
			Timestamp:  postedAt.Add(-time.Minute),
			SourceKind: common.SourceSMS,
		},
	}
	repo.On("QueryRecentBySource", mock.Anything, mock.Anything, common.SourceNotification).Return(nil, nil)
	repo.On("QueryRecentBySource", mock.Anything, mock.Anything, common.SourceSMS).
		Return([]common.Transaction{existing}, nil)

	outcome, err := svc.Process(context.Background(), bankEvent("Plaćeno karticom: 1.234,56 RSD na MAXI"))
	require.NoError(t, err)
	assert.Equal(t, OutcomeDuplicate, outcome)
	repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	ack.AssertNotCalled(t, "Acknowledge", mock.Anything, mock.Anything, mock.Anything)
}

func TestCaptureService_Process_CollaboratorFailures(t *testing.T) {
	t.Run("query failure drops event", func(t *testing.T) {
		repo := new(MockRepo)
		svc := newTestService(t, repo, new(MockAck), Config{})
		boom := errors.New("db down")
		repo.On("QueryRecentBySource", mock.Anything, mock.Anything, mock.Anything).Return(nil, boom)

		outcome, err := svc.Process(context.Background(), bankEvent("Plaćeno 100,00 RSD na MAXI"))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, OutcomeFailed, outcome)
		repo.AssertNotCalled(t, "Insert", mock.Anything, mock.Anything)
	})

	t.Run("insert failure is not retried", func(t *testing.T) {
		repo := new(MockRepo)
		ack := new(MockAck)
		svc := newTestService(t, repo, ack, Config{})
		boom := errors.New("constraint violation")
		repo.On("QueryRecentBySource", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
		repo.On("Insert", mock.Anything, mock.Anything).Return(uuid.Nil, boom).Once()

		outcome, err := svc.Process(context.Background(), bankEvent("Plaćeno 100,00 RSD na MAXI"))
		assert.ErrorIs(t, err, boom)
		assert.Equal(t, OutcomeFailed, outcome)
		repo.AssertNumberOfCalls(t, "Insert", 1)
		ack.AssertNotCalled(t, "Acknowledge", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("missing rate drops event", func(t *testing.T) {
		repo := new(MockRepo)
		svc := newTestService(t, repo, new(MockAck), Config{})

		outcome, err := svc.Process(context.Background(), bankEvent("Plaćeno 20,00 CHF"))
		assert.ErrorIs(t, err, common.ErrRateUnavailable)
		assert.Equal(t, OutcomeFailed, outcome)
	})
}

type panicAck struct{}

func (panicAck) Acknowledge(context.Context, uuid.UUID, int) { panic("ack exploded") }

func TestCaptureService_Process_RecoversPanic(t *testing.T) {
	repo := new(MockRepo)
	svc := newTestService(t, repo, panicAck{}, Config{})
	repo.On("QueryRecentBySource", mock.Anything, mock.Anything, mock.Anything).Return(nil, nil)
	repo.On("Insert", mock.Anything, mock.Anything).Return(uuid.New(), nil)

	outcome, err := svc.Process(context.Background(), bankEvent("Plaćeno 100,00 RSD na MAXI"))
	assert.ErrorIs(t, err, ErrPipelinePanic)
	assert.Equal(t, OutcomeFailed, outcome)
}

// memoryRepo is a goroutine-safe in-memory store used to exercise concurrent dedup.
type memoryRepo struct {
	mu      sync.Mutex
	records []common.Transaction
	delay   time.Duration
}

func (m *memoryRepo) Insert(_ context.Context, c common.CandidateTransaction) (uuid.UUID, error) {
	time.Sleep(m.delay)
	m.mu.Lock()
	defer m.mu.Unlock()
	id := uuid.New()
	m.records = append(m.records, common.Transaction{ID: id, CandidateTransaction: c})
	return id, nil
}

func (m *memoryRepo) QueryRecentBySource(_ context.Context, since time.Time, kind common.SourceKind) ([]common.Transaction, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []common.Transaction
	for _, r := range m.records {
		if r.SourceKind == kind && !r.Timestamp.Before(since) {
			out = append(out, r)
		}
	}
	return out, nil
}

func (m *memoryRepo) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func TestCaptureService_StrictDedupSerialisesBursts(t *testing.T) {
	logger := discardLogger()
	tables := rules.Default()
	table, err := rates.NewTable(common.CurrencyRSD, nil)
	require.NoError(t, err)

	repo := &memoryRepo{delay: 10 * time.Millisecond}
	pipeline := NewPipeline(tables, normalizer.NewCurrencyNormalizer(tables, common.CurrencyRSD, table), 10, logger)
	svc := NewCaptureService(pipeline, dedup.New(repo, dedup.DefaultConfig(), logger), repo,
		NewLogAcknowledger(logger), Config{StrictDedup: true}, logger)

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _ = svc.Process(context.Background(), bankEvent("Plaćeno karticom: 1.234,56 RSD na MAXI"))
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, repo.count())
}
