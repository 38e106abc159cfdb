package service

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gibo2706/BudgetTrackerV2-sub000/internal/domain/common"
)

type countingProcessor struct {
	calls   atomic.Int64
	release chan struct{}
}

func (p *countingProcessor) Process(ctx context.Context, _ common.NotificationEvent) (Outcome, error) {
	if p.release != nil {
		<-p.release
	}
	p.calls.Add(1)
	return OutcomeCaptured, nil
}

func TestDispatcher_ProcessesAllEvents(t *testing.T) {
	proc := &countingProcessor{}
	d := NewDispatcher(proc, 4, 64, discardLogger())

	var mu sync.Mutex
	outcomes := map[Outcome]int{}
	d.OnResult(func(_ common.NotificationEvent, outcome Outcome, err error) {
		assert.NoError(t, err)
		mu.Lock()
		outcomes[outcome]++
		mu.Unlock()
	})
	d.Start(context.Background())

	for i := 0; i < 50; i++ {
		require.NoError(t, d.Submit(bankEvent("Plaćeno 100,00 RSD na MAXI")))
	}
	d.Close()

	assert.Equal(t, int64(50), proc.calls.Load())
	assert.Equal(t, 50, outcomes[OutcomeCaptured])
}

func TestDispatcher_QueueFull(t *testing.T) {
	proc := &countingProcessor{release: make(chan struct{})}
	d := NewDispatcher(proc, 1, 1, discardLogger())
	d.Start(context.Background())

	// the single worker may or may not have picked up the first event yet
	var err error
	for i := 0; i < 3 && err == nil; i++ {
		err = d.Submit(bankEvent("Plaćeno 100,00 RSD"))
	}
	assert.ErrorIs(t, err, common.ErrQueueFull)

	close(proc.release)
	d.Close()
}

func TestDispatcher_SubmitAfterClose(t *testing.T) {
	d := NewDispatcher(&countingProcessor{}, 2, 0, discardLogger())
	d.Start(context.Background())
	d.Close()
	d.Close()

	assert.ErrorIs(t, d.Submit(bankEvent("Plaćeno 100,00 RSD")), common.ErrQueueClosed)
}

func TestDispatcher_CancelledContextDropsEvents(t *testing.T) {
	proc := &countingProcessor{}
	d := NewDispatcher(proc, 1, 8, discardLogger())

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Submit(bankEvent("Plaćeno 100,00 RSD")))
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	d.Start(ctx)
	d.Close()

	assert.Zero(t, proc.calls.Load())
}

func TestNewDispatcher_Defaults(t *testing.T) {
	d := NewDispatcher(&countingProcessor{}, 0, 0, discardLogger())
	assert.GreaterOrEqual(t, d.workers, 1)
	assert.Equal(t, d.workers*4, cap(d.jobs))
}

func TestDispatcher_SubmitWait(t *testing.T) {
	proc := &countingProcessor{release: make(chan struct{})}
	d := NewDispatcher(proc, 1, 1, discardLogger())
	d.Start(context.Background())

	// fill the worker and the single queue slot
	require.NoError(t, d.SubmitWait(context.Background(), bankEvent("Plaćeno 100,00 RSD")))
	require.NoError(t, d.SubmitWait(context.Background(), bankEvent("Plaćeno 100,00 RSD")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := d.SubmitWait(ctx, bankEvent("Plaćeno 100,00 RSD"))
	if err != nil {
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	}

	close(proc.release)
	d.Close()
	assert.ErrorIs(t, d.SubmitWait(context.Background(), bankEvent("Plaćeno 100,00 RSD")), common.ErrQueueClosed)
}
