package reconciliation

import (
	"context"
	"errors"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// scriptedVerifier devolve respostas por referência e registra as chamadas
type scriptedVerifier struct {
	mu      sync.Mutex
	calls   map[string]int
	respond func(txRef string, call int) (*Result, error)
	seen    chan string
}

func newScriptedVerifier(respond func(txRef string, call int) (*Result, error)) *scriptedVerifier {
	return &scriptedVerifier{
		calls:   map[string]int{},
		respond: respond,
		seen:    make(chan string, 32),
	}
}

func (v *scriptedVerifier) VerifyAndReconcile(ctx context.Context, txRef string) (*Result, error) {
	v.mu.Lock()
	v.calls[txRef]++
	call := v.calls[txRef]
	v.mu.Unlock()

	defer func() { v.seen <- txRef }()
	return v.respond(txRef, call)
}

func (v *scriptedVerifier) count(txRef string) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls[txRef]
}

func waitFor(t *testing.T, seen <-chan string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		select {
		case <-seen:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for job %d of %d", i+1, n)
		}
	}
}

func startPool(t *testing.T, pool *WorkerPool) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
}

func TestWorkerPool_ProcessesEveryJob(t *testing.T) {
	// Arrange
	queue := NewMemoryQueue(10)
	verifier := newScriptedVerifier(func(txRef string, call int) (*Result, error) {
		return &Result{Reason: ReasonConfirmed}, nil
	})
	startPool(t, NewWorkerPool(queue, verifier, 3, zap.NewNop()))

	// Act
	for _, ref := range []string{"PSK-1", "PSK-2", "PSK-3"} {
		require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: ref}))
	}

	// Assert
	waitFor(t, verifier.seen, 3)
	assert.Equal(t, 1, verifier.count("PSK-1"))
	assert.Equal(t, 1, verifier.count("PSK-2"))
	assert.Equal(t, 1, verifier.count("PSK-3"))
}

func TestWorkerPool_RetriesUnavailableProvider(t *testing.T) {
	queue := NewMemoryQueue(10)
	verifier := newScriptedVerifier(func(txRef string, call int) (*Result, error) {
		if call == 1 {
			return nil, apperrors.GatewayUnavailable(errors.New("timeout"))
		}
		return &Result{Reason: ReasonConfirmed}, nil
	})
	startPool(t, NewWorkerPool(queue, verifier, 1, zap.NewNop()).WithRetry(3, 10*time.Millisecond))

	require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: "PSK-1"}))

	waitFor(t, verifier.seen, 2)
	assert.Equal(t, 2, verifier.count("PSK-1"))
}

func TestWorkerPool_GivesUpAfterMaxAttempts(t *testing.T) {
	queue := NewMemoryQueue(10)
	verifier := newScriptedVerifier(func(txRef string, call int) (*Result, error) {
		return &Result{Reason: ReasonUnresolved}, nil
	})
	startPool(t, NewWorkerPool(queue, verifier, 2, zap.NewNop()).WithRetry(3, 5*time.Millisecond))

	require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: "PSK-1"}))

	waitFor(t, verifier.seen, 3)
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, 3, verifier.count("PSK-1"))
}

func TestWorkerPool_DoesNotRetryFinalErrors(t *testing.T) {
	queue := NewMemoryQueue(10)
	verifier := newScriptedVerifier(func(txRef string, call int) (*Result, error) {
		return nil, apperrors.NotFound("payment_not_found", "Payment record not found")
	})
	startPool(t, NewWorkerPool(queue, verifier, 1, zap.NewNop()).WithRetry(3, 5*time.Millisecond))

	require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: "PSK-404"}))

	waitFor(t, verifier.seen, 1)
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, 1, verifier.count("PSK-404"))
}

func TestMemoryQueue_Close(t *testing.T) {
	queue := NewMemoryQueue(1)
	require.NoError(t, queue.Close())
	require.NoError(t, queue.Close())

	err := queue.Enqueue(context.Background(), Job{TxRef: "PSK-1"})
	assert.ErrorIs(t, err, ErrQueueClosed)

	_, err = queue.Receive(context.Background())
	assert.ErrorIs(t, err, ErrQueueClosed)
}

func TestMemoryQueue_EnqueueRespectsContext(t *testing.T) {
	queue := NewMemoryQueue(1)
	require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: "PSK-1"}))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := queue.Enqueue(ctx, Job{TxRef: "PSK-2"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWorkerPool_ShutdownDuringBackoffKeepsJobQueued(t *testing.T) {
	// Arrange
	queue := NewMemoryQueue(10)
	verifier := newScriptedVerifier(func(txRef string, call int) (*Result, error) {
		return &Result{Reason: ReasonUnresolved}, nil
	})
	pool := NewWorkerPool(queue, verifier, 1, zap.NewNop()).WithRetry(3, time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = pool.Run(ctx)
	}()
	require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: "PSK-1"}))
	waitFor(t, verifier.seen, 1)

	// Act
	cancel()
	<-done

	// Assert
	select {
	case job := <-queue.jobs:
		assert.Equal(t, "PSK-1", job.TxRef)
		assert.Equal(t, 1, job.Attempt)
		assert.True(t, job.NotBefore.After(time.Now()))
	default:
		t.Fatal("retry was dropped on shutdown")
	}
	assert.Equal(t, 1, verifier.count("PSK-1"))
}

// ackRecorder envolve a MemoryQueue e registra a ordem de Enqueue e Ack
type ackRecorder struct {
	*MemoryQueue
	mu     sync.Mutex
	events []string
}

func (q *ackRecorder) record(event string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.events = append(q.events, event)
}

func (q *ackRecorder) snapshot() []string {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]string(nil), q.events...)
}

func (q *ackRecorder) Enqueue(ctx context.Context, job Job) error {
	q.record("enqueue:" + strconv.Itoa(job.Attempt))
	return q.MemoryQueue.Enqueue(ctx, job)
}

func (q *ackRecorder) Receive(ctx context.Context) (*Delivery, error) {
	d, err := q.MemoryQueue.Receive(ctx)
	if err != nil {
		return nil, err
	}
	attempt := d.Job.Attempt
	d.ack = func(ctx context.Context) error {
		q.record("ack:" + strconv.Itoa(attempt))
		return nil
	}
	return d, nil
}

func TestWorkerPool_RetryIsQueuedBeforeAck(t *testing.T) {
	// Arrange
	queue := &ackRecorder{MemoryQueue: NewMemoryQueue(10)}
	verifier := newScriptedVerifier(func(txRef string, call int) (*Result, error) {
		if call == 1 {
			return nil, apperrors.GatewayUnavailable(errors.New("timeout"))
		}
		return &Result{Reason: ReasonConfirmed}, nil
	})
	startPool(t, NewWorkerPool(queue, verifier, 1, zap.NewNop()).WithRetry(3, 5*time.Millisecond))

	// Act
	require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: "PSK-1"}))
	waitFor(t, verifier.seen, 2)

	// Assert
	assert.Eventually(t, func() bool { return len(queue.snapshot()) == 4 }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"enqueue:0", "enqueue:1", "ack:0", "ack:1"}, queue.snapshot())
}

func TestWorkerPool_UnackedWhenRequeueFails(t *testing.T) {
	queue := &ackRecorder{MemoryQueue: NewMemoryQueue(1)}
	verifier := newScriptedVerifier(func(txRef string, call int) (*Result, error) {
		// fecha a fila antes do requeue
		_ = queue.Close()
		return &Result{Reason: ReasonUnresolved}, nil
	})
	startPool(t, NewWorkerPool(queue, verifier, 1, zap.NewNop()).WithRetry(3, time.Millisecond))

	require.NoError(t, queue.Enqueue(context.Background(), Job{TxRef: "PSK-1"}))
	waitFor(t, verifier.seen, 1)
	time.Sleep(20 * time.Millisecond)

	assert.Equal(t, []string{"enqueue:0", "enqueue:1"}, queue.snapshot())
}
