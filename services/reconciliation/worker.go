package reconciliation

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/apperrors"
)

// Verifier é o que o worker executa para cada job
type Verifier interface {
	VerifyAndReconcile(ctx context.Context, txRef string) (*Result, error)
}

// handoffTimeout limita Enqueue e Ack feitos durante o shutdown
const handoffTimeout = 5 * time.Second

// WorkerPool consome a fila e reconcilia as referências recebidas. Jobs
// sem resposta definitiva do provedor voltam para a fila com NotBefore.
type WorkerPool struct {
	queue       Queue
	verifier    Verifier
	workers     int
	maxAttempts int
	backoff     time.Duration
	logger      *zap.Logger
}

// NewWorkerPool cria uma nova instância de WorkerPool
func NewWorkerPool(queue Queue, verifier Verifier, workers int, logger *zap.Logger) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	return &WorkerPool{
		queue:       queue,
		verifier:    verifier,
		workers:     workers,
		maxAttempts: 5,
		backoff:     2 * time.Second,
		logger:      logger,
	}
}

// WithRetry ajusta o número de tentativas e o backoff base
func (p *WorkerPool) WithRetry(maxAttempts int, backoff time.Duration) *WorkerPool {
	p.maxAttempts = maxAttempts
	p.backoff = backoff
	return p
}

// Run bloqueia até ctx ser cancelado ou a fila ser fechada
func (p *WorkerPool) Run(ctx context.Context) error {
	deliveries := make(chan *Delivery)

	var wg sync.WaitGroup
	for i := 1; i <= p.workers; i++ {
		wg.Add(1)
		go func(id int) {
			defer wg.Done()
			for d := range deliveries {
				p.process(ctx, id, d)
			}
		}(i)
	}

	p.logger.Info("🚀 reconciliation workers started", zap.Int("workers", p.workers))

	for {
		d, err := p.queue.Receive(ctx)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, ErrQueueClosed) {
				break
			}
			p.logger.Error("❌ failed to receive reconciliation job", zap.Error(err))
			select {
			case <-time.After(p.backoff):
				continue
			case <-ctx.Done():
			}
			break
		}
		deliveries <- d
	}

	close(deliveries)
	wg.Wait()
	p.logger.Info("🛑 reconciliation workers stopped")
	return nil
}

func (p *WorkerPool) process(ctx context.Context, workerID int, d *Delivery) {
	job := d.Job
	logger := p.logger.With(
		zap.Int("worker", workerID),
		zap.String("tx_ref", job.TxRef),
		zap.Int("attempt", job.Attempt))

	// Job reagendado: espera a hora dele; no shutdown volta para a fila
	if wait := time.Until(job.NotBefore); wait > 0 {
		select {
		case <-time.After(wait):
		case <-ctx.Done():
			logger.Info("🛑 shutdown during backoff, job returned to the queue")
			p.requeue(ctx, d, job, logger)
			return
		}
	}

	result, err := p.verifier.VerifyAndReconcile(ctx, job.TxRef)
	switch {
	case apperrors.Is(err, apperrors.KindGatewayUnavailable):
		logger.Warn("⚠️ provider unavailable, job will be retried", zap.Error(err))
		p.retry(ctx, d, job, logger)
		return
	case err != nil:
		logger.Error("❌ reconciliation job failed", zap.Error(err))
	case result.Reason == ReasonUnresolved:
		logger.Info("⏳ payment unresolved, job will be retried")
		p.retry(ctx, d, job, logger)
		return
	default:
		logger.Info("✅ reconciliation job done",
			zap.String("order_id", result.OrderID),
			zap.String("reason", string(result.Reason)))
	}

	p.ack(ctx, d, logger)
}

// retry agenda a próxima tentativa com backoff linear. O job novo é gravado
// na fila antes do Ack do atual.
func (p *WorkerPool) retry(ctx context.Context, d *Delivery, job Job, logger *zap.Logger) {
	next := Job{TxRef: job.TxRef, Attempt: job.Attempt + 1}
	if next.Attempt >= p.maxAttempts {
		logger.Warn("⚠️ giving up on reconciliation job", zap.Int("attempts", next.Attempt))
		p.ack(ctx, d, logger)
		return
	}

	next.NotBefore = time.Now().Add(p.backoff * time.Duration(next.Attempt))
	p.requeue(ctx, d, next, logger)
}

// requeue publica job e só então confirma a entrega atual. Se a publicação
// falhar a entrega fica sem Ack.
func (p *WorkerPool) requeue(ctx context.Context, d *Delivery, job Job, logger *zap.Logger) {
	enqueueCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handoffTimeout)
	defer cancel()

	if err := p.queue.Enqueue(enqueueCtx, job); err != nil {
		logger.Error("❌ failed to requeue reconciliation job, leaving it unacked", zap.Error(err))
		return
	}
	p.ack(ctx, d, logger)
}

func (p *WorkerPool) ack(ctx context.Context, d *Delivery, logger *zap.Logger) {
	ackCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), handoffTimeout)
	defer cancel()

	if err := d.Ack(ackCtx); err != nil {
		logger.Error("❌ failed to ack reconciliation job", zap.Error(err))
	}
}
