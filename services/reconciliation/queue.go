package reconciliation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var ErrQueueClosed = errors.New("reconciliation queue closed")

// Delivery é um job recebido da fila. Ack deve ser chamado depois do
// processamento.
type Delivery struct {
	Job Job
	ack func(ctx context.Context) error
}

func (d *Delivery) Ack(ctx context.Context) error {
	if d.ack == nil {
		return nil
	}
	return d.ack(ctx)
}

// Queue transporta referências a reconciliar entre o webhook e os workers
type Queue interface {
	Enqueue(ctx context.Context, job Job) error
	Receive(ctx context.Context) (*Delivery, error)
	Close() error
}

// MemoryQueue é a fila em processo usada quando não há broker configurado
type MemoryQueue struct {
	jobs   chan Job
	closed chan struct{}
	once   sync.Once
}

// NewMemoryQueue cria uma fila com buffer de size jobs
func NewMemoryQueue(size int) *MemoryQueue {
	return &MemoryQueue{
		jobs:   make(chan Job, size),
		closed: make(chan struct{}),
	}
}

func (q *MemoryQueue) Enqueue(ctx context.Context, job Job) error {
	select {
	case <-q.closed:
		return ErrQueueClosed
	default:
	}

	select {
	case q.jobs <- job:
		return nil
	case <-q.closed:
		return ErrQueueClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (q *MemoryQueue) Receive(ctx context.Context) (*Delivery, error) {
	select {
	case job := <-q.jobs:
		return &Delivery{Job: job}, nil
	case <-q.closed:
		return nil, ErrQueueClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (q *MemoryQueue) Close() error {
	q.once.Do(func() { close(q.closed) })
	return nil
}

// KafkaQueue publica e consome jobs num tópico com consumer group. O offset
// só é comitado no Ack, depois do processamento.
type KafkaQueue struct {
	writer *kafka.Writer
	reader *kafka.Reader
	logger *zap.Logger
}

// NewKafkaQueue cria o producer e o consumer do tópico de reconciliação
func NewKafkaQueue(brokers, topic, groupID string, logger *zap.Logger) *KafkaQueue {
	addrs := strings.Split(brokers, ",")

	writer := &kafka.Writer{
		Addr:         kafka.TCP(addrs...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  addrs,
		GroupID:  groupID,
		Topic:    topic,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	return &KafkaQueue{
		writer: writer,
		reader: reader,
		logger: logger,
	}
}

func (q *KafkaQueue) Enqueue(ctx context.Context, job Job) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return err
	}

	// mesma chave = mesma partição para a mesma referência
	msg := kafka.Message{
		Key:   []byte(job.TxRef),
		Value: payload,
	}
	if err := q.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to enqueue reconciliation: %w", err)
	}
	return nil
}

func (q *KafkaQueue) Receive(ctx context.Context) (*Delivery, error) {
	for {
		msg, err := q.reader.FetchMessage(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil, ErrQueueClosed
			}
			return nil, err
		}

		var job Job
		if err := json.Unmarshal(msg.Value, &job); err != nil || job.TxRef == "" {
			q.logger.Error("❌ discarding malformed reconciliation message",
				zap.Int64("offset", msg.Offset),
				zap.Int("partition", msg.Partition),
				zap.Error(err))
			if err := q.reader.CommitMessages(ctx, msg); err != nil {
				return nil, err
			}
			continue
		}

		return &Delivery{
			Job: job,
			ack: func(ctx context.Context) error {
				return q.reader.CommitMessages(ctx, msg)
			},
		}, nil
	}
}

func (q *KafkaQueue) Close() error {
	return errors.Join(q.writer.Close(), q.reader.Close())
}
