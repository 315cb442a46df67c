package reconciliation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Notifier entrega o email do pedido. É best-effort: o erro só é logado
// pelo chamador e nunca desfaz a transição já comitada.
type Notifier interface {
	Notify(ctx context.Context, n Notification) error
}

func confirmedNotification(orderID, email string) Notification {
	return Notification{
		OrderID: orderID,
		Email:   email,
		Subject: fmt.Sprintf("Order Confirmed: #%s", orderID),
		Body:    "Thank you for your purchase! Your order is being processed ASAP.",
	}
}

func cancelledNotification(orderID, email string) Notification {
	return Notification{
		OrderID: orderID,
		Email:   email,
		Subject: fmt.Sprintf("Order Cancelled: #%s", orderID),
		Body:    "We could not complete your order. No stock was reserved and you will not be charged for it.",
	}
}

func refundedNotification(orderID, email string) Notification {
	return Notification{
		OrderID: orderID,
		Email:   email,
		Subject: fmt.Sprintf("Order Refunded: #%s", orderID),
		Body:    "Your refund has been processed and the order was cancelled.",
	}
}

// KafkaNotifier publica as notificações num tópico consumido pelo mailer
type KafkaNotifier struct {
	writer *kafka.Writer
	logger *zap.Logger
}

// NewKafkaNotifier cria o producer de notificações
func NewKafkaNotifier(brokers string, topic string, logger *zap.Logger) *KafkaNotifier {
	writer := &kafka.Writer{
		Addr:         kafka.TCP(strings.Split(brokers, ",")...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
	}

	return &KafkaNotifier{
		writer: writer,
		logger: logger,
	}
}

func (n *KafkaNotifier) Notify(ctx context.Context, notification Notification) error {
	payload, err := json.Marshal(notification)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	msg := kafka.Message{
		Key:   []byte(notification.OrderID),
		Value: payload,
	}
	if err := n.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}

	n.logger.Info("📧 notification published",
		zap.String("order_id", notification.OrderID),
		zap.String("subject", notification.Subject))
	return nil
}

func (n *KafkaNotifier) Close() error {
	return n.writer.Close()
}

// LogNotifier só registra a notificação no log
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(logger *zap.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(ctx context.Context, notification Notification) error {
	n.logger.Info("📧 order email",
		zap.String("order_id", notification.OrderID),
		zap.String("to", notification.Email),
		zap.String("subject", notification.Subject))
	return nil
}
