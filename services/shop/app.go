package main

import (
	"fmt"
	"io"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/matheusmosca/planet-shop/pkg/auth"
	"github.com/matheusmosca/planet-shop/pkg/config"
	"github.com/matheusmosca/planet-shop/pkg/database"
	"github.com/matheusmosca/planet-shop/services/addresses"
	"github.com/matheusmosca/planet-shop/services/carts"
	"github.com/matheusmosca/planet-shop/services/inventory"
	"github.com/matheusmosca/planet-shop/services/orders"
	"github.com/matheusmosca/planet-shop/services/payments"
	"github.com/matheusmosca/planet-shop/services/reconciliation"
	"github.com/matheusmosca/planet-shop/services/users"
)

// app guarda os handlers e os recursos que precisam ser fechados
type app struct {
	identity       *auth.Identity
	users          *users.UserHandler
	addresses      *addresses.AddressHandler
	carts          *carts.CartHandler
	orders         *orders.OrderHandler
	payments       *payments.PaymentHandler
	inventory      *inventory.InventoryHandler
	reconciliation *reconciliation.ReconciliationHandler
	workers        *reconciliation.WorkerPool

	closers []io.Closer
	logger  *zap.Logger
}

func newApp(cfg *config.Config, pool *pgxpool.Pool, tracer trace.Tracer, meter metric.Meter, logger *zap.Logger) (*app, error) {
	txs := database.NewTxManager(pool)

	// Repositories
	inventoryRepo := inventory.NewInventoryRepository(pool)
	cartRepo := carts.NewCartRepository(pool)
	orderRepo := orders.NewOrderRepository(pool)
	paymentRepo := payments.NewPaymentRepository(pool)

	// Use cases
	ledger := inventory.NewLedger(inventoryRepo, logger)
	userUseCase := users.NewUserUseCase(users.NewUserRepository(pool), cartRepo, txs, logger)
	addressUseCase := addresses.NewAddressUseCase(addresses.NewAddressRepository(pool))
	cartUseCase := carts.NewCartUseCase(cartRepo, ledger, logger)
	orderUseCase := orders.NewOrderUseCase(orderRepo, cartUseCase, addressUseCase, ledger, txs, logger)

	gateway := payments.NewPaystackGateway(payments.GatewayConfig{
		BaseURL:     cfg.PaystackBaseURL,
		SecretKey:   cfg.PaystackSecretKey,
		CallbackURL: cfg.PaystackCallbackURL,
		Currency:    cfg.PaymentCurrency,
		Timeout:     cfg.GatewayTimeout,
	}, logger)
	paymentUseCase := payments.NewPaymentUseCase(paymentRepo, orderRepo, userUseCase, gateway, txs, logger)

	a := &app{logger: logger}

	// Reconciliação: Kafka quando há brokers, senão fila em memória
	var queue reconciliation.Queue
	var notifier reconciliation.Notifier
	if cfg.KafkaBrokers != "" {
		kafkaQueue := reconciliation.NewKafkaQueue(cfg.KafkaBrokers, cfg.ReconcileTopic, cfg.KafkaGroupID, logger)
		kafkaNotifier := reconciliation.NewKafkaNotifier(cfg.KafkaBrokers, cfg.NotificationTopic, logger)
		queue, notifier = kafkaQueue, kafkaNotifier
		a.closers = append(a.closers, kafkaNotifier)
		logger.Info("📨 Reconciliation queue on Kafka",
			zap.String("brokers", cfg.KafkaBrokers),
			zap.String("topic", cfg.ReconcileTopic),
		)
	} else {
		queue, notifier = reconciliation.NewMemoryQueue(256), reconciliation.NewLogNotifier(logger)
		logger.Info("📨 Reconciliation queue in memory")
	}
	a.closers = append(a.closers, queue)

	metrics, err := reconciliation.NewMetrics(meter)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciliation metrics: %w", err)
	}

	engine := reconciliation.NewEngine(reconciliation.Dependencies{
		Orders:   orderRepo,
		Payments: paymentRepo,
		Ledger:   ledger,
		Carts:    cartRepo,
		Emails:   userUseCase,
		Gateway:  gateway,
		Notifier: notifier,
		Txs:      txs,
		Metrics:  metrics,
	}, logger)

	// Handlers
	a.identity = auth.NewIdentity(userUseCase)
	a.users = users.NewUserHandler(userUseCase, tracer, logger)
	a.addresses = addresses.NewAddressHandler(addressUseCase, logger)
	a.carts = carts.NewCartHandler(cartUseCase, tracer, logger)
	a.orders = orders.NewOrderHandler(orderUseCase, tracer, logger)
	a.payments = payments.NewPaymentHandler(paymentUseCase, tracer, logger)
	a.inventory = inventory.NewInventoryHandler(ledger, tracer, logger)
	a.reconciliation = reconciliation.NewReconciliationHandler(
		engine, queue, cfg.ReconcileAsync, cfg.PaystackSecretKey, tracer, logger,
	)
	a.workers = reconciliation.NewWorkerPool(queue, engine, cfg.ReconcileWorkers, logger)

	return a, nil
}

func (a *app) close() {
	for _, c := range a.closers {
		if err := c.Close(); err != nil {
			a.logger.Error("Error closing resource", zap.Error(err))
		}
	}
}
