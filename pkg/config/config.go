package config

import (
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	ServiceName string `envconfig:"SERVICE_NAME" default:"shop-service"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`

	DatabaseUser     string `envconfig:"DATABASE_USER" default:"root"`
	DatabasePassword string `envconfig:"DATABASE_PASSWORD" default:"pass"`
	DatabaseHost     string `envconfig:"DATABASE_HOST" default:"localhost"`
	DatabasePort     string `envconfig:"DATABASE_PORT" default:"5432"`
	DatabaseName     string `envconfig:"DATABASE_NAME" default:"shop_db"`
	DatabaseMaxConns int32  `envconfig:"DATABASE_MAX_CONNS" default:"10"`
	DatabaseMinConns int32  `envconfig:"DATABASE_MIN_CONNS" default:"2"`

	TelemetryEnabled bool   `envconfig:"TELEMETRY_ENABLED" default:"true"`
	OTLPEndpoint     string `envconfig:"OTEL_EXPORTER_OTLP_ENDPOINT" default:"localhost:4318"`

	PaystackBaseURL     string        `envconfig:"PAYSTACK_BASE_URL" default:"https://api.paystack.co"`
	PaystackSecretKey   string        `envconfig:"PAYSTACK_SECRET_KEY"`
	PaystackCallbackURL string        `envconfig:"PAYSTACK_CALLBACK_URL" default:"http://localhost:8080/api/payments/verify"`
	PaymentCurrency     string        `envconfig:"PAYMENT_CURRENCY" default:"NGN"`
	GatewayTimeout      time.Duration `envconfig:"GATEWAY_TIMEOUT" default:"15s"`

	KafkaBrokers      string `envconfig:"KAFKA_BROKERS" default:""` // vazio = fila em memória
	ReconcileTopic    string `envconfig:"RECONCILE_TOPIC" default:"payment-reconciliation"`
	NotificationTopic string `envconfig:"NOTIFICATION_TOPIC" default:"order-notifications"`
	KafkaGroupID      string `envconfig:"KAFKA_GROUP_ID" default:"shop-reconciler"`
	ReconcileWorkers  int    `envconfig:"RECONCILE_WORKERS" default:"4"`
	ReconcileAsync    bool   `envconfig:"RECONCILE_ASYNC" default:"false"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
