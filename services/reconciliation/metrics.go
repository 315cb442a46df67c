package reconciliation

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics agrupa os instrumentos do motor de reconciliação
type Metrics struct {
	reconciliations metric.Int64Counter
	unitsDeducted   metric.Int64Counter
	refunds         metric.Int64Counter
	duration        metric.Float64Histogram
}

// NewMetrics registra os instrumentos no meter informado
func NewMetrics(meter metric.Meter) (*Metrics, error) {
	reconciliations, err := meter.Int64Counter("reconciliations_total",
		metric.WithDescription("Reconciliations by outcome"))
	if err != nil {
		return nil, err
	}

	unitsDeducted, err := meter.Int64Counter("stock_units_deducted_total",
		metric.WithDescription("Stock units deducted by confirmed orders"))
	if err != nil {
		return nil, err
	}

	refunds, err := meter.Int64Counter("refunds_total",
		metric.WithDescription("Refunds by outcome"))
	if err != nil {
		return nil, err
	}

	duration, err := meter.Float64Histogram("reconcile_duration_seconds",
		metric.WithDescription("Time spent reconciling one payment"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}

	return &Metrics{
		reconciliations: reconciliations,
		unitsDeducted:   unitsDeducted,
		refunds:         refunds,
		duration:        duration,
	}, nil
}

func (m *Metrics) recordReconcile(ctx context.Context, reason Reason, started time.Time) {
	if m == nil {
		return
	}
	outcome := metric.WithAttributes(attribute.String("outcome", string(reason)))
	m.reconciliations.Add(ctx, 1, outcome)
	m.duration.Record(ctx, time.Since(started).Seconds(), outcome)
}

func (m *Metrics) recordDeducted(ctx context.Context, units int) {
	if m == nil {
		return
	}
	m.unitsDeducted.Add(ctx, int64(units))
}

func (m *Metrics) recordRefund(ctx context.Context, outcome string) {
	if m == nil {
		return
	}
	m.refunds.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}
