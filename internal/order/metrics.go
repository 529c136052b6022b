package order

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("cartflow.order")

var (
	commitTotal    metric.Int64Counter
	rollbackTotal  metric.Int64Counter
	commitDuration metric.Float64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		commitTotal, err = meter.Int64Counter(
			"order_commit_total",
			metric.WithDescription("Total number of order commits by outcome"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rollbackTotal, err = meter.Int64Counter(
			"order_rollback_total",
			metric.WithDescription("Total number of rolled back order transactions"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		commitDuration, err = meter.Float64Histogram(
			"order_commit_duration_seconds",
			metric.WithDescription("Duration of order commits"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordCommit(ctx context.Context, duration time.Duration, step Step) {
	if err := initMetrics(); err != nil {
		return
	}
	outcome := "committed"
	if step != "" {
		outcome = "failed"
	}
	attrs := metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("step", string(step)),
	)
	commitTotal.Add(ctx, 1, attrs)
	commitDuration.Record(ctx, duration.Seconds(), attrs)
}

func recordRollback(ctx context.Context, step Step) {
	if err := initMetrics(); err != nil {
		return
	}
	rollbackTotal.Add(ctx, 1, metric.WithAttributes(attribute.String("step", string(step))))
}
