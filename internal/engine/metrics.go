package engine

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

var meter = otel.Meter("cartflow.engine")

var (
	sweepTotal    metric.Int64Counter
	rejectedTotal metric.Int64Counter

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics creates the instruments against the global meter provider,
// which is a no-op unless the host installs one.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		sweepTotal, err = meter.Int64Counter(
			"cart_sweep_total",
			metric.WithDescription("Total number of field graph sweeps"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		rejectedTotal, err = meter.Int64Counter(
			"cart_mutation_rejected_total",
			metric.WithDescription("Total number of rejected field mutations"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

func recordSweep(ctx context.Context, engine string, failures int) {
	if err := initMetrics(); err != nil {
		return
	}
	status := "clean"
	if failures > 0 {
		status = "failed"
	}
	sweepTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("status", status),
	))
}

func recordRejection(ctx context.Context, engine string, code RejectCode) {
	if err := initMetrics(); err != nil {
		return
	}
	rejectedTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("engine", engine),
		attribute.String("code", string(code)),
	))
}
