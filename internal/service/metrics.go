package service

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const meterName = "vidflow.lifecycle"

type metrics struct {
	dispatchCounter  metric.Int64Counter
	reconcileCounter metric.Int64Counter
	sweepCounter     metric.Int64Counter
	sweepHistogram   metric.Int64Histogram
}

// newMetrics registers the instruments on meter, or on the global meter
// provider when meter is nil.
func newMetrics(m metric.Meter) *metrics {
	if m == nil {
		m = otel.GetMeterProvider().Meter(meterName)
	}
	dispatchCounter, _ := m.Int64Counter("vidflow_dispatch_total")
	reconcileCounter, _ := m.Int64Counter("vidflow_reconcile_total")
	sweepCounter, _ := m.Int64Counter("vidflow_poll_sweeps_total")
	sweepHistogram, _ := m.Int64Histogram("vidflow_poll_sweep_ms")
	return &metrics{
		dispatchCounter:  dispatchCounter,
		reconcileCounter: reconcileCounter,
		sweepCounter:     sweepCounter,
		sweepHistogram:   sweepHistogram,
	}
}

func (m *metrics) recordDispatch(ctx context.Context, outcome string) {
	if m == nil || m.dispatchCounter == nil {
		return
	}
	m.dispatchCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func (m *metrics) recordReconcile(ctx context.Context, source, outcome string) {
	if m == nil || m.reconcileCounter == nil {
		return
	}
	m.reconcileCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("source", source),
		attribute.String("outcome", outcome),
	))
}

func (m *metrics) recordSweep(ctx context.Context, res SweepResult, elapsed time.Duration) {
	if m == nil || m.sweepCounter == nil {
		return
	}
	m.sweepCounter.Add(ctx, 1)
	m.sweepHistogram.Record(ctx, elapsed.Milliseconds(), metric.WithAttributes(
		attribute.Int("checked", res.Checked),
		attribute.Int("failed", res.Failed),
	))
}
