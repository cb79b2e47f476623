package alpine

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// busMetrics holds the instruments of one bus. Instruments are created once
// in NewBus; a disabled bus uses no-op instruments.
type busMetrics struct {
	posted    metric.Int64Counter
	delivered metric.Int64Counter
	filtered  metric.Int64Counter
	skipped   metric.Int64Counter
	failed    metric.Int64Counter
	cancelled metric.Int64Counter
	duration  metric.Float64Histogram
}

func newBusMetrics(name string, enabled bool) *busMetrics {
	noopMeter := noop.NewMeterProvider().Meter(name)
	var meter metric.Meter = noopMeter
	if enabled {
		meter = otel.Meter(name)
	}

	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil {
			c, _ = noopMeter.Int64Counter(name)
		}
		return c
	}

	duration, err := meter.Float64Histogram("alpine.dispatch.duration",
		metric.WithDescription("Time spent dispatching one post on a bus"),
		metric.WithUnit("ms"))
	if err != nil {
		duration, _ = noopMeter.Float64Histogram("alpine.dispatch.duration")
	}

	return &busMetrics{
		posted:    counter("alpine.posted", "Total number of events posted"),
		delivered: counter("alpine.delivered", "Total number of listener invocations that succeeded"),
		filtered:  counter("alpine.filtered", "Total number of listener invocations prevented by a filter"),
		skipped:   counter("alpine.skipped", "Total number of listener invocations refused by a limiter"),
		failed:    counter("alpine.failed", "Total number of listener invocations that failed"),
		cancelled: counter("alpine.cancelled", "Total number of posts stopped by cancellation"),
		duration:  duration,
	}
}

func eventAttrs(bus, eventType string) metric.MeasurementOption {
	return metric.WithAttributes(
		attribute.String(spanKeyEventBus, bus),
		attribute.String(spanKeyEventType, eventType))
}

func (m *busMetrics) observe(ctx context.Context, start time.Time, attrs metric.MeasurementOption) {
	m.duration.Record(ctx, float64(time.Since(start).Microseconds())/1000, attrs)
}
