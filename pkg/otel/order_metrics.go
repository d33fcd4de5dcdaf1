package otel

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// OrderBookMetrics holds metrics for order book operations
type OrderBookMetrics struct {
	submitted metric.Int64Counter
	rejected  metric.Int64Counter
	cancelled metric.Int64Counter
	trades    metric.Int64Counter
	volume    metric.Int64Counter
	latency   metric.Float64Histogram
}

// NewOrderBookMetrics creates the instruments on meter
func NewOrderBookMetrics(meter metric.Meter) (*OrderBookMetrics, error) {
	submitted, err := meter.Int64Counter(
		"orders.submitted",
		metric.WithDescription("Orders accepted by the book"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	rejected, err := meter.Int64Counter(
		"orders.rejected",
		metric.WithDescription("Submit and cancel requests refused by the book"),
		metric.WithUnit("{request}"),
	)
	if err != nil {
		return nil, err
	}

	cancelled, err := meter.Int64Counter(
		"orders.cancelled",
		metric.WithDescription("Resting orders cancelled"),
		metric.WithUnit("{order}"),
	)
	if err != nil {
		return nil, err
	}

	trades, err := meter.Int64Counter(
		"trades.total",
		metric.WithDescription("Trades executed"),
		metric.WithUnit("{trade}"),
	)
	if err != nil {
		return nil, err
	}

	volume, err := meter.Int64Counter(
		"trades.volume",
		metric.WithDescription("Quantity executed across all trades"),
		metric.WithUnit("{unit}"),
	)
	if err != nil {
		return nil, err
	}

	latency, err := meter.Float64Histogram(
		"orderbook.call.duration",
		metric.WithDescription("Time spent inside one submit or cancel call"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	return &OrderBookMetrics{
		submitted: submitted,
		rejected:  rejected,
		cancelled: cancelled,
		trades:    trades,
		volume:    volume,
		latency:   latency,
	}, nil
}

// RecordSubmitted counts an accepted order
func (m *OrderBookMetrics) RecordSubmitted(ctx context.Context, symbol, side string) {
	if m == nil {
		return
	}
	m.submitted.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttributeSymbol, symbol),
		attribute.String(AttributeOrderSide, side),
	))
}

// RecordRejected counts a refused request
func (m *OrderBookMetrics) RecordRejected(ctx context.Context, symbol, op, reason string) {
	if m == nil {
		return
	}
	m.rejected.Add(ctx, 1, metric.WithAttributes(
		attribute.String(AttributeSymbol, symbol),
		attribute.String("op", op),
		attribute.String(AttributeRejectedReason, reason),
	))
}

// RecordCancelled counts a cancelled order
func (m *OrderBookMetrics) RecordCancelled(ctx context.Context, symbol string) {
	if m == nil {
		return
	}
	m.cancelled.Add(ctx, 1, metric.WithAttributes(attribute.String(AttributeSymbol, symbol)))
}

// RecordTrades adds count trades totalling volume
func (m *OrderBookMetrics) RecordTrades(ctx context.Context, symbol string, count, volume int64) {
	if m == nil || count == 0 {
		return
	}
	attrs := metric.WithAttributes(attribute.String(AttributeSymbol, symbol))
	m.trades.Add(ctx, count, attrs)
	m.volume.Add(ctx, volume, attrs)
}

// RecordLatency records the duration of one engine call
func (m *OrderBookMetrics) RecordLatency(ctx context.Context, symbol, op string, d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String(AttributeSymbol, symbol),
		attribute.String("op", op),
	))
}
