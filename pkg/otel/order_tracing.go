package otel

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	// Span names
	SpanSubmitOrder = "submit_order"
	SpanCancelOrder = "cancel_order"
	SpanPublish     = "publish"

	// Attribute keys
	AttributeSymbol         = "book.symbol"
	AttributeOrderID        = "order.id"
	AttributeOrderSide      = "order.side"
	AttributeOrderPrice     = "order.price_ticks"
	AttributeOrderQuantity  = "order.quantity"
	AttributeOrderState     = "order.state"
	AttributeQtyOpen        = "order.qty_open"
	AttributeQtyFilled      = "order.qty_filled"
	AttributeTradeCount     = "trade.count"
	AttributeActionCount    = "book.action_count"
	AttributeEventCount     = "publish.event_count"
	AttributeRejectedReason = "order.reject_reason"
)

// StartOrderSpan starts a new span for order processing
func StartOrderSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return Tracer().Start(ctx, name, trace.WithAttributes(attrs...))
}

// AddAttributes adds attributes to a span
func AddAttributes(span trace.Span, attrs ...attribute.KeyValue) {
	if span == nil {
		return
	}
	span.SetAttributes(attrs...)
}

// RecordError marks span as failed
func RecordError(span trace.Span, err error) {
	if span == nil || err == nil {
		return
	}
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
