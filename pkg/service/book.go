package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/logging"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/otel"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"go.opentelemetry.io/otel/attribute"
)

// ErrPublishFailed wraps sender errors. The book state is already committed
// when it is returned.
var ErrPublishFailed = errors.New("failed to publish order events")

// Result is the outcome of one Submit or Cancel
type Result struct {
	// Actions is the engine's action list; removals in it are already applied
	Actions []core.CallbackAction
	// Events holds one event per published order, in first-emission order
	Events []*messaging.OrderEvent
	// Trades are the fills of the incoming order
	Trades []core.Fill
}

// Book serializes access to one order book and publishes the state of every
// order a call touches
type Book struct {
	mu       sync.Mutex
	book     *core.OrderBook
	sender   messaging.Sender
	format   messaging.PriceFormat
	metrics  *otel.OrderBookMetrics
	logger   zerolog.Logger
	eventSeq uint64
}

// BookInfo summarizes a book
type BookInfo struct {
	Symbol     string `json:"symbol"`
	OrderCount int    `json:"order_count"`
	Bids       int    `json:"bids"`
	Asks       int    `json:"asks"`
	EventSeq   uint64 `json:"event_seq"`
}

// Option configures a Book
type Option func(*Book)

// WithPriceFormat renders event prices as decimals
func WithPriceFormat(format messaging.PriceFormat) Option {
	return func(b *Book) {
		b.format = format
	}
}

// WithMetrics records call metrics
func WithMetrics(metrics *otel.OrderBookMetrics) Option {
	return func(b *Book) {
		b.metrics = metrics
	}
}

// WithLogger replaces the global logger
func WithLogger(logger zerolog.Logger) Option {
	return func(b *Book) {
		b.logger = logger
	}
}

// NewBook wraps book. A nil sender discards events.
func NewBook(book *core.OrderBook, sender messaging.Sender, opts ...Option) *Book {
	if sender == nil {
		sender = messaging.Discard
	}
	b := &Book{
		book:   book,
		sender: sender,
		logger: log.Logger,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Symbol returns the traded instrument
func (b *Book) Symbol() string {
	return b.book.Symbol()
}

// Submit places req on the book and publishes every order it touched
func (b *Book) Submit(ctx context.Context, req core.OrderRequest) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx = logging.WithSymbol(ctx, b.book.Symbol())
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanSubmitOrder,
		attribute.String(otel.AttributeSymbol, b.book.Symbol()),
		attribute.String(otel.AttributeOrderID, req.ID),
		attribute.String(otel.AttributeOrderSide, req.Side.String()),
		attribute.Int64(otel.AttributeOrderPrice, req.Price),
		attribute.Int64(otel.AttributeOrderQuantity, req.Qty),
	)
	defer span.End()
	logger := logging.FromContextWith(ctx, b.logger)

	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	actions, err := b.book.Submit(req)
	b.metrics.RecordLatency(ctx, b.book.Symbol(), "submit", time.Since(start))
	if err != nil {
		reason := RejectReason(err)
		b.metrics.RecordRejected(ctx, b.book.Symbol(), "submit", reason)
		otel.AddAttributes(span, attribute.String(otel.AttributeRejectedReason, reason))
		otel.RecordError(span, err)
		logger.Warn().Err(err).
			Str("order_id", req.ID).
			Str("reason", reason).
			Msg("Order rejected")
		return nil, err
	}
	b.metrics.RecordSubmitted(ctx, b.book.Symbol(), req.Side.String())

	result := b.collect(actions)
	if incoming, err := b.book.Order(req.ID); err == nil {
		result.Trades = incoming.Fills()
		otel.AddAttributes(span,
			attribute.String(otel.AttributeOrderState, string(incoming.State())),
			attribute.Int64(otel.AttributeQtyOpen, incoming.QtyOpen()),
			attribute.Int64(otel.AttributeQtyFilled, incoming.QtyFilled()),
		)
	}

	var volume int64
	for _, f := range result.Trades {
		volume += f.Qty
	}
	b.metrics.RecordTrades(ctx, b.book.Symbol(), int64(len(result.Trades)), volume)
	otel.AddAttributes(span,
		attribute.Int(otel.AttributeTradeCount, len(result.Trades)),
		attribute.Int(otel.AttributeActionCount, len(actions)),
	)

	logger.Debug().
		Str("order_id", req.ID).
		Str("side", req.Side.String()).
		Int64("price", req.Price).
		Int64("qty", req.Qty).
		Int("trades", len(result.Trades)).
		Int64("volume", volume).
		Msg("Order submitted")

	if err := b.publish(ctx, result.Events); err != nil {
		otel.RecordError(span, err)
		return result, err
	}
	return result, nil
}

// Cancel cancels the resting order id and publishes its final state
func (b *Book) Cancel(ctx context.Context, id string) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx = logging.WithSymbol(ctx, b.book.Symbol())
	ctx, span := otel.StartOrderSpan(ctx, otel.SpanCancelOrder,
		attribute.String(otel.AttributeSymbol, b.book.Symbol()),
		attribute.String(otel.AttributeOrderID, id),
	)
	defer span.End()
	logger := logging.FromContextWith(ctx, b.logger)

	b.mu.Lock()
	defer b.mu.Unlock()

	start := time.Now()
	actions, err := b.book.Cancel(id)
	b.metrics.RecordLatency(ctx, b.book.Symbol(), "cancel", time.Since(start))
	if err != nil {
		reason := RejectReason(err)
		b.metrics.RecordRejected(ctx, b.book.Symbol(), "cancel", reason)
		otel.AddAttributes(span, attribute.String(otel.AttributeRejectedReason, reason))
		otel.RecordError(span, err)
		logger.Warn().Err(err).
			Str("order_id", id).
			Str("reason", reason).
			Msg("Cancel rejected")
		return nil, err
	}
	b.metrics.RecordCancelled(ctx, b.book.Symbol())
	otel.AddAttributes(span, attribute.Int(otel.AttributeActionCount, len(actions)))

	result := b.collect(actions)
	logger.Debug().Str("order_id", id).Msg("Order cancelled")

	if err := b.publish(ctx, result.Events); err != nil {
		otel.RecordError(span, err)
		return result, err
	}
	return result, nil
}

// collect turns the Publish actions into events carrying each order's state
// after the call
func (b *Book) collect(actions []core.CallbackAction) *Result {
	ids := core.PublishedIDs(actions)
	result := &Result{
		Actions: actions,
		Events:  make([]*messaging.OrderEvent, 0, len(ids)),
	}
	for _, id := range ids {
		order, err := b.book.Order(id)
		if err != nil {
			panic(fmt.Sprintf("published order %s is not in the book", id))
		}
		b.eventSeq++
		event := messaging.NewOrderEvent(order, b.format)
		event.EventSeq = b.eventSeq
		result.Events = append(result.Events, event)
	}
	return result
}

func (b *Book) publish(ctx context.Context, events []*messaging.OrderEvent) error {
	if len(events) == 0 {
		return nil
	}

	ctx, span := otel.StartOrderSpan(ctx, otel.SpanPublish,
		attribute.Int(otel.AttributeEventCount, len(events)),
	)
	defer span.End()

	var errs []error
	for _, event := range events {
		if err := b.sender.Send(ctx, event); err != nil {
			errs = append(errs, fmt.Errorf("event %d for %s: %w", event.EventSeq, event.OrderID, err))
		}
	}
	if len(errs) == 0 {
		return nil
	}

	err := fmt.Errorf("%w: %w", ErrPublishFailed, errors.Join(errs...))
	otel.RecordError(span, err)
	logger := logging.FromContextWith(ctx, b.logger)
	logger.Error().Err(err).
		Int("failed", len(errs)).
		Int("events", len(events)).
		Msg("Publishing order events failed")
	return err
}

// Order returns a copy of order id
func (b *Book) Order(id string) (*core.Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Order(id)
}

// Depth returns up to n aggregated levels of side
func (b *Book) Depth(side core.Side, n int) []core.Level {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Depth(side, n)
}

// Spread returns the best bid and ask, with ok false when a side is empty
func (b *Book) Spread() (bid, ask int64, ok bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	bid, bidOK := b.book.BestBid()
	ask, askOK := b.book.BestAsk()
	return bid, ask, bidOK && askOK
}

// Info counts the tracked and resting orders
func (b *Book) Info() BookInfo {
	b.mu.Lock()
	defer b.mu.Unlock()
	return BookInfo{
		Symbol:     b.book.Symbol(),
		OrderCount: b.book.Len(),
		Bids:       b.book.RestingLen(core.Buy),
		Asks:       b.book.RestingLen(core.Sell),
		EventSeq:   b.eventSeq,
	}
}

// Snapshot copies the book state
func (b *Book) Snapshot() core.Snapshot {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.book.Snapshot()
}

// Close closes the sender
func (b *Book) Close() error {
	return b.sender.Close()
}

// RejectReason maps engine errors to a metric label
func RejectReason(err error) string {
	switch {
	case errors.Is(err, core.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, core.ErrInvalidQuantity):
		return "invalid_quantity"
	case errors.Is(err, core.ErrInvalidPrice):
		return "invalid_price"
	case errors.Is(err, core.ErrSymbolMismatch):
		return "symbol_mismatch"
	case errors.Is(err, core.ErrDuplicateOrderID):
		return "duplicate_order_id"
	case errors.Is(err, core.ErrOrderNotFound):
		return "order_not_found"
	case errors.Is(err, core.ErrOrderNotCancelable):
		return "order_not_cancelable"
	case errors.Is(err, core.ErrInvalidArgument):
		return "invalid_argument"
	default:
		return "unknown"
	}
}
