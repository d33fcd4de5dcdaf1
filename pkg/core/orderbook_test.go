package core

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSymbol = "ABC-USD"

func newTestBook(t testing.TB) *OrderBook {
	t.Helper()
	book, err := NewOrderBook(Config{Symbol: testSymbol, MaxPrice: 1_000_000, MaxQty: 1_000_000})
	require.NoError(t, err)
	return book
}

func limit(id string, side Side, price, qty int64) OrderRequest {
	return OrderRequest{ID: id, Side: side, Price: price, Qty: qty, Symbol: testSymbol}
}

func mustSubmit(t testing.TB, book *OrderBook, req OrderRequest) []CallbackAction {
	t.Helper()
	actions, err := book.Submit(req)
	require.NoError(t, err)
	return actions
}

func mustOrder(t testing.TB, book *OrderBook, id string) *Order {
	t.Helper()
	order, err := book.Order(id)
	require.NoError(t, err)
	return order
}

func TestNewOrderBookConfig(t *testing.T) {
	_, err := NewOrderBook(Config{})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOrderBook(Config{Symbol: "X", MinPrice: 10, MaxPrice: 5})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOrderBook(Config{Symbol: "X", MinPrice: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOrderBook(Config{Symbol: "X", MaxQty: -1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOrderBook(Config{Symbol: "X", MaxQty: MaxQtyLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	_, err = NewOrderBook(Config{Symbol: "X", MaxPrice: MaxPriceLimit + 1})
	assert.ErrorIs(t, err, ErrInvalidConfig)

	book, err := NewOrderBook(Config{Symbol: "X"})
	require.NoError(t, err)
	assert.Equal(t, int64(1), book.Config().MinPrice)
	assert.Equal(t, DefaultMaxPrice, book.Config().MaxPrice)
	assert.Equal(t, DefaultMaxQty, book.Config().MaxQty)
	assert.Equal(t, "X", book.Symbol())
}

func TestDefaultBoundsKeepDepthPositive(t *testing.T) {
	book, err := NewOrderBook(Config{Symbol: testSymbol})
	require.NoError(t, err)

	_, err = book.Submit(limit("huge", Sell, 100, math.MaxInt64))
	assert.ErrorIs(t, err, ErrInvalidQuantity)
	_, err = book.Submit(limit("far", Sell, math.MaxInt64, 1))
	assert.ErrorIs(t, err, ErrInvalidPrice)

	mustSubmit(t, book, limit("s1", Sell, 100, DefaultMaxQty))
	mustSubmit(t, book, limit("s2", Sell, 100, DefaultMaxQty))
	assert.Equal(t, []Level{{Price: 100, Qty: 2 * DefaultMaxQty, Orders: 2}}, book.Depth(Sell, 0))
}

func TestRestingWithoutCounterparty(t *testing.T) {
	book := newTestBook(t)

	actions := mustSubmit(t, book, limit("s1", Sell, 100, 10))
	assert.Equal(t, []CallbackAction{Publish("s1")}, actions)

	actions = mustSubmit(t, book, limit("b1", Buy, 99, 5))
	assert.Equal(t, []CallbackAction{Publish("b1")}, actions)

	bid, ok := book.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(99), bid)
	ask, ok := book.BestAsk()
	require.True(t, ok)
	assert.Equal(t, int64(100), ask)

	assert.Equal(t, StateOpen, mustOrder(t, book, "s1").State())
	assert.Empty(t, mustOrder(t, book, "b1").Fills())
}

// partial fill of the resting sell, incoming order fully filled
func TestPartialFillOfResting(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("S1", Sell, 100, 10))

	actions := mustSubmit(t, book, limit("B1", Buy, 105, 4))
	assert.Equal(t, []CallbackAction{Publish("S1"), Publish("B1")}, actions)

	b1 := mustOrder(t, book, "B1")
	assert.Equal(t, StateFilled, b1.State())
	assert.Equal(t, int64(0), b1.QtyOpen())
	assert.Equal(t, int64(4), b1.QtyFilled())
	assert.Equal(t, []Fill{{Price: 100, Qty: 4, Counterparty: "S1"}}, b1.Fills())

	s1 := mustOrder(t, book, "S1")
	assert.Equal(t, StateOpen, s1.State())
	assert.Equal(t, int64(6), s1.QtyOpen())
	assert.Equal(t, int64(4), s1.QtyFilled())
	assert.Equal(t, []Fill{{Price: 100, Qty: 4, Counterparty: "B1"}}, s1.Fills())

	assert.Equal(t, []string{"S1"}, book.Resting(Sell, 100))
	_, ok := book.BestBid()
	assert.False(t, ok)
}

// resting sell fully filled, incoming order rests with its residual
func TestResidualRests(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("S1", Sell, 100, 4))

	actions := mustSubmit(t, book, limit("B1", Buy, 100, 10))
	assert.Equal(t, []CallbackAction{
		Publish("S1"),
		Publish("B1"),
		PopResting("S1", Sell, 100),
		Publish("B1"),
	}, actions)

	s1 := mustOrder(t, book, "S1")
	assert.Equal(t, StateFilled, s1.State())
	assert.Equal(t, []Fill{{Price: 100, Qty: 4, Counterparty: "B1"}}, s1.Fills())

	b1 := mustOrder(t, book, "B1")
	assert.Equal(t, StateOpen, b1.State())
	assert.Equal(t, int64(6), b1.QtyOpen())
	assert.Equal(t, int64(4), b1.QtyFilled())

	assert.Empty(t, book.Resting(Sell, 100))
	assert.Equal(t, []string{"B1"}, book.Resting(Buy, 100))
	bid, _ := book.BestBid()
	assert.Equal(t, int64(100), bid)
	_, ok := book.BestAsk()
	assert.False(t, ok)
}

func TestCancelUnknownOrder(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 4))
	before := book.Snapshot()

	actions, err := book.Cancel("nope")
	assert.ErrorIs(t, err, ErrOrderNotFound)
	assert.Nil(t, actions)
	assert.Equal(t, before, book.Snapshot())
	assert.Equal(t, []string{"s1"}, book.Resting(Sell, 100))
}

// cancelling a filled order is rejected without commands
func TestCancelFilledOrder(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 4))
	mustSubmit(t, book, limit("b1", Buy, 100, 4))
	require.Equal(t, StateFilled, mustOrder(t, book, "s1").State())

	for _, id := range []string{"s1", "b1"} {
		actions, err := book.Cancel(id)
		assert.ErrorIs(t, err, ErrOrderNotCancelable)
		assert.Nil(t, actions)
	}
}

func TestSellMirror(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("b1", Buy, 100, 3))
	mustSubmit(t, book, limit("b2", Buy, 102, 2))
	mustSubmit(t, book, limit("b3", Buy, 98, 5))

	actions := mustSubmit(t, book, limit("s1", Sell, 99, 10))
	assert.Equal(t, []CallbackAction{
		Publish("b2"), Publish("s1"), PopResting("b2", Buy, 102),
		Publish("b1"), Publish("s1"), PopResting("b1", Buy, 100),
		Publish("s1"),
	}, actions)

	s1 := mustOrder(t, book, "s1")
	assert.Equal(t, []Fill{
		{Price: 102, Qty: 2, Counterparty: "b2"},
		{Price: 100, Qty: 3, Counterparty: "b1"},
	}, s1.Fills())
	assert.Equal(t, int64(5), s1.QtyOpen())
	assert.Equal(t, StateOpen, s1.State())

	// b3 at 98 is below the sell limit and must not trade
	assert.Empty(t, mustOrder(t, book, "b3").Fills())

	ask, _ := book.BestAsk()
	assert.Equal(t, int64(99), ask)
	bid, _ := book.BestBid()
	assert.Equal(t, int64(98), bid)
}

func TestInclusiveLimit(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 1))
	mustSubmit(t, book, limit("b1", Buy, 100, 1))
	assert.Equal(t, StateFilled, mustOrder(t, book, "s1").State())
	assert.Equal(t, StateFilled, mustOrder(t, book, "b1").State())

	mustSubmit(t, book, limit("b2", Buy, 100, 1))
	mustSubmit(t, book, limit("s2", Sell, 100, 1))
	assert.Equal(t, StateFilled, mustOrder(t, book, "b2").State())
	assert.Equal(t, StateFilled, mustOrder(t, book, "s2").State())
}

func TestPriceImprovementGoesToAggressor(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 95, 2))

	mustSubmit(t, book, limit("b1", Buy, 110, 2))
	assert.Equal(t, []Fill{{Price: 95, Qty: 2, Counterparty: "s1"}}, mustOrder(t, book, "b1").Fills())
}

func TestMultiLevelSweepStopsWhenFilled(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 2))
	mustSubmit(t, book, limit("s2", Sell, 101, 2))
	mustSubmit(t, book, limit("s3", Sell, 102, 2))

	actions := mustSubmit(t, book, limit("b1", Buy, 105, 3))
	assert.Equal(t, []CallbackAction{
		Publish("s1"), Publish("b1"), PopResting("s1", Sell, 100),
		Publish("s2"), Publish("b1"),
	}, actions)

	assert.Equal(t, int64(1), mustOrder(t, book, "s2").QtyOpen())
	assert.Empty(t, mustOrder(t, book, "s3").Fills())
	assert.Equal(t, []int64{101, 102}, prices(book.Depth(Sell, 0)))
	_, ok := book.BestBid()
	assert.False(t, ok)
}

func TestTimePriorityWithinLevel(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 2))
	mustSubmit(t, book, limit("s2", Sell, 100, 2))
	mustSubmit(t, book, limit("s3", Sell, 100, 2))

	actions := mustSubmit(t, book, limit("b1", Buy, 100, 3))
	assert.Equal(t, []CallbackAction{
		Publish("s1"), Publish("b1"), PopResting("s1", Sell, 100),
		Publish("s2"), Publish("b1"),
	}, actions)
	assert.Equal(t, []string{"s2", "s3"}, book.Resting(Sell, 100))

	// a later arrival queues behind the partially filled s2
	mustSubmit(t, book, limit("s4", Sell, 100, 1))
	mustSubmit(t, book, limit("b2", Buy, 100, 4))
	assert.Equal(t, []Fill{
		{Price: 100, Qty: 1, Counterparty: "s2"},
		{Price: 100, Qty: 2, Counterparty: "s3"},
		{Price: 100, Qty: 1, Counterparty: "s4"},
	}, mustOrder(t, book, "b2").Fills())
}

func TestCancel(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("b1", Buy, 100, 2))
	mustSubmit(t, book, limit("b2", Buy, 100, 3))
	mustSubmit(t, book, limit("b3", Buy, 100, 4))

	actions, err := book.Cancel("b2")
	require.NoError(t, err)
	assert.Equal(t, []CallbackAction{PopResting("b2", Buy, 100), Publish("b2")}, actions)
	assert.Equal(t, []string{"b1", "b3"}, book.Resting(Buy, 100))

	b2 := mustOrder(t, book, "b2")
	assert.Equal(t, StateCancelled, b2.State())
	// quantities are frozen, not zeroed
	assert.Equal(t, int64(3), b2.QtyOpen())
	assert.Equal(t, int64(0), b2.QtyFilled())

	_, err = book.Cancel("b2")
	assert.ErrorIs(t, err, ErrOrderNotCancelable)

	// cancelled orders never trade
	mustSubmit(t, book, limit("s1", Sell, 100, 9))
	assert.Empty(t, mustOrder(t, book, "b2").Fills())
	assert.Equal(t, StateFilled, mustOrder(t, book, "b1").State())
	assert.Equal(t, StateFilled, mustOrder(t, book, "b3").State())
	assert.Equal(t, int64(3), mustOrder(t, book, "s1").QtyOpen())
}

func TestCancelPartiallyFilled(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 10))
	mustSubmit(t, book, limit("b1", Buy, 100, 4))

	actions, err := book.Cancel("s1")
	require.NoError(t, err)
	assert.Equal(t, []CallbackAction{PopResting("s1", Sell, 100), Publish("s1")}, actions)

	s1 := mustOrder(t, book, "s1")
	assert.Equal(t, StateCancelled, s1.State())
	assert.Equal(t, int64(6), s1.QtyOpen())
	assert.Equal(t, int64(4), s1.QtyFilled())
	_, ok := book.BestAsk()
	assert.False(t, ok)
}

func TestSubmitValidation(t *testing.T) {
	tests := []struct {
		name string
		req  OrderRequest
		want error
	}{
		{"empty id", OrderRequest{Side: Buy, Price: 100, Qty: 1, Symbol: testSymbol}, ErrInvalidArgument},
		{"bad side", OrderRequest{ID: "x", Side: Side(3), Price: 100, Qty: 1, Symbol: testSymbol}, ErrInvalidSide},
		{"zero qty", limit("x", Buy, 100, 0), ErrInvalidQuantity},
		{"negative qty", limit("x", Buy, 100, -5), ErrInvalidQuantity},
		{"qty above max", limit("x", Buy, 100, 1_000_001), ErrInvalidQuantity},
		{"zero price", limit("x", Buy, 0, 1), ErrInvalidPrice},
		{"negative price", limit("x", Sell, -1, 1), ErrInvalidPrice},
		{"price above max", limit("x", Sell, 1_000_001, 1), ErrInvalidPrice},
		{"symbol mismatch", OrderRequest{ID: "x", Side: Buy, Price: 100, Qty: 1, Symbol: "XYZ"}, ErrSymbolMismatch},
		{"duplicate id", limit("s1", Buy, 100, 1), ErrDuplicateOrderID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			book := newTestBook(t)
			mustSubmit(t, book, limit("s1", Sell, 100, 5))
			before := book.Snapshot()

			actions, err := book.Submit(tt.req)
			assert.ErrorIs(t, err, tt.want)
			assert.Nil(t, actions)
			assert.Equal(t, before, book.Snapshot(), "rejected request must not mutate the book")
		})
	}
}

func TestDuplicateOfTerminalOrder(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 1))
	mustSubmit(t, book, limit("b1", Buy, 100, 1))

	_, err := book.Submit(limit("s1", Sell, 100, 1))
	assert.ErrorIs(t, err, ErrDuplicateOrderID)
}

func TestDepth(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 101, 2))
	mustSubmit(t, book, limit("s2", Sell, 101, 3))
	mustSubmit(t, book, limit("s3", Sell, 103, 1))
	mustSubmit(t, book, limit("s4", Sell, 102, 4))
	mustSubmit(t, book, limit("b1", Buy, 101, 1))

	assert.Equal(t, []Level{
		{Price: 101, Qty: 4, Orders: 2},
		{Price: 102, Qty: 4, Orders: 1},
	}, book.Depth(Sell, 2))
	assert.Len(t, book.Depth(Sell, 0), 3)
	assert.Empty(t, book.Depth(Buy, 5))
	assert.Equal(t, 5, book.Len())
	assert.Equal(t, 4, book.RestingLen(Sell))
	assert.Equal(t, 0, book.RestingLen(Buy))
}

func TestOrderReturnsCopy(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 100, 5))

	order := mustOrder(t, book, "s1")
	order.qtyOpen = 0
	order.state = StateCancelled

	fresh := mustOrder(t, book, "s1")
	assert.Equal(t, int64(5), fresh.QtyOpen())
	assert.Equal(t, StateOpen, fresh.State())

	_, err := book.Order("missing")
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

func TestOrderBookString(t *testing.T) {
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 101, 2))
	mustSubmit(t, book, limit("b1", Buy, 99, 2))

	assert.Equal(t, "Ask:\n101 -> orders: 1\nBid:\n99 -> orders: 1\n", book.String())
}

func prices(levels []Level) []int64 {
	out := make([]int64, len(levels))
	for i, l := range levels {
		out[i] = l.Price
	}
	return out
}
