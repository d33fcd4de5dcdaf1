package messaging

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/nikolaydubina/fpdecimal"
)

// OrderEvent is the published state of one order after a book call. It is
// the payload behind every Publish action.
type OrderEvent struct {
	// EventSeq increases by one per published event of a book
	EventSeq     uint64      `json:"event_seq"`
	OrderID      string      `json:"order_id"`
	Symbol       string      `json:"symbol"`
	Side         core.Side   `json:"side"`
	State        core.State  `json:"state"`
	Price        int64       `json:"price"`
	PriceDecimal string      `json:"price_decimal,omitempty"`
	Qty          int64       `json:"qty"`
	QtyOpen      int64       `json:"qty_open"`
	QtyFilled    int64       `json:"qty_filled"`
	Fills        []FillEvent `json:"fills"`
	Seq          uint64      `json:"seq"`
}

// FillEvent is one execution of the order
type FillEvent struct {
	Price        int64  `json:"price"`
	PriceDecimal string `json:"price_decimal,omitempty"`
	Qty          int64  `json:"qty"`
	Counterparty string `json:"counterparty"`
}

// ParseTick parses a tick size. fpdecimal keeps FractionDigits fractional
// digits, anything finer would silently round to zero.
func ParseTick(tickSize string) (fpdecimal.Decimal, error) {
	s := strings.TrimSpace(tickSize)
	if dot := strings.IndexByte(s, '.'); dot >= 0 {
		frac := strings.TrimRight(s[dot+1:], "0")
		if len(frac) > int(fpdecimal.FractionDigits) {
			return fpdecimal.Zero, fmt.Errorf("invalid tick size %q: more than %d fractional digits", tickSize, fpdecimal.FractionDigits)
		}
	}

	tick, err := fpdecimal.FromString(s)
	if err != nil {
		return fpdecimal.Zero, fmt.Errorf("invalid tick size %q: %w", tickSize, err)
	}
	if !tick.GreaterThan(fpdecimal.Zero) {
		return fpdecimal.Zero, fmt.Errorf("invalid tick size %q: must be positive", tickSize)
	}
	return tick, nil
}

// PriceFormat renders tick prices as decimals. The zero value renders
// plain tick counts.
type PriceFormat struct {
	tick fpdecimal.Decimal
	set  bool
}

// NewPriceFormat parses tickSize, the decimal value of one tick
func NewPriceFormat(tickSize string) (PriceFormat, error) {
	tick, err := ParseTick(tickSize)
	if err != nil {
		return PriceFormat{}, err
	}
	return PriceFormat{tick: tick, set: true}, nil
}

// MaxTicks returns the largest tick count Format can render
func (p PriceFormat) MaxTicks() int64 {
	if !p.set {
		return math.MaxInt64
	}
	return MaxTicks(p.tick)
}

// MaxTicks returns the largest tick count whose decimal value fits in an
// fpdecimal.Decimal
func MaxTicks(tick fpdecimal.Decimal) int64 {
	return math.MaxInt64 / tick.Scaled()
}

// Format renders ticks × tick size. Tick counts beyond MaxTicks render as
// the empty string.
func (p PriceFormat) Format(ticks int64) string {
	if !p.set {
		return strconv.FormatInt(ticks, 10)
	}
	limit := p.MaxTicks()
	if ticks > limit || ticks < -limit {
		return ""
	}
	return fpdecimal.FromIntScaled(ticks * p.tick.Scaled()).String()
}

// NewOrderEvent snapshots order into an event
func NewOrderEvent(order *core.Order, format PriceFormat) *OrderEvent {
	fills := order.Fills()
	event := &OrderEvent{
		OrderID:      order.ID(),
		Symbol:       order.Symbol(),
		Side:         order.Side(),
		State:        order.State(),
		Price:        order.Price(),
		PriceDecimal: format.Format(order.Price()),
		Qty:          order.Quantity(),
		QtyOpen:      order.QtyOpen(),
		QtyFilled:    order.QtyFilled(),
		Fills:        make([]FillEvent, len(fills)),
		Seq:          order.Seq(),
	}
	for i, f := range fills {
		event.Fills[i] = FillEvent{
			Price:        f.Price,
			PriceDecimal: format.Format(f.Price),
			Qty:          f.Qty,
			Counterparty: f.Counterparty,
		}
	}
	return event
}

// Key partitions events so a single book's events stay in order
func (e *OrderEvent) Key() []byte {
	return []byte(e.Symbol)
}
