package core

import (
	"encoding/json"
	"fmt"
)

// Side represents buy or sell side of the order
type Side int

// Order sides
const (
	Sell Side = iota
	Buy
)

// String returns side as string
func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether s is Buy or Sell
func (s Side) Valid() bool {
	return s == Buy || s == Sell
}

// Opposite returns the other side of the book
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// ParseSide converts "BUY"/"SELL" into a Side
func ParseSide(s string) (Side, error) {
	switch s {
	case "BUY", "buy", "Buy":
		return Buy, nil
	case "SELL", "sell", "Sell":
		return Sell, nil
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidSide, s)
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Side) MarshalText() ([]byte, error) {
	if !s.Valid() {
		return nil, ErrInvalidSide
	}
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Side) UnmarshalText(text []byte) error {
	side, err := ParseSide(string(text))
	if err != nil {
		return err
	}
	*s = side
	return nil
}

// State represents the lifecycle state of an order
type State string

// Order states
const (
	StateOpen      State = "OPEN"
	StateFilled    State = "FILLED"
	StateCancelled State = "CANCELLED"
)

// IsTerminal reports whether no further transition can leave this state
func (s State) IsTerminal() bool {
	return s == StateFilled || s == StateCancelled
}

// Fill records one execution against a counterparty
type Fill struct {
	Price        int64  `json:"price"`
	Qty          int64  `json:"qty"`
	Counterparty string `json:"counterparty"`
}

// OrderRequest is what a caller submits to the book
type OrderRequest struct {
	ID     string `json:"id" yaml:"id"`
	Side   Side   `json:"side" yaml:"side"`
	Price  int64  `json:"price" yaml:"price"`
	Qty    int64  `json:"qty" yaml:"qty"`
	Symbol string `json:"symbol" yaml:"symbol"`
}

// Order stores information about order
type Order struct {
	id        string
	side      Side
	symbol    string
	price     int64
	quantity  int64
	qtyOpen   int64
	qtyFilled int64
	fills     []Fill
	state     State
	seq       uint64
}

func newOrder(req OrderRequest, seq uint64) *Order {
	return &Order{
		id:       req.ID,
		side:     req.Side,
		symbol:   req.Symbol,
		price:    req.Price,
		quantity: req.Qty,
		qtyOpen:  req.Qty,
		state:    StateOpen,
		seq:      seq,
	}
}

// ID returns OrderID field copy
func (o *Order) ID() string {
	return o.id
}

// Side returns side of the Order
func (o *Order) Side() Side {
	return o.side
}

// Symbol returns the instrument the order was submitted for
func (o *Order) Symbol() string {
	return o.symbol
}

// Price returns the limit price in ticks
func (o *Order) Price() int64 {
	return o.price
}

// Quantity returns the original quantity
func (o *Order) Quantity() int64 {
	return o.quantity
}

// QtyOpen returns the quantity still available to trade
func (o *Order) QtyOpen() int64 {
	return o.qtyOpen
}

// QtyFilled returns the quantity traded so far
func (o *Order) QtyFilled() int64 {
	return o.qtyFilled
}

// Fills returns a copy of the fill history
func (o *Order) Fills() []Fill {
	fills := make([]Fill, len(o.fills))
	copy(fills, o.fills)
	return fills
}

// State returns the lifecycle state
func (o *Order) State() State {
	return o.state
}

// Seq returns the arrival sequence number assigned by the book
func (o *Order) Seq() uint64 {
	return o.seq
}

// IsOpen reports whether the order can still trade
func (o *Order) IsOpen() bool {
	return o.state == StateOpen
}

// fill applies one execution. The order becomes Filled when nothing is left open.
func (o *Order) fill(qty, price int64, counterparty string) {
	o.qtyOpen -= qty
	o.qtyFilled += qty
	o.fills = append(o.fills, Fill{Price: price, Qty: qty, Counterparty: counterparty})
	if o.qtyOpen == 0 {
		o.state = StateFilled
	}
}

func (o *Order) cancel() {
	o.state = StateCancelled
}

// clone returns a deep copy safe to hand out of the book
func (o *Order) clone() *Order {
	c := *o
	c.fills = o.Fills()
	return &c
}

// check verifies the quantity invariants of a single order
func (o *Order) check() error {
	switch {
	case o.id == "":
		return fmt.Errorf("%w: empty order id", ErrInvalidSnapshot)
	case !o.side.Valid():
		return fmt.Errorf("%w: order %s: %v", ErrInvalidSnapshot, o.id, ErrInvalidSide)
	case o.quantity <= 0 || o.qtyOpen < 0 || o.qtyFilled < 0:
		return fmt.Errorf("%w: order %s: negative or zero quantity", ErrInvalidSnapshot, o.id)
	case o.qtyOpen+o.qtyFilled != o.quantity:
		return fmt.Errorf("%w: order %s: open %d + filled %d != quantity %d",
			ErrInvalidSnapshot, o.id, o.qtyOpen, o.qtyFilled, o.quantity)
	}

	var filled int64
	for _, f := range o.fills {
		filled += f.Qty
	}
	if filled != o.qtyFilled {
		return fmt.Errorf("%w: order %s: fill history sums to %d, filled is %d",
			ErrInvalidSnapshot, o.id, filled, o.qtyFilled)
	}

	switch o.state {
	case StateOpen:
		if o.qtyOpen == 0 {
			return fmt.Errorf("%w: order %s: open with nothing left", ErrInvalidSnapshot, o.id)
		}
	case StateFilled:
		if o.qtyOpen != 0 {
			return fmt.Errorf("%w: order %s: filled with %d open", ErrInvalidSnapshot, o.id, o.qtyOpen)
		}
	case StateCancelled:
	default:
		return fmt.Errorf("%w: order %s: unknown state %q", ErrInvalidSnapshot, o.id, o.state)
	}
	return nil
}

type orderJSON struct {
	ID        string `json:"id"`
	Side      Side   `json:"side"`
	Symbol    string `json:"symbol"`
	Price     int64  `json:"price"`
	Quantity  int64  `json:"quantity"`
	QtyOpen   int64  `json:"qtyOpen"`
	QtyFilled int64  `json:"qtyFilled"`
	Fills     []Fill `json:"fills"`
	State     State  `json:"state"`
	Seq       uint64 `json:"seq"`
}

// MarshalJSON implements custom JSON marshaling for Order
func (o *Order) MarshalJSON() ([]byte, error) {
	fills := o.fills
	if fills == nil {
		fills = []Fill{}
	}
	return json.Marshal(orderJSON{
		ID:        o.id,
		Side:      o.side,
		Symbol:    o.symbol,
		Price:     o.price,
		Quantity:  o.quantity,
		QtyOpen:   o.qtyOpen,
		QtyFilled: o.qtyFilled,
		Fills:     fills,
		State:     o.state,
		Seq:       o.seq,
	})
}

// UnmarshalJSON implements custom JSON unmarshaling for Order
func (o *Order) UnmarshalJSON(data []byte) error {
	var oj orderJSON
	if err := json.Unmarshal(data, &oj); err != nil {
		return err
	}

	o.id = oj.ID
	o.side = oj.Side
	o.symbol = oj.Symbol
	o.price = oj.Price
	o.quantity = oj.Quantity
	o.qtyOpen = oj.QtyOpen
	o.qtyFilled = oj.QtyFilled
	o.fills = oj.Fills
	o.state = oj.State
	o.seq = oj.Seq

	return nil
}

// String implements Stringer interface
func (o *Order) String() string {
	j, _ := o.MarshalJSON()
	return string(j)
}
