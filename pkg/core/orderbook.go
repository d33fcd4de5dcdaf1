package core

import (
	"fmt"
	"strings"
)

// Default and largest accepted bounds, in ticks and lots. Open quantity on a
// level is summed in int64, so MaxQtyLimit keeps that sum far from overflow.
const (
	DefaultMaxPrice int64 = 1_000_000_000_000
	DefaultMaxQty   int64 = 1_000_000_000
	MaxPriceLimit   int64 = 1_000_000_000_000_000
	MaxQtyLimit     int64 = 1_000_000_000_000
)

// Config describes the single instrument a book trades and the bounds its
// requests are validated against.
type Config struct {
	Symbol string
	// MinPrice is the lowest accepted limit price in ticks. Zero means 1.
	MinPrice int64
	// MaxPrice is the highest accepted limit price in ticks. Zero means
	// DefaultMaxPrice.
	MaxPrice int64
	// MaxQty caps a single order's quantity. Zero means DefaultMaxQty.
	MaxQty int64
}

// Validate checks the configuration, filling in defaults
func (c *Config) Validate() error {
	if c.Symbol == "" {
		return fmt.Errorf("%w: empty symbol", ErrInvalidConfig)
	}
	if c.MinPrice == 0 {
		c.MinPrice = 1
	}
	if c.MaxPrice == 0 {
		c.MaxPrice = DefaultMaxPrice
	}
	if c.MaxQty == 0 {
		c.MaxQty = DefaultMaxQty
	}
	if c.MinPrice < 0 {
		return fmt.Errorf("%w: min price %d", ErrInvalidConfig, c.MinPrice)
	}
	if c.MaxPrice < c.MinPrice || c.MaxPrice > MaxPriceLimit {
		return fmt.Errorf("%w: max price %d outside [%d, %d]", ErrInvalidConfig, c.MaxPrice, c.MinPrice, MaxPriceLimit)
	}
	if c.MaxQty < 0 || c.MaxQty > MaxQtyLimit {
		return fmt.Errorf("%w: max quantity %d outside [1, %d]", ErrInvalidConfig, c.MaxQty, MaxQtyLimit)
	}
	return nil
}

// checkBounds reports whether price and qty are within the configured limits
func (c Config) checkBounds(price, qty int64) error {
	if qty <= 0 || qty > c.MaxQty {
		return fmt.Errorf("%w: %d", ErrInvalidQuantity, qty)
	}
	if price < c.MinPrice || price > c.MaxPrice {
		return fmt.Errorf("%w: %d", ErrInvalidPrice, price)
	}
	return nil
}

// OrderBook matches one symbol's orders under price-time priority.
//
// It is not safe for concurrent use: every call runs to completion and the
// caller must serialize requests for the symbol. The order of calls defines
// time priority.
type OrderBook struct {
	cfg   Config
	arena *Arena
	bids  *Ladder
	asks  *Ladder
	seq   uint64
}

// NewOrderBook creates an empty book for cfg.Symbol
func NewOrderBook(cfg Config) (*OrderBook, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &OrderBook{
		cfg:   cfg,
		arena: NewArena(),
		bids:  NewLadder(Buy),
		asks:  NewLadder(Sell),
	}, nil
}

// Config returns the book configuration
func (ob *OrderBook) Config() Config {
	return ob.cfg
}

// Symbol returns the instrument this book trades
func (ob *OrderBook) Symbol() string {
	return ob.cfg.Symbol
}

// Submit validates req, crosses it against the opposite ladder and rests any
// residual. The returned actions are in emission order; PopResting actions
// have already been applied to the ladders when Submit returns.
func (ob *OrderBook) Submit(req OrderRequest) ([]CallbackAction, error) {
	if err := ob.validate(req); err != nil {
		return nil, err
	}

	order := newOrder(req, ob.seq+1)
	if err := ob.arena.Insert(order); err != nil {
		return nil, err
	}
	ob.seq++

	if order.Side() == Buy {
		return ob.handleBuy(order), nil
	}
	return ob.handleSell(order), nil
}

// Cancel moves a resting order to Cancelled and takes it off its ladder
func (ob *OrderBook) Cancel(id string) ([]CallbackAction, error) {
	return ob.handleCancel(id)
}

func (ob *OrderBook) validate(req OrderRequest) error {
	if req.ID == "" {
		return fmt.Errorf("%w: empty order id", ErrInvalidArgument)
	}
	if !req.Side.Valid() {
		return fmt.Errorf("%w: %d", ErrInvalidSide, int(req.Side))
	}
	if err := ob.cfg.checkBounds(req.Price, req.Qty); err != nil {
		return err
	}
	if req.Symbol != ob.cfg.Symbol {
		return fmt.Errorf("%w: got %q, book trades %q", ErrSymbolMismatch, req.Symbol, ob.cfg.Symbol)
	}
	if ob.arena.Has(req.ID) {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, req.ID)
	}
	return nil
}

// handleBuy crosses a buy against asks priced at or below its limit
func (ob *OrderBook) handleBuy(incoming *Order) []CallbackAction {
	actions := ob.cross(incoming, ob.asks, func(price int64) bool {
		return price <= incoming.price
	})
	ob.apply(actions)

	if incoming.IsOpen() {
		ob.bids.Enqueue(incoming.price, incoming.id)
		actions = append(actions, Publish(incoming.id))
	}
	return actions
}

// handleSell crosses a sell against bids priced at or above its limit
func (ob *OrderBook) handleSell(incoming *Order) []CallbackAction {
	actions := ob.cross(incoming, ob.bids, func(price int64) bool {
		return price >= incoming.price
	})
	ob.apply(actions)

	if incoming.IsOpen() {
		ob.asks.Enqueue(incoming.price, incoming.id)
		actions = append(actions, Publish(incoming.id))
	}
	return actions
}

// cross matches incoming against book from the best level down while
// eligible(price) holds. Filled resting orders are not removed here: the scan
// is reading the same queues, so removal is emitted as PopResting and applied
// after the scan.
func (ob *OrderBook) cross(incoming *Order, book *Ladder, eligible func(price int64) bool) []CallbackAction {
	var actions []CallbackAction

	book.scan(func(price int64, ids []string) bool {
		if !eligible(price) {
			return false
		}

		for _, id := range ids {
			resting, ok := ob.arena.orders[id]
			if !ok {
				panic(fmt.Sprintf("order %s rests on %s at %d but is not in the arena", id, book.Side(), price))
			}

			tradeQty := min(incoming.qtyOpen, resting.qtyOpen)
			resting.fill(tradeQty, price, incoming.id)
			incoming.fill(tradeQty, price, resting.id)
			actions = append(actions, Publish(resting.id), Publish(incoming.id))

			if !resting.IsOpen() {
				actions = append(actions, PopResting(resting.id, resting.side, price))
			}
			if !incoming.IsOpen() {
				return false
			}
		}
		return true
	})

	return actions
}

func (ob *OrderBook) handleCancel(id string) ([]CallbackAction, error) {
	order, err := ob.arena.Get(id)
	if err != nil {
		return nil, err
	}
	if !order.IsOpen() {
		return nil, fmt.Errorf("%w: %s is %s", ErrOrderNotCancelable, id, order.State())
	}

	order.cancel()
	actions := []CallbackAction{
		PopResting(order.id, order.side, order.price),
		Publish(order.id),
	}
	ob.apply(actions)
	return actions, nil
}

// apply performs the ladder removals of actions in emission order
func (ob *OrderBook) apply(actions []CallbackAction) {
	for _, a := range actions {
		if a.Kind != ActionPopResting {
			continue
		}

		ladder := ob.ladder(a.Side)
		if head, ok := ladder.Head(a.Price); ok && head == a.ID {
			ladder.DequeueHead(a.Price)
			continue
		}
		if !ladder.Remove(a.Price, a.ID) {
			panic(fmt.Sprintf("order %s is not resting on %s at %d", a.ID, a.Side, a.Price))
		}
	}
}

func (ob *OrderBook) ladder(side Side) *Ladder {
	if side == Buy {
		return ob.bids
	}
	return ob.asks
}

// Order returns a copy of the order stored under id
func (ob *OrderBook) Order(id string) (*Order, error) {
	order, err := ob.arena.Get(id)
	if err != nil {
		return nil, err
	}
	return order.clone(), nil
}

// BestBid returns the highest resting buy price
func (ob *OrderBook) BestBid() (int64, bool) {
	return ob.bids.Best()
}

// BestAsk returns the lowest resting sell price
func (ob *OrderBook) BestAsk() (int64, bool) {
	return ob.asks.Best()
}

// Resting returns the ids queued on side at price in time priority
func (ob *OrderBook) Resting(side Side, price int64) []string {
	return ob.ladder(side).Orders(price)
}

// Depth returns up to n aggregated levels of side, best first. n <= 0 returns
// every level.
func (ob *OrderBook) Depth(side Side, n int) []Level {
	ladder := ob.ladder(side)
	levels := make([]Level, 0, ladder.LevelCount())

	ladder.scan(func(price int64, ids []string) bool {
		if n > 0 && len(levels) == n {
			return false
		}
		level := Level{Price: price, Orders: len(ids)}
		for _, id := range ids {
			level.Qty += ob.arena.orders[id].qtyOpen
		}
		levels = append(levels, level)
		return true
	})

	return levels
}

// Len returns how many orders the book has seen, terminal ones included
func (ob *OrderBook) Len() int {
	return ob.arena.Len()
}

// RestingLen returns how many orders currently rest on side
func (ob *OrderBook) RestingLen(side Side) int {
	return ob.ladder(side).Len()
}

// String implements fmt.Stringer interface
func (ob *OrderBook) String() string {
	builder := strings.Builder{}

	builder.WriteString("Ask:")
	builder.WriteString(ob.asks.String())
	builder.WriteString("\n")

	builder.WriteString("Bid:")
	builder.WriteString(ob.bids.String())
	builder.WriteString("\n")

	return builder.String()
}
