package core

import (
	"fmt"
	"sort"
)

// Snapshot is the full state of a book: every order with its fill history, in
// arrival order. Open orders are re-queued by Seq when restored, which keeps
// time priority identical.
type Snapshot struct {
	Symbol string   `json:"symbol"`
	Seq    uint64   `json:"seq"`
	Orders []*Order `json:"orders"`
}

// Snapshot copies the book state
func (ob *OrderBook) Snapshot() Snapshot {
	ordered := ob.arena.Ordered()
	orders := make([]*Order, len(ordered))
	for i, o := range ordered {
		orders[i] = o.clone()
	}
	return Snapshot{
		Symbol: ob.cfg.Symbol,
		Seq:    ob.seq,
		Orders: orders,
	}
}

// Restore rebuilds a book from a snapshot taken with Snapshot
func Restore(cfg Config, snap Snapshot) (*OrderBook, error) {
	ob, err := NewOrderBook(cfg)
	if err != nil {
		return nil, err
	}
	if snap.Symbol != cfg.Symbol {
		return nil, fmt.Errorf("%w: snapshot for %q, book trades %q", ErrSymbolMismatch, snap.Symbol, cfg.Symbol)
	}

	orders := make([]*Order, 0, len(snap.Orders))
	seen := make(map[uint64]string, len(snap.Orders))
	for _, o := range snap.Orders {
		if o == nil {
			return nil, fmt.Errorf("%w: nil order", ErrInvalidSnapshot)
		}
		if err := o.check(); err != nil {
			return nil, err
		}
		if o.symbol != cfg.Symbol {
			return nil, fmt.Errorf("%w: order %s trades %q", ErrInvalidSnapshot, o.id, o.symbol)
		}
		if err := ob.cfg.checkBounds(o.price, o.quantity); err != nil {
			return nil, fmt.Errorf("%w: order %s: %v", ErrInvalidSnapshot, o.id, err)
		}
		if prev, dup := seen[o.seq]; dup {
			return nil, fmt.Errorf("%w: orders %s and %s share seq %d", ErrInvalidSnapshot, prev, o.id, o.seq)
		}
		seen[o.seq] = o.id

		c := o.clone()
		if err := ob.arena.Insert(c); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidSnapshot, err)
		}
		orders = append(orders, c)
		if c.seq > ob.seq {
			ob.seq = c.seq
		}
	}
	if snap.Seq > ob.seq {
		ob.seq = snap.Seq
	}

	sort.Slice(orders, func(i, j int) bool {
		return orders[i].seq < orders[j].seq
	})
	for _, o := range orders {
		if o.IsOpen() {
			ob.ladder(o.side).Enqueue(o.price, o.id)
		}
	}

	if bid, ok := ob.BestBid(); ok {
		if ask, ok := ob.BestAsk(); ok && bid >= ask {
			return nil, fmt.Errorf("%w: crossed book, bid %d >= ask %d", ErrInvalidSnapshot, bid, ask)
		}
	}

	return ob, nil
}
