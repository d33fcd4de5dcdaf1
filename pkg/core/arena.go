package core

import (
	"fmt"
	"sort"
)

// Arena owns every order record of a book for the book's lifetime. Ladders only
// hold order ids that point back here.
type Arena struct {
	orders map[string]*Order
}

// NewArena creates an empty arena
func NewArena() *Arena {
	return &Arena{
		orders: make(map[string]*Order),
	}
}

// Insert stores a new order
func (a *Arena) Insert(order *Order) error {
	if _, exists := a.orders[order.ID()]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateOrderID, order.ID())
	}
	a.orders[order.ID()] = order
	return nil
}

// Get returns the order stored under id
func (a *Arena) Get(id string) (*Order, error) {
	order, ok := a.orders[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, id)
	}
	return order, nil
}

// Has reports whether id was ever inserted
func (a *Arena) Has(id string) bool {
	_, ok := a.orders[id]
	return ok
}

// Len returns the number of orders held, terminal ones included
func (a *Arena) Len() int {
	return len(a.orders)
}

// Ordered returns all orders sorted by arrival sequence
func (a *Arena) Ordered() []*Order {
	orders := make([]*Order, 0, len(a.orders))
	for _, o := range a.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].seq < orders[j].seq
	})
	return orders
}
