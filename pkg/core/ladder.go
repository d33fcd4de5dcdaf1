package core

import (
	"fmt"
	"strings"
)

// priceLevel is the FIFO queue of resting order ids sharing one price
type priceLevel struct {
	price int64
	ids   []string
	next  *priceLevel
	prev  *priceLevel
}

// Level is an aggregated view of one price level
type Level struct {
	Price  int64 `json:"price"`
	Qty    int64 `json:"qty"`
	Orders int   `json:"orders"`
}

// Ladder is one side of the book: price levels kept in a linked list from the
// best price to the worst, plus an index by price. The best price is cached
// and kept equal to the head level on every insert and remove.
type Ladder struct {
	side   Side
	head   *priceLevel
	tail   *priceLevel
	levels map[int64]*priceLevel
	best   int64
	count  int
}

// NewLadder creates an empty ladder. Bids are ordered from the highest price
// down, asks from the lowest price up.
func NewLadder(side Side) *Ladder {
	return &Ladder{
		side:   side,
		levels: make(map[int64]*priceLevel),
	}
}

// Side returns the book side this ladder holds
func (l *Ladder) Side() Side {
	return l.side
}

// Best returns the cached best price and whether the ladder is non-empty
func (l *Ladder) Best() (int64, bool) {
	return l.best, l.head != nil
}

// Len returns the number of resting order ids
func (l *Ladder) Len() int {
	return l.count
}

// LevelCount returns the number of occupied price levels
func (l *Ladder) LevelCount() int {
	return len(l.levels)
}

// better reports whether price a has priority over price b on this side
func (l *Ladder) better(a, b int64) bool {
	if l.side == Buy {
		return a > b
	}
	return a < b
}

// Enqueue appends id to the tail of the level at price, creating the level
// if needed.
func (l *Ladder) Enqueue(price int64, id string) {
	l.count++

	if q, ok := l.levels[price]; ok {
		q.ids = append(q.ids, id)
		return
	}

	level := &priceLevel{price: price, ids: []string{id}}
	l.levels[price] = level

	if l.head == nil {
		// Empty list
		l.head = level
		l.tail = level
		l.best = price
		return
	}

	if l.better(price, l.head.price) {
		// Insert at head
		level.next = l.head
		l.head.prev = level
		l.head = level
		l.best = price
		return
	}

	if !l.better(price, l.tail.price) {
		// Insert at tail
		level.prev = l.tail
		l.tail.next = level
		l.tail = level
		return
	}

	// Insert in middle
	current := l.head
	for current != nil && !l.better(price, current.price) {
		current = current.next
	}
	level.next = current
	level.prev = current.prev
	current.prev.next = level
	current.prev = level
}

// Head returns the id at the head of the level at price
func (l *Ladder) Head(price int64) (string, bool) {
	q, ok := l.levels[price]
	if !ok {
		return "", false
	}
	return q.ids[0], true
}

// DequeueHead removes and returns the head of the level at price
func (l *Ladder) DequeueHead(price int64) (string, bool) {
	q, ok := l.levels[price]
	if !ok {
		return "", false
	}

	id := q.ids[0]
	q.ids[0] = ""
	q.ids = q.ids[1:]
	l.count--
	if len(q.ids) == 0 {
		l.unlink(q)
	}
	return id, true
}

// Remove deletes a specific id from the level at price, wherever it sits in
// the queue.
func (l *Ladder) Remove(price int64, id string) bool {
	q, ok := l.levels[price]
	if !ok {
		return false
	}

	for i, queued := range q.ids {
		if queued != id {
			continue
		}
		if i == 0 {
			_, ok := l.DequeueHead(price)
			return ok
		}
		q.ids = append(q.ids[:i], q.ids[i+1:]...)
		l.count--
		return true
	}
	return false
}

// unlink drops an empty level and refreshes the best price cache
func (l *Ladder) unlink(q *priceLevel) {
	delete(l.levels, q.price)

	if q.prev != nil {
		q.prev.next = q.next
	} else {
		l.head = q.next
	}
	if q.next != nil {
		q.next.prev = q.prev
	} else {
		l.tail = q.prev
	}
	q.next, q.prev = nil, nil

	if l.head != nil {
		l.best = l.head.price
	} else {
		l.best = 0
	}
}

// Prices returns occupied prices from best to worst
func (l *Ladder) Prices() []int64 {
	prices := make([]int64, 0, len(l.levels))
	for current := l.head; current != nil; current = current.next {
		prices = append(prices, current.price)
	}
	return prices
}

// Orders returns a copy of the queue at price in arrival order
func (l *Ladder) Orders(price int64) []string {
	q, ok := l.levels[price]
	if !ok {
		return []string{}
	}
	ids := make([]string, len(q.ids))
	copy(ids, q.ids)
	return ids
}

// scan walks levels from best to worst, handing each level's live queue to fn
// until fn returns false. fn must not mutate the ladder.
func (l *Ladder) scan(fn func(price int64, ids []string) bool) {
	for current := l.head; current != nil; current = current.next {
		if !fn(current.price, current.ids) {
			return
		}
	}
}

// String implements fmt.Stringer interface
func (l *Ladder) String() string {
	sb := strings.Builder{}
	for current := l.head; current != nil; current = current.next {
		sb.WriteString(fmt.Sprintf("\n%d -> orders: %d", current.price, len(current.ids)))
	}
	return sb.String()
}
