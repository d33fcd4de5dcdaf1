package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildBook(t *testing.T) *OrderBook {
	t.Helper()
	book := newTestBook(t)
	mustSubmit(t, book, limit("s1", Sell, 101, 5))
	mustSubmit(t, book, limit("s2", Sell, 101, 3))
	mustSubmit(t, book, limit("s3", Sell, 103, 2))
	mustSubmit(t, book, limit("b1", Buy, 99, 4))
	mustSubmit(t, book, limit("b2", Buy, 101, 6))
	_, err := book.Cancel("s3")
	require.NoError(t, err)
	return book
}

func TestSnapshotRestore(t *testing.T) {
	book := buildBook(t)
	snap := book.Snapshot()

	assert.Equal(t, testSymbol, snap.Symbol)
	assert.Equal(t, uint64(5), snap.Seq)
	require.Len(t, snap.Orders, 5)
	assert.Equal(t, "s1", snap.Orders[0].ID())
	assert.Equal(t, "b2", snap.Orders[4].ID())

	data, err := json.Marshal(snap)
	require.NoError(t, err)

	var decoded Snapshot
	require.NoError(t, json.Unmarshal(data, &decoded))

	restored, err := Restore(book.Config(), decoded)
	require.NoError(t, err)

	assert.Equal(t, snap, restored.Snapshot())
	assert.Equal(t, book.Depth(Sell, 0), restored.Depth(Sell, 0))
	assert.Equal(t, book.Depth(Buy, 0), restored.Depth(Buy, 0))
	assert.Equal(t, book.Resting(Sell, 101), restored.Resting(Sell, 101))

	// both books behave identically from here on
	next := limit("b3", Buy, 101, 2)
	want := mustSubmit(t, book, next)
	got := mustSubmit(t, restored, next)
	assert.Equal(t, want, got)
	assert.Equal(t, book.Snapshot(), restored.Snapshot())
}

func TestSnapshotIsolation(t *testing.T) {
	book := buildBook(t)
	snap := book.Snapshot()
	require.Equal(t, "s2", snap.Orders[1].ID())
	snap.Orders[1].qtyOpen = 0
	snap.Orders[1].fills[0].Qty = 100

	s2 := mustOrder(t, book, "s2")
	assert.Equal(t, int64(2), s2.QtyOpen())
	assert.Equal(t, int64(1), s2.Fills()[0].Qty)
}

func TestRestoreRejectsBadSnapshots(t *testing.T) {
	book := buildBook(t)

	tests := []struct {
		name   string
		cfg    Config
		mutate func(s *Snapshot)
		want   error
	}{
		{"symbol", Config{Symbol: "OTHER"}, func(s *Snapshot) {}, ErrSymbolMismatch},
		{"bad config", Config{}, func(s *Snapshot) {}, ErrInvalidConfig},
		{"nil order", book.Config(), func(s *Snapshot) { s.Orders[1] = nil }, ErrInvalidSnapshot},
		{"conservation", book.Config(), func(s *Snapshot) { s.Orders[0].qtyOpen++ }, ErrInvalidSnapshot},
		{"order symbol", book.Config(), func(s *Snapshot) { s.Orders[0].symbol = "X" }, ErrInvalidSnapshot},
		{"duplicate id", book.Config(), func(s *Snapshot) {
			dup := s.Orders[0].clone()
			dup.seq = 99
			s.Orders = append(s.Orders, dup)
		}, ErrInvalidSnapshot},
		{"duplicate seq", book.Config(), func(s *Snapshot) { s.Orders[1].seq = s.Orders[0].seq }, ErrInvalidSnapshot},
		{"crossed", book.Config(), func(s *Snapshot) {
			s.Orders = append(s.Orders, newOrder(limit("b9", Buy, 150, 1), 50))
		}, ErrInvalidSnapshot},
		{"price above max", Config{Symbol: testSymbol, MaxPrice: 100}, func(s *Snapshot) {}, ErrInvalidSnapshot},
		{"price below min", Config{Symbol: testSymbol, MinPrice: 100}, func(s *Snapshot) {}, ErrInvalidSnapshot},
		{"qty above max", Config{Symbol: testSymbol, MaxQty: 4}, func(s *Snapshot) {}, ErrInvalidSnapshot},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := book.Snapshot()
			tt.mutate(&snap)
			_, err := Restore(tt.cfg, snap)
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestRestoreAdvancesSequence(t *testing.T) {
	book := buildBook(t)
	restored, err := Restore(book.Config(), book.Snapshot())
	require.NoError(t, err)

	mustSubmit(t, restored, limit("s9", Sell, 110, 1))
	assert.Equal(t, uint64(6), mustOrder(t, restored, "s9").Seq())
}
