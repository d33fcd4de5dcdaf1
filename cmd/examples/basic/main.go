package main

import (
	"context"
	"fmt"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/service"
	"github.com/rs/zerolog"
)

func main() {
	ctx := context.Background()

	// Initialize an order book for one symbol, prices in cents
	engine, err := core.NewOrderBook(core.Config{Symbol: "ABC-USD"})
	if err != nil {
		panic(err)
	}
	format, err := messaging.NewPriceFormat("0.01")
	if err != nil {
		panic(err)
	}
	sender := messaging.NewMockSender()
	book := service.NewBook(engine, sender, service.WithPriceFormat(format), service.WithLogger(zerolog.Nop()))

	fmt.Println("Partial fill: a buy for 4 lifts part of a resting sell for 10")
	mustSubmit(ctx, book, core.OrderRequest{ID: "S1", Side: core.Sell, Price: 100, Qty: 10, Symbol: "ABC-USD"})
	mustSubmit(ctx, book, core.OrderRequest{ID: "B1", Side: core.Buy, Price: 105, Qty: 4, Symbol: "ABC-USD"})

	fmt.Println("\nResidual rests: a buy for 10 fills the remaining 6 and rests 4")
	mustSubmit(ctx, book, core.OrderRequest{ID: "B2", Side: core.Buy, Price: 100, Qty: 10, Symbol: "ABC-USD"})

	fmt.Println("\nCancel the resting residual, then try again")
	if _, err := book.Cancel(ctx, "B2"); err != nil {
		panic(err)
	}
	if _, err := book.Cancel(ctx, "B2"); err != nil {
		fmt.Printf("second cancel rejected: %v\n", err)
	}

	// Summary
	fmt.Println("\nPublished events:")
	for _, e := range sender.Events() {
		fmt.Printf("- #%d %s %s %s @ %s open=%d filled=%d\n",
			e.EventSeq, e.OrderID, e.Side, e.State, e.PriceDecimal, e.QtyOpen, e.QtyFilled)
	}
}

func mustSubmit(ctx context.Context, book *service.Book, req core.OrderRequest) {
	result, err := book.Submit(ctx, req)
	if err != nil {
		panic(err)
	}

	fmt.Printf("%s %s %d @ %d -> %v\n", req.ID, req.Side, req.Qty, req.Price, result.Actions)
	for _, f := range result.Trades {
		fmt.Printf("  trade: %d @ %d against %s\n", f.Qty, f.Price, f.Counterparty)
	}
}
