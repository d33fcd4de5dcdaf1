package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/messaging"
	"github.com/erain9/tickbook/pkg/service"
	"github.com/fatih/color"
	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"
)

// scenario is a scripted sequence of book calls with optional expectations
type scenario struct {
	Name     string `yaml:"name"`
	Symbol   string `yaml:"symbol"`
	TickSize string `yaml:"tick_size"`
	Steps    []step `yaml:"steps"`
}

type step struct {
	Submit *submitStep `yaml:"submit,omitempty"`
	Cancel string      `yaml:"cancel,omitempty"`
	Expect *expect     `yaml:"expect,omitempty"`
}

type submitStep struct {
	ID    string `yaml:"id"`
	Side  string `yaml:"side"`
	Price int64  `yaml:"price"`
	Qty   int64  `yaml:"qty"`
	// Symbol defaults to the scenario symbol
	Symbol string `yaml:"symbol,omitempty"`
}

// expect checks the outcome of a step. Unset fields are not checked.
type expect struct {
	// Error is the reject reason label, e.g. order_not_found
	Error   string                 `yaml:"error,omitempty"`
	Actions []string               `yaml:"actions,omitempty"`
	Trades  *int                   `yaml:"trades,omitempty"`
	Orders  map[string]orderExpect `yaml:"orders,omitempty"`
}

type orderExpect struct {
	State   string `yaml:"state,omitempty"`
	QtyOpen *int64 `yaml:"qty_open,omitempty"`
}

func loadScenario(path string) (*scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return parseScenario(f)
}

func parseScenario(r io.Reader) (*scenario, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var sc scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}
	if sc.Symbol == "" {
		return nil, errors.New("scenario symbol must not be empty")
	}
	for i, st := range sc.Steps {
		if (st.Submit == nil) == (st.Cancel == "") {
			return nil, fmt.Errorf("step %d: exactly one of submit or cancel is required", i+1)
		}
	}
	return &sc, nil
}

// printer renders replay progress
type printer struct {
	w      io.Writer
	format messaging.PriceFormat

	header func(a ...interface{}) string
	buy    func(a ...interface{}) string
	sell   func(a ...interface{}) string
	ok     func(a ...interface{}) string
	fail   func(a ...interface{}) string
	dim    func(a ...interface{}) string
}

func newPrinter(w io.Writer, format messaging.PriceFormat) *printer {
	return &printer{
		w:      w,
		format: format,
		header: color.New(color.FgCyan, color.Bold).SprintFunc(),
		buy:    color.New(color.FgGreen).SprintFunc(),
		sell:   color.New(color.FgRed).SprintFunc(),
		ok:     color.New(color.FgGreen, color.Bold).SprintFunc(),
		fail:   color.New(color.FgRed, color.Bold).SprintFunc(),
		dim:    color.New(color.Faint).SprintFunc(),
	}
}

func (p *printer) side(s core.Side) string {
	if s == core.Buy {
		return p.buy(s.String())
	}
	return p.sell(s.String())
}

// replay runs sc against a fresh book and returns the book and the number of
// failed expectations
func replay(ctx context.Context, sc *scenario, out io.Writer) (*service.Book, int, error) {
	format := messaging.PriceFormat{}
	if sc.TickSize != "" {
		var err error
		if format, err = messaging.NewPriceFormat(sc.TickSize); err != nil {
			return nil, 0, err
		}
	}

	engine, err := core.NewOrderBook(core.Config{Symbol: sc.Symbol})
	if err != nil {
		return nil, 0, err
	}
	book := service.NewBook(engine, nil, service.WithPriceFormat(format), service.WithLogger(zerolog.Nop()))
	p := newPrinter(out, format)

	title := sc.Name
	if title == "" {
		title = sc.Symbol
	}
	fmt.Fprintln(out, p.header("Replaying "+title))

	failed := 0
	for i, st := range sc.Steps {
		var (
			result *service.Result
			err    error
		)
		if st.Submit != nil {
			result, err = p.submit(ctx, book, sc.Symbol, i+1, st.Submit)
		} else {
			fmt.Fprintf(out, "%3d  cancel %s\n", i+1, st.Cancel)
			result, err = book.Cancel(ctx, st.Cancel)
		}

		if err != nil {
			fmt.Fprintf(out, "     %s %s\n", p.fail("rejected"), service.RejectReason(err))
		} else {
			p.result(result)
		}

		if st.Expect != nil {
			for _, problem := range check(book, st.Expect, result, err) {
				failed++
				fmt.Fprintf(out, "     %s %s\n", p.fail("FAIL"), problem)
			}
		}
	}

	p.depth(book)
	if failed == 0 {
		fmt.Fprintln(out, p.ok("PASS"))
	} else {
		fmt.Fprintf(out, "%s %d expectation(s)\n", p.fail("FAIL"), failed)
	}
	return book, failed, nil
}

func (p *printer) submit(ctx context.Context, book *service.Book, symbol string, n int, s *submitStep) (*service.Result, error) {
	side, err := core.ParseSide(s.Side)
	if err != nil {
		fmt.Fprintf(p.w, "%3d  submit %s %q\n", n, s.ID, s.Side)
		return nil, err
	}
	if s.Symbol != "" {
		symbol = s.Symbol
	}

	fmt.Fprintf(p.w, "%3d  submit %s %s %d @ %s\n", n, s.ID, p.side(side), s.Qty, p.format.Format(s.Price))
	return book.Submit(ctx, core.OrderRequest{
		ID:     s.ID,
		Side:   side,
		Price:  s.Price,
		Qty:    s.Qty,
		Symbol: symbol,
	})
}

func (p *printer) result(result *service.Result) {
	for _, f := range result.Trades {
		fmt.Fprintf(p.w, "     fill %d @ %s vs %s\n", f.Qty, p.format.Format(f.Price), f.Counterparty)
	}
	for _, e := range result.Events {
		fmt.Fprintf(p.w, "     %s %s %s open=%d filled=%d\n",
			p.dim("event"), e.OrderID, e.State, e.QtyOpen, e.QtyFilled)
	}
	actions := make([]string, len(result.Actions))
	for i, a := range result.Actions {
		actions[i] = a.String()
	}
	fmt.Fprintf(p.w, "     %s %s\n", p.dim("actions"), strings.Join(actions, " "))
}

func (p *printer) depth(book *service.Book) {
	fmt.Fprintln(p.w, p.header("Book"))
	asks := book.Depth(core.Sell, 0)
	for i := len(asks) - 1; i >= 0; i-- {
		fmt.Fprintf(p.w, "  %s %12s %8d (%d)\n", p.sell("ASK"), p.format.Format(asks[i].Price), asks[i].Qty, asks[i].Orders)
	}
	for _, l := range book.Depth(core.Buy, 0) {
		fmt.Fprintf(p.w, "  %s %12s %8d (%d)\n", p.buy("BID"), p.format.Format(l.Price), l.Qty, l.Orders)
	}
}

// check returns one message per unmet expectation
func check(book *service.Book, want *expect, result *service.Result, err error) []string {
	var problems []string

	if want.Error != "" {
		if err == nil {
			problems = append(problems, fmt.Sprintf("expected error %s, call succeeded", want.Error))
		} else if got := service.RejectReason(err); got != want.Error {
			problems = append(problems, fmt.Sprintf("expected error %s, got %s", want.Error, got))
		}
	} else if err != nil {
		problems = append(problems, fmt.Sprintf("unexpected error: %v", err))
	}

	if want.Actions != nil {
		var got []string
		if result != nil {
			for _, a := range result.Actions {
				got = append(got, a.String())
			}
		}
		if strings.Join(got, " ") != strings.Join(want.Actions, " ") {
			problems = append(problems, fmt.Sprintf("actions: expected %v, got %v", want.Actions, got))
		}
	}

	if want.Trades != nil {
		got := 0
		if result != nil {
			got = len(result.Trades)
		}
		if got != *want.Trades {
			problems = append(problems, fmt.Sprintf("trades: expected %d, got %d", *want.Trades, got))
		}
	}

	for id, oe := range want.Orders {
		order, err := book.Order(id)
		if err != nil {
			problems = append(problems, fmt.Sprintf("order %s: %v", id, err))
			continue
		}
		if oe.State != "" && string(order.State()) != oe.State {
			problems = append(problems, fmt.Sprintf("order %s: expected state %s, got %s", id, oe.State, order.State()))
		}
		if oe.QtyOpen != nil && order.QtyOpen() != *oe.QtyOpen {
			problems = append(problems, fmt.Sprintf("order %s: expected qty_open %d, got %d", id, *oe.QtyOpen, order.QtyOpen()))
		}
	}
	return problems
}
