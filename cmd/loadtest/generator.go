package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/HdrHistogram/hdrhistogram-go"
	"github.com/erain9/tickbook/config"
	"github.com/erain9/tickbook/pkg/core"
	"github.com/erain9/tickbook/pkg/service"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

// Latencies are recorded in microseconds, up to one minute
const (
	minLatency = 1
	maxLatency = int64(time.Minute / time.Microsecond)
	sigFigs    = 3
)

// report summarizes one load test run
type report struct {
	Submitted int64
	Cancelled int64
	Rejected  int64
	Trades    int64
	Volume    int64
	Elapsed   time.Duration
	Latency   *hdrhistogram.Histogram
}

// Throughput returns calls per second
func (r *report) Throughput() float64 {
	if r.Elapsed <= 0 {
		return 0
	}
	return float64(r.Submitted+r.Cancelled+r.Rejected) / r.Elapsed.Seconds()
}

// generator produces random limit orders around a mid price and the odd
// cancel of an order it placed earlier
type generator struct {
	cfg    config.LoadgenConfig
	symbol string
	rng    *rand.Rand

	mu      sync.Mutex
	resting []string
}

func newGenerator(cfg config.LoadgenConfig, symbol string, seed int64) *generator {
	return &generator{
		cfg:    cfg,
		symbol: symbol,
		rng:    rand.New(rand.NewSource(seed)),
	}
}

// next returns either an order to submit or an id to cancel
func (g *generator) next() (core.OrderRequest, string) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if len(g.resting) > 0 && g.rng.Intn(100) < g.cfg.CancelRatio {
		i := g.rng.Intn(len(g.resting))
		id := g.resting[i]
		g.resting[i] = g.resting[len(g.resting)-1]
		g.resting = g.resting[:len(g.resting)-1]
		return core.OrderRequest{}, id
	}

	side := core.Buy
	if g.rng.Intn(2) == 0 {
		side = core.Sell
	}
	// spread orders over the quoted ladder so some cross and some rest
	width := g.cfg.SpreadTicks + int64(g.cfg.Levels)*g.cfg.StepTicks
	price := g.cfg.MidPrice + g.rng.Int63n(2*width+1) - width
	if price < 1 {
		price = 1
	}

	return core.OrderRequest{
		ID:     uuid.NewString(),
		Side:   side,
		Price:  price,
		Qty:    1 + g.rng.Int63n(g.cfg.OrderQty),
		Symbol: g.symbol,
	}, ""
}

func (g *generator) rested(id string) {
	g.mu.Lock()
	g.resting = append(g.resting, id)
	g.mu.Unlock()
}

// run fires cfg.Orders calls at book from workers goroutines, paced by a
// limiter of cfg.Rate calls per second. A rate of zero is unlimited.
func run(ctx context.Context, book *service.Book, gen *generator, workers int) (*report, error) {
	if workers <= 0 {
		return nil, fmt.Errorf("invalid worker count %d", workers)
	}

	limit := rate.Inf
	if gen.cfg.Rate > 0 {
		limit = rate.Limit(gen.cfg.Rate)
	}
	limiter := rate.NewLimiter(limit, max(1, gen.cfg.Rate/100))
	jobs := make(chan struct{})

	var (
		mu  sync.Mutex
		rep = &report{Latency: hdrhistogram.New(minLatency, maxLatency, sigFigs)}
		wg  sync.WaitGroup
	)

	record := func(d time.Duration, fn func(*report)) {
		us := d.Microseconds()
		if us < minLatency {
			us = minLatency
		}
		mu.Lock()
		defer mu.Unlock()
		_ = rep.Latency.RecordValue(min(us, maxLatency))
		fn(rep)
	}

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range jobs {
				req, cancelID := gen.next()
				start := time.Now()

				if cancelID != "" {
					_, err := book.Cancel(ctx, cancelID)
					record(time.Since(start), func(r *report) {
						if err != nil && !errors.Is(err, service.ErrPublishFailed) {
							r.Rejected++
							return
						}
						r.Cancelled++
					})
					continue
				}

				// a publish error still returns the committed result
				result, _ := book.Submit(ctx, req)
				record(time.Since(start), func(r *report) {
					if result == nil {
						r.Rejected++
						return
					}
					r.Submitted++
					for _, f := range result.Trades {
						r.Trades++
						r.Volume += f.Qty
					}
				})
				if result != nil && stillResting(result, req.ID) {
					gen.rested(req.ID)
				}
			}
		}()
	}

	start := time.Now()
	var err error
	for i := 0; i < gen.cfg.Orders; i++ {
		if err = limiter.Wait(ctx); err != nil {
			break
		}
		jobs <- struct{}{}
	}
	close(jobs)
	wg.Wait()
	rep.Elapsed = time.Since(start)

	if err != nil && !errors.Is(err, context.Canceled) {
		return rep, fmt.Errorf("rate limiter error: %w", err)
	}
	return rep, nil
}

func stillResting(result *service.Result, id string) bool {
	for i := len(result.Events) - 1; i >= 0; i-- {
		if result.Events[i].OrderID == id {
			return result.Events[i].State == core.StateOpen
		}
	}
	return false
}
