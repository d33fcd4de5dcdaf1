package marketmaker

import (
	"context"
	"math/rand"
	"sync"
)

// PriceFetcher defines the interface for fetching the current mid price
type PriceFetcher interface {
	// FetchPrice returns the current mid price in ticks
	FetchPrice(ctx context.Context) (int64, error)
}

// StaticPrice always returns the same mid price
type StaticPrice int64

// FetchPrice implements PriceFetcher
func (p StaticPrice) FetchPrice(context.Context) (int64, error) {
	return int64(p), nil
}

// RandomWalk moves the mid price by up to drift ticks per fetch, never below
// floor
type RandomWalk struct {
	mu    sync.Mutex
	rng   *rand.Rand
	price int64
	drift int64
	floor int64
}

// NewRandomWalk starts a walk at start. Equal seeds give equal walks.
func NewRandomWalk(start, drift, floor, seed int64) *RandomWalk {
	if floor < 1 {
		floor = 1
	}
	return &RandomWalk{
		rng:   rand.New(rand.NewSource(seed)),
		price: start,
		drift: drift,
		floor: floor,
	}
}

// FetchPrice implements PriceFetcher
func (w *RandomWalk) FetchPrice(ctx context.Context) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.drift > 0 {
		w.price += w.rng.Int63n(2*w.drift+1) - w.drift
	}
	if w.price < w.floor {
		w.price = w.floor
	}
	return w.price, nil
}
