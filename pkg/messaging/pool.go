package messaging

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
)

// ErrPoolClosed is returned by Send after Close
var ErrPoolClosed = errors.New("sender pool closed")

// ErrPoolExhausted is returned by Send once every sender has failed and none
// could be replaced
var ErrPoolExhausted = errors.New("sender pool exhausted")

// Pool shares a fixed set of senders between concurrent callers. A sender
// that fails is closed and replaced with a fresh one from the factory. When
// the factory fails too the pool shrinks.
type Pool struct {
	senders chan Sender
	factory func() (Sender, error)
	done    chan struct{}
	drained chan struct{}

	mu     sync.Mutex
	live   int
	closed bool
}

// NewPool creates size senders up front
func NewPool(size int, factory func() (Sender, error)) (*Pool, error) {
	if size <= 0 {
		return nil, fmt.Errorf("invalid pool size %d", size)
	}

	p := &Pool{
		senders: make(chan Sender, size),
		factory: factory,
		done:    make(chan struct{}),
		drained: make(chan struct{}),
	}
	for i := 0; i < size; i++ {
		sender, err := factory()
		if err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to create sender: %w", err)
		}
		p.live++
		p.senders <- sender
	}
	return p, nil
}

// Send delivers event with a pooled sender, waiting for one to be free
func (p *Pool) Send(ctx context.Context, event *OrderEvent) error {
	p.mu.Lock()
	closed, live := p.closed, p.live
	p.mu.Unlock()
	if closed {
		return ErrPoolClosed
	}
	if live == 0 {
		return ErrPoolExhausted
	}

	var sender Sender
	select {
	case sender = <-p.senders:
	case <-p.done:
		return ErrPoolClosed
	case <-p.drained:
		return ErrPoolExhausted
	case <-ctx.Done():
		return ctx.Err()
	}

	err := sender.Send(ctx, event)
	if err != nil {
		// don't hand a broken connection to the next caller
		_ = sender.Close()
		if replacement, ferr := p.factory(); ferr == nil {
			sender = replacement
		} else {
			log.Error().Err(ferr).Msg("Failed to replace sender, pool shrinks")
			sender = nil
		}
	}
	p.release(sender)
	return err
}

// release hands sender back to the pool. A nil sender, or any sender once
// the pool is closed, leaves it for good.
func (p *Pool) release(sender Sender) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if sender != nil && !p.closed {
		// live never exceeds the channel capacity
		p.senders <- sender
		return
	}
	if sender != nil {
		_ = sender.Close()
	}
	p.live--
	if p.live == 0 {
		close(p.drained)
	}
}

// Live returns how many senders the pool still holds, busy ones included
func (p *Pool) Live() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.live
}

// Close closes every idle sender. Busy senders are closed as they come back.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)

	var errs []error
	for {
		select {
		case sender := <-p.senders:
			p.live--
			if err := sender.Close(); err != nil {
				errs = append(errs, err)
			}
		default:
			return errors.Join(errs...)
		}
	}
}
