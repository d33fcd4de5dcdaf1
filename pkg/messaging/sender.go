package messaging

import (
	"context"
	"errors"
	"sync"
)

// Sender delivers order events to a downstream consumer
type Sender interface {
	Send(ctx context.Context, event *OrderEvent) error
	Close() error
}

// Discard drops every event
var Discard Sender = discard{}

type discard struct{}

func (discard) Send(context.Context, *OrderEvent) error { return nil }

func (discard) Close() error { return nil }

// MockSender records events for tests
type MockSender struct {
	mu     sync.Mutex
	events []*OrderEvent
	err    error
	closed bool
}

// NewMockSender creates a new MockSender
func NewMockSender() *MockSender {
	return &MockSender{}
}

// FailWith makes every following Send return err
func (m *MockSender) FailWith(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.err = err
}

// Send records event
func (m *MockSender) Send(_ context.Context, event *OrderEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return m.err
	}
	m.events = append(m.events, event)
	return nil
}

// Events returns the recorded events in send order
func (m *MockSender) Events() []*OrderEvent {
	m.mu.Lock()
	defer m.mu.Unlock()

	events := make([]*OrderEvent, len(m.events))
	copy(events, m.events)
	return events
}

// Reset forgets the recorded events
func (m *MockSender) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = nil
}

// Close marks the sender closed
func (m *MockSender) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called
func (m *MockSender) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Multi sends every event to all of its senders
type Multi []Sender

// Send delivers event to each sender and joins their errors
func (m Multi) Send(ctx context.Context, event *OrderEvent) error {
	var errs []error
	for _, s := range m {
		if err := s.Send(ctx, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every sender
func (m Multi) Close() error {
	var errs []error
	for _, s := range m {
		if err := s.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Ensure implementations satisfy Sender
var (
	_ Sender = (*MockSender)(nil)
	_ Sender = Multi(nil)
	_ Sender = (*Pool)(nil)
)
