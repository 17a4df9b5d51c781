// Package link manages the telemetry connection: a background worker that
// owns one transport, reconnects it with a bounded retry budget, drains the
// transmit queue and publishes everything it sees as link events.
package link

import (
	"context"
	"errors"
	"sync"

	"CanSatGS/internal/device"
)

var (
	// ErrAlreadyOpen is returned by Open while a worker is running.
	ErrAlreadyOpen = errors.New("link already open")
	// ErrClosing is returned by Open before the previous worker has closed.
	ErrClosing = errors.New("link is closing")
	// ErrNotOpen is returned by Close and Transmit without a usable worker.
	ErrNotOpen = errors.New("link not open")
)

// Link is the foreground handle of a managed connection. Open, Close and
// Transmit never block on the transport.
type Link struct {
	newTransport func() device.Transport
	policy       Policy
	events       chan Event

	mu      sync.Mutex
	current *worker
	last    <-chan struct{}
}

// New creates a closed link. factory is called once per connection
// attempt and must return a fresh, unopened transport.
func New(factory func() device.Transport, policy Policy) *Link {
	policy = policy.withDefaults()
	return &Link{
		newTransport: factory,
		policy:       policy,
		events:       make(chan Event, policy.EventBuffer),
	}
}

// Events returns the stream of opened, received, status and closed events.
// It must be drained for the worker to make progress.
func (l *Link) Events() <-chan Event { return l.events }

// Open starts a new worker. Each call builds a fresh worker with its own
// retry budget and transmit queue. Open on an exhausted link replaces the
// spent worker.
func (l *Link) Open() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if w := l.current; w != nil {
		if w.closeRequested.Load() {
			return ErrClosing
		}
		if w.State() != StateExhausted {
			return ErrAlreadyOpen
		}
		// An exhausted worker is retired in favour of a fresh one; its
		// closed event still precedes the new worker's opened event.
		w.closeRequested.Store(true)
		w.cancel()
	}
	ctx, cancel := context.WithCancel(context.Background())
	w := &worker{
		newTransport: l.newTransport,
		policy:       l.policy,
		out:          l.events,
		cancel:       cancel,
		after:        l.last,
		done:         make(chan struct{}),
		release:      l.release,
	}
	w.state.Store(int32(StateConnecting))
	l.current = w
	l.last = w.done
	go w.run(ctx)
	return nil
}

// Close asks the worker to stop. The worker finishes its current transport
// operation, releases the transport and publishes EventClosed.
func (l *Link) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	w := l.current
	if w == nil || w.closeRequested.Load() {
		return ErrNotOpen
	}
	w.closeRequested.Store(true)
	w.cancel()
	return nil
}

// Transmit queues text for the remote device. The worker writes it and then
// echoes it as a received line prefixed with CommandPrefix.
func (l *Link) Transmit(text string) error {
	l.mu.Lock()
	w := l.current
	l.mu.Unlock()
	if w == nil || w.closeRequested.Load() {
		return ErrNotOpen
	}
	switch w.State() {
	case StateClosed, StateExhausted:
		return ErrNotOpen
	}
	w.queue.Enqueue([]byte(text))
	return nil
}

// Idle returns a channel that is closed once the most recent worker has
// published its closed event. It is already closed for a never-opened link.
func (l *Link) Idle() <-chan struct{} {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.last == nil {
		return closedChan
	}
	return l.last
}

var closedChan = func() chan struct{} {
	c := make(chan struct{})
	close(c)
	return c
}()

// State returns the state of the current worker, or StateClosed.
func (l *Link) State() State {
	l.mu.Lock()
	w := l.current
	l.mu.Unlock()
	if w == nil {
		return StateClosed
	}
	return w.State()
}

// Pending returns the number of queued, unsent payloads.
func (l *Link) Pending() int {
	l.mu.Lock()
	w := l.current
	l.mu.Unlock()
	if w == nil {
		return 0
	}
	return w.queue.Len()
}

func (l *Link) release(w *worker) {
	l.mu.Lock()
	if l.current == w {
		l.current = nil
	}
	l.mu.Unlock()
}
