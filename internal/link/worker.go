package link

import (
	"context"
	"errors"
	"strings"
	"sync/atomic"
	"time"

	"CanSatGS/internal/device"
	"CanSatGS/internal/util"
)

// maxDrain bounds how many inbound lines one loop pass reads before it
// services the transmit queue, so a chatty device cannot starve uplink.
const maxDrain = 64

// worker runs the open/retry state machine for one Open call.
type worker struct {
	newTransport func() device.Transport
	policy       Policy
	queue        Queue
	out          chan<- Event
	cancel       context.CancelFunc
	release      func(*worker)

	state          atomic.Int32
	closeRequested atomic.Bool

	after <-chan struct{} // previous worker's done, for event ordering
	done  chan struct{}
}

func (w *worker) State() State { return State(w.state.Load()) }

func (w *worker) setState(s State) { w.state.Store(int32(s)) }

func (w *worker) run(ctx context.Context) {
	defer close(w.done)
	if w.after != nil {
		<-w.after
	}
	w.out <- Event{Kind: EventOpened, State: StateConnecting, Time: time.Now()}

	w.connect(ctx)

	// An exhausted worker stays parked until Close so the owner sees a
	// single closed notification for every open.
	<-ctx.Done()
	w.setState(StateClosed)
	w.release(w)
	w.out <- Event{Kind: EventClosed, State: StateClosed, Time: time.Now()}
}

// connect returns on close request or once the retry budget is spent.
func (w *worker) connect(ctx context.Context) {
	remaining := w.policy.MaxRetries
	failing := false
	for ctx.Err() == nil {
		w.setState(StateConnecting)
		t := w.newTransport()
		noun := t.Noun()

		err := t.Open()
		if err == nil {
			status := StatusConnected
			if failing {
				status = StatusReconnected
			}
			failing = false
			remaining = w.policy.MaxRetries
			util.Info("[link] %s %s", noun, strings.ToLower(status))
			if !w.status(ctx, StateOpen, status) {
				closeTransport(t)
				return
			}
			err = w.serve(ctx, t)
		}
		closeTransport(t)
		if ctx.Err() != nil {
			return
		}

		util.Warn("[link] %s fault: %v", noun, err)
		status := closedUnexpectedly(noun)
		if failing {
			status = StatusRetryFailed
		}
		failing = true
		remaining--
		if !w.status(ctx, StateRetrying, status) {
			return
		}
		if remaining <= 0 {
			util.Error("[link] %s retry budget of %d spent", noun, w.policy.MaxRetries)
			w.status(ctx, StateExhausted, tooManyRetries(noun))
			return
		}
		if !sleepCtx(ctx, w.policy.RetryDelay) {
			return
		}
	}
}

// serve pumps an open transport until it faults or the link is closed.
// A nil return means the close request was observed.
func (w *worker) serve(ctx context.Context, t device.Transport) error {
	for {
		if ctx.Err() != nil {
			return nil
		}
		busy := false

		for n := 0; n < maxDrain; n++ {
			line, err := t.ReadLine()
			if errors.Is(err, device.ErrNoData) {
				break
			}
			if err != nil {
				return err
			}
			busy = true
			line = strings.TrimRight(line, "\r\n")
			if strings.TrimSpace(line) != "" && !w.received(ctx, line) {
				return nil
			}
			if w.policy.LineInterval > 0 {
				if !sleepCtx(ctx, w.policy.LineInterval) {
					return nil
				}
				break
			}
			if ctx.Err() != nil {
				return nil
			}
		}

		if payload, ok := w.queue.DrainOne(); ok {
			busy = true
			text := strings.TrimSpace(string(payload))
			if err := t.Write(payload); err != nil {
				util.Error("[link] dropped command %q: %v", text, err)
				return err
			}
			if !w.received(ctx, CommandPrefix+text) {
				return nil
			}
		}

		if !busy && !sleepCtx(ctx, w.policy.IdleWait) {
			return nil
		}
	}
}

func (w *worker) received(ctx context.Context, line string) bool {
	return w.publish(ctx, Event{Kind: EventReceived, Line: line, State: w.State(), Time: time.Now()})
}

func (w *worker) status(ctx context.Context, s State, line string) bool {
	w.setState(s)
	return w.publish(ctx, Event{Kind: EventStatus, Line: line, State: s, Time: time.Now()})
}

// publish drops the event once a close has been requested.
func (w *worker) publish(ctx context.Context, ev Event) bool {
	if ctx.Err() != nil {
		return false
	}
	select {
	case w.out <- ev:
		return true
	case <-ctx.Done():
		return false
	}
}

func closeTransport(t device.Transport) {
	if err := t.Close(); err != nil {
		util.Debug("[link] close %s: %v", t.Noun(), err)
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
