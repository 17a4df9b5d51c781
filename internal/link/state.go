package link

import (
	"fmt"
	"strings"
	"time"
)

// State is the link worker's connection state.
type State int32

const (
	StateClosed State = iota
	StateConnecting
	StateOpen
	StateRetrying
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateConnecting:
		return "connecting"
	case StateOpen:
		return "open"
	case StateRetrying:
		return "retrying"
	case StateExhausted:
		return "exhausted"
	}
	return fmt.Sprintf("state(%d)", int32(s))
}

// MarshalText lets State appear as its name in JSON.
func (s State) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// EventKind tags a link event.
type EventKind int

const (
	// EventOpened is the first event of every worker.
	EventOpened EventKind = iota
	// EventReceived carries an inbound line or a transmitted command echo.
	EventReceived
	// EventStatus carries a connection status line and the state it entered.
	EventStatus
	// EventClosed is the last event of every worker.
	EventClosed
)

func (k EventKind) String() string {
	switch k {
	case EventOpened:
		return "opened"
	case EventReceived:
		return "received"
	case EventStatus:
		return "status"
	case EventClosed:
		return "closed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Event is published by the link on its event channel.
type Event struct {
	Kind  EventKind
	Line  string
	State State
	Time  time.Time
}

// CommandPrefix tags echoed uplink commands in the received stream.
const CommandPrefix = "CMD TX: "

// Status lines emitted by the worker.
const (
	StatusConnected   = "Connected"
	StatusReconnected = "Reconnected"
	StatusRetryFailed = "Retry failed"
)

// closedUnexpectedly is the first-failure status, e.g. "Port closed unexpectedly".
func closedUnexpectedly(noun string) string {
	return capitalize(noun) + " closed unexpectedly"
}

// tooManyRetries is the terminal exhaustion status.
func tooManyRetries(noun string) string {
	return "Too many retries (Close and reopen " + strings.ToLower(noun) + " to reset)"
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// Policy tunes the worker's timing and retry budget.
type Policy struct {
	// MaxRetries is the number of consecutive failed attempts tolerated
	// before the worker gives up.
	MaxRetries int
	// RetryDelay is the pause between attempts.
	RetryDelay time.Duration
	// LineInterval paces inbound lines; used by file replay.
	LineInterval time.Duration
	// IdleWait is slept when a loop pass found nothing to read or send.
	IdleWait time.Duration
	// EventBuffer sizes the event channel.
	EventBuffer int
}

func (p Policy) withDefaults() Policy {
	if p.MaxRetries <= 0 {
		p.MaxRetries = 1
	}
	if p.IdleWait <= 0 {
		p.IdleWait = 5 * time.Millisecond
	}
	if p.EventBuffer <= 0 {
		p.EventBuffer = 256
	}
	return p
}
