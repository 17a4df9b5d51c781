package parser

import (
	"sync"

	"CanSatGS/internal/model"
)

// Consumers subscribe to the bus by implementing any of these interfaces.
type (
	HeaderSink    interface{ OnHeader(header string) }
	TelemetrySink interface{ OnTelemetry(rec model.Record) }
	PacketSink    interface{ OnPacket(text string) }
	CommandSink   interface{ OnCommand(text string) }
	ErrorSink     interface{ OnError(text string) }
	WarningSink   interface{ OnWarning(text string) }
	MessageSink   interface{ OnMessage(text string) }
	// EventSink receives every event unfiltered.
	EventSink interface{ OnEvent(ev model.Event) }
)

// Bus fans classified events out to subscribers in subscription order.
type Bus struct {
	mu   sync.RWMutex
	subs []any
}

// Subscribe registers sub for whichever sink interfaces it implements and
// reports whether it implements at least one.
func (b *Bus) Subscribe(sub any) bool {
	switch sub.(type) {
	case HeaderSink, TelemetrySink, PacketSink, CommandSink, ErrorSink, WarningSink, MessageSink, EventSink:
	default:
		return false
	}
	b.mu.Lock()
	b.subs = append(b.subs, sub)
	b.mu.Unlock()
	return true
}

// Publish delivers events synchronously, in order.
func (b *Bus) Publish(events ...model.Event) {
	b.mu.RLock()
	subs := b.subs
	b.mu.RUnlock()
	for _, ev := range events {
		for _, sub := range subs {
			deliver(sub, ev)
		}
	}
}

func deliver(sub any, ev model.Event) {
	if s, ok := sub.(EventSink); ok {
		s.OnEvent(ev)
	}
	switch ev.Kind {
	case model.EventHeader:
		if s, ok := sub.(HeaderSink); ok {
			s.OnHeader(ev.Text)
		}
	case model.EventTelemetry:
		if s, ok := sub.(TelemetrySink); ok {
			s.OnTelemetry(ev.Record)
		}
	case model.EventPacket:
		if s, ok := sub.(PacketSink); ok {
			s.OnPacket(ev.Text)
		}
	case model.EventCommand:
		if s, ok := sub.(CommandSink); ok {
			s.OnCommand(ev.Text)
		}
	case model.EventError:
		if s, ok := sub.(ErrorSink); ok {
			s.OnError(ev.Text)
		}
	case model.EventWarning:
		if s, ok := sub.(WarningSink); ok {
			s.OnWarning(ev.Text)
		}
	case model.EventMessage:
		if s, ok := sub.(MessageSink); ok {
			s.OnMessage(ev.Text)
		}
	}
}
