package model

import (
	"encoding/json"
	"time"
)

// EventKind tags a classification event.
type EventKind int

const (
	EventHeader EventKind = iota
	EventTelemetry
	EventPacket
	EventCommand
	EventError
	EventWarning
	EventMessage
)

var eventKindNames = [...]string{
	EventHeader:    "header",
	EventTelemetry: "telemetry",
	EventPacket:    "packet",
	EventCommand:   "command",
	EventError:     "error",
	EventWarning:   "warning",
	EventMessage:   "message",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(eventKindNames) {
		return "unknown"
	}
	return eventKindNames[k]
}

// MarshalText lets EventKind appear as its name in JSON.
func (k EventKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Event is the output of the classifier. Record is set only for EventTelemetry;
// Text carries the line (or the header) for every other kind and the raw
// packet text for EventTelemetry.
type Event struct {
	Kind   EventKind
	Text   string
	Record Record
	Time   time.Time
}

type eventJSON struct {
	Kind   EventKind `json:"kind"`
	Text   string    `json:"text"`
	Record *Record   `json:"record,omitempty"`
	Time   time.Time `json:"time"`
}

// MarshalJSON is used by the websocket relay and the archive.
func (e Event) MarshalJSON() ([]byte, error) {
	out := eventJSON{Kind: e.Kind, Text: e.Text, Time: e.Time}
	if e.Kind == EventTelemetry {
		rec := e.Record
		out.Record = &rec
	}
	return json.Marshal(out)
}
