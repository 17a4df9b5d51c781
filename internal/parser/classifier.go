// Package parser classifies received telemetry-link lines and decodes
// telemetry packets according to a field schema.
//
// Classification rules, first match wins, after trimming whitespace:
//
//	CMD TX: ...           command echo
//	...unexpected|Too many retries|failed...   link error
//	N commas, N != fields-1   malformed packet (warning)
//	no commas, numeric    stray number (warning)
//	no commas             free text message
//	fields-1 commas       telemetry packet
package parser

import (
	"errors"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"CanSatGS/internal/model"
	"CanSatGS/internal/util"
)

// CommandPrefix marks uplink echoes in the received stream.
const CommandPrefix = "CMD TX:"

// faultMarkers are substrings of link status lines that signal a failure.
var faultMarkers = []string{"unexpected", "Too many retries", "failed"}

// Classifier turns lines into events. Its only state is whether the CSV
// header has been announced; it is safe for use from one goroutine at a time.
type Classifier struct {
	schema model.Schema
	header sync.Once
	now    func() time.Time
}

// NewClassifier creates a classifier for schema.
func NewClassifier(schema model.Schema) *Classifier {
	return &Classifier{schema: schema, now: time.Now}
}

// Classify returns the ordered events for one line. The first call also
// yields the header event ahead of the line's own result. A telemetry
// packet yields the decoded record followed by the unmodified packet text.
func (c *Classifier) Classify(line string) []model.Event {
	ts := c.now()
	events := make([]model.Event, 0, 3)
	c.header.Do(func() {
		events = append(events, model.Event{Kind: model.EventHeader, Text: c.schema.Header(), Time: ts})
	})

	text := strings.TrimSpace(line)
	emit := func(kind model.EventKind) []model.Event {
		return append(events, model.Event{Kind: kind, Text: text, Time: ts})
	}

	if strings.HasPrefix(text, CommandPrefix) {
		return emit(model.EventCommand)
	}
	if isFault(text) {
		return emit(model.EventError)
	}

	commas := strings.Count(text, ",")
	if commas > 0 && commas != c.schema.Len()-1 {
		util.Debug("[parser] malformed packet: %d commas, want %d: %s", commas, c.schema.Len()-1, text)
		return emit(model.EventWarning)
	}
	if commas <= 0 {
		if isNumber(text) {
			return emit(model.EventWarning)
		}
		return emit(model.EventMessage)
	}

	rec := c.Decode(text)
	events = append(events, model.Event{Kind: model.EventTelemetry, Text: text, Record: rec, Time: ts})
	return emit(model.EventPacket)
}

// Decode splits a packet of exactly schema-length tokens into a record.
// A token that does not parse as a number drops only its own field.
func (c *Classifier) Decode(packet string) model.Record {
	tokens := strings.Split(packet, ",")
	b := model.NewRecordBuilder(c.schema.Len())
	for i := 0; i < c.schema.Len(); i++ {
		f := c.schema.Field(i)
		if i >= len(tokens) {
			util.Debug("[parser] field %s missing from packet", f.Name)
			continue
		}
		token := tokens[i]
		if f.Scale.Raw {
			b.Text(f.Name, token)
			continue
		}
		x, err := parseNumber(strings.TrimSpace(token))
		if err != nil {
			util.Debug("[parser] field %s: %v", f.Name, err)
			continue
		}
		b.Number(f.Name, x*math.Pow10(f.Scale.Exp))
	}
	return b.Build()
}

func isFault(text string) bool {
	for _, m := range faultMarkers {
		if strings.Contains(text, m) {
			return true
		}
	}
	return false
}

func isNumber(text string) bool {
	_, err := parseNumber(text)
	return err == nil
}

// parseNumber parses a decimal token. Out-of-range magnitudes are numbers
// too and come back as ±Inf.
func parseNumber(s string) (float64, error) {
	x, err := strconv.ParseFloat(s, 64)
	if errors.Is(err, strconv.ErrRange) {
		return x, nil
	}
	return x, err
}
