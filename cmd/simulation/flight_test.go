package main

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"CanSatGS/internal/model"
	"CanSatGS/internal/parser"
)

func TestFlightLinesDecodeWithDefaultSchema(t *testing.T) {
	start := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	fl := newFlight(1071, 1, start)
	c := parser.NewClassifier(model.NewSchema(model.DefaultFields()...))

	states := map[string]bool{}
	var maxAlt float64
	now := start
	for i := 0; i < 200; i++ {
		now = now.Add(time.Second)
		fl.advance(time.Second)
		line := fl.line(now)
		require.Equal(t, 16, strings.Count(line, ","), line)

		events := c.Classify(line)
		var rec *model.Record
		for _, ev := range events {
			if ev.Kind == model.EventTelemetry {
				r := ev.Record
				rec = &r
			}
		}
		require.NotNil(t, rec, line)
		state, _ := rec.Text("software_state")
		states[state] = true
		alt, ok := rec.Float("altitude")
		require.True(t, ok)
		maxAlt = max(maxAlt, alt)
		count, _ := rec.Float("packet_count")
		assert.Equal(t, float64(i+1), count)
	}
	assert.True(t, states[stateWait])
	assert.True(t, states[stateAscent])
	assert.True(t, states[stateDescent])
	assert.True(t, states[stateLanded])
	assert.InDelta(t, apogee, maxAlt, 0.05)
}
