package model

import (
	"encoding/json"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordKeepsOrderAndOverwritesDuplicates(t *testing.T) {
	b := NewRecordBuilder(3)
	b.Number("mission_time", 1.5)
	b.Text("state", "ASCENT")
	b.Number("altitude", 10)
	b.Number("mission_time", 2.5)
	rec := b.Build()

	assert.Equal(t, []string{"mission_time", "state", "altitude"}, rec.Names())
	v, ok := rec.Float("mission_time")
	require.True(t, ok)
	assert.Equal(t, 2.5, v)
	_, ok = rec.Float("state")
	assert.False(t, ok)
	s, ok := rec.Text("state")
	require.True(t, ok)
	assert.Equal(t, "ASCENT", s)
	assert.False(t, rec.Has("pressure"))

	body, err := json.Marshal(rec)
	require.NoError(t, err)
	assert.Equal(t, `{"mission_time":2.5,"state":"ASCENT","altitude":10}`, string(body))
}

func TestRecordJSONNonFinite(t *testing.T) {
	b := NewRecordBuilder(3)
	b.Number("altitude", math.Inf(1))
	b.Number("pressure", math.NaN())
	b.Number("temp", -2.5)
	body, err := json.Marshal(b.Build())
	require.NoError(t, err)
	assert.Equal(t, `{"altitude":null,"pressure":null,"temp":-2.5}`, string(body))
}

func TestEventJSON(t *testing.T) {
	at := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	b := NewRecordBuilder(1)
	b.Number("altitude", 15.2)

	body, err := json.Marshal(Event{Kind: EventTelemetry, Text: "152", Record: b.Build(), Time: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"telemetry","text":"152","record":{"altitude":15.2},"time":"2026-06-01T12:00:00Z"}`, string(body))

	body, err = json.Marshal(Event{Kind: EventWarning, Text: "1,2", Time: at})
	require.NoError(t, err)
	assert.JSONEq(t, `{"kind":"warning","text":"1,2","time":"2026-06-01T12:00:00Z"}`, string(body))
}
