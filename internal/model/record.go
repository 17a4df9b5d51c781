package model

import (
	"bytes"
	"encoding/json"
	"math"
)

// Value is one decoded field of a telemetry record.
type Value struct {
	Name   string
	Number float64
	Text   string
	Raw    bool
}

// Any returns the value as float64 for numeric fields or string for raw fields.
func (v Value) Any() any {
	if v.Raw {
		return v.Text
	}
	return v.Number
}

// Record maps field names to decoded values in schema order.
// A field that failed to decode is absent.
type Record struct {
	values []Value
	index  map[string]int
}

// RecordBuilder accumulates values for a single record.
type RecordBuilder struct {
	rec Record
}

// NewRecordBuilder returns a builder sized for n fields.
func NewRecordBuilder(n int) *RecordBuilder {
	return &RecordBuilder{rec: Record{values: make([]Value, 0, n), index: make(map[string]int, n)}}
}

func (b *RecordBuilder) put(v Value) {
	if i, ok := b.rec.index[v.Name]; ok {
		b.rec.values[i] = v
		return
	}
	b.rec.index[v.Name] = len(b.rec.values)
	b.rec.values = append(b.rec.values, v)
}

// Number stores a scaled numeric field. A repeated name overwrites the earlier value.
func (b *RecordBuilder) Number(name string, x float64) { b.put(Value{Name: name, Number: x}) }

// Text stores a raw string field.
func (b *RecordBuilder) Text(name, s string) { b.put(Value{Name: name, Text: s, Raw: true}) }

// Build returns the finished record. The builder must not be used afterwards.
func (b *RecordBuilder) Build() Record {
	rec := b.rec
	b.rec = Record{}
	return rec
}

// Len returns the number of decoded fields.
func (r Record) Len() int { return len(r.values) }

// Names returns the decoded field names in schema order.
func (r Record) Names() []string {
	names := make([]string, len(r.values))
	for i, v := range r.values {
		names[i] = v.Name
	}
	return names
}

// Get returns the value stored for name.
func (r Record) Get(name string) (Value, bool) {
	i, ok := r.index[name]
	if !ok {
		return Value{}, false
	}
	return r.values[i], true
}

// Has reports whether name decoded successfully.
func (r Record) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Float returns a numeric field.
func (r Record) Float(name string) (float64, bool) {
	v, ok := r.Get(name)
	if !ok || v.Raw {
		return 0, false
	}
	return v.Number, true
}

// Text returns a raw field.
func (r Record) Text(name string) (string, bool) {
	v, ok := r.Get(name)
	if !ok || !v.Raw {
		return "", false
	}
	return v.Text, true
}

// MarshalJSON encodes the record as a JSON object keeping schema order.
// Non-finite numbers are written as null.
func (r Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, v := range r.values {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(v.Name)
		if err != nil {
			return nil, err
		}
		val := []byte("null") // JSON has no Inf or NaN
		if v.Raw || !math.IsInf(v.Number, 0) && !math.IsNaN(v.Number) {
			if val, err = json.Marshal(v.Any()); err != nil {
				return nil, err
			}
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}
