// Package model defines the shared data structures of the ground station:
// the telemetry schema, decoded records, classification events and the
// YAML configuration.
package model

import (
	"fmt"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// rawScale marks a field that is passed through as the wire string.
const rawScale = "raw"

// Scale is the decimal exponent applied to a numeric field, or the raw
// marker for pass-through string fields.
type Scale struct {
	Exp int
	Raw bool
}

// Exp returns a numeric scale of 10^exp.
func Exp(exp int) Scale { return Scale{Exp: exp} }

// Raw returns the pass-through string marker.
func Raw() Scale { return Scale{Raw: true} }

// String renders the scale the way it is written in config files.
func (s Scale) String() string {
	if s.Raw {
		return rawScale
	}
	return strconv.Itoa(s.Exp)
}

// UnmarshalYAML accepts either an integer exponent or the word "raw".
func (s *Scale) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: scale must be an integer or %q", node.Line, rawScale)
	}
	value := strings.TrimSpace(node.Value)
	if strings.EqualFold(value, rawScale) || strings.EqualFold(value, "str") {
		*s = Raw()
		return nil
	}
	exp, err := strconv.Atoi(value)
	if err != nil {
		return fmt.Errorf("line %d: invalid scale %q: %w", node.Line, node.Value, err)
	}
	*s = Exp(exp)
	return nil
}

// MarshalYAML writes the scale back in its config form.
func (s Scale) MarshalYAML() (any, error) {
	if s.Raw {
		return rawScale, nil
	}
	return s.Exp, nil
}

// Field describes one positional column of a telemetry line.
type Field struct {
	Name  string `yaml:"name"`
	Scale Scale  `yaml:"scale"`
}

// Schema is the ordered field declaration used to decode telemetry lines.
// The field list is copied on construction and never mutated afterwards.
type Schema struct {
	fields []Field
}

// NewSchema builds a schema from an ordered field list.
func NewSchema(fields ...Field) Schema {
	return Schema{fields: append([]Field(nil), fields...)}
}

// Len returns the number of fields.
func (s Schema) Len() int { return len(s.fields) }

// Field returns the i-th field.
func (s Schema) Field(i int) Field { return s.fields[i] }

// Names returns the field names in schema order.
func (s Schema) Names() []string {
	names := make([]string, len(s.fields))
	for i, f := range s.fields {
		names[i] = f.Name
	}
	return names
}

// Header joins the field names with commas, as written at the top of CSV logs.
func (s Schema) Header() string { return strings.Join(s.Names(), ",") }

// DefaultFields is the CanSat flight packet layout.
func DefaultFields() []Field {
	return []Field{
		{"team_id", Exp(0)},
		{"mission_time", Exp(-3)},
		{"packet_count", Exp(0)},
		{"altitude", Exp(-1)},
		{"pressure", Exp(0)},
		{"temp", Exp(-1)},
		{"voltage", Exp(-2)},
		{"gps_time", Exp(0)},
		{"gps_latitude", Exp(-5)},
		{"gps_longitude", Exp(-5)},
		{"gps_altitude", Exp(-1)},
		{"gps_sats", Exp(0)},
		{"pitch", Exp(-1)},
		{"roll", Exp(-1)},
		{"blade_spin_rate", Exp(0)},
		{"software_state", Raw()},
		{"bonus_direction", Exp(-1)},
	}
}
