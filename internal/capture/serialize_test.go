package capture

import (
	"reflect"
	"testing"
	"time"

	"gopkg.in/yaml.v3"
)

// colourMode is an enum-like attribute value used in tests.
type colourMode string

func (c colourMode) EnumValue() any { return string(c) }

// nestedEnum wraps another Enumerated to exercise recursive unwrapping.
type nestedEnum struct{ inner colourMode }

func (n nestedEnum) EnumValue() any { return n.inner }

func TestSerializeScalars(t *testing.T) {
	s := NewSerializer(nil)

	tests := []struct {
		name  string
		input any
		want  any
	}{
		{"nil", nil, nil},
		{"bool", true, true},
		{"string", "on", "on"},
		{"int", 254, 254},
		{"float", 0.55, 0.55},
		{"enum", colourMode("xy"), "xy"},
		{"nested enum", nestedEnum{inner: "hs"}, "hs"},
		{"bytes", []byte("raw"), "raw"},
		{"duration", 1500 * time.Millisecond, 1.5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := s.Serialize(tt.input)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Serialize(%v) = %v (%T), want %v", tt.input, got, got, tt.want)
			}
		})
	}
}

func TestSerializeTime(t *testing.T) {
	s := NewSerializer(nil)

	ts := time.Date(2026, 8, 30, 10, 15, 0, 0, time.UTC)
	got := s.Serialize(ts)
	if got != "2026-08-30T10:15:00Z" {
		t.Errorf("Serialize(time) = %v, want RFC 3339 string", got)
	}
}

func TestSerializeCollections(t *testing.T) {
	s := NewSerializer(nil)

	got := s.Serialize(map[string]any{
		"rgb_color": []any{255, 180, colourMode("120")},
		"modes":     map[int]string{1: "colour", 2: "white"},
	})

	m, ok := got.(map[string]any)
	if !ok {
		t.Fatalf("Serialize map returned %T", got)
	}

	rgb, ok := m["rgb_color"].([]any)
	if !ok || len(rgb) != 3 {
		t.Fatalf("rgb_color = %v", m["rgb_color"])
	}
	if rgb[2] != "120" {
		t.Errorf("enum inside slice = %v, want \"120\"", rgb[2])
	}

	// Non-string map keys are stringified
	modes, ok := m["modes"].(map[string]any)
	if !ok {
		t.Fatalf("modes = %T, want map[string]any", m["modes"])
	}
	if modes["1"] != "colour" {
		t.Errorf("modes[\"1\"] = %v, want colour", modes["1"])
	}
}

func TestSerializeFallbackAndTotality(t *testing.T) {
	s := NewSerializer(nil)

	type opaque struct{ A int }

	inputs := []any{
		opaque{A: 7},
		&opaque{A: 9},
		struct{ X chan int }{},
		func() {},
		[]any{opaque{A: 1}, nil, "ok"},
	}

	for _, input := range inputs {
		got := s.Serialize(input)
		// Totality: every output must survive a YAML round trip
		if _, err := yaml.Marshal(got); err != nil {
			t.Errorf("Serialize(%T) produced non-YAML-safe %T: %v", input, got, err)
		}
	}

	if got := s.Serialize(opaque{A: 7}); got != "{7}" {
		t.Errorf("struct fallback = %v, want string form", got)
	}
}

func TestSerializeNilPointer(t *testing.T) {
	s := NewSerializer(nil)

	var p *int
	if got := s.Serialize(p); got != nil {
		t.Errorf("Serialize(nil pointer) = %v, want nil", got)
	}
}

func TestSerializeAttributes(t *testing.T) {
	s := NewSerializer(nil)

	got := s.SerializeAttributes(map[string]any{
		"brightness":  254,
		"color_mode":  colourMode("xy"),
		"unsupported": struct{}{},
	})

	if got["brightness"] != 254 {
		t.Errorf("brightness = %v", got["brightness"])
	}
	if got["color_mode"] != "xy" {
		t.Errorf("color_mode = %v", got["color_mode"])
	}
	if _, ok := got["unsupported"].(string); !ok {
		t.Errorf("unsupported = %T, want string fallback", got["unsupported"])
	}
}
