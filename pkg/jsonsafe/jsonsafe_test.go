package jsonsafe

import (
	"encoding/json"
	"math"
	"reflect"
	"testing"
	"time"
)

func TestNormalizePrimitives(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"nil", nil, nil},
		{"string", "hello", "hello"},
		{"bool", true, true},
		{"int", 42, int64(42)},
		{"int64", int64(-7), int64(-7)},
		{"int32", int32(9), int64(9)},
		{"uint16", uint16(3), int64(3)},
		{"float", 3.5, 3.5},
		{"float32", float32(2), float64(2)},
		{"nan", math.NaN(), nil},
		{"pos_inf", math.Inf(1), nil},
		{"neg_inf", math.Inf(-1), nil},
		{"bytes", []byte("raw"), "raw"},
		{"json_number_int", json.Number("12"), int64(12)},
		{"json_number_float", json.Number("1.25"), 1.25},
	}

	for _, tc := range cases {
		got := Normalize(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: Normalize(%v) = %v (%T), want %v", tc.name, tc.in, got, got, tc.want)
		}
	}
}

func TestNormalizeLargeUint(t *testing.T) {
	got := Normalize(uint64(math.MaxUint64))
	f, ok := got.(float64)
	if !ok {
		t.Fatalf("expected float64 for out-of-range uint64, got %T", got)
	}
	if f <= 0 {
		t.Fatalf("expected positive value, got %v", f)
	}
}

func TestNormalizeTime(t *testing.T) {
	ts := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC)
	if got := Normalize(ts); got != "2024-03-15 09:30:00" {
		t.Fatalf("unexpected time normalization: %v", got)
	}
	if got := Normalize(time.Time{}); got != nil {
		t.Fatalf("zero time should normalize to nil, got %v", got)
	}
	if got := Normalize((*time.Time)(nil)); got != nil {
		t.Fatalf("nil *time.Time should normalize to nil, got %v", got)
	}
}

func TestNormalizeRecursive(t *testing.T) {
	in := map[string]any{
		"name":   "alpha",
		"score":  math.NaN(),
		"counts": []any{1, uint8(2), math.Inf(1)},
		"nested": map[string]any{"when": time.Date(2020, 1, 2, 0, 0, 0, 0, time.UTC)},
	}
	got := Normalize(in).(map[string]any)

	if got["score"] != nil {
		t.Fatalf("expected NaN to map to nil, got %v", got["score"])
	}
	counts := got["counts"].([]any)
	if counts[0] != int64(1) || counts[1] != int64(2) || counts[2] != nil {
		t.Fatalf("unexpected counts: %v", counts)
	}
	nested := got["nested"].(map[string]any)
	if nested["when"] != "2020-01-02 00:00:00" {
		t.Fatalf("unexpected nested time: %v", nested["when"])
	}
}

func TestNormalizeIdempotent(t *testing.T) {
	inputs := []any{
		nil,
		"text",
		true,
		12,
		3.75,
		math.NaN(),
		time.Date(2021, 6, 1, 12, 0, 0, 0, time.UTC),
		[]any{1, "two", nil, []any{math.Inf(-1)}},
		map[string]any{"a": uint32(5), "b": map[string]any{"c": float32(1.5)}},
	}

	for _, in := range inputs {
		once := Normalize(in)
		twice := Normalize(once)
		if !reflect.DeepEqual(once, twice) {
			t.Errorf("not idempotent for %v: first=%v second=%v", in, once, twice)
		}
	}
}

func TestNormalizeRoundTripsThroughJSON(t *testing.T) {
	in := map[string]any{
		"name":  "row",
		"count": 3,
		"ratio": 0.5,
		"empty": nil,
		"tags":  []any{"a", "b"},
	}
	normalized := Normalize(in)

	encoded, err := json.Marshal(normalized)
	if err != nil {
		t.Fatalf("normalized value not encodable: %v", err)
	}

	var decoded any
	if err := json.Unmarshal(encoded, &decoded); err != nil {
		t.Fatalf("decode failed: %v", err)
	}

	// Decoded numbers come back as float64; normalizing the decoded form
	// must be stable again.
	if !reflect.DeepEqual(Normalize(decoded), decoded) {
		t.Fatalf("decoded form not a fixed point: %v", decoded)
	}
}

func TestNormalizeGenericCollectionKinds(t *testing.T) {
	cases := []struct {
		name string
		in   any
		want any
	}{
		{"string_map", map[string]string{"a": "1"}, map[string]any{"a": "1"}},
		{"int_map", map[string]int{"n": 7}, map[string]any{"n": int64(7)}},
		{"keyed_map", map[int]string{3: "x"}, map[string]any{"3": "x"}},
		{"int_slice", []int{1, 2}, []any{int64(1), int64(2)}},
		{"float_array", [2]float64{0.5, math.NaN()}, []any{0.5, nil}},
		{"nested_slice", [][]int{{1}}, []any{[]any{int64(1)}}},
	}

	for _, tc := range cases {
		got := Normalize(tc.in)
		if !reflect.DeepEqual(got, tc.want) {
			t.Errorf("%s: Normalize(%v) = %v (%T), want %v", tc.name, tc.in, got, got, tc.want)
		}
	}
}

func TestNormalizeFallbackString(t *testing.T) {
	type opaque struct{ A int }
	got := Normalize(opaque{A: 1})
	if _, ok := got.(string); !ok {
		t.Fatalf("expected string fallback, got %T", got)
	}
}
