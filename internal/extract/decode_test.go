package extract

import "testing"

func TestAsString(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want string
	}{
		{"nil", nil, ""},
		{"string", "hello", "hello"},
		{"utf8 blob", []byte("café"), "café"},
		{"invalid utf8 blob degrades to empty", []byte{0xff, 0xfe, 0x01}, ""},
		{"int64", int64(42), "42"},
		{"float64", float64(1.5), "1.5"},
		{"bool", true, "1"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := asString(tt.in); got != tt.want {
				t.Errorf("asString(%v) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestAsFloat64(t *testing.T) {
	if got, ok := asFloat64("  12.5 "); !ok || got != 12.5 {
		t.Errorf("asFloat64(text) = %v, %v; want 12.5, true", got, ok)
	}
	if _, ok := asFloat64("twelve"); ok {
		t.Error("asFloat64(garbage) ok = true, want false")
	}
	if _, ok := asFloat64(nil); ok {
		t.Error("asFloat64(nil) ok = true, want false")
	}
}

func TestAsBool(t *testing.T) {
	tests := []struct {
		in   any
		want bool
	}{
		{int64(1), true},
		{int64(0), false},
		{"true", true},
		{"TRUE", true},
		{"false", false},
		{nil, false},
	}
	for _, tt := range tests {
		if got := asBool(tt.in); got != tt.want {
			t.Errorf("asBool(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestRowMap_Str(t *testing.T) {
	r := rowMap{"a": "", "b": nil, "c": "value", "d": "other"}

	if got := r.str("a", "b", "c", "d"); got != "value" {
		t.Errorf("str() = %q, want first non-empty %q", got, "value")
	}
	if got := r.str("a", "b"); got != "" {
		t.Errorf("str() = %q, want empty when all candidates empty", got)
	}
}

func TestRowMap_Num(t *testing.T) {
	t.Run("first non-zero wins", func(t *testing.T) {
		r := rowMap{"a": int64(0), "b": int64(7)}
		got, ok := r.num("a", "b")
		if !ok || got != 7 {
			t.Errorf("num() = %v, %v; want 7, true", got, ok)
		}
	})

	t.Run("all zero is still a value", func(t *testing.T) {
		r := rowMap{"a": int64(0)}
		got, ok := r.num("a", "b")
		if !ok || got != 0 {
			t.Errorf("num() = %v, %v; want 0, true", got, ok)
		}
	})

	t.Run("nothing present", func(t *testing.T) {
		r := rowMap{}
		if _, ok := r.num("a"); ok {
			t.Error("num() ok = true, want false")
		}
	})
}
