package document

import (
	"reflect"
	"strings"
	"testing"
)

// fixedMeasurer gives every rune a width of 1.
type fixedMeasurer struct{}

func (fixedMeasurer) Width(text string, f Font) float64 {
	return float64(len([]rune(text)))
}

func TestWrap(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		width float64
		want  []string
	}{
		{"fits", "hello world", 20, []string{"hello world"}},
		{"breaks", "hello big world", 10, []string{"hello big", "world"}},
		{"collapses spaces", "  a   b  ", 10, []string{"a b"}},
		{"newlines", "first\nsecond", 20, []string{"first", "second"}},
		{"blank paragraphs dropped", "a\n\n \nb", 20, []string{"a", "b"}},
		{"empty", "", 10, nil},
		{"long word", "abcdefghijkl", 5, []string{"abcde", "fghij", "kl"}},
		{"long word after text", "hi abcdefghijkl yo", 5, []string{"hi", "abcde", "fghij", "kl yo"}},
		{"unicode", "ñandú pérez", 5, []string{"ñandú", "pérez"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Wrap(tt.text, tt.width, Font{}, fixedMeasurer{})
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Wrap(%q, %v) = %q, want %q", tt.text, tt.width, got, tt.want)
			}
		})
	}
}

func TestWrap_LinesFit(t *testing.T) {
	m := ApproxMeasurer{}
	f := Font{Size: 11}
	text := strings.Repeat("supercalifragilistic ", 30) + strings.Repeat("z", 400)

	for _, l := range Wrap(text, 170, f, m) {
		if m.Width(l, f) > 170 {
			t.Errorf("line too wide (%.1f): %q", m.Width(l, f), l)
		}
	}
}

func TestApproxMeasurer_BoldWider(t *testing.T) {
	m := ApproxMeasurer{}
	regular := m.Width("Diagnosis", Font{Size: 14})
	bold := m.Width("Diagnosis", Font{Size: 14, Bold: true})
	if bold <= regular {
		t.Errorf("expected bold wider than regular: %.2f <= %.2f", bold, regular)
	}
}
