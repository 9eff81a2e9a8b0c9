package utils

import (
	"testing"
)

func TestParsePeso(t *testing.T) {
	tests := []struct {
		name  string
		label string
		want  string
	}{
		{name: "plain peso", label: "₱500", want: "500"},
		{name: "with thousands separator", label: "₱1,000", want: "1000"},
		{name: "with decimal part", label: "₱99.50", want: "99.5"},
		{name: "bare number", label: "250", want: "250"},
		{name: "text around number", label: "promo ₱300 only", want: "300"},
		{name: "no digits", label: "free", want: "0"},
		{name: "empty label", label: "", want: "0"},
		{name: "only dot", label: ".", want: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParsePeso(tt.label)
			if got.String() != tt.want {
				t.Errorf("ParsePeso(%q) = %s, want %s", tt.label, got.String(), tt.want)
			}
		})
	}
}
