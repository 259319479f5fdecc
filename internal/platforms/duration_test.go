package platforms

import "testing"

func TestParseISODuration(t *testing.T) {
	tests := []struct {
		input string
		want  *int
	}{
		{"PT4M13S", intPtr(253)},
		{"PT1H2M3S", intPtr(3723)},
		{"PT45S", intPtr(45)},
		{"PT1H", intPtr(3600)},
		{"PT2M", intPtr(120)},
		{"PT0S", intPtr(0)},
		{"PT", nil},
		{"", nil},
		{"4M13S", nil},
		{"P1DT2H", nil},
		{"PT4M13", nil},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got := parseISODuration(tt.input)
			switch {
			case tt.want == nil && got != nil:
				t.Errorf("parseISODuration(%q) = %d, want nil", tt.input, *got)
			case tt.want != nil && got == nil:
				t.Errorf("parseISODuration(%q) = nil, want %d", tt.input, *tt.want)
			case tt.want != nil && got != nil && *got != *tt.want:
				t.Errorf("parseISODuration(%q) = %d, want %d", tt.input, *got, *tt.want)
			}
		})
	}
}

func intPtr(n int) *int { return &n }
