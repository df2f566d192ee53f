package version

import "testing"

func TestParseSpec(t *testing.T) {
	tests := []struct {
		in             string
		min, max, pref string
	}{
		{"1.5.0", "1.5.0", "", "1.5.0"},
		{"[1.0.0,2.0.0]", "1.0.0", "2.0.0", "1.0.0"},
		{"[1.0.0,]", "1.0.0", "", "1.0.0"},
		{"[1.0.0,2.0.0]->1.5.0", "1.0.0", "2.0.0", "1.5.0"},
		{"[1.0.0,2.0.0]→1.5.0", "1.0.0", "2.0.0", "1.5.0"},
		{"[1.0.0, ] -> 3.0", "1.0.0", "", "3.0"},
		{"weird-raw", "weird-raw", "", "weird-raw"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			s, err := ParseSpec(tt.in)
			if err != nil {
				t.Fatalf("ParseSpec(%q) error: %v", tt.in, err)
			}
			if s.Min.String() != tt.min {
				t.Errorf("Min = %s, want %s", s.Min, tt.min)
			}
			if tt.max == "" && s.Max != nil {
				t.Errorf("Max = %s, want none", s.Max)
			}
			if tt.max != "" && (s.Max == nil || s.Max.String() != tt.max) {
				t.Errorf("Max = %v, want %s", s.Max, tt.max)
			}
			if s.Preferred.String() != tt.pref {
				t.Errorf("Preferred = %s, want %s", s.Preferred, tt.pref)
			}
		})
	}
}

func TestParseSpecErrors(t *testing.T) {
	for _, in := range []string{"", "[1.0.0", "[1.0.0]", "[,2.0]", "[1,2]x", "[1,2]->", "[2.0,1.0]"} {
		if _, err := ParseSpec(in); err == nil {
			t.Errorf("ParseSpec(%q) should fail", in)
		}
	}
}

func TestSpecString(t *testing.T) {
	for in, want := range map[string]string{
		"1.5.0":                "1.5.0",
		"[1.0.0,2.0.0]->1.5.0": "[1.0.0,2.0.0]->1.5.0",
		"[1.0.0,]":             "[1.0.0,]->1.0.0",
	} {
		s, err := ParseSpec(in)
		if err != nil {
			t.Fatal(err)
		}
		if got := s.String(); got != want {
			t.Errorf("String(%q) = %q, want %q", in, got, want)
		}
	}
}
