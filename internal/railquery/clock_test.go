package railquery

import "testing"

func TestParseClock(t *testing.T) {
	tests := []struct {
		in   string
		hour int
		min  int
	}{
		{"083000", 8, 30},
		{"000000", 0, 0},
		{"233000", 23, 30},
		{"0830", 8, 30},
	}
	for _, tt := range tests {
		c, err := ParseClock(tt.in)
		if err != nil {
			t.Fatalf("ParseClock(%q) error: %v", tt.in, err)
		}
		if c.Hour() != tt.hour || c.Minute() != tt.min {
			t.Errorf("ParseClock(%q) = %02d:%02d, want %02d:%02d", tt.in, c.Hour(), c.Minute(), tt.hour, tt.min)
		}
	}
}

func TestParseClock_Invalid(t *testing.T) {
	for _, in := range []string{"250000", "006100", "abcdef"} {
		if _, err := ParseClock(in); err == nil {
			t.Errorf("ParseClock(%q) expected error, got none", in)
		}
	}
}

func TestClock_DurationTo(t *testing.T) {
	tests := []struct {
		dep, arr string
		want     int
	}{
		{"230000", "010000", 120},
		{"080000", "103000", 150},
		{"080000", "080000", 1440},
	}
	for _, tt := range tests {
		dep, _ := ParseClock(tt.dep)
		arr, _ := ParseClock(tt.arr)
		if got := dep.DurationTo(arr); got != tt.want {
			t.Errorf("%s -> %s DurationTo = %d, want %d", tt.dep, tt.arr, got, tt.want)
		}
	}
}

func TestClock_HHMMSS(t *testing.T) {
	c := NewClock(8, 0)
	if got, want := c.HHMMSS(), "080000"; got != want {
		t.Errorf("HHMMSS() = %q, want %q", got, want)
	}
}
