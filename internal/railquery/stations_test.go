package railquery

import (
	"errors"
	"testing"
)

func TestNormalizeStation(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"서울", "서울"},
		{"서울역", "서울"},
		{"울산", "울산(통도사)"},
		{"  서울  ", "서울"},
	}
	for _, tt := range tests {
		got, err := NormalizeStation(tt.in)
		if err != nil {
			t.Fatalf("NormalizeStation(%q) error: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("NormalizeStation(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeStation_Unknown(t *testing.T) {
	_, err := NormalizeStation("없는역")
	if err == nil {
		t.Fatal("expected error for unknown station")
	}
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Errorf("expected *ValidationError, got %T", err)
	}
}

func TestStationCode(t *testing.T) {
	tests := []struct {
		name string
		code string
	}{
		{"서울", "0001"},
		{"부산", "0032"},
		{"동대구", "0508"},
	}
	for _, tt := range tests {
		got, err := StationCode(tt.name)
		if err != nil {
			t.Fatalf("StationCode(%q) error: %v", tt.name, err)
		}
		if got != tt.code {
			t.Errorf("StationCode(%q) = %q, want %q", tt.name, got, tt.code)
		}
	}
}

// TestAllAliasesResolveToKnownStations is testable property #6: for
// every alias, validation returns a canonical name with a known code.
func TestAllAliasesResolveToKnownStations(t *testing.T) {
	for alias := range stationAliases {
		canonical, err := NormalizeStation(alias)
		if err != nil {
			t.Errorf("NormalizeStation(%q) error: %v", alias, err)
			continue
		}
		if _, ok := stationCodes[canonical]; !ok {
			t.Errorf("alias %q resolved to %q which has no known code", alias, canonical)
		}
	}
}
