package railquery

import (
	"fmt"
	"sort"
	"strings"
)

// stationCodes maps a canonical station name to its carrier-assigned
// 4-digit code. Transliterated from the upstream carrier's own station
// table (see original_source/src/skills/station_data.py) — these are
// not invented values, they are the fixed codes the mobile endpoint
// expects.
var stationCodes = map[string]string{
	"서울":        "0001",
	"용산":        "0015",
	"영등포":       "0020",
	"광명":        "0502",
	"수원":        "0055",
	"천안아산":      "0297",
	"오송":        "0298",
	"대전":        "0010",
	"김천구미":      "0507",
	"동대구":       "0508",
	"경주":        "0519",
	"포항":        "0515",
	"울산(통도사)":   "0930",
	"부산":        "0032",
	"광주송정":      "0036",
	"목포":        "0041",
	"전주":        "0045",
	"익산":        "0030",
	"여수엑스포":     "0049",
	"강릉":        "0115",
	"평창":        "0112",
	"진주":        "0056",
}

// stationAliases maps a common alternate name to its canonical name.
var stationAliases = map[string]string{
	"서울역":  "서울",
	"용산역":  "용산",
	"부산역":  "부산",
	"대전역":  "대전",
	"동대구역": "동대구",
	"울산":   "울산(통도사)",
	"울산역":  "울산(통도사)",
	"통도사":  "울산(통도사)",
	"광주":   "광주송정",
	"여수":   "여수엑스포",
	"김천":   "김천구미",
	"구미":   "김천구미",
	"천안":   "천안아산",
	"아산":   "천안아산",
}

// NormalizeStation trims whitespace, resolves aliases, and validates
// the result against the known station table. Returns the canonical
// name, or a *ValidationError listing the supported stations.
func NormalizeStation(name string) (string, error) {
	normalized := strings.ReplaceAll(strings.TrimSpace(name), " ", "")

	if canonical, ok := stationAliases[normalized]; ok {
		normalized = canonical
	}

	if _, ok := stationCodes[normalized]; !ok {
		return "", &ValidationError{
			Field:  "station",
			Reason: fmt.Sprintf("%q is not a supported station (supported: %s)", name, supportedStationsList()),
		}
	}
	return normalized, nil
}

// StationCode returns the carrier code for a canonical or aliased
// station name.
func StationCode(name string) (string, error) {
	canonical, err := NormalizeStation(name)
	if err != nil {
		return "", err
	}
	return stationCodes[canonical], nil
}

func supportedStationsList() string {
	names := make([]string, 0, len(stationCodes))
	for name := range stationCodes {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}
