package railquery

import "strings"

// rsvCodeAvailable is the set of reservation codes meaning "seats
// present" per the carrier's mobile API. Any other code (including the
// sold-out code "00") means none. Codes outside this set and "00" are
// undocumented by the upstream; §9's Open Question directs us to treat
// them as "no seats" and let the caller log the unexpected code.
var rsvCodeAvailable = map[string]bool{"11": true, "13": true}

var soldOutWords = []string{"매진", "대기", "마감", "없음"}
var plentyWords = []string{"많음", "충분", "가능"}

// seatCountFromCode derives a seat count from a reservation code and
// its accompanying display name. The code is authoritative for
// availability; the name refines the count. Total and deterministic
// for every (code, name) pair.
func seatCountFromCode(code, name string) int {
	if !rsvCodeAvailable[code] {
		return 0
	}

	for _, w := range soldOutWords {
		if strings.Contains(name, w) {
			return 0
		}
	}
	for _, w := range plentyWords {
		if strings.Contains(name, w) {
			return 99
		}
	}

	digits := extractDigits(name)
	if digits != "" {
		n := 0
		for _, r := range digits {
			n = n*10 + int(r-'0')
		}
		return n
	}

	// Code says available, name carries no usable information —
	// trust the code and assume at least one seat.
	return 1
}

// KnownReservationCode reports whether code is one of the codes the
// upstream is known to use ("00", "11", "13"). Anything else is logged
// by the caller as an unexpected code even though it is still treated
// as "no seats" here.
func KnownReservationCode(code string) bool {
	switch code {
	case "00", "11", "13":
		return true
	default:
		return false
	}
}

// extractDigits returns the first maximal run of contiguous digits in
// s, e.g. "12석3호" -> "12", "3호4석" -> "3".
func extractDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		} else if b.Len() > 0 {
			break
		}
	}
	return b.String()
}
