package railquery

import "fmt"

// TrainInfo is one scheduled train returned by the availability
// endpoint, after the time-window filter. Never mutated after
// construction.
type TrainInfo struct {
	TrainNo          string
	TrainType        string
	DepartureTime    Clock
	ArrivalTime      Clock
	GeneralSeats     int
	SpecialSeats     int
	DurationMinutes  int
}

// HasSeats reports whether either seat class has at least one seat.
func (t TrainInfo) HasSeats() bool {
	return t.GeneralSeats > 0 || t.SpecialSeats > 0
}

// Display renders the train for inclusion in a notification body:
// "{type} {no}호 {dep}→{arr} (일반 N석 / 특실 N석)".
func (t TrainInfo) Display() string {
	line := fmt.Sprintf("%s %s호 %s→%s", t.TrainType, t.TrainNo, t.DepartureTime, t.ArrivalTime)

	var seats []string
	if t.GeneralSeats > 0 {
		seats = append(seats, fmt.Sprintf("일반 %d석", t.GeneralSeats))
	}
	if t.SpecialSeats > 0 {
		seats = append(seats, fmt.Sprintf("특실 %d석", t.SpecialSeats))
	}
	if len(seats) == 0 {
		return line
	}
	sep := " / "
	body := seats[0]
	for _, s := range seats[1:] {
		body += sep + s
	}
	return fmt.Sprintf("%s (%s)", line, body)
}

// CheckResult is the outcome of one complete poll (possibly spanning
// several paginated requests). Immutable.
type CheckResult struct {
	QueryTimestamp   float64 // wall-clock Unix seconds at poll start, for ordering/logging only; not a monotonic reading
	Trains           []TrainInfo
	SeatsAvailable   bool
	RawResponseBytes int
}

// AvailableTrains returns the subset of Trains with HasSeats() true,
// in original order.
func (r CheckResult) AvailableTrains() []TrainInfo {
	out := make([]TrainInfo, 0, len(r.Trains))
	for _, t := range r.Trains {
		if t.HasSeats() {
			out = append(out, t)
		}
	}
	return out
}
