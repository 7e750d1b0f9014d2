package railquery

import (
	"fmt"
	"time"
)

// TrainClass is the closed vocabulary of train types the upstream
// endpoint recognizes.
type TrainClass string

// Recognized train classes.
const (
	ClassKTX           TrainClass = "KTX"
	ClassKTXSancheon   TrainClass = "KTX-산천"
	ClassKTXEeum       TrainClass = "KTX-이음"
	ClassITXSaemaeul   TrainClass = "ITX-새마을"
	ClassITXCheongchun TrainClass = "ITX-청춘"
	ClassMugunghwa     TrainClass = "무궁화"
	ClassAll           TrainClass = "전체"
)

// SeatClass is the closed vocabulary of seat types.
type SeatClass string

// Recognized seat classes.
const (
	SeatGeneral SeatClass = "일반실"
	SeatSpecial SeatClass = "특실"
)

// maxFutureDays bounds how far ahead a departure date may be requested.
const maxFutureDays = 90

// Query is an immutable request for seat availability on one segment,
// created once per session and never mutated afterward.
type Query struct {
	DepartureStation string
	ArrivalStation   string
	DepartureDate    time.Time
	WindowStart      Clock
	WindowEnd        Clock
	TrainClass       TrainClass
	SeatClass        SeatClass
	PassengerCount   int
}

// NewQuery normalizes station names and validates all invariants from
// §3: departure ≠ arrival, date within [today, today+90d], window end
// strictly after window start, passenger count in 1..9. now is passed
// in explicitly so callers (and tests) control what "today" means.
func NewQuery(
	departure, arrival string,
	date time.Time,
	windowStart, windowEnd Clock,
	trainClass TrainClass,
	seatClass SeatClass,
	passengerCount int,
	now time.Time,
) (Query, error) {
	dep, err := NormalizeStation(departure)
	if err != nil {
		return Query{}, err
	}
	arr, err := NormalizeStation(arrival)
	if err != nil {
		return Query{}, err
	}
	if dep == arr {
		return Query{}, &ValidationError{Field: "station", Reason: fmt.Sprintf("departure and arrival are both %q", dep)}
	}

	today := truncateToDate(now)
	reqDate := truncateToDate(date)
	if reqDate.Before(today) {
		return Query{}, &ValidationError{Field: "departure_date", Reason: "must not be in the past"}
	}
	if reqDate.After(today.AddDate(0, 0, maxFutureDays)) {
		return Query{}, &ValidationError{Field: "departure_date", Reason: fmt.Sprintf("must be within %d days of today", maxFutureDays)}
	}

	if windowEnd <= windowStart {
		return Query{}, &ValidationError{Field: "window", Reason: "window_end must be greater than window_start"}
	}

	if passengerCount < 1 || passengerCount > 9 {
		return Query{}, &ValidationError{Field: "passenger_count", Reason: "must be between 1 and 9"}
	}

	if trainClass == "" {
		trainClass = ClassKTX
	}
	if seatClass == "" {
		seatClass = SeatGeneral
	}

	return Query{
		DepartureStation: dep,
		ArrivalStation:   arr,
		DepartureDate:    reqDate,
		WindowStart:      windowStart,
		WindowEnd:        windowEnd,
		TrainClass:       trainClass,
		SeatClass:        seatClass,
		PassengerCount:   passengerCount,
	}, nil
}

// Summary renders a one-line human-readable description, useful for
// startup logging.
func (q Query) Summary() string {
	return fmt.Sprintf("%s→%s %s %s~%s %s %s %d명",
		q.DepartureStation, q.ArrivalStation,
		q.DepartureDate.Format("2006-01-02"),
		q.WindowStart, q.WindowEnd,
		q.TrainClass, q.SeatClass, q.PassengerCount)
}

func truncateToDate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
