// Package notify renders and dispatches seat-availability
// notifications across one or more channels (desktop toast, sound,
// webhook). Channels are replaceable shells behind a common
// interface; concrete platform integration (a real OS toast, a real
// audio device) is left to an external collaborator.
package notify

import (
	"context"
	"fmt"
	"strings"

	"github.com/windasol/korail-watch/internal/railquery"
)

// Notification is a rendered message ready to hand to any Channel.
type Notification struct {
	Title string
	Body  string
}

// maxTrainsInBody caps how many trains are listed in a notification
// body, per the spec's rendering rule.
const maxTrainsInBody = 5

// Render builds the user-facing notification for a CheckResult that
// found available seats, grounded on original_source's
// TrainInfo.display() formatting.
func Render(departure, arrival string, result railquery.CheckResult) Notification {
	title := fmt.Sprintf("Seats available: %s→%s", departure, arrival)

	trains := result.AvailableTrains()
	if len(trains) > maxTrainsInBody {
		trains = trains[:maxTrainsInBody]
	}

	lines := make([]string, 0, len(trains))
	for _, tr := range trains {
		lines = append(lines, tr.Display())
	}

	return Notification{Title: title, Body: strings.Join(lines, "\n")}
}

// Channel is a notification delivery target. Implementations must be
// safe to call concurrently with other channels — the NotifierAgent
// fans out to all enabled channels at once and isolates failures.
type Channel interface {
	Name() string
	Send(ctx context.Context, n Notification) error
}
