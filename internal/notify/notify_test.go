package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/windasol/korail-watch/internal/railquery"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func trainWithSeats(no string) railquery.TrainInfo {
	return railquery.TrainInfo{
		TrainNo:       no,
		TrainType:     "KTX",
		DepartureTime: railquery.NewClock(8, 0),
		ArrivalTime:   railquery.NewClock(10, 30),
		GeneralSeats:  3,
	}
}

func TestRender_TitleAndTrainCount(t *testing.T) {
	result := railquery.CheckResult{
		SeatsAvailable: true,
		Trains: []railquery.TrainInfo{
			trainWithSeats("101"), trainWithSeats("103"), trainWithSeats("105"),
		},
	}
	n := Render("서울", "부산", result)
	if n.Title != "Seats available: 서울→부산" {
		t.Errorf("Title = %q", n.Title)
	}
	if strings.Count(n.Body, "\n") != 2 {
		t.Errorf("expected 3 lines in body, got: %q", n.Body)
	}
}

func TestRender_CapsAtFiveTrains(t *testing.T) {
	var trains []railquery.TrainInfo
	for i := 0; i < 8; i++ {
		trains = append(trains, trainWithSeats("train"))
	}
	n := Render("서울", "부산", railquery.CheckResult{Trains: trains})
	if got := strings.Count(n.Body, "\n") + 1; got != maxTrainsInBody {
		t.Errorf("expected body to cap at %d trains, got %d", maxTrainsInBody, got)
	}
}

func TestDesktopChannel_NeverFails(t *testing.T) {
	c := NewDesktopChannel(discardLogger())
	if c.Name() != "desktop" {
		t.Errorf("Name() = %q", c.Name())
	}
	if err := c.Send(context.Background(), Notification{Title: "t"}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestSoundChannel_NeverFails(t *testing.T) {
	c := NewSoundChannel(discardLogger())
	if c.Name() != "sound" {
		t.Errorf("Name() = %q", c.Name())
	}
	if err := c.Send(context.Background(), Notification{Title: "t"}); err != nil {
		t.Errorf("Send() error = %v", err)
	}
}

func TestWebhookChannel_PostsJSONPayload(t *testing.T) {
	var gotBody map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := NewWebhookChannel(srv.URL, discardLogger())
	err := c.Send(context.Background(), Notification{Title: "Seats available", Body: "KTX 101"})
	if err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if !strings.Contains(gotBody["text"], "Seats available") {
		t.Errorf("posted body = %+v", gotBody)
	}
}

func TestWebhookChannel_NonTwoXXIsAnError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := NewWebhookChannel(srv.URL, discardLogger())
	if err := c.Send(context.Background(), Notification{Title: "t"}); err == nil {
		t.Fatal("expected error on non-2xx response")
	}
}
