// Package calendar reads appointment events from the clinic calendar.
package calendar

import (
	"context"
	"errors"
	"time"
)

// ErrNotConfigured is returned by Disabled when no calendar credentials are set.
var ErrNotConfigured = errors.New("calendar source not configured")

// StatusCancelled is the provider status of a cancelled event.
const StatusCancelled = "cancelled"

// Event is a read-only calendar entry.
type Event struct {
	ID      string    `json:"id"`
	Title   string    `json:"title"`
	Start   time.Time `json:"start"`
	End     time.Time `json:"end"`
	ColorID string    `json:"color_id,omitempty"`
	Status  string    `json:"status,omitempty"`
}

// DurationMinutes is the rounded event length; never negative.
func (e Event) DurationMinutes() int {
	d := e.End.Sub(e.Start)
	if d <= 0 {
		return 0
	}
	return int(d.Round(time.Minute) / time.Minute)
}

// Cancelled reports whether the provider marked the event cancelled.
func (e Event) Cancelled() bool {
	return e.Status == StatusCancelled
}

// Source lists the events that start in [from, to).
type Source interface {
	Events(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error)
}

// Disabled is the Source used when Google credentials are missing.
type Disabled struct{}

func (Disabled) Events(context.Context, string, time.Time, time.Time) ([]Event, error) {
	return nil, ErrNotConfigured
}

// Static serves a fixed list of events; used by tools and tests.
type Static []Event

func (s Static) Events(_ context.Context, _ string, from, to time.Time) ([]Event, error) {
	out := make([]Event, 0, len(s))
	for _, e := range s {
		if !e.Start.Before(from) && e.Start.Before(to) {
			out = append(out, e)
		}
	}
	return out, nil
}
