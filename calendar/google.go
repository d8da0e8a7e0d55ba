package calendar

import (
	"context"
	"fmt"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"
)

const pageSize = 2500

// GoogleSource reads events through the Google Calendar API with a service account.
// All-day events start at midnight in loc.
type GoogleSource struct {
	svc *gcal.Service
	loc *time.Location
}

// NewGoogleSource builds a read-only calendar client from a credentials file.
func NewGoogleSource(ctx context.Context, credentialsFile string, loc *time.Location) (*GoogleSource, error) {
	svc, err := gcal.NewService(ctx,
		option.WithCredentialsFile(credentialsFile),
		option.WithScopes(gcal.CalendarReadonlyScope),
	)
	if err != nil {
		return nil, fmt.Errorf("google calendar client: %w", err)
	}
	if loc == nil {
		loc = time.UTC
	}
	return &GoogleSource{svc: svc, loc: loc}, nil
}

// Events expands recurring events into single instances ordered by start time.
// Cancelled instances are included so the caller can zero them.
func (g *GoogleSource) Events(ctx context.Context, calendarID string, from, to time.Time) ([]Event, error) {
	call := g.svc.Events.List(calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		ShowDeleted(true).
		OrderBy("startTime").
		MaxResults(pageSize)

	var out []Event
	err := call.Pages(ctx, func(page *gcal.Events) error {
		for _, item := range page.Items {
			ev, ok, err := convert(item, g.loc)
			if err != nil {
				return err
			}
			if ok {
				out = append(out, ev)
			}
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list events %s: %w", calendarID, err)
	}
	return out, nil
}

// convert maps an API event; events without a start are skipped.
func convert(item *gcal.Event, loc *time.Location) (Event, bool, error) {
	if item == nil || item.Start == nil {
		return Event{}, false, nil
	}
	start, err := eventTime(item.Start, loc)
	if err != nil {
		return Event{}, false, fmt.Errorf("event %s start: %w", item.Id, err)
	}
	end := start
	if item.End != nil {
		if end, err = eventTime(item.End, loc); err != nil {
			return Event{}, false, fmt.Errorf("event %s end: %w", item.Id, err)
		}
	}
	return Event{
		ID:      item.Id,
		Title:   item.Summary,
		Start:   start,
		End:     end,
		ColorID: item.ColorId,
		Status:  item.Status,
	}, true, nil
}

// eventTime handles timed events (RFC3339) and all-day events (date only, in loc).
func eventTime(t *gcal.EventDateTime, loc *time.Location) (time.Time, error) {
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	return time.ParseInLocation(time.DateOnly, t.Date, loc)
}
