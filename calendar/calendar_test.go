package calendar

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gcal "google.golang.org/api/calendar/v3"
)

func TestEventDuration(t *testing.T) {
	start := time.Date(2024, 3, 4, 10, 0, 0, 0, time.UTC)
	assert.Equal(t, 60, Event{Start: start, End: start.Add(time.Hour)}.DurationMinutes())
	assert.Equal(t, 0, Event{Start: start, End: start.Add(-time.Hour)}.DurationMinutes())
	assert.True(t, Event{Status: "cancelled"}.Cancelled())
}

func TestStaticFiltersRange(t *testing.T) {
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	src := Static{
		{ID: "a", Start: base},
		{ID: "b", Start: base.AddDate(0, 1, 0)},
	}
	got, err := src.Events(context.Background(), "primary", base, base.AddDate(0, 0, 28))
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "a", got[0].ID)
}

func TestDisabled(t *testing.T) {
	_, err := Disabled{}.Events(context.Background(), "primary", time.Now(), time.Now())
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestConvert(t *testing.T) {
	ev, ok, err := convert(&gcal.Event{
		Id:      "ev1",
		Summary: "Sesión Juan /sonia/",
		ColorId: "5",
		Status:  "confirmed",
		Start:   &gcal.EventDateTime{DateTime: "2024-03-04T10:00:00+01:00"},
		End:     &gcal.EventDateTime{DateTime: "2024-03-04T11:00:00+01:00"},
	}, time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "ev1", ev.ID)
	assert.Equal(t, 60, ev.DurationMinutes())

	allDay, ok, err := convert(&gcal.Event{
		Id:    "ev2",
		Start: &gcal.EventDateTime{Date: "2024-03-05"},
		End:   &gcal.EventDateTime{Date: "2024-03-06"},
	}, time.UTC)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, 24*60, allDay.DurationMinutes())

	_, ok, err = convert(&gcal.Event{Id: "ev3"}, time.UTC)
	require.NoError(t, err)
	assert.False(t, ok)

	_, _, err = convert(&gcal.Event{Id: "ev4", Start: &gcal.EventDateTime{DateTime: "garbage"}}, time.UTC)
	assert.Error(t, err)
}

func TestAllDayEventsStartAtLocalMidnight(t *testing.T) {
	madrid, err := time.LoadLocation("Europe/Madrid")
	require.NoError(t, err)

	ev, ok, err := convert(&gcal.Event{
		Id:    "holiday",
		Start: &gcal.EventDateTime{Date: "2024-03-01"},
		End:   &gcal.EventDateTime{Date: "2024-03-02"},
	}, madrid)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, ev.Start.Equal(time.Date(2024, 3, 1, 0, 0, 0, 0, madrid)))
	// local midnight on the 1st is still February in UTC
	assert.Equal(t, time.February, ev.Start.UTC().Month())

	timed, err := eventTime(&gcal.EventDateTime{DateTime: "2024-03-01T00:30:00+01:00"}, madrid)
	require.NoError(t, err)
	assert.True(t, timed.Equal(time.Date(2024, 2, 29, 23, 30, 0, 0, time.UTC)))
}
