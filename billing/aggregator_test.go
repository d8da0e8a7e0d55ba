package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"consulta-backend/calendar"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeTherapists []models.Therapist

func (f fakeTherapists) Therapists(context.Context) ([]models.Therapist, error) { return f, nil }

type fakePayments map[string]models.SessionPayment

func (f fakePayments) PaymentsByEventIDs(_ context.Context, ids []string) (map[string]models.SessionPayment, error) {
	out := map[string]models.SessionPayment{}
	for _, id := range ids {
		if p, ok := f[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type failingSource struct{}

func (failingSource) Events(context.Context, string, time.Time, time.Time) ([]calendar.Event, error) {
	return nil, errors.New("calendar down")
}

var march = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func ev(id, title string, day, minutes int) calendar.Event {
	start := march.AddDate(0, 0, day).Add(10 * time.Hour)
	return calendar.Event{ID: id, Title: title, Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func price(v float64) *float64 { return &v }

func marchQuery(therapistID uint, excluded ...string) Query {
	return Query{CalendarID: "primary", From: march, To: march.AddDate(0, 1, 0), TherapistID: therapistID, Excluded: utils.StringList(excluded)}
}

func TestPricer(t *testing.T) {
	p := Pricer{Base: 55, Extended: 70}
	cases := []struct {
		minutes  int
		billable bool
		want     float64
	}{
		{45, true, 55},
		{60, true, 55},
		{61, true, 70},
		{90, true, 70},
		{120, true, 70},
		{45, false, 0},
		{120, false, 0},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, p.Price(c.minutes, c.billable), "%d min billable=%v", c.minutes, c.billable)
	}
}

func TestNonBillableTitle(t *testing.T) {
	assert.True(t, NonBillableTitle("LIBRE"))
	assert.True(t, NonBillableTitle("Sesión Juan anulada /sonia/"))
	assert.True(t, NonBillableTitle("No disponible"))
	assert.True(t, NonBillableTitle("Cita CANCELADA"))
	assert.False(t, NonBillableTitle("Sesión Juan /sonia/"))
	assert.False(t, NonBillableTitle("Librería"))
	assert.False(t, Billable(calendar.Event{Title: "Sesión", Status: calendar.StatusCancelled}))
}

func TestAggregateSkipsCancelledEvents(t *testing.T) {
	src := calendar.Static{
		ev("e1", "Sesión Juan /sonia/", 1, 50),
		ev("e2", "Sesión Pedro anulada /sonia/", 2, 50),
	}
	agg := NewAggregator(src, fakeTherapists(testTherapists()), fakePayments{}, DefaultPricer)

	res, err := agg.Aggregate(context.Background(), marchQuery(1))
	require.NoError(t, err)
	assert.Equal(t, 55.0, res.Subtotal)
	assert.Len(t, res.Sessions, 1)
	assert.Equal(t, 1, res.Skipped)
}

func TestAggregateAppliesOverridesAndExclusions(t *testing.T) {
	src := calendar.Static{
		ev("e1", "Sesión Ana /sonia/", 1, 60),
		ev("e2", "Sesión Luis /sonia/", 2, 90),
		ev("e3", "Sesión Eva /sonia/", 3, 60),
		ev("e4", "Sesión Marta /sonia/", 4, 60),
		ev("e5", "Sesión Raúl /sonia/", 5, 60),
		ev("e6", "Sesión Pablo /iñigo/", 6, 60),
		ev("e7", "Sesión sin etiqueta", 7, 60),
		ev("e8", "Gestión /laura/", 8, 60),
		ev("e9", "Libre", 9, 60),
	}
	payments := fakePayments{
		"e2": {EventID: "e2", OriginalPrice: price(80), ModifiedPrice: price(65), PaymentStatus: models.PaymentPaid, PaymentType: "card"},
		"e3": {EventID: "e3", OriginalPrice: price(0), PaymentStatus: models.PaymentPaid},
		"e4": {EventID: "e4", PaymentStatus: models.PaymentCancelled},
	}
	agg := NewAggregator(src, fakeTherapists(testTherapists()), payments, DefaultPricer)

	res, err := agg.Aggregate(context.Background(), marchQuery(1, "e5"))
	require.NoError(t, err)

	// e1 55 + e2 65 (modified wins) + e3 0 (override to zero still present)
	assert.Equal(t, 120.0, res.Subtotal)
	require.Len(t, res.Sessions, 3)
	assert.Equal(t, "e3", res.Sessions[2].EventID)
	assert.True(t, res.Sessions[2].PriceOverridden)
	assert.Equal(t, "card", res.Sessions[1].PaymentType)

	require.Len(t, res.Excluded, 2)
	reasons := map[string]string{}
	for _, s := range res.Excluded {
		reasons[s.EventID] = s.ExclusionReason
	}
	assert.Equal(t, ReasonPaymentCancelled, reasons["e4"])
	assert.Equal(t, ReasonExcluded, reasons["e5"])

	// unassigned e7 is outside Sonia's total but inside the raw total; manager e8 and libre e9 are skipped
	assert.Equal(t, 1, res.Unassigned)
	assert.Equal(t, 2, res.Skipped)
	assert.Equal(t, 120.0+55+55, res.RawTotal)

	require.Len(t, res.Totals, 3)
	assert.Equal(t, uint(0), res.Totals[0].Therapist.ID)
	assert.Equal(t, 55.0, res.Totals[0].Subtotal)
	assert.Equal(t, 3, res.Totals[1].Sessions)
}

func TestAggregateAllTherapistsIncludesUnassigned(t *testing.T) {
	src := calendar.Static{
		ev("e1", "Sesión Ana /sonia/", 1, 60),
		ev("e2", "Sesión sin etiqueta", 2, 75),
	}
	agg := NewAggregator(src, fakeTherapists(testTherapists()), fakePayments{}, DefaultPricer)

	res, err := agg.Aggregate(context.Background(), marchQuery(0))
	require.NoError(t, err)
	assert.Equal(t, 125.0, res.Subtotal)
	assert.Equal(t, res.RawTotal, res.Subtotal)
	assert.Len(t, res.Sessions, 2)
	assert.Equal(t, 1, res.Unassigned)
}

func TestAggregateUnassignedIgnoresExcludedAndSkipped(t *testing.T) {
	src := calendar.Static{
		ev("e1", "Sesión Ana", 1, 60),
		ev("e2", "Sesión Luis", 2, 60),
		ev("e3", "Sesión Eva", 3, 60),
		ev("e4", "Libre", 4, 60),
		ev("e5", "Sesión Pablo /iñigo/", 5, 60),
	}
	payments := fakePayments{"e3": {EventID: "e3", PaymentStatus: models.PaymentCancelled}}
	agg := NewAggregator(src, fakeTherapists(testTherapists()), payments, DefaultPricer)

	res, err := agg.Aggregate(context.Background(), marchQuery(0, "e2"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unassigned)
	assert.Len(t, res.Excluded, 2)
	assert.Equal(t, 1, res.Skipped)

	// the count does not depend on the therapist filter
	res, err = agg.Aggregate(context.Background(), marchQuery(2, "e2"))
	require.NoError(t, err)
	assert.Equal(t, 1, res.Unassigned)
	assert.Empty(t, res.Excluded)
}

func TestAggregateFailsWhenCalendarFails(t *testing.T) {
	agg := NewAggregator(failingSource{}, fakeTherapists(testTherapists()), fakePayments{}, DefaultPricer)

	res, err := agg.Aggregate(context.Background(), marchQuery(1))
	assert.Nil(t, res)
	assert.ErrorContains(t, err, "calendar down")
}

func TestComputeTotals(t *testing.T) {
	tot := ComputeTotals(1000, 40, 15, 0)
	assert.Equal(t, 400.0, tot.CenterAmount)
	assert.Equal(t, 600.0, tot.TherapistAmount)
	assert.Equal(t, 90.0, tot.IRPFAmount)
	assert.Equal(t, 510.0, tot.TotalAmount)
	assert.Equal(t, tot.Subtotal-tot.CenterAmount-tot.IRPFAmount, tot.TotalAmount)

	withIVA := ComputeTotals(1000, 40, 15, 21)
	assert.Equal(t, 126.0, withIVA.IVAAmount)
	assert.Equal(t, 510.0, withIVA.TotalAmount)
}
