package billing

import (
	"consulta-backend/calendar"
	"consulta-backend/utils"
)

// Pricer is the flat session fee table.
type Pricer struct {
	Base     float64 // sessions up to 60 minutes
	Extended float64 // anything longer
}

// DefaultPricer matches the clinic's published rates.
var DefaultPricer = Pricer{Base: 55, Extended: 70}

// Price never prorates: non-billable is 0, <=60 min is Base, longer is Extended.
func (p Pricer) Price(minutes int, billable bool) float64 {
	if !billable {
		return 0
	}
	if minutes <= 60 {
		return p.Base
	}
	return p.Extended
}

// nonBillableMarkers are folded word runs that turn an event into an admin block.
var nonBillableMarkers = [][]string{
	{"libre"},
	{"anulada"},
	{"anulado"},
	{"cancelada"},
	{"cancelado"},
	{"no", "disponible"},
}

// NonBillableTitle reports whether the title marks a free slot, cancellation or
// unavailability.
func NonBillableTitle(title string) bool {
	return containsAny(utils.Words(title), nonBillableMarkers)
}

// Billable combines the title markers with the provider's cancelled status.
func Billable(ev calendar.Event) bool {
	return !ev.Cancelled() && !NonBillableTitle(ev.Title)
}
