package billing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"consulta-backend/calendar"
	"consulta-backend/metrics"
	"consulta-backend/models"
	"consulta-backend/utils"
)

// TherapistReader lists every therapist the detector should know about.
type TherapistReader interface {
	Therapists(ctx context.Context) ([]models.Therapist, error)
}

// PaymentReader returns payment rows keyed by event id.
type PaymentReader interface {
	PaymentsByEventIDs(ctx context.Context, ids []string) (map[string]models.SessionPayment, error)
}

// Exclusion reasons reported on Result.Excluded.
const (
	ReasonExcluded         = "excluded"
	ReasonPaymentCancelled = "payment_cancelled"
)

// Query selects a billing period. TherapistID 0 means every therapist, unassigned included.
type Query struct {
	CalendarID  string
	From        time.Time
	To          time.Time
	TherapistID uint
	Excluded    utils.StringList
}

// Session is a billable event after detection, pricing and payment overrides.
type Session struct {
	EventID         string    `json:"event_id"`
	Title           string    `json:"title"`
	Start           time.Time `json:"start"`
	End             time.Time `json:"end"`
	DurationMinutes int       `json:"duration_minutes"`
	Therapist       Therapist `json:"therapist"`
	ComputedPrice   float64   `json:"computed_price"`
	Price           float64   `json:"price"`
	PriceOverridden bool      `json:"price_overridden"`
	PaymentStatus   string    `json:"payment_status"`
	PaymentType     string    `json:"payment_type,omitempty"`
	ExclusionReason string    `json:"exclusion_reason,omitempty"`
}

// TherapistTotal is one line of the per-therapist breakdown.
type TherapistTotal struct {
	Therapist Therapist `json:"therapist"`
	Sessions  int       `json:"sessions"`
	Subtotal  float64   `json:"subtotal"`
}

// Result is both the live preview payload and the input of invoice totals.
// Subtotal, Sessions and Excluded follow Query.TherapistID. RawTotal, Totals and
// Unassigned cover every counted session of the period, so a per-therapist view
// still shows how many billable sessions nobody claimed.
type Result struct {
	From        time.Time        `json:"from"`
	To          time.Time        `json:"to"`
	TherapistID uint             `json:"therapist_id"`
	Subtotal    float64          `json:"subtotal"`
	RawTotal    float64          `json:"raw_total"`
	Sessions    []Session        `json:"sessions"`
	Excluded    []Session        `json:"excluded"`
	Unassigned  int              `json:"unassigned"`
	Skipped     int              `json:"skipped"`
	Totals      []TherapistTotal `json:"totals"`
}

// Aggregator reconciles calendar events with stored payments for one period.
type Aggregator struct {
	events     calendar.Source
	therapists TherapistReader
	payments   PaymentReader
	pricer     Pricer
}

func NewAggregator(events calendar.Source, therapists TherapistReader, payments PaymentReader, pricer Pricer) *Aggregator {
	return &Aggregator{events: events, therapists: therapists, payments: payments, pricer: pricer}
}

// Aggregate fails as a whole when the calendar or the store fails; there are no partial results.
func (a *Aggregator) Aggregate(ctx context.Context, q Query) (res *Result, err error) {
	start := time.Now()
	defer func() {
		metrics.AggregationDuration.Observe(time.Since(start).Seconds())
		if err != nil {
			metrics.Aggregations.WithLabelValues("error").Inc()
		} else {
			metrics.Aggregations.WithLabelValues("success").Inc()
		}
	}()

	events, err := a.events.Events(ctx, q.CalendarID, q.From, q.To)
	if err != nil {
		return nil, fmt.Errorf("fetch events: %w", err)
	}
	therapists, err := a.therapists.Therapists(ctx)
	if err != nil {
		return nil, fmt.Errorf("load therapists: %w", err)
	}
	detector := NewDetector(therapists)

	res = &Result{From: q.From, To: q.To, TherapistID: q.TherapistID, Sessions: []Session{}, Excluded: []Session{}}

	candidates := make([]Session, 0, len(events))
	for _, ev := range events {
		if !Billable(ev) {
			res.Skipped++
			continue
		}
		t := detector.Detect(ev.Title)
		if t.Manager {
			res.Skipped++
			continue
		}
		price := a.pricer.Price(ev.DurationMinutes(), true)
		candidates = append(candidates, Session{
			EventID:         ev.ID,
			Title:           ev.Title,
			Start:           ev.Start,
			End:             ev.End,
			DurationMinutes: ev.DurationMinutes(),
			Therapist:       t,
			ComputedPrice:   price,
			Price:           price,
			PaymentStatus:   models.PaymentPending,
		})
	}

	ids := make([]string, 0, len(candidates))
	for _, s := range candidates {
		ids = append(ids, s.EventID)
	}
	payments, err := a.payments.PaymentsByEventIDs(ctx, ids)
	if err != nil {
		return nil, fmt.Errorf("load payments: %w", err)
	}

	totals := map[uint]*TherapistTotal{}
	for _, s := range candidates {
		if p, ok := payments[s.EventID]; ok {
			applyPayment(&s, p)
		}

		switch {
		case q.Excluded.Contains(s.EventID):
			s.ExclusionReason = ReasonExcluded
		case s.PaymentStatus == models.PaymentCancelled:
			s.ExclusionReason = ReasonPaymentCancelled
		}

		inScope := q.TherapistID == 0 || s.Therapist.ID == q.TherapistID
		if s.ExclusionReason != "" {
			if inScope {
				res.Excluded = append(res.Excluded, s)
			}
			continue
		}

		if !s.Therapist.Assigned() {
			res.Unassigned++
		}
		res.RawTotal += s.Price
		tt, ok := totals[s.Therapist.ID]
		if !ok {
			tt = &TherapistTotal{Therapist: s.Therapist}
			totals[s.Therapist.ID] = tt
		}
		tt.Sessions++
		tt.Subtotal += s.Price

		if inScope {
			res.Subtotal += s.Price
			res.Sessions = append(res.Sessions, s)
		}
	}

	res.Subtotal = utils.Round2(res.Subtotal)
	res.RawTotal = utils.Round2(res.RawTotal)
	res.Totals = make([]TherapistTotal, 0, len(totals))
	for _, tt := range totals {
		tt.Subtotal = utils.Round2(tt.Subtotal)
		res.Totals = append(res.Totals, *tt)
	}
	sort.Slice(res.Totals, func(i, j int) bool { return res.Totals[i].Therapist.ID < res.Totals[j].Therapist.ID })
	return res, nil
}

// applyPayment lets a manual payment row override price and payment state.
// modified_price wins over original_price, which wins over the computed fee.
func applyPayment(s *Session, p models.SessionPayment) {
	switch {
	case p.ModifiedPrice != nil:
		s.Price = *p.ModifiedPrice
		s.PriceOverridden = true
	case p.OriginalPrice != nil:
		s.Price = *p.OriginalPrice
		s.PriceOverridden = true
	}
	if p.PaymentStatus != "" {
		s.PaymentStatus = p.PaymentStatus
	}
	s.PaymentType = p.PaymentType
}
