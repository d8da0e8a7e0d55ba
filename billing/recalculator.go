package billing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"consulta-backend/metrics"
	"consulta-backend/models"
	"consulta-backend/utils"

	"go.uber.org/zap"
)

// InvoiceStore reads invoices and writes back recomputed amounts.
type InvoiceStore interface {
	Invoices(ctx context.Context) ([]models.InvoiceSubmission, error)
	UpdateInvoiceAmounts(ctx context.Context, inv *models.InvoiceSubmission) error
}

// Totals are the money columns of an invoice.
type Totals struct {
	Subtotal        float64 `json:"subtotal"`
	CenterAmount    float64 `json:"center_amount"`
	TherapistAmount float64 `json:"therapist_amount"`
	IRPFAmount      float64 `json:"irpf_amount"`
	IVAAmount       float64 `json:"iva_amount"`
	TotalAmount     float64 `json:"total_amount"`
}

// ComputeTotals splits a subtotal between center and therapist. IRPF is withheld on the
// therapist's retained share; IVA is reported but does not change the total.
func ComputeTotals(subtotal, centerPct, irpfPct, ivaPct float64) Totals {
	subtotal = utils.Round2(subtotal)
	center := utils.Percent(subtotal, centerPct)
	retained := utils.Round2(subtotal - center)
	irpf := utils.Percent(retained, irpfPct)
	return Totals{
		Subtotal:        subtotal,
		CenterAmount:    center,
		TherapistAmount: retained,
		IRPFAmount:      irpf,
		IVAAmount:       utils.Percent(retained, ivaPct),
		TotalAmount:     utils.Round2(subtotal - center - irpf),
	}
}

// Apply copies the amounts onto inv and reports whether anything changed.
func (t Totals) Apply(inv *models.InvoiceSubmission, sessions int) bool {
	changed := inv.Subtotal != t.Subtotal ||
		inv.CenterAmount != t.CenterAmount ||
		inv.TherapistAmount != t.TherapistAmount ||
		inv.IRPFAmount != t.IRPFAmount ||
		inv.IVAAmount != t.IVAAmount ||
		inv.TotalAmount != t.TotalAmount ||
		inv.SessionCount != sessions
	inv.Subtotal = t.Subtotal
	inv.CenterAmount = t.CenterAmount
	inv.TherapistAmount = t.TherapistAmount
	inv.IRPFAmount = t.IRPFAmount
	inv.IVAAmount = t.IVAAmount
	inv.TotalAmount = t.TotalAmount
	inv.SessionCount = sessions
	return changed
}

// InvoiceQuery builds the aggregation query for an invoice's therapist and month.
func InvoiceQuery(inv *models.InvoiceSubmission, calendarID string, loc *time.Location) (Query, error) {
	from, to, err := utils.MonthRange(inv.Year, inv.Month, loc)
	if err != nil {
		return Query{}, err
	}
	excluded, err := utils.ParseStringList(inv.ExcludedSessionIDs)
	if err != nil {
		return Query{}, fmt.Errorf("invoice %d excluded_session_ids: %w", inv.ID, err)
	}
	return Query{CalendarID: calendarID, From: from, To: to, TherapistID: inv.TherapistID, Excluded: excluded}, nil
}

// Report summarizes a RecalculateAll run.
type Report struct {
	Checked   int      `json:"checked"`
	Updated   int      `json:"updated"`
	Unchanged int      `json:"unchanged"`
	Failed    int      `json:"failed"`
	Errors    []string `json:"errors,omitempty"`
}

// Recalculator re-derives stored invoice totals from current session data.
type Recalculator struct {
	agg        *Aggregator
	store      InvoiceStore
	calendarID string
	loc        *time.Location
	log        *zap.Logger
}

func NewRecalculator(agg *Aggregator, store InvoiceStore, calendarID string, loc *time.Location, log *zap.Logger) *Recalculator {
	if loc == nil {
		loc = time.UTC
	}
	return &Recalculator{agg: agg, store: store, calendarID: calendarID, loc: loc, log: log}
}

// Recalculate refreshes one invoice in place. Percentages are kept; only amounts move.
func (r *Recalculator) Recalculate(ctx context.Context, inv *models.InvoiceSubmission) (bool, error) {
	if inv.TherapistID == 0 {
		return false, errors.New("invoice has no therapist")
	}
	q, err := InvoiceQuery(inv, r.calendarID, r.loc)
	if err != nil {
		return false, err
	}
	res, err := r.agg.Aggregate(ctx, q)
	if err != nil {
		return false, err
	}
	t := ComputeTotals(res.Subtotal, inv.CenterPercentage, inv.IRPFPercentage, inv.IVAPercentage)
	if !t.Apply(inv, len(res.Sessions)) {
		return false, nil
	}
	if err := r.store.UpdateInvoiceAmounts(ctx, inv); err != nil {
		return false, fmt.Errorf("save invoice %d: %w", inv.ID, err)
	}
	return true, nil
}

// RecalculateAll walks every stored invoice. One failing invoice does not stop the rest.
func (r *Recalculator) RecalculateAll(ctx context.Context) (Report, error) {
	var rep Report
	invoices, err := r.store.Invoices(ctx)
	if err != nil {
		return rep, fmt.Errorf("load invoices: %w", err)
	}
	for i := range invoices {
		inv := &invoices[i]
		rep.Checked++
		changed, err := r.Recalculate(ctx, inv)
		switch {
		case err != nil:
			rep.Failed++
			rep.Errors = append(rep.Errors, fmt.Sprintf("invoice %d: %v", inv.ID, err))
			metrics.InvoicesRecalculated.WithLabelValues("failed").Inc()
			r.log.Warn("invoice recalculation failed", zap.Uint("invoice_id", inv.ID), zap.Error(err))
		case changed:
			rep.Updated++
			metrics.InvoicesRecalculated.WithLabelValues("updated").Inc()
		default:
			rep.Unchanged++
			metrics.InvoicesRecalculated.WithLabelValues("unchanged").Inc()
		}
	}
	r.log.Info("invoices recalculated",
		zap.Int("checked", rep.Checked),
		zap.Int("updated", rep.Updated),
		zap.Int("failed", rep.Failed),
	)
	return rep, nil
}
