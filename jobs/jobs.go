// Package jobs schedules the periodic billing routines.
package jobs

import (
	"context"
	"time"

	"consulta-backend/billing"
	"consulta-backend/utils"

	"github.com/go-co-op/gocron"
	"go.uber.org/zap"
)

const jobTimeout = 5 * time.Minute

// ExpenseGenerator is the slice of database.Store used by the monthly job.
type ExpenseGenerator interface {
	GenerateRecurringExpenses(ctx context.Context, year, month int, loc *time.Location) (int, error)
}

// Runner holds the routines each job calls. Every method logs and drops its error.
type Runner struct {
	Syncer       *billing.Syncer
	Recalculator *billing.Recalculator
	Expenses     ExpenseGenerator
	CalendarID   string
	Location     *time.Location
	Log          *zap.Logger

	now func() time.Time
}

func (r *Runner) clock() time.Time {
	if r.now != nil {
		return r.now().In(r.Location)
	}
	return time.Now().In(r.Location)
}

// SyncCurrentMonth materializes the calendar for the month containing now.
func (r *Runner) SyncCurrentMonth() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := r.clock()
	from, to, err := utils.MonthRange(now.Year(), int(now.Month()), r.Location)
	if err != nil {
		r.Log.Error("sync job: bad period", zap.Error(err))
		return
	}
	rep, err := r.Syncer.Sync(ctx, r.CalendarID, from, to)
	if err != nil {
		r.Log.Error("sync job failed", zap.Error(err))
		return
	}
	r.Log.Info("sync job done",
		zap.Int("fetched", rep.Fetched),
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("failed", rep.Failed),
	)
}

func (r *Runner) RecalculateInvoices() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if _, err := r.Recalculator.RecalculateAll(ctx); err != nil {
		r.Log.Error("recalculation job failed", zap.Error(err))
	}
}

func (r *Runner) GenerateRecurringExpenses() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	now := r.clock()
	n, err := r.Expenses.GenerateRecurringExpenses(ctx, now.Year(), int(now.Month()), r.Location)
	if err != nil {
		r.Log.Error("recurring expense job failed", zap.Error(err))
		return
	}
	r.Log.Info("recurring expenses generated", zap.Int("created", n), zap.String("period", utils.Period(now.Year(), int(now.Month()))))
}

// Start registers the jobs and starts the scheduler in the background:
// hourly sync, nightly recalculation, recurring expenses on the 1st.
func Start(r *Runner) (*gocron.Scheduler, error) {
	if r.Location == nil {
		r.Location = time.UTC
	}
	scheduler := gocron.NewScheduler(r.Location)
	scheduler.SingletonModeAll()

	if _, err := scheduler.Every(1).Hour().Do(r.SyncCurrentMonth); err != nil {
		return nil, err
	}
	if _, err := scheduler.Every(1).Day().At("03:00").Do(r.RecalculateInvoices); err != nil {
		return nil, err
	}
	if _, err := scheduler.Every(1).Month(1).At("02:00").Do(r.GenerateRecurringExpenses); err != nil {
		return nil, err
	}

	scheduler.StartAsync()
	r.Log.Info("jobs scheduler started", zap.Int("jobs", len(scheduler.Jobs())))
	return scheduler, nil
}
