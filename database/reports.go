package database

import (
	"context"
	"fmt"
	"time"

	"consulta-backend/models"
	"consulta-backend/utils"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// GenerateRecurringExpenses copies every active template into Expense for year/month.
// Rows already generated for that period are left alone, so reruns create nothing.
func (s *Store) GenerateRecurringExpenses(ctx context.Context, year, month int, loc *time.Location) (int, error) {
	from, to, err := utils.MonthRange(year, month, loc)
	if err != nil {
		return 0, err
	}
	period := utils.Period(year, month)
	lastDay := to.AddDate(0, 0, -1).Day()

	created := 0
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var templates []models.RecurringExpense
		if err := tx.Where("is_active = ?", true).Order("id").Find(&templates).Error; err != nil {
			return err
		}
		for _, t := range templates {
			day := min(max(t.DayOfMonth, 1), lastDay)
			id := t.ID
			p := period
			exp := models.Expense{
				Date:               from.AddDate(0, 0, day-1),
				Category:           t.Category,
				Description:        t.Description,
				Amount:             utils.Round2(t.Amount),
				Vendor:             t.Vendor,
				RecurringExpenseID: &id,
				Period:             &p,
			}
			res := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "recurring_expense_id"}, {Name: "period"}},
				DoNothing: true,
			}).Create(&exp)
			if res.Error != nil {
				return fmt.Errorf("recurring expense %d: %w", t.ID, res.Error)
			}
			created += int(res.RowsAffected)
			if err := tx.Model(&models.RecurringExpense{}).Where("id = ?", t.ID).
				Update("last_generated_period", period).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return created, nil
}

// GenerateQuarterlyReport sums the quarter's invoices and expenses and upserts the
// report on (year, quarter). Net profit is the center's revenue minus expenses.
func (s *Store) GenerateQuarterlyReport(ctx context.Context, year, quarter int, loc *time.Location) (*models.QuarterlyReport, error) {
	from, to, err := utils.QuarterRange(year, quarter, loc)
	if err != nil {
		return nil, err
	}
	firstMonth := (quarter-1)*3 + 1

	db := s.db.WithContext(ctx)
	var invoices []models.InvoiceSubmission
	if err := db.Where("year = ? AND month BETWEEN ? AND ?", year, firstMonth, firstMonth+2).Find(&invoices).Error; err != nil {
		return nil, err
	}
	var expenses []models.Expense
	if err := db.Where("date >= ? AND date < ?", from.UTC(), to.UTC()).Find(&expenses).Error; err != nil {
		return nil, err
	}

	report := models.QuarterlyReport{Year: year, Quarter: quarter, InvoiceCount: len(invoices), GeneratedAt: time.Now()}
	for _, inv := range invoices {
		report.TotalRevenue += inv.Subtotal
		report.CenterRevenue += inv.CenterAmount
		report.TherapistPayouts += inv.TherapistAmount
		report.IRPFWithheld += inv.IRPFAmount
	}
	for _, e := range expenses {
		report.TotalExpenses += e.Amount
	}
	report.TotalRevenue = utils.Round2(report.TotalRevenue)
	report.CenterRevenue = utils.Round2(report.CenterRevenue)
	report.TherapistPayouts = utils.Round2(report.TherapistPayouts)
	report.IRPFWithheld = utils.Round2(report.IRPFWithheld)
	report.TotalExpenses = utils.Round2(report.TotalExpenses)
	report.NetProfit = utils.Round2(report.CenterRevenue - report.TotalExpenses)

	err = db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "year"}, {Name: "quarter"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"total_revenue", "center_revenue", "therapist_payouts", "irpf_withheld",
			"total_expenses", "net_profit", "invoice_count", "generated_at",
		}),
	}).Create(&report).Error
	if err != nil {
		return nil, err
	}
	var saved models.QuarterlyReport
	if err := db.Where("year = ? AND quarter = ?", year, quarter).First(&saved).Error; err != nil {
		return nil, err
	}
	return &saved, nil
}
