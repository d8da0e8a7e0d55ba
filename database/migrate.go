package database

import (
	"fmt"

	"consulta-backend/models"

	"gorm.io/gorm"
)

// Migrate applies idempotent schema migrations:
// - AutoMigrate (tables/columns/tag indexes)
// - case-insensitive patient names and session lookup indexes
// - on postgres only: money columns as NUMERIC(12,2) and CHECK constraints
func Migrate(db *gorm.DB) error {
	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&models.User{},
			&models.Therapist{},
			&models.TherapistSpecialty{},
			&models.Workshop{},
			&models.WorkshopRegistration{},
			&models.Post{},
			&models.PricingPlan{},
			&models.ContactMessage{},
			&models.Patient{},
			&models.Session{},
			&models.SessionPayment{},
			&models.InvoiceSubmission{},
			&models.QuarterlyReport{},
			&models.Expense{},
			&models.RecurringExpense{},
			&models.Notification{},
			&models.AuditLog{},
			&models.IdempotencyKey{},
		); err != nil {
			return fmt.Errorf("automigrate failed: %w", err)
		}

		indexes := []string{
			`CREATE UNIQUE INDEX IF NOT EXISTS idx_patients_full_name_lower ON patients (LOWER(full_name))`,
			`CREATE INDEX IF NOT EXISTS idx_sessions_therapist_starts ON sessions (therapist_id, starts_at)`,
			`CREATE INDEX IF NOT EXISTS idx_workshop_registrations_email ON workshop_registrations (workshop_id, email)`,
		}
		for _, stmt := range indexes {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("index migration failed on: %s - %w", stmt, err)
			}
		}

		if tx.Dialector.Name() != "postgres" {
			return nil
		}

		// numeric(12,2) tags are already on the models; pin the percentages too.
		alters := []string{
			`ALTER TABLE invoice_submissions ALTER COLUMN center_percentage TYPE numeric(5,2)`,
			`ALTER TABLE invoice_submissions ALTER COLUMN irpf_percentage   TYPE numeric(5,2)`,
			`ALTER TABLE invoice_submissions ALTER COLUMN iva_percentage    TYPE numeric(5,2)`,
		}
		for _, stmt := range alters {
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("money type migration failed on: %s - %w", stmt, err)
			}
		}

		checks := []struct{ table, name, expr string }{
			{"sessions", "chk_sessions_price_nonneg", "price >= 0"},
			{"sessions", "chk_sessions_status", "status IN ('scheduled','completed','cancelled')"},
			{"session_payments", "chk_session_payments_status", "payment_status IN ('pending','paid','cancelled')"},
			{"invoice_submissions", "chk_invoice_submissions_month", "month BETWEEN 1 AND 12"},
			{"invoice_submissions", "chk_invoice_submissions_status", "status IN ('draft','closed')"},
			{"quarterly_reports", "chk_quarterly_reports_quarter", "quarter BETWEEN 1 AND 4"},
			{"expenses", "chk_expenses_amount_nonneg", "amount >= 0"},
			{"recurring_expenses", "chk_recurring_expenses_day", "day_of_month BETWEEN 1 AND 28"},
		}
		for _, c := range checks {
			stmt := fmt.Sprintf(`DO $$
BEGIN
	IF NOT EXISTS (
		SELECT 1 FROM pg_constraint
		WHERE conrelid = '%s'::regclass
		  AND conname  = '%s'
	) THEN
		ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
	END IF;
END $$;`, c.table, c.name, c.table, c.name, c.expr)
			if err := tx.Exec(stmt).Error; err != nil {
				return fmt.Errorf("check constraint migration failed on %s: %w", c.name, err)
			}
		}
		return nil
	})
}
