package models

import (
	"time"

	"gorm.io/datatypes"
)

const (
	InvoiceDraft  = "draft"
	InvoiceClosed = "closed"
)

// InvoiceSubmission is one therapist's invoice for one month.
// TotalAmount = Subtotal - CenterAmount - IRPFAmount; IVA is informational.
type InvoiceSubmission struct {
	ID                 uint           `json:"id" gorm:"primaryKey"`
	TherapistID        uint           `json:"therapist_id" gorm:"not null;uniqueIndex:idx_invoice_submissions_period,priority:1"`
	Therapist          *Therapist     `json:"therapist,omitempty" gorm:"foreignKey:TherapistID;constraint:OnDelete:RESTRICT"`
	Year               int            `json:"year" gorm:"not null;uniqueIndex:idx_invoice_submissions_period,priority:2"`
	Month              int            `json:"month" gorm:"not null;uniqueIndex:idx_invoice_submissions_period,priority:3"`
	Subtotal           float64        `json:"subtotal" gorm:"type:numeric(12,2)"`
	CenterPercentage   float64        `json:"center_percentage"`
	CenterAmount       float64        `json:"center_amount" gorm:"type:numeric(12,2)"`
	TherapistAmount    float64        `json:"therapist_amount" gorm:"type:numeric(12,2)"`
	IRPFPercentage     float64        `json:"irpf_percentage"`
	IRPFAmount         float64        `json:"irpf_amount" gorm:"type:numeric(12,2)"`
	IVAPercentage      float64        `json:"iva_percentage"`
	IVAAmount          float64        `json:"iva_amount" gorm:"type:numeric(12,2)"`
	TotalAmount        float64        `json:"total_amount" gorm:"type:numeric(12,2)"`
	SessionCount       int            `json:"session_count"`
	ExcludedSessionIDs datatypes.JSON `json:"excluded_session_ids"`
	Status             string         `json:"status" gorm:"size:20;not null;default:draft"`
	Notes              string         `json:"notes"`
	ClosedAt           *time.Time     `json:"closed_at"`
	CreatedAt          time.Time      `json:"created_at"`
	UpdatedAt          time.Time      `json:"updated_at"`
}

type QuarterlyReport struct {
	ID               uint      `json:"id" gorm:"primaryKey"`
	Year             int       `json:"year" gorm:"not null;uniqueIndex:idx_quarterly_reports_period,priority:1"`
	Quarter          int       `json:"quarter" gorm:"not null;uniqueIndex:idx_quarterly_reports_period,priority:2"`
	TotalRevenue     float64   `json:"total_revenue" gorm:"type:numeric(12,2)"`
	CenterRevenue    float64   `json:"center_revenue" gorm:"type:numeric(12,2)"`
	TherapistPayouts float64   `json:"therapist_payouts" gorm:"type:numeric(12,2)"`
	IRPFWithheld     float64   `json:"irpf_withheld" gorm:"type:numeric(12,2)"`
	TotalExpenses    float64   `json:"total_expenses" gorm:"type:numeric(12,2)"`
	NetProfit        float64   `json:"net_profit" gorm:"type:numeric(12,2)"`
	InvoiceCount     int       `json:"invoice_count"`
	GeneratedAt      time.Time `json:"generated_at"`
}

type Expense struct {
	ID                 uint      `json:"id" gorm:"primaryKey"`
	Date               time.Time `json:"date" gorm:"index;not null"`
	Category           string    `json:"category" gorm:"size:60;not null"`
	Description        string    `json:"description"`
	Amount             float64   `json:"amount" gorm:"type:numeric(12,2)"`
	Vendor             string    `json:"vendor"`
	RecurringExpenseID *uint     `json:"recurring_expense_id" gorm:"uniqueIndex:idx_expenses_recurring_period,priority:1"`
	Period             *string   `json:"period" gorm:"size:7;uniqueIndex:idx_expenses_recurring_period,priority:2"` // YYYY-MM for generated rows
	CreatedAt          time.Time `json:"created_at"`
}

// RecurringExpense is a template copied into Expense once per month.
type RecurringExpense struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	Category            string    `json:"category" gorm:"size:60;not null"`
	Description         string    `json:"description"`
	Amount              float64   `json:"amount" gorm:"type:numeric(12,2)"`
	Vendor              string    `json:"vendor"`
	DayOfMonth          int       `json:"day_of_month" gorm:"not null;default:1"`
	IsActive            bool      `json:"is_active" gorm:"not null;default:true"`
	LastGeneratedPeriod string    `json:"last_generated_period" gorm:"size:7"`
	CreatedAt           time.Time `json:"created_at"`
}
