package models

import "time"

const (
	SessionScheduled = "scheduled"
	SessionCompleted = "completed"
	SessionCancelled = "cancelled"
)

// Patient is created lazily the first time sync recognizes a name in an event title.
// full_name is unique case-insensitively (see database.Migrate).
type Patient struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	FullName  string    `json:"full_name" gorm:"not null"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Notes     string    `json:"notes" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
}

// Session is the stored copy of one calendar event, upserted on GoogleEventID.
type Session struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	GoogleEventID   string     `json:"google_event_id" gorm:"size:255;uniqueIndex;not null"`
	Title           string     `json:"title"`
	TherapistID     *uint      `json:"therapist_id" gorm:"index"` // nil => unassigned
	Therapist       *Therapist `json:"therapist,omitempty" gorm:"foreignKey:TherapistID;constraint:OnDelete:SET NULL"`
	PatientID       *uint      `json:"patient_id" gorm:"index"`
	Patient         *Patient   `json:"patient,omitempty" gorm:"foreignKey:PatientID;constraint:OnDelete:SET NULL"`
	StartsAt        time.Time  `json:"starts_at" gorm:"index"`
	EndsAt          time.Time  `json:"ends_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Price           float64    `json:"price" gorm:"type:numeric(12,2)"`
	IsBillable      bool       `json:"is_billable"`
	Status          string     `json:"status" gorm:"size:20;not null;default:scheduled"`
	Color           string     `json:"color" gorm:"size:20"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

const (
	PaymentPending   = "pending"
	PaymentPaid      = "paid"
	PaymentCancelled = "cancelled"
)

// SessionPayment is the manual payment record for one calendar event. It joins to
// Session through EventID = Session.GoogleEventID; TherapistID is informational.
type SessionPayment struct {
	ID            uint       `json:"id" gorm:"primaryKey"`
	EventID       string     `json:"event_id" gorm:"size:255;uniqueIndex;not null"`
	TherapistID   *uint      `json:"therapist_id" gorm:"index"`
	PaymentType   string     `json:"payment_type" gorm:"size:20"`
	PaymentStatus string     `json:"payment_status" gorm:"size:20;not null;default:pending"`
	OriginalPrice *float64   `json:"original_price" gorm:"type:numeric(12,2)"`
	ModifiedPrice *float64   `json:"modified_price" gorm:"type:numeric(12,2)"`
	Notes         string     `json:"notes"`
	ReviewedBy    string     `json:"reviewed_by"`
	ReviewedAt    *time.Time `json:"reviewed_at"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}
