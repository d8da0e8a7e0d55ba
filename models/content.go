package models

import (
	"time"

	"gorm.io/datatypes"
)

type Workshop struct {
	ID              uint       `json:"id" gorm:"primaryKey"`
	Title           string     `json:"title" gorm:"not null"`
	Slug            string     `json:"slug" gorm:"size:160;uniqueIndex;not null"`
	Description     string     `json:"description" gorm:"type:text"`
	TherapistID     *uint      `json:"therapist_id" gorm:"index"`
	Therapist       *Therapist `json:"therapist,omitempty" gorm:"foreignKey:TherapistID;constraint:OnDelete:SET NULL"`
	StartsAt        time.Time  `json:"starts_at"`
	DurationMinutes int        `json:"duration_minutes"`
	Location        string     `json:"location"`
	Price           float64    `json:"price" gorm:"type:numeric(12,2)"`
	MaxParticipants int        `json:"max_participants"`
	IsActive        bool       `json:"is_active" gorm:"not null;default:true"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type WorkshopRegistration struct {
	ID         uint      `json:"id" gorm:"primaryKey"`
	WorkshopID uint      `json:"workshop_id" gorm:"index;not null"`
	Name       string    `json:"name" gorm:"not null"`
	Email      string    `json:"email" gorm:"not null"`
	Phone      string    `json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
}

// Post is a blog article.
type Post struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	Title       string         `json:"title" gorm:"not null"`
	Slug        string         `json:"slug" gorm:"size:160;uniqueIndex;not null"`
	Excerpt     string         `json:"excerpt"`
	Content     string         `json:"content" gorm:"type:text"`
	Author      string         `json:"author"`
	Tags        datatypes.JSON `json:"tags"`
	Published   bool           `json:"published"`
	PublishedAt *time.Time     `json:"published_at"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

type PricingPlan struct {
	ID              uint    `json:"id" gorm:"primaryKey"`
	Name            string  `json:"name" gorm:"not null"`
	Description     string  `json:"description"`
	Price           float64 `json:"price" gorm:"type:numeric(12,2)"`
	DurationMinutes int     `json:"duration_minutes"`
	SortOrder       int     `json:"sort_order"`
	IsActive        bool    `json:"is_active" gorm:"not null;default:true"`
}

type ContactMessage struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Name      string    `json:"name" gorm:"not null"`
	Email     string    `json:"email" gorm:"not null"`
	Phone     string    `json:"phone"`
	Subject   string    `json:"subject"`
	Message   string    `json:"message" gorm:"type:text;not null"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}
