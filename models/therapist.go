package models

import (
	"time"

	"gorm.io/datatypes"
)

// Therapist is a clinic professional. Rows are deactivated, not deleted, unless an
// admin asks for a permanent delete.
type Therapist struct {
	ID          uint                 `json:"id" gorm:"primaryKey"`
	Name        string               `json:"name" gorm:"not null"`
	Slug        string               `json:"slug" gorm:"size:120;uniqueIndex;not null"`
	Title       string               `json:"title"`
	Bio         string               `json:"bio" gorm:"type:text"`
	PhotoURL    string               `json:"photo_url"`
	Email       string               `json:"email"`
	Phone       string               `json:"phone"`
	CalendarTag string               `json:"calendar_tag" gorm:"size:60;index"` // token between slashes in event titles
	Aliases     datatypes.JSON       `json:"aliases"`                           // extra names matched in titles
	Color       string               `json:"color" gorm:"size:20"`
	IsManager   bool                 `json:"is_manager"` // manager's own sessions are never billed
	IsActive    bool                 `json:"is_active" gorm:"not null;default:true"`
	SortOrder   int                  `json:"sort_order"`
	Specialties []TherapistSpecialty `json:"specialties" gorm:"foreignKey:TherapistID;constraint:OnDelete:CASCADE"`
	CreatedAt   time.Time            `json:"created_at"`
	UpdatedAt   time.Time            `json:"updated_at"`
}

type TherapistSpecialty struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	TherapistID uint   `json:"-" gorm:"index;not null"`
	Name        string `json:"name" gorm:"not null"`
}
