package models

import (
	"time"

	"gorm.io/datatypes"
)

// Notification targets one user, or every admin when UserID is nil.
type Notification struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    *string   `json:"user_id" gorm:"index"`
	Kind      string    `json:"kind" gorm:"size:40"`
	Title     string    `json:"title" gorm:"not null"`
	Message   string    `json:"message"`
	IsRead    bool      `json:"is_read"`
	CreatedAt time.Time `json:"created_at"`
}

type AuditLog struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	UserID    string         `json:"user_id" gorm:"index"`
	Action    string         `json:"action" gorm:"size:40;not null"`
	Entity    string         `json:"entity" gorm:"size:60;not null"`
	EntityID  string         `json:"entity_id"`
	Details   datatypes.JSON `json:"details"`
	CreatedAt time.Time      `json:"created_at" gorm:"index"`
}
