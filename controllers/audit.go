package controllers

import (
	"consulta-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// ListAuditLogs pages through the audit trail, newest first. Filters: entity, user_id.
func (h *Handler) ListAuditLogs(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	db := h.DB.WithContext(c.UserContext()).Model(&models.AuditLog{})
	if e := c.Query("entity"); e != "" {
		db = db.Where("entity = ?", e)
	}
	if u := c.Query("user_id"); u != "" {
		db = db.Where("user_id = ?", u)
	}
	db = db.Session(&gorm.Session{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return err
	}
	var rows []models.AuditLog
	if err := db.Order("created_at DESC").Order("id DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"logs": rows, "total": total})
}
