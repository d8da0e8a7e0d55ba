package controllers

import (
	"consulta-backend/middlewares"
	"consulta-backend/models"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// notificationScope keeps the caller's own notifications, plus the admin broadcasts
// (user_id NULL) for admins.
func notificationScope(c *fiber.Ctx) func(*gorm.DB) *gorm.DB {
	uid := middlewares.UserID(c)
	admin := middlewares.Role(c) == models.RoleAdmin
	return func(db *gorm.DB) *gorm.DB {
		if admin {
			return db.Where("user_id = ? OR user_id IS NULL", uid)
		}
		return db.Where("user_id = ?", uid)
	}
}

func (h *Handler) ListNotifications(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	db := h.DB.WithContext(c.UserContext()).Model(&models.Notification{}).Scopes(notificationScope(c))
	if c.Query("unread") == "true" {
		db = db.Where("is_read = ?", false)
	}
	var unread int64
	if err := h.DB.WithContext(c.UserContext()).Model(&models.Notification{}).
		Scopes(notificationScope(c)).Where("is_read = ?", false).Count(&unread).Error; err != nil {
		return err
	}
	var rows []models.Notification
	if err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"notifications": rows, "unread": unread})
}

func (h *Handler) MarkNotificationRead(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Model(&models.Notification{}).
		Scopes(notificationScope(c)).
		Where("id = ?", id).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "notification not found")
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *Handler) MarkAllNotificationsRead(c *fiber.Ctx) error {
	res := h.DB.WithContext(c.UserContext()).Model(&models.Notification{}).
		Scopes(notificationScope(c)).
		Where("is_read = ?", false).
		Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	return c.JSON(fiber.Map{"message": "success", "updated": res.RowsAffected})
}
