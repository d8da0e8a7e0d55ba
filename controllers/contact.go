package controllers

import (
	"strings"

	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type contactDTO struct {
	Name    string `json:"name" validate:"required,max=120"`
	Email   string `json:"email" validate:"required,email"`
	Phone   string `json:"phone" validate:"omitempty,max=40"`
	Subject string `json:"subject" validate:"omitempty,max=200"`
	Message string `json:"message" validate:"required,max=5000"`
}

// SubmitContact stores the message, then emails the clinic and the sender. Mail
// failures are logged; the visitor still gets 200 once the row is stored.
func (h *Handler) SubmitContact(c *fiber.Ctx) error {
	var dto contactDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	msg := models.ContactMessage{
		Name:    dto.Name,
		Email:   strings.ToLower(dto.Email),
		Phone:   dto.Phone,
		Subject: dto.Subject,
		Message: dto.Message,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&msg).Error; err != nil {
		return err
	}

	ctx := c.UserContext()
	if to := h.Config.ContactRecipient; to != "" {
		if err := h.Mailer.SendContactNotification(ctx, to, msg); err != nil {
			h.Log.Warn("contact notification email failed", zap.Uint("contact_id", msg.ID), zap.Error(err))
		}
	}
	if err := h.Mailer.SendContactAcknowledgement(ctx, msg.Email, msg.Name); err != nil {
		h.Log.Warn("contact acknowledgement email failed", zap.Uint("contact_id", msg.ID), zap.Error(err))
	}
	h.notifyAdmins(ctx, "contact", "New contact message", msg.Name+": "+msg.Subject)

	return c.JSON(fiber.Map{"message": "success", "id": msg.ID})
}

func (h *Handler) ListContactMessages(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	db := h.DB.WithContext(c.UserContext()).Model(&models.ContactMessage{})
	if c.Query("unread") == "true" {
		db = db.Where("is_read = ?", false)
	}
	db = db.Session(&gorm.Session{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return err
	}
	var rows []models.ContactMessage
	if err := db.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"messages": rows, "total": total})
}

func (h *Handler) MarkContactRead(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Model(&models.ContactMessage{}).Where("id = ?", id).Update("is_read", true)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "message not found")
	}
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *Handler) DeleteContactMessage(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Delete(&models.ContactMessage{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "message not found")
	}
	h.audit(c, "delete", "contact_message", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}
