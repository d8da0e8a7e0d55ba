package controllers

import (
	"strings"

	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

type patientDTO struct {
	FullName string `json:"full_name" validate:"required,max=200"`
	Email    string `json:"email" validate:"omitempty,email"`
	Phone    string `json:"phone" validate:"omitempty,max=40"`
	Notes    string `json:"notes"`
}

type updatePatientDTO struct {
	FullName *string `json:"full_name" validate:"omitempty,max=200"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Phone    *string `json:"phone" validate:"omitempty,max=40"`
	Notes    *string `json:"notes"`
}

// ListPatients supports ?q= as a case-insensitive name filter.
func (h *Handler) ListPatients(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	db := h.DB.WithContext(c.UserContext()).Model(&models.Patient{})
	if q := strings.TrimSpace(c.Query("q")); q != "" {
		db = db.Where("LOWER(full_name) LIKE ?", "%"+strings.ToLower(q)+"%")
	}
	db = db.Session(&gorm.Session{})
	var total int64
	if err := db.Count(&total).Error; err != nil {
		return err
	}
	var rows []models.Patient
	if err := db.Order("full_name ASC").Limit(limit).Offset(offset).Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"patients": rows, "total": total})
}

// GetPatient returns the patient with its stored sessions, newest first.
func (h *Handler) GetPatient(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	db := h.DB.WithContext(c.UserContext())
	var p models.Patient
	if err := db.First(&p, id).Error; err != nil {
		return err
	}
	var sessions []models.Session
	if err := db.Preload("Therapist").Where("patient_id = ?", id).Order("starts_at DESC").Find(&sessions).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"patient": p, "sessions": sessions})
}

func (h *Handler) CreatePatient(c *fiber.Ctx) error {
	var dto patientDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	db := h.DB.WithContext(c.UserContext())
	var count int64
	if err := db.Model(&models.Patient{}).Where("LOWER(full_name) = ?", strings.ToLower(dto.FullName)).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "patient already exists")
	}
	p := models.Patient{FullName: dto.FullName, Email: dto.Email, Phone: dto.Phone, Notes: dto.Notes}
	if err := db.Create(&p).Error; err != nil {
		return err
	}
	h.audit(c, "create", "patient", p.ID, nil)
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) UpdatePatient(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto updatePatientDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)
	updates := utils.UpdatesFromPtrDTO(&dto, nil)

	db := h.DB.WithContext(c.UserContext())
	var p models.Patient
	if err := db.First(&p, id).Error; err != nil {
		return err
	}
	if len(updates) > 0 {
		if err := db.Model(&p).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&p, id).Error; err != nil {
		return err
	}
	h.audit(c, "update", "patient", id, nil)
	return c.JSON(p)
}

// DeletePatient keeps the sessions and clears their patient link.
func (h *Handler) DeletePatient(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	err = h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&models.Session{}).Where("patient_id = ?", id).Update("patient_id", nil).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Patient{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "patient not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.audit(c, "delete", "patient", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}
