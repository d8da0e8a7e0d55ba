package controllers

import (
	"errors"
	"strings"

	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type therapistLoginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type createTherapistDTO struct {
	Name        string             `json:"name" validate:"required,max=120"`
	Slug        string             `json:"slug" validate:"omitempty,max=120"`
	Title       string             `json:"title"`
	Bio         string             `json:"bio"`
	PhotoURL    string             `json:"photo_url" validate:"omitempty,url"`
	Email       string             `json:"email" validate:"omitempty,email"`
	Phone       string             `json:"phone"`
	CalendarTag string             `json:"calendar_tag" validate:"omitempty,max=60"`
	Aliases     utils.StringList   `json:"aliases"`
	Color       string             `json:"color" validate:"omitempty,max=20"`
	IsManager   bool               `json:"is_manager"`
	SortOrder   int                `json:"sort_order"`
	Specialties utils.StringList   `json:"specialties"`
	Login       *therapistLoginDTO `json:"login"`
}

type updateTherapistDTO struct {
	Name        *string           `json:"name" validate:"omitempty,max=120"`
	Slug        *string           `json:"slug" validate:"omitempty,max=120"`
	Title       *string           `json:"title"`
	Bio         *string           `json:"bio"`
	PhotoURL    *string           `json:"photo_url" validate:"omitempty,url"`
	Email       *string           `json:"email" validate:"omitempty,email"`
	Phone       *string           `json:"phone"`
	CalendarTag *string           `json:"calendar_tag" validate:"omitempty,max=60"`
	Aliases     *utils.StringList `json:"aliases"`
	Color       *string           `json:"color" validate:"omitempty,max=20"`
	IsManager   *bool             `json:"is_manager"`
	IsActive    *bool             `json:"is_active"`
	SortOrder   *int              `json:"sort_order"`
	Specialties *utils.StringList `json:"specialties"`
}

func specialtyRows(names utils.StringList) []models.TherapistSpecialty {
	rows := make([]models.TherapistSpecialty, 0, len(names))
	for _, n := range names {
		rows = append(rows, models.TherapistSpecialty{Name: n})
	}
	return rows
}

// ListTherapists is the public team page: active therapists only.
func (h *Handler) ListTherapists(c *fiber.Ctx) error {
	var out []models.Therapist
	err := h.DB.WithContext(c.UserContext()).
		Preload("Specialties").
		Where("is_active = ?", true).
		Order("sort_order ASC").Order("name ASC").
		Find(&out).Error
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"therapists": out})
}

func (h *Handler) GetTherapist(c *fiber.Ctx) error {
	var t models.Therapist
	err := h.DB.WithContext(c.UserContext()).
		Preload("Specialties").
		Where("slug = ? AND is_active = ?", c.Params("slug"), true).
		First(&t).Error
	if err != nil {
		return err
	}
	return c.JSON(t)
}

func (h *Handler) AdminListTherapists(c *fiber.Ctx) error {
	var out []models.Therapist
	if err := h.DB.WithContext(c.UserContext()).Preload("Specialties").Order("sort_order ASC").Order("id ASC").Find(&out).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"therapists": out})
}

// CreateTherapist stores the therapist, its specialties and the optional login in one
// transaction. The welcome email goes out after commit.
func (h *Handler) CreateTherapist(c *fiber.Ctx) error {
	var dto createTherapistDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	if dto.Slug == "" {
		dto.Slug = utils.Slugify(dto.Name)
	}
	if dto.CalendarTag == "" {
		if words := utils.Words(dto.Name); len(words) > 0 {
			dto.CalendarTag = words[0]
		}
	}

	t := models.Therapist{
		Name:        dto.Name,
		Slug:        dto.Slug,
		Title:       dto.Title,
		Bio:         dto.Bio,
		PhotoURL:    dto.PhotoURL,
		Email:       dto.Email,
		Phone:       dto.Phone,
		CalendarTag: dto.CalendarTag,
		Aliases:     jsonList(dto.Aliases),
		Color:       dto.Color,
		IsManager:   dto.IsManager,
		IsActive:    true,
		SortOrder:   dto.SortOrder,
		Specialties: specialtyRows(dto.Specialties),
	}

	var user *models.User
	err := h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&t).Error; err != nil {
			return err
		}
		if dto.Login == nil {
			return nil
		}
		email := strings.ToLower(strings.TrimSpace(dto.Login.Email))
		var count int64
		if err := tx.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			return fiber.NewError(fiber.StatusConflict, "email already exists")
		}
		user = &models.User{Name: t.Name, Email: email, Role: models.RoleTherapist, TherapistID: &t.ID}
		if err := user.SetPassword(dto.Login.Password); err != nil {
			return err
		}
		return tx.Create(user).Error
	})
	if err != nil {
		return err
	}

	if user != nil {
		if err := h.Mailer.SendWelcome(c.UserContext(), user.Email, user.Name); err != nil {
			h.Log.Warn("welcome email failed", zap.Uint("therapist_id", t.ID), zap.Error(err))
		}
	}
	h.audit(c, "create", "therapist", t.ID, fiber.Map{"name": t.Name, "login": user != nil})
	return c.Status(fiber.StatusCreated).JSON(t)
}

func (h *Handler) UpdateTherapist(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto updateTherapistDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	updates := utils.UpdatesFromPtrDTO(&dto, nil)
	delete(updates, "specialties")

	var t models.Therapist
	err = h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&t, id).Error; err != nil {
			return err
		}
		if len(updates) > 0 {
			if err := tx.Model(&t).Updates(updates).Error; err != nil {
				return err
			}
		}
		if dto.Specialties != nil {
			if err := tx.Where("therapist_id = ?", id).Delete(&models.TherapistSpecialty{}).Error; err != nil {
				return err
			}
			rows := specialtyRows(*dto.Specialties)
			for i := range rows {
				rows[i].TherapistID = id
			}
			if len(rows) > 0 {
				if err := tx.Create(&rows).Error; err != nil {
					return err
				}
			}
		}
		return tx.Preload("Specialties").First(&t, id).Error
	})
	if err != nil {
		return err
	}
	h.audit(c, "update", "therapist", id, updates)
	return c.JSON(t)
}

// DeactivateTherapist hides the therapist; sessions and invoices keep resolving to it.
func (h *Handler) DeactivateTherapist(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Model(&models.Therapist{}).Where("id = ?", id).Update("is_active", false)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "therapist not found")
	}
	h.audit(c, "deactivate", "therapist", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}

// DeleteTherapistPermanent removes the therapist and its specialties and unlinks logins.
// Invoices still pointing at it block the delete.
func (h *Handler) DeleteTherapistPermanent(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	err = h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var t models.Therapist
		if err := tx.First(&t, id).Error; err != nil {
			return err
		}
		var invoices int64
		if err := tx.Model(&models.InvoiceSubmission{}).Where("therapist_id = ?", id).Count(&invoices).Error; err != nil {
			return err
		}
		if invoices > 0 {
			return fiber.NewError(fiber.StatusConflict, "therapist has invoices; deactivate instead")
		}
		if err := tx.Model(&models.User{}).Where("therapist_id = ?", id).Update("therapist_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Model(&models.Session{}).Where("therapist_id = ?", id).Update("therapist_id", nil).Error; err != nil {
			return err
		}
		if err := tx.Where("therapist_id = ?", id).Delete(&models.TherapistSpecialty{}).Error; err != nil {
			return err
		}
		return tx.Delete(&t).Error
	})
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusNotFound, "therapist not found")
		}
		return err
	}
	h.audit(c, "delete", "therapist", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}
