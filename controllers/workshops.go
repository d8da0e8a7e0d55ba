package controllers

import (
	"strings"
	"time"

	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type workshopDTO struct {
	Title           string    `json:"title" validate:"required,max=200"`
	Slug            string    `json:"slug" validate:"omitempty,max=160"`
	Description     string    `json:"description"`
	TherapistID     *uint     `json:"therapist_id"`
	StartsAt        time.Time `json:"starts_at" validate:"required"`
	DurationMinutes int       `json:"duration_minutes" validate:"gte=0"`
	Location        string    `json:"location"`
	Price           float64   `json:"price" validate:"gte=0"`
	MaxParticipants int       `json:"max_participants" validate:"gte=0"`
}

type updateWorkshopDTO struct {
	Title           *string    `json:"title" validate:"omitempty,max=200"`
	Slug            *string    `json:"slug" validate:"omitempty,max=160"`
	Description     *string    `json:"description"`
	TherapistID     *uint      `json:"therapist_id"`
	StartsAt        *time.Time `json:"starts_at"`
	DurationMinutes *int       `json:"duration_minutes" validate:"omitempty,gte=0"`
	Location        *string    `json:"location"`
	Price           *float64   `json:"price" validate:"omitempty,gte=0"`
	MaxParticipants *int       `json:"max_participants" validate:"omitempty,gte=0"`
	IsActive        *bool      `json:"is_active"`
}

type registrationDTO struct {
	Name  string `json:"name" validate:"required,max=120"`
	Email string `json:"email" validate:"required,email"`
	Phone string `json:"phone" validate:"omitempty,max=40"`
}

type workshopView struct {
	models.Workshop
	Registered int64 `json:"registered"`
	SpotsLeft  *int  `json:"spots_left,omitempty"`
}

func (h *Handler) workshopViews(db *gorm.DB, rows []models.Workshop) ([]workshopView, error) {
	out := make([]workshopView, 0, len(rows))
	for _, w := range rows {
		v := workshopView{Workshop: w}
		if err := db.Model(&models.WorkshopRegistration{}).Where("workshop_id = ?", w.ID).Count(&v.Registered).Error; err != nil {
			return nil, err
		}
		if w.MaxParticipants > 0 {
			left := max(w.MaxParticipants-int(v.Registered), 0)
			v.SpotsLeft = &left
		}
		out = append(out, v)
	}
	return out, nil
}

// ListWorkshops shows active workshops that have not started yet.
func (h *Handler) ListWorkshops(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext())
	var rows []models.Workshop
	err := db.Preload("Therapist").
		Where("is_active = ? AND starts_at >= ?", true, time.Now().UTC()).
		Order("starts_at ASC").
		Find(&rows).Error
	if err != nil {
		return err
	}
	views, err := h.workshopViews(db, rows)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"workshops": views})
}

func (h *Handler) GetWorkshop(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext())
	var w models.Workshop
	if err := db.Preload("Therapist").Where("slug = ? AND is_active = ?", c.Params("slug"), true).First(&w).Error; err != nil {
		return err
	}
	views, err := h.workshopViews(db, []models.Workshop{w})
	if err != nil {
		return err
	}
	return c.JSON(views[0])
}

// RegisterForWorkshop signs a visitor up; 409 when the workshop is full or the email
// is already registered.
func (h *Handler) RegisterForWorkshop(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto registrationDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	email := strings.ToLower(dto.Email)

	var reg models.WorkshopRegistration
	err = h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		var w models.Workshop
		q := tx
		if tx.Dialector.Name() == "postgres" {
			q = tx.Clauses(clause.Locking{Strength: "UPDATE"})
		}
		if err := q.Where("id = ? AND is_active = ?", id, true).First(&w).Error; err != nil {
			return err
		}
		var dup int64
		if err := tx.Model(&models.WorkshopRegistration{}).Where("workshop_id = ? AND email = ?", id, email).Count(&dup).Error; err != nil {
			return err
		}
		if dup > 0 {
			return fiber.NewError(fiber.StatusConflict, "already registered")
		}
		if w.MaxParticipants > 0 {
			var n int64
			if err := tx.Model(&models.WorkshopRegistration{}).Where("workshop_id = ?", id).Count(&n).Error; err != nil {
				return err
			}
			if int(n) >= w.MaxParticipants {
				return fiber.NewError(fiber.StatusConflict, "workshop is full")
			}
		}
		reg = models.WorkshopRegistration{WorkshopID: id, Name: dto.Name, Email: email, Phone: dto.Phone}
		return tx.Create(&reg).Error
	})
	if err != nil {
		return err
	}
	return c.Status(fiber.StatusCreated).JSON(reg)
}

func (h *Handler) AdminListWorkshops(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext())
	var rows []models.Workshop
	if err := db.Preload("Therapist").Order("starts_at DESC").Find(&rows).Error; err != nil {
		return err
	}
	views, err := h.workshopViews(db, rows)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"workshops": views})
}

func (h *Handler) ListWorkshopRegistrations(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var rows []models.WorkshopRegistration
	if err := h.DB.WithContext(c.UserContext()).Where("workshop_id = ?", id).Order("created_at ASC").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"registrations": rows})
}

func (h *Handler) CreateWorkshop(c *fiber.Ctx) error {
	var dto workshopDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	if dto.Slug == "" {
		dto.Slug = utils.Slugify(dto.Title)
	}
	w := models.Workshop{
		Title:           dto.Title,
		Slug:            dto.Slug,
		Description:     dto.Description,
		TherapistID:     dto.TherapistID,
		StartsAt:        dto.StartsAt.UTC(),
		DurationMinutes: dto.DurationMinutes,
		Location:        dto.Location,
		Price:           dto.Price,
		MaxParticipants: dto.MaxParticipants,
		IsActive:        true,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&w).Error; err != nil {
		return err
	}
	h.audit(c, "create", "workshop", w.ID, fiber.Map{"title": w.Title})
	return c.Status(fiber.StatusCreated).JSON(w)
}

func (h *Handler) UpdateWorkshop(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto updateWorkshopDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)
	if dto.StartsAt != nil {
		utc := dto.StartsAt.UTC()
		dto.StartsAt = &utc
	}
	updates := utils.UpdatesFromPtrDTO(&dto, nil)

	db := h.DB.WithContext(c.UserContext())
	var w models.Workshop
	if err := db.First(&w, id).Error; err != nil {
		return err
	}
	if len(updates) > 0 {
		if err := db.Model(&w).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&w, id).Error; err != nil {
		return err
	}
	h.audit(c, "update", "workshop", id, updates)
	return c.JSON(w)
}

func (h *Handler) DeleteWorkshop(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	err = h.DB.WithContext(c.UserContext()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("workshop_id = ?", id).Delete(&models.WorkshopRegistration{}).Error; err != nil {
			return err
		}
		res := tx.Delete(&models.Workshop{}, id)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return fiber.NewError(fiber.StatusNotFound, "workshop not found")
		}
		return nil
	})
	if err != nil {
		return err
	}
	h.audit(c, "delete", "workshop", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}
