package controllers

import (
	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type pricingPlanDTO struct {
	Name            string  `json:"name" validate:"required,max=120"`
	Description     string  `json:"description"`
	Price           float64 `json:"price" validate:"gte=0"`
	DurationMinutes int     `json:"duration_minutes" validate:"gte=0"`
	SortOrder       int     `json:"sort_order"`
}

type updatePricingPlanDTO struct {
	Name            *string  `json:"name" validate:"omitempty,max=120"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price" validate:"omitempty,gte=0"`
	DurationMinutes *int     `json:"duration_minutes" validate:"omitempty,gte=0"`
	SortOrder       *int     `json:"sort_order"`
	IsActive        *bool    `json:"is_active"`
}

func (h *Handler) ListPricing(c *fiber.Ctx) error {
	var rows []models.PricingPlan
	if err := h.DB.WithContext(c.UserContext()).Where("is_active = ?", true).Order("sort_order ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"plans": rows})
}

func (h *Handler) AdminListPricing(c *fiber.Ctx) error {
	var rows []models.PricingPlan
	if err := h.DB.WithContext(c.UserContext()).Order("sort_order ASC").Order("id ASC").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"plans": rows})
}

func (h *Handler) CreatePricingPlan(c *fiber.Ctx) error {
	var dto pricingPlanDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	p := models.PricingPlan{
		Name:            dto.Name,
		Description:     dto.Description,
		Price:           dto.Price,
		DurationMinutes: dto.DurationMinutes,
		SortOrder:       dto.SortOrder,
		IsActive:        true,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&p).Error; err != nil {
		return err
	}
	h.audit(c, "create", "pricing_plan", p.ID, fiber.Map{"name": p.Name, "price": p.Price})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) UpdatePricingPlan(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto updatePricingPlanDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)
	updates := utils.UpdatesFromPtrDTO(&dto, nil)

	db := h.DB.WithContext(c.UserContext())
	var p models.PricingPlan
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
	h.audit(c, "update", "pricing_plan", id, updates)
	return c.JSON(p)
}

func (h *Handler) DeletePricingPlan(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Delete(&models.PricingPlan{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "pricing plan not found")
	}
	h.audit(c, "delete", "pricing_plan", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}
