package controllers

import (
	"errors"
	"strings"

	"consulta-backend/middlewares"
	"consulta-backend/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type loginDTO struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type registerDTO struct {
	Name        string `json:"name" validate:"required,max=120"`
	Email       string `json:"email" validate:"required,email"`
	Password    string `json:"password" validate:"required,min=8"`
	Role        string `json:"role" validate:"omitempty,oneof=admin therapist"`
	TherapistID *uint  `json:"therapist_id"`
}

type changePasswordDTO struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=8,nefield=CurrentPassword"`
}

var errInvalidCredentials = fiber.NewError(fiber.StatusUnauthorized, "invalid credentials")

func (h *Handler) Login(c *fiber.Ctx) error {
	var dto loginDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	var user models.User
	err := h.DB.WithContext(c.UserContext()).Where("LOWER(email) = ?", strings.ToLower(strings.TrimSpace(dto.Email))).First(&user).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return errInvalidCredentials
		}
		return err
	}
	if err := user.ComparePassword(dto.Password); err != nil {
		return errInvalidCredentials
	}

	token, err := h.Auth.GenerateJWT(user.Id, user.Role, user.TherapistID)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"token": token,
		"user":  user,
	})
}

// Register creates a login; admin only.
func (h *Handler) Register(c *fiber.Ctx) error {
	var dto registerDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	email := strings.ToLower(strings.TrimSpace(dto.Email))
	if dto.Role == "" {
		dto.Role = models.RoleTherapist
	}

	db := h.DB.WithContext(c.UserContext())
	var count int64
	if err := db.Model(&models.User{}).Where("LOWER(email) = ?", email).Count(&count).Error; err != nil {
		return err
	}
	if count > 0 {
		return fiber.NewError(fiber.StatusConflict, "email already exists")
	}
	if dto.TherapistID != nil {
		if err := db.Select("id").First(&models.Therapist{}, *dto.TherapistID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fiber.NewError(fiber.StatusBadRequest, "therapist_id does not exist")
			}
			return err
		}
	}

	user := models.User{
		Name:        strings.TrimSpace(dto.Name),
		Email:       email,
		Role:        dto.Role,
		TherapistID: dto.TherapistID,
	}
	if err := user.SetPassword(dto.Password); err != nil {
		return err
	}
	if err := db.Create(&user).Error; err != nil {
		return err
	}

	if err := h.Mailer.SendWelcome(c.UserContext(), user.Email, user.Name); err != nil {
		h.Log.Warn("welcome email failed", zap.String("user_id", user.Id), zap.Error(err))
	}
	h.audit(c, "create", "user", user.Id, fiber.Map{"email": user.Email, "role": user.Role})
	return c.Status(fiber.StatusCreated).JSON(user)
}

func (h *Handler) Me(c *fiber.Ctx) error {
	var user models.User
	if err := h.DB.WithContext(c.UserContext()).First(&user, "id = ?", middlewares.UserID(c)).Error; err != nil {
		return err
	}
	return c.JSON(user)
}

func (h *Handler) ChangePassword(c *fiber.Ctx) error {
	var dto changePasswordDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}

	db := h.DB.WithContext(c.UserContext())
	var user models.User
	if err := db.First(&user, "id = ?", middlewares.UserID(c)).Error; err != nil {
		return err
	}
	if err := user.ComparePassword(dto.CurrentPassword); err != nil {
		return errInvalidCredentials
	}
	if err := user.SetPassword(dto.NewPassword); err != nil {
		return err
	}
	if err := db.Model(&user).Update("password", user.Password).Error; err != nil {
		return err
	}
	h.audit(c, "update", "user_password", user.Id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}
