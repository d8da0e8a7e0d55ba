package controllers

import (
	"time"

	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type postDTO struct {
	Title     string           `json:"title" validate:"required,max=200"`
	Slug      string           `json:"slug" validate:"omitempty,max=160"`
	Excerpt   string           `json:"excerpt" validate:"max=500"`
	Content   string           `json:"content" validate:"required"`
	Author    string           `json:"author"`
	Tags      utils.StringList `json:"tags"`
	Published bool             `json:"published"`
}

type updatePostDTO struct {
	Title     *string           `json:"title" validate:"omitempty,max=200"`
	Slug      *string           `json:"slug" validate:"omitempty,max=160"`
	Excerpt   *string           `json:"excerpt" validate:"omitempty,max=500"`
	Content   *string           `json:"content"`
	Author    *string           `json:"author"`
	Tags      *utils.StringList `json:"tags"`
	Published *bool             `json:"published"`
}

// ListPosts returns published posts, newest first, optionally filtered by ?tag=.
func (h *Handler) ListPosts(c *fiber.Ctx) error {
	limit, offset := pagination(c)
	var rows []models.Post
	err := h.DB.WithContext(c.UserContext()).
		Where("published = ?", true).
		Order("published_at DESC").
		Find(&rows).Error
	if err != nil {
		return err
	}

	tag := utils.Fold(c.Query("tag"))
	out := make([]models.Post, 0, len(rows))
	for _, p := range rows {
		if tag != "" {
			tags, err := utils.ParseStringList(p.Tags)
			if err != nil || !containsFolded(tags, tag) {
				continue
			}
		}
		out = append(out, p)
	}
	total := len(out)
	if offset > len(out) {
		offset = len(out)
	}
	out = out[offset:min(offset+limit, len(out))]
	return c.JSON(fiber.Map{"posts": out, "total": total})
}

func containsFolded(list utils.StringList, folded string) bool {
	for _, s := range list {
		if utils.Fold(s) == folded {
			return true
		}
	}
	return false
}

func (h *Handler) GetPost(c *fiber.Ctx) error {
	var p models.Post
	if err := h.DB.WithContext(c.UserContext()).Where("slug = ? AND published = ?", c.Params("slug"), true).First(&p).Error; err != nil {
		return err
	}
	return c.JSON(p)
}

func (h *Handler) AdminListPosts(c *fiber.Ctx) error {
	var rows []models.Post
	if err := h.DB.WithContext(c.UserContext()).Order("created_at DESC").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"posts": rows})
}

func (h *Handler) CreatePost(c *fiber.Ctx) error {
	var dto postDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	if dto.Slug == "" {
		dto.Slug = utils.Slugify(dto.Title)
	}
	p := models.Post{
		Title:     dto.Title,
		Slug:      dto.Slug,
		Excerpt:   dto.Excerpt,
		Content:   dto.Content,
		Author:    dto.Author,
		Tags:      jsonList(dto.Tags),
		Published: dto.Published,
	}
	if p.Published {
		now := time.Now().UTC()
		p.PublishedAt = &now
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&p).Error; err != nil {
		return err
	}
	h.audit(c, "create", "post", p.ID, fiber.Map{"title": p.Title})
	return c.Status(fiber.StatusCreated).JSON(p)
}

func (h *Handler) UpdatePost(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto updatePostDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)
	updates := utils.UpdatesFromPtrDTO(&dto, nil)

	db := h.DB.WithContext(c.UserContext())
	var p models.Post
	if err := db.First(&p, id).Error; err != nil {
		return err
	}
	// first publish stamps published_at; unpublishing keeps it
	if dto.Published != nil && *dto.Published && p.PublishedAt == nil {
		updates["published_at"] = time.Now().UTC()
	}
	if len(updates) > 0 {
		if err := db.Model(&p).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&p, id).Error; err != nil {
		return err
	}
	h.audit(c, "update", "post", id, updates)
	return c.JSON(p)
}

func (h *Handler) DeletePost(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Delete(&models.Post{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "post not found")
	}
	h.audit(c, "delete", "post", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}
