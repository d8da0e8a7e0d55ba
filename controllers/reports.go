package controllers

import (
	"time"

	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
)

type generateReportDTO struct {
	Year    int `json:"year" validate:"required,gte=2000,lte=2100"`
	Quarter int `json:"quarter" validate:"required,gte=1,lte=4"`
}

type expenseDTO struct {
	Date        time.Time `json:"date" validate:"required"`
	Category    string    `json:"category" validate:"required,max=60"`
	Description string    `json:"description"`
	Amount      float64   `json:"amount" validate:"gte=0"`
	Vendor      string    `json:"vendor"`
}

type updateExpenseDTO struct {
	Date        *time.Time `json:"date"`
	Category    *string    `json:"category" validate:"omitempty,max=60"`
	Description *string    `json:"description"`
	Amount      *float64   `json:"amount" validate:"omitempty,gte=0"`
	Vendor      *string    `json:"vendor"`
}

type recurringExpenseDTO struct {
	Category    string  `json:"category" validate:"required,max=60"`
	Description string  `json:"description"`
	Amount      float64 `json:"amount" validate:"gte=0"`
	Vendor      string  `json:"vendor"`
	DayOfMonth  int     `json:"day_of_month" validate:"required,gte=1,lte=28"`
}

type updateRecurringExpenseDTO struct {
	Category    *string  `json:"category" validate:"omitempty,max=60"`
	Description *string  `json:"description"`
	Amount      *float64 `json:"amount" validate:"omitempty,gte=0"`
	Vendor      *string  `json:"vendor"`
	DayOfMonth  *int     `json:"day_of_month" validate:"omitempty,gte=1,lte=28"`
	IsActive    *bool    `json:"is_active"`
}

type generateExpensesDTO struct {
	Year  int `json:"year" validate:"required,gte=2000,lte=2100"`
	Month int `json:"month" validate:"required,gte=1,lte=12"`
}

func (h *Handler) ListQuarterlyReports(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext())
	if y := c.QueryInt("year", 0); y != 0 {
		db = db.Where("year = ?", y)
	}
	var rows []models.QuarterlyReport
	if err := db.Order("year DESC").Order("quarter DESC").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"reports": rows})
}

// GenerateQuarterlyReport (re)builds the report of one quarter from invoices and expenses.
func (h *Handler) GenerateQuarterlyReport(c *fiber.Ctx) error {
	var dto generateReportDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	rep, err := h.Store.GenerateQuarterlyReport(c.UserContext(), dto.Year, dto.Quarter, h.Config.Location)
	if err != nil {
		return err
	}
	h.audit(c, "generate", "quarterly_report", rep.ID, dto)
	return c.JSON(rep)
}

// ListExpenses filters by ?year=&month= when given, and by ?category=.
func (h *Handler) ListExpenses(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext())
	if y, m := c.QueryInt("year", 0), c.QueryInt("month", 0); y != 0 {
		from, to, err := utils.MonthRange(y, max(m, 1), h.Config.Location)
		if err != nil {
			return fiber.NewError(fiber.StatusBadRequest, err.Error())
		}
		if m == 0 {
			to = from.AddDate(1, 0, 0)
		}
		db = db.Where("date >= ? AND date < ?", from.UTC(), to.UTC())
	}
	if cat := c.Query("category"); cat != "" {
		db = db.Where("category = ?", cat)
	}
	var rows []models.Expense
	if err := db.Order("date DESC").Find(&rows).Error; err != nil {
		return err
	}
	total := 0.0
	for _, e := range rows {
		total += e.Amount
	}
	return c.JSON(fiber.Map{"expenses": rows, "total": utils.Round2(total)})
}

func (h *Handler) CreateExpense(c *fiber.Ctx) error {
	var dto expenseDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	e := models.Expense{
		Date:        dto.Date.UTC(),
		Category:    dto.Category,
		Description: dto.Description,
		Amount:      dto.Amount,
		Vendor:      dto.Vendor,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&e).Error; err != nil {
		return err
	}
	h.audit(c, "create", "expense", e.ID, fiber.Map{"amount": e.Amount, "category": e.Category})
	return c.Status(fiber.StatusCreated).JSON(e)
}

func (h *Handler) UpdateExpense(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto updateExpenseDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)
	if dto.Date != nil {
		utc := dto.Date.UTC()
		dto.Date = &utc
	}
	updates := utils.UpdatesFromPtrDTO(&dto, nil)

	db := h.DB.WithContext(c.UserContext())
	var e models.Expense
	if err := db.First(&e, id).Error; err != nil {
		return err
	}
	if len(updates) > 0 {
		if err := db.Model(&e).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&e, id).Error; err != nil {
		return err
	}
	h.audit(c, "update", "expense", id, updates)
	return c.JSON(e)
}

func (h *Handler) DeleteExpense(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Delete(&models.Expense{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "expense not found")
	}
	h.audit(c, "delete", "expense", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *Handler) ListRecurringExpenses(c *fiber.Ctx) error {
	var rows []models.RecurringExpense
	if err := h.DB.WithContext(c.UserContext()).Order("id ASC").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"recurring_expenses": rows})
}

func (h *Handler) CreateRecurringExpense(c *fiber.Ctx) error {
	var dto recurringExpenseDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)
	r := models.RecurringExpense{
		Category:    dto.Category,
		Description: dto.Description,
		Amount:      dto.Amount,
		Vendor:      dto.Vendor,
		DayOfMonth:  dto.DayOfMonth,
		IsActive:    true,
	}
	if err := h.DB.WithContext(c.UserContext()).Create(&r).Error; err != nil {
		return err
	}
	h.audit(c, "create", "recurring_expense", r.ID, fiber.Map{"amount": r.Amount})
	return c.Status(fiber.StatusCreated).JSON(r)
}

func (h *Handler) UpdateRecurringExpense(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	var dto updateRecurringExpenseDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)
	updates := utils.UpdatesFromPtrDTO(&dto, nil)

	db := h.DB.WithContext(c.UserContext())
	var r models.RecurringExpense
	if err := db.First(&r, id).Error; err != nil {
		return err
	}
	if len(updates) > 0 {
		if err := db.Model(&r).Updates(updates).Error; err != nil {
			return err
		}
	}
	if err := db.First(&r, id).Error; err != nil {
		return err
	}
	h.audit(c, "update", "recurring_expense", id, updates)
	return c.JSON(r)
}

// DeleteRecurringExpense drops the template; expenses already generated stay.
func (h *Handler) DeleteRecurringExpense(c *fiber.Ctx) error {
	id, err := idParam(c)
	if err != nil {
		return err
	}
	res := h.DB.WithContext(c.UserContext()).Delete(&models.RecurringExpense{}, id)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fiber.NewError(fiber.StatusNotFound, "recurring expense not found")
	}
	h.audit(c, "delete", "recurring_expense", id, nil)
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *Handler) GenerateRecurringExpenses(c *fiber.Ctx) error {
	var dto generateExpensesDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	n, err := h.Store.GenerateRecurringExpenses(c.UserContext(), dto.Year, dto.Month, h.Config.Location)
	if err != nil {
		return err
	}
	h.audit(c, "generate", "expense", utils.Period(dto.Year, dto.Month), fiber.Map{"created": n})
	return c.JSON(fiber.Map{"created": n, "period": utils.Period(dto.Year, dto.Month)})
}
