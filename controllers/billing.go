package controllers

import (
	"errors"
	"time"

	"consulta-backend/billing"
	"consulta-backend/database"
	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type paymentDTO struct {
	TherapistID   *uint    `json:"therapist_id"`
	PaymentType   string   `json:"payment_type" validate:"omitempty,oneof=cash card transfer bizum insurance"`
	PaymentStatus string   `json:"payment_status" validate:"required,oneof=pending paid cancelled"`
	OriginalPrice *float64 `json:"original_price" validate:"omitempty,gte=0"`
	ModifiedPrice *float64 `json:"modified_price" validate:"omitempty,gte=0"`
	Notes         string   `json:"notes" validate:"max=1000"`
}

type createInvoiceDTO struct {
	TherapistID        uint             `json:"therapist_id" validate:"required"`
	Year               int              `json:"year" validate:"required,gte=2000,lte=2100"`
	Month              int              `json:"month" validate:"required,gte=1,lte=12"`
	CenterPercentage   *float64         `json:"center_percentage" validate:"omitempty,gte=0,lte=100"`
	IRPFPercentage     *float64         `json:"irpf_percentage" validate:"omitempty,gte=0,lte=100"`
	IVAPercentage      *float64         `json:"iva_percentage" validate:"omitempty,gte=0,lte=100"`
	ExcludedSessionIDs utils.StringList `json:"excluded_session_ids"`
	Notes              string           `json:"notes"`
}

type updateInvoiceDTO struct {
	CenterPercentage   *float64          `json:"center_percentage" validate:"omitempty,gte=0,lte=100"`
	IRPFPercentage     *float64          `json:"irpf_percentage" validate:"omitempty,gte=0,lte=100"`
	IVAPercentage      *float64          `json:"iva_percentage" validate:"omitempty,gte=0,lte=100"`
	ExcludedSessionIDs *utils.StringList `json:"excluded_session_ids"`
	Notes              *string           `json:"notes"`
}

// BillingPreview aggregates the month straight from the calendar. Nothing is stored.
// Query: year, month, therapist_id (0 = everyone), excluded (comma separated event ids).
func (h *Handler) BillingPreview(c *fiber.Ctx) error {
	year, month := h.periodQuery(c)
	from, to, err := utils.MonthRange(year, month, h.Config.Location)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	therapistID, err := therapistQuery(c)
	if err != nil {
		return err
	}
	res, err := h.liveAggregator().Aggregate(c.UserContext(), billing.Query{
		CalendarID:  h.Config.CalendarID,
		From:        from,
		To:          to,
		TherapistID: therapistID,
		Excluded:    utils.SplitList(c.Query("excluded")),
	})
	if err != nil {
		return err
	}
	return c.JSON(res)
}

// BillingSessions lists the stored sessions of a month. ?unassigned=true keeps only
// sessions with no therapist.
func (h *Handler) BillingSessions(c *fiber.Ctx) error {
	year, month := h.periodQuery(c)
	from, to, err := utils.MonthRange(year, month, h.Config.Location)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	therapistID, err := therapistQuery(c)
	if err != nil {
		return err
	}
	rows, err := h.Store.SessionsBetween(c.UserContext(), database.SessionFilter{
		From:        from,
		To:          to,
		TherapistID: therapistID,
		Unassigned:  c.QueryBool("unassigned", false),
	})
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"sessions": rows, "total": len(rows)})
}

// UpdatePayment creates or replaces the payment row for one calendar event and stamps
// the reviewer.
func (h *Handler) UpdatePayment(c *fiber.Ctx) error {
	eventID := c.Params("eventId")
	if eventID == "" {
		return fiber.NewError(fiber.StatusBadRequest, "event id required")
	}
	var dto paymentDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	now := time.Now().UTC()
	p := models.SessionPayment{
		EventID:       eventID,
		TherapistID:   dto.TherapistID,
		PaymentType:   dto.PaymentType,
		PaymentStatus: dto.PaymentStatus,
		OriginalPrice: dto.OriginalPrice,
		ModifiedPrice: dto.ModifiedPrice,
		Notes:         dto.Notes,
		ReviewedBy:    middlewares.UserID(c),
		ReviewedAt:    &now,
	}
	db := h.DB.WithContext(c.UserContext())
	err := db.Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "event_id"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"therapist_id", "payment_type", "payment_status", "original_price",
			"modified_price", "notes", "reviewed_by", "reviewed_at", "updated_at",
		}),
	}).Create(&p).Error
	if err != nil {
		return err
	}
	if err := db.Where("event_id = ?", eventID).First(&p).Error; err != nil {
		return err
	}
	h.audit(c, "update", "session_payment", eventID, fiber.Map{"status": p.PaymentStatus, "modified_price": p.ModifiedPrice})
	return c.JSON(p)
}

func (h *Handler) ListInvoices(c *fiber.Ctx) error {
	db := h.DB.WithContext(c.UserContext()).Preload("Therapist")
	if y := c.QueryInt("year", 0); y != 0 {
		db = db.Where("year = ?", y)
	}
	if m := c.QueryInt("month", 0); m != 0 {
		db = db.Where("month = ?", m)
	}
	t, err := therapistQuery(c)
	if err != nil {
		return err
	}
	if t != 0 {
		db = db.Where("therapist_id = ?", t)
	}
	if s := c.Query("status"); s != "" {
		db = db.Where("status = ?", s)
	}
	var rows []models.InvoiceSubmission
	if err := db.Order("year DESC").Order("month DESC").Order("therapist_id ASC").Find(&rows).Error; err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invoices": rows})
}

// GetInvoice returns the invoice plus the stored sessions behind its amounts.
func (h *Handler) GetInvoice(c *fiber.Ctx) error {
	inv, err := h.findInvoice(c)
	if err != nil {
		return err
	}
	q, err := billing.InvoiceQuery(inv, h.Config.CalendarID, h.Config.Location)
	if err != nil {
		return err
	}
	res, err := h.storedAggregator().Aggregate(c.UserContext(), q)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"invoice": inv, "sessions": res.Sessions, "excluded": res.Excluded})
}

// CreateInvoice freezes a therapist's month from the stored sessions. Percentages
// default to the configured ones.
func (h *Handler) CreateInvoice(c *fiber.Ctx) error {
	var dto createInvoiceDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizeDTO(&dto)

	db := h.DB.WithContext(c.UserContext())
	var t models.Therapist
	if err := db.First(&t, dto.TherapistID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fiber.NewError(fiber.StatusBadRequest, "therapist_id does not exist")
		}
		return err
	}
	if t.IsManager {
		return fiber.NewError(fiber.StatusBadRequest, "the manager is not invoiced")
	}

	inv := models.InvoiceSubmission{
		TherapistID:        dto.TherapistID,
		Year:               dto.Year,
		Month:              dto.Month,
		CenterPercentage:   valueOr(dto.CenterPercentage, h.Config.DefaultCenterPercent),
		IRPFPercentage:     valueOr(dto.IRPFPercentage, h.Config.DefaultIRPFPercent),
		IVAPercentage:      valueOr(dto.IVAPercentage, h.Config.DefaultIVAPercent),
		ExcludedSessionIDs: jsonList(dto.ExcludedSessionIDs),
		Status:             models.InvoiceDraft,
		Notes:              dto.Notes,
	}
	if err := h.computeInvoice(c, &inv); err != nil {
		return err
	}
	if err := db.Create(&inv).Error; err != nil {
		return err
	}
	h.audit(c, "create", "invoice", inv.ID, fiber.Map{"therapist_id": inv.TherapistID, "period": utils.Period(inv.Year, inv.Month), "total": inv.TotalAmount})
	return c.Status(fiber.StatusCreated).JSON(inv)
}

// UpdateInvoice changes percentages, exclusions or notes of a draft and recomputes it.
func (h *Handler) UpdateInvoice(c *fiber.Ctx) error {
	var dto updateInvoiceDTO
	if err := middlewares.BindAndValidate(c, &dto); err != nil {
		return err
	}
	utils.NormalizePtrDTO(&dto)

	inv, err := h.findInvoice(c)
	if err != nil {
		return err
	}
	if inv.Status == models.InvoiceClosed {
		return fiber.NewError(fiber.StatusConflict, "invoice is closed")
	}
	if dto.CenterPercentage != nil {
		inv.CenterPercentage = *dto.CenterPercentage
	}
	if dto.IRPFPercentage != nil {
		inv.IRPFPercentage = *dto.IRPFPercentage
	}
	if dto.IVAPercentage != nil {
		inv.IVAPercentage = *dto.IVAPercentage
	}
	if dto.ExcludedSessionIDs != nil {
		inv.ExcludedSessionIDs = jsonList(*dto.ExcludedSessionIDs)
	}
	if dto.Notes != nil {
		inv.Notes = *dto.Notes
	}
	if err := h.computeInvoice(c, inv); err != nil {
		return err
	}
	if err := h.DB.WithContext(c.UserContext()).Omit("Therapist").Save(inv).Error; err != nil {
		return err
	}
	h.audit(c, "update", "invoice", inv.ID, fiber.Map{"total": inv.TotalAmount})
	return c.JSON(inv)
}

func (h *Handler) CloseInvoice(c *fiber.Ctx) error {
	inv, err := h.findInvoice(c)
	if err != nil {
		return err
	}
	if inv.Status == models.InvoiceClosed {
		return fiber.NewError(fiber.StatusConflict, "invoice is already closed")
	}
	now := time.Now().UTC()
	err = h.DB.WithContext(c.UserContext()).Model(&models.InvoiceSubmission{}).Where("id = ?", inv.ID).
		Updates(map[string]any{"status": models.InvoiceClosed, "closed_at": now}).Error
	if err != nil {
		return err
	}
	inv.Status = models.InvoiceClosed
	inv.ClosedAt = &now
	h.audit(c, "close", "invoice", inv.ID, nil)
	return c.JSON(inv)
}

func (h *Handler) DeleteInvoice(c *fiber.Ctx) error {
	inv, err := h.findInvoice(c)
	if err != nil {
		return err
	}
	if inv.Status == models.InvoiceClosed {
		return fiber.NewError(fiber.StatusConflict, "invoice is closed")
	}
	if err := h.DB.WithContext(c.UserContext()).Delete(&models.InvoiceSubmission{}, inv.ID).Error; err != nil {
		return err
	}
	h.audit(c, "delete", "invoice", inv.ID, nil)
	return c.JSON(fiber.Map{"message": "success"})
}

func (h *Handler) RecalculateInvoice(c *fiber.Ctx) error {
	inv, err := h.findInvoice(c)
	if err != nil {
		return err
	}
	changed, err := h.Recalculator.Recalculate(c.UserContext(), inv)
	if err != nil {
		return err
	}
	if changed {
		h.audit(c, "recalculate", "invoice", inv.ID, fiber.Map{"total": inv.TotalAmount})
	}
	return c.JSON(fiber.Map{"invoice": inv, "changed": changed})
}

func (h *Handler) RecalculateInvoices(c *fiber.Ctx) error {
	rep, err := h.Recalculator.RecalculateAll(c.UserContext())
	if err != nil {
		return err
	}
	h.audit(c, "recalculate", "invoice", "all", rep)
	return c.JSON(rep)
}

func (h *Handler) findInvoice(c *fiber.Ctx) (*models.InvoiceSubmission, error) {
	id, err := idParam(c)
	if err != nil {
		return nil, err
	}
	var inv models.InvoiceSubmission
	if err := h.DB.WithContext(c.UserContext()).First(&inv, id).Error; err != nil {
		return nil, err
	}
	return &inv, nil
}

// computeInvoice fills the amount columns of inv from the stored sessions.
func (h *Handler) computeInvoice(c *fiber.Ctx, inv *models.InvoiceSubmission) error {
	q, err := billing.InvoiceQuery(inv, h.Config.CalendarID, h.Config.Location)
	if err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	res, err := h.storedAggregator().Aggregate(c.UserContext(), q)
	if err != nil {
		return err
	}
	billing.ComputeTotals(res.Subtotal, inv.CenterPercentage, inv.IRPFPercentage, inv.IVAPercentage).
		Apply(inv, len(res.Sessions))
	return nil
}

func valueOr(p *float64, def float64) float64 {
	if p == nil {
		return def
	}
	return *p
}
