package controllers

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"consulta-backend/billing"
	"consulta-backend/calendar"
	"consulta-backend/config"
	"consulta-backend/database"
	"consulta-backend/mailer"
	"consulta-backend/middlewares"
	"consulta-backend/models"
	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Handler carries every dependency the HTTP handlers need. Built once in main.
type Handler struct {
	DB           *gorm.DB
	Store        *database.Store
	Log          *zap.Logger
	Mailer       mailer.Sender
	Auth         *middlewares.Auth
	Calendar     calendar.Source
	Pricer       billing.Pricer
	Syncer       *billing.Syncer
	Recalculator *billing.Recalculator
	Config       config.Config
}

// NewHandler wires the billing routines around the given store and calendar source.
func NewHandler(cfg config.Config, db *gorm.DB, log *zap.Logger, mail mailer.Sender, auth *middlewares.Auth, cal calendar.Source) *Handler {
	store := database.NewStore(db)
	pricer := billing.Pricer{Base: cfg.SessionBaseRate, Extended: cfg.SessionExtendedRate}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	stored := billing.NewAggregator(database.NewSessionSource(db), store, store, pricer)
	return &Handler{
		DB:           db,
		Store:        store,
		Log:          log,
		Mailer:       mail,
		Auth:         auth,
		Calendar:     cal,
		Pricer:       pricer,
		Syncer:       billing.NewSyncer(cal, store, pricer, log),
		Recalculator: billing.NewRecalculator(stored, store, cfg.CalendarID, cfg.Location, log),
		Config:       cfg,
	}
}

// liveAggregator reads straight from the calendar.
func (h *Handler) liveAggregator() *billing.Aggregator {
	return billing.NewAggregator(h.Calendar, h.Store, h.Store, h.Pricer)
}

// storedAggregator reads the sessions materialized by the last sync.
func (h *Handler) storedAggregator() *billing.Aggregator {
	return billing.NewAggregator(database.NewSessionSource(h.DB), h.Store, h.Store, h.Pricer)
}

func idParam(c *fiber.Ctx) (uint, error) {
	id, err := strconv.ParseUint(c.Params("id"), 10, 64)
	if err != nil || id == 0 {
		return 0, fiber.NewError(fiber.StatusBadRequest, "invalid id")
	}
	return uint(id), nil
}

// therapistQuery reads ?therapist_id=, where empty or 0 means every therapist.
func therapistQuery(c *fiber.Ctx) (uint, error) {
	raw := c.Query("therapist_id")
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return 0, fiber.NewError(fiber.StatusBadRequest, "therapist_id must be a non-negative integer")
	}
	return uint(id), nil
}

// periodQuery reads ?year=&month=, defaulting to the current month.
func (h *Handler) periodQuery(c *fiber.Ctx) (int, int) {
	now := time.Now().In(h.Config.Location)
	year := c.QueryInt("year", now.Year())
	month := c.QueryInt("month", int(now.Month()))
	return year, month
}

// audit records an admin action; failures are logged, never surfaced.
func (h *Handler) audit(c *fiber.Ctx, action, entity string, entityID any, details any) {
	entry := models.AuditLog{
		UserID:   middlewares.UserID(c),
		Action:   action,
		Entity:   entity,
		EntityID: toString(entityID),
	}
	if details != nil {
		if b, err := json.Marshal(details); err == nil {
			entry.Details = datatypes.JSON(b)
		}
	}
	if err := h.Store.Audit(c.UserContext(), &entry); err != nil {
		h.Log.Warn("audit write failed", zap.String("action", action), zap.String("entity", entity), zap.Error(err))
	}
}

// notifyAdmins broadcasts a notification to every admin.
func (h *Handler) notifyAdmins(ctx context.Context, kind, title, message string) {
	n := models.Notification{Kind: kind, Title: title, Message: message}
	if err := h.Store.Notify(ctx, &n); err != nil {
		h.Log.Warn("notification failed", zap.String("kind", kind), zap.Error(err))
	}
}

func toString(v any) string {
	switch x := v.(type) {
	case string:
		return x
	case uint:
		return strconv.FormatUint(uint64(x), 10)
	case int:
		return strconv.Itoa(x)
	case nil:
		return ""
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

// jsonList stores a StringList in a JSON column.
func jsonList(l utils.StringList) datatypes.JSON {
	return datatypes.JSON(l.JSON())
}

// pagination reads ?page=&per_page= with sane bounds.
func pagination(c *fiber.Ctx) (limit, offset int) {
	page := utils.ParseIntDefault(c.Query("page"), 1)
	if page < 1 {
		page = 1
	}
	limit = utils.ParseIntDefault(c.Query("per_page"), 50)
	if limit < 1 || limit > 200 {
		limit = 50
	}
	return limit, (page - 1) * limit
}
