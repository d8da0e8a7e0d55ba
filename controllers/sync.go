package controllers

import (
	"time"

	"consulta-backend/utils"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// SyncCalendar materializes one month of calendar events (?year=&month=, default the
// current month). ?from=&to= (RFC 3339) override the month when both are given.
func (h *Handler) SyncCalendar(c *fiber.Ctx) error {
	from, to, err := h.syncRange(c)
	if err != nil {
		return err
	}
	rep, err := h.Syncer.Sync(c.UserContext(), h.Config.CalendarID, from, to)
	if err != nil {
		return err
	}
	h.Log.Info("calendar sync",
		zap.Time("from", from),
		zap.Time("to", to),
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("failed", rep.Failed),
	)
	h.audit(c, "sync", "calendar", h.Config.CalendarID, rep)
	return c.JSON(rep)
}

func (h *Handler) syncRange(c *fiber.Ctx) (time.Time, time.Time, error) {
	if rawFrom, rawTo := c.Query("from"), c.Query("to"); rawFrom != "" && rawTo != "" {
		from, err := time.Parse(time.RFC3339, rawFrom)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "from must be RFC 3339")
		}
		to, err := time.Parse(time.RFC3339, rawTo)
		if err != nil {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "to must be RFC 3339")
		}
		if !to.After(from) {
			return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, "to must be after from")
		}
		return from, to, nil
	}
	year, month := h.periodQuery(c)
	from, to, err := utils.MonthRange(year, month, h.Config.Location)
	if err != nil {
		return time.Time{}, time.Time{}, fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	return from, to, nil
}
