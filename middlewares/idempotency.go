package middlewares

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"consulta-backend/models"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Idempotency processes Idempotency-Key for mutating HTTP methods. Keys are scoped to
// the authenticated user; run it after IsAuthenticatedHeader.
func Idempotency(db *gorm.DB, log *zap.Logger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		method := strings.ToUpper(c.Method())
		if method != fiber.MethodPost && method != fiber.MethodPut && method != fiber.MethodPatch && method != fiber.MethodDelete {
			return c.Next()
		}

		key := strings.TrimSpace(c.Get("Idempotency-Key"))
		if key == "" {
			return c.Next()
		}
		if len(key) > 128 {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"message": "Idempotency-Key too long"})
		}

		userID := UserID(c)
		if userID == "" {
			return c.Status(fiber.StatusUnauthorized).JSON(fiber.Map{"message": "auth context missing"})
		}

		path := c.OriginalURL()

		// Deterministic request hash: method|path|body|user
		h := sha256.New()
		h.Write([]byte(method))
		h.Write([]byte{'\n'})
		h.Write([]byte(path))
		h.Write([]byte{'\n'})
		h.Write(c.Body())
		h.Write([]byte{'\n'})
		h.Write([]byte(userID))
		reqHash := hex.EncodeToString(h.Sum(nil))

		// Phase 1: read or create the pending record
		var existing models.IdempotencyKey
		replayed := false
		err := db.Transaction(func(tx *gorm.DB) error {
			err := tx.Where("user_id = ? AND key = ?", userID, key).First(&existing).Error
			if err != nil {
				if !errors.Is(err, gorm.ErrRecordNotFound) {
					return fiber.NewError(fiber.StatusInternalServerError, "idempotency lookup failed")
				}
				rec := models.IdempotencyKey{
					Key:         key,
					RequestHash: reqHash,
					Method:      method,
					Path:        path,
					UserID:      userID,
				}
				if e2 := tx.Create(&rec).Error; e2 != nil {
					// unique race: the other request owns the key
					return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key in progress")
				}
				existing = rec
				return nil
			}

			if existing.RequestHash != reqHash {
				return fiber.NewError(fiber.StatusConflict, "Idempotency-Key reuse with different request")
			}
			if existing.ResponseStatus == 0 {
				return fiber.NewError(fiber.StatusConflict, "request with this Idempotency-Key in progress")
			}
			replayed = true
			return nil
		})
		if err != nil {
			return err
		}
		if replayed {
			c.Set("Idempotent-Replayed", "true")
			c.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			return c.Status(existing.ResponseStatus).Send(existing.ResponseBody)
		}

		// Run the handler once; a failed run frees the key for a retry.
		if err := c.Next(); err != nil {
			db.Where("id = ?", existing.ID).Delete(&models.IdempotencyKey{})
			return err
		}
		status := c.Response().StatusCode()
		if status >= fiber.StatusInternalServerError {
			db.Where("id = ?", existing.ID).Delete(&models.IdempotencyKey{})
			return nil
		}

		// Phase 2: store the response; best-effort, the response already succeeded
		now := time.Now().UTC()
		resp := c.Response().Body()
		blob := make([]byte, len(resp))
		copy(blob, resp)
		if err := db.Model(&models.IdempotencyKey{}).
			Where("id = ?", existing.ID).
			Updates(map[string]any{
				"response_status": status,
				"response_body":   blob,
				"completed_at":    &now,
			}).Error; err != nil {
			log.Warn("idempotency store failed", zap.String("key", key), zap.Error(err))
		}
		return nil
	}
}
