package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"consulta-backend/billing"
	"consulta-backend/models"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Store wraps the typed queries the billing routines depend on.
type Store struct {
	db *gorm.DB
}

func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// DB exposes the handle for plain CRUD in controllers.
func (s *Store) DB() *gorm.DB { return s.db }

// Therapists returns every therapist, active or not, in detector order. Deactivated
// therapists keep resolving so past months stay attributable.
func (s *Store) Therapists(ctx context.Context) ([]models.Therapist, error) {
	var out []models.Therapist
	err := s.db.WithContext(ctx).Order("sort_order ASC").Order("id ASC").Find(&out).Error
	return out, err
}

func (s *Store) PaymentsByEventIDs(ctx context.Context, ids []string) (map[string]models.SessionPayment, error) {
	out := make(map[string]models.SessionPayment, len(ids))
	if len(ids) == 0 {
		return out, nil
	}
	var rows []models.SessionPayment
	if err := s.db.WithContext(ctx).Where("event_id IN ?", ids).Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, p := range rows {
		out[p.EventID] = p
	}
	return out, nil
}

func (s *Store) InTx(ctx context.Context, fn func(tx billing.SyncTx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&syncTx{tx: tx})
	})
}

func (s *Store) Notify(ctx context.Context, n *models.Notification) error {
	return s.db.WithContext(ctx).Create(n).Error
}

func (s *Store) Invoices(ctx context.Context) ([]models.InvoiceSubmission, error) {
	var out []models.InvoiceSubmission
	err := s.db.WithContext(ctx).Order("id ASC").Find(&out).Error
	return out, err
}

// UpdateInvoiceAmounts writes only the derived money columns, zeroes included.
func (s *Store) UpdateInvoiceAmounts(ctx context.Context, inv *models.InvoiceSubmission) error {
	res := s.db.WithContext(ctx).Model(&models.InvoiceSubmission{ID: inv.ID}).
		Select("subtotal", "center_amount", "therapist_amount", "irpf_amount", "iva_amount", "total_amount", "session_count").
		Updates(map[string]any{
			"subtotal":         inv.Subtotal,
			"center_amount":    inv.CenterAmount,
			"therapist_amount": inv.TherapistAmount,
			"irpf_amount":      inv.IRPFAmount,
			"iva_amount":       inv.IVAAmount,
			"total_amount":     inv.TotalAmount,
			"session_count":    inv.SessionCount,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// SessionFilter narrows SessionsBetween; a zero TherapistID means every therapist.
type SessionFilter struct {
	From, To    time.Time
	TherapistID uint
	Unassigned  bool
}

func (s *Store) SessionsBetween(ctx context.Context, f SessionFilter) ([]models.Session, error) {
	q := s.db.WithContext(ctx).
		Preload("Patient").
		Where("starts_at >= ? AND starts_at < ?", f.From.UTC(), f.To.UTC())
	switch {
	case f.Unassigned:
		q = q.Where("therapist_id IS NULL")
	case f.TherapistID != 0:
		q = q.Where("therapist_id = ?", f.TherapistID)
	}
	var out []models.Session
	err := q.Order("starts_at ASC").Find(&out).Error
	return out, err
}

// Audit appends an audit row; failures are returned for the caller to log.
func (s *Store) Audit(ctx context.Context, entry *models.AuditLog) error {
	return s.db.WithContext(ctx).Create(entry).Error
}

type syncTx struct {
	tx *gorm.DB
}

func (t *syncTx) Step(name string, fn func() error) error {
	if err := t.tx.SavePoint(name).Error; err != nil {
		return fmt.Errorf("savepoint %s: %w", name, err)
	}
	if err := fn(); err != nil {
		if rbErr := t.tx.RollbackTo(name).Error; rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback to %s: %w", name, rbErr))
		}
		return err
	}
	return nil
}

func (t *syncTx) FindOrCreatePatient(ctx context.Context, fullName string) (*models.Patient, error) {
	var p models.Patient
	err := t.tx.WithContext(ctx).Where("LOWER(full_name) = LOWER(?)", fullName).First(&p).Error
	if err == nil {
		return &p, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}
	p = models.Patient{FullName: fullName}
	if err := t.tx.WithContext(ctx).Create(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

var sessionUpsertColumns = []string{
	"title", "therapist_id", "patient_id", "starts_at", "ends_at", "duration_minutes",
	"price", "is_billable", "status", "color", "updated_at",
}

// UpsertSession inserts or refreshes the row for s.GoogleEventID. The conflict clause
// keeps a concurrent sync from producing a second row for the same event.
func (t *syncTx) UpsertSession(ctx context.Context, s *models.Session) (bool, error) {
	db := t.tx.WithContext(ctx)

	var existing int64
	if err := db.Model(&models.Session{}).Where("google_event_id = ?", s.GoogleEventID).Count(&existing).Error; err != nil {
		return false, err
	}

	s.StartsAt = s.StartsAt.UTC()
	s.EndsAt = s.EndsAt.UTC()
	err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "google_event_id"}},
		DoUpdates: clause.AssignmentColumns(sessionUpsertColumns),
	}).Create(s).Error
	if err != nil {
		return false, err
	}
	return existing == 0, nil
}

// CancelMissing zeroes the stored sessions in [from, to) that the calendar no longer
// returns. Rows already cancelled and non-billable are not counted again.
func (t *syncTx) CancelMissing(ctx context.Context, from, to time.Time, fetched []string) (int, error) {
	q := t.tx.WithContext(ctx).Model(&models.Session{}).
		Where("starts_at >= ? AND starts_at < ?", from.UTC(), to.UTC()).
		Where("(status <> ? OR is_billable = ? OR price <> 0)", models.SessionCancelled, true)
	if len(fetched) > 0 {
		q = q.Where("google_event_id NOT IN ?", fetched)
	}
	res := q.Updates(map[string]any{
		"status":      models.SessionCancelled,
		"is_billable": false,
		"price":       0,
	})
	return int(res.RowsAffected), res.Error
}
