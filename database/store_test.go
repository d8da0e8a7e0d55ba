package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"consulta-backend/billing"
	"consulta-backend/calendar"
	"consulta-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func testDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	require.NoError(t, Migrate(db))
	return db
}

func seedTherapists(t *testing.T, db *gorm.DB) {
	t.Helper()
	rows := []models.Therapist{
		{Name: "Sonia Martínez", Slug: "sonia-martinez", CalendarTag: "sonia", IsActive: true, SortOrder: 1},
		{Name: "Íñigo Ruiz", Slug: "inigo-ruiz", CalendarTag: "iñigo", IsActive: true, SortOrder: 2},
		{Name: "Laura Gómez", Slug: "laura-gomez", CalendarTag: "laura", IsManager: true, IsActive: true, SortOrder: 3},
	}
	require.NoError(t, db.Create(&rows).Error)
}

var march = time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

func ev(id, title string, day, minutes int) calendar.Event {
	start := march.AddDate(0, 0, day).Add(10 * time.Hour)
	return calendar.Event{ID: id, Title: title, Start: start, End: start.Add(time.Duration(minutes) * time.Minute)}
}

func TestTherapistsInDetectorOrder(t *testing.T) {
	db := testDB(t)
	seedTherapists(t, db)

	got, err := NewStore(db).Therapists(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 3)
	assert.Equal(t, "sonia", got[0].CalendarTag)
	assert.Equal(t, "laura", got[2].CalendarTag)
}

func TestPaymentsByEventIDs(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	modified := 65.0
	require.NoError(t, db.Create(&models.SessionPayment{EventID: "e2", PaymentStatus: models.PaymentPaid, ModifiedPrice: &modified}).Error)

	got, err := store.PaymentsByEventIDs(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, got)

	got, err = store.PaymentsByEventIDs(context.Background(), []string{"e1", "e2"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 65.0, *got["e2"].ModifiedPrice)
}

func TestFindOrCreatePatientIgnoresCase(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)

	var first, second *models.Patient
	err := store.InTx(context.Background(), func(tx billing.SyncTx) error {
		var err error
		if first, err = tx.FindOrCreatePatient(context.Background(), "Juan Pérez"); err != nil {
			return err
		}
		second, err = tx.FindOrCreatePatient(context.Background(), "juan pérez")
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	db.Model(&models.Patient{}).Count(&count)
	assert.Equal(t, int64(1), count)

	// the expression index rejects a case variant inserted directly
	assert.Error(t, db.Create(&models.Patient{FullName: "JUAN PéREZ"}).Error)
}

func TestStepRollsBackOnlyTheFailingStep(t *testing.T) {
	db := testDB(t)
	store := NewStore(db)
	ctx := context.Background()

	err := store.InTx(ctx, func(tx billing.SyncTx) error {
		for i, name := range []string{"Ana", "Roto", "Eva"} {
			stepErr := tx.Step(fmt.Sprintf("step_%d", i), func() error {
				if _, err := tx.FindOrCreatePatient(ctx, name); err != nil {
					return err
				}
				if name == "Roto" {
					return errors.New("boom")
				}
				return nil
			})
			if name == "Roto" {
				assert.Error(t, stepErr)
			} else {
				assert.NoError(t, stepErr)
			}
		}
		return nil
	})
	require.NoError(t, err)

	var names []string
	db.Model(&models.Patient{}).Order("full_name").Pluck("full_name", &names)
	assert.Equal(t, []string{"Ana", "Eva"}, names)
}

func TestSyncTwiceKeepsOneSessionPerEvent(t *testing.T) {
	db := testDB(t)
	seedTherapists(t, db)
	store := NewStore(db)
	ctx := context.Background()

	events := calendar.Static{
		ev("e1", "Sesión Juan Pérez /sonia/", 1, 60),
		ev("e2", "Sesión Ana /iñigo/", 2, 90),
		ev("e3", "Libre /sonia/", 3, 60),
		ev("e4", "Sesión sin etiqueta", 4, 60),
	}
	syncer := billing.NewSyncer(events, store, billing.DefaultPricer, zap.NewNop())

	rep, err := syncer.Sync(ctx, "primary", march, march.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 4, rep.Created)
	assert.Equal(t, 1, rep.Unassigned)

	// the event grows past an hour before the second run
	events[0].End = events[0].Start.Add(75 * time.Minute)
	rep, err = syncer.Sync(ctx, "primary", march, march.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Created)
	assert.Equal(t, 4, rep.Updated)
	assert.Zero(t, rep.Failed)

	var count int64
	db.Model(&models.Session{}).Count(&count)
	assert.Equal(t, int64(4), count)

	var e1 models.Session
	require.NoError(t, db.Where("google_event_id = ?", "e1").First(&e1).Error)
	assert.Equal(t, 70.0, e1.Price)
	assert.Equal(t, 75, e1.DurationMinutes)
	require.NotNil(t, e1.PatientID)

	var e3 models.Session
	require.NoError(t, db.Where("google_event_id = ?", "e3").First(&e3).Error)
	assert.False(t, e3.IsBillable)
	assert.Zero(t, e3.Price)

	var patients int64
	db.Model(&models.Patient{}).Count(&patients)
	assert.Equal(t, int64(3), patients) // Juan Pérez, Ana, and the untagged title's name

	var notes []models.Notification
	db.Find(&notes)
	assert.Len(t, notes, 2)
}

func TestRecalculatorOverStoredSessionsIsIdempotent(t *testing.T) {
	db := testDB(t)
	seedTherapists(t, db)
	store := NewStore(db)
	ctx := context.Background()

	events := calendar.Static{
		ev("e1", "Sesión Juan /sonia/", 1, 60),
		ev("e2", "Sesión Ana /sonia/", 2, 90),
		ev("e3", "Sesión Pablo /iñigo/", 3, 60),
		ev("e4", "Sesión Eva anulada /sonia/", 4, 60),
	}
	_, err := billing.NewSyncer(events, store, billing.DefaultPricer, zap.NewNop()).
		Sync(ctx, "primary", march, march.AddDate(0, 1, 0))
	require.NoError(t, err)

	modified := 65.0
	require.NoError(t, db.Create(&models.SessionPayment{EventID: "e2", PaymentStatus: models.PaymentPaid, ModifiedPrice: &modified}).Error)
	inv := models.InvoiceSubmission{TherapistID: 1, Year: 2024, Month: 3, CenterPercentage: 40, IRPFPercentage: 15, Status: models.InvoiceDraft}
	require.NoError(t, db.Create(&inv).Error)

	agg := billing.NewAggregator(NewSessionSource(db), store, store, billing.DefaultPricer)
	rec := billing.NewRecalculator(agg, store, "primary", time.UTC, zap.NewNop())

	rep, err := rec.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)

	var got models.InvoiceSubmission
	require.NoError(t, db.First(&got, inv.ID).Error)
	assert.InDelta(t, 120.0, got.Subtotal, 0.001)
	assert.InDelta(t, 48.0, got.CenterAmount, 0.001)
	assert.InDelta(t, 10.8, got.IRPFAmount, 0.001)
	assert.InDelta(t, 61.2, got.TotalAmount, 0.001)
	assert.Equal(t, 2, got.SessionCount)
	assert.Equal(t, 40.0, got.CenterPercentage)

	rep, err = rec.RecalculateAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Updated)
	assert.Equal(t, 1, rep.Unchanged)

	var again models.InvoiceSubmission
	require.NoError(t, db.First(&again, inv.ID).Error)
	assert.Equal(t, got.TotalAmount, again.TotalAmount)
}

func TestSyncCancelsEventsRemovedFromCalendar(t *testing.T) {
	db := testDB(t)
	seedTherapists(t, db)
	store := NewStore(db)
	ctx := context.Background()
	month := march.AddDate(0, 1, 0)

	e1 := ev("e1", "Sesión Juan /sonia/", 1, 60)
	e2 := ev("e2", "Sesión Ana /sonia/", 2, 60)
	_, err := billing.NewSyncer(calendar.Static{e1, e2}, store, billing.DefaultPricer, zap.NewNop()).
		Sync(ctx, "primary", march, month)
	require.NoError(t, err)

	// e2 was deleted from the calendar before the next run
	rep, err := billing.NewSyncer(calendar.Static{e1}, store, billing.DefaultPricer, zap.NewNop()).
		Sync(ctx, "primary", march, month)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.Cancelled)

	var gone models.Session
	require.NoError(t, db.Where("google_event_id = ?", "e2").First(&gone).Error)
	assert.Equal(t, models.SessionCancelled, gone.Status)
	assert.False(t, gone.IsBillable)
	assert.Zero(t, gone.Price)

	agg := billing.NewAggregator(NewSessionSource(db), store, store, billing.DefaultPricer)
	res, err := agg.Aggregate(ctx, billing.Query{CalendarID: "primary", From: march, To: month, TherapistID: 1})
	require.NoError(t, err)
	assert.Equal(t, 55.0, res.Subtotal)
	require.Len(t, res.Sessions, 1)
	assert.Equal(t, "e1", res.Sessions[0].EventID)

	inv := models.InvoiceSubmission{TherapistID: 1, Year: 2024, Month: 3, CenterPercentage: 40, IRPFPercentage: 15, Status: models.InvoiceDraft}
	require.NoError(t, db.Create(&inv).Error)
	_, err = billing.NewRecalculator(agg, store, "primary", time.UTC, zap.NewNop()).RecalculateAll(ctx)
	require.NoError(t, err)

	var got models.InvoiceSubmission
	require.NoError(t, db.First(&got, inv.ID).Error)
	assert.InDelta(t, 55.0, got.Subtotal, 0.001)
	assert.InDelta(t, 28.05, got.TotalAmount, 0.001)
	assert.Equal(t, 1, got.SessionCount)

	// already cancelled rows are not counted again, and events outside the range are untouched
	rep, err = billing.NewSyncer(calendar.Static{}, store, billing.DefaultPricer, zap.NewNop()).
		Sync(ctx, "primary", march.AddDate(0, 0, 2), month)
	require.NoError(t, err)
	assert.Zero(t, rep.Cancelled)

	var kept models.Session
	require.NoError(t, db.Where("google_event_id = ?", "e1").First(&kept).Error)
	assert.Equal(t, 55.0, kept.Price)
}

func TestUpdateInvoiceAmountsMissingRow(t *testing.T) {
	db := testDB(t)
	err := NewStore(db).UpdateInvoiceAmounts(context.Background(), &models.InvoiceSubmission{ID: 42})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestSessionsBetweenFilters(t *testing.T) {
	db := testDB(t)
	seedTherapists(t, db)
	store := NewStore(db)
	ctx := context.Background()

	_, err := billing.NewSyncer(calendar.Static{
		ev("e1", "Sesión Juan /sonia/", 1, 60),
		ev("e2", "Sesión Ana /iñigo/", 2, 60),
		ev("e3", "Sesión Sin Nadie", 3, 60),
		ev("e4", "Sesión Abril /sonia/", 40, 60),
	}, store, billing.DefaultPricer, zap.NewNop()).Sync(ctx, "primary", march, march.AddDate(0, 2, 0))
	require.NoError(t, err)

	all, err := store.SessionsBetween(ctx, SessionFilter{From: march, To: march.AddDate(0, 1, 0)})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	sonia, err := store.SessionsBetween(ctx, SessionFilter{From: march, To: march.AddDate(0, 1, 0), TherapistID: 1})
	require.NoError(t, err)
	require.Len(t, sonia, 1)
	assert.Equal(t, "e1", sonia[0].GoogleEventID)
	require.NotNil(t, sonia[0].Patient)
	assert.Equal(t, "Juan", sonia[0].Patient.FullName)

	unassigned, err := store.SessionsBetween(ctx, SessionFilter{From: march, To: march.AddDate(0, 1, 0), Unassigned: true})
	require.NoError(t, err)
	require.Len(t, unassigned, 1)
	assert.Equal(t, "e3", unassigned[0].GoogleEventID)
}
