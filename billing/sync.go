package billing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"consulta-backend/calendar"
	"consulta-backend/metrics"
	"consulta-backend/models"
	"consulta-backend/utils"

	"go.uber.org/zap"
)

// SyncTx is the slice of the store the sync loop uses inside its transaction.
type SyncTx interface {
	// Step runs fn under a savepoint; on error only that step is rolled back.
	Step(name string, fn func() error) error
	FindOrCreatePatient(ctx context.Context, fullName string) (*models.Patient, error)
	UpsertSession(ctx context.Context, s *models.Session) (created bool, err error)
	// CancelMissing cancels the stored sessions starting in [from, to) whose event id is
	// not in fetched, and returns how many changed.
	CancelMissing(ctx context.Context, from, to time.Time, fetched []string) (int, error)
}

// SyncStore is what Syncer needs from persistence.
type SyncStore interface {
	TherapistReader
	InTx(ctx context.Context, fn func(tx SyncTx) error) error
	Notify(ctx context.Context, n *models.Notification) error
}

// SyncReport tallies one sync run.
type SyncReport struct {
	From       time.Time `json:"from"`
	To         time.Time `json:"to"`
	Fetched    int       `json:"fetched"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	Failed     int       `json:"failed"`
	Unassigned int       `json:"unassigned"`
	Cancelled  int       `json:"cancelled"`
	Errors     []string  `json:"errors,omitempty"`
}

// Syncer materializes calendar events as Session rows.
type Syncer struct {
	events calendar.Source
	store  SyncStore
	pricer Pricer
	log    *zap.Logger
	now    func() time.Time
}

func NewSyncer(events calendar.Source, store SyncStore, pricer Pricer, log *zap.Logger) *Syncer {
	return &Syncer{events: events, store: store, pricer: pricer, log: log, now: time.Now}
}

// Sync upserts one Session per event in [from, to) and cancels stored sessions whose
// event is gone. The range commits as one transaction; a failing event is rolled back
// to its savepoint and counted.
// Concurrent syncs are not serialized here; they rely on the upsert being atomic.
func (s *Syncer) Sync(ctx context.Context, calendarID string, from, to time.Time) (SyncReport, error) {
	rep := SyncReport{From: from, To: to}

	events, err := s.events.Events(ctx, calendarID, from, to)
	if err != nil {
		return rep, fmt.Errorf("fetch events: %w", err)
	}
	rep.Fetched = len(events)

	therapists, err := s.store.Therapists(ctx)
	if err != nil {
		return rep, fmt.Errorf("load therapists: %w", err)
	}
	detector := NewDetector(therapists)
	now := s.now()

	err = s.store.InTx(ctx, func(tx SyncTx) error {
		for i, ev := range events {
			sess := s.session(detector, ev, now)
			if sess.TherapistID == nil && sess.IsBillable {
				rep.Unassigned++
			}
			var created bool
			stepErr := tx.Step(fmt.Sprintf("sync_event_%d", i), func() error {
				if sess.IsBillable {
					if name := PatientName(ev.Title); name != "" {
						p, err := tx.FindOrCreatePatient(ctx, name)
						if err != nil {
							return fmt.Errorf("patient %q: %w", name, err)
						}
						sess.PatientID = &p.ID
					}
				}
				var err error
				created, err = tx.UpsertSession(ctx, sess)
				return err
			})
			switch {
			case stepErr != nil:
				rep.Failed++
				rep.Errors = append(rep.Errors, fmt.Sprintf("event %s: %v", ev.ID, stepErr))
				metrics.SyncedEvents.WithLabelValues("failed").Inc()
				s.log.Warn("sync event failed", zap.String("event_id", ev.ID), zap.Error(stepErr))
			case created:
				rep.Created++
				metrics.SyncedEvents.WithLabelValues("created").Inc()
			default:
				rep.Updated++
				metrics.SyncedEvents.WithLabelValues("updated").Inc()
			}
		}

		// events deleted from the calendar stop billing
		fetched := make([]string, 0, len(events))
		for _, ev := range events {
			fetched = append(fetched, ev.ID)
		}
		n, err := tx.CancelMissing(ctx, from, to, fetched)
		if err != nil {
			return fmt.Errorf("cancel missing sessions: %w", err)
		}
		rep.Cancelled = n
		return nil
	})
	if err != nil {
		return rep, fmt.Errorf("sync transaction: %w", err)
	}

	if rep.Unassigned > 0 {
		n := &models.Notification{
			Kind:    "sync_unassigned",
			Title:   "Sesiones sin terapeuta",
			Message: fmt.Sprintf("%d sesiones entre %s y %s no tienen terapeuta asignado", rep.Unassigned, from.Format(time.DateOnly), to.Format(time.DateOnly)),
		}
		if err := s.store.Notify(ctx, n); err != nil {
			s.log.Warn("sync notification failed", zap.Error(err))
		}
	}

	s.log.Info("calendar sync finished",
		zap.Int("fetched", rep.Fetched),
		zap.Int("created", rep.Created),
		zap.Int("updated", rep.Updated),
		zap.Int("failed", rep.Failed),
		zap.Int("unassigned", rep.Unassigned),
		zap.Int("cancelled", rep.Cancelled),
	)
	return rep, nil
}

// session derives the stored row for ev. Manager and non-billable events are kept
// with price 0 so the calendar view stays complete.
func (s *Syncer) session(d *Detector, ev calendar.Event, now time.Time) *models.Session {
	t := d.Detect(ev.Title)
	billable := Billable(ev) && !t.Manager
	minutes := ev.DurationMinutes()

	sess := &models.Session{
		GoogleEventID:   ev.ID,
		Title:           ev.Title,
		StartsAt:        ev.Start,
		EndsAt:          ev.End,
		DurationMinutes: minutes,
		Price:           s.pricer.Price(minutes, billable),
		IsBillable:      billable,
		Status:          sessionStatus(ev, now),
		Color:           ev.ColorID,
	}
	if t.Assigned() {
		id := t.ID
		sess.TherapistID = &id
	}
	return sess
}

func sessionStatus(ev calendar.Event, now time.Time) string {
	words := utils.Words(ev.Title)
	if ev.Cancelled() || containsAny(words, cancelledMarkers) {
		return models.SessionCancelled
	}
	if !ev.End.IsZero() && ev.End.Before(now) {
		return models.SessionCompleted
	}
	return models.SessionScheduled
}

var cancelledMarkers = [][]string{{"anulada"}, {"anulado"}, {"cancelada"}, {"cancelado"}}

// placeholderMarkers are administrative titles that never name a patient.
var placeholderMarkers = [][]string{
	{"libre"}, {"supervision"}, {"vacaciones"}, {"reunion"}, {"formacion"},
	{"festivo"}, {"anulada"}, {"anulado"}, {"cancelada"}, {"no", "disponible"},
	{"bloqueo"}, {"descanso"}, {"administracion"}, {"comida"},
}

// patientPrefixes are leading words stripped before the patient name.
var patientPrefixes = [][]string{
	{"primera", "visita"}, {"sesion"}, {"cita"}, {"terapia"}, {"consulta"},
	{"visita"}, {"online"}, {"presencial"},
}

// tagSpan matches a run of /tag/ tokens opened after whitespace or at the start.
var tagSpan = regexp.MustCompile(`(^|\s)(/[^/]*)+/`)

// PatientName extracts the patient from a title such as "Sesión Juan Pérez /sonia/".
// It returns "" for placeholder titles and titles with nothing left after cleanup.
func PatientName(title string) string {
	clean := tagSpan.ReplaceAllString(title, " ")
	if containsAny(utils.Words(clean), placeholderMarkers) {
		return ""
	}

	fields := strings.FieldsFunc(clean, func(r rune) bool {
		return r == ' ' || r == '\t' || r == '-' || r == ':' || r == '|' || r == ','
	})
	for stripped := true; stripped && len(fields) > 0; {
		stripped = false
		for _, p := range patientPrefixes {
			if len(fields) >= len(p) && foldedEqual(fields[:len(p)], p) {
				fields = fields[len(p):]
				stripped = true
				break
			}
		}
	}

	name := strings.Trim(strings.Join(fields, " "), " .()[]")
	if len(utils.Words(name)) == 0 {
		return ""
	}
	return name
}

func foldedEqual(fields []string, want []string) bool {
	for i := range want {
		if strings.Join(utils.Words(fields[i]), " ") != want[i] {
			return false
		}
	}
	return true
}

func containsAny(words []string, markers [][]string) bool {
	for _, m := range markers {
		if containsRun(words, m) {
			return true
		}
	}
	return false
}
