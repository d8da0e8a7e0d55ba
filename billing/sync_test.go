package billing

import (
	"context"
	"errors"
	"testing"
	"time"

	"consulta-backend/calendar"
	"consulta-backend/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestPatientName(t *testing.T) {
	cases := map[string]string{
		"Sesión Juan Pérez /sonia/":      "Juan Pérez",
		"sesion - María José /SONIA/":    "María José",
		"Primera visita: Carlos Ruiz":    "Carlos Ruiz",
		"Terapia online Lucía /iñigo/":   "Lucía",
		"Libre /sonia/":                  "",
		"Supervisión /sonia/":            "",
		"VACACIONES":                     "",
		"No disponible":                  "",
		"Sesión /sonia/":                 "",
		"Reunión de equipo":              "",
		"Sesión Pedro anulada /sonia/":   "",
		"Sesión Pedro /sonia//laura/":    "Pedro",
		"/sonia/ Marta Gil":              "Marta Gil",
		"  ":                             "",
	}
	for title, want := range cases {
		assert.Equal(t, want, PatientName(title), title)
	}
}

func TestSessionStatus(t *testing.T) {
	now := march.AddDate(0, 0, 10)
	assert.Equal(t, models.SessionCompleted, sessionStatus(ev("a", "Sesión", 1, 60), now))
	assert.Equal(t, models.SessionScheduled, sessionStatus(ev("b", "Sesión", 20, 60), now))
	assert.Equal(t, models.SessionCancelled, sessionStatus(ev("c", "Sesión ANULADA", 20, 60), now))
	cancelled := ev("d", "Sesión", 20, 60)
	cancelled.Status = calendar.StatusCancelled
	assert.Equal(t, models.SessionCancelled, sessionStatus(cancelled, now))
}

type memTx struct {
	store *memSyncStore
}

func (m memTx) Step(_ string, fn func() error) error {
	snapshot := len(m.store.patients)
	if err := fn(); err != nil {
		m.store.patients = m.store.patients[:snapshot]
		return err
	}
	return nil
}

func (m memTx) FindOrCreatePatient(_ context.Context, name string) (*models.Patient, error) {
	for i := range m.store.patients {
		if m.store.patients[i].FullName == name {
			return &m.store.patients[i], nil
		}
	}
	m.store.patients = append(m.store.patients, models.Patient{ID: uint(len(m.store.patients) + 1), FullName: name})
	return &m.store.patients[len(m.store.patients)-1], nil
}

func (m memTx) UpsertSession(_ context.Context, s *models.Session) (bool, error) {
	if s.GoogleEventID == "boom" {
		return false, errors.New("constraint violation")
	}
	_, exists := m.store.sessions[s.GoogleEventID]
	m.store.sessions[s.GoogleEventID] = *s
	return !exists, nil
}

func (m memTx) CancelMissing(_ context.Context, from, to time.Time, fetched []string) (int, error) {
	seen := map[string]bool{}
	for _, id := range fetched {
		seen[id] = true
	}
	n := 0
	for id, s := range m.store.sessions {
		if seen[id] || s.StartsAt.Before(from) || !s.StartsAt.Before(to) || s.Status == models.SessionCancelled {
			continue
		}
		s.Status, s.IsBillable, s.Price = models.SessionCancelled, false, 0
		m.store.sessions[id] = s
		n++
	}
	return n, nil
}

type memSyncStore struct {
	fakeTherapists
	sessions      map[string]models.Session
	patients      []models.Patient
	notifications []models.Notification
}

func (m *memSyncStore) InTx(_ context.Context, fn func(tx SyncTx) error) error {
	return fn(memTx{store: m})
}

func (m *memSyncStore) Notify(_ context.Context, n *models.Notification) error {
	m.notifications = append(m.notifications, *n)
	return nil
}

func TestSyncUpsertsAndTallies(t *testing.T) {
	store := &memSyncStore{fakeTherapists: fakeTherapists(testTherapists()), sessions: map[string]models.Session{}}
	src := calendar.Static{
		ev("e1", "Sesión Juan Pérez /sonia/", 1, 60),
		ev("e2", "Sesión Ana /iñigo/", 10, 90),
		ev("e3", "Libre", 3, 60),
		ev("e4", "Gestión /laura/", 4, 60),
		ev("e5", "Sesión Desconocido", 5, 60),
		ev("boom", "Sesión Roto /sonia/", 6, 60),
	}
	s := NewSyncer(src, store, DefaultPricer, zap.NewNop())
	s.now = func() time.Time { return march.AddDate(0, 0, 3) }

	rep, err := s.Sync(context.Background(), "primary", march, march.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 6, rep.Fetched)
	assert.Equal(t, 5, rep.Created)
	assert.Equal(t, 0, rep.Updated)
	assert.Equal(t, 1, rep.Failed)
	assert.Equal(t, 1, rep.Unassigned)
	require.Len(t, store.notifications, 1)

	e1 := store.sessions["e1"]
	require.NotNil(t, e1.TherapistID)
	assert.Equal(t, uint(1), *e1.TherapistID)
	assert.Equal(t, 55.0, e1.Price)
	assert.Equal(t, models.SessionCompleted, e1.Status)
	require.NotNil(t, e1.PatientID)

	assert.Equal(t, 70.0, store.sessions["e2"].Price)
	assert.Equal(t, models.SessionScheduled, store.sessions["e2"].Status)

	// libre and the manager's own block are stored at zero
	assert.False(t, store.sessions["e3"].IsBillable)
	assert.Equal(t, 0.0, store.sessions["e3"].Price)
	assert.False(t, store.sessions["e4"].IsBillable)
	assert.Equal(t, 0.0, store.sessions["e4"].Price)

	assert.Nil(t, store.sessions["e5"].TherapistID)

	// the failed event's patient was rolled back with its step
	names := []string{}
	for _, p := range store.patients {
		names = append(names, p.FullName)
	}
	assert.ElementsMatch(t, []string{"Juan Pérez", "Ana", "Desconocido"}, names)

	rep, err = s.Sync(context.Background(), "primary", march, march.AddDate(0, 1, 0))
	require.NoError(t, err)
	assert.Equal(t, 0, rep.Created)
	assert.Equal(t, 5, rep.Updated)
	assert.Zero(t, rep.Cancelled)
	assert.Len(t, store.sessions, 5)
}

func TestSyncCancelsEventsGoneFromCalendar(t *testing.T) {
	store := &memSyncStore{fakeTherapists: fakeTherapists(testTherapists()), sessions: map[string]models.Session{}}
	src := calendar.Static{
		ev("e1", "Sesión Juan /sonia/", 1, 60),
		ev("e2", "Sesión Ana /sonia/", 2, 60),
	}
	s := NewSyncer(src, store, DefaultPricer, zap.NewNop())
	month := march.AddDate(0, 1, 0)

	_, err := s.Sync(context.Background(), "primary", march, month)
	require.NoError(t, err)

	s.events = src[:1]
	rep, err := s.Sync(context.Background(), "primary", march, month)
	require.NoError(t, err)
	assert.Equal(t, 1, rep.Updated)
	assert.Equal(t, 1, rep.Cancelled)

	e2 := store.sessions["e2"]
	assert.Equal(t, models.SessionCancelled, e2.Status)
	assert.False(t, e2.IsBillable)
	assert.Zero(t, e2.Price)
	assert.Equal(t, 55.0, store.sessions["e1"].Price)

	// a cancelled instance returned by the calendar is stored at zero too
	cancelled := ev("e1", "Sesión Juan /sonia/", 1, 60)
	cancelled.Status = calendar.StatusCancelled
	s.events = calendar.Static{cancelled}
	_, err = s.Sync(context.Background(), "primary", march, month)
	require.NoError(t, err)
	assert.Equal(t, models.SessionCancelled, store.sessions["e1"].Status)
	assert.Zero(t, store.sessions["e1"].Price)
}

func TestSyncFailsWhenCalendarFails(t *testing.T) {
	store := &memSyncStore{sessions: map[string]models.Session{}}
	s := NewSyncer(failingSource{}, store, DefaultPricer, zap.NewNop())

	_, err := s.Sync(context.Background(), "primary", march, march.AddDate(0, 1, 0))
	assert.Error(t, err)
	assert.Empty(t, store.sessions)
}
